package wire

import "encoding/binary"

// Accept is the decoded body of an ACPT (login accept) payload.
type Accept struct {
	GrantedAccess AccessLevel
}

// DecodeAccept decodes an ACPT payload: ACPT | i32 grantedAccess.
func DecodeAccept(payload []byte) (Accept, error) {
	if len(payload) < 8 {
		return Accept{}, ErrShortPayload
	}
	return Accept{GrantedAccess: AccessLevel(int32(binary.LittleEndian.Uint32(payload[4:8])))}, nil //nolint:gosec
}

// Ack is the decoded body of an ACK payload.
type Ack struct {
	Sequence uint32
}

// DecodeAck decodes an ACK payload: ACK | u32 sequence.
func DecodeAck(payload []byte) (Ack, error) {
	if len(payload) < 8 {
		return Ack{}, ErrShortPayload
	}
	return Ack{Sequence: binary.LittleEndian.Uint32(payload[4:8])}, nil
}

// Nak is the decoded body of a NAK payload.
type Nak struct {
	Sequence   uint32
	StatusCode uint32
}

// DecodeNak decodes a NAK payload: NAK | u32 sequence | u32 statusCode.
func DecodeNak(payload []byte) (Nak, error) {
	if len(payload) < 12 {
		return Nak{}, ErrShortPayload
	}
	return Nak{
		Sequence:   binary.LittleEndian.Uint32(payload[4:8]),
		StatusCode: binary.LittleEndian.Uint32(payload[8:12]),
	}, nil
}

// Response is the decoded body of an RSP payload.
type Response struct {
	Sequence   uint32
	Subcommand uint32
	StatusCode uint32
	// Data is the slice of payload starting at offset 16 (after the RSP header). It aliases the
	// input buffer; callers that need to retain it beyond the current dispatch must copy it.
	Data []byte
}

// DecodeResponse decodes an RSP payload: RSP | u32 sequence | u32 subcommand | u32 statusCode |
// data.
func DecodeResponse(payload []byte) (Response, error) {
	if len(payload) < 16 {
		return Response{}, ErrShortPayload
	}
	return Response{
		Sequence:   binary.LittleEndian.Uint32(payload[4:8]),
		Subcommand: binary.LittleEndian.Uint32(payload[8:12]),
		StatusCode: binary.LittleEndian.Uint32(payload[12:16]),
		Data:       payload[16:],
	}, nil
}

// Status is the decoded body of a STAT payload.
type Status struct {
	Substatus uint32
	// Data is the slice of payload starting at offset 8 (after the STAT header, i.e. after
	// tag+substatus). It aliases the input buffer.
	Data []byte
}

// DecodeStatus decodes a STAT payload: STAT | u32 substatus | data.
//
// Per §4.D / §9's Open Question, a handler is invoked only when the total payload length (tag
// included) is at least 8 bytes, i.e. the substatus field is fully present; shorter STAT frames
// are reported by returning ErrShortPayload so the caller can discard them silently.
func DecodeStatus(payload []byte) (Status, error) {
	if len(payload) < 8 {
		return Status{}, ErrShortPayload
	}
	return Status{
		Substatus: binary.LittleEndian.Uint32(payload[4:8]),
		Data:      payload[8:],
	}, nil
}

// DecodeLogin decodes a LOGN payload, primarily used by tests that simulate the server side of
// the login handshake.
func DecodeLogin(payload []byte) (LoginRequest, error) {
	if len(payload) < 4+4+4+FixedFieldLen+FixedFieldLen {
		return LoginRequest{}, ErrShortPayload
	}
	req := LoginRequest{
		Access: AccessLevel(binary.LittleEndian.Uint32(payload[4:8])), //nolint:gosec
	}
	copy(req.LocalAddr[:], payload[8:12])
	req.Username = getFixedString(payload[12 : 12+FixedFieldLen])
	req.MachineName = getFixedString(payload[12+FixedFieldLen:])
	return req, nil
}
