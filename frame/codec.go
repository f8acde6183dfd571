// Package frame implements the wire envelope shared by every message exchanged with the
// instrument: a fixed sentinel-delimited frame carrying a variable-length payload.
//
// The codec is pure and stateless — it knows nothing about what the payload bytes mean. Message
// semantics live one layer up, in package wire.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Sync is the 4-byte ASCII sentinel that opens every frame.
var Sync = [4]byte{'S', 'Y', 'N', 'C'}

// End is the 4-byte ASCII sentinel that closes every frame.
var End = [4]byte{'E', 'N', 'D', ' '}

// DefaultMaxFrame is the default upper bound on a frame's payload length, 10 MiB.
const DefaultMaxFrame = 10 * 1024 * 1024

// MinPayloadLen is the minimum legal payload length: every payload carries at least a 4-byte
// message type tag.
const MinPayloadLen = 4

// Errors returned by Decode. All are fatal to the current connection: a malformed frame means
// the byte stream can no longer be trusted to be aligned on frame boundaries.
var (
	// ErrBadSync is returned when the leading 4 bytes of a frame do not match Sync.
	ErrBadSync = errors.New("frame: bad SYNC")
	// ErrBadLength is returned when the decoded length field is outside [MinPayloadLen, MaxFrame].
	ErrBadLength = errors.New("frame: bad length")
	// ErrBadEnd is returned when the trailing 4 bytes of a frame do not match End.
	ErrBadEnd = errors.New("frame: bad END")
	// ErrShortRead is returned when the peer closed the connection before a complete frame arrived.
	ErrShortRead = errors.New("frame: short read, peer closed connection")
)

// Codec encodes and decodes frames. The zero value uses DefaultMaxFrame; set MaxFrame to
// override it, e.g. in tests that want to exercise the oversized-length rejection path cheaply.
type Codec struct {
	// MaxFrame bounds the payload length Decode will accept. Zero means DefaultMaxFrame.
	MaxFrame uint32
}

func (c Codec) maxFrame() uint32 {
	if c.MaxFrame == 0 {
		return DefaultMaxFrame
	}
	return c.MaxFrame
}

// Encode writes payload as one complete frame: SYNC | length (LE u32) | payload | END.
//
// The write is not otherwise buffered or split; callers that need atomicity across concurrent
// writers (§4.B's transport-level write mutex) must serialize calls to Encode themselves — the
// codec performs a single Write call with the fully assembled frame so that a single
// io.Writer.Write cannot be interleaved by the runtime, but it does not serialize callers.
func Encode(w io.Writer, payload []byte) error {
	if len(payload) < MinPayloadLen {
		return fmt.Errorf("frame: payload too short to encode: %d bytes", len(payload))
	}

	buf := make([]byte, 0, 4+4+len(payload)+4)
	buf = append(buf, Sync[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload))) //nolint:gosec
	buf = append(buf, payload...)
	buf = append(buf, End[:]...)

	_, err := w.Write(buf)
	return err
}

// Decode reads exactly one frame from r and returns its payload.
//
// It reads 8 bytes (SYNC + length), validates SYNC and the length bound, reads length+4 more
// bytes, and validates the trailing END. Any failure is one of ErrBadSync, ErrBadLength,
// ErrBadEnd, or ErrShortRead; all are fatal to the current connection.
func (c Codec) Decode(r io.Reader) ([]byte, error) {
	var head [8]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, shortReadErr(err)
	}

	if head[0] != Sync[0] || head[1] != Sync[1] || head[2] != Sync[2] || head[3] != Sync[3] {
		return nil, ErrBadSync
	}

	length := binary.LittleEndian.Uint32(head[4:8])
	if length < MinPayloadLen || length > c.maxFrame() {
		return nil, fmt.Errorf("%w: %d", ErrBadLength, length)
	}

	rest := make([]byte, length+4)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, shortReadErr(err)
	}

	end := rest[length:]
	if end[0] != End[0] || end[1] != End[1] || end[2] != End[2] || end[3] != End[3] {
		return nil, ErrBadEnd
	}

	return rest[:length], nil
}

// Decode reads exactly one frame from r using DefaultMaxFrame as the length bound.
func Decode(r io.Reader) ([]byte, error) {
	return Codec{}.Decode(r)
}

func shortReadErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrShortRead, err)
	}
	return err
}
