package wire

import "encoding/binary"

// EncodeGet builds a GET payload: GET | u32 sequence | u32 subcommand | data.
func EncodeGet(seq, subcommand uint32, data []byte) []byte {
	return encodeCommand(TagGET, seq, subcommand, data)
}

// EncodeAction builds an ACTN payload: ACTN | u32 sequence | u32 subcommand | data.
func EncodeAction(seq, subcommand uint32, data []byte) []byte {
	return encodeCommand(TagACTN, seq, subcommand, data)
}

func encodeCommand(tag Tag, seq, subcommand uint32, data []byte) []byte {
	buf := make([]byte, 12+len(data))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(tag))
	binary.LittleEndian.PutUint32(buf[4:8], seq)
	binary.LittleEndian.PutUint32(buf[8:12], subcommand)
	copy(buf[12:], data)
	return buf
}

// LoginRequest carries the fields a LOGN frame negotiates.
type LoginRequest struct {
	Access      AccessLevel
	LocalAddr   [4]byte
	Username    string
	MachineName string
}

// EncodeLogin builds a LOGN payload: LOGN | u32 access | 4B localAddr | 64B username | 64B
// machineName. Username and MachineName are encoded as UTF-8, truncated to 64 bytes if longer,
// and left zero-padded within the 64-byte field if shorter.
func EncodeLogin(req LoginRequest) []byte {
	buf := make([]byte, 4+4+4+FixedFieldLen+FixedFieldLen)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(TagLOGN))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(req.Access)) //nolint:gosec
	copy(buf[8:12], req.LocalAddr[:])
	putFixedString(buf[12:12+FixedFieldLen], req.Username)
	putFixedString(buf[12+FixedFieldLen:], req.MachineName)
	return buf
}

// ConstrainedDeviceUsername and ConstrainedDeviceMachineName are the fixed literals used for
// the LOGN username/machineName fields on a constrained device profile (§4.D).
const (
	ConstrainedDeviceUsername    = "Display"
	ConstrainedDeviceMachineName = "Cortex"
)
