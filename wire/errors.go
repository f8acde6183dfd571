package wire

import "errors"

// Errors returned while decoding a payload. These are protocol-layer errors (§4.D / §7): they
// do not escalate to a disconnect, only to an async error report.
var (
	// ErrShortPayload is returned when a payload is too short to contain its fixed fields.
	ErrShortPayload = errors.New("wire: payload too short")
	// ErrUnknownTag describes a tag that matches none of the known message types. No function in
	// this package returns it: DecodeTag returns whatever tag is present, known or not.
	ErrUnknownTag = errors.New("wire: unknown message type")
)
