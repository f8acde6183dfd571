package icc

import "errors"

// These sentinels describe, in words, why a bool-returning public call failed (§6's API surface
// reports failures as plain booleans, not errors). Callers that need to distinguish failure
// reasons can consult the logger output, which attaches one of these as the "error" attribute;
// ErrInvalidServerAddress is the one exception, returned directly from New since construction
// failure has no boolean return to fall back on.
var (
	// ErrAlreadyConnected describes a Connect call rejected because the client was not in the
	// NotConnected state.
	ErrAlreadyConnected = errors.New("icc: connect is only valid from the not-connected state")

	// ErrLoginTimeout describes a Connect call rejected because ACPT did not arrive within the
	// login timeout (§4.E; no event fires on a failed connect).
	ErrLoginTimeout = errors.New("icc: login timed out waiting for ACPT")

	// ErrNotConnected describes a SendGetCommand/SendActionCommand call rejected because the
	// client was not in the Connected state.
	ErrNotConnected = errors.New("icc: command rejected, not connected")

	// ErrAccessDenied describes a SendActionCommand call rejected because the granted access
	// level cannot issue ACTN commands (§3).
	ErrAccessDenied = errors.New("icc: action command rejected, insufficient access")

	// ErrInvalidServerAddress is returned at construction time when the server address does not
	// parse as an IPv4 literal.
	ErrInvalidServerAddress = errors.New("icc: server address must be an IPv4 literal")

	// ErrStatusHandlerRegistered describes a RegisterStatusHandler call rejected because a
	// handler is already registered for the given substatus.
	ErrStatusHandlerRegistered = errors.New("icc: status handler already registered for this substatus")
)
