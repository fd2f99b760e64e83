package radio

import "errors"

// Radio channel errors.
var (
	// ErrScanTimeout is returned when no matching advertisement arrived
	// within the scan window.
	ErrScanTimeout = errors.New("radio: scan timed out")

	// ErrNotConnected is returned when the gateway is not running.
	ErrNotConnected = errors.New("radio: gateway not connected")

	// ErrCommandFailed is returned when the gateway rejects a command.
	ErrCommandFailed = errors.New("radio: command failed")

	// ErrAckTimeout is returned when the gateway does not acknowledge a
	// command before the context deadline.
	ErrAckTimeout = errors.New("radio: command not acknowledged")

	// ErrInvalidAdvertisement is returned for undecodable advertisements.
	ErrInvalidAdvertisement = errors.New("radio: invalid advertisement")
)
