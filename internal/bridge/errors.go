package bridge

import "errors"

// Domain-specific errors for the bridge.
var (
	// ErrUnknownDevice is returned when no machine serves the device id.
	ErrUnknownDevice = errors.New("bridge: unknown device")

	// ErrInvalidWebhook is returned for webhook bodies without a usable
	// context.deviceMac.
	ErrInvalidWebhook = errors.New("bridge: invalid webhook")

	// ErrInvalidCommand is returned for set-commands that cannot be parsed.
	ErrInvalidCommand = errors.New("bridge: invalid command")
)
