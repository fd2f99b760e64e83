package reconcile

import "errors"

// Machine errors.
var (
	// ErrRefreshSkipped is returned when a refresh is requested while another
	// refresh or a push is outstanding.
	ErrRefreshSkipped = errors.New("reconcile: refresh skipped")

	// ErrNoChannel is reported when no channel can carry the operation.
	ErrNoChannel = errors.New("reconcile: no usable channel")

	// ErrPushUnsupported is reported when the only channel available cannot
	// carry commands for this device.
	ErrPushUnsupported = errors.New("reconcile: push unsupported on channel")

	// ErrReadOnly is returned by Set for properties the device cannot change.
	ErrReadOnly = errors.New("reconcile: property is read-only")

	// ErrInvalidValue is returned by Set when the value has the wrong type or
	// is out of range.
	ErrInvalidValue = errors.New("reconcile: invalid value")

	// ErrOffline is reported to the sink when the device is unreachable.
	ErrOffline = errors.New("reconcile: device offline")

	// ErrStopped is returned after Stop.
	ErrStopped = errors.New("reconcile: machine stopped")

	// ErrInvalidOptions is returned by New when a required option is missing.
	ErrInvalidOptions = errors.New("reconcile: invalid options")
)
