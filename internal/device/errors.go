package device

import "errors"

// Domain errors for the device package.
var (
	// ErrDeviceNotFound is returned when a device ID is not in the catalogue.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrContextNotFound is returned when no persisted context exists for a device.
	ErrContextNotFound = errors.New("device: context not found")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidDeviceType is returned when a device type is not recognised.
	ErrInvalidDeviceType = errors.New("device: invalid type")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidAddress is returned when a radio address is malformed.
	ErrInvalidAddress = errors.New("device: invalid address")

	// ErrInvalidContext is returned when a context cannot be stored.
	ErrInvalidContext = errors.New("device: invalid context")
)
