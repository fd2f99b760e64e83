package device

import (
	"fmt"
	"regexp"
	"strings"
)

// Validation constants.
const (
	maxNameLength = 100
	maxIDLength   = 64
	maxHidden     = 32
)

var (
	idRegex  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*$`)
	macRegex = regexp.MustCompile(`^([0-9a-f]{2}:){5}[0-9a-f]{2}$`)
)

// validOpenModes are the curtain motor modes accepted by setPosition.
var validOpenModes = map[string]struct{}{
	"":   {},
	"ff": {},
	"0":  {},
	"1":  {},
}

// ValidateDevice checks a device description before it is registered.
// Returns an error describing the first validation failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}

	if d.ID == "" || len(d.ID) > maxIDLength || !idRegex.MatchString(d.ID) {
		return fmt.Errorf("%w: id %q", ErrInvalidDevice, d.ID)
	}

	if err := ValidateName(d.Name); err != nil {
		return err
	}

	if !d.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidDeviceType, d.Type)
	}

	if d.MAC != "" && !macRegex.MatchString(d.MAC) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, d.MAC)
	}

	return validateSettings(d.Settings)
}

// ValidateName checks that a device name is present and not too long.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(trimmed) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

func validateSettings(s Settings) error {
	if s.RefreshRate < 0 || s.PushRate < 0 || s.ScanDuration < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidDevice)
	}
	if s.MaxRetry < 0 {
		return fmt.Errorf("%w: max_retry must not be negative", ErrInvalidDevice)
	}
	if s.MinLux < 0 || s.MaxLux < 0 {
		return fmt.Errorf("%w: lux bounds must not be negative", ErrInvalidDevice)
	}
	if s.MaxLux != 0 && s.MinLux >= s.MaxLux {
		return fmt.Errorf("%w: min_lux must be below max_lux", ErrInvalidDevice)
	}
	if s.MinStep < 0 || s.MinStep > 100 {
		return fmt.Errorf("%w: min_step must be 0-100", ErrInvalidDevice)
	}
	if len(s.Hide) > maxHidden {
		return fmt.Errorf("%w: hide exceeds %d entries", ErrInvalidDevice, maxHidden)
	}
	if _, ok := validOpenModes[s.OpenMode]; !ok {
		return fmt.Errorf("%w: set_open_mode %q", ErrInvalidDevice, s.OpenMode)
	}
	if _, ok := validOpenModes[s.CloseMode]; !ok {
		return fmt.Errorf("%w: set_close_mode %q", ErrInvalidDevice, s.CloseMode)
	}
	return nil
}
