// Package normalize maps raw SwitchBot status payloads onto canonical state.
//
// Every device category has one normalizer. It reads the channel-specific
// field names and value domains (cloud "on"/"off" strings, radio boolean
// flags, Kelvin or mired colour temperatures, light level buckets) and
// returns the canonical properties the payload carries, in hub units.
//
// Missing optional fields are skipped so the caller keeps its prior value.
// A missing or unrecognised required discriminator (for example a lock's
// state) yields ErrMalformedPayload and no values.
package normalize

import (
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-switchbot/internal/channel"
	"github.com/nerrad567/gray-logic-switchbot/internal/codec"
	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

var (
	// ErrMalformedPayload is returned when a required field is absent or
	// holds an unrecognised value.
	ErrMalformedPayload = errors.New("normalize: malformed payload")

	// ErrUnsupportedDevice is returned for categories that report no status.
	ErrUnsupportedDevice = errors.New("normalize: device type reports no status")

	// ErrUnsupportedChannel is returned when a category cannot be read over
	// the given channel.
	ErrUnsupportedChannel = errors.New("normalize: unsupported channel")
)

// Raw is a decoded status payload: a cloud response body, a webhook context
// or a radio advertisement's service data.
type Raw map[string]any

// Options carry per-device inputs to a normalizer.
type Options struct {
	// MinLux and MaxLux bound light level interpolation. Zero means the
	// codec defaults.
	MinLux float64
	MaxLux float64

	// Current is the canonical state before this payload is merged. It is
	// read, never modified, to derive properties a partial payload cannot
	// determine on its own.
	Current state.Values
}

func (o Options) luxBounds() (minLux, maxLux float64) {
	minLux, maxLux = o.MinLux, o.MaxLux
	if minLux <= 0 {
		minLux = codec.DefaultMinLux
	}
	if maxLux <= 0 || maxLux <= minLux {
		maxLux = codec.DefaultMaxLux
	}
	return minLux, maxLux
}

type normalizer func(ch channel.Kind, raw Raw, opts Options) (state.Values, error)

var normalizers = map[device.Type]normalizer{
	device.TypeBulb:       bulb,
	device.TypeLock:       lock,
	device.TypeCurtain:    curtain,
	device.TypeHumidifier: humidifier,
	device.TypeHub:        hub,
	device.TypeMotion:     motion,
	device.TypeContact:    contact,
}

// Normalize converts a raw payload received over ch into canonical values.
//
// Parameters:
//   - t: Device category
//   - ch: Channel the payload arrived on (local, cloud or webhook)
//   - raw: Decoded payload
//   - opts: Per-device options
//
// Returns:
//   - state.Values: The canonical properties present in raw (may be empty)
//   - error: ErrMalformedPayload, ErrUnsupportedDevice or ErrUnsupportedChannel
func Normalize(t device.Type, ch channel.Kind, raw Raw, opts Options) (state.Values, error) {
	fn, ok := normalizers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDevice, t)
	}
	if raw == nil {
		raw = Raw{}
	}
	switch ch {
	case channel.Local, channel.Cloud, channel.Webhook:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChannel, ch)
	}
	return fn(ch, raw, opts)
}

// Firmware returns the firmware revision a cloud status body reports.
func Firmware(raw Raw) string {
	v, _ := str(raw, "version")
	return v
}

func malformed(field string, v any) error {
	if v == nil {
		return fmt.Errorf("%w: missing %s", ErrMalformedPayload, field)
	}
	return fmt.Errorf("%w: %s=%v", ErrMalformedPayload, field, v)
}
