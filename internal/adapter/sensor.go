package adapter

import (
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// Motion is a read-only motion sensor with a coarse light reading.
type Motion struct {
	readOnly
}

// NewMotion creates a motion sensor adapter.
func NewMotion(_ device.Device) *Motion {
	return &Motion{}
}

func (*Motion) Type() device.Type           { return device.TypeMotion }
func (*Motion) LocalPush() bool             { return false }
func (*Motion) Refreshable() bool           { return true }
func (*Motion) ConfirmDelay() time.Duration { return 0 }

// Baseline clears motion so an unreachable sensor never reports a stale
// detection.
func (*Motion) Baseline() state.Values {
	return state.Values{state.MotionDetected: false}
}

// Telemetry returns {motion, light, battery} for the readings present.
func (*Motion) Telemetry(current state.Values) (map[string]any, bool) {
	return sensorTelemetry(current)
}

// Contact is a read-only door or window sensor. It also detects motion.
type Contact struct {
	readOnly
}

// NewContact creates a contact sensor adapter.
func NewContact(_ device.Device) *Contact {
	return &Contact{}
}

func (*Contact) Type() device.Type           { return device.TypeContact }
func (*Contact) LocalPush() bool             { return false }
func (*Contact) Refreshable() bool           { return true }
func (*Contact) ConfirmDelay() time.Duration { return 0 }

// Baseline clears motion and keeps the last door reading.
func (*Contact) Baseline() state.Values {
	return state.Values{state.MotionDetected: false}
}

// Telemetry adds {open} to the motion sensor readings.
func (*Contact) Telemetry(current state.Values) (map[string]any, bool) {
	out, _ := sensorTelemetry(current)
	if c, ok := current.Int(state.ContactSensorState); ok {
		out["open"] = c == state.ContactNotDetected
	}
	return out, len(out) > 0
}

func sensorTelemetry(current state.Values) (map[string]any, bool) {
	out := make(map[string]any, 4) //nolint:mnd // four readings
	if m, ok := current.Bool(state.MotionDetected); ok {
		out["motion"] = m
	}
	if l, ok := current.Float(state.CurrentAmbientLightLevel); ok {
		out["light"] = l
	}
	if b, ok := current.Int(state.BatteryLevel); ok {
		out["battery"] = b
	}
	return out, len(out) > 0
}
