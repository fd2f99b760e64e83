package adapter

import (
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// Hub is a read-only climate sensor: a Hub 2, Meter or outdoor sensor.
// It publishes telemetry after every update and records a history sample
// whenever a humidity reading is present.
type Hub struct {
	readOnly
}

// NewHub creates a hub sensor adapter.
func NewHub(_ device.Device) *Hub {
	return &Hub{}
}

func (*Hub) Type() device.Type           { return device.TypeHub }
func (*Hub) LocalPush() bool             { return false }
func (*Hub) Refreshable() bool           { return true }
func (*Hub) ConfirmDelay() time.Duration { return 0 }

// Baseline is empty: an offline sensor keeps its last readings.
func (*Hub) Baseline() state.Values { return state.Values{} }

// Telemetry returns {humidity, temperature, light} for the readings present.
func (*Hub) Telemetry(current state.Values) (map[string]any, bool) {
	out := make(map[string]any, 3) //nolint:mnd // three readings
	if h, ok := current.Float(state.CurrentRelativeHumidity); ok {
		out["humidity"] = h
	}
	if t, ok := current.Float(state.CurrentTemperature); ok {
		out["temperature"] = t
	}
	if l, ok := current.Float(state.CurrentAmbientLightLevel); ok {
		out["light"] = l
	}
	return out, len(out) > 0
}

// HistorySample records humidity, temperature and light together, only when
// humidity is above zero.
func (*Hub) HistorySample(current state.Values) (state.Values, bool) {
	h, ok := current.Float(state.CurrentRelativeHumidity)
	if !ok || h <= 0 {
		return nil, false
	}
	sample := state.Values{state.CurrentRelativeHumidity: h}
	for _, name := range []string{state.CurrentTemperature, state.CurrentAmbientLightLevel} {
		if v, ok := current[name]; ok {
			sample[name] = v
		}
	}
	return sample, true
}
