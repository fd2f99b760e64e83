package normalize

import (
	"github.com/nerrad567/gray-logic-switchbot/internal/channel"
	"github.com/nerrad567/gray-logic-switchbot/internal/codec"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// hub handles Hub 2 and meter sensors. Every field is optional.
//
//	cloud:   temperature, humidity, lightLevel 1-20
//	webhook: scale, temperature (applied only when scale is CELSIUS), humidity, lightLevel
//	local:   temperature (number or {"c": n}), humidity
func hub(ch channel.Kind, raw Raw, opts Options) (state.Values, error) {
	out := state.Values{}

	if t, ok := temperature(raw); ok && celsius(ch, raw) {
		out[state.CurrentTemperature] = t
	}
	if h, ok := integer(raw, "humidity"); ok {
		out[state.CurrentRelativeHumidity] = codec.ClampPercent(h)
	}
	if level, ok := integer(raw, "lightLevel"); ok {
		minLux, maxLux := opts.luxBounds()
		out[state.CurrentAmbientLightLevel] = codec.LightLevelToLux(level, minLux, maxLux)
	}

	return out, nil
}

func temperature(raw Raw) (float64, bool) {
	if t, ok := number(raw, "temperature"); ok {
		return t, true
	}
	if m, ok := raw["temperature"].(map[string]any); ok {
		return number(Raw(m), "c")
	}
	return 0, false
}
