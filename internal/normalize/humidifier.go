package normalize

import (
	"strings"

	"github.com/nerrad567/gray-logic-switchbot/internal/channel"
	"github.com/nerrad567/gray-logic-switchbot/internal/codec"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// humidifier handles evaporative humidifiers.
//
//	cloud:   power "on"|"off" (required), auto, humidity, temperature,
//	         nebulizationEfficiency (threshold), lackWater
//	webhook: power, auto, humidity, scale, temperature (applied only when scale is CELSIUS)
//	local:   onState bool (required), autoMode, percentage (threshold)
func humidifier(ch channel.Kind, raw Raw, opts Options) (state.Values, error) {
	out := state.Values{}

	switch ch {
	case channel.Local:
		on, ok := flag(raw, "onState")
		if !ok {
			return nil, malformed("onState", raw["onState"])
		}
		out[state.Active] = activeValue(on)
		if auto, ok := flag(raw, "autoMode"); ok {
			out[state.TargetHumidifierDehumidifierState] = targetHumidifierState(auto)
		}
		if pct, ok := integer(raw, "percentage"); ok {
			out[state.RelativeHumidityHumidifierThreshold] = codec.ClampPercent(pct)
		}
	default:
		if p, present := raw["power"]; present || ch == channel.Cloud {
			v, _ := str(raw, "power")
			on, ok := onOff(v)
			if !ok {
				return nil, malformed("power", p)
			}
			out[state.Active] = activeValue(on)
		}
		if auto, ok := flag(raw, "auto"); ok {
			out[state.TargetHumidifierDehumidifierState] = targetHumidifierState(auto)
		}
		if h, ok := integer(raw, "humidity"); ok {
			out[state.CurrentRelativeHumidity] = codec.ClampPercent(h)
		}
		if t, ok := number(raw, "temperature"); ok && celsius(ch, raw) {
			out[state.CurrentTemperature] = t
		}
		if th, ok := integer(raw, "nebulizationEfficiency"); ok {
			out[state.RelativeHumidityHumidifierThreshold] = codec.ClampPercent(th)
		}
		if lack, ok := flag(raw, "lackWater"); ok {
			if lack {
				out[state.WaterLevel] = 0
			} else {
				out[state.WaterLevel] = 100
			}
		}
	}

	if cur, ok := humidifierState(out, opts.Current); ok {
		out[state.CurrentHumidifierDehumidifierState] = cur
	}
	return out, nil
}

// celsius reports whether a temperature reading can be used. Webhooks
// carry a scale and only Celsius readings are applied.
func celsius(ch channel.Kind, raw Raw) bool {
	if ch != channel.Webhook {
		return true
	}
	scale, _ := str(raw, "scale")
	return strings.EqualFold(scale, "CELSIUS")
}

func activeValue(on bool) int {
	if on {
		return state.IsActive
	}
	return state.Inactive
}

func targetHumidifierState(auto bool) int {
	if auto {
		return state.HumidifierAuto
	}
	return state.HumidifierOnly
}

// humidifierState derives the current humidifier state from the merged view
// of the new values over prev:
//
//	inactive                   -> INACTIVE
//	auto mode                  -> HUMIDIFYING
//	humidity above threshold   -> IDLE
//	otherwise                  -> HUMIDIFYING
func humidifierState(next, prev state.Values) (int, bool) {
	merged := prev.Clone().Merge(next)

	active, ok := merged.Int(state.Active)
	if !ok {
		return 0, false
	}
	if active == state.Inactive {
		return state.HumidifierInactive, true
	}
	if mode, ok := merged.Int(state.TargetHumidifierDehumidifierState); ok && mode == state.HumidifierAuto {
		return state.HumidifierHumidifying, true
	}
	humidity, hok := merged.Int(state.CurrentRelativeHumidity)
	threshold, tok := merged.Int(state.RelativeHumidityHumidifierThreshold)
	if hok && tok && humidity > threshold {
		return state.HumidifierIdle, true
	}
	return state.HumidifierHumidifying, true
}
