package normalize

import (
	"math"

	"github.com/nerrad567/gray-logic-switchbot/internal/channel"
	"github.com/nerrad567/gray-logic-switchbot/internal/codec"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// bulb handles colour bulbs and strip lights.
//
//	cloud:   power "on"|"off" (required), brightness, color "r:g:b", colorTemperature (K)
//	webhook: powerState "ON"|"OFF", brightness, color, colorTemperature
//	local:   state bool (required), brightness, red, green, blue, color_temperature
func bulb(ch channel.Kind, raw Raw, _ Options) (state.Values, error) {
	out := state.Values{}

	switch ch {
	case channel.Cloud:
		v, _ := str(raw, "power")
		on, ok := onOff(v)
		if !ok {
			return nil, malformed("power", raw["power"])
		}
		out[state.On] = on
	case channel.Webhook:
		if _, present := raw["powerState"]; present {
			v, _ := str(raw, "powerState")
			on, ok := onOff(v)
			if !ok {
				return nil, malformed("powerState", raw["powerState"])
			}
			out[state.On] = on
		}
	case channel.Local:
		on, ok := flag(raw, "state")
		if !ok {
			return nil, malformed("state", raw["state"])
		}
		out[state.On] = on
	}

	if b, ok := integer(raw, "brightness"); ok {
		out[state.Brightness] = codec.ClampPercent(b)
	}

	if ch == channel.Local {
		r, rok := integer(raw, "red")
		g, gok := integer(raw, "green")
		b, bok := integer(raw, "blue")
		if rok && gok && bok {
			setHS(out, uint8(codec.ClampInt(r, 0, 255)), uint8(codec.ClampInt(g, 0, 255)), uint8(codec.ClampInt(b, 0, 255)))
		}
	} else if c, ok := str(raw, "color"); ok {
		if r, g, b, err := codec.ParseRGB(c); err == nil {
			setHS(out, r, g, b)
		}
	}

	ctKey := "colorTemperature"
	if ch == channel.Local {
		ctKey = "color_temperature"
	}
	if ct, ok := integer(raw, ctKey); ok && ct > 0 {
		if ch == channel.Cloud {
			out[state.ColorTemperature] = codec.HubMired(ct)
		} else {
			out[state.ColorTemperature] = colourTemperature(ct)
		}
	}

	return out, nil
}

// colourTemperature accepts either unit: readings inside the hub's mired
// range are taken as mired, anything else as Kelvin.
func colourTemperature(v int) int {
	if v >= codec.MiredMin && v <= codec.MiredMax {
		return v
	}
	return codec.HubMired(v)
}

func setHS(out state.Values, r, g, b uint8) {
	hue, sat := codec.RGBToHS(r, g, b)
	out[state.Hue] = int(math.Round(hue)) % codec.HueMax
	out[state.Saturation] = int(math.Round(sat))
}
