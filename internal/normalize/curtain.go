package normalize

import (
	"strings"

	"github.com/nerrad567/gray-logic-switchbot/internal/channel"
	"github.com/nerrad567/gray-logic-switchbot/internal/codec"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// curtain handles curtain and blind-tilt motors. The device counts 0 as
// fully open; the hub counts 100 as fully open.
//
//	cloud/webhook: slidePosition (required on cloud), moving, battery, brightness "bright"|"dim"
//	local:         position (required), inMotion, battery, lightLevel 1-20
func curtain(ch channel.Kind, raw Raw, opts Options) (state.Values, error) {
	posKey, movingKey := "slidePosition", "moving"
	if ch == channel.Local {
		posKey, movingKey = "position", "inMotion"
	}

	out := state.Values{}
	pos, ok := integer(raw, posKey)
	switch {
	case ok:
		current := codec.ClampPercent(100 - codec.ClampPercent(pos))
		out[state.CurrentPosition] = current
		moving, _ := flag(raw, movingKey)
		out[state.PositionState] = positionState(moving, current, opts.Current)
		if !moving {
			out[state.TargetPosition] = current
		}
	case ch != channel.Webhook:
		return nil, malformed(posKey, raw[posKey])
	}

	battery(raw, out)

	minLux, maxLux := opts.luxBounds()
	if ch == channel.Local {
		if level, ok := integer(raw, "lightLevel"); ok {
			out[state.CurrentAmbientLightLevel] = codec.LightLevelToLux(level, minLux, maxLux)
		}
	} else if b, ok := str(raw, "brightness"); ok {
		switch strings.ToLower(b) {
		case "bright":
			out[state.CurrentAmbientLightLevel] = maxLux
		case "dim":
			out[state.CurrentAmbientLightLevel] = minLux
		}
	}

	return out, nil
}

// positionState derives the motion direction from the last requested target.
func positionState(moving bool, current int, prev state.Values) int {
	if !moving {
		return state.PositionStopped
	}
	target, ok := prev.Int(state.TargetPosition)
	switch {
	case !ok || target == current:
		return state.PositionStopped
	case target > current:
		return state.PositionIncreasing
	default:
		return state.PositionDecreasing
	}
}
