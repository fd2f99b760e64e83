package normalize

import (
	"strings"

	"github.com/nerrad567/gray-logic-switchbot/internal/channel"
	"github.com/nerrad567/gray-logic-switchbot/internal/codec"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// motion handles motion sensors. Every field is optional.
//
//	cloud:   moveDetected, brightness "bright"|"dim", battery
//	webhook: detectionState "DETECTED"|"NOT_DETECTED", brightness, battery
//	local:   movement, lightLevel "bright"|"dark" or 1-20, battery
func motion(ch channel.Kind, raw Raw, opts Options) (state.Values, error) {
	out := state.Values{}
	if moving, ok := movement(ch, raw); ok {
		out[state.MotionDetected] = moving
	}
	if lux, ok := ambientLight(ch, raw, opts); ok {
		out[state.CurrentAmbientLightLevel] = lux
	}
	battery(raw, out)
	return out, nil
}

// contact handles door and window contact sensors, which also carry a
// motion detector. Every field is optional.
//
//	cloud:   openState "open"|"close"|"timeOutNotClose", moveDetected, brightness, battery
//	webhook: openState, detectionState, brightness, battery
//	local:   doorState "open"|"close"|"timeout not close", movement, lightLevel, battery
func contact(ch channel.Kind, raw Raw, opts Options) (state.Values, error) {
	out, _ := motion(ch, raw, opts)

	key := "openState"
	if ch == channel.Local {
		key = "doorState"
	}
	if s, ok := str(raw, key); ok {
		switch strings.ToLower(strings.Join(strings.Fields(s), "")) {
		case "close", "closed":
			out[state.ContactSensorState] = state.ContactDetected
		case "open", "opened", "timeoutnotclose", "timeoutnotclosed":
			out[state.ContactSensorState] = state.ContactNotDetected
		}
	}
	return out, nil
}

func movement(ch channel.Kind, raw Raw) (bool, bool) {
	switch ch {
	case channel.Local:
		return flag(raw, "movement")
	case channel.Webhook:
		if s, ok := str(raw, "detectionState"); ok {
			switch strings.ToUpper(strings.TrimSpace(s)) {
			case "DETECTED":
				return true, true
			case "NOT_DETECTED":
				return false, true
			}
			return false, false
		}
	}
	return flag(raw, "moveDetected")
}

// ambientLight reads a coarse "bright"/"dim" reading or a 1-20 light level
// bucket and returns it in lux.
func ambientLight(ch channel.Kind, raw Raw, opts Options) (float64, bool) {
	key := "brightness"
	if ch == channel.Local {
		key = "lightLevel"
	}
	minLux, maxLux := opts.luxBounds()
	if s, ok := str(raw, key); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "bright":
			return maxLux, true
		case "dim", "dark":
			return minLux, true
		}
	}
	if level, ok := integer(raw, key); ok {
		return codec.LightLevelToLux(level, minLux, maxLux), true
	}
	return 0, false
}
