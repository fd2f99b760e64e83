package normalize

import (
	"strings"

	"github.com/nerrad567/gray-logic-switchbot/internal/channel"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// lowBatteryPercent is the level below which StatusLowBattery is raised.
const lowBatteryPercent = 10

// lock handles smart locks.
//
//	cloud:   lockState "locked"|"unlocked"|"jammed" (required), doorState "opened"|"closed", battery
//	webhook: lockState "LOCKED"|"UNLOCKED"|"JAMMED" (required)
//	local:   status (required), door_open, battery
func lock(ch channel.Kind, raw Raw, _ Options) (state.Values, error) {
	key := "lockState"
	if ch == channel.Local {
		key = "status"
	}
	v, _ := str(raw, key)

	out := state.Values{}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "locked":
		out[state.LockCurrentState] = state.LockSecured
		out[state.LockTargetState] = state.LockSecured
	case "unlocked", "not_fully_locked":
		out[state.LockCurrentState] = state.LockUnsecured
		out[state.LockTargetState] = state.LockUnsecured
	case "locking":
		out[state.LockCurrentState] = state.LockUnsecured
		out[state.LockTargetState] = state.LockSecured
	case "unlocking":
		out[state.LockCurrentState] = state.LockSecured
		out[state.LockTargetState] = state.LockUnsecured
	case "jammed", "locking_stop", "unlocking_stop":
		out[state.LockCurrentState] = state.LockJammed
	default:
		return nil, malformed(key, raw[key])
	}

	doorKey := "doorState"
	if ch == channel.Local {
		doorKey = "door_open"
	}
	if door, ok := doorOpen(raw, doorKey); ok {
		if door {
			out[state.ContactSensorState] = state.ContactNotDetected
		} else {
			out[state.ContactSensorState] = state.ContactDetected
		}
	}

	battery(raw, out)
	return out, nil
}

// doorOpen reads a door field given as "opened"/"closed" or as a boolean.
func doorOpen(raw Raw, key string) (open bool, ok bool) {
	if s, isStr := str(raw, key); isStr {
		switch strings.ToLower(s) {
		case "opened", "open":
			return true, true
		case "closed", "close":
			return false, true
		}
	}
	return flag(raw, key)
}

// battery copies a "battery" percentage and derives the low battery flag.
func battery(raw Raw, out state.Values) {
	level, ok := integer(raw, "battery")
	if !ok {
		return
	}
	level = max(0, min(level, 100))
	out[state.BatteryLevel] = level
	if level < lowBatteryPercent {
		out[state.StatusLowBattery] = state.BatteryLow
	} else {
		out[state.StatusLowBattery] = state.BatteryNormal
	}
}
