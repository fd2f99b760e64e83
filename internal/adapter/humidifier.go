package adapter

import (
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/codec"
	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/reconcile"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

const humidifierAutoMode = "auto"

// Humidifier is an evaporative humidifier. Setting the threshold also
// switches it on; auto mode ignores the threshold.
type Humidifier struct{}

// NewHumidifier creates a humidifier adapter.
func NewHumidifier(_ device.Device) *Humidifier {
	return &Humidifier{}
}

func (*Humidifier) Type() device.Type           { return device.TypeHumidifier }
func (*Humidifier) LocalPush() bool             { return true }
func (*Humidifier) Refreshable() bool           { return true }
func (*Humidifier) ConfirmDelay() time.Duration { return humidifierConfirmDelay }

// Baseline is a switched-off humidifier.
func (*Humidifier) Baseline() state.Values {
	return state.Values{
		state.Active:                             state.Inactive,
		state.CurrentHumidifierDehumidifierState: state.HumidifierInactive,
	}
}

// Writable reports the humidifier's settable properties.
func (*Humidifier) Writable(name string) bool {
	switch name {
	case state.Active, state.TargetHumidifierDehumidifierState, state.RelativeHumidityHumidifierThreshold:
		return true
	}
	return false
}

// Prepare validates a set. A threshold change forces the humidifier on.
func (*Humidifier) Prepare(name string, v any, _ state.Values) (state.Values, error) {
	switch name {
	case state.Active:
		a, err := intIn(name, v, state.Inactive, state.IsActive)
		if err != nil {
			return nil, err
		}
		return state.Values{state.Active: a}, nil
	case state.TargetHumidifierDehumidifierState:
		t, err := intIn(name, v, state.HumidifierAuto, state.HumidifierOnly)
		if err != nil {
			return nil, err
		}
		return state.Values{state.TargetHumidifierDehumidifierState: t}, nil
	case state.RelativeHumidityHumidifierThreshold:
		th, err := intIn(name, v, 0, codec.PercentMax)
		if err != nil {
			return nil, err
		}
		return state.Values{state.RelativeHumidityHumidifierThreshold: th, state.Active: state.IsActive}, nil
	}
	return nil, invalid(name, v)
}

// Commands maps the humidifier state onto one command: turnOff when
// inactive, setMode auto in auto mode, otherwise setMode with the threshold
// (or a bare turnOn when only the power changed).
func (*Humidifier) Commands(dirty, current state.Values) []reconcile.Command {
	if !dirtyAny(dirty, state.Active, state.TargetHumidifierDehumidifierState, state.RelativeHumidityHumidifierThreshold) {
		return nil
	}

	if current.IntOr(state.Active, state.Inactive) == state.Inactive {
		if !dirty.Has(state.Active) {
			return nil
		}
		return []reconcile.Command{power(false, state.Active)}
	}

	if current.IntOr(state.TargetHumidifierDehumidifierState, state.HumidifierOnly) == state.HumidifierAuto {
		return []reconcile.Command{{
			Properties: []string{state.Active, state.TargetHumidifierDehumidifierState},
			Cloud:      cloudCommand("setMode", humidifierAutoMode),
		}}
	}

	if !dirtyAny(dirty, state.TargetHumidifierDehumidifierState, state.RelativeHumidityHumidifierThreshold) {
		return []reconcile.Command{power(true, state.Active)}
	}

	th := current.IntOr(state.RelativeHumidityHumidifierThreshold, 0)
	return []reconcile.Command{{
		Properties: []string{
			state.Active,
			state.TargetHumidifierDehumidifierState,
			state.RelativeHumidityHumidifierThreshold,
		},
		Cloud: cloudCommand("setMode", strconv.Itoa(th)),
		Local: localCommand("percentage", th),
	}}
}
