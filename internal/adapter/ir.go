package adapter

import (
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/reconcile"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// Air conditioner setAll limits and codes.
const (
	acMinTemperature  = 16
	acMaxTemperature  = 30
	acAutoTemperature = 25

	acModeAuto = 1
	acModeCool = 2
	acModeHeat = 5

	acFanAuto   = 1
	acFanLow    = 2
	acFanMedium = 3
	acFanHigh   = 4
)

// IR is an infrared remote learned by a hub. It has no status channel, so
// the committed state is whatever was last pushed.
//
// Air conditioners batch power, mode, temperature and fan speed into one
// setAll command. Every other remote type is a plain on/off appliance,
// optionally with custom command names.
type IR struct {
	ac         bool
	customize  bool
	customOn   string
	customOff  string
	disableOn  bool
	disableOff bool
}

// NewIR creates an IR adapter from the remote's type and push settings.
func NewIR(dev device.Device) *IR {
	s := dev.Settings
	return &IR{
		ac:         isAirConditioner(dev.RemoteType),
		customize:  s.Customize,
		customOn:   s.CustomOn,
		customOff:  s.CustomOff,
		disableOn:  s.DisablePushOn,
		disableOff: s.DisablePushOff,
	}
}

func isAirConditioner(remoteType string) bool {
	return strings.Contains(strings.ToLower(remoteType), "air conditioner")
}

func (*IR) Type() device.Type           { return device.TypeIR }
func (*IR) LocalPush() bool             { return false }
func (*IR) Refreshable() bool           { return false }
func (*IR) ConfirmDelay() time.Duration { return 0 }

// Baseline is an appliance switched off.
func (r *IR) Baseline() state.Values {
	if r.ac {
		return state.Values{
			state.Active:                   state.Inactive,
			state.CurrentHeaterCoolerState: state.HeaterCoolerInactive,
			state.TargetHeaterCoolerState:  state.TargetAuto,
			state.ThresholdTemperature:     acAutoTemperature,
		}
	}
	return state.Values{state.On: false}
}

// Writable reports the settable properties for the remote type.
func (r *IR) Writable(name string) bool {
	if !r.ac {
		return name == state.On
	}
	switch name {
	case state.Active, state.TargetHeaterCoolerState, state.ThresholdTemperature, state.RotationSpeed:
		return true
	}
	return false
}

// Prepare validates a set. For air conditioners it also derives the
// displayed heater/cooler state.
func (r *IR) Prepare(name string, v any, current state.Values) (state.Values, error) {
	if !r.ac {
		if name != state.On {
			return nil, invalid(name, v)
		}
		on, err := boolValue(name, v)
		if err != nil {
			return nil, err
		}
		return state.Values{state.On: on}, nil
	}

	out := state.Values{}
	switch name {
	case state.Active:
		a, err := intIn(name, v, state.Inactive, state.IsActive)
		if err != nil {
			return nil, err
		}
		out[name] = a
	case state.TargetHeaterCoolerState:
		t, err := intIn(name, v, state.TargetAuto, state.TargetCool)
		if err != nil {
			return nil, err
		}
		out[name] = t
	case state.ThresholdTemperature:
		f, ok := state.Values{name: v}.Float(name)
		if !ok || f < acMinTemperature || f > acMaxTemperature {
			return nil, invalid(name, v)
		}
		out[name] = f
	case state.RotationSpeed:
		s, err := intIn(name, v, 0, 100) //nolint:mnd // percent
		if err != nil {
			return nil, err
		}
		out[name] = s
	default:
		return nil, invalid(name, v)
	}

	next := current.Clone().Merge(out)
	out[state.CurrentHeaterCoolerState] = heaterCoolerState(next)
	return out, nil
}

// heaterCoolerState derives what the unit is doing from its target and the
// room temperature, when known.
func heaterCoolerState(v state.Values) int {
	if v.IntOr(state.Active, state.Inactive) == state.Inactive {
		return state.HeaterCoolerInactive
	}
	threshold, tok := v.Float(state.ThresholdTemperature)
	room, rok := v.Float(state.CurrentTemperature)
	if !tok || !rok {
		return state.HeaterCoolerIdle
	}
	target := v.IntOr(state.TargetHeaterCoolerState, state.TargetAuto)
	switch {
	case threshold < room && target != state.TargetHeat:
		return state.HeaterCoolerCooling
	case threshold > room && target != state.TargetCool:
		return state.HeaterCoolerHeating
	default:
		return state.HeaterCoolerIdle
	}
}

// Commands emits one command per push.
func (r *IR) Commands(dirty, current state.Values) []reconcile.Command {
	if r.ac {
		return r.acCommands(dirty, current)
	}
	on, ok := dirty.Bool(state.On)
	if !ok {
		return nil
	}
	return []reconcile.Command{r.powerCommand(on, state.On)}
}

// powerCommand honours custom command names and the disable_push flags. A
// disabled direction commits the property without sending anything.
func (r *IR) powerCommand(on bool, prop string) reconcile.Command {
	c := reconcile.Command{Properties: []string{prop}}
	if (on && r.disableOn) || (!on && r.disableOff) {
		return c
	}
	name := cmdTurnOff
	if on {
		name = cmdTurnOn
	}
	commandType := commandTypeCommand
	if r.customize {
		commandType = commandTypeCustomize
		switch {
		case on && r.customOn != "":
			name = r.customOn
		case !on && r.customOff != "":
			name = r.customOff
		}
	}
	c.Cloud.Command = name
	c.Cloud.Parameter = defaultParameter
	c.Cloud.CommandType = commandType
	return c
}

func (r *IR) acCommands(dirty, current state.Values) []reconcile.Command {
	props := []string{
		state.Active,
		state.TargetHeaterCoolerState,
		state.ThresholdTemperature,
		state.RotationSpeed,
		state.CurrentHeaterCoolerState,
	}
	if !dirtyAny(dirty, props...) {
		return nil
	}

	active := current.IntOr(state.Active, state.Inactive) == state.IsActive
	if dirty.Has(state.Active) && !dirtyAny(dirty, state.TargetHeaterCoolerState, state.ThresholdTemperature, state.RotationSpeed) {
		if (active && r.disableOn) || (!active && r.disableOff) {
			return []reconcile.Command{{Properties: props}}
		}
	}

	mode := acMode(current.IntOr(state.TargetHeaterCoolerState, state.TargetAuto))
	temp, ok := current.Float(state.ThresholdTemperature)
	if !ok || mode == acModeAuto {
		temp = acAutoTemperature
	}
	onOff := "off"
	if active {
		onOff = "on"
	}
	parameter := fmt.Sprintf("%g,%d,%d,%s", temp, mode, acFan(current.IntOr(state.RotationSpeed, 0)), onOff)

	return []reconcile.Command{{
		Properties: props,
		Cloud:      cloudCommand("setAll", parameter),
	}}
}

func acMode(target int) int {
	switch target {
	case state.TargetHeat:
		return acModeHeat
	case state.TargetCool:
		return acModeCool
	default:
		return acModeAuto
	}
}

// acFan maps a rotation speed percentage onto the remote's fan levels.
func acFan(speed int) int {
	switch {
	case speed <= 0:
		return acFanAuto
	case speed <= 33: //nolint:mnd // thirds
		return acFanLow
	case speed <= 66: //nolint:mnd // thirds
		return acFanMedium
	default:
		return acFanHigh
	}
}
