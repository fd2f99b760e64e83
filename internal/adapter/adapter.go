package adapter

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/cloud"
	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/radio"
	"github.com/nerrad567/gray-logic-switchbot/internal/reconcile"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// Command vocabulary shared by several categories.
const (
	cmdTurnOn  = "turnOn"
	cmdTurnOff = "turnOff"

	commandTypeCommand   = "command"
	commandTypeCustomize = "customize"

	defaultParameter = "default"
)

// Confirm delays after a successful push.
const (
	defaultConfirmDelay    = 15 * time.Second
	humidifierConfirmDelay = 5 * time.Second
)

// New returns the adapter for a device's category.
func New(dev device.Device) (reconcile.Adapter, error) {
	switch dev.Type {
	case device.TypeBulb:
		return NewBulb(dev), nil
	case device.TypeLock:
		return NewLock(dev), nil
	case device.TypeCurtain:
		return NewCurtain(dev), nil
	case device.TypeHumidifier:
		return NewHumidifier(dev), nil
	case device.TypeHub:
		return NewHub(dev), nil
	case device.TypeMotion:
		return NewMotion(dev), nil
	case device.TypeContact:
		return NewContact(dev), nil
	case device.TypeIR:
		return NewIR(dev), nil
	default:
		return nil, fmt.Errorf("%w: %q", device.ErrInvalidDeviceType, dev.Type)
	}
}

func cloudCommand(name, parameter string) cloud.Command {
	return cloud.Command{Command: name, Parameter: parameter, CommandType: commandTypeCommand}
}

func localCommand(action string, args ...any) *radio.Command {
	return &radio.Command{Action: action, Args: args}
}

func invalid(name string, v any) error {
	return fmt.Errorf("%w: %s=%v", reconcile.ErrInvalidValue, name, v)
}

// intIn converts v to an int within [lo, hi].
func intIn(name string, v any, lo, hi int) (int, error) {
	i, ok := state.AsInt(v)
	if !ok || i < lo || i > hi {
		return 0, invalid(name, v)
	}
	return i, nil
}

func boolValue(name string, v any) (bool, error) {
	b, ok := state.AsBool(v)
	if !ok {
		return false, invalid(name, v)
	}
	return b, nil
}

// dirtyAny reports whether any of the names is dirty.
func dirtyAny(dirty state.Values, names ...string) bool {
	for _, n := range names {
		if dirty.Has(n) {
			return true
		}
	}
	return false
}

// readOnly is embedded by adapters whose devices accept no commands.
type readOnly struct{}

func (readOnly) Writable(string) bool { return false }

func (readOnly) Prepare(name string, v any, _ state.Values) (state.Values, error) {
	return nil, fmt.Errorf("%w: %s", reconcile.ErrReadOnly, name)
}

func (readOnly) Commands(_, _ state.Values) []reconcile.Command { return nil }
