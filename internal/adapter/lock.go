package adapter

import (
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/reconcile"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// Lock is a smart lock. Only the target state can be set; the current
// state, door contact and battery are reported by the device.
type Lock struct{}

// NewLock creates a lock adapter.
func NewLock(_ device.Device) *Lock {
	return &Lock{}
}

func (*Lock) Type() device.Type           { return device.TypeLock }
func (*Lock) LocalPush() bool             { return false }
func (*Lock) Refreshable() bool           { return true }
func (*Lock) ConfirmDelay() time.Duration { return defaultConfirmDelay }
func (*Lock) Writable(name string) bool   { return name == state.LockTargetState }

// Baseline reports an unknown lock whose target stays secured.
func (*Lock) Baseline() state.Values {
	return state.Values{
		state.LockCurrentState: state.LockUnknown,
		state.LockTargetState:  state.LockSecured,
	}
}

// Prepare accepts SECURED or UNSECURED.
func (*Lock) Prepare(name string, v any, _ state.Values) (state.Values, error) {
	if name != state.LockTargetState {
		return nil, invalid(name, v)
	}
	t, err := intIn(name, v, state.LockUnsecured, state.LockSecured)
	if err != nil {
		return nil, err
	}
	return state.Values{state.LockTargetState: t}, nil
}

// Commands sends lock or unlock when the target changed.
func (*Lock) Commands(dirty, _ state.Values) []reconcile.Command {
	t, ok := dirty.Int(state.LockTargetState)
	if !ok {
		return nil
	}
	action := "unlock"
	if t == state.LockSecured {
		action = "lock"
	}
	return []reconcile.Command{{
		Properties: []string{state.LockTargetState},
		Cloud:      cloudCommand(action, defaultParameter),
	}}
}
