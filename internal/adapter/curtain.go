package adapter

import (
	"fmt"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/codec"
	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/reconcile"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// Curtain run modes for the setPosition parameter.
const (
	curtainModeDefault     = "ff"
	curtainModePerformance = "0"
	curtainModeSilent      = "1"
)

// Curtain is a curtain or roller motor. Hub positions run from 0 (closed)
// to 100 (open); the device counts the other way.
type Curtain struct {
	minStep   int
	openMode  string
	closeMode string
}

// NewCurtain creates a curtain adapter from the device's step and run mode
// settings.
func NewCurtain(dev device.Device) *Curtain {
	return &Curtain{
		minStep:   dev.Settings.MinStep,
		openMode:  curtainMode(dev.Settings.OpenMode),
		closeMode: curtainMode(dev.Settings.CloseMode),
	}
}

func curtainMode(m string) string {
	switch m {
	case curtainModePerformance, curtainModeSilent:
		return m
	default:
		return curtainModeDefault
	}
}

func (*Curtain) Type() device.Type           { return device.TypeCurtain }
func (*Curtain) LocalPush() bool             { return true }
func (*Curtain) Refreshable() bool           { return true }
func (*Curtain) ConfirmDelay() time.Duration { return defaultConfirmDelay }
func (*Curtain) Writable(name string) bool   { return name == state.TargetPosition }

// Baseline is a stopped curtain.
func (*Curtain) Baseline() state.Values {
	return state.Values{state.PositionState: state.PositionStopped}
}

// Prepare rounds the target to the configured step and sets the direction
// of travel.
func (c *Curtain) Prepare(name string, v any, current state.Values) (state.Values, error) {
	if name != state.TargetPosition {
		return nil, invalid(name, v)
	}
	t, err := intIn(name, v, 0, codec.PercentMax)
	if err != nil {
		return nil, err
	}
	t = codec.ClampPercent(codec.RoundToStep(t, c.minStep))

	ps := state.PositionStopped
	if cur, ok := current.Int(state.CurrentPosition); ok {
		switch {
		case t > cur:
			ps = state.PositionIncreasing
		case t < cur:
			ps = state.PositionDecreasing
		}
	}
	return state.Values{state.TargetPosition: t, state.PositionState: ps}, nil
}

// Commands sends setPosition "0,<mode>,<device position>".
func (c *Curtain) Commands(dirty, current state.Values) []reconcile.Command {
	t, ok := dirty.Int(state.TargetPosition)
	if !ok {
		return nil
	}
	mode := c.closeMode
	if t > current.IntOr(state.CurrentPosition, 0) {
		mode = c.openMode
	}
	pos := codec.PercentMax - t
	return []reconcile.Command{{
		Properties: []string{state.TargetPosition, state.PositionState},
		Cloud:      cloudCommand("setPosition", fmt.Sprintf("0,%s,%d", mode, pos)),
		Local:      localCommand("runToPos", pos, modeArg(mode)),
	}}
}

// modeArg converts a run mode to the radio's numeric form.
func modeArg(mode string) int {
	if n, err := strconv.ParseInt(mode, 16, 0); err == nil {
		return int(n)
	}
	return 0xff //nolint:mnd // default run mode
}
