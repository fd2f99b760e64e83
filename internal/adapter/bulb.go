package adapter

import (
	"math"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/codec"
	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/reconcile"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// Colour bulb limits.
const (
	bulbMinKelvin = 2700
	bulbMaxKelvin = 6500
)

// Bulb is a colour bulb, strip light or ceiling light.
//
// Hue and saturation share one colour with the colour temperature: setting
// either hue or saturation moves the colour temperature to its coolest end,
// setting the colour temperature recomputes the matching hue and saturation.
// Brightness and colour are only sent while the bulb is on.
type Bulb struct{}

// NewBulb creates a bulb adapter.
func NewBulb(_ device.Device) *Bulb {
	return &Bulb{}
}

func (*Bulb) Type() device.Type           { return device.TypeBulb }
func (*Bulb) LocalPush() bool             { return true }
func (*Bulb) Refreshable() bool           { return true }
func (*Bulb) ConfirmDelay() time.Duration { return defaultConfirmDelay }
func (*Bulb) Baseline() state.Values      { return state.Values{state.On: false} }

// Writable reports the bulb's settable properties.
func (*Bulb) Writable(name string) bool {
	switch name {
	case state.On, state.Brightness, state.Hue, state.Saturation, state.ColorTemperature:
		return true
	}
	return false
}

// Prepare validates a set and adds the colour properties it moves.
func (*Bulb) Prepare(name string, v any, _ state.Values) (state.Values, error) {
	switch name {
	case state.On:
		on, err := boolValue(name, v)
		if err != nil {
			return nil, err
		}
		return state.Values{state.On: on}, nil
	case state.Brightness:
		b, err := intIn(name, v, 0, codec.PercentMax)
		if err != nil {
			return nil, err
		}
		return state.Values{state.Brightness: b}, nil
	case state.Hue:
		h, err := intIn(name, v, 0, codec.HueMax)
		if err != nil {
			return nil, err
		}
		return state.Values{state.Hue: h, state.ColorTemperature: codec.MiredMin}, nil
	case state.Saturation:
		s, err := intIn(name, v, 0, codec.PercentMax)
		if err != nil {
			return nil, err
		}
		return state.Values{state.Saturation: s, state.ColorTemperature: codec.MiredMin}, nil
	case state.ColorTemperature:
		m, ok := state.AsInt(v)
		if !ok {
			return nil, invalid(name, v)
		}
		m = codec.ClampMired(m)
		hue, sat := codec.MiredToHS(m)
		return state.Values{
			state.ColorTemperature: m,
			state.Hue:              int(math.Round(hue)),
			state.Saturation:       int(math.Round(sat)),
		}, nil
	}
	return nil, invalid(name, v)
}

// Commands emits power first, then brightness, then one colour command.
// Turning the bulb off sends nothing else.
func (*Bulb) Commands(dirty, current state.Values) []reconcile.Command {
	var cmds []reconcile.Command

	if on, ok := dirty.Bool(state.On); ok {
		cmds = append(cmds, power(on, state.On))
		if !on {
			return cmds
		}
	}
	if !current.BoolOr(state.On, false) {
		return cmds
	}

	if b, ok := dirty.Int(state.Brightness); ok {
		p := strconv.Itoa(b)
		cmds = append(cmds, reconcile.Command{
			Properties: []string{state.Brightness},
			Cloud:      cloudCommand("setBrightness", p),
			Local:      localCommand("setBrightness", b),
		})
	}

	colourDirty := dirtyAny(dirty, state.Hue, state.Saturation)
	ctDirty := dirty.Has(state.ColorTemperature)
	mired := current.IntOr(state.ColorTemperature, codec.MiredMin)
	colourProps := []string{state.Hue, state.Saturation, state.ColorTemperature}

	switch {
	case colourDirty && (mired == codec.MiredMin || !ctDirty):
		r, g, b := codec.HSToRGB(float64(current.IntOr(state.Hue, 0)), float64(current.IntOr(state.Saturation, 0)))
		cmds = append(cmds, reconcile.Command{
			Properties: colourProps,
			Cloud:      cloudCommand("setColor", codec.FormatRGB(r, g, b)),
			Local:      localCommand("setRGB", int(r), int(g), int(b)),
		})
	case ctDirty:
		k := codec.DeviceKelvin(mired, bulbMinKelvin, bulbMaxKelvin)
		cmds = append(cmds, reconcile.Command{
			Properties: colourProps,
			Cloud:      cloudCommand("setColorTemperature", strconv.Itoa(k)),
			Local:      localCommand("setColorTemperature", k),
		})
	}
	return cmds
}

// power is the on/off command shared by bulb-like devices.
func power(on bool, prop string) reconcile.Command {
	action := cmdTurnOff
	if on {
		action = cmdTurnOn
	}
	return reconcile.Command{
		Properties: []string{prop},
		Cloud:      cloudCommand(action, defaultParameter),
		Local:      localCommand(action),
	}
}
