package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Colour space constants.
const (
	// HueMax is the upper bound of the hue circle in degrees.
	HueMax = 360

	// PercentMax is the upper bound of saturation, value and brightness.
	PercentMax = 100

	// channelMax is the maximum 8-bit colour channel value.
	channelMax = 255

	// hueSector is the width of one RGB hue sector in degrees.
	hueSector = 60
)

// HSToRGB converts a hue/saturation pair at full value to an RGB triplet.
//
// Parameters:
//   - hue: Hue in degrees (0-360)
//   - saturation: Saturation in percent (0-100)
//
// Returns:
//   - r, g, b: Channel values (0-255), rounded to the nearest integer
func HSToRGB(hue, saturation float64) (r, g, b uint8) {
	return HSVToRGB(hue, saturation, PercentMax)
}

// RGBToHS converts an RGB triplet to hue/saturation, dropping the value
// component.
//
// Returns:
//   - hue: 0-360 degrees (0 for greys)
//   - saturation: 0-100 percent
func RGBToHS(r, g, b uint8) (hue, saturation float64) {
	h, s, _ := RGBToHSV(r, g, b)
	return h, s
}

// HSVToRGB converts a full HSV triple to RGB.
//
// Parameters:
//   - hue: Hue in degrees; values outside 0-360 wrap around
//   - saturation: Saturation in percent (clamped to 0-100)
//   - value: Value in percent (clamped to 0-100)
//
// Returns:
//   - r, g, b: Channel values (0-255), rounded to the nearest integer
func HSVToRGB(hue, saturation, value float64) (r, g, b uint8) {
	h := math.Mod(hue, HueMax)
	if h < 0 {
		h += HueMax
	}
	s := clampFloat(saturation, 0, PercentMax) / PercentMax
	v := clampFloat(value, 0, PercentMax) / PercentMax

	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/hueSector, 2)-1))
	m := v - c

	var rf, gf, bf float64
	switch {
	case h < 60:
		rf, gf, bf = c, x, 0
	case h < 120:
		rf, gf, bf = x, c, 0
	case h < 180:
		rf, gf, bf = 0, c, x
	case h < 240:
		rf, gf, bf = 0, x, c
	case h < 300:
		rf, gf, bf = x, 0, c
	default:
		rf, gf, bf = c, 0, x
	}

	return toChannel(rf + m), toChannel(gf + m), toChannel(bf + m)
}

// RGBToHSV converts an RGB triplet to a full HSV triple without rounding.
//
// Returns:
//   - hue: 0-360 degrees (0 for greys)
//   - saturation: 0-100 percent
//   - value: 0-100 percent
func RGBToHSV(r, g, b uint8) (hue, saturation, value float64) {
	rf := float64(r) / channelMax
	gf := float64(g) / channelMax
	bf := float64(b) / channelMax

	maxC := math.Max(rf, math.Max(gf, bf))
	minC := math.Min(rf, math.Min(gf, bf))
	delta := maxC - minC

	switch {
	case delta == 0:
		hue = 0
	case maxC == rf:
		hue = hueSector * math.Mod((gf-bf)/delta, 6)
	case maxC == gf:
		hue = hueSector * ((bf-rf)/delta + 2)
	default:
		hue = hueSector * ((rf-gf)/delta + 4)
	}
	if hue < 0 {
		hue += HueMax
	}

	if maxC > 0 {
		saturation = delta / maxC * PercentMax
	}
	value = maxC * PercentMax
	return hue, saturation, value
}

// ParseRGB parses the "r:g:b" colour format used by the cloud API.
//
// Returns:
//   - r, g, b: Channel values
//   - error: ErrInvalidColour if the string is not three 0-255 integers
func ParseRGB(s string) (r, g, b uint8, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 { //nolint:mnd // three colour channels
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidColour, s)
	}
	var out [3]uint8
	for i, p := range parts {
		n, convErr := strconv.Atoi(strings.TrimSpace(p))
		if convErr != nil || n < 0 || n > channelMax {
			return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidColour, s)
		}
		out[i] = uint8(n) //nolint:gosec // G115: bounds checked above
	}
	return out[0], out[1], out[2], nil
}

// FormatRGB renders an RGB triplet as "r:g:b".
func FormatRGB(r, g, b uint8) string {
	return fmt.Sprintf("%d:%d:%d", r, g, b)
}

func toChannel(f float64) uint8 {
	return uint8(math.Round(clampFloat(f, 0, 1) * channelMax))
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
