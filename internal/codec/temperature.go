package codec

import "math"

// Colour temperature limits.
const (
	// MiredMin is the coolest colour temperature exposed to the hub.
	MiredMin = 140

	// MiredMax is the warmest colour temperature exposed to the hub.
	MiredMax = 500

	// kelvinStep is the granularity devices accept.
	kelvinStep = 100

	// miredScale converts between mired and Kelvin (mired = 1e6 / K).
	miredScale = 1_000_000
)

// MiredToKelvin converts mired to Kelvin, rounded to the nearest integer.
// Non-positive input returns 0.
func MiredToKelvin(mired int) int {
	if mired <= 0 {
		return 0
	}
	return int(math.Round(miredScale / float64(mired)))
}

// KelvinToMired converts Kelvin to mired, rounded to the nearest integer.
// Non-positive input returns 0.
func KelvinToMired(kelvin int) int {
	if kelvin <= 0 {
		return 0
	}
	return int(math.Round(miredScale / float64(kelvin)))
}

// SnapKelvin rounds a Kelvin value to the nearest 100 K.
func SnapKelvin(kelvin int) int {
	return int(math.Round(float64(kelvin)/kelvinStep)) * kelvinStep
}

// ClampMired limits a mired value to the hub range 140-500.
func ClampMired(mired int) int {
	return ClampInt(mired, MiredMin, MiredMax)
}

// DeviceKelvin converts a hub mired value into the Kelvin a device accepts:
// snapped to 100 K and clamped to the device's supported range.
//
// Parameters:
//   - mired: Hub colour temperature
//   - minKelvin, maxKelvin: Device limits (e.g. 2700 and 6500 for the colour bulb)
func DeviceKelvin(mired, minKelvin, maxKelvin int) int {
	return ClampInt(SnapKelvin(MiredToKelvin(ClampMired(mired))), minKelvin, maxKelvin)
}

// HubMired converts a device Kelvin reading into a clamped hub mired value.
func HubMired(kelvin int) int {
	return ClampMired(KelvinToMired(kelvin))
}

// MiredToHS approximates the hue and saturation of a black-body colour
// temperature so a colour bulb can show the same tint on its hue controls.
func MiredToHS(mired int) (hue, saturation float64) {
	r, g, b := kelvinToRGB(float64(MiredToKelvin(ClampMired(mired))))
	return RGBToHS(r, g, b)
}

// kelvinToRGB uses Tanner Helland's fit of the Planckian locus.
func kelvinToRGB(kelvin float64) (r, g, b uint8) {
	t := kelvin / 100 //nolint:mnd // the fit works in hundreds of Kelvin

	var rf, gf, bf float64
	if t <= 66 {
		rf = channelMax
		gf = 99.4708025861*math.Log(t) - 161.1195681661
	} else {
		rf = 329.698727446 * math.Pow(t-60, -0.1332047592)
		gf = 288.1221695283 * math.Pow(t-60, -0.0755148492)
	}

	switch {
	case t >= 66:
		bf = channelMax
	case t <= 19:
		bf = 0
	default:
		bf = 138.5177312231*math.Log(t-10) - 305.0447927307
	}

	return uint8(math.Round(clampFloat(rf, 0, channelMax))),
		uint8(math.Round(clampFloat(gf, 0, channelMax))),
		uint8(math.Round(clampFloat(bf, 0, channelMax)))
}
