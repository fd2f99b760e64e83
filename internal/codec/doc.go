// Package codec converts between the hub-facing canonical units and the raw
// units the SwitchBot channels speak.
//
// Every function is pure and total over its documented input domain. Callers
// clamp out-of-domain input first; the functions never return an error except
// for string parsing.
//
// # Units
//
//   - Colour: hue 0-360 degrees, saturation 0-100 %, value 0-100 % <-> 8-bit RGB
//   - Colour temperature: mired 140-500 <-> Kelvin, device Kelvin snapped to 100 K
//   - Light level: SwitchBot index 1-20 <-> lux between a configured min and max
//   - Percentages: clamped to 0-100
//
// Example:
//
//	r, g, b := codec.HSToRGB(120, 100) // 0, 255, 0
//	k := codec.SnapKelvin(codec.MiredToKelvin(153)) // 6500
//	lux := codec.LightLevelToLux(10, 1, 6001) // ~2843.7
package codec
