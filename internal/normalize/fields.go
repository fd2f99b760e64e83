package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// str returns a string field.
func str(raw Raw, key string) (string, bool) {
	s, ok := raw[key].(string)
	return s, ok
}

// number returns a numeric field. JSON numbers, Go integers and numeric
// strings are accepted.
func number(raw Raw, key string) (float64, bool) {
	switch v := raw[key].(type) {
	case float64:
		return v, !math.IsNaN(v)
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint8:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// integer returns a numeric field rounded to the nearest integer.
func integer(raw Raw, key string) (int, bool) {
	f, ok := number(raw, key)
	if !ok {
		return 0, false
	}
	return int(math.Round(f)), true
}

// flag returns a boolean field. Strings "true"/"false" and numbers are
// accepted alongside JSON booleans.
func flag(raw Raw, key string) (bool, bool) {
	switch v := raw[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	default:
		f, ok := number(raw, key)
		return f != 0, ok
	}
}

// onOff parses a power field. Returns ok=false for an unrecognised value.
func onOff(v string) (on bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on":
		return true, true
	case "off":
		return false, true
	default:
		return false, false
	}
}
