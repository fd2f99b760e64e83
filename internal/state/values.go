package state

import (
	"maps"
	"math"
	"slices"
)

// Values is a set of canonical property values keyed by property name.
//
// Values are primitives: bool, int, float64 or string. Numbers read back from
// JSON arrive as float64 and compare equal to the matching int.
type Values map[string]any

// Clone returns a copy of v. A nil map clones to an empty one.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	maps.Copy(out, v)
	return out
}

// Merge copies every entry of other into v and returns v.
func (v Values) Merge(other Values) Values {
	maps.Copy(v, other)
	return v
}

// Without returns a copy of v with the named properties removed.
func (v Values) Without(names ...string) Values {
	out := v.Clone()
	for _, n := range names {
		delete(out, n)
	}
	return out
}

// Keys returns the property names in sorted order.
func (v Values) Keys() []string {
	return slices.Sorted(maps.Keys(v))
}

// Has reports whether the property is present.
func (v Values) Has(name string) bool {
	_, ok := v[name]
	return ok
}

// Int returns the property as an int, rounding floats.
func (v Values) Int(name string) (int, bool) {
	return AsInt(v[name])
}

// Float returns the property as a float64.
func (v Values) Float(name string) (float64, bool) {
	return toFloat(v[name])
}

// Bool returns the property as a bool. Numbers are true when non-zero.
func (v Values) Bool(name string) (bool, bool) {
	return AsBool(v[name])
}

// AsInt converts a single value to an int, rounding floats. Non-numeric
// values report false.
func AsInt(x any) (int, bool) {
	f, ok := toFloat(x)
	if !ok {
		return 0, false
	}
	return int(math.Round(f)), true
}

// AsBool converts a single value to a bool. Numbers are true when non-zero.
func AsBool(x any) (bool, bool) {
	if b, ok := x.(bool); ok {
		return b, true
	}
	f, ok := toFloat(x)
	if !ok {
		return false, false
	}
	return f != 0, true
}

// IntOr returns the property as an int or def when absent.
func (v Values) IntOr(name string, def int) int {
	if i, ok := v.Int(name); ok {
		return i
	}
	return def
}

// BoolOr returns the property as a bool or def when absent.
func (v Values) BoolOr(name string, def bool) bool {
	if b, ok := v.Bool(name); ok {
		return b
	}
	return def
}

// Equal compares two property values. Numeric values compare by magnitude
// regardless of their Go type.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return af == bf
	}
	if aNum != bNum {
		return false
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
