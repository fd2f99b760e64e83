package state

import (
	"maps"
	"slices"
)

// Property is the per-property reconciliation triple.
type Property struct {
	Committed any
	Pending   any
	Dirty     bool
}

// Tracker tracks committed and pending values for every canonical property.
type Tracker struct {
	props map[string]*Property
}

// NewTracker seeds a tracker with committed values (typically the persisted
// context). Nothing is dirty after construction.
func NewTracker(committed Values) *Tracker {
	t := &Tracker{props: make(map[string]*Property, len(committed))}
	for k, v := range committed {
		t.props[k] = &Property{Committed: v, Pending: v}
	}
	return t
}

// Observe merges values reported by a device.
//
// Clean properties take the reported value as both committed and pending.
// Dirty properties keep the hub's pending intent and only move committed;
// they become clean if the device already reports the pending value.
//
// Returns the names whose visible (pending) value changed, sorted.
func (t *Tracker) Observe(values Values) []string {
	var changed []string
	for name, v := range values {
		p, ok := t.props[name]
		if !ok {
			t.props[name] = &Property{Committed: v, Pending: v}
			changed = append(changed, name)
			continue
		}
		if p.Dirty {
			p.Committed = v
			p.Dirty = !Equal(p.Committed, p.Pending)
			continue
		}
		if !Equal(p.Pending, v) {
			changed = append(changed, name)
		}
		p.Committed = v
		p.Pending = v
	}
	slices.Sort(changed)
	return changed
}

// Force overwrites committed and pending for the given values and clears
// their dirty flags. Used for the offline baseline.
func (t *Tracker) Force(values Values) {
	for name, v := range values {
		t.props[name] = &Property{Committed: v, Pending: v}
	}
}

// Set records a hub-initiated change. The property becomes dirty unless the
// new value equals the committed one.
//
// Returns true if the visible value changed.
func (t *Tracker) Set(name string, v any) bool {
	p, ok := t.props[name]
	if !ok {
		t.props[name] = &Property{Pending: v, Dirty: true}
		return true
	}
	changed := !Equal(p.Pending, v)
	p.Pending = v
	p.Dirty = !Equal(p.Committed, v)
	return changed
}

// Get returns the visible value of a property.
func (t *Tracker) Get(name string) (any, bool) {
	p, ok := t.props[name]
	if !ok {
		return nil, false
	}
	return p.Pending, true
}

// Property returns a copy of the triple for a property.
func (t *Tracker) Property(name string) (Property, bool) {
	p, ok := t.props[name]
	if !ok {
		return Property{}, false
	}
	return *p, true
}

// Current returns the visible value of every property.
func (t *Tracker) Current() Values {
	out := make(Values, len(t.props))
	for k, p := range t.props {
		out[k] = p.Pending
	}
	return out
}

// Committed returns the committed value of every property that has one.
func (t *Tracker) Committed() Values {
	out := make(Values, len(t.props))
	for k, p := range t.props {
		if p.Committed != nil {
			out[k] = p.Committed
		}
	}
	return out
}

// Dirty returns the pending values of all dirty properties.
func (t *Tracker) Dirty() Values {
	out := make(Values)
	for k, p := range t.props {
		if p.Dirty {
			out[k] = p.Pending
		}
	}
	return out
}

// IsDirty reports whether any property is dirty.
func (t *Tracker) IsDirty() bool {
	for _, p := range t.props {
		if p.Dirty {
			return true
		}
	}
	return false
}

// Commit marks the named properties as acknowledged by the device. With no
// names, every dirty property is committed.
func (t *Tracker) Commit(names ...string) {
	if len(names) == 0 {
		names = slices.Collect(maps.Keys(t.props))
	}
	for _, n := range names {
		if p, ok := t.props[n]; ok {
			p.Committed = p.Pending
			p.Dirty = false
		}
	}
}

// Discard reverts every dirty property to its committed value.
//
// Returns the names that were reverted, sorted.
func (t *Tracker) Discard() []string {
	var reverted []string
	for k, p := range t.props {
		if p.Dirty {
			p.Pending = p.Committed
			p.Dirty = false
			reverted = append(reverted, k)
		}
	}
	slices.Sort(reverted)
	return reverted
}

// Acknowledge records that the device accepted the given values. Committed
// takes the acknowledged value; a property stays dirty if the hub changed it
// again while the push was in flight.
func (t *Tracker) Acknowledge(values Values) {
	for name, v := range values {
		p, ok := t.props[name]
		if !ok {
			t.props[name] = &Property{Committed: v, Pending: v}
			continue
		}
		p.Committed = v
		p.Dirty = !Equal(p.Committed, p.Pending)
	}
}

// Revert undoes attempted values that the device did not accept. A property
// whose pending value has moved on since the attempt is left alone.
//
// Returns the names that were reverted, sorted.
func (t *Tracker) Revert(values Values) []string {
	var reverted []string
	for name, v := range values {
		p, ok := t.props[name]
		if !ok || !p.Dirty || !Equal(p.Pending, v) {
			continue
		}
		p.Pending = p.Committed
		p.Dirty = false
		reverted = append(reverted, name)
	}
	slices.Sort(reverted)
	return reverted
}
