package influxdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

func TestNumericFields(t *testing.T) {
	got := numericFields(map[string]any{
		"On":         true,
		"Brightness": 80,
		"Light":      2843.1,
		"Firmware":   "V1.4",
		"Missing":    nil,
	})

	if len(got) != 3 {
		t.Fatalf("numericFields() = %v, want three fields", got)
	}
	if got["On"] != true {
		t.Errorf("On = %v, want true", got["On"])
	}
	if got["Brightness"] != 80.0 {
		t.Errorf("Brightness = %#v, want float64 80", got["Brightness"])
	}
	if got["Light"] != 2843.1 {
		t.Errorf("Light = %v", got["Light"])
	}
}

func TestNewStatePoint(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := newStatePoint("A1", state.Values{state.On: true, state.Brightness: 50}, "refresh", ts)
	if p == nil {
		t.Fatal("newStatePoint() = nil")
	}
	if p.Name() != measurementState {
		t.Errorf("Name() = %q, want %q", p.Name(), measurementState)
	}
	if !p.Time().Equal(ts) {
		t.Errorf("Time() = %v, want %v", p.Time(), ts)
	}

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["device_id"] != "A1" || tags["source"] != "refresh" {
		t.Errorf("tags = %v", tags)
	}
	if len(p.FieldList()) != 2 {
		t.Errorf("fields = %d, want 2", len(p.FieldList()))
	}

	if newStatePoint("A1", state.Values{"Firmware": "V1"}, "refresh", ts) != nil {
		t.Error("newStatePoint() should be nil without numeric fields")
	}
}

func TestRecordStateChange_NotConnected(t *testing.T) {
	c := &Client{}
	err := c.RecordStateChange(context.Background(), "A1", state.Values{state.On: true}, "push")
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("RecordStateChange() error = %v, want ErrNotConnected", err)
	}
	// Must not panic on a client without a write API.
	c.WriteTelemetry("A1", "hub", map[string]any{"humidity": 40})
}
