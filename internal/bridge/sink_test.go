package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/reconcile"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

func newTestFanOut() (*fanOut, *mockMQTT, *mockHub) {
	pub := newMockMQTT()
	hub := &mockHub{}
	f := newFanOut(pub, hub, noopLogger{})
	f.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return f, pub, hub
}

func TestFanOut_UpdateMergesFullState(t *testing.T) {
	f, pub, hub := newTestFanOut()
	f.prime("B1", state.Values{state.On: false, state.Brightness: 100})

	f.Update("B1", state.Values{state.On: true})

	msg, ok := pub.last("switchbot/state/B1")
	if !ok || !msg.retained {
		t.Fatalf("state message = %+v, %v", msg, ok)
	}
	var sm StateMessage
	if err := json.Unmarshal(msg.payload, &sm); err != nil {
		t.Fatal(err)
	}
	if sm.State[state.On] != true || sm.State[state.Brightness] != 100.0 {
		t.Errorf("State = %v, want merged full state", sm.State)
	}
	if len(sm.Changed) != 1 || sm.Changed[0] != state.On {
		t.Errorf("Changed = %v", sm.Changed)
	}
	if hub.count(EventStateChanged) != 1 {
		t.Error("state change not broadcast")
	}
	if got := f.cached("B1"); got[state.On] != true {
		t.Errorf("cached = %v", got)
	}
}

func TestFanOut_UpdateUnprimedDevice(t *testing.T) {
	f, pub, _ := newTestFanOut()
	f.Update("X1", state.Values{state.On: true})
	if _, ok := pub.last("switchbot/state/X1"); !ok {
		t.Error("no state published for unprimed device")
	}
}

func TestFanOut_Fault(t *testing.T) {
	f, pub, hub := newTestFanOut()
	f.Fault("B1", reconcile.ErrNoChannel)

	msg, ok := pub.last("switchbot/fault/B1")
	if !ok || msg.retained {
		t.Fatalf("fault message = %+v, %v", msg, ok)
	}
	var fm FaultMessage
	if err := json.Unmarshal(msg.payload, &fm); err != nil {
		t.Fatal(err)
	}
	if fm.Error != reconcile.ErrNoChannel.Error() {
		t.Errorf("Error = %q", fm.Error)
	}
	if hub.count(EventFault) != 1 {
		t.Error("fault not broadcast")
	}
}

func TestFanOut_PublishTelemetry(t *testing.T) {
	f, pub, _ := newTestFanOut()
	w := &mockTelemetryWriter{}
	f.telemetry = []TelemetryWriter{w}

	dev := device.Device{ID: "M1", Type: device.TypeHub, MAC: "c0:ff:ee:00:00:01"}
	payload := map[string]any{"humidity": 48.0, "temperature": 21.5, "light": 2843.1}
	if err := f.PublishTelemetry(dev, payload); err != nil {
		t.Fatalf("PublishTelemetry() error = %v", err)
	}

	msg, ok := pub.last("switchbot/telemetry/hub/c0:ff:ee:00:00:01")
	if !ok {
		t.Fatal("telemetry not published")
	}
	var got map[string]any
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatal(err)
	}
	if got["light"] != 2843.1 {
		t.Errorf("payload = %v", got)
	}
	if len(w.payloads) != 1 {
		t.Errorf("writer got %d payloads, want 1", len(w.payloads))
	}
}

func TestFanOut_RecordStateChange(t *testing.T) {
	f, _, _ := newTestFanOut()
	ok := &mockRecorder{}
	failing := &mockRecorder{err: errors.New("disk full")}
	f.recorders = []reconcile.Recorder{failing, ok}

	err := f.RecordStateChange(context.Background(), "B1", state.Values{state.On: true}, device.StateHistorySourcePush)
	if err == nil || err.Error() != "disk full" {
		t.Errorf("RecordStateChange() error = %v, want disk full", err)
	}
	if len(ok.getSources()) != 1 {
		t.Error("healthy recorder skipped after a failing one")
	}

	f.recorders = nil
	if err := f.RecordStateChange(context.Background(), "B1", state.Values{}, "refresh"); err != nil {
		t.Errorf("RecordStateChange() without recorders error = %v", err)
	}
}

func TestFanOut_NoPublisher(t *testing.T) {
	f := newFanOut(nil, nil, noopLogger{})
	f.Update("B1", state.Values{state.On: true})
	f.Fault("B1", errors.New("boom"))
	if err := f.PublishTelemetry(device.Device{ID: "B1"}, map[string]any{"a": 1}); err != nil {
		t.Errorf("PublishTelemetry() error = %v", err)
	}
}
