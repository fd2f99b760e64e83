package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-switchbot/internal/reconcile"
	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// Broadcaster pushes events to WebSocket clients. *api.Hub satisfies it.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// TelemetryWriter stores sensor telemetry. *influxdb.Client satisfies it.
type TelemetryWriter interface {
	WriteTelemetry(deviceID, deviceType string, payload map[string]any)
}

// fanOut is the sink, telemetry publisher and recorder shared by every
// machine. It keeps the last full visible state per device so the retained
// state topic always carries a complete picture.
type fanOut struct {
	publisher  Publisher
	hub        Broadcaster
	recorders  []reconcile.Recorder
	telemetry  []TelemetryWriter
	now        func() time.Time
	logger     Logger
	stateCache map[string]state.Values
	cacheMu    sync.RWMutex
}

// Publisher is the publish half of the MQTT client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

func newFanOut(publisher Publisher, hub Broadcaster, logger Logger) *fanOut {
	return &fanOut{
		publisher:  publisher,
		hub:        hub,
		now:        time.Now,
		logger:     logger,
		stateCache: make(map[string]state.Values),
	}
}

// prime sets the cached state for a device without publishing.
func (f *fanOut) prime(deviceID string, values state.Values) {
	f.cacheMu.Lock()
	f.stateCache[deviceID] = values.Clone()
	f.cacheMu.Unlock()
}

// cached returns the last full state for a device.
func (f *fanOut) cached(deviceID string) state.Values {
	f.cacheMu.RLock()
	defer f.cacheMu.RUnlock()
	return f.stateCache[deviceID].Clone()
}

// Update implements reconcile.Sink.
func (f *fanOut) Update(deviceID string, values state.Values) {
	f.cacheMu.Lock()
	merged, ok := f.stateCache[deviceID]
	if !ok {
		merged = state.Values{}
		f.stateCache[deviceID] = merged
	}
	merged.Merge(values)
	full := merged.Clone()
	f.cacheMu.Unlock()

	msg := StateMessage{
		DeviceID:  deviceID,
		Timestamp: f.now().UTC(),
		State:     full,
		Changed:   values.Keys(),
	}
	f.publishJSON(mqtt.Topics{}.State(deviceID), msg, true)
	if f.hub != nil {
		f.hub.Broadcast(EventStateChanged, msg)
	}
}

// Fault implements reconcile.Sink.
func (f *fanOut) Fault(deviceID string, err error) {
	msg := FaultMessage{
		DeviceID:  deviceID,
		Timestamp: f.now().UTC(),
		Error:     err.Error(),
	}
	f.publishJSON(mqtt.Topics{}.Fault(deviceID), msg, false)
	if f.hub != nil {
		f.hub.Broadcast(EventFault, msg)
	}
}

// PublishTelemetry implements reconcile.Telemetry. The flat payload goes to
// switchbot/telemetry/{type}/{mac} and to every telemetry writer.
func (f *fanOut) PublishTelemetry(dev device.Device, payload map[string]any) error {
	for _, w := range f.telemetry {
		w.WriteTelemetry(dev.ID, string(dev.Type), payload)
	}
	if f.publisher == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding telemetry: %w", err)
	}
	return f.publisher.Publish(mqtt.Topics{}.Telemetry(string(dev.Type), dev.MAC), data, 1, false)
}

// RecordStateChange implements reconcile.Recorder by writing to every
// configured recorder.
func (f *fanOut) RecordStateChange(ctx context.Context, deviceID string, values state.Values, source string) error {
	var errs []error
	for _, r := range f.recorders {
		if err := r.RecordStateChange(ctx, deviceID, values, source); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fanOut) publishJSON(topic string, v any, retained bool) {
	if f.publisher == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		f.logger.Error("failed to encode message", "topic", topic, "error", err)
		return
	}
	if err := f.publisher.Publish(topic, data, 1, retained); err != nil {
		f.logger.Warn("failed to publish", "topic", topic, "error", err)
	}
}
