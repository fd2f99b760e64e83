package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// Measurement names.
const (
	measurementState     = "device_state"
	measurementTelemetry = "device_telemetry"
)

// RecordStateChange writes one canonical-state sample for a device.
//
// Numeric properties become float fields and booleans stay booleans;
// anything else is dropped. The write is non-blocking and batched, so the
// only error reported here is a disconnected client.
//
// Parameters:
//   - ctx: Unused; present so the client satisfies the recorder interface
//   - deviceID: SwitchBot device id, used as a tag
//   - values: Canonical values in hub-facing units
//   - source: What produced the sample (refresh, push, webhook), used as a tag
func (c *Client) RecordStateChange(_ context.Context, deviceID string, values state.Values, source string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	point := newStatePoint(deviceID, values, source, time.Now())
	if point == nil {
		return nil
	}
	c.writeAPI.WritePoint(point)
	return nil
}

// WriteTelemetry writes a flat sensor payload such as
// {humidity, temperature, light}.
//
// Parameters:
//   - deviceID: SwitchBot device id
//   - deviceType: Device category, used as a tag
//   - payload: Field values; non-numeric entries are dropped
func (c *Client) WriteTelemetry(deviceID, deviceType string, payload map[string]any) {
	if !c.IsConnected() {
		return
	}
	fields := numericFields(payload)
	if len(fields) == 0 {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(
		measurementTelemetry,
		map[string]string{"device_id": deviceID, "type": deviceType},
		fields,
		time.Now(),
	))
}

// newStatePoint builds a device_state point, or nil when no property is
// representable as a field.
func newStatePoint(deviceID string, values state.Values, source string, ts time.Time) *write.Point {
	fields := numericFields(values)
	if len(fields) == 0 {
		return nil
	}
	return write.NewPoint(
		measurementState,
		map[string]string{"device_id": deviceID, "source": source},
		fields,
		ts,
	)
}

// numericFields keeps booleans and converts every number to float64 so a
// field never changes type between writes.
func numericFields(in map[string]any) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if b, ok := v.(bool); ok {
			out[k] = b
			continue
		}
		if f, ok := (state.Values{k: v}).Float(k); ok {
			out[k] = f
		}
	}
	return out
}

// WritePointWithTime writes an arbitrary measurement at timestamp, for
// bridge-level series that are not tied to one device.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
