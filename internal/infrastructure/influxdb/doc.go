// Package influxdb provides InfluxDB connectivity for the SwitchBot bridge.
//
// It wraps the official influxdb-client-go v2 library and serves as the
// optional historical-data recorder: every canonical state change is
// appended to the device_state measurement, and sensor telemetry to
// device_telemetry.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.RecordStateChange(ctx, "C0FFEE123456", values, "refresh")
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval); batch
// errors are delivered to the SetOnError callback. A recorder failure never
// blocks reconciliation.
package influxdb
