// Package reconcile keeps one device's canonical state in step with the
// physical device.
//
// A Machine owns the state.Tracker for a single device and drives it through
// five phases:
//
//	Idle ──tick──▶ RefreshInFlight ──▶ Idle
//	  │
//	  └─set──▶ PushPending ──debounce──▶ PushInFlight ──▶ Idle
//	                  ▲   (re-armed by          │
//	                  │    every further set)   └─confirm refresh
//
// Any phase falls into Offline when the channel selector reports no usable
// channel or the cloud classifies the device as offline. Offline forces the
// adapter's baseline and is re-evaluated on every refresh tick.
//
// Device-specific behaviour lives behind the Adapter interface: the baseline,
// which properties are writable, how a set expands into dependent
// properties, and how dirty properties become outbound commands. Everything
// else (scheduling, coalescing, channel fallback, retries, status code
// handling, persistence and fan-out to sinks) is shared.
//
// Errors never leave the machine's goroutines. They are logged with the
// device's name and connection mode and reported to the Sink as a fault.
//
// Thread Safety:
//   - All Machine methods are safe for concurrent use.
//   - Get and Snapshot never block on network I/O.
package reconcile
