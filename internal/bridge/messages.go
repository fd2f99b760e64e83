package bridge

import (
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-switchbot/internal/state"
)

// WebSocket event channels.
const (
	EventStateChanged = "device.state_changed"
	EventFault        = "device.fault"
)

// StateMessage is published retained on switchbot/state/{device_id}. State
// carries the full visible state, Changed the properties that triggered it.
type StateMessage struct {
	DeviceID  string       `json:"device_id"`
	Timestamp time.Time    `json:"timestamp"`
	State     state.Values `json:"state"`
	Changed   []string     `json:"changed,omitempty"`
}

// FaultMessage reports a failed refresh or push on
// switchbot/fault/{device_id}.
type FaultMessage struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
}

// CommandMessage is a set-command received on switchbot/command/{device_id}.
//
// Example:
//
//	{"id": "c0a8...", "values": {"On": true, "Brightness": 60}}
type CommandMessage struct {
	// ID correlates log lines; one is generated when empty.
	ID string `json:"id,omitempty"`

	// Values maps canonical property names to hub-facing values.
	Values map[string]any `json:"values"`
}

// WebhookEvent is the body of a cloud change report.
type WebhookEvent struct {
	EventType    string         `json:"eventType"`
	EventVersion string         `json:"eventVersion"`
	Context      map[string]any `json:"context"`
}

// DeviceID returns the device id the event refers to: context.deviceMac with
// separators removed and upper-cased.
func (e WebhookEvent) DeviceID() string {
	mac, _ := e.Context["deviceMac"].(string) //nolint:errcheck // empty string handled by caller
	return deviceIDFromMAC(mac)
}

func deviceIDFromMAC(mac string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(mac) {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is running with problems, such as
	// offline devices or a lost broker connection.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is published retained on switchbot/system/health.
type HealthMessage struct {
	// Bridge is the bridge identifier.
	Bridge string `json:"bridge"`

	// Timestamp is when the health status was generated (UTC).
	Timestamp time.Time `json:"timestamp"`

	// Status indicates the current operational status.
	Status HealthStatus `json:"status"`

	// Version is the bridge software version.
	Version string `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// DevicesManaged is the number of device machines.
	DevicesManaged int `json:"devices_managed"`

	// DevicesOffline is the number of machines in the offline phase.
	DevicesOffline int `json:"devices_offline"`

	// Cloud reports whether cloud credentials are configured.
	Cloud bool `json:"cloud"`

	// Reason explains the status (especially for degraded).
	Reason string `json:"reason,omitempty"`
}
