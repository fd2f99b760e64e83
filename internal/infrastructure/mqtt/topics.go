package mqtt

import "fmt"

// Topic prefixes for the bridge's MQTT hierarchy.
//
// Device topics are keyed by SwitchBot device id; telemetry topics by
// device type and MAC so a sensor keeps its series across id changes.
const (
	// TopicPrefix is the base for all bridge topics.
	TopicPrefix = "switchbot"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "switchbot/system"
)

// Topics provides builders for the bridge's MQTT topics.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.State("C0FFEE123456")
//	// Returns: "switchbot/state/C0FFEE123456"
type Topics struct{}

// State returns the hub-facing canonical state topic for a device.
//
// Example: switchbot/state/C0FFEE123456
func (Topics) State(deviceID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, deviceID)
}

// Fault returns the topic carrying a device's last refresh or push fault.
//
// Example: switchbot/fault/C0FFEE123456
func (Topics) Fault(deviceID string) string {
	return fmt.Sprintf("%s/fault/%s", TopicPrefix, deviceID)
}

// Command returns the topic on which hub set-commands for a device arrive.
//
// Example: switchbot/command/C0FFEE123456
func (Topics) Command(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, deviceID)
}

// Telemetry returns the sensor telemetry topic.
//
// Example: switchbot/telemetry/hub/c0:ff:ee:12:34:56
func (Topics) Telemetry(deviceType, mac string) string {
	return fmt.Sprintf("%s/telemetry/%s/%s", TopicPrefix, deviceType, mac)
}

// Webhook returns the default topic for relayed cloud webhooks.
//
// Example: switchbot/webhook
func (Topics) Webhook() string {
	return TopicPrefix + "/webhook"
}

// SystemStatus returns the bridge online/offline status topic.
//
// Example: switchbot/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// SystemHealth returns the periodic bridge health topic.
//
// Example: switchbot/system/health
func (Topics) SystemHealth() string {
	return TopicPrefixSystem + "/health"
}

// AllStates returns a pattern matching every device state topic.
//
// Pattern: switchbot/state/+
func (Topics) AllStates() string {
	return TopicPrefix + "/state/+"
}

// AllCommands returns a pattern matching every device command topic.
//
// Pattern: switchbot/command/+
func (Topics) AllCommands() string {
	return TopicPrefix + "/command/+"
}

// AllTopics returns a pattern matching all bridge topics.
//
// Pattern: switchbot/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
