// Package bridge owns every device state machine and connects them to the
// outside world.
//
// The bridge builds one reconcile.Machine per configured (or discovered)
// device and fans their output out to MQTT, WebSocket clients, and the
// history recorders. Inbound traffic arrives on three paths:
//
//   - set-commands on switchbot/command/{device_id}
//   - cloud webhooks, either POSTed to the API or relayed on MQTT
//   - direct calls from the HTTP API (Set, Refresh)
//
// Webhooks are matched to devices by context.deviceMac, which is the device
// id with separators.
//
// Health is published periodically to switchbot/system/health.
package bridge
