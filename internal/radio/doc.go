// Package radio is the local short-range radio channel to SwitchBot devices.
//
// Devices broadcast BLE advertisements whose service data carries their
// state. A Scanner produces those advertisements as a stream; FirstMatch opens
// a time-boxed scan window and stops at the first advertisement from the
// target device. Every call opens a fresh scan, so the sequence is lazy and
// restartable.
//
// Commands go out through a Commander and are acknowledged by the radio
// gateway.
//
// # MQTT gateway
//
// The bridge host does not need a radio of its own. MQTTGateway talks to a BLE
// gateway (an ESP32 or a Linux box running a BlueZ relay) over MQTT:
//
//	switchbot/ble/adv/{mac}   gateway -> bridge   advertisement JSON
//	switchbot/ble/cmd/{mac}   bridge  -> gateway  command JSON
//	switchbot/ble/ack/{mac}   gateway -> bridge   command acknowledgement
//
// {mac} is the lower-case address without separators.
package radio
