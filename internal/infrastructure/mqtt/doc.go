// Package mqtt provides MQTT client connectivity for the SwitchBot bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// # Traffic
//
// The bridge uses one broker connection for several independent flows:
//
//	switchbot/state/<id>                 canonical state (retained)
//	switchbot/fault/<id>                 last refresh/push fault
//	switchbot/command/<id>               hub set-commands (inbound)
//	switchbot/telemetry/<type>/<mac>     sensor telemetry
//	switchbot/webhook                    relayed cloud webhooks (inbound)
//	switchbot/ble/adv/<mac>              radio gateway advertisements (inbound)
//	switchbot/ble/cmd/<mac>              radio gateway commands
//	switchbot/system/status|health       bridge status (LWT) and health
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        return handleCommand(topic, payload)
//	    })
//
//	client.PublishJSON(mqtt.Topics{}.State(id), values, true)
package mqtt
