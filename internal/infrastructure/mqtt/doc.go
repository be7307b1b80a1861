// Package mqtt provides MQTT client connectivity for the Gray Logic facade.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - Last Will and Testament (LWT) for offline detection
//   - The facade topic tree (see Topics)
//
// # Architecture
//
// MQTT is the bus between the facade and the rest of the installation:
// protocol bridges publish readings, the facade publishes attribute
// changes and its device state.
//
//	Protocol bridges → graylogic/facade/reading/# → facade device
//	facade device → graylogic/facade/{device}/event/+ → UIs, recorders
//
// The bridge package turns these topics into facade Sources and Publishers;
// this package only moves bytes.
//
// # Security Considerations
//
//   - Use TLS outside of a trusted network (cfg.Broker.TLS=true)
//   - Credentials are validated against the broker ACL
//   - Payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllFacadeReadings(), 1,
//	    func(topic string, payload []byte) error {
//	        return source.HandleMessage(topic, payload)
//	    })
package mqtt
