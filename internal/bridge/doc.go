// Package bridge connects facade devices to the MQTT bus.
//
// Source subscribes to the reading topic of every remote attribute a device
// declares, decodes the JSON readings and hands them to the device. Publisher
// turns device changes into event messages and a retained state message.
//
//	┌──────────────┐  graylogic/facade/reading/{source}   ┌──────────┐
//	│ MQTT broker  │ ───────────────────────────────────▶ │  Source  │──▶ facade.Device
//	│              │ ◀─────────────────────────────────── │Publisher │◀── facade.Change
//	└──────────────┘  graylogic/facade/{device}/event/…   └──────────┘
//	                  graylogic/facade/{device}/state (retained)
//
// Source.Run must be running for readings to reach the devices; the paho
// goroutine only decodes and queues them.
package bridge
