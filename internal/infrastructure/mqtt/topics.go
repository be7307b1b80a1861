package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes of the facade topic tree.
//
//	graylogic/facade/reading/{source}          readings in (JSON)
//	graylogic/facade/write/{source}            writes to remote attributes
//	graylogic/facade/{device}/event/{attr}     attribute changes out
//	graylogic/facade/{device}/state            device state and status (retained)
//	graylogic/system/status                    service online/offline (retained, LWT)
const (
	// TopicPrefix is the root of every Gray Logic topic.
	TopicPrefix = "graylogic"

	// TopicPrefixFacade is the base for all facade topics.
	TopicPrefixFacade = "graylogic/facade"

	// TopicPrefixReading is the base of the topics carrying remote readings.
	TopicPrefixReading = TopicPrefixFacade + "/reading"

	// TopicPrefixWrite is the base of the topics carrying remote writes.
	TopicPrefixWrite = TopicPrefixFacade + "/write"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topics provides builders for facade MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	topic := topics.FacadeReading("plant/boiler/temperature")
//	// Returns: "graylogic/facade/reading/plant/boiler/temperature"
type Topics struct{}

// FacadeReading returns the topic carrying readings of a remote attribute.
//
// Example: graylogic/facade/reading/plant/boiler/temperature
func (Topics) FacadeReading(source string) string {
	return TopicPrefixReading + "/" + source
}

// FacadeWrite returns the topic a write to a remote attribute is sent to.
//
// Example: graylogic/facade/write/plant/valve/position
func (Topics) FacadeWrite(source string) string {
	return TopicPrefixWrite + "/" + source
}

// FacadeEvent returns the topic of change events for one device attribute.
//
// Example: graylogic/facade/boiler/event/Temperature
func (Topics) FacadeEvent(device, attribute string) string {
	return fmt.Sprintf("%s/%s/event/%s", TopicPrefixFacade, device, attribute)
}

// FacadeState returns the retained device state topic.
//
// Example: graylogic/facade/boiler/state
func (Topics) FacadeState(device string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixFacade, device)
}

// SystemStatus returns the system status topic.
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllFacadeReadings returns a pattern matching every reading topic.
//
// Pattern: graylogic/facade/reading/#
func (Topics) AllFacadeReadings() string {
	return TopicPrefixReading + "/#"
}

// AllFacadeEvents returns a pattern matching the events of one device.
//
// Pattern: graylogic/facade/{device}/event/+
func (Topics) AllFacadeEvents(device string) string {
	return fmt.Sprintf("%s/%s/event/+", TopicPrefixFacade, device)
}

// ReadingSource extracts the remote attribute name from a reading topic.
// ok is false when topic is not a reading topic.
func (Topics) ReadingSource(topic string) (source string, ok bool) {
	source, ok = strings.CutPrefix(topic, TopicPrefixReading+"/")
	if !ok || source == "" {
		return "", false
	}
	return source, true
}

// HasWildcard reports whether a topic is a subscription pattern.
func (Topics) HasWildcard(topic string) bool {
	return strings.ContainsAny(topic, "+#")
}
