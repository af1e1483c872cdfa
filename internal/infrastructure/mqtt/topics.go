package mqtt

import "fmt"

// Topic prefixes for the Enviro Core MQTT surface.
//
// The hierarchy is flat and small:
//
//	envirocore/reading/{sensor}/{kind}   retained reading updates
//	envirocore/command/{verb}            inbound commands
//	envirocore/reply/{request_id}        command replies
//	envirocore/system/status             online/offline status (retained, LWT)
const (
	// TopicPrefix is the base for all Enviro Core topics.
	TopicPrefix = "envirocore"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "envirocore/system"
)

// Topics provides builders for Enviro Core MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	readingTopic := topics.Reading("greenhouse", "temperature")
//	// Returns: "envirocore/reading/greenhouse/temperature"
type Topics struct{}

// Reading returns the topic for one sensor's measurement stream.
//
// Example: envirocore/reading/greenhouse/temperature
func (Topics) Reading(sensorName, kind string) string {
	return fmt.Sprintf("%s/reading/%s/%s", TopicPrefix, sensorName, kind)
}

// Command returns the topic for an inbound command verb.
//
// Example: envirocore/command/get_reading
func (Topics) Command(verb string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, verb)
}

// Reply returns the topic a command reply is published to.
//
// Example: envirocore/reply/req-abc123
func (Topics) Reply(requestID string) string {
	return fmt.Sprintf("%s/reply/%s", TopicPrefix, requestID)
}

// SystemStatus returns the system status topic.
//
// Example: envirocore/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllReadings returns a pattern matching every reading update.
//
// Pattern: envirocore/reading/+/+
func (Topics) AllReadings() string {
	return fmt.Sprintf("%s/reading/+/+", TopicPrefix)
}

// AllCommands returns a pattern matching every command verb.
//
// Pattern: envirocore/command/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/+", TopicPrefix)
}

// AllTopics returns a pattern matching all Enviro Core topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: envirocore/#
func (Topics) AllTopics() string {
	return "envirocore/#"
}
