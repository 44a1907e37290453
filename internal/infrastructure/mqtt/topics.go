package mqtt

import (
	"fmt"
	"strings"
)

// Topic layout for the bindings service.
//
// Binding topics use the flat scheme graylogic/{category}/binding/{entity_id},
// the same scheme every Gray Logic bridge publishes under, with "binding" in
// the protocol slot.
const (
	// TopicPrefix is the base for all Gray Logic topics.
	TopicPrefix = "graylogic"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"

	// BindingProtocol occupies the protocol segment of binding topics.
	BindingProtocol = "binding"
)

// Topics provides builders for the bindings service MQTT topics.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.BindingState("hotelDoor")
//	// Returns: "graylogic/state/binding/hotelDoor"
type Topics struct{}

// BindingCommand returns the topic entity commands arrive on.
//
// Example: graylogic/command/binding/hotelDoor
func (Topics) BindingCommand(entityID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, BindingProtocol, entityID)
}

// BindingState returns the topic binding events and entity state are
// published on.
//
// Example: graylogic/state/binding/hotelDoor
func (Topics) BindingState(entityID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, BindingProtocol, entityID)
}

// BindingAck returns the topic command acknowledgements are published on.
//
// Example: graylogic/ack/binding/hotelDoor
func (Topics) BindingAck(entityID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, BindingProtocol, entityID)
}

// BindingHealth returns the hub health topic.
//
// Example: graylogic/health/bindings
func (Topics) BindingHealth() string {
	return fmt.Sprintf("%s/health/%ss", TopicPrefix, BindingProtocol)
}

// SystemStatus returns the system status topic used for the service's
// online, offline and last-will messages.
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllBindingCommands returns a pattern matching every entity command.
//
// Pattern: graylogic/command/binding/+
func (Topics) AllBindingCommands() string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, BindingProtocol)
}

// AllBindingStates returns a pattern matching every entity state update.
//
// Pattern: graylogic/state/binding/+
func (Topics) AllBindingStates() string {
	return fmt.Sprintf("%s/state/%s/+", TopicPrefix, BindingProtocol)
}

// EntityFromTopic extracts the entity ID from a binding topic of any
// category.
//
// Example: "graylogic/command/binding/hotelDoor" → "hotelDoor"
func (Topics) EntityFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[2] != BindingProtocol || parts[3] == "" {
		return "", fmt.Errorf("%w: %q is not a binding topic", ErrInvalidTopic, topic)
	}
	return parts[3], nil
}
