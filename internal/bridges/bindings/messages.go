package bindings

import (
	"time"

	"github.com/nerrad567/gray-logic-bindings/internal/bdcom"
	"github.com/nerrad567/gray-logic-bindings/internal/binding"
)

// Protocol identifies binding messages on the bus.
const Protocol = "binding"

// Command names accepted on graylogic/command/binding/{entity_id}.
const (
	CommandSetAttribute    = "set_attribute"
	CommandRemoveAttribute = "remove_attribute"
	CommandSetStyle        = "set_style"
	CommandPlay            = "play"
	CommandPause           = "pause"
	CommandLoad            = "load"
	CommandSeek            = "seek"
	CommandSetLoop         = "set_loop"
)

// CommandMessage is sent to the hub to change an entity.
// Topic: graylogic/command/binding/{entity_id}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgments.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// EntityID is the target entity. Filled from the topic when empty.
	EntityID string `json:"entity_id"`

	// Command is one of the Command* names.
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"name": "locked", "value": "true"} for set_attribute
	//   {"property": "color", "value": "red"} for set_style
	//   {"seconds": 12.5} for seek
	//   {"loop": true} for set_loop
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated ("api", "automation", ...).
	Source string `json:"source,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was applied to the entity.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be applied.
	AckFailed AckStatus = "failed"
)

// AckMessage acknowledges a command.
// Topic: graylogic/ack/binding/{entity_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	EntityID  string    `json:"entity_id"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`

	// BindingID is the binding the entity is attached to, when bound.
	BindingID string `json:"binding_id,omitempty"`

	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeEntityNotFound    = "ENTITY_NOT_FOUND"
	ErrCodeNotPlayable       = "NOT_PLAYABLE"
	ErrCodeNotBound          = "NOT_BOUND"
	ErrCodeHubError          = "HUB_ERROR"
)

// StateMessage carries one binding event.
// Topic: graylogic/state/binding/{entity_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	EntityID  string    `json:"entity_id"`
	BindingID string    `json:"binding_id"`
	Timestamp time.Time `json:"timestamp"`

	// Event is the event name (press, locked, timeupdate, ...).
	Event string `json:"event"`

	// Channel is the channel index the event was raised for.
	Channel int `json:"channel"`

	// Value is the event payload; timeupdate carries seconds.
	Value any `json:"value,omitempty"`

	Protocol string `json:"protocol"`
}

// HealthStatus represents the operational status of the hub.
type HealthStatus string

const (
	// HealthHealthy indicates every binding is active and connections are up.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates a connection is down or a binding is inert.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the hub is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the hub is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports hub status.
// Topic: graylogic/health/bindings
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Hub           string       `json:"hub"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`

	// DeviceServer describes the bdcom connection.
	DeviceServer *ConnectionStatus `json:"device_server,omitempty"`

	// Bindings summarises binding activation.
	Bindings BindingCounts `json:"bindings"`

	// Inert lists the bindings that refused to activate.
	Inert []BindingStatus `json:"inert,omitempty"`

	EntitiesManaged int `json:"entities_managed"`

	Reason string `json:"reason,omitempty"`
}

// ConnectionStatus describes the device server connection.
type ConnectionStatus struct {
	Status        string    `json:"status"`
	FramesTx      uint64    `json:"frames_tx"`
	FramesRx      uint64    `json:"frames_rx"`
	Errors        uint64    `json:"errors"`
	Reconnects    uint64    `json:"reconnects"`
	Subscriptions int       `json:"subscriptions"`
	LastActivity  time.Time `json:"last_activity,omitzero"`
}

// BindingCounts summarises binding states.
type BindingCounts struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Inert  int `json:"inert"`
}

// BindingStatus describes one declared binding.
type BindingStatus struct {
	ID        string            `json:"id"`
	Flavor    string            `json:"flavor"`
	Location  string            `json:"location"`
	Direction binding.Direction `json:"direction,omitempty"`
	Active    bool              `json:"active"`
	Error     string            `json:"error,omitempty"`

	// Channels maps channel index to entity ID.
	Channels map[int]string `json:"channels,omitempty"`
}

// NewAckMessage creates an accepted acknowledgment.
func NewAckMessage(cmd CommandMessage, bindingID string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		EntityID:  cmd.EntityID,
		Status:    AckAccepted,
		Protocol:  Protocol,
		BindingID: bindingID,
	}
}

// NewAckError creates a failed acknowledgment.
func NewAckError(cmd CommandMessage, code, message string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		EntityID:  cmd.EntityID,
		Status:    AckFailed,
		Protocol:  Protocol,
		Error: &AckError{
			Code:    code,
			Message: message,
		},
	}
}

// NewStateMessage creates a state message for a binding event.
func NewStateMessage(entityID string, ev binding.Event) StateMessage {
	return StateMessage{
		EntityID:  entityID,
		BindingID: ev.BindingID,
		Timestamp: time.Now().UTC(),
		Event:     ev.Name,
		Channel:   ev.Channel,
		Value:     ev.Value,
		Protocol:  Protocol,
	}
}

// NewHealthMessage creates a health message.
func NewHealthMessage(hubID, version string, status HealthStatus, startTime time.Time) HealthMessage {
	return HealthMessage{
		Hub:           hubID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       version,
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
	}
}

// connectionStatusFrom converts bdcom counters.
func connectionStatusFrom(s bdcom.Stats) *ConnectionStatus {
	status := "disconnected"
	switch {
	case s.Connected:
		status = "connected"
	case s.Reconnecting:
		status = "connecting"
	}
	return &ConnectionStatus{
		Status:        status,
		FramesTx:      s.FramesTx,
		FramesRx:      s.FramesRx,
		Errors:        s.ErrorsTotal,
		Reconnects:    s.ReconnectsTotal,
		Subscriptions: s.Subscriptions,
		LastActivity:  s.LastActivity,
	}
}
