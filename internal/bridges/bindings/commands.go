package bindings

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/nerrad567/gray-logic-bindings/internal/binding"
	"github.com/nerrad567/gray-logic-bindings/internal/entity"
	"github.com/nerrad567/gray-logic-bindings/internal/infrastructure/mqtt"
)

// handleMQTTMessage processes a command received on
// graylogic/command/binding/{entity_id}. The topic names the entity; a
// mismatching entity_id in the payload is overridden.
func (h *Hub) handleMQTTMessage(topic string, payload []byte) error {
	entityID, err := mqtt.Topics{}.EntityFromTopic(topic)
	if err != nil {
		h.logger.Warn("command on unexpected topic", "topic", topic, "error", err)
		return nil
	}

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		h.logger.Warn("invalid command payload", "topic", topic, "error", err)
		h.publishAck(NewAckError(CommandMessage{EntityID: entityID}, ErrCodeInvalidCommand, "invalid JSON payload"))
		return nil
	}
	cmd.EntityID = entityID

	h.publishAck(h.Execute(cmd))
	return nil
}

// Execute applies cmd to its entity and returns the acknowledgment.
func (h *Hub) Execute(cmd CommandMessage) AckMessage {
	bindingID, err := h.execute(cmd)
	if err != nil {
		h.logger.Warn("command failed",
			"command_id", cmd.ID,
			"entity_id", cmd.EntityID,
			"command", cmd.Command,
			"error", err,
		)
		return NewAckError(cmd, errorCode(err), err.Error())
	}

	h.logger.Debug("command applied", "command_id", cmd.ID, "entity_id", cmd.EntityID, "command", cmd.Command)
	return NewAckMessage(cmd, bindingID)
}

func (h *Hub) execute(cmd CommandMessage) (string, error) {
	e, err := h.registry.Get(cmd.EntityID)
	if err != nil {
		return "", err
	}

	var bindingID string
	if ref, ok := e.BindingRef(); ok {
		bindingID = ref.BindingID
	}

	switch cmd.Command {
	case CommandSetAttribute:
		name, err := stringParam(cmd.Parameters, "name")
		if err != nil {
			return bindingID, err
		}
		value, err := stringParam(cmd.Parameters, "value")
		if err != nil {
			return bindingID, err
		}
		e.SetAttribute(name, value)

	case CommandRemoveAttribute:
		name, err := stringParam(cmd.Parameters, "name")
		if err != nil {
			return bindingID, err
		}
		e.RemoveAttribute(name)

	case CommandSetStyle:
		property, err := stringParam(cmd.Parameters, "property")
		if err != nil {
			return bindingID, err
		}
		value, err := stringParam(cmd.Parameters, "value")
		if err != nil {
			return bindingID, err
		}
		e.SetStyle(property, value)

	case CommandPlay, CommandPause, CommandLoad, CommandSeek, CommandSetLoop:
		p, err := player(e)
		if err != nil {
			return bindingID, err
		}
		return bindingID, playback(p, cmd)

	default:
		return bindingID, fmt.Errorf("%w: %q", ErrInvalidCommand, cmd.Command)
	}
	return bindingID, nil
}

// player returns the playback capability of the entity's binding.
func player(e *entity.Entity) (binding.Player, error) {
	b := e.Binding()
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntityUnbound, e.ID())
	}
	p, ok := b.(binding.Player)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s", binding.ErrNotPlayable, b.ID(), b.Flavor())
	}
	return p, nil
}

func playback(p binding.Player, cmd CommandMessage) error {
	switch cmd.Command {
	case CommandPlay:
		p.Play()
	case CommandPause:
		p.Pause()
	case CommandLoad:
		p.Load()
	case CommandSeek:
		seconds, err := floatParam(cmd.Parameters, "seconds")
		if err != nil {
			return err
		}
		p.Seek(seconds)
	case CommandSetLoop:
		loop, err := boolParam(cmd.Parameters, "loop")
		if err != nil {
			return err
		}
		p.SetLoop(loop)
	}
	return nil
}

// publishAck sends an acknowledgment on the entity's ack topic.
func (h *Hub) publishAck(ack AckMessage) {
	if h.mqtt == nil || ack.EntityID == "" {
		return
	}
	if err := h.mqtt.PublishJSON(mqtt.Topics{}.BindingAck(ack.EntityID), ack, 1, false); err != nil {
		h.logger.Warn("publish ack failed", "command_id", ack.CommandID, "error", err)
	}
}

// errorCode maps an execution error to an ack error code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, entity.ErrEntityNotFound):
		return ErrCodeEntityNotFound
	case errors.Is(err, ErrInvalidCommand):
		return ErrCodeInvalidCommand
	case errors.Is(err, ErrInvalidParameters):
		return ErrCodeInvalidParameters
	case errors.Is(err, binding.ErrNotPlayable):
		return ErrCodeNotPlayable
	case errors.Is(err, ErrEntityUnbound):
		return ErrCodeNotBound
	default:
		return ErrCodeHubError
	}
}

// stringParam reads a parameter as a string. Numbers and booleans are
// formatted so {"value": 1} and {"value": "1"} are equivalent.
func stringParam(params map[string]any, key string) (string, error) {
	raw, ok := params[key]
	if !ok {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidParameters, key)
	}
	switch v := raw.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidParameters, key)
	}
}

func floatParam(params map[string]any, key string) (float64, error) {
	raw, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidParameters, key)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidParameters, key)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidParameters, key)
	}
}

func boolParam(params map[string]any, key string) (bool, error) {
	raw, ok := params[key]
	if !ok {
		return false, fmt.Errorf("%w: %s is required", ErrInvalidParameters, key)
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("%w: %s must be a boolean", ErrInvalidParameters, key)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%w: %s must be a boolean", ErrInvalidParameters, key)
	}
}
