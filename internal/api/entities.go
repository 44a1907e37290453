package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-bindings/internal/bridges/bindings"
	"github.com/nerrad567/gray-logic-bindings/internal/entity"
)

const (
	maxQueryParamLen = 100
	maxEventsLimit   = 500
)

// valueRequest is the body for attribute and style updates.
type valueRequest struct {
	Value *string `json:"value"`
}

// handleListEntities returns every entity, optionally only those bound to
// the binding named by ?binding=.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	registry := s.bindings.Registry()

	var list []*entity.Entity
	if b := r.URL.Query().Get("binding"); b != "" {
		if len(b) > maxQueryParamLen {
			writeBadRequest(w, "binding exceeds maximum length")
			return
		}
		list = registry.ListBound(b)
	} else {
		list = registry.List()
	}

	states := make([]entity.State, 0, len(list))
	for _, e := range list {
		states = append(states, e.Snapshot())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entities": states,
		"count":    len(states),
	})
}

// handleGetEntity returns one entity's attributes and style.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookupEntity(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, e.Snapshot())
}

// handleSetAttribute sets an attribute and notifies the bound binding.
func (s *Server) handleSetAttribute(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookupEntity(w, r)
	if !ok {
		return
	}
	name, ok := pathName(w, r, "name")
	if !ok {
		return
	}
	value, ok := decodeValue(w, r)
	if !ok {
		return
	}

	e.SetAttribute(name, value)
	writeJSON(w, http.StatusOK, e.Snapshot())
}

// handleRemoveAttribute removes an attribute and notifies the bound binding.
func (s *Server) handleRemoveAttribute(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookupEntity(w, r)
	if !ok {
		return
	}
	name, ok := pathName(w, r, "name")
	if !ok {
		return
	}

	e.RemoveAttribute(name)
	writeJSON(w, http.StatusOK, e.Snapshot())
}

// handleSetStyle sets a style property and notifies the bound binding.
func (s *Server) handleSetStyle(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookupEntity(w, r)
	if !ok {
		return
	}
	property, ok := pathName(w, r, "property")
	if !ok {
		return
	}
	value, ok := decodeValue(w, r)
	if !ok {
		return
	}

	e.SetStyle(property, value)
	writeJSON(w, http.StatusOK, e.Snapshot())
}

// handleEntityCommand runs a hub command (play, seek, set_attribute, ...)
// against the entity and returns the acknowledgment.
func (s *Server) handleEntityCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid entity ID")
		return
	}

	var cmd bindings.CommandMessage
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if cmd.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}
	cmd.EntityID = id
	if cmd.ID == "" {
		cmd.ID = requestIDFrom(r.Context())
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if cmd.Source == "" {
		cmd.Source = "api"
	}
	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = time.Now().UTC()
	}

	ack := s.bindings.Execute(cmd)
	writeJSON(w, ackHTTPStatus(ack), ack)
}

// handleEntityEvents returns the entity's most recent journal entries.
func (s *Server) handleEntityEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "event journal not configured")
		return
	}
	e, ok := s.lookupEntity(w, r)
	if !ok {
		return
	}

	limit, err := parseEventsLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	events, err := s.journal.GetEvents(r.Context(), e.ID(), limit)
	if err != nil {
		s.logger.Error("failed to read journal", "entity_id", e.ID(), "error", err)
		writeInternalError(w, "failed to read events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entity_id": e.ID(),
		"events":    events,
		"count":     len(events),
	})
}

// lookupEntity resolves {id} or writes the error response.
func (s *Server) lookupEntity(w http.ResponseWriter, r *http.Request) (*entity.Entity, bool) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid entity ID")
		return nil, false
	}

	e, err := s.bindings.Registry().Get(id)
	if err != nil {
		if errors.Is(err, entity.ErrEntityNotFound) {
			writeNotFound(w, "entity not found")
			return nil, false
		}
		writeInternalError(w, "failed to get entity")
		return nil, false
	}
	return e, true
}

func pathName(w http.ResponseWriter, r *http.Request, param string) (string, bool) {
	v := chi.URLParam(r, param)
	if v == "" || len(v) > maxQueryParamLen {
		writeBadRequest(w, "invalid "+param)
		return "", false
	}
	return v, true
}

func decodeValue(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req valueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return "", false
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "value is required")
		return "", false
	}
	return *req.Value, true
}

// parseEventsLimit parses ?limit=; empty means the journal default.
func parseEventsLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if n > maxEventsLimit {
		return 0, fmt.Errorf("limit must not exceed %d", maxEventsLimit)
	}
	return n, nil
}

// ackHTTPStatus maps an acknowledgment to a response status.
func ackHTTPStatus(ack bindings.AckMessage) int {
	if ack.Error == nil {
		return http.StatusOK
	}
	switch ack.Error.Code {
	case bindings.ErrCodeEntityNotFound:
		return http.StatusNotFound
	case bindings.ErrCodeInvalidCommand, bindings.ErrCodeInvalidParameters:
		return http.StatusBadRequest
	case bindings.ErrCodeNotPlayable, bindings.ErrCodeNotBound:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
