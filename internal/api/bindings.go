package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-bindings/internal/bridges/bindings"
)

// handleListBindings returns every declared binding, inert ones included.
func (s *Server) handleListBindings(w http.ResponseWriter, _ *http.Request) {
	list := s.bindings.Bindings()
	writeJSON(w, http.StatusOK, map[string]any{
		"bindings": list,
		"count":    len(list),
	})
}

// handleGetBinding returns one binding's status and channel map.
func (s *Server) handleGetBinding(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid binding ID")
		return
	}

	status, err := s.bindings.Binding(id)
	if err != nil {
		if errors.Is(err, bindings.ErrBindingNotFound) {
			writeNotFound(w, "binding not found")
			return
		}
		writeInternalError(w, "failed to get binding")
		return
	}
	writeJSON(w, http.StatusOK, status)
}
