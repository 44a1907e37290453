package journal

import (
	"context"
	"errors"
	"time"
)

// Entry kinds.
const (
	KindEvent = "event"
	KindWrite = "write"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// ErrInvalidEntry is returned when an entry is missing required fields.
var ErrInvalidEntry = errors.New("journal: invalid entry")

// Entry is one journal row.
type Entry struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	BindingID string         `json:"binding_id"`
	EntityID  string         `json:"entity_id,omitempty"`
	Name      string         `json:"name"`
	Detail    map[string]any `json:"detail,omitempty"`
	At        time.Time      `json:"at"`
}

// Store records and queries journal entries.
type Store interface {
	RecordEvent(ctx context.Context, e Entry) (Entry, error)
	GetEvents(ctx context.Context, entityID string, limit int) ([]Entry, error)
	GetBindingEvents(ctx context.Context, bindingID string, limit int) ([]Entry, error)
	PruneEvents(ctx context.Context, olderThan time.Duration) (int64, error)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}
