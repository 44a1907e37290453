package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLiteStore implements Store on the binding_events table.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore returns a store using db, which must already be migrated.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// RecordEvent inserts e, filling in the ID and timestamp when unset, and
// returns the stored entry.
func (s *SQLiteStore) RecordEvent(ctx context.Context, e Entry) (Entry, error) {
	if e.BindingID == "" || e.Name == "" {
		return Entry{}, fmt.Errorf("%w: binding id and name are required", ErrInvalidEntry)
	}
	if e.Kind == "" {
		e.Kind = KindEvent
	}
	if e.Kind != KindEvent && e.Kind != KindWrite {
		return Entry{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidEntry, e.Kind)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = s.now()
	}
	e.At = e.At.UTC()

	detail := "{}"
	if len(e.Detail) > 0 {
		raw, err := json.Marshal(e.Detail)
		if err != nil {
			return Entry{}, fmt.Errorf("marshalling detail: %w", err)
		}
		detail = string(raw)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO binding_events (id, kind, binding_id, entity_id, name, detail, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind, e.BindingID, e.EntityID, e.Name, detail, e.At.UnixNano(),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("inserting journal entry: %w", err)
	}
	return e, nil
}

// GetEvents returns the newest entries for an entity, newest first.
func (s *SQLiteStore) GetEvents(ctx context.Context, entityID string, limit int) ([]Entry, error) {
	if entityID == "" {
		return nil, fmt.Errorf("%w: entity id is required", ErrInvalidEntry)
	}
	return s.query(ctx, "entity_id", entityID, limit)
}

// GetBindingEvents returns the newest entries for a binding, newest first.
func (s *SQLiteStore) GetBindingEvents(ctx context.Context, bindingID string, limit int) ([]Entry, error) {
	if bindingID == "" {
		return nil, fmt.Errorf("%w: binding id is required", ErrInvalidEntry)
	}
	return s.query(ctx, "binding_id", bindingID, limit)
}

// query selects by one indexed column. column is never user supplied.
func (s *SQLiteStore) query(ctx context.Context, column, value string, limit int) ([]Entry, error) {
	limit = clampLimit(limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, binding_id, entity_id, name, detail, occurred_at
		 FROM binding_events
		 WHERE `+column+` = ?
		 ORDER BY occurred_at DESC, rowid DESC
		 LIMIT ?`,
		value, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var detail string
		var at int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.BindingID, &e.EntityID, &e.Name, &detail, &at); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		if detail != "" && detail != "{}" {
			if err := json.Unmarshal([]byte(detail), &e.Detail); err != nil {
				return nil, fmt.Errorf("unmarshalling detail: %w", err)
			}
		}
		e.At = time.Unix(0, at).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}
	return entries, nil
}

// PruneEvents deletes entries older than now-olderThan and returns how
// many were removed.
func (s *SQLiteStore) PruneEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}
	cutoff := s.now().Add(-olderThan).UnixNano()
	result, err := s.db.ExecContext(ctx, "DELETE FROM binding_events WHERE occurred_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting journal entries: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
