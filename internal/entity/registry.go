package entity

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/gray-logic-bindings/internal/binding"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry holds every entity by ID.
//
// All public methods are thread-safe.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]*Entity
	logger   Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]*Entity),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Create builds and registers an entity.
// Returns ErrEntityExists if the ID is taken.
func (r *Registry) Create(cfg Config) (*Entity, error) {
	e, err := New(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating entity %q: %w", cfg.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entities[e.id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityExists, e.id)
	}
	r.entities[e.id] = e

	r.logger.Debug("entity created", "entity_id", e.id, "binding", cfg.Binding)
	return e, nil
}

// Get returns the entity with the given ID.
func (r *Registry) Get(id string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	return e, nil
}

// List returns all entities ordered by ID.
func (r *Registry) List() []*Entity {
	r.mu.RLock()
	out := make([]*Entity, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// ListBound returns the entities that reference bindingID.
func (r *Registry) ListBound(bindingID string) []*Entity {
	var out []*Entity
	for _, e := range r.List() {
		if ref, ok := e.BindingRef(); ok && ref.BindingID == bindingID {
			out = append(out, e)
		}
	}
	return out
}

// Remove unregisters an entity and detaches it from its binding.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	e, ok := r.entities[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	delete(r.entities, id)
	r.mu.Unlock()

	if b := e.Binding(); b != nil {
		ref, _ := e.BindingRef()
		b.Detach(ref.Index)
		e.attach(nil)
	}
	return nil
}

// Bind attaches e to b at the channel index from e's binding reference.
func (r *Registry) Bind(e *Entity, b binding.Binding) error {
	ref, ok := e.BindingRef()
	if !ok {
		return fmt.Errorf("%w: entity %s has no binding reference", ErrInvalidBindingRef, e.id)
	}
	if ref.BindingID != b.ID() {
		return fmt.Errorf("%w: entity %s references %s, not %s", ErrInvalidBindingRef, e.id, ref.BindingID, b.ID())
	}
	if current := e.Binding(); current != nil && current != b {
		return fmt.Errorf("%w: %s", ErrAlreadyBound, e.id)
	}

	if err := b.Attach(ref.Index, e); err != nil {
		return fmt.Errorf("attaching %s to %s: %w", e.id, ref, err)
	}
	e.attach(b)

	r.logger.Debug("entity bound", "entity_id", e.id, "binding_id", b.ID(), "index", ref.Index)
	return nil
}

// SetAttribute sets an attribute on the entity with the given ID.
func (r *Registry) SetAttribute(id, name, value string) error {
	e, err := r.Get(id)
	if err != nil {
		return err
	}
	e.SetAttribute(name, value)
	return nil
}

// RemoveAttribute removes an attribute from the entity with the given ID.
func (r *Registry) RemoveAttribute(id, name string) error {
	e, err := r.Get(id)
	if err != nil {
		return err
	}
	e.RemoveAttribute(name)
	return nil
}

// SetStyle sets a style property on the entity with the given ID.
func (r *Registry) SetStyle(id, property, value string) error {
	e, err := r.Get(id)
	if err != nil {
		return err
	}
	e.SetStyle(property, value)
	return nil
}
