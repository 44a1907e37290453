package entity

import (
	"maps"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-bindings/internal/binding"
)

// AllEvents registers a listener for every event name.
const AllEvents = "*"

// Listener receives events raised on an entity.
type Listener func(ev binding.Event)

// ChangeKind distinguishes attribute changes from style changes.
type ChangeKind string

// Change kinds.
const (
	ChangeAttribute ChangeKind = "attribute"
	ChangeStyle     ChangeKind = "style"
)

// Change describes one attribute or style mutation.
type Change struct {
	EntityID  string     `json:"entity_id"`
	BindingID string     `json:"binding_id,omitempty"`
	Kind      ChangeKind `json:"kind"`
	Name      string     `json:"name"`
	Value     string     `json:"value,omitempty"`
	Removed   bool       `json:"removed,omitempty"`
	At        time.Time  `json:"at"`
}

// Watcher observes attribute and style changes.
type Watcher func(c Change)

// Config declares an entity.
type Config struct {
	ID         string            `yaml:"id" json:"id"`
	Kind       string            `yaml:"kind" json:"kind,omitempty"`
	Binding    string            `yaml:"binding" json:"binding,omitempty"`
	Attributes map[string]string `yaml:"attributes" json:"attributes,omitempty"`
	Style      map[string]string `yaml:"style" json:"style,omitempty"`
}

// State is a point-in-time copy of an entity.
type State struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind,omitempty"`
	Binding    string            `json:"binding,omitempty"`
	Attributes map[string]string `json:"attributes"`
	Style      map[string]string `json:"style"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Entity is a bound element with attributes, style properties and event
// listeners. It satisfies binding.Target.
type Entity struct {
	id   string
	kind string
	ref  *BindingRef

	mu        sync.RWMutex
	attrs     map[string]string
	style     map[string]string
	listeners map[string][]Listener
	watchers  []Watcher
	binding   binding.Binding
	updatedAt time.Time
}

var _ binding.Target = (*Entity)(nil)

// New creates an unbound entity from cfg.
func New(cfg Config) (*Entity, error) {
	if cfg.ID == "" {
		return nil, ErrInvalidEntity
	}
	e := &Entity{
		id:        cfg.ID,
		kind:      cfg.Kind,
		attrs:     make(map[string]string, len(cfg.Attributes)),
		style:     make(map[string]string, len(cfg.Style)),
		listeners: make(map[string][]Listener),
		updatedAt: time.Now(),
	}
	maps.Copy(e.attrs, cfg.Attributes)
	maps.Copy(e.style, cfg.Style)

	if cfg.Binding != "" {
		ref, err := ParseBindingRef(cfg.Binding)
		if err != nil {
			return nil, err
		}
		e.ref = &ref
	}
	return e, nil
}

// ID returns the entity identifier.
func (e *Entity) ID() string { return e.id }

// Kind returns the free-form entity kind ("door", "video", ...).
func (e *Entity) Kind() string { return e.kind }

// BindingRef returns the configured binding reference, if any.
func (e *Entity) BindingRef() (BindingRef, bool) {
	if e.ref == nil {
		return BindingRef{}, false
	}
	return *e.ref, true
}

// Binding returns the binding this entity is attached to, or nil.
func (e *Entity) Binding() binding.Binding {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.binding
}

// Attribute returns an attribute value and whether it is present.
func (e *Entity) Attribute(name string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.attrs[name]
	return v, ok
}

// Style returns a style property value and whether it is set.
func (e *Entity) Style(property string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.style[property]
	return v, ok
}

// SetAttribute sets an attribute and notifies the bound binding. Like a
// DOM attribute, setting the current value still notifies.
func (e *Entity) SetAttribute(name, value string) {
	e.mu.Lock()
	e.attrs[name] = value
	e.updatedAt = time.Now()
	b, index := e.bound()
	e.mu.Unlock()

	e.notify(Change{EntityID: e.id, Kind: ChangeAttribute, Name: name, Value: value})
	if b != nil {
		b.AttributeChanged(index, e, name, value)
	}
}

// RemoveAttribute deletes an attribute and notifies the bound binding with
// an empty value. Removing an absent attribute does nothing.
func (e *Entity) RemoveAttribute(name string) {
	e.mu.Lock()
	if _, ok := e.attrs[name]; !ok {
		e.mu.Unlock()
		return
	}
	delete(e.attrs, name)
	e.updatedAt = time.Now()
	b, index := e.bound()
	e.mu.Unlock()

	e.notify(Change{EntityID: e.id, Kind: ChangeAttribute, Name: name, Removed: true})
	if b != nil {
		b.AttributeChanged(index, e, name, "")
	}
}

// SetStyle sets a style property and notifies the bound binding.
func (e *Entity) SetStyle(property, value string) {
	e.mu.Lock()
	e.style[property] = value
	e.updatedAt = time.Now()
	b, index := e.bound()
	e.mu.Unlock()

	e.notify(Change{EntityID: e.id, Kind: ChangeStyle, Name: property, Value: value})
	if b != nil {
		b.StyleChanged(index, e, property, value)
	}
}

// On registers l for events named name, or for every event with AllEvents.
func (e *Entity) On(name string, l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[name] = append(e.listeners[name], l)
}

// Watch registers w for attribute and style changes.
func (e *Entity) Watch(w Watcher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.watchers = append(e.watchers, w)
}

// Dispatch delivers ev to the listeners for its name, then to the
// AllEvents listeners.
func (e *Entity) Dispatch(ev binding.Event) {
	e.mu.RLock()
	named := append([]Listener(nil), e.listeners[ev.Name]...)
	all := append([]Listener(nil), e.listeners[AllEvents]...)
	e.mu.RUnlock()

	for _, l := range named {
		l(ev)
	}
	for _, l := range all {
		l(ev)
	}
}

// Snapshot returns a copy of the entity state.
func (e *Entity) Snapshot() State {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := State{
		ID:         e.id,
		Kind:       e.kind,
		Attributes: maps.Clone(e.attrs),
		Style:      maps.Clone(e.style),
		UpdatedAt:  e.updatedAt,
	}
	if e.ref != nil {
		s.Binding = e.ref.String()
	}
	return s
}

// attach records the binding that now owns this entity's channel.
func (e *Entity) attach(b binding.Binding) {
	e.mu.Lock()
	e.binding = b
	e.mu.Unlock()
}

// bound returns the binding and channel index. Caller holds e.mu.
func (e *Entity) bound() (binding.Binding, int) {
	if e.binding == nil || e.ref == nil {
		return nil, 0
	}
	return e.binding, e.ref.Index
}

func (e *Entity) notify(c Change) {
	c.At = time.Now()
	if e.ref != nil {
		c.BindingID = e.ref.BindingID
	}

	e.mu.RLock()
	watchers := append([]Watcher(nil), e.watchers...)
	e.mu.RUnlock()

	for _, w := range watchers {
		w(c)
	}
}
