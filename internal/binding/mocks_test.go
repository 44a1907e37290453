package binding

import (
	"fmt"
	"sync"
)

// mockTransport records subscriptions and writes.
type mockTransport struct {
	mu         sync.Mutex
	ready      bool
	writes     []string
	readers    map[string]Reader
	writeErr   error
	subscribeN int
}

func newMockTransport(ready bool) *mockTransport {
	return &mockTransport{ready: ready, readers: make(map[string]Reader)}
}

func (m *mockTransport) SubscribeRead(location string, r Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readers[location] = r
	m.subscribeN++
	return nil
}

func (m *mockTransport) Write(_ string, data string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes = append(m.writes, data)
	return nil
}

func (m *mockTransport) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *mockTransport) setReady(ready bool) {
	m.mu.Lock()
	m.ready = ready
	m.mu.Unlock()
}

func (m *mockTransport) written() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.writes...)
}

func (m *mockTransport) subscriptions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribeN
}

// mockTarget is an entity stand-in. When binding is set, attribute
// mutations are reported back to it the way the entity layer does.
type mockTarget struct {
	id string

	mu        sync.Mutex
	attrs     map[string]string
	events    []Event
	mutations int

	binding Binding
	index   int
}

func newMockTarget(id string) *mockTarget {
	return &mockTarget{id: id, attrs: make(map[string]string)}
}

func (t *mockTarget) ID() string { return t.id }

func (t *mockTarget) Attribute(name string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.attrs[name]
	return v, ok
}

func (t *mockTarget) SetAttribute(name, value string) {
	t.mu.Lock()
	t.attrs[name] = value
	t.mutations++
	b := t.binding
	t.mu.Unlock()
	if b != nil {
		b.AttributeChanged(t.index, t, name, value)
	}
}

func (t *mockTarget) RemoveAttribute(name string) {
	t.mu.Lock()
	delete(t.attrs, name)
	t.mutations++
	b := t.binding
	t.mu.Unlock()
	if b != nil {
		b.AttributeChanged(t.index, t, name, "")
	}
}

func (t *mockTarget) Dispatch(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ev)
}

func (t *mockTarget) eventNames() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.events))
	for _, ev := range t.events {
		names = append(names, ev.Name)
	}
	return names
}

func (t *mockTarget) lastEvent() (Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.events) == 0 {
		return Event{}, false
	}
	return t.events[len(t.events)-1], true
}

func (t *mockTarget) mutationCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mutations
}

// observe attaches the target to b at index and routes attribute changes
// back into b.
func (t *mockTarget) observe(b Binding, index int) error {
	t.mu.Lock()
	t.binding = b
	t.index = index
	t.mu.Unlock()
	return b.Attach(index, t)
}

// mockLogger records messages per level.
type mockLogger struct {
	mu     sync.Mutex
	debugs []string
	infos  []string
	warns  []string
	errors []string
}

func (l *mockLogger) Debug(msg string, _ ...any) { l.add(&l.debugs, msg) }
func (l *mockLogger) Info(msg string, _ ...any)  { l.add(&l.infos, msg) }
func (l *mockLogger) Warn(msg string, _ ...any)  { l.add(&l.warns, msg) }
func (l *mockLogger) Error(msg string, kv ...any) {
	l.add(&l.errors, fmt.Sprint(append([]any{msg}, kv...)...))
}

func (l *mockLogger) add(dst *[]string, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*dst = append(*dst, msg)
}

func (l *mockLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

func (l *mockLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

func (l *mockLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}
