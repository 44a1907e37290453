package bindings

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-bindings/internal/bdcom"
	"github.com/nerrad567/gray-logic-bindings/internal/binding"
	"github.com/nerrad567/gray-logic-bindings/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-bindings/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-bindings/internal/journal"
)

// mockMQTT records publishes and keeps subscription handlers so tests can
// inject messages.
type mockMQTT struct {
	mu        sync.Mutex
	connected bool
	published []publishedMessage
	handlers  map[string]mqtt.MessageHandler
}

type publishedMessage struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func newMockMQTT() *mockMQTT {
	return &mockMQTT{connected: true, handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockMQTT) PublishJSON(topic string, v any, qos byte, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, publishedMessage{topic, payload, qos, retained})
	return nil
}

func (m *mockMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTT) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	return nil
}

func (m *mockMQTT) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// deliver simulates a message arriving on a subscribed wildcard topic.
func (m *mockMQTT) deliver(topic string, payload []byte) error {
	m.mu.Lock()
	handler := m.handlers[mqtt.Topics{}.AllBindingCommands()]
	m.mu.Unlock()
	if handler == nil {
		return nil
	}
	return handler(topic, payload)
}

func (m *mockMQTT) messages(topic string) []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []publishedMessage
	for _, p := range m.published {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (m *mockMQTT) subscribed(topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handlers[topic]
	return ok
}

// fakeTransport stands in for the bdcom client.
type fakeTransport struct {
	mu      sync.Mutex
	ready   bool
	readers map[string][]binding.Reader
	writes  []deviceWrite
}

type deviceWrite struct {
	Location string
	Data     string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{ready: true, readers: make(map[string][]binding.Reader)}
}

func (t *fakeTransport) SubscribeRead(location string, r binding.Reader) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readers[location] = append(t.readers[location], r)
	return nil
}

func (t *fakeTransport) Write(location string, data string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes = append(t.writes, deviceWrite{location, data})
	return nil
}

func (t *fakeTransport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ready
}

func (t *fakeTransport) Stats() bdcom.Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	subs := 0
	for _, rs := range t.readers {
		subs += len(rs)
	}
	return bdcom.Stats{Connected: t.ready, Subscriptions: subs}
}

func (t *fakeTransport) feed(location, data string) {
	t.mu.Lock()
	readers := append([]binding.Reader(nil), t.readers[location]...)
	t.mu.Unlock()
	for _, r := range readers {
		r.OnData([]byte(data), nil)
	}
}

func (t *fakeTransport) writesTo(location string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, w := range t.writes {
		if w.Location == location {
			out = append(out, w.Data)
		}
	}
	return out
}

// memJournal is an in-memory journal.Store.
type memJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
	prunes  []time.Duration
}

func (j *memJournal) RecordEvent(_ context.Context, e journal.Entry) (journal.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return e, nil
}

func (j *memJournal) GetEvents(_ context.Context, entityID string, _ int) ([]journal.Entry, error) {
	return j.filter(func(e journal.Entry) bool { return e.EntityID == entityID }), nil
}

func (j *memJournal) GetBindingEvents(_ context.Context, bindingID string, _ int) ([]journal.Entry, error) {
	return j.filter(func(e journal.Entry) bool { return e.BindingID == bindingID }), nil
}

func (j *memJournal) PruneEvents(_ context.Context, olderThan time.Duration) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.prunes = append(j.prunes, olderThan)
	return 0, nil
}

func (j *memJournal) all() []journal.Entry {
	return j.filter(func(journal.Entry) bool { return true })
}

func (j *memJournal) pruneCalls() []time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]time.Duration(nil), j.prunes...)
}

// blockingJournal parks every RecordEvent until release is closed, so the
// record loop stalls and the queue behind it fills.
type blockingJournal struct {
	memJournal
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingJournal() *blockingJournal {
	return &blockingJournal{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (j *blockingJournal) unblock() {
	j.once.Do(func() { close(j.release) })
}

func (j *blockingJournal) RecordEvent(ctx context.Context, e journal.Entry) (journal.Entry, error) {
	select {
	case j.entered <- struct{}{}:
	default:
	}
	<-j.release
	return j.memJournal.RecordEvent(ctx, e)
}

func (j *memJournal) filter(keep func(journal.Entry) bool) []journal.Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []journal.Entry
	for _, e := range j.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// recordingTelemetry captures telemetry calls.
type recordingTelemetry struct {
	mu     sync.Mutex
	events []influxdb.BindingEvent
	writes int
	times  []float64
}

func (r *recordingTelemetry) WriteBindingEvent(ev influxdb.BindingEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingTelemetry) WriteDeviceWrite(_, _ string, _ int, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
}

func (r *recordingTelemetry) WriteVideoTime(_, _ string, seconds float64, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.times = append(r.times, seconds)
}

func (r *recordingTelemetry) eventNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Event)
	}
	return out
}

// recordingBroadcaster captures broadcasts.
type recordingBroadcaster struct {
	mu       sync.Mutex
	channels []string
	payloads []any
}

func (b *recordingBroadcaster) Broadcast(channel string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels = append(b.channels, channel)
	b.payloads = append(b.payloads, payload)
}

func (b *recordingBroadcaster) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.channels {
		if c == channel {
			n++
		}
	}
	return n
}

// recordingLogger captures log messages by level.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level string
	msg   string
}

func (l *recordingLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level, msg})
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.log("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.log("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.log("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.log("error", msg) }

// count returns how many times msg was logged at level.
func (l *recordingLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			n++
		}
	}
	return n
}
