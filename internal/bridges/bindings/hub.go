package bindings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-bindings/internal/bdcom"
	"github.com/nerrad567/gray-logic-bindings/internal/binding"
	"github.com/nerrad567/gray-logic-bindings/internal/entity"
	"github.com/nerrad567/gray-logic-bindings/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-bindings/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-bindings/internal/journal"
)

const (
	defaultConcurrency = 4
	recordQueueSize    = 256
	recordTimeout      = 5 * time.Second
	pruneInterval      = time.Hour

	// Broadcast channels for live subscribers.
	ChannelBindingEvent = "binding.event"
	ChannelEntityChange = "entity.change"
)

// MQTTClient is the subset of the MQTT client the hub needs.
type MQTTClient interface {
	PublishJSON(topic string, v any, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// DeviceTransport is the device server connection shared by all bindings.
type DeviceTransport interface {
	binding.Transport
	Stats() bdcom.Stats
}

// TelemetryWriter receives time-series points for events and writes.
type TelemetryWriter interface {
	WriteBindingEvent(ev influxdb.BindingEvent)
	WriteDeviceWrite(bindingID, location string, size int, at time.Time)
	WriteVideoTime(bindingID, entityID string, seconds float64, at time.Time)
}

// Broadcaster pushes payloads to live subscribers on a named channel.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Logger defines the logging interface used by the hub.
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

// Options configures a Hub.
type Options struct {
	// Config is the loaded declaration file. Required.
	Config *Config

	// Transport is the device server connection. Required.
	Transport DeviceTransport

	// Registry receives the declared entities. Created when nil.
	Registry *entity.Registry

	// MQTT, Journal, Telemetry and Broadcaster are optional sinks.
	MQTT        MQTTClient
	Journal     journal.Store
	Telemetry   TelemetryWriter
	Broadcaster Broadcaster

	Logger  Logger
	Version string

	// Concurrency bounds parallel binding activation. Default: 4.
	Concurrency int

	// JournalRetention prunes journal entries older than this. 0 keeps
	// everything.
	JournalRetention time.Duration
}

// managedBinding is one declared binding and its activation outcome.
type managedBinding struct {
	key     string
	cfg     BindingConfig
	binding binding.Binding

	mu  sync.RWMutex
	err error
}

func (m *managedBinding) setErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *managedBinding) status() BindingStatus {
	m.mu.RLock()
	err := m.err
	m.mu.RUnlock()

	s := BindingStatus{
		ID:       m.key,
		Flavor:   m.cfg.Flavor,
		Location: m.cfg.Location,
	}
	if err != nil {
		s.Error = err.Error()
	}
	if m.binding == nil {
		return s
	}

	s.Direction = m.binding.Flavor().Direction()
	s.Active = m.binding.Active()
	if targets := m.binding.Targets(); len(targets) > 0 {
		s.Channels = make(map[int]string, len(targets))
		for idx, t := range targets {
			s.Channels[idx] = t.ID()
		}
	}
	return s
}

// Hub owns the configured bindings and the entities attached to them.
type Hub struct {
	cfg         *Config
	transport   DeviceTransport
	registry    *entity.Registry
	mqtt        MQTTClient
	journal     journal.Store
	telemetry   TelemetryWriter
	broadcaster Broadcaster
	logger      Logger
	health      *HealthReporter
	concurrency int
	retention   time.Duration

	mu       sync.RWMutex
	bindings map[string]*managedBinding
	order    []*managedBinding
	running  bool

	// queueMu orders enqueue sends against Stop closing the queue, so
	// every accepted entry is in records before recordLoop drains.
	queueMu     sync.RWMutex
	queueClosed bool
	records     chan journal.Entry

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHub creates a hub. Call Start to build and activate the bindings.
func NewHub(opts Options) (*Hub, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Transport == nil {
		return nil, errors.New("transport is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	registry := opts.Registry
	if registry == nil {
		registry = entity.NewRegistry()
	}
	registry.SetLogger(logger)

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	h := &Hub{
		cfg:         opts.Config,
		transport:   opts.Transport,
		registry:    registry,
		mqtt:        opts.MQTT,
		journal:     opts.Journal,
		telemetry:   opts.Telemetry,
		broadcaster: opts.Broadcaster,
		logger:      logger,
		concurrency: concurrency,
		retention:   opts.JournalRetention,
		bindings:    make(map[string]*managedBinding),
		records:     make(chan journal.Entry, recordQueueSize),
		done:        make(chan struct{}),
	}

	var publisher HealthPublisher
	if opts.MQTT != nil {
		publisher = opts.MQTT
	}
	h.health = NewHealthReporter(HealthReporterConfig{
		HubID:     opts.Config.Hub.ID,
		Version:   opts.Version,
		Interval:  opts.Config.GetHealthInterval(),
		Publisher: publisher,
		Transport: opts.Transport,
		Bindings:  h.Bindings,
		Entities:  func() int { return len(h.registry.List()) },
	})
	h.health.SetLogger(logger)

	return h, nil
}

// Start builds every declared binding, creates and attaches the entities,
// activates the bindings and subscribes to entity commands.
//
// Bindings that fail to build or activate stay inert and are reported in
// Bindings and health; they never fail Start. Start returns an error only
// when ctx is cancelled during activation or the command subscription
// fails.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	if err := h.health.PublishStarting(); err != nil {
		h.logger.Warn("failed to publish starting status", "error", err)
	}

	h.wg.Add(1)
	go h.recordLoop()

	h.buildBindings()
	h.createEntities()

	if err := h.activateAll(ctx); err != nil {
		return fmt.Errorf("activating bindings: %w", err)
	}

	if h.mqtt != nil {
		if err := h.mqtt.Subscribe(mqtt.Topics{}.AllBindingCommands(), 1, h.handleMQTTMessage); err != nil {
			return fmt.Errorf("subscribing to commands: %w", err)
		}
	}

	if h.journal != nil && h.retention > 0 {
		h.wg.Add(1)
		go h.pruneLoop(ctx)
	}

	h.health.Start(ctx)

	counts := h.health.Current().Bindings
	h.logger.Info("binding hub started",
		"hub_id", h.cfg.Hub.ID,
		"bindings", counts.Total,
		"active", counts.Active,
		"inert", counts.Inert,
	)
	return nil
}

// Stop unsubscribes, closes every binding and drains pending journal
// records. Safe to call multiple times.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		if h.mqtt != nil {
			if err := h.mqtt.Unsubscribe(mqtt.Topics{}.AllBindingCommands()); err != nil {
				h.logger.Debug("unsubscribe commands failed", "error", err)
			}
		}

		h.mu.RLock()
		order := append([]*managedBinding(nil), h.order...)
		h.mu.RUnlock()
		for _, m := range order {
			if m.binding == nil {
				continue
			}
			if err := m.binding.Close(); err != nil {
				h.logger.Warn("closing binding failed", "binding_id", m.key, "error", err)
			}
		}

		h.queueMu.Lock()
		h.queueClosed = true
		h.queueMu.Unlock()

		close(h.done)
		h.wg.Wait()
		h.health.Stop()

		h.mu.Lock()
		h.running = false
		h.mu.Unlock()

		h.logger.Info("binding hub stopped", "hub_id", h.cfg.Hub.ID)
	})
}

// Registry returns the entity registry.
func (h *Hub) Registry() *entity.Registry {
	return h.registry
}

// Health returns the current health message.
func (h *Hub) Health() HealthMessage {
	return h.health.Current()
}

// Bindings returns the status of every declared binding in declaration
// order.
func (h *Hub) Bindings() []BindingStatus {
	h.mu.RLock()
	order := append([]*managedBinding(nil), h.order...)
	h.mu.RUnlock()

	out := make([]BindingStatus, 0, len(order))
	for _, m := range order {
		out = append(out, m.status())
	}
	return out
}

// Binding returns the status of one binding.
func (h *Hub) Binding(id string) (BindingStatus, error) {
	h.mu.RLock()
	m, ok := h.bindings[id]
	h.mu.RUnlock()
	if !ok {
		return BindingStatus{}, fmt.Errorf("%w: %s", ErrBindingNotFound, id)
	}
	return m.status(), nil
}

// buildBindings creates a binding for every declaration. Declarations
// without an ID are keyed by position so they can still be reported.
func (h *Hub) buildBindings() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, bc := range h.cfg.Bindings {
		key := bc.ID
		if key == "" {
			key = fmt.Sprintf("bindings[%d]", i)
		}
		m := &managedBinding{key: key, cfg: bc}

		b, err := binding.New(bc.ToBindingConfig(), binding.Deps{
			Transport: &recordingTransport{Transport: h.transport, hub: h, bindingID: key},
			Logger:    h.logger,
		})
		if err != nil {
			m.err = fmt.Errorf("%w: %w", binding.ErrInvalidConfig, err)
			h.logger.Error("binding refused to build", "binding_id", key, "flavor", bc.Flavor, "error", err)
		}
		m.binding = b

		h.bindings[key] = m
		h.order = append(h.order, m)
	}
}

// createEntities registers the declared entities and binds them.
func (h *Hub) createEntities() {
	for _, ec := range h.cfg.Entities {
		e, err := h.registry.Create(ec)
		if err != nil {
			h.logger.Error("entity create failed", "entity_id", ec.ID, "error", err)
			continue
		}
		e.Watch(h.handleChange)

		ref, ok := e.BindingRef()
		if !ok {
			continue
		}

		h.mu.RLock()
		m := h.bindings[ref.BindingID]
		h.mu.RUnlock()
		if m == nil || m.binding == nil {
			h.logger.Warn("entity references unusable binding", "entity_id", e.ID(), "binding", ref.String())
			continue
		}

		entityID := e.ID()
		e.On(entity.AllEvents, func(ev binding.Event) {
			h.handleEvent(entityID, m, ev)
		})
		if err := h.registry.Bind(e, m.binding); err != nil {
			h.logger.Error("entity bind failed", "entity_id", entityID, "error", err)
		}
	}
}

// activateAll activates every built binding with bounded parallelism.
func (h *Hub) activateAll(ctx context.Context) error {
	h.mu.RLock()
	order := append([]*managedBinding(nil), h.order...)
	h.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)

	for _, m := range order {
		if m.binding == nil {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := m.binding.Activate(); err != nil {
				m.setErr(err)
				return nil
			}
			h.logger.Debug("binding activated", "binding_id", m.key, "flavor", m.cfg.Flavor)
			return nil
		})
	}
	return g.Wait()
}

// handleEvent fans a binding event out to the bus, the journal, telemetry
// and live subscribers. Entity listeners have already run by the time
// AllEvents listeners are called.
func (h *Hub) handleEvent(entityID string, m *managedBinding, ev binding.Event) {
	now := time.Now().UTC()
	msg := NewStateMessage(entityID, ev)
	msg.Timestamp = now

	if h.mqtt != nil {
		if err := h.mqtt.PublishJSON(mqtt.Topics{}.BindingState(entityID), msg, 1, true); err != nil {
			h.logger.Warn("publish state failed", "entity_id", entityID, "event", ev.Name, "error", err)
		}
	}

	detail := map[string]any{"channel": ev.Channel}
	if ev.Value != nil {
		detail["value"] = ev.Value
	}
	h.enqueue(journal.Entry{
		Kind:      journal.KindEvent,
		BindingID: ev.BindingID,
		EntityID:  entityID,
		Name:      ev.Name,
		Detail:    detail,
		At:        now,
	})

	if h.telemetry != nil {
		h.telemetry.WriteBindingEvent(influxdb.BindingEvent{
			BindingID: ev.BindingID,
			Flavor:    m.cfg.Flavor,
			EntityID:  entityID,
			Event:     ev.Name,
			Channel:   ev.Channel,
			Time:      now,
		})
		if seconds, ok := ev.Value.(float64); ok && ev.Name == binding.EventTimeUpdate {
			h.telemetry.WriteVideoTime(ev.BindingID, entityID, seconds, now)
		}
	}

	if h.broadcaster != nil {
		h.broadcaster.Broadcast(ChannelBindingEvent, msg)
	}
}

// handleChange pushes entity attribute and style changes to live
// subscribers.
func (h *Hub) handleChange(c entity.Change) {
	if h.broadcaster != nil {
		h.broadcaster.Broadcast(ChannelEntityChange, c)
	}
}

// recordWrite journals a payload the transport accepted.
func (h *Hub) recordWrite(bindingID, location, data string) {
	now := time.Now().UTC()
	h.enqueue(journal.Entry{
		Kind:      journal.KindWrite,
		BindingID: bindingID,
		Name:      "write",
		Detail:    map[string]any{"location": location, "data": data},
		At:        now,
	})
	if h.telemetry != nil {
		h.telemetry.WriteDeviceWrite(bindingID, location, len(data), now)
	}
}

// enqueue hands an entry to the record loop without blocking the binding.
// It reports whether the entry was queued; entries are dropped once Stop
// has begun or while the queue is full.
func (h *Hub) enqueue(e journal.Entry) bool {
	if h.journal == nil {
		return false
	}

	h.queueMu.RLock()
	defer h.queueMu.RUnlock()
	if h.queueClosed {
		return false
	}
	select {
	case h.records <- e:
		return true
	default:
		h.logger.Warn("journal queue full, entry dropped",
			"binding_id", e.BindingID,
			"name", e.Name,
			"queue_size", recordQueueSize,
		)
		return false
	}
}

// recordLoop writes queued entries to the journal until Stop, then drains
// what is left.
func (h *Hub) recordLoop() {
	defer h.wg.Done()
	for {
		select {
		case e := <-h.records:
			h.record(e)
		case <-h.done:
			for {
				select {
				case e := <-h.records:
					h.record(e)
				default:
					return
				}
			}
		}
	}
}

func (h *Hub) record(e journal.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if _, err := h.journal.RecordEvent(ctx, e); err != nil {
		h.logger.Error("journal write failed", "binding_id", e.BindingID, "name", e.Name, "error", err)
	}
}

// pruneLoop removes journal entries older than the retention period.
func (h *Hub) pruneLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	h.prune(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			h.prune(ctx)
		}
	}
}

func (h *Hub) prune(ctx context.Context) {
	n, err := h.journal.PruneEvents(ctx, h.retention)
	if err != nil {
		h.logger.Error("journal prune failed", "error", err)
		return
	}
	if n > 0 {
		h.logger.Info("journal pruned", "removed", n, "retention", h.retention.String())
	}
}

// recordingTransport journals every write a binding makes.
type recordingTransport struct {
	binding.Transport
	hub       *Hub
	bindingID string
}

// Write forwards to the device server and journals accepted payloads.
func (t *recordingTransport) Write(location string, data string) error {
	if err := t.Transport.Write(location, data); err != nil {
		return err
	}
	t.hub.recordWrite(t.bindingID, location, data)
	return nil
}
