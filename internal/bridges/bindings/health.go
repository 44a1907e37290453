package bindings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-bindings/internal/infrastructure/mqtt"
)

const defaultHealthReportInterval = 30 * time.Second

// HealthReporter manages periodic health status reporting.
// It publishes health messages to MQTT at regular intervals.
type HealthReporter struct {
	hubID     string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	transport DeviceTransport
	bindings  func() []BindingStatus
	entities  func() int

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	// PublishJSON encodes v and sends it to a topic with the specified QoS
	// and retention.
	PublishJSON(topic string, v any, qos byte, retained bool) error

	// IsConnected returns true if the publisher is connected.
	IsConnected() bool
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	HubID   string
	Version string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	Publisher HealthPublisher

	// Transport provides device server statistics. Optional.
	Transport DeviceTransport

	// Bindings and Entities report what the hub manages. Optional.
	Bindings func() []BindingStatus
	Entities func() int
}

// NewHealthReporter creates a new health reporter.
// Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthReportInterval
	}

	return &HealthReporter{
		hubID:     cfg.HubID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		transport: cfg.Transport,
		bindings:  cfg.Bindings,
		entities:  cfg.Entities,
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop stops health reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publish(h.Snapshot(HealthStopping, "hub stopping"))
	})
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publish(h.Snapshot(HealthStarting, "hub starting"))
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	return h.publish(h.Current())
}

// Current evaluates and returns the current health message without
// publishing it.
func (h *HealthReporter) Current() HealthMessage {
	status, reason := h.determineStatus()
	return h.Snapshot(status, reason)
}

// Snapshot builds a health message with the given status.
func (h *HealthReporter) Snapshot(status HealthStatus, reason string) HealthMessage {
	msg := NewHealthMessage(h.hubID, h.version, status, h.startTime)
	msg.Reason = reason

	if h.transport != nil {
		msg.DeviceServer = connectionStatusFrom(h.transport.Stats())
	}

	for _, b := range h.bindingStatuses() {
		msg.Bindings.Total++
		if b.Active {
			msg.Bindings.Active++
			continue
		}
		if b.Error != "" {
			msg.Bindings.Inert++
			msg.Inert = append(msg.Inert, b)
		}
	}

	if h.entities != nil {
		msg.EntitiesManaged = h.entities()
	}
	return msg
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// determineStatus evaluates the current hub status.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}

	if h.transport == nil || !h.transport.IsReady() {
		return HealthDegraded, "device server disconnected"
	}

	inert := 0
	for _, b := range h.bindingStatuses() {
		if !b.Active && b.Error != "" {
			inert++
		}
	}
	if inert > 0 {
		return HealthDegraded, fmt.Sprintf("%d binding(s) inert", inert)
	}

	return HealthHealthy, ""
}

func (h *HealthReporter) bindingStatuses() []BindingStatus {
	if h.bindings == nil {
		return nil
	}
	return h.bindings()
}

// publish sends msg on the retained health topic.
func (h *HealthReporter) publish(msg HealthMessage) error {
	if h.publisher == nil {
		return nil
	}

	return h.publisher.PublishJSON(mqtt.Topics{}.BindingHealth(), msg, 1, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
