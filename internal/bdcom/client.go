package bdcom

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-bindings/internal/binding"
	"github.com/nerrad567/gray-logic-bindings/internal/infrastructure/config"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultWriteTimeout      = 5 * time.Second
	defaultReconnectInterval = time.Second
	maxReconnectInterval     = 2 * time.Minute

	// backoffFactor multiplies the reconnect delay after each failure.
	backoffFactor = 1.5

	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Config holds device server connection settings.
type Config struct {
	// URL is the websocket endpoint, e.g. "ws://localhost:8181/bdcom".
	URL string

	ConnectTimeout       time.Duration
	WriteTimeout         time.Duration
	ReconnectInterval    time.Duration
	MaxReconnectInterval time.Duration

	// Header is sent with every handshake.
	Header http.Header
}

// FromConfig converts the service configuration section.
func FromConfig(cfg config.DeviceServerConfig) Config {
	return Config{
		URL:                  cfg.URL,
		ConnectTimeout:       time.Duration(cfg.ConnectTimeout) * time.Second,
		WriteTimeout:         time.Duration(cfg.WriteTimeout) * time.Second,
		ReconnectInterval:    time.Duration(cfg.ReconnectInitialDelay) * time.Second,
		MaxReconnectInterval: time.Duration(cfg.ReconnectMaxDelay) * time.Second,
	}
}

func (c *Config) applyDefaults() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = defaultReconnectInterval
	}
	if c.MaxReconnectInterval <= 0 || c.MaxReconnectInterval > maxReconnectInterval {
		c.MaxReconnectInterval = maxReconnectInterval
	}
}

// Stats holds operational counters.
type Stats struct {
	FramesTx        uint64
	FramesRx        uint64
	ErrorsTotal     uint64
	ReconnectsTotal uint64
	Subscriptions   int
	LastActivity    time.Time
	Connected       bool
	Reconnecting    bool
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

var _ binding.Transport = (*Client)(nil)

// Client is a websocket connection to the device server.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer

	connMu    sync.RWMutex
	conn      *websocket.Conn
	connected bool

	// writeMu serialises frame writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex

	subMu sync.RWMutex
	subs  map[string][]binding.Reader

	reconnecting atomic.Bool

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	logger   Logger
	loggerMu sync.RWMutex

	framesTx        atomic.Uint64
	framesRx        atomic.Uint64
	errorsTotal     atomic.Uint64
	reconnectsTotal atomic.Uint64
	lastActivity    atomic.Int64
}

// Connect dials the device server and starts the receive loop.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	cfg.applyDefaults()

	c := &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.ConnectTimeout,
		},
		subs: make(map[string][]binding.Reader),
		done: make(chan struct{}),
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	conn, err := c.dial(dialCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	c.setConn(conn)

	c.wg.Add(2)
	go c.receiveLoop()
	go c.pingLoop()

	return c, nil
}

// SetLogger sets the logger for connection events.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	defer c.loggerMu.Unlock()
	c.logger = logger
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck // Deadline errors surface on read
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return conn, nil
}

// setConn installs conn unless Close has started, in which case conn is
// closed and false returned.
func (c *Client) setConn(conn *websocket.Conn) bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.isClosed() {
		conn.Close()
		return false
	}
	c.conn = conn
	c.connected = true
	c.lastActivity.Store(time.Now().Unix())
	return true
}

func (c *Client) currentConn() *websocket.Conn {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn
}

// IsReady reports whether the connection is up.
func (c *Client) IsReady() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// SubscribeRead registers r for data arriving from location. The first
// reader for a location sends a subscribe frame; later readers share it.
// Subscriptions made while disconnected are sent after reconnecting.
func (c *Client) SubscribeRead(location string, r binding.Reader) error {
	if location == "" {
		return ErrInvalidLocation
	}
	if r == nil {
		return fmt.Errorf("%w: nil reader", ErrInvalidLocation)
	}
	if c.isClosed() {
		return ErrClosed
	}

	c.subMu.Lock()
	first := len(c.subs[location]) == 0
	c.subs[location] = append(c.subs[location], r)
	c.subMu.Unlock()

	if !first || !c.IsReady() {
		return nil
	}
	if err := c.send(Frame{Type: FrameSubscribe, Location: location}); err != nil {
		// Restored on reconnect.
		c.logWarn("subscribe frame not sent", "location", location, "error", err)
	}
	return nil
}

// Unsubscribe removes r from location. When the last reader goes the
// device server is told to stop streaming.
func (c *Client) Unsubscribe(location string, r binding.Reader) {
	c.subMu.Lock()
	readers := c.subs[location]
	for i, existing := range readers {
		if existing == r {
			readers = append(readers[:i:i], readers[i+1:]...)
			break
		}
	}
	last := len(readers) == 0
	if last {
		delete(c.subs, location)
	} else {
		c.subs[location] = readers
	}
	c.subMu.Unlock()

	if last && c.IsReady() {
		if err := c.send(Frame{Type: FrameUnsubscribe, Location: location}); err != nil {
			c.logWarn("unsubscribe frame not sent", "location", location, "error", err)
		}
	}
}

// Write sends data to location.
func (c *Client) Write(location string, data string) error {
	if location == "" {
		return ErrInvalidLocation
	}
	if c.isClosed() {
		return ErrClosed
	}
	if !c.IsReady() {
		return ErrNotConnected
	}
	return c.send(Frame{Type: FrameWrite, Location: location, Data: []byte(data)})
}

func (c *Client) send(f Frame) error {
	conn := c.currentConn()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)) //nolint:errcheck // Deadline errors surface on write
	if err := conn.WriteJSON(f); err != nil {
		c.errorsTotal.Add(1)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	c.framesTx.Add(1)
	c.lastActivity.Store(time.Now().Unix())
	return nil
}

// receiveLoop reads frames until Close, reconnecting on failure.
func (c *Client) receiveLoop() {
	defer c.wg.Done()

	for {
		conn := c.currentConn()
		var f Frame
		err := conn.ReadJSON(&f)
		if err != nil {
			if c.isClosed() {
				return
			}
			c.handleDisconnect(err)
			if !c.reconnect() {
				return
			}
			continue
		}

		c.framesRx.Add(1)
		c.lastActivity.Store(time.Now().Unix())
		c.dispatch(f)
	}
}

// dispatch delivers one inbound frame to the readers of its location.
func (c *Client) dispatch(f Frame) {
	switch f.Type {
	case FrameData:
		for _, r := range c.readers(f.Location) {
			c.deliver(r, f.Location, f.Data, nil)
		}
	case FrameError:
		c.errorsTotal.Add(1)
		err := fmt.Errorf("%w: %s", ErrDeviceError, f.Error)
		if f.Location == "" {
			c.logWarn("device server error", "error", f.Error)
			return
		}
		for _, r := range c.readers(f.Location) {
			c.deliver(r, f.Location, nil, err)
		}
	default:
		c.logDebug("ignoring frame", "type", f.Type, "location", f.Location)
	}
}

func (c *Client) readers(location string) []binding.Reader {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return append([]binding.Reader(nil), c.subs[location]...)
}

func (c *Client) deliver(r binding.Reader, location string, data []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			c.errorsTotal.Add(1)
			c.logError("reader panic recovered", "location", location, "panic", p)
		}
	}()
	r.OnData(data, err)
}

func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.connMu.Unlock()

	c.errorsTotal.Add(1)
	if wasConnected {
		c.logWarn("device server connection lost, will attempt reconnection", "error", err)
	}
}

// reconnect redials with exponential backoff and restores subscriptions.
// It returns false when Close interrupts it.
func (c *Client) reconnect() bool {
	c.reconnecting.Store(true)
	defer c.reconnecting.Store(false)

	if old := c.currentConn(); old != nil {
		old.Close()
	}

	backoff := c.cfg.ReconnectInterval
	for attempt := 1; ; attempt++ {
		if c.isClosed() {
			return false
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
		conn, err := c.dial(ctx)
		cancel()
		if err == nil {
			if !c.setConn(conn) {
				return false
			}
			c.reconnectsTotal.Add(1)
			c.logInfo("device server reconnected", "attempt", attempt)
			c.restoreSubscriptions()
			return true
		}

		c.errorsTotal.Add(1)
		c.logWarn("device server reconnect failed", "attempt", attempt, "backoff", backoff.String(), "error", err)

		select {
		case <-c.done:
			return false
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff, c.cfg.MaxReconnectInterval)
	}
}

func nextBackoff(current, limit time.Duration) time.Duration {
	next := time.Duration(float64(current) * backoffFactor)
	if next > limit {
		return limit
	}
	return next
}

func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	locations := make([]string, 0, len(c.subs))
	for location := range c.subs {
		locations = append(locations, location)
	}
	c.subMu.RUnlock()

	for _, location := range locations {
		if err := c.send(Frame{Type: FrameSubscribe, Location: location}); err != nil {
			c.logWarn("restoring subscription failed", "location", location, "error", err)
		}
	}
}

// pingLoop keeps the connection alive and detects half-open sockets.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if !c.IsReady() {
				continue
			}
			conn := c.currentConn()
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.logDebug("ping failed", "error", err)
			}
		}
	}
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	c.subMu.RLock()
	subs := len(c.subs)
	c.subMu.RUnlock()

	return Stats{
		FramesTx:        c.framesTx.Load(),
		FramesRx:        c.framesRx.Load(),
		ErrorsTotal:     c.errorsTotal.Load(),
		ReconnectsTotal: c.reconnectsTotal.Load(),
		Subscriptions:   subs,
		LastActivity:    time.Unix(c.lastActivity.Load(), 0),
		Connected:       c.IsReady(),
		Reconnecting:    c.reconnecting.Load(),
	}
}

// HealthCheck reports ErrNotConnected while the connection is down.
func (c *Client) HealthCheck(_ context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	if !c.IsReady() {
		return ErrNotConnected
	}
	return nil
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close stops the client and waits for its goroutines. Safe to call more
// than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)

		c.connMu.Lock()
		c.connected = false
		conn := c.conn
		c.connMu.Unlock()

		if conn != nil {
			c.writeMu.Lock()
			conn.WriteControl(websocket.CloseMessage, //nolint:errcheck // Best effort close handshake
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			c.writeMu.Unlock()
			conn.Close()
		}
		c.wg.Wait()
		c.logInfo("device server connection closed")
	})
	return nil
}

func (c *Client) logDebug(msg string, kv ...any) {
	if l := c.getLogger(); l != nil {
		l.Debug(msg, kv...)
	}
}

func (c *Client) logInfo(msg string, kv ...any) {
	if l := c.getLogger(); l != nil {
		l.Info(msg, kv...)
	}
}

func (c *Client) logWarn(msg string, kv ...any) {
	if l := c.getLogger(); l != nil {
		l.Warn(msg, kv...)
	}
}

func (c *Client) logError(msg string, kv ...any) {
	if l := c.getLogger(); l != nil {
		l.Error(msg, kv...)
	}
}
