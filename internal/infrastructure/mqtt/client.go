package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-bindings/internal/infrastructure/config"
)

// Client is the bindings service's connection to the MQTT bus.
//
// It keeps a route table of subscribed topics so the hub's command handler
// is re-attached after every reconnect, and it announces the service on the
// retained system status topic. All methods are safe for concurrent use.
type Client struct {
	paho pahomqtt.Client
	cfg  config.MQTTConfig

	routesMu sync.Mutex
	routes   map[string]route

	connected atomic.Bool

	hooksMu sync.RWMutex
	hooks   hooks
}

// hooks are the optional observers attached after Connect.
type hooks struct {
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger
}

// Logger is satisfied by logging.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler receives messages for a subscribed topic. A returned
// error is logged; it does not affect delivery.
type MessageHandler func(topic string, payload []byte) error

// Connect dials the broker described by cfg and waits for the first
// connection. The broker's last will marks the service offline if the
// process dies without calling Close.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	c := &Client{
		cfg:    cfg,
		routes: make(map[string]route),
	}

	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.onConnected() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.onConnectionLost(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.logWarn("MQTT reconnecting",
			"client_id", cfg.Broker.ClientID,
			"routes", c.routeCount(),
		)
	})

	c.paho = pahomqtt.NewClient(opts)
	if err := await(c.paho.Connect(), defaultConnectTimeout, ErrConnectionFailed); err != nil {
		return nil, err
	}

	// The OnConnect handler runs on its own goroutine and may not have
	// fired yet.
	c.connected.Store(true)
	return c, nil
}

// await blocks on a paho token and wraps any failure in sentinel.
func await(token pahomqtt.Token, timeout time.Duration, sentinel error) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: %w after %v", sentinel, ErrTimeout, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}

func (c *Client) onConnected() {
	c.connected.Store(true)
	c.restoreRoutes()
	c.paho.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, buildOnlinePayload(c.cfg.Broker.ClientID))

	if fn := c.currentHooks().onConnect; fn != nil {
		fn()
	}
}

func (c *Client) onConnectionLost(err error) {
	c.connected.Store(false)
	c.logWarn("MQTT connection lost", "client_id", c.cfg.Broker.ClientID, "error", err)

	if fn := c.currentHooks().onDisconnect; fn != nil {
		fn(err)
	}
}

// Close publishes a graceful offline status, then disconnects. It is a
// no-op on a client that never connected.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.paho.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, buildOfflinePayload(c.cfg.Broker.ClientID))
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.paho.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)
	return nil
}

// HealthCheck returns ErrNotConnected while the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the broker link is up.
func (c *Client) IsConnected() bool {
	return c.paho != nil && c.connected.Load() && c.paho.IsConnected()
}

// SetOnConnect registers fn to run after every successful (re)connect.
func (c *Client) SetOnConnect(fn func()) {
	c.hooksMu.Lock()
	c.hooks.onConnect = fn
	c.hooksMu.Unlock()
}

// SetOnDisconnect registers fn to run when the connection drops.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.hooksMu.Lock()
	c.hooks.onDisconnect = fn
	c.hooksMu.Unlock()
}

// SetLogger attaches a logger for handler failures and reconnect noise.
func (c *Client) SetLogger(logger Logger) {
	c.hooksMu.Lock()
	c.hooks.logger = logger
	c.hooksMu.Unlock()
}

func (c *Client) currentHooks() hooks {
	c.hooksMu.RLock()
	defer c.hooksMu.RUnlock()
	return c.hooks
}

func (c *Client) logWarn(msg string, args ...any) {
	if logger := c.currentHooks().logger; logger != nil {
		logger.Warn(msg, args...)
	}
}

func (c *Client) logError(msg string, args ...any) {
	if logger := c.currentHooks().logger; logger != nil {
		logger.Error(msg, args...)
	}
}
