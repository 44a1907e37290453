package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-bindings/internal/bridges/bindings"
	"github.com/nerrad567/gray-logic-bindings/internal/entity"
	"github.com/nerrad567/gray-logic-bindings/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-bindings/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256
)

// liveChannels are the channels a client may subscribe to.
var liveChannels = map[string]struct{}{
	bindings.ChannelBindingEvent: {},
	bindings.ChannelEntityChange: {},
}

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload selects channels and, optionally, narrows them to
// particular entities or bindings. A subscribe replaces any earlier filter
// on the channels it names. Unsubscribe only reads Channels.
//
//	{"channels":["binding.event"],"entities":["hotelDoor"]}
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
	Entities []string `json:"entities,omitempty"`
	Bindings []string `json:"bindings,omitempty"`
}

// eventFilter narrows one channel subscription. An empty set matches
// every value.
type eventFilter struct {
	entities map[string]struct{}
	bindings map[string]struct{}
}

func newEventFilter(entities, bindingIDs []string) eventFilter {
	return eventFilter{entities: toSet(entities), bindings: toSet(bindingIDs)}
}

func (f eventFilter) matches(t eventTarget) bool {
	return inSet(f.entities, t.entityID) && inSet(f.bindings, t.bindingID)
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func inSet(set map[string]struct{}, v string) bool {
	if len(set) == 0 {
		return true
	}
	_, ok := set[v]
	return ok
}

// eventTarget is the entity and binding a broadcast concerns. Payloads of
// other types have an empty target and only reach unfiltered subscribers.
type eventTarget struct {
	entityID  string
	bindingID string
}

func targetOf(payload any) eventTarget {
	switch p := payload.(type) {
	case bindings.StateMessage:
		return eventTarget{entityID: p.EntityID, bindingID: p.BindingID}
	case *bindings.StateMessage:
		return eventTarget{entityID: p.EntityID, bindingID: p.BindingID}
	case entity.Change:
		return eventTarget{entityID: p.EntityID, bindingID: p.BindingID}
	case *entity.Change:
		return eventTarget{entityID: p.EntityID, bindingID: p.BindingID}
	default:
		return eventTarget{}
	}
}

// Hub fans binding events and entity changes out to WebSocket clients.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient is one live subscriber.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu      sync.RWMutex
	filters map[string]eventFilter
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// Unregister removes a client. Only the call that removes it from the map
// closes its send channel.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// Broadcast delivers payload to every client subscribed to channel whose
// entity and binding filters accept it. The client list is snapshotted so
// the hub lock is never held together with a client lock.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "channel", channel, "error", err)
		return
	}

	target := targetOf(payload)

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sent := 0
	for _, client := range clients {
		if client.wants(channel, target) {
			client.trySend(data)
			sent++
		}
	}
	if sent > 0 {
		h.logger.Debug("broadcast sent",
			"channel", channel,
			"entity_id", target.entityID,
			"recipients", sent,
		)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// wsTimings are the keepalive intervals derived from config.
type wsTimings struct {
	ping time.Duration
	pong time.Duration
}

func timingsFrom(cfg config.WebSocketConfig) wsTimings {
	return wsTimings{
		ping: time.Duration(cfg.PingInterval) * time.Second,
		pong: time.Duration(cfg.PongTimeout) * time.Second,
	}
}

// readDeadline is how long a connection may stay silent.
func (t wsTimings) readDeadline() time.Time {
	return time.Now().Add(t.ping + t.pong)
}

// handleWebSocket upgrades the connection. Clients start with no
// subscriptions and opt in per channel.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:     s.hub,
		conn:    conn,
		send:    make(chan []byte, wsSendBufferSize),
		filters: make(map[string]eventFilter),
	}
	s.hub.Register(client)

	timings := timingsFrom(s.wsCfg)
	go client.writePump(timings)
	go client.readPump(int64(s.wsCfg.MaxMessageSize), timings)
}

func (c *WSClient) readPump(limit int64, t wsTimings) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(limit)
	//nolint:errcheck // best-effort deadline
	c.conn.SetReadDeadline(t.readDeadline())
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(t.readDeadline())
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Browsers may not answer protocol pings; any message counts.
		//nolint:errcheck // best-effort deadline
		c.conn.SetReadDeadline(t.readDeadline())
		c.handleMessage(message)
	}
}

func (c *WSClient) writePump(t wsTimings) {
	ticker := time.NewTicker(t.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		//nolint:errcheck // write error is returned below
		c.conn.SetWriteDeadline(time.Now().Add(t.pong))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				//nolint:errcheck // best-effort close frame
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := write(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.handleSubscribe(msg)
	case WSTypeUnsubscribe:
		c.handleUnsubscribe(msg)
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// decodeSubscription re-decodes the generic payload and checks the
// channel names. On failure it has already answered the client.
func (c *WSClient) decodeSubscription(msg WSMessage) (WSSubscribePayload, bool) {
	var sub WSSubscribePayload

	raw, err := json.Marshal(msg.Payload)
	if err == nil {
		err = json.Unmarshal(raw, &sub)
	}
	if err != nil {
		c.sendError(msg.ID, "invalid "+msg.Type+" payload")
		return sub, false
	}
	if len(sub.Channels) == 0 {
		c.sendError(msg.ID, "no channels given")
		return sub, false
	}
	for _, ch := range sub.Channels {
		if _, ok := liveChannels[ch]; !ok {
			c.sendError(msg.ID, "unknown channel: "+ch)
			return sub, false
		}
	}
	return sub, true
}

func (c *WSClient) handleSubscribe(msg WSMessage) {
	sub, ok := c.decodeSubscription(msg)
	if !ok {
		return
	}

	filter := newEventFilter(sub.Entities, sub.Bindings)
	c.mu.Lock()
	for _, ch := range sub.Channels {
		c.filters[ch] = filter
	}
	c.mu.Unlock()

	c.hub.logger.Info("websocket client subscribed",
		"channels", sub.Channels,
		"entities", sub.Entities,
		"bindings", sub.Bindings,
	)

	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{
		"subscribed": sub.Channels,
		"entities":   sub.Entities,
		"bindings":   sub.Bindings,
	})
}

func (c *WSClient) handleUnsubscribe(msg WSMessage) {
	sub, ok := c.decodeSubscription(msg)
	if !ok {
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		delete(c.filters, ch)
	}
	c.mu.Unlock()

	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{
		"unsubscribed": sub.Channels,
		"remaining":    c.channels(),
	})
}

// trySend queues data without blocking. A full buffer drops the message;
// a send racing with Unregister is absorbed.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on closed channel
	}()

	select {
	case c.send <- data:
	default:
	}
}

// wants reports whether a broadcast on channel about target should reach
// this client.
func (c *WSClient) wants(channel string, target eventTarget) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	filter, ok := c.filters[channel]
	return ok && filter.matches(target)
}

// channels lists the subscribed channels in sorted order.
func (c *WSClient) channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.filters))
	for ch := range c.filters {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// sendResponse routes through trySend so a reply racing shutdown is safe.
func (c *WSClient) sendResponse(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
