package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-switchbot/internal/bridge"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-switchbot/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-switchbot/internal/reconcile"
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

	defaultPingInterval = 30 * time.Second
	defaultPongWait     = 10 * time.Second
)

// WSMessage is the envelope for every frame in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload selects event channels and, optionally, devices.
//
// Example:
//
//	{"channels": ["device.state_changed"], "devices": ["A1B2C3D4E5F6"], "replay": true}
//
// An empty device list means every device. Replay sends the current state of
// each matching device right after the subscribe response.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
	Devices  []string `json:"devices,omitempty"`
	Replay   bool     `json:"replay,omitempty"`
}

// wsInbound is a client frame with its payload left undecoded.
type wsInbound struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hub fans bridge events out to WebSocket clients. It satisfies
// bridge.Broadcaster.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient is one connected WebSocket client.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]struct{}
	devices       map[string]struct{} // nil or empty: all devices
	mu            sync.RWMutex
	subject       string                      // token subject; empty when auth is disabled
	snapshots     func() []reconcile.Snapshot // used for replay
}

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
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "subject", client.subject, "clients", n)
}

// Unregister removes a client. Only the call that removes it closes its send
// channel, so concurrent unregister and shutdown cannot double-close.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(client.send)
		h.logger.Debug("websocket client disconnected", "subject", client.subject, "clients", n)
	}
}

// Broadcast sends an event to every client subscribed to channel and, when
// the payload names a device, interested in that device.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := encodeEvent(channel, payload)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "channel", channel, "error", err)
		return
	}
	deviceID := eventDeviceID(payload)

	// Snapshot the client list so per-client locks are never taken under the
	// hub lock.
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sent := 0
	for _, client := range clients {
		if client.wants(channel, deviceID) {
			client.trySend(data)
			sent++
		}
	}
	if sent > 0 {
		h.logger.Debug("broadcast sent", "channel", channel, "device_id", deviceID, "recipients", sent)
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

func encodeEvent(channel string, payload any) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
}

// eventDeviceID returns the device a bridge event refers to, or "".
func eventDeviceID(payload any) string {
	switch p := payload.(type) {
	case bridge.StateMessage:
		return p.DeviceID
	case *bridge.StateMessage:
		return p.DeviceID
	case bridge.FaultMessage:
		return p.DeviceID
	case *bridge.FaultMessage:
		return p.DeviceID
	}
	return ""
}

// handleWebSocket upgrades the connection. authMiddleware has already run.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	hub := s.Hub()
	client := &WSClient{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
		subject:       subjectFromContext(r.Context()),
		snapshots:     s.bridge.Snapshots,
	}
	hub.Register(client)

	keepalive := newWSKeepalive(hub.cfg)
	go client.writePump(keepalive)
	go client.readPump(keepalive)
}

// wsKeepalive holds the ping cadence derived from config.
type wsKeepalive struct {
	pingInterval time.Duration
	pongWait     time.Duration
	readLimit    int64
}

func newWSKeepalive(cfg config.WebSocketConfig) wsKeepalive {
	k := wsKeepalive{
		pingInterval: time.Duration(cfg.PingInterval) * time.Second,
		pongWait:     time.Duration(cfg.PongTimeout) * time.Second,
		readLimit:    int64(cfg.MaxMessageSize),
	}
	if k.pingInterval <= 0 {
		k.pingInterval = defaultPingInterval
	}
	if k.pongWait <= 0 {
		k.pongWait = defaultPongWait
	}
	return k
}

// readDeadline is the point by which the next frame or pong must arrive.
func (k wsKeepalive) readDeadline() time.Time {
	return time.Now().Add(k.pingInterval + k.pongWait)
}

func (c *WSClient) readPump(k wsKeepalive) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	if k.readLimit > 0 {
		c.conn.SetReadLimit(k.readLimit)
	}
	//nolint:errcheck // best-effort deadline
	c.conn.SetReadDeadline(k.readDeadline())
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(k.readDeadline())
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "subject", c.subject, "error", err)
			}
			return
		}
		// Any frame counts as liveness; some browsers never answer pings.
		//nolint:errcheck // best-effort deadline
		c.conn.SetReadDeadline(k.readDeadline())
		c.handleMessage(message)
	}
}

func (c *WSClient) writePump(k wsKeepalive) {
	ticker := time.NewTicker(k.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(messageType int, data []byte) error {
		//nolint:errcheck // write error is reported below
		c.conn.SetWriteDeadline(time.Now().Add(k.pongWait))
		return c.conn.WriteMessage(messageType, data)
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
	var msg wsInbound
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

func (c *WSClient) handleSubscribe(msg wsInbound) {
	var sub WSSubscribePayload
	if len(msg.Payload) == 0 || json.Unmarshal(msg.Payload, &sub) != nil {
		c.sendError(msg.ID, "invalid subscribe payload")
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		c.subscriptions[ch] = struct{}{}
	}
	if len(sub.Devices) > 0 {
		if c.devices == nil {
			c.devices = make(map[string]struct{}, len(sub.Devices))
		}
		for _, id := range sub.Devices {
			c.devices[id] = struct{}{}
		}
	}
	c.mu.Unlock()

	c.hub.logger.Debug("websocket client subscribed",
		"subject", c.subject,
		"channels", sub.Channels,
		"devices", sub.Devices)

	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{
		"subscribed": sub.Channels,
		"devices":    sub.Devices,
	})

	if sub.Replay && c.wantsChannel(bridge.EventStateChanged) {
		c.replay()
	}
}

func (c *WSClient) handleUnsubscribe(msg wsInbound) {
	var sub WSSubscribePayload
	if len(msg.Payload) == 0 || json.Unmarshal(msg.Payload, &sub) != nil {
		c.sendError(msg.ID, "invalid unsubscribe payload")
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		delete(c.subscriptions, ch)
	}
	for _, id := range sub.Devices {
		delete(c.devices, id)
	}
	c.mu.Unlock()

	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{
		"unsubscribed": sub.Channels,
		"devices":      sub.Devices,
	})
}

// replay sends the current state of every device the client follows as
// state events.
func (c *WSClient) replay() {
	if c.snapshots == nil {
		return
	}
	for _, snap := range c.snapshots() {
		if !c.wants(bridge.EventStateChanged, snap.DeviceID) {
			continue
		}
		data, err := encodeEvent(bridge.EventStateChanged, bridge.StateMessage{
			DeviceID:  snap.DeviceID,
			Timestamp: snap.UpdatedAt,
			State:     snap.Values,
		})
		if err != nil {
			continue
		}
		c.trySend(data)
	}
}

// trySend queues data without blocking. Full buffers drop the frame and a
// send on a channel closed by a racing unregister is absorbed.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on closed channel
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *WSClient) wantsChannel(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

// wants reports whether the client follows channel for deviceID. Events
// without a device go to every channel subscriber.
func (c *WSClient) wants(channel, deviceID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.subscriptions[channel]; !ok {
		return false
	}
	if deviceID == "" || len(c.devices) == 0 {
		return true
	}
	_, ok := c.devices[deviceID]
	return ok
}

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
