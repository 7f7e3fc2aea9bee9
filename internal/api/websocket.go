package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/rcp-core/internal/infrastructure/config"
	"github.com/nerrad567/rcp-core/internal/infrastructure/logging"
	"github.com/nerrad567/rcp-core/internal/rcp"
)

// WebSocket message types.
const (
	WSTypeStatus = "status"
	WSTypePing   = "ping"
	WSTypePong   = "pong"
	WSTypeError  = "error"

	defaultSendBuffer = 64
)

// WSMessage is a frame sent to or received from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// Hub fans status snapshots out to WebSocket clients.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// WSClient is one connected stream. An empty device receives every
// snapshot; otherwise only that device's.
type WSClient struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	device string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// NewHub creates a hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run broadcasts every snapshot from updates until the channel closes or
// ctx ends, then disconnects all clients.
func (h *Hub) Run(ctx context.Context, updates <-chan rcp.Status) {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			h.Broadcast(st)
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "client_id", client.id, "device", client.device, "clients", h.ClientCount())
}

// Unregister removes a client. Only the caller that removes it closes the
// send channel.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "client_id", client.id, "clients", h.ClientCount())
}

// Broadcast sends st to every client whose filter matches.
func (h *Hub) Broadcast(st rcp.Status) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeStatus,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   st,
	})
	if err != nil {
		h.logger.Error("failed to marshal status for websocket", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.device == "" || client.device == st.ID {
			client.trySend(data)
		}
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

// handleWebSocket upgrades the connection and streams snapshots, filtered
// by the optional ?device= query parameter.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("device")
	if filter != "" {
		if _, err := s.registry.Get(filter); err != nil {
			writeNotFound(w, "device not found: "+filter)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	buffer := s.wsCfg.SendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	client := &WSClient{
		id:     uuid.NewString(),
		hub:    s.hub,
		conn:   conn,
		send:   make(chan []byte, buffer),
		device: filter,
	}
	s.hub.Register(client)

	// Current state first, so a fresh client need not wait for a change.
	for _, st := range s.registry.List() {
		if filter == "" || filter == st.ID {
			data, err := json.Marshal(WSMessage{Type: WSTypeStatus, Payload: st})
			if err == nil {
				client.trySend(data)
			}
		}
	}

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump keeps the read deadline alive and answers ping frames.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	if cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	}
	wait := liveness(cfg)
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "client_id", c.id, "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(wait))
		c.handleMessage(message)
	}
}

// writePump drains the send buffer and pings on an interval.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(pingInterval(cfg))
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := pongTimeout(cfg)
	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage answers application-level pings; the stream is read-only.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendFrame(WSMessage{Type: WSTypeError, Payload: map[string]string{"message": "invalid JSON message"}})
		return
	}
	switch msg.Type {
	case WSTypePing:
		c.sendFrame(WSMessage{Type: WSTypePong, ID: msg.ID})
	default:
		c.sendFrame(WSMessage{Type: WSTypeError, ID: msg.ID, Payload: map[string]string{"message": "unknown message type: " + msg.Type}})
	}
}

func (c *WSClient) sendFrame(msg WSMessage) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}

// trySend drops the frame when the client is slow or already gone.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
	}
}

func pingInterval(cfg config.WebSocketConfig) time.Duration {
	if cfg.PingInterval <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.PingInterval) * time.Second
}

func pongTimeout(cfg config.WebSocketConfig) time.Duration {
	if cfg.PongTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(cfg.PongTimeout) * time.Second
}

func liveness(cfg config.WebSocketConfig) time.Duration {
	return pingInterval(cfg) + pongTimeout(cfg)
}
