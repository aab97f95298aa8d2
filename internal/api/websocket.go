package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/streamdeck-api/internal/infrastructure/config"
	"github.com/nerrad567/streamdeck-api/internal/infrastructure/logging"
	"github.com/nerrad567/streamdeck-api/internal/press"
	"github.com/nerrad567/streamdeck-api/internal/protocol"
)

// defaultSendBuffer is the per-client outbound queue length used when the
// configuration leaves it unset.
const defaultSendBuffer = 256

var (
	errHubClosed    = errors.New("api: hub closed")
	errClientClosed = errors.New("api: client closed")
)

// Hub fans WebSocket events out to every connected session.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	closed  bool
	mu      sync.RWMutex
}

// WSClient is one WebSocket session. Frames queued on send are written in
// order by its write pump.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
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

// newClient creates a session bound to h. conn may be nil in tests.
func (h *Hub) newClient(conn *websocket.Conn) *WSClient {
	size := h.cfg.SendBuffer
	if size <= 0 {
		size = defaultSendBuffer
	}
	return &WSClient{hub: h, conn: conn, send: make(chan []byte, size)}
}

// Register queues the connected handshake on client and then adds it to
// the hub, so the handshake always precedes any broadcast.
func (h *Hub) Register(client *WSClient) error {
	data, err := protocol.Encode(protocol.Connected())
	if err != nil {
		return err
	}
	if !client.trySend(data) {
		return errClientClosed
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		client.close()
		return errHubClosed
	}
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("websocket client connected", "clients", n)
	return nil
}

// Unregister removes a client and closes its send queue. It is safe to
// call more than once.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	client.close()
	if existed {
		h.logger.Debug("websocket client disconnected", "clients", n)
	}
}

// Broadcast encodes msg once and queues it on every client. A client whose
// queue is full or closed is removed; delivery to the rest continues.
func (h *Hub) Broadcast(msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		h.logger.Error("failed to encode broadcast message", "event", msg.Event, "error", err)
		return
	}

	// Snapshot client list under hub lock, then release before sending
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sent := 0
	for _, client := range clients {
		if client.trySend(data) {
			sent++
			continue
		}
		h.logger.Warn("dropping websocket client", "event", msg.Event)
		h.Unregister(client)
	}
	if sent > 0 {
		h.logger.Debug("broadcast sent", "event", msg.Event, "recipients", sent)
	}
}

// Emit implements press.Sink.
func (h *Hub) Emit(e press.Event) {
	h.Broadcast(e.Message())
}

// BroadcastStatus sends a status event carrying info.
func (h *Hub) BroadcastStatus(info protocol.Info) {
	h.Broadcast(protocol.StatusMessage(info))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects all clients and refuses new ones.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for client := range h.clients {
		client.close()
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// trySend queues data without blocking. It reports false when the client
// is closed or its queue is full.
func (c *WSClient) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close marks the client closed and closes its queue once.
func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// handleWebSocket upgrades the connection and starts the session pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := s.hub.newClient(conn)
	if err := s.hub.Register(client); err != nil {
		s.logger.Debug("websocket client rejected", "error", err)
		conn.Close()
		return
	}

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump drains inbound frames. Clients have nothing to say on this
// stream; reading keeps the pong handler and close detection working.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	if cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	}
	pingInterval, pongWait := keepalive(cfg)
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read error", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	}
}

// writePump writes queued frames and keepalive pings.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval, writeWait := keepalive(cfg)
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

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
				c.hub.Unregister(c)
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.Unregister(c)
				return
			}
		}
	}
}

// keepalive returns the ping interval and pong timeout, defaulting unset
// values to 30s and 10s.
func keepalive(cfg config.WebSocketConfig) (ping, pong time.Duration) {
	ping = time.Duration(cfg.PingInterval) * time.Second
	if ping <= 0 {
		ping = 30 * time.Second
	}
	pong = time.Duration(cfg.PongTimeout) * time.Second
	if pong <= 0 {
		pong = 10 * time.Second
	}
	return ping, pong
}
