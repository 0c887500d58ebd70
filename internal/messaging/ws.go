package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/timebank/internal/timebank"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer is how many frames may queue for one socket before the hub
	// gives up on it.
	sendBuffer = 32
)

type wsEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// HandshakeLookup finds the handshake a socket subscribes to.
type HandshakeLookup interface {
	GetHandshake(ctx context.Context, id string) (*timebank.Handshake, error)
}

// client is one socket. Only writePump writes to conn; the hub only ever
// does non-blocking sends on send, and closes it under the hub lock.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, send: make(chan []byte, sendBuffer)}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type room struct {
	clients map[*client]bool
}

// Hub fans committed handshake events and thread messages out to the
// websocket clients of both parties. One room exists per handshake while
// anyone is connected.
type Hub struct {
	lookup HandshakeLookup
	logger *slog.Logger

	mu    sync.RWMutex
	rooms map[string]*room
}

// NewHub builds an empty hub.
func NewHub(lookup HandshakeLookup, logger *slog.Logger) *Hub {
	return &Hub{
		lookup: lookup,
		logger: logger.With(slog.String("component", "ws")),
		rooms:  make(map[string]*room),
	}
}

func (h *Hub) register(handshakeID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[handshakeID]
	if !ok {
		r = &room{clients: make(map[*client]bool)}
		h.rooms[handshakeID] = r
	}
	r.clients[c] = true
}

// unregister removes c and closes its send channel. It is safe to call more
// than once.
func (h *Hub) unregister(handshakeID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[handshakeID]
	if !ok || !r.clients[c] {
		return
	}
	delete(r.clients, c)
	close(c.send)
	if len(r.clients) == 0 {
		delete(h.rooms, handshakeID)
	}
}

// broadcast never blocks: a client whose buffer is full is dropped.
func (h *Hub) broadcast(handshakeID string, evt wsEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("ws marshal failed", slog.String("type", evt.Type), slog.Any("error", err))
		return
	}

	var slow []*client
	h.mu.RLock()
	if r, ok := h.rooms[handshakeID]; ok {
		for c := range r.clients {
			select {
			case c.send <- payload:
			default:
				slow = append(slow, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("ws client too slow, dropping", slog.String("handshake_id", handshakeID))
		h.unregister(handshakeID, c)
	}
}

// Notify pushes a committed event to the handshake's room.
func (h *Hub) Notify(_ context.Context, ev timebank.Event) {
	h.broadcast(ev.Handshake.ID, wsEvent{Type: string(ev.Type), Data: ev})
}

// Connections reports how many sockets are open for a handshake.
func (h *Hub) Connections(handshakeID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r, ok := h.rooms[handshakeID]; ok {
		return len(r.clients)
	}
	return 0
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// party loads the handshake and checks that userID is one of its parties.
// It writes the error response itself and returns nil, false on failure.
func (h *Hub) party(c echo.Context, handshakeID, userID string) (*timebank.Handshake, bool) {
	hs, err := h.lookup.GetHandshake(c.Request().Context(), handshakeID)
	if errors.Is(err, timebank.ErrHandshakeNotFound) {
		_ = c.JSON(http.StatusNotFound, echo.Map{"error": "handshake not found"})
		return nil, false
	}
	if err != nil {
		h.logger.ErrorContext(c.Request().Context(), "load handshake failed", slog.String("handshake_id", handshakeID), slog.Any("error", err))
		_ = c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load handshake"})
		return nil, false
	}
	if !hs.IsParty(userID) {
		_ = c.JSON(http.StatusForbidden, echo.Map{"error": "not a party to this handshake"})
		return nil, false
	}
	return hs, true
}

// HandshakeWS streams realtime updates for one handshake to either party.
func (h *Hub) HandshakeWS(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	handshakeID := c.Param("id")
	if _, ok := h.party(c, handshakeID, userID); !ok {
		return nil
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := newClient(ws)
	h.register(handshakeID, cl)
	go cl.writePump()
	h.broadcast(handshakeID, wsEvent{Type: "presence_join", Data: echo.Map{"user_id": userID}})

	// Server push only; reads just detect the close and answer pings.
	ws.SetReadLimit(4096)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(handshakeID, cl)
	h.broadcast(handshakeID, wsEvent{Type: "presence_leave", Data: echo.Map{"user_id": userID}})
	return nil
}

var _ timebank.Notifier = (*Hub)(nil)
