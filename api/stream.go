package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/aquibsayyed9/coin-analyze/types"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Hub pushes aggregation results to websocket clients. A client that connects
// receives the latest result right away.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *logrus.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	latest  []byte
}

// NewHub creates an empty hub
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger:  log,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// ServeWS upgrades the request and registers the connection
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	latest := h.latest
	if latest != nil {
		if err := h.write(conn, latest); err != nil {
			h.drop(conn)
			h.mu.Unlock()
			return
		}
	}
	h.mu.Unlock()

	go h.readPump(conn)
}

// Broadcast sends result to every client and keeps it for late joiners.
// It has the shape of refresh.ResultHandler.
func (h *Hub) Broadcast(sel types.Selection, result *types.AggregationResult) {
	payload, err := json.Marshal(struct {
		Selection types.Selection          `json:"selection"`
		Result    *types.AggregationResult `json:"result"`
	}{sel, result})
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode result for websocket clients")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = payload
	for conn := range h.clients {
		if err := h.write(conn, payload); err != nil {
			h.logger.WithError(err).Debug("Dropping websocket client")
			h.drop(conn)
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		h.drop(conn)
	}
}

// write must be called with mu held
func (h *Hub) write(conn *websocket.Conn, payload []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// drop must be called with mu held
func (h *Hub) drop(conn *websocket.Conn) {
	delete(h.clients, conn)
	_ = conn.Close()
}

// readPump discards client messages and keeps the connection alive with pings
func (h *Hub) readPump(conn *websocket.Conn) {
	done := make(chan struct{})
	defer func() {
		close(done)
		h.mu.Lock()
		if _, ok := h.clients[conn]; ok {
			h.drop(conn)
		}
		h.mu.Unlock()
	}()

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
