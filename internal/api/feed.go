package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atmx/landed-cost/internal/metrics"
)

// QuoteEvent is a JSON message sent to WebSocket clients.
type QuoteEvent struct {
	Type          string `json:"type"`
	QuoteID       string `json:"quote_id"`
	State         string `json:"state"`
	Success       bool   `json:"success"`
	HSCode        string `json:"hs_code"`
	OriginCountry string `json:"origin_country"`
	WeightKg      string `json:"weight_kg"`
	FinalTotalUSD string `json:"final_total_usd,omitempty"`
	PolicyName    string `json:"policy_name,omitempty"`
}

// QuoteFeed manages WebSocket connections and broadcasts every computed
// quote to all connected clients.
type QuoteFeed struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.RWMutex
}

// NewQuoteFeed creates a new feed.
func NewQuoteFeed() *QuoteFeed {
	return &QuoteFeed{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
	}
}

// Run starts the feed's event loop until ctx is cancelled. Must be called in
// a goroutine.
func (f *QuoteFeed) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(f.done)
			f.mu.Lock()
			for conn := range f.clients {
				conn.Close()
				delete(f.clients, conn)
			}
			f.mu.Unlock()
			metrics.WebSocketClients.Set(0)
			return

		case conn := <-f.register:
			f.mu.Lock()
			f.clients[conn] = true
			n := len(f.clients)
			f.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))
			slog.Info("ws client connected", "total", n)

		case conn := <-f.unregister:
			f.mu.Lock()
			if _, ok := f.clients[conn]; ok {
				delete(f.clients, conn)
				conn.Close()
			}
			n := len(f.clients)
			f.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))

		case msg := <-f.broadcast:
			f.mu.Lock()
			for conn := range f.clients {
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					conn.Close()
					delete(f.clients, conn)
				}
			}
			n := len(f.clients)
			f.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))
		}
	}
}

// ClientCount returns the number of connected clients.
func (f *QuoteFeed) ClientCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// Broadcast sends an event to all connected clients.
func (f *QuoteFeed) Broadcast(ev QuoteEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case f.broadcast <- data:
	default:
		// Drop if buffer full so quoting never blocks on slow clients.
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Dashboards are served from other origins.
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws.
func (f *QuoteFeed) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	select {
	case f.register <- conn:
	case <-f.done:
		conn.Close()
		return
	}

	// Read pump: keep connection alive and detect disconnects.
	go func() {
		defer func() {
			select {
			case f.unregister <- conn:
			case <-f.done:
			}
		}()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	// Ping ticker to keep connection alive through proxies.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			f.mu.RLock()
			_, ok := f.clients[conn]
			f.mu.RUnlock()
			if !ok {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}()
}
