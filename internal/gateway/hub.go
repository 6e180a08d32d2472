// Package gateway pushes ticks and analysis bundles to WebSocket clients
// and answers their risk and kline queries.
package gateway

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"futures-analytics/internal/model"
	"futures-analytics/internal/pipeline"
	"futures-analytics/internal/risk"
)

// Session is the read side of a pipeline session.
type Session interface {
	Symbol() string
	Periods() []model.Period
	Latest() (*pipeline.Bundle, bool)
	Candles(p model.Period) ([]model.Candle, bool)
	Risk(req risk.Request) (risk.Plan, error)
}

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Hub manages WebSocket clients.
type Hub struct {
	session Session

	mu      sync.RWMutex
	clients map[*Client]bool

	// Metrics hooks (optional, set externally)
	OnClientCount func(n int)
	OnRisk        func(outcome string)
}

// NewHub creates a Hub serving session.
func NewHub(session Session) *Hub {
	return &Hub{
		session: session,
		clients: make(map[*Client]bool),
	}
}

// Run broadcasts session events until ctx is cancelled or events closes,
// then disconnects every client.
func (h *Hub) Run(ctx context.Context, events <-chan pipeline.Event) {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Tick != nil {
				h.broadcast(encode(Outbound{Type: TypeTick, Data: ev.Tick}))
			}
			if ev.Bundle != nil {
				h.broadcast(encode(Outbound{Type: TypeKlineUpdate, Data: ev.Bundle}))
			}
		}
	}
}

// ServeWS upgrades the request and registers the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("ws upgrade failed", zap.Error(err))
		return
	}
	c := newClient(h, conn)

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()

	zap.L().Info("ws client connected", zap.String("remote", r.RemoteAddr), zap.Int("clients", count))
	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}

	h.sendTo(c, encode(Outbound{Type: TypeInitial, Data: h.initial()}))
	go c.writePump()
	go c.readPump()
}

func (h *Hub) initial() InitialData {
	data := InitialData{
		Symbol: h.session.Symbol(),
		Klines: make(map[model.Period][]model.Candle),
	}
	for _, p := range h.session.Periods() {
		if candles, ok := h.session.Candles(p); ok {
			data.Klines[p] = candles
		}
	}
	if b, ok := h.session.Latest(); ok {
		data.Analysis = b
	}
	return data
}

// removeClient unregisters c and closes its send channel.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	zap.L().Info("ws client disconnected", zap.Int("clients", count))
	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	if h.OnClientCount != nil {
		h.OnClientCount(0)
	}
}

// broadcast queues msg for every client. Slow clients miss the message.
func (h *Hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			zap.L().Debug("ws client send buffer full, dropping message")
		}
	}
}

// sendTo queues msg for one client if it is still registered.
func (h *Hub) sendTo(c *Client, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
