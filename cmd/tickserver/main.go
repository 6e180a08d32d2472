// cmd/tickserver is a demo WebSocket tick server. It broadcasts a simulated
// futures quote stream in the model.Tick JSON shape so analyticsd can run
// without an upstream feed.
//
// Config comes from the tickserver section of configs/config.yaml and
// ANALYTICS_TICKSERVER_* env vars.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"futures-analytics/config"
	"futures-analytics/internal/logger"
	"futures-analytics/internal/markethours"
)

const clientBuffer = 256

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			zap.L().Warn("upgrade failed", zap.Error(err))
			return
		}
		zap.L().Info("client connected", zap.String("remote", r.RemoteAddr))

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			zap.L().Info("client disconnected", zap.String("remote", r.RemoteAddr))
		}()

		// drain reads so close frames are processed
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					h.unregister(conn)
					return
				}
			}
		}()

		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// runGenerator broadcasts a tick every interval. A non-nil calendar pauses
// the stream outside trading sessions.
func runGenerator(ctx context.Context, h *hub, g *generator, interval time.Duration, cal *markethours.Calendar) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if cal != nil && !cal.IsOpen(now) {
				continue
			}
			tick := g.Next(now)
			h.broadcast(tick.JSON())
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tickserver: config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.Init("tickserver", cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tickserver: logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	ts := cfg.TickServer
	if ts.StartPrice <= 0 {
		log.Fatal("tickserver.start_price must be positive", zap.Float64("start_price", ts.StartPrice))
	}
	if ts.Interval <= 0 {
		log.Fatal("tickserver.interval must be positive", zap.Duration("interval", ts.Interval))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cal *markethours.Calendar
	if ts.SessionsOnly {
		cal, err = markethours.NewCalendar(cfg.Market.Holidays)
		if err != nil {
			log.Fatal("invalid market.holidays", zap.Error(err))
		}
		log.Info("streaming during trading sessions only", zap.String("market", cal.Status(time.Now())))
	}

	h := newHub()
	go runGenerator(ctx, h, newGenerator(ts.Symbol, ts.StartPrice, time.Now().UnixNano()), ts.Interval, cal)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler(h))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"tickserver"}`)
	})
	srv := &http.Server{Addr: ts.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("tick server listening",
			zap.String("addr", ts.Addr),
			zap.String("symbol", ts.Symbol),
			zap.Duration("interval", ts.Interval))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
	log.Info("tick server stopped")
}
