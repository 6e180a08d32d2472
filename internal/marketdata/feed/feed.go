// Package feed connects to an upstream tick WebSocket and streams decoded
// ticks into the pipeline.
//
// Each text frame carries one JSON tick:
//
//	{"symbol":"AG","timestamp":1704186000000,"price":24832,"volume":3,"openInterest":182000}
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"futures-analytics/internal/model"
)

// ErrInvalidTick is returned by Decode for ticks the pipeline cannot use.
var ErrInvalidTick = errors.New("invalid tick")

// Config holds the feed connection settings.
type Config struct {
	// URL of the tick WebSocket server, e.g. "ws://localhost:9001/ws"
	URL string

	// Symbol filters ticks to one instrument. Empty accepts every symbol.
	Symbol string

	// ReconnectDelay is the initial backoff. Defaults to 1s.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = time.Second
	}
	if c.MaxReconnectDelay <= 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
	if c.MaxReconnectDelay < c.ReconnectDelay {
		c.MaxReconnectDelay = c.ReconnectDelay
	}
}

// Ingest reads ticks from the upstream WebSocket, reconnecting with
// exponential backoff.
type Ingest struct {
	cfg Config

	// Metrics hooks (optional, set externally)
	OnConnect    func()
	OnDisconnect func(err error)
	OnReconnect  func()
	OnTick       func()
	OnDrop       func()
}

// New validates the URL and returns an Ingest.
func New(cfg Config) (*Ingest, error) {
	cfg.defaults()
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("feed url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("feed url: unsupported scheme %q", u.Scheme)
	}
	return &Ingest{cfg: cfg}, nil
}

// Decode parses one tick frame and rejects ticks with no symbol, a
// non-positive price or timestamp, or a negative volume.
func Decode(raw []byte) (model.Tick, error) {
	var tick model.Tick
	if err := json.Unmarshal(raw, &tick); err != nil {
		return model.Tick{}, fmt.Errorf("%w: %v", ErrInvalidTick, err)
	}
	switch {
	case tick.Symbol == "":
		return model.Tick{}, fmt.Errorf("%w: empty symbol", ErrInvalidTick)
	case tick.Timestamp <= 0:
		return model.Tick{}, fmt.Errorf("%w: timestamp %d", ErrInvalidTick, tick.Timestamp)
	case tick.Price <= 0:
		return model.Tick{}, fmt.Errorf("%w: price %v", ErrInvalidTick, tick.Price)
	case tick.Volume < 0:
		return model.Tick{}, fmt.Errorf("%w: volume %d", ErrInvalidTick, tick.Volume)
	}
	return tick, nil
}

// Start streams ticks into tickCh until ctx is cancelled. It reconnects
// automatically on disconnect and always returns nil.
func (ing *Ingest) Start(ctx context.Context, tickCh chan<- model.Tick) error {
	delay := ing.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		connected, err := ing.runOnce(ctx, tickCh)
		if err == nil {
			return nil
		}
		if connected {
			delay = ing.cfg.ReconnectDelay
		}

		zap.L().Warn("feed disconnected",
			zap.String("url", ing.cfg.URL),
			zap.Duration("retry_in", delay),
			zap.Error(err))
		if ing.OnDisconnect != nil {
			ing.OnDisconnect(err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		if ing.OnReconnect != nil {
			ing.OnReconnect()
		}

		delay *= 2
		if delay > ing.cfg.MaxReconnectDelay {
			delay = ing.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection and reads until disconnect or ctx cancel.
// connected reports whether the dial succeeded.
func (ing *Ingest) runOnce(ctx context.Context, tickCh chan<- model.Tick) (connected bool, err error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, ing.cfg.URL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	zap.L().Info("feed connected", zap.String("url", ing.cfg.URL))
	if ing.OnConnect != nil {
		ing.OnConnect()
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return true, err
		}

		tick, err := Decode(raw)
		if err != nil {
			zap.L().Debug("feed skipped frame", zap.Error(err), zap.ByteString("raw", raw))
			continue
		}
		if ing.cfg.Symbol != "" && tick.Symbol != ing.cfg.Symbol {
			continue
		}

		select {
		case tickCh <- tick:
			if ing.OnTick != nil {
				ing.OnTick()
			}
		default:
			if ing.OnDrop != nil {
				ing.OnDrop()
			}
			zap.L().Warn("tick channel full, dropping tick", zap.String("symbol", tick.Symbol))
		}
	}
}
