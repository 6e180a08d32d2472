// Package redis publishes analysis output to Redis: the latest bundle under
// a TTL'd key, a trimmed stream of bundles and pub/sub channels for ticks
// and bundles.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"futures-analytics/internal/pipeline"
)

const (
	defaultStreamMaxLen = 10000
	defaultLatestTTL    = 30 * time.Minute
)

// Config configures the Redis publisher.
type Config struct {
	Addr         string // e.g. "localhost:6379"
	Password     string
	DB           int
	StreamMaxLen int64
	LatestTTL    time.Duration
}

// Key helpers. The symbol is the only variable part.
func LatestKey(symbol string) string     { return "analytics:latest:" + symbol }
func StreamKey(symbol string) string     { return "analytics:bundles:" + symbol }
func BundleChannel(symbol string) string { return "pub:analytics:" + symbol }
func TickChannel(symbol string) string   { return "pub:tick:" + symbol }

// Publisher writes bundles and ticks to Redis behind a circuit breaker.
type Publisher struct {
	client  *goredis.Client
	cfg     Config
	breaker *CircuitBreaker

	// Metrics hooks (optional, set externally)
	OnPublish func(took time.Duration, err error)
}

// New connects to Redis and pings the server.
func New(cfg Config) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	zap.L().Info("redis connected", zap.String("addr", cfg.Addr))
	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, cfg Config) *Publisher {
	if cfg.StreamMaxLen <= 0 {
		cfg.StreamMaxLen = defaultStreamMaxLen
	}
	if cfg.LatestTTL <= 0 {
		cfg.LatestTTL = defaultLatestTTL
	}
	return &Publisher{
		client:  client,
		cfg:     cfg,
		breaker: NewCircuitBreaker(5, 10*time.Second),
	}
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Breaker exposes the circuit breaker so callers can observe transitions.
func (p *Publisher) Breaker() *CircuitBreaker { return p.breaker }

// PublishBundle writes b as the latest bundle, appends it to the stream and
// publishes it, in one pipeline.
func (p *Publisher) PublishBundle(ctx context.Context, b *pipeline.Bundle) error {
	data := string(b.JSON())
	start := time.Now()
	err := p.breaker.Execute(func() error {
		pipe := p.client.Pipeline()
		pipe.Set(ctx, LatestKey(b.Symbol), data, p.cfg.LatestTTL)
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: StreamKey(b.Symbol),
			MaxLen: p.cfg.StreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": data, "ts": b.Timestamp},
		})
		pipe.Publish(ctx, BundleChannel(b.Symbol), data)
		_, err := pipe.Exec(ctx)
		return err
	})
	if p.OnPublish != nil {
		p.OnPublish(time.Since(start), err)
	}
	if err != nil {
		return fmt.Errorf("publish bundle %s@%d: %w", b.Symbol, b.Timestamp, err)
	}
	return nil
}

// PublishTick publishes a tick on the symbol's tick channel. Ticks are not
// stored.
func (p *Publisher) PublishTick(ctx context.Context, symbol string, data []byte) error {
	return p.breaker.Execute(func() error {
		return p.client.Publish(ctx, TickChannel(symbol), data).Err()
	})
}

// Run publishes session events until ctx is cancelled or events closes.
// Failures are logged and the event is dropped.
func (p *Publisher) Run(ctx context.Context, events <-chan pipeline.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Tick != nil {
				if err := p.PublishTick(ctx, ev.Tick.Symbol, ev.Tick.JSON()); err != nil && !errors.Is(err, ErrCircuitOpen) {
					zap.L().Warn("redis tick publish failed", zap.Error(err))
				}
			}
			if ev.Bundle != nil {
				if err := p.PublishBundle(ctx, ev.Bundle); err != nil {
					zap.L().Warn("redis bundle publish failed", zap.Error(err))
				}
			}
		}
	}
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
