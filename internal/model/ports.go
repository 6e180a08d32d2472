package model

import "context"

// ── Storage Port Interfaces ──
// These decouple the pipeline from concrete stores (SQLite, Redis).

// CandleSource supplies the historical 1-minute candles used to seed the aggregator.
type CandleSource interface {
	// ReadRecent returns up to limit finalized 1-minute candles for symbol,
	// ordered by timestamp ascending.
	ReadRecent(ctx context.Context, symbol string, limit int) ([]Candle, error)
}

// CandleArchiver stores finalized 1-minute candles off the hot path.
type CandleArchiver interface {
	// Run reads candles from candleCh and writes them.
	// Blocks until ctx is cancelled or candleCh is closed.
	Run(ctx context.Context, symbol string, candleCh <-chan Candle)

	// Close releases underlying resources.
	Close() error
}
