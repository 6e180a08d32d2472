// Package sqlite archives finalized 1-minute candles and serves them back
// to seed the aggregator on startup.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"futures-analytics/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond

	dsnParams = "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath     string // e.g. "data/candles.db"
	BatchSize  int
	FlushDelay time.Duration
}

// Writer is a single-goroutine SQLite writer with transaction batching.
type Writer struct {
	db  *sql.DB
	cfg WriterConfig

	// Metrics hooks (optional, set externally)
	OnCommit func(n int, took time.Duration)
}

// New opens the database in WAL mode and creates the schema.
func New(cfg WriterConfig) (*Writer, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = defaultFlushDelay
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	zap.L().Info("sqlite opened", zap.String("path", cfg.DBPath))
	return &Writer{db: db, cfg: cfg}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles_1m (
			symbol TEXT    NOT NULL,
			ts     INTEGER NOT NULL,
			open   REAL    NOT NULL,
			high   REAL    NOT NULL,
			low    REAL    NOT NULL,
			close  REAL    NOT NULL,
			volume INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (symbol, ts)
		);
	`)
	return err
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// Run reads finalized candles from candleCh and inserts them in batched
// transactions, flushing every BatchSize candles or every FlushDelay,
// whichever comes first. Blocks until ctx is cancelled or candleCh is closed.
func (w *Writer) Run(ctx context.Context, symbol string, candleCh <-chan model.Candle) {
	batch := make([]model.Candle, 0, w.cfg.BatchSize)
	timer := time.NewTimer(w.cfg.FlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.insertBatch(symbol, batch); err != nil {
			zap.L().Error("sqlite batch insert failed",
				zap.String("symbol", symbol), zap.Int("candles", len(batch)), zap.Error(err))
		} else {
			took := time.Since(start)
			if w.OnCommit != nil {
				w.OnCommit(len(batch), took)
			}
			zap.L().Debug("sqlite committed", zap.Int("candles", len(batch)), zap.Duration("took", took))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case c, ok := <-candleCh:
			if !ok {
				flush()
				return
			}
			if c.Period != model.Period1m {
				continue
			}
			batch = append(batch, c)
			if len(batch) >= w.cfg.BatchSize {
				flush()
				timer.Reset(w.cfg.FlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(w.cfg.FlushDelay)
		}
	}
}

// insertBatch upserts a batch of candles in a single transaction.
func (w *Writer) insertBatch(symbol string, candles []model.Candle) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles_1m (symbol, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.Exec(symbol, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// LastTimestamp returns the newest stored candle start for symbol, or 0.
func (w *Writer) LastTimestamp(ctx context.Context, symbol string) (int64, error) {
	var ts sql.NullInt64
	err := w.db.QueryRowContext(ctx,
		`SELECT MAX(ts) FROM candles_1m WHERE symbol = ?`, symbol,
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
