package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"futures-analytics/internal/model"
)

// Reader provides read-only access to the candle archive.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	return &Reader{db: db}, nil
}

// ReadRecent returns the newest limit 1-minute candles for symbol in
// ascending timestamp order.
func (r *Reader) ReadRecent(ctx context.Context, symbol string, limit int) ([]model.Candle, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume FROM (
			SELECT ts, open, high, low, close, volume
			FROM candles_1m
			WHERE symbol = ?
			ORDER BY ts DESC
			LIMIT ?
		) ORDER BY ts ASC
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles_1m: %w", err)
	}
	return scanCandles(rows, limit)
}

// ReadRange returns the 1-minute candles for symbol with fromTS <= ts < toTS
// in ascending order. toTS <= 0 means no upper bound.
func (r *Reader) ReadRange(ctx context.Context, symbol string, fromTS, toTS int64) ([]model.Candle, error) {
	if toTS <= 0 {
		toTS = math.MaxInt64
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM candles_1m
		WHERE symbol = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC
	`, symbol, fromTS, toTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles_1m range: %w", err)
	}
	return scanCandles(rows, 0)
}

func scanCandles(rows *sql.Rows, capacity int) ([]model.Candle, error) {
	defer rows.Close()

	candles := make([]model.Candle, 0, capacity)
	for rows.Next() {
		c := model.Candle{Period: model.Period1m}
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candles_1m: %w", err)
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}

var (
	_ model.CandleSource   = (*Reader)(nil)
	_ model.CandleArchiver = (*Writer)(nil)
)
