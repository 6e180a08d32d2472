// Package replay turns archived 1-minute candles back into a tick stream so
// the analytics session can be driven from history.
package replay

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"futures-analytics/internal/model"
)

// maxGap caps the sleep between two ticks at any speed.
const maxGap = 5 * time.Second

// RangeSource reads archived candles in ascending order.
type RangeSource interface {
	ReadRange(ctx context.Context, symbol string, fromTS, toTS int64) ([]model.Candle, error)
}

// Replayer emits the ticks of archived candles at a configurable speed.
type Replayer struct {
	source RangeSource
}

// New creates a Replayer reading from source.
func New(source RangeSource) *Replayer {
	return &Replayer{source: source}
}

// Ticks synthesizes four ticks inside c's minute: open, then low and high
// (high first on a down candle), then close. Volume is split evenly with the
// remainder on the close.
func Ticks(symbol string, c model.Candle) []model.Tick {
	first, second := c.Low, c.High
	if c.Close < c.Open {
		first, second = c.High, c.Low
	}
	share := c.Volume / 4
	prices := [4]float64{c.Open, first, second, c.Close}
	step := model.Period1m.Millis() / 4

	ticks := make([]model.Tick, len(prices))
	for i, p := range prices {
		ticks[i] = model.Tick{
			Symbol:    symbol,
			Timestamp: c.Timestamp + int64(i)*step,
			Price:     p,
			Volume:    share,
		}
	}
	ticks[3].Volume = c.Volume - 3*share
	return ticks
}

// Run replays the candles of symbol with fromTS <= ts < toTS into out and
// returns how many candles were replayed. speed scales the gaps between
// ticks: 1 is real time, 0 is as fast as possible. A final zero-volume tick
// at the next minute closes the last candle. out is not closed.
func (r *Replayer) Run(ctx context.Context, symbol string, fromTS, toTS int64, speed float64, out chan<- model.Tick) (int, error) {
	candles, err := r.source.ReadRange(ctx, symbol, fromTS, toTS)
	if err != nil {
		return 0, fmt.Errorf("replay %s: %w", symbol, err)
	}
	if len(candles) == 0 {
		zap.L().Info("no candles to replay", zap.String("symbol", symbol))
		return 0, nil
	}
	zap.L().Info("replay started",
		zap.String("symbol", symbol),
		zap.Int("candles", len(candles)),
		zap.Float64("speed", speed))

	var prevTS int64
	emit := func(t model.Tick) error {
		if speed > 0 && prevTS > 0 {
			if gap := time.Duration(float64(time.Duration(t.Timestamp-prevTS)*time.Millisecond) / speed); gap > 0 {
				if gap > maxGap {
					gap = maxGap
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(gap):
				}
			}
		}
		prevTS = t.Timestamp
		select {
		case out <- t:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for i, c := range candles {
		for _, t := range Ticks(symbol, c) {
			if err := emit(t); err != nil {
				zap.L().Info("replay cancelled", zap.Int("candles", i))
				return i, err
			}
		}
	}

	last := candles[len(candles)-1]
	closing := model.Tick{Symbol: symbol, Timestamp: last.Timestamp + model.Period1m.Millis(), Price: last.Close}
	if err := emit(closing); err != nil {
		return len(candles), err
	}

	zap.L().Info("replay complete", zap.Int("candles", len(candles)))
	return len(candles), nil
}
