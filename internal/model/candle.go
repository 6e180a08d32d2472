package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Period is a candle length in minutes, encoded the way the feed labels it ("1", "5", ...).
type Period string

const (
	Period1m  Period = "1"
	Period5m  Period = "5"
	Period15m Period = "15"
	Period30m Period = "30"
	Period60m Period = "60"
)

// AllPeriods lists every period the aggregator maintains, finest first.
var AllPeriods = []Period{Period1m, Period5m, Period15m, Period30m, Period60m}

// ErrUnknownPeriod is returned for labels outside AllPeriods.
var ErrUnknownPeriod = errors.New("unknown period")

// ParsePeriod validates a period label.
func ParsePeriod(s string) (Period, error) {
	for _, p := range AllPeriods {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownPeriod, s)
}

// Minutes returns the period length in minutes.
func (p Period) Minutes() int {
	n, _ := strconv.Atoi(string(p))
	return n
}

// Millis returns the bucket length in milliseconds.
func (p Period) Millis() int64 {
	return int64(p.Minutes()) * int64(time.Minute/time.Millisecond)
}

// BucketStart aligns a millisecond timestamp to the start of its bucket.
func (p Period) BucketStart(tsMillis int64) int64 {
	ms := p.Millis()
	if ms <= 0 {
		return tsMillis
	}
	b := tsMillis / ms * ms
	if tsMillis < 0 && tsMillis%ms != 0 {
		b -= ms
	}
	return b
}

// Candle is an OHLCV bar for one period. Timestamp is the bucket start in ms.
type Candle struct {
	Timestamp int64   `json:"timestamp"` // bucket start, ms epoch
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
	Period    Period  `json:"period"`
}

// Time returns the bucket start as a UTC time.Time.
func (c *Candle) Time() time.Time {
	return time.UnixMilli(c.Timestamp).UTC()
}

// Up reports whether the candle closed above its open.
func (c *Candle) Up() bool { return c.Close > c.Open }

// Down reports whether the candle closed below its open.
func (c *Candle) Down() bool { return c.Close < c.Open }

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Closes extracts the close prices of a candle sequence.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].Close
	}
	return out
}

// Tail returns the last n candles (or all of them when fewer exist).
// The returned slice aliases the input.
func Tail(candles []Candle, n int) []Candle {
	if n >= len(candles) {
		return candles
	}
	return candles[len(candles)-n:]
}
