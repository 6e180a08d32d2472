package main

import (
	"math"
	"math/rand"
	"time"

	"futures-analytics/internal/model"
)

// generator produces a random-walk quote stream with a running session
// open/high/low and a drifting open interest.
type generator struct {
	rng    *rand.Rand
	symbol string

	price float64
	open  float64
	high  float64
	low   float64
	oi    int64
}

func newGenerator(symbol string, startPrice float64, seed int64) *generator {
	return &generator{
		rng:    rand.New(rand.NewSource(seed)),
		symbol: symbol,
		price:  startPrice,
		open:   startPrice,
		high:   startPrice,
		low:    startPrice,
		oi:     300_000,
	}
}

// Next moves the price by up to ±0.1% in whole ticks and returns the quote.
func (g *generator) Next(now time.Time) model.Tick {
	step := math.Round(g.price * (g.rng.Float64()*0.2 - 0.1) / 100)
	g.price = math.Max(1, g.price+step)
	g.high = math.Max(g.high, g.price)
	g.low = math.Min(g.low, g.price)

	g.oi += int64(g.rng.Intn(201) - 100)
	if g.oi < 0 {
		g.oi = 0
	}

	open, high, low, oi := g.open, g.high, g.low, g.oi
	return model.Tick{
		Symbol:       g.symbol,
		Timestamp:    now.UnixMilli(),
		Price:        g.price,
		Open:         &open,
		High:         &high,
		Low:          &low,
		Volume:       int64(g.rng.Intn(100) + 1),
		OpenInterest: &oi,
	}
}
