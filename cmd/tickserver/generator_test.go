package main

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-analytics/internal/marketdata/feed"
)

func TestGenerator_Next(t *testing.T) {
	g := newGenerator("AG", 24800, 1)
	now := time.UnixMilli(1704186000000)

	prev := 24800.0
	for i := 0; i < 500; i++ {
		tick := g.Next(now.Add(time.Duration(i) * time.Second))
		require.Equal(t, "AG", tick.Symbol)
		assert.Equal(t, math.Round(tick.Price), tick.Price, "whole ticks")
		assert.LessOrEqual(t, math.Abs(tick.Price-prev), math.Ceil(prev*0.001))
		assert.Equal(t, 24800.0, *tick.Open)
		assert.GreaterOrEqual(t, *tick.High, tick.Price)
		assert.LessOrEqual(t, *tick.Low, tick.Price)
		assert.Positive(t, tick.Volume)
		require.NotNil(t, tick.OpenInterest)
		assert.GreaterOrEqual(t, *tick.OpenInterest, int64(0))
		prev = tick.Price
	}
}

func TestGenerator_DecodesAsFeedTick(t *testing.T) {
	g := newGenerator("AG", 24800, 7)
	tick := g.Next(time.UnixMilli(1704186000000))

	got, err := feed.Decode(tick.JSON())
	require.NoError(t, err)
	assert.Equal(t, tick.Price, got.Price)
	assert.Equal(t, *tick.OpenInterest, *got.OpenInterest)
}
