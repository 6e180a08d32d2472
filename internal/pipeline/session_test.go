package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-analytics/internal/model"
	"futures-analytics/internal/risk"
	"futures-analytics/internal/signal"
)

const minute = int64(60_000)

// base is 2024-01-02 09:00:00 UTC, aligned to every period up to 60m.
const base = int64(1704186000000)

type fakeSource struct {
	candles []model.Candle
	err     error
}

func (f *fakeSource) ReadRecent(_ context.Context, _ string, limit int) ([]model.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return model.Tail(f.candles, limit), nil
}

// history returns n accelerating 1-minute up bars starting at base.
func history(n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		x := float64(i)
		c := 24000 + 2*x + 0.01*x*x
		out[i] = model.Candle{
			Timestamp: base + int64(i)*minute,
			Open:      c - 1, High: c + 3, Low: c - 4, Close: c,
			Volume: 100 + int64(i%7)*10,
			Period: model.Period1m,
		}
	}
	return out
}

func tick(ts int64, price float64) model.Tick {
	return model.Tick{Symbol: "AG", Timestamp: ts, Price: price, Volume: 5}
}

func TestSession_BundleOnMinuteClose(t *testing.T) {
	s := NewSession(Config{Symbol: "AG"})

	ev := s.OnTick(tick(base+1_000, 24000))
	require.NotNil(t, ev.Tick)
	assert.Nil(t, ev.Bundle)

	ev = s.OnTick(tick(base+30_000, 24010))
	assert.Nil(t, ev.Bundle)

	ev = s.OnTick(tick(base+minute+1_000, 24020))
	require.NotNil(t, ev.Bundle)
	b := ev.Bundle
	assert.Equal(t, base, b.Timestamp)
	assert.Equal(t, "AG", b.Symbol)

	// the analysed 1m series holds the closed minute only
	require.Len(t, b.Candles[model.Period1m], 1)
	assert.Equal(t, 24010.0, b.Candles[model.Period1m][0].Close)
	// the 5m bucket is still open and included
	require.Len(t, b.Candles[model.Period5m], 1)
	assert.Contains(t, b.Closed, model.Period1m)

	assert.Nil(t, b.Indicators)
	assert.Equal(t, signal.Wait, b.Signal.Category)
	assert.Equal(t, 50, b.FastSignal.Score)
	assert.Equal(t, 50, b.Sentiment.Score)

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Same(t, b, latest)

	// the rollover tick is folded after the analysis
	candles, ok := s.Candles(model.Period1m)
	require.True(t, ok)
	require.Len(t, candles, 2)
	assert.Equal(t, 24020.0, candles[1].Close)
}

func TestSession_LateTick(t *testing.T) {
	s := NewSession(Config{Symbol: "AG"})
	lates := 0
	s.OnLateTick = func() { lates++ }

	s.OnTick(tick(base+1_000, 24000))
	s.OnTick(tick(base+minute+1_000, 24010))

	ev := s.OnTick(tick(base+2_000, 23990))
	assert.Nil(t, ev.Tick)
	assert.Nil(t, ev.Bundle)
	assert.Equal(t, 1, lates)

	last, ok := s.LastTick()
	require.True(t, ok)
	assert.Equal(t, 24010.0, last.Price)
}

func TestSession_Bootstrap(t *testing.T) {
	s := NewSession(Config{Symbol: "AG"})
	var analysed int
	s.OnAnalysis = func(*Bundle, time.Duration) { analysed++ }

	n, err := s.Bootstrap(context.Background(), &fakeSource{candles: history(300)}, 200)
	require.NoError(t, err)
	assert.Equal(t, 200, n)
	assert.Equal(t, 1, analysed)

	b, ok := s.Latest()
	require.True(t, ok)
	assert.Len(t, b.Candles[model.Period1m], 200)
	assert.Len(t, b.Candles[model.Period5m], 40)
	require.NotNil(t, b.Indicators, "40 five-minute candles are enough for indicators")
	assert.Equal(t, signal.DirectionLong, b.Signal.Direction)
	assert.Greater(t, b.FastSignal.Score, 50)
	assert.Len(t, b.FastSignal.Timeframes, 2, "15m has too few candles")
	assert.Equal(t, model.Period15m, s.Periods()[2])
}

func TestSession_BootstrapError(t *testing.T) {
	boom := errors.New("disk gone")
	s := NewSession(Config{Symbol: "AG"})
	_, err := s.Bootstrap(context.Background(), &fakeSource{err: boom}, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	_, ok := s.Latest()
	assert.False(t, ok)
}

func TestSession_Risk(t *testing.T) {
	s := NewSession(Config{
		Symbol: "AG",
		Risk:   RiskDefaults{Margin: 0.1, RiskLevel: risk.Conservative, ContractMultiplier: 15},
	})
	_, err := s.Bootstrap(context.Background(), &fakeSource{candles: history(200)}, 200)
	require.NoError(t, err)

	plan, err := s.Risk(risk.Request{EntryPrice: 24400, Direction: risk.Long, Equity: 1_000_000, Balance: 500_000})
	require.NoError(t, err)
	assert.Equal(t, risk.Conservative, plan.RiskLevel)
	require.NotNil(t, plan.StopLoss.ATR, "ATR comes from the 5m series")
	require.NotNil(t, plan.StopLoss.Technical, "support comes from the 5m series")
	assert.Equal(t, plan.StopLoss.ATR.Price, plan.StopLoss.Recommended)

	_, err = s.Risk(risk.Request{EntryPrice: -1, Direction: risk.Long})
	assert.ErrorIs(t, err, risk.ErrInvalidRequest)
}

func TestSession_Flush(t *testing.T) {
	s := NewSession(Config{Symbol: "AG", IdleFlush: 5 * time.Second})
	s.OnTick(tick(base+10_000, 24000))

	assert.Nil(t, s.Flush(time.UnixMilli(base+minute+1_000)), "still inside the grace period")

	b := s.Flush(time.UnixMilli(base + minute + 6_000))
	require.NotNil(t, b)
	assert.Equal(t, base, b.Timestamp)

	// the flushed minute is closed for good
	ev := s.OnTick(tick(base+50_000, 24001))
	assert.Nil(t, ev.Tick)
}

func TestSession_Run(t *testing.T) {
	s := NewSession(Config{Symbol: "AG"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan model.Tick, 8)
	out := make(chan Event, 8)
	done := make(chan struct{})
	go func() {
		s.Run(ctx, in, out)
		close(done)
	}()

	in <- tick(base+1_000, 24000)
	in <- tick(base+2_000, 23999) // same minute
	in <- tick(base+minute, 24005)
	close(in)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the tick channel closed")
	}

	var ticks, bundles int
	for len(out) > 0 {
		ev := <-out
		if ev.Tick != nil {
			ticks++
		}
		if ev.Bundle != nil {
			bundles++
		}
	}
	assert.Equal(t, 3, ticks)
	assert.Equal(t, 1, bundles)
}

func TestSession_RunDropsWhenFull(t *testing.T) {
	s := NewSession(Config{Symbol: "AG"})
	dropped := 0
	s.OnDroppedEvent = func() { dropped++ }

	in := make(chan model.Tick, 4)
	out := make(chan Event) // unbuffered, nobody reading
	in <- tick(base+1_000, 24000)
	in <- tick(base+2_000, 24001)
	close(in)

	s.Run(context.Background(), in, out)
	assert.Equal(t, 2, dropped)
}
