package mtf

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-analytics/internal/model"
)

// rising returns n candles closing 100, 101, ... with each bar up by one.
func rising(n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		c := 100 + float64(i)
		out[i] = model.Candle{Timestamp: int64(i) * 60_000, Open: c - 1, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 100}
	}
	return out
}

// falling returns n candles closing 200, 199, ... with each bar down by one.
func falling(n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		c := 200 - float64(i)
		out[i] = model.Candle{Timestamp: int64(i) * 60_000, Open: c + 1, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 100}
	}
	return out
}

func TestScoreTimeframe_TooFewCandles(t *testing.T) {
	_, ok := ScoreTimeframe(DefaultTimeframes[0], rising(MinCandles-1))
	assert.False(t, ok)
}

func TestScoreTimeframe_Rising(t *testing.T) {
	// 50 + 30 (MA alignment) - 20 (RSI 100) + 10 (five up bars).
	// The DEA line is not ready at 30 closes and KDJ has no cross.
	ts, ok := ScoreTimeframe(DefaultTimeframes[1], rising(30))
	require.True(t, ok)
	assert.Equal(t, 70, ts.Score)
	assert.Equal(t, []string{
		"5m bullish MA alignment",
		"5m RSI overbought (100.0)",
		"5m consecutive up bars",
	}, ts.Reasons)
}

func TestScoreTimeframe_Falling(t *testing.T) {
	// 50 - 30 (MA alignment) + 20 (RSI 0) - 10 (no up bars)
	ts, ok := ScoreTimeframe(DefaultTimeframes[1], falling(30))
	require.True(t, ok)
	assert.Equal(t, 30, ts.Score)
}

func TestSynthesize_RisingScenario(t *testing.T) {
	candles := map[model.Period][]model.Candle{
		model.Period1m:  rising(30),
		model.Period5m:  rising(30),
		model.Period15m: rising(30),
	}
	tick := &model.Tick{Price: 129.4}

	var s Synthesizer
	res := s.Synthesize(candles, tick, nil)

	assert.Equal(t, 70, res.Score)
	assert.GreaterOrEqual(t, res.Score, 60)
	assert.Equal(t, BandLong, res.Band)
	assert.Equal(t, "LONG", res.Direction)
	assert.Equal(t, BandLong.Info().Color, res.Color)
	assert.Len(t, res.Timeframes, 3)
	assert.Len(t, res.Reasons, maxReasons, "nine reasons are capped")
	assert.Equal(t, TrendInsufficient, res.Trend)

	// last 20 bars span 109.5..129.5
	assert.Equal(t, KeyLevels{Resistance: 130, Support: 110, Current: 129}, res.KeyLevels)
}

func TestSynthesize_SingleTimeframeRenormalizes(t *testing.T) {
	candles := map[model.Period][]model.Candle{
		model.Period1m: rising(10),
		model.Period5m: rising(30),
	}
	var s Synthesizer
	res := s.Synthesize(candles, nil, nil)

	require.Len(t, res.Timeframes, 1)
	assert.Equal(t, model.Period5m, res.Timeframes[0].Period)
	assert.Equal(t, 70, res.Score, "a lone timeframe carries the full weight")
	assert.Equal(t, float64(129), res.KeyLevels.Current, "falls back to the last close")
}

func TestSynthesize_WeightedFusion(t *testing.T) {
	candles := map[model.Period][]model.Candle{
		model.Period1m: rising(30),  // 70
		model.Period5m: falling(30), // 30
	}
	var s Synthesizer
	res := s.Synthesize(candles, nil, nil)

	// (70*0.2 + 30*0.5) / 0.7 = 41.43
	assert.Equal(t, 41, res.Score)
	assert.Equal(t, BandLeanShort, res.Band)
	assert.Equal(t, "SHORT", res.Direction)
}

func TestSynthesize_NoTimeframes(t *testing.T) {
	var s Synthesizer
	res := s.Synthesize(nil, &model.Tick{Price: 24832}, nil)

	assert.Equal(t, 50, res.Score)
	assert.Equal(t, BandNeutral, res.Band)
	assert.Empty(t, res.Timeframes)
	assert.NotNil(t, res.Reasons)
	assert.Equal(t, KeyLevels{Current: 24832}, res.KeyLevels)
}

func TestSynthesize_History(t *testing.T) {
	candles := map[model.Period][]model.Candle{model.Period5m: rising(30)}
	history := NewHistory()
	var s Synthesizer

	assert.Equal(t, TrendInsufficient, s.Synthesize(candles, nil, history).Trend)
	assert.Equal(t, TrendInsufficient, s.Synthesize(candles, nil, history).Trend)
	assert.Equal(t, TrendFluctuating, s.Synthesize(candles, nil, history).Trend)

	for i := 0; i < 20; i++ {
		s.Synthesize(candles, nil, history)
	}
	assert.Equal(t, HistorySize, history.Len())
}

func TestTrendOf(t *testing.T) {
	tests := []struct {
		name    string
		history []float64
		want    Trend
	}{
		{"empty", nil, TrendInsufficient},
		{"two samples", []float64{50, 60}, TrendInsufficient},
		{"rising", []float64{40, 50, 60}, TrendStrengtheningLong},
		{"falling", []float64{90, 60, 50, 40}, TrendStrengtheningShort},
		{"plateau", []float64{50, 60, 60}, TrendFluctuating},
		{"only the newest three count", []float64{90, 10, 20, 30}, TrendStrengtheningLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrendOf(tt.history))
		})
	}
}

func TestBandOf(t *testing.T) {
	tests := []struct {
		score int
		want  Band
	}{
		{100, BandStrongLong}, {85, BandStrongLong},
		{84, BandLong}, {70, BandLong},
		{69, BandLeanLong}, {55, BandLeanLong},
		{54, BandNeutral}, {45, BandNeutral},
		{44, BandLeanShort}, {30, BandLeanShort},
		{29, BandShort}, {15, BandShort},
		{14, BandStrongShort}, {0, BandStrongShort},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BandOf(tt.score), "score %d", tt.score)
	}
	assert.True(t, BandStrongShort.Strong())
	assert.False(t, BandLong.Strong())
}

func TestFuse_RoundsHalfUp(t *testing.T) {
	scores := []TimeframeScore{{Score: 45}, {Score: 46}}
	fused := Fuse(scores, []float64{0.5, 0.5})
	assert.InDelta(t, 45.5, fused, 1e-9)
	assert.Equal(t, 46.0, roundHalfUp(fused))
}

func TestSynthesize_ScoreBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var s Synthesizer
	for trial := 0; trial < 50; trial++ {
		candles := make(map[model.Period][]model.Candle)
		for _, tf := range DefaultTimeframes {
			n := 15 + rng.Intn(60)
			series := make([]model.Candle, n)
			price := 24000.0
			for i := range series {
				open := price
				price += rng.NormFloat64() * 40
				hi, lo := open, price
				if lo > hi {
					hi, lo = lo, hi
				}
				series[i] = model.Candle{Open: open, High: hi + rng.Float64()*10, Low: lo - rng.Float64()*10, Close: price, Volume: int64(rng.Intn(1000))}
			}
			candles[tf.Period] = series
		}

		res := s.Synthesize(candles, nil, nil)
		assert.GreaterOrEqual(t, res.Score, 0)
		assert.LessOrEqual(t, res.Score, 100)
		for _, ts := range res.Timeframes {
			assert.GreaterOrEqual(t, ts.Score, 0)
			assert.LessOrEqual(t, ts.Score, 100)
		}
	}
}
