package mtf

import (
	"math"

	"futures-analytics/internal/model"
	"futures-analytics/internal/ringbuf"
	"futures-analytics/internal/trend"
)

const (
	// HistorySize is the capacity of the fused-score history ring.
	HistorySize = 10

	maxReasons     = 8
	keyLevelWindow = 20
	defaultScore   = 50.0
)

// NewHistory allocates a fused-score history ring for a Synthesizer caller.
func NewHistory() *ringbuf.Ring[float64] {
	return ringbuf.New[float64](HistorySize)
}

// Synthesizer scores and fuses a set of timeframes. The zero value uses
// DefaultTimeframes.
type Synthesizer struct {
	Timeframes []Timeframe
}

// Synthesize scores every timeframe that has at least MinCandles candles and
// fuses them. tick may be nil. When history is non-nil the fused score is
// appended to it and the trend is read from it.
func (s *Synthesizer) Synthesize(candles map[model.Period][]model.Candle, tick *model.Tick, history *ringbuf.Ring[float64]) Result {
	tfs := s.Timeframes
	if tfs == nil {
		tfs = DefaultTimeframes
	}

	var (
		scores  []TimeframeScore
		weights []float64
		reasons []string
		used    [][]model.Candle
	)
	for _, tf := range tfs {
		series := candles[tf.Period]
		ts, ok := ScoreTimeframe(tf, series)
		if !ok {
			continue
		}
		scores = append(scores, ts)
		weights = append(weights, tf.Weight)
		reasons = append(reasons, ts.Reasons...)
		used = append(used, series)
	}
	if len(reasons) > maxReasons {
		reasons = reasons[:maxReasons]
	}

	score := int(roundHalfUp(Fuse(scores, weights)))
	band := BandOf(score)
	info := band.Info()

	res := Result{
		Score:      score,
		Band:       band,
		Direction:  band.Direction(),
		Action:     info.Action,
		Confidence: info.Confidence,
		Urgency:    info.Urgency,
		Color:      info.Color,
		Reasons:    reasons,
		KeyLevels:  keyLevels(used, tick),
		Timeframes: scores,
		Trend:      TrendInsufficient,
	}
	if res.Reasons == nil {
		res.Reasons = []string{}
	}
	if history != nil {
		history.Push(float64(score))
		res.Trend = TrendOf(history.Values())
	}
	return res
}

// Fuse returns the weighted mean of the scores, renormalized over the weights
// present. With no scores (or zero total weight) it returns 50.
func Fuse(scores []TimeframeScore, weights []float64) float64 {
	var total, wsum float64
	for i, s := range scores {
		total += float64(s.Score) * weights[i]
		wsum += weights[i]
	}
	if wsum <= 0 {
		return defaultScore
	}
	return total / wsum
}

// TrendOf labels the newest three fused scores.
func TrendOf(history []float64) Trend {
	switch trend.Of(history) {
	case trend.Rising:
		return TrendStrengtheningLong
	case trend.Falling:
		return TrendStrengtheningShort
	case trend.Flat:
		return TrendFluctuating
	default:
		return TrendInsufficient
	}
}

// keyLevels scans the last keyLevelWindow candles of every contributing
// series. The current price is the tick price, else the first available
// last close.
func keyLevels(used [][]model.Candle, tick *model.Tick) KeyLevels {
	high, low := 0.0, math.Inf(1)
	current := 0.0
	if tick != nil {
		current = tick.Price
	}
	for _, series := range used {
		recent := model.Tail(series, keyLevelWindow)
		for _, c := range recent {
			if c.High > high {
				high = c.High
			}
			if c.Low < low {
				low = c.Low
			}
		}
		if current == 0 && len(recent) > 0 {
			current = recent[len(recent)-1].Close
		}
	}
	if math.IsInf(low, 1) {
		low = 0
	}
	return KeyLevels{
		Resistance: roundHalfUp(high),
		Support:    roundHalfUp(low),
		Current:    roundHalfUp(current),
	}
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
