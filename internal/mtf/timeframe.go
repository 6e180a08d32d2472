package mtf

import (
	"fmt"

	"futures-analytics/internal/indicator"
	"futures-analytics/internal/model"
)

// MinCandles is the minimum history a timeframe needs to be scored.
const MinCandles = 20

const (
	baseScore      = 50
	momentumWindow = 5
)

// Timeframe is one input to the fusion and its weight.
type Timeframe struct {
	Period model.Period
	Label  string
	Weight float64
}

// DefaultTimeframes weights the 5-minute view highest.
var DefaultTimeframes = []Timeframe{
	{Period: model.Period1m, Label: "1m", Weight: 0.2},
	{Period: model.Period5m, Label: "5m", Weight: 0.5},
	{Period: model.Period15m, Label: "15m", Weight: 0.3},
}

// ScoreTimeframe scores one candle series from a base of 50. Rules whose
// indicator is not yet available are skipped. ok is false below MinCandles.
func ScoreTimeframe(tf Timeframe, candles []model.Candle) (TimeframeScore, bool) {
	if len(candles) < MinCandles {
		return TimeframeScore{}, false
	}
	closes := model.Closes(candles)
	score := baseScore
	var reasons []string
	add := func(format string, args ...any) {
		reasons = append(reasons, tf.Label+" "+fmt.Sprintf(format, args...))
	}

	// trend
	ma5, _ := indicator.SMA(closes, 5)
	ma10, _ := indicator.SMA(closes, 10)
	ma20, _ := indicator.SMA(closes, 20)
	switch {
	case ma5 > ma10 && ma10 > ma20:
		score += 30
		add("bullish MA alignment")
	case ma5 < ma10 && ma10 < ma20:
		score -= 30
		add("bearish MA alignment")
	case ma5 > ma20:
		score += 15
		add("trend leaning long")
	default:
		score -= 15
		add("trend leaning short")
	}

	// MACD cross needs two points with a signal line.
	if series := indicator.MACDSeries(closes); len(series) >= 2 {
		cur, prev := series[len(series)-1], series[len(series)-2]
		if prev.SignalReady {
			switch {
			case prev.DIF <= prev.DEA && cur.DIF > cur.DEA:
				score += 25
				add("MACD golden cross")
			case prev.DIF >= prev.DEA && cur.DIF < cur.DEA:
				score -= 25
				add("MACD death cross")
			}
		}
		if cur.SignalReady {
			switch {
			case cur.DIF > 0 && cur.Histogram > 0:
				score += 10
			case cur.DIF < 0 && cur.Histogram < 0:
				score -= 10
			}
		}
	}

	if rsi, ok := indicator.RSI(closes, 14); ok {
		switch {
		case rsi < 30:
			score += 20
			add("RSI oversold (%.1f)", rsi)
		case rsi > 70:
			score -= 20
			add("RSI overbought (%.1f)", rsi)
		case rsi < 40:
			score += 10
		case rsi > 60:
			score -= 10
		}
	}

	cur, okCur := indicator.KDJ(candles, 9)
	prev, okPrev := indicator.KDJ(candles[:len(candles)-1], 9)
	if okCur && okPrev {
		switch {
		case prev.K <= prev.D && cur.K > cur.D && cur.J < 20:
			score += 15
			add("KDJ golden cross at a low level")
		case prev.K >= prev.D && cur.K < cur.D && cur.J > 80:
			score -= 15
			add("KDJ death cross at a high level")
		}
	}

	up := 0
	for _, c := range model.Tail(candles, momentumWindow) {
		if c.Up() {
			up++
		}
	}
	switch {
	case up >= 4:
		score += 10
		add("consecutive up bars")
	case up <= 1:
		score -= 10
		add("consecutive down bars")
	}

	return TimeframeScore{
		Period:  tf.Period,
		Label:   tf.Label,
		Score:   clamp(score, 0, 100),
		Reasons: reasons,
	}, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
