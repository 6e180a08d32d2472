// Package sentiment scores market mood on a 0-100 fear/greed scale from
// volume, volatility, open-interest drift, momentum and breadth.
package sentiment

import (
	"encoding/json"
	"math"

	"futures-analytics/internal/model"
	"futures-analytics/internal/ringbuf"
	"futures-analytics/internal/trend"
)

const (
	// MinCandles is the history needed for a non-default result.
	MinCandles = 20
	// HistorySize is the capacity of the sentiment history ring.
	HistorySize = 20
)

// Level is the named sentiment bucket.
type Level string

const (
	ExtremeGreed Level = "EXTREME_GREED"
	Greed        Level = "GREED"
	MildGreed    Level = "MILD_GREED"
	Neutral      Level = "NEUTRAL"
	MildFear     Level = "MILD_FEAR"
	Fear         Level = "FEAR"
	ExtremeFear  Level = "EXTREME_FEAR"
)

type levelInfo struct {
	description    string
	recommendation string
	color          string
}

var levels = map[Level]levelInfo{
	ExtremeGreed: {"Market is overly optimistic and may be near a top", "Avoid chasing, consider taking profit or shorting", "#ef4444"},
	Greed:        {"Sentiment leans optimistic", "Watch the risk and trim positions", "#f97316"},
	MildGreed:    {"Sentiment is slightly optimistic", "Stay cautious and observe", "#fbbf24"},
	Neutral:      {"Sentiment is balanced", "Wait for a clear signal", "#9ca3af"},
	MildFear:     {"Sentiment is slightly pessimistic", "Watch for dip-buying opportunities", "#60a5fa"},
	Fear:         {"Sentiment leans pessimistic", "Consider building positions gradually", "#34d399"},
	ExtremeFear:  {"Market is overly pessimistic and may be near a bottom", "Good long opportunity, scale in", "#10b981"},
}

// LevelOf buckets a score.
func LevelOf(score float64) Level {
	switch {
	case score >= 80:
		return ExtremeGreed
	case score >= 65:
		return Greed
	case score >= 55:
		return MildGreed
	case score >= 45:
		return Neutral
	case score >= 35:
		return MildFear
	case score >= 20:
		return Fear
	default:
		return ExtremeFear
	}
}

// Trend labels the direction of recent sentiment scores.
type Trend string

const (
	TrendIncreasing   Trend = "increasing"
	TrendDecreasing   Trend = "decreasing"
	TrendStable       Trend = "stable"
	TrendInsufficient Trend = "insufficient_data"
)

// Factor is one weighted sub-score.
type Factor struct {
	Name        string  `json:"name"`
	Score       int     `json:"score"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// Result is a sentiment evaluation.
type Result struct {
	Score          int      `json:"score"`
	Level          Level    `json:"level"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
	Color          string   `json:"color"`
	Factors        []Factor `json:"factors"`
	Trend          Trend    `json:"trend"`
}

// JSON returns the JSON-encoded result.
func (r *Result) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}

// Default is returned when there are too few candles.
func Default() Result {
	return Result{
		Score:          50,
		Level:          Neutral,
		Description:    "Insufficient data to analyse",
		Recommendation: "Wait for more data",
		Color:          levels[Neutral].color,
		Factors:        []Factor{},
		Trend:          TrendInsufficient,
	}
}

// NewHistory allocates a sentiment history ring for a Score caller.
func NewHistory() *ringbuf.Ring[float64] {
	return ringbuf.New[float64](HistorySize)
}

// Score evaluates the candles and the latest tick (which may be nil). The
// clamped, unrounded score is appended to history when it is non-nil.
func Score(candles []model.Candle, tick *model.Tick, history *ringbuf.Ring[float64]) Result {
	if len(candles) < MinCandles {
		return Default()
	}

	factors := []Factor{
		newFactor("volume", volumeScore(candles), 0.5, volumeDescription),
		newFactor("volatility", volatilityScore(candles), 0.5, volatilityDescription),
		newFactor("position", positionScore(candles, tick), 0.4, positionDescription),
		newFactor("momentum", momentumScore(candles), 0.4, momentumDescription),
		newFactor("breadth", breadthScore(candles), 0.2, breadthDescription),
	}

	score := 50.0
	for _, f := range factors {
		score += float64(f.Score-50) * f.Weight
	}
	score = math.Max(0, math.Min(100, score))

	level := LevelOf(score)
	info := levels[level]
	res := Result{
		Score:          int(math.Floor(score + 0.5)),
		Level:          level,
		Description:    info.description,
		Recommendation: info.recommendation,
		Color:          info.color,
		Factors:        factors,
		Trend:          TrendInsufficient,
	}
	if history != nil {
		history.Push(score)
		res.Trend = TrendOf(history.Values())
	}
	return res
}

// TrendOf labels the newest three scores.
func TrendOf(history []float64) Trend {
	switch trend.Of(history) {
	case trend.Rising:
		return TrendIncreasing
	case trend.Falling:
		return TrendDecreasing
	case trend.Flat:
		return TrendStable
	default:
		return TrendInsufficient
	}
}

func newFactor(name string, score int, weight float64, describe func(int) string) Factor {
	return Factor{Name: name, Score: score, Weight: weight, Description: describe(score)}
}
