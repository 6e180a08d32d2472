// Package mtf fuses per-timeframe scores into a single 0-100 fast signal.
//
// Each timeframe (1m, 5m, 15m by default) is scored independently from a
// base of 50 using trend, MACD, RSI, KDJ and momentum rules. The fused score
// is the weighted mean over the timeframes that had enough candles.
package mtf

import (
	"encoding/json"

	"futures-analytics/internal/model"
)

// Band is the fused score bucket.
type Band string

const (
	BandStrongLong  Band = "STRONG_LONG"
	BandLong        Band = "LONG"
	BandLeanLong    Band = "LEAN_LONG"
	BandNeutral     Band = "NEUTRAL"
	BandLeanShort   Band = "LEAN_SHORT"
	BandShort       Band = "SHORT"
	BandStrongShort Band = "STRONG_SHORT"
)

// BandInfo is the display and advice metadata attached to a band.
type BandInfo struct {
	Action     string `json:"action"`
	Confidence string `json:"confidence"`
	Urgency    string `json:"urgency"`
	Color      string `json:"color"`
}

var bandInfo = map[Band]BandInfo{
	BandStrongLong:  {Action: "Open a long position", Confidence: "very high", Urgency: "immediate", Color: "#10b981"},
	BandLong:        {Action: "Consider going long", Confidence: "high", Urgency: "soon", Color: "#34d399"},
	BandLeanLong:    {Action: "Hold longs and watch", Confidence: "medium", Urgency: "no rush", Color: "#fbbf24"},
	BandNeutral:     {Action: "Stay on the sidelines", Confidence: "low", Urgency: "not advised", Color: "#9ca3af"},
	BandLeanShort:   {Action: "Hold shorts and watch", Confidence: "medium", Urgency: "no rush", Color: "#fb923c"},
	BandShort:       {Action: "Consider going short", Confidence: "high", Urgency: "soon", Color: "#f87171"},
	BandStrongShort: {Action: "Open a short position", Confidence: "very high", Urgency: "immediate", Color: "#ef4444"},
}

// Info returns the band's metadata.
func (b Band) Info() BandInfo { return bandInfo[b] }

// Strong reports whether the band calls for immediate action.
func (b Band) Strong() bool { return b == BandStrongLong || b == BandStrongShort }

// Direction maps the band to LONG, SHORT or NEUTRAL.
func (b Band) Direction() string {
	switch b {
	case BandStrongLong, BandLong, BandLeanLong:
		return "LONG"
	case BandStrongShort, BandShort, BandLeanShort:
		return "SHORT"
	default:
		return "NEUTRAL"
	}
}

// BandOf buckets a fused score.
func BandOf(score int) Band {
	switch {
	case score >= 85:
		return BandStrongLong
	case score >= 70:
		return BandLong
	case score >= 55:
		return BandLeanLong
	case score >= 45:
		return BandNeutral
	case score >= 30:
		return BandLeanShort
	case score >= 15:
		return BandShort
	default:
		return BandStrongShort
	}
}

// Trend labels the direction of the recent fused scores.
type Trend string

const (
	TrendStrengtheningLong  Trend = "strengthening_long"
	TrendStrengtheningShort Trend = "strengthening_short"
	TrendFluctuating        Trend = "fluctuating"
	TrendInsufficient       Trend = "insufficient_data"
)

// KeyLevels are recent extremes and the current price, rounded to integers.
type KeyLevels struct {
	Resistance float64 `json:"resistance"`
	Support    float64 `json:"support"`
	Current    float64 `json:"current"`
}

// TimeframeScore is one timeframe's clamped score and the rules that fired.
type TimeframeScore struct {
	Period  model.Period `json:"period"`
	Label   string       `json:"label"`
	Score   int          `json:"score"`
	Reasons []string     `json:"reasons"`
}

// Result is the fused fast signal.
type Result struct {
	Score      int              `json:"score"`
	Band       Band             `json:"level"`
	Direction  string           `json:"direction"`
	Action     string           `json:"action"`
	Confidence string           `json:"confidence"`
	Urgency    string           `json:"urgency"`
	Color      string           `json:"color"`
	Reasons    []string         `json:"reasons"`
	KeyLevels  KeyLevels        `json:"keyLevels"`
	Timeframes []TimeframeScore `json:"timeframes"`
	Trend      Trend            `json:"trend"`
}

// JSON returns the JSON-encoded result.
func (r *Result) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}
