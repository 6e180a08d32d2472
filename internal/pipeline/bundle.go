package pipeline

import (
	"encoding/json"

	"futures-analytics/internal/model"
	"futures-analytics/internal/mtf"
	"futures-analytics/internal/sentiment"
	"futures-analytics/internal/signal"
)

// Bundle is the analysis produced each time a 1-minute candle finalizes.
// It is never mutated after it is built.
type Bundle struct {
	Symbol     string                          `json:"symbol"`
	Timestamp  int64                           `json:"timestamp"` // start of the minute that closed
	Candles    map[model.Period][]model.Candle `json:"klines"`
	Closed     map[model.Period]model.Candle   `json:"closed,omitempty"`
	Indicators *model.IndicatorSet             `json:"indicators"`
	Signal     signal.Result                   `json:"signal"`
	FastSignal mtf.Result                      `json:"fastSignal"`
	Sentiment  sentiment.Result                `json:"sentiment"`
}

// JSON returns the JSON-encoded bundle.
func (b *Bundle) JSON() []byte {
	data, _ := json.Marshal(b)
	return data
}

// Event is what the session emits: every accepted tick, plus a Bundle on
// the ticks that finalize a minute. A flush without a tick carries only
// the Bundle.
type Event struct {
	Tick   *model.Tick
	Bundle *Bundle
}
