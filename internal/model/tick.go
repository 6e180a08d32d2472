package model

import (
	"encoding/json"
	"time"
)

// Tick represents a single quote from the futures feed.
// Timestamp is milliseconds since the Unix epoch. Open/High/Low and
// OpenInterest are optional and stay nil when the upstream omits them.
type Tick struct {
	Symbol       string   `json:"symbol"`
	Timestamp    int64    `json:"timestamp"` // ms epoch
	Price        float64  `json:"price"`
	Open         *float64 `json:"open,omitempty"`
	High         *float64 `json:"high,omitempty"`
	Low          *float64 `json:"low,omitempty"`
	Volume       int64    `json:"volume"`
	OpenInterest *int64   `json:"openInterest,omitempty"`
}

// Time returns the tick timestamp as a UTC time.Time.
func (t *Tick) Time() time.Time {
	return time.UnixMilli(t.Timestamp).UTC()
}

// HasOpenInterest reports whether the feed supplied a non-zero open
// interest. Feeds that do not track it send 0.
func (t *Tick) HasOpenInterest() bool {
	return t.OpenInterest != nil && *t.OpenInterest != 0
}

// JSON returns the JSON-encoded tick (ignoring errors for hot-path usage).
func (t *Tick) JSON() []byte {
	b, _ := json.Marshal(t)
	return b
}
