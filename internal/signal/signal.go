// Package signal scores a single timeframe's indicators into a directional
// long/short signal.
//
// Scoring is table-driven: every Rule names a side, a point value and a
// condition. Score walks the table, adds points for each rule that fires
// and records its reason.
package signal

import "encoding/json"

// Category is the final signal label.
type Category string

const (
	StrongLong  Category = "STRONG_LONG"
	Long        Category = "LONG"
	WeakLong    Category = "WEAK_LONG"
	Wait        Category = "WAIT"
	WeakShort   Category = "WEAK_SHORT"
	Short       Category = "SHORT"
	StrongShort Category = "STRONG_SHORT"
)

var descriptions = map[Category]string{
	StrongLong:  "Strong long signal, consider opening long",
	Long:        "Long signal, consider going long",
	WeakLong:    "Weak long signal, trade with caution",
	StrongShort: "Strong short signal, consider opening short",
	Short:       "Short signal, consider going short",
	WeakShort:   "Weak short signal, trade with caution",
	Wait:        "No clear edge, stay on the sidelines",
}

// Description returns the human-readable meaning of a category.
func (c Category) Description() string {
	if d, ok := descriptions[c]; ok {
		return d
	}
	return "No clear signal"
}

// Direction is the side that won the scoring.
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

// Category thresholds applied to the winning side's score.
const (
	StrongThreshold = 75
	NormalThreshold = 60
	WeakThreshold   = 40
)

// Result is one evaluation of a timeframe.
type Result struct {
	Category    Category  `json:"signal"`
	Strength    int       `json:"strength"`
	Direction   Direction `json:"direction"`
	LongScore   int       `json:"longScore"`
	ShortScore  int       `json:"shortScore"`
	Reasons     []string  `json:"reasons"`
	Description string    `json:"description"`
}

// JSON returns the JSON-encoded result.
func (r *Result) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}

// Categorize maps long/short scores to a direction, strength and category.
// Ties are neutral.
func Categorize(longScore, shortScore int) (Category, Direction, int) {
	switch {
	case longScore > shortScore:
		return band(longScore, StrongLong, Long, WeakLong), DirectionLong, longScore
	case shortScore > longScore:
		return band(shortScore, StrongShort, Short, WeakShort), DirectionShort, shortScore
	default:
		return Wait, DirectionNeutral, 0
	}
}

func band(score int, strong, normal, weak Category) Category {
	switch {
	case score >= StrongThreshold:
		return strong
	case score >= NormalThreshold:
		return normal
	case score >= WeakThreshold:
		return weak
	default:
		return Wait
	}
}
