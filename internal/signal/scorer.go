package signal

import (
	"futures-analytics/internal/indicator"
	"futures-analytics/internal/model"
)

// InsufficientReason is reported when there are too few candles to score.
const InsufficientReason = "insufficient data, waiting for more candles"

// Scorer evaluates a rule table. The zero value uses DefaultRules.
type Scorer struct {
	Rules []Rule
}

// NewScorer creates a scorer over the given rules (DefaultRules when nil).
func NewScorer(rules []Rule) *Scorer {
	return &Scorer{Rules: rules}
}

// Score evaluates candles and their indicators. Fewer than
// indicator.MinCandles candles, or a nil set, yields WAIT/NEUTRAL.
func (s *Scorer) Score(candles []model.Candle, ind *model.IndicatorSet) Result {
	if len(candles) < indicator.MinCandles || ind == nil {
		return Result{
			Category:    Wait,
			Direction:   DirectionNeutral,
			Reasons:     []string{InsufficientReason},
			Description: Wait.Description(),
		}
	}

	rules := s.Rules
	if rules == nil {
		rules = DefaultRules
	}

	in := &Input{
		Candles:   candles,
		Ind:       ind,
		Price:     candles[len(candles)-1].Close,
		PrevClose: candles[len(candles)-2].Close,
	}

	var long, short int
	reasons := make([]string, 0, 8)
	for i := range rules {
		r := &rules[i]
		if !r.When(in) {
			continue
		}
		side := r.Side
		if side == SideLeading {
			side = SideShort
			if long > short {
				side = SideLong
			}
			in.Leading = side
		}
		if side == SideLong {
			long += r.Points
		} else {
			short += r.Points
		}
		reasons = append(reasons, r.Reason(in))
	}

	cat, dir, strength := Categorize(long, short)
	return Result{
		Category:    cat,
		Strength:    strength,
		Direction:   dir,
		LongScore:   long,
		ShortScore:  short,
		Reasons:     reasons,
		Description: cat.Description(),
	}
}

// Score evaluates with DefaultRules.
func Score(candles []model.Candle, ind *model.IndicatorSet) Result {
	var s Scorer
	return s.Score(candles, ind)
}
