// Package risk computes stop-loss, take-profit and position sizing for a
// futures entry.
//
// Prices are rounded to whole ticks and currency amounts to cents with
// shopspring/decimal. Sizing runs in decimal so that floor divisions are
// exact.
package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"futures-analytics/internal/model"
)

// ErrInvalidRequest is wrapped by Validate failures.
var ErrInvalidRequest = errors.New("invalid risk request")

const (
	DefaultContractMultiplier = 15.0
	DefaultMarginRatio        = 0.08
	SupportResistanceWindow   = 20

	atrMultiplier = 2.0

	// maxAmount bounds every numeric input so derived prices stay finite.
	maxAmount = 1e15
)

// Direction of the intended position.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Preference is the trader's risk appetite.
type Preference string

const (
	Aggressive   Preference = "aggressive"
	Moderate     Preference = "moderate"
	Conservative Preference = "conservative"
)

type preferenceParams struct {
	stopRatio   float64 // fixed stop distance as a fraction of entry
	riskPercent float64 // share of equity put at risk
}

var preferences = map[Preference]preferenceParams{
	Aggressive:   {stopRatio: 0.03, riskPercent: 0.02},
	Moderate:     {stopRatio: 0.02, riskPercent: 0.015},
	Conservative: {stopRatio: 0.01, riskPercent: 0.01},
}

// Levels is a support/resistance pair.
type Levels struct {
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
}

// Request describes the entry to plan for. ATR and SupportResistance are
// optional.
type Request struct {
	EntryPrice         float64    `json:"entryPrice"`
	Direction          Direction  `json:"direction"`
	Equity             float64    `json:"equity"`
	Balance            float64    `json:"balance"`
	Margin             float64    `json:"margin"`
	RiskLevel          Preference `json:"riskLevel"`
	ATR                *float64   `json:"atr,omitempty"`
	SupportResistance  *Levels    `json:"supportResistance,omitempty"`
	ContractMultiplier float64    `json:"contractMultiplier,omitempty"`
}

// Validate rejects requests that cannot produce a meaningful plan.
func (r *Request) Validate() error {
	if err := r.checkFinite(); err != nil {
		return err
	}
	if r.EntryPrice <= 0 {
		return fmt.Errorf("%w: entryPrice must be positive", ErrInvalidRequest)
	}
	if r.Direction != Long && r.Direction != Short {
		return fmt.Errorf("%w: direction must be LONG or SHORT, got %q", ErrInvalidRequest, r.Direction)
	}
	if r.Equity < 0 || r.Balance < 0 {
		return fmt.Errorf("%w: equity and balance must not be negative", ErrInvalidRequest)
	}
	if r.RiskLevel != "" {
		if _, ok := preferences[r.RiskLevel]; !ok {
			return fmt.Errorf("%w: unknown riskLevel %q", ErrInvalidRequest, r.RiskLevel)
		}
	}
	return nil
}

type numField struct {
	name string
	v    float64
}

// checkFinite rejects NaN, infinities and values beyond maxAmount.
func (r *Request) checkFinite() error {
	fields := []numField{
		{"entryPrice", r.EntryPrice},
		{"equity", r.Equity},
		{"balance", r.Balance},
		{"margin", r.Margin},
		{"contractMultiplier", r.ContractMultiplier},
	}
	if r.ATR != nil {
		fields = append(fields, numField{"atr", *r.ATR})
	}
	if sr := r.SupportResistance; sr != nil {
		fields = append(fields, numField{"support", sr.Support}, numField{"resistance", sr.Resistance})
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.Abs(f.v) > maxAmount {
			return fmt.Errorf("%w: %s must be a finite number below %g", ErrInvalidRequest, f.name, maxAmount)
		}
	}
	return nil
}

func (r Request) withDefaults() Request {
	if r.Margin <= 0 {
		r.Margin = DefaultMarginRatio
	}
	if _, ok := preferences[r.RiskLevel]; !ok {
		r.RiskLevel = Moderate
	}
	if r.ContractMultiplier <= 0 {
		r.ContractMultiplier = DefaultContractMultiplier
	}
	if r.ATR != nil && *r.ATR <= 0 {
		r.ATR = nil
	}
	return r
}

// SupportResistance returns the highest high and lowest low of the last
// SupportResistanceWindow candles. ok is false with fewer candles.
func SupportResistance(candles []model.Candle) (Levels, bool) {
	if len(candles) < SupportResistanceWindow {
		return Levels{}, false
	}
	recent := model.Tail(candles, SupportResistanceWindow)
	lv := Levels{Support: recent[0].Low, Resistance: recent[0].High}
	for _, c := range recent[1:] {
		if c.High > lv.Resistance {
			lv.Resistance = c.High
		}
		if c.Low < lv.Support {
			lv.Support = c.Low
		}
	}
	return lv, true
}

// roundPrice rounds half away from zero to a whole price.
func roundPrice(v float64) float64 {
	return decimal.NewFromFloat(v).Round(0).InexactFloat64()
}

func roundMoney(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func percent(fraction float64) float64 {
	return decimal.NewFromFloat(fraction).Mul(decimal.NewFromInt(100)).InexactFloat64()
}
