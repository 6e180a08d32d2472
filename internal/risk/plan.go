package risk

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Warning texts attached to a plan.
const (
	WarnInsufficientBalance = "insufficient balance, cannot open a position"
	WarnOverLeveraged       = "margin usage above 50%, position too heavy"
	WarnBalanceLimited      = "available balance limits the position size"
)

// StopLevel is one stop-loss candidate.
type StopLevel struct {
	Price      float64 `json:"price"`
	Distance   float64 `json:"distance"`
	Ratio      float64 `json:"ratio,omitempty"`      // fixed stop, percent of entry
	Multiplier float64 `json:"multiplier,omitempty"` // ATR stop
	Level      float64 `json:"level,omitempty"`      // technical stop, the S/R it sits behind
}

// StopLoss holds every candidate and the recommended price.
type StopLoss struct {
	Fixed       StopLevel  `json:"fixed"`
	ATR         *StopLevel `json:"atr,omitempty"`
	Technical   *StopLevel `json:"technical,omitempty"`
	Recommended float64    `json:"recommended"`
}

// Target is a take-profit at a fixed reward:risk multiple.
type Target struct {
	Price    float64 `json:"price"`
	Ratio    string  `json:"ratio"`
	Distance float64 `json:"distance"`
}

// PartialExit closes Percentage of the position at Price.
type PartialExit struct {
	Price       float64 `json:"price"`
	Percentage  float64 `json:"percentage"`
	Description string  `json:"description"`
}

// TakeProfit holds the 2:1 and 3:1 targets and the partial exit ladder.
type TakeProfit struct {
	Conservative Target        `json:"conservative"`
	Aggressive   Target        `json:"aggressive"`
	Recommended  float64       `json:"recommended"`
	Partial      []PartialExit `json:"partial"`
}

// PositionSize is the sizing outcome in contracts.
type PositionSize struct {
	Recommended    int64   `json:"recommended"`
	MaxByMargin    int64   `json:"maxByMargin"`
	MaxByRisk      int64   `json:"maxByRisk"`
	MarginRequired float64 `json:"marginRequired"`
	RiskAmount     float64 `json:"riskAmount"`
	RiskPercentage float64 `json:"riskPercentage"`
}

// RiskReward is the currency outcome of the recommended size.
type RiskReward struct {
	PotentialLoss       float64 `json:"potentialLoss"`
	PotentialProfit2to1 float64 `json:"potentialProfit2to1"`
	PotentialProfit3to1 float64 `json:"potentialProfit3to1"`
}

// Plan is the full risk calculation.
type Plan struct {
	EntryPrice   float64      `json:"entryPrice"`
	Direction    Direction    `json:"direction"`
	RiskLevel    Preference   `json:"riskLevel"`
	StopLoss     StopLoss     `json:"stopLoss"`
	TakeProfit   TakeProfit   `json:"takeProfit"`
	PositionSize PositionSize `json:"positionSize"`
	RiskReward   RiskReward   `json:"riskReward"`
	Warnings     []string     `json:"warnings"`
}

// JSON returns the JSON-encoded plan.
func (p *Plan) JSON() []byte {
	b, _ := json.Marshal(p)
	return b
}

// Calculate builds a plan. Missing margin, preference and multiplier take
// their defaults; callers that need input checking run Validate first.
func Calculate(req Request) Plan {
	req = req.withDefaults()
	params := preferences[req.RiskLevel]
	entry := req.EntryPrice
	sign := 1.0 // direction of profit
	if req.Direction == Short {
		sign = -1
	}

	plan := Plan{
		EntryPrice: entry,
		Direction:  req.Direction,
		RiskLevel:  req.RiskLevel,
		Warnings:   []string{},
	}

	// stop-loss candidates
	fixed := roundPrice(entry * (1 - sign*params.stopRatio))
	plan.StopLoss.Fixed = StopLevel{
		Price:    fixed,
		Distance: math.Abs(entry - fixed),
		Ratio:    percent(params.stopRatio),
	}
	recommended := fixed

	if req.ATR != nil {
		p := roundPrice(entry - sign*atrMultiplier*(*req.ATR))
		plan.StopLoss.ATR = &StopLevel{Price: p, Distance: math.Abs(entry - p), Multiplier: atrMultiplier}
		recommended = p
	}

	if sr := req.SupportResistance; sr != nil {
		level, raw := sr.Support, sr.Support*0.995
		if req.Direction == Short {
			level, raw = sr.Resistance, sr.Resistance*1.005
		}
		p := roundPrice(raw)
		plan.StopLoss.Technical = &StopLevel{Price: p, Distance: math.Abs(entry - p), Level: level}
	}
	plan.StopLoss.Recommended = recommended
	dist := math.Abs(entry - recommended)

	// take-profit
	target := func(mult float64) float64 { return roundPrice(entry + sign*dist*mult) }
	plan.TakeProfit = TakeProfit{
		Conservative: Target{Price: target(2), Ratio: "2:1", Distance: roundPrice(dist * 2)},
		Aggressive:   Target{Price: target(3), Ratio: "3:1", Distance: roundPrice(dist * 3)},
		Recommended:  target(2),
		Partial: []PartialExit{
			{Price: target(1.5), Percentage: 50, Description: "close 50% at 1.5x the stop distance"},
			{Price: target(2.5), Percentage: 50, Description: "close the remaining 50% at 2.5x the stop distance"},
		},
	}

	// sizing
	mult := decimal.NewFromFloat(req.ContractMultiplier)
	riskAmount := decimal.NewFromFloat(req.Equity).Mul(decimal.NewFromFloat(params.riskPercent))
	riskPerContract := decimal.NewFromFloat(dist).Mul(mult)
	marginPerContract := decimal.NewFromFloat(entry).Mul(mult).Mul(decimal.NewFromFloat(req.Margin))

	maxByMargin := decimal.Zero
	if marginPerContract.IsPositive() {
		maxByMargin = decimal.NewFromFloat(req.Balance).Div(marginPerContract).Floor()
	}
	maxByRisk := maxByMargin
	if riskPerContract.IsPositive() {
		maxByRisk = riskAmount.Div(riskPerContract).Floor()
	}
	lots := decimal.Max(decimal.Zero, decimal.Min(maxByRisk, maxByMargin))
	marginRequired := lots.Mul(marginPerContract)

	plan.PositionSize = PositionSize{
		Recommended:    lots.IntPart(),
		MaxByMargin:    maxByMargin.IntPart(),
		MaxByRisk:      maxByRisk.IntPart(),
		MarginRequired: roundMoney(marginRequired),
		RiskAmount:     roundMoney(riskAmount),
		RiskPercentage: percent(params.riskPercent),
	}

	loss := lots.Mul(riskPerContract)
	plan.RiskReward = RiskReward{
		PotentialLoss:       roundMoney(loss),
		PotentialProfit2to1: roundMoney(loss.Mul(decimal.NewFromInt(2))),
		PotentialProfit3to1: roundMoney(loss.Mul(decimal.NewFromInt(3))),
	}

	// warnings
	if lots.IsZero() {
		plan.Warnings = append(plan.Warnings, WarnInsufficientBalance)
	}
	if req.Balance > 0 && marginRequired.Div(decimal.NewFromFloat(req.Balance)).GreaterThan(decimal.NewFromFloat(0.5)) {
		plan.Warnings = append(plan.Warnings, WarnOverLeveraged)
	}
	if lots.LessThan(maxByRisk) {
		plan.Warnings = append(plan.Warnings, WarnBalanceLimited)
	}
	return plan
}

// String summarises the plan for logs.
func (p Plan) String() string {
	return fmt.Sprintf("%s @%.0f stop=%.0f tp=%.0f lots=%d",
		p.Direction, p.EntryPrice, p.StopLoss.Recommended, p.TakeProfit.Recommended, p.PositionSize.Recommended)
}
