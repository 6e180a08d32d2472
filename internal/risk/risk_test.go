package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-analytics/internal/model"
)

func ptr(v float64) *float64 { return &v }

func TestCalculate_ModerateLong(t *testing.T) {
	plan := Calculate(Request{
		EntryPrice: 24832,
		Direction:  Long,
		Equity:     1_000_000,
		Balance:    100_000,
		RiskLevel:  Moderate,
	})

	// 24832 * 0.98 = 24335.36
	assert.Equal(t, 24335.0, plan.StopLoss.Fixed.Price)
	assert.Equal(t, 497.0, plan.StopLoss.Fixed.Distance)
	assert.Equal(t, 2.0, plan.StopLoss.Fixed.Ratio)
	assert.Equal(t, 24335.0, plan.StopLoss.Recommended)
	assert.Nil(t, plan.StopLoss.ATR)
	assert.Nil(t, plan.StopLoss.Technical)

	assert.Equal(t, 25826.0, plan.TakeProfit.Recommended)
	assert.Equal(t, 25826.0, plan.TakeProfit.Conservative.Price)
	assert.Equal(t, 994.0, plan.TakeProfit.Conservative.Distance)
	assert.Equal(t, 26323.0, plan.TakeProfit.Aggressive.Price)
	require.Len(t, plan.TakeProfit.Partial, 2)
	assert.Equal(t, 25578.0, plan.TakeProfit.Partial[0].Price) // 25577.5 rounds up
	assert.Equal(t, 26075.0, plan.TakeProfit.Partial[1].Price) // 26074.5 rounds up

	// risk 15000 / (497*15=7455) = 2.01 -> 2
	// margin 100000 / (24832*15*0.08=29798.4) = 3.36 -> 3
	ps := plan.PositionSize
	assert.Equal(t, int64(2), ps.MaxByRisk)
	assert.Equal(t, int64(3), ps.MaxByMargin)
	assert.Equal(t, int64(2), ps.Recommended)
	assert.Equal(t, 59596.8, ps.MarginRequired)
	assert.Equal(t, 15000.0, ps.RiskAmount)
	assert.Equal(t, 1.5, ps.RiskPercentage)

	assert.Equal(t, 14910.0, plan.RiskReward.PotentialLoss)
	assert.Equal(t, 29820.0, plan.RiskReward.PotentialProfit2to1)
	assert.Equal(t, 44730.0, plan.RiskReward.PotentialProfit3to1)

	// 59596.8 / 100000 > 0.5
	assert.Equal(t, []string{WarnOverLeveraged}, plan.Warnings)
}

func TestCalculate_ShortWithATRAndLevels(t *testing.T) {
	plan := Calculate(Request{
		EntryPrice:        24832,
		Direction:         Short,
		Equity:            1_000_000,
		Balance:           1_000_000,
		RiskLevel:         Aggressive,
		ATR:               ptr(100),
		SupportResistance: &Levels{Support: 24500, Resistance: 25000},
	})

	assert.Equal(t, 25577.0, plan.StopLoss.Fixed.Price) // 24832 * 1.03 = 25576.96
	require.NotNil(t, plan.StopLoss.ATR)
	assert.Equal(t, 25032.0, plan.StopLoss.ATR.Price)
	assert.Equal(t, 2.0, plan.StopLoss.ATR.Multiplier)
	require.NotNil(t, plan.StopLoss.Technical)
	assert.Equal(t, 25125.0, plan.StopLoss.Technical.Price) // 25000 * 1.005
	assert.Equal(t, 25000.0, plan.StopLoss.Technical.Level)

	assert.Equal(t, 25032.0, plan.StopLoss.Recommended, "ATR stop wins")
	assert.Equal(t, 24432.0, plan.TakeProfit.Recommended)
	assert.Equal(t, 24232.0, plan.TakeProfit.Aggressive.Price)

	// risk 20000 / 3000 = 6.67 -> 6; margin 1000000 / 29798.4 -> 33
	assert.Equal(t, int64(6), plan.PositionSize.MaxByRisk)
	assert.Equal(t, int64(33), plan.PositionSize.MaxByMargin)
	assert.Equal(t, int64(6), plan.PositionSize.Recommended)
	assert.Empty(t, plan.Warnings)
}

func TestCalculate_SmallAccount(t *testing.T) {
	plan := Calculate(Request{
		EntryPrice: 24832,
		Direction:  Long,
		Equity:     100_000,
		Balance:    50_000,
		RiskLevel:  Moderate,
	})

	assert.Equal(t, 24335.0, plan.StopLoss.Recommended)
	assert.Equal(t, 25826.0, plan.TakeProfit.Recommended)

	// risk 1500 / 7455 -> 0; margin 50000 / 29798.4 -> 1
	assert.Equal(t, int64(0), plan.PositionSize.MaxByRisk)
	assert.Equal(t, int64(1), plan.PositionSize.MaxByMargin)
	assert.Equal(t, int64(0), plan.PositionSize.Recommended)
	assert.Equal(t, 0.0, plan.RiskReward.PotentialLoss)
	assert.Equal(t, []string{WarnInsufficientBalance}, plan.Warnings)
}

func TestCalculate_ZeroBalance(t *testing.T) {
	plan := Calculate(Request{EntryPrice: 24832, Direction: Long, Equity: 1_000_000, Balance: 0})

	assert.Equal(t, int64(0), plan.PositionSize.Recommended)
	assert.Equal(t, int64(0), plan.PositionSize.MaxByMargin)
	assert.Equal(t, 0.0, plan.RiskReward.PotentialLoss)
	assert.Contains(t, plan.Warnings, WarnInsufficientBalance)
	assert.Contains(t, plan.Warnings, WarnBalanceLimited)
	assert.NotContains(t, plan.Warnings, WarnOverLeveraged)
}

func TestCalculate_Defaults(t *testing.T) {
	plan := Calculate(Request{EntryPrice: 24832, Direction: Long, Equity: 100_000, Balance: 100_000, RiskLevel: "unknown", ATR: ptr(0)})
	assert.Equal(t, Moderate, plan.RiskLevel)
	assert.Nil(t, plan.StopLoss.ATR, "a zero ATR counts as absent")
	assert.Equal(t, 24335.0, plan.StopLoss.Recommended)
}

func TestCalculate_ZeroStopDistanceFallsBackToMargin(t *testing.T) {
	// 10 * 0.99 = 9.9 rounds back to the entry, so there is no per-contract risk.
	plan := Calculate(Request{EntryPrice: 10, Direction: Long, Equity: 1000, Balance: 120, RiskLevel: Conservative})
	assert.Equal(t, 0.0, plan.StopLoss.Fixed.Distance)
	// margin per contract 10*15*0.08 = 12
	assert.Equal(t, int64(10), plan.PositionSize.MaxByMargin)
	assert.Equal(t, int64(10), plan.PositionSize.MaxByRisk)
	assert.Equal(t, int64(10), plan.PositionSize.Recommended)
}

func TestCalculate_SizeBounds(t *testing.T) {
	for _, entry := range []float64{100, 2500, 24832, 80000} {
		for _, balance := range []float64{0, 5_000, 50_000, 5_000_000} {
			for _, pref := range []Preference{Aggressive, Moderate, Conservative} {
				plan := Calculate(Request{EntryPrice: entry, Direction: Long, Equity: 200_000, Balance: balance, RiskLevel: pref})
				ps := plan.PositionSize
				assert.GreaterOrEqual(t, ps.Recommended, int64(0))
				assert.LessOrEqual(t, ps.Recommended, ps.MaxByRisk)
				assert.LessOrEqual(t, ps.Recommended, ps.MaxByMargin)
				assert.True(t, ps.Recommended == ps.MaxByRisk || ps.Recommended == ps.MaxByMargin)
			}
		}
	}
}

func TestRequest_Validate(t *testing.T) {
	valid := Request{EntryPrice: 24832, Direction: Long, Equity: 1, Balance: 1}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(r *Request)
	}{
		{"zero entry", func(r *Request) { r.EntryPrice = 0 }},
		{"bad direction", func(r *Request) { r.Direction = "UP" }},
		{"negative balance", func(r *Request) { r.Balance = -1 }},
		{"unknown risk level", func(r *Request) { r.RiskLevel = "yolo" }},
		{"nan entry", func(r *Request) { r.EntryPrice = math.NaN() }},
		{"infinite entry", func(r *Request) { r.EntryPrice = math.Inf(1) }},
		{"nan equity", func(r *Request) { r.Equity = math.NaN() }},
		{"infinite balance", func(r *Request) { r.Balance = math.Inf(1) }},
		{"nan margin", func(r *Request) { r.Margin = math.NaN() }},
		{"negative infinite margin", func(r *Request) { r.Margin = math.Inf(-1) }},
		{"nan atr", func(r *Request) { r.ATR = ptr(math.NaN()) }},
		{"infinite multiplier", func(r *Request) { r.ContractMultiplier = math.Inf(1) }},
		{"nan support", func(r *Request) { r.SupportResistance = &Levels{Support: math.NaN(), Resistance: 1} }},
		{"entry beyond range", func(r *Request) { r.EntryPrice = 1e300 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRequest))
		})
	}
}

func TestSupportResistance(t *testing.T) {
	candles := make([]model.Candle, 25)
	for i := range candles {
		c := 100 + float64(i)
		candles[i] = model.Candle{Open: c, High: c + 2, Low: c - 2, Close: c}
	}

	_, ok := SupportResistance(candles[:19])
	assert.False(t, ok)

	lv, ok := SupportResistance(candles)
	require.True(t, ok)
	assert.Equal(t, Levels{Support: 103, Resistance: 126}, lv) // bars 5..24
}
