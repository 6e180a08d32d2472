package signal

import (
	"fmt"

	"futures-analytics/internal/model"
)

// Side is where a rule's points go.
type Side int

const (
	SideLong Side = iota
	SideShort
	// SideLeading credits long when long is ahead at the point the rule
	// runs, short otherwise. Its position in the table matters.
	SideLeading
)

// Input is what every rule condition sees.
type Input struct {
	Candles   []model.Candle
	Ind       *model.IndicatorSet
	Price     float64 // latest close
	PrevClose float64
	Leading   Side // side a SideLeading rule is crediting
}

// Rule is one row of the scoring table.
type Rule struct {
	Name   string
	Side   Side
	Points int
	When   func(in *Input) bool
	Reason func(in *Input) string
}

func text(s string) func(*Input) string {
	return func(*Input) string { return s }
}

// volumeWindow is the number of bars averaged by the volume confirmation rule.
const volumeWindow = 10

// DefaultRules is the standard single-timeframe table.
var DefaultRules = []Rule{
	// MACD
	{
		Name: "macd_golden", Side: SideLong, Points: 15,
		When:   func(in *Input) bool { m := in.Ind.MACD; return m.SignalReady && m.Histogram > 0 && m.DIF > m.DEA },
		Reason: text("MACD bullish: DIF above DEA"),
	},
	{
		Name: "macd_above_zero", Side: SideLong, Points: 10,
		When:   func(in *Input) bool { m := in.Ind.MACD; return m.SignalReady && m.DIF > 0 && m.Histogram > 0 },
		Reason: text("DIF above the zero line, bullish trend"),
	},
	{
		Name: "macd_dead", Side: SideShort, Points: 15,
		When:   func(in *Input) bool { m := in.Ind.MACD; return m.SignalReady && m.Histogram < 0 && m.DIF < m.DEA },
		Reason: text("MACD bearish: DIF below DEA"),
	},
	{
		Name: "macd_below_zero", Side: SideShort, Points: 10,
		When:   func(in *Input) bool { m := in.Ind.MACD; return m.SignalReady && m.DIF < 0 && m.Histogram < 0 },
		Reason: text("DIF below the zero line, bearish trend"),
	},

	// KDJ
	{
		Name: "kdj_cross_up_oversold", Side: SideLong, Points: 20,
		When:   func(in *Input) bool { k := in.Ind.KDJ; return k.K > k.D && k.J < 20 },
		Reason: text("KDJ crossed up with J<20, oversold rebound"),
	},
	{
		Name: "kdj_cross_up", Side: SideLong, Points: 10,
		When:   func(in *Input) bool { k := in.Ind.KDJ; return k.K > k.D && k.J >= 20 && k.J < 50 },
		Reason: text("KDJ crossed up, bullish"),
	},
	{
		Name: "kdj_cross_down_overbought", Side: SideShort, Points: 20,
		When:   func(in *Input) bool { k := in.Ind.KDJ; return k.K < k.D && k.J > 80 },
		Reason: text("KDJ crossed down with J>80, overbought pullback"),
	},
	{
		Name: "kdj_cross_down", Side: SideShort, Points: 10,
		When:   func(in *Input) bool { k := in.Ind.KDJ; return k.K < k.D && k.J > 50 && k.J <= 80 },
		Reason: text("KDJ crossed down, bearish"),
	},

	// RSI
	{
		Name: "rsi_oversold", Side: SideLong, Points: 15,
		When:   func(in *Input) bool { return in.Ind.RSI < 30 },
		Reason: func(in *Input) string { return fmt.Sprintf("RSI %.1f below 30, oversold", in.Ind.RSI) },
	},
	{
		Name: "rsi_recovering", Side: SideLong, Points: 8,
		When:   func(in *Input) bool { return in.Ind.RSI > 30 && in.Ind.RSI < 50 },
		Reason: text("RSI recovering from oversold"),
	},
	{
		Name: "rsi_overbought", Side: SideShort, Points: 15,
		When:   func(in *Input) bool { return in.Ind.RSI > 70 },
		Reason: func(in *Input) string { return fmt.Sprintf("RSI %.1f above 70, overbought", in.Ind.RSI) },
	},
	{
		Name: "rsi_fading", Side: SideShort, Points: 8,
		When:   func(in *Input) bool { return in.Ind.RSI > 50 && in.Ind.RSI < 70 },
		Reason: text("RSI falling back from overbought"),
	},

	// Bollinger
	{
		Name: "boll_break_up", Side: SideLong, Points: 20,
		When:   func(in *Input) bool { return in.Price > in.Ind.BOLL.Middle && in.PrevClose <= in.Ind.BOLL.Middle },
		Reason: text("Price broke above the Bollinger middle band"),
	},
	{
		Name: "boll_above_mid", Side: SideLong, Points: 10,
		When:   func(in *Input) bool { return in.Price > in.Ind.BOLL.Middle && in.PrevClose > in.Ind.BOLL.Middle },
		Reason: text("Price above the Bollinger middle band"),
	},
	{
		Name: "boll_break_down", Side: SideShort, Points: 20,
		When:   func(in *Input) bool { return in.Price < in.Ind.BOLL.Middle && in.PrevClose >= in.Ind.BOLL.Middle },
		Reason: text("Price broke below the Bollinger middle band"),
	},
	{
		Name: "boll_below_mid", Side: SideShort, Points: 10,
		When:   func(in *Input) bool { return in.Price < in.Ind.BOLL.Middle && in.PrevClose < in.Ind.BOLL.Middle },
		Reason: text("Price below the Bollinger middle band"),
	},
	{
		Name: "boll_near_upper", Side: SideShort, Points: 5,
		When:   func(in *Input) bool { return in.Price >= in.Ind.BOLL.Upper*0.99 },
		Reason: text("Price near the upper band, watch for a pullback"),
	},
	{
		Name: "boll_near_lower", Side: SideLong, Points: 5,
		When:   func(in *Input) bool { return in.Price <= in.Ind.BOLL.Lower*1.01 },
		Reason: text("Price near the lower band, watch for a rebound"),
	},

	// Volume confirms whoever leads so far
	{
		Name: "volume_confirmation", Side: SideLeading, Points: 10,
		When: volumeExpanding,
		Reason: func(in *Input) string {
			if in.Leading == SideLong {
				return "Volume expansion confirms the long side"
			}
			return "Volume expansion confirms the short side"
		},
	},

	// Moving averages
	{
		Name: "ma_bull_alignment", Side: SideLong, Points: 10,
		When:   func(in *Input) bool { i := in.Ind; return i.MA5 > i.MA10 && i.MA10 > i.MA20 },
		Reason: text("Moving averages in bullish alignment"),
	},
	{
		Name: "ma_bear_alignment", Side: SideShort, Points: 10,
		When:   func(in *Input) bool { i := in.Ind; return i.MA5 < i.MA10 && i.MA10 < i.MA20 },
		Reason: text("Moving averages in bearish alignment"),
	},
}

// volumeExpanding reports whether the newest bar's volume exceeds 1.5x the
// mean of the last volumeWindow bars (newest included).
func volumeExpanding(in *Input) bool {
	recent := model.Tail(in.Candles, volumeWindow)
	if len(recent) == 0 {
		return false
	}
	var sum int64
	for _, c := range recent {
		sum += c.Volume
	}
	avg := float64(sum) / float64(len(recent))
	return float64(recent[len(recent)-1].Volume) > avg*1.5
}
