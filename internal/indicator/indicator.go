// Package indicator provides technical indicator calculations over candle data.
//
// Every function here is pure: it reads its input slice and returns a fresh
// value. A false ok result means the series is shorter than the indicator's
// minimum window; callers must check it instead of using a zero value.
package indicator

import "futures-analytics/internal/model"

// MinCandles is the shortest sequence CalculateAll accepts.
const MinCandles = 30

// CalculateAll computes the full indicator bundle for a candle sequence.
// Returns nil when fewer than MinCandles candles are supplied.
func CalculateAll(candles []model.Candle) *model.IndicatorSet {
	if len(candles) < MinCandles {
		return nil
	}
	closes := model.Closes(candles)

	set := &model.IndicatorSet{}
	set.MA5, _ = SMA(closes, 5)
	set.MA10, _ = SMA(closes, 10)
	set.MA20, _ = SMA(closes, 20)
	if ma60, ok := SMA(closes, 60); ok {
		set.MA60 = &ma60
	}
	set.EMA12, _ = EMA(closes, 12)
	set.EMA26, _ = EMA(closes, 26)
	set.MACD, _ = MACD(closes)
	set.RSI, _ = RSI(closes, 14)
	set.KDJ, _ = KDJ(candles, 9)
	set.BOLL, _ = BOLL(closes, 20, 2)
	set.ATR, _ = ATR(candles, 14)
	return set
}
