package indicator

import "futures-analytics/internal/model"

// kdjSeed is the prior K and D assumed on every call. The lines are not
// carried between calls, so K and D depend only on the current RSV.
const kdjSeed = 50.0

// KDJ computes the stochastic K/D/J over the trailing period candles.
// RSV = (close - lowest low) / (highest high - lowest low) * 100; a flat
// window (high == low) yields RSV 50.
func KDJ(candles []model.Candle, period int) (model.KDJ, bool) {
	if period <= 0 || len(candles) < period {
		return model.KDJ{}, false
	}
	window := candles[len(candles)-period:]
	high, low := window[0].High, window[0].Low
	for _, c := range window[1:] {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}

	rsv := 50.0
	if high != low {
		rsv = (window[len(window)-1].Close - low) / (high - low) * 100
	}

	k := 2.0/3.0*kdjSeed + 1.0/3.0*rsv
	d := 2.0/3.0*kdjSeed + 1.0/3.0*k
	return model.KDJ{K: k, D: d, J: 3*k - 2*d}, true
}
