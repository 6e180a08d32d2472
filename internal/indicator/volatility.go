package indicator

import (
	"math"

	"futures-analytics/internal/model"
)

// BOLL computes Bollinger bands: middle = SMA(period),
// band = middle ± mult * population standard deviation of the same window.
func BOLL(closes []float64, period int, mult float64) (model.BOLL, bool) {
	middle, ok := SMA(closes, period)
	if !ok {
		return model.BOLL{}, false
	}
	variance := 0.0
	for _, v := range closes[len(closes)-period:] {
		d := v - middle
		variance += d * d
	}
	std := math.Sqrt(variance / float64(period))
	return model.BOLL{
		Upper:  middle + mult*std,
		Middle: middle,
		Lower:  middle - mult*std,
	}, true
}

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(c model.Candle, prevClose float64) float64 {
	return math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
}

// ATR is the SMA of the last period true ranges. Requires period+1 candles
// since every true range needs the previous close.
func ATR(candles []model.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) < period+1 {
		return 0, false
	}
	trs := make([]float64, 0, period)
	for i := len(candles) - period; i < len(candles); i++ {
		trs = append(trs, TrueRange(candles[i], candles[i-1].Close))
	}
	return SMA(trs, period)
}
