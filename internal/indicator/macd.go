package indicator

import "futures-analytics/internal/model"

const (
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

// MACDSeries returns one MACD point per close starting at the first close
// where EMA-26 exists (index 25). The EMA of each expanding prefix equals
// the running recurrence at that index, so the series is built in one pass.
func MACDSeries(closes []float64) []model.MACD {
	if len(closes) < macdSlow {
		return nil
	}

	fast, _ := SMA(closes[:macdFast], macdFast)
	slow, _ := SMA(closes[:macdSlow], macdSlow)
	kFast := 2.0 / float64(macdFast+1)
	kSlow := 2.0 / float64(macdSlow+1)

	// advance the fast EMA to index 25
	for _, x := range closes[macdFast:macdSlow] {
		fast = (x-fast)*kFast + fast
	}

	out := make([]model.MACD, 0, len(closes)-macdSlow+1)
	difs := make([]float64, 0, len(closes)-macdSlow+1)
	kSig := 2.0 / float64(macdSignal+1)
	var dea float64

	for i := macdSlow - 1; i < len(closes); i++ {
		if i >= macdSlow {
			x := closes[i]
			fast = (x-fast)*kFast + fast
			slow = (x-slow)*kSlow + slow
		}
		dif := fast - slow
		difs = append(difs, dif)

		point := model.MACD{DIF: dif}
		switch {
		case len(difs) == macdSignal:
			dea, _ = SMA(difs, macdSignal)
			point.SignalReady = true
		case len(difs) > macdSignal:
			dea = (dif-dea)*kSig + dea
			point.SignalReady = true
		}
		if point.SignalReady {
			point.DEA = dea
			point.Histogram = (dif - dea) * 2
		}
		out = append(out, point)
	}
	return out
}

// MACD returns the latest DIF/DEA/histogram. Requires at least 26 closes;
// DEA and the histogram need 34 (SignalReady reports which).
func MACD(closes []float64) (model.MACD, bool) {
	series := MACDSeries(closes)
	if len(series) == 0 {
		return model.MACD{}, false
	}
	return series[len(series)-1], true
}
