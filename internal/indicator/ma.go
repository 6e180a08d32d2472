package indicator

// SMA returns the arithmetic mean of the last period values.
func SMA(series []float64, period int) (float64, bool) {
	if period <= 0 || len(series) < period {
		return 0, false
	}
	sum := 0.0
	for _, v := range series[len(series)-period:] {
		sum += v
	}
	return sum / float64(period), true
}

// EMA returns the exponential moving average of the whole series.
// The first period values seed it with their SMA; the recurrence
// ema = (x - ema)*k + ema, k = 2/(period+1) runs over the rest.
func EMA(series []float64, period int) (float64, bool) {
	if period <= 0 || len(series) < period {
		return 0, false
	}
	ema, _ := SMA(series[:period], period)
	k := 2.0 / float64(period+1)
	for _, x := range series[period:] {
		ema = (x-ema)*k + ema
	}
	return ema, true
}
