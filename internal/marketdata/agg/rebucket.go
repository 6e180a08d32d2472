package agg

import "futures-analytics/internal/model"

// Rebucket resamples an ordered run of 1-minute candles into a coarser period.
// Consecutive candles sharing a bucket start merge: open = first, high = max,
// low = min, close = last, volume = sum. The last output candle may cover a
// bucket that is still forming.
func Rebucket(oneMinute []model.Candle, period model.Period) []model.Candle {
	if len(oneMinute) == 0 {
		return nil
	}
	out := make([]model.Candle, 0, len(oneMinute)/max(period.Minutes(), 1)+1)

	for _, c := range oneMinute {
		bucket := period.BucketStart(c.Timestamp)

		if n := len(out); n > 0 && out[n-1].Timestamp == bucket {
			merged := &out[n-1]
			if c.High > merged.High {
				merged.High = c.High
			}
			if c.Low < merged.Low {
				merged.Low = c.Low
			}
			merged.Close = c.Close
			merged.Volume += c.Volume
			continue
		}

		out = append(out, model.Candle{
			Timestamp: bucket,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
			Period:    period,
		})
	}
	return out
}

// RebucketAll derives every coarser period from the 1-minute run.
func RebucketAll(oneMinute []model.Candle) map[model.Period][]model.Candle {
	out := make(map[model.Period][]model.Candle, len(model.AllPeriods))
	for _, p := range model.AllPeriods {
		if p == model.Period1m {
			cp := make([]model.Candle, len(oneMinute))
			copy(cp, oneMinute)
			out[p] = cp
			continue
		}
		out[p] = Rebucket(oneMinute, p)
	}
	return out
}
