package agg

import (
	"sync"

	"futures-analytics/internal/model"
)

// DefaultMaxCandles bounds each period's finalized history.
const DefaultMaxCandles = 500

// Series is one period's candles: an append-only run of finalized candles
// plus an explicit open slot for the bucket still being built.
type Series struct {
	period    model.Period
	finalized []model.Candle
	open      *model.Candle
	max       int
}

func newSeries(period model.Period, max int) *Series {
	return &Series{period: period, max: max}
}

// finalize moves the open candle into the finalized run, evicting the oldest
// finalized candles beyond the cap. Returns the closed candle.
func (s *Series) finalize() (model.Candle, bool) {
	if s.open == nil {
		return model.Candle{}, false
	}
	c := *s.open
	s.open = nil
	s.finalized = append(s.finalized, c)
	if over := len(s.finalized) - s.max; s.max > 0 && over > 0 {
		copy(s.finalized, s.finalized[over:])
		s.finalized = s.finalized[:len(s.finalized)-over]
	}
	return c, true
}

// accepts reports whether a bucket may still receive data: the open bucket
// or anything newer than every candle seen so far.
func (s *Series) accepts(bucket int64) bool {
	if s.open != nil {
		return bucket >= s.open.Timestamp
	}
	if n := len(s.finalized); n > 0 {
		return bucket > s.finalized[n-1].Timestamp
	}
	return true
}

// view returns a copy of finalized candles followed by the open candle, if any.
func (s *Series) view() []model.Candle {
	out := make([]model.Candle, 0, len(s.finalized)+1)
	out = append(out, s.finalized...)
	if s.open != nil {
		out = append(out, *s.open)
	}
	return out
}

// Aggregator folds ticks into candles for every configured period.
// All methods are safe for concurrent use; mutations are serialized by mu.
type Aggregator struct {
	mu      sync.Mutex
	periods []model.Period
	series  map[model.Period]*Series

	// Metrics hooks (optional, set externally)
	OnLateTick func()
}

// New creates an Aggregator for the given periods. The 1-minute period is
// always maintained since it drives recomputation and re-bucketing.
func New(periods []model.Period, maxCandles int) *Aggregator {
	if maxCandles <= 0 {
		maxCandles = DefaultMaxCandles
	}
	a := &Aggregator{series: make(map[model.Period]*Series)}
	a.periods = append(a.periods, model.Period1m)
	a.series[model.Period1m] = newSeries(model.Period1m, maxCandles)
	for _, p := range periods {
		if _, exists := a.series[p]; exists {
			continue
		}
		a.periods = append(a.periods, p)
		a.series[p] = newSeries(p, maxCandles)
	}
	return a
}

// Periods returns the maintained periods, 1-minute first.
func (a *Aggregator) Periods() []model.Period {
	out := make([]model.Period, len(a.periods))
	copy(out, a.periods)
	return out
}

// Bootstrap seeds the 1-minute series with history and derives the coarser
// periods by re-bucketing it. The newest candle of every period is left in
// the open slot so live ticks in the same bucket keep extending it.
func (a *Aggregator) Bootstrap(history []model.Candle) {
	a.mu.Lock()
	defer a.mu.Unlock()

	oneMinute := make([]model.Candle, 0, len(history))
	for _, c := range history {
		c.Period = model.Period1m
		c.Timestamp = model.Period1m.BucketStart(c.Timestamp)
		if n := len(oneMinute); n > 0 && c.Timestamp <= oneMinute[n-1].Timestamp {
			continue
		}
		oneMinute = append(oneMinute, c)
	}

	for _, p := range a.periods {
		s := a.series[p]
		s.finalized, s.open = nil, nil
		candles := oneMinute
		if p != model.Period1m {
			candles = Rebucket(oneMinute, p)
		}
		if len(candles) == 0 {
			continue
		}
		for _, c := range candles[:len(candles)-1] {
			c := c
			s.open = &c
			s.finalize()
		}
		last := candles[len(candles)-1]
		s.open = &last
	}
}

// Advance closes every open bucket that a tick at tsMillis no longer belongs
// to and returns the closed candles keyed by period. late is true when the
// timestamp falls before the current 1-minute bucket; nothing changes then.
func (a *Aggregator) Advance(tsMillis int64) (closed map[model.Period]model.Candle, late bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.isLate(tsMillis) {
		return nil, true
	}

	for _, p := range a.periods {
		s := a.series[p]
		if s.open == nil || s.open.Timestamp == p.BucketStart(tsMillis) {
			continue
		}
		if c, ok := s.finalize(); ok {
			if closed == nil {
				closed = make(map[model.Period]model.Candle)
			}
			closed[p] = c
		}
	}
	return closed, false
}

// Fold incorporates a tick into the open bucket of every period, opening a
// new bucket where none is open. Call Advance first so stale buckets close.
func (a *Aggregator) Fold(tick model.Tick) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.isLate(tick.Timestamp) {
		return
	}

	for _, p := range a.periods {
		s := a.series[p]
		bucket := p.BucketStart(tick.Timestamp)

		if s.open != nil && s.open.Timestamp != bucket {
			s.finalize()
		}
		if s.open == nil {
			s.open = &model.Candle{
				Timestamp: bucket,
				Open:      tick.Price,
				High:      tick.Price,
				Low:       tick.Price,
				Close:     tick.Price,
				Volume:    tick.Volume,
				Period:    p,
			}
			continue
		}

		// same bucket: extend OHLCV
		c := s.open
		if tick.Price > c.High {
			c.High = tick.Price
		}
		if tick.Price < c.Low {
			c.Low = tick.Price
		}
		c.Close = tick.Price
		c.Volume += tick.Volume
	}
}

// Apply advances and folds in one step, returning the candles the tick closed.
func (a *Aggregator) Apply(tick model.Tick) (closed map[model.Period]model.Candle, late bool) {
	closed, late = a.Advance(tick.Timestamp)
	if late {
		if a.OnLateTick != nil {
			a.OnLateTick()
		}
		return nil, true
	}
	a.Fold(tick)
	return closed, false
}

// Candles returns a copy of one period's candles: finalized first, then the
// open candle if one exists.
func (a *Aggregator) Candles(p model.Period) ([]model.Candle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.series[p]
	if !ok {
		return nil, false
	}
	return s.view(), true
}

// Finalized returns a copy of one period's finalized candles only.
func (a *Aggregator) Finalized(p model.Period) []model.Candle {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.series[p]
	if !ok {
		return nil
	}
	out := make([]model.Candle, len(s.finalized))
	copy(out, s.finalized)
	return out
}

// Snapshot copies every period's candles (finalized plus open).
func (a *Aggregator) Snapshot() map[model.Period][]model.Candle {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[model.Period][]model.Candle, len(a.periods))
	for _, p := range a.periods {
		out[p] = a.series[p].view()
	}
	return out
}

// isLate reports whether tsMillis belongs to a 1-minute bucket that is
// already closed. Caller must hold mu.
func (a *Aggregator) isLate(tsMillis int64) bool {
	return !a.series[model.Period1m].accepts(model.Period1m.BucketStart(tsMillis))
}
