// Package pipeline wires the analytics core together. A Session owns the
// candle aggregator and the rolling score histories and turns ticks into
// analysis bundles.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"futures-analytics/internal/indicator"
	"futures-analytics/internal/marketdata/agg"
	"futures-analytics/internal/model"
	"futures-analytics/internal/mtf"
	"futures-analytics/internal/ringbuf"
	"futures-analytics/internal/risk"
	"futures-analytics/internal/sentiment"
	"futures-analytics/internal/signal"
)

// AnalysisPeriod is the period the indicator set, signal and sentiment are
// computed on.
const AnalysisPeriod = model.Period5m

// RiskDefaults fill risk requests that leave these fields empty.
type RiskDefaults struct {
	Margin             float64
	RiskLevel          risk.Preference
	ContractMultiplier float64
}

// Config configures a Session.
type Config struct {
	Symbol     string
	Periods    []model.Period // 1m is always included
	MaxCandles int            // per period, agg.DefaultMaxCandles when zero

	// IdleFlush closes buckets by wall clock when no tick arrives for this
	// long past a minute boundary. Zero disables it.
	IdleFlush time.Duration

	Risk RiskDefaults
}

// Session serializes tick processing for one symbol.
type Session struct {
	mu  sync.Mutex
	cfg Config

	agg    *agg.Aggregator
	scorer *signal.Scorer
	synth  mtf.Synthesizer

	fastHistory      *ringbuf.Ring[float64]
	sentimentHistory *ringbuf.Ring[float64]

	lastTick *model.Tick
	latest   *Bundle

	// Metrics hooks (optional, set externally)
	OnLateTick     func()
	OnAnalysis     func(b *Bundle, took time.Duration)
	OnDroppedEvent func()
}

// NewSession creates a Session. The periods the synthesizer reads are added
// when missing from cfg.Periods.
func NewSession(cfg Config) *Session {
	periods := cfg.Periods
	if len(periods) == 0 {
		periods = model.AllPeriods
	}
	for _, tf := range mtf.DefaultTimeframes {
		periods = appendMissing(periods, tf.Period)
	}
	periods = appendMissing(periods, AnalysisPeriod)
	cfg.Periods = periods

	s := &Session{
		cfg:              cfg,
		agg:              agg.New(periods, cfg.MaxCandles),
		scorer:           signal.NewScorer(nil),
		fastHistory:      mtf.NewHistory(),
		sentimentHistory: sentiment.NewHistory(),
	}
	return s
}

func appendMissing(periods []model.Period, p model.Period) []model.Period {
	for _, have := range periods {
		if have == p {
			return periods
		}
	}
	out := make([]model.Period, len(periods), len(periods)+1)
	copy(out, periods)
	return append(out, p)
}

// Symbol returns the configured symbol.
func (s *Session) Symbol() string { return s.cfg.Symbol }

// Periods returns the maintained periods, 1-minute first.
func (s *Session) Periods() []model.Period { return s.agg.Periods() }

// Bootstrap seeds the aggregator with up to limit recent 1-minute candles
// from src and computes an initial bundle. Returns the number of candles read.
func (s *Session) Bootstrap(ctx context.Context, src model.CandleSource, limit int) (int, error) {
	history, err := src.ReadRecent(ctx, s.cfg.Symbol, limit)
	if err != nil {
		return 0, fmt.Errorf("bootstrap %s: %w", s.cfg.Symbol, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.agg.Bootstrap(history)
	if len(history) > 0 {
		s.latest = s.analyze(history[len(history)-1].Timestamp, nil, nil)
	}
	zap.L().Info("session bootstrapped",
		zap.String("symbol", s.cfg.Symbol),
		zap.Int("candles", len(history)))
	return len(history), nil
}

// OnTick folds a tick into the candles. When the tick opens a new minute the
// closed minute is analysed before the tick is folded in, so the bundle
// covers completed 1-minute candles only. Late ticks are dropped and return
// a zero Event.
func (s *Session) OnTick(tick model.Tick) Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	closed, late := s.agg.Advance(tick.Timestamp)
	if late {
		if s.OnLateTick != nil {
			s.OnLateTick()
		}
		return Event{}
	}

	var b *Bundle
	if minute, ok := closed[model.Period1m]; ok {
		b = s.analyze(minute.Timestamp, &tick, closed)
		s.latest = b
	}
	s.agg.Fold(tick)
	s.lastTick = &tick
	return Event{Tick: &tick, Bundle: b}
}

// Flush closes buckets that ended more than IdleFlush before now. It returns
// the resulting bundle, or nil when no minute closed.
func (s *Session) Flush(now time.Time) *Bundle {
	if s.cfg.IdleFlush <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	closed, late := s.agg.Advance(now.Add(-s.cfg.IdleFlush).UnixMilli())
	minute, ok := closed[model.Period1m]
	if late || !ok {
		return nil
	}
	s.latest = s.analyze(minute.Timestamp, s.lastTick, closed)
	return s.latest
}

// analyze builds a bundle from the current candles. Caller must hold mu.
func (s *Session) analyze(minute int64, tick *model.Tick, closed map[model.Period]model.Candle) *Bundle {
	start := time.Now()

	candles := s.agg.Snapshot()
	primary := candles[AnalysisPeriod]
	ind := indicator.CalculateAll(primary)

	b := &Bundle{
		Symbol:     s.cfg.Symbol,
		Timestamp:  minute,
		Candles:    candles,
		Closed:     closed,
		Indicators: ind,
		Signal:     s.scorer.Score(primary, ind),
		FastSignal: s.synth.Synthesize(candles, tick, s.fastHistory),
		Sentiment:  sentiment.Score(primary, tick, s.sentimentHistory),
	}

	if s.OnAnalysis != nil {
		s.OnAnalysis(b, time.Since(start))
	}
	return b
}

// Latest returns the most recent bundle. It is shared and must not be mutated.
func (s *Session) Latest() (*Bundle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.latest != nil
}

// LastTick returns the most recent accepted tick.
func (s *Session) LastTick() (model.Tick, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastTick == nil {
		return model.Tick{}, false
	}
	return *s.lastTick, true
}

// Candles returns a copy of one period's candles, open candle last.
func (s *Session) Candles(p model.Period) ([]model.Candle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agg.Candles(p)
}

// Risk validates req, fills configured defaults and derives the ATR and
// support/resistance from the 5-minute candles when the caller left them out.
func (s *Session) Risk(req risk.Request) (risk.Plan, error) {
	if err := req.Validate(); err != nil {
		return risk.Plan{}, err
	}
	if req.Margin <= 0 {
		req.Margin = s.cfg.Risk.Margin
	}
	if req.RiskLevel == "" {
		req.RiskLevel = s.cfg.Risk.RiskLevel
	}
	if req.ContractMultiplier <= 0 {
		req.ContractMultiplier = s.cfg.Risk.ContractMultiplier
	}

	s.mu.Lock()
	candles, _ := s.agg.Candles(AnalysisPeriod)
	s.mu.Unlock()

	if req.ATR == nil {
		if atr, ok := indicator.ATR(candles, 14); ok {
			req.ATR = &atr
		}
	}
	if req.SupportResistance == nil {
		if lv, ok := risk.SupportResistance(candles); ok {
			req.SupportResistance = &lv
		}
	}
	return risk.Calculate(req), nil
}

// Run consumes ticks until ctx is cancelled or tickCh closes and sends every
// event to out. A full out channel drops the event.
func (s *Session) Run(ctx context.Context, tickCh <-chan model.Tick, out chan<- Event) {
	var flush <-chan time.Time
	if s.cfg.IdleFlush > 0 {
		ticker := time.NewTicker(s.cfg.IdleFlush / 2)
		defer ticker.Stop()
		flush = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case tick, ok := <-tickCh:
			if !ok {
				return
			}
			if ev := s.OnTick(tick); ev.Tick != nil {
				s.emit(ev, out)
			}

		case now := <-flush:
			if b := s.Flush(now); b != nil {
				s.emit(Event{Bundle: b}, out)
			}
		}
	}
}

func (s *Session) emit(ev Event, out chan<- Event) {
	select {
	case out <- ev:
	default:
		if s.OnDroppedEvent != nil {
			s.OnDroppedEvent()
		}
		zap.L().Warn("event channel full, dropping event",
			zap.String("symbol", s.cfg.Symbol),
			zap.Bool("bundle", ev.Bundle != nil))
	}
}
