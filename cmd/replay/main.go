// cmd/replay drives the analytics session from the SQLite candle archive to
// inspect signals and sentiment without a live feed.
//
// Usage:
//
//	go run ./cmd/replay --from=1704186000000 --speed=0 --json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"go.uber.org/zap"

	"futures-analytics/config"
	"futures-analytics/internal/logger"
	"futures-analytics/internal/marketdata/replay"
	"futures-analytics/internal/model"
	"futures-analytics/internal/mtf"
	"futures-analytics/internal/pipeline"
	"futures-analytics/internal/risk"
	"futures-analytics/internal/sentiment"
	sqlitestore "futures-analytics/internal/store/sqlite"
)

// line is one bundle in --json output.
type line struct {
	Timestamp int64           `json:"timestamp"`
	Close     float64         `json:"close"`
	Fast      int             `json:"fastScore"`
	Band      mtf.Band        `json:"level"`
	Signal    string          `json:"signal"`
	Sentiment int             `json:"sentiment"`
	Mood      sentiment.Level `json:"mood"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: config: %v\n", err)
		os.Exit(1)
	}

	speed := flag.Float64("speed", 0, "Playback speed multiplier (0=max, 1=realtime, 100=100x)")
	fromTS := flag.Int64("from", 0, "Start timestamp in ms (0=all)")
	toTS := flag.Int64("to", 0, "End timestamp in ms, exclusive (0=all)")
	dbPath := flag.String("db", cfg.SQLite.Path, "Path to SQLite database")
	symbol := flag.String("symbol", cfg.Pipeline.Symbol, "Symbol to replay")
	asJSON := flag.Bool("json", false, "Print one JSON line per bundle")
	flag.Parse()

	// stdout carries the --json lines
	cfg.Log.Stderr = true
	log, err := logger.Init("replay", cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	periods, err := cfg.ParsePeriods()
	if err != nil {
		log.Fatal("invalid pipeline.periods", zap.Error(err))
	}

	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatal("sqlite open failed", zap.String("path", *dbPath), zap.Error(err))
	}
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	session := pipeline.NewSession(pipeline.Config{
		Symbol:     *symbol,
		Periods:    periods,
		MaxCandles: cfg.Pipeline.MaxCandles,
		Risk: pipeline.RiskDefaults{
			Margin:             cfg.Pipeline.Margin,
			RiskLevel:          risk.Preference(cfg.Pipeline.RiskLevel),
			ContractMultiplier: cfg.Pipeline.ContractMultiplier,
		},
	})

	tickCh := make(chan model.Tick, 1024)
	go func() {
		defer close(tickCh)
		if _, err := replay.New(reader).Run(ctx, *symbol, *fromTS, *toTS, *speed, tickCh); err != nil {
			log.Warn("replay stopped", zap.Error(err))
		}
	}()

	enc := json.NewEncoder(os.Stdout)
	var ticks, bundles int
	bands := make(map[mtf.Band]int)
	moods := make(map[sentiment.Level]int)
	var last *pipeline.Bundle

	// ticks are processed inline so no bundle is dropped
	for tick := range tickCh {
		ev := session.OnTick(tick)
		if ev.Tick != nil {
			ticks++
		}
		b := ev.Bundle
		if b == nil {
			continue
		}
		bundles++
		bands[b.FastSignal.Band]++
		moods[b.Sentiment.Level]++
		last = b

		if *asJSON {
			closed := b.Closed[model.Period1m]
			if err := enc.Encode(line{
				Timestamp: b.Timestamp,
				Close:     closed.Close,
				Fast:      b.FastSignal.Score,
				Band:      b.FastSignal.Band,
				Signal:    string(b.Signal.Category),
				Sentiment: b.Sentiment.Score,
				Mood:      b.Sentiment.Level,
			}); err != nil {
				log.Fatal("write output", zap.Error(err))
			}
		}
	}

	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "╔══════════════════════════════════════╗")
	fmt.Fprintln(os.Stderr, "║          REPLAY COMPLETE             ║")
	fmt.Fprintln(os.Stderr, "╠══════════════════════════════════════╣")
	fmt.Fprintf(os.Stderr, "║  Symbol:            %-16s ║\n", *symbol)
	fmt.Fprintf(os.Stderr, "║  Ticks:             %-16d ║\n", ticks)
	fmt.Fprintf(os.Stderr, "║  Bundles:           %-16d ║\n", bundles)
	for _, k := range sortedKeys(bands) {
		fmt.Fprintf(os.Stderr, "║  %-18s %-16d ║\n", k+":", bands[mtf.Band(k)])
	}
	for _, k := range sortedKeys(moods) {
		fmt.Fprintf(os.Stderr, "║  %-18s %-16d ║\n", k+":", moods[sentiment.Level(k)])
	}
	fmt.Fprintln(os.Stderr, "╚══════════════════════════════════════╝")

	if last != nil {
		log.Info("final analysis",
			zap.Int("fast_score", last.FastSignal.Score),
			zap.String("band", string(last.FastSignal.Band)),
			zap.String("action", last.FastSignal.Action),
			zap.Int("sentiment", last.Sentiment.Score),
			zap.String("mood", string(last.Sentiment.Level)))
	}
}

func sortedKeys[K ~string](m map[K]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}
