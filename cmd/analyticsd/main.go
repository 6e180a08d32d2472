// cmd/analyticsd turns a futures tick feed into candles and analysis bundles
// and serves them over HTTP and WebSocket.
//
//	tick WS ─► feed.Ingest ─► pipeline.Session ─► bus.FanOut ─┬─► gateway hub (WS clients)
//	                                                          ├─► redis publisher (optional)
//	                                                          ├─► sqlite archive (1m candles)
//	                                                          └─► alert watcher
//
// Config comes from configs/config.yaml and ANALYTICS_* env vars.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"futures-analytics/config"
	"futures-analytics/internal/api"
	"futures-analytics/internal/gateway"
	"futures-analytics/internal/logger"
	"futures-analytics/internal/marketdata/bus"
	"futures-analytics/internal/marketdata/feed"
	"futures-analytics/internal/markethours"
	"futures-analytics/internal/metrics"
	"futures-analytics/internal/model"
	"futures-analytics/internal/notification"
	"futures-analytics/internal/pipeline"
	"futures-analytics/internal/risk"
	redisstore "futures-analytics/internal/store/redis"
	sqlitestore "futures-analytics/internal/store/sqlite"
)

const (
	eventBuffer      = 1024
	livenessInterval = 10 * time.Second
	statsInterval    = 30 * time.Second
	shutdownTimeout  = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "analyticsd: config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.Init(cfg.Service.Name, cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "analyticsd: logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	periods, err := cfg.ParsePeriods()
	if err != nil {
		log.Fatal("invalid pipeline.periods", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Metrics & health ---
	prom := metrics.NewMetrics(nil)
	health := metrics.NewHealthStatus()
	calendar, err := markethours.NewCalendar(cfg.Market.Holidays)
	if err != nil {
		log.Fatal("invalid market.holidays", zap.Error(err))
	}
	health.SetMarket(calendar)
	metricsSrv := metrics.NewServer(cfg.Metrics.Addr, health)
	metricsSrv.Start()

	// --- Session ---
	session := pipeline.NewSession(pipeline.Config{
		Symbol:     cfg.Pipeline.Symbol,
		Periods:    periods,
		MaxCandles: cfg.Pipeline.MaxCandles,
		IdleFlush:  cfg.Pipeline.IdleFlush,
		Risk: pipeline.RiskDefaults{
			Margin:             cfg.Pipeline.Margin,
			RiskLevel:          risk.Preference(cfg.Pipeline.RiskLevel),
			ContractMultiplier: cfg.Pipeline.ContractMultiplier,
		},
	})
	session.OnLateTick = prom.LateTicks.Inc
	session.OnDroppedEvent = prom.DroppedEvents.Inc
	session.OnAnalysis = func(b *pipeline.Bundle, took time.Duration) {
		observeBundle(prom, b, took)
		health.SetLastBundleTime(time.Now())
	}

	labels := make([]string, 0, len(session.Periods()))
	for _, p := range session.Periods() {
		labels = append(labels, string(p))
	}
	health.SetPeriods(labels)

	// --- SQLite archive & bootstrap ---
	if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal("create sqlite dir", zap.String("dir", dir), zap.Error(err))
		}
	}
	writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLite.Path})
	if err != nil {
		log.Fatal("open sqlite writer", zap.String("path", cfg.SQLite.Path), zap.Error(err))
	}
	writer.OnCommit = func(_ int, took time.Duration) { prom.ArchiveDur.Observe(took.Seconds()) }

	reader, err := sqlitestore.NewReader(cfg.SQLite.Path)
	if err != nil {
		log.Fatal("open sqlite reader", zap.String("path", cfg.SQLite.Path), zap.Error(err))
	}
	health.SetSQLiteOK(true)

	n, err := session.Bootstrap(ctx, reader, cfg.SQLite.BootstrapLimit)
	if err != nil {
		log.Warn("bootstrap failed, starting cold", zap.Error(err))
	} else {
		log.Info("bootstrap complete", zap.Int("candles", n))
	}

	// --- Redis (optional) ---
	health.SetRedisEnabled(cfg.Redis.Enabled)
	var publisher *redisstore.Publisher
	var rdb *goredis.Client
	if cfg.Redis.Enabled {
		publisher, err = redisstore.New(redisstore.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			StreamMaxLen: cfg.Redis.StreamMaxLen,
			LatestTTL:    cfg.Redis.LatestTTL,
		})
		if err != nil {
			log.Warn("redis unavailable, publishing disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			publisher = nil
		} else {
			rdb = publisher.Client()
			health.SetRedisConnected(true)
			publisher.OnPublish = func(took time.Duration, err error) {
				prom.PublishDur.Observe(took.Seconds())
				if err != nil {
					prom.PublishErrors.Inc()
				}
			}
			publisher.Breaker().OnStateChange = func(from, to redisstore.State) {
				prom.CircuitState.Set(float64(to))
				if to == redisstore.StateOpen {
					prom.CircuitTrips.Inc()
				}
				log.Warn("redis circuit breaker", zap.Stringer("from", from), zap.Stringer("to", to))
			}
		}
	}
	health.StartLivenessChecker(ctx, rdb, writer.DB(), livenessInterval)

	// --- Fan-out ---
	events := make(chan pipeline.Event, eventBuffer)
	fanout := bus.New[pipeline.Event](eventBuffer)
	fanout.OnDrop = func(name string) { prom.FanoutDrops.WithLabelValues(name).Inc() }

	hubCh := fanout.Subscribe("gateway")
	alertCh := fanout.Subscribe("alerts")
	var archiveCh, redisCh <-chan pipeline.Event
	if cfg.SQLite.Archive {
		archiveCh = fanout.Subscribe("archive")
	}
	if publisher != nil {
		redisCh = fanout.Subscribe("redis")
	}

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	spawn(func() { fanout.Run(ctx, events) })

	hub := gateway.NewHub(session)
	hub.OnClientCount = func(n int) { prom.WSClients.Set(float64(n)) }
	hub.OnRisk = func(outcome string) { prom.RiskRequests.WithLabelValues("ws", outcome).Inc() }
	spawn(func() { hub.Run(ctx, hubCh) })

	watcher := notification.NewWatcher(buildNotifier(cfg.Alert))
	watcher.OnAlert = func(level string) { prom.AlertsTotal.WithLabelValues(level).Inc() }
	spawn(func() { watcher.Run(ctx, alertCh) })

	if archiveCh != nil {
		spawn(func() { writer.Run(ctx, cfg.Pipeline.Symbol, closedMinutes(ctx, archiveCh)) })
	}
	if redisCh != nil {
		spawn(func() { publisher.Run(ctx, redisCh) })
	}

	spawn(func() { fanoutStats(ctx, fanout) })

	// --- Feed ---
	ingest, err := feed.New(feed.Config{
		URL:               cfg.Feed.URL,
		Symbol:            cfg.Pipeline.Symbol,
		ReconnectDelay:    cfg.Feed.ReconnectMin,
		MaxReconnectDelay: cfg.Feed.ReconnectMax,
	})
	if err != nil {
		log.Fatal("invalid feed config", zap.Error(err))
	}
	ingest.OnConnect = func() { health.SetFeedConnected(true) }
	ingest.OnDisconnect = func(error) { health.SetFeedConnected(false) }
	ingest.OnReconnect = prom.FeedReconnects.Inc
	ingest.OnDrop = prom.DroppedTicks.Inc
	ingest.OnTick = func() {
		prom.TicksTotal.Inc()
		health.SetLastTickTime(time.Now())
	}

	tickCh := make(chan model.Tick, cfg.Feed.Buffer)
	spawn(func() {
		if err := ingest.Start(ctx, tickCh); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("feed stopped", zap.Error(err))
		}
	})
	spawn(func() { session.Run(ctx, tickCh, events) })

	// --- HTTP API ---
	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(session, health)
	handler.OnRisk = func(outcome string) { prom.RiskRequests.WithLabelValues("http", outcome).Inc() }
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(handler, hub.ServeWS),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("HTTP API listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			cancel()
		}
	}()

	log.Info("analyticsd started",
		zap.String("symbol", cfg.Pipeline.Symbol),
		zap.Strings("periods", labels),
		zap.String("feed", cfg.Feed.URL),
		zap.Bool("redis", publisher != nil),
		zap.Bool("archive", cfg.SQLite.Archive))

	// --- Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.Stringer("signal", sig))
	case <-ctx.Done():
		log.Info("shutting down after fatal error")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown", zap.Error(err))
	}
	if err := metricsSrv.Stop(shutdownCtx); err != nil {
		log.Warn("metrics shutdown", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn("timed out waiting for workers")
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Warn("close redis", zap.Error(err))
		}
	}
	if err := reader.Close(); err != nil {
		log.Warn("close sqlite reader", zap.Error(err))
	}
	if err := writer.Close(); err != nil {
		log.Warn("close sqlite writer", zap.Error(err))
	}
	log.Info("analyticsd stopped")
}

// closedMinutes extracts the finalized 1-minute candle of each bundle.
func closedMinutes(ctx context.Context, events <-chan pipeline.Event) <-chan model.Candle {
	out := make(chan model.Candle, 256)
	go func() {
		defer close(out)
		for ev := range events {
			if ev.Bundle == nil {
				continue
			}
			c, ok := ev.Bundle.Closed[model.Period1m]
			if !ok {
				continue
			}
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func observeBundle(m *metrics.Metrics, b *pipeline.Bundle, took time.Duration) {
	m.ComputeDur.Observe(took.Seconds())
	m.BundlesTotal.Inc()
	m.FusedScore.Set(float64(b.FastSignal.Score))
	m.SentimentScore.Set(float64(b.Sentiment.Score))
	m.SignalScore.WithLabelValues("long").Set(float64(b.Signal.LongScore))
	m.SignalScore.WithLabelValues("short").Set(float64(b.Signal.ShortScore))
	for p := range b.Closed {
		m.CandlesFinalized.WithLabelValues(string(p)).Inc()
	}
}

func buildNotifier(cfg config.AlertConfig) notification.Notifier {
	if !cfg.Enabled {
		return notification.Multi{}
	}
	notifiers := notification.Multi{notification.NewLogNotifier()}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID))
	}
	return notifiers
}

func fanoutStats(ctx context.Context, f *bus.FanOut[pipeline.Event]) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, st := range f.ChannelStats() {
				if st.Len > st.Cap/2 {
					zap.L().Warn("fan-out backlog",
						zap.String("subscriber", st.Name),
						zap.Int("len", st.Len),
						zap.Int("cap", st.Cap))
				}
			}
		}
	}
}
