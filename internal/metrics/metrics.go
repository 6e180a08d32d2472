// Package metrics exposes Prometheus collectors and the health endpoint.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"futures-analytics/internal/markethours"
)

// Metrics holds all Prometheus metrics for the analytics service.
type Metrics struct {
	TicksTotal       prometheus.Counter
	LateTicks        prometheus.Counter
	DroppedTicks     prometheus.Counter
	FeedReconnects   prometheus.Counter
	CandlesFinalized *prometheus.CounterVec // labels: period
	BundlesTotal     prometheus.Counter
	DroppedEvents    prometheus.Counter

	// Analysis
	ComputeDur     prometheus.Histogram
	FusedScore     prometheus.Gauge
	SignalScore    *prometheus.GaugeVec // labels: direction
	SentimentScore prometheus.Gauge

	// Downstream
	PublishDur    prometheus.Histogram
	PublishErrors prometheus.Counter
	ArchiveDur    prometheus.Histogram
	FanoutDrops   *prometheus.CounterVec // labels: subscriber
	WSClients     prometheus.Gauge
	RiskRequests  *prometheus.CounterVec // labels: source, outcome
	AlertsTotal   *prometheus.CounterVec // labels: level
	CircuitState  prometheus.Gauge       // 0=closed, 1=open, 2=half-open
	CircuitTrips  prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analytics_ticks_total",
			Help: "Ticks accepted by the session",
		}),
		LateTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analytics_late_ticks_total",
			Help: "Ticks dropped because their minute had already closed",
		}),
		DroppedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analytics_dropped_ticks_total",
			Help: "Ticks dropped because the tick channel was full",
		}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analytics_feed_reconnects_total",
			Help: "Upstream WebSocket reconnection attempts",
		}),
		CandlesFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_candles_finalized_total",
			Help: "Candles finalized, by period",
		}, []string{"period"}),
		BundlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analytics_bundles_total",
			Help: "Analysis bundles produced",
		}),
		DroppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analytics_dropped_events_total",
			Help: "Session events dropped because the output channel was full",
		}),

		ComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "analytics_compute_duration_seconds",
			Help:    "Time to build one analysis bundle",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		FusedScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analytics_fused_score",
			Help: "Latest multi-timeframe fused score (0-100)",
		}),
		SignalScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "analytics_signal_score",
			Help: "Latest single-timeframe signal score by direction",
		}, []string{"direction"}),
		SentimentScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analytics_sentiment_score",
			Help: "Latest sentiment score (0-100)",
		}),

		PublishDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "analytics_publish_duration_seconds",
			Help:    "Redis publish latency per bundle",
			Buckets: prometheus.DefBuckets,
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analytics_publish_errors_total",
			Help: "Failed or skipped Redis publishes",
		}),
		ArchiveDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "analytics_archive_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		FanoutDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_fanout_drops_total",
			Help: "Events dropped by the fan-out bus per subscriber",
		}, []string{"subscriber"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analytics_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		RiskRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_risk_requests_total",
			Help: "Risk calculations by source and outcome",
		}, []string{"source", "outcome"}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_alerts_total",
			Help: "Alerts raised, by level",
		}, []string{"level"}),
		CircuitState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analytics_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		CircuitTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analytics_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
	}

	reg.MustRegister(
		m.TicksTotal,
		m.LateTicks,
		m.DroppedTicks,
		m.FeedReconnects,
		m.CandlesFinalized,
		m.BundlesTotal,
		m.DroppedEvents,
		m.ComputeDur,
		m.FusedScore,
		m.SignalScore,
		m.SentimentScore,
		m.PublishDur,
		m.PublishErrors,
		m.ArchiveDur,
		m.FanoutDrops,
		m.WSClients,
		m.RiskRequests,
		m.AlertsTotal,
		m.CircuitState,
		m.CircuitTrips,
	)
	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected  bool
	LastTickTime   time.Time
	LastBundleTime time.Time
	RedisEnabled   bool
	RedisConnected bool
	SQLiteOK       bool
	Periods        []string

	RedisLatencyMs  float64
	SQLiteLatencyMs float64
	LastCheckAt     time.Time
	StartedAt       time.Time

	market *markethours.Calendar
	now    func() time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now(), now: time.Now}
}

// SetMarket attaches a trading calendar. Outside trading sessions a
// disconnected feed does not degrade the status.
func (h *HealthStatus) SetMarket(cal *markethours.Calendar) {
	h.mu.Lock()
	h.market = cal
	h.mu.Unlock()
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastBundleTime(t time.Time) {
	h.mu.Lock()
	h.LastBundleTime = t
	h.mu.Unlock()
}

// SetRedisEnabled marks Redis as configured. A disabled Redis does not
// degrade the status.
func (h *HealthStatus) SetRedisEnabled(v bool) {
	h.mu.Lock()
	h.RedisEnabled = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetPeriods(p []string) {
	h.mu.Lock()
	h.Periods = p
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Nil clients are skipped.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// Report is the /healthz response body.
type Report struct {
	Status          string   `json:"status"`
	Uptime          string   `json:"uptime"`
	FeedConnected   bool     `json:"feed_connected"`
	LastTickTime    string   `json:"last_tick_time"`
	TickAge         string   `json:"tick_age"`
	LastBundleTime  string   `json:"last_bundle_time"`
	RedisEnabled    bool     `json:"redis_enabled"`
	RedisConnected  bool     `json:"redis_connected"`
	RedisLatencyMs  float64  `json:"redis_latency_ms"`
	SQLiteOK        bool     `json:"sqlite_ok"`
	SQLiteLatencyMs float64  `json:"sqlite_latency_ms"`
	Periods         []string `json:"periods"`
	MarketOpen      bool     `json:"market_open"`
	Market          string   `json:"market,omitempty"`
	LastCheckAt     string   `json:"last_check_at"`
}

// Report returns the current health and the HTTP code it maps to. The
// service is degraded when the feed, SQLite or an enabled Redis is down,
// and unhealthy when the feed and SQLite are both down. The feed only
// counts while the market is open.
func (h *HealthStatus) Report() (Report, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	marketOpen, market := true, ""
	if h.market != nil {
		marketOpen = h.market.IsOpen(now)
		market = h.market.Status(now)
	}
	feedDown := !h.FeedConnected && marketOpen

	status, code := "healthy", http.StatusOK
	if feedDown || !h.SQLiteOK || (h.RedisEnabled && !h.RedisConnected) {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	if feedDown && !h.SQLiteOK {
		status = "unhealthy"
	}

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = now.Sub(h.LastTickTime).Round(time.Millisecond).String()
	}

	return Report{
		Status:          status,
		Uptime:          now.Sub(h.StartedAt).Round(time.Second).String(),
		FeedConnected:   h.FeedConnected,
		LastTickTime:    h.LastTickTime.Format(time.RFC3339),
		TickAge:         tickAge,
		LastBundleTime:  h.LastBundleTime.Format(time.RFC3339),
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		Periods:         h.Periods,
		MarketOpen:      marketOpen,
		Market:          market,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}, code
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	report, code := h.Report()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(report)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		zap.L().Info("metrics server listening", zap.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			zap.L().Error("metrics server error", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
