package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-analytics/internal/markethours"
)

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.TicksTotal.Inc()
	m.CandlesFinalized.WithLabelValues("5m").Add(2)
	m.FusedScore.Set(70)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TicksTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CandlesFinalized.WithLabelValues("5m")))
	assert.Equal(t, 70.0, testutil.ToFloat64(m.FusedScore))

	// a second registration on the same registry must panic
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestHealthStatus_Report(t *testing.T) {
	h := NewHealthStatus()

	_, code := h.Report()
	assert.Equal(t, http.StatusServiceUnavailable, code)

	h.SetFeedConnected(true)
	h.SetSQLiteOK(true)
	r, code := h.Report()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", r.Status, "disabled redis does not degrade")

	h.SetRedisEnabled(true)
	r, code = h.Report()
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", r.Status)

	h.SetFeedConnected(false)
	h.SetSQLiteOK(false)
	r, _ = h.Report()
	assert.Equal(t, "unhealthy", r.Status)
}

func TestHealthStatus_MarketClosed(t *testing.T) {
	cal, err := markethours.NewCalendar(nil)
	require.NoError(t, err)

	h := NewHealthStatus()
	h.SetMarket(cal)
	h.SetSQLiteOK(true)

	// Monday 10:20 CST, morning break
	h.now = func() time.Time { return time.Date(2026, time.October, 19, 10, 20, 0, 0, markethours.CST) }
	r, code := h.Report()
	assert.Equal(t, http.StatusOK, code, "feed may be down while the market is closed")
	assert.False(t, r.MarketOpen)
	assert.Equal(t, "closed, opens Mon 10:30 (in 10m)", r.Market)

	h.now = func() time.Time { return time.Date(2026, time.October, 19, 10, 40, 0, 0, markethours.CST) }
	r, code = h.Report()
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.True(t, r.MarketOpen)
	assert.Equal(t, "degraded", r.Status)
}

func TestHealthStatus_ServeHTTP(t *testing.T) {
	h := NewHealthStatus()
	h.SetFeedConnected(true)
	h.SetSQLiteOK(true)
	h.SetLastTickTime(time.Now().Add(-time.Second))
	h.SetPeriods([]string{"1m", "5m"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, []string{"1m", "5m"}, body.Periods)
	assert.NotEmpty(t, body.TickAge)
}
