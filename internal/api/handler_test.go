package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-analytics/internal/metrics"
	"futures-analytics/internal/model"
	"futures-analytics/internal/pipeline"
	"futures-analytics/internal/risk"
)

type stubSession struct {
	candles map[model.Period][]model.Candle
	latest  *pipeline.Bundle
}

func (s *stubSession) Symbol() string          { return "AG" }
func (s *stubSession) Periods() []model.Period { return []model.Period{model.Period1m} }

func (s *stubSession) Latest() (*pipeline.Bundle, bool) { return s.latest, s.latest != nil }

func (s *stubSession) Candles(p model.Period) ([]model.Candle, bool) {
	c, ok := s.candles[p]
	return c, ok
}

func (s *stubSession) Risk(req risk.Request) (risk.Plan, error) {
	if err := req.Validate(); err != nil {
		return risk.Plan{}, err
	}
	return risk.Calculate(req), nil
}

type stubHealth struct{ code int }

func (h stubHealth) Report() (metrics.Report, int) {
	return metrics.Report{Status: "degraded"}, h.code
}

func minutes(n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = model.Candle{Timestamp: int64(i) * 60_000, Open: 1, High: 1, Low: 1, Close: float64(i), Period: model.Period1m}
	}
	return out
}

func newTestRouter(sess *stubSession) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(NewHandler(sess, stubHealth{code: http.StatusServiceUnavailable}), nil)
}

func do(r http.Handler, method, url, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(newTestRouter(&stubSession{}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}

func TestCandles(t *testing.T) {
	r := newTestRouter(&stubSession{candles: map[model.Period][]model.Candle{
		model.Period1m: minutes(300),
		model.Period5m: nil,
	}})

	tests := []struct {
		name       string
		url        string
		wantStatus int
		wantLen    int
	}{
		{"default limit", "/api/v1/candles/1", http.StatusOK, 200},
		{"explicit limit", "/api/v1/candles/1?limit=10", http.StatusOK, 10},
		{"invalid limit uses default", "/api/v1/candles/1?limit=abc", http.StatusOK, 200},
		{"empty period", "/api/v1/candles/5", http.StatusOK, 0},
		{"not maintained", "/api/v1/candles/60", http.StatusNotFound, 0},
		{"unknown period", "/api/v1/candles/7", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(r, http.MethodGet, tt.url, "")
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				assert.Contains(t, rec.Body.String(), `"error"`)
				return
			}
			var body struct {
				Symbol string         `json:"symbol"`
				Klines []model.Candle `json:"klines"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "AG", body.Symbol)
			assert.Len(t, body.Klines, tt.wantLen)
			assert.NotNil(t, body.Klines)
		})
	}

	rec := do(r, http.MethodGet, "/api/v1/candles/1?limit=3", "")
	assert.Contains(t, rec.Body.String(), `"close":299`, "newest candles are returned")
}

func TestSnapshot(t *testing.T) {
	sess := &stubSession{}
	r := newTestRouter(sess)

	rec := do(r, http.MethodGet, "/api/v1/snapshot", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"no analysis yet"}`, rec.Body.String())

	sess.latest = &pipeline.Bundle{Symbol: "AG", Timestamp: 60_000}
	rec = do(r, http.MethodGet, "/api/v1/snapshot", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"timestamp":60000`)
}

func TestRisk(t *testing.T) {
	h := NewHandler(&stubSession{}, nil)
	var outcomes []string
	h.OnRisk = func(o string) { outcomes = append(outcomes, o) }
	gin.SetMode(gin.TestMode)
	r := NewRouter(h, nil)

	rec := do(r, http.MethodPost, "/api/v1/risk",
		`{"entryPrice":24832,"direction":"LONG","equity":"1000000","balance":100000,"riskLevel":"moderate"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Trace-Id"))

	var plan risk.Plan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
	assert.Equal(t, 24335.0, plan.StopLoss.Recommended)
	assert.Equal(t, 25826.0, plan.TakeProfit.Recommended)
	assert.Equal(t, int64(2), plan.PositionSize.Recommended)
	assert.Contains(t, plan.Warnings, risk.WarnOverLeveraged)

	rec = do(r, http.MethodPost, "/api/v1/risk", `{"entryPrice":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodPost, "/api/v1/risk", `{"entryPrice":-5,"direction":"LONG"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "entryPrice must be positive")

	rec = do(r, http.MethodPost, "/api/v1/risk", `{"entryPrice":"NaN","direction":"LONG","equity":1000,"balance":1000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, []string{"ok", "bad_request", "rejected", "bad_request"}, outcomes)
}

func TestHealth_NoReporter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(NewHandler(&stubSession{}, nil), nil)
	rec := do(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
