package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"futures-analytics/internal/gateway"
	"futures-analytics/internal/logger"
	"futures-analytics/internal/model"
	"futures-analytics/internal/risk"
)

const (
	defaultCandleLimit = 200
	maxCandleLimit     = 1000
)

// Handler holds the HTTP handlers.
type Handler struct {
	session gateway.Session
	health  HealthReporter

	// Metrics hooks (optional, set externally)
	OnRisk func(outcome string)
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	report, code := h.health.Report()
	c.JSON(code, report)
}

// Candles handles GET /api/v1/candles/:period?limit=N. The open candle is
// last.
func (h *Handler) Candles(c *gin.Context) {
	p, err := model.ParsePeriod(c.Param("period"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultCandleLimit)))
	if err != nil || limit <= 0 {
		limit = defaultCandleLimit
	}
	if limit > maxCandleLimit {
		limit = maxCandleLimit
	}

	candles, ok := h.session.Candles(p)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "period not maintained: " + string(p)})
		return
	}
	if candles == nil {
		candles = []model.Candle{}
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol": h.session.Symbol(),
		"period": p,
		"klines": model.Tail(candles, limit),
	})
}

// Snapshot handles GET /api/v1/snapshot.
func (h *Handler) Snapshot(c *gin.Context) {
	b, ok := h.session.Latest()
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no analysis yet"})
		return
	}
	c.JSON(http.StatusOK, b)
}

// Risk handles POST /api/v1/risk.
func (h *Handler) Risk(c *gin.Context) {
	ctx := logger.WithTraceID(c.Request.Context(), logger.GenerateTraceID("http-risk", time.Now()))
	c.Header("X-Trace-Id", logger.TraceID(ctx))

	var form gateway.RiskForm
	if err := c.ShouldBindJSON(&form); err != nil {
		h.riskOutcome("bad_request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	plan, err := h.session.Risk(form.Request())
	if err != nil {
		h.riskFailed(ctx, c, err)
		return
	}
	h.riskOutcome("ok")
	zap.L().Info("risk calculated", append(logger.Fields(ctx), zap.Stringer("plan", plan))...)
	c.JSON(http.StatusOK, plan)
}

func (h *Handler) riskFailed(ctx context.Context, c *gin.Context, err error) {
	if errors.Is(err, risk.ErrInvalidRequest) {
		h.riskOutcome("rejected")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	h.riskOutcome("error")
	zap.L().Error("risk calculation failed", append(logger.Fields(ctx), zap.Error(err))...)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "risk calculation failed"})
}

func (h *Handler) riskOutcome(outcome string) {
	if h.OnRisk != nil {
		h.OnRisk(outcome)
	}
}
