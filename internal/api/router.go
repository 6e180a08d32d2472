// Package api serves the HTTP API: health, candles, the latest analysis
// snapshot, risk calculation and the WebSocket upgrade.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"futures-analytics/internal/gateway"
	"futures-analytics/internal/metrics"
)

// HealthReporter reports service health.
type HealthReporter interface {
	Report() (metrics.Report, int)
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewRouter builds the gin engine. ws may be nil to disable /ws.
func NewRouter(h *Handler, ws http.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", h.Health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/candles/:period", h.Candles)
		v1.GET("/snapshot", h.Snapshot)
		v1.POST("/risk", h.Risk)
	}

	if ws != nil {
		r.GET("/ws", gin.WrapF(ws))
	}
	return r
}

// NewHandler creates the handler set.
func NewHandler(session gateway.Session, health HealthReporter) *Handler {
	return &Handler{session: session, health: health}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/healthz" {
			return
		}
		zap.L().Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}
