package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"futures-analytics/internal/mtf"
	"futures-analytics/internal/pipeline"
	"futures-analytics/internal/sentiment"
)

const sendTimeout = 10 * time.Second

// Watcher raises an alert when the fused signal moves into a strong band or
// the sentiment moves into an extreme level. Staying in the same band does
// not alert again.
type Watcher struct {
	notifier  Notifier
	band      mtf.Band
	sentiment sentiment.Level

	// Metrics hooks (optional, set externally)
	OnAlert func(kind string)
}

// NewWatcher creates a Watcher sending to n.
func NewWatcher(n Notifier) *Watcher {
	return &Watcher{notifier: n, band: mtf.BandNeutral, sentiment: sentiment.Neutral}
}

// Check records b and returns the alerts its transitions raise.
func (w *Watcher) Check(b *pipeline.Bundle) []Alert {
	var alerts []Alert

	fs := b.FastSignal
	if fs.Band != w.band && fs.Band.Strong() {
		alerts = append(alerts, Alert{
			Level:     AlertWarning,
			Kind:      KindSignal,
			Symbol:    b.Symbol,
			Timestamp: b.Timestamp,
			State:     string(fs.Band),
			Score:     fs.Score,
			Title:     fmt.Sprintf("%s %s (%d)", b.Symbol, fs.Band, fs.Score),
			Message: fmt.Sprintf("%s, confidence %s, urgency %s. %s",
				fs.Action, fs.Confidence, fs.Urgency, strings.Join(fs.Reasons, "; ")),
		})
	}
	if fs.Band != "" {
		w.band = fs.Band
	}

	s := b.Sentiment
	extreme := s.Level == sentiment.ExtremeGreed || s.Level == sentiment.ExtremeFear
	if s.Level != w.sentiment && extreme {
		alerts = append(alerts, Alert{
			Level:     AlertInfo,
			Kind:      KindSentiment,
			Symbol:    b.Symbol,
			Timestamp: b.Timestamp,
			State:     string(s.Level),
			Score:     s.Score,
			Title:     fmt.Sprintf("%s sentiment %s (%d)", b.Symbol, s.Level, s.Score),
			Message:   s.Description + ". " + s.Recommendation,
		})
	}
	if s.Level != "" {
		w.sentiment = s.Level
	}
	return alerts
}

// Run checks every bundle until ctx is cancelled or events closes. Delivery
// failures are logged.
func (w *Watcher) Run(ctx context.Context, events <-chan pipeline.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Bundle == nil {
				continue
			}
			for _, alert := range w.Check(ev.Bundle) {
				w.send(ctx, alert)
			}
		}
	}
}

func (w *Watcher) send(ctx context.Context, alert Alert) {
	if w.OnAlert != nil {
		w.OnAlert(string(alert.Level))
	}
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := w.notifier.Send(sendCtx, alert); err != nil {
		zap.L().Warn("alert delivery failed",
			zap.String("kind", string(alert.Kind)),
			zap.String("state", alert.State),
			zap.Error(err))
	}
}
