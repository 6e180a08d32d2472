// Package notification delivers alerts to external channels when the
// analysis crosses into a strong signal or an extreme sentiment.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// AlertLevel is the severity of an alert.
type AlertLevel string

const (
	AlertInfo    AlertLevel = "INFO"
	AlertWarning AlertLevel = "WARNING"
)

// AlertKind names what raised the alert.
type AlertKind string

const (
	KindSignal    AlertKind = "signal"
	KindSentiment AlertKind = "sentiment"
)

// Alert is one notification about a bundle.
type Alert struct {
	Level     AlertLevel `json:"level"`
	Kind      AlertKind  `json:"kind"`
	Symbol    string     `json:"symbol"`
	Timestamp int64      `json:"timestamp"` // bundle minute, ms epoch
	State     string     `json:"state"`     // band or sentiment level
	Score     int        `json:"score"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
}

// Notifier is implemented by every delivery channel.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the log.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(_ context.Context, alert Alert) error {
	zap.L().Info("alert",
		zap.String("level", string(alert.Level)),
		zap.String("kind", string(alert.Kind)),
		zap.String("symbol", alert.Symbol),
		zap.String("state", alert.State),
		zap.Int("score", alert.Score),
		zap.String("message", alert.Message))
	return nil
}

// Multi sends every alert to each notifier and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// postJSON posts payload and treats any non-2xx status as an error.
func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
