package notification

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WebhookNotifier POSTs the alert JSON, plus a sentAt stamp, to a URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: newHTTPClient()}
}

type webhookPayload struct {
	Alert
	SentAt string `json:"sentAt"`
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	payload := webhookPayload{Alert: alert, SentAt: time.Now().UTC().Format(time.RFC3339Nano)}
	if err := postJSON(ctx, w.client, w.url, payload); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	zap.L().Debug("webhook alert sent", zap.String("symbol", alert.Symbol), zap.String("state", alert.State))
	return nil
}
