package notification

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"futures-analytics/internal/markethours"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier sends alerts through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  telegramAPI,
		client:   newHTTPClient(),
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	msg := telegramMessage{ChatID: t.chatID, Text: telegramText(alert), ParseMode: "MarkdownV2"}
	if err := postJSON(ctx, t.client, t.baseURL+"/bot"+t.botToken+"/sendMessage", msg); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	zap.L().Debug("telegram alert sent", zap.String("symbol", alert.Symbol), zap.String("state", alert.State))
	return nil
}

// telegramText renders a bold header, the message and the bundle minute in
// exchange time.
func telegramText(a Alert) string {
	var b strings.Builder
	b.WriteString("*" + escapeMarkdown("["+string(a.Level)+"] "+a.Title) + "*\n")
	b.WriteString(escapeMarkdown(a.Message))
	if a.Timestamp > 0 {
		at := time.UnixMilli(a.Timestamp).In(markethours.CST).Format("2006-01-02 15:04 MST")
		b.WriteString("\n_" + escapeMarkdown(at) + "_")
	}
	return b.String()
}

const markdownSpecials = "_*[]()~`>#+-=|{}.!"

// escapeMarkdown escapes Telegram MarkdownV2 special characters.
func escapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(markdownSpecials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
