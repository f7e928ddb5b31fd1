package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// Config holds telegram bot configuration
type Config struct {
	BaseURL  string
	BotToken string
	ChatID   string
	Timeout  time.Duration
}

// Bot sends messages to a fixed chat. Delivery is fire-and-forget from the
// caller's perspective; a failed send only surfaces as an error return.
type Bot struct {
	config *Config
	httpc  *http.Client
	logger *slog.Logger
}

// OrderNotification is the payload for a success message.
type OrderNotification struct {
	OrderID       string
	Status        string
	Description   map[string]any
	CorrelationID string
}

// ErrorNotification is the payload for a failure alert.
type ErrorNotification struct {
	Type          string
	Message       string
	OrderID       string
	CorrelationID string
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// NewBot creates a new telegram Bot
func NewBot(config *Config, logger *slog.Logger) *Bot {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Bot{
		config: config,
		httpc:  &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// SendMessage delivers one HTML-formatted message to the configured chat.
func (b *Bot) SendMessage(ctx context.Context, text string) error {
	if b.config.BotToken == "" {
		return errors.New("telegram bot token is not configured")
	}
	if b.config.ChatID == "" {
		return errors.New("telegram chat id is not configured")
	}

	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                b.config.ChatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", b.config.BaseURL, b.config.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram API returned %d: %s", resp.StatusCode, string(body))
	}

	b.logger.Debug("Telegram message sent",
		slog.Int("length", len(text)),
	)

	return nil
}

// SendOrderNotification formats and sends a success message.
func (b *Bot) SendOrderNotification(ctx context.Context, n OrderNotification) error {
	text := "🔔 <b>Order Notification</b>\n\n"
	if n.OrderID != "" {
		text += fmt.Sprintf("📦 Order: <code>%s</code>\n", n.OrderID)
	}
	text += fmt.Sprintf("📊 Status: <b>%s</b>\n", n.Status)
	text += formatDescription(n.Description)
	if n.CorrelationID != "" {
		text += fmt.Sprintf("\n🔗 <code>%s</code>", n.CorrelationID)
	}

	return b.SendMessage(ctx, text)
}

// SendErrorNotification formats and sends a failure alert.
func (b *Bot) SendErrorNotification(ctx context.Context, n ErrorNotification) error {
	text := "🚨 <b>Error Alert</b>\n\n"
	text += fmt.Sprintf("❌ Type: <b>%s</b>\n", n.Type)
	text += fmt.Sprintf("💬 Message: <code>%s</code>\n", n.Message)
	if n.OrderID != "" {
		text += fmt.Sprintf("📦 Order: <code>%s</code>\n", n.OrderID)
	}
	if n.CorrelationID != "" {
		text += fmt.Sprintf("\n🔗 <code>%s</code>", n.CorrelationID)
	}

	return b.SendMessage(ctx, text)
}

// formatDescription renders description entries in a stable order.
func formatDescription(description map[string]any) string {
	if len(description) == 0 {
		return ""
	}

	keys := make([]string, 0, len(description))
	for key := range description {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var text string
	for _, key := range keys {
		text += fmt.Sprintf("• %s: %v\n", key, description[key])
	}
	return text
}
