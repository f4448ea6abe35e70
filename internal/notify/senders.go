package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const webhookTimeout = 10 * time.Second

// LogSender writes emails to the structured log instead of delivering them.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (sender *LogSender) Send(_ context.Context, email Email) error {
	sender.logger.Info("email",
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.String("kind", email.Kind),
		zap.String("body", email.TextBody),
	)
	return nil
}

// WebhookSender posts the rendered email as JSON to a mail relay.
type WebhookSender struct {
	url    string
	token  string
	client *http.Client
}

func NewWebhookSender(url string, token string, client *http.Client) *WebhookSender {
	if client == nil {
		client = &http.Client{Timeout: webhookTimeout}
	}
	return &WebhookSender{url: url, token: token, client: client}
}

func (sender *WebhookSender) Send(ctx context.Context, email Email) error {
	body, err := json.Marshal(email)
	if err != nil {
		return err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, sender.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	if sender.token != "" {
		request.Header.Set("Authorization", "Bearer "+sender.token)
	}
	response, err := sender.client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, response.Body)
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook status %d", response.StatusCode)
	}
	return nil
}
