// Package notify dispatches notifications to a configured webhook.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// NotifyAction implements the actions.Provider interface for webhook
// notifications. Without a webhook URL it degrades to simulate-only.
type NotifyAction struct {
	webhookURL string
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates the provider.
func New(webhookURL string, timeout time.Duration, logger zerolog.Logger) *NotifyAction {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NotifyAction{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("action", "notify").Logger(),
	}
}

// Type implements actions.Provider.
func (a *NotifyAction) Type() string { return "notify" }

// SimulateOnly implements actions.Provider.
func (a *NotifyAction) SimulateOnly() bool { return a.webhookURL == "" }

type payload struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Severity string `json:"severity,omitempty"`
	Subject  string `json:"subject,omitempty"`
}

// Execute posts the notification. params: title, message, severity,
// subject.
func (a *NotifyAction) Execute(ctx context.Context, params map[string]string) (string, error) {
	body, err := json.Marshal(payload{
		Title:    params["title"],
		Message:  params["message"],
		Severity: params["severity"],
		Subject:  params["subject"],
	})
	if err != nil {
		return "", backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, strings.NewReader(string(body)))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("webhook call: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return "", backoff.Permanent(fmt.Errorf("webhook returned status %d", resp.StatusCode))
	}

	a.logger.Info().Str("subject", params["subject"]).Msg("Notification sent")
	return "notification delivered", nil
}
