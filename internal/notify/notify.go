// Package notify delivers maintenance run summaries to an operator
// webhook. Delivery is best-effort; a dead webhook never fails a run.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ignite/listkeeper/internal/domain"
	"github.com/ignite/listkeeper/internal/pkg/httpretry"
)

// Config configures the webhook notifier.
type Config struct {
	WebhookURL string `yaml:"webhook_url"`
}

// Notifier posts run summaries to a webhook.
type Notifier struct {
	webhookURL string
	httpClient httpretry.HTTPDoer
}

// New creates a webhook notifier. An empty URL disables notification.
func New(cfg Config) *Notifier {
	return &Notifier{
		webhookURL: cfg.WebhookURL,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: 30 * time.Second,
		}, 2),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing)
func (n *Notifier) SetHTTPClient(client httpretry.HTTPDoer) {
	n.httpClient = client
}

type notification struct {
	Event      string                   `json:"event"`
	Result     domain.MaintenanceResult `json:"result"`
	NotifiedAt time.Time                `json:"notified_at"`
}

// NotifyMaintenanceComplete posts the run result. Returns an error for
// the caller to log; callers must not treat it as a run failure.
func (n *Notifier) NotifyMaintenanceComplete(ctx context.Context, result domain.MaintenanceResult) error {
	if n == nil || n.webhookURL == "" {
		return nil
	}

	event := "maintenance.completed"
	if !result.Success {
		event = "maintenance.failed"
	}
	body, err := json.Marshal(notification{
		Event:      event,
		Result:     result,
		NotifiedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
