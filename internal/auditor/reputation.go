package auditor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/freelancehub/escrow-engine/internal/engine"
)

// Notifier tells the external reputation service about a job outcome.
type Notifier interface {
	NotifyOutcome(ctx context.Context, ev engine.Event) error
}

// NopNotifier discards outcomes; used when no reputation endpoint is
// configured.
type NopNotifier struct{}

func (NopNotifier) NotifyOutcome(context.Context, engine.Event) error {
	return nil
}

// WebhookNotifier posts outcomes to a reputation service webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewWebhookNotifier creates a notifier posting to url with the given
// per-request timeout.
func NewWebhookNotifier(url string, timeout time.Duration, logger *slog.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// outcomePayload is the wire shape the reputation service accepts.
type outcomePayload struct {
	JobID      string `json:"job_id"`
	Kind       string `json:"kind"`
	Client     string `json:"client"`
	Freelancer string `json:"freelancer"`
	Winner     string `json:"winner,omitempty"`
	Amount     uint64 `json:"amount"`
	OccurredAt string `json:"occurred_at"`
}

func (n *WebhookNotifier) NotifyOutcome(ctx context.Context, ev engine.Event) error {
	payload := outcomePayload{
		JobID:      ev.JobID,
		Kind:       string(ev.Kind),
		Client:     string(ev.Client),
		Freelancer: string(ev.Freelancer),
		Winner:     string(ev.Winner),
		Amount:     ev.Amount,
		OccurredAt: ev.Timestamp.Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build reputation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("reputation webhook call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("reputation webhook returned status %d", resp.StatusCode)
	}

	n.logger.Debug("Reputation service notified",
		slog.String("job_id", ev.JobID),
		slog.String("kind", string(ev.Kind)),
	)
	return nil
}
