// Package audit bridges the engine's audit stream onto RabbitMQ so the
// auditor service can persist it and notify external collaborators.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/freelancehub/escrow-engine/internal/engine"
	"github.com/freelancehub/escrow-engine/shared/rabbitmq"
)

// Publisher is an engine.EventSink that publishes each event as a persistent
// JSON message. Emit never fails the triggering transition: publish errors
// are logged and dropped, matching the fire-and-forget contract.
type Publisher struct {
	client *rabbitmq.Client
	logger *slog.Logger
}

// NewPublisher creates a Publisher over an established RabbitMQ client.
func NewPublisher(client *rabbitmq.Client, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger,
	}
}

func (p *Publisher) Emit(ctx context.Context, ev engine.Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("Failed to marshal audit event",
			slog.String("event_id", ev.EventID),
			slog.Any("error", err),
		)
		return
	}

	if err := p.client.PublishWithRetry(ctx, body, "application/json"); err != nil {
		p.logger.Error("Failed to publish audit event",
			slog.String("event_id", ev.EventID),
			slog.String("kind", string(ev.Kind)),
			slog.Any("error", err),
		)
	}
}
