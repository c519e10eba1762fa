package auditor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/freelancehub/escrow-engine/internal/engine"
)

// errMalformed marks messages that can never be processed; they are nacked
// without requeue so they end up in the dead-letter queue.
var errMalformed = errors.New("malformed audit message")

func shouldRequeue(err error) bool {
	return !errors.Is(err, errMalformed)
}

// processDelivery persists one audit event and, for settlement outcomes,
// notifies the reputation service. Notification failures are logged but do
// not fail the delivery: the persisted event is the source of truth and the
// reputation service is an optional collaborator.
func (a *Auditor) processDelivery(ctx context.Context, body []byte) error {
	var ev engine.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if ev.EventID == "" || ev.Kind == "" {
		return fmt.Errorf("%w: missing event_id or kind", errMalformed)
	}

	if err := a.store.InsertEvent(ctx, ev); err != nil {
		return fmt.Errorf("failed to persist audit event: %w", err)
	}

	a.logger.Debug("Audit event persisted",
		slog.String("event_id", ev.EventID),
		slog.String("kind", string(ev.Kind)),
		slog.String("job_id", ev.JobID),
	)

	switch ev.Kind {
	case engine.EventWorkApproved, engine.EventDisputeResolved:
		if err := a.notifier.NotifyOutcome(ctx, ev); err != nil {
			a.logger.Warn("Reputation notification failed",
				slog.String("event_id", ev.EventID),
				slog.String("job_id", ev.JobID),
				slog.Any("error", err),
			)
		}
	}

	return nil
}
