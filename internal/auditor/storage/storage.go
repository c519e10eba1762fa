package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/freelancehub/escrow-engine/internal/engine"
	"github.com/jmoiron/sqlx"
)

// Storage persists the append-only audit trail.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance.
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// InsertEvent appends one audit event. Re-deliveries are absorbed by the
// conflict clause on event_id, so the insert is idempotent.
func (s *Storage) InsertEvent(ctx context.Context, ev engine.Event) error {
	query := `
		INSERT INTO audit_events (
			event_id, kind, job_id, actor,
			client, freelancer, arbiter, winner,
			amount, asset_kind, asset_token, reason, occurred_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12, $13
		)
		ON CONFLICT (event_id) DO NOTHING
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		ev.EventID,
		string(ev.Kind),
		ev.JobID,
		string(ev.Actor),
		string(ev.Client),
		string(ev.Freelancer),
		string(ev.Arbiter),
		string(ev.Winner),
		int64(ev.Amount),
		string(ev.Asset.Kind),
		ev.Asset.Token,
		ev.Reason,
		ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		s.logger.Debug("Duplicate audit event ignored",
			slog.String("event_id", ev.EventID),
		)
	}

	return nil
}
