package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/freelancehub/escrow-engine/internal/engine"
	"github.com/freelancehub/escrow-engine/shared/postgresql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

// JobStore is the durable engine.JobStore backed by Postgres. A job row only
// exists while the job is live: terminal transitions delete it, so a missing
// row is indistinguishable from a never-created one, exactly as the engine
// requires.
type JobStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewJobStore creates a JobStore over an established Postgres client.
func NewJobStore(pg *postgresql.Client, logger *slog.Logger) *JobStore {
	return &JobStore{
		db:     pg.GetDB(),
		logger: logger,
	}
}

type jobRow struct {
	JobID          string    `db:"job_id"`
	Client         string    `db:"client"`
	Freelancer     string    `db:"freelancer"`
	Arbiter        string    `db:"arbiter"`
	Amount         int64     `db:"amount"`
	AssetKind      string    `db:"asset_kind"`
	AssetToken     string    `db:"asset_token"`
	Deadline       time.Time `db:"deadline"`
	Status         string    `db:"status"`
	DeliverableRef string    `db:"deliverable_ref"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func toRow(job *engine.Job) *jobRow {
	return &jobRow{
		JobID:          job.ID,
		Client:         string(job.Client),
		Freelancer:     string(job.Freelancer),
		Arbiter:        string(job.Arbiter),
		Amount:         int64(job.Amount),
		AssetKind:      string(job.Asset.Kind),
		AssetToken:     job.Asset.Token,
		Deadline:       job.Deadline,
		Status:         job.Status,
		DeliverableRef: job.DeliverableRef,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
}

func (r *jobRow) toJob() *engine.Job {
	return &engine.Job{
		ID:         r.JobID,
		Client:     engine.Identity(r.Client),
		Freelancer: engine.Identity(r.Freelancer),
		Arbiter:    engine.Identity(r.Arbiter),
		Amount:     uint64(r.Amount),
		Asset: engine.Asset{
			Kind:  engine.AssetKind(r.AssetKind),
			Token: r.AssetToken,
		},
		Deadline:       r.Deadline,
		Status:         r.Status,
		DeliverableRef: r.DeliverableRef,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (s *JobStore) Create(ctx context.Context, job *engine.Job) error {
	query := `
		INSERT INTO escrow_jobs (
			job_id, client, freelancer, arbiter,
			amount, asset_kind, asset_token, deadline,
			status, deliverable_ref, created_at, updated_at
		) VALUES (
			:job_id, :client, :freelancer, :arbiter,
			:amount, :asset_kind, :asset_token, :deadline,
			:status, :deliverable_ref, :created_at, :updated_at
		)
	`

	_, err := s.db.NamedExecContext(ctx, query, toRow(job))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return engine.ErrIDCollision
		}
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*engine.Job, error) {
	query := `
		SELECT
			job_id, client, freelancer, arbiter,
			amount, asset_kind, asset_token, deadline,
			status, deliverable_ref, created_at, updated_at
		FROM escrow_jobs
		WHERE job_id = $1
	`

	var row jobRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engine.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return row.toJob(), nil
}

func (s *JobStore) Update(ctx context.Context, job *engine.Job) error {
	query := `
		UPDATE escrow_jobs
		SET status = :status,
		    deliverable_ref = :deliverable_ref,
		    updated_at = :updated_at
		WHERE job_id = :job_id
	`

	result, err := s.db.NamedExecContext(ctx, query, toRow(job))
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return engine.ErrNotFound
	}

	return nil
}

func (s *JobStore) Remove(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM escrow_jobs WHERE job_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to remove job: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return engine.ErrNotFound
	}

	s.logger.Info("Job record removed",
		slog.String("job_id", id),
	)
	return nil
}
