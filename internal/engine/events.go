package engine

import (
	"context"
	"log/slog"
	"time"
)

// EventKind labels an accepted transition in the audit stream.
type EventKind string

const (
	EventJobCreated      EventKind = "job_created"
	EventWorkStarted     EventKind = "work_started"
	EventWorkSubmitted   EventKind = "work_submitted"
	EventWorkApproved    EventKind = "work_approved"
	EventDisputeOpened   EventKind = "dispute_opened"
	EventDisputeResolved EventKind = "dispute_resolved"
	EventJobCancelled    EventKind = "job_cancelled"
	EventJobRefunded     EventKind = "job_refunded"
	EventArbiterSet      EventKind = "arbiter_set"
	EventArbiterRemoved  EventKind = "arbiter_removed"
)

// Event is the append-only audit record for one accepted transition. It is
// the sole externally observable history of a job.
type Event struct {
	EventID    string    `json:"event_id"`
	Kind       EventKind `json:"kind"`
	JobID      string    `json:"job_id,omitempty"`
	Actor      Identity  `json:"actor"`
	Client     Identity  `json:"client,omitempty"`
	Freelancer Identity  `json:"freelancer,omitempty"`
	Arbiter    Identity  `json:"arbiter,omitempty"`
	Winner     Identity  `json:"winner,omitempty"`
	Amount     uint64    `json:"amount,omitempty"`
	Asset      Asset     `json:"asset,omitzero"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventSink receives audit events. Emit is fire-and-forget: implementations
// log delivery failures but never fail the triggering transition.
type EventSink interface {
	Emit(ctx context.Context, ev Event)
}

// SlogSink writes each event to a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink returns a sink logging at info level.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(_ context.Context, ev Event) {
	s.logger.Info("Audit event",
		slog.String("event_id", ev.EventID),
		slog.String("kind", string(ev.Kind)),
		slog.String("job_id", ev.JobID),
		slog.String("actor", string(ev.Actor)),
		slog.Uint64("amount", ev.Amount),
		slog.Time("timestamp", ev.Timestamp),
	)
}

// FanoutSink forwards each event to every member sink in order.
type FanoutSink []EventSink

func (f FanoutSink) Emit(ctx context.Context, ev Event) {
	for _, s := range f {
		s.Emit(ctx, ev)
	}
}
