package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Config holds engine dependencies. Store, Custody and Policy are required;
// the rest default sensibly.
type Config struct {
	Store   JobStore
	Custody *Custody
	Policy  *Policy
	Sink    EventSink
	Logger  *slog.Logger
	Clock   func() time.Time
}

// Engine is the escrow state machine. Every mutation is gated by current
// status, caller role and time, and is all-or-nothing: on any error the job
// store and custody balances are exactly as before the call.
//
// Mutating calls are serialized by an internal mutex. A separate latch guards
// the window where control passes to an external value transfer: any call
// arriving while the latch is set (a token callback re-entering the engine,
// or a concurrent caller racing the transfer) fails with ErrReentrancy while
// the outer transition completes exactly once.
type Engine struct {
	mu       sync.Mutex
	inFlight atomic.Bool

	store   JobStore
	custody *Custody
	policy  *Policy
	alloc   *IDAllocator
	sink    EventSink
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an engine from cfg.
func New(cfg *Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = NewSlogSink(logger)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Engine{
		store:   cfg.Store,
		custody: cfg.Custody,
		policy:  cfg.Policy,
		alloc:   NewIDAllocator(),
		sink:    sink,
		logger:  logger,
		now:     clock,
	}
}

// Policy returns the injected authorization policy.
func (e *Engine) Policy() *Policy {
	return e.policy
}

// Custody returns the fund custody module.
func (e *Engine) Custody() *Custody {
	return e.custody
}

// enter acquires the engine for one transition. The latch check comes before
// the mutex: a nested call from inside a transfer callback runs on the
// goroutine already holding the mutex and must fail fast, not deadlock.
func (e *Engine) enter() error {
	if e.inFlight.Load() {
		return ErrReentrancy
	}
	e.mu.Lock()
	return nil
}

func (e *Engine) leave() {
	e.mu.Unlock()
}

// guarded runs fn with the reentrancy latch set. Only transitions that move
// value through the custody module pass through here.
func (e *Engine) guarded(fn func() error) error {
	e.inFlight.Store(true)
	defer e.inFlight.Store(false)
	return fn()
}

func (e *Engine) emit(ctx context.Context, ev Event) {
	ev.EventID = uuid.New().String()
	ev.Timestamp = e.now()
	e.sink.Emit(ctx, ev)
}

// CreateParams carries the validated inputs for job creation. Attached is the
// native value the caller sends along; it must equal Amount for native jobs
// and is ignored for token jobs.
type CreateParams struct {
	Client     Identity
	Freelancer Identity
	Arbiter    Identity
	Asset      Asset
	Amount     uint64
	Deadline   time.Time
	Attached   uint64
}

// CreateJob locks funds and stores a new job with status CREATED, returning
// its id. If no arbiter is supplied the job binds the creating client as its
// own arbiter, matching the source contract; that lets a client arbitrate a
// dispute it is party to, so the defaulting is logged loudly and reported to
// the caller.
func (e *Engine) CreateJob(ctx context.Context, p CreateParams) (string, error) {
	if err := e.enter(); err != nil {
		return "", err
	}
	defer e.leave()

	now := e.now()
	if p.Amount == 0 {
		return "", fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}
	if p.Client == "" || p.Freelancer == "" {
		return "", fmt.Errorf("%w: client and freelancer are required", ErrValidation)
	}
	if p.Client == p.Freelancer {
		return "", fmt.Errorf("%w: client and freelancer must differ", ErrValidation)
	}
	if !p.Deadline.After(now) {
		return "", fmt.Errorf("%w: deadline must be in the future", ErrValidation)
	}

	arbiter := p.Arbiter
	if arbiter == "" {
		arbiter = p.Client
		e.logger.Warn("No arbiter supplied, defaulting to client",
			slog.String("client", string(p.Client)),
			slog.String("kind", "self_arbitration"),
		)
	}

	id := e.alloc.Allocate(p.Client, p.Freelancer, p.Amount, now)
	if _, err := e.store.Get(ctx, id); err == nil {
		return "", fmt.Errorf("%w: id %s already bound", ErrIDCollision, id)
	}

	if err := e.guarded(func() error {
		return e.custody.Lock(ctx, p.Asset, p.Amount, p.Client, p.Attached)
	}); err != nil {
		return "", err
	}

	job := &Job{
		ID:         id,
		Client:     p.Client,
		Freelancer: p.Freelancer,
		Arbiter:    arbiter,
		Amount:     p.Amount,
		Asset:      p.Asset,
		Deadline:   p.Deadline,
		Status:     StatusCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := e.store.Create(ctx, job); err != nil {
		// Undo the lock so the failed call leaves balances untouched.
		if relErr := e.guarded(func() error {
			return e.custody.Release(ctx, p.Asset, p.Amount, p.Client)
		}); relErr != nil {
			e.logger.Error("Failed to return locked funds after store failure",
				slog.String("job_id", id),
				slog.Any("error", relErr),
			)
		}
		return "", err
	}

	e.emit(ctx, Event{
		Kind:       EventJobCreated,
		JobID:      id,
		Actor:      p.Client,
		Client:     p.Client,
		Freelancer: p.Freelancer,
		Arbiter:    arbiter,
		Amount:     p.Amount,
		Asset:      p.Asset,
	})
	return id, nil
}

// GetJob returns a live job. Settled ids are permanently unknown.
func (e *Engine) GetJob(ctx context.Context, id string) (*Job, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()

	return e.store.Get(ctx, id)
}

// StartWork moves a CREATED job to IN_PROGRESS. Freelancer only, before the
// deadline.
func (e *Engine) StartWork(ctx context.Context, jobID string, actor Identity) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	job, err := e.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if err := authorize(job, actor, RoleFreelancer, e.policy); err != nil {
		return err
	}
	if job.Status != StatusCreated {
		return fmt.Errorf("%w: cannot start work from %s", ErrInvalidState, job.Status)
	}
	if job.Expired(e.now()) {
		return fmt.Errorf("%w: deadline has passed", ErrDeadline)
	}

	job.Status = StatusInProgress
	job.UpdatedAt = e.now()
	if err := e.store.Update(ctx, job); err != nil {
		return err
	}

	e.emit(ctx, Event{
		Kind:       EventWorkStarted,
		JobID:      job.ID,
		Actor:      actor,
		Client:     job.Client,
		Freelancer: job.Freelancer,
		Amount:     job.Amount,
		Asset:      job.Asset,
	})
	return nil
}

// SubmitWork moves a CREATED or IN_PROGRESS job to SUBMITTED. Freelancer
// only, before the deadline. deliverableRef is an opaque content reference.
func (e *Engine) SubmitWork(ctx context.Context, jobID string, actor Identity, deliverableRef string) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	job, err := e.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if err := authorize(job, actor, RoleFreelancer, e.policy); err != nil {
		return err
	}
	if job.Status != StatusCreated && job.Status != StatusInProgress {
		return fmt.Errorf("%w: cannot submit work from %s", ErrInvalidState, job.Status)
	}
	if job.Expired(e.now()) {
		return fmt.Errorf("%w: deadline has passed", ErrDeadline)
	}

	job.Status = StatusSubmitted
	job.DeliverableRef = deliverableRef
	job.UpdatedAt = e.now()
	if err := e.store.Update(ctx, job); err != nil {
		return err
	}

	e.emit(ctx, Event{
		Kind:       EventWorkSubmitted,
		JobID:      job.ID,
		Actor:      actor,
		Client:     job.Client,
		Freelancer: job.Freelancer,
		Amount:     job.Amount,
		Asset:      job.Asset,
	})
	return nil
}

// ApproveWork settles a SUBMITTED job in the freelancer's favor. Client only.
func (e *Engine) ApproveWork(ctx context.Context, jobID string, actor Identity) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	job, err := e.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if err := authorize(job, actor, RoleClient, e.policy); err != nil {
		return err
	}
	if job.Status != StatusSubmitted {
		return fmt.Errorf("%w: cannot approve work from %s", ErrInvalidState, job.Status)
	}

	return e.settle(ctx, job, job.Freelancer, Event{
		Kind:  EventWorkApproved,
		Actor: actor,
	})
}

// OpenDispute moves a SUBMITTED job to DISPUTED. Either party may open it, at
// any time while the work sits submitted; deadline lapse is the refund path's
// concern, not the dispute's.
func (e *Engine) OpenDispute(ctx context.Context, jobID string, actor Identity, reason string) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	job, err := e.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.IsParty(actor) {
		return fmt.Errorf("%w: only client or freelancer may open a dispute", ErrUnauthorized)
	}
	if job.Status == StatusDisputed {
		return fmt.Errorf("%w: dispute already open", ErrInvalidState)
	}
	if job.Status != StatusSubmitted {
		return fmt.Errorf("%w: cannot open dispute from %s", ErrInvalidState, job.Status)
	}

	job.Status = StatusDisputed
	job.UpdatedAt = e.now()
	if err := e.store.Update(ctx, job); err != nil {
		return err
	}

	e.emit(ctx, Event{
		Kind:       EventDisputeOpened,
		JobID:      job.ID,
		Actor:      actor,
		Client:     job.Client,
		Freelancer: job.Freelancer,
		Arbiter:    job.Arbiter,
		Amount:     job.Amount,
		Asset:      job.Asset,
		Reason:     reason,
	})
	return nil
}

// ResolveDispute settles a DISPUTED job in the winner's favor. Effective
// arbiter only; the winner must be one of the job's two parties.
func (e *Engine) ResolveDispute(ctx context.Context, jobID string, actor, winner Identity) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	job, err := e.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if err := authorize(job, actor, RoleArbiter, e.policy); err != nil {
		return err
	}
	if job.Status != StatusDisputed {
		return fmt.Errorf("%w: cannot resolve dispute from %s", ErrInvalidState, job.Status)
	}
	if !job.IsParty(winner) {
		return fmt.Errorf("%w: winner must be the job's client or freelancer", ErrValidation)
	}

	return e.settle(ctx, job, winner, Event{
		Kind:   EventDisputeResolved,
		Actor:  actor,
		Winner: winner,
	})
}

// CancelJob settles a CREATED job back to the client. Either party may cancel
// before the deadline; after the deadline anyone may.
func (e *Engine) CancelJob(ctx context.Context, jobID string, actor Identity) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	job, err := e.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != StatusCreated {
		return fmt.Errorf("%w: cannot cancel from %s", ErrInvalidState, job.Status)
	}
	if !job.IsParty(actor) && !job.Expired(e.now()) {
		return fmt.Errorf("%w: only client or freelancer may cancel before the deadline", ErrUnauthorized)
	}

	return e.settle(ctx, job, job.Client, Event{
		Kind:  EventJobCancelled,
		Actor: actor,
	})
}

// Refund settles a lapsed job back to the client. Any caller may trigger it,
// but only once the deadline has passed; there is no background timer, expiry
// is evaluated lazily here.
func (e *Engine) Refund(ctx context.Context, jobID string, actor Identity) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	job, err := e.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	switch job.Status {
	case StatusCreated, StatusInProgress, StatusSubmitted:
	default:
		return fmt.Errorf("%w: cannot refund from %s", ErrInvalidState, job.Status)
	}
	if !job.Expired(e.now()) {
		return fmt.Errorf("%w: deadline has not passed", ErrDeadline)
	}

	return e.settle(ctx, job, job.Client, Event{
		Kind:  EventJobRefunded,
		Actor: actor,
	})
}

// SetArbiter adds an identity to the global arbiter registry. Admin only.
func (e *Engine) SetArbiter(ctx context.Context, actor, arbiter Identity) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	if err := e.policy.SetArbiter(actor, arbiter); err != nil {
		return err
	}
	e.emit(ctx, Event{Kind: EventArbiterSet, Actor: actor, Arbiter: arbiter})
	return nil
}

// RemoveArbiter removes an identity from the global arbiter registry. Admin
// only. Jobs that bound the identity at creation keep it.
func (e *Engine) RemoveArbiter(ctx context.Context, actor, arbiter Identity) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	if err := e.policy.RemoveArbiter(actor, arbiter); err != nil {
		return err
	}
	e.emit(ctx, Event{Kind: EventArbiterRemoved, Actor: actor, Arbiter: arbiter})
	return nil
}

// settle is the single commit point for every terminal transition: release
// the job's recorded amount to destination, remove the record, then emit.
// The release runs under the reentrancy latch, so nothing can observe the
// pre-removal record mid-transfer. If the release fails, nothing is
// persisted; the record is only removed after the transfer reported success,
// which makes a second release structurally impossible (the id becomes
// unknown).
func (e *Engine) settle(ctx context.Context, job *Job, destination Identity, ev Event) error {
	if err := e.guarded(func() error {
		return e.custody.Release(ctx, job.Asset, job.Amount, destination)
	}); err != nil {
		return err
	}

	if err := e.store.Remove(ctx, job.ID); err != nil {
		// Funds have moved but the record survived. This cannot be rolled
		// back; surface it as loudly as possible.
		e.logger.Error("Record removal failed after release",
			slog.String("job_id", job.ID),
			slog.String("destination", string(destination)),
			slog.Uint64("amount", job.Amount),
			slog.Any("error", err),
		)
		return fmt.Errorf("record removal after release: %w", err)
	}

	ev.JobID = job.ID
	ev.Client = job.Client
	ev.Freelancer = job.Freelancer
	ev.Arbiter = job.Arbiter
	ev.Amount = job.Amount
	ev.Asset = job.Asset
	e.emit(ctx, ev)
	return nil
}
