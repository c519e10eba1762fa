// Package auditor consumes the engine's audit event stream from RabbitMQ,
// persists it append-only, and notifies the external reputation service of
// job outcomes.
package auditor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/freelancehub/escrow-engine/internal/engine"
	"github.com/freelancehub/escrow-engine/shared/rabbitmq"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// EventStore persists audit events. Inserts must be idempotent on event id:
// RabbitMQ redelivery may hand the same event to two workers.
type EventStore interface {
	InsertEvent(ctx context.Context, ev engine.Event) error
}

// Config holds auditor dependencies.
type Config struct {
	Logger        *slog.Logger
	RabbitClient  *rabbitmq.Client
	Store         EventStore
	Notifier      Notifier
	Concurrency   int
	PrefetchCount int
}

// Auditor is the audit-trail consumer service.
type Auditor struct {
	logger        *slog.Logger
	rabbitClient  *rabbitmq.Client
	store         EventStore
	notifier      Notifier
	concurrency   int
	prefetchCount int
	auditorID     string

	wg           sync.WaitGroup
	stopChan     chan struct{}
	deliveryChan chan amqp.Delivery
}

// New creates an auditor instance.
func New(cfg *Config) *Auditor {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}

	return &Auditor{
		logger:        cfg.Logger,
		rabbitClient:  cfg.RabbitClient,
		store:         cfg.Store,
		notifier:      notifier,
		concurrency:   cfg.Concurrency,
		prefetchCount: cfg.PrefetchCount,
		auditorID:     "auditor-" + uuid.New().String()[:8],
		stopChan:      make(chan struct{}),
		deliveryChan:  make(chan amqp.Delivery),
	}
}

// Start consumes audit events until the context is canceled.
func (a *Auditor) Start(ctx context.Context) error {
	a.logger.Info("Starting auditor",
		slog.String("auditor_id", a.auditorID),
		slog.Int("concurrency", a.concurrency),
	)

	deliveries, err := a.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to setup consumer: %w", err)
	}

	a.spawnWorkerPool(ctx)
	a.dispatch(ctx, deliveries)
	return nil
}

// Stop gracefully stops the auditor.
func (a *Auditor) Stop() {
	a.logger.Info("Stopping auditor...")
	close(a.stopChan)
	a.wg.Wait()
	a.logger.Info("Auditor stopped")
}

// setupConsumer configures QoS and starts consuming from the audit queue.
func (a *Auditor) setupConsumer() (<-chan amqp.Delivery, error) {
	channel := a.rabbitClient.GetChannel()
	if channel == nil {
		return nil, fmt.Errorf("rabbitmq channel is nil")
	}

	if err := channel.Qos(a.prefetchCount, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := a.rabbitClient.Consume(a.auditorID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	a.logger.Info("Audit consumer started",
		slog.String("consumer_tag", a.auditorID),
		slog.Int("prefetch_count", a.prefetchCount),
	)
	return deliveries, nil
}

// dispatch feeds RabbitMQ deliveries to the worker pool.
func (a *Auditor) dispatch(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Dispatcher stopped - context canceled")
			return

		case <-a.stopChan:
			a.logger.Info("Dispatcher stopped - stopChan closed")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				a.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			select {
			case a.deliveryChan <- delivery:
			case <-ctx.Done():
				// Requeue so another consumer can pick it up.
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					a.logger.Error("Failed to NACK message on shutdown",
						slog.Any("error", nackErr),
					)
				}
				return
			}
		}
	}
}

// spawnWorkerPool spawns N worker goroutines based on concurrency.
func (a *Auditor) spawnWorkerPool(ctx context.Context) {
	for i := 0; i < a.concurrency; i++ {
		a.wg.Add(1)
		go a.workerLoop(ctx, i)
	}

	a.logger.Info("Auditor worker pool spawned",
		slog.Int("worker_count", a.concurrency),
	)
}

// workerLoop processes deliveries and acks or nacks based on the result.
func (a *Auditor) workerLoop(ctx context.Context, workerNum int) {
	defer a.wg.Done()

	workerName := fmt.Sprintf("%s-%d", a.auditorID, workerNum)

	for {
		select {
		case <-a.stopChan:
			return

		case <-ctx.Done():
			return

		case delivery, ok := <-a.deliveryChan:
			if !ok {
				return
			}

			err := a.processDelivery(ctx, delivery.Body)
			if err != nil {
				requeue := shouldRequeue(err)
				a.logger.Error("Audit event processing failed",
					slog.String("worker", workerName),
					slog.Bool("requeue", requeue),
					slog.Any("error", err),
				)
				if nackErr := delivery.Nack(false, requeue); nackErr != nil {
					a.logger.Error("Failed to NACK message",
						slog.String("worker", workerName),
						slog.Any("error", nackErr),
					)
				}
				continue
			}

			if ackErr := delivery.Ack(false); ackErr != nil {
				a.logger.Error("Failed to ACK message",
					slog.String("worker", workerName),
					slog.Any("error", ackErr),
				)
			}
		}
	}
}
