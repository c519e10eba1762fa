package auditor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/freelancehub/escrow-engine/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore records inserted events and can be told to fail.
type fakeStore struct {
	mu     sync.Mutex
	events []engine.Event
	err    error
}

func (s *fakeStore) InsertEvent(_ context.Context, ev engine.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// fakeNotifier records outcome notifications and can be told to fail.
type fakeNotifier struct {
	mu       sync.Mutex
	outcomes []engine.Event
	err      error
}

func (n *fakeNotifier) NotifyOutcome(_ context.Context, ev engine.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.outcomes = append(n.outcomes, ev)
	return nil
}

func newTestAuditor(store *fakeStore, notifier *fakeNotifier) *Auditor {
	return New(&Config{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:       store,
		Notifier:    notifier,
		Concurrency: 1,
	})
}

func eventBody(t *testing.T, ev engine.Event) []byte {
	t.Helper()
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	return body
}

func sampleEvent(kind engine.EventKind) engine.Event {
	return engine.Event{
		EventID:    "evt-1",
		Kind:       kind,
		JobID:      "job-1",
		Actor:      "alice",
		Client:     "alice",
		Freelancer: "bob",
		Amount:     100,
		Asset:      engine.Asset{Kind: engine.AssetNative},
		Timestamp:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestProcessDelivery_PersistsEvent(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	a := newTestAuditor(store, notifier)

	ev := sampleEvent(engine.EventJobCreated)
	err := a.processDelivery(context.Background(), eventBody(t, ev))
	require.NoError(t, err)

	require.Equal(t, 1, store.count())
	assert.Equal(t, "evt-1", store.events[0].EventID)
	assert.Equal(t, engine.EventJobCreated, store.events[0].Kind)

	// Creation is not a settlement outcome.
	assert.Empty(t, notifier.outcomes)
}

func TestProcessDelivery_NotifiesOnOutcomes(t *testing.T) {
	for _, kind := range []engine.EventKind{engine.EventWorkApproved, engine.EventDisputeResolved} {
		t.Run(string(kind), func(t *testing.T) {
			store := &fakeStore{}
			notifier := &fakeNotifier{}
			a := newTestAuditor(store, notifier)

			err := a.processDelivery(context.Background(), eventBody(t, sampleEvent(kind)))
			require.NoError(t, err)

			require.Len(t, notifier.outcomes, 1)
			assert.Equal(t, kind, notifier.outcomes[0].Kind)
		})
	}
}

func TestProcessDelivery_NotifierFailureDoesNotFailDelivery(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{err: errors.New("reputation service down")}
	a := newTestAuditor(store, notifier)

	err := a.processDelivery(context.Background(), eventBody(t, sampleEvent(engine.EventWorkApproved)))
	assert.NoError(t, err)
	assert.Equal(t, 1, store.count())
}

func TestProcessDelivery_MalformedMessages(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"invalid json", []byte("not json")},
		{"missing event id", eventBody(t, engine.Event{Kind: engine.EventJobCreated})},
		{"missing kind", eventBody(t, engine.Event{EventID: "evt-1"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			a := newTestAuditor(store, &fakeNotifier{})

			err := a.processDelivery(context.Background(), tt.body)
			require.Error(t, err)
			assert.ErrorIs(t, err, errMalformed)
			// Poison messages go to the dead-letter queue, not back on the
			// queue.
			assert.False(t, shouldRequeue(err))
			assert.Equal(t, 0, store.count())
		})
	}
}

func TestProcessDelivery_StoreFailureIsRetried(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	a := newTestAuditor(store, &fakeNotifier{})

	err := a.processDelivery(context.Background(), eventBody(t, sampleEvent(engine.EventJobCreated)))
	require.Error(t, err)
	assert.NotErrorIs(t, err, errMalformed)
	assert.True(t, shouldRequeue(err))
}
