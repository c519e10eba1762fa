package engine

import (
	"context"
	"sync"
)

// JobStore is the key-value contract for job records. Absence of a key means
// "never existed" or "already settled" - the two are indistinguishable.
// Remove makes an id permanently unknown; ids are never recycled.
type JobStore interface {
	// Create inserts a new record. Fails with ErrIDCollision if the id is
	// already bound to a live job.
	Create(ctx context.Context, job *Job) error

	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, id string) (*Job, error)

	// Update replaces an existing record in place or fails with ErrNotFound.
	Update(ctx context.Context, job *Job) error

	// Remove deletes the record or fails with ErrNotFound.
	Remove(ctx context.Context, id string) error
}

// MemStore is an in-memory JobStore. It backs the engine in tests and
// single-process deployments; the Postgres store in internal/storage is the
// durable equivalent.
type MemStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{jobs: make(map[string]Job)}
}

func (s *MemStore) Create(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return ErrIDCollision
	}
	s.jobs[job.ID] = *job
	return nil
}

func (s *MemStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &job, nil
}

func (s *MemStore) Update(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	s.jobs[job.ID] = *job
	return nil
}

func (s *MemStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return ErrNotFound
	}
	delete(s.jobs, id)
	return nil
}

// Len returns the number of live records.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
