package events

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("events: not found")

type Repository interface {
	Create(ctx context.Context, e Event) error
	Get(ctx context.Context, id string) (Event, error)
}

// MemoryRepo is an in-memory Repository for tests and local development.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{rows: map[string]Event{}} }

func (r *MemoryRepo) Create(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[e.ID] = e
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	return e, nil
}
