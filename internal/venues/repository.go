package venues

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNotFound = errors.New("venues: not found")

type Repository interface {
	Create(ctx context.Context, v Venue) error
	Get(ctx context.Context, id string) (Venue, error)
	ListByEvent(ctx context.Context, eventID string) ([]Venue, error)
	ListByEventAndStatus(ctx context.Context, eventID string, status Status) ([]Venue, error)
	ListByPlaceID(ctx context.Context, googlePlaceID string) ([]Venue, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}

// MemoryRepo is an in-memory Repository for tests and local development.
type MemoryRepo struct {
	mu     sync.Mutex
	rows   map[string]*Venue
	clock  func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: map[string]*Venue{}, clock: time.Now}
}

func (r *MemoryRepo) Create(ctx context.Context, v Venue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := v
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = r.clock().UTC()
	}
	cp.UpdatedAt = cp.CreatedAt
	r.rows[v.ID] = &cp
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Venue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.rows[id]
	if !ok {
		return Venue{}, ErrNotFound
	}
	return *v, nil
}

func (r *MemoryRepo) ListByEvent(ctx context.Context, eventID string) ([]Venue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Venue
	for _, v := range r.rows {
		if v.EventID == eventID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListByEventAndStatus(ctx context.Context, eventID string, status Status) ([]Venue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Venue
	for _, v := range r.rows {
		if v.EventID == eventID && v.Status == status {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListByPlaceID(ctx context.Context, googlePlaceID string) ([]Venue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if googlePlaceID == "" {
		return nil, nil
	}
	var out []Venue
	for _, v := range r.rows {
		if v.GooglePlaceID == googlePlaceID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}
	v.Status = status
	v.UpdatedAt = r.clock().UTC()
	return nil
}
