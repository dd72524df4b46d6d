package events

import (
	"context"
	"errors"

	"venue-outreach/internal/venues"
)

var ErrInvalidEvent = errors.New("events: invalid event")

// Intake persists a planning request together with its discovered venues.
// Implementations must make the write atomic: either the event and all of
// its venues land, or nothing does.
type Intake interface {
	CreateWithVenues(ctx context.Context, e Event, vs []venues.Venue) error
}

// MemoryIntake composes the in-memory repos. Atomicity is trivial here;
// the Postgres implementation runs inside a transaction.
type MemoryIntake struct {
	Events *MemoryRepo
	Venues venues.Repository
}

func (m MemoryIntake) CreateWithVenues(ctx context.Context, e Event, vs []venues.Venue) error {
	if e.ID == "" {
		return ErrInvalidEvent
	}
	if err := m.Events.Create(ctx, e); err != nil {
		return err
	}
	for _, v := range vs {
		if err := m.Venues.Create(ctx, v); err != nil {
			return err
		}
	}
	return nil
}
