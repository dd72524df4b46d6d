package outreach

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and local development. The
// mutex gives it the same linearizable transition semantics the Postgres
// store gets from conditional UPDATEs.
type MemoryStore struct {
	mu       sync.Mutex
	attempts map[string]*CallAttempt
	results  map[string]NegotiationResult
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		attempts: map[string]*CallAttempt{},
		results:  map[string]NegotiationResult{},
	}
}

func (s *MemoryStore) Create(ctx context.Context, a CallAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ex := range s.attempts {
		if ex.VenueID == a.VenueID && !ex.State.Terminal() {
			return ErrAttemptActive
		}
	}
	cp := a
	s.attempts[a.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (CallAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return CallAttempt{}, ErrNotFound
	}
	return *a, nil
}

func (s *MemoryStore) MarkDispatched(ctx context.Context, id, externalRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return ErrNotFound
	}
	if a.State == StatePendingDispatch {
		a.State = StateDispatched
	}
	if a.ExternalRef == "" {
		a.ExternalRef = externalRef
	}
	return nil
}

func (s *MemoryStore) MarkInProgress(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return false, ErrNotFound
	}
	if a.State != StateDispatched {
		return false, nil
	}
	a.State = StateInProgress
	return true, nil
}

func (s *MemoryStore) TransitionTerminal(ctx context.Context, id string, to AttemptState, at time.Time, outcome *Outcome) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return false, ErrNotFound
	}
	if a.State.Terminal() {
		return false, nil
	}
	a.State = to
	t := at
	a.TerminalAt = &t
	a.Outcome = outcome
	return true, nil
}

func (s *MemoryStore) AcquireFinalize(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return false, ErrNotFound
	}
	if !a.State.Terminal() || a.Finalized {
		return false, nil
	}
	a.Finalized = true
	return true, nil
}

func (s *MemoryStore) RecordFinalizeError(ctx context.Context, id, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return ErrNotFound
	}
	a.FinalizeError = msg
	return nil
}

func (s *MemoryStore) AttachResult(ctx context.Context, r NegotiationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[r.AttemptID]; !ok {
		return ErrNotFound
	}
	s.results[r.AttemptID] = r
	return nil
}

func (s *MemoryStore) GetResult(ctx context.Context, attemptID string) (NegotiationResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[attemptID]
	return r, ok, nil
}

func (s *MemoryStore) FindByExternalRef(ctx context.Context, externalRef string) (CallAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if externalRef == "" {
		return CallAttempt{}, ErrNotFound
	}
	for _, a := range s.attempts {
		if a.ExternalRef == externalRef {
			return *a, nil
		}
	}
	return CallAttempt{}, ErrNotFound
}

func (s *MemoryStore) FindActiveByChannel(ctx context.Context, channel string) ([]CallAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CallAttempt
	for _, a := range s.attempts {
		if a.ContactChannel == channel && !a.State.Terminal() {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *MemoryStore) FindActiveByVenue(ctx context.Context, venueID string) (CallAttempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.VenueID == venueID && !a.State.Terminal() {
			return *a, true, nil
		}
	}
	return CallAttempt{}, false, nil
}

func (s *MemoryStore) ListOverdue(ctx context.Context, cutoff time.Time) ([]CallAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CallAttempt
	for _, a := range s.attempts {
		if !a.State.Terminal() && a.CreatedAt.Before(cutoff) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListByEvent(ctx context.Context, eventID string) ([]CallAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CallAttempt
	for _, a := range s.attempts {
		if a.EventID == eventID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListByVenue(ctx context.Context, venueID string) ([]CallAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CallAttempt
	for _, a := range s.attempts {
		if a.VenueID == venueID {
			out = append(out, *a)
		}
	}
	return out, nil
}
