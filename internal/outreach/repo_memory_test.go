package outreach

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_RefusesSecondActiveAttemptPerVenue(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Unix(1700000000, 0).UTC()

	first := CallAttempt{ID: "a1", VenueID: "v1", EventID: "ev", ContactChannel: "+1555", State: StatePendingDispatch, CreatedAt: now}
	if err := s.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	second := first
	second.ID = "a2"
	if err := s.Create(ctx, second); !errors.Is(err, ErrAttemptActive) {
		t.Fatalf("expected ErrAttemptActive, got %v", err)
	}

	// terminalizing the first frees the venue for a new cycle
	if won, err := s.TransitionTerminal(ctx, "a1", StateFailed, now, &Outcome{Reason: "no-answer"}); err != nil || !won {
		t.Fatalf("terminal: won=%v err=%v", won, err)
	}
	if err := s.Create(ctx, second); err != nil {
		t.Fatalf("create after terminal: %v", err)
	}
}

func TestMemoryStore_FirstTerminalWriteWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Unix(1700000000, 0).UTC()

	if err := s.Create(ctx, CallAttempt{ID: "a1", VenueID: "v1", EventID: "ev", State: StateInProgress, CreatedAt: now}); err != nil {
		t.Fatalf("create: %v", err)
	}

	const writers = 16
	var wg sync.WaitGroup
	wins := make(chan AttemptState, writers)
	for i := 0; i < writers; i++ {
		state := StateCompleted
		if i%2 == 1 {
			state = StateTimedOut
		}
		wg.Add(1)
		go func(to AttemptState) {
			defer wg.Done()
			won, err := s.TransitionTerminal(ctx, "a1", to, now, &Outcome{Reason: string(to)})
			if err != nil {
				t.Errorf("terminal: %v", err)
				return
			}
			if won {
				wins <- to
			}
		}(state)
	}
	wg.Wait()
	close(wins)

	var winners []AttemptState
	for w := range wins {
		winners = append(winners, w)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %d", len(winners))
	}
	a, err := s.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a.State != winners[0] {
		t.Fatalf("stored state %q does not match winner %q", a.State, winners[0])
	}
	if a.TerminalAt == nil || a.Outcome == nil {
		t.Fatalf("terminal metadata missing: %+v", a)
	}
}

func TestMemoryStore_AcquireFinalizeExactlyOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Unix(1700000000, 0).UTC()

	if err := s.Create(ctx, CallAttempt{ID: "a1", VenueID: "v1", EventID: "ev", State: StateInProgress, CreatedAt: now}); err != nil {
		t.Fatalf("create: %v", err)
	}

	// not yet terminal: acquisition must refuse
	if won, err := s.AcquireFinalize(ctx, "a1"); err != nil || won {
		t.Fatalf("expected refusal before terminal, won=%v err=%v", won, err)
	}

	if _, err := s.TransitionTerminal(ctx, "a1", StateCompleted, now, &Outcome{Reason: "ended"}); err != nil {
		t.Fatalf("terminal: %v", err)
	}

	const callers = 8
	var wg sync.WaitGroup
	var acquired int32
	var mu sync.Mutex
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := s.AcquireFinalize(ctx, "a1")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			if won {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if acquired != 1 {
		t.Fatalf("expected exactly one acquisition, got %d", acquired)
	}
}

func TestMemoryStore_MarkDispatchedAssignsRefOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Unix(1700000000, 0).UTC()

	if err := s.Create(ctx, CallAttempt{ID: "a1", VenueID: "v1", EventID: "ev", State: StatePendingDispatch, CreatedAt: now}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.MarkDispatched(ctx, "a1", "ref-1"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := s.MarkDispatched(ctx, "a1", "ref-2"); err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	a, _ := s.Get(ctx, "a1")
	if a.ExternalRef != "ref-1" {
		t.Fatalf("external ref must be immutable, got %q", a.ExternalRef)
	}
	if a.State != StateDispatched {
		t.Fatalf("expected dispatched, got %q", a.State)
	}
}

func TestMemoryStore_ListOverdueSkipsTerminal(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Unix(1700000000, 0).UTC()

	old := now.Add(-20 * time.Minute)
	if err := s.Create(ctx, CallAttempt{ID: "a1", VenueID: "v1", EventID: "ev", State: StateDispatched, CreatedAt: old}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, CallAttempt{ID: "a2", VenueID: "v2", EventID: "ev", State: StateDispatched, CreatedAt: now}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, CallAttempt{ID: "a3", VenueID: "v3", EventID: "ev", State: StateDispatched, CreatedAt: old}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.TransitionTerminal(ctx, "a3", StateCompleted, now, nil); err != nil {
		t.Fatalf("terminal: %v", err)
	}

	overdue, err := s.ListOverdue(ctx, now.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != "a1" {
		t.Fatalf("expected only a1 overdue, got %+v", overdue)
	}
}
