package outreach

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"venue-outreach/internal/venues"
)

func TestFinalizer_RefusesNonTerminalAttempt(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	f.addEvent("ev")
	f.addVenue("v1", "ev", "+1555")
	f.addAttempt("a1", "v1", "ev", "ref-1", "+1555", now)

	if err := f.finalizer.Finalize(ctx, "a1"); !errors.Is(err, ErrNotTerminal) {
		t.Fatalf("expected ErrNotTerminal, got %v", err)
	}
	if f.notifier.sentCount() != 0 {
		t.Fatalf("no notification expected")
	}
}

func TestFinalizer_ConcurrentCallersNotifyExactlyOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	f.addEvent("ev")
	f.addVenue("v1", "ev", "+1555")
	f.addAttempt("a1", "v1", "ev", "ref-1", "+1555", now)
	f.extractor.result = NegotiationResult{FinalQuote: int64p(4200)}

	if _, err := f.store.TransitionTerminal(ctx, "a1", StateCompleted, now, &Outcome{Reason: "ended", Transcript: "we agreed on 4200"}); err != nil {
		t.Fatalf("terminal: %v", err)
	}

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.finalizer.Finalize(ctx, "a1"); err != nil {
				t.Errorf("finalize: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := f.extractor.callCount(); got != 1 {
		t.Fatalf("extraction ran %d times, want 1", got)
	}
	if got := f.notifier.sentCount(); got != 1 {
		t.Fatalf("notification sent %d times, want 1", got)
	}
	v, err := f.venueRepo.Get(ctx, "v1")
	if err != nil {
		t.Fatalf("venue: %v", err)
	}
	if v.Status != venues.StatusNegotiated {
		t.Fatalf("expected negotiated venue, got %q", v.Status)
	}
	if r, ok, _ := f.store.GetResult(ctx, "a1"); !ok || r.FinalQuote == nil || *r.FinalQuote != 4200 {
		t.Fatalf("expected persisted result, got ok=%v %+v", ok, r)
	}
}

func TestFinalizer_NoTranscriptSkipsExtraction(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	f.addEvent("ev")
	f.addVenue("v1", "ev", "+1555")
	f.addAttempt("a1", "v1", "ev", "ref-1", "+1555", now)

	if _, err := f.store.TransitionTerminal(ctx, "a1", StateCompleted, now, &Outcome{Reason: "ended"}); err != nil {
		t.Fatalf("terminal: %v", err)
	}
	if err := f.finalizer.Finalize(ctx, "a1"); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if f.extractor.callCount() != 0 {
		t.Fatalf("extraction must not run without a transcript")
	}
	// completed but no usable terms: the venue did not negotiate
	v, _ := f.venueRepo.Get(ctx, "v1")
	if v.Status != venues.StatusFailed {
		t.Fatalf("expected failed venue, got %q", v.Status)
	}
	if f.notifier.sentCount() != 1 {
		t.Fatalf("requester still hears about the venue exactly once")
	}
}

func TestFinalizer_TimedOutMapsToUnreachable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	f.addEvent("ev")
	f.addVenue("v1", "ev", "+1555")
	f.addAttempt("a1", "v1", "ev", "ref-1", "+1555", now)

	if _, err := f.store.TransitionTerminal(ctx, "a1", StateTimedOut, now, &Outcome{Reason: ReasonWatcherDeadline}); err != nil {
		t.Fatalf("terminal: %v", err)
	}
	if err := f.finalizer.Finalize(ctx, "a1"); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	v, _ := f.venueRepo.Get(ctx, "v1")
	if v.Status != venues.StatusUnreachable {
		t.Fatalf("expected unreachable venue, got %q", v.Status)
	}
	if f.notifier.sent[0].Summary != "no response from venue before deadline" {
		t.Fatalf("unexpected summary: %q", f.notifier.sent[0].Summary)
	}
}

func TestFinalizer_SideEffectFailureStaysFinalized(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	f.addEvent("ev")
	f.addVenue("v1", "ev", "+1555")
	f.addAttempt("a1", "v1", "ev", "ref-1", "+1555", now)
	f.extractor.err = errors.New("collaborator down")

	if _, err := f.store.TransitionTerminal(ctx, "a1", StateCompleted, now, &Outcome{Reason: "ended", Transcript: "hello"}); err != nil {
		t.Fatalf("terminal: %v", err)
	}
	if err := f.finalizer.Finalize(ctx, "a1"); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	a, _ := f.store.Get(ctx, "a1")
	if !a.Finalized {
		t.Fatalf("attempt must stay finalized after side-effect failure")
	}
	if a.FinalizeError == "" {
		t.Fatalf("finalize error must be recorded")
	}

	// a second invocation is a no-op: no retry of the failed extraction
	if err := f.finalizer.Finalize(ctx, "a1"); err != nil {
		t.Fatalf("repeat finalize: %v", err)
	}
	if f.extractor.callCount() != 1 {
		t.Fatalf("failed extraction must not be retried")
	}
}
