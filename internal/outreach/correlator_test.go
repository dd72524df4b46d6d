package outreach

import (
	"context"
	"errors"
	"testing"
	"time"

	"venue-outreach/internal/audit"
)

func TestCorrelator_MatchesByExternalRef(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	f.addEvent("ev")
	f.addVenue("v1", "ev", "+1555")
	f.addAttempt("a1", "v1", "ev", "ref-1", "+1555", now)

	out, err := f.correlator.Correlate(ctx, Signal{
		ExternalRef: "ref-1",
		Status:      SignalStatusEnded,
		Transcript:  "transcript",
	})
	if err != nil {
		t.Fatalf("correlate: %v", err)
	}
	if out.AttemptID != "a1" || !out.Applied || out.State != StateCompleted {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	a, _ := f.store.Get(ctx, "a1")
	if a.Outcome == nil || a.Outcome.Transcript != "transcript" {
		t.Fatalf("terminal outcome not recorded: %+v", a)
	}
	if !a.Finalized {
		t.Fatalf("winner must finalize")
	}
}

func TestCorrelator_FallsBackToChannelWhenRefUnknown(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	f.addEvent("ev")
	f.addVenue("v1", "ev", "+1555")
	f.addAttempt("a1", "v1", "ev", "", "+1555", now)

	out, err := f.correlator.Correlate(ctx, Signal{
		ExternalRef:    "never-seen-ref",
		ContactChannel: "+1555",
		Status:         SignalStatusFailed,
	})
	if err != nil {
		t.Fatalf("correlate: %v", err)
	}
	if out.AttemptID != "a1" || out.State != StateFailed {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestCorrelator_AmbiguousChannelRefused(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	f.addEvent("ev")
	f.addVenue("v1", "ev", "+1555")
	f.addVenue("v2", "ev", "+1555")
	// two venues share a front-desk number
	f.addAttempt("a1", "v1", "ev", "", "+1555", now)
	f.addAttempt("a2", "v2", "ev", "", "+1555", now)

	_, err := f.correlator.Correlate(ctx, Signal{ContactChannel: "+1555", Status: SignalStatusEnded})
	if !errors.Is(err, ErrAmbiguousSignal) {
		t.Fatalf("expected ErrAmbiguousSignal, got %v", err)
	}

	// neither attempt may be touched
	for _, id := range []string{"a1", "a2"} {
		a, _ := f.store.Get(ctx, id)
		if a.State.Terminal() {
			t.Fatalf("attempt %s must stay open", id)
		}
	}

	recs := f.auditRepo.Records()
	if len(recs) != 1 || recs[0].Type != audit.RecordTypeCorrelationAmbiguous {
		t.Fatalf("expected one ambiguity audit record, got %+v", recs)
	}
}

func TestCorrelator_NoMatchAudited(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.correlator.Correlate(ctx, Signal{ExternalRef: "ghost", ContactChannel: "+1999", Status: SignalStatusEnded})
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
	recs := f.auditRepo.Records()
	if len(recs) != 1 || recs[0].Type != audit.RecordTypeCorrelationNoMatch {
		t.Fatalf("expected one no-match audit record, got %+v", recs)
	}
}

func TestCorrelator_DuplicateTerminalSignalAbsorbed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	f.addEvent("ev")
	f.addVenue("v1", "ev", "+1555")
	f.addAttempt("a1", "v1", "ev", "ref-1", "+1555", now)

	first, err := f.correlator.Correlate(ctx, Signal{ExternalRef: "ref-1", Status: SignalStatusEnded})
	if err != nil || !first.Applied {
		t.Fatalf("first signal: %+v err=%v", first, err)
	}
	// redelivery, and even a conflicting status, is absorbed
	second, err := f.correlator.Correlate(ctx, Signal{ExternalRef: "ref-1", Status: SignalStatusNoAnswer})
	if err != nil {
		t.Fatalf("second signal: %v", err)
	}
	if !second.Duplicate || second.Applied {
		t.Fatalf("expected duplicate absorption, got %+v", second)
	}
	a, _ := f.store.Get(ctx, "a1")
	if a.State != StateCompleted {
		t.Fatalf("recorded terminal state must stand, got %q", a.State)
	}
	if f.notifier.sentCount() != 1 {
		t.Fatalf("duplicate must not re-notify")
	}
}

func TestCorrelator_InProgressAdvancesOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	f.addEvent("ev")
	f.addVenue("v1", "ev", "+1555")
	f.addAttempt("a1", "v1", "ev", "ref-1", "+1555", now)

	out, err := f.correlator.Correlate(ctx, Signal{ExternalRef: "ref-1", Status: SignalStatusInProgress})
	if err != nil || !out.Applied || out.State != StateInProgress {
		t.Fatalf("first in-progress: %+v err=%v", out, err)
	}
	// replay is reported as duplicate, not an error
	out, err = f.correlator.Correlate(ctx, Signal{ExternalRef: "ref-1", Status: SignalStatusInProgress})
	if err != nil || out.Applied || !out.Duplicate {
		t.Fatalf("replayed in-progress: %+v err=%v", out, err)
	}
}

func TestCorrelator_UnknownStatusRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	f.addEvent("ev")
	f.addVenue("v1", "ev", "+1555")
	f.addAttempt("a1", "v1", "ev", "ref-1", "+1555", now)

	if _, err := f.correlator.Correlate(ctx, Signal{ExternalRef: "ref-1", Status: "mystery"}); err == nil {
		t.Fatalf("expected error for unknown status")
	}
	a, _ := f.store.Get(ctx, "a1")
	if a.State.Terminal() {
		t.Fatalf("unknown status must not terminalize")
	}
}
