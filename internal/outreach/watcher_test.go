package outreach

import (
	"context"
	"errors"
	"testing"
	"time"

	"venue-outreach/internal/audit"
	"venue-outreach/internal/venues"
)

func TestWatcher_ForcesTimeoutWhenNeverDispatched(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	f.addEvent("ev")
	f.addVenue("v1", "ev", "+1555")
	// pending_dispatch, no external ref, created well past the deadline
	f.addAttempt("a1", "v1", "ev", "", "+1555", now.Add(-20*time.Minute))
	f.watcher.clock = func() time.Time { return now }

	res := f.watcher.Tick(ctx)
	if res.Scanned != 1 || res.TimedOut != 1 {
		t.Fatalf("unexpected tick result: %+v", res)
	}

	a, _ := f.store.Get(ctx, "a1")
	if a.State != StateTimedOut {
		t.Fatalf("expected timed_out, got %q", a.State)
	}
	if a.Outcome == nil || a.Outcome.Reason != ReasonWatcherDeadline {
		t.Fatalf("watcher timeout must be distinguishable: %+v", a.Outcome)
	}
	if !a.Finalized {
		t.Fatalf("forced timeout must finalize")
	}
	v, _ := f.venueRepo.Get(ctx, "v1")
	if v.Status != venues.StatusUnreachable {
		t.Fatalf("expected unreachable venue, got %q", v.Status)
	}

	var timeouts int
	for _, rec := range f.auditRepo.Records() {
		if rec.Type == audit.RecordTypeWatcherTimeout {
			timeouts++
		}
	}
	if timeouts != 1 {
		t.Fatalf("expected one watcher timeout audit record, got %d", timeouts)
	}
}

func TestWatcher_AppliesTerminalPollResult(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	f.addEvent("ev")
	f.addVenue("v1", "ev", "+1555")
	f.addAttempt("a1", "v1", "ev", "ref-1", "+1555", now.Add(-20*time.Minute))
	f.watcher.clock = func() time.Time { return now }
	f.provider.statuses["ref-1"] = CallStatusResult{
		ExternalRef:     "ref-1",
		Status:          "ended",
		EndedReason:     "customer-ended-call",
		Transcript:      "we discussed pricing",
		DurationSeconds: 240,
	}

	res := f.watcher.Tick(ctx)
	if res.Applied != 1 || res.TimedOut != 0 {
		t.Fatalf("unexpected tick result: %+v", res)
	}
	a, _ := f.store.Get(ctx, "a1")
	if a.State != StateCompleted {
		t.Fatalf("poll result must complete the attempt, got %q", a.State)
	}
	if a.Outcome == nil || a.Outcome.Transcript != "we discussed pricing" {
		t.Fatalf("poll transcript must carry over: %+v", a.Outcome)
	}
}

func TestWatcher_RetainsLiveCall(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	f.addEvent("ev")
	f.addVenue("v1", "ev", "+1555")
	f.addAttempt("a1", "v1", "ev", "ref-1", "+1555", now.Add(-20*time.Minute))
	f.watcher.clock = func() time.Time { return now }
	f.provider.statuses["ref-1"] = CallStatusResult{ExternalRef: "ref-1", Status: "in-progress"}

	res := f.watcher.Tick(ctx)
	if res.Retained != 1 || res.TimedOut != 0 {
		t.Fatalf("live calls are retained, got %+v", res)
	}
	a, _ := f.store.Get(ctx, "a1")
	if a.State.Terminal() {
		t.Fatalf("live call must stay open, got %q", a.State)
	}
}

func TestWatcher_PollErrorForcesTimeout(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	f.addEvent("ev")
	f.addVenue("v1", "ev", "+1555")
	f.addAttempt("a1", "v1", "ev", "ref-1", "+1555", now.Add(-20*time.Minute))
	f.watcher.clock = func() time.Time { return now }
	f.provider.statusErr = errors.New("platform unavailable")

	res := f.watcher.Tick(ctx)
	if res.TimedOut != 1 {
		t.Fatalf("unanswerable poll must force timeout, got %+v", res)
	}
	a, _ := f.store.Get(ctx, "a1")
	if a.State != StateTimedOut {
		t.Fatalf("expected timed_out, got %q", a.State)
	}
}

func TestWatcher_SkipsAttemptsWithinDeadline(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	f.addEvent("ev")
	f.addVenue("v1", "ev", "+1555")
	f.addAttempt("a1", "v1", "ev", "ref-1", "+1555", now.Add(-time.Minute))
	f.watcher.clock = func() time.Time { return now }

	res := f.watcher.Tick(ctx)
	if res.Scanned != 0 {
		t.Fatalf("fresh attempts must not be scanned: %+v", res)
	}
}

func TestWatcher_LosesRaceToWebhookGracefully(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	f.addEvent("ev")
	f.addVenue("v1", "ev", "+1555")
	f.addAttempt("a1", "v1", "ev", "ref-1", "+1555", now.Add(-20*time.Minute))
	f.watcher.clock = func() time.Time { return now }
	f.provider.statuses["ref-1"] = CallStatusResult{ExternalRef: "ref-1", Status: "ended", EndedReason: "no-answer"}

	// webhook lands between the scan and the poll's write
	if _, err := f.correlator.Correlate(ctx, Signal{ExternalRef: "ref-1", Status: SignalStatusEnded, Transcript: "hi"}); err != nil {
		t.Fatalf("webhook: %v", err)
	}

	res := f.watcher.Tick(ctx)
	if res.TimedOut != 0 || res.Applied != 0 {
		t.Fatalf("watcher must not double-write, got %+v", res)
	}
	a, _ := f.store.Get(ctx, "a1")
	if a.State != StateCompleted {
		t.Fatalf("webhook's terminal state must stand, got %q", a.State)
	}
	if f.notifier.sentCount() != 1 {
		t.Fatalf("exactly one notification across both paths")
	}
}
