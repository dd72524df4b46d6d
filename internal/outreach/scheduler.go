package outreach

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"venue-outreach/internal/audit"
	"venue-outreach/internal/venues"
	"venue-outreach/pkg/logger"

	"github.com/google/uuid"
)

// DispatchLimiter caps concurrent call-creation requests against the voice
// platform across all orchestrator instances. A nil limiter means no cap
// beyond the in-process worker pool.
type DispatchLimiter interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Scheduler creates one attempt per eligible venue and dispatches the
// outbound calls.
//
// Venues are processed independently: dispatch runs on a bounded worker
// pool and a single venue's failure never aborts the batch.
type Scheduler struct {
	store     Store
	venueRepo venues.Repository
	provider  CallProvider
	finalizer *Finalizer
	limiter   DispatchLimiter
	auditor   *audit.Service

	concurrency int
	clock       func() time.Time
}

type SchedulerConfig struct {
	// Concurrency bounds the in-process dispatch worker pool.
	Concurrency int
}

func NewScheduler(store Store, venueRepo venues.Repository, provider CallProvider, finalizer *Finalizer, limiter DispatchLimiter, auditor *audit.Service, cfg SchedulerConfig) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Scheduler{
		store:       store,
		venueRepo:   venueRepo,
		provider:    provider,
		finalizer:   finalizer,
		limiter:     limiter,
		auditor:     auditor,
		concurrency: cfg.Concurrency,
		clock:       time.Now,
	}
}

// ScheduleResult is the batch report for one event.
type ScheduleResult struct {
	EventID string `json:"event_id"`

	// Scheduled lists attempt ids acknowledged by the platform.
	Scheduled []string `json:"scheduled"`
	// AlreadyActive lists venue ids refused because a non-terminal attempt
	// exists ("already in progress", not an error).
	AlreadyActive []string `json:"already_active"`
	// SkippedNoChannel counts venues without a usable contact number.
	SkippedNoChannel int `json:"skipped_no_channel"`

	Failed []DispatchFailure `json:"failed"`
}

type DispatchFailure struct {
	VenueID   string `json:"venue_id"`
	AttemptID string `json:"attempt_id,omitempty"`
	Reason    string `json:"reason"`
}

var ErrEventRequired = errors.New("outreach: event id is required")

// ScheduleOutreach contacts every venue under the event that is still in
// discovered status and has a phone number.
func (s *Scheduler) ScheduleOutreach(ctx context.Context, eventID string) (ScheduleResult, error) {
	if eventID == "" {
		return ScheduleResult{}, ErrEventRequired
	}
	log := logger.From(ctx).With("event_id", eventID)

	eligible, err := s.venueRepo.ListByEventAndStatus(ctx, eventID, venues.StatusDiscovered)
	if err != nil {
		return ScheduleResult{}, err
	}

	out := ScheduleResult{EventID: eventID}

	// Phase 1 (serial): create attempts. Creation enforces the single
	// active attempt invariant per venue; refusals are reported, not dialed.
	var toDispatch []CallAttempt
	for _, v := range eligible {
		if v.ContactPhone == "" {
			out.SkippedNoChannel++
			continue
		}

		attempt := CallAttempt{
			ID:             uuid.NewString(),
			VenueID:        v.ID,
			EventID:        eventID,
			ContactChannel: v.ContactPhone,
			State:          StatePendingDispatch,
			CreatedAt:      s.clock().UTC(),
		}
		if err := s.store.Create(ctx, attempt); err != nil {
			if errors.Is(err, ErrAttemptActive) {
				out.AlreadyActive = append(out.AlreadyActive, v.ID)
				continue
			}
			return ScheduleResult{}, err
		}
		toDispatch = append(toDispatch, attempt)
	}

	// Phase 2 (parallel, bounded): dispatch. Each venue's call creation is
	// an independent blocking request; one failure isolates to its attempt.
	type dispatchOutcome struct {
		attempt CallAttempt
		venue   string
		err     error
	}

	sem := make(chan struct{}, s.concurrency)
	results := make(chan dispatchOutcome, len(toDispatch))
	var wg sync.WaitGroup

	venueByID := make(map[string]venues.Venue, len(eligible))
	for _, v := range eligible {
		venueByID[v.ID] = v
	}

	for _, attempt := range toDispatch {
		wg.Add(1)
		go func(a CallAttempt) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			err := s.dispatch(ctx, a, venueByID[a.VenueID])
			results <- dispatchOutcome{attempt: a, venue: a.VenueID, err: err}
		}(attempt)
	}

	wg.Wait()
	close(results)

	for r := range results {
		if r.err == nil {
			out.Scheduled = append(out.Scheduled, r.attempt.ID)
			continue
		}
		out.Failed = append(out.Failed, DispatchFailure{
			VenueID:   r.venue,
			AttemptID: r.attempt.ID,
			Reason:    r.err.Error(),
		})
	}

	log.Info("outreach batch scheduled",
		"eligible", len(eligible),
		"scheduled", len(out.Scheduled),
		"already_active", len(out.AlreadyActive),
		"skipped_no_channel", out.SkippedNoChannel,
		"failed", len(out.Failed),
	)
	return out, nil
}

// dispatch performs one call-creation request. On platform acknowledgment
// the attempt moves to dispatched and the venue to negotiating; on failure
// the attempt is terminalized as failed and finalized (the requester still
// hears about the venue exactly once).
func (s *Scheduler) dispatch(ctx context.Context, attempt CallAttempt, venue venues.Venue) error {
	if s.limiter != nil {
		ok, err := s.acquireSlot(ctx)
		if err != nil || !ok {
			reason := "dispatch capacity exhausted"
			if err != nil {
				reason = fmt.Sprintf("dispatch limiter: %v", err)
			}
			s.failDispatch(ctx, attempt, reason)
			return errors.New(reason)
		}
		defer func() { _ = s.limiter.Release(ctx) }()
	}

	res, err := s.provider.CreateCall(ctx, CreateCallRequest{
		ContactNumber: attempt.ContactChannel,
		ContactName:   venue.Name,
		EventID:       attempt.EventID,
		VenueID:       attempt.VenueID,
		AttemptID:     attempt.ID,
	})
	if err != nil {
		s.failDispatch(ctx, attempt, fmt.Sprintf("platform rejected call: %v", err))
		return err
	}

	if err := s.store.MarkDispatched(ctx, attempt.ID, res.ExternalRef); err != nil {
		return err
	}
	if err := s.venueRepo.UpdateStatus(ctx, attempt.VenueID, venues.StatusNegotiating); err != nil {
		logger.From(ctx).Error("venue status update failed", "venue_id", attempt.VenueID, "err", err)
	}
	return nil
}

// acquireSlot polls the shared limiter briefly before giving up. The cap
// protects the platform's rate limits, not batch ordering.
func (s *Scheduler) acquireSlot(ctx context.Context) (bool, error) {
	const tries = 40
	const wait = 250 * time.Millisecond

	for i := 0; i < tries; i++ {
		ok, err := s.limiter.Acquire(ctx)
		if err != nil || ok {
			return ok, err
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(wait):
		}
	}
	return false, nil
}

func (s *Scheduler) failDispatch(ctx context.Context, attempt CallAttempt, reason string) {
	won, err := s.store.TransitionTerminal(ctx, attempt.ID, StateFailed, s.clock().UTC(), &Outcome{Reason: reason})
	if err != nil {
		logger.From(ctx).Error("record dispatch failure failed", "attempt_id", attempt.ID, "err", err)
		return
	}
	if !won {
		return
	}
	if s.auditor != nil {
		_ = s.auditor.DispatchFailure(ctx, attempt.EventID, attempt.VenueID, attempt.ID, reason)
	}
	if err := s.finalizer.Finalize(ctx, attempt.ID); err != nil {
		logger.From(ctx).Error("finalize after dispatch failure failed", "attempt_id", attempt.ID, "err", err)
	}
}
