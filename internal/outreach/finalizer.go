package outreach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"venue-outreach/internal/audit"
	"venue-outreach/internal/events"
	"venue-outreach/internal/notify"
	"venue-outreach/internal/venues"
	"venue-outreach/pkg/logger"
)

// Finalizer runs the one-time side effects after an attempt reaches a
// terminal state: transcript extraction, venue status update, requester
// notification.
//
// The finalized flag is acquired atomically before any work; the webhook
// path and the watcher path can both invoke Finalize for the same attempt
// and exactly one proceeds. Finalization is try-exactly-once: side-effect
// failures are recorded against the attempt and audited, never retried,
// and never un-finalize.
type Finalizer struct {
	store     Store
	venueRepo venues.Repository
	eventRepo events.Repository
	extractor Extractor
	notifier  notify.Notifier
	auditor   *audit.Service

	clock func() time.Time
}

func NewFinalizer(store Store, venueRepo venues.Repository, eventRepo events.Repository, extractor Extractor, notifier notify.Notifier, auditor *audit.Service) *Finalizer {
	return &Finalizer{
		store:     store,
		venueRepo: venueRepo,
		eventRepo: eventRepo,
		extractor: extractor,
		notifier:  notifier,
		auditor:   auditor,
		clock:     time.Now,
	}
}

var ErrNotTerminal = errors.New("outreach: attempt is not terminal")

func (f *Finalizer) Finalize(ctx context.Context, attemptID string) error {
	log := logger.From(ctx).With("attempt_id", attemptID)

	attempt, err := f.store.Get(ctx, attemptID)
	if err != nil {
		return err
	}
	if !attempt.State.Terminal() {
		return ErrNotTerminal
	}

	won, err := f.store.AcquireFinalize(ctx, attemptID)
	if err != nil {
		return err
	}
	if !won {
		// Someone else already finalized (or is finalizing). Idempotent no-op.
		return nil
	}

	var result NegotiationResult
	haveResult := false

	if attempt.State == StateCompleted && attempt.Outcome != nil && attempt.Outcome.Transcript != "" {
		result, haveResult = f.extract(ctx, attempt)
	}

	disposition := f.updateVenueStatus(ctx, attempt, haveResult && result.Usable())

	summary := outcomeSummary(attempt, result, haveResult)
	if err := f.notify(ctx, attempt, disposition, summary); err != nil {
		log.Error("notification failed", "err", err)
	}

	log.Info("attempt finalized",
		"venue_id", attempt.VenueID,
		"state", string(attempt.State),
		"disposition", string(disposition),
	)
	return nil
}

func (f *Finalizer) extract(ctx context.Context, attempt CallAttempt) (NegotiationResult, bool) {
	log := logger.From(ctx)

	ev, err := f.eventRepo.Get(ctx, attempt.EventID)
	if err != nil {
		f.recordSideEffectFailure(ctx, attempt, fmt.Sprintf("extraction: load event: %v", err))
		return NegotiationResult{}, false
	}
	venue, err := f.venueRepo.Get(ctx, attempt.VenueID)
	if err != nil {
		f.recordSideEffectFailure(ctx, attempt, fmt.Sprintf("extraction: load venue: %v", err))
		return NegotiationResult{}, false
	}

	result, err := f.extractor.Extract(ctx, ExtractionRequest{
		AttemptID:  attempt.ID,
		Transcript: attempt.Outcome.Transcript,
		Event:      ev,
		Venue:      venue,
	})
	if err != nil {
		f.recordSideEffectFailure(ctx, attempt, fmt.Sprintf("extraction: %v", err))
		return NegotiationResult{}, false
	}

	result.AttemptID = attempt.ID
	result.VenueID = attempt.VenueID
	result.EventID = attempt.EventID
	result.CreatedAt = f.clock().UTC()

	if err := f.store.AttachResult(ctx, result); err != nil {
		log.Error("persist negotiation result failed", "err", err)
		f.recordSideEffectFailure(ctx, attempt, fmt.Sprintf("persist result: %v", err))
		return NegotiationResult{}, false
	}
	return result, true
}

// updateVenueStatus writes the durable per-venue summary. The watcher's
// forced timeout maps to unreachable so analytics can tell "venue said no"
// apart from "we never heard back".
func (f *Finalizer) updateVenueStatus(ctx context.Context, attempt CallAttempt, usableTerms bool) venues.Status {
	var status venues.Status
	switch {
	case attempt.State == StateCompleted && usableTerms:
		status = venues.StatusNegotiated
	case attempt.State == StateTimedOut:
		status = venues.StatusUnreachable
	default:
		status = venues.StatusFailed
	}

	if err := f.venueRepo.UpdateStatus(ctx, attempt.VenueID, status); err != nil {
		logger.From(ctx).Error("venue status update failed", "venue_id", attempt.VenueID, "err", err)
	}
	return status
}

func (f *Finalizer) notify(ctx context.Context, attempt CallAttempt, disposition venues.Status, summary string) error {
	var recipient string
	if ev, err := f.eventRepo.Get(ctx, attempt.EventID); err == nil {
		recipient = ev.RequesterEmail
	}

	err := f.notifier.Notify(ctx, notify.Notification{
		EventID:        attempt.EventID,
		VenueID:        attempt.VenueID,
		AttemptID:      attempt.ID,
		Disposition:    string(disposition),
		Summary:        summary,
		RecipientEmail: recipient,
	})
	if err != nil {
		f.recordSideEffectFailure(ctx, attempt, fmt.Sprintf("notify: %v", err))
	}
	return err
}

func (f *Finalizer) recordSideEffectFailure(ctx context.Context, attempt CallAttempt, msg string) {
	if err := f.store.RecordFinalizeError(ctx, attempt.ID, msg); err != nil {
		logger.From(ctx).Error("record finalize error failed", "attempt_id", attempt.ID, "err", err)
	}
	if f.auditor != nil {
		_ = f.auditor.FinalizeError(ctx, attempt.EventID, attempt.VenueID, attempt.ID, msg)
	}
}

func outcomeSummary(attempt CallAttempt, result NegotiationResult, haveResult bool) string {
	switch attempt.State {
	case StateCompleted:
		if haveResult && result.FinalQuote != nil {
			return fmt.Sprintf("negotiation completed: final quote $%d", *result.FinalQuote)
		}
		if haveResult && result.InitialQuote != nil {
			return fmt.Sprintf("negotiation completed: initial quote $%d, no final agreement", *result.InitialQuote)
		}
		return "call completed, no usable terms discussed"
	case StateTimedOut:
		return "no response from venue before deadline"
	default:
		if attempt.Outcome != nil {
			switch attempt.Outcome.Reason {
			case SignalStatusNoAnswer:
				return "no answer"
			case SignalStatusBusy:
				return "line busy"
			}
			if attempt.Outcome.Reason != "" {
				return "call failed: " + attempt.Outcome.Reason
			}
		}
		return "call failed"
	}
}
