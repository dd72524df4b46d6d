package outreach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"venue-outreach/internal/audit"
	"venue-outreach/pkg/logger"
)

// Correlator maps inbound completion signals (webhook payloads or poll
// results) to the open attempt they conclude, and applies the new state
// through the store's compare-and-set.
//
// Correlation precedence: external call ref when present, else the single
// open attempt dialed to the signal's contact channel. Zero or multiple
// channel candidates is an ambiguity this component refuses to guess at.
type Correlator struct {
	store     Store
	finalizer *Finalizer
	auditor   *audit.Service

	clock func() time.Time
}

func NewCorrelator(store Store, finalizer *Finalizer, auditor *audit.Service) *Correlator {
	return &Correlator{
		store:     store,
		finalizer: finalizer,
		auditor:   auditor,
		clock:     time.Now,
	}
}

var (
	// ErrNoMatch: the signal resolved to no open attempt.
	ErrNoMatch = errors.New("outreach: signal matches no open attempt")
	// ErrAmbiguousSignal: channel fallback matched more than one open
	// attempt (shared front-desk number). Surfaced for manual
	// reconciliation, never guessed.
	ErrAmbiguousSignal = errors.New("outreach: signal matches multiple open attempts")
)

// CorrelationOutcome reports what a signal did.
type CorrelationOutcome struct {
	AttemptID string       `json:"attempt_id"`
	State     AttemptState `json:"state"`

	// Applied is false when the signal was absorbed as a duplicate.
	Applied bool `json:"applied"`
	// Duplicate marks signals for attempts that were already terminal.
	Duplicate bool `json:"duplicate"`
}

// Correlate resolves the signal to exactly one attempt and applies it.
// ErrNoMatch and ErrAmbiguousSignal are audited before being returned;
// the HTTP boundary still acknowledges the sender in both cases.
func (c *Correlator) Correlate(ctx context.Context, sig Signal) (CorrelationOutcome, error) {
	attempt, err := c.resolve(ctx, sig)
	if err != nil {
		c.auditFailure(ctx, sig, err)
		return CorrelationOutcome{}, err
	}
	return c.Apply(ctx, attempt.ID, sig)
}

func (c *Correlator) resolve(ctx context.Context, sig Signal) (CallAttempt, error) {
	if sig.ExternalRef != "" {
		a, err := c.store.FindByExternalRef(ctx, sig.ExternalRef)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return CallAttempt{}, err
		}
		// Ref unknown: the platform may not have surfaced the ref to us at
		// dispatch (briefly absent). Fall through to the channel match.
	}

	if sig.ContactChannel == "" {
		return CallAttempt{}, ErrNoMatch
	}

	candidates, err := c.store.FindActiveByChannel(ctx, sig.ContactChannel)
	if err != nil {
		return CallAttempt{}, err
	}
	switch len(candidates) {
	case 0:
		return CallAttempt{}, ErrNoMatch
	case 1:
		return candidates[0], nil
	default:
		return CallAttempt{}, ErrAmbiguousSignal
	}
}

// Apply maps the signal's status onto the attempt's state machine. Both the
// webhook path and the watcher's poll path funnel through here, so the
// first-terminal-write-wins CAS is the single arbiter of racing producers.
func (c *Correlator) Apply(ctx context.Context, attemptID string, sig Signal) (CorrelationOutcome, error) {
	log := logger.From(ctx).With("attempt_id", attemptID, "signal_status", sig.Status)

	if sig.Status == SignalStatusInProgress {
		moved, err := c.store.MarkInProgress(ctx, attemptID)
		if err != nil {
			return CorrelationOutcome{}, err
		}
		return CorrelationOutcome{AttemptID: attemptID, State: StateInProgress, Applied: moved, Duplicate: !moved}, nil
	}

	to, err := terminalStateFor(sig.Status)
	if err != nil {
		return CorrelationOutcome{}, err
	}

	outcome := &Outcome{
		Reason:          sig.Status,
		Transcript:      sig.Transcript,
		DurationSeconds: sig.DurationSeconds,
		Raw:             sig.Raw,
	}

	won, err := c.store.TransitionTerminal(ctx, attemptID, to, c.clock().UTC(), outcome)
	if err != nil {
		return CorrelationOutcome{}, err
	}
	if !won {
		// Late or duplicate delivery; the recorded terminal state stands.
		log.Debug("duplicate terminal signal discarded")
		a, err := c.store.Get(ctx, attemptID)
		if err != nil {
			return CorrelationOutcome{}, err
		}
		return CorrelationOutcome{AttemptID: attemptID, State: a.State, Duplicate: true}, nil
	}

	log.Info("attempt terminalized", "state", string(to))

	if err := c.finalizer.Finalize(ctx, attemptID); err != nil {
		// The terminal write stands; finalization errors are already
		// recorded against the attempt.
		log.Error("finalize after signal failed", "err", err)
	}

	return CorrelationOutcome{AttemptID: attemptID, State: to, Applied: true}, nil
}

func terminalStateFor(status string) (AttemptState, error) {
	switch status {
	case SignalStatusEnded:
		return StateCompleted, nil
	case SignalStatusFailed, SignalStatusNoAnswer, SignalStatusBusy:
		return StateFailed, nil
	default:
		return "", fmt.Errorf("outreach: unknown signal status %q", status)
	}
}

func (c *Correlator) auditFailure(ctx context.Context, sig Signal, cause error) {
	if c.auditor == nil {
		return
	}
	recType := audit.RecordTypeCorrelationNoMatch
	if errors.Is(cause, ErrAmbiguousSignal) {
		recType = audit.RecordTypeCorrelationAmbiguous
	}
	_ = c.auditor.CorrelationFailure(ctx, recType, sig.ExternalRef, sig.ContactChannel, cause.Error(), sig.Raw)
}
