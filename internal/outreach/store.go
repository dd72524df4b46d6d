package outreach

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("outreach: attempt not found")

	// ErrAttemptActive is returned when a venue already owns a non-terminal
	// attempt. Callers must surface this instead of double-dialing.
	ErrAttemptActive = errors.New("outreach: venue already has an active attempt")
)

// Store is the single source of truth for call attempts. Every component
// mutates attempt state through it; nothing caches attempt state beyond a
// single operation.
//
// Implementations must make TransitionTerminal and AcquireFinalize atomic
// with respect to concurrent callers (conditional UPDATE in Postgres,
// mutex-guarded check-and-set in memory). Races between the webhook path
// and the watcher path are resolved here, not by callers.
type Store interface {
	// Create persists a new attempt in pending_dispatch. Returns
	// ErrAttemptActive if the venue already has a non-terminal attempt.
	Create(ctx context.Context, a CallAttempt) error

	Get(ctx context.Context, id string) (CallAttempt, error)

	// MarkDispatched attaches the platform's call ref and moves
	// pending_dispatch -> dispatched.
	MarkDispatched(ctx context.Context, id, externalRef string) error

	// MarkInProgress advances dispatched -> in_progress. Reports false
	// without error when the attempt is in any other state.
	MarkInProgress(ctx context.Context, id string) (bool, error)

	// TransitionTerminal applies the first-terminal-write-wins rule: the
	// attempt moves to the given terminal state only if it is currently
	// non-terminal. Reports whether this caller won the write. A false
	// return with nil error means the attempt was already terminal and the
	// signal should be absorbed as a duplicate.
	TransitionTerminal(ctx context.Context, id string, to AttemptState, at time.Time, outcome *Outcome) (bool, error)

	// AcquireFinalize flips finalized false -> true. Reports false when the
	// flag was already set. Exactly one concurrent caller wins.
	AcquireFinalize(ctx context.Context, id string) (bool, error)

	// RecordFinalizeError notes a failed finalization side effect for
	// operator visibility. The finalized flag is not touched.
	RecordFinalizeError(ctx context.Context, id, msg string) error

	AttachResult(ctx context.Context, r NegotiationResult) error
	GetResult(ctx context.Context, attemptID string) (NegotiationResult, bool, error)

	FindByExternalRef(ctx context.Context, externalRef string) (CallAttempt, error)

	// FindActiveByChannel returns every non-terminal attempt dialed to the
	// given channel. More than one candidate means channel correlation is
	// ambiguous (shared front-desk numbers).
	FindActiveByChannel(ctx context.Context, channel string) ([]CallAttempt, error)

	FindActiveByVenue(ctx context.Context, venueID string) (CallAttempt, bool, error)

	// ListOverdue returns non-terminal attempts created before the cutoff.
	ListOverdue(ctx context.Context, cutoff time.Time) ([]CallAttempt, error)

	ListByEvent(ctx context.Context, eventID string) ([]CallAttempt, error)
	ListByVenue(ctx context.Context, venueID string) ([]CallAttempt, error)
}
