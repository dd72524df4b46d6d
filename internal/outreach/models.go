package outreach

import "time"

// CallAttempt is one outreach cycle targeting a single venue.
//
// Invariants:
// - A venue has at most one attempt in a non-terminal state at any time.
// - Attempt records are append-only per venue; only state, terminal_at,
//   finalized, outcome and finalize_error mutate after creation.
// - ExternalRef, once assigned by the voice platform, never changes.
// - TerminalAt is set if and only if State is terminal.
// - Finalized flips false -> true exactly once.

type CallAttempt struct {
	ID      string `json:"id" db:"id"`
	VenueID string `json:"venue_id" db:"venue_id"`
	EventID string `json:"event_id" db:"event_id"`

	// ExternalRef is the voice platform's call id. Empty until the
	// platform acknowledges call creation.
	ExternalRef string `json:"external_ref,omitempty" db:"external_ref"`

	// ContactChannel is the dialed number (E.164), denormalized here so
	// signals lacking an external ref can still be correlated.
	ContactChannel string `json:"contact_channel" db:"contact_channel"`

	State AttemptState `json:"state" db:"state"`

	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	TerminalAt *time.Time `json:"terminal_at,omitempty" db:"terminal_at"`

	Finalized bool `json:"finalized" db:"finalized"`

	// Outcome is the raw terminal payload. Nil until the attempt is terminal.
	Outcome *Outcome `json:"outcome,omitempty" db:"outcome"`

	// FinalizeError records a failed finalization side effect (extraction or
	// notification). The attempt stays finalized; this is operator-facing only.
	FinalizeError string `json:"finalize_error,omitempty" db:"finalize_error"`
}

type AttemptState string

const (
	StatePendingDispatch AttemptState = "pending_dispatch"
	StateDispatched      AttemptState = "dispatched"
	StateInProgress      AttemptState = "in_progress"
	StateCompleted       AttemptState = "completed"
	StateFailed          AttemptState = "failed"
	StateTimedOut        AttemptState = "timed_out"
)

// Terminal reports whether no further platform-driven transition can occur.
func (s AttemptState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimedOut:
		return true
	default:
		return false
	}
}

// NonTerminalStates is the set of states eligible for the first-terminal-write-wins CAS.
func NonTerminalStates() []AttemptState {
	return []AttemptState{StatePendingDispatch, StateDispatched, StateInProgress}
}

// Outcome captures what the platform (or the watcher) reported when the
// attempt went terminal.
type Outcome struct {
	// Reason is the platform's ended reason ("ended", "no-answer", "busy", ...)
	// or ReasonWatcherDeadline when the watcher forced the transition.
	Reason string `json:"reason"`

	Transcript      string `json:"transcript,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`

	// Raw is the original payload (JSON) for audit/debugging.
	Raw string `json:"raw,omitempty"`
}

// ReasonWatcherDeadline marks attempts terminalized by the watcher, so
// downstream reporting can tell "venue said no" apart from "never heard back".
const ReasonWatcherDeadline = "watcher_deadline"

// Signal is an inbound notification describing an attempt's new state.
// It arrives via webhook or via the watcher's status poll.
type Signal struct {
	// ExternalRef is preferred for correlation when present.
	ExternalRef string `json:"external_ref,omitempty"`
	// ContactChannel (dialed number) is the correlation fallback.
	ContactChannel string `json:"contact_channel,omitempty"`

	// Status is the platform status: "in-progress", "ended", "failed",
	// "no-answer", "busy".
	Status string `json:"status"`

	Transcript      string `json:"transcript,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Raw             string `json:"raw,omitempty"`
}

const (
	SignalStatusInProgress = "in-progress"
	SignalStatusEnded      = "ended"
	SignalStatusFailed     = "failed"
	SignalStatusNoAnswer   = "no-answer"
	SignalStatusBusy       = "busy"
)

// NegotiationResult holds the structured terms extracted from a completed
// attempt's transcript. Optional numeric fields are nil when the venue never
// discussed them; quotes are whole USD.
type NegotiationResult struct {
	AttemptID string `json:"attempt_id" db:"attempt_id"`
	VenueID   string `json:"venue_id" db:"venue_id"`
	EventID   string `json:"event_id" db:"event_id"`

	InitialQuote          *int64 `json:"venue_initial_quote,omitempty" db:"initial_quote"`
	InitialQuoteBreakdown string `json:"venue_initial_quote_breakdown,omitempty" db:"initial_quote_breakdown"`

	Counteroffer          *int64 `json:"agent_counteroffer,omitempty" db:"counteroffer"`
	CounterofferBreakdown string `json:"agent_counteroffer_breakdown,omitempty" db:"counteroffer_breakdown"`
	CounterofferReasoning string `json:"agent_counteroffer_reasoning,omitempty" db:"counteroffer_reasoning"`

	FinalQuote          *int64 `json:"venue_final_quote,omitempty" db:"final_quote"`
	FinalQuoteBreakdown string `json:"venue_final_quote_breakdown,omitempty" db:"final_quote_breakdown"`

	Availability string `json:"availability,omitempty" db:"availability"`
	Flexibility  string `json:"flexibility,omitempty" db:"flexibility"`
	Restrictions string `json:"restrictions,omitempty" db:"restrictions"`
	Notes        string `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Usable reports whether the venue produced terms worth surfacing: a final
// quote, or at least an initial quote with stated availability.
func (r NegotiationResult) Usable() bool {
	if r.FinalQuote != nil {
		return true
	}
	return r.InitialQuote != nil && r.Availability != ""
}
