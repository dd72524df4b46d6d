package reporting

import (
	"time"

	"venue-outreach/internal/outreach"
	"venue-outreach/internal/venues"
)

// OutreachSummaryRequest requests aggregated attempt metrics for one event.

type OutreachSummaryRequest struct {
	EventID string `json:"event_id"`
}

type OutreachSummary struct {
	EventID string `json:"event_id"`

	TotalAttempts    int `json:"total_attempts"`
	ActiveAttempts   int `json:"active_attempts"`
	CompletedCalls   int `json:"completed_calls"`
	FailedCalls      int `json:"failed_calls"`
	TimedOutCalls    int `json:"timed_out_calls"`
	FinalizedCalls   int `json:"finalized_calls"`
	FinalizeErrors   int `json:"finalize_errors"`
	UsableResults    int `json:"usable_results"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`
}

// PastNegotiationsRequest looks up negotiation history for the same physical
// venue across events, keyed by its Google place id.

type PastNegotiationsRequest struct {
	GooglePlaceID string `json:"google_place_id"`
}

// PastNegotiation pairs a prior venue row with the terms that call produced,
// if any survived extraction.
type PastNegotiation struct {
	Venue     venues.Venue                `json:"venue"`
	AttemptID string                      `json:"attempt_id,omitempty"`
	Outcome   *outreach.Outcome           `json:"outcome,omitempty"`
	Result    *outreach.NegotiationResult `json:"result,omitempty"`
	EndedAt   *time.Time                  `json:"ended_at,omitempty"`
}
