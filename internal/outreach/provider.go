package outreach

import (
	"context"
	"strings"
)

// CallProvider is the voice-platform surface the orchestrator consumes.
// Adapters (internal/voice) implement it against a concrete platform API.
//
// Rules:
// - No platform SDK/API calls outside adapters.
// - Raw payloads travel as JSON strings for audit.
// - The platform is at-least-once: the same call outcome may be delivered
//   via webhook AND surface again via GetCallStatus. Callers absorb
//   duplicates.
type CallProvider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	// CreateCall asks the platform to start an outbound negotiation call.
	// Synchronous failure means the call never existed.
	CreateCall(ctx context.Context, req CreateCallRequest) (CreateCallResult, error)

	// GetCallStatus polls the platform for the current call state.
	GetCallStatus(ctx context.Context, externalRef string) (CallStatusResult, error)
}

type CreateCallRequest struct {
	// ContactNumber is the venue's phone (E.164).
	ContactNumber string `json:"contact_number"`
	ContactName   string `json:"contact_name"`

	// EventID/VenueID/AttemptID are passed to the agent as template
	// variables so webhook tool calls can reference them.
	EventID   string `json:"event_id"`
	VenueID   string `json:"venue_id"`
	AttemptID string `json:"attempt_id"`
}

type CreateCallResult struct {
	// ExternalRef is the platform call id used for all later correlation.
	ExternalRef string `json:"external_ref"`
}

type CallStatusResult struct {
	ExternalRef string `json:"external_ref"`

	// Status: "queued", "ringing", "in-progress", "ended".
	Status string `json:"status"`
	// EndedReason is populated when Status is "ended": "customer-ended-call",
	// "no-answer", "busy", "failed", ...
	EndedReason string `json:"ended_reason,omitempty"`

	Transcript      string `json:"transcript,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`

	Raw string `json:"raw,omitempty"`
}

// Terminal reports whether the platform will emit no further transitions
// for this call.
func (r CallStatusResult) Terminal() bool {
	return r.Status == "ended"
}

// Signal converts a poll result to the same shape the webhook path
// produces, so both producers share one transition path.
func (r CallStatusResult) Signal() Signal {
	sig := Signal{
		ExternalRef:     r.ExternalRef,
		Transcript:      r.Transcript,
		DurationSeconds: r.DurationSeconds,
		Raw:             r.Raw,
	}
	switch r.Status {
	case "ended":
		sig.Status = MapEndedReason(r.EndedReason)
	case "in-progress", "ringing":
		sig.Status = SignalStatusInProgress
	default:
		sig.Status = r.Status
	}
	return sig
}

// MapEndedReason folds the platform's ended reasons into the terminal
// signal statuses.
func MapEndedReason(endedReason string) string {
	reason := strings.ToLower(strings.TrimSpace(endedReason))
	switch {
	case strings.Contains(reason, "no-answer"), strings.Contains(reason, "did-not-answer"):
		return SignalStatusNoAnswer
	case strings.Contains(reason, "busy"):
		return SignalStatusBusy
	case reason == "", strings.Contains(reason, "ended-call"), strings.Contains(reason, "hangup"),
		strings.Contains(reason, "ended"), strings.Contains(reason, "completed"):
		return SignalStatusEnded
	default:
		return SignalStatusFailed
	}
}
