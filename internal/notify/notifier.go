package notify

import "context"

// Notifier delivers the single downstream notification for a finalized
// attempt. At-most-once is enforced by the finalizer, not here.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Notification summarizes a finalized attempt for the requester.
type Notification struct {
	EventID   string `json:"event_id"`
	VenueID   string `json:"venue_id"`
	AttemptID string `json:"attempt_id"`

	// Disposition: "negotiated", "failed", "unreachable".
	Disposition string `json:"disposition"`

	// Summary is a short human-readable outcome line ("final quote $4200",
	// "no answer", "no response before deadline").
	Summary string `json:"summary"`

	// RecipientEmail is the requester contact from the owning event.
	RecipientEmail string `json:"recipient_email,omitempty"`
}
