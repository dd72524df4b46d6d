package outreach

import (
	"context"

	"venue-outreach/internal/events"
	"venue-outreach/internal/venues"
)

// Extractor turns a call transcript into structured negotiation terms.
// Implemented by internal/extraction's HTTP adapter.
//
// Rules:
// - Never invoked for attempts without a transcript.
// - May legitimately return a result with all-nil terms when nothing was
//   discussed; that is not an error.
// - Implementations validate the collaborator's response at the boundary
//   instead of trusting dynamic payloads.
type Extractor interface {
	Extract(ctx context.Context, req ExtractionRequest) (NegotiationResult, error)
}

// ExtractionRequest carries the transcript plus the event/venue context the
// collaborator needs to interpret quotes and availability.
type ExtractionRequest struct {
	AttemptID  string `json:"attempt_id"`
	Transcript string `json:"transcript"`

	Event events.Event `json:"event"`
	Venue venues.Venue `json:"venue"`
}
