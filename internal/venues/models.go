package venues

import "time"

// Venue is a discovered outreach target belonging to exactly one planning
// event.
//
// Status is the durable summary the rest of the system reads; the owning
// attempt history in internal/outreach carries the per-call detail.
type Venue struct {
	ID      string `json:"id" db:"id"`
	EventID string `json:"event_id" db:"event_id"`

	Name     string `json:"name" db:"name"`
	Location string `json:"location,omitempty" db:"location"`

	Capacity   *int   `json:"capacity,omitempty" db:"capacity"`
	PricingMin *int64 `json:"pricing_min,omitempty" db:"pricing_min"`
	PricingMax *int64 `json:"pricing_max,omitempty" db:"pricing_max"`

	Amenities []string `json:"amenities,omitempty" db:"amenities"`
	URL       string   `json:"url,omitempty" db:"url"`

	// ContactPhone is E.164 ("+14083388934"). Empty means the venue is not
	// reachable by phone and outreach skips it.
	ContactPhone string `json:"contact_phone,omitempty" db:"contact_phone"`

	// GooglePlaceID links venue rows that are physically the same place
	// across events, used for past-negotiation lookups.
	GooglePlaceID string `json:"google_place_id,omitempty" db:"google_place_id"`

	Status Status `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusDiscovered     Status = "discovered"
	StatusContactPending Status = "contact_pending"
	StatusNegotiating    Status = "negotiating"
	StatusNegotiated     Status = "negotiated"
	StatusFailed         Status = "failed"
	StatusUnreachable    Status = "unreachable"
)
