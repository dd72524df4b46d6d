package events

import "time"

// Event is a planning request captured by the intake flow. Immutable once
// created; venues and call attempts hang off it.
type Event struct {
	ID              string `json:"id" db:"id"`
	RequesterUserID string `json:"user_id" db:"user_id"`

	VenueType     string `json:"venue_type" db:"venue_type"`
	LocationCity  string `json:"location_city" db:"location_city"`
	LocationState string `json:"location_state" db:"location_state"`

	// Dates are calendar days, "2006-01-02".
	StartDate string `json:"start_date" db:"start_date"`
	EndDate   string `json:"end_date" db:"end_date"`

	NumberOfAttendees int `json:"number_of_attendees" db:"number_of_attendees"`

	// Budget bounds in whole USD.
	BudgetMin int64 `json:"budget_min" db:"budget_min"`
	BudgetMax int64 `json:"budget_max" db:"budget_max"`

	RequiredAmenities []string `json:"required_amenities,omitempty" db:"required_amenities"`
	AdditionalDetails string   `json:"additional_details,omitempty" db:"additional_details"`

	// RequesterEmail receives the outcome notification.
	RequesterEmail string `json:"requester_email,omitempty" db:"requester_email"`
	RequesterPhone string `json:"requester_phone,omitempty" db:"requester_phone"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
