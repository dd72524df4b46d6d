package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"venue-outreach/internal/venues"
	"venue-outreach/pkg/utils"
)

// PostgresRepo persists events via database/sql (pgx stdlib driver).
// Required amenities are stored as a JSONB array.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Create(ctx context.Context, e Event) error {
	return insertEvent(ctx, r.db, e)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Event, error) {
	const q = `
SELECT id, user_id, venue_type, location_city, location_state,
       start_date, end_date, number_of_attendees, budget_min, budget_max,
       required_amenities, additional_details, requester_email, requester_phone, created_at
FROM events
WHERE id = $1
`
	var (
		e         Event
		state     sql.NullString
		amenities []byte
		details   sql.NullString
		email     sql.NullString
		phone     sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&e.ID, &e.RequesterUserID, &e.VenueType, &e.LocationCity, &state,
		&e.StartDate, &e.EndDate, &e.NumberOfAttendees, &e.BudgetMin, &e.BudgetMax,
		&amenities, &details, &email, &phone, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Event{}, ErrNotFound
		}
		return Event{}, err
	}
	e.LocationState = state.String
	if len(amenities) > 0 {
		_ = json.Unmarshal(amenities, &e.RequiredAmenities)
	}
	e.AdditionalDetails = details.String
	e.RequesterEmail = email.String
	e.RequesterPhone = phone.String
	return e, nil
}

// CreateWithVenues writes the event and its venue rows in one transaction,
// satisfying the Intake contract.
func (r *PostgresRepo) CreateWithVenues(ctx context.Context, e Event, vs []venues.Venue) error {
	if e.ID == "" {
		return ErrInvalidEvent
	}
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := insertEvent(ctx, tx, e); err != nil {
			return err
		}
		for _, v := range vs {
			if err := venues.InsertTx(ctx, tx, v); err != nil {
				return err
			}
		}
		return nil
	})
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEvent(ctx context.Context, ex dbExecutor, e Event) error {
	amenities, err := json.Marshal(e.RequiredAmenities)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO events (
    id, user_id, venue_type, location_city, location_state,
    start_date, end_date, number_of_attendees, budget_min, budget_max,
    required_amenities, additional_details, requester_email, requester_phone, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
`
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = ex.ExecContext(ctx, q,
		e.ID, e.RequesterUserID, e.VenueType, e.LocationCity, nullableStr(e.LocationState),
		e.StartDate, e.EndDate, e.NumberOfAttendees, e.BudgetMin, e.BudgetMax,
		amenities, nullableStr(e.AdditionalDetails), nullableStr(e.RequesterEmail), nullableStr(e.RequesterPhone),
		createdAt,
	)
	return err
}

func nullableStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
