package venues

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PostgresRepo persists venues via database/sql (pgx stdlib driver).
// Amenities are stored as a JSONB array.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const venueColumns = `
id, event_id, name, location, capacity, pricing_min, pricing_max,
amenities, url, contact_phone, google_place_id, status, created_at, updated_at
`

func (r *PostgresRepo) Create(ctx context.Context, v Venue) error {
	return insertVenue(ctx, r.db, v)
}

// dbExecutor lets inserts run on the pool or inside a transaction.
type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertTx writes a venue inside an existing transaction (event intake).
func InsertTx(ctx context.Context, tx *sql.Tx, v Venue) error {
	return insertVenue(ctx, tx, v)
}

func insertVenue(ctx context.Context, ex dbExecutor, v Venue) error {
	amenities, err := json.Marshal(v.Amenities)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO venues (
    id, event_id, name, location, capacity, pricing_min, pricing_max,
    amenities, url, contact_phone, google_place_id, status, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
`
	createdAt := v.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = ex.ExecContext(ctx, q,
		v.ID, v.EventID, v.Name, nullableStr(v.Location),
		v.Capacity, v.PricingMin, v.PricingMax,
		amenities, nullableStr(v.URL), nullableStr(v.ContactPhone), nullableStr(v.GooglePlaceID),
		string(v.Status), createdAt,
	)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Venue, error) {
	const q = `SELECT ` + venueColumns + ` FROM venues WHERE id = $1`
	return scanVenue(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) ListByEvent(ctx context.Context, eventID string) ([]Venue, error) {
	const q = `SELECT ` + venueColumns + ` FROM venues WHERE event_id = $1 ORDER BY created_at`
	return r.queryVenues(ctx, q, eventID)
}

func (r *PostgresRepo) ListByEventAndStatus(ctx context.Context, eventID string, status Status) ([]Venue, error) {
	const q = `SELECT ` + venueColumns + ` FROM venues WHERE event_id = $1 AND status = $2 ORDER BY created_at`
	return r.queryVenues(ctx, q, eventID, string(status))
}

func (r *PostgresRepo) ListByPlaceID(ctx context.Context, googlePlaceID string) ([]Venue, error) {
	if googlePlaceID == "" {
		return nil, nil
	}
	const q = `SELECT ` + venueColumns + ` FROM venues WHERE google_place_id = $1 ORDER BY created_at`
	return r.queryVenues(ctx, q, googlePlaceID)
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id string, status Status) error {
	const q = `UPDATE venues SET status = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, string(status))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) queryVenues(ctx context.Context, q string, args ...any) ([]Venue, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVenue(row rowScanner) (Venue, error) {
	var (
		v         Venue
		location  sql.NullString
		amenities []byte
		url       sql.NullString
		phone     sql.NullString
		placeID   sql.NullString
		status    string
	)
	err := row.Scan(
		&v.ID, &v.EventID, &v.Name, &location, &v.Capacity, &v.PricingMin, &v.PricingMax,
		&amenities, &url, &phone, &placeID, &status, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Venue{}, ErrNotFound
		}
		return Venue{}, err
	}
	v.Location = location.String
	if len(amenities) > 0 {
		_ = json.Unmarshal(amenities, &v.Amenities)
	}
	v.URL = url.String
	v.ContactPhone = phone.String
	v.GooglePlaceID = placeID.String
	v.Status = Status(status)
	return v, nil
}

func nullableStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
