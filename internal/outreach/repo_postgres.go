package outreach

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PostgresStore persists attempts in Postgres via database/sql (pgx stdlib
// driver).
//
// NOTE: This store assumes the following tables exist:
// - call_attempts
// - negotiation_results
//
// And a partial unique index enforcing the single-active-attempt invariant
// even across orchestrator instances:
//
//	CREATE UNIQUE INDEX call_attempts_one_active_per_venue
//	ON call_attempts (venue_id)
//	WHERE state IN ('pending_dispatch', 'dispatched', 'in_progress');
//
// First-terminal-write-wins is a conditional UPDATE on state, not an
// application lock, so it holds with multiple processes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

const attemptColumns = `
id, venue_id, event_id, external_ref, contact_channel, state,
created_at, terminal_at, finalized, outcome, finalize_error
`

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

func (s *PostgresStore) Create(ctx context.Context, a CallAttempt) error {
	const q = `
INSERT INTO call_attempts (id, venue_id, event_id, external_ref, contact_channel, state, created_at, finalized)
VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)
`
	_, err := s.db.ExecContext(ctx, q, a.ID, a.VenueID, a.EventID, nullable(a.ExternalRef), a.ContactChannel, string(a.State), a.CreatedAt)
	if err != nil {
		if sqlState(err) == pgUniqueViolation {
			return ErrAttemptActive
		}
		return err
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (CallAttempt, error) {
	const q = `SELECT ` + attemptColumns + ` FROM call_attempts WHERE id = $1`
	return scanAttempt(s.db.QueryRowContext(ctx, q, id))
}

func (s *PostgresStore) MarkDispatched(ctx context.Context, id, externalRef string) error {
	// external_ref is written only when absent; once assigned it never changes.
	const q = `
UPDATE call_attempts
SET state = CASE WHEN state = 'pending_dispatch' THEN 'dispatched' ELSE state END,
    external_ref = COALESCE(external_ref, $2)
WHERE id = $1
`
	res, err := s.db.ExecContext(ctx, q, id, nullable(externalRef))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) MarkInProgress(ctx context.Context, id string) (bool, error) {
	const q = `
UPDATE call_attempts
SET state = 'in_progress'
WHERE id = $1 AND state = 'dispatched'
`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *PostgresStore) TransitionTerminal(ctx context.Context, id string, to AttemptState, at time.Time, outcome *Outcome) (bool, error) {
	var payload []byte
	if outcome != nil {
		b, err := json.Marshal(outcome)
		if err != nil {
			return false, err
		}
		payload = b
	}

	const q = `
UPDATE call_attempts
SET state = $2, terminal_at = $3, outcome = $4
WHERE id = $1 AND state IN ('pending_dispatch', 'dispatched', 'in_progress')
`
	res, err := s.db.ExecContext(ctx, q, id, string(to), at, payload)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *PostgresStore) AcquireFinalize(ctx context.Context, id string) (bool, error) {
	const q = `
UPDATE call_attempts
SET finalized = TRUE
WHERE id = $1 AND finalized = FALSE
  AND state IN ('completed', 'failed', 'timed_out')
`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *PostgresStore) RecordFinalizeError(ctx context.Context, id, msg string) error {
	const q = `UPDATE call_attempts SET finalize_error = $2 WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, id, msg)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) AttachResult(ctx context.Context, r NegotiationResult) error {
	const q = `
INSERT INTO negotiation_results (
    attempt_id, venue_id, event_id,
    initial_quote, initial_quote_breakdown,
    counteroffer, counteroffer_breakdown, counteroffer_reasoning,
    final_quote, final_quote_breakdown,
    availability, flexibility, restrictions, notes, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (attempt_id) DO NOTHING
`
	_, err := s.db.ExecContext(ctx, q,
		r.AttemptID, r.VenueID, r.EventID,
		r.InitialQuote, nullable(r.InitialQuoteBreakdown),
		r.Counteroffer, nullable(r.CounterofferBreakdown), nullable(r.CounterofferReasoning),
		r.FinalQuote, nullable(r.FinalQuoteBreakdown),
		nullable(r.Availability), nullable(r.Flexibility), nullable(r.Restrictions), nullable(r.Notes),
		r.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetResult(ctx context.Context, attemptID string) (NegotiationResult, bool, error) {
	const q = `
SELECT attempt_id, venue_id, event_id,
       initial_quote, initial_quote_breakdown,
       counteroffer, counteroffer_breakdown, counteroffer_reasoning,
       final_quote, final_quote_breakdown,
       availability, flexibility, restrictions, notes, created_at
FROM negotiation_results
WHERE attempt_id = $1
`
	var (
		r NegotiationResult

		initialBreakdown, coBreakdown, coReasoning  sql.NullString
		finalBreakdown, avail, flex, restr, notes   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, q, attemptID).Scan(
		&r.AttemptID, &r.VenueID, &r.EventID,
		&r.InitialQuote, &initialBreakdown,
		&r.Counteroffer, &coBreakdown, &coReasoning,
		&r.FinalQuote, &finalBreakdown,
		&avail, &flex, &restr, &notes, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NegotiationResult{}, false, nil
		}
		return NegotiationResult{}, false, err
	}
	r.InitialQuoteBreakdown = initialBreakdown.String
	r.CounterofferBreakdown = coBreakdown.String
	r.CounterofferReasoning = coReasoning.String
	r.FinalQuoteBreakdown = finalBreakdown.String
	r.Availability = avail.String
	r.Flexibility = flex.String
	r.Restrictions = restr.String
	r.Notes = notes.String
	return r, true, nil
}

func (s *PostgresStore) FindByExternalRef(ctx context.Context, externalRef string) (CallAttempt, error) {
	if externalRef == "" {
		return CallAttempt{}, ErrNotFound
	}
	const q = `SELECT ` + attemptColumns + ` FROM call_attempts WHERE external_ref = $1`
	return scanAttempt(s.db.QueryRowContext(ctx, q, externalRef))
}

func (s *PostgresStore) FindActiveByChannel(ctx context.Context, channel string) ([]CallAttempt, error) {
	const q = `
SELECT ` + attemptColumns + `
FROM call_attempts
WHERE contact_channel = $1
  AND state IN ('pending_dispatch', 'dispatched', 'in_progress')
`
	return s.queryAttempts(ctx, q, channel)
}

func (s *PostgresStore) FindActiveByVenue(ctx context.Context, venueID string) (CallAttempt, bool, error) {
	const q = `
SELECT ` + attemptColumns + `
FROM call_attempts
WHERE venue_id = $1
  AND state IN ('pending_dispatch', 'dispatched', 'in_progress')
LIMIT 1
`
	a, err := scanAttempt(s.db.QueryRowContext(ctx, q, venueID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return CallAttempt{}, false, nil
		}
		return CallAttempt{}, false, err
	}
	return a, true, nil
}

func (s *PostgresStore) ListOverdue(ctx context.Context, cutoff time.Time) ([]CallAttempt, error) {
	const q = `
SELECT ` + attemptColumns + `
FROM call_attempts
WHERE state IN ('pending_dispatch', 'dispatched', 'in_progress')
  AND created_at < $1
`
	return s.queryAttempts(ctx, q, cutoff)
}

func (s *PostgresStore) ListByEvent(ctx context.Context, eventID string) ([]CallAttempt, error) {
	const q = `SELECT ` + attemptColumns + ` FROM call_attempts WHERE event_id = $1 ORDER BY created_at`
	return s.queryAttempts(ctx, q, eventID)
}

func (s *PostgresStore) ListByVenue(ctx context.Context, venueID string) ([]CallAttempt, error) {
	const q = `SELECT ` + attemptColumns + ` FROM call_attempts WHERE venue_id = $1 ORDER BY created_at`
	return s.queryAttempts(ctx, q, venueID)
}

func (s *PostgresStore) queryAttempts(ctx context.Context, q string, args ...any) ([]CallAttempt, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (CallAttempt, error) {
	var (
		a           CallAttempt
		externalRef sql.NullString
		state       string
		terminalAt  sql.NullTime
		outcome     []byte
		finalizeErr sql.NullString
	)
	err := row.Scan(
		&a.ID, &a.VenueID, &a.EventID, &externalRef, &a.ContactChannel, &state,
		&a.CreatedAt, &terminalAt, &a.Finalized, &outcome, &finalizeErr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallAttempt{}, ErrNotFound
		}
		return CallAttempt{}, err
	}
	a.ExternalRef = externalRef.String
	a.State = AttemptState(state)
	if terminalAt.Valid {
		t := terminalAt.Time
		a.TerminalAt = &t
	}
	if len(outcome) > 0 {
		var o Outcome
		if err := json.Unmarshal(outcome, &o); err == nil {
			a.Outcome = &o
		}
	}
	a.FinalizeError = finalizeErr.String
	return a, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// sqlState extracts the SQLSTATE from a pgx driver error without importing
// the driver here.
func sqlState(err error) string {
	var coder interface{ SQLState() string }
	if errors.As(err, &coder) {
		return coder.SQLState()
	}
	return ""
}
