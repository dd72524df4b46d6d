package audit

import "time"

// Record is an immutable, append-only operator audit entry.
//
// Invariants:
// - Records are never updated or deleted.
// - Audit is best-effort; critical flows must not block on audit failures.
//
// Storage recommendation (Postgres):
// - Table audit_records with an INSERT-only policy.
// - Optional: partition by time for retention.

type Record struct {
	ID string `json:"id" db:"id"`

	// Type indicates the operational category of the record.
	Type RecordType `json:"type" db:"type"`

	// Target identifiers (optional, depending on the record type).
	EventID     string `json:"event_id,omitempty" db:"event_id"`
	VenueID     string `json:"venue_id,omitempty" db:"venue_id"`
	AttemptID   string `json:"attempt_id,omitempty" db:"attempt_id"`
	ExternalRef string `json:"external_ref,omitempty" db:"external_ref"`
	Channel     string `json:"channel,omitempty" db:"channel"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details (raw webhook bodies etc).
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type RecordType string

const (
	// RecordTypeCorrelationNoMatch: an inbound signal resolved to no open attempt.
	RecordTypeCorrelationNoMatch RecordType = "correlation_no_match"
	// RecordTypeCorrelationAmbiguous: channel fallback matched more than one
	// open attempt; never guessed, left for manual reconciliation.
	RecordTypeCorrelationAmbiguous RecordType = "correlation_ambiguous"
	// RecordTypeWatcherTimeout: the watcher forced timed_out on an attempt.
	RecordTypeWatcherTimeout RecordType = "watcher_timeout"
	// RecordTypeFinalizeError: extraction or notification failed after the
	// finalized flag was acquired.
	RecordTypeFinalizeError RecordType = "finalize_error"
	// RecordTypeDispatchFailure: the platform rejected call creation.
	RecordTypeDispatchFailure RecordType = "dispatch_failure"
)
