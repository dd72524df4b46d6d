package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit records.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, rec Record) error
}

// Service records operational anomalies for operator follow-up: ambiguous
// correlations, forced timeouts, failed finalization side effects.
//
// Callers should treat audit logging as best-effort and never fail a
// lifecycle operation because audit did.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidRecord = errors.New("audit: invalid record")

func (s *Service) Append(ctx context.Context, rec Record) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if rec.Type == "" {
		return ErrInvalidRecord
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, rec)
}

// CorrelationFailure records a signal that could not be resolved to exactly
// one open attempt. The raw payload goes into metadata for manual replay.
func (s *Service) CorrelationFailure(ctx context.Context, recType RecordType, externalRef, channel, message, rawPayload string) error {
	return s.Append(ctx, Record{
		Type:        recType,
		ExternalRef: externalRef,
		Channel:     channel,
		Message:     message,
		Metadata:    rawPayload,
	})
}

// WatcherTimeout records a deadline-forced terminal transition.
func (s *Service) WatcherTimeout(ctx context.Context, eventID, venueID, attemptID, externalRef string) error {
	return s.Append(ctx, Record{
		Type:        RecordTypeWatcherTimeout,
		EventID:     eventID,
		VenueID:     venueID,
		AttemptID:   attemptID,
		ExternalRef: externalRef,
		Message:     "no terminal signal before deadline; forced timed_out",
	})
}

// FinalizeError records an extraction or notification failure. The attempt
// stays finalized; this trail is the only retry surface (manual).
func (s *Service) FinalizeError(ctx context.Context, eventID, venueID, attemptID, message string) error {
	return s.Append(ctx, Record{
		Type:      RecordTypeFinalizeError,
		EventID:   eventID,
		VenueID:   venueID,
		AttemptID: attemptID,
		Message:   message,
	})
}

// DispatchFailure records a platform rejection at call creation.
func (s *Service) DispatchFailure(ctx context.Context, eventID, venueID, attemptID, message string) error {
	return s.Append(ctx, Record{
		Type:      RecordTypeDispatchFailure,
		EventID:   eventID,
		VenueID:   venueID,
		AttemptID: attemptID,
		Message:   message,
	})
}
