package reporting

import (
	"context"
	"errors"
	"sort"

	"venue-outreach/internal/outreach"
	"venue-outreach/internal/venues"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Service aggregates read-only views over the attempt store and venue
// repository. It never mutates state; summaries are computed per request.
type Service struct {
	store  outreach.Store
	venues venues.Repository
}

func NewService(store outreach.Store, venueRepo venues.Repository) *Service {
	return &Service{store: store, venues: venueRepo}
}

func (s *Service) OutreachSummary(ctx context.Context, req OutreachSummaryRequest) (OutreachSummary, error) {
	if req.EventID == "" {
		return OutreachSummary{}, ErrInvalidRequest
	}
	if s.store == nil {
		return OutreachSummary{}, errors.New("reporting: store not configured")
	}

	attempts, err := s.store.ListByEvent(ctx, req.EventID)
	if err != nil {
		return OutreachSummary{}, err
	}

	out := OutreachSummary{EventID: req.EventID}
	for _, a := range attempts {
		out.TotalAttempts++
		if !a.State.Terminal() {
			out.ActiveAttempts++
			continue
		}
		switch a.State {
		case outreach.StateCompleted:
			out.CompletedCalls++
		case outreach.StateFailed:
			out.FailedCalls++
		case outreach.StateTimedOut:
			// kept separate from failed: "never heard back" is an
			// operational signal, not a venue decision.
			out.TimedOutCalls++
		}
		if a.Finalized {
			out.FinalizedCalls++
		}
		if a.FinalizeError != "" {
			out.FinalizeErrors++
		}
		if a.Outcome != nil {
			out.TotalDurationSeconds += a.Outcome.DurationSeconds
		}
		if r, ok, err := s.store.GetResult(ctx, a.ID); err == nil && ok && r.Usable() {
			out.UsableResults++
		}
	}
	terminal := out.CompletedCalls + out.FailedCalls + out.TimedOutCalls
	if terminal > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / terminal
	}
	return out, nil
}

// PastNegotiations returns the negotiation history for a physical venue,
// newest call first. Venues from different events share a Google place id.
func (s *Service) PastNegotiations(ctx context.Context, req PastNegotiationsRequest) ([]PastNegotiation, error) {
	if req.GooglePlaceID == "" {
		return nil, ErrInvalidRequest
	}
	if s.store == nil || s.venues == nil {
		return nil, errors.New("reporting: store not configured")
	}

	rows, err := s.venues.ListByPlaceID(ctx, req.GooglePlaceID)
	if err != nil {
		return nil, err
	}

	out := make([]PastNegotiation, 0, len(rows))
	for _, v := range rows {
		entry := PastNegotiation{Venue: v}

		attempts, err := s.store.ListByVenue(ctx, v.ID)
		if err != nil {
			return nil, err
		}
		// Latest terminal attempt carries the venue's answer for that event.
		for _, a := range attempts {
			if !a.State.Terminal() {
				continue
			}
			if entry.EndedAt == nil || (a.TerminalAt != nil && a.TerminalAt.After(*entry.EndedAt)) {
				entry.AttemptID = a.ID
				entry.Outcome = a.Outcome
				entry.EndedAt = a.TerminalAt
			}
		}
		if entry.AttemptID != "" {
			if r, ok, err := s.store.GetResult(ctx, entry.AttemptID); err == nil && ok {
				res := r
				entry.Result = &res
			}
		}
		out = append(out, entry)
	}

	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].EndedAt, out[j].EndedAt
		switch {
		case ti == nil:
			return false
		case tj == nil:
			return true
		default:
			return ti.After(*tj)
		}
	})
	return out, nil
}
