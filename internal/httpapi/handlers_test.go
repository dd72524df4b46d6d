package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"venue-outreach/internal/events"
	"venue-outreach/internal/outreach"
	"venue-outreach/internal/venues"

	"github.com/gin-gonic/gin"
)

func newTestRouter(h Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/v1/events", h.CreateEvent)
	r.POST("/v1/events/:event_id/outreach", h.ScheduleOutreach)
	r.GET("/v1/attempts/:attempt_id", h.GetAttempt)
	return r
}

func TestCreateEvent_PersistsEventAndVenues(t *testing.T) {
	eventRepo := events.NewMemoryRepo()
	venueRepo := venues.NewMemoryRepo()
	h := Handlers{Intake: &events.MemoryIntake{Events: eventRepo, Venues: venueRepo}}
	r := newTestRouter(h)

	body := `{
		"venue_type": "banquet hall",
		"location_city": "San Jose",
		"start_date": "2026-10-01",
		"end_date": "2026-10-02",
		"requester_email": "requester@example.com",
		"venues": [
			{"name": "Grand Hall", "contact_phone": "+15550001", "google_place_id": "place-1"},
			{"name": "No Phone Bistro"}
		]
	}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(body))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		EventID string `json:"event_id"`
		Venues  int    `json:"venues"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Venues != 2 {
		t.Fatalf("venues = %d, want 2", resp.Venues)
	}

	ev, err := eventRepo.Get(context.Background(), resp.EventID)
	if err != nil {
		t.Fatalf("event not persisted: %v", err)
	}
	if ev.VenueType != "banquet hall" {
		t.Fatalf("venue type = %q", ev.VenueType)
	}

	vs, err := venueRepo.ListByEvent(context.Background(), resp.EventID)
	if err != nil || len(vs) != 2 {
		t.Fatalf("venues persisted = %d (%v), want 2", len(vs), err)
	}
	for _, v := range vs {
		if v.Status != venues.StatusDiscovered {
			t.Fatalf("venue %s status = %s, want discovered", v.ID, v.Status)
		}
	}
}

func TestCreateEvent_RejectsMissingFields(t *testing.T) {
	h := Handlers{Intake: &events.MemoryIntake{Events: events.NewMemoryRepo(), Venues: venues.NewMemoryRepo()}}
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(`{"location_city":"San Jose"}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestScheduleOutreach_UnknownEvent(t *testing.T) {
	h := Handlers{
		Events:    events.NewMemoryRepo(),
		Scheduler: &outreach.Scheduler{},
	}
	r := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/events/missing/outreach", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestGetAttempt_IncludesResultWhenPresent(t *testing.T) {
	store := outreach.NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	attempt := outreach.CallAttempt{
		ID:             "a1",
		VenueID:        "v1",
		EventID:        "ev",
		ExternalRef:    "ref-1",
		ContactChannel: "+15550001",
		State:          outreach.StateDispatched,
		CreatedAt:      now,
	}
	if err := store.Create(ctx, attempt); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.TransitionTerminal(ctx, "a1", outreach.StateCompleted, now, &outreach.Outcome{Reason: "ended"}); err != nil {
		t.Fatalf("TransitionTerminal: %v", err)
	}
	quote := int64(4200)
	if err := store.AttachResult(ctx, outreach.NegotiationResult{
		AttemptID:  "a1",
		VenueID:    "v1",
		EventID:    "ev",
		FinalQuote: &quote,
	}); err != nil {
		t.Fatalf("AttachResult: %v", err)
	}

	r := newTestRouter(Handlers{Store: store})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/attempts/a1", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Attempt outreach.CallAttempt        `json:"attempt"`
		Result  *outreach.NegotiationResult `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Attempt.State != outreach.StateCompleted {
		t.Fatalf("attempt state = %s", resp.Attempt.State)
	}
	if resp.Result == nil || resp.Result.FinalQuote == nil || *resp.Result.FinalQuote != 4200 {
		t.Fatalf("result not attached: %+v", resp.Result)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/attempts/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown attempt status = %d, want 404", w.Code)
	}
}
