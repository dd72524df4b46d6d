package outreach

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"venue-outreach/internal/audit"
	"venue-outreach/internal/events"
	"venue-outreach/internal/notify"
	"venue-outreach/internal/venues"
)

// ---- fakes ----

type fakeProvider struct {
	mu sync.Mutex

	createErrFor map[string]error // keyed by contact number
	created      []CreateCallRequest
	nextRef      int

	statuses  map[string]CallStatusResult
	statusErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		createErrFor: map[string]error{},
		statuses:     map[string]CallStatusResult{},
	}
}

func (p *fakeProvider) Name() string                          { return "fake" }
func (p *fakeProvider) HealthCheck(ctx context.Context) error { return nil }

func (p *fakeProvider) CreateCall(ctx context.Context, req CreateCallRequest) (CreateCallResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.createErrFor[req.ContactNumber]; err != nil {
		return CreateCallResult{}, err
	}
	p.created = append(p.created, req)
	p.nextRef++
	return CreateCallResult{ExternalRef: fmt.Sprintf("call-%d", p.nextRef)}, nil
}

func (p *fakeProvider) GetCallStatus(ctx context.Context, externalRef string) (CallStatusResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.statusErr != nil {
		return CallStatusResult{}, p.statusErr
	}
	st, ok := p.statuses[externalRef]
	if !ok {
		return CallStatusResult{}, errors.New("fake: unknown call")
	}
	return st, nil
}

type fakeExtractor struct {
	mu     sync.Mutex
	calls  int
	result NegotiationResult
	err    error
}

func (e *fakeExtractor) Extract(ctx context.Context, req ExtractionRequest) (NegotiationResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return NegotiationResult{}, e.err
	}
	return e.result, nil
}

func (e *fakeExtractor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (n *fakeNotifier) Notify(ctx context.Context, msg notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *fakeNotifier) sentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// ---- fixture ----

type fixture struct {
	store     *MemoryStore
	venueRepo *venues.MemoryRepo
	eventRepo *events.MemoryRepo
	provider  *fakeProvider
	extractor *fakeExtractor
	notifier  *fakeNotifier
	auditRepo *audit.MemoryRepo

	finalizer  *Finalizer
	correlator *Correlator
	scheduler  *Scheduler
	watcher    *Watcher
}

func newFixture() *fixture {
	f := &fixture{
		store:     NewMemoryStore(),
		venueRepo: venues.NewMemoryRepo(),
		eventRepo: events.NewMemoryRepo(),
		provider:  newFakeProvider(),
		extractor: &fakeExtractor{},
		notifier:  &fakeNotifier{},
		auditRepo: audit.NewMemoryRepo(),
	}
	auditor := audit.NewService(f.auditRepo)
	f.finalizer = NewFinalizer(f.store, f.venueRepo, f.eventRepo, f.extractor, f.notifier, auditor)
	f.correlator = NewCorrelator(f.store, f.finalizer, auditor)
	f.scheduler = NewScheduler(f.store, f.venueRepo, f.provider, f.finalizer, nil, auditor, SchedulerConfig{Concurrency: 2})
	f.watcher = NewWatcher(f.store, f.provider, f.correlator, auditor, WatcherConfig{
		Deadline: 10 * time.Minute,
		Interval: time.Second,
	})
	return f
}

func (f *fixture) addEvent(id string) events.Event {
	ev := events.Event{
		ID:              id,
		RequesterUserID: "user-1",
		VenueType:       "banquet hall",
		LocationCity:    "San Jose",
		StartDate:       "2026-10-01",
		EndDate:         "2026-10-02",
		RequesterEmail:  "requester@example.com",
	}
	_ = f.eventRepo.Create(context.Background(), ev)
	return ev
}

func (f *fixture) addVenue(id, eventID, phone string) venues.Venue {
	v := venues.Venue{
		ID:           id,
		EventID:      eventID,
		Name:         "Venue " + id,
		ContactPhone: phone,
		Status:       venues.StatusDiscovered,
	}
	_ = f.venueRepo.Create(context.Background(), v)
	return v
}

func (f *fixture) addAttempt(id, venueID, eventID, ref, channel string, createdAt time.Time) CallAttempt {
	a := CallAttempt{
		ID:             id,
		VenueID:        venueID,
		EventID:        eventID,
		ExternalRef:    ref,
		ContactChannel: channel,
		State:          StateDispatched,
		CreatedAt:      createdAt,
	}
	if ref == "" {
		a.State = StatePendingDispatch
	}
	if err := f.store.Create(context.Background(), a); err != nil {
		panic(err)
	}
	return a
}

func int64p(v int64) *int64 { return &v }
