package outreach

import (
	"context"
	"sync"
	"time"

	"venue-outreach/internal/audit"
	"venue-outreach/pkg/logger"
)

// Watcher is the poll fallback for attempts whose webhook never arrives.
//
// On a fixed interval it scans non-terminal attempts older than the
// dispatch deadline and asks the platform for their current status. A
// terminal poll result is applied through the correlator's CAS path, so a
// racing webhook and a racing poll can never both terminalize the same
// attempt. Attempts the platform cannot account for are forced to
// timed_out; a late webhook for them is discarded as a duplicate.
type Watcher struct {
	store      Store
	provider   CallProvider
	correlator *Correlator
	auditor    *audit.Service

	deadline    time.Duration
	interval    time.Duration
	concurrency int
	pollTimeout time.Duration

	clock func() time.Time
	wg    sync.WaitGroup
}

type WatcherConfig struct {
	// Deadline is how long an attempt may stay non-terminal before the
	// watcher intervenes, measured from creation.
	Deadline time.Duration
	// Interval between scans.
	Interval time.Duration
	// Concurrency bounds the per-tick status poll pool.
	Concurrency int
	// PollTimeout bounds a single status query.
	PollTimeout time.Duration
}

func NewWatcher(store Store, provider CallProvider, correlator *Correlator, auditor *audit.Service, cfg WatcherConfig) *Watcher {
	if cfg.Deadline <= 0 {
		cfg.Deadline = 10 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 15 * time.Second
	}
	return &Watcher{
		store:       store,
		provider:    provider,
		correlator:  correlator,
		auditor:     auditor,
		deadline:    cfg.Deadline,
		interval:    cfg.Interval,
		concurrency: cfg.Concurrency,
		pollTimeout: cfg.PollTimeout,
		clock:       time.Now,
	}
}

// Start runs the tick loop until ctx is cancelled. It returns immediately;
// use Wait during shutdown to let an in-flight tick drain.
func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.Tick(ctx)
			}
		}
	}()
}

func (w *Watcher) Wait() { w.wg.Wait() }

// TickResult summarizes one scan, mostly for tests and logs.
type TickResult struct {
	Scanned  int
	Applied  int
	Retained int
	TimedOut int
}

// Tick scans overdue attempts once. Exported so tests can drive the watcher
// without the ticker.
func (w *Watcher) Tick(ctx context.Context) TickResult {
	log := logger.From(ctx)

	cutoff := w.clock().UTC().Add(-w.deadline)
	overdue, err := w.store.ListOverdue(ctx, cutoff)
	if err != nil {
		log.Error("watcher scan failed", "err", err)
		return TickResult{}
	}
	if len(overdue) == 0 {
		return TickResult{}
	}

	var (
		mu  sync.Mutex
		res TickResult
		wg  sync.WaitGroup
	)
	res.Scanned = len(overdue)

	sem := make(chan struct{}, w.concurrency)
	for _, attempt := range overdue {
		wg.Add(1)
		go func(a CallAttempt) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcome := w.check(ctx, a)
			mu.Lock()
			switch outcome {
			case checkApplied:
				res.Applied++
			case checkRetained:
				res.Retained++
			case checkTimedOut:
				res.TimedOut++
			}
			mu.Unlock()
		}(attempt)
	}
	wg.Wait()

	if res.Applied+res.TimedOut > 0 {
		log.Info("watcher tick", "scanned", res.Scanned, "applied", res.Applied, "timed_out", res.TimedOut, "retained", res.Retained)
	}
	return res
}

type checkOutcome int

const (
	checkApplied checkOutcome = iota
	checkRetained
	checkTimedOut
	checkSkipped
)

func (w *Watcher) check(ctx context.Context, attempt CallAttempt) checkOutcome {
	log := logger.From(ctx).With("attempt_id", attempt.ID)

	// Never dispatched and past deadline: nothing to poll, force timeout.
	if attempt.ExternalRef == "" {
		return w.forceTimeout(ctx, attempt)
	}

	pollCtx, cancel := context.WithTimeout(ctx, w.pollTimeout)
	status, err := w.provider.GetCallStatus(pollCtx, attempt.ExternalRef)
	cancel()
	if err != nil {
		// The poll itself got no answer within the deadline window.
		log.Warn("status poll failed, forcing timeout", "err", err)
		return w.forceTimeout(ctx, attempt)
	}

	if !status.Terminal() {
		// Platform still reports the call as live; retain and re-check on
		// the next tick.
		return checkRetained
	}

	out, err := w.correlator.Apply(ctx, attempt.ID, status.Signal())
	if err != nil {
		log.Error("apply poll result failed", "err", err)
		return checkSkipped
	}
	if out.Duplicate {
		return checkRetained
	}
	return checkApplied
}

func (w *Watcher) forceTimeout(ctx context.Context, attempt CallAttempt) checkOutcome {
	won, err := w.store.TransitionTerminal(ctx, attempt.ID, StateTimedOut, w.clock().UTC(), &Outcome{Reason: ReasonWatcherDeadline})
	if err != nil {
		logger.From(ctx).Error("force timeout failed", "attempt_id", attempt.ID, "err", err)
		return checkSkipped
	}
	if !won {
		// A webhook beat us to it between the scan and this write.
		return checkRetained
	}

	if w.auditor != nil {
		_ = w.auditor.WatcherTimeout(ctx, attempt.EventID, attempt.VenueID, attempt.ID, attempt.ExternalRef)
	}
	if err := w.correlator.finalizer.Finalize(ctx, attempt.ID); err != nil {
		logger.From(ctx).Error("finalize after timeout failed", "attempt_id", attempt.ID, "err", err)
	}
	return checkTimedOut
}
