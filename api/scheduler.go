// scheduler.go - Periodic feed refresh
//
// PURPOSE:
//   Statuses depend on "today": an upcoming inspection turns overdue at
//   midnight without any row changing, so no change notification fires.
//   The scheduler rebuilds the feed on a cron schedule so the dashboard
//   snapshot follows the clock.
//
// DESIGN:
//   - robfig/cron with a standard 5-field spec (default "*/15 * * * *", "off" disables)
//   - Each run calls Feed.Reload with the feed's last filters
//   - A superseded run is not an error: a newer build already won
//   - Records the last run for /health and the dashboard
//
// USAGE:
//   scheduler, err := NewRefreshScheduler(feed, "*/15 * * * *", logger)
//   scheduler.Start()
//   // ... later
//   scheduler.Stop()
//
// SEE ALSO:
//   - property/feed.go: Generation-guarded rebuilds
//   - config/config.go: RefreshCron
package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/warp/property-engine/calendar"
	"github.com/warp/property-engine/property"
	"go.uber.org/zap"
)

// RefreshRun records one scheduled refresh.
type RefreshRun struct {
	StartedAt  time.Time
	Duration   time.Duration
	Generation uint64
	Events     int
	Err        error
}

// RefreshScheduler rebuilds a feed on a cron schedule.
type RefreshScheduler struct {
	feed    *property.Feed
	logger  *zap.Logger
	cron    *cron.Cron
	entry   cron.EntryID
	timeout time.Duration

	mu      sync.Mutex
	last    RefreshRun
	running bool
}

// NewRefreshScheduler parses spec and registers the refresh job.
func NewRefreshScheduler(feed *property.Feed, spec string, logger *zap.Logger) (*RefreshScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rs := &RefreshScheduler{
		feed:    feed,
		logger:  logger,
		cron:    cron.New(),
		timeout: time.Minute,
	}
	entry, err := rs.cron.AddFunc(spec, func() { rs.RunNow(context.Background()) })
	if err != nil {
		return nil, fmt.Errorf("%w: refresh schedule %q: %v", calendar.ErrInvalidInput, spec, err)
	}
	rs.entry = entry
	return rs, nil
}

// Start begins the scheduler.
func (rs *RefreshScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.running {
		return
	}
	rs.running = true
	rs.cron.Start()
	rs.logger.Info("refresh scheduler started", zap.Time("next_run", rs.cron.Entry(rs.entry).Next))
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (rs *RefreshScheduler) Stop() {
	rs.mu.Lock()
	if !rs.running {
		rs.mu.Unlock()
		return
	}
	rs.running = false
	rs.mu.Unlock()

	<-rs.cron.Stop().Done()
	rs.logger.Info("refresh scheduler stopped")
}

// RunNow refreshes the feed immediately and records the run.
func (rs *RefreshScheduler) RunNow(ctx context.Context) RefreshRun {
	ctx, cancel := context.WithTimeout(ctx, rs.timeout)
	defer cancel()

	run := RefreshRun{StartedAt: time.Now()}
	snap, err := rs.feed.Reload(ctx)
	run.Duration = time.Since(run.StartedAt)

	switch {
	case errors.Is(err, calendar.ErrSuperseded):
		rs.logger.Debug("scheduled refresh superseded")
	case err != nil:
		run.Err = err
		rs.logger.Error("scheduled refresh failed", zap.Error(err), zap.Duration("duration", run.Duration))
	default:
		run.Generation = snap.Generation
		run.Events = len(snap.Events)
		rs.logger.Info("scheduled refresh",
			zap.Uint64("generation", snap.Generation),
			zap.Int("events", len(snap.Events)),
			zap.Duration("duration", run.Duration),
		)
	}

	rs.mu.Lock()
	rs.last = run
	rs.mu.Unlock()
	return run
}

// LastRun returns the most recent run, zero before the first.
func (rs *RefreshScheduler) LastRun() RefreshRun {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.last
}

// NextRun is the next scheduled time, zero when the scheduler is stopped.
func (rs *RefreshScheduler) NextRun() time.Time {
	return rs.cron.Entry(rs.entry).Next
}
