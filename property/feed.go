package property

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/warp/property-engine/calendar"
	"go.uber.org/zap"
)

// Snapshot is one completed build of the event stream.
type Snapshot struct {
	Generation uint64
	Filters    calendar.Filters
	Events     []calendar.Event
	Stats      Stats
	Window     calendar.Period
	Today      calendar.Date
	BuiltAt    time.Time
}

// Feed keeps the latest event stream for a filter set.
//
// Every Refresh takes a new generation before it fetches. When a build
// finishes after a newer refresh has started, its result is discarded with
// ErrSuperseded, so a slow stale fetch never overwrites a fresher one.
// Change notifications trigger a full rebuild with the last filters.
type Feed struct {
	cal    *Calendar
	logger *zap.Logger

	mu         sync.Mutex
	generation uint64
	filters    calendar.Filters
	current    *Snapshot
}

// NewFeed returns an empty feed over cal.
func NewFeed(cal *Calendar, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{cal: cal, logger: logger}
}

// Refresh rebuilds the stream for filters and makes them the feed's filters.
func (f *Feed) Refresh(ctx context.Context, filters calendar.Filters) (Snapshot, error) {
	f.mu.Lock()
	f.generation++
	gen := f.generation
	f.filters = filters
	f.mu.Unlock()

	res, err := f.cal.Build(ctx, filters)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation {
		f.logger.Debug("discarding superseded refresh",
			zap.Uint64("generation", gen),
			zap.Uint64("latest", f.generation),
		)
		return Snapshot{}, calendar.ErrSuperseded
	}
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Generation: gen,
		Filters:    filters,
		Events:     res.Events,
		Stats:      res.Stats,
		Window:     res.Window,
		Today:      res.Today,
		BuiltAt:    f.cal.clock.Now(),
	}
	f.current = &snap
	return snap, nil
}

// Reload refreshes with the filters of the last Refresh.
func (f *Feed) Reload(ctx context.Context) (Snapshot, error) {
	f.mu.Lock()
	filters := f.filters
	f.mu.Unlock()
	return f.Refresh(ctx, filters)
}

// Current returns the latest completed snapshot.
func (f *Feed) Current() (Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return Snapshot{}, false
	}
	return *f.current, true
}

// Generation is the most recently started generation.
func (f *Feed) Generation() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generation
}

// OnChange is a ChangeHandler that reloads the feed.
func (f *Feed) OnChange(ctx context.Context, ch Change) error {
	_, err := f.Reload(ctx)
	if errors.Is(err, calendar.ErrSuperseded) {
		return nil
	}
	if err == nil {
		f.logger.Debug("feed reloaded after change",
			zap.String("op", string(ch.Op)),
			zap.String("kind", string(ch.Kind)),
			zap.String("id", ch.ID),
		)
	}
	return err
}
