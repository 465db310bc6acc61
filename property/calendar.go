/*
calendar.go - Calendar service: fetch, normalize, aggregate, dispatch

PURPOSE:
  The single entry point for rendering surfaces. GetEvents reads every source
  concurrently, normalizes the rows and returns the filtered, sorted stream.
  DispatchAction re-checks an action against the event's current state before
  touching the store.

DATA FLOW:
  Source (6 kinds, concurrent) -> Normalizer -> Aggregate(filters) -> []Event

WINDOW:
  Recurring custom events are expanded within a window: the filter's date
  range when set, else [today - PastDays, today + FutureDays].

SEE ALSO:
  - normalize.go: Row rules
  - feed.go: Generation-counted refresh on top of Build
*/
package property

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/warp/property-engine/calendar"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a Calendar. Zero values fall back to sensible defaults.
type Options struct {
	Registry  *calendar.Registry
	Clock     calendar.Clock
	Location  *time.Location
	Rule      calendar.CompareRule
	WeekStart time.Weekday

	// PastDays and FutureDays bound recurrence expansion when the filters
	// carry no date range.
	PastDays       int
	FutureDays     int
	MaxOccurrences int

	Logger *zap.Logger
}

const (
	defaultPastDays   = 90
	defaultFutureDays = 365
)

// =============================================================================
// CALENDAR SERVICE
// =============================================================================

// Calendar builds event streams from a Source and routes actions to a Mutator.
type Calendar struct {
	source  Source
	mutator Mutator

	registry  calendar.Registry
	clock     calendar.Clock
	loc       *time.Location
	rule      calendar.CompareRule
	weekStart time.Weekday

	pastDays       int
	futureDays     int
	maxOccurrences int

	logger *zap.Logger
}

// NewCalendar returns a Calendar reading from src and mutating through mut.
func NewCalendar(src Source, mut Mutator, opts Options) *Calendar {
	c := &Calendar{
		source:         src,
		mutator:        mut,
		registry:       calendar.DefaultRegistry(),
		clock:          opts.Clock,
		loc:            opts.Location,
		rule:           opts.Rule,
		weekStart:      opts.WeekStart,
		pastDays:       opts.PastDays,
		futureDays:     opts.FutureDays,
		maxOccurrences: opts.MaxOccurrences,
		logger:         opts.Logger,
	}
	if opts.Registry != nil {
		c.registry = *opts.Registry
	}
	if c.clock == nil {
		c.clock = calendar.SystemClock{}
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	if c.rule == "" {
		c.rule = calendar.CompareCalendarDay
	}
	if c.pastDays <= 0 {
		c.pastDays = defaultPastDays
	}
	if c.futureDays <= 0 {
		c.futureDays = defaultFutureDays
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Registry is the registry events are built with.
func (c *Calendar) Registry() calendar.Registry { return c.registry }

// Today is the current date in the calendar's location.
func (c *Calendar) Today() calendar.Date { return c.resolver().Today() }

// WeekStart is the configured first day of the week.
func (c *Calendar) WeekStart() time.Weekday { return c.weekStart }

// Location is the zone dates and times are interpreted in.
func (c *Calendar) Location() *time.Location { return c.loc }

func (c *Calendar) resolver() calendar.StatusResolver {
	r := calendar.NewStatusResolver(c.clock, c.loc)
	r.Rule = c.rule
	return r
}

// Window is the recurrence window used for f.
func (c *Calendar) Window(f calendar.Filters) calendar.Period {
	today := c.Today()
	p := calendar.Period{Start: today.AddDays(-c.pastDays), End: today.AddDays(c.futureDays)}
	if !f.DateFrom.IsZero() {
		p.Start = f.DateFrom
	}
	if !f.DateTo.IsZero() {
		p.End = f.DateTo
	}
	if p.End.Before(p.Start) {
		p.End = p.Start
	}
	return p
}

// Result is one build of the event stream.
type Result struct {
	Events []calendar.Event
	Stats  Stats
	Window calendar.Period
	Today  calendar.Date
}

// GetEvents returns the filtered, sorted event stream.
func (c *Calendar) GetEvents(ctx context.Context, f calendar.Filters) ([]calendar.Event, error) {
	res, err := c.Build(ctx, f)
	if err != nil {
		return nil, err
	}
	return res.Events, nil
}

// Build fetches, normalizes and aggregates, returning the stats alongside.
func (c *Calendar) Build(ctx context.Context, f calendar.Filters) (Result, error) {
	if err := f.Validate(); err != nil {
		return Result{}, err
	}

	data, err := c.fetch(ctx, Query{PropertyIDs: f.PropertyIDs})
	if err != nil {
		return Result{}, err
	}

	resolver := c.resolver()
	window := c.Window(f)
	n := &Normalizer{
		Builder:        calendar.NewBuilder(c.registry, resolver),
		Logger:         c.logger,
		Window:         window,
		MaxOccurrences: c.maxOccurrences,
	}
	events, stats, err := n.Normalize(data)
	if err != nil {
		return Result{}, err
	}

	out := calendar.Aggregate(events, f)
	c.logger.Debug("built calendar",
		zap.Int("rows", data.Rows()),
		zap.Int("events", len(events)),
		zap.Int("matched", len(out)),
		zap.Int("skipped", stats.TotalSkipped()),
	)
	return Result{Events: out, Stats: stats, Window: window, Today: resolver.Today()}, nil
}

// fetch reads all six sources concurrently. The first failure cancels the rest.
func (c *Calendar) fetch(ctx context.Context, q Query) (Dataset, error) {
	var d Dataset
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		d.Leases, err = c.source.Leases(gctx, q)
		return wrapFetch(SourceLeases, err)
	})
	g.Go(func() (err error) {
		d.Transactions, err = c.source.Transactions(gctx, q)
		return wrapFetch(SourceTransactions, err)
	})
	g.Go(func() (err error) {
		d.MaintenanceRequests, err = c.source.MaintenanceRequests(gctx, q)
		return wrapFetch(SourceMaintenance, err)
	})
	g.Go(func() (err error) {
		d.Inspections, err = c.source.Inspections(gctx, q)
		return wrapFetch(SourceInspections, err)
	})
	g.Go(func() (err error) {
		d.Appliances, err = c.source.Appliances(gctx, q)
		return wrapFetch(SourceAppliances, err)
	})
	g.Go(func() (err error) {
		d.CustomEvents, err = c.source.CustomEvents(gctx, q)
		return wrapFetch(SourceCustomEvents, err)
	})

	if err := g.Wait(); err != nil {
		c.logger.Error("source fetch failed", zap.Error(err))
		return Dataset{}, err
	}
	return d, nil
}

func wrapFetch(kind SourceKind, err error) error {
	if err == nil {
		return nil
	}
	return &FetchError{Kind: kind, Err: err}
}

// FindEvent returns the event with id from an unfiltered build.
func (c *Calendar) FindEvent(ctx context.Context, id string) (calendar.Event, error) {
	events, err := c.GetEvents(ctx, calendar.Filters{})
	if err != nil {
		return calendar.Event{}, err
	}
	for _, e := range events {
		if e.ID == id {
			return e, nil
		}
	}
	return calendar.Event{}, fmt.Errorf("event %q: %w", id, calendar.ErrNotFound)
}

// =============================================================================
// ACTION DISPATCH
// =============================================================================

// ActionRequest carries the user input an action needs.
type ActionRequest struct {
	// Date is the new date for reschedule and the completion date for
	// complete (today when zero).
	Date calendar.Date `json:"date"`
	Time string        `json:"time,omitempty"`

	// Patch is applied by edit.
	Patch CustomEventPatch `json:"patch"`
}

// DispatchResult reports what a dispatched action did.
type DispatchResult struct {
	Action  calendar.EventAction `json:"action"`
	EventID string               `json:"event_id"`
	Target  string               `json:"target"`
}

// DispatchAction applies actionID to e. The action must be one of those
// resolved for e's current type and status; anything else is rejected
// before the store is touched. Actions on an occurrence of a recurring
// series apply to the series.
func (c *Calendar) DispatchAction(ctx context.Context, e calendar.Event, actionID string, req ActionRequest) (DispatchResult, error) {
	allowed := calendar.ResolveActions(calendar.ActionInput{
		Type:        e.Type,
		Status:      e.Status,
		RelatedID:   e.RelatedID,
		RelatedType: e.RelatedType,
	})
	action, ok := calendar.FindAction(allowed, actionID)
	if !ok {
		return DispatchResult{}, &calendar.ActionNotPermittedError{
			EventID: e.ID, ActionID: actionID, Type: e.Type, Status: e.Status,
		}
	}
	if !action.Dispatchable() {
		return DispatchResult{}, fmt.Errorf("%s on %s: %w", actionID, e.ID, calendar.ErrNotDispatchable)
	}

	res := DispatchResult{Action: action, EventID: e.ID, Target: e.RelatedID}
	var err error
	switch action.Type {
	case calendar.ActionComplete:
		err = c.complete(ctx, e, req)
	case calendar.ActionReschedule:
		err = c.reschedule(ctx, e, req)
	case calendar.ActionCancel:
		err = c.mutator.CancelCustomEvent(ctx, e.RelatedID)
	case calendar.ActionEdit:
		_, err = c.mutator.UpdateCustomEvent(ctx, e.RelatedID, req.Patch)
	default:
		err = fmt.Errorf("%s on %s: %w", actionID, e.ID, calendar.ErrNotDispatchable)
	}
	if err != nil {
		c.logger.Warn("action failed",
			zap.String("event_id", e.ID),
			zap.String("action", actionID),
			zap.Error(err),
		)
		return DispatchResult{}, err
	}

	c.logger.Info("action dispatched",
		zap.String("event_id", e.ID),
		zap.String("action", actionID),
		zap.String("related_id", e.RelatedID),
	)
	return res, nil
}

func (c *Calendar) complete(ctx context.Context, e calendar.Event, req ActionRequest) error {
	if e.RelatedType == calendar.RelatedCustomEvent {
		done := calendar.StatusCompleted
		_, err := c.mutator.UpdateCustomEvent(ctx, e.RelatedID, CustomEventPatch{Status: &done})
		return err
	}
	on := req.Date
	if on.IsZero() {
		on = c.Today()
	}
	switch e.Type {
	case calendar.TypeMaintenance:
		return c.mutator.CompleteMaintenance(ctx, e.RelatedID, on)
	case calendar.TypeInspection:
		return c.mutator.CompleteInspection(ctx, e.RelatedID, on)
	case calendar.TypeApplianceCheck:
		return c.mutator.RecordApplianceService(ctx, e.RelatedID, on)
	}
	return &calendar.ActionNotPermittedError{EventID: e.ID, ActionID: calendar.ActionIDComplete, Type: e.Type, Status: e.Status}
}

func (c *Calendar) reschedule(ctx context.Context, e calendar.Event, req ActionRequest) error {
	if req.Date.IsZero() {
		return fmt.Errorf("%w: reschedule needs a date", calendar.ErrInvalidInput)
	}
	clock := ""
	if req.Time != "" {
		var err error
		if clock, err = calendar.NormalizeClock(req.Time); err != nil {
			return fmt.Errorf("%w: %v", calendar.ErrInvalidInput, err)
		}
	}
	field, ok := RescheduleField(e)
	if !ok {
		return &calendar.ActionNotPermittedError{EventID: e.ID, ActionID: calendar.ActionIDReschedule, Type: e.Type, Status: e.Status}
	}
	switch field {
	case FieldLeaseStart, FieldLeaseEnd, FieldLeaseRenewal:
		if err := c.checkLeaseDate(ctx, e, field, req.Date); err != nil {
			return err
		}
	}
	return c.mutator.Reschedule(ctx, Reschedule{Field: field, ID: e.RelatedID, Date: req.Date, Clock: clock})
}

// checkLeaseDate rejects a lease date that would make LeaseDrafts drop the
// row or its renewal: start after end, end before start, renewal before
// start or after end.
func (c *Calendar) checkLeaseDate(ctx context.Context, e calendar.Event, field DateField, to calendar.Date) error {
	var q Query
	if e.PropertyID != "" {
		q.PropertyIDs = []string{e.PropertyID}
	}
	leases, err := c.source.Leases(ctx, q)
	if err != nil {
		return wrapFetch(SourceLeases, err)
	}
	idx := slices.IndexFunc(leases, func(l Lease) bool { return l.ID == e.RelatedID })
	if idx < 0 {
		return RowNotFound("lease", e.RelatedID)
	}
	l := leases[idx]

	start, end := l.StartDate, l.EndDate
	switch field {
	case FieldLeaseStart:
		start = to
	case FieldLeaseEnd:
		end = to
	}
	if !end.IsZero() && end.Before(start) {
		return fmt.Errorf("%w: lease %s would end %s before it starts %s", calendar.ErrInvalidInput, l.ID, end, start)
	}
	if field == FieldLeaseRenewal {
		if to.Before(start) {
			return fmt.Errorf("%w: renewal %s precedes lease start %s", calendar.ErrInvalidInput, to, start)
		}
		if !end.IsZero() && to.After(end) {
			return fmt.Errorf("%w: renewal %s is after lease end %s", calendar.ErrInvalidInput, to, end)
		}
	}
	return nil
}
