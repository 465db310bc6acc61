package calendar

import (
	"fmt"
	"time"
)

// =============================================================================
// STATUS
// =============================================================================

// EventStatus is the current state of an event.
// Completed and cancelled are terminal and come from the source row; upcoming
// and overdue are derived from the date on every build.
type EventStatus string

const (
	StatusUpcoming  EventStatus = "upcoming"
	StatusOverdue   EventStatus = "overdue"
	StatusCompleted EventStatus = "completed"
	StatusCancelled EventStatus = "cancelled"
)

// AllStatuses lists the statuses in display order.
func AllStatuses() []EventStatus {
	return []EventStatus{StatusUpcoming, StatusOverdue, StatusCompleted, StatusCancelled}
}

func (s EventStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s EventStatus) Valid() bool {
	switch s {
	case StatusUpcoming, StatusOverdue, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus converts a string into an EventStatus.
func ParseStatus(s string) (EventStatus, error) {
	st := EventStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s)
	}
	return st, nil
}

// =============================================================================
// CLOCK
// =============================================================================

// Clock supplies "now". Injected so status resolution is testable.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

// =============================================================================
// STATUS RESOLVER
// =============================================================================

// CompareRule selects how an event date is compared with now.
type CompareRule string

const (
	// CompareCalendarDay: untimed events become overdue once their day has
	// passed; timed events compare the full timestamp.
	CompareCalendarDay CompareRule = "calendar_day"

	// CompareInstant: the event's midnight (or timestamp) is compared with now,
	// so an untimed event dated today is already overdue.
	CompareInstant CompareRule = "instant"
)

// ParseCompareRule accepts the config spelling of a CompareRule.
func ParseCompareRule(s string) (CompareRule, error) {
	switch CompareRule(s) {
	case CompareCalendarDay, "":
		return CompareCalendarDay, nil
	case CompareInstant:
		return CompareInstant, nil
	}
	return "", fmt.Errorf("%w: unknown status rule %q", ErrInvalidInput, s)
}

// StatusInput is what the resolver needs from an event.
type StatusInput struct {
	Date     Date
	Time     string // HH:MM, empty when untimed
	AllDay   bool
	Explicit EventStatus // only completed/cancelled are honoured
}

// StatusResolver computes upcoming/overdue relative to its clock.
type StatusResolver struct {
	Clock    Clock
	Location *time.Location
	Rule     CompareRule
}

// NewStatusResolver returns a calendar-day resolver in loc.
func NewStatusResolver(clock Clock, loc *time.Location) StatusResolver {
	return StatusResolver{Clock: clock, Location: loc, Rule: CompareCalendarDay}
}

func (r StatusResolver) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

func (r StatusResolver) now() time.Time {
	if r.Clock == nil {
		return time.Now()
	}
	return r.Clock.Now()
}

// Today returns the current calendar day in the resolver's location.
func (r StatusResolver) Today() Date {
	return DateIn(r.now(), r.location())
}

// Resolve returns the status of the event described by in.
func (r StatusResolver) Resolve(in StatusInput) EventStatus {
	if in.Explicit.IsTerminal() {
		return in.Explicit
	}

	loc := r.location()
	now := r.now().In(loc)
	timed := in.Time != "" && !in.AllDay

	if timed {
		at, err := in.Date.At(in.Time, loc)
		if err == nil {
			if at.Before(now) {
				return StatusOverdue
			}
			return StatusUpcoming
		}
		// malformed clocks never reach here from the builder; fall back to the day
	}

	if r.Rule == CompareInstant {
		if in.Date.Time(loc).Before(now) {
			return StatusOverdue
		}
		return StatusUpcoming
	}

	if in.Date.Before(DateOf(now)) {
		return StatusOverdue
	}
	return StatusUpcoming
}
