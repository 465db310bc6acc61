package calendar

import (
	"sort"
	"strings"
)

// =============================================================================
// FILTERS
// =============================================================================

// Filters narrows an event stream. Every set field must match (AND); an
// empty field matches everything. DateFrom and DateTo are inclusive on Date.
type Filters struct {
	PropertyIDs []string
	UnitIDs     []string
	AssigneeIDs []string
	EventTypes  []EventType
	Statuses    []EventStatus
	DateFrom    Date
	DateTo      Date
	Search      string
}

// Empty reports whether f matches every event.
func (f Filters) Empty() bool {
	return len(f.PropertyIDs) == 0 && len(f.UnitIDs) == 0 && len(f.AssigneeIDs) == 0 &&
		len(f.EventTypes) == 0 && len(f.Statuses) == 0 &&
		f.DateFrom.IsZero() && f.DateTo.IsZero() && strings.TrimSpace(f.Search) == ""
}

// Match reports whether e satisfies every set predicate of f.
func (f Filters) Match(e Event) bool {
	if len(f.PropertyIDs) > 0 && !containsString(f.PropertyIDs, e.PropertyID) {
		return false
	}
	if len(f.UnitIDs) > 0 && !containsString(f.UnitIDs, e.UnitID) {
		return false
	}
	if len(f.AssigneeIDs) > 0 && !containsString(f.AssigneeIDs, e.AssigneeID) {
		return false
	}
	if len(f.EventTypes) > 0 && !containsType(f.EventTypes, e.Type) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, e.Status) {
		return false
	}
	if !f.DateFrom.IsZero() && e.Date.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && e.Date.After(f.DateTo) {
		return false
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		q = strings.ToLower(q)
		if !strings.Contains(strings.ToLower(e.Title), q) &&
			!strings.Contains(strings.ToLower(e.Description), q) {
			return false
		}
	}
	return true
}

// Validate rejects an inverted date range.
func (f Filters) Validate() error {
	if !f.DateFrom.IsZero() && !f.DateTo.IsZero() && f.DateTo.Before(f.DateFrom) {
		return &InvalidFilterError{Reason: "date_to precedes date_from"}
	}
	for _, t := range f.EventTypes {
		if !t.Valid() {
			return &InvalidFilterError{Reason: "unknown event type " + string(t)}
		}
	}
	for _, s := range f.Statuses {
		if !s.Valid() {
			return &InvalidFilterError{Reason: "unknown status " + string(s)}
		}
	}
	return nil
}

// InvalidFilterError describes a malformed filter set.
type InvalidFilterError struct {
	Reason string
}

func (e *InvalidFilterError) Error() string { return "invalid filters: " + e.Reason }

func (e *InvalidFilterError) Unwrap() error { return ErrInvalidInput }

// =============================================================================
// AGGREGATE
// =============================================================================

// Aggregate filters and sorts events. The input slice and its events are
// never modified; the result is always a new slice, even when empty.
func Aggregate(events []Event, f Filters) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if f.Match(e) {
			out = append(out, e.Clone())
		}
	}
	SortEvents(out)
	return out
}

// SortEvents orders events in place: by date, all-day before timed, by time,
// then by id so equal keys always land in the same order.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return Less(events[i], events[j])
	})
}

// Less is the ordering used by SortEvents.
func Less(a, b Event) bool {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c < 0
	}
	at, bt := a.Timed(), b.Timed()
	if at != bt {
		return !at
	}
	if at && a.Time != b.Time {
		return a.Time < b.Time
	}
	return a.ID < b.ID
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsType(set []EventType, v EventType) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsStatus(set []EventStatus, v EventStatus) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
