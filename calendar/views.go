/*
views.go - Presentation groupings over an aggregated event stream

PURPOSE:
  Month/week/day/agenda windows, the "today" summary and the task list are
  all pure regroupings of the same []Event. Nothing here fetches data, and
  nothing modifies the events it receives.

WINDOWS:
  month:  first..last day of the anchor's month
  week:   7 days starting at the configured first weekday
  day:    the anchor day
  agenda: the anchor day plus AgendaDays

TASK BUCKETS (non-terminal events only, first match wins):
  overdue    status overdue
  today      dated today
  this_week  within today's week
  this_month within today's month
  later      everything after

SEE ALSO:
  - aggregate.go: Filtering and ordering applied before grouping
*/
package calendar

import (
	"fmt"
	"time"
)

// =============================================================================
// WINDOWS
// =============================================================================

// View names a calendar layout.
type View string

const (
	ViewMonth  View = "month"
	ViewWeek   View = "week"
	ViewDay    View = "day"
	ViewAgenda View = "agenda"
)

// AgendaDays is how far the agenda view looks ahead.
const AgendaDays = 30

// Period is an inclusive date range.
type Period struct {
	Start Date
	End   Date
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Days returns every day of the period.
func (p Period) Days() []Date {
	var days []Date
	for d := p.Start; d.BeforeOrEqual(p.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// Filters returns f restricted to the period.
func (p Period) Filters(f Filters) Filters {
	f.DateFrom = p.Start
	f.DateTo = p.End
	return f
}

// Window returns the date range shown by view around anchor.
func Window(view View, anchor Date, weekStart time.Weekday) (Period, error) {
	switch view {
	case ViewMonth:
		return Period{Start: StartOfMonth(anchor), End: EndOfMonth(anchor)}, nil
	case ViewWeek:
		start := StartOfWeek(anchor, weekStart)
		return Period{Start: start, End: start.AddDays(6)}, nil
	case ViewDay:
		return Period{Start: anchor, End: anchor}, nil
	case ViewAgenda:
		return Period{Start: anchor, End: anchor.AddDays(AgendaDays)}, nil
	}
	return Period{}, fmt.Errorf("%w: unknown view %q", ErrInvalidInput, view)
}

// =============================================================================
// AGENDA
// =============================================================================

// AgendaDay is one date with its events in display order.
type AgendaDay struct {
	Date   Date
	Events []Event
}

// Agenda groups an already sorted stream by date.
func Agenda(events []Event) []AgendaDay {
	var days []AgendaDay
	for _, e := range events {
		if n := len(days); n > 0 && days[n-1].Date.Equal(e.Date) {
			days[n-1].Events = append(days[n-1].Events, e)
			continue
		}
		days = append(days, AgendaDay{Date: e.Date, Events: []Event{e}})
	}
	return days
}

// =============================================================================
// TODAY
// =============================================================================

// TodaySummary is the dashboard card for the current day.
type TodaySummary struct {
	Date      Date
	Events    []Event
	Overdue   int
	Upcoming  int
	Completed int
}

// Today returns the events dated today plus counts over the whole stream.
// Overdue counts every overdue event, not only today's.
func Today(events []Event, today Date) TodaySummary {
	sum := TodaySummary{Date: today, Events: []Event{}}
	for _, e := range events {
		if e.Status == StatusOverdue {
			sum.Overdue++
		}
		if !e.Date.Equal(today) {
			continue
		}
		sum.Events = append(sum.Events, e)
		switch e.Status {
		case StatusUpcoming:
			sum.Upcoming++
		case StatusCompleted:
			sum.Completed++
		}
	}
	return sum
}

// =============================================================================
// TASKS
// =============================================================================

// TaskList buckets open events by urgency.
type TaskList struct {
	Overdue   []Event
	Today     []Event
	ThisWeek  []Event
	ThisMonth []Event
	Later     []Event
}

// Total is the number of open tasks.
func (t TaskList) Total() int {
	return len(t.Overdue) + len(t.Today) + len(t.ThisWeek) + len(t.ThisMonth) + len(t.Later)
}

// Tasks partitions the non-terminal events of a sorted stream.
func Tasks(events []Event, today Date, weekStart time.Weekday) TaskList {
	week, _ := Window(ViewWeek, today, weekStart)
	month, _ := Window(ViewMonth, today, weekStart)

	var list TaskList
	for _, e := range events {
		switch {
		case e.Status.IsTerminal():
			continue
		case e.Status == StatusOverdue:
			list.Overdue = append(list.Overdue, e)
		case e.Date.Equal(today):
			list.Today = append(list.Today, e)
		case week.Contains(e.Date):
			list.ThisWeek = append(list.ThisWeek, e)
		case month.Contains(e.Date):
			list.ThisMonth = append(list.ThisMonth, e)
		default:
			list.Later = append(list.Later, e)
		}
	}
	return list
}

// GroupByStatus partitions events by status, preserving order within each group.
func GroupByStatus(events []Event) map[EventStatus][]Event {
	groups := make(map[EventStatus][]Event)
	for _, e := range events {
		groups[e.Status] = append(groups[e.Status], e)
	}
	return groups
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summary counts events by status and by type.
type Summary struct {
	Total    int
	ByStatus map[EventStatus]int
	ByType   map[EventType]int
}

func Summarize(events []Event) Summary {
	s := Summary{
		Total:    len(events),
		ByStatus: make(map[EventStatus]int),
		ByType:   make(map[EventType]int),
	}
	for _, e := range events {
		s.ByStatus[e.Status]++
		s.ByType[e.Type]++
	}
	return s
}
