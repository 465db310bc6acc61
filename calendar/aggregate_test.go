package calendar_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/property-engine/calendar"
)

func ev(id, date string, mods ...func(*calendar.Event)) calendar.Event {
	e := calendar.Event{
		ID:     id,
		Type:   calendar.TypeCustom,
		Date:   calendar.MustParseDate(date),
		AllDay: true,
		Status: calendar.StatusUpcoming,
	}
	for _, m := range mods {
		m(&e)
	}
	return e
}

func at(clock string) func(*calendar.Event) {
	return func(e *calendar.Event) {
		e.Time = clock
		e.AllDay = false
	}
}

func eventIDs(events []calendar.Event) []string {
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return ids
}

func TestAggregate_SortOrder(t *testing.T) {
	// GIVEN: Two events on the same day, one all-day and one at 09:00
	// THEN: The all-day event comes first, then by time, then by id

	events := []calendar.Event{
		ev("b", "2024-06-02"),
		ev("timed-late", "2024-06-01", at("14:00")),
		ev("timed-early", "2024-06-01", at("09:00")),
		ev("z-allday", "2024-06-01"),
		ev("a-allday", "2024-06-01"),
	}

	got := calendar.Aggregate(events, calendar.Filters{})

	assert.Equal(t, []string{"a-allday", "z-allday", "timed-early", "timed-late", "b"}, eventIDs(got))
}

func TestAggregate_Idempotent(t *testing.T) {
	events := []calendar.Event{
		ev("3", "2024-06-03"),
		ev("1", "2024-06-01", at("10:00")),
		ev("2", "2024-06-01"),
	}
	f := calendar.Filters{Statuses: []calendar.EventStatus{calendar.StatusUpcoming}}

	once := calendar.Aggregate(events, f)
	twice := calendar.Aggregate(once, f)

	assert.Equal(t, once, twice)
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	end := calendar.MustParseDate("2024-06-05")
	events := []calendar.Event{
		ev("2", "2024-06-02"),
		ev("1", "2024-06-01", func(e *calendar.Event) { e.EndDate = &end }),
	}

	got := calendar.Aggregate(events, calendar.Filters{})
	got[0].EndDate = nil
	got[1].Title = "changed"

	assert.Equal(t, "2", events[0].ID)
	assert.NotNil(t, events[1].EndDate)
	assert.Empty(t, events[0].Title)
}

func TestAggregate_EmptyResultIsNotNil(t *testing.T) {
	got := calendar.Aggregate(nil, calendar.Filters{})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAggregate_FilterConjunction(t *testing.T) {
	// GIVEN: Events that each satisfy a different subset of the predicates
	// WHEN: Filtering on property AND status
	// THEN: Only the event matching both survives

	inP1 := func(e *calendar.Event) { e.PropertyID = "p1" }
	overdue := func(e *calendar.Event) { e.Status = calendar.StatusOverdue }

	events := []calendar.Event{
		ev("both", "2024-06-01", inP1, overdue),
		ev("prop-only", "2024-06-01", inP1),
		ev("status-only", "2024-06-01", overdue),
		ev("neither", "2024-06-01"),
	}
	f := calendar.Filters{
		PropertyIDs: []string{"p1"},
		Statuses:    []calendar.EventStatus{calendar.StatusOverdue},
	}

	got := calendar.Aggregate(events, f)
	assert.Equal(t, []string{"both"}, eventIDs(got))

	for _, e := range got {
		assert.True(t, calendar.Filters{PropertyIDs: f.PropertyIDs}.Match(e))
		assert.True(t, calendar.Filters{Statuses: f.Statuses}.Match(e))
	}
}

func TestFilters_EachPredicate(t *testing.T) {
	e := ev("c1", "2024-06-10", func(e *calendar.Event) {
		e.PropertyID = "p1"
		e.UnitID = "u1"
		e.AssigneeID = "t1"
		e.Type = calendar.TypeRentDue
		e.Title = "Rent due: Unit 4B"
		e.Description = "Monthly rent"
	})

	match := map[string]calendar.Filters{
		"unit":        {UnitIDs: []string{"u1", "u2"}},
		"assignee":    {AssigneeIDs: []string{"t1"}},
		"type":        {EventTypes: []calendar.EventType{calendar.TypeRentDue}},
		"from":        {DateFrom: calendar.MustParseDate("2024-06-10")},
		"to":          {DateTo: calendar.MustParseDate("2024-06-10")},
		"search":      {Search: "unit 4b"},
		"search desc": {Search: "MONTHLY"},
	}
	for name, f := range match {
		assert.True(t, f.Match(e), name)
	}

	miss := map[string]calendar.Filters{
		"unit":     {UnitIDs: []string{"u2"}},
		"assignee": {AssigneeIDs: []string{"t2"}},
		"type":     {EventTypes: []calendar.EventType{calendar.TypeExpenseDue}},
		"from":     {DateFrom: calendar.MustParseDate("2024-06-11")},
		"to":       {DateTo: calendar.MustParseDate("2024-06-09")},
		"search":   {Search: "plumbing"},
	}
	for name, f := range miss {
		assert.False(t, f.Match(e), name)
	}
}

func TestFilters_Validate(t *testing.T) {
	assert.NoError(t, calendar.Filters{}.Validate())
	assert.True(t, calendar.Filters{Search: "  "}.Empty())

	err := calendar.Filters{
		DateFrom: calendar.MustParseDate("2024-06-10"),
		DateTo:   calendar.MustParseDate("2024-06-01"),
	}.Validate()
	assert.ErrorIs(t, err, calendar.ErrInvalidInput)

	err = calendar.Filters{Statuses: []calendar.EventStatus{"late"}}.Validate()
	assert.ErrorIs(t, err, calendar.ErrInvalidInput)
}
