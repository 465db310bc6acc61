package calendar

// Builder turns drafts into events. It owns the registry and status resolver
// so that every event in one build shares the same "now".
type Builder struct {
	Registry Registry
	Status   StatusResolver
}

// NewBuilder returns a Builder using reg and resolver.
func NewBuilder(reg Registry, resolver StatusResolver) *Builder {
	return &Builder{Registry: reg, Status: resolver}
}

// Build validates d and derives status, actions and display metadata.
//
// A draft without a date, with an end before its start, or with a malformed
// time returns a SourceRecordError: the caller skips it. An unregistered type
// returns UnknownEventTypeError, which callers must not swallow.
func (b *Builder) Build(d Draft) (Event, error) {
	display, err := b.Registry.Lookup(d.Type)
	if err != nil {
		return Event{}, err
	}
	if err := validateDraft(d); err != nil {
		return Event{}, err
	}

	clock := d.Time
	allDay := d.AllDay || clock == ""
	if allDay {
		clock = ""
	} else {
		clock, _ = NormalizeClock(clock)
	}

	status := b.Status.Resolve(StatusInput{
		Date:     d.Date,
		Time:     clock,
		AllDay:   allDay,
		Explicit: d.Explicit,
	})

	ev := Event{
		ID:          d.ID,
		RelatedID:   d.RelatedID,
		RelatedType: d.RelatedType,
		Type:        d.Type,

		Date:   d.Date,
		Time:   clock,
		AllDay: allDay,

		Title:       d.Title,
		Description: d.Description,
		Display:     display,

		PropertyID: d.PropertyID,
		UnitID:     d.UnitID,
		AssigneeID: d.AssigneeID,

		Status: status,
		Actions: ResolveActions(ActionInput{
			Type:        d.Type,
			Status:      status,
			RelatedID:   d.RelatedID,
			RelatedType: d.RelatedType,
		}),
		IsRecurring:      d.IsRecurring && d.RecurringPattern.Valid(),
		RecurringPattern: d.RecurringPattern,

		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if !ev.IsRecurring {
		ev.RecurringPattern = ""
	}
	if d.EndDate != nil && !d.EndDate.IsZero() {
		end := *d.EndDate
		ev.EndDate = &end
	}
	if d.Property != nil {
		p := *d.Property
		ev.Property = &p
	}
	if d.Unit != nil {
		u := *d.Unit
		ev.Unit = &u
	}
	if d.Assignee != nil {
		a := *d.Assignee
		ev.Assignee = &a
		if ev.AssigneeID == "" {
			ev.AssigneeID = a.ID
		}
	}
	return ev, nil
}

func validateDraft(d Draft) error {
	kind := string(d.RelatedType)
	if d.Date.IsZero() {
		return &SourceRecordError{Kind: kind, ID: d.RelatedID, Field: "date", Reason: "is missing"}
	}
	if d.EndDate != nil && !d.EndDate.IsZero() && d.EndDate.Before(d.Date) {
		return &SourceRecordError{Kind: kind, ID: d.RelatedID, Field: "end_date", Reason: "precedes date"}
	}
	if d.Time != "" && !d.AllDay && !ValidClock(d.Time) {
		return &SourceRecordError{Kind: kind, ID: d.RelatedID, Field: "time", Reason: "is not HH:MM"}
	}
	return nil
}
