/*
Package calendar provides the event normalization core.

PURPOSE:
  Heterogeneous property-management rows (leases, rent and expense
  transactions, maintenance requests, inspections, appliances, custom
  events) are turned into one polymorphic Event stream. This package holds
  the parts that do not know about any particular table: the Event model,
  the type registry, status and action resolution, the builder, filtering,
  sorting, view grouping, recurrence expansion and ICS export.

KEY CONCEPTS IN THIS FILE (event.go):
  - Event: the normalized, ephemeral view model
  - Draft: an event before status, actions and display are derived
  - RelatedType: which source table an event came from

LIFECYCLE:
  Events are rebuilt from authoritative rows on every fetch. They are never
  persisted; only custom events are durable, as rows of their own table.

SEE ALSO:
  - registry.go: EventType and display metadata
  - builder.go: Draft -> Event
  - aggregate.go: Filters and ordering
  - property/normalize.go: Row -> Draft rules
*/
package calendar

import "time"

// =============================================================================
// RELATED TYPES
// =============================================================================

// RelatedType names the source table an event was derived from.
type RelatedType string

const (
	RelatedLease       RelatedType = "lease"
	RelatedTransaction RelatedType = "transaction"
	RelatedMaintenance RelatedType = "maintenance_request"
	RelatedInspection  RelatedType = "inspection"
	RelatedAppliance   RelatedType = "appliance"
	RelatedCustomEvent RelatedType = "custom_event"
)

// =============================================================================
// SNAPSHOTS - Denormalized display data from the source query's joins
// =============================================================================

type Ref struct {
	ID   string
	Name string
}

// AssigneeType is who an event is assigned to.
type AssigneeType string

const (
	AssigneeTenant AssigneeType = "tenant"
	AssigneeTeam   AssigneeType = "team"
	AssigneeVendor AssigneeType = "vendor"
)

func (t AssigneeType) Valid() bool {
	return t == AssigneeTenant || t == AssigneeTeam || t == AssigneeVendor
}

type Assignee struct {
	ID   string
	Name string
	Type AssigneeType
}

// RecurringPattern is the repeat frequency of a recurring event.
type RecurringPattern string

const (
	RepeatDaily   RecurringPattern = "daily"
	RepeatWeekly  RecurringPattern = "weekly"
	RepeatMonthly RecurringPattern = "monthly"
	RepeatYearly  RecurringPattern = "yearly"
)

func (p RecurringPattern) Valid() bool {
	switch p {
	case RepeatDaily, RepeatWeekly, RepeatMonthly, RepeatYearly:
		return true
	}
	return false
}

// =============================================================================
// EVENT
// =============================================================================

// Event is the normalized calendar unit consumed by every rendering surface.
type Event struct {
	// Identity. ID is namespaced by source, e.g. "custom_" + row id.
	ID          string
	RelatedID   string
	RelatedType RelatedType
	Type        EventType

	// Temporal. AllDay events have no Time; EndDate never precedes Date.
	Date    Date
	EndDate *Date
	Time    string
	AllDay  bool

	// Display. Config is copied from the registry when the event is built.
	Title       string
	Description string
	Display     EventTypeConfig

	// Relational
	PropertyID string
	UnitID     string
	AssigneeID string
	Property   *Ref
	Unit       *Ref
	Assignee   *Assignee

	// Behavior
	Status           EventStatus
	Actions          []EventAction
	IsRecurring      bool
	RecurringPattern RecurringPattern

	// Audit, copied from the source row
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Timed reports whether the event has a time of day.
func (e Event) Timed() bool { return !e.AllDay && e.Time != "" }

// LastDate is EndDate when set, Date otherwise.
func (e Event) LastDate() Date {
	if e.EndDate != nil && !e.EndDate.IsZero() {
		return *e.EndDate
	}
	return e.Date
}

// Clone returns a copy that shares no mutable state with e.
func (e Event) Clone() Event {
	out := e
	if e.EndDate != nil {
		end := *e.EndDate
		out.EndDate = &end
	}
	if e.Property != nil {
		p := *e.Property
		out.Property = &p
	}
	if e.Unit != nil {
		u := *e.Unit
		out.Unit = &u
	}
	if e.Assignee != nil {
		a := *e.Assignee
		out.Assignee = &a
	}
	if e.Actions != nil {
		out.Actions = append([]EventAction(nil), e.Actions...)
	}
	return out
}

// =============================================================================
// DRAFT - Event before derivation
// =============================================================================

// Draft is what a normalization rule produces from a row. The Builder derives
// status, actions and display fields from it.
type Draft struct {
	ID          string
	RelatedID   string
	RelatedType RelatedType
	Type        EventType

	Date    Date
	EndDate *Date
	Time    string
	AllDay  bool

	Title       string
	Description string

	PropertyID string
	UnitID     string
	AssigneeID string
	Property   *Ref
	Unit       *Ref
	Assignee   *Assignee

	// Explicit is the row's authoritative status, if any (completed/cancelled).
	Explicit         EventStatus
	IsRecurring      bool
	RecurringPattern RecurringPattern

	CreatedAt time.Time
	UpdatedAt time.Time
}
