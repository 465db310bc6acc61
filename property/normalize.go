/*
normalize.go - Domain rows to calendar events

PURPOSE:
  One rule per source turns a row into zero or more drafts. The Builder then
  validates each draft and derives status, actions and display metadata.

RULES:
  lease        start_date (required), end_date, renewal_date or end - notice
  transaction  due_date, else rent_due_day within the transaction month,
               else transaction_date
  maintenance  scheduled_date, else due_date
  inspection   scheduled_date + optional scheduled_time
  appliance    next_service_date, warranty_expiration (each optional)
  custom       date (+ recurrence within the window)

FAILURES:
  A row with a missing or malformed date produces no events at all. It is
  logged and counted per source; the rest of the batch continues.
  An unregistered event type aborts the whole normalization.

SEE ALSO:
  - calendar/builder.go: Per-draft validation and derivation
  - calendar/recurrence.go: Series expansion
*/
package property

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/warp/property-engine/calendar"
	"go.uber.org/zap"
)

// =============================================================================
// NORMALIZER
// =============================================================================

// Normalizer turns a Dataset into events.
type Normalizer struct {
	Builder *calendar.Builder
	Logger  *zap.Logger

	// Window bounds recurrence expansion. A zero window keeps only the
	// series anchor of recurring custom events.
	Window         calendar.Period
	MaxOccurrences int
}

// Stats counts what one normalization did, per source.
type Stats struct {
	Rows      map[SourceKind]int `json:"rows"`
	Events    map[SourceKind]int `json:"events"`
	Skipped   map[SourceKind]int `json:"skipped"`
	Truncated int                `json:"truncated_series"`
}

func newStats() Stats {
	return Stats{
		Rows:    make(map[SourceKind]int),
		Events:  make(map[SourceKind]int),
		Skipped: make(map[SourceKind]int),
	}
}

// TotalSkipped is the number of rows that produced no events because they were invalid.
func (s Stats) TotalSkipped() int {
	n := 0
	for _, v := range s.Skipped {
		n += v
	}
	return n
}

// Normalize converts every row of d. Events come back unsorted.
func (n *Normalizer) Normalize(d Dataset) ([]calendar.Event, Stats, error) {
	stats := newStats()
	var events []calendar.Event
	var err error

	if events, err = normalizeRows(n, &stats, events, SourceLeases, d.Leases,
		func(l Lease) string { return l.ID }, LeaseDrafts); err != nil {
		return nil, stats, err
	}
	if events, err = normalizeRows(n, &stats, events, SourceTransactions, d.Transactions,
		func(t Transaction) string { return t.ID }, TransactionDrafts); err != nil {
		return nil, stats, err
	}
	if events, err = normalizeRows(n, &stats, events, SourceMaintenance, d.MaintenanceRequests,
		func(m MaintenanceRequest) string { return m.ID }, MaintenanceDrafts); err != nil {
		return nil, stats, err
	}
	if events, err = normalizeRows(n, &stats, events, SourceInspections, d.Inspections,
		func(i Inspection) string { return i.ID }, InspectionDrafts); err != nil {
		return nil, stats, err
	}
	if events, err = normalizeRows(n, &stats, events, SourceAppliances, d.Appliances,
		func(a Appliance) string { return a.ID }, ApplianceDrafts); err != nil {
		return nil, stats, err
	}
	if events, err = normalizeRows(n, &stats, events, SourceCustomEvents, d.CustomEvents,
		func(c CustomEvent) string { return c.ID }, CustomEventDrafts); err != nil {
		return nil, stats, err
	}
	if events == nil {
		events = []calendar.Event{}
	}
	return events, stats, nil
}

func normalizeRows[T any](n *Normalizer, stats *Stats, out []calendar.Event, kind SourceKind, rows []T,
	id func(T) string, rule func(T) ([]calendar.Draft, error)) ([]calendar.Event, error) {
	for _, row := range rows {
		stats.Rows[kind]++
		built, err := n.row(rule(row))
		if err != nil {
			var rec *calendar.SourceRecordError
			if !errors.As(err, &rec) {
				return nil, fmt.Errorf("normalize %s %s: %w", kind, id(row), err)
			}
			stats.Skipped[kind]++
			n.logger().Warn("skipping source row",
				zap.String("kind", string(kind)),
				zap.String("id", id(row)),
				zap.String("field", rec.Field),
				zap.String("reason", rec.Reason),
			)
			continue
		}
		for _, r := range built.truncated {
			stats.Truncated++
			n.logger().Warn("recurrence truncated",
				zap.String("kind", string(kind)),
				zap.String("id", r),
			)
		}
		stats.Events[kind] += len(built.events)
		out = append(out, built.events...)
	}
	return out, nil
}

type builtRow struct {
	events    []calendar.Event
	truncated []string
}

// row builds every draft of one row. Any invalid draft discards the whole row.
func (n *Normalizer) row(drafts []calendar.Draft, err error) (builtRow, error) {
	var res builtRow
	if err != nil {
		return res, err
	}
	for _, d := range drafts {
		occurrences := []calendar.Draft{d}
		if d.IsRecurring && !n.Window.Start.IsZero() {
			exp, err := calendar.Expand(d, calendar.ExpandConfig{Window: n.Window, MaxOccurrences: n.MaxOccurrences})
			if err != nil {
				return builtRow{}, err
			}
			if exp.Truncated {
				res.truncated = append(res.truncated, d.ID)
			}
			occurrences = exp.Drafts
		}
		for _, o := range occurrences {
			ev, err := n.Builder.Build(o)
			if err != nil {
				return builtRow{}, err
			}
			res.events = append(res.events, ev)
		}
	}
	return res, nil
}

func (n *Normalizer) logger() *zap.Logger {
	if n.Logger == nil {
		return zap.NewNop()
	}
	return n.Logger
}

// =============================================================================
// RULES
// =============================================================================

func invalid(kind calendar.RelatedType, id, field, reason string) error {
	return &calendar.SourceRecordError{Kind: string(kind), ID: id, Field: field, Reason: reason}
}

// LeaseDrafts emits start, end and renewal events. A lease without a start
// date is skipped entirely, even when its other dates are valid.
func LeaseDrafts(l Lease) ([]calendar.Draft, error) {
	if l.StartDate.IsZero() {
		return nil, invalid(calendar.RelatedLease, l.ID, "start_date", "is missing")
	}
	if !l.EndDate.IsZero() && l.EndDate.Before(l.StartDate) {
		return nil, invalid(calendar.RelatedLease, l.ID, "end_date", "precedes start_date")
	}

	who := "Tenant"
	if l.Tenant != nil && l.Tenant.Name != "" {
		who = l.Tenant.Name
	}
	base := calendar.Draft{
		RelatedID:   l.ID,
		RelatedType: calendar.RelatedLease,
		AllDay:      true,
		Description: leaseDescription(l),
		PropertyID:  l.PropertyID,
		UnitID:      l.UnitID,
		AssigneeID:  l.TenantID,
		Property:    l.Property.ref(),
		Unit:        l.Unit.ref(),
		Assignee:    l.Tenant.assignee(calendar.AssigneeTenant),
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}

	start := base
	start.ID = "lease_start_" + l.ID
	start.Type = calendar.TypeLeaseStart
	start.Date = l.StartDate
	start.Title = "Lease Start: " + who
	drafts := []calendar.Draft{start}

	if !l.EndDate.IsZero() {
		end := base
		end.ID = "lease_end_" + l.ID
		end.Type = calendar.TypeLeaseEnd
		end.Date = l.EndDate
		end.Title = "Lease End: " + who
		drafts = append(drafts, end)
	}

	renewal := l.RenewalDate
	if renewal.IsZero() && l.RenewalNoticeDays > 0 && !l.EndDate.IsZero() {
		renewal = l.EndDate.AddDays(-l.RenewalNoticeDays)
	}
	if !renewal.IsZero() && renewal.AfterOrEqual(l.StartDate) {
		r := base
		r.ID = "lease_renewal_" + l.ID
		r.Type = calendar.TypeLeaseRenewal
		r.Date = renewal
		r.Title = "Lease Renewal Due: " + who
		drafts = append(drafts, r)
	}

	for i := range drafts {
		drafts[i].Explicit = leaseStatus(l.Status, drafts[i].Type)
	}
	return drafts, nil
}

// leaseStatus marks milestones a lease has already passed.
func leaseStatus(s LeaseStatus, t calendar.EventType) calendar.EventStatus {
	switch s {
	case LeaseTerminated:
		return calendar.StatusCancelled
	case LeaseExpired:
		return calendar.StatusCompleted
	case LeaseActive:
		if t == calendar.TypeLeaseStart {
			return calendar.StatusCompleted
		}
	}
	return ""
}

func leaseDescription(l Lease) string {
	var parts []string
	if l.Unit != nil && l.Unit.UnitNumber != "" {
		parts = append(parts, "Unit "+l.Unit.UnitNumber)
	}
	if l.RentAmount.IsPositive() {
		parts = append(parts, "Rent $"+l.RentAmount.StringFixed(2)+"/month")
	}
	return strings.Join(parts, " · ")
}

// TransactionDrafts emits one rent_due or expense_due event.
func TransactionDrafts(t Transaction) ([]calendar.Draft, error) {
	var typ calendar.EventType
	switch t.Kind {
	case TransactionIncome:
		typ = calendar.TypeRentDue
	case TransactionExpense:
		typ = calendar.TypeExpenseDue
	default:
		return nil, invalid(calendar.RelatedTransaction, t.ID, "type", fmt.Sprintf("unknown transaction type %q", t.Kind))
	}

	date := t.DueDate
	if date.IsZero() && t.Kind == TransactionIncome && t.RentDueDay > 0 && !t.TransactionDate.IsZero() {
		date = calendar.DayInMonth(t.TransactionDate, t.RentDueDay)
	}
	if date.IsZero() {
		date = t.TransactionDate
	}
	if date.IsZero() {
		return nil, invalid(calendar.RelatedTransaction, t.ID, "due_date", "is missing (no transaction_date either)")
	}

	var explicit calendar.EventStatus
	switch t.Status {
	case TransactionPaid:
		explicit = calendar.StatusCompleted
	case TransactionVoid, TransactionCancelled:
		explicit = calendar.StatusCancelled
	}

	d := calendar.Draft{
		ID:          "transaction_" + t.ID,
		RelatedID:   t.ID,
		RelatedType: calendar.RelatedTransaction,
		Type:        typ,
		Date:        date,
		AllDay:      true,
		Title:       transactionTitle(t),
		Description: t.Description,
		PropertyID:  t.PropertyID,
		UnitID:      t.UnitID,
		Property:    t.Property.ref(),
		Unit:        t.Unit.ref(),
		Explicit:    explicit,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.Kind == TransactionIncome {
		d.Assignee = t.Tenant.assignee(calendar.AssigneeTenant)
	}
	return []calendar.Draft{d}, nil
}

func transactionTitle(t Transaction) string {
	amount := "$" + t.Amount.StringFixed(2)
	if t.Kind == TransactionIncome {
		return "Rent Due: " + amount
	}
	what := humanize(t.Category)
	if what == "" {
		what = "Expense"
	}
	return what + ": " + amount
}

// MaintenanceDrafts emits one maintenance event.
func MaintenanceDrafts(m MaintenanceRequest) ([]calendar.Draft, error) {
	date := m.ScheduledDate
	if date.IsZero() {
		date = m.DueDate
	}
	if date.IsZero() {
		return nil, invalid(calendar.RelatedMaintenance, m.ID, "scheduled_date", "is missing (no due_date either)")
	}

	var explicit calendar.EventStatus
	switch m.Status {
	case MaintenanceCompleted:
		explicit = calendar.StatusCompleted
	case MaintenanceCancelled:
		explicit = calendar.StatusCancelled
	}

	title := m.Title
	if title == "" {
		title = "Maintenance Request"
	}
	assignee := m.Vendor.assignee(calendar.AssigneeVendor)
	if assignee == nil {
		assignee = m.Team.assignee(calendar.AssigneeTeam)
	}
	return []calendar.Draft{{
		ID:          "maintenance_" + m.ID,
		RelatedID:   m.ID,
		RelatedType: calendar.RelatedMaintenance,
		Type:        calendar.TypeMaintenance,
		Date:        date,
		AllDay:      true,
		Title:       title,
		Description: m.Description,
		PropertyID:  m.PropertyID,
		UnitID:      m.UnitID,
		Property:    m.Property.ref(),
		Unit:        m.Unit.ref(),
		Assignee:    assignee,
		Explicit:    explicit,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}}, nil
}

// InspectionDrafts emits one inspection event, timed when scheduled_time is set.
func InspectionDrafts(i Inspection) ([]calendar.Draft, error) {
	if i.ScheduledDate.IsZero() {
		return nil, invalid(calendar.RelatedInspection, i.ID, "scheduled_date", "is missing")
	}

	var explicit calendar.EventStatus
	switch i.Status {
	case InspectionCompleted:
		explicit = calendar.StatusCompleted
	case InspectionCancelled:
		explicit = calendar.StatusCancelled
	}

	title := "Inspection"
	if kind := humanize(i.InspectionType); kind != "" {
		title = kind + " Inspection"
	}
	return []calendar.Draft{{
		ID:          "inspection_" + i.ID,
		RelatedID:   i.ID,
		RelatedType: calendar.RelatedInspection,
		Type:        calendar.TypeInspection,
		Date:        i.ScheduledDate,
		Time:        i.ScheduledTime,
		AllDay:      i.ScheduledTime == "",
		Title:       title,
		Description: i.Notes,
		PropertyID:  i.PropertyID,
		UnitID:      i.UnitID,
		Property:    i.Property.ref(),
		Unit:        i.Unit.ref(),
		Assignee:    i.Inspector.assignee(calendar.AssigneeTeam),
		Explicit:    explicit,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}}, nil
}

// ApplianceDrafts emits a service check and a warranty expiry, each only when
// its date is set. An appliance with neither produces nothing and is valid.
func ApplianceDrafts(a Appliance) ([]calendar.Draft, error) {
	base := calendar.Draft{
		RelatedID:   a.ID,
		RelatedType: calendar.RelatedAppliance,
		AllDay:      true,
		PropertyID:  a.PropertyID,
		UnitID:      a.UnitID,
		Property:    a.Property.ref(),
		Unit:        a.Unit.ref(),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
	name := a.DisplayName()
	if name == "" {
		name = "Appliance"
	}

	var drafts []calendar.Draft
	if !a.NextServiceDate.IsZero() {
		d := base
		d.ID = "appliance_check_" + a.ID
		d.Type = calendar.TypeApplianceCheck
		d.Date = a.NextServiceDate
		d.Title = "Service Due: " + name
		if !a.LastServiceDate.IsZero() {
			d.Description = "Last serviced " + a.LastServiceDate.String()
		}
		drafts = append(drafts, d)
	}
	if !a.WarrantyExpiration.IsZero() {
		d := base
		d.ID = "appliance_warranty_" + a.ID
		d.Type = calendar.TypeApplianceWarranty
		d.Date = a.WarrantyExpiration
		d.Title = "Warranty Expires: " + name
		if a.Model != "" {
			d.Description = "Model " + a.Model
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

// CustomEventDrafts emits one draft; recurrence is expanded by the normalizer.
func CustomEventDrafts(c CustomEvent) ([]calendar.Draft, error) {
	if c.Date.IsZero() {
		return nil, invalid(calendar.RelatedCustomEvent, c.ID, "date", "is missing")
	}
	typ := c.EventType
	if typ == "" {
		typ = calendar.TypeCustom
	}

	d := calendar.Draft{
		ID:               "custom_" + c.ID,
		RelatedID:        c.ID,
		RelatedType:      calendar.RelatedCustomEvent,
		Type:             typ,
		Date:             c.Date,
		Time:             c.Time,
		AllDay:           c.AllDay,
		Title:            c.Title,
		Description:      c.Description,
		PropertyID:       c.PropertyID,
		UnitID:           c.UnitID,
		AssigneeID:       c.AssigneeID,
		Property:         c.Property.ref(),
		Unit:             c.Unit.ref(),
		Explicit:         c.Status,
		IsRecurring:      c.IsRecurring,
		RecurringPattern: c.RecurringPattern,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
	if !c.EndDate.IsZero() {
		end := c.EndDate
		d.EndDate = &end
	}
	if c.Assignee != nil {
		t := c.AssigneeType
		if t == "" {
			t = calendar.AssigneeTeam
		}
		d.Assignee = c.Assignee.assignee(t)
	}
	return []calendar.Draft{d}, nil
}

// humanize turns "move_in" into "Move In".
func humanize(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
