/*
rows.go - Domain rows read from the property-management store

PURPOSE:
  The shapes the normalizer consumes. Each row mirrors one table plus the
  join snapshots (property, unit, person) the store query already resolved.
  Field names follow the storage columns so a JSON export decodes directly.

SOURCES:
  leases               -> lease_start, lease_end, lease_renewal
  transactions         -> rent_due | expense_due
  maintenance_requests -> maintenance
  inspections          -> inspection
  appliances           -> appliance_check, appliance_warranty
  custom_events        -> custom | insurance_expiration | any registered type

SEE ALSO:
  - normalize.go: One rule per source
  - source.go: Query and mutation interfaces
*/
package property

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/property-engine/calendar"
)

// =============================================================================
// JOIN SNAPSHOTS
// =============================================================================

// PropertyRef is the building a row belongs to.
type PropertyRef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// UnitRef is the unit a row belongs to.
type UnitRef struct {
	ID         string `json:"id"`
	UnitNumber string `json:"unit_number"`
}

// PersonRef is a tenant, vendor or team member.
type PersonRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (p *PropertyRef) ref() *calendar.Ref {
	if p == nil {
		return nil
	}
	return &calendar.Ref{ID: p.ID, Name: p.Name}
}

func (u *UnitRef) ref() *calendar.Ref {
	if u == nil {
		return nil
	}
	return &calendar.Ref{ID: u.ID, Name: "Unit " + u.UnitNumber}
}

func (p *PersonRef) assignee(t calendar.AssigneeType) *calendar.Assignee {
	if p == nil || p.ID == "" {
		return nil
	}
	return &calendar.Assignee{ID: p.ID, Name: p.Name, Type: t}
}

// =============================================================================
// LEASES
// =============================================================================

type LeaseStatus string

const (
	LeasePending    LeaseStatus = "pending"
	LeaseActive     LeaseStatus = "active"
	LeaseExpired    LeaseStatus = "expired"
	LeaseTerminated LeaseStatus = "terminated"
)

type Lease struct {
	ID         string      `json:"id"`
	PropertyID string      `json:"property_id"`
	UnitID     string      `json:"unit_id"`
	TenantID   string      `json:"tenant_id"`
	Status     LeaseStatus `json:"status"`

	StartDate   calendar.Date `json:"start_date"`
	EndDate     calendar.Date `json:"end_date"`
	RenewalDate calendar.Date `json:"renewal_date"`

	// RenewalNoticeDays derives the renewal reminder when RenewalDate is unset.
	RenewalNoticeDays int `json:"renewal_notice_days,omitempty"`

	RentAmount decimal.Decimal `json:"rent_amount"`
	RentDueDay int             `json:"rent_due_day,omitempty"`

	Property *PropertyRef `json:"property,omitempty"`
	Unit     *UnitRef     `json:"unit,omitempty"`
	Tenant   *PersonRef   `json:"tenant,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type TransactionKind string

const (
	TransactionIncome  TransactionKind = "income"
	TransactionExpense TransactionKind = "expense"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionPaid      TransactionStatus = "paid"
	TransactionOverdue   TransactionStatus = "overdue"
	TransactionVoid      TransactionStatus = "void"
	TransactionCancelled TransactionStatus = "cancelled"
)

type Transaction struct {
	ID          string            `json:"id"`
	PropertyID  string            `json:"property_id"`
	UnitID      string            `json:"unit_id"`
	LeaseID     string            `json:"lease_id,omitempty"`
	Kind        TransactionKind   `json:"type"`
	Category    string            `json:"category"`
	Description string            `json:"description"`
	Amount      decimal.Decimal   `json:"amount"`
	Status      TransactionStatus `json:"status"`

	TransactionDate calendar.Date `json:"transaction_date"`
	DueDate         calendar.Date `json:"due_date"`

	// RentDueDay comes from the lease join; 0 when there is no lease.
	RentDueDay int `json:"rent_due_day,omitempty"`

	Property *PropertyRef `json:"property,omitempty"`
	Unit     *UnitRef     `json:"unit,omitempty"`
	Tenant   *PersonRef   `json:"tenant,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// MAINTENANCE
// =============================================================================

type MaintenanceStatus string

const (
	MaintenanceOpen       MaintenanceStatus = "open"
	MaintenanceInProgress MaintenanceStatus = "in_progress"
	MaintenanceCompleted  MaintenanceStatus = "completed"
	MaintenanceCancelled  MaintenanceStatus = "cancelled"
)

type MaintenanceRequest struct {
	ID          string            `json:"id"`
	PropertyID  string            `json:"property_id"`
	UnitID      string            `json:"unit_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Priority    string            `json:"priority"`
	Status      MaintenanceStatus `json:"status"`

	ScheduledDate calendar.Date `json:"scheduled_date"`
	DueDate       calendar.Date `json:"due_date"`
	CompletedDate calendar.Date `json:"completed_date"`

	// Vendor wins over Team when both are set.
	Vendor *PersonRef `json:"vendor,omitempty"`
	Team   *PersonRef `json:"assigned_to,omitempty"`

	Property *PropertyRef `json:"property,omitempty"`
	Unit     *UnitRef     `json:"unit,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// INSPECTIONS
// =============================================================================

type InspectionStatus string

const (
	InspectionScheduled InspectionStatus = "scheduled"
	InspectionCompleted InspectionStatus = "completed"
	InspectionCancelled InspectionStatus = "cancelled"
)

type Inspection struct {
	ID             string           `json:"id"`
	PropertyID     string           `json:"property_id"`
	UnitID         string           `json:"unit_id"`
	InspectionType string           `json:"inspection_type"`
	Notes          string           `json:"notes"`
	Status         InspectionStatus `json:"status"`

	ScheduledDate calendar.Date `json:"scheduled_date"`
	ScheduledTime string        `json:"scheduled_time,omitempty"`
	CompletedDate calendar.Date `json:"completed_date"`

	Inspector *PersonRef   `json:"inspector,omitempty"`
	Property  *PropertyRef `json:"property,omitempty"`
	Unit      *UnitRef     `json:"unit,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// APPLIANCES
// =============================================================================

type Appliance struct {
	ID         string `json:"id"`
	PropertyID string `json:"property_id"`
	UnitID     string `json:"unit_id"`
	Name       string `json:"name"`
	Brand      string `json:"brand,omitempty"`
	Model      string `json:"model,omitempty"`

	LastServiceDate    calendar.Date `json:"last_service_date"`
	NextServiceDate    calendar.Date `json:"next_service_date"`
	WarrantyExpiration calendar.Date `json:"warranty_expiration"`

	// ServiceIntervalDays moves NextServiceDate forward when a check is completed.
	ServiceIntervalDays int `json:"service_interval_days,omitempty"`

	Property *PropertyRef `json:"property,omitempty"`
	Unit     *UnitRef     `json:"unit,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName is "Brand Name" when the brand is known.
func (a Appliance) DisplayName() string {
	return strings.TrimSpace(a.Brand + " " + a.Name)
}

// =============================================================================
// CUSTOM EVENTS
// =============================================================================

// CustomEvent is the only event that is stored as an event. Its EventType is
// any registered type; insurance expirations are custom rows.
type CustomEvent struct {
	ID          string             `json:"id"`
	PropertyID  string             `json:"property_id,omitempty"`
	UnitID      string             `json:"unit_id,omitempty"`
	EventType   calendar.EventType `json:"event_type"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`

	Date    calendar.Date `json:"date"`
	EndDate calendar.Date `json:"end_date"`
	Time    string        `json:"time,omitempty"`
	AllDay  bool          `json:"all_day"`

	// Status is authoritative only when terminal.
	Status calendar.EventStatus `json:"status,omitempty"`

	IsRecurring      bool                      `json:"is_recurring"`
	RecurringPattern calendar.RecurringPattern `json:"recurring_pattern,omitempty"`

	AssigneeID   string                `json:"assignee_id,omitempty"`
	AssigneeType calendar.AssigneeType `json:"assignee_type,omitempty"`
	Assignee     *PersonRef            `json:"assignee,omitempty"`

	Property *PropertyRef `json:"property,omitempty"`
	Unit     *UnitRef     `json:"unit,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields a custom event must carry to be stored.
func (c CustomEvent) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: title is required", calendar.ErrInvalidInput)
	}
	if c.Date.IsZero() {
		return fmt.Errorf("%w: date is required", calendar.ErrInvalidInput)
	}
	if !c.EndDate.IsZero() && c.EndDate.Before(c.Date) {
		return fmt.Errorf("%w: end_date precedes date", calendar.ErrInvalidInput)
	}
	if c.EventType != "" && !c.EventType.Valid() {
		return &calendar.UnknownEventTypeError{Type: c.EventType}
	}
	if c.Time != "" && !calendar.ValidClock(c.Time) {
		return fmt.Errorf("%w: time %q is not HH:MM", calendar.ErrInvalidInput, c.Time)
	}
	if c.Status != "" && !c.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", calendar.ErrInvalidInput, c.Status)
	}
	if c.IsRecurring && !c.RecurringPattern.Valid() {
		return fmt.Errorf("%w: recurring event needs a daily|weekly|monthly|yearly pattern", calendar.ErrInvalidInput)
	}
	if c.AssigneeType != "" && !c.AssigneeType.Valid() {
		return fmt.Errorf("%w: unknown assignee type %q", calendar.ErrInvalidInput, c.AssigneeType)
	}
	return nil
}

// CustomEventPatch is a partial update. Nil fields are left unchanged.
type CustomEventPatch struct {
	EventType        *calendar.EventType        `json:"event_type,omitempty"`
	Title            *string                    `json:"title,omitempty"`
	Description      *string                    `json:"description,omitempty"`
	Date             *calendar.Date             `json:"date,omitempty"`
	EndDate          *calendar.Date             `json:"end_date,omitempty"`
	Time             *string                    `json:"time,omitempty"`
	AllDay           *bool                      `json:"all_day,omitempty"`
	Status           *calendar.EventStatus      `json:"status,omitempty"`
	IsRecurring      *bool                      `json:"is_recurring,omitempty"`
	RecurringPattern *calendar.RecurringPattern `json:"recurring_pattern,omitempty"`
	PropertyID       *string                    `json:"property_id,omitempty"`
	UnitID           *string                    `json:"unit_id,omitempty"`
}

// Apply returns c with the patch applied.
func (p CustomEventPatch) Apply(c CustomEvent) CustomEvent {
	if p.EventType != nil {
		c.EventType = *p.EventType
	}
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Date != nil {
		c.Date = *p.Date
	}
	if p.EndDate != nil {
		c.EndDate = *p.EndDate
	}
	if p.Time != nil {
		c.Time = *p.Time
	}
	if p.AllDay != nil {
		c.AllDay = *p.AllDay
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.IsRecurring != nil {
		c.IsRecurring = *p.IsRecurring
	}
	if p.RecurringPattern != nil {
		c.RecurringPattern = *p.RecurringPattern
	}
	if p.PropertyID != nil {
		c.PropertyID = *p.PropertyID
	}
	if p.UnitID != nil {
		c.UnitID = *p.UnitID
	}
	return c
}

// =============================================================================
// DATASET - Every row the calendar is built from
// =============================================================================

// Dataset is one fetch (or one import) across all sources.
type Dataset struct {
	Properties          []PropertyRef        `json:"properties,omitempty"`
	Units               []Unit               `json:"units,omitempty"`
	People              []Person             `json:"people,omitempty"`
	Leases              []Lease              `json:"leases"`
	Transactions        []Transaction        `json:"transactions"`
	MaintenanceRequests []MaintenanceRequest `json:"maintenance_requests"`
	Inspections         []Inspection         `json:"inspections"`
	Appliances          []Appliance          `json:"appliances"`
	CustomEvents        []CustomEvent        `json:"custom_events"`
}

// Unit is a unit row for imports; queries return UnitRef snapshots instead.
type Unit struct {
	ID         string `json:"id"`
	PropertyID string `json:"property_id"`
	UnitNumber string `json:"unit_number"`
}

// PersonKind separates tenants, vendors and team members in the people table.
type PersonKind string

const (
	PersonTenant PersonKind = "tenant"
	PersonVendor PersonKind = "vendor"
	PersonTeam   PersonKind = "team"
)

// Person is a people row for imports.
type Person struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Kind PersonKind `json:"kind"`
}

// Rows is the total number of event-producing rows.
func (d Dataset) Rows() int {
	return len(d.Leases) + len(d.Transactions) + len(d.MaintenanceRequests) +
		len(d.Inspections) + len(d.Appliances) + len(d.CustomEvents)
}
