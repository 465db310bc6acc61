package property

import (
	"context"
	"fmt"

	"github.com/warp/property-engine/calendar"
)

// =============================================================================
// SOURCE KINDS
// =============================================================================

// SourceKind names one of the tables events are derived from.
type SourceKind string

const (
	SourceLeases       SourceKind = "leases"
	SourceTransactions SourceKind = "transactions"
	SourceMaintenance  SourceKind = "maintenance_requests"
	SourceInspections  SourceKind = "inspections"
	SourceAppliances   SourceKind = "appliances"
	SourceCustomEvents SourceKind = "custom_events"
)

// AllSourceKinds returns every source in fetch order.
func AllSourceKinds() []SourceKind {
	return []SourceKind{
		SourceLeases, SourceTransactions, SourceMaintenance,
		SourceInspections, SourceAppliances, SourceCustomEvents,
	}
}

// =============================================================================
// QUERY INTERFACE
// =============================================================================

// Query narrows what a Source returns. An empty PropertyIDs means all
// properties. Rows outside the query may still be returned; the aggregator
// applies the authoritative filter.
type Query struct {
	PropertyIDs []string
}

// Source reads the rows events are built from, with join snapshots resolved.
type Source interface {
	Leases(ctx context.Context, q Query) ([]Lease, error)
	Transactions(ctx context.Context, q Query) ([]Transaction, error)
	MaintenanceRequests(ctx context.Context, q Query) ([]MaintenanceRequest, error)
	Inspections(ctx context.Context, q Query) ([]Inspection, error)
	Appliances(ctx context.Context, q Query) ([]Appliance, error)
	CustomEvents(ctx context.Context, q Query) ([]CustomEvent, error)
}

// =============================================================================
// MUTATION INTERFACE
// =============================================================================

// DateField names the column a reschedule writes to.
type DateField string

const (
	FieldLeaseStart        DateField = "leases.start_date"
	FieldLeaseEnd          DateField = "leases.end_date"
	FieldLeaseRenewal      DateField = "leases.renewal_date"
	FieldTransactionDue    DateField = "transactions.due_date"
	FieldMaintenanceDate   DateField = "maintenance_requests.scheduled_date"
	FieldInspectionDate    DateField = "inspections.scheduled_date"
	FieldApplianceService  DateField = "appliances.next_service_date"
	FieldApplianceWarranty DateField = "appliances.warranty_expiration"
	FieldCustomEventDate   DateField = "custom_events.date"
)

// RescheduleField returns the column that holds the date of e.
func RescheduleField(e calendar.Event) (DateField, bool) {
	switch e.RelatedType {
	case calendar.RelatedCustomEvent:
		return FieldCustomEventDate, true
	case calendar.RelatedTransaction:
		return FieldTransactionDue, true
	case calendar.RelatedMaintenance:
		return FieldMaintenanceDate, true
	case calendar.RelatedInspection:
		return FieldInspectionDate, true
	}
	switch e.Type {
	case calendar.TypeLeaseStart:
		return FieldLeaseStart, true
	case calendar.TypeLeaseEnd:
		return FieldLeaseEnd, true
	case calendar.TypeLeaseRenewal:
		return FieldLeaseRenewal, true
	case calendar.TypeApplianceCheck:
		return FieldApplianceService, true
	case calendar.TypeApplianceWarranty:
		return FieldApplianceWarranty, true
	}
	return "", false
}

// Reschedule moves one row's date. Clock is only stored where the row has a
// time column (inspections, custom events); elsewhere it is ignored.
type Reschedule struct {
	Field DateField
	ID    string
	Date  calendar.Date
	Clock string
}

// Mutator applies the actions the core dispatches. Every method returns an
// error wrapping calendar.ErrNotFound when the row does not exist.
type Mutator interface {
	CompleteMaintenance(ctx context.Context, id string, on calendar.Date) error
	CompleteInspection(ctx context.Context, id string, on calendar.Date) error
	// RecordApplianceService sets last_service_date to on and moves
	// next_service_date forward by the service interval (or clears it).
	RecordApplianceService(ctx context.Context, id string, on calendar.Date) error
	Reschedule(ctx context.Context, r Reschedule) error
	CancelCustomEvent(ctx context.Context, id string) error
	UpdateCustomEvent(ctx context.Context, id string, patch CustomEventPatch) (CustomEvent, error)
}

// CustomEventStore is CRUD for the only durable event entity.
type CustomEventStore interface {
	CreateCustomEvent(ctx context.Context, ce CustomEvent) (CustomEvent, error)
	GetCustomEvent(ctx context.Context, id string) (CustomEvent, error)
	UpdateCustomEvent(ctx context.Context, id string, patch CustomEventPatch) (CustomEvent, error)
	DeleteCustomEvent(ctx context.Context, id string) error
}

// Store is everything the service and API need from persistence.
type Store interface {
	Source
	Mutator
	CustomEventStore

	// Import upserts every row of d atomically.
	Import(ctx context.Context, d Dataset) error
	// Reset deletes every row.
	Reset(ctx context.Context) error
}

// =============================================================================
// ERRORS
// =============================================================================

// FetchError wraps a Source failure with the kind that failed.
type FetchError struct {
	Kind SourceKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() []error { return []error{calendar.ErrUpstreamFetch, e.Err} }

// RowNotFound builds the error Mutator implementations return for a missing row.
func RowNotFound(table, id string) error {
	return fmt.Errorf("%s %q: %w", table, id, calendar.ErrNotFound)
}
