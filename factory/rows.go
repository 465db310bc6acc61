/*
Package factory provides JSON to Go conversion for property data dumps.

PURPOSE:
  Converts a JSON export of the property-management tables into a
  property.Dataset the stores can import. This enables seeding a calendar
  from another system's export, or from hand-written fixtures, without
  code changes.

WHY JSON?
  - Matches the row shape of the upstream REST export
  - Easy to diff and keep under version control
  - Same format the export command writes back out

JSON SCHEMA:
  {
    "properties": [{"id": "p1", "name": "Maple Court", "address": "12 Maple St"}],
    "units":      [{"id": "u1", "property_id": "p1", "unit_number": "4B"}],
    "people":     [{"id": "t1", "name": "Dana Reyes", "kind": "tenant"}],
    "leases": [{
      "id": "L1", "property_id": "p1", "unit_id": "u1", "tenant_id": "t1",
      "status": "active", "start_date": "2024-07-01", "end_date": "2025-06-30",
      "rent_amount": "1450.00", "rent_due_day": 1
    }],
    "transactions":         [...],
    "maintenance_requests": [...],
    "inspections":          [...],
    "appliances":           [...],
    "custom_events": [{
      "title": "Gutter cleaning", "date": "2024-07-10",
      "is_recurring": true, "recurring_pattern": "monthly"
    }]
  }

KEY FEATURES:
  - Assigns a UUID to rows exported without an id
  - Sets defaults (statuses, custom event type)
  - Validates custom events, the only rows that are events themselves
  - Leaves other rows as they are: bad source rows are skipped and logged
    at normalization time, not rejected at import

USAGE:
  factory := NewRowFactory()

  // From JSON string
  dataset, err := factory.ParseRows(jsonString)

  // Use in system
  store.Import(ctx, dataset)

  // Round trip
  jsonStr, err := factory.ToJSON(dataset)

SEE ALSO:
  - property/rows.go: Row type definitions
  - store/sqlite/sqlite.go: Import
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/warp/property-engine/calendar"
	"github.com/warp/property-engine/property"
)

// =============================================================================
// ROW FACTORY
// =============================================================================

// RowFactory creates property datasets from JSON.
type RowFactory struct {
	newID func() string
}

// NewRowFactory creates a new row factory.
func NewRowFactory() *RowFactory {
	return &RowFactory{newID: uuid.NewString}
}

// ParseRows parses a JSON string into a Dataset.
func (f *RowFactory) ParseRows(jsonStr string) (property.Dataset, error) {
	return f.Decode(strings.NewReader(jsonStr))
}

// Decode reads one JSON dump from r.
func (f *RowFactory) Decode(r io.Reader) (property.Dataset, error) {
	var d property.Dataset
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return property.Dataset{}, fmt.Errorf("%w: failed to parse rows JSON: %v", calendar.ErrInvalidInput, err)
	}
	return f.FromDump(d)
}

// FromDump fills ids and defaults and validates custom events.
func (f *RowFactory) FromDump(d property.Dataset) (property.Dataset, error) {
	for i := range d.Properties {
		f.fillID(&d.Properties[i].ID)
	}
	for i := range d.Units {
		f.fillID(&d.Units[i].ID)
	}
	for i := range d.People {
		p := &d.People[i]
		f.fillID(&p.ID)
		if p.Kind == "" {
			p.Kind = property.PersonTeam
		}
	}
	for i := range d.Leases {
		l := &d.Leases[i]
		f.fillID(&l.ID)
		if l.Status == "" {
			l.Status = property.LeasePending
		}
	}
	for i := range d.Transactions {
		t := &d.Transactions[i]
		f.fillID(&t.ID)
		if t.Status == "" {
			t.Status = property.TransactionPending
		}
		if t.Kind == "" {
			t.Kind = property.TransactionExpense
		}
	}
	for i := range d.MaintenanceRequests {
		m := &d.MaintenanceRequests[i]
		f.fillID(&m.ID)
		if m.Status == "" {
			m.Status = property.MaintenanceOpen
		}
	}
	for i := range d.Inspections {
		in := &d.Inspections[i]
		f.fillID(&in.ID)
		if in.Status == "" {
			in.Status = property.InspectionScheduled
		}
	}
	for i := range d.Appliances {
		f.fillID(&d.Appliances[i].ID)
	}
	for i := range d.CustomEvents {
		c := &d.CustomEvents[i]
		f.fillID(&c.ID)
		if c.EventType == "" {
			c.EventType = calendar.TypeCustom
		}
		if c.Time != "" {
			clock, err := calendar.NormalizeClock(c.Time)
			if err != nil {
				return property.Dataset{}, fmt.Errorf("custom event %s: %w: %v", c.ID, calendar.ErrInvalidInput, err)
			}
			c.Time = clock
		}
		if err := c.Validate(); err != nil {
			return property.Dataset{}, fmt.Errorf("custom event %s: %w", c.ID, err)
		}
	}
	return d, nil
}

func (f *RowFactory) fillID(id *string) {
	if strings.TrimSpace(*id) == "" {
		*id = f.newID()
	}
}

// ToJSON converts a Dataset to indented JSON.
func (f *RowFactory) ToJSON(d property.Dataset) (string, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode rows JSON: %w", err)
	}
	return string(data), nil
}

// Export reads every source row of q from src, with join snapshots, so the
// result can be written with ToJSON and imported elsewhere.
func Export(ctx context.Context, src property.Source, q property.Query) (property.Dataset, error) {
	var d property.Dataset
	var err error
	if d.Leases, err = src.Leases(ctx, q); err != nil {
		return d, &property.FetchError{Kind: property.SourceLeases, Err: err}
	}
	if d.Transactions, err = src.Transactions(ctx, q); err != nil {
		return d, &property.FetchError{Kind: property.SourceTransactions, Err: err}
	}
	if d.MaintenanceRequests, err = src.MaintenanceRequests(ctx, q); err != nil {
		return d, &property.FetchError{Kind: property.SourceMaintenance, Err: err}
	}
	if d.Inspections, err = src.Inspections(ctx, q); err != nil {
		return d, &property.FetchError{Kind: property.SourceInspections, Err: err}
	}
	if d.Appliances, err = src.Appliances(ctx, q); err != nil {
		return d, &property.FetchError{Kind: property.SourceAppliances, Err: err}
	}
	if d.CustomEvents, err = src.CustomEvents(ctx, q); err != nil {
		return d, &property.FetchError{Kind: property.SourceCustomEvents, Err: err}
	}
	return d, nil
}
