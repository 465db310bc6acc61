package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/warp/property-engine/calendar"
	"github.com/warp/property-engine/property"
)

// =============================================================================
// MUTATOR
// =============================================================================

// update runs one UPDATE under the write lock and publishes on success.
func (s *Store) update(ctx context.Context, kind property.SourceKind, table, id, query string, args ...any) error {
	s.mu.Lock()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err == nil {
		err = requireRow(res, table, id)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish(ctx, property.ChangeUpdated, kind, id)
	return nil
}

func (s *Store) CompleteMaintenance(ctx context.Context, id string, on calendar.Date) error {
	return s.update(ctx, property.SourceMaintenance, "maintenance request", id,
		`UPDATE maintenance_requests SET status = ?, completed_date = ?, updated_at = ? WHERE id = ?`,
		string(property.MaintenanceCompleted), dateArg(on), s.stampNow(), id)
}

func (s *Store) CompleteInspection(ctx context.Context, id string, on calendar.Date) error {
	return s.update(ctx, property.SourceInspections, "inspection", id,
		`UPDATE inspections SET status = ?, completed_date = ?, updated_at = ? WHERE id = ?`,
		string(property.InspectionCompleted), dateArg(on), s.stampNow(), id)
}

// RecordApplianceService moves next_service_date forward by the interval,
// or clears it when the appliance has none.
func (s *Store) RecordApplianceService(ctx context.Context, id string, on calendar.Date) error {
	return s.update(ctx, property.SourceAppliances, "appliance", id, `
		UPDATE appliances SET
			last_service_date = ?,
			next_service_date = CASE WHEN service_interval_days > 0
				THEN date(?, '+' || service_interval_days || ' days') ELSE NULL END,
			updated_at = ?
		WHERE id = ?`,
		dateArg(on), dateArg(on), s.stampNow(), id)
}

// rescheduleTarget is the table and column a DateField writes to.
type rescheduleTarget struct {
	kind   property.SourceKind
	table  string
	label  string
	column string
}

var rescheduleTargets = map[property.DateField]rescheduleTarget{
	property.FieldLeaseStart:        {property.SourceLeases, "leases", "lease", "start_date"},
	property.FieldLeaseEnd:          {property.SourceLeases, "leases", "lease", "end_date"},
	property.FieldLeaseRenewal:      {property.SourceLeases, "leases", "lease", "renewal_date"},
	property.FieldTransactionDue:    {property.SourceTransactions, "transactions", "transaction", "due_date"},
	property.FieldMaintenanceDate:   {property.SourceMaintenance, "maintenance_requests", "maintenance request", "scheduled_date"},
	property.FieldInspectionDate:    {property.SourceInspections, "inspections", "inspection", "scheduled_date"},
	property.FieldApplianceService:  {property.SourceAppliances, "appliances", "appliance", "next_service_date"},
	property.FieldApplianceWarranty: {property.SourceAppliances, "appliances", "appliance", "warranty_expiration"},
}

func (s *Store) Reschedule(ctx context.Context, r property.Reschedule) error {
	if r.Date.IsZero() {
		return fmt.Errorf("%w: reschedule needs a date", calendar.ErrInvalidInput)
	}
	if r.Field == property.FieldCustomEventDate {
		return s.rescheduleCustomEvent(ctx, r)
	}

	target, ok := rescheduleTargets[r.Field]
	if !ok {
		return fmt.Errorf("%w: unknown date field %q", calendar.ErrInvalidInput, r.Field)
	}
	if r.Field == property.FieldInspectionDate && r.Clock != "" {
		return s.update(ctx, target.kind, target.label, r.ID,
			`UPDATE inspections SET scheduled_date = ?, scheduled_time = ?, updated_at = ? WHERE id = ?`,
			dateArg(r.Date), r.Clock, s.stampNow(), r.ID)
	}
	return s.update(ctx, target.kind, target.label, r.ID,
		"UPDATE "+target.table+" SET "+target.column+" = ?, updated_at = ? WHERE id = ?",
		dateArg(r.Date), s.stampNow(), r.ID)
}

// rescheduleCustomEvent keeps a multi-day event's span.
func (s *Store) rescheduleCustomEvent(ctx context.Context, r property.Reschedule) error {
	s.mu.Lock()
	c, err := s.getCustomEvent(ctx, r.ID)
	if err == nil {
		if !c.EndDate.IsZero() {
			c.EndDate = r.Date.AddDays(calendar.DaysBetween(c.Date, c.EndDate))
		}
		c.Date = r.Date
		if r.Clock != "" {
			c.Time = r.Clock
			c.AllDay = false
		}
		c.UpdatedAt = s.now().UTC()
		err = upsertCustomEvent(ctx, s.db, c)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish(ctx, property.ChangeUpdated, property.SourceCustomEvents, r.ID)
	return nil
}

func (s *Store) CancelCustomEvent(ctx context.Context, id string) error {
	cancelled := calendar.StatusCancelled
	_, err := s.UpdateCustomEvent(ctx, id, property.CustomEventPatch{Status: &cancelled})
	return err
}

// =============================================================================
// CUSTOM EVENTS
// =============================================================================

func (s *Store) CreateCustomEvent(ctx context.Context, ce property.CustomEvent) (property.CustomEvent, error) {
	if ce.ID == "" {
		ce.ID = uuid.NewString()
	}
	if ce.EventType == "" {
		ce.EventType = calendar.TypeCustom
	}
	if err := ce.Validate(); err != nil {
		return property.CustomEvent{}, err
	}

	s.mu.Lock()
	now := s.now().UTC()
	ce.CreatedAt, ce.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO custom_events
		(id, property_id, unit_id, event_type, title, description, date, end_date, time, all_day,
		 status, is_recurring, recurring_pattern, assignee_id, assignee_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, customEventArgs(ce)...)
	if err == nil {
		ce, err = s.getCustomEvent(ctx, ce.ID)
	}
	s.mu.Unlock()
	if err != nil {
		if isUniqueConstraintError(err) {
			return property.CustomEvent{}, fmt.Errorf("%w: custom event %q already exists", calendar.ErrInvalidInput, ce.ID)
		}
		return property.CustomEvent{}, err
	}

	s.publish(ctx, property.ChangeCreated, property.SourceCustomEvents, ce.ID)
	return ce, nil
}

func (s *Store) GetCustomEvent(ctx context.Context, id string) (property.CustomEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getCustomEvent(ctx, id)
}

func (s *Store) UpdateCustomEvent(ctx context.Context, id string, patch property.CustomEventPatch) (property.CustomEvent, error) {
	s.mu.Lock()
	ce, err := s.getCustomEvent(ctx, id)
	if err == nil {
		ce = patch.Apply(ce)
		err = ce.Validate()
	}
	if err == nil {
		ce.UpdatedAt = s.now().UTC()
		err = upsertCustomEvent(ctx, s.db, ce)
	}
	if err == nil {
		ce, err = s.getCustomEvent(ctx, id)
	}
	s.mu.Unlock()
	if err != nil {
		return property.CustomEvent{}, err
	}

	s.publish(ctx, property.ChangeUpdated, property.SourceCustomEvents, id)
	return ce, nil
}

func (s *Store) DeleteCustomEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM custom_events WHERE id = ?`, id)
	if err == nil {
		err = requireRow(res, "custom event", id)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish(ctx, property.ChangeDeleted, property.SourceCustomEvents, id)
	return nil
}

func upsertCustomEvent(ctx context.Context, db execer, ce property.CustomEvent) error {
	if ce.EventType == "" {
		ce.EventType = calendar.TypeCustom
	}
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO custom_events
		(id, property_id, unit_id, event_type, title, description, date, end_date, time, all_day,
		 status, is_recurring, recurring_pattern, assignee_id, assignee_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, customEventArgs(ce)...)
	if err != nil {
		return fmt.Errorf("failed to write custom event %s: %w", ce.ID, err)
	}
	return nil
}

func customEventArgs(ce property.CustomEvent) []any {
	return []any{
		ce.ID, nullString(ce.PropertyID), nullString(ce.UnitID), string(ce.EventType), ce.Title,
		nullString(ce.Description), dateArg(ce.Date), dateArg(ce.EndDate), nullString(ce.Time), ce.AllDay,
		nullString(string(ce.Status)), ce.IsRecurring, nullString(string(ce.RecurringPattern)),
		nullString(ce.AssigneeID), nullString(string(ce.AssigneeType)),
		stamp(ce.CreatedAt, ce.UpdatedAt), stamp(ce.UpdatedAt, ce.CreatedAt),
	}
}

func (s *Store) stampNow() string {
	return s.now().UTC().Format(time.RFC3339)
}

// isUniqueConstraintError checks if the error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

var _ execer = (*sql.DB)(nil)
var _ execer = (*sql.Tx)(nil)
