package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/property-engine/calendar"
	"github.com/warp/property-engine/property"
)

// =============================================================================
// SOURCE - Row queries with join snapshots
// =============================================================================

// refs holds the LEFT JOIN columns shared by every source query.
type refs struct {
	propertyName, propertyAddress sql.NullString
	unitNumber                    sql.NullString
}

func (r refs) property(id string) *property.PropertyRef {
	if !r.propertyName.Valid {
		return nil
	}
	return &property.PropertyRef{ID: id, Name: r.propertyName.String, Address: r.propertyAddress.String}
}

func (r refs) unit(id string) *property.UnitRef {
	if !r.unitNumber.Valid {
		return nil
	}
	return &property.UnitRef{ID: id, UnitNumber: r.unitNumber.String}
}

func person(id, name sql.NullString) *property.PersonRef {
	if !id.Valid || !name.Valid {
		return nil
	}
	return &property.PersonRef{ID: id.String, Name: name.String}
}

const joinRefs = `
	LEFT JOIN properties p ON p.id = x.property_id
	LEFT JOIN units u ON u.id = x.unit_id`

// query runs a source query under the read lock and scans every row.
func query[T any](ctx context.Context, s *Store, q property.Query, base string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := propertyFilter("x.property_id", q.PropertyIDs)
	rows, err := s.db.QueryContext(ctx, base+where+" ORDER BY x.id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		row, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) Leases(ctx context.Context, q property.Query) ([]property.Lease, error) {
	return query(ctx, s, q, `
		SELECT x.id, x.property_id, x.unit_id, x.tenant_id, x.status, x.start_date, x.end_date,
		       x.renewal_date, x.renewal_notice_days, x.rent_amount, x.rent_due_day,
		       x.created_at, x.updated_at, p.name, p.address, u.unit_number, t.name
		FROM leases x`+joinRefs+`
		LEFT JOIN people t ON t.id = x.tenant_id`,
		func(rows *sql.Rows) (property.Lease, error) {
			var l property.Lease
			var propertyID, unitID, tenantID, start, end, renewal, tenantName sql.NullString
			var amount, created, updated string
			var r refs
			if err := rows.Scan(&l.ID, &propertyID, &unitID, &tenantID, &l.Status, &start, &end,
				&renewal, &l.RenewalNoticeDays, &amount, &l.RentDueDay,
				&created, &updated, &r.propertyName, &r.propertyAddress, &r.unitNumber, &tenantName); err != nil {
				return l, err
			}
			l.PropertyID, l.UnitID, l.TenantID = propertyID.String, unitID.String, tenantID.String
			l.StartDate, l.EndDate, l.RenewalDate = scanDate(start), scanDate(end), scanDate(renewal)
			l.RentAmount = parseAmount(amount)
			l.CreatedAt, l.UpdatedAt = parseStamp(created), parseStamp(updated)
			l.Property = r.property(l.PropertyID)
			l.Unit = r.unit(l.UnitID)
			l.Tenant = person(tenantID, tenantName)
			return l, nil
		})
}

// Transactions inherit the tenant and rent due day of their lease.
func (s *Store) Transactions(ctx context.Context, q property.Query) ([]property.Transaction, error) {
	return query(ctx, s, q, `
		SELECT x.id, x.property_id, x.unit_id, x.lease_id, x.type, x.category, x.description,
		       x.amount, x.status, x.transaction_date, x.due_date, x.created_at, x.updated_at,
		       p.name, p.address, u.unit_number, l.rent_due_day, l.tenant_id, t.name
		FROM transactions x`+joinRefs+`
		LEFT JOIN leases l ON l.id = x.lease_id
		LEFT JOIN people t ON t.id = l.tenant_id`,
		func(rows *sql.Rows) (property.Transaction, error) {
			var t property.Transaction
			var propertyID, unitID, leaseID, category, description, txDate, due sql.NullString
			var tenantID, tenantName sql.NullString
			var dueDay sql.NullInt64
			var amount, created, updated string
			var r refs
			if err := rows.Scan(&t.ID, &propertyID, &unitID, &leaseID, &t.Kind, &category, &description,
				&amount, &t.Status, &txDate, &due, &created, &updated,
				&r.propertyName, &r.propertyAddress, &r.unitNumber, &dueDay, &tenantID, &tenantName); err != nil {
				return t, err
			}
			t.PropertyID, t.UnitID, t.LeaseID = propertyID.String, unitID.String, leaseID.String
			t.Category, t.Description = category.String, description.String
			t.Amount = parseAmount(amount)
			t.TransactionDate, t.DueDate = scanDate(txDate), scanDate(due)
			t.RentDueDay = int(dueDay.Int64)
			t.CreatedAt, t.UpdatedAt = parseStamp(created), parseStamp(updated)
			t.Property = r.property(t.PropertyID)
			t.Unit = r.unit(t.UnitID)
			t.Tenant = person(tenantID, tenantName)
			return t, nil
		})
}

func (s *Store) MaintenanceRequests(ctx context.Context, q property.Query) ([]property.MaintenanceRequest, error) {
	return query(ctx, s, q, `
		SELECT x.id, x.property_id, x.unit_id, x.title, x.description, x.priority, x.status,
		       x.scheduled_date, x.due_date, x.completed_date, x.vendor_id, v.name, x.assigned_to, a.name,
		       x.created_at, x.updated_at, p.name, p.address, u.unit_number
		FROM maintenance_requests x`+joinRefs+`
		LEFT JOIN people v ON v.id = x.vendor_id
		LEFT JOIN people a ON a.id = x.assigned_to`,
		func(rows *sql.Rows) (property.MaintenanceRequest, error) {
			var m property.MaintenanceRequest
			var propertyID, unitID, description, priority, scheduled, due, completed sql.NullString
			var vendorID, vendorName, teamID, teamName sql.NullString
			var created, updated string
			var r refs
			if err := rows.Scan(&m.ID, &propertyID, &unitID, &m.Title, &description, &priority, &m.Status,
				&scheduled, &due, &completed, &vendorID, &vendorName, &teamID, &teamName,
				&created, &updated, &r.propertyName, &r.propertyAddress, &r.unitNumber); err != nil {
				return m, err
			}
			m.PropertyID, m.UnitID = propertyID.String, unitID.String
			m.Description, m.Priority = description.String, priority.String
			m.ScheduledDate, m.DueDate, m.CompletedDate = scanDate(scheduled), scanDate(due), scanDate(completed)
			m.Vendor = person(vendorID, vendorName)
			m.Team = person(teamID, teamName)
			m.CreatedAt, m.UpdatedAt = parseStamp(created), parseStamp(updated)
			m.Property = r.property(m.PropertyID)
			m.Unit = r.unit(m.UnitID)
			return m, nil
		})
}

func (s *Store) Inspections(ctx context.Context, q property.Query) ([]property.Inspection, error) {
	return query(ctx, s, q, `
		SELECT x.id, x.property_id, x.unit_id, x.inspection_type, x.notes, x.status,
		       x.scheduled_date, x.scheduled_time, x.completed_date, x.inspector_id, i.name,
		       x.created_at, x.updated_at, p.name, p.address, u.unit_number
		FROM inspections x`+joinRefs+`
		LEFT JOIN people i ON i.id = x.inspector_id`,
		func(rows *sql.Rows) (property.Inspection, error) {
			var in property.Inspection
			var propertyID, unitID, kind, notes, scheduled, clock, completed sql.NullString
			var inspectorID, inspectorName sql.NullString
			var created, updated string
			var r refs
			if err := rows.Scan(&in.ID, &propertyID, &unitID, &kind, &notes, &in.Status,
				&scheduled, &clock, &completed, &inspectorID, &inspectorName,
				&created, &updated, &r.propertyName, &r.propertyAddress, &r.unitNumber); err != nil {
				return in, err
			}
			in.PropertyID, in.UnitID = propertyID.String, unitID.String
			in.InspectionType, in.Notes = kind.String, notes.String
			in.ScheduledDate, in.ScheduledTime, in.CompletedDate = scanDate(scheduled), clock.String, scanDate(completed)
			in.Inspector = person(inspectorID, inspectorName)
			in.CreatedAt, in.UpdatedAt = parseStamp(created), parseStamp(updated)
			in.Property = r.property(in.PropertyID)
			in.Unit = r.unit(in.UnitID)
			return in, nil
		})
}

func (s *Store) Appliances(ctx context.Context, q property.Query) ([]property.Appliance, error) {
	return query(ctx, s, q, `
		SELECT x.id, x.property_id, x.unit_id, x.name, x.brand, x.model,
		       x.last_service_date, x.next_service_date, x.warranty_expiration, x.service_interval_days,
		       x.created_at, x.updated_at, p.name, p.address, u.unit_number
		FROM appliances x`+joinRefs,
		func(rows *sql.Rows) (property.Appliance, error) {
			var a property.Appliance
			var propertyID, unitID, brand, model, last, next, warranty sql.NullString
			var created, updated string
			var r refs
			if err := rows.Scan(&a.ID, &propertyID, &unitID, &a.Name, &brand, &model,
				&last, &next, &warranty, &a.ServiceIntervalDays,
				&created, &updated, &r.propertyName, &r.propertyAddress, &r.unitNumber); err != nil {
				return a, err
			}
			a.PropertyID, a.UnitID = propertyID.String, unitID.String
			a.Brand, a.Model = brand.String, model.String
			a.LastServiceDate, a.NextServiceDate, a.WarrantyExpiration = scanDate(last), scanDate(next), scanDate(warranty)
			a.CreatedAt, a.UpdatedAt = parseStamp(created), parseStamp(updated)
			a.Property = r.property(a.PropertyID)
			a.Unit = r.unit(a.UnitID)
			return a, nil
		})
}

const customEventColumns = `
	x.id, x.property_id, x.unit_id, x.event_type, x.title, x.description, x.date, x.end_date,
	x.time, x.all_day, x.status, x.is_recurring, x.recurring_pattern, x.assignee_id, x.assignee_type,
	x.created_at, x.updated_at, p.name, p.address, u.unit_number, w.name`

const customEventFrom = `
	FROM custom_events x` + joinRefs + `
	LEFT JOIN people w ON w.id = x.assignee_id`

func (s *Store) CustomEvents(ctx context.Context, q property.Query) ([]property.CustomEvent, error) {
	return query(ctx, s, q, "SELECT"+customEventColumns+customEventFrom, scanCustomEvent[*sql.Rows])
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCustomEvent[R scanner](row R) (property.CustomEvent, error) {
	var c property.CustomEvent
	var propertyID, unitID, description, date, end, clock, status, pattern sql.NullString
	var assigneeID, assigneeType, assigneeName sql.NullString
	var created, updated string
	var r refs
	if err := row.Scan(&c.ID, &propertyID, &unitID, &c.EventType, &c.Title, &description, &date, &end,
		&clock, &c.AllDay, &status, &c.IsRecurring, &pattern, &assigneeID, &assigneeType,
		&created, &updated, &r.propertyName, &r.propertyAddress, &r.unitNumber, &assigneeName); err != nil {
		return c, err
	}
	c.PropertyID, c.UnitID, c.Description = propertyID.String, unitID.String, description.String
	c.Date, c.EndDate, c.Time = scanDate(date), scanDate(end), clock.String
	c.Status = calendar.EventStatus(status.String)
	c.RecurringPattern = calendar.RecurringPattern(pattern.String)
	c.AssigneeID, c.AssigneeType = assigneeID.String, calendar.AssigneeType(assigneeType.String)
	c.Assignee = person(assigneeID, assigneeName)
	c.CreatedAt, c.UpdatedAt = parseStamp(created), parseStamp(updated)
	c.Property = r.property(c.PropertyID)
	c.Unit = r.unit(c.UnitID)
	return c, nil
}

// getCustomEvent reads one row; the caller holds the lock.
func (s *Store) getCustomEvent(ctx context.Context, id string) (property.CustomEvent, error) {
	row := s.db.QueryRowContext(ctx, "SELECT"+customEventColumns+customEventFrom+" WHERE x.id = ?", id)
	c, err := scanCustomEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return c, property.RowNotFound("custom event", id)
	}
	if err != nil {
		return c, fmt.Errorf("failed to read custom event %s: %w", id, err)
	}
	return c, nil
}
