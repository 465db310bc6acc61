// Package store provides property.Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/property-engine/calendar"
	"github.com/warp/property-engine/property"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	properties map[string]property.PropertyRef
	units      map[string]property.Unit
	people     map[string]property.Person

	leases       map[string]property.Lease
	transactions map[string]property.Transaction
	maintenance  map[string]property.MaintenanceRequest
	inspections  map[string]property.Inspection
	appliances   map[string]property.Appliance
	custom       map[string]property.CustomEvent

	failures map[property.SourceKind]error
	bus      *property.Bus
	now      func() time.Time
}

func NewMemory() *Memory {
	m := &Memory{now: time.Now}
	m.clear()
	return m
}

// WithBus publishes a Change after every write.
func (m *Memory) WithBus(bus *property.Bus) *Memory {
	m.bus = bus
	return m
}

// FailOn makes every read of kind return err. Pass nil to clear it.
func (m *Memory) FailOn(kind property.SourceKind, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, kind)
		return
	}
	m.failures[kind] = err
}

func (m *Memory) clear() {
	m.properties = make(map[string]property.PropertyRef)
	m.units = make(map[string]property.Unit)
	m.people = make(map[string]property.Person)
	m.leases = make(map[string]property.Lease)
	m.transactions = make(map[string]property.Transaction)
	m.maintenance = make(map[string]property.MaintenanceRequest)
	m.inspections = make(map[string]property.Inspection)
	m.appliances = make(map[string]property.Appliance)
	m.custom = make(map[string]property.CustomEvent)
	if m.failures == nil {
		m.failures = make(map[property.SourceKind]error)
	}
}

func (m *Memory) publish(ctx context.Context, op property.ChangeOp, kind property.SourceKind, id string) {
	if m.bus == nil {
		return
	}
	_ = m.bus.Publish(ctx, property.Change{Op: op, Kind: kind, ID: id, At: m.now()})
}

// =============================================================================
// SOURCE
// =============================================================================

func (m *Memory) Leases(_ context.Context, q property.Query) ([]property.Lease, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failures[property.SourceLeases]; err != nil {
		return nil, err
	}
	out := list(m.leases, q, func(l property.Lease) string { return l.PropertyID })
	for i := range out {
		l := &out[i]
		l.Property = m.propertyRef(l.Property, l.PropertyID)
		l.Unit = m.unitRef(l.Unit, l.UnitID)
		l.Tenant = m.personRef(l.Tenant, l.TenantID)
	}
	return out, nil
}

func (m *Memory) Transactions(_ context.Context, q property.Query) ([]property.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failures[property.SourceTransactions]; err != nil {
		return nil, err
	}
	out := list(m.transactions, q, func(t property.Transaction) string { return t.PropertyID })
	for i := range out {
		t := &out[i]
		t.Property = m.propertyRef(t.Property, t.PropertyID)
		t.Unit = m.unitRef(t.Unit, t.UnitID)
		if lease, ok := m.leases[t.LeaseID]; ok {
			if t.RentDueDay == 0 {
				t.RentDueDay = lease.RentDueDay
			}
			t.Tenant = m.personRef(t.Tenant, lease.TenantID)
		}
	}
	return out, nil
}

func (m *Memory) MaintenanceRequests(_ context.Context, q property.Query) ([]property.MaintenanceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failures[property.SourceMaintenance]; err != nil {
		return nil, err
	}
	out := list(m.maintenance, q, func(r property.MaintenanceRequest) string { return r.PropertyID })
	for i := range out {
		r := &out[i]
		r.Property = m.propertyRef(r.Property, r.PropertyID)
		r.Unit = m.unitRef(r.Unit, r.UnitID)
	}
	return out, nil
}

func (m *Memory) Inspections(_ context.Context, q property.Query) ([]property.Inspection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failures[property.SourceInspections]; err != nil {
		return nil, err
	}
	out := list(m.inspections, q, func(i property.Inspection) string { return i.PropertyID })
	for i := range out {
		in := &out[i]
		in.Property = m.propertyRef(in.Property, in.PropertyID)
		in.Unit = m.unitRef(in.Unit, in.UnitID)
	}
	return out, nil
}

func (m *Memory) Appliances(_ context.Context, q property.Query) ([]property.Appliance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failures[property.SourceAppliances]; err != nil {
		return nil, err
	}
	out := list(m.appliances, q, func(a property.Appliance) string { return a.PropertyID })
	for i := range out {
		a := &out[i]
		a.Property = m.propertyRef(a.Property, a.PropertyID)
		a.Unit = m.unitRef(a.Unit, a.UnitID)
	}
	return out, nil
}

func (m *Memory) CustomEvents(_ context.Context, q property.Query) ([]property.CustomEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failures[property.SourceCustomEvents]; err != nil {
		return nil, err
	}
	out := list(m.custom, q, func(c property.CustomEvent) string { return c.PropertyID })
	for i := range out {
		c := &out[i]
		c.Property = m.propertyRef(c.Property, c.PropertyID)
		c.Unit = m.unitRef(c.Unit, c.UnitID)
		c.Assignee = m.personRef(c.Assignee, c.AssigneeID)
	}
	return out, nil
}

// list returns the rows of q's properties ordered by id.
func list[T any](rows map[string]T, q property.Query, propertyID func(T) string) []T {
	ids := make([]string, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		row := rows[id]
		if len(q.PropertyIDs) > 0 && !contains(q.PropertyIDs, propertyID(row)) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func (m *Memory) propertyRef(have *property.PropertyRef, id string) *property.PropertyRef {
	if have != nil {
		return have
	}
	if p, ok := m.properties[id]; ok {
		return &p
	}
	return nil
}

func (m *Memory) unitRef(have *property.UnitRef, id string) *property.UnitRef {
	if have != nil {
		return have
	}
	if u, ok := m.units[id]; ok {
		return &property.UnitRef{ID: u.ID, UnitNumber: u.UnitNumber}
	}
	return nil
}

func (m *Memory) personRef(have *property.PersonRef, id string) *property.PersonRef {
	if have != nil {
		return have
	}
	if p, ok := m.people[id]; ok {
		return &property.PersonRef{ID: p.ID, Name: p.Name}
	}
	return nil
}

// =============================================================================
// MUTATOR
// =============================================================================

func (m *Memory) CompleteMaintenance(ctx context.Context, id string, on calendar.Date) error {
	m.mu.Lock()
	r, ok := m.maintenance[id]
	if !ok {
		m.mu.Unlock()
		return property.RowNotFound("maintenance request", id)
	}
	r.Status = property.MaintenanceCompleted
	r.CompletedDate = on
	r.UpdatedAt = m.now()
	m.maintenance[id] = r
	m.mu.Unlock()

	m.publish(ctx, property.ChangeUpdated, property.SourceMaintenance, id)
	return nil
}

func (m *Memory) CompleteInspection(ctx context.Context, id string, on calendar.Date) error {
	m.mu.Lock()
	in, ok := m.inspections[id]
	if !ok {
		m.mu.Unlock()
		return property.RowNotFound("inspection", id)
	}
	in.Status = property.InspectionCompleted
	in.CompletedDate = on
	in.UpdatedAt = m.now()
	m.inspections[id] = in
	m.mu.Unlock()

	m.publish(ctx, property.ChangeUpdated, property.SourceInspections, id)
	return nil
}

func (m *Memory) RecordApplianceService(ctx context.Context, id string, on calendar.Date) error {
	m.mu.Lock()
	a, ok := m.appliances[id]
	if !ok {
		m.mu.Unlock()
		return property.RowNotFound("appliance", id)
	}
	a.LastServiceDate = on
	a.NextServiceDate = calendar.Date{}
	if a.ServiceIntervalDays > 0 {
		a.NextServiceDate = on.AddDays(a.ServiceIntervalDays)
	}
	a.UpdatedAt = m.now()
	m.appliances[id] = a
	m.mu.Unlock()

	m.publish(ctx, property.ChangeUpdated, property.SourceAppliances, id)
	return nil
}

func (m *Memory) Reschedule(ctx context.Context, r property.Reschedule) error {
	m.mu.Lock()
	kind, err := m.rescheduleLocked(r)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.publish(ctx, property.ChangeUpdated, kind, r.ID)
	return nil
}

func (m *Memory) rescheduleLocked(r property.Reschedule) (property.SourceKind, error) {
	now := m.now()
	switch r.Field {
	case property.FieldLeaseStart, property.FieldLeaseEnd, property.FieldLeaseRenewal:
		l, ok := m.leases[r.ID]
		if !ok {
			return "", property.RowNotFound("lease", r.ID)
		}
		switch r.Field {
		case property.FieldLeaseStart:
			l.StartDate = r.Date
		case property.FieldLeaseEnd:
			l.EndDate = r.Date
		default:
			l.RenewalDate = r.Date
		}
		l.UpdatedAt = now
		m.leases[r.ID] = l
		return property.SourceLeases, nil

	case property.FieldTransactionDue:
		t, ok := m.transactions[r.ID]
		if !ok {
			return "", property.RowNotFound("transaction", r.ID)
		}
		t.DueDate = r.Date
		t.UpdatedAt = now
		m.transactions[r.ID] = t
		return property.SourceTransactions, nil

	case property.FieldMaintenanceDate:
		mr, ok := m.maintenance[r.ID]
		if !ok {
			return "", property.RowNotFound("maintenance request", r.ID)
		}
		mr.ScheduledDate = r.Date
		mr.UpdatedAt = now
		m.maintenance[r.ID] = mr
		return property.SourceMaintenance, nil

	case property.FieldInspectionDate:
		in, ok := m.inspections[r.ID]
		if !ok {
			return "", property.RowNotFound("inspection", r.ID)
		}
		in.ScheduledDate = r.Date
		if r.Clock != "" {
			in.ScheduledTime = r.Clock
		}
		in.UpdatedAt = now
		m.inspections[r.ID] = in
		return property.SourceInspections, nil

	case property.FieldApplianceService, property.FieldApplianceWarranty:
		a, ok := m.appliances[r.ID]
		if !ok {
			return "", property.RowNotFound("appliance", r.ID)
		}
		if r.Field == property.FieldApplianceService {
			a.NextServiceDate = r.Date
		} else {
			a.WarrantyExpiration = r.Date
		}
		a.UpdatedAt = now
		m.appliances[r.ID] = a
		return property.SourceAppliances, nil

	case property.FieldCustomEventDate:
		c, ok := m.custom[r.ID]
		if !ok {
			return "", property.RowNotFound("custom event", r.ID)
		}
		if !c.EndDate.IsZero() {
			c.EndDate = r.Date.AddDays(calendar.DaysBetween(c.Date, c.EndDate))
		}
		c.Date = r.Date
		if r.Clock != "" {
			c.Time = r.Clock
			c.AllDay = false
		}
		c.UpdatedAt = now
		m.custom[r.ID] = c
		return property.SourceCustomEvents, nil
	}
	return "", fmt.Errorf("%w: unknown date field %q", calendar.ErrInvalidInput, r.Field)
}

func (m *Memory) CancelCustomEvent(ctx context.Context, id string) error {
	cancelled := calendar.StatusCancelled
	_, err := m.UpdateCustomEvent(ctx, id, property.CustomEventPatch{Status: &cancelled})
	return err
}

// =============================================================================
// CUSTOM EVENTS
// =============================================================================

func (m *Memory) CreateCustomEvent(ctx context.Context, ce property.CustomEvent) (property.CustomEvent, error) {
	if ce.ID == "" {
		ce.ID = uuid.NewString()
	}
	if ce.EventType == "" {
		ce.EventType = calendar.TypeCustom
	}
	if err := ce.Validate(); err != nil {
		return property.CustomEvent{}, err
	}

	m.mu.Lock()
	if _, exists := m.custom[ce.ID]; exists {
		m.mu.Unlock()
		return property.CustomEvent{}, fmt.Errorf("%w: custom event %q already exists", calendar.ErrInvalidInput, ce.ID)
	}
	now := m.now()
	ce.CreatedAt, ce.UpdatedAt = now, now
	m.custom[ce.ID] = ce
	m.mu.Unlock()

	m.publish(ctx, property.ChangeCreated, property.SourceCustomEvents, ce.ID)
	return ce, nil
}

func (m *Memory) GetCustomEvent(_ context.Context, id string) (property.CustomEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ce, ok := m.custom[id]
	if !ok {
		return property.CustomEvent{}, property.RowNotFound("custom event", id)
	}
	return ce, nil
}

func (m *Memory) UpdateCustomEvent(ctx context.Context, id string, patch property.CustomEventPatch) (property.CustomEvent, error) {
	m.mu.Lock()
	ce, ok := m.custom[id]
	if !ok {
		m.mu.Unlock()
		return property.CustomEvent{}, property.RowNotFound("custom event", id)
	}
	ce = patch.Apply(ce)
	if err := ce.Validate(); err != nil {
		m.mu.Unlock()
		return property.CustomEvent{}, err
	}
	ce.UpdatedAt = m.now()
	m.custom[id] = ce
	m.mu.Unlock()

	m.publish(ctx, property.ChangeUpdated, property.SourceCustomEvents, id)
	return ce, nil
}

func (m *Memory) DeleteCustomEvent(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.custom[id]; !ok {
		m.mu.Unlock()
		return property.RowNotFound("custom event", id)
	}
	delete(m.custom, id)
	m.mu.Unlock()

	m.publish(ctx, property.ChangeDeleted, property.SourceCustomEvents, id)
	return nil
}

// =============================================================================
// BULK
// =============================================================================

// Import upserts every row of d. Custom events are validated first; on any
// failure nothing is written.
func (m *Memory) Import(ctx context.Context, d property.Dataset) error {
	for _, ce := range d.CustomEvents {
		if err := ce.Validate(); err != nil {
			return fmt.Errorf("custom event %s: %w", ce.ID, err)
		}
	}

	m.mu.Lock()
	for _, p := range d.Properties {
		m.properties[p.ID] = p
	}
	for _, u := range d.Units {
		m.units[u.ID] = u
	}
	for _, p := range d.People {
		m.people[p.ID] = p
	}
	for _, l := range d.Leases {
		m.leases[l.ID] = l
	}
	for _, t := range d.Transactions {
		m.transactions[t.ID] = t
	}
	for _, r := range d.MaintenanceRequests {
		m.maintenance[r.ID] = r
	}
	for _, i := range d.Inspections {
		m.inspections[i.ID] = i
	}
	for _, a := range d.Appliances {
		m.appliances[a.ID] = a
	}
	for _, c := range d.CustomEvents {
		if c.EventType == "" {
			c.EventType = calendar.TypeCustom
		}
		m.custom[c.ID] = c
	}
	m.mu.Unlock()

	m.publish(ctx, property.ChangeImported, "", "")
	return nil
}

func (m *Memory) Reset(ctx context.Context) error {
	m.mu.Lock()
	m.clear()
	m.mu.Unlock()

	m.publish(ctx, property.ChangeReset, "", "")
	return nil
}

var _ property.Store = (*Memory)(nil)
