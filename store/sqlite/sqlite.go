/*
Package sqlite provides a SQLite-backed implementation of property.Store.

PURPOSE:
  Persists the property-management rows the calendar is derived from and
  serves them back with their join snapshots resolved. In production, the
  same queries run against PostgreSQL with minor dialect differences.

INTERFACES IMPLEMENTED:
  property.Source:           Row queries per source kind
  property.Mutator:          Complete / reschedule / cancel / edit
  property.CustomEventStore: CRUD for custom events

KEY TABLES:
  properties, units, people:  Join targets for snapshots
  leases, transactions, maintenance_requests, inspections, appliances:
                              Event sources, owned by other screens
  custom_events:              The only table that stores events directly

STORAGE FORMATS:
  Dates are TEXT "YYYY-MM-DD" (NULL when unset), timestamps RFC3339,
  money TEXT decimal strings.

CHANGE NOTIFICATIONS:
  When a Bus is attached, every committed write publishes a property.Change
  after the store's lock is released, so subscribers may read back.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. ":memory:" databases are pinned to
  one connection, since each new connection would open an empty database.

USAGE:
  store, err := sqlite.New("./data/calendar.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  cal := property.NewCalendar(store, store, property.Options{})

SEE ALSO:
  - property/source.go: Interface definitions
  - property/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/property-engine/calendar"
	"github.com/warp/property-engine/property"
)

// Store implements property.Store using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	bus *property.Bus
	now func() time.Time
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// WithBus publishes a property.Change after every committed write.
func (s *Store) WithBus(bus *property.Bus) *Store {
	s.bus = bus
	return s
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) publish(ctx context.Context, op property.ChangeOp, kind property.SourceKind, id string) {
	if s.bus == nil {
		return
	}
	_ = s.bus.Publish(ctx, property.Change{Op: op, Kind: kind, ID: id, At: s.now()})
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS properties (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT
	);

	CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL,
		unit_number TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS people (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS leases (
		id TEXT PRIMARY KEY,
		property_id TEXT,
		unit_id TEXT,
		tenant_id TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		start_date TEXT,
		end_date TEXT,
		renewal_date TEXT,
		renewal_notice_days INTEGER NOT NULL DEFAULT 0,
		rent_amount TEXT NOT NULL DEFAULT '0',
		rent_due_day INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		property_id TEXT,
		unit_id TEXT,
		lease_id TEXT,
		type TEXT NOT NULL,
		category TEXT,
		description TEXT,
		amount TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'pending',
		transaction_date TEXT,
		due_date TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS maintenance_requests (
		id TEXT PRIMARY KEY,
		property_id TEXT,
		unit_id TEXT,
		title TEXT NOT NULL,
		description TEXT,
		priority TEXT,
		status TEXT NOT NULL DEFAULT 'open',
		scheduled_date TEXT,
		due_date TEXT,
		completed_date TEXT,
		vendor_id TEXT,
		assigned_to TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS inspections (
		id TEXT PRIMARY KEY,
		property_id TEXT,
		unit_id TEXT,
		inspection_type TEXT,
		notes TEXT,
		status TEXT NOT NULL DEFAULT 'scheduled',
		scheduled_date TEXT,
		scheduled_time TEXT,
		completed_date TEXT,
		inspector_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS appliances (
		id TEXT PRIMARY KEY,
		property_id TEXT,
		unit_id TEXT,
		name TEXT NOT NULL,
		brand TEXT,
		model TEXT,
		last_service_date TEXT,
		next_service_date TEXT,
		warranty_expiration TEXT,
		service_interval_days INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS custom_events (
		id TEXT PRIMARY KEY,
		property_id TEXT,
		unit_id TEXT,
		event_type TEXT NOT NULL DEFAULT 'custom',
		title TEXT NOT NULL,
		description TEXT,
		date TEXT NOT NULL,
		end_date TEXT,
		time TEXT,
		all_day INTEGER NOT NULL DEFAULT 0,
		status TEXT,
		is_recurring INTEGER NOT NULL DEFAULT 0,
		recurring_pattern TEXT,
		assignee_id TEXT,
		assignee_type TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leases_property ON leases(property_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_property ON transactions(property_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_lease ON transactions(lease_id);
	CREATE INDEX IF NOT EXISTS idx_maintenance_property ON maintenance_requests(property_id);
	CREATE INDEX IF NOT EXISTS idx_inspections_property ON inspections(property_id);
	CREATE INDEX IF NOT EXISTS idx_appliances_property ON appliances(property_id);
	CREATE INDEX IF NOT EXISTS idx_custom_events_property ON custom_events(property_id);
	CREATE INDEX IF NOT EXISTS idx_custom_events_date ON custom_events(date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BULK
// =============================================================================

// Import upserts every row of d in one transaction.
func (s *Store) Import(ctx context.Context, d property.Dataset) error {
	for _, ce := range d.CustomEvents {
		if err := ce.Validate(); err != nil {
			return fmt.Errorf("custom event %s: %w", ce.ID, err)
		}
	}

	s.mu.Lock()
	err := s.importLocked(ctx, d)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish(ctx, property.ChangeImported, "", "")
	return nil
}

func (s *Store) importLocked(ctx context.Context, d property.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	exec := func(table, id, query string, args ...any) error {
		if id == "" {
			return fmt.Errorf("%w: %s row without id", calendar.ErrInvalidInput, table)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to import %s %s: %w", table, id, err)
		}
		return nil
	}

	for _, p := range d.Properties {
		if err := exec("property", p.ID,
			`INSERT OR REPLACE INTO properties (id, name, address) VALUES (?, ?, ?)`,
			p.ID, p.Name, nullString(p.Address)); err != nil {
			return err
		}
	}
	for _, u := range d.Units {
		if err := exec("unit", u.ID,
			`INSERT OR REPLACE INTO units (id, property_id, unit_number) VALUES (?, ?, ?)`,
			u.ID, u.PropertyID, u.UnitNumber); err != nil {
			return err
		}
	}
	for _, p := range d.People {
		if err := exec("person", p.ID,
			`INSERT OR REPLACE INTO people (id, name, kind) VALUES (?, ?, ?)`,
			p.ID, p.Name, string(p.Kind)); err != nil {
			return err
		}
	}
	// Snapshots carried on rows become join targets unless a row already exists.
	props, units := embeddedPlaces(d)
	for _, p := range props {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO properties (id, name, address) VALUES (?, ?, ?)`,
			p.ID, p.Name, nullString(p.Address)); err != nil {
			return fmt.Errorf("failed to import property %s: %w", p.ID, err)
		}
	}
	for _, u := range units {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO units (id, property_id, unit_number) VALUES (?, ?, ?)`,
			u.ID, u.PropertyID, u.UnitNumber); err != nil {
			return fmt.Errorf("failed to import unit %s: %w", u.ID, err)
		}
	}
	for _, p := range embeddedPeople(d) {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO people (id, name, kind) VALUES (?, ?, ?)`,
			p.ID, p.Name, string(p.Kind)); err != nil {
			return fmt.Errorf("failed to import person %s: %w", p.ID, err)
		}
	}
	for _, l := range d.Leases {
		if err := exec("lease", l.ID, `
			INSERT OR REPLACE INTO leases
			(id, property_id, unit_id, tenant_id, status, start_date, end_date, renewal_date,
			 renewal_notice_days, rent_amount, rent_due_day, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, nullString(l.PropertyID), nullString(l.UnitID), nullString(l.TenantID), defaultString(string(l.Status), string(property.LeasePending)),
			dateArg(l.StartDate), dateArg(l.EndDate), dateArg(l.RenewalDate),
			l.RenewalNoticeDays, l.RentAmount.String(), l.RentDueDay,
			stamp(l.CreatedAt, now), stamp(l.UpdatedAt, now)); err != nil {
			return err
		}
	}
	for _, t := range d.Transactions {
		if err := exec("transaction", t.ID, `
			INSERT OR REPLACE INTO transactions
			(id, property_id, unit_id, lease_id, type, category, description, amount, status,
			 transaction_date, due_date, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, nullString(t.PropertyID), nullString(t.UnitID), nullString(t.LeaseID), string(t.Kind),
			nullString(t.Category), nullString(t.Description), t.Amount.String(),
			defaultString(string(t.Status), string(property.TransactionPending)),
			dateArg(t.TransactionDate), dateArg(t.DueDate),
			stamp(t.CreatedAt, now), stamp(t.UpdatedAt, now)); err != nil {
			return err
		}
	}
	for _, m := range d.MaintenanceRequests {
		if err := exec("maintenance request", m.ID, `
			INSERT OR REPLACE INTO maintenance_requests
			(id, property_id, unit_id, title, description, priority, status, scheduled_date, due_date,
			 completed_date, vendor_id, assigned_to, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, nullString(m.PropertyID), nullString(m.UnitID), m.Title, nullString(m.Description),
			nullString(m.Priority), defaultString(string(m.Status), string(property.MaintenanceOpen)),
			dateArg(m.ScheduledDate), dateArg(m.DueDate), dateArg(m.CompletedDate),
			refID(m.Vendor), refID(m.Team),
			stamp(m.CreatedAt, now), stamp(m.UpdatedAt, now)); err != nil {
			return err
		}
	}
	for _, i := range d.Inspections {
		if err := exec("inspection", i.ID, `
			INSERT OR REPLACE INTO inspections
			(id, property_id, unit_id, inspection_type, notes, status, scheduled_date, scheduled_time,
			 completed_date, inspector_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			i.ID, nullString(i.PropertyID), nullString(i.UnitID), nullString(i.InspectionType), nullString(i.Notes),
			defaultString(string(i.Status), string(property.InspectionScheduled)),
			dateArg(i.ScheduledDate), nullString(i.ScheduledTime), dateArg(i.CompletedDate),
			refID(i.Inspector), stamp(i.CreatedAt, now), stamp(i.UpdatedAt, now)); err != nil {
			return err
		}
	}
	for _, a := range d.Appliances {
		if err := exec("appliance", a.ID, `
			INSERT OR REPLACE INTO appliances
			(id, property_id, unit_id, name, brand, model, last_service_date, next_service_date,
			 warranty_expiration, service_interval_days, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, nullString(a.PropertyID), nullString(a.UnitID), a.Name, nullString(a.Brand), nullString(a.Model),
			dateArg(a.LastServiceDate), dateArg(a.NextServiceDate), dateArg(a.WarrantyExpiration),
			a.ServiceIntervalDays, stamp(a.CreatedAt, now), stamp(a.UpdatedAt, now)); err != nil {
			return err
		}
	}
	for _, c := range d.CustomEvents {
		if c.ID == "" {
			return fmt.Errorf("%w: custom event row without id", calendar.ErrInvalidInput)
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = now
		}
		if err := upsertCustomEvent(ctx, tx, c); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	tables := []string{
		"custom_events", "appliances", "inspections", "maintenance_requests",
		"transactions", "leases", "people", "units", "properties",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.mu.Unlock()

	s.publish(ctx, property.ChangeReset, "", "")
	return nil
}

// embeddedPlaces collects the property and unit snapshots carried on rows.
func embeddedPlaces(d property.Dataset) ([]property.PropertyRef, []property.Unit) {
	var props []property.PropertyRef
	var units []property.Unit
	add := func(propertyID string, p *property.PropertyRef, u *property.UnitRef) {
		if p != nil && p.ID != "" && p.Name != "" {
			props = append(props, *p)
		}
		if u != nil && u.ID != "" && u.UnitNumber != "" {
			units = append(units, property.Unit{ID: u.ID, PropertyID: propertyID, UnitNumber: u.UnitNumber})
		}
	}
	for _, r := range d.Leases {
		add(r.PropertyID, r.Property, r.Unit)
	}
	for _, r := range d.Transactions {
		add(r.PropertyID, r.Property, r.Unit)
	}
	for _, r := range d.MaintenanceRequests {
		add(r.PropertyID, r.Property, r.Unit)
	}
	for _, r := range d.Inspections {
		add(r.PropertyID, r.Property, r.Unit)
	}
	for _, r := range d.Appliances {
		add(r.PropertyID, r.Property, r.Unit)
	}
	for _, r := range d.CustomEvents {
		add(r.PropertyID, r.Property, r.Unit)
	}
	return props, units
}

// embeddedPeople collects the named person snapshots carried on rows.
func embeddedPeople(d property.Dataset) []property.Person {
	var out []property.Person
	add := func(p *property.PersonRef, kind property.PersonKind) {
		if p != nil && p.ID != "" && p.Name != "" {
			out = append(out, property.Person{ID: p.ID, Name: p.Name, Kind: kind})
		}
	}
	for _, l := range d.Leases {
		add(l.Tenant, property.PersonTenant)
	}
	for _, m := range d.MaintenanceRequests {
		add(m.Vendor, property.PersonVendor)
		add(m.Team, property.PersonTeam)
	}
	for _, i := range d.Inspections {
		add(i.Inspector, property.PersonTeam)
	}
	for _, c := range d.CustomEvents {
		kind := property.PersonTeam
		if c.AssigneeType == calendar.AssigneeVendor {
			kind = property.PersonVendor
		}
		add(c.Assignee, kind)
	}
	return out
}

// =============================================================================
// HELPERS
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func refID(p *property.PersonRef) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return nullString(p.ID)
}

func dateArg(d calendar.Date) sql.NullString {
	return nullString(d.String())
}

func scanDate(ns sql.NullString) calendar.Date {
	if !ns.Valid {
		return calendar.Date{}
	}
	d, _ := calendar.ParseDate(ns.String)
	return d
}

func stamp(t, fallback time.Time) string {
	if t.IsZero() {
		t = fallback
	}
	return t.UTC().Format(time.RFC3339)
}

func parseStamp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// propertyFilter returns " WHERE col IN (?, ...)" for a non-empty id list.
func propertyFilter(col string, ids []string) (string, []any) {
	if len(ids) == 0 {
		return "", nil
	}
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	return " WHERE " + col + " IN (" + strings.Join(marks, ", ") + ")", args
}

func requireRow(res sql.Result, table, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return property.RowNotFound(table, id)
	}
	return nil
}

var _ property.Store = (*Store)(nil)
