package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/property-engine/calendar"
	"github.com/warp/property-engine/property"
	"github.com/warp/property-engine/store/sqlite"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *sqlite.Store) {
	t.Helper()
	err := s.Import(context.Background(), property.Dataset{
		Properties: []property.PropertyRef{{ID: "p1", Name: "Maple Court", Address: "12 Maple St"}, {ID: "p2", Name: "Harbor View"}},
		Units:      []property.Unit{{ID: "u1", PropertyID: "p1", UnitNumber: "4B"}},
		People: []property.Person{
			{ID: "t1", Name: "Dana Reyes", Kind: property.PersonTenant},
			{ID: "v1", Name: "Acme Plumbing", Kind: property.PersonVendor},
		},
		Leases: []property.Lease{{
			ID: "L1", PropertyID: "p1", UnitID: "u1", TenantID: "t1", Status: property.LeaseActive,
			StartDate: calendar.MustParseDate("2024-07-01"), EndDate: calendar.MustParseDate("2025-06-30"),
			RentAmount: decimal.RequireFromString("1450.50"), RentDueDay: 5,
		}},
		Transactions: []property.Transaction{{
			ID: "tx1", PropertyID: "p1", UnitID: "u1", LeaseID: "L1", Kind: property.TransactionIncome,
			Amount: decimal.RequireFromString("1450.50"), TransactionDate: calendar.MustParseDate("2024-06-01"),
		}},
		MaintenanceRequests: []property.MaintenanceRequest{{
			ID: "m1", PropertyID: "p1", Title: "Fix leaking tap", Status: property.MaintenanceOpen,
			DueDate: calendar.MustParseDate("2024-06-10"), Vendor: &property.PersonRef{ID: "v1"},
		}},
		Inspections: []property.Inspection{{
			ID: "i1", PropertyID: "p2", InspectionType: "annual", ScheduledDate: calendar.MustParseDate("2024-06-20"),
			Inspector: &property.PersonRef{ID: "s1", Name: "Sam Ortiz"},
		}},
		Appliances: []property.Appliance{{
			ID: "a1", PropertyID: "p2", Name: "Boiler", ServiceIntervalDays: 180,
			NextServiceDate: calendar.MustParseDate("2024-06-12"),
		}},
		CustomEvents: []property.CustomEvent{{
			ID: "c1", PropertyID: "p2", Title: "Owner walkthrough",
			Date: calendar.MustParseDate("2024-06-18"), EndDate: calendar.MustParseDate("2024-06-19"),
		}},
	})
	require.NoError(t, err)
}

// =============================================================================
// SOURCE
// =============================================================================

func TestStore_RowsCarryJoinSnapshots(t *testing.T) {
	// GIVEN: A seeded database
	s := newStore(t)
	seed(t, s)
	ctx := context.Background()

	// WHEN: Reading leases and transactions
	leases, err := s.Leases(ctx, property.Query{})
	require.NoError(t, err)
	txs, err := s.Transactions(ctx, property.Query{})
	require.NoError(t, err)

	// THEN: Property, unit and tenant are resolved
	require.Len(t, leases, 1)
	l := leases[0]
	assert.Equal(t, "2024-07-01", l.StartDate.String())
	assert.True(t, l.RenewalDate.IsZero())
	assert.True(t, decimal.RequireFromString("1450.50").Equal(l.RentAmount))
	require.NotNil(t, l.Property)
	assert.Equal(t, "12 Maple St", l.Property.Address)
	assert.Equal(t, "4B", l.Unit.UnitNumber)
	assert.Equal(t, "Dana Reyes", l.Tenant.Name)

	// AND: Transactions inherit the lease's tenant and due day
	require.Len(t, txs, 1)
	assert.Equal(t, 5, txs[0].RentDueDay)
	assert.Equal(t, "Dana Reyes", txs[0].Tenant.Name)
	assert.Equal(t, property.TransactionPending, txs[0].Status)
}

func TestStore_PeopleSnapshots(t *testing.T) {
	s := newStore(t)
	seed(t, s)
	ctx := context.Background()

	reqs, err := s.MaintenanceRequests(ctx, property.Query{})
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "Acme Plumbing", reqs[0].Vendor.Name)
	assert.Nil(t, reqs[0].Team)

	// embedded inspector snapshot became a people row
	ins, err := s.Inspections(ctx, property.Query{})
	require.NoError(t, err)
	require.Len(t, ins, 1)
	require.NotNil(t, ins[0].Inspector)
	assert.Equal(t, "Sam Ortiz", ins[0].Inspector.Name)
}

func TestStore_PropertyQuery(t *testing.T) {
	s := newStore(t)
	seed(t, s)
	ctx := context.Background()

	apps, err := s.Appliances(ctx, property.Query{PropertyIDs: []string{"p1"}})
	require.NoError(t, err)
	assert.Empty(t, apps)

	apps, err = s.Appliances(ctx, property.Query{PropertyIDs: []string{"p1", "p2"}})
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}

func TestStore_ImportRejectsInvalidCustomEvent(t *testing.T) {
	// GIVEN: A dataset whose custom event has an unknown type
	s := newStore(t)
	ctx := context.Background()

	// WHEN: Importing
	err := s.Import(ctx, property.Dataset{
		Leases: []property.Lease{{ID: "L1", StartDate: calendar.MustParseDate("2024-07-01")}},
		CustomEvents: []property.CustomEvent{{
			ID: "c1", Title: "Mystery", Date: calendar.MustParseDate("2024-06-18"), EventType: "party",
		}},
	})

	// THEN: Nothing is written
	assert.ErrorIs(t, err, calendar.ErrUnknownEventType)
	leases, err := s.Leases(ctx, property.Query{})
	require.NoError(t, err)
	assert.Empty(t, leases)
}

func TestStore_ImportRequiresIDs(t *testing.T) {
	s := newStore(t)
	err := s.Import(context.Background(), property.Dataset{
		Appliances: []property.Appliance{{Name: "Boiler"}},
	})
	assert.ErrorIs(t, err, calendar.ErrInvalidInput)
}

// =============================================================================
// MUTATOR
// =============================================================================

func TestStore_CompleteAndService(t *testing.T) {
	s := newStore(t)
	seed(t, s)
	ctx := context.Background()
	on := calendar.MustParseDate("2024-06-14")

	require.NoError(t, s.CompleteMaintenance(ctx, "m1", on))
	require.NoError(t, s.CompleteInspection(ctx, "i1", on))
	require.NoError(t, s.RecordApplianceService(ctx, "a1", on))

	reqs, _ := s.MaintenanceRequests(ctx, property.Query{})
	assert.Equal(t, property.MaintenanceCompleted, reqs[0].Status)
	assert.Equal(t, "2024-06-14", reqs[0].CompletedDate.String())

	ins, _ := s.Inspections(ctx, property.Query{})
	assert.Equal(t, property.InspectionCompleted, ins[0].Status)

	apps, _ := s.Appliances(ctx, property.Query{})
	assert.Equal(t, "2024-06-14", apps[0].LastServiceDate.String())
	assert.Equal(t, "2024-12-11", apps[0].NextServiceDate.String())

	assert.ErrorIs(t, s.CompleteMaintenance(ctx, "nope", on), calendar.ErrNotFound)
}

func TestStore_Reschedule(t *testing.T) {
	s := newStore(t)
	seed(t, s)
	ctx := context.Background()

	// inspection date and time
	require.NoError(t, s.Reschedule(ctx, property.Reschedule{
		Field: property.FieldInspectionDate, ID: "i1", Date: calendar.MustParseDate("2024-06-25"), Clock: "14:30",
	}))
	ins, _ := s.Inspections(ctx, property.Query{})
	assert.Equal(t, "2024-06-25", ins[0].ScheduledDate.String())
	assert.Equal(t, "14:30", ins[0].ScheduledTime)

	// custom events keep their span
	require.NoError(t, s.Reschedule(ctx, property.Reschedule{
		Field: property.FieldCustomEventDate, ID: "c1", Date: calendar.MustParseDate("2024-07-01"),
	}))
	ce, err := s.GetCustomEvent(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "2024-07-01", ce.Date.String())
	assert.Equal(t, "2024-07-02", ce.EndDate.String())

	// unknown field and missing row
	err = s.Reschedule(ctx, property.Reschedule{Field: "leases.id", ID: "L1", Date: calendar.MustParseDate("2024-07-01")})
	assert.ErrorIs(t, err, calendar.ErrInvalidInput)
	err = s.Reschedule(ctx, property.Reschedule{Field: property.FieldLeaseEnd, ID: "L9", Date: calendar.MustParseDate("2024-07-01")})
	assert.ErrorIs(t, err, calendar.ErrNotFound)
}

// =============================================================================
// CUSTOM EVENTS
// =============================================================================

func TestStore_CustomEventCRUD(t *testing.T) {
	s := newStore(t)
	seed(t, s)
	ctx := context.Background()

	// create assigns an id and the default type
	created, err := s.CreateCustomEvent(ctx, property.CustomEvent{
		PropertyID: "p1", Title: "Gutter cleaning", Date: calendar.MustParseDate("2024-07-10"),
		IsRecurring: true, RecurringPattern: calendar.RepeatMonthly,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, calendar.TypeCustom, created.EventType)
	assert.Equal(t, "Maple Court", created.Property.Name)
	assert.True(t, created.IsRecurring)

	// duplicate id
	_, err = s.CreateCustomEvent(ctx, property.CustomEvent{
		ID: created.ID, Title: "Again", Date: calendar.MustParseDate("2024-07-10"),
	})
	assert.ErrorIs(t, err, calendar.ErrInvalidInput)

	// invalid patch leaves the row untouched
	empty := ""
	_, err = s.UpdateCustomEvent(ctx, created.ID, property.CustomEventPatch{Title: &empty})
	assert.ErrorIs(t, err, calendar.ErrInvalidInput)

	// cancel
	require.NoError(t, s.CancelCustomEvent(ctx, created.ID))
	got, err := s.GetCustomEvent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, calendar.StatusCancelled, got.Status)
	assert.Equal(t, "Gutter cleaning", got.Title)

	// delete
	require.NoError(t, s.DeleteCustomEvent(ctx, created.ID))
	_, err = s.GetCustomEvent(ctx, created.ID)
	assert.ErrorIs(t, err, calendar.ErrNotFound)
	assert.ErrorIs(t, s.DeleteCustomEvent(ctx, created.ID), calendar.ErrNotFound)
}

// =============================================================================
// CALENDAR INTEGRATION
// =============================================================================

func TestStore_BackedCalendarAndBus(t *testing.T) {
	// GIVEN: A calendar over the SQLite store with a subscribed feed
	bus := property.NewBus(nil)
	s := newStore(t).WithBus(bus)
	seed(t, s)
	cal := property.NewCalendar(s, s, property.Options{Clock: calendar.FixedClock(testNow)})
	feed := property.NewFeed(cal, nil)
	bus.Subscribe(feed.OnChange)

	ctx := context.Background()
	_, err := feed.Refresh(ctx, calendar.Filters{})
	require.NoError(t, err)

	// WHEN: Completing the overdue maintenance event through the calendar
	ev, err := cal.FindEvent(ctx, "maintenance_m1")
	require.NoError(t, err)
	require.Equal(t, calendar.StatusOverdue, ev.Status)
	_, err = cal.DispatchAction(ctx, ev, calendar.ActionIDComplete, property.ActionRequest{})
	require.NoError(t, err)

	// THEN: The feed rebuilt from the committed row
	snap, ok := feed.Current()
	require.True(t, ok)
	for _, e := range snap.Events {
		if e.ID == "maintenance_m1" {
			assert.Equal(t, calendar.StatusCompleted, e.Status)
			assert.Equal(t, "Acme Plumbing", e.Assignee.Name)
		}
	}
	assert.Equal(t, uint64(2), snap.Generation)
}

func TestStore_Reset(t *testing.T) {
	s := newStore(t)
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.Reset(ctx))
	leases, err := s.Leases(ctx, property.Query{})
	require.NoError(t, err)
	assert.Empty(t, leases)
	events, err := s.CustomEvents(ctx, property.Query{})
	require.NoError(t, err)
	assert.Empty(t, events)
}
