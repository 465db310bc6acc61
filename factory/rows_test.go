package factory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/property-engine/calendar"
	"github.com/warp/property-engine/factory"
	"github.com/warp/property-engine/property"
	"github.com/warp/property-engine/property/store"
)

const dumpJSON = `{
  "properties": [{"id": "p1", "name": "Maple Court"}],
  "units": [{"id": "u1", "property_id": "p1", "unit_number": "4B"}],
  "people": [{"id": "t1", "name": "Dana Reyes", "kind": "tenant"}],
  "leases": [{
    "id": "L1", "property_id": "p1", "unit_id": "u1", "tenant_id": "t1",
    "status": "active", "start_date": "2024-07-01", "end_date": "2025-06-30",
    "renewal_date": null, "rent_amount": "1450.00", "rent_due_day": 1
  }],
  "transactions": [{"property_id": "p1", "type": "income", "amount": 1450, "transaction_date": "2024-06-01"}],
  "maintenance_requests": [],
  "inspections": [],
  "appliances": [{"id": "a1", "property_id": "p1", "name": "Boiler", "warranty_expiration": "2025-01-31"}],
  "custom_events": [{"title": "Gutter cleaning", "date": "2024-07-10", "time": "9:05"}]
}`

func TestRowFactory_ParseRows(t *testing.T) {
	// GIVEN: A dump with some rows missing ids and defaults
	f := factory.NewRowFactory()

	// WHEN: Parsing
	d, err := f.ParseRows(dumpJSON)
	require.NoError(t, err)

	// THEN: Ids and defaults are filled in
	require.Len(t, d.Leases, 1)
	assert.Equal(t, "2024-07-01", d.Leases[0].StartDate.String())
	assert.True(t, d.Leases[0].RenewalDate.IsZero())
	assert.Equal(t, "1450", d.Leases[0].RentAmount.String())

	require.Len(t, d.Transactions, 1)
	assert.NotEmpty(t, d.Transactions[0].ID)
	assert.Equal(t, property.TransactionIncome, d.Transactions[0].Kind)
	assert.Equal(t, property.TransactionPending, d.Transactions[0].Status)

	require.Len(t, d.CustomEvents, 1)
	c := d.CustomEvents[0]
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, calendar.TypeCustom, c.EventType)
	assert.Equal(t, "09:05", c.Time)
}

func TestRowFactory_RejectsBadInput(t *testing.T) {
	f := factory.NewRowFactory()

	tests := []struct {
		name string
		json string
		want error
	}{
		{"malformed", `{"leases": [`, calendar.ErrInvalidInput},
		{"bad date", `{"leases": [{"id": "L1", "start_date": "07/01/2024"}]}`, calendar.ErrInvalidInput},
		{"custom event without title", `{"custom_events": [{"date": "2024-07-10"}]}`, calendar.ErrInvalidInput},
		{"unknown event type", `{"custom_events": [{"title": "x", "date": "2024-07-10", "event_type": "party"}]}`, calendar.ErrUnknownEventType},
		{"bad time", `{"custom_events": [{"title": "x", "date": "2024-07-10", "time": "noon"}]}`, calendar.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseRows(tt.json)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRowFactory_ExportRoundTrip(t *testing.T) {
	// GIVEN: A store seeded from the dump
	f := factory.NewRowFactory()
	d, err := f.ParseRows(dumpJSON)
	require.NoError(t, err)

	ctx := context.Background()
	src := store.NewMemory()
	require.NoError(t, src.Import(ctx, d))

	// WHEN: Exporting and re-importing into a second store
	out, err := factory.Export(ctx, src, property.Query{})
	require.NoError(t, err)
	jsonStr, err := f.ToJSON(out)
	require.NoError(t, err)

	again, err := f.ParseRows(jsonStr)
	require.NoError(t, err)
	dst := store.NewMemory()
	require.NoError(t, dst.Import(ctx, again))

	// THEN: The rows and their snapshots survive
	leases, err := dst.Leases(ctx, property.Query{})
	require.NoError(t, err)
	require.Len(t, leases, 1)
	assert.Equal(t, "Dana Reyes", leases[0].Tenant.Name)
	assert.Equal(t, "Unit 4B", "Unit "+leases[0].Unit.UnitNumber)

	apps, err := dst.Appliances(ctx, property.Query{})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "2025-01-31", apps[0].WarrantyExpiration.String())
}
