/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	property data for testing and demos. Every date is relative to the
	calendar's "today", so each scenario shows overdue, today and upcoming
	events whenever it is loaded.

AVAILABLE SCENARIOS:

	small-portfolio:     Two buildings, three leases, rent and a mix of work
	maintenance-backlog: Overdue repairs and inspections across one building
	recurring-schedule:  Recurring custom events and appliance service cycles

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Build a property.Dataset relative to today
 3. Pass it through the row factory (ids, defaults, validation)
 4. Import it atomically

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "small-portfolio"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create builder function: xxxScenario(today) property.Dataset
 3. Add it to scenarioBuilders

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Import handler shares the factory path
  - factory/rows.go: Defaults and validation
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/property-engine/calendar"
	"github.com/warp/property-engine/property"
	"go.uber.org/zap"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "small-portfolio",
		Name:        "Small Portfolio",
		Description: "Two buildings with active leases, rent, repairs, an inspection and an insurance renewal",
	},
	{
		ID:          "maintenance-backlog",
		Name:        "Maintenance Backlog",
		Description: "Overdue repairs and inspections that need completing or rescheduling",
	},
	{
		ID:          "recurring-schedule",
		Name:        "Recurring Schedule",
		Description: "Weekly, monthly and yearly custom events plus appliance service intervals",
	},
}

var scenarioBuilders = map[string]func(today calendar.Date) property.Dataset{
	"small-portfolio":     smallPortfolioScenario,
	"maintenance-backlog": maintenanceBacklogScenario,
	"recurring-schedule":  recurringScheduleScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current, Description: "Currently loaded scenario"})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeOptional(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if _, ok := scenarioBuilders[req.ScenarioID]; !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("%w: scenario %q", calendar.ErrInvalidInput, req.ScenarioID))
		return
	}

	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// LoadScenarioByID resets the store and imports the named scenario.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	build, ok := scenarioBuilders[id]
	if !ok {
		return fmt.Errorf("%w: scenario %q", calendar.ErrInvalidInput, id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	h.currentScenario = ""

	d, err := h.Factory.FromDump(build(h.Calendar.Today()))
	if err != nil {
		return err
	}
	if err := h.Store.Import(ctx, d); err != nil {
		return err
	}

	h.currentScenario = id
	h.Logger.Info("scenario loaded", zap.String("scenario", id), zap.Int("rows", d.Rows()))
	return nil
}

// ResetDatabase deletes every row.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO BUILDERS
// =============================================================================

var (
	mapleCourt = property.PropertyRef{ID: "prop-maple", Name: "Maple Court", Address: "12 Maple St"}
	harborView = property.PropertyRef{ID: "prop-harbor", Name: "Harbor View", Address: "400 Bay Rd"}
)

func units() []property.Unit {
	return []property.Unit{
		{ID: "unit-maple-1a", PropertyID: mapleCourt.ID, UnitNumber: "1A"},
		{ID: "unit-maple-2b", PropertyID: mapleCourt.ID, UnitNumber: "2B"},
		{ID: "unit-harbor-101", PropertyID: harborView.ID, UnitNumber: "101"},
	}
}

func people() []property.Person {
	return []property.Person{
		{ID: "tenant-dana", Name: "Dana Reyes", Kind: property.PersonTenant},
		{ID: "tenant-lee", Name: "Jordan Lee", Kind: property.PersonTenant},
		{ID: "tenant-okafor", Name: "Chi Okafor", Kind: property.PersonTenant},
		{ID: "vendor-fixit", Name: "FixIt Plumbing", Kind: property.PersonVendor},
		{ID: "vendor-cool", Name: "CoolAir HVAC", Kind: property.PersonVendor},
		{ID: "team-sam", Name: "Sam Ortiz", Kind: property.PersonTeam},
	}
}

func person(id string) *property.PersonRef {
	for _, p := range people() {
		if p.ID == id {
			return &property.PersonRef{ID: p.ID, Name: p.Name}
		}
	}
	return &property.PersonRef{ID: id}
}

func firstOfMonth(d calendar.Date) calendar.Date {
	return d.AddDays(1 - d.Day())
}

func smallPortfolioScenario(today calendar.Date) property.Dataset {
	rentDue := firstOfMonth(today).AddMonths(1)
	return property.Dataset{
		Properties: []property.PropertyRef{mapleCourt, harborView},
		Units:      units(),
		People:     people(),
		Leases: []property.Lease{
			{
				ID: "lease-dana", PropertyID: mapleCourt.ID, UnitID: "unit-maple-1a", TenantID: "tenant-dana",
				Status: property.LeaseActive, StartDate: today.AddMonths(-11), EndDate: today.AddDays(30),
				RenewalNoticeDays: 21, RentAmount: decimal.RequireFromString("1450.00"), RentDueDay: 1,
			},
			{
				ID: "lease-lee", PropertyID: mapleCourt.ID, UnitID: "unit-maple-2b", TenantID: "tenant-lee",
				Status: property.LeaseActive, StartDate: today.AddMonths(-3), EndDate: today.AddMonths(9),
				RentAmount: decimal.RequireFromString("1625.50"), RentDueDay: 1,
			},
			{
				ID: "lease-okafor", PropertyID: harborView.ID, UnitID: "unit-harbor-101", TenantID: "tenant-okafor",
				Status: property.LeasePending, StartDate: today.AddDays(14), EndDate: today.AddDays(14).AddYears(1),
				RentAmount: decimal.RequireFromString("2100.00"), RentDueDay: 5,
			},
		},
		Transactions: []property.Transaction{
			{
				ID: "tx-rent-dana", PropertyID: mapleCourt.ID, UnitID: "unit-maple-1a", LeaseID: "lease-dana",
				Kind: property.TransactionIncome, Category: "rent", Amount: decimal.RequireFromString("1450.00"),
				Status: property.TransactionPending, TransactionDate: rentDue, DueDate: rentDue,
			},
			{
				ID: "tx-rent-lee", PropertyID: mapleCourt.ID, UnitID: "unit-maple-2b", LeaseID: "lease-lee",
				Kind: property.TransactionIncome, Category: "rent", Amount: decimal.RequireFromString("1625.50"),
				Status: property.TransactionPending, TransactionDate: today.AddDays(-3), DueDate: today.AddDays(-3),
			},
			{
				ID: "tx-tax", PropertyID: harborView.ID, Kind: property.TransactionExpense, Category: "property_tax",
				Description: "Q3 property tax", Amount: decimal.RequireFromString("3820.00"),
				Status: property.TransactionPending, TransactionDate: today.AddDays(10), DueDate: today.AddDays(10),
			},
		},
		MaintenanceRequests: []property.MaintenanceRequest{
			{
				ID: "mr-leak", PropertyID: mapleCourt.ID, UnitID: "unit-maple-1a", Title: "Kitchen sink leak",
				Priority: "high", Status: property.MaintenanceInProgress, ScheduledDate: today,
				Vendor: person("vendor-fixit"),
			},
			{
				ID: "mr-paint", PropertyID: harborView.ID, UnitID: "unit-harbor-101", Title: "Repaint before move-in",
				Priority: "medium", Status: property.MaintenanceOpen, DueDate: today.AddDays(12),
				Team: person("team-sam"),
			},
		},
		Inspections: []property.Inspection{
			{
				ID: "insp-move-in", PropertyID: harborView.ID, UnitID: "unit-harbor-101", InspectionType: "move_in",
				Status: property.InspectionScheduled, ScheduledDate: today.AddDays(13), ScheduledTime: "10:00",
				Inspector: person("team-sam"),
			},
		},
		Appliances: []property.Appliance{
			{
				ID: "app-furnace", PropertyID: mapleCourt.ID, Name: "Furnace", Brand: "Carrier",
				LastServiceDate: today.AddDays(-170), NextServiceDate: today.AddDays(10),
				WarrantyExpiration: today.AddMonths(8), ServiceIntervalDays: 180,
			},
		},
		CustomEvents: []property.CustomEvent{
			{
				ID: "ce-insurance", PropertyID: harborView.ID, EventType: calendar.TypeInsuranceExpiration,
				Title: "Building insurance renewal", Date: today.AddDays(21), AllDay: true,
			},
			{
				ID: "ce-owner-call", PropertyID: mapleCourt.ID, Title: "Owner check-in call",
				Date: today, Time: "15:30",
			},
		},
	}
}

func maintenanceBacklogScenario(today calendar.Date) property.Dataset {
	return property.Dataset{
		Properties: []property.PropertyRef{mapleCourt},
		Units:      units()[:2],
		People:     people(),
		MaintenanceRequests: []property.MaintenanceRequest{
			{
				ID: "mr-heater", PropertyID: mapleCourt.ID, UnitID: "unit-maple-2b", Title: "No hot water",
				Priority: "urgent", Status: property.MaintenanceOpen, ScheduledDate: today.AddDays(-4),
				Vendor: person("vendor-fixit"),
			},
			{
				ID: "mr-ac", PropertyID: mapleCourt.ID, UnitID: "unit-maple-1a", Title: "AC not cooling",
				Priority: "high", Status: property.MaintenanceInProgress, DueDate: today.AddDays(-1),
				Vendor: person("vendor-cool"), Team: person("team-sam"),
			},
			{
				ID: "mr-door", PropertyID: mapleCourt.ID, Title: "Lobby door closer",
				Priority: "low", Status: property.MaintenanceOpen, ScheduledDate: today,
				Team: person("team-sam"),
			},
			{
				ID: "mr-gutter", PropertyID: mapleCourt.ID, Title: "Gutter repair",
				Priority: "medium", Status: property.MaintenanceCompleted, ScheduledDate: today.AddDays(-9),
				CompletedDate: today.AddDays(-8), Team: person("team-sam"),
			},
			{
				ID: "mr-window", PropertyID: mapleCourt.ID, UnitID: "unit-maple-1a", Title: "Cracked window",
				Priority: "medium", Status: property.MaintenanceCancelled, ScheduledDate: today.AddDays(-2),
			},
		},
		Inspections: []property.Inspection{
			{
				ID: "insp-fire", PropertyID: mapleCourt.ID, InspectionType: "fire_safety",
				Status: property.InspectionScheduled, ScheduledDate: today.AddDays(-6), ScheduledTime: "09:00",
				Inspector: person("team-sam"),
			},
			{
				ID: "insp-annual", PropertyID: mapleCourt.ID, UnitID: "unit-maple-2b", InspectionType: "annual",
				Status: property.InspectionScheduled, ScheduledDate: today.AddDays(5),
				Inspector: person("team-sam"),
			},
		},
		Appliances: []property.Appliance{
			{
				ID: "app-boiler", PropertyID: mapleCourt.ID, Name: "Boiler", Brand: "Weil-McLain",
				LastServiceDate: today.AddDays(-400), NextServiceDate: today.AddDays(-35), ServiceIntervalDays: 365,
			},
		},
	}
}

func recurringScheduleScenario(today calendar.Date) property.Dataset {
	return property.Dataset{
		Properties: []property.PropertyRef{mapleCourt, harborView},
		Units:      units(),
		People:     people(),
		Appliances: []property.Appliance{
			{
				ID: "app-hvac", PropertyID: harborView.ID, Name: "Rooftop HVAC", Brand: "Trane",
				LastServiceDate: today.AddDays(-80), NextServiceDate: today.AddDays(10),
				WarrantyExpiration: today.AddYears(2), ServiceIntervalDays: 90,
			},
			{
				ID: "app-fridge", PropertyID: mapleCourt.ID, UnitID: "unit-maple-1a", Name: "Refrigerator",
				WarrantyExpiration: today.AddDays(45),
			},
		},
		CustomEvents: []property.CustomEvent{
			{
				ID: "ce-trash", PropertyID: mapleCourt.ID, Title: "Bins to curb",
				Date: today.AddDays(-14), Time: "19:00",
				IsRecurring: true, RecurringPattern: calendar.RepeatWeekly,
				AssigneeID: "team-sam", AssigneeType: calendar.AssigneeTeam,
			},
			{
				ID: "ce-walkthrough", PropertyID: harborView.ID,
				Title: "Monthly walkthrough", Date: firstOfMonth(today), AllDay: true,
				IsRecurring: true, RecurringPattern: calendar.RepeatMonthly,
			},
			{
				ID: "ce-insurance", PropertyID: mapleCourt.ID, EventType: calendar.TypeInsuranceExpiration,
				Title: "Liability policy renewal", Date: today.AddDays(60), AllDay: true,
				IsRecurring: true, RecurringPattern: calendar.RepeatYearly,
			},
		},
	}
}
