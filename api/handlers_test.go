/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Event stream, filters and views
- Action dispatch and its error statuses
- Custom event CRUD
- Import, ICS export and the dashboard snapshot
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/property-engine/calendar"
	"github.com/warp/property-engine/property"
	"github.com/warp/property-engine/property/store"
)

var testNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

type testServer struct {
	store   *store.Memory
	handler *Handler
	router  *chi.Mux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	m := store.NewMemory()
	cal := property.NewCalendar(m, m, property.Options{
		Clock:     calendar.FixedClock(testNow),
		WeekStart: time.Monday,
	})
	feed := property.NewFeed(cal, nil)
	h := NewHandler(m, cal, feed, nil)
	h.ICS.Stamp = testNow
	return &testServer{store: m, handler: h, router: NewRouter(h, RouterOptions{})}
}

func seedPortfolio(t *testing.T, m *store.Memory) {
	t.Helper()
	err := m.Import(context.Background(), property.Dataset{
		Properties: []property.PropertyRef{{ID: "p1", Name: "Maple Court"}, {ID: "p2", Name: "Harbor View"}},
		Units:      []property.Unit{{ID: "u1", PropertyID: "p1", UnitNumber: "4B"}},
		People:     []property.Person{{ID: "t1", Name: "Dana Reyes", Kind: property.PersonTenant}},
		Leases: []property.Lease{{
			ID: "L1", PropertyID: "p1", UnitID: "u1", TenantID: "t1", Status: property.LeaseActive,
			StartDate: calendar.MustParseDate("2024-07-01"), EndDate: calendar.MustParseDate("2025-06-30"),
			RentAmount: decimal.RequireFromString("1450"), RentDueDay: 1,
		}},
		MaintenanceRequests: []property.MaintenanceRequest{{
			ID: "m1", PropertyID: "p1", Title: "Fix leaking tap", Status: property.MaintenanceOpen,
			DueDate: calendar.MustParseDate("2024-06-10"),
		}},
		Inspections: []property.Inspection{{
			ID: "i1", PropertyID: "p2", InspectionType: "annual", Status: property.InspectionScheduled,
			ScheduledDate: calendar.MustParseDate("2024-06-20"),
		}},
		CustomEvents: []property.CustomEvent{{
			ID: "c1", PropertyID: "p2", EventType: calendar.TypeCustom, Title: "Owner walkthrough",
			Date: calendar.MustParseDate("2024-06-18"),
		}},
	})
	require.NoError(t, err)
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func eventIDs(events []EventDTO) []string {
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return ids
}

// =============================================================================
// EVENT STREAM
// =============================================================================

func TestListEventTypes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/event-types", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	types := decode[[]EventTypeDTO](t, rec)
	require.Len(t, types, len(calendar.AllEventTypes()))
	assert.Equal(t, "lease_start", types[0].Type)
	assert.NotEmpty(t, types[0].Display.Color)
}

func TestListEvents_SortedWithJoins(t *testing.T) {
	// GIVEN: A seeded portfolio
	s := newTestServer(t)
	seedPortfolio(t, s.store)

	// WHEN: Listing every event
	rec := s.do(t, http.MethodGet, "/api/events", nil)

	// THEN: Events come back in date order with their display config and joins
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[EventListResponse](t, rec)
	assert.Equal(t, "2024-06-15", resp.Today)
	assert.Equal(t, []string{
		"maintenance_m1",
		"custom_c1",
		"inspection_i1",
		"lease_start_L1",
		"lease_end_L1",
	}, eventIDs(resp.Events))
	assert.Equal(t, len(resp.Events), resp.Count)

	leaseStart := resp.Events[3]
	require.NotNil(t, leaseStart.Property)
	assert.Equal(t, "Maple Court", leaseStart.Property.Name)
	require.NotNil(t, leaseStart.Assignee)
	assert.Equal(t, "tenant", leaseStart.Assignee.Type)
	assert.Equal(t, "Lease Start", leaseStart.Display.Label)
}

func TestListEvents_Filters(t *testing.T) {
	s := newTestServer(t)
	seedPortfolio(t, s.store)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"type and status", "?type=maintenance,inspection&status=overdue", []string{"maintenance_m1"}},
		{"property", "?property_id=p2", []string{"custom_c1", "inspection_i1"}},
		{"repeated property", "?property_id=p1&property_id=p2&to=2024-06-18", []string{"maintenance_m1", "custom_c1"}},
		{"search", "?q=walkthrough", []string{"custom_c1"}},
		{"date range", "?from=2024-06-18&to=2024-06-20", []string{"custom_c1", "inspection_i1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/api/events"+tt.query, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, eventIDs(decode[EventListResponse](t, rec).Events))
		})
	}
}

func TestListEvents_InvalidFilters(t *testing.T) {
	s := newTestServer(t)

	for _, query := range []string{
		"?status=late",
		"?type=party",
		"?from=June",
		"?from=2024-06-20&to=2024-06-01",
	} {
		t.Run(query, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/api/events"+query, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid_input", decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestListEvents_UpstreamFailure(t *testing.T) {
	// GIVEN: The lease table cannot be read
	s := newTestServer(t)
	seedPortfolio(t, s.store)
	s.store.FailOn(property.SourceLeases, errors.New("connection reset"))

	// WHEN: Listing events
	rec := s.do(t, http.MethodGet, "/api/events", nil)

	// THEN: The fetch failure surfaces as a bad gateway, not a partial list
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "upstream_fetch", decode[ErrorResponse](t, rec).Code)
}

func TestGetView(t *testing.T) {
	s := newTestServer(t)
	seedPortfolio(t, s.store)

	// Week of 2024-06-17 (Monday start)
	rec := s.do(t, http.MethodGet, "/api/events/view/week?date=2024-06-19", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[ViewDTO](t, rec)
	assert.Equal(t, "2024-06-17", view.Start)
	assert.Equal(t, "2024-06-23", view.End)
	assert.Equal(t, []string{"custom_c1", "inspection_i1"}, eventIDs(view.Events))
	require.Len(t, view.Days, 2)
	assert.Equal(t, "2024-06-18", view.Days[0].Date)

	rec = s.do(t, http.MethodGet, "/api/events/view/year", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTodayAndTasks(t *testing.T) {
	s := newTestServer(t)
	seedPortfolio(t, s.store)

	rec := s.do(t, http.MethodGet, "/api/events/today", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	today := decode[TodayDTO](t, rec)
	assert.Equal(t, "2024-06-15", today.Date)
	assert.Empty(t, today.Events)
	assert.Equal(t, 1, today.Overdue)

	// Week of 2024-06-10 (Monday start); the 18th and 20th fall later in June
	rec = s.do(t, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tasks := decode[TasksDTO](t, rec)
	assert.Equal(t, []string{"maintenance_m1"}, eventIDs(tasks.Overdue))
	assert.Empty(t, tasks.ThisWeek)
	assert.Equal(t, []string{"custom_c1", "inspection_i1"}, eventIDs(tasks.ThisMonth))
	assert.Equal(t, []string{"lease_end_L1"}, eventIDs(tasks.Later))
	assert.Equal(t, 4, tasks.Total)
}

func TestExportICS(t *testing.T) {
	s := newTestServer(t)
	seedPortfolio(t, s.store)

	rec := s.do(t, http.MethodGet, "/api/events.ics?property_id=p2", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar"))
	body := rec.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Equal(t, 2, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, "Owner walkthrough")
}

// =============================================================================
// ACTIONS
// =============================================================================

func TestDispatchAction_Complete(t *testing.T) {
	// GIVEN: An overdue maintenance request
	s := newTestServer(t)
	seedPortfolio(t, s.store)

	// WHEN: Completing it
	rec := s.do(t, http.MethodPost, "/api/events/maintenance_m1/actions/complete", nil)

	// THEN: The rebuilt event is completed and keeps only its view action
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[DispatchResultDTO](t, rec)
	assert.Equal(t, "complete", res.Action.ID)
	assert.Equal(t, "m1", res.Target)
	require.NotNil(t, res.Event)
	assert.Equal(t, "completed", res.Event.Status)
	require.Len(t, res.Event.Actions, 1)
	assert.Equal(t, "view", res.Event.Actions[0].ID)
}

func TestDispatchAction_RescheduleCustomEvent(t *testing.T) {
	s := newTestServer(t)
	seedPortfolio(t, s.store)

	rec := s.do(t, http.MethodPost, "/api/events/custom_c1/actions/reschedule",
		map[string]string{"date": "2024-06-25", "time": "9:30"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[DispatchResultDTO](t, rec)
	require.NotNil(t, res.Event)
	assert.Equal(t, "2024-06-25", res.Event.Date)
	assert.Equal(t, "09:30", res.Event.Time)
}

func TestDispatchAction_EditCustomEvent(t *testing.T) {
	s := newTestServer(t)
	seedPortfolio(t, s.store)

	rec := s.do(t, http.MethodPost, "/api/events/custom_c1/actions/edit",
		map[string]string{"title": "Owner walkthrough (rescoped)"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Owner walkthrough (rescoped)", decode[DispatchResultDTO](t, rec).Event.Title)
}

func TestDispatchAction_Errors(t *testing.T) {
	s := newTestServer(t)
	seedPortfolio(t, s.store)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown event", "/api/events/maintenance_nope/actions/complete", nil, http.StatusNotFound, "not_found"},
		{"cancel is custom only", "/api/events/maintenance_m1/actions/cancel", nil, http.StatusConflict, "action_not_permitted"},
		{"complete on lease", "/api/events/lease_start_L1/actions/complete", nil, http.StatusConflict, "action_not_permitted"},
		{"view is client side", "/api/events/inspection_i1/actions/view", nil, http.StatusBadRequest, "not_dispatchable"},
		{"reschedule without date", "/api/events/inspection_i1/actions/reschedule", nil, http.StatusBadRequest, "invalid_input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}

	// Nothing was mutated by the rejected actions
	e, err := s.handler.Calendar.FindEvent(context.Background(), "maintenance_m1")
	require.NoError(t, err)
	assert.Equal(t, calendar.StatusOverdue, e.Status)
}

func TestDispatchAction_InvalidBody(t *testing.T) {
	s := newTestServer(t)
	seedPortfolio(t, s.store)

	rec := s.do(t, http.MethodPost, "/api/events/custom_c1/actions/reschedule", `{"date":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/events/custom_c1/actions/reschedule", map[string]string{"date": "25/06/2024"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// CUSTOM EVENTS
// =============================================================================

func TestCustomEventCRUD(t *testing.T) {
	s := newTestServer(t)

	// Create
	rec := s.do(t, http.MethodPost, "/api/custom-events", CustomEventRequest{
		Title: "Pest control", Date: "2024-06-21", Time: "8:00",
		IsRecurring: true, RecurringPattern: "monthly",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[CustomEventDTO](t, rec)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, calendar.TypeCustom, created.EventType)
	assert.Equal(t, "08:00", created.Time)

	// The series appears in the stream
	rec = s.do(t, http.MethodGet, "/api/events?from=2024-06-01&to=2024-08-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[EventListResponse](t, rec).Events
	require.Len(t, events, 3)
	assert.Equal(t, "custom_"+created.ID, events[0].ID)
	assert.True(t, events[0].IsRecurring)

	// Get
	rec = s.do(t, http.MethodGet, "/api/custom-events/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Update
	rec = s.do(t, http.MethodPut, "/api/custom-events/"+created.ID, map[string]any{"title": "Quarterly pest control", "time": "7:15"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[CustomEventDTO](t, rec)
	assert.Equal(t, "Quarterly pest control", updated.Title)
	assert.Equal(t, "07:15", updated.Time)

	// Delete
	rec = s.do(t, http.MethodDelete, "/api/custom-events/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/custom-events/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateCustomEvent_Invalid(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		req  CustomEventRequest
		code string
	}{
		{"missing title", CustomEventRequest{Date: "2024-06-21"}, "invalid_input"},
		{"missing date", CustomEventRequest{Title: "Pest control"}, "invalid_input"},
		{"bad time", CustomEventRequest{Title: "Pest control", Date: "2024-06-21", Time: "25:00"}, "invalid_input"},
		{"recurring without pattern", CustomEventRequest{Title: "Pest control", Date: "2024-06-21", IsRecurring: true}, "invalid_input"},
		{"unknown type", CustomEventRequest{Title: "Party", Date: "2024-06-21", EventType: "party"}, "unknown_event_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/custom-events", tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}
}

// =============================================================================
// IMPORT / DASHBOARD
// =============================================================================

func TestImport(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/import", `{
		"properties": [{"id": "p1", "name": "Maple Court"}],
		"maintenance_requests": [{"id": "m9", "property_id": "p1", "title": "Replace filter", "due_date": "2024-06-16"}],
		"custom_events": [{"title": "Fire drill", "date": "2024-06-17"}]
	}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[ImportResultDTO](t, rec)
	assert.Equal(t, 1, res.Rows["maintenance_requests"])
	assert.Equal(t, 1, res.Rows["custom_events"])
	assert.Equal(t, 2, res.Events)

	rec = s.do(t, http.MethodPost, "/api/import", `{"custom_events": [{"title": "x", "date": "2024-06-17", "event_type": "party"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/import", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDashboard(t *testing.T) {
	s := newTestServer(t)
	seedPortfolio(t, s.store)

	rec := s.do(t, http.MethodGet, "/api/dashboard", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[DashboardDTO](t, rec)
	assert.Equal(t, uint64(1), dash.Generation)
	assert.Equal(t, 5, dash.Total)
	assert.Equal(t, 1, dash.ByStatus["overdue"])
	assert.Equal(t, 1, dash.ByType["maintenance"])

	// A second request reuses the snapshot
	rec = s.do(t, http.MethodGet, "/api/dashboard", nil)
	assert.Equal(t, uint64(1), decode[DashboardDTO](t, rec).Generation)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rec)["status"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{calendar.ErrNotFound, http.StatusNotFound},
		{&calendar.ActionNotPermittedError{}, http.StatusConflict},
		{calendar.ErrSuperseded, http.StatusConflict},
		{calendar.ErrNotDispatchable, http.StatusBadRequest},
		{&calendar.InvalidFilterError{Reason: "x"}, http.StatusBadRequest},
		{&property.FetchError{Kind: property.SourceLeases, Err: errors.New("down")}, http.StatusBadGateway},
		{&calendar.UnknownEventTypeError{Type: "party"}, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		status, _ := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}
