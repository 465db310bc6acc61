/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario correctly sets up the expected state:
	- Rows import without validation errors
	- Events land relative to today (overdue, today, upcoming)
	- Loading replaces the previous scenario

These tests ensure scenarios work correctly and can be used as integration tests.
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/property-engine/calendar"
)

func TestScenarios_AllLoad(t *testing.T) {
	for _, sc := range scenarios {
		t.Run(sc.ID, func(t *testing.T) {
			s := newTestServer(t)

			require.NoError(t, s.handler.LoadScenarioByID(context.Background(), sc.ID))

			res, err := s.handler.Calendar.Build(context.Background(), calendar.Filters{})
			require.NoError(t, err)
			assert.NotEmpty(t, res.Events)
			assert.Zero(t, res.Stats.TotalSkipped(), "scenario rows should all be valid")
		})
	}
}

func TestScenario_SmallPortfolio(t *testing.T) {
	// GIVEN: The small portfolio loaded on 2024-06-15
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "small-portfolio"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// WHEN: Asking for today
	rec = s.do(t, http.MethodGet, "/api/events/today", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	today := decode[TodayDTO](t, rec)

	// THEN: The leak repair and the owner call are today; last month's rent is overdue
	assert.ElementsMatch(t, []string{"maintenance_mr-leak", "custom_ce-owner-call"}, eventIDs(today.Events))
	assert.Equal(t, 1, today.Overdue)

	rec = s.do(t, http.MethodGet, "/api/events?type=rent_due", nil)
	rent := decode[EventListResponse](t, rec).Events
	require.Len(t, rent, 2)
	assert.Equal(t, "overdue", rent[0].Status)
	assert.Equal(t, "Jordan Lee", rent[0].Assignee.Name)

	rec = s.do(t, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "small-portfolio", decode[ScenarioDTO](t, rec).ID)
}

func TestScenario_MaintenanceBacklog(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.handler.LoadScenarioByID(context.Background(), "maintenance-backlog"))

	rec := s.do(t, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tasks := decode[TasksDTO](t, rec)

	// Heater, AC, fire inspection and the boiler service are overdue;
	// completed and cancelled work is not a task
	assert.ElementsMatch(t, []string{
		"maintenance_mr-heater",
		"maintenance_mr-ac",
		"inspection_insp-fire",
		"appliance_check_app-boiler",
	}, eventIDs(tasks.Overdue))
	assert.Equal(t, []string{"maintenance_mr-door"}, eventIDs(tasks.Today))

	// The AC vendor wins over the team member
	for _, e := range tasks.Overdue {
		if e.ID == "maintenance_mr-ac" {
			require.NotNil(t, e.Assignee)
			assert.Equal(t, "CoolAir HVAC", e.Assignee.Name)
			assert.Equal(t, "vendor", e.Assignee.Type)
		}
	}
}

func TestScenario_RecurringSchedule(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.handler.LoadScenarioByID(context.Background(), "recurring-schedule"))

	// Weekly bins from 2024-06-01: 06-01, 06-08, ..., 06-29
	rec := s.do(t, http.MethodGet, "/api/events?q=bins&from=2024-06-01&to=2024-06-30", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bins := decode[EventListResponse](t, rec).Events
	require.Len(t, bins, 5)
	assert.Equal(t, "custom_ce-trash", bins[0].ID)
	assert.Equal(t, "custom_ce-trash_20240608", bins[1].ID)
	assert.Equal(t, "19:00", bins[1].Time)
	assert.Equal(t, "Sam Ortiz", bins[0].Assignee.Name)
}

func TestLoadScenario_Unknown(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "new-employee"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoadScenario_Replaces(t *testing.T) {
	// GIVEN: One scenario loaded
	s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.handler.LoadScenarioByID(ctx, "small-portfolio"))

	// WHEN: Loading another
	require.NoError(t, s.handler.LoadScenarioByID(ctx, "maintenance-backlog"))

	// THEN: Rows of the first are gone
	_, err := s.handler.Calendar.FindEvent(ctx, "custom_ce-owner-call")
	assert.True(t, calendar.IsNotFound(err))

	// AND: Reset clears the current scenario
	rec := s.do(t, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "null", trimNewline(rec.Body.String()))
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
