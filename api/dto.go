/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal event model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Events:
    EventDTO, DisplayDTO, RefDTO, AssigneeDTO, EventTypeDTO

  Views:
    ViewDTO, AgendaDayDTO, TodayDTO, TasksDTO, DashboardDTO

  Actions:
    ActionRequestDTO, DispatchResultDTO

  Custom events:
    CustomEventRequest, CustomEventDTO

  Import / Scenarios:
    ImportResultDTO, ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers and the core, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - calendar/event.go: Event type definition
*/
package api

import (
	"time"

	"github.com/warp/property-engine/calendar"
	"github.com/warp/property-engine/property"
)

// =============================================================================
// EVENTS
// =============================================================================

// EventDTO represents a calendar event in API responses.
type EventDTO struct {
	ID          string `json:"id"`
	RelatedID   string `json:"related_id"`
	RelatedType string `json:"related_type"`
	Type        string `json:"type"`

	Date    string `json:"date"`
	EndDate string `json:"end_date,omitempty"`
	Time    string `json:"time,omitempty"`
	AllDay  bool   `json:"all_day"`

	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Display     DisplayDTO `json:"display"`

	PropertyID string       `json:"property_id,omitempty"`
	UnitID     string       `json:"unit_id,omitempty"`
	AssigneeID string       `json:"assignee_id,omitempty"`
	Property   *RefDTO      `json:"property,omitempty"`
	Unit       *RefDTO      `json:"unit,omitempty"`
	Assignee   *AssigneeDTO `json:"assignee,omitempty"`

	Status           string                 `json:"status"`
	Actions          []calendar.EventAction `json:"actions"`
	IsRecurring      bool                   `json:"is_recurring"`
	RecurringPattern string                 `json:"recurring_pattern,omitempty"`

	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// DisplayDTO is the registry config copied onto an event.
type DisplayDTO struct {
	Label           string `json:"label"`
	Icon            string `json:"icon"`
	Color           string `json:"color"`
	BackgroundColor string `json:"background_color"`
	BorderColor     string `json:"border_color"`
}

type RefDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type AssigneeDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// EventTypeDTO is one registry entry.
type EventTypeDTO struct {
	Type    string     `json:"type"`
	Display DisplayDTO `json:"display"`
}

// EventListResponse wraps a filtered event stream.
type EventListResponse struct {
	Events []EventDTO `json:"events"`
	Count  int        `json:"count"`
	Today  string     `json:"today"`
}

// =============================================================================
// VIEWS
// =============================================================================

// ViewDTO is one calendar layout window.
type ViewDTO struct {
	View   string         `json:"view"`
	Start  string         `json:"start"`
	End    string         `json:"end"`
	Today  string         `json:"today"`
	Events []EventDTO     `json:"events"`
	Days   []AgendaDayDTO `json:"days"`
}

// AgendaDayDTO groups the events of one date.
type AgendaDayDTO struct {
	Date   string     `json:"date"`
	Events []EventDTO `json:"events"`
}

// TodayDTO is the dashboard card for the current day.
type TodayDTO struct {
	Date      string     `json:"date"`
	Events    []EventDTO `json:"events"`
	Overdue   int        `json:"overdue"`
	Upcoming  int        `json:"upcoming"`
	Completed int        `json:"completed"`
}

// TasksDTO buckets open events by urgency.
type TasksDTO struct {
	Overdue   []EventDTO `json:"overdue"`
	Today     []EventDTO `json:"today"`
	ThisWeek  []EventDTO `json:"this_week"`
	ThisMonth []EventDTO `json:"this_month"`
	Later     []EventDTO `json:"later"`
	Total     int        `json:"total"`
}

// DashboardDTO describes the last feed snapshot.
type DashboardDTO struct {
	Generation uint64         `json:"generation"`
	BuiltAt    string         `json:"built_at"`
	Today      string         `json:"today"`
	Window     [2]string      `json:"window"`
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByType     map[string]int `json:"by_type"`
	Skipped    map[string]int `json:"skipped,omitempty"`
	Truncated  int            `json:"truncated,omitempty"`
}

// =============================================================================
// ACTIONS
// =============================================================================

// ActionRequestDTO is the body of POST /api/events/{id}/actions/{action}.
// Title and Description are shorthands for the matching patch fields.
type ActionRequestDTO struct {
	Date        string                    `json:"date,omitempty"`
	Time        string                    `json:"time,omitempty"`
	Title       *string                   `json:"title,omitempty"`
	Description *string                   `json:"description,omitempty"`
	Patch       property.CustomEventPatch `json:"patch"`
}

// DispatchResultDTO reports a dispatched action and the rebuilt event.
type DispatchResultDTO struct {
	Action  calendar.EventAction `json:"action"`
	EventID string               `json:"event_id"`
	Target  string               `json:"target"`
	Event   *EventDTO            `json:"event,omitempty"`
}

// =============================================================================
// CUSTOM EVENTS
// =============================================================================

// CustomEventRequest creates a custom event.
type CustomEventRequest struct {
	ID               string `json:"id,omitempty"`
	PropertyID       string `json:"property_id,omitempty"`
	UnitID           string `json:"unit_id,omitempty"`
	EventType        string `json:"event_type,omitempty"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	Date             string `json:"date"`
	EndDate          string `json:"end_date,omitempty"`
	Time             string `json:"time,omitempty"`
	AllDay           bool   `json:"all_day"`
	IsRecurring      bool   `json:"is_recurring"`
	RecurringPattern string `json:"recurring_pattern,omitempty"`
	AssigneeID       string `json:"assignee_id,omitempty"`
	AssigneeType     string `json:"assignee_type,omitempty"`
}

// CustomEventDTO is a stored custom event row.
type CustomEventDTO = property.CustomEvent

// =============================================================================
// IMPORT / SCENARIOS
// =============================================================================

// ImportResultDTO counts the rows of an accepted import.
type ImportResultDTO struct {
	Rows   map[string]int `json:"rows"`
	Events int            `json:"events"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toDisplayDTO(c calendar.EventTypeConfig) DisplayDTO {
	return DisplayDTO{
		Label:           c.Label,
		Icon:            c.Icon,
		Color:           c.Color,
		BackgroundColor: c.BackgroundColor,
		BorderColor:     c.BorderColor,
	}
}

func toRefDTO(r *calendar.Ref) *RefDTO {
	if r == nil {
		return nil
	}
	return &RefDTO{ID: r.ID, Name: r.Name}
}

func toEventDTO(e calendar.Event) EventDTO {
	dto := EventDTO{
		ID:               e.ID,
		RelatedID:        e.RelatedID,
		RelatedType:      string(e.RelatedType),
		Type:             string(e.Type),
		Date:             e.Date.String(),
		Time:             e.Time,
		AllDay:           e.AllDay,
		Title:            e.Title,
		Description:      e.Description,
		Display:          toDisplayDTO(e.Display),
		PropertyID:       e.PropertyID,
		UnitID:           e.UnitID,
		AssigneeID:       e.AssigneeID,
		Property:         toRefDTO(e.Property),
		Unit:             toRefDTO(e.Unit),
		Status:           string(e.Status),
		Actions:          e.Actions,
		IsRecurring:      e.IsRecurring,
		RecurringPattern: string(e.RecurringPattern),
	}
	if e.EndDate != nil {
		dto.EndDate = e.EndDate.String()
	}
	if e.Assignee != nil {
		dto.Assignee = &AssigneeDTO{ID: e.Assignee.ID, Name: e.Assignee.Name, Type: string(e.Assignee.Type)}
	}
	if dto.Actions == nil {
		dto.Actions = []calendar.EventAction{}
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	if !e.UpdatedAt.IsZero() {
		dto.UpdatedAt = e.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

func toEventDTOs(events []calendar.Event) []EventDTO {
	dtos := make([]EventDTO, len(events))
	for i, e := range events {
		dtos[i] = toEventDTO(e)
	}
	return dtos
}

func toAgendaDTOs(days []calendar.AgendaDay) []AgendaDayDTO {
	dtos := make([]AgendaDayDTO, len(days))
	for i, d := range days {
		dtos[i] = AgendaDayDTO{Date: d.Date.String(), Events: toEventDTOs(d.Events)}
	}
	return dtos
}

func toTasksDTO(t calendar.TaskList) TasksDTO {
	return TasksDTO{
		Overdue:   toEventDTOs(t.Overdue),
		Today:     toEventDTOs(t.Today),
		ThisWeek:  toEventDTOs(t.ThisWeek),
		ThisMonth: toEventDTOs(t.ThisMonth),
		Later:     toEventDTOs(t.Later),
		Total:     t.Total(),
	}
}

func toDashboardDTO(s property.Snapshot) DashboardDTO {
	sum := calendar.Summarize(s.Events)
	dto := DashboardDTO{
		Generation: s.Generation,
		BuiltAt:    s.BuiltAt.Format(time.RFC3339),
		Today:      s.Today.String(),
		Window:     [2]string{s.Window.Start.String(), s.Window.End.String()},
		Total:      sum.Total,
		ByStatus:   make(map[string]int, len(sum.ByStatus)),
		ByType:     make(map[string]int, len(sum.ByType)),
		Truncated:  s.Stats.Truncated,
	}
	for k, v := range sum.ByStatus {
		dto.ByStatus[string(k)] = v
	}
	for k, v := range sum.ByType {
		dto.ByType[string(k)] = v
	}
	if s.Stats.TotalSkipped() > 0 {
		dto.Skipped = make(map[string]int)
		for k, v := range s.Stats.Skipped {
			dto.Skipped[string(k)] = v
		}
	}
	return dto
}
