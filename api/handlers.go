/*
handlers.go - HTTP API handlers for the property calendar

PURPOSE:
  Exposes the calendar engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the property.Calendar service.

ENDPOINTS:
  Events:
    GET    /api/event-types                   Registry entries
    GET    /api/events                        Filtered, sorted event stream
    GET    /api/events.ics                    Same stream as iCalendar
    GET    /api/events/view/{view}            month|week|day|agenda window
    GET    /api/events/today                  Today summary
    GET    /api/events/{id}                   Single event
    POST   /api/events/{id}/actions/{action}  Dispatch an action
    GET    /api/tasks                         Open events bucketed by urgency
    GET    /api/dashboard                     Last feed snapshot

  Custom events:
    POST   /api/custom-events                 Create
    GET    /api/custom-events/{id}            Get
    PUT    /api/custom-events/{id}            Patch
    DELETE /api/custom-events/{id}            Delete

  Data:
    POST   /api/import                        Import a JSON row dump

  Scenarios:
    GET    /api/scenarios                     List demo scenarios
    GET    /api/scenarios/current             Currently loaded scenario
    POST   /api/scenarios/load                Load a demo scenario
    POST   /api/scenarios/reset               Delete every row

FILTER QUERY PARAMETERS:
  property_id, unit_id, assignee_id, type, status
      repeatable or comma-separated, OR within a parameter
  from, to
      inclusive YYYY-MM-DD bounds
  q
      case-insensitive search over title and description

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store:    Persistence (Source + Mutator + custom event CRUD)
  - Calendar: Builds the event stream, dispatches actions
  - Feed:     Last built snapshot, rebuilt on store changes
  - Factory:  JSON dump to Dataset conversion

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid filters, payloads, view/navigate dispatch
  - 404: Event or row not found
  - 409: Action not permitted for the event's state, superseded refresh
  - 502: Persistence fetch failed
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/warp/property-engine/calendar"
	"github.com/warp/property-engine/factory"
	"github.com/warp/property-engine/property"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    property.Store
	Calendar *property.Calendar
	Feed     *property.Feed
	Factory  *factory.RowFactory
	Logger   *zap.Logger

	// ICS is the export template; Location defaults to the calendar's.
	ICS calendar.ICSOptions

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler. feed may be nil, in which case the
// dashboard builds on demand.
func NewHandler(store property.Store, cal *property.Calendar, feed *property.Feed, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:    store,
		Calendar: cal,
		Feed:     feed,
		Factory:  factory.NewRowFactory(),
		Logger:   logger,
		ICS:      calendar.ICSOptions{Location: cal.Location()},
	}
}

// =============================================================================
// EVENT TYPE ENDPOINTS
// =============================================================================

// ListEventTypes returns the registry in enumeration order.
func (h *Handler) ListEventTypes(w http.ResponseWriter, r *http.Request) {
	entries := h.Calendar.Registry().Entries()
	dtos := make([]EventTypeDTO, len(entries))
	for i, e := range entries {
		dtos[i] = EventTypeDTO{Type: string(e.Type), Display: toDisplayDTO(e.Config)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// EVENT ENDPOINTS
// =============================================================================

// ListEvents returns the filtered, sorted event stream.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	events, err := h.Calendar.GetEvents(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, EventListResponse{
		Events: toEventDTOs(events),
		Count:  len(events),
		Today:  h.Calendar.Today().String(),
	})
}

// ExportICS writes the filtered stream as text/calendar.
func (h *Handler) ExportICS(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	events, err := h.Calendar.GetEvents(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := calendar.WriteICS(&buf, events, h.ICS); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// GetView returns one calendar layout window anchored at ?date (today when absent).
func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	view := calendar.View(chi.URLParam(r, "view"))

	anchor := h.Calendar.Today()
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := calendar.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", err)
			return
		}
		anchor = d
	}

	period, err := calendar.Window(view, anchor, h.Calendar.WeekStart())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	f, err := parseFilters(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	events, err := h.Calendar.GetEvents(r.Context(), period.Filters(f))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ViewDTO{
		View:   string(view),
		Start:  period.Start.String(),
		End:    period.End.String(),
		Today:  h.Calendar.Today().String(),
		Events: toEventDTOs(events),
		Days:   toAgendaDTOs(calendar.Agenda(events)),
	})
}

// GetToday returns today's events plus stream-wide counts.
func (h *Handler) GetToday(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	events, err := h.Calendar.GetEvents(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	sum := calendar.Today(events, h.Calendar.Today())
	writeJSON(w, http.StatusOK, TodayDTO{
		Date:      sum.Date.String(),
		Events:    toEventDTOs(sum.Events),
		Overdue:   sum.Overdue,
		Upcoming:  sum.Upcoming,
		Completed: sum.Completed,
	})
}

// GetTasks returns open events bucketed by urgency.
func (h *Handler) GetTasks(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	events, err := h.Calendar.GetEvents(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTasksDTO(calendar.Tasks(events, h.Calendar.Today(), h.Calendar.WeekStart())))
}

// GetEvent returns a single event by id.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.Calendar.FindEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(e))
}

// DispatchAction applies an action to an event and returns the rebuilt event.
func (h *Handler) DispatchAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID := chi.URLParam(r, "id")
	actionID := chi.URLParam(r, "action")

	var req ActionRequestDTO
	if err := decodeOptional(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	areq := property.ActionRequest{Time: req.Time, Patch: req.Patch}
	if req.Date != "" {
		d, err := calendar.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", err)
			return
		}
		areq.Date = d
	}
	if req.Title != nil {
		areq.Patch.Title = req.Title
	}
	if req.Description != nil {
		areq.Patch.Description = req.Description
	}

	e, err := h.Calendar.FindEvent(ctx, eventID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.Calendar.DispatchAction(ctx, e, actionID, areq)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	dto := DispatchResultDTO{Action: res.Action, EventID: res.EventID, Target: res.Target}
	// The event may have moved out of the window or been renamed by a new
	// service date; its absence is not an error.
	if updated, err := h.Calendar.FindEvent(ctx, eventID); err == nil {
		ev := toEventDTO(updated)
		dto.Event = &ev
	} else if !calendar.IsNotFound(err) {
		h.Logger.Warn("rebuild after action failed", zap.String("event_id", eventID), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, dto)
}

// GetDashboard returns the feed's last snapshot, building one on first use.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	if h.Feed == nil {
		res, err := h.Calendar.Build(r.Context(), calendar.Filters{})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toDashboardDTO(property.Snapshot{
			Events: res.Events, Stats: res.Stats, Window: res.Window, Today: res.Today,
		}))
		return
	}

	snap, ok := h.Feed.Current()
	if !ok {
		var err error
		if snap, err = h.Feed.Refresh(r.Context(), calendar.Filters{}); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(snap))
}

// =============================================================================
// CUSTOM EVENT ENDPOINTS
// =============================================================================

// CreateCustomEvent stores a new custom event.
func (h *Handler) CreateCustomEvent(w http.ResponseWriter, r *http.Request) {
	var req CustomEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ce, err := customEventFromRequest(req)
	if err != nil {
		h.failInput(w, r, err)
		return
	}

	created, err := h.Store.CreateCustomEvent(r.Context(), ce)
	if err != nil {
		h.failInput(w, r, err)
		return
	}

	h.Logger.Info("custom event created", zap.String("id", created.ID), zap.String("title", created.Title))
	writeJSON(w, http.StatusCreated, created)
}

// GetCustomEvent returns the stored row of a custom event.
func (h *Handler) GetCustomEvent(w http.ResponseWriter, r *http.Request) {
	ce, err := h.Store.GetCustomEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ce)
}

// UpdateCustomEvent applies a partial update.
func (h *Handler) UpdateCustomEvent(w http.ResponseWriter, r *http.Request) {
	var patch property.CustomEventPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if patch.Time != nil && *patch.Time != "" {
		clock, err := calendar.NormalizeClock(*patch.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid time", err)
			return
		}
		patch.Time = &clock
	}

	updated, err := h.Store.UpdateCustomEvent(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.failInput(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteCustomEvent removes a custom event.
func (h *Handler) DeleteCustomEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteCustomEvent(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.Logger.Info("custom event deleted", zap.String("id", id))
	w.WriteHeader(http.StatusNoContent)
}

func customEventFromRequest(req CustomEventRequest) (property.CustomEvent, error) {
	ce := property.CustomEvent{
		ID:               strings.TrimSpace(req.ID),
		PropertyID:       req.PropertyID,
		UnitID:           req.UnitID,
		EventType:        calendar.EventType(req.EventType),
		Title:            req.Title,
		Description:      req.Description,
		AllDay:           req.AllDay,
		IsRecurring:      req.IsRecurring,
		RecurringPattern: calendar.RecurringPattern(req.RecurringPattern),
		AssigneeID:       req.AssigneeID,
		AssigneeType:     calendar.AssigneeType(req.AssigneeType),
	}

	var err error
	if req.Date != "" {
		if ce.Date, err = calendar.ParseDate(req.Date); err != nil {
			return ce, fmt.Errorf("%w: date: %v", calendar.ErrInvalidInput, err)
		}
	}
	if req.EndDate != "" {
		if ce.EndDate, err = calendar.ParseDate(req.EndDate); err != nil {
			return ce, fmt.Errorf("%w: end_date: %v", calendar.ErrInvalidInput, err)
		}
	}
	if req.Time != "" {
		if ce.Time, err = calendar.NormalizeClock(req.Time); err != nil {
			return ce, fmt.Errorf("%w: time: %v", calendar.ErrInvalidInput, err)
		}
	}
	return ce, nil
}

// =============================================================================
// IMPORT ENDPOINT
// =============================================================================

// Import upserts a JSON row dump.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	d, err := h.Factory.Decode(r.Body)
	if err != nil {
		h.failInput(w, r, err)
		return
	}

	if err := h.Store.Import(r.Context(), d); err != nil {
		h.failInput(w, r, err)
		return
	}

	res, err := h.Calendar.Build(r.Context(), calendar.Filters{})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.Logger.Info("dataset imported", zap.Int("rows", d.Rows()), zap.Int("events", len(res.Events)))
	writeJSON(w, http.StatusOK, ImportResultDTO{Rows: datasetCounts(d), Events: len(res.Events)})
}

func datasetCounts(d property.Dataset) map[string]int {
	return map[string]int{
		"properties":                        len(d.Properties),
		"units":                             len(d.Units),
		"people":                            len(d.People),
		string(property.SourceLeases):       len(d.Leases),
		string(property.SourceTransactions): len(d.Transactions),
		string(property.SourceMaintenance):  len(d.MaintenanceRequests),
		string(property.SourceInspections):  len(d.Inspections),
		string(property.SourceAppliances):   len(d.Appliances),
		string(property.SourceCustomEvents): len(d.CustomEvents),
	}
}

// Health reports liveness and the feed generation.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "today": h.Calendar.Today().String()}
	if h.Feed != nil {
		resp["generation"] = h.Feed.Generation()
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// REQUEST PARSING
// =============================================================================

// parseFilters reads the filter query parameters.
func parseFilters(r *http.Request) (calendar.Filters, error) {
	q := r.URL.Query()
	f := calendar.Filters{
		PropertyIDs: splitParam(q["property_id"]),
		UnitIDs:     splitParam(q["unit_id"]),
		AssigneeIDs: splitParam(q["assignee_id"]),
		Search:      q.Get("q"),
	}

	for _, s := range splitParam(q["type"]) {
		t, err := calendar.ParseEventType(s)
		if err != nil {
			return f, &calendar.InvalidFilterError{Reason: err.Error()}
		}
		f.EventTypes = append(f.EventTypes, t)
	}
	for _, s := range splitParam(q["status"]) {
		st, err := calendar.ParseStatus(s)
		if err != nil {
			return f, &calendar.InvalidFilterError{Reason: err.Error()}
		}
		f.Statuses = append(f.Statuses, st)
	}

	var err error
	if s := q.Get("from"); s != "" {
		if f.DateFrom, err = calendar.ParseDate(s); err != nil {
			return f, &calendar.InvalidFilterError{Reason: "from: " + err.Error()}
		}
	}
	if s := q.Get("to"); s != "" {
		if f.DateTo, err = calendar.ParseDate(s); err != nil {
			return f, &calendar.InvalidFilterError{Reason: "to: " + err.Error()}
		}
	}

	return f, f.Validate()
}

func splitParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// decodeOptional decodes a JSON body, treating an empty body as zero value.
func decodeOptional(body io.Reader, v any) error {
	if body == nil {
		return nil
	}
	err := json.NewDecoder(body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// fail maps a domain error to its HTTP status.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, ErrorResponse{Error: http.StatusText(status), Code: code, Details: err.Error()})
}

// failInput is fail for handlers whose payload names an event type: an
// unknown type there is bad input, not registry drift.
func (h *Handler) failInput(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, calendar.ErrUnknownEventType) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: http.StatusText(http.StatusBadRequest), Code: "unknown_event_type", Details: err.Error(),
		})
		return
	}
	h.fail(w, r, err)
}

func statusFor(err error) (int, string) {
	switch {
	case calendar.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, calendar.ErrActionNotPermitted):
		return http.StatusConflict, "action_not_permitted"
	case errors.Is(err, calendar.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.Is(err, calendar.ErrNotDispatchable):
		return http.StatusBadRequest, "not_dispatchable"
	case calendar.IsClientError(err):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, calendar.ErrUpstreamFetch):
		return http.StatusBadGateway, "upstream_fetch"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
