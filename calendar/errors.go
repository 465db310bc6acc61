/*
errors.go - Centralized error types for the calendar engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Source record errors - a domain row cannot become an event (skipped, counted)
  2. Programming errors   - registry and enumeration drifted apart (fail loudly)
  3. Dispatch errors      - an action is not legal for the event's current state
  4. Upstream errors      - the persistence collaborator failed (propagated, no retry)

USAGE:
  if errors.Is(err, calendar.ErrActionNotPermitted) {
      // reject the operation, nothing was mutated
  }

SEE ALSO:
  - builder.go: Produces SourceRecordError and UnknownEventTypeError
  - property/calendar.go: Produces ActionNotPermittedError and FetchError
*/
package calendar

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrSourceRecordInvalid is returned when a domain row is missing a required
	// date or carries a malformed one. The row is skipped, never emitted.
	ErrSourceRecordInvalid = errors.New("source record invalid")

	// ErrUnknownEventType is returned when an event type has no registry entry.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrActionNotPermitted is returned when an action is not in the resolved
	// action list for the event's current type and status.
	ErrActionNotPermitted = errors.New("action not permitted")

	// ErrNotDispatchable is returned for view/navigate actions, which the
	// presentation layer handles itself.
	ErrNotDispatchable = errors.New("action is not dispatchable")

	// ErrUpstreamFetch is returned when the persistence collaborator fails.
	ErrUpstreamFetch = errors.New("upstream fetch failed")

	// ErrSuperseded is returned when a refresh finished after a newer one started.
	ErrSuperseded = errors.New("refresh superseded by a newer generation")

	// ErrNotFound is returned when a referenced row or event does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned for malformed filters and action payloads.
	ErrInvalidInput = errors.New("invalid input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// SourceRecordError describes why a row produced no event.
type SourceRecordError struct {
	Kind   string // lease, transaction, maintenance_request, ...
	ID     string
	Field  string
	Reason string
}

func (e *SourceRecordError) Error() string {
	return fmt.Sprintf("invalid %s %s: %s %s", e.Kind, e.ID, e.Field, e.Reason)
}

func (e *SourceRecordError) Unwrap() error { return ErrSourceRecordInvalid }

// UnknownEventTypeError is a programming error: the registry does not cover the type.
type UnknownEventTypeError struct {
	Type EventType
}

func (e *UnknownEventTypeError) Error() string {
	return fmt.Sprintf("unknown event type %q: registry and enumeration are out of sync", string(e.Type))
}

func (e *UnknownEventTypeError) Unwrap() error { return ErrUnknownEventType }

// ActionNotPermittedError names the rejected action and the state it was checked against.
type ActionNotPermittedError struct {
	EventID  string
	ActionID string
	Type     EventType
	Status   EventStatus
}

func (e *ActionNotPermittedError) Error() string {
	return fmt.Sprintf("action %q not permitted for %s event %s in status %s",
		e.ActionID, e.Type, e.EventID, e.Status)
}

func (e *ActionNotPermittedError) Unwrap() error { return ErrActionNotPermitted }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotDispatchable) ||
		errors.Is(err, ErrSourceRecordInvalid)
}

// IsNotFound returns true if the error indicates a missing row or event.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable returns true if the caller may retry. Retry policy belongs to the caller.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamFetch) || errors.Is(err, ErrSuperseded)
}
