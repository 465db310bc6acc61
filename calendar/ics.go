package calendar

import (
	"io"
	"time"

	ical "github.com/arran4/golang-ical"
)

const propStatus = ical.ComponentProperty("X-PROPCAL-STATUS")
const propEventType = ical.ComponentProperty("X-PROPCAL-TYPE")

// ICSOptions controls ICS export.
type ICSOptions struct {
	ProductID string
	Location  *time.Location

	// BaseURL, when set, is prefixed to view hrefs for the URL property.
	BaseURL string

	// Stamp is DTSTAMP for every event. Zero means time.Now().
	Stamp time.Time
}

// WriteICS serializes events as an iCalendar feed. Recurring series must be
// expanded before export; each occurrence becomes its own VEVENT.
func WriteICS(w io.Writer, events []Event, opts ICSOptions) error {
	return NewICSCalendar(events, opts).SerializeTo(w)
}

// NewICSCalendar builds the iCalendar document for events.
func NewICSCalendar(events []Event, opts ICSOptions) *ical.Calendar {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}
	prodID := opts.ProductID
	if prodID == "" {
		prodID = "-//warp//property-engine//EN"
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(prodID)

	for _, e := range events {
		ve := cal.AddEvent(e.ID)
		ve.SetDtStampTime(stamp.UTC())
		if !e.CreatedAt.IsZero() {
			ve.SetCreatedTime(e.CreatedAt.UTC())
		}
		if !e.UpdatedAt.IsZero() {
			ve.SetModifiedAt(e.UpdatedAt.UTC())
		}

		if e.Timed() {
			start, err := e.Date.At(e.Time, loc)
			if err != nil {
				start = e.Date.Time(loc)
			}
			ve.SetStartAt(start.UTC())
			end := start.Add(time.Hour)
			if e.EndDate != nil && e.EndDate.After(e.Date) {
				if last, err := e.EndDate.At(e.Time, loc); err == nil {
					end = last.Add(time.Hour)
				}
			}
			ve.SetEndAt(end.UTC())
		} else {
			ve.SetAllDayStartAt(e.Date.Time(time.UTC))
			// DTEND is exclusive for all-day events.
			ve.SetAllDayEndAt(e.LastDate().AddDays(1).Time(time.UTC))
		}

		summary := e.Title
		if summary == "" {
			summary = e.Display.Label
		}
		ve.SetSummary(summary)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		if e.Property != nil && e.Property.Name != "" {
			location := e.Property.Name
			if e.Unit != nil && e.Unit.Name != "" {
				location += ", " + e.Unit.Name
			}
			ve.SetLocation(location)
		}
		if view, ok := FindAction(e.Actions, ActionIDView); ok && opts.BaseURL != "" {
			ve.SetURL(opts.BaseURL + view.Href)
		}

		if e.Status == StatusCancelled {
			ve.SetStatus(ical.ObjectStatusCancelled)
		} else {
			ve.SetStatus(ical.ObjectStatusConfirmed)
		}
		ve.SetProperty(ical.ComponentPropertyCategories, e.Display.Label)
		ve.SetProperty(propStatus, string(e.Status))
		ve.SetProperty(propEventType, string(e.Type))
	}
	return cal
}
