package calendar

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// DefaultMaxOccurrences caps a recurring series when no limit is configured.
const DefaultMaxOccurrences = 500

// ExpandConfig bounds recurrence expansion.
type ExpandConfig struct {
	Window Period

	// MaxOccurrences caps the drafts produced per series. Zero means the default.
	MaxOccurrences int
}

// ExpandResult is the occurrences of one series and whether the cap cut it short.
type ExpandResult struct {
	Drafts    []Draft
	Truncated bool
}

// Expand returns the occurrences of a recurring draft that fall inside the
// window. A non-recurring draft comes back unchanged if its date is inside.
//
// The first occurrence keeps the series id; later ones append _YYYYMMDD so
// ids stay unique within a build. Multi-day events keep their length.
// Monthly series anchored on the 29th-31st skip months without that day.
func Expand(d Draft, cfg ExpandConfig) (ExpandResult, error) {
	var res ExpandResult
	if cfg.Window.End.Before(cfg.Window.Start) {
		return res, fmt.Errorf("%w: window end before start", ErrInvalidInput)
	}
	if !d.IsRecurring || !d.RecurringPattern.Valid() {
		if cfg.Window.Contains(d.Date) {
			res.Drafts = []Draft{d}
		}
		return res, nil
	}
	if d.Date.IsZero() {
		return res, &SourceRecordError{Kind: string(d.RelatedType), ID: d.RelatedID, Field: "date", Reason: "is missing"}
	}

	max := cfg.MaxOccurrences
	if max <= 0 {
		max = DefaultMaxOccurrences
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    frequency(d.RecurringPattern),
		Dtstart: d.Date.Time(time.UTC),
		Until:   cfg.Window.End.Time(time.UTC),
	})
	if err != nil {
		return res, fmt.Errorf("build recurrence for %s: %w", d.ID, err)
	}

	span := 0
	if d.EndDate != nil && !d.EndDate.IsZero() {
		span = DaysBetween(d.Date, *d.EndDate)
	}

	after := cfg.Window.Start.Time(time.UTC)
	before := cfg.Window.End.Time(time.UTC)

	for _, at := range rule.Between(after, before, true) {
		if len(res.Drafts) >= max {
			res.Truncated = true
			break
		}
		occ := d
		day := DateOf(at)
		occ.Date = day
		if span > 0 {
			end := day.AddDays(span)
			occ.EndDate = &end
		}
		if !day.Equal(d.Date) {
			occ.ID = fmt.Sprintf("%s_%04d%02d%02d", d.ID, day.Year(), int(day.Month()), day.Day())
		}
		res.Drafts = append(res.Drafts, occ)
	}
	return res, nil
}

func frequency(p RecurringPattern) rrule.Frequency {
	switch p {
	case RepeatDaily:
		return rrule.DAILY
	case RepeatWeekly:
		return rrule.WEEKLY
	case RepeatYearly:
		return rrule.YEARLY
	default:
		return rrule.MONTHLY
	}
}
