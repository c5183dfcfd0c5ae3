package report

import (
	"errors"
	"strings"
	"time"

	"cassa/internal/core"
)

// Preset names a reporting period.
type Preset string

const (
	Today  Preset = "today"
	Week   Preset = "week"
	Month  Preset = "month"
	Custom Preset = "custom"
)

var (
	ErrUnknownPreset = errors.New("range must be one of today, week, month, custom")
	ErrMissingBound  = errors.New("custom range needs both start and end")
)

// ParsePreset accepts a preset name in any case. Empty input means month.
func ParsePreset(s string) (Preset, error) {
	p := Preset(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return Month, nil
	case Today, Week, Month, Custom:
		return p, nil
	default:
		return "", &core.ValidationError{Field: "range", Err: ErrUnknownPreset}
	}
}

// Resolve turns a preset into concrete inclusive bounds around today. Weeks run Monday
// to Sunday; months are calendar months. Custom ranges use start and end verbatim.
func Resolve(p Preset, today, start, end core.Date) (core.DateRange, error) {
	switch p {
	case Today:
		return core.DateRange{Start: today, End: today}, nil
	case Week:
		offset := (int(today.Weekday()) + 6) % 7
		monday := today.AddDays(-offset)
		return core.DateRange{Start: monday, End: monday.AddDays(6)}, nil
	case Month:
		return MonthOf(today), nil
	case Custom:
		if start.IsZero() {
			return core.DateRange{}, &core.ValidationError{Field: "start", Err: ErrMissingBound}
		}
		if end.IsZero() {
			return core.DateRange{}, &core.ValidationError{Field: "end", Err: ErrMissingBound}
		}
		return core.NewDateRange(start, end)
	default:
		return core.DateRange{}, &core.ValidationError{Field: "range", Err: ErrUnknownPreset}
	}
}

// MonthOf returns the calendar month containing d.
func MonthOf(d core.Date) core.DateRange {
	first := core.NewDate(d.Year(), d.Month(), 1)
	last := core.Date{Time: first.Time.AddDate(0, 1, -1)}
	return core.DateRange{Start: first, End: last}
}

// TodayIn returns the calendar day of now in loc.
func TodayIn(now time.Time, loc *time.Location) core.Date {
	if loc == nil {
		loc = time.UTC
	}
	return core.DateOf(now.In(loc))
}
