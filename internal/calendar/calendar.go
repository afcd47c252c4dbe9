// Package calendar buckets timestamps into reporting periods and walks those
// periods backwards with month-end clamping.
package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is the width of a reporting bucket.
type Granularity string

// Supported granularities.
const (
	Hour  Granularity = "hour"
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
	Year  Granularity = "year"
)

// Granularities lists the supported values from finest to coarsest.
var Granularities = []Granularity{Hour, Day, Week, Month, Year}

var aliases = map[string]Granularity{
	"hour": Hour, "hourly": Hour,
	"day": Day, "daily": Day,
	"week": Week, "weekly": Week,
	"month": Month, "monthly": Month,
	"year": Year, "yearly": Year,
}

// maxSpanDays bounds the requested range per granularity.
var maxSpanDays = map[Granularity]int{
	Hour:  7,
	Day:   365,
	Week:  730,
	Month: 1825,
	Year:  3650,
}

// ParseGranularity accepts the canonical names and their -ly aliases.
func ParseGranularity(value string) (Granularity, error) {
	g, ok := aliases[strings.ToLower(strings.TrimSpace(value))]
	if !ok {
		return "", fmt.Errorf("calendar: unsupported granularity %q", value)
	}
	return g, nil
}

// Valid reports whether g is one of the supported granularities.
func (g Granularity) Valid() bool {
	_, ok := maxSpanDays[g]
	return ok
}

// MaxSpanDays returns the widest date range accepted for g.
func (g Granularity) MaxSpanDays() int {
	return maxSpanDays[g]
}

// Truncate returns the start of the bucket containing t, in t's location.
// Weeks start on Monday.
func Truncate(t time.Time, g Granularity) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch g {
	case Hour:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, loc)
	case Day:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	case Week:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case Year:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	}
	panic(fmt.Sprintf("calendar: unknown granularity %q", g))
}

// ShiftBack moves t back by one unit of g.
func ShiftBack(t time.Time, g Granularity) time.Time {
	switch g {
	case Hour:
		return t.Add(-time.Hour)
	case Day:
		return addDays(t, -1)
	case Week:
		return addDays(t, -7)
	case Month:
		return AddMonthsClamped(t, -1)
	case Year:
		return AddMonthsClamped(t, -12)
	}
	panic(fmt.Sprintf("calendar: unknown granularity %q", g))
}

// AddMonthsClamped adds n months to t keeping the time of day and clamping the
// day to the last valid day of the target month (Mar 31 - 1 month = Feb 28/29).
func AddMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + n
	year := y + floorDiv(total, 12)
	month := time.Month(total - floorDiv(total, 12)*12 + 1)
	if last := DaysIn(year, month); d > last {
		d = last
	}
	return time.Date(year, month, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DayRange expands two dates into an inclusive range from the start of the
// first day to the last nanosecond of the second, in loc.
func DayRange(from, to time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	start := time.Date(fy, fm, fd, 0, 0, 0, 0, loc)
	end := time.Date(ty, tm, td, 23, 59, 59, int(time.Second-time.Nanosecond), loc)
	return start, end
}

func addDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+n, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
