package calendar

import "time"

// Horizon names a period-over-period comparison.
type Horizon string

// Comparison horizons reported for every bucket.
const (
	YearOverYear   Horizon = "year_over_year"
	MonthOverMonth Horizon = "month_over_month"
	WeekOverWeek   Horizon = "week_over_week"
	DayOverDay     Horizon = "day_over_day"
)

// Horizons is the fixed reporting order.
var Horizons = []Horizon{YearOverYear, MonthOverMonth, WeekOverWeek, DayOverDay}

// Unit is the granularity one step of h spans.
func (h Horizon) Unit() Granularity {
	switch h {
	case YearOverYear:
		return Year
	case MonthOverMonth:
		return Month
	case WeekOverWeek:
		return Week
	case DayOverDay:
		return Day
	}
	panic("calendar: unknown horizon " + string(h))
}

// Applies reports whether h can compare buckets of width g. A horizon finer
// than the bucket would land inside the same or the adjacent bucket.
func (h Horizon) Applies(g Granularity) bool {
	return rank(h.Unit()) >= rank(g)
}

// PriorBucket returns the start of the bucket of width g holding the position
// one horizon unit before start. Weeks are anchored on their Thursday, as ISO
// week numbering does, so a week maps onto the matching week a month or a year
// earlier rather than onto the week before it.
func PriorBucket(start time.Time, h Horizon, g Granularity) time.Time {
	anchor := start
	if g == Week {
		anchor = addDays(start, 3)
	}
	return Truncate(ShiftHorizon(anchor, h), g)
}

func rank(g Granularity) int {
	for i, v := range Granularities {
		if v == g {
			return i
		}
	}
	return -1
}

// ShiftHorizon returns the same position one horizon unit earlier.
func ShiftHorizon(t time.Time, h Horizon) time.Time {
	switch h {
	case YearOverYear:
		return ShiftBack(t, Year)
	case MonthOverMonth:
		return ShiftBack(t, Month)
	case WeekOverWeek:
		return ShiftBack(t, Week)
	case DayOverDay:
		return ShiftBack(t, Day)
	}
	panic("calendar: unknown horizon " + string(h))
}
