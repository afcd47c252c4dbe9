package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func TestTruncate(t *testing.T) {
	ts := at(2024, time.February, 29, 14, 35) // Thursday
	cases := map[Granularity]time.Time{
		Hour:  at(2024, time.February, 29, 14, 0),
		Day:   at(2024, time.February, 29, 0, 0),
		Week:  at(2024, time.February, 26, 0, 0),
		Month: at(2024, time.February, 1, 0, 0),
		Year:  at(2024, time.January, 1, 0, 0),
	}
	for g, want := range cases {
		assert.Equal(t, want, Truncate(ts, g), string(g))
	}
}

func TestTruncateWeekOnMondayAndSunday(t *testing.T) {
	monday := at(2024, time.January, 1, 9, 0)
	sunday := at(2024, time.January, 7, 23, 0)
	assert.Equal(t, at(2024, time.January, 1, 0, 0), Truncate(monday, Week))
	assert.Equal(t, at(2024, time.January, 1, 0, 0), Truncate(sunday, Week))
	// week spanning a year boundary
	assert.Equal(t, at(2024, time.December, 30, 0, 0), Truncate(at(2025, time.January, 2, 0, 0), Week))
}

func TestTruncateKeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	ts := time.Date(2024, time.March, 1, 1, 30, 0, 0, loc)
	got := Truncate(ts, Day)
	assert.Equal(t, loc, got.Location())
	assert.Equal(t, 1, got.Day())
}

func TestShiftBack(t *testing.T) {
	assert.Equal(t, at(2024, time.January, 1, 23, 0), ShiftBack(at(2024, time.January, 2, 0, 0), Hour))
	assert.Equal(t, at(2023, time.December, 31, 0, 0), ShiftBack(at(2024, time.January, 1, 0, 0), Day))
	assert.Equal(t, at(2023, time.December, 25, 0, 0), ShiftBack(at(2024, time.January, 1, 0, 0), Week))
	assert.Equal(t, at(2023, time.December, 1, 0, 0), ShiftBack(at(2024, time.January, 1, 0, 0), Month))
	assert.Equal(t, at(2023, time.January, 1, 0, 0), ShiftBack(at(2024, time.January, 1, 0, 0), Year))
}

func TestAddMonthsClamped(t *testing.T) {
	assert.Equal(t, at(2024, time.February, 29, 10, 0), AddMonthsClamped(at(2024, time.March, 31, 10, 0), -1))
	assert.Equal(t, at(2023, time.February, 28, 0, 0), AddMonthsClamped(at(2023, time.March, 31, 0, 0), -1))
	assert.Equal(t, at(2023, time.February, 28, 0, 0), AddMonthsClamped(at(2024, time.February, 29, 0, 0), -12))
	assert.Equal(t, at(2023, time.December, 31, 0, 0), AddMonthsClamped(at(2024, time.January, 31, 0, 0), -1))
	assert.Equal(t, at(2023, time.November, 30, 0, 0), AddMonthsClamped(at(2024, time.January, 30, 0, 0), -2))
	assert.Equal(t, at(2025, time.February, 28, 0, 0), AddMonthsClamped(at(2024, time.January, 31, 0, 0), 13))
}

func TestDaysIn(t *testing.T) {
	assert.Equal(t, 29, DaysIn(2024, time.February))
	assert.Equal(t, 28, DaysIn(1900, time.February))
	assert.Equal(t, 29, DaysIn(2000, time.February))
	assert.Equal(t, 31, DaysIn(2024, time.December))
}

func TestShiftHorizon(t *testing.T) {
	base := at(2024, time.March, 31, 0, 0)
	assert.Equal(t, at(2023, time.March, 31, 0, 0), ShiftHorizon(base, YearOverYear))
	assert.Equal(t, at(2024, time.February, 29, 0, 0), ShiftHorizon(base, MonthOverMonth))
	assert.Equal(t, at(2024, time.March, 24, 0, 0), ShiftHorizon(base, WeekOverWeek))
	assert.Equal(t, at(2024, time.March, 30, 0, 0), ShiftHorizon(base, DayOverDay))
}

func TestParseGranularity(t *testing.T) {
	g, err := ParseGranularity("Monthly")
	require.NoError(t, err)
	assert.Equal(t, Month, g)
	assert.Equal(t, 1825, g.MaxSpanDays())

	_, err = ParseGranularity("quarter")
	assert.Error(t, err)
	assert.False(t, Granularity("quarter").Valid())
}

func TestUnknownGranularityPanics(t *testing.T) {
	assert.Panics(t, func() { Truncate(time.Now(), Granularity("quarter")) })
	assert.Panics(t, func() { ShiftBack(time.Now(), Granularity("quarter")) })
}

func TestDayRange(t *testing.T) {
	start, end := DayRange(at(2023, time.January, 1, 15, 0), at(2024, time.February, 1, 3, 0), time.UTC)
	assert.Equal(t, at(2023, time.January, 1, 0, 0), start)
	assert.Equal(t, time.Date(2024, time.February, 1, 23, 59, 59, 999999999, time.UTC), end)
}

func TestPriorBucketWeekly(t *testing.T) {
	week := at(2024, time.March, 11, 0, 0)
	assert.Equal(t, at(2023, time.March, 13, 0, 0), PriorBucket(week, YearOverYear, Week))
	assert.Equal(t, at(2024, time.February, 12, 0, 0), PriorBucket(week, MonthOverMonth, Week))
	assert.Equal(t, at(2024, time.March, 4, 0, 0), PriorBucket(week, WeekOverWeek, Week))
}

func TestPriorBucketTruncatesToGranularity(t *testing.T) {
	assert.Equal(t, at(2023, time.March, 1, 0, 0), PriorBucket(at(2024, time.March, 1, 0, 0), YearOverYear, Month))
	assert.Equal(t, at(2024, time.February, 29, 0, 0), PriorBucket(at(2024, time.March, 31, 0, 0), MonthOverMonth, Day))
	assert.Equal(t, at(2024, time.March, 10, 14, 0), PriorBucket(at(2024, time.March, 11, 14, 0), DayOverDay, Hour))
}

func TestHorizonApplies(t *testing.T) {
	assert.True(t, DayOverDay.Applies(Hour))
	assert.True(t, DayOverDay.Applies(Day))
	assert.False(t, DayOverDay.Applies(Week))
	assert.True(t, MonthOverMonth.Applies(Week))
	assert.False(t, WeekOverWeek.Applies(Month))
	assert.True(t, YearOverYear.Applies(Year))
	assert.False(t, MonthOverMonth.Applies(Year))
}
