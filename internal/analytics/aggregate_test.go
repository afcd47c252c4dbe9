package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-retail/internal/calendar"
)

func TestAggregateMonthlyFixture(t *testing.T) {
	buckets := Aggregate(fixtureLines(), calendar.Month, time.UTC)
	require.Len(t, buckets, 4)

	starts := []time.Time{
		date(2023, time.January, 1),
		date(2023, time.December, 1),
		date(2024, time.January, 1),
		date(2024, time.February, 1),
	}
	revenue := []string{"80", "100", "250", "60"}
	cost := []string{"40", "50", "100", "20"}
	for i, b := range buckets {
		assert.True(t, starts[i].Equal(b.Start), "bucket %d start %s", i, b.Start)
		assert.True(t, dec(revenue[i]).Equal(b.Revenue), "bucket %d revenue %s", i, b.Revenue)
		assert.True(t, dec(cost[i]).Equal(b.Cost), "bucket %d cost %s", i, b.Cost)
		assert.Equal(t, int64(1), b.Sales)
	}

	totals := Totals(buckets)
	assert.Equal(t, "490", totals.Revenue.String())
	assert.Equal(t, "210", totals.Cost.String())
	assert.Equal(t, "280", totals.Profit.String())
	assert.Equal(t, int64(21), totals.Units)
	assert.Equal(t, int64(4), totals.Sales)
}

func TestAggregateAppliesDiscountBeforeTax(t *testing.T) {
	soldAt := at(2024, time.March, 5)
	lines := []SaleLine{
		{SaleID: 9, SoldAt: soldAt, Status: SaleCompleted, Discount: dec("20"), TaxPercent: dec("10"), ProductID: 1, Quantity: 2, UnitPrice: dec("50"), UnitCost: dec("10")},
		{SaleID: 9, SoldAt: soldAt, Status: SaleCompleted, Discount: dec("20"), TaxPercent: dec("10"), ProductID: 2, Quantity: 1, UnitPrice: dec("100"), UnitCost: dec("10")},
	}

	buckets := Aggregate(lines, calendar.Day, time.UTC)
	require.Len(t, buckets, 1)
	b := buckets[0]
	assert.Equal(t, "198", b.Revenue.String())
	assert.Equal(t, "30", b.Cost.String())
	assert.Equal(t, "168", b.Profit.String())
	assert.Equal(t, int64(3), b.Units)
	assert.Equal(t, int64(1), b.Sales)
}

func TestAggregateSkipsIncompleteSales(t *testing.T) {
	lines := fixtureLines()
	lines[0].Status = SalePending
	lines[1].Status = SaleCancelled

	buckets := Aggregate(lines, calendar.Year, time.UTC)
	require.Len(t, buckets, 1)
	assert.True(t, date(2024, time.January, 1).Equal(buckets[0].Start))
	assert.Equal(t, "310", buckets[0].Revenue.String())
}

func TestAggregateBucketsInLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	l := saleLine(1, time.Date(2024, time.January, 31, 23, 30, 0, 0, time.UTC), 1, "10")

	utc := Aggregate([]SaleLine{l}, calendar.Month, time.UTC)
	local := Aggregate([]SaleLine{l}, calendar.Month, loc)
	require.Len(t, utc, 1)
	require.Len(t, local, 1)
	assert.Equal(t, time.January, utc[0].Start.Month())
	assert.Equal(t, time.February, local[0].Start.Month())
	assert.Equal(t, loc, local[0].Start.Location())
}

func TestAggregateZeroRevenueHasZeroMargin(t *testing.T) {
	buckets := Aggregate([]SaleLine{saleLine(1, at(2024, time.May, 1), 3, "0")}, calendar.Day, time.UTC)
	require.Len(t, buckets, 1)
	assert.True(t, buckets[0].Margin.IsZero())
	assert.Equal(t, "-30", buckets[0].Profit.String())
}

func TestAggregateEmpty(t *testing.T) {
	buckets := Aggregate(nil, calendar.Week, nil)
	assert.Empty(t, buckets)
	totals := Totals(buckets)
	assert.True(t, totals.Revenue.IsZero())
	assert.True(t, totals.Margin.IsZero())
}
