package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-retail/internal/money"
)

func fixtureParams() BreakevenParams {
	return BreakevenParams{ExtraUnitCost: dec("2"), FixedCost: dec("100")}
}

func TestAnalyzeBreakevenFixture(t *testing.T) {
	report := AnalyzeBreakeven(fixtureProduct(), fixtureLines(), fixtureParams(), time.UTC)

	assert.Equal(t, int64(21), report.Totals.Units)
	assert.Equal(t, "490", report.Totals.Revenue.String())
	assert.Equal(t, "210", report.Totals.BaseCost.String())
	assert.Equal(t, "42", report.Totals.ExtraCost.String())
	assert.Equal(t, "252", report.Totals.Cost.String())
	assert.Equal(t, "238", report.Totals.Profit.String())

	assert.Equal(t, "23.33", money.Format(report.Averages.AveragePrice))
	assert.Equal(t, "12.00", money.Format(report.Averages.VariableCostPerUnit))
	assert.Equal(t, "11.33", money.Format(report.Averages.ContributionMargin))
	assert.Equal(t, "48.57", money.Format(report.Averages.ContributionMarginRatio))

	be := report.BreakEven
	require.NotNil(t, be.Units)
	assert.Equal(t, int64(9), *be.Units)
	require.NotNil(t, be.Revenue)
	assert.Equal(t, "210.00", money.Format(*be.Revenue))
	require.NotNil(t, be.Variance)
	assert.Equal(t, int64(12), *be.Variance)
	assert.Equal(t, AboveBreakEven, be.Status)
}

func TestAnalyzeBreakevenTrend(t *testing.T) {
	report := AnalyzeBreakeven(fixtureProduct(), fixtureLines(), fixtureParams(), time.UTC)
	require.Len(t, report.Trend, 4)

	wantCumulative := []int64{4, 9, 19, 21}
	wantVariance := []int64{-5, 0, 10, 12}
	wantMet := []bool{false, true, true, true}
	wantCost := []string{"48", "60", "120", "24"}
	for i, row := range report.Trend {
		assert.Equal(t, wantCumulative[i], row.CumulativeUnits, "row %d", i)
		require.NotNil(t, row.Variance)
		assert.Equal(t, wantVariance[i], *row.Variance, "row %d", i)
		assert.Equal(t, wantMet[i], row.MetBreakEven, "row %d", i)
		assert.Equal(t, wantCost[i], row.Cost.String(), "row %d", i)
	}

	feb := report.Trend[3]
	assert.True(t, date(2024, time.February, 1).Equal(feb.Period))
	assert.Equal(t, "36", feb.Profit.String())
	assert.Equal(t, "60.00", money.Format(feb.MarginRatio))
}

func TestAnalyzeBreakevenNoMargin(t *testing.T) {
	params := BreakevenParams{ExtraUnitCost: dec("20"), FixedCost: dec("100")}
	report := AnalyzeBreakeven(fixtureProduct(), fixtureLines(), params, time.UTC)

	assert.Equal(t, NoMargin, report.BreakEven.Status)
	assert.Nil(t, report.BreakEven.Units)
	assert.Nil(t, report.BreakEven.Revenue)
	assert.Nil(t, report.BreakEven.Variance)
	for _, row := range report.Trend {
		assert.False(t, row.MetBreakEven)
		assert.Nil(t, row.Variance)
	}
}

func TestAnalyzeBreakevenWithoutSalesFallsBack(t *testing.T) {
	report := AnalyzeBreakeven(fixtureProduct(), nil, fixtureParams(), time.UTC)

	assert.Equal(t, "25", report.Averages.AveragePrice.String())
	assert.Equal(t, "12", report.Averages.VariableCostPerUnit.String())
	assert.Equal(t, "13", report.Averages.ContributionMargin.String())
	require.NotNil(t, report.BreakEven.Units)
	assert.Equal(t, int64(8), *report.BreakEven.Units)
	assert.Equal(t, "200.00", money.Format(*report.BreakEven.Revenue))
	assert.Equal(t, int64(-8), *report.BreakEven.Variance)
	assert.Equal(t, BelowBreakEven, report.BreakEven.Status)
	assert.Empty(t, report.Trend)
}

func TestAnalyzeBreakevenZeroFixedCost(t *testing.T) {
	params := BreakevenParams{ExtraUnitCost: dec("2")}
	report := AnalyzeBreakeven(fixtureProduct(), fixtureLines(), params, time.UTC)

	require.NotNil(t, report.BreakEven.Units)
	assert.Equal(t, int64(0), *report.BreakEven.Units)
	assert.Equal(t, int64(21), *report.BreakEven.Variance)
	for _, row := range report.Trend {
		assert.True(t, row.MetBreakEven)
	}
}

func TestAnalyzeBreakevenIgnoresOtherProducts(t *testing.T) {
	lines := fixtureLines()
	other := saleLine(5, at(2024, time.February, 2), 50, "99")
	other.ProductID = 2
	lines = append(lines, other)

	report := AnalyzeBreakeven(fixtureProduct(), lines, fixtureParams(), time.UTC)
	assert.Equal(t, int64(21), report.Totals.Units)
}
