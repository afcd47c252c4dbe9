package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/calendar"
	"github.com/odyssey-erp/odyssey-retail/internal/money"
)

// AnalyzeBreakeven computes totals, unit economics, the breakeven threshold and
// a monthly trend for one product. lines must already be restricted to the
// product and to completed sales within the requested range.
func AnalyzeBreakeven(product Product, lines []SaleLine, params BreakevenParams, loc *time.Location) BreakevenReport {
	if loc == nil {
		loc = time.UTC
	}
	report := BreakevenReport{Product: product, Params: params}

	months := make(map[time.Time]*TrendRow)
	var totals BreakevenTotals
	for _, line := range lines {
		if line.Status != SaleCompleted || line.ProductID != product.ID {
			continue
		}
		qty := decimal.NewFromInt(line.Quantity)
		revenue := line.LineTotal()
		base := line.LineCost()
		extra := params.ExtraUnitCost.Mul(qty)

		totals.Units += line.Quantity
		totals.Revenue = totals.Revenue.Add(revenue)
		totals.BaseCost = totals.BaseCost.Add(base)

		start := calendar.Truncate(line.SoldAt.In(loc), calendar.Month)
		row, ok := months[start]
		if !ok {
			row = &TrendRow{Period: start}
			months[start] = row
		}
		row.Units += line.Quantity
		row.Revenue = row.Revenue.Add(revenue)
		row.Cost = row.Cost.Add(base).Add(extra)
	}
	totals.ExtraCost = params.ExtraUnitCost.Mul(decimal.NewFromInt(totals.Units))
	totals.Cost = totals.BaseCost.Add(totals.ExtraCost)
	totals.Profit = totals.Revenue.Sub(totals.Cost)
	report.Totals = totals

	report.Averages = unitEconomics(product, totals, params)
	report.BreakEven = breakevenPoint(totals, report.Averages, params)
	report.Trend = monthlyTrend(months, report.BreakEven.Units)
	return report
}

func unitEconomics(product Product, totals BreakevenTotals, params BreakevenParams) UnitEconomics {
	units := decimal.NewFromInt(totals.Units)
	avg := money.SafeDiv(totals.Revenue, units, product.SellingPrice)
	variable := money.SafeDiv(totals.Cost, units, product.CostPrice.Add(params.ExtraUnitCost))
	margin := avg.Sub(variable)
	return UnitEconomics{
		AveragePrice:            avg,
		VariableCostPerUnit:     variable,
		ContributionMargin:      margin,
		ContributionMarginRatio: money.PercentOf(margin, avg),
	}
}

// breakevenPoint derives the threshold. With units sold the contribution
// margin equals profit/units, so the threshold is computed from the exact
// totals instead of the rounded per-unit margin.
func breakevenPoint(totals BreakevenTotals, unit UnitEconomics, params BreakevenParams) BreakevenPoint {
	if unit.ContributionMargin.Sign() <= 0 {
		return BreakevenPoint{Status: NoMargin}
	}

	var units int64
	var revenue decimal.Decimal
	if totals.Units > 0 {
		sold := decimal.NewFromInt(totals.Units)
		units = money.CeilDiv(params.FixedCost.Mul(sold), totals.Profit)
		revenue = decimal.NewFromInt(units).Mul(totals.Revenue).Div(sold)
	} else {
		units = money.CeilDiv(params.FixedCost, unit.ContributionMargin)
		revenue = decimal.NewFromInt(units).Mul(unit.AveragePrice)
	}

	variance := totals.Units - units
	status := AboveBreakEven
	if variance < 0 {
		status = BelowBreakEven
	}
	return BreakevenPoint{
		Units:    &units,
		Revenue:  &revenue,
		Variance: &variance,
		Status:   status,
	}
}

func monthlyTrend(months map[time.Time]*TrendRow, breakevenUnits *int64) []TrendRow {
	rows := make([]TrendRow, 0, len(months))
	for _, row := range months {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Period.Before(rows[j].Period) })

	var cumulative int64
	for i := range rows {
		row := &rows[i]
		row.Profit = row.Revenue.Sub(row.Cost)
		row.MarginRatio = money.PercentOf(row.Profit, row.Revenue)
		cumulative += row.Units
		row.CumulativeUnits = cumulative
		if breakevenUnits != nil {
			variance := cumulative - *breakevenUnits
			row.Variance = &variance
			row.MetBreakEven = variance >= 0
		}
	}
	return rows
}
