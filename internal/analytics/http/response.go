package analytichttp

import (
	"time"

	"github.com/odyssey-erp/odyssey-retail/internal/analytics"
	"github.com/odyssey-erp/odyssey-retail/internal/calendar"
	"github.com/odyssey-erp/odyssey-retail/internal/money"
)

type metricsJSON struct {
	Revenue string `json:"revenue"`
	Cost    string `json:"cost"`
	Profit  string `json:"profit"`
	Margin  string `json:"profit_margin"`
	Units   int64  `json:"units"`
	Sales   int64  `json:"sales_count"`
}

type changeJSON struct {
	Value   *string `json:"value"`
	Percent *string `json:"percent"`
}

type pointJSON struct {
	Period  string                                     `json:"period"`
	Metrics metricsJSON                                `json:"metrics"`
	Changes map[string]map[calendar.Horizon]changeJSON `json:"changes"`
}

type timeSeriesSummaryJSON struct {
	Totals        metricsJSON                                `json:"totals"`
	AverageSale   string                                     `json:"average_sale_value"`
	LatestPeriod  *string                                    `json:"latest_period"`
	LatestChanges map[string]map[calendar.Horizon]changeJSON `json:"latest_changes"`
}

type timeSeriesMetaJSON struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	GroupBy     string `json:"group_by"`
	GeneratedAt string `json:"generated_at"`
}

type timeSeriesResponse struct {
	Count      int                   `json:"count"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
	Results    []pointJSON           `json:"results"`
	Summary    timeSeriesSummaryJSON `json:"summary"`
	Meta       timeSeriesMetaJSON    `json:"meta"`
}

func newMetrics(m analytics.Metrics) metricsJSON {
	return metricsJSON{
		Revenue: money.Format(m.Revenue),
		Cost:    money.Format(m.Cost),
		Profit:  money.Format(m.Profit),
		Margin:  money.Format(m.Margin),
		Units:   m.Units,
		Sales:   m.Sales,
	}
}

func newMetricChanges(changes analytics.MetricChanges) map[calendar.Horizon]changeJSON {
	out := make(map[calendar.Horizon]changeJSON, len(calendar.Horizons))
	for _, h := range calendar.Horizons {
		c := changes[h]
		out[h] = changeJSON{Value: money.FormatPtr(c.Value), Percent: money.FormatPtr(c.Percent)}
	}
	return out
}

func newChanges(c analytics.BucketChanges) map[string]map[calendar.Horizon]changeJSON {
	return map[string]map[calendar.Horizon]changeJSON{
		"revenue": newMetricChanges(c.Revenue),
		"cost":    newMetricChanges(c.Cost),
		"profit":  newMetricChanges(c.Profit),
	}
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func newTimeSeriesResponse(res analytics.TimeSeriesResult) timeSeriesResponse {
	results := make([]pointJSON, 0, len(res.Results))
	for _, p := range res.Results {
		results = append(results, pointJSON{
			Period:  formatTime(p.Period),
			Metrics: newMetrics(p.Metrics),
			Changes: newChanges(p.Changes),
		})
	}
	summary := timeSeriesSummaryJSON{
		Totals:      newMetrics(res.Summary.Totals),
		AverageSale: money.Format(res.Summary.AverageSale),
	}
	if res.Summary.LatestPeriod != nil {
		period := formatTime(*res.Summary.LatestPeriod)
		summary.LatestPeriod = &period
	}
	if res.Summary.LatestChanges != nil {
		summary.LatestChanges = newChanges(*res.Summary.LatestChanges)
	}
	return timeSeriesResponse{
		Count:      res.Count,
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalPages: res.TotalPages,
		Results:    results,
		Summary:    summary,
		Meta: timeSeriesMetaJSON{
			Start:       formatTime(res.Meta.Start),
			End:         formatTime(res.Meta.End),
			GroupBy:     string(res.Meta.Granularity),
			GeneratedAt: formatTime(res.Meta.GeneratedAt),
		},
	}
}

type trendRowJSON struct {
	Period          string `json:"period"`
	Units           int64  `json:"units"`
	Revenue         string `json:"revenue"`
	Cost            string `json:"cost"`
	Profit          string `json:"profit"`
	MarginRatio     string `json:"margin_ratio"`
	CumulativeUnits int64  `json:"cumulative_units"`
	Variance        *int64 `json:"variance"`
	MetBreakEven    bool   `json:"met_break_even"`
}

type productJSON struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	CostPrice    string `json:"cost_price"`
	SellingPrice string `json:"selling_price"`
}

type breakevenTotalsJSON struct {
	Units     int64  `json:"units"`
	Revenue   string `json:"revenue"`
	BaseCost  string `json:"base_cost"`
	ExtraCost string `json:"extra_cost"`
	Cost      string `json:"cost"`
	Profit    string `json:"profit"`
}

type averagesJSON struct {
	AveragePrice            string `json:"average_price"`
	VariableCostPerUnit     string `json:"variable_cost_per_unit"`
	ContributionMargin      string `json:"contribution_margin"`
	ContributionMarginRatio string `json:"contribution_margin_ratio"`
}

type breakEvenJSON struct {
	Quantity *int64  `json:"quantity"`
	Revenue  *string `json:"revenue"`
	Variance *int64  `json:"variance"`
	Status   string  `json:"status"`
}

type parametersJSON struct {
	StartDate     *string `json:"start_date"`
	EndDate       *string `json:"end_date"`
	ExtraUnitCost string  `json:"extra_unit_cost"`
	FixedCost     string  `json:"fixed_cost"`
	Ordering      string  `json:"ordering"`
}

type breakevenSummaryJSON struct {
	Product    productJSON         `json:"product"`
	Totals     breakevenTotalsJSON `json:"totals"`
	Averages   averagesJSON        `json:"averages"`
	BreakEven  breakEvenJSON       `json:"break_even"`
	Parameters parametersJSON      `json:"parameters"`
}

type breakevenResponse struct {
	Count       int                  `json:"count"`
	Page        int                  `json:"page"`
	PageSize    int                  `json:"page_size"`
	TotalPages  int                  `json:"total_pages"`
	Results     []trendRowJSON       `json:"results"`
	Summary     breakevenSummaryJSON `json:"summary"`
	GeneratedAt string               `json:"generated_at"`
}

func optionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func newBreakevenResponse(res analytics.BreakevenResult) breakevenResponse {
	rows := make([]trendRowJSON, 0, len(res.Results))
	for _, row := range res.Results {
		rows = append(rows, trendRowJSON{
			Period:          row.Period.Format("2006-01"),
			Units:           row.Units,
			Revenue:         money.Format(row.Revenue),
			Cost:            money.Format(row.Cost),
			Profit:          money.Format(row.Profit),
			MarginRatio:     money.Format(row.MarginRatio),
			CumulativeUnits: row.CumulativeUnits,
			Variance:        row.Variance,
			MetBreakEven:    row.MetBreakEven,
		})
	}
	s := res.Summary
	return breakevenResponse{
		Count:      res.Count,
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalPages: res.TotalPages,
		Results:    rows,
		Summary: breakevenSummaryJSON{
			Product: productJSON{
				ID:           s.Product.ID,
				Name:         s.Product.Name,
				CostPrice:    money.Format(s.Product.CostPrice),
				SellingPrice: money.Format(s.Product.SellingPrice),
			},
			Totals: breakevenTotalsJSON{
				Units:     s.Totals.Units,
				Revenue:   money.Format(s.Totals.Revenue),
				BaseCost:  money.Format(s.Totals.BaseCost),
				ExtraCost: money.Format(s.Totals.ExtraCost),
				Cost:      money.Format(s.Totals.Cost),
				Profit:    money.Format(s.Totals.Profit),
			},
			Averages: averagesJSON{
				AveragePrice:            money.Format(s.Averages.AveragePrice),
				VariableCostPerUnit:     money.Format(s.Averages.VariableCostPerUnit),
				ContributionMargin:      money.Format(s.Averages.ContributionMargin),
				ContributionMarginRatio: money.Format(s.Averages.ContributionMarginRatio),
			},
			BreakEven: breakEvenJSON{
				Quantity: s.BreakEven.Units,
				Revenue:  money.FormatPtr(s.BreakEven.Revenue),
				Variance: s.BreakEven.Variance,
				Status:   string(s.BreakEven.Status),
			},
			Parameters: parametersJSON{
				StartDate:     optionalDate(s.Parameters.From),
				EndDate:       optionalDate(s.Parameters.To),
				ExtraUnitCost: money.Format(s.Parameters.ExtraUnitCost),
				FixedCost:     money.Format(s.Parameters.FixedCost),
				Ordering:      s.Ordering,
			},
		},
		GeneratedAt: formatTime(res.GeneratedAt),
	}
}
