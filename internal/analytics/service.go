package analytics

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/calendar"
	"github.com/odyssey-erp/odyssey-retail/internal/money"
)

// Default payload lifetimes.
const (
	DefaultTimeSeriesTTL = 2 * time.Hour
	DefaultBreakevenTTL  = 6 * time.Hour
)

// Options tune a Service. Zero values select the defaults.
type Options struct {
	Location      *time.Location
	TimeSeriesTTL time.Duration
	BreakevenTTL  time.Duration
	Clock         func() time.Time
}

// Service coordinates analytics query execution with the cache layer.
type Service struct {
	repo          Repository
	cache         *Cache
	loc           *time.Location
	timeSeriesTTL time.Duration
	breakevenTTL  time.Duration
	now           func() time.Time
}

// NewService wires a Repository with a Cache helper. A nil cache computes
// every request directly.
func NewService(repo Repository, cache *Cache, opts Options) *Service {
	s := &Service{
		repo:          repo,
		cache:         cache,
		loc:           opts.Location,
		timeSeriesTTL: opts.TimeSeriesTTL,
		breakevenTTL:  opts.BreakevenTTL,
		now:           opts.Clock,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.timeSeriesTTL <= 0 {
		s.timeSeriesTTL = DefaultTimeSeriesTTL
	}
	if s.breakevenTTL <= 0 {
		s.breakevenTTL = DefaultBreakevenTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Location returns the zone used for day boundaries and bucketing.
func (s *Service) Location() *time.Location {
	return s.loc
}

// TimeSeriesQuery selects a date range and bucket width. From and To are
// calendar dates; the range covers both days fully.
type TimeSeriesQuery struct {
	From        time.Time
	To          time.Time
	Granularity calendar.Granularity
	Page        int
	PageSize    int
}

// TimeSeriesSummary aggregates the whole range.
type TimeSeriesSummary struct {
	Totals        Metrics         `json:"totals"`
	AverageSale   decimal.Decimal `json:"average_sale"`
	LatestPeriod  *time.Time      `json:"latest_period"`
	LatestChanges *BucketChanges  `json:"latest_changes"`
}

// TimeSeriesMeta echoes the effective query.
type TimeSeriesMeta struct {
	Granularity calendar.Granularity `json:"granularity"`
	Start       time.Time            `json:"start"`
	End         time.Time            `json:"end"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// TimeSeriesResult is one page of the time-series report.
type TimeSeriesResult struct {
	Pagination
	Results []TimeSeriesPoint `json:"results"`
	Summary TimeSeriesSummary `json:"summary"`
	Meta    TimeSeriesMeta    `json:"meta"`
}

// TimeSeries returns the full, unpaginated report through the cache.
func (s *Service) TimeSeries(ctx context.Context, q TimeSeriesQuery) (TimeSeriesReport, error) {
	g := q.Granularity
	if g == "" {
		g = calendar.Month
	}
	start, end := calendar.DayRange(q.From, q.To, s.loc)
	if end.Before(start) {
		return TimeSeriesReport{Granularity: g, Start: start, End: end, Points: []TimeSeriesPoint{}, GeneratedAt: s.now()}, nil
	}

	loader := func(ctx context.Context) (interface{}, error) {
		lines, err := s.repo.CompletedSaleLines(ctx, LineFilter{From: &start, To: &end})
		if err != nil {
			return nil, err
		}
		return s.buildTimeSeries(lines, g, start, end), nil
	}
	params := Params{"start": start, "end": end, "group_by": string(g)}

	var report TimeSeriesReport
	if err := s.cache.Fetch(ctx, NamespaceTimeSeries, params, s.timeSeriesTTL, &report, loader); err != nil {
		return TimeSeriesReport{}, err
	}
	return report, nil
}

func (s *Service) buildTimeSeries(lines []SaleLine, g calendar.Granularity, start, end time.Time) TimeSeriesReport {
	buckets := Aggregate(lines, g, s.loc)
	report := TimeSeriesReport{
		Granularity: g,
		Start:       start,
		End:         end,
		Points:      CompareAll(buckets, g),
		Totals:      Totals(buckets),
		GeneratedAt: s.now(),
	}
	report.AverageSale = money.SafeDiv(report.Totals.Revenue, decimal.NewFromInt(report.Totals.Sales), decimal.Zero)
	if n := len(report.Points); n > 0 {
		latest := report.Points[n-1]
		report.LatestPeriod = &latest.Period
		report.LatestChanges = &latest.Changes
	}
	return report
}

// GetTimeSeries returns one page of revenue, cost and profit per bucket with
// period-over-period changes.
func (s *Service) GetTimeSeries(ctx context.Context, q TimeSeriesQuery) (TimeSeriesResult, error) {
	report, err := s.TimeSeries(ctx, q)
	if err != nil {
		return TimeSeriesResult{}, err
	}
	page := Paginate(len(report.Points), q.Page, q.PageSize)
	return TimeSeriesResult{
		Pagination: page,
		Results:    PageOf(report.Points, page),
		Summary: TimeSeriesSummary{
			Totals:        report.Totals,
			AverageSale:   report.AverageSale,
			LatestPeriod:  report.LatestPeriod,
			LatestChanges: report.LatestChanges,
		},
		Meta: TimeSeriesMeta{
			Granularity: report.Granularity,
			Start:       report.Start,
			End:         report.End,
			GeneratedAt: report.GeneratedAt,
		},
	}, nil
}

// BreakevenQuery selects a product, an optional date window and the cost
// assumptions. From and To are calendar dates.
type BreakevenQuery struct {
	ProductID     int64
	From          *time.Time
	To            *time.Time
	ExtraUnitCost decimal.Decimal
	FixedCost     decimal.Decimal
	Ordering      string
	Page          int
	PageSize      int
}

// BreakevenSummary carries the product level analysis.
type BreakevenSummary struct {
	Product    Product         `json:"product"`
	Totals     BreakevenTotals `json:"totals"`
	Averages   UnitEconomics   `json:"averages"`
	BreakEven  BreakevenPoint  `json:"break_even"`
	Parameters BreakevenParams `json:"parameters"`
	Ordering   string          `json:"ordering"`
}

// BreakevenResult is one page of monthly trend rows plus the summary.
type BreakevenResult struct {
	Pagination
	Results     []TrendRow       `json:"results"`
	Summary     BreakevenSummary `json:"summary"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// Breakeven returns the full report for one product through the cache.
func (s *Service) Breakeven(ctx context.Context, q BreakevenQuery) (BreakevenReport, error) {
	product, err := s.repo.Product(ctx, q.ProductID)
	if err != nil {
		return BreakevenReport{}, err
	}

	params := BreakevenParams{ExtraUnitCost: q.ExtraUnitCost, FixedCost: q.FixedCost}
	filter := LineFilter{ProductID: &product.ID}
	if q.From != nil {
		start, _ := calendar.DayRange(*q.From, *q.From, s.loc)
		params.From, filter.From = &start, &start
	}
	if q.To != nil {
		_, end := calendar.DayRange(*q.To, *q.To, s.loc)
		params.To, filter.To = &end, &end
	}
	if params.From != nil && params.To != nil && params.To.Before(*params.From) {
		return BreakevenReport{}, ErrInvalidRange
	}

	loader := func(ctx context.Context) (interface{}, error) {
		lines, err := s.repo.CompletedSaleLines(ctx, filter)
		if err != nil {
			return nil, err
		}
		report := AnalyzeBreakeven(product, lines, params, s.loc)
		report.GeneratedAt = s.now()
		return report, nil
	}
	key := Params{
		"product_id":      product.ID,
		"start":           params.From,
		"end":             params.To,
		"extra_unit_cost": params.ExtraUnitCost,
		"fixed_cost":      params.FixedCost,
	}

	var report BreakevenReport
	if err := s.cache.Fetch(ctx, NamespaceBreakeven, key, s.breakevenTTL, &report, loader); err != nil {
		return BreakevenReport{}, err
	}
	return report, nil
}

// GetBreakeven runs the breakeven analysis for one product and pages its
// monthly trend in the requested order.
func (s *Service) GetBreakeven(ctx context.Context, q BreakevenQuery) (BreakevenResult, error) {
	report, err := s.Breakeven(ctx, q)
	if err != nil {
		return BreakevenResult{}, err
	}
	ordering := q.Ordering
	if ordering == "" {
		ordering = DefaultOrdering
	}
	rows := SortTrend(report.Trend, ordering)
	page := Paginate(len(rows), q.Page, q.PageSize)
	return BreakevenResult{
		Pagination: page,
		Results:    PageOf(rows, page),
		Summary: BreakevenSummary{
			Product:    report.Product,
			Totals:     report.Totals,
			Averages:   report.Averages,
			BreakEven:  report.BreakEven,
			Parameters: report.Params,
			Ordering:   ordering,
		},
		GeneratedAt: report.GeneratedAt,
	}, nil
}
