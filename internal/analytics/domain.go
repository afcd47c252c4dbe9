package analytics

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/calendar"
)

var (
	// ErrProductNotFound is returned when a breakeven request references an unknown product.
	ErrProductNotFound = errors.New("analytics: product not found")
	// ErrInvalidRange marks a date range whose end precedes its start.
	ErrInvalidRange = errors.New("analytics: invalid date range")
)

// SaleStatus mirrors the lifecycle of a sale record.
type SaleStatus string

// Sale statuses. Only completed sales contribute to aggregates.
const (
	SalePending   SaleStatus = "pending"
	SaleCompleted SaleStatus = "completed"
	SaleCancelled SaleStatus = "cancelled"
)

// SaleLine is one line item joined with its sale header and the product's
// current cost price.
type SaleLine struct {
	SaleID     int64
	SoldAt     time.Time
	Status     SaleStatus
	Discount   decimal.Decimal
	TaxPercent decimal.Decimal
	ProductID  int64
	Quantity   int64
	UnitPrice  decimal.Decimal
	UnitCost   decimal.Decimal
}

// LineTotal returns quantity * unit price.
func (l SaleLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// LineCost returns quantity * current product cost.
func (l SaleLine) LineCost() decimal.Decimal {
	return l.UnitCost.Mul(decimal.NewFromInt(l.Quantity))
}

// Product carries the pricing fields read by the breakeven engine.
type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
}

// LineFilter scopes a sale line query. Nil bounds are open.
type LineFilter struct {
	From      *time.Time
	To        *time.Time
	ProductID *int64
}

// Metrics are the financial figures of one bucket or of a whole range.
type Metrics struct {
	Revenue decimal.Decimal `json:"revenue"`
	Cost    decimal.Decimal `json:"cost"`
	Profit  decimal.Decimal `json:"profit"`
	Units   int64           `json:"units"`
	Sales   int64           `json:"sales"`
	Margin  decimal.Decimal `json:"margin"`
}

// Bucket is a non-empty time bucket produced by the aggregator.
type Bucket struct {
	Start time.Time `json:"start"`
	Metrics
}

// Change is a period-over-period delta. Nil fields mean the comparison is undefined.
type Change struct {
	Value   *decimal.Decimal `json:"value"`
	Percent *decimal.Decimal `json:"percent"`
}

// MetricChanges holds one Change per comparison horizon.
type MetricChanges map[calendar.Horizon]Change

// BucketChanges groups the comparisons for the compared metrics.
type BucketChanges struct {
	Revenue MetricChanges `json:"revenue"`
	Cost    MetricChanges `json:"cost"`
	Profit  MetricChanges `json:"profit"`
}

// TimeSeriesPoint is a bucket enriched with its comparisons.
type TimeSeriesPoint struct {
	Period  time.Time     `json:"period"`
	Metrics Metrics       `json:"metrics"`
	Changes BucketChanges `json:"changes"`
}

// TimeSeriesReport is the cached, unpaginated time-series payload.
type TimeSeriesReport struct {
	Granularity   calendar.Granularity `json:"granularity"`
	Start         time.Time            `json:"start"`
	End           time.Time            `json:"end"`
	Points        []TimeSeriesPoint    `json:"points"`
	Totals        Metrics              `json:"totals"`
	AverageSale   decimal.Decimal      `json:"average_sale"`
	LatestPeriod  *time.Time           `json:"latest_period"`
	LatestChanges *BucketChanges       `json:"latest_changes"`
	GeneratedAt   time.Time            `json:"generated_at"`
}

// BreakevenStatus classifies actual volume against the breakeven threshold.
type BreakevenStatus string

// Breakeven statuses.
const (
	AboveBreakEven BreakevenStatus = "above_break_even"
	BelowBreakEven BreakevenStatus = "below_break_even"
	NoMargin       BreakevenStatus = "no_margin"
)

// BreakevenParams are the caller supplied inputs of a breakeven analysis.
type BreakevenParams struct {
	From          *time.Time      `json:"from"`
	To            *time.Time      `json:"to"`
	ExtraUnitCost decimal.Decimal `json:"extra_unit_cost"`
	FixedCost     decimal.Decimal `json:"fixed_cost"`
}

// BreakevenTotals aggregates the filtered line items of one product.
type BreakevenTotals struct {
	Units     int64           `json:"units"`
	Revenue   decimal.Decimal `json:"revenue"`
	BaseCost  decimal.Decimal `json:"base_cost"`
	ExtraCost decimal.Decimal `json:"extra_cost"`
	Cost      decimal.Decimal `json:"cost"`
	Profit    decimal.Decimal `json:"profit"`
}

// UnitEconomics are the per-unit figures derived from the totals.
type UnitEconomics struct {
	AveragePrice            decimal.Decimal `json:"average_price"`
	VariableCostPerUnit     decimal.Decimal `json:"variable_cost_per_unit"`
	ContributionMargin      decimal.Decimal `json:"contribution_margin"`
	ContributionMarginRatio decimal.Decimal `json:"contribution_margin_ratio"`
}

// BreakevenPoint is the threshold and where actual volume sits against it.
// Units, Revenue and Variance are nil when the contribution margin is not positive.
type BreakevenPoint struct {
	Units    *int64           `json:"units"`
	Revenue  *decimal.Decimal `json:"revenue"`
	Variance *int64           `json:"variance"`
	Status   BreakevenStatus  `json:"status"`
}

// TrendRow is one calendar month of a product's breakeven trend.
type TrendRow struct {
	Period          time.Time       `json:"period"`
	Units           int64           `json:"units"`
	Revenue         decimal.Decimal `json:"revenue"`
	Cost            decimal.Decimal `json:"cost"`
	Profit          decimal.Decimal `json:"profit"`
	MarginRatio     decimal.Decimal `json:"margin_ratio"`
	CumulativeUnits int64           `json:"cumulative_units"`
	Variance        *int64          `json:"variance"`
	MetBreakEven    bool            `json:"met_break_even"`
}

// BreakevenReport is the cached breakeven payload for one product.
type BreakevenReport struct {
	Product     Product         `json:"product"`
	Params      BreakevenParams `json:"params"`
	Totals      BreakevenTotals `json:"totals"`
	Averages    UnitEconomics   `json:"averages"`
	BreakEven   BreakevenPoint  `json:"break_even"`
	Trend       []TrendRow      `json:"trend"`
	GeneratedAt time.Time       `json:"generated_at"`
}
