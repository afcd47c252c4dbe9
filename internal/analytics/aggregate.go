package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/calendar"
	"github.com/odyssey-erp/odyssey-retail/internal/money"
)

// saleTotals accumulates the lines of one sale before tax and discount are applied.
type saleTotals struct {
	soldAt     time.Time
	discount   decimal.Decimal
	taxPercent decimal.Decimal
	subtotal   decimal.Decimal
	cost       decimal.Decimal
	units      int64
}

// Revenue applies the sale discount and then tax on the discounted subtotal.
func (s saleTotals) Revenue() decimal.Decimal {
	taxable := s.subtotal.Sub(s.discount)
	return taxable.Add(money.ApplyPercent(taxable, s.taxPercent))
}

func groupSales(lines []SaleLine) ([]int64, map[int64]*saleTotals) {
	order := make([]int64, 0)
	sales := make(map[int64]*saleTotals)
	for _, line := range lines {
		if line.Status != SaleCompleted {
			continue
		}
		sale, ok := sales[line.SaleID]
		if !ok {
			sale = &saleTotals{
				soldAt:     line.SoldAt,
				discount:   line.Discount,
				taxPercent: line.TaxPercent,
			}
			sales[line.SaleID] = sale
			order = append(order, line.SaleID)
		}
		sale.subtotal = sale.subtotal.Add(line.LineTotal())
		sale.cost = sale.cost.Add(line.LineCost())
		sale.units += line.Quantity
	}
	return order, sales
}

// Aggregate groups completed sale lines into buckets of granularity g. Sale
// timestamps are converted to loc before truncation. Only non-empty buckets
// are returned, ordered by start.
func Aggregate(lines []SaleLine, g calendar.Granularity, loc *time.Location) []Bucket {
	if loc == nil {
		loc = time.UTC
	}
	order, sales := groupSales(lines)
	index := make(map[time.Time]*Bucket)
	for _, id := range order {
		sale := sales[id]
		start := calendar.Truncate(sale.soldAt.In(loc), g)
		bucket, ok := index[start]
		if !ok {
			bucket = &Bucket{Start: start}
			index[start] = bucket
		}
		bucket.Revenue = bucket.Revenue.Add(sale.Revenue())
		bucket.Cost = bucket.Cost.Add(sale.cost)
		bucket.Units += sale.units
		bucket.Sales++
	}

	buckets := make([]Bucket, 0, len(index))
	for _, bucket := range index {
		bucket.Profit = bucket.Revenue.Sub(bucket.Cost)
		bucket.Margin = money.PercentOf(bucket.Profit, bucket.Revenue)
		buckets = append(buckets, *bucket)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Start.Before(buckets[j].Start)
	})
	return buckets
}

// Totals sums bucket metrics across the whole range.
func Totals(buckets []Bucket) Metrics {
	var total Metrics
	for _, b := range buckets {
		total.Revenue = total.Revenue.Add(b.Revenue)
		total.Cost = total.Cost.Add(b.Cost)
		total.Units += b.Units
		total.Sales += b.Sales
	}
	total.Profit = total.Revenue.Sub(total.Cost)
	total.Margin = money.PercentOf(total.Profit, total.Revenue)
	return total
}
