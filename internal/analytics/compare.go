package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/calendar"
	"github.com/odyssey-erp/odyssey-retail/internal/money"
)

// Metric selects a figure from a bucket for comparison.
type Metric func(Metrics) decimal.Decimal

// Compared metrics.
var (
	MetricRevenue Metric = func(m Metrics) decimal.Decimal { return m.Revenue }
	MetricCost    Metric = func(m Metrics) decimal.Decimal { return m.Cost }
	MetricProfit  Metric = func(m Metrics) decimal.Decimal { return m.Profit }
)

// BucketIndex looks buckets up by their start.
type BucketIndex map[time.Time]Metrics

// IndexBuckets builds a lookup over materialised buckets.
func IndexBuckets(buckets []Bucket) BucketIndex {
	index := make(BucketIndex, len(buckets))
	for _, b := range buckets {
		index[b.Start] = b.Metrics
	}
	return index
}

// Compare computes the change of metric for bucket against the bucket of width
// g holding the same position one unit earlier, for every horizon. Missing
// prior buckets and horizons finer than g yield a Change with both fields nil.
func Compare(index BucketIndex, bucket Bucket, g calendar.Granularity, metric Metric) MetricChanges {
	current := metric(bucket.Metrics)
	changes := make(MetricChanges, len(calendar.Horizons))
	for _, h := range calendar.Horizons {
		if !h.Applies(g) {
			changes[h] = Change{}
			continue
		}
		prior, ok := index[calendar.PriorBucket(bucket.Start, h, g)]
		if !ok {
			changes[h] = Change{}
			continue
		}
		previous := metric(prior)
		value := current.Sub(previous)
		changes[h] = Change{Value: &value, Percent: money.PercentChange(current, previous)}
	}
	return changes
}

// CompareAll enriches every bucket with revenue, cost and profit comparisons.
func CompareAll(buckets []Bucket, g calendar.Granularity) []TimeSeriesPoint {
	index := IndexBuckets(buckets)
	points := make([]TimeSeriesPoint, 0, len(buckets))
	for _, b := range buckets {
		points = append(points, TimeSeriesPoint{
			Period:  b.Start,
			Metrics: b.Metrics,
			Changes: BucketChanges{
				Revenue: Compare(index, b, g, MetricRevenue),
				Cost:    Compare(index, b, g, MetricCost),
				Profit:  Compare(index, b, g, MetricProfit),
			},
		})
	}
	return points
}
