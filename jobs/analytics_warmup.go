package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-retail/internal/analytics"
	"github.com/odyssey-erp/odyssey-retail/internal/calendar"
	jobmetrics "github.com/odyssey-erp/odyssey-retail/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// WarmupService is the subset of the analytics service the warmup drives.
type WarmupService interface {
	TimeSeries(ctx context.Context, q analytics.TimeSeriesQuery) (analytics.TimeSeriesReport, error)
	Breakeven(ctx context.Context, q analytics.BreakevenQuery) (analytics.BreakevenReport, error)
	Location() *time.Location
}

// ProductLister enumerates products whose breakeven report is warmed.
type ProductLister interface {
	ProductIDs(ctx context.Context) ([]int64, error)
}

// Purger drops expired rows from a persistent cache store.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// warmupWindow is one standard time-series request.
type warmupWindow struct {
	granularity calendar.Granularity
	back        func(today time.Time) time.Time
}

var warmupWindows = []warmupWindow{
	{calendar.Day, func(today time.Time) time.Time { return today.AddDate(0, 0, -29) }},
	{calendar.Month, func(today time.Time) time.Time { return calendar.AddMonthsClamped(today, -12) }},
	{calendar.Hour, func(today time.Time) time.Time { return today.AddDate(0, 0, -6) }},
}

const warmupConcurrency = 4

// AnalyticsWarmupJob recomputes the standard analytics windows so the first
// request after a bump is served from cache.
type AnalyticsWarmupJob struct {
	Service  WarmupService
	Products ProductLister
	Purger   Purger
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewAnalyticsWarmupJob wires dependencies for the warmup handler. purger may
// be nil when the cache has no persistent tier.
func NewAnalyticsWarmupJob(svc WarmupService, products ProductLister, purger Purger, logger *slog.Logger, metrics *jobmetrics.Metrics) *AnalyticsWarmupJob {
	return &AnalyticsWarmupJob{
		Service:  svc,
		Products: products,
		Purger:   purger,
		Logger:   logger,
		Metrics:  metrics,
		clock:    time.Now,
	}
}

// Handle processes analytics warmup tasks.
func (j *AnalyticsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("analytics warmup: handler not configured")
	}
	var payload WarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.metrics().Track(TaskAnalyticsCacheWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("reason", payload.Reason), slog.String("version", payload.Version))
	logger.Info("starting analytics warmup")
	start := j.now()

	if j.Purger != nil {
		purged, err := j.Purger.Purge(ctx)
		if err != nil {
			logger.Warn("purge expired cache rows", slog.Any("error", err))
		} else if purged > 0 {
			logger.Info("purged expired cache rows", slog.Int64("rows", purged))
		}
	}

	series, err := j.warmTimeSeries(ctx, start)
	if err != nil {
		resultErr = err
		logger.Error("warm time series", slog.Any("error", err))
		return resultErr
	}
	products, err := j.warmBreakevens(ctx)
	if err != nil {
		resultErr = err
		logger.Error("warm break-even", slog.Any("error", err))
		return resultErr
	}

	j.metrics().AddWarmed(analytics.NamespaceTimeSeries, series)
	j.metrics().AddWarmed(analytics.NamespaceBreakeven, products)
	logger.Info("completed analytics warmup",
		slog.Int("time_series", series),
		slog.Int("products", products),
		slog.Duration("duration", j.now().Sub(start)))
	return resultErr
}

func (j *AnalyticsWarmupJob) warmTimeSeries(ctx context.Context, now time.Time) (int, error) {
	today := now.In(j.Service.Location())
	warmed := 0
	for _, w := range warmupWindows {
		windowCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		_, err := j.Service.TimeSeries(windowCtx, analytics.TimeSeriesQuery{
			From:        w.back(today),
			To:          today,
			Granularity: w.granularity,
		})
		cancel()
		if err != nil {
			return warmed, err
		}
		warmed++
	}
	return warmed, nil
}

func (j *AnalyticsWarmupJob) warmBreakevens(ctx context.Context) (int, error) {
	if j.Products == nil {
		return 0, nil
	}
	ids, err := j.Products.ProductIDs(ctx)
	if err != nil {
		return 0, err
	}

	var warmed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmupConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			productCtx, cancel := context.WithTimeout(gctx, 20*time.Second)
			defer cancel()
			_, err := j.Service.Breakeven(productCtx, analytics.BreakevenQuery{ProductID: id})
			if errors.Is(err, analytics.ErrProductNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			warmed.Add(1)
			return nil
		})
	}
	err = g.Wait()
	return int(warmed.Load()), err
}

func (j *AnalyticsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAnalyticsCacheWarmup))
	}
	return slog.Default().With(slog.String("job", TaskAnalyticsCacheWarmup))
}

func (j *AnalyticsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AnalyticsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now()
}
