package app

import (
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-retail/internal/analytics"
	"github.com/odyssey-erp/odyssey-retail/internal/observability"
)

// AnalyticsDeps are the shared resources the analytics stack is built from.
// Redis may be nil when neither backend needs it.
type AnalyticsDeps struct {
	Config  *Config
	Pool    *pgxpool.Pool
	Redis   redis.UniversalClient
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// AnalyticsStack is the wired analytics core shared by the server and the worker.
type AnalyticsStack struct {
	Repository  *analytics.PgRepository
	Store       analytics.Store
	Purger      *analytics.PostgresStore
	Versions    analytics.VersionSource
	Cache       *analytics.Cache
	Service     *analytics.Service
	Invalidator *analytics.Invalidator
}

// NewAnalyticsStack selects the configured cache and version backends and
// builds the service on top of them.
func NewAnalyticsStack(deps AnalyticsDeps) (*AnalyticsStack, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, fmt.Errorf("app: analytics config required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, purger, err := newAnalyticsStore(cfg, deps.Pool, deps.Redis)
	if err != nil {
		return nil, err
	}
	versions, err := newVersionSource(cfg, deps.Redis)
	if err != nil {
		return nil, err
	}

	opts := []analytics.CacheOption{analytics.WithLogger(logger)}
	if deps.Metrics != nil {
		opts = append(opts, analytics.WithRecorder(deps.Metrics))
	}
	cache := analytics.NewCache(store, versions, opts...)

	stack := &AnalyticsStack{
		Store:    store,
		Purger:   purger,
		Versions: versions,
		Cache:    cache,
	}
	if deps.Pool != nil {
		stack.Repository = analytics.NewPgRepository(deps.Pool)
	}
	var repo analytics.Repository
	if stack.Repository != nil {
		repo = stack.Repository
	}
	stack.Service = analytics.NewService(repo, cache, analytics.Options{
		Location:      cfg.Location(),
		TimeSeriesTTL: cfg.AnalyticsTimeSeriesTTL,
		BreakevenTTL:  cfg.AnalyticsBreakevenTTL,
	})
	stack.Invalidator = analytics.NewInvalidator(versions, logger)
	if deps.Metrics != nil {
		stack.Invalidator.OnBump(deps.Metrics.VersionBumped)
	}
	return stack, nil
}

func newAnalyticsStore(cfg *Config, pool *pgxpool.Pool, rdb redis.UniversalClient) (analytics.Store, *analytics.PostgresStore, error) {
	switch cfg.AnalyticsCacheBackend {
	case CacheBackendMemory:
		return analytics.NewMemoryStore(), nil, nil
	case CacheBackendRedis:
		if rdb == nil {
			return nil, nil, fmt.Errorf("app: redis cache backend requires REDIS_ADDR")
		}
		return analytics.NewRedisStore(rdb), nil, nil
	case CacheBackendPostgres:
		if pool == nil {
			return nil, nil, fmt.Errorf("app: postgres cache backend requires PG_DSN")
		}
		pg := analytics.NewPostgresStore(pool)
		return pg, pg, nil
	case CacheBackendTiered:
		if rdb == nil || pool == nil {
			return nil, nil, fmt.Errorf("app: tiered cache backend requires redis and postgres")
		}
		pg := analytics.NewPostgresStore(pool)
		return analytics.NewTieredStore(analytics.NewRedisStore(rdb), pg, max(cfg.AnalyticsTimeSeriesTTL, cfg.AnalyticsBreakevenTTL)), pg, nil
	}
	return nil, nil, fmt.Errorf("app: unknown cache backend %q", cfg.AnalyticsCacheBackend)
}

func newVersionSource(cfg *Config, rdb redis.UniversalClient) (analytics.VersionSource, error) {
	switch cfg.AnalyticsVersionBackend {
	case VersionBackendLocal:
		return analytics.NewLocalVersion(), nil
	case VersionBackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("app: redis version backend requires REDIS_ADDR")
		}
		return analytics.NewRedisVersion(rdb), nil
	}
	return nil, fmt.Errorf("app: unknown version backend %q", cfg.AnalyticsVersionBackend)
}
