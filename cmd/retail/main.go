package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-retail/cmd/retail/cli"
	"github.com/odyssey-erp/odyssey-retail/internal/analytics"
	analytichttp "github.com/odyssey-erp/odyssey-retail/internal/analytics/http"
	"github.com/odyssey-erp/odyssey-retail/internal/app"
	"github.com/odyssey-erp/odyssey-retail/internal/observability"
	"github.com/odyssey-erp/odyssey-retail/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-retail/internal/platform/db"
	"github.com/odyssey-erp/odyssey-retail/jobs"
)

const usage = `usage: retail [command]

commands:
  serve                      run the HTTP server (default)
  migrate                    apply the bundled schema and NOTIFY triggers
  cache bump [reason]        invalidate every cached analytics result
  cache version              print the current cache version
  jobs trigger warmup        enqueue an analytics cache warmup
  jobs stats                 show default queue statistics
  jobs scheduled             list scheduled tasks`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	command, args := "serve", os.Args[1:]
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		err = serve(ctx, stop, cfg, logger)
	case "migrate":
		err = migrate(ctx, cfg, logger)
	case "cache":
		err = cacheCommand(ctx, cfg, logger, args)
	case "jobs":
		err = jobsCommand(ctx, cfg, args)
	case "help", "-h", "--help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(command, slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient := connectRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	stack, err := app.NewAnalyticsStack(app.AnalyticsDeps{
		Config:  cfg,
		Pool:    pool,
		Redis:   redisClient,
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	redisOpts := cache.AsynqOpt(cache.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	inspector := asynq.NewInspector(redisOpts)
	defer inspector.Close()

	if cfg.AnalyticsWarmupOnBump {
		jobClient := jobs.NewClient(redisOpts)
		defer jobClient.Close()
		stack.Invalidator.OnBump(jobClient.WarmupOnBump())
	}

	listener := analytics.NewListener(pool, cfg.AnalyticsListenChannel, stack.Invalidator, logger)
	go func() {
		if err := listener.Run(ctx); err != nil {
			logger.Error("analytics listener", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AnalyticsHandler: analytichttp.NewHandler(logger, stack.Service, stack.Invalidator),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
		Checks: map[string]app.HealthCheck{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr),
			slog.String("cache_backend", cfg.AnalyticsCacheBackend),
			slog.String("version_backend", cfg.AnalyticsVersionBackend))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}

func migrate(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, 1)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, cfg.AnalyticsListenChannel); err != nil {
		return err
	}
	logger.Info("schema applied", slog.String("notify_channel", cfg.AnalyticsListenChannel))
	return nil
}

func cacheCommand(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) error {
	var pool *pgxpool.Pool
	if cfg.AnalyticsCacheBackend == app.CacheBackendPostgres || cfg.AnalyticsCacheBackend == app.CacheBackendTiered {
		var err error
		if pool, err = db.New(ctx, cfg.PGDSN, 1); err != nil {
			return err
		}
		defer pool.Close()
	}
	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		var err error
		if redisClient, err = cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB}); err != nil {
			return err
		}
		defer redisClient.Close()
	}

	deps := app.AnalyticsDeps{Config: cfg, Pool: pool, Logger: logger}
	if redisClient != nil {
		deps.Redis = redisClient
	}
	stack, err := app.NewAnalyticsStack(deps)
	if err != nil {
		return err
	}
	return cli.NewCacheCLI(stack.Invalidator, stack.Versions, os.Stdout).Run(ctx, args)
}

func jobsCommand(ctx context.Context, cfg *app.Config, args []string) error {
	jobsCLI := cli.NewJobsCLI(cache.AsynqOpt(cache.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB}), os.Stdout)
	defer jobsCLI.Close()
	return jobsCLI.Run(ctx, args)
}

// connectRedis pings Redis but never fails startup: the analytics cache
// degrades to direct computation while Redis is unreachable.
func connectRedis(ctx context.Context, cfg *app.Config, logger *slog.Logger) *redis.Client {
	opts := cache.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB}
	client, err := cache.New(ctx, opts)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
		return redis.NewClient(&redis.Options{Addr: opts.Addr, DB: opts.DB})
	}
	return client
}
