package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Recorder observes cache outcomes per namespace.
type Recorder interface {
	CacheHit(namespace string)
	CacheMiss(namespace string)
	CacheError(namespace, op string)
}

type nopRecorder struct{}

func (nopRecorder) CacheHit(string)           {}
func (nopRecorder) CacheMiss(string)          {}
func (nopRecorder) CacheError(string, string) {}

// Loader computes a payload on a cache miss.
type Loader func(ctx context.Context) (interface{}, error)

// Cache memoises whole serialised payloads keyed by namespace, the current
// version token and the canonical parameters. Store and version failures
// degrade to computing without the cache.
type Cache struct {
	store    Store
	versions VersionSource
	recorder Recorder
	logger   *slog.Logger
	group    singleflight.Group
}

// CacheOption customises a Cache.
type CacheOption func(*Cache)

// WithRecorder reports hits, misses and errors to r.
func WithRecorder(r Recorder) CacheOption {
	return func(c *Cache) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithLogger sets the logger used for degraded cache operations.
func WithLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCache instantiates the cache helper.
func NewCache(store Store, versions VersionSource, opts ...CacheOption) *Cache {
	c := &Cache{store: store, versions: versions, recorder: nopRecorder{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Versions exposes the version source backing the cache.
func (c *Cache) Versions() VersionSource {
	if c == nil {
		return nil
	}
	return c.versions
}

// Fetch decodes the cached payload for (namespace, params) into dest, running
// loader on a miss. Concurrent misses for the same key share one loader call.
func (c *Cache) Fetch(ctx context.Context, namespace string, params Params, ttl time.Duration, dest interface{}, loader Loader) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.store == nil || c.versions == nil {
		raw, err := compute(ctx, loader)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dest)
	}

	version, err := c.versions.Version(ctx)
	if err != nil {
		c.degrade(namespace, "version", err)
		raw, err := compute(ctx, loader)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dest)
	}
	key := BuildKey(namespace, version, params)

	payload, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		c.degrade(namespace, "get", err)
	case ok:
		if err := json.Unmarshal(payload, dest); err == nil {
			c.recorder.CacheHit(namespace)
			return nil
		}
		c.degrade(namespace, "decode", err)
	}
	c.recorder.CacheMiss(namespace)

	raw, err := c.load(ctx, key, func(ctx context.Context) ([]byte, error) {
		raw, err := compute(ctx, loader)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(ctx, key, raw, ttl); err != nil {
			c.degrade(namespace, "set", err)
		}
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (c *Cache) load(ctx context.Context, key string, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	// The shared computation must outlive any single waiter.
	shared := context.WithoutCancel(ctx)
	resultChan := c.group.DoChan(key, func() (interface{}, error) {
		return fn(shared)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (c *Cache) degrade(namespace, op string, err error) {
	c.recorder.CacheError(namespace, op)
	c.logger.Warn("analytics cache unavailable", slog.String("namespace", namespace), slog.String("op", op), slog.Any("error", err))
}

func compute(ctx context.Context, loader Loader) ([]byte, error) {
	value, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(value)
}
