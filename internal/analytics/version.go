package analytics

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "analytics:version"

// VersionSource hands out the global cache version token. Bumping it orphans
// every key built under an earlier token.
type VersionSource interface {
	Version(ctx context.Context) (string, error)
	Bump(ctx context.Context) (string, error)
}

// RedisVersion keeps the version in a shared Redis counter so every process
// observes a bump. A missing counter is seeded from the wall clock: cached
// entries may outlive the counter in a persistent tier, and restarting at a
// small value would hand out tokens those entries were written under.
type RedisVersion struct {
	client redis.UniversalClient
	key    string
	now    func() time.Time
}

// NewRedisVersion binds the version counter to client.
func NewRedisVersion(client redis.UniversalClient) *RedisVersion {
	return &RedisVersion{client: client, key: cacheVersionKey, now: time.Now}
}

// Version returns the current version, seeding it when missing.
func (v *RedisVersion) Version(ctx context.Context) (string, error) {
	ver, err := v.client.Get(ctx, v.key).Int64()
	if errors.Is(err, redis.Nil) {
		// SETNX keeps a concurrent bump from being overwritten.
		if err := v.client.SetNX(ctx, v.key, v.seed(), 0).Err(); err != nil {
			return "", err
		}
		ver, err = v.client.Get(ctx, v.key).Int64()
	}
	if err != nil {
		return "", err
	}
	if ver <= 0 {
		ver = v.seed()
		if err := v.client.Set(ctx, v.key, ver, 0).Err(); err != nil {
			return "", err
		}
	}
	return strconv.FormatInt(ver, 10), nil
}

// Bump increments the shared counter, seeding it first when missing so INCR
// never restarts from 1.
func (v *RedisVersion) Bump(ctx context.Context) (string, error) {
	var incr *redis.IntCmd
	_, err := v.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, v.key, v.seed(), 0)
		incr = pipe.Incr(ctx, v.key)
		return nil
	})
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(incr.Val(), 10), nil
}

func (v *RedisVersion) seed() int64 {
	return v.now().UnixNano()
}

// LocalVersion is an in-process version counter for single instance
// deployments and tests.
type LocalVersion struct {
	counter atomic.Int64
}

// NewLocalVersion seeds the counter from the wall clock so restarts never
// reuse a token still present in a persistent store.
func NewLocalVersion() *LocalVersion {
	v := &LocalVersion{}
	v.counter.Store(time.Now().UnixNano())
	return v
}

// Version returns the current token.
func (v *LocalVersion) Version(context.Context) (string, error) {
	return strconv.FormatInt(v.counter.Load(), 10), nil
}

// Bump advances the token.
func (v *LocalVersion) Bump(context.Context) (string, error) {
	return strconv.FormatInt(v.counter.Add(1), 10), nil
}
