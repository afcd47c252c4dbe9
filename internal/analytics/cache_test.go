package analytics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	mu     sync.Mutex
	hits   int
	misses int
	errors map[string]int
}

func (r *countingRecorder) CacheHit(string) {
	r.mu.Lock()
	r.hits++
	r.mu.Unlock()
}

func (r *countingRecorder) CacheMiss(string) {
	r.mu.Lock()
	r.misses++
	r.mu.Unlock()
}

func (r *countingRecorder) CacheError(_, op string) {
	r.mu.Lock()
	if r.errors == nil {
		r.errors = map[string]int{}
	}
	r.errors[op]++
	r.mu.Unlock()
}

type failingVersions struct{}

func (failingVersions) Version(context.Context) (string, error) { return "", errStoreDown }
func (failingVersions) Bump(context.Context) (string, error)    { return "", errStoreDown }

type payload struct {
	Value string `json:"value"`
}

func TestCacheFetchHitAfterMiss(t *testing.T) {
	rec := &countingRecorder{}
	cache := NewCache(NewMemoryStore(), NewLocalVersion(), WithRecorder(rec))
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (interface{}, error) {
		calls++
		return payload{Value: "computed"}, nil
	}

	var first, second payload
	require.NoError(t, cache.Fetch(ctx, "ns", Params{"a": 1}, time.Minute, &first, loader))
	require.NoError(t, cache.Fetch(ctx, "ns", Params{"a": 1}, time.Minute, &second, loader))
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.misses)
}

func TestCacheFetchVersionBumpOrphansKeys(t *testing.T) {
	versions := NewLocalVersion()
	cache := NewCache(NewMemoryStore(), versions)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (interface{}, error) {
		calls++
		return payload{Value: "v"}, nil
	}

	var out payload
	require.NoError(t, cache.Fetch(ctx, "ns", nil, time.Minute, &out, loader))
	_, err := versions.Bump(ctx)
	require.NoError(t, err)
	require.NoError(t, cache.Fetch(ctx, "ns", nil, time.Minute, &out, loader))
	assert.Equal(t, 2, calls)
}

func TestCacheFetchDegradesOnStoreFailure(t *testing.T) {
	rec := &countingRecorder{}
	store := &failingStore{}
	cache := NewCache(store, NewLocalVersion(), WithRecorder(rec))
	loader := func(context.Context) (interface{}, error) {
		return payload{Value: "fresh"}, nil
	}

	var out payload
	require.NoError(t, cache.Fetch(context.Background(), "ns", nil, time.Minute, &out, loader))
	assert.Equal(t, "fresh", out.Value)
	assert.Equal(t, 1, store.gets)
	assert.Equal(t, 1, store.sets)
	assert.Equal(t, 1, rec.errors["get"])
	assert.Equal(t, 1, rec.errors["set"])
}

func TestCacheFetchDegradesOnVersionFailure(t *testing.T) {
	rec := &countingRecorder{}
	store := NewMemoryStore()
	cache := NewCache(store, failingVersions{}, WithRecorder(rec))

	var out payload
	err := cache.Fetch(context.Background(), "ns", nil, time.Minute, &out, func(context.Context) (interface{}, error) {
		return payload{Value: "fresh"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", out.Value)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 1, rec.errors["version"])
}

func TestCacheFetchRecomputesCorruptPayload(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	versions := NewLocalVersion()
	rec := &countingRecorder{}
	cache := NewCache(store, versions, WithRecorder(rec))

	version, err := versions.Version(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, BuildKey("ns", version, nil), []byte("{not json"), time.Minute))

	var out payload
	require.NoError(t, cache.Fetch(ctx, "ns", nil, time.Minute, &out, func(context.Context) (interface{}, error) {
		return payload{Value: "repaired"}, nil
	}))
	assert.Equal(t, "repaired", out.Value)
	assert.Equal(t, 1, rec.errors["decode"])
}

func TestCacheFetchPropagatesLoaderError(t *testing.T) {
	store := NewMemoryStore()
	cache := NewCache(store, NewLocalVersion())
	boom := errors.New("boom")

	var out payload
	err := cache.Fetch(context.Background(), "ns", nil, time.Minute, &out, func(context.Context) (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, store.Len())
}

func TestCacheFetchRequiresLoader(t *testing.T) {
	var out payload
	err := NewCache(NewMemoryStore(), NewLocalVersion()).Fetch(context.Background(), "ns", nil, time.Minute, &out, nil)
	assert.Error(t, err)
}

func TestNilCacheComputesDirectly(t *testing.T) {
	var cache *Cache
	var out payload
	err := cache.Fetch(context.Background(), "ns", nil, time.Minute, &out, func(context.Context) (interface{}, error) {
		return payload{Value: "direct"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "direct", out.Value)
}

func TestCacheFetchCollapsesConcurrentMisses(t *testing.T) {
	cache := NewCache(NewMemoryStore(), NewLocalVersion())
	release := make(chan struct{})
	var calls atomic.Int32
	loader := func(context.Context) (interface{}, error) {
		calls.Add(1)
		<-release
		return payload{Value: "shared"}, nil
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([]payload, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = cache.Fetch(context.Background(), "ns", Params{"k": "same"}, time.Minute, &results[i], loader)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", results[i].Value)
	}
}
