package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	mu           sync.Mutex
	hits, misses int
}

func (o *countingObserver) CacheHit(string) {
	o.mu.Lock()
	o.hits++
	o.mu.Unlock()
}

func (o *countingObserver) CacheMiss(string) {
	o.mu.Lock()
	o.misses++
	o.mu.Unlock()
}

type payload struct {
	Total string `json:"total"`
}

func newTestCache(t *testing.T) (*Versioned, *miniredis.Miniredis, *countingObserver) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	obs := &countingObserver{}
	return NewVersioned(client, "recap", time.Minute, obs), mr, obs
}

func TestVersionedFetchJSONMemoises(t *testing.T) {
	ctx := context.Background()
	c, mr, obs := newTestCache(t)

	key, err := c.BuildKey(ctx, "2024", "all")
	require.NoError(t, err)
	require.Equal(t, "recap:2024:all:v1", key)

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return payload{Total: "1300"}, nil
	}

	var first, second payload
	require.NoError(t, c.FetchJSON(ctx, key, &first, loader))
	require.NoError(t, c.FetchJSON(ctx, key, &second, loader))
	require.Equal(t, 1, calls)
	require.Equal(t, first, second)
	require.Equal(t, 1, obs.hits)
	require.Equal(t, 1, obs.misses)
	require.True(t, mr.Exists(key))
	require.Equal(t, time.Minute, mr.TTL(key))
}

func TestVersionedBumpChangesKeys(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(t)

	before, err := c.BuildKey(ctx, "2024")
	require.NoError(t, err)
	ver, err := c.Bump(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), ver)
	after, err := c.BuildKey(ctx, "2024")
	require.NoError(t, err)
	require.NotEqual(t, before, after)
	require.Equal(t, "recap:2024:v2", after)
}

func TestVersionedLoaderError(t *testing.T) {
	c, mr, _ := newTestCache(t)
	boom := errors.New("boom")

	var dest payload
	err := c.FetchJSON(context.Background(), "recap:k:v1", &dest, func(context.Context) (any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("recap:k:v1"))

	require.ErrorIs(t, c.FetchJSON(context.Background(), "k", &dest, nil), ErrLoaderRequired)
}

func TestVersionedNilCacheCallsLoader(t *testing.T) {
	var c *Versioned
	ctx := context.Background()

	key, err := c.BuildKey(ctx, "a", "b")
	require.NoError(t, err)
	require.Equal(t, "a:b", key)

	calls := 0
	var dest payload
	for i := 0; i < 2; i++ {
		require.NoError(t, c.FetchJSON(ctx, key, &dest, func(context.Context) (any, error) {
			calls++
			return payload{Total: "1"}, nil
		}))
	}
	require.Equal(t, 2, calls)
	require.Equal(t, "1", dest.Total)

	ver, err := c.Bump(ctx)
	require.NoError(t, err)
	require.Zero(t, ver)
}

func TestVersionedReadFailureFallsBackToLoader(t *testing.T) {
	c, mr, _ := newTestCache(t)
	mr.Close()

	var dest payload
	err := c.FetchJSON(context.Background(), "recap:k:v1", &dest, func(context.Context) (any, error) {
		return payload{Total: "9"}, nil
	})
	require.ErrorIs(t, err, ErrStoreFailed)
	require.Equal(t, "9", dest.Total)
}
