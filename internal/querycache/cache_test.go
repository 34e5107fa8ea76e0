package querycache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"evolv/internal/querycache"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func constant(v interface{}, calls *int32) querycache.FetchFunc {
	return func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(calls, 1)
		return v, nil
	}
}

func TestKey_String(t *testing.T) {
	assert.Equal(t, querycache.Key{"artwork", "1"}.String(), querycache.Key{"artwork", "1"}.String())
	assert.NotEqual(t, querycache.Key{"artworks", 12, 0}.String(), querycache.Key{"artworks", 1, 20}.String())
}

func TestCache_SetGet(t *testing.T) {
	c := querycache.New()
	key := querycache.Key{"artwork", "1"}

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Set(key, "v1")
	v, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "v1", v)

	c.Remove(key)
	_, ok = c.Get(key)
	assert.False(t, ok)
}

func TestCache_FetchFreshUsesCache(t *testing.T) {
	clock := newFakeClock()
	c := querycache.New(querycache.WithClock(clock.Now), querycache.WithStaleTime(time.Minute))
	key := querycache.Key{"artwork", "1"}
	ctx := context.Background()

	var calls int32
	v, err := c.Fetch(ctx, key, constant("a", &calls))
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	clock.Advance(30 * time.Second)
	v, err = c.Fetch(ctx, key, constant("b", &calls))
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	clock.Advance(31 * time.Second)
	assert.True(t, c.IsStale(key))
	v, err = c.Fetch(ctx, key, constant("b", &calls))
	require.NoError(t, err)
	assert.Equal(t, "b", v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCache_FetchPerQueryStaleTime(t *testing.T) {
	clock := newFakeClock()
	c := querycache.New(querycache.WithClock(clock.Now))
	key := querycache.Key{"user"}
	ctx := context.Background()

	var calls int32
	_, err := c.Fetch(ctx, key, constant("u", &calls), querycache.StaleTime(time.Minute))
	require.NoError(t, err)
	clock.Advance(10 * time.Second)
	_, err = c.Fetch(ctx, key, constant("u", &calls), querycache.StaleTime(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCache_Invalidate(t *testing.T) {
	clock := newFakeClock()
	c := querycache.New(querycache.WithClock(clock.Now), querycache.WithStaleTime(time.Hour))
	key := querycache.Key{"artwork", "1"}

	var calls int32
	_, err := c.Fetch(context.Background(), key, constant("a", &calls))
	require.NoError(t, err)
	assert.False(t, c.IsStale(key))

	c.Invalidate(key)
	assert.True(t, c.IsStale(key))

	_, err = c.Fetch(context.Background(), key, constant("a", &calls))
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCache_FetchError(t *testing.T) {
	c := querycache.New()
	key := querycache.Key{"artwork", "1"}

	_, err := c.Fetch(context.Background(), key, func(ctx context.Context) (interface{}, error) {
		return nil, assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestCache_FetchDeduplicatesConcurrentCalls(t *testing.T) {
	c := querycache.New()
	key := querycache.Key{"artworks", 12, 0}

	release := make(chan struct{})
	var calls int32
	fn := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "page", nil
	}

	var wg sync.WaitGroup
	results := make([]interface{}, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Fetch(context.Background(), key, fn)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	require.Eventually(t, func() bool { return c.Fetching(key) }, time.Second, time.Millisecond)
	// give the remaining callers time to join the shared fetch
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, "page", v)
	}
}

func TestCache_WriteDuringFetchWins(t *testing.T) {
	c := querycache.New()
	key := querycache.Key{"artwork", "1"}
	c.Set(key, "old")

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan interface{})
	go func() {
		v, err := c.Fetch(context.Background(), key, func(ctx context.Context) (interface{}, error) {
			close(started)
			<-release
			return "stale read", nil
		})
		assert.NoError(t, err)
		done <- v
	}()

	<-started
	c.Set(key, "optimistic")
	close(release)

	assert.Equal(t, "optimistic", <-done)
	v, _ := c.Get(key)
	assert.Equal(t, "optimistic", v)
}

func TestCache_CancelStopsFetch(t *testing.T) {
	c := querycache.New()
	key := querycache.Key{"artwork", "1"}

	started := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		_, err := c.Fetch(context.Background(), key, func(ctx context.Context) (interface{}, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})
		errc <- err
	}()

	<-started
	assert.True(t, c.Cancel(key))
	assert.ErrorIs(t, <-errc, querycache.ErrFetchCancelled)
	assert.False(t, c.Fetching(key))
	assert.False(t, c.Cancel(key))
}

func TestCache_CancelKeepsCachedValue(t *testing.T) {
	c := querycache.New()
	key := querycache.Key{"artwork", "1"}
	c.Set(key, "cached")

	started := make(chan struct{})
	done := make(chan interface{}, 1)
	go func() {
		v, err := c.Fetch(context.Background(), key, func(ctx context.Context) (interface{}, error) {
			close(started)
			<-ctx.Done()
			return "late", nil
		})
		assert.NoError(t, err)
		done <- v
	}()

	<-started
	c.Cancel(key)
	assert.Equal(t, "cached", <-done)
}

func TestCache_FetchCallerContext(t *testing.T) {
	c := querycache.New()
	key := querycache.Key{"artwork", "1"}

	release := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctx, key, func(context.Context) (interface{}, error) {
			<-release
			return "v", nil
		})
		errc <- err
	}()

	require.Eventually(t, func() bool { return c.Fetching(key) }, time.Second, time.Millisecond)
	cancel()
	assert.True(t, errors.Is(<-errc, context.Canceled))

	// the shared fetch still completes and fills the cache
	close(release)
	require.Eventually(t, func() bool { _, ok := c.Get(key); return ok }, time.Second, time.Millisecond)
}

func TestCache_Update(t *testing.T) {
	c := querycache.New()
	key := querycache.Key{"counter"}

	wrote := c.Update(key, func(old interface{}, ok bool) (interface{}, bool) {
		assert.False(t, ok)
		return 1, true
	})
	assert.True(t, wrote)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Update(key, func(old interface{}, ok bool) (interface{}, bool) {
				return old.(int) + 1, true
			})
		}()
	}
	wg.Wait()

	v, _ := c.Get(key)
	assert.Equal(t, 51, v)

	wrote = c.Update(key, func(old interface{}, ok bool) (interface{}, bool) { return nil, false })
	assert.False(t, wrote)
	v, _ = c.Get(key)
	assert.Equal(t, 51, v)
}

func TestCache_GC(t *testing.T) {
	clock := newFakeClock()
	c := querycache.New(querycache.WithClock(clock.Now), querycache.WithGCTime(5*time.Minute))

	c.Set(querycache.Key{"a"}, 1)
	clock.Advance(4 * time.Minute)
	c.Set(querycache.Key{"b"}, 2)
	clock.Advance(2 * time.Minute)

	assert.Equal(t, 1, c.GC())
	_, ok := c.Get(querycache.Key{"a"})
	assert.False(t, ok)
	_, ok = c.Get(querycache.Key{"b"})
	assert.True(t, ok)
}

func TestCache_RunStopsWithContext(t *testing.T) {
	c := querycache.New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() { done <- c.Run(ctx, time.Millisecond) }()

	time.Sleep(5 * time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestTypedHelpers(t *testing.T) {
	c := querycache.New()
	key := querycache.Key{"user"}

	querycache.SetData(c, key, 42)
	v, ok := querycache.GetData[int](c, key)
	require.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = querycache.GetData[string](c, key)
	assert.False(t, ok)

	s, err := querycache.FetchAs(context.Background(), c, querycache.Key{"name"}, func(ctx context.Context) (string, error) {
		return "evolv", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "evolv", s)

	fetchName := func(ctx context.Context) (string, error) {
		return "fresh", nil
	}

	_, err = querycache.FetchAs(context.Background(), c, key, fetchName, querycache.StaleTime(time.Hour))
	assert.EqualError(t, err, "cache entry user holds int")

	c.Invalidate(key)
	s, err = querycache.FetchAs(context.Background(), c, key, fetchName, querycache.StaleTime(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "fresh", s)
}
