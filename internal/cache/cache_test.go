package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counter(calls *int, value string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		*calls++
		return value, nil
	}
}

func TestLookupOrComputeCaches(t *testing.T) {
	c := New(time.Minute)
	ctx := context.Background()
	calls := 0

	v, err := LookupOrCompute(ctx, c, "meters", "1:10", counter(&calls, "page-1"))
	require.NoError(t, err)
	assert.Equal(t, "page-1", v)

	v, err = LookupOrCompute(ctx, c, "meters", "1:10", counter(&calls, "page-1-again"))
	require.NoError(t, err)
	assert.Equal(t, "page-1", v)
	assert.Equal(t, 1, calls)
}

func TestInvalidateNamespaceClearsEveryKey(t *testing.T) {
	c := New(time.Minute)
	ctx := context.Background()
	calls := 0

	for _, key := range []string{"1:10", "2:10", "check:5"} {
		_, err := LookupOrCompute(ctx, c, "meters", key, counter(&calls, key))
		require.NoError(t, err)
	}
	_, err := LookupOrCompute(ctx, c, "meters_search", "loc", counter(&calls, "loc"))
	require.NoError(t, err)
	require.Equal(t, 4, calls)

	c.InvalidateNamespace("meters")
	assert.Zero(t, c.Len("meters"))
	assert.Equal(t, 1, c.Len("meters_search"))

	for _, key := range []string{"1:10", "2:10", "check:5"} {
		_, err := LookupOrCompute(ctx, c, "meters", key, counter(&calls, key))
		require.NoError(t, err)
	}
	assert.Equal(t, 7, calls)

	_, err = LookupOrCompute(ctx, c, "meters_search", "loc", counter(&calls, "loc"))
	require.NoError(t, err)
	assert.Equal(t, 7, calls)
}

func TestErrorsAreNotCached(t *testing.T) {
	c := New(time.Minute)
	ctx := context.Background()
	boom := errors.New("boom")
	calls := 0

	_, err := LookupOrCompute(ctx, c, "meterReadings", "k", func(context.Context) (int, error) {
		calls++
		return 0, boom
	})
	require.ErrorIs(t, err, boom)

	v, err := LookupOrCompute(ctx, c, "meterReadings", "k", func(context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 2, calls)
}

func TestEntriesExpire(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(time.Minute)
	c.now = func() time.Time { return now }
	ctx := context.Background()
	calls := 0

	_, _ = LookupOrCompute(ctx, c, "ns", "k", counter(&calls, "a"))
	now = now.Add(30 * time.Second)
	_, _ = LookupOrCompute(ctx, c, "ns", "k", counter(&calls, "b"))
	assert.Equal(t, 1, calls)

	now = now.Add(time.Minute)
	v, _ := LookupOrCompute(ctx, c, "ns", "k", counter(&calls, "c"))
	assert.Equal(t, "c", v)
	assert.Equal(t, 2, calls)
}

func TestDisabledCacheAlwaysComputes(t *testing.T) {
	c := New(0)
	ctx := context.Background()
	calls := 0
	for i := 0; i < 3; i++ {
		_, err := LookupOrCompute(ctx, c, "ns", "k", counter(&calls, "x"))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}

func TestConcurrentAccess(t *testing.T) {
	c := New(time.Minute)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = LookupOrCompute(ctx, c, "ns", "shared", func(context.Context) (int, error) { return i, nil })
			if i%4 == 0 {
				c.InvalidateNamespace("ns")
			}
		}(i)
	}
	wg.Wait()
}

func TestInvalidationDuringComputeIsNotStored(t *testing.T) {
	c := New(time.Minute)
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan string)

	go func() {
		v, _ := LookupOrCompute(ctx, c, "ns", "k", func(context.Context) (string, error) {
			close(started)
			<-release
			return "stale", nil
		})
		done <- v
	}()

	<-started
	c.InvalidateNamespace("ns")
	close(release)
	assert.Equal(t, "stale", <-done)
	assert.Zero(t, c.Len("ns"))

	v, err := LookupOrCompute(ctx, c, "ns", "k", func(context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)

	v, err = LookupOrCompute(ctx, c, "ns", "k", func(context.Context) (string, error) {
		return "recomputed", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
}

func TestNamespaceSizeIsBounded(t *testing.T) {
	c := New(time.Minute, WithMaxEntries(3))
	ctx := context.Background()
	calls := 0

	for _, key := range []string{"a", "b", "c", "d", "e"} {
		_, err := LookupOrCompute(ctx, c, "meterReadings", key, counter(&calls, key))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, c.Len("meterReadings"))

	// the oldest key was evicted and computes again
	v, err := LookupOrCompute(ctx, c, "meterReadings", "a", counter(&calls, "a2"))
	require.NoError(t, err)
	assert.Equal(t, "a2", v)
	assert.Equal(t, 6, calls)
}

func TestExpiredEntriesAreDropped(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(time.Minute)
	c.now = func() time.Time { return now }
	ctx := context.Background()
	calls := 0

	_, _ = LookupOrCompute(ctx, c, "ns", "k", counter(&calls, "a"))
	require.Equal(t, 1, c.Len("ns"))

	now = now.Add(2 * time.Minute)
	_, _, ok := c.get("ns", "k")
	assert.False(t, ok)
	assert.Zero(t, c.Len("ns"))
}
