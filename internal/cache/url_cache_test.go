package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOnceCachesValue(t *testing.T) {
	c := New(time.Minute, Options{})
	var calls int32

	fetch := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "resolved-url", nil
	}

	v, err := c.ResolveOnce(context.Background(), "key", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, "resolved-url", v)

	v, err = c.ResolveOnce(context.Background(), "key", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, "resolved-url", v)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestResolveOnceCoalescesConcurrentCallers(t *testing.T) {
	c := New(time.Minute, Options{})
	var calls int32
	release := make(chan struct{})

	fetch := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "resolved-url", nil
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.ResolveOnce(context.Background(), "shared-key", time.Minute, fetch)
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "resolved-url", results[i])
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	v, ok := c.Get("shared-key")
	require.True(t, ok)
	assert.Equal(t, "resolved-url", v)
}

func TestResolveOnceDoesNotCacheErrors(t *testing.T) {
	c := New(time.Minute, Options{})
	var calls int32

	fetch := func(ctx context.Context) (string, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return "", assert.AnError
		}
		return "resolved-url", nil
	}

	_, err := c.ResolveOnce(context.Background(), "key", time.Minute, fetch)
	assert.Error(t, err)

	v, err := c.ResolveOnce(context.Background(), "key", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, "resolved-url", v)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestPutEvictsOldestWhenAtCapacity(t *testing.T) {
	c := New(time.Minute, Options{MaxResolved: 2, MaxPending: 10})

	c.Put("a", "va", time.Minute)
	c.Put("b", "vb", time.Minute)
	c.Put("c", "vc", time.Minute)

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry should have been evicted")

	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestPutReinsertionMovesToBackOfOrder(t *testing.T) {
	c := New(time.Minute, Options{MaxResolved: 2, MaxPending: 10})

	c.Put("a", "va", time.Minute)
	c.Put("b", "vb", time.Minute)
	c.Put("a", "va2", time.Minute) // a is now most-recent
	c.Put("c", "vc", time.Minute)  // should evict b, not a

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "va2", v)
}

func TestGetExpiredReturnsAbsent(t *testing.T) {
	c := New(time.Minute, Options{})
	c.Put("key", "value", 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get("key")
	assert.False(t, ok)
}

func TestPendingBoundEvictsOldestBookkeeping(t *testing.T) {
	c := New(time.Minute, Options{MaxResolved: 500, MaxPending: 2})

	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			c.ResolveOnce(context.Background(), key, time.Minute, func(ctx context.Context) (string, error) {
				<-release
				return "v", nil
			})
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, c.PendingLen(), 2)
	close(release)
	wg.Wait()
}
