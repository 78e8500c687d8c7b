package cache_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fintrack/pkg/cache"
)

func value(v int) func() (int, error) {
	return func() (int, error) { return v, nil }
}

func TestLRUCache_Basic(t *testing.T) {
	t.Parallel()

	c := cache.NewLRUCache[string, int](3)
	_, _, _ = c.GetOrCreate("a", value(1))
	_, _, _ = c.GetOrCreate("b", value(2))

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	c := cache.NewLRUCache[string, int](2)
	var evicted []string
	c.SetEvictCallback(func(k string, _ int) { evicted = append(evicted, k) })

	_, _, _ = c.GetOrCreate("a", value(1))
	_, _, _ = c.GetOrCreate("b", value(2))
	c.Get("a")
	_, _, _ = c.GetOrCreate("c", value(3))

	assert.Equal(t, []string{"b"}, evicted)
	_, ok := c.Get("b")
	assert.False(t, ok)

	_, ok = c.Remove("a")
	assert.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, evicted)

	c.Clear()
	assert.Equal(t, []string{"b", "a", "c"}, evicted)
	assert.Zero(t, c.Len())
}

func TestLRUCache_CallbackMayUseCache(t *testing.T) {
	t.Parallel()

	c := cache.NewLRUCache[int, int](1)
	lens := make(chan int, 1)
	c.SetEvictCallback(func(int, int) { lens <- c.Len() })

	_, _, _ = c.GetOrCreate(1, value(1))
	_, _, _ = c.GetOrCreate(2, value(2))
	assert.Equal(t, 1, <-lens)
}

func TestLRUCache_GetOrCreate(t *testing.T) {
	t.Parallel()

	c := cache.NewLRUCache[string, int](2)
	calls := 0
	create := func() (int, error) {
		calls++
		return calls, nil
	}

	v, created, err := c.GetOrCreate("a", create)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, v)

	v, created, err = c.GetOrCreate("a", create)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, v)

	boom := errors.New("boom")
	_, _, err = c.GetOrCreate("b", func() (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
	_, ok := c.Get("b")
	assert.False(t, ok)
}

func TestLRUCache_GetOrCreateConcurrent(t *testing.T) {
	t.Parallel()

	c := cache.NewLRUCache[string, *int](8)
	var (
		mu      sync.Mutex
		created int
		wg      sync.WaitGroup
	)

	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = c.GetOrCreate("same", func() (*int, error) {
				mu.Lock()
				created++
				mu.Unlock()
				return new(int), nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
}

func TestNewLRUCache_InvalidCapacity(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { cache.NewLRUCache[string, int](0) })
	assert.Panics(t, func() { cache.NewLRUCache[string, int](-1) })
}
