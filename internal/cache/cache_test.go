package cache

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

type failingStore struct {
	*MemoryStore
	deleteErr error
}

func (s *failingStore) Delete(ctx context.Context, keys ...string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.MemoryStore.Delete(ctx, keys...)
}

func (s *failingStore) DeletePrefix(ctx context.Context, prefix string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.MemoryStore.DeletePrefix(ctx, prefix)
}

type countingObserver struct {
	mu                   sync.Mutex
	hits, misses, failed int
}

func (o *countingObserver) RecordHit(string) {
	o.mu.Lock()
	o.hits++
	o.mu.Unlock()
}

func (o *countingObserver) RecordMiss(string) {
	o.mu.Lock()
	o.misses++
	o.mu.Unlock()
}

func (o *countingObserver) RecordInvalidation(failed bool) {
	if failed {
		o.mu.Lock()
		o.failed++
		o.mu.Unlock()
	}
}

func TestGetOrSet_ReadThrough(t *testing.T) {
	ctx := context.Background()
	observer := &countingObserver{}
	c := New(NewMemoryStore(), WithObserver(observer))

	var calls int
	fetch := func(context.Context) ([]byte, error) {
		calls++
		return []byte(`"v1"`), nil
	}

	value, err := c.GetOrSet(ctx, OrderKey("1"), time.Minute, fetch)
	require.NoError(t, err)
	require.Equal(t, `"v1"`, string(value))

	value, err = c.GetOrSet(ctx, OrderKey("1"), time.Minute, fetch)
	require.NoError(t, err)
	require.Equal(t, `"v1"`, string(value))
	require.Equal(t, 1, calls)
	require.Equal(t, 1, observer.hits)
	require.Equal(t, 1, observer.misses)
}

func TestGetOrSet_FetchErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	c := New(nil)
	boom := errors.New("boom")

	_, err := c.GetOrSet(ctx, "order:1", time.Minute, func(context.Context) ([]byte, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	value, err := c.GetOrSet(ctx, "order:1", time.Minute, func(context.Context) ([]byte, error) { return []byte("ok"), nil })
	require.NoError(t, err)
	require.Equal(t, "ok", string(value))
}

func TestGetOrSet_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	c := New(store)

	var calls int
	fetch := func(context.Context) ([]byte, error) {
		calls++
		return []byte("x"), nil
	}

	_, err := c.GetOrSet(ctx, "invoice:1", 5*time.Minute, fetch)
	require.NoError(t, err)
	now = now.Add(4 * time.Minute)
	_, err = c.GetOrSet(ctx, "invoice:1", 5*time.Minute, fetch)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	now = now.Add(2 * time.Minute)
	_, err = c.GetOrSet(ctx, "invoice:1", 5*time.Minute, fetch)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestGetOrSet_CoalescesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	c := New(nil)

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("v"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := c.GetOrSet(ctx, "orders:all", time.Minute, fetch)
			assert.NoError(t, err)
			assert.Equal(t, "v", string(value))
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.LessOrEqual(t, calls.Load(), int32(8))
	require.GreaterOrEqual(t, calls.Load(), int32(1))

	// После заполнения кэша fetch больше не вызывается.
	before := calls.Load()
	_, err := c.GetOrSet(ctx, "orders:all", time.Minute, fetch)
	require.NoError(t, err)
	require.Equal(t, before, calls.Load())
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := New(store)

	for _, key := range EntityKeys(NamespaceOrder, "1", "u1") {
		require.NoError(t, store.Set(ctx, key, []byte("x"), time.Minute))
	}
	require.NoError(t, store.Set(ctx, OrdersByUserKey("u2"), []byte("x"), time.Minute))
	require.NoError(t, store.Set(ctx, ReturnsAllKey(), []byte("x"), time.Minute))

	c.Invalidate(ctx, EntityKeys(NamespaceOrder, "1", "u1")...)
	require.Equal(t, 2, store.Len())

	c.InvalidateCollection(ctx, CollectionPrefix(NamespaceOrder))
	_, ok, _ := store.Get(ctx, OrdersByUserKey("u2"))
	require.False(t, ok)
	_, ok, _ = store.Get(ctx, ReturnsAllKey())
	require.True(t, ok)
}

// startBlockedFetch запускает GetOrSet, чей fetch прочитал "old" и ждёт release.
func startBlockedFetch(t *testing.T, c *Cache, key string) (release chan struct{}, done chan struct{}) {
	t.Helper()

	started := make(chan struct{})
	release = make(chan struct{})
	done = make(chan struct{})
	go func() {
		defer close(done)
		value, err := c.GetOrSet(context.Background(), key, time.Minute, func(context.Context) ([]byte, error) {
			close(started)
			<-release
			return []byte("old"), nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "old", string(value))
	}()
	<-started
	return release, done
}

func TestGetOrSet_InvalidationDuringFetchDropsResult(t *testing.T) {
	ctx := context.Background()
	c := New(nil)

	release, done := startBlockedFetch(t, c, OrderKey("1"))
	c.Invalidate(ctx, OrderKey("1"))
	close(release)
	<-done

	value, err := c.GetOrSet(ctx, OrderKey("1"), time.Minute, func(context.Context) ([]byte, error) {
		return []byte("new"), nil
	})
	require.NoError(t, err)
	require.Equal(t, "new", string(value))
}

func TestGetOrSet_CallAfterInvalidationDoesNotJoinOldFetch(t *testing.T) {
	ctx := context.Background()
	c := New(nil)

	release, done := startBlockedFetch(t, c, OrderKey("1"))
	defer func() {
		close(release)
		<-done
	}()
	c.Invalidate(ctx, OrderKey("1"))

	value, err := c.GetOrSet(ctx, OrderKey("1"), time.Minute, func(context.Context) ([]byte, error) {
		return []byte("new"), nil
	})
	require.NoError(t, err)
	require.Equal(t, "new", string(value))
}

func TestGetOrSet_CollectionInvalidationDuringFetchDropsResult(t *testing.T) {
	ctx := context.Background()
	c := New(nil)

	release, done := startBlockedFetch(t, c, OrdersByUserKey("u1"))
	c.InvalidateCollection(ctx, CollectionPrefix(NamespaceOrder))
	close(release)
	<-done

	var calls atomic.Int32
	_, err := c.GetOrSet(ctx, OrdersByUserKey("u1"), time.Minute, func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("new"), nil
	})
	require.NoError(t, err)
	require.Equal(t, int32(1), calls.Load())
}

func TestInvalidate_FailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	observer := &countingObserver{}
	c := New(&failingStore{MemoryStore: NewMemoryStore(), deleteErr: errors.New("cache down")}, WithObserver(observer))

	require.NotPanics(t, func() {
		c.Invalidate(ctx, OrderKey("1"))
		c.InvalidateCollection(ctx, "orders:")
	})
	require.Equal(t, 2, observer.failed)
}

type orderView struct {
	ID    string `json:"id"`
	Total string `json:"total"`
}

func TestFetch_Typed(t *testing.T) {
	ctx := context.Background()
	c := New(nil)

	var loads int
	load := func(context.Context) (orderView, error) {
		loads++
		return orderView{ID: "1", Total: "25.00"}, nil
	}

	first, err := Fetch(ctx, c, OrderKey("1"), time.Minute, load)
	require.NoError(t, err)
	second, err := Fetch(ctx, c, OrderKey("1"), time.Minute, load)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, "25.00", second.Total)
	require.Equal(t, 1, loads)
}

func TestFetch_CorruptedEntryIsDropped(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := New(store)
	require.NoError(t, store.Set(ctx, OrderKey("1"), []byte("{not json"), time.Minute))

	_, err := Fetch(ctx, c, OrderKey("1"), time.Minute, func(context.Context) (orderView, error) {
		return orderView{ID: "1"}, nil
	})
	require.Error(t, err)

	view, err := Fetch(ctx, c, OrderKey("1"), time.Minute, func(context.Context) (orderView, error) {
		return orderView{ID: "1"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, "1", view.ID)
}

func TestEntityKeys(t *testing.T) {
	require.Equal(t, []string{"return:r1", "returns:all", "returns:user:u1"}, EntityKeys(NamespaceReturn, "r1", "u1"))
	require.Equal(t, []string{"cart:c1", "carts:user:u1"}, EntityKeys(NamespaceCart, "c1", "u1"))
	require.Nil(t, EntityKeys("unknown", "1", "u"))
}
