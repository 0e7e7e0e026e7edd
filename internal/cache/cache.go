// Package cache реализует read-through кэш сериализованных представлений.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Observer получает события кэша (метрики).
type Observer interface {
	RecordHit(namespace string)
	RecordMiss(namespace string)
	RecordInvalidation(failed bool)
}

// Cache — read-through кэш поверх Store. Ошибки инвалидации только логируются.
//
// Каждая инвалидация получает номер из монотонного счётчика. Загрузка, начатая до
// инвалидации своего ключа, не записывает результат в Store, и новые вызовы не
// присоединяются к такой загрузке.
type Cache struct {
	store    Store
	logger   *log.Entry
	observer Observer
	group    singleflight.Group

	mu       sync.Mutex
	clock    uint64
	keys     map[string]uint64
	prefixes map[string]uint64
}

// Option настраивает Cache.
type Option func(*Cache)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver задаёт получателя метрик.
func WithObserver(observer Observer) Option {
	return func(c *Cache) {
		c.observer = observer
	}
}

// New создаёт кэш. nil store заменяется на MemoryStore.
func New(store Store, opts ...Option) *Cache {
	if store == nil {
		store = NewMemoryStore()
	}
	c := &Cache{
		store:    store,
		logger:   log.WithField("component", "cache"),
		keys:     make(map[string]uint64),
		prefixes: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrSet возвращает значение по ключу; при промахе вызывает fetch, сохраняет результат
// на ttl и возвращает его. Одновременные промахи по одному ключу выполняют fetch один раз.
// Ошибка fetch возвращается вызывающему и ничего не кэширует.
func (c *Cache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	namespace := namespaceOf(key)

	value, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("cache read failed, falling back to fetch")
	}
	if ok {
		c.recordHit(namespace)
		return value, nil
	}
	c.recordMiss(namespace)

	c.mu.Lock()
	started := c.clock
	flight := key + "@" + strconv.FormatUint(c.invalidatedAtLocked(key), 10)
	c.mu.Unlock()

	result, err, _ := c.group.Do(flight, func() (any, error) {
		fresh, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.storeIfCurrent(ctx, key, fresh, ttl, started)
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// storeIfCurrent пишет значение, только если ключ не инвалидировали после started.
// Проверка и запись идут под mu, поэтому инвалидация либо видна здесь,
// либо её Delete выполняется после записи.
func (c *Cache) storeIfCurrent(ctx context.Context, key string, value []byte, ttl time.Duration, started uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.invalidatedAtLocked(key) > started {
		return
	}
	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}

// invalidatedAtLocked возвращает номер последней инвалидации ключа или его префикса.
func (c *Cache) invalidatedAtLocked(key string) uint64 {
	last := c.keys[key]
	for prefix, at := range c.prefixes {
		if at > last && strings.HasPrefix(key, prefix) {
			last = at
		}
	}
	return last
}

// Invalidate удаляет ключи. Ошибка хранилища логируется и не возвращается.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	c.mu.Lock()
	c.clock++
	for _, key := range keys {
		c.keys[key] = c.clock
	}
	c.mu.Unlock()

	err := c.store.Delete(ctx, keys...)
	c.recordInvalidation(err != nil)
	if err != nil {
		c.logger.WithError(err).WithField("keys", keys).Warn("cache invalidation failed")
	}
}

// InvalidateCollection удаляет все ключи с префиксом.
func (c *Cache) InvalidateCollection(ctx context.Context, prefix string) {
	c.mu.Lock()
	c.clock++
	c.prefixes[prefix] = c.clock
	c.mu.Unlock()

	err := c.store.DeletePrefix(ctx, prefix)
	c.recordInvalidation(err != nil)
	if err != nil {
		c.logger.WithError(err).WithField("prefix", prefix).Warn("cache collection invalidation failed")
	}
}

// Fetch — типизированная обёртка над GetOrSet: значение хранится как JSON.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var out T
	raw, err := c.GetOrSet(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(value)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		// Повреждённая запись не должна отдаваться повторно.
		c.Invalidate(ctx, key)
		return out, fmt.Errorf("decode cached %q: %w", key, err)
	}
	return out, nil
}

func (c *Cache) recordHit(namespace string) {
	if c.observer != nil {
		c.observer.RecordHit(namespace)
	}
}

func (c *Cache) recordMiss(namespace string) {
	if c.observer != nil {
		c.observer.RecordMiss(namespace)
	}
}

func (c *Cache) recordInvalidation(failed bool) {
	if c.observer != nil {
		c.observer.RecordInvalidation(failed)
	}
}

func namespaceOf(key string) string {
	if idx := strings.IndexByte(key, ':'); idx > 0 {
		return key[:idx]
	}
	return key
}
