// Package cache memoizes reads under named keys until a change notification
// marks them stale.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/garnizeh/folio/internal/metrics"
	"github.com/garnizeh/folio/internal/notify"
	"golang.org/x/sync/singleflight"
)

// Subscriber is the part of notify.Registry the cache binds to.
type Subscriber interface {
	Subscribe(table string, onChange func(notify.ChangeEvent)) (func(), error)
}

var _ Subscriber = (*notify.Registry)(nil)

type entry struct {
	value  any
	stored time.Time
	stale  bool
}

// Cache is safe for concurrent use. Concurrent misses on one key share a
// single fetch.
type Cache struct {
	maxAge  time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	// epoch advances on every invalidation; a fetch that started in an older
	// epoch returns its value without memoizing it.
	epoch uint64
	group singleflight.Group
}

// New returns a cache whose entries expire after maxAge. Zero keeps entries
// until they are invalidated.
func New(maxAge time.Duration, m *metrics.Metrics, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		maxAge:  maxAge,
		metrics: m,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Get returns the memoized value for key, calling fetch when the entry is
// missing, stale or expired. Errors are not memoized. A caller whose ctx ends
// stops waiting; a caller that joined a fetch cancelled by another caller's
// context retries once with its own.
func (c *Cache) Get(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, error) {
	for retried := false; ; retried = true {
		c.mu.Lock()
		if e, ok := c.entries[key]; ok && c.fresh(e) {
			c.mu.Unlock()
			c.metrics.CacheHit()
			return e.value, nil
		}
		epoch := c.epoch
		c.mu.Unlock()
		c.metrics.CacheMiss()

		ch := c.group.DoChan(key+"#"+strconv.FormatUint(epoch, 10), func() (any, error) {
			v, err := fetch(ctx)
			if err != nil {
				return nil, err
			}
			c.mu.Lock()
			if c.epoch == epoch {
				c.entries[key] = &entry{value: v, stored: c.now()}
			}
			c.mu.Unlock()
			return v, nil
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err != nil && !retried && res.Shared && isCancel(res.Err) && ctx.Err() == nil {
				continue
			}
			return res.Val, res.Err
		}
	}
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (c *Cache) fresh(e *entry) bool {
	if e.stale {
		return false
	}
	return c.maxAge <= 0 || c.now().Sub(e.stored) < c.maxAge
}

// Fetch is the typed form of Get.
func Fetch[T any](ctx context.Context, c *Cache, key string, fetch func(context.Context) (T, error)) (T, error) {
	v, err := c.Get(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache key %q holds %T", key, v)
	}
	return t, nil
}

// Invalidate marks key and every key below it ("key/...") stale and reports
// how many entries it touched.
func (c *Cache) Invalidate(key string) int {
	prefix := key + "/"
	return c.InvalidateMatching(func(k string) bool {
		return k == key || strings.HasPrefix(k, prefix)
	})
}

// InvalidateMatching marks every key accepted by match stale.
func (c *Cache) InvalidateMatching(match func(key string) bool) int {
	c.mu.Lock()
	c.epoch++
	n := 0
	for k, e := range c.entries {
		if match(k) && !e.stale {
			e.stale = true
			n++
		}
	}
	c.mu.Unlock()
	c.metrics.CacheInvalidated()
	return n
}

// IsStale reports whether key is absent, stale or expired.
func (c *Cache) IsStale(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return !ok || !c.fresh(e)
}

// Bind invalidates key whenever table changes. The returned func releases the
// subscription.
func (c *Cache) Bind(sub Subscriber, table, key string) (func(), error) {
	return sub.Subscribe(table, func(ev notify.ChangeEvent) {
		n := c.Invalidate(key)
		c.logger.Debug("cache invalidated", slog.String("key", key), slog.String("table", ev.Table), slog.String("event", string(ev.Event)), slog.Int("entries", n))
	})
}
