// Package querycache caches the results of chain and Safe service reads, retrying failed reads,
// and supports optimistic updates that are rolled back when a mutation fails.
package querycache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/tocwex/slab-sub000/pkg/logger"
)

const (
	DefaultTTL      = 30 * time.Second
	DefaultAttempts = 3
	DefaultDelay    = 500 * time.Millisecond
)

// Config configures a Cache. Zero fields take the defaults.
type Config struct {
	TTL      time.Duration
	Attempts uint
	Delay    time.Duration
}

func (c Config) withDefaults() Config {
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
	if c.Attempts == 0 {
		c.Attempts = DefaultAttempts
	}
	if c.Delay == 0 {
		c.Delay = DefaultDelay
	}

	return c
}

// Cache is a keyed query cache shared by every reader in the process.
type Cache struct {
	items  *cache.Cache
	group  singleflight.Group
	cfg    Config
	lggr   logger.Logger
	mutate sync.Mutex
}

// New creates a Cache.
func New(cfg Config, lggr logger.Logger) *Cache {
	cfg = cfg.withDefaults()

	return &Cache{
		items: cache.New(cfg.TTL, 2*cfg.TTL),
		cfg:   cfg,
		lggr:  lggr.Named("QueryCache"),
	}
}

// Key joins the parts of a query key with ":". Keys sharing a prefix can be invalidated together.
func Key(parts ...any) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		switch v := p.(type) {
		case fmt.Stringer:
			s[i] = strings.ToLower(v.String())
		default:
			s[i] = strings.ToLower(fmt.Sprint(v))
		}
	}

	return strings.Join(s, ":")
}

// Fetch returns the cached value of key, or reads it with fn. Failed reads are retried; errors
// wrapped with retry.Unrecoverable and context errors are returned immediately. Concurrent
// fetches of the same key share one read.
func Fetch[T any](ctx context.Context, c *Cache, key string, fn func(context.Context) (T, error)) (T, error) {
	if v, ok := Peek[T](c, key); ok {
		return v, nil
	}

	res, err, _ := c.group.Do(key, func() (any, error) {
		v, err := retry.DoWithData(func() (T, error) {
			return fn(ctx)
		},
			retry.Context(ctx),
			retry.Attempts(c.cfg.Attempts),
			retry.Delay(c.cfg.Delay),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(err error) bool {
				return retry.IsRecoverable(err) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			}),
			retry.OnRetry(func(n uint, err error) {
				c.lggr.Debugw("retrying query", "key", key, "attempt", n+1, "err", err)
			}),
		)
		if err != nil {
			return v, err
		}
		c.items.SetDefault(key, v)

		return v, nil
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("query %s failed: %w", key, err)
	}

	return res.(T), nil
}

// Peek returns the cached value of key without reading.
func Peek[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.items.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}

	return t, true
}

// Set stores v under key, e.g. as an optimistic update.
func (c *Cache) Set(key string, v any) {
	c.items.SetDefault(key, v)
}

// Invalidate drops every entry whose key starts with one of prefixes and returns how many were
// dropped.
func (c *Cache) Invalidate(prefixes ...string) int {
	var n int
	for key := range c.items.Items() {
		for _, p := range prefixes {
			if strings.HasPrefix(key, strings.ToLower(p)) {
				c.items.Delete(key)
				n++

				break
			}
		}
	}
	if n > 0 {
		c.lggr.Debugw("invalidated queries", "prefixes", prefixes, "count", n)
	}

	return n
}

// Snapshot is a copy of cache entries taken before a mutation.
type Snapshot struct {
	items    map[string]cache.Item
	prefixes []string
}

// Snapshot copies the entries under prefixes. No prefix copies everything.
func (c *Cache) Snapshot(prefixes ...string) Snapshot {
	items := c.items.Items()
	snap := Snapshot{items: make(map[string]cache.Item, len(items)), prefixes: prefixes}
	for k, it := range items {
		if matches(k, prefixes) {
			snap.items[k] = it
		}
	}

	return snap
}

// Restore puts the cache back into the state of s for the snapshotted prefixes.
func (c *Cache) Restore(s Snapshot) {
	for k := range c.items.Items() {
		if _, ok := s.items[k]; !ok && matches(k, s.prefixes) {
			c.items.Delete(k)
		}
	}
	for k, it := range s.items {
		ttl := cache.NoExpiration
		if it.Expiration > 0 {
			ttl = time.Until(time.Unix(0, it.Expiration))
			if ttl <= 0 {
				continue
			}
		}
		c.items.Set(k, it.Object, ttl)
	}
}

func matches(key string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(key, strings.ToLower(p)) {
			return true
		}
	}

	return false
}

// Mutation describes one write and the cache entries it affects.
type Mutation struct {
	// Name identifies the mutation in logs.
	Name string
	// Keys are the prefixes the mutation affects. They are snapshotted before Optimistic runs,
	// restored on failure and invalidated on success.
	Keys []string
	// Optimistic optionally writes the expected result into the cache before Run.
	Optimistic func(c *Cache)
	// Run performs the write. It is never retried.
	Run func(ctx context.Context) error
}

// Mutate runs m with optimistic update, rollback on failure and invalidation on success.
// Mutations through one Cache are serialized.
func (c *Cache) Mutate(ctx context.Context, m Mutation) error {
	c.mutate.Lock()
	defer c.mutate.Unlock()

	snap := c.Snapshot(m.Keys...)
	if m.Optimistic != nil {
		m.Optimistic(c)
	}

	if err := m.Run(ctx); err != nil {
		c.lggr.Warnw("mutation failed, restoring cache", "mutation", m.Name, "err", err)
		c.Restore(snap)

		return err
	}
	if len(m.Keys) > 0 {
		c.Invalidate(m.Keys...)
	}
	c.lggr.Debugw("mutation settled", "mutation", m.Name)

	return nil
}
