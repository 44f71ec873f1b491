// Package cache memoizes rendered feed pages for a bounded time.
//
// The cache is never a source of truth: a backend failure is logged and
// treated as a miss, and entries are only dropped by TTL expiry or an
// explicit InvalidateAll.
package cache

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Backend stores opaque values under string keys.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Flush(ctx context.Context) error
}

type Cache struct {
	backend Backend
	ttl     time.Duration
}

func New(backend Backend, ttl time.Duration) *Cache {
	return &Cache{backend: backend, ttl: ttl}
}

// Key derives the cache key of one feed page.
func Key(kind, scope string, page int) string {
	return fmt.Sprintf("feed:%s:%s:%d", kind, scope, page)
}

// GetOrCompute returns the stored value for key, or runs compute and stores
// its result for the cache TTL. Errors from compute are returned and nothing
// is stored.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute func() ([]byte, error)) ([]byte, error) {
	value, ok, err := c.backend.Get(ctx, key)
	switch {
	case err != nil:
		log.WithError(err).WithField("key", key).Warn("[cache] get failed, computing directly")
	case ok:
		return value, nil
	}

	value, err = compute()
	if err != nil {
		return nil, err
	}

	if err := c.backend.Set(ctx, key, value, c.ttl); err != nil {
		log.WithError(err).WithField("key", key).Warn("[cache] set failed")
	}
	return value, nil
}

// InvalidateAll drops every entry regardless of key or remaining TTL.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	if err := c.backend.Flush(ctx); err != nil {
		log.WithError(err).Error("[cache] invalidate failed")
		return err
	}
	log.Info("[cache] invalidated")
	return nil
}
