package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

const memoryEntries = 1024

// MemoryBackend is the in-process fallback used when no Redis is configured.
// Every entry lives for the TTL given at construction.
type MemoryBackend struct {
	lru *expirable.LRU[string, []byte]
}

func NewMemoryBackend(ttl time.Duration) *MemoryBackend {
	return &MemoryBackend{lru: expirable.NewLRU[string, []byte](memoryEntries, nil, ttl)}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := m.lru.Get(key)
	return value, ok, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.lru.Add(key, value)
	return nil
}

func (m *MemoryBackend) Flush(context.Context) error {
	m.lru.Purge()
	return nil
}

// NewBackend picks Redis when a client is configured and memory otherwise.
func NewBackend(client *redis.Client, ttl time.Duration) Backend {
	if client == nil {
		return NewMemoryBackend(ttl)
	}
	return NewRedisBackend(client)
}
