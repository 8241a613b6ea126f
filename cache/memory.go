// Package cache keeps provider responses for a bounded time so repeated runs
// inside the TTL window do not hit the upstream APIs again.
package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a provider response stays valid
const DefaultTTL = 15 * time.Minute

// Store is a byte-oriented key/value store with per-entry expiry
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

type entry struct {
	value   []byte
	expires time.Time
}

// MemoryStore is an in-process Store. Expired entries are invisible to Get and
// removed by a background cleaner.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
	cleaner *time.Ticker
	done    chan struct{}
	once    sync.Once
}

// NewMemoryStore creates a store whose cleaner sweeps expired entries every interval
func NewMemoryStore(interval time.Duration) *MemoryStore {
	if interval <= 0 {
		interval = time.Minute
	}
	m := &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
		cleaner: time.NewTicker(interval),
		done:    make(chan struct{}),
	}
	go m.backgroundCleaner()
	return m
}

func (m *MemoryStore) backgroundCleaner() {
	for {
		select {
		case <-m.cleaner.C:
			m.trim()
		case <-m.done:
			m.cleaner.Stop()
			return
		}
	}
}

func (m *MemoryStore) trim() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok || !m.now().Before(e.expires) {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry{
		value:   append([]byte(nil), value...),
		expires: m.now().Add(ttl),
	}
	return nil
}

// Len returns the number of stored entries, expired ones included until the next sweep
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close stops the cleaner
func (m *MemoryStore) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}
