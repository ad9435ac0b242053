package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	data      []byte
	fetchedAt time.Time
	ttl       time.Duration
}

// Memory is a process-local Store. Entries are only dropped when a read finds
// them expired.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}

	if m.now().Sub(e.fetchedAt) >= e.ttl {
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && cur.fetchedAt.Equal(e.fetchedAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return false, nil
	}

	if err := decode(e.data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.entries[key] = entry{data: data, fetchedAt: m.now(), ttl: ttl}
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
