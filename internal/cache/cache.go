// Package cache provides the read-through TTL cache used by the external
// data adapters. Values are stored JSON-encoded so the in-memory and Redis
// stores behave the same way.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

type Store interface {
	// Get decodes the cached value for key into dst and reports whether it
	// was a hit.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// NormalizeKey lowercases and trims every part and joins them with "-".
func NormalizeKey(parts ...string) string {
	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(normalized, "-")
}

// Loader is a named read-through view over a Store with a fixed TTL.
type Loader struct {
	name  string
	store Store
	ttl   time.Duration
	group singleflight.Group

	// OnResult, when set, is told about every lookup outcome.
	OnResult func(name string, hit bool)
	// OnError, when set, receives store failures. They never fail a lookup.
	OnError func(name string, err error)
}

func NewLoader(name string, store Store, ttl time.Duration) *Loader {
	return &Loader{name: name, store: store, ttl: ttl}
}

func (l *Loader) TTL() time.Duration { return l.ttl }

// Load returns the cached value for key or calls fetch, caches its result and
// returns it. Concurrent misses on the same key share a single fetch. Fetch
// errors are returned as is and never cached.
func Load[T any](ctx context.Context, l *Loader, key string, fetch func(context.Context) (T, error)) (T, error) {
	var cached T
	hit, err := l.store.Get(ctx, l.prefixed(key), &cached)
	if err != nil {
		l.reportError(err)
	}
	if hit {
		l.report(true)
		return cached, nil
	}
	l.report(false)

	v, err, _ := l.group.Do(key, func() (any, error) {
		// shared by every waiter; outlives the caller that started it
		detached := context.WithoutCancel(ctx)
		fresh, err := fetch(detached)
		if err != nil {
			return nil, err
		}
		if err := l.store.Set(detached, l.prefixed(key), fresh, l.ttl); err != nil {
			l.reportError(err)
		}
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	result, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache %s: unexpected value type %T", l.name, v)
	}
	return result, nil
}

func (l *Loader) prefixed(key string) string {
	return l.name + ":" + key
}

func (l *Loader) report(hit bool) {
	if l.OnResult != nil {
		l.OnResult(l.name, hit)
	}
}

func (l *Loader) reportError(err error) {
	if l.OnError != nil {
		l.OnError(l.name, err)
	}
}

func encode(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("cache encode: %w", err)
	}
	return data, nil
}

func decode(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("cache decode: %w", err)
	}
	return nil
}
