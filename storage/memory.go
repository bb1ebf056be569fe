package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo keeps entries in process memory. Nothing survives a restart.
type MemoryRepo struct {
	mu      sync.RWMutex
	entries map[string]entry
	nowFunc func() time.Time
}

var _ Repo = (*MemoryRepo)(nil)

type MemoryOption func(*MemoryRepo)

// WithMemoryNowFunc overrides the clock used for expiry (tests).
func WithMemoryNowFunc(now func() time.Time) MemoryOption {
	return func(r *MemoryRepo) {
		r.nowFunc = now
	}
}

func NewMemoryRepo(options ...MemoryOption) *MemoryRepo {
	r := &MemoryRepo{
		entries: make(map[string]entry),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *MemoryRepo) Get(_ context.Context, key string) (string, error) {
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	if e.expired(r.nowFunc()) {
		r.mu.Lock()
		delete(r.entries, key)
		r.mu.Unlock()
		return "", ErrNotFound
	}
	return e.Value, nil
}

func (r *MemoryRepo) Set(_ context.Context, key, value string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = newEntry(value, ttl, r.nowFunc())
	return nil
}

func (r *MemoryRepo) Delete(_ context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		delete(r.entries, k)
	}
	return nil
}

// Len counts unexpired entries.
func (r *MemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := r.nowFunc()
	n := 0
	for _, e := range r.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}
