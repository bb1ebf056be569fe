// Package storage persists the client-side session as string key/value pairs with optional
// expiry, the way a browser keeps credentials in local storage.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get for missing or expired keys.
var ErrNotFound = errors.New("key not found")

// Repo is a key/value store with per-key time-to-live. A ttl of zero never expires.
type Repo interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type entry struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

func (e entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

func newEntry(value string, ttl time.Duration, now time.Time) entry {
	e := entry{Value: value}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	return e
}
