// Package cache provides the shared key-value layer used by the query
// parser, the outfit planner and the aesthetic precompute job. Entries
// are raw bytes; callers own serialization. Every implementation treats
// a missing key as errors.ErrKeyNotFound so lookups and misses stay
// distinguishable from transport failures.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Store is the key-value surface the rest of the system depends on.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key, or errors.ErrKeyNotFound when the
	// key is absent or its TTL has lapsed.
	Get(ctx context.Context, key string) ([]byte, error)

	// SetTTL stores value under key with an expiry. A non-positive ttl
	// is rejected; use SetPermanent for entries that never expire.
	SetTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetPermanent stores value under key with no expiry.
	SetPermanent(ctx context.Context, key string, value []byte) error

	// Keys lists stored keys beginning with prefix. Expired entries are
	// excluded. An empty prefix lists everything.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases any underlying resources.
	Close() error
}

// envelope wraps a stored value with its expiry. JetStream KV has no
// per-key TTL, so expiry is enforced on read. A zero ExpiresAt means
// the entry never expires.
type envelope struct {
	Payload   []byte    `json:"p"`
	ExpiresAt time.Time `json:"x,omitempty"`
}

func (e envelope) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

func sealEnvelope(value []byte, ttl time.Duration, now time.Time) ([]byte, error) {
	env := envelope{Payload: value}
	if ttl > 0 {
		env.ExpiresAt = now.Add(ttl)
	}
	return json.Marshal(env)
}

func openEnvelope(raw []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, err
	}
	return env, nil
}
