package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// Flight deduplicates concurrent computations for the same cache key.
// When several goroutines miss on a key at once, only one runs the
// compute function; the rest share its result.
type Flight struct {
	store Store
	group singleflight.Group
}

// NewFlight wraps store with per-key request coalescing.
func NewFlight(store Store) *Flight {
	return &Flight{store: store}
}

// Do returns the cached value for key, computing and caching it on a
// miss. A non-positive ttl caches the computed value permanently.
// When compute reports a fallback the value is returned to the caller
// but never cached, so a later attempt can produce the real thing.
func (f *Flight) Do(ctx context.Context, key string, ttl time.Duration,
	compute func(ctx context.Context) ([]byte, bool, error)) ([]byte, error) {

	// A miss and cache trouble both fall through to compute.
	if value, err := f.store.Get(ctx, key); err == nil {
		return value, nil
	}

	result, err, _ := f.group.Do(key, func() (any, error) {
		// Another flight may have filled the key while we waited.
		if value, err := f.store.Get(ctx, key); err == nil {
			return value, nil
		}

		value, fallback, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if !fallback {
			if ttl > 0 {
				_ = f.store.SetTTL(ctx, key, value, ttl)
			} else {
				_ = f.store.SetPermanent(ctx, key, value)
			}
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}
