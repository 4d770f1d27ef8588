package cache

import (
	"context"
	"time"

	fderrors "github.com/Tekstrive/fashionDeck/errors"
)

// Disabled is a Store that never holds anything. It keeps the cache
// wiring intact when caching is switched off.
type Disabled struct{}

func (Disabled) Get(context.Context, string) ([]byte, error) {
	return nil, fderrors.ErrKeyNotFound
}

func (Disabled) SetTTL(context.Context, string, []byte, time.Duration) error { return nil }

func (Disabled) SetPermanent(context.Context, string, []byte) error { return nil }

func (Disabled) Keys(context.Context, string) ([]string, error) { return nil, nil }

func (Disabled) Close() error { return nil }
