package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	fderrors "github.com/Tekstrive/fashionDeck/errors"
)

// Memory is an in-process Store. It backs tests and single-node
// deployments where an external bucket is not configured.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]envelope
	clock   func() time.Time
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]envelope),
		clock:   time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	env, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, fderrors.ErrKeyNotFound
	}
	if env.expired(m.clock()) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, fderrors.ErrKeyNotFound
	}
	return env.Payload, nil
}

func (m *Memory) SetTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fderrors.WrapInvalid(fderrors.ErrInvalidData, "cache", "set", "ttl must be positive")
	}
	m.set(key, value, ttl)
	return nil
}

func (m *Memory) SetPermanent(_ context.Context, key string, value []byte) error {
	m.set(key, value, 0)
	return nil
}

func (m *Memory) set(key string, value []byte, ttl time.Duration) {
	env := envelope{Payload: append([]byte(nil), value...)}
	if ttl > 0 {
		env.ExpiresAt = m.clock().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = env
	m.mu.Unlock()
}

func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	now := m.clock()
	m.mu.RLock()
	keys := make([]string, 0, len(m.entries))
	for k, env := range m.entries {
		if env.expired(now) {
			continue
		}
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()
	return keys, nil
}

func (m *Memory) Close() error { return nil }
