package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fderrors "github.com/Tekstrive/fashionDeck/errors"
)

func TestPromptKey_Normalization(t *testing.T) {
	assert.Equal(t, PromptKey("korean minimal"), PromptKey("  Korean Minimal "))
	assert.NotEqual(t, PromptKey("korean minimal"), PromptKey("korean maximal"))
	assert.True(t, len(PromptKey("x")) > len("parse."))
}

func TestPlanKey_CategoryOrderIndependent(t *testing.T) {
	a := PlanKey("streetwear", "male", "party", []string{"top", "bottom", "shoes"})
	b := PlanKey("streetwear", "male", "party", []string{"shoes", "top", "bottom", "top"})
	assert.Equal(t, a, b)

	c := PlanKey("streetwear", "male", "party", []string{"top", "bottom"})
	assert.NotEqual(t, a, c)

	d := PlanKey("streetwear", "female", "party", []string{"top", "bottom", "shoes"})
	assert.NotEqual(t, a, d)
}

func TestAestheticKey(t *testing.T) {
	assert.Equal(t, "aesthetic.vector.korean_minimal", AestheticKey(" Korean Minimal "))
	assert.Equal(t, "aesthetic.vector.y2k", AestheticKey("y2k"))
}

func TestMemory_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	now := time.Now()
	var mu sync.Mutex
	m.clock = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	require.NoError(t, m.SetTTL(ctx, "parse.abc", []byte("v1"), time.Hour))
	require.NoError(t, m.SetPermanent(ctx, "aesthetic.vector.y2k", []byte("v2")))

	got, err := m.Get(ctx, "parse.abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	mu.Lock()
	now = now.Add(2 * time.Hour)
	mu.Unlock()

	_, err = m.Get(ctx, "parse.abc")
	assert.ErrorIs(t, err, fderrors.ErrKeyNotFound)

	// Permanent entries survive the clock
	got, err = m.Get(ctx, "aesthetic.vector.y2k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestMemory_RejectsNonPositiveTTL(t *testing.T) {
	m := NewMemory()
	err := m.SetTTL(context.Background(), "k", []byte("v"), 0)
	assert.Error(t, err)
	assert.True(t, fderrors.IsInvalid(err))
}

func TestMemory_KeysPrefix(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.SetPermanent(ctx, "aesthetic.vector.y2k", []byte("a")))
	require.NoError(t, m.SetPermanent(ctx, "aesthetic.vector.grunge", []byte("b")))
	require.NoError(t, m.SetPermanent(ctx, "parse.abc", []byte("c")))

	keys, err := m.Keys(ctx, AestheticPrefix())
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.Contains(t, keys, "aesthetic.vector.y2k")
	assert.Contains(t, keys, "aesthetic.vector.grunge")
}

func TestDisabled_AlwaysMisses(t *testing.T) {
	ctx := context.Background()
	var d Disabled
	require.NoError(t, d.SetPermanent(ctx, "k", []byte("v")))
	_, err := d.Get(ctx, "k")
	assert.ErrorIs(t, err, fderrors.ErrKeyNotFound)
}

func TestFlight_DeduplicatesConcurrentComputes(t *testing.T) {
	ctx := context.Background()
	f := NewFlight(NewMemory())

	var computes atomic.Int32
	release := make(chan struct{})

	compute := func(context.Context) ([]byte, bool, error) {
		computes.Add(1)
		<-release
		return []byte("computed"), false, nil
	}

	var wg sync.WaitGroup
	results := make([][]byte, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := f.Do(ctx, "parse.same", time.Hour, compute)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), computes.Load())
	for _, v := range results {
		assert.Equal(t, []byte("computed"), v)
	}
}

func TestFlight_DoesNotCacheFallbacks(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	f := NewFlight(store)

	v, err := f.Do(ctx, "parse.fb", time.Hour, func(context.Context) ([]byte, bool, error) {
		return []byte("fallback"), true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("fallback"), v)

	_, err = store.Get(ctx, "parse.fb")
	assert.ErrorIs(t, err, fderrors.ErrKeyNotFound)

	// A later successful compute is cached
	v, err = f.Do(ctx, "parse.fb", time.Hour, func(context.Context) ([]byte, bool, error) {
		return []byte("real"), false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("real"), v)

	got, err := store.Get(ctx, "parse.fb")
	require.NoError(t, err)
	assert.Equal(t, []byte("real"), got)
}

func TestFlight_ServesFromCache(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	require.NoError(t, store.SetPermanent(ctx, "plan.x", []byte("cached")))

	f := NewFlight(store)
	v, err := f.Do(ctx, "plan.x", 0, func(context.Context) ([]byte, bool, error) {
		t.Fatal("compute should not run on a hit")
		return nil, false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("cached"), v)
}

// faultyStore fails every read so flight behavior under cache trouble
// can be observed.
type faultyStore struct {
	*Memory
}

func (f *faultyStore) Get(context.Context, string) ([]byte, error) {
	return nil, fderrors.WrapTransient(fderrors.ErrCacheUnavailable, "cache", "get", "kv get failed")
}

func TestFlight_CacheTroubleFallsThroughToCompute(t *testing.T) {
	ctx := context.Background()
	f := NewFlight(&faultyStore{Memory: NewMemory()})

	v, err := f.Do(ctx, "parse.down", time.Hour, func(context.Context) ([]byte, bool, error) {
		return []byte("computed"), false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("computed"), v)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	now := time.Now()

	raw, err := sealEnvelope([]byte("payload"), time.Minute, now)
	require.NoError(t, err)

	env, err := openEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), env.Payload)
	assert.False(t, env.expired(now))
	assert.True(t, env.expired(now.Add(2*time.Minute)))

	raw, err = sealEnvelope([]byte("forever"), 0, now)
	require.NoError(t, err)
	env, err = openEnvelope(raw)
	require.NoError(t, err)
	assert.False(t, env.expired(now.Add(100*365*24*time.Hour)))
}
