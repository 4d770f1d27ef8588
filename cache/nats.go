package cache

import (
	"context"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	fderrors "github.com/Tekstrive/fashionDeck/errors"
	"github.com/Tekstrive/fashionDeck/natsclient"
)

// Bucket is the JetStream KV bucket backing the shared cache.
const Bucket = "STYLE_CACHE"

const opTimeout = 5 * time.Second

// NATS is a Store backed by a JetStream KV bucket. TTLs are enforced
// through the stored envelope since JetStream KV has no per-key
// expiry.
type NATS struct {
	client *natsclient.Client
	bucket jetstream.KeyValue
	clock  func() time.Time
}

// NewNATS connects to url and creates or binds the cache bucket.
func NewNATS(ctx context.Context, url string) (*NATS, error) {
	client, err := natsclient.New(url, natsclient.WithName("fashiondeck-cache"))
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}

	bucket, err := client.KeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      Bucket,
		Description: "parsed queries, outfit plans and aesthetic vectors",
		History:     1,
	})
	if err != nil {
		_ = client.Close(ctx)
		return nil, err
	}

	return &NATS{client: client, bucket: bucket, clock: time.Now}, nil
}

func (n *NATS) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	entry, err := n.bucket.Get(ctx, key)
	if err != nil {
		if fderrors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, fderrors.ErrKeyNotFound
		}
		return nil, fderrors.WrapTransient(err, "cache", "get", "kv get failed")
	}

	env, err := openEnvelope(entry.Value())
	if err != nil {
		// Corrupt entry; treat as a miss so the caller recomputes.
		_ = n.bucket.Delete(ctx, key)
		return nil, fderrors.ErrKeyNotFound
	}
	if env.expired(n.clock()) {
		_ = n.bucket.Delete(ctx, key)
		return nil, fderrors.ErrKeyNotFound
	}
	return env.Payload, nil
}

func (n *NATS) SetTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fderrors.WrapInvalid(fderrors.ErrInvalidData, "cache", "set", "ttl must be positive")
	}
	return n.put(ctx, key, value, ttl)
}

func (n *NATS) SetPermanent(ctx context.Context, key string, value []byte) error {
	return n.put(ctx, key, value, 0)
}

func (n *NATS) put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	raw, err := sealEnvelope(value, ttl, n.clock())
	if err != nil {
		return fderrors.WrapInvalid(err, "cache", "set", "encode entry failed")
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := n.bucket.Put(ctx, key, raw); err != nil {
		return fderrors.WrapTransient(err, "cache", "set", "kv put failed")
	}
	return nil
}

func (n *NATS) Keys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	lister, err := n.bucket.ListKeys(ctx)
	if err != nil {
		return nil, fderrors.WrapTransient(err, "cache", "keys", "kv list failed")
	}
	defer func() { _ = lister.Stop() }()

	var keys []string
	for key := range lister.Keys() {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (n *NATS) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return n.client.Close(ctx)
}
