//go:build integration

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	fderrors "github.com/Tekstrive/fashionDeck/errors"
)

func TestIntegration_NATSStore(t *testing.T) {
	ctx := context.Background()

	natsContainer, natsURL := startNATSContainer(ctx, t)
	defer natsContainer.Terminate(ctx)

	store, err := NewNATS(ctx, natsURL)
	require.NoError(t, err)
	defer store.Close()

	// Miss before any write
	_, err = store.Get(ctx, PromptKey("never stored"))
	assert.ErrorIs(t, err, fderrors.ErrKeyNotFound)

	// TTL round trip
	key := PromptKey("korean minimal outfit")
	require.NoError(t, store.SetTTL(ctx, key, []byte(`{"aesthetic":"korean minimal"}`), time.Hour))
	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"aesthetic":"korean minimal"}`), got)

	// Envelope expiry is enforced on read
	store.clock = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, fderrors.ErrKeyNotFound)
	store.clock = time.Now

	// Permanent entries and prefix listing
	require.NoError(t, store.SetPermanent(ctx, AestheticKey("y2k"), []byte("v1")))
	require.NoError(t, store.SetPermanent(ctx, AestheticKey("grunge"), []byte("v2")))

	keys, err := store.Keys(ctx, AestheticPrefix())
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.Contains(t, keys, "aesthetic.vector.y2k")
	assert.Contains(t, keys, "aesthetic.vector.grunge")
}

func startNATSContainer(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	req := testcontainers.ContainerRequest{
		Image:        "nats:latest",
		ExposedPorts: []string{"4222/tcp"},
		WaitingFor:   wait.ForListeningPort("4222/tcp"),
		Cmd:          []string{"-js"},
	}

	natsContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := natsContainer.Host(ctx)
	require.NoError(t, err)

	port, err := natsContainer.MappedPort(ctx, "4222")
	require.NoError(t, err)

	return natsContainer, fmt.Sprintf("nats://%s:%s", host, port.Port())
}
