//go:build integration

package natsclient

import (
	"context"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestIntegration_ConnectAndKeyValue(t *testing.T) {
	ctx := context.Background()

	natsContainer, natsURL := startNATSContainer(ctx, t)
	defer natsContainer.Terminate(ctx)

	client, err := New(natsURL, WithName("natsclient-test"))
	require.NoError(t, err)
	defer client.Close(ctx)

	require.NoError(t, client.Connect(ctx))
	assert.True(t, client.IsConnected())

	cfg := jetstream.KeyValueConfig{Bucket: "CLIENT_TEST", History: 1}
	bucket, err := client.KeyValue(ctx, cfg)
	require.NoError(t, err)

	_, err = bucket.Put(ctx, "k", []byte("v"))
	require.NoError(t, err)
	entry, err := bucket.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), entry.Value())

	// Binding again lands on the same bucket instead of failing.
	again, err := client.KeyValue(ctx, cfg)
	require.NoError(t, err)
	entry, err = again.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), entry.Value())

	require.NoError(t, client.Close(ctx))
	assert.False(t, client.IsConnected())
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
