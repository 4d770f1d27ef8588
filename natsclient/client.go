// Package natsclient manages the NATS connection and JetStream handle
// shared by the caching layer. It owns reconnect behavior and bucket
// provisioning so callers only deal with a jetstream.KeyValue.
package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	fderrors "github.com/Tekstrive/fashionDeck/errors"
)

var (
	ErrNotConnected = stderrors.New("not connected to NATS")
)

// Client wraps a NATS connection with JetStream access.
type Client struct {
	url    string
	name   string
	logger *slog.Logger

	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration

	mu   sync.RWMutex
	conn *nats.Conn
	js   jetstream.JetStream

	reconnects atomic.Int32
	closed     atomic.Bool
}

// New builds a client for url. Connect must be called before any
// JetStream operation.
func New(url string, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, fderrors.WrapInvalid(fderrors.ErrMissingConfig,
			"natsclient", "new", "url is required")
	}

	c := &Client{
		url:           url,
		name:          "fashiondeck",
		logger:        slog.Default(),
		maxReconnects: -1,
		reconnectWait: 2 * time.Second,
		timeout:       5 * time.Second,
		drainTimeout:  10 * time.Second,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fderrors.WrapInvalid(err, "natsclient", "new", "apply option")
		}
	}
	c.logger = c.logger.With("component", "natsclient")
	return c, nil
}

// URL returns the configured server URL.
func (c *Client) URL() string { return c.url }

// Reconnects returns how often the connection was re-established.
func (c *Client) Reconnects() int32 { return c.reconnects.Load() }

// IsConnected reports whether the underlying connection is up.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Connect establishes the connection and initializes JetStream. It
// respects ctx for the initial dial; once connected the client
// reconnects on its own.
func (c *Client) Connect(ctx context.Context) error {
	c.logger.Info("connecting to NATS", "url", c.url)

	opts := []nats.Option{
		nats.Name(c.name),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.Timeout(c.timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				c.logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			c.reconnects.Add(1)
			c.logger.Info("NATS reconnected", "url", conn.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if !c.closed.Load() {
				c.logger.Warn("NATS connection closed unexpectedly")
			}
		}),
	}

	done := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(c.url, opts...)
		if err != nil {
			done <- err
			return
		}
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			done <- err
			return
		}
		c.mu.Lock()
		c.conn = conn
		c.js = js
		c.mu.Unlock()
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			return fderrors.WrapTransient(err, "natsclient", "connect", "establish connection")
		}
	case <-ctx.Done():
		return fderrors.WrapTransient(ctx.Err(), "natsclient", "connect", "connection cancelled")
	}

	c.logger.Info("connected to NATS", "url", c.url)
	return nil
}

// JetStream returns the JetStream handle.
func (c *Client) JetStream() (jetstream.JetStream, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.js == nil {
		return nil, ErrNotConnected
	}
	return c.js, nil
}

// KeyValue binds to the bucket named in cfg, creating it when absent.
// Two processes racing on creation both end up bound to the same
// bucket.
func (c *Client) KeyValue(ctx context.Context, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}

	bucket, err := js.KeyValue(ctx, cfg.Bucket)
	if err == nil {
		return bucket, nil
	}

	bucket, err = js.CreateKeyValue(ctx, cfg)
	if err != nil {
		if isAlreadyExists(err) {
			bucket, err = js.KeyValue(ctx, cfg.Bucket)
			if err != nil {
				return nil, fderrors.Wrap(err, "natsclient", "keyvalue",
					fmt.Sprintf("bind existing bucket %s", cfg.Bucket))
			}
			return bucket, nil
		}
		return nil, fderrors.WrapTransient(err, "natsclient", "keyvalue",
			fmt.Sprintf("create bucket %s", cfg.Bucket))
	}

	c.logger.Info("created KV bucket", "bucket", cfg.Bucket)
	return bucket, nil
}

// Close drains and closes the connection. Safe to call more than once.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}

	drainTimeout := c.drainTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < drainTimeout {
			drainTimeout = remaining
		}
	}

	done := make(chan error, 1)
	go func() { done <- c.conn.Drain() }()

	var drainErr error
	select {
	case err := <-done:
		drainErr = err
	case <-time.After(drainTimeout):
		drainErr = fmt.Errorf("drain timeout after %v", drainTimeout)
	case <-ctx.Done():
		drainErr = ctx.Err()
	}

	c.conn.Close()
	c.conn = nil
	c.js = nil

	if drainErr != nil {
		return fderrors.Wrap(drainErr, "natsclient", "close", "drain connection")
	}
	return nil
}

func isAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	if fderrors.Is(err, jetstream.ErrBucketExists) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "already in use")
}
