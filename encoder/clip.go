package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	fderrors "github.com/Tekstrive/fashionDeck/errors"
	"github.com/Tekstrive/fashionDeck/metric"
	"github.com/Tekstrive/fashionDeck/pkg/retry"
	"github.com/Tekstrive/fashionDeck/pkg/vector"
)

const (
	defaultFetchConcurrency = 4

	singleFetchTimeout = 10 * time.Second
	batchFetchTimeout  = 20 * time.Second

	maxImageBytes = 16 << 20
)

// Config configures the CLIP serving client.
type Config struct {
	// BaseURL of the OpenAI-compatible CLIP serving endpoint.
	BaseURL string

	// Model identifier, e.g. "clip-vit-base-patch32".
	Model string

	// APIKey is optional for self-hosted servers.
	APIKey string

	// FetchConcurrency bounds concurrent image downloads per batch.
	FetchConcurrency int

	Metrics *metric.Core
	Logger  *slog.Logger
}

// CLIP embeds text through the serving endpoint's embeddings API and
// images by downloading them and posting the bytes to the endpoint's
// image route.
type CLIP struct {
	client  *openai.Client
	http    *http.Client
	baseURL string
	model   string

	fetchConcurrency int
	policy           retry.Policy
	metrics          *metric.Core
	logger           *slog.Logger

	mu     sync.Mutex
	loaded bool
}

// NewCLIP builds the client. The serving endpoint is not contacted
// until the first encode call.
func NewCLIP(cfg Config) (*CLIP, error) {
	if cfg.BaseURL == "" {
		return nil, fderrors.WrapInvalid(fderrors.ErrInvalidConfig, "encoder", "new", "base url is required")
	}
	if cfg.Model == "" {
		return nil, fderrors.WrapInvalid(fderrors.ErrInvalidConfig, "encoder", "new", "model is required")
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "unused"
	}
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = cfg.BaseURL

	concurrency := cfg.FetchConcurrency
	if concurrency <= 0 {
		concurrency = defaultFetchConcurrency
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Timeouts ride on the per-call contexts; a client-level Timeout
	// would cap the longer batch fetch window too.
	return &CLIP{
		client:           openai.NewClientWithConfig(clientCfg),
		http:             &http.Client{},
		baseURL:          cfg.BaseURL,
		model:            cfg.Model,
		fetchConcurrency: concurrency,
		policy:           retry.ExternalAPI(),
		metrics:          cfg.Metrics,
		logger:           logger.With("component", "encoder"),
	}, nil
}

// Ready loads the model if it is not loaded yet. The serving endpoint
// pulls weights on its first request, so the probe is a throwaway text
// embed.
func (c *CLIP) Ready(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return nil
	}

	_, err := retry.DoWithResult(ctx, c.policy, func() ([]float32, error) {
		return c.embedText(ctx, "warmup")
	})
	if err != nil {
		return fderrors.WrapTransient(fderrors.ErrModelUnavailable, "encoder", "load",
			fmt.Sprintf("model %s not available: %v", c.model, err))
	}

	c.loaded = true
	c.logger.Info("encoder model loaded", "model", c.model)
	return nil
}

func (c *CLIP) EncodeText(ctx context.Context, text string) (vector.Embedding, error) {
	if err := c.Ready(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := retry.DoWithResult(ctx, c.policy, func() ([]float32, error) {
		return c.embedText(ctx, text)
	})
	c.metrics.ObserveUpstream("clip", "encode_text", start, err)
	if err != nil {
		return nil, fderrors.WrapTransient(err, "encoder", "encode_text", "text embed failed")
	}

	return c.finish(raw)
}

func (c *CLIP) EncodeImage(ctx context.Context, url string) (vector.Embedding, error) {
	if err := c.Ready(ctx); err != nil {
		return nil, err
	}
	return c.encodeImage(ctx, url, singleFetchTimeout)
}

func (c *CLIP) encodeImage(ctx context.Context, url string, fetchTimeout time.Duration) (vector.Embedding, error) {
	img, err := c.fetchImage(ctx, url, fetchTimeout)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := retry.DoWithResult(ctx, c.policy, func() ([]float32, error) {
		return c.embedImage(ctx, img)
	})
	c.metrics.ObserveUpstream("clip", "encode_image", start, err)
	if err != nil {
		return nil, fderrors.WrapTransient(err, "encoder", "encode_image", "image embed failed")
	}

	return c.finish(raw)
}

// EncodeBatch embeds texts and images together. Image downloads run
// concurrently bounded by the configured limit. Per-slot errors are
// recorded in the result rather than aborting the batch; only context
// cancellation fails the call as a whole.
func (c *CLIP) EncodeBatch(ctx context.Context, texts, imageURLs []string) ([]BatchItem, []BatchItem, error) {
	if err := c.Ready(ctx); err != nil {
		return nil, nil, err
	}

	textResults := make([]BatchItem, len(texts))
	imageResults := make([]BatchItem, len(imageURLs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fetchConcurrency)

	for i, url := range imageURLs {
		i, url := i, url
		g.Go(func() error {
			emb, err := c.encodeImage(gctx, url, batchFetchTimeout)
			if err != nil {
				c.logger.Warn("batch image slot failed", "url", url, "error", err)
				imageResults[i] = BatchItem{Err: err}
				return nil
			}
			imageResults[i] = BatchItem{Vector: emb}
			return nil
		})
	}

	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			emb, err := c.EncodeText(gctx, text)
			if err != nil {
				c.logger.Warn("batch text slot failed", "error", err)
				textResults[i] = BatchItem{Err: err}
				return nil
			}
			textResults[i] = BatchItem{Vector: emb}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return textResults, imageResults, nil
}

func (c *CLIP) Close() error { return nil }

func (c *CLIP) embedText(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != 1 {
		return nil, retry.NonRetryable(fderrors.WrapInvalid(fderrors.ErrMalformedResponse,
			"encoder", "encode_text", fmt.Sprintf("expected 1 embedding, got %d", len(resp.Data))))
	}
	return resp.Data[0].Embedding, nil
}

type imageEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (c *CLIP) embedImage(ctx context.Context, img []byte) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/embeddings/image", bytes.NewReader(img))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("image embed returned %d: %s", resp.StatusCode, body)
	}

	var decoded imageEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, retry.NonRetryable(fderrors.WrapInvalid(fderrors.ErrMalformedResponse,
			"encoder", "encode_image", "decode embed response failed"))
	}
	return decoded.Embedding, nil
}

func (c *CLIP) fetchImage(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fderrors.WrapInvalid(err, "encoder", "fetch_image", "bad image url")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.ObserveUpstream("image_host", "fetch", start, err)
	if err != nil {
		return nil, fderrors.WrapTransient(err, "encoder", "fetch_image", "image fetch failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fderrors.WrapTransient(fderrors.ErrUpstreamUnavailable, "encoder", "fetch_image",
			fmt.Sprintf("image host returned %d for %s", resp.StatusCode, url))
	}

	img, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fderrors.WrapTransient(err, "encoder", "fetch_image", "read image body failed")
	}
	if len(img) == 0 {
		return nil, fderrors.WrapInvalid(fderrors.ErrInvalidData, "encoder", "fetch_image", "empty image body")
	}
	return img, nil
}

// finish validates dimensionality and normalizes. Callers never see an
// un-normalized vector.
func (c *CLIP) finish(raw []float32) (vector.Embedding, error) {
	emb := vector.Embedding(raw)
	if err := emb.Validate(); err != nil {
		return nil, fderrors.WrapInvalid(err, "encoder", "encode", "unexpected embedding shape")
	}
	return emb.Normalized(), nil
}
