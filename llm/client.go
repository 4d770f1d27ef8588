// Package llm mediates between callers and the completion API: prompt
// parsing, outfit planning and outfit scoring. Every operation has a
// deterministic local fallback, so callers never see an upstream
// failure from this package.
package llm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	fderrors "github.com/Tekstrive/fashionDeck/errors"
	"github.com/Tekstrive/fashionDeck/metric"
	"github.com/Tekstrive/fashionDeck/pkg/retry"
)

const (
	// DefaultModel is the completion model used for all operations.
	DefaultModel = "gpt-4o-mini"

	defaultMaxTokens  = 500
	completionTimeout = 30 * time.Second
	defaultRateLimit  = rate.Limit(5)
	defaultRateBurst  = 10
)

// ClientConfig configures the completion client.
type ClientConfig struct {
	APIKey    string
	BaseURL   string // optional, for compatible endpoints
	Model     string
	MaxTokens int

	// RequestsPerSecond caps outgoing completion calls. Zero means the
	// default of 5 rps.
	RequestsPerSecond float64

	Metrics *metric.Core
	Logger  *slog.Logger
}

// Client wraps the completion API with JSON output mode, rate limiting
// and the completion retry profile.
type Client struct {
	api       *openai.Client
	model     string
	maxTokens int
	limiter   *rate.Limiter
	policy    retry.Policy
	metrics   *metric.Core
	logger    *slog.Logger
}

// NewClient builds a completion client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fderrors.WrapInvalid(fderrors.ErrMissingConfig, "llm", "new", "api key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	limit := defaultRateLimit
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		api:       openai.NewClientWithConfig(clientCfg),
		model:     model,
		maxTokens: maxTokens,
		limiter:   rate.NewLimiter(limit, defaultRateBurst),
		policy:    retry.CompletionAPI(),
		metrics:   cfg.Metrics,
		logger:    logger.With("component", "llm"),
	}, nil
}

// Model returns the configured completion model identifier.
func (c *Client) Model() string { return c.model }

// CompleteJSON sends a system/user prompt pair with forced JSON output
// and returns the raw response text. The response is untrusted; callers
// validate it against their schema.
func (c *Client) CompleteJSON(ctx context.Context, system, user string, temperature float32) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fderrors.WrapTransient(err, "llm", "complete", "rate limiter wait failed")
	}

	start := time.Now()
	content, err := retry.DoWithResult(ctx, c.policy, func() (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, completionTimeout)
		defer cancel()

		resp, err := c.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model:       c.model,
			MaxTokens:   c.maxTokens,
			Temperature: temperature,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
		})
		if err != nil {
			return "", classifyAPIError(err)
		}
		if len(resp.Choices) == 0 {
			return "", retry.NonRetryable(fderrors.WrapInvalid(fderrors.ErrMalformedResponse,
				"llm", "complete", "response has no choices"))
		}
		return resp.Choices[0].Message.Content, nil
	})
	c.metrics.ObserveUpstream("completion", "complete", start, err)
	return content, err
}

// classifyAPIError maps completion API failures onto the error
// taxonomy so the retry layer can tell transient trouble from caller
// mistakes.
func classifyAPIError(err error) error {
	status := 0
	message := err.Error()

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		message = apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusTooManyRequests:
		return fderrors.WrapTransient(fderrors.ErrRateLimited, "llm", "complete", message)
	case status >= 500:
		return fderrors.WrapTransient(fderrors.ErrUpstreamUnavailable, "llm", "complete", message)
	case status >= 400:
		return retry.NonRetryable(fderrors.WrapInvalid(fderrors.ErrInvalidData, "llm", "complete", message))
	}
	return fderrors.WrapTransient(err, "llm", "complete", "completion call failed")
}
