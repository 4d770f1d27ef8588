package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Tekstrive/fashionDeck/cache"
	fderrors "github.com/Tekstrive/fashionDeck/errors"
	"github.com/Tekstrive/fashionDeck/metric"
	"github.com/Tekstrive/fashionDeck/types"
)

// DefaultParseTTL bounds how long an API-derived parse stays cached.
const DefaultParseTTL = time.Hour

const parseTemperature = 0.7

// Parser turns natural language shopping prompts into structured
// queries. API results are cached; the rule-based fallback result is
// returned uncached so a later request can retry the API.
type Parser struct {
	client  *Client
	store   cache.Store
	flight  *cache.Flight
	ttl     time.Duration
	metrics *metric.Core
	logger  *slog.Logger
}

// NewParser wires the parser. A nil store disables caching.
func NewParser(client *Client, store cache.Store, metrics *metric.Core, logger *slog.Logger) *Parser {
	if store == nil {
		store = cache.Disabled{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		client:  client,
		store:   store,
		flight:  cache.NewFlight(store),
		ttl:     DefaultParseTTL,
		metrics: metrics,
		logger:  logger.With("component", "parser"),
	}
}

// Parse resolves a prompt to a ParsedQuery. The returned bool reports
// whether the result came from cache. Parse never fails: any upstream
// or contract failure degrades to the deterministic extractor.
func (p *Parser) Parse(ctx context.Context, prompt string) (types.ParsedQuery, bool, error) {
	key := cache.PromptKey(prompt)

	if raw, err := p.store.Get(ctx, key); err == nil {
		var q types.ParsedQuery
		if err := json.Unmarshal(raw, &q); err == nil {
			return q, true, nil
		}
		// Undecodable entry; recompute below.
	}

	raw, err := p.flight.Do(ctx, key, p.ttl, func(ctx context.Context) ([]byte, bool, error) {
		q, fellBack := p.parseUpstream(ctx, prompt)
		encoded, err := json.Marshal(q)
		if err != nil {
			return nil, false, fderrors.WrapInvalid(err, "parser", "parse", "encode query failed")
		}
		return encoded, fellBack, nil
	})
	if err != nil {
		return types.ParsedQuery{}, false, err
	}

	var q types.ParsedQuery
	if err := json.Unmarshal(raw, &q); err != nil {
		return types.ParsedQuery{}, false, fderrors.WrapInvalid(err, "parser", "parse", "decode query failed")
	}
	return q, false, nil
}

// parseUpstream runs the cache-miss path: completion call, schema
// validation, domain validation. Any failure yields the fallback
// extractor's result with fellBack=true.
func (p *Parser) parseUpstream(ctx context.Context, prompt string) (types.ParsedQuery, bool) {
	content, err := p.client.CompleteJSON(ctx, parseSystemPrompt, prompt, parseTemperature)
	if err != nil {
		p.logger.Warn("completion call failed, using fallback extraction", "error", err)
		p.metrics.Fallback("parser")
		return fallbackParse(prompt), true
	}

	if err := validateJSON(parseSchema, content); err != nil {
		p.logger.Warn("completion response failed validation, using fallback extraction", "error", err)
		p.metrics.Fallback("parser")
		return fallbackParse(prompt), true
	}

	var q types.ParsedQuery
	if err := json.Unmarshal([]byte(content), &q); err != nil {
		p.logger.Warn("completion response undecodable, using fallback extraction", "error", err)
		p.metrics.Fallback("parser")
		return fallbackParse(prompt), true
	}

	q.Normalize()
	if err := q.Validate(); err != nil {
		p.logger.Warn("parsed query invalid, using fallback extraction", "error", err)
		p.metrics.Fallback("parser")
		return fallbackParse(prompt), true
	}

	p.logger.Info("parsed prompt", "aesthetic", q.Aesthetic)
	return q, false
}
