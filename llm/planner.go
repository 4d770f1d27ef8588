package llm

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Tekstrive/fashionDeck/cache"
	fderrors "github.com/Tekstrive/fashionDeck/errors"
	"github.com/Tekstrive/fashionDeck/metric"
	"github.com/Tekstrive/fashionDeck/types"
)

// Planning uses a higher temperature than parsing; plans should vary
// in style, not in shape.
const planTemperature = 0.8

// Planner produces outfit plans for parsed queries. The aesthetic to
// plan space is small and near-stationary, so successful plans are
// cached without expiry.
type Planner struct {
	client  *Client
	store   cache.Store
	flight  *cache.Flight
	metrics *metric.Core
	logger  *slog.Logger
}

// NewPlanner wires the planner. A nil store disables caching.
func NewPlanner(client *Client, store cache.Store, metrics *metric.Core, logger *slog.Logger) *Planner {
	if store == nil {
		store = cache.Disabled{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		client:  client,
		store:   store,
		flight:  cache.NewFlight(store),
		metrics: metrics,
		logger:  logger.With("component", "planner"),
	}
}

// Plan resolves a parsed query to an outfit plan. The returned bool
// reports whether the result came from cache. Plan never fails: any
// upstream or invariant failure degrades to the canned plan table.
func (p *Planner) Plan(ctx context.Context, q types.ParsedQuery) (types.OutfitPlan, bool, error) {
	key := cache.PlanKey(q.Aesthetic, q.Gender, q.Occasion, q.Categories)

	if raw, err := p.store.Get(ctx, key); err == nil {
		var plan types.OutfitPlan
		if err := json.Unmarshal(raw, &plan); err == nil {
			return plan, true, nil
		}
	}

	// ttl 0 stores successful plans permanently
	raw, err := p.flight.Do(ctx, key, 0, func(ctx context.Context) ([]byte, bool, error) {
		plan, fellBack := p.planUpstream(ctx, q)
		encoded, err := json.Marshal(plan)
		if err != nil {
			return nil, false, fderrors.WrapInvalid(err, "planner", "plan", "encode plan failed")
		}
		return encoded, fellBack, nil
	})
	if err != nil {
		return types.OutfitPlan{}, false, err
	}

	var plan types.OutfitPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return types.OutfitPlan{}, false, fderrors.WrapInvalid(err, "planner", "plan", "decode plan failed")
	}
	return plan, false, nil
}

func (p *Planner) planUpstream(ctx context.Context, q types.ParsedQuery) (types.OutfitPlan, bool) {
	request, err := json.Marshal(map[string]any{
		"aesthetic":  q.Aesthetic,
		"gender":     q.Gender,
		"occasion":   q.Occasion,
		"categories": q.Categories,
	})
	if err != nil {
		p.metrics.Fallback("planner")
		return fallbackPlan(q), true
	}

	content, err := p.client.CompleteJSON(ctx, planSystemPrompt, string(request), planTemperature)
	if err != nil {
		p.logger.Warn("completion call failed, using fallback plan", "aesthetic", q.Aesthetic, "error", err)
		p.metrics.Fallback("planner")
		return fallbackPlan(q), true
	}

	if err := validateJSON(planSchema, content); err != nil {
		p.logger.Warn("plan response failed validation, using fallback plan", "error", err)
		p.metrics.Fallback("planner")
		return fallbackPlan(q), true
	}

	var plan types.OutfitPlan
	if err := json.Unmarshal([]byte(content), &plan); err != nil {
		p.logger.Warn("plan response undecodable, using fallback plan", "error", err)
		p.metrics.Fallback("planner")
		return fallbackPlan(q), true
	}

	if err := plan.Validate(); err != nil {
		p.logger.Warn("plan violates item bound, using fallback plan",
			"items", len(plan.Items), "error", err)
		p.metrics.Fallback("planner")
		return fallbackPlan(q), true
	}

	p.logger.Info("planned outfit", "aesthetic", q.Aesthetic, "items", len(plan.Items))
	return plan, false
}
