package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Tekstrive/fashionDeck/metric"
	"github.com/Tekstrive/fashionDeck/types"
)

const (
	scoreTemperature = 0.3

	// NeutralScore is returned for every outfit when scoring fails.
	NeutralScore = 5.0

	minScore = 1.0
	maxScore = 10.0
)

// Scorer rates outfit candidates against an aesthetic. Results are
// request-specific and never cached.
type Scorer struct {
	client  *Client
	metrics *metric.Core
	logger  *slog.Logger
}

// NewScorer wires the scorer.
func NewScorer(client *Client, metrics *metric.Core, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		client:  client,
		metrics: metrics,
		logger:  logger.With("component", "scorer"),
	}
}

// Score returns one score per outfit, each clamped to [1,10], in the
// given order. Score never fails: on any upstream or contract failure
// every outfit gets the neutral score.
func (s *Scorer) Score(ctx context.Context, aesthetic string, outfits []types.OutfitCandidate) []float64 {
	if len(outfits) == 0 {
		return nil
	}

	scores, err := s.scoreUpstream(ctx, aesthetic, outfits)
	if err != nil {
		s.logger.Warn("scoring failed, returning neutral scores",
			"aesthetic", aesthetic, "outfits", len(outfits), "error", err)
		s.metrics.Fallback("scorer")
		scores = make([]float64, len(outfits))
		for i := range scores {
			scores[i] = NeutralScore
		}
	}
	return scores
}

func (s *Scorer) scoreUpstream(ctx context.Context, aesthetic string, outfits []types.OutfitCandidate) ([]float64, error) {
	type outfitPayload struct {
		ID    int      `json:"id"`
		Items []string `json:"items"`
	}

	payload := make([]outfitPayload, len(outfits))
	for i, outfit := range outfits {
		items := make([]string, len(outfit.Items))
		for j, item := range outfit.Items {
			items[j] = fmt.Sprintf("%s: %s (%.0f)", item.Category, item.Title, item.Price)
		}
		payload[i] = outfitPayload{ID: i + 1, Items: items}
	}

	request, err := json.Marshal(map[string]any{
		"aesthetic": aesthetic,
		"outfits":   payload,
	})
	if err != nil {
		return nil, err
	}

	content, err := s.client.CompleteJSON(ctx, scoreSystemPrompt, string(request), scoreTemperature)
	if err != nil {
		return nil, err
	}
	if err := validateJSON(scoreSchema, content); err != nil {
		return nil, err
	}

	var decoded struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.Unmarshal([]byte(content), &decoded); err != nil {
		return nil, err
	}
	if len(decoded.Scores) != len(outfits) {
		return nil, fmt.Errorf("expected %d scores, got %d", len(outfits), len(decoded.Scores))
	}

	scores := make([]float64, len(decoded.Scores))
	for i, v := range decoded.Scores {
		scores[i] = min(maxScore, max(minScore, v))
	}
	return scores, nil
}
