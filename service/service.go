// Package service bundles the core operations behind one facade. A
// routing layer embeds the facade and owns HTTP concerns; everything
// here is a plain synchronous call returning a payload or a classified
// error.
package service

import (
	"context"
	"log/slog"

	"github.com/Tekstrive/fashionDeck/aesthetic"
	"github.com/Tekstrive/fashionDeck/encoder"
	fderrors "github.com/Tekstrive/fashionDeck/errors"
	"github.com/Tekstrive/fashionDeck/llm"
	"github.com/Tekstrive/fashionDeck/pipeline"
	"github.com/Tekstrive/fashionDeck/pkg/vector"
	"github.com/Tekstrive/fashionDeck/similarity"
	"github.com/Tekstrive/fashionDeck/types"
)

// Deps are the components the facade delegates to. All fields are
// required except Aesthetics and Pipeline, which may be nil when the
// deployment does not run those jobs.
type Deps struct {
	Parser     *llm.Parser
	Planner    *llm.Planner
	Scorer     *llm.Scorer
	Encoder    encoder.Encoder
	Engine     *similarity.Engine
	Aesthetics *aesthetic.Service
	Pipeline   *pipeline.Pipeline
	Logger     *slog.Logger
}

// Service is the produced interface of the mediation core.
type Service struct {
	deps   Deps
	logger *slog.Logger
}

// New wires the facade.
func New(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{deps: deps, logger: logger.With("component", "service")}
}

// ParseResult is a parsed prompt plus its cache provenance.
type ParseResult struct {
	Query     types.ParsedQuery `json:"query"`
	FromCache bool              `json:"from_cache"`
}

// ParsePrompt turns a natural language prompt into a structured query.
func (s *Service) ParsePrompt(ctx context.Context, prompt string) (ParseResult, error) {
	if prompt == "" {
		return ParseResult{}, fderrors.WrapInvalid(fderrors.ErrInvalidQuery,
			"service", "parse", "prompt must not be empty")
	}
	q, fromCache, err := s.deps.Parser.Parse(ctx, prompt)
	if err != nil {
		return ParseResult{}, err
	}
	return ParseResult{Query: q, FromCache: fromCache}, nil
}

// PlanResult is an outfit plan plus its cache provenance.
type PlanResult struct {
	Plan      types.OutfitPlan `json:"plan"`
	FromCache bool             `json:"from_cache"`
}

// PlanOutfit produces an outfit plan for a parsed query.
func (s *Service) PlanOutfit(ctx context.Context, q types.ParsedQuery) (PlanResult, error) {
	if err := q.Validate(); err != nil {
		return PlanResult{}, err
	}
	plan, fromCache, err := s.deps.Planner.Plan(ctx, q)
	if err != nil {
		return PlanResult{}, err
	}
	return PlanResult{Plan: plan, FromCache: fromCache}, nil
}

// ScoreOutfits rates outfit candidates against an aesthetic. One score
// per candidate, each in [1,10]; scoring never fails.
func (s *Service) ScoreOutfits(ctx context.Context, aestheticLabel string, outfits []types.OutfitCandidate) []float64 {
	return s.deps.Scorer.Score(ctx, aestheticLabel, outfits)
}

// Search runs a similarity search over the catalog.
func (s *Service) Search(ctx context.Context, req similarity.Request) ([]types.ProductMatch, error) {
	return s.deps.Engine.Search(ctx, req)
}

// EmbedText embeds one text string.
func (s *Service) EmbedText(ctx context.Context, text string) (vector.Embedding, error) {
	if text == "" {
		return nil, fderrors.WrapInvalid(fderrors.ErrInvalidQuery,
			"service", "embed", "text must not be empty")
	}
	return s.deps.Encoder.EncodeText(ctx, text)
}

// EmbedImage embeds the image at url.
func (s *Service) EmbedImage(ctx context.Context, url string) (vector.Embedding, error) {
	if url == "" {
		return nil, fderrors.WrapInvalid(fderrors.ErrInvalidQuery,
			"service", "embed", "image url must not be empty")
	}
	return s.deps.Encoder.EncodeImage(ctx, url)
}

// Coherence scores how well a set of embeddings fits together.
func (s *Service) Coherence(embeddings []vector.Embedding) float64 {
	return similarity.Coherence(embeddings)
}

// NearestAesthetic classifies a prompt against the precomputed labels.
// The empty string means no reference vectors exist yet.
func (s *Service) NearestAesthetic(ctx context.Context, prompt string) (string, float64, error) {
	if s.deps.Aesthetics == nil {
		return "", 0, nil
	}
	return s.deps.Aesthetics.Nearest(ctx, prompt)
}

// ProcessProduct encodes and persists embeddings for one product.
func (s *Service) ProcessProduct(ctx context.Context, product types.Product) error {
	if s.deps.Pipeline == nil {
		return fderrors.WrapInvalid(fderrors.ErrInvalidConfig,
			"service", "process", "pipeline not configured")
	}
	return s.deps.Pipeline.ProcessProduct(ctx, product)
}
