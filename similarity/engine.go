// Package similarity ranks products against a query embedding and
// scores how well a set of embeddings hangs together as one outfit.
package similarity

import (
	"context"
	"log/slog"
	"math"

	fderrors "github.com/Tekstrive/fashionDeck/errors"
	"github.com/Tekstrive/fashionDeck/pkg/vector"
	"github.com/Tekstrive/fashionDeck/storage/productstore"
	"github.com/Tekstrive/fashionDeck/types"
)

const (
	// DefaultLimit is used when a search request carries no limit.
	DefaultLimit = 10

	// MaxLimit caps a search request's limit.
	MaxLimit = 50

	// coherenceThreshold is the pairwise-similarity level below which
	// an outfit is penalized superlinearly. Cohesive fashion items
	// cluster above ~0.7 in this embedding space.
	coherenceThreshold = 0.6
)

// TextImageEncoder is the slice of the encoder the engine needs.
type TextImageEncoder interface {
	EncodeText(ctx context.Context, text string) (vector.Embedding, error)
	EncodeImage(ctx context.Context, url string) (vector.Embedding, error)
}

// ProductSearcher is the slice of the product store the engine needs.
type ProductSearcher interface {
	SearchSimilar(ctx context.Context, q productstore.SearchQuery) ([]types.ProductMatch, error)
}

// Request describes one similarity search. Exactly one of Embedding,
// ImageURL or Text supplies the query vector; Embedding wins over
// ImageURL over Text when several are set.
type Request struct {
	Text      string
	ImageURL  string
	Embedding vector.Embedding

	Category string
	MinPrice *float64
	MaxPrice *float64
	Limit    int
}

// Engine resolves search requests to ranked product matches.
type Engine struct {
	encoder TextImageEncoder
	store   ProductSearcher
	logger  *slog.Logger
}

// NewEngine wires the engine.
func NewEngine(encoder TextImageEncoder, store ProductSearcher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		encoder: encoder,
		store:   store,
		logger:  logger.With("component", "similarity"),
	}
}

// Search resolves the query vector and runs the store search. A
// request with no criteria fails with ErrInvalidQuery; encoder and
// store failures propagate classified.
func (e *Engine) Search(ctx context.Context, req Request) ([]types.ProductMatch, error) {
	target, err := e.resolveEmbedding(ctx, req)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return e.store.SearchSimilar(ctx, productstore.SearchQuery{
		Embedding: target,
		Category:  req.Category,
		MinPrice:  req.MinPrice,
		MaxPrice:  req.MaxPrice,
		Limit:     limit,
	})
}

func (e *Engine) resolveEmbedding(ctx context.Context, req Request) (vector.Embedding, error) {
	switch {
	case req.Embedding != nil:
		if err := req.Embedding.Validate(); err != nil {
			return nil, fderrors.WrapInvalid(err, "similarity", "search", "bad query embedding")
		}
		return req.Embedding.Normalized(), nil
	case req.ImageURL != "":
		return e.encoder.EncodeImage(ctx, req.ImageURL)
	case req.Text != "":
		return e.encoder.EncodeText(ctx, req.Text)
	}
	return nil, fderrors.WrapInvalid(fderrors.ErrInvalidQuery, "similarity", "search",
		"need one of text, image url or embedding")
}

// Coherence scores a set of embeddings in [0,1]. Fewer than two
// vectors are trivially coherent. The mean pairwise cosine similarity
// is penalized quadratically below the threshold so likely mismatches
// are suppressed rather than reported at face value.
func Coherence(embeddings []vector.Embedding) float64 {
	if len(embeddings) < 2 {
		return 1.0
	}

	normalized := make([]vector.Embedding, len(embeddings))
	for i, e := range embeddings {
		normalized[i] = e.Normalized()
	}

	var sum float64
	var pairs int
	for i := 0; i < len(normalized); i++ {
		for j := i + 1; j < len(normalized); j++ {
			sum += vector.Dot(normalized[i], normalized[j])
			pairs++
		}
	}
	mean := sum / float64(pairs)

	if mean < coherenceThreshold {
		mean *= mean / coherenceThreshold
	}
	return math.Max(0.0, math.Min(1.0, mean))
}
