// Package aesthetic maintains reference embeddings for known style
// labels and classifies prompts against them. Vectors are precomputed
// in a batch job and stored permanently in the cache; nearest-label
// lookup is a dot product scan over the stored set.
package aesthetic

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/Tekstrive/fashionDeck/cache"
	fderrors "github.com/Tekstrive/fashionDeck/errors"
	"github.com/Tekstrive/fashionDeck/pkg/vector"
)

// Common holds the style labels worth precomputing. The set is small
// and stable; recomputes overwrite wholesale.
var Common = []string{
	"Korean Minimal", "Streetwear", "Y2K", "Vintage", "Athleisure",
	"Office Wear", "Boho", "Cottagecore", "Dark Academia", "Grunge",
	"Preppy", "Cyberpunk", "Techwear", "Gorpcore", "Old Money",
	"Quiet Luxury", "E-Girl", "E-Boy", "Soft Girl", "Indie Sleaze",
	"Normcore", "Minimalism", "Maximalism", "Avant Garde", "Harajuku",
	"Punk", "Rocker", "Western", "Safari", "Nautical",
}

// TextEncoder is the slice of the encoder this package needs.
type TextEncoder interface {
	EncodeText(ctx context.Context, text string) (vector.Embedding, error)
}

// Service precomputes and queries aesthetic reference vectors.
type Service struct {
	encoder TextEncoder
	store   cache.Store
	logger  *slog.Logger
}

// NewService wires the service. A nil store disables persistence,
// which makes Nearest always come back empty.
func NewService(encoder TextEncoder, store cache.Store, logger *slog.Logger) *Service {
	if store == nil {
		store = cache.Disabled{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		encoder: encoder,
		store:   store,
		logger:  logger.With("component", "aesthetic"),
	}
}

// Precompute embeds every common label and stores the vectors
// permanently. One label's failure is logged and skipped. Returns the
// number of labels stored.
func (s *Service) Precompute(ctx context.Context) int {
	count := 0
	s.logger.Info("precomputing aesthetic vectors", "labels", len(Common))

	for _, label := range Common {
		emb, err := s.encoder.EncodeText(ctx, label)
		if err != nil {
			s.logger.Error("aesthetic embed failed", "label", label, "error", err)
			continue
		}

		encoded, err := json.Marshal(emb)
		if err != nil {
			s.logger.Error("aesthetic encode failed", "label", label, "error", err)
			continue
		}
		if err := s.store.SetPermanent(ctx, cache.AestheticKey(label), encoded); err != nil {
			s.logger.Error("aesthetic store failed", "label", label, "error", err)
			continue
		}
		count++
	}

	s.logger.Info("aesthetic precompute done", "stored", count, "labels", len(Common))
	return count
}

// All returns every stored label with its vector. Labels come back
// title-cased from their key form.
func (s *Service) All(ctx context.Context) (map[string]vector.Embedding, error) {
	keys, err := s.store.Keys(ctx, cache.AestheticPrefix())
	if err != nil {
		return nil, fderrors.WrapTransient(err, "aesthetic", "all", "list aesthetic keys failed")
	}

	out := make(map[string]vector.Embedding, len(keys))
	for _, key := range keys {
		raw, err := s.store.Get(ctx, key)
		if err != nil {
			continue
		}
		var emb vector.Embedding
		if err := json.Unmarshal(raw, &emb); err != nil {
			s.logger.Warn("undecodable aesthetic vector", "key", key)
			continue
		}
		out[labelFromKey(key)] = emb
	}
	return out, nil
}

// Nearest classifies a prompt against the stored labels and returns
// the best match. The empty string means no reference vectors exist.
func (s *Service) Nearest(ctx context.Context, prompt string) (string, float64, error) {
	promptEmb, err := s.encoder.EncodeText(ctx, prompt)
	if err != nil {
		return "", 0, err
	}
	promptEmb = promptEmb.Normalized()

	all, err := s.All(ctx)
	if err != nil {
		return "", 0, err
	}
	if len(all) == 0 {
		return "", 0, nil
	}

	best := ""
	bestSim := -1.0
	for label, emb := range all {
		sim := vector.Dot(promptEmb, emb.Normalized())
		if sim > bestSim {
			bestSim = sim
			best = label
		}
	}

	s.logger.Info("nearest aesthetic", "prompt", prompt, "label", best, "similarity", bestSim)
	return best, bestSim, nil
}

func labelFromKey(key string) string {
	name := strings.TrimPrefix(key, cache.AestheticPrefix())
	words := strings.Split(name, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
