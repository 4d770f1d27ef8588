// Package vector provides the fixed-dimension embedding type and the
// small amount of vector math the core needs: L2 normalization, dot
// products, and cosine similarity over unit vectors.
package vector

import (
	"math"

	"github.com/Tekstrive/fashionDeck/errors"
)

// Dim is the dimensionality of every embedding in the system.
// The CLIP ViT-B/32 encoder produces 512-component vectors.
const Dim = 512

// Embedding is an ordered sequence of float32 components. Embeddings
// returned by the encoder are always L2-normalized; embeddings arriving
// from outside the process should be re-normalized defensively.
type Embedding []float32

// Validate checks that the embedding has the expected dimensionality.
func (e Embedding) Validate() error {
	if len(e) != Dim {
		return errors.WrapInvalid(errors.ErrInvalidData, "vector", "Validate", "unexpected embedding dimension")
	}
	return nil
}

// Norm computes the Euclidean (L2) norm of the embedding.
func (e Embedding) Norm() float64 {
	var sum float64
	for _, v := range e {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Normalized returns a new embedding scaled to unit length.
// A zero vector is returned unchanged.
func (e Embedding) Normalized() Embedding {
	mag := e.Norm()
	if mag == 0 {
		return e
	}

	out := make(Embedding, len(e))
	for i, v := range e {
		out[i] = float32(float64(v) / mag)
	}
	return out
}

// Dot computes the dot product of two embeddings.
// For unit vectors this equals their cosine similarity.
func Dot(a, b Embedding) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// CosineSimilarity computes the cosine similarity between two vectors
// of any magnitude.
//
// Returns a value between -1 and 1, where:
//   - 1 means vectors are identical
//   - 0 means vectors are orthogonal (unrelated)
//   - -1 means vectors are opposite
func CosineSimilarity(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dotProduct float64
	var magnitudeA float64
	var magnitudeB float64

	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		magnitudeA += float64(a[i]) * float64(a[i])
		magnitudeB += float64(b[i]) * float64(b[i])
	}

	// Avoid division by zero
	if magnitudeA == 0.0 || magnitudeB == 0.0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(magnitudeA) * math.Sqrt(magnitudeB))
}
