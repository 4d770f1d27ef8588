// Package encoder produces unit-normalized embeddings for text and
// product images by calling an external CLIP serving endpoint. The
// model is loaded lazily on first use so process startup and health
// checks never block on model weights.
package encoder

import (
	"context"

	"github.com/Tekstrive/fashionDeck/pkg/vector"
)

// Encoder turns text and images into embeddings. Implementations must
// L2-normalize every vector before returning it.
type Encoder interface {
	// EncodeText embeds a text string.
	EncodeText(ctx context.Context, text string) (vector.Embedding, error)

	// EncodeImage fetches the image at url and embeds it.
	EncodeImage(ctx context.Context, url string) (vector.Embedding, error)

	// EncodeBatch embeds texts and image URLs together. Results are
	// positional: textResults[i] corresponds to texts[i] and
	// imageResults[j] to imageURLs[j]. A failed slot carries its error
	// and a nil vector; one bad image never aborts the batch.
	EncodeBatch(ctx context.Context, texts, imageURLs []string) (textResults, imageResults []BatchItem, err error)

	// Ready reports whether the underlying model is loaded, loading it
	// if needed.
	Ready(ctx context.Context) error

	Close() error
}

// BatchItem is one slot of a batch encode result.
type BatchItem struct {
	Vector vector.Embedding
	Err    error
}
