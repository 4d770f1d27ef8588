package similarity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fderrors "github.com/Tekstrive/fashionDeck/errors"
	"github.com/Tekstrive/fashionDeck/pkg/vector"
	"github.com/Tekstrive/fashionDeck/storage/productstore"
	"github.com/Tekstrive/fashionDeck/types"
)

func axis(dim int) vector.Embedding {
	v := make(vector.Embedding, vector.Dim)
	v[dim] = 1
	return v
}

type stubEncoder struct {
	textVec  vector.Embedding
	imageVec vector.Embedding

	textCalls  int
	imageCalls int
}

func (s *stubEncoder) EncodeText(context.Context, string) (vector.Embedding, error) {
	s.textCalls++
	return s.textVec, nil
}

func (s *stubEncoder) EncodeImage(context.Context, string) (vector.Embedding, error) {
	s.imageCalls++
	return s.imageVec, nil
}

type stubSearcher struct {
	got     productstore.SearchQuery
	matches []types.ProductMatch
}

func (s *stubSearcher) SearchSimilar(_ context.Context, q productstore.SearchQuery) ([]types.ProductMatch, error) {
	s.got = q
	return s.matches, nil
}

func TestSearch_RequiresCriteria(t *testing.T) {
	engine := NewEngine(&stubEncoder{}, &stubSearcher{}, nil)

	_, err := engine.Search(context.Background(), Request{Category: "top"})
	require.Error(t, err)
	assert.True(t, fderrors.Is(err, fderrors.ErrInvalidQuery))
}

func TestSearch_EmbeddingWinsOverTextAndImage(t *testing.T) {
	enc := &stubEncoder{textVec: axis(1), imageVec: axis(2)}
	store := &stubSearcher{}
	engine := NewEngine(enc, store, nil)

	_, err := engine.Search(context.Background(), Request{
		Embedding: axis(0),
		ImageURL:  "https://img.example/x.jpg",
		Text:      "white tee",
	})
	require.NoError(t, err)
	assert.Zero(t, enc.textCalls)
	assert.Zero(t, enc.imageCalls)
	assert.InDelta(t, 1.0, float64(store.got.Embedding[0]), 1e-6)
}

func TestSearch_ImageWinsOverText(t *testing.T) {
	enc := &stubEncoder{textVec: axis(1), imageVec: axis(2)}
	store := &stubSearcher{}
	engine := NewEngine(enc, store, nil)

	_, err := engine.Search(context.Background(), Request{
		ImageURL: "https://img.example/x.jpg",
		Text:     "white tee",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, enc.imageCalls)
	assert.Zero(t, enc.textCalls)
}

func TestSearch_LimitDefaultsAndCaps(t *testing.T) {
	store := &stubSearcher{}
	engine := NewEngine(&stubEncoder{textVec: axis(0)}, store, nil)

	_, err := engine.Search(context.Background(), Request{Text: "tee"})
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, store.got.Limit)

	_, err = engine.Search(context.Background(), Request{Text: "tee", Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, store.got.Limit)
}

func TestSearch_RejectsWrongDimensionEmbedding(t *testing.T) {
	engine := NewEngine(&stubEncoder{}, &stubSearcher{}, nil)

	_, err := engine.Search(context.Background(), Request{Embedding: vector.Embedding{1, 2, 3}})
	require.Error(t, err)
	assert.True(t, fderrors.IsInvalid(err))
}

func TestCoherence_TrivialCases(t *testing.T) {
	assert.Equal(t, 1.0, Coherence(nil))
	assert.Equal(t, 1.0, Coherence([]vector.Embedding{axis(0)}))
}

func TestCoherence_IdenticalVectors(t *testing.T) {
	score := Coherence([]vector.Embedding{axis(0), axis(0), axis(0)})
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestCoherence_OrthogonalVectorsArePenalized(t *testing.T) {
	// Mean pairwise similarity 0, below threshold, quadratic penalty
	score := Coherence([]vector.Embedding{axis(0), axis(1)})
	assert.Equal(t, 0.0, score)
}

func TestCoherence_PenaltyBelowThreshold(t *testing.T) {
	// Two vectors with known dot product 0.5: 0.5 < 0.6 so the score
	// becomes 0.5 * (0.5 / 0.6)
	a := make(vector.Embedding, vector.Dim)
	b := make(vector.Embedding, vector.Dim)
	a[0] = 1
	b[0] = 0.5
	b[1] = float32(0.8660254) // sqrt(1 - 0.25)

	score := Coherence([]vector.Embedding{a, b})
	assert.InDelta(t, 0.5*(0.5/0.6), score, 1e-6)
}

func TestCoherence_NoPenaltyAboveThreshold(t *testing.T) {
	a := make(vector.Embedding, vector.Dim)
	b := make(vector.Embedding, vector.Dim)
	a[0] = 1
	b[0] = 0.8
	b[1] = 0.6

	score := Coherence([]vector.Embedding{a, b})
	assert.InDelta(t, 0.8, score, 1e-6)
}

func TestCoherence_RenormalizesInputs(t *testing.T) {
	// Same direction, different magnitudes: still perfectly coherent
	big := make(vector.Embedding, vector.Dim)
	small := make(vector.Embedding, vector.Dim)
	big[3] = 42
	small[3] = 0.001

	score := Coherence([]vector.Embedding{big, small})
	assert.InDelta(t, 1.0, score, 1e-6)
}
