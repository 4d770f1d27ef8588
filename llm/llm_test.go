package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tekstrive/fashionDeck/cache"
	fderrors "github.com/Tekstrive/fashionDeck/errors"
	"github.com/Tekstrive/fashionDeck/pkg/retry"
	"github.com/Tekstrive/fashionDeck/types"
)

// fakeCompletion serves the chat completions route with a scripted
// response body or status.
type fakeCompletion struct {
	content string
	status  int
	calls   atomic.Int32
}

func (f *fakeCompletion) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, _ *http.Request) {
		f.calls.Add(1)
		if f.status != 0 && f.status != http.StatusOK {
			http.Error(w, `{"error": {"message": "scripted failure"}}`, f.status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": f.content}},
			},
		})
	})
	return mux
}

func newTestClient(t *testing.T, baseURL string) *Client {
	c, err := NewClient(ClientConfig{
		APIKey:            "test-key",
		BaseURL:           baseURL,
		RequestsPerSecond: 1000,
	})
	require.NoError(t, err)
	return c
}

func TestParser_APIResultIsCachedWithTTL(t *testing.T) {
	fake := &fakeCompletion{
		content: `{"aesthetic": "korean minimal", "budget": 2000, "size": "M", "gender": "male", "occasion": "coffee date", "categories": ["top", "bottom"]}`,
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	store := cache.NewMemory()
	parser := NewParser(newTestClient(t, srv.URL), store, nil, nil)

	q, fromCache, err := parser.Parse(context.Background(), "korean minimal outfit for a coffee date under 2000")
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, "korean minimal", q.Aesthetic)
	require.NotNil(t, q.Budget)
	assert.Equal(t, 2000, *q.Budget)

	// Second call is served from cache without hitting the API
	q2, fromCache, err := parser.Parse(context.Background(), "Korean Minimal outfit for a coffee date under 2000  ")
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, q, q2)
	assert.Equal(t, int32(1), fake.calls.Load())
}

func TestParser_FallbackOnAPIFailureIsNotCached(t *testing.T) {
	fake := &fakeCompletion{status: http.StatusBadRequest}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	store := cache.NewMemory()
	parser := NewParser(newTestClient(t, srv.URL), store, nil, nil)

	prompt := "korean minimal outfit for a coffee date under 2000"
	q, fromCache, err := parser.Parse(context.Background(), prompt)
	require.NoError(t, err)
	assert.False(t, fromCache)

	// Extractor output: raw prompt as aesthetic, first integer as budget
	assert.Equal(t, prompt, q.Aesthetic)
	require.NotNil(t, q.Budget)
	assert.Equal(t, 2000, *q.Budget)
	assert.Equal(t, types.GenderUnisex, q.Gender)
	assert.Equal(t, types.DefaultCategories(), q.Categories)

	_, err = store.Get(context.Background(), cache.PromptKey(prompt))
	assert.ErrorIs(t, err, fderrors.ErrKeyNotFound)
}

func TestParser_FallbackOnMalformedJSON(t *testing.T) {
	fake := &fakeCompletion{content: `{"budget": "not a number"`}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	parser := NewParser(newTestClient(t, srv.URL), cache.NewMemory(), nil, nil)

	q, _, err := parser.Parse(context.Background(), "streetwear look for men size L")
	require.NoError(t, err)
	assert.Equal(t, "streetwear look for men size L", q.Aesthetic)
	assert.Equal(t, types.GenderMale, q.Gender)
	assert.Equal(t, "L", q.Size)
}

func TestFallbackParse_Rules(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		check  func(*testing.T, types.ParsedQuery)
	}{
		{
			name:   "budget from first integer run",
			prompt: "something under 1500 with 3 colors",
			check: func(t *testing.T, q types.ParsedQuery) {
				require.NotNil(t, q.Budget)
				assert.Equal(t, 1500, *q.Budget)
			},
		},
		{
			name:   "size via word boundary",
			prompt: "grunge fit in m please",
			check: func(t *testing.T, q types.ParsedQuery) {
				assert.Equal(t, "M", q.Size)
			},
		},
		{
			name:   "size via size prefix",
			prompt: "vintage dress size xl",
			check: func(t *testing.T, q types.ParsedQuery) {
				assert.Equal(t, "XL", q.Size)
			},
		},
		{
			name:   "no size token inside words",
			prompt: "small casual outfit",
			check: func(t *testing.T, q types.ParsedQuery) {
				assert.Empty(t, q.Size)
			},
		},
		{
			name:   "women wins over embedded men",
			prompt: "outfit for women",
			check: func(t *testing.T, q types.ParsedQuery) {
				assert.Equal(t, types.GenderFemale, q.Gender)
			},
		},
		{
			name:   "shoes and accessories keywords extend categories",
			prompt: "streetwear with shoes and accessories",
			check: func(t *testing.T, q types.ParsedQuery) {
				assert.Equal(t, []string{
					types.CategoryTop, types.CategoryBottom,
					types.CategoryShoes, types.CategoryAccessories,
				}, q.Categories)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := fallbackParse(tt.prompt)
			assert.NoError(t, q.Validate())
			tt.check(t, q)
		})
	}
}

func TestPlanner_CachesValidPlanPermanently(t *testing.T) {
	fake := &fakeCompletion{
		content: `{"items": ["oversized blazer", "wide leg trousers", "loafers"], "reasoning": "quiet luxury staples"}`,
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	store := cache.NewMemory()
	planner := NewPlanner(newTestClient(t, srv.URL), store, nil, nil)

	q := types.ParsedQuery{
		Aesthetic:  "quiet luxury",
		Gender:     types.GenderFemale,
		Categories: []string{types.CategoryTop, types.CategoryBottom, types.CategoryShoes},
	}

	plan, fromCache, err := planner.Plan(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Len(t, plan.Items, 3)

	_, fromCache, err = planner.Plan(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, int32(1), fake.calls.Load())
}

func TestPlanner_ItemBoundViolationFallsBack(t *testing.T) {
	fake := &fakeCompletion{
		content: `{"items": ["one", "two", "three", "four", "five"], "reasoning": "too many"}`,
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	store := cache.NewMemory()
	planner := NewPlanner(newTestClient(t, srv.URL), store, nil, nil)

	q := types.ParsedQuery{Aesthetic: "y2k party", Categories: types.DefaultCategories()}
	plan, fromCache, err := planner.Plan(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, []string{"crop top", "low-rise jeans", "platform shoes"}, plan.Items)

	// Fallback plans are not cached
	key := cache.PlanKey(q.Aesthetic, q.Gender, q.Occasion, q.Categories)
	_, err = store.Get(context.Background(), key)
	assert.ErrorIs(t, err, fderrors.ErrKeyNotFound)
}

func TestFallbackPlan_Table(t *testing.T) {
	tests := []struct {
		aesthetic string
		first     string
	}{
		{"korean minimal", "oversized t-shirt"},
		{"streetwear", "graphic hoodie"},
		{"y2k revival", "crop top"},
		{"vintage chic", "vintage blouse"},
		{"athleisure", "sports top"},
		{"office formal", "button-down shirt"},
		{"cottagecore", "casual top"},
	}

	for _, tt := range tests {
		t.Run(tt.aesthetic, func(t *testing.T) {
			plan := fallbackPlan(types.ParsedQuery{Aesthetic: tt.aesthetic})
			require.NoError(t, plan.Validate())
			assert.Equal(t, tt.first, plan.Items[0])
		})
	}
}

func TestFallbackPlan_AddsShoesForTwoItemPlans(t *testing.T) {
	q := types.ParsedQuery{
		Aesthetic:  "vintage",
		Categories: []string{types.CategoryTop, types.CategoryBottom, types.CategoryShoes},
	}
	plan := fallbackPlan(q)
	assert.Equal(t, []string{"vintage blouse", "high-waisted skirt", "casual shoes"}, plan.Items)
}

func TestScorer_ClampsScores(t *testing.T) {
	fake := &fakeCompletion{content: `{"scores": [12.0, 0.2, 7.5]}`}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	scorer := NewScorer(newTestClient(t, srv.URL), nil, nil)

	outfits := []types.OutfitCandidate{
		{Items: []types.OutfitItem{{Title: "tee", Category: "top", Price: 499}}},
		{Items: []types.OutfitItem{{Title: "jeans", Category: "bottom", Price: 999}}},
		{Items: []types.OutfitItem{{Title: "sneakers", Category: "shoes", Price: 1999}}},
	}

	scores := scorer.Score(context.Background(), "korean minimal", outfits)
	assert.Equal(t, []float64{10.0, 1.0, 7.5}, scores)
}

func TestScorer_NeutralOnCountMismatch(t *testing.T) {
	fake := &fakeCompletion{content: `{"scores": [8.0]}`}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	scorer := NewScorer(newTestClient(t, srv.URL), nil, nil)

	outfits := make([]types.OutfitCandidate, 3)
	scores := scorer.Score(context.Background(), "grunge", outfits)
	assert.Equal(t, []float64{NeutralScore, NeutralScore, NeutralScore}, scores)
}

func TestScorer_NeutralOnAPIFailure(t *testing.T) {
	fake := &fakeCompletion{status: http.StatusBadRequest}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	scorer := NewScorer(newTestClient(t, srv.URL), nil, nil)

	scores := scorer.Score(context.Background(), "grunge", make([]types.OutfitCandidate, 2))
	assert.Equal(t, []float64{NeutralScore, NeutralScore}, scores)
}

func TestScorer_EmptyBatch(t *testing.T) {
	scorer := NewScorer(nil, nil, nil)
	assert.Nil(t, scorer.Score(context.Background(), "any", nil))
}

func TestClassifyAPIError(t *testing.T) {
	err := classifyAPIError(&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests})
	assert.True(t, fderrors.Is(err, fderrors.ErrRateLimited))
	assert.True(t, fderrors.IsTransient(err))

	err = classifyAPIError(&openai.APIError{HTTPStatusCode: http.StatusInternalServerError})
	assert.True(t, fderrors.Is(err, fderrors.ErrUpstreamUnavailable))

	err = classifyAPIError(&openai.APIError{HTTPStatusCode: http.StatusBadRequest})
	assert.True(t, retry.IsNonRetryable(err))
}
