package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestParsedQueryValidate(t *testing.T) {
	valid := ParsedQuery{
		Aesthetic:  "korean minimal",
		Budget:     intPtr(2000),
		Size:       "M",
		Gender:     GenderMale,
		Categories: []string{CategoryTop, CategoryBottom},
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*ParsedQuery)
	}{
		{"empty aesthetic", func(q *ParsedQuery) { q.Aesthetic = "  " }},
		{"negative budget", func(q *ParsedQuery) { q.Budget = intPtr(-1) }},
		{"unknown size", func(q *ParsedQuery) { q.Size = "XXXL" }},
		{"unknown gender", func(q *ParsedQuery) { q.Gender = "other" }},
		{"no categories", func(q *ParsedQuery) { q.Categories = nil }},
		{"unknown category", func(q *ParsedQuery) { q.Categories = []string{"hats"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := valid
			tt.mutate(&q)
			assert.Error(t, q.Validate())
		})
	}
}

func TestParsedQueryNormalize(t *testing.T) {
	q := ParsedQuery{Aesthetic: "streetwear"}
	q.Normalize()

	assert.Equal(t, DefaultCategories(), q.Categories)
	assert.Equal(t, GenderUnisex, q.Gender)

	// Explicit values survive
	q2 := ParsedQuery{Aesthetic: "y2k", Gender: GenderFemale, Categories: []string{CategoryShoes}}
	q2.Normalize()
	assert.Equal(t, []string{CategoryShoes}, q2.Categories)
	assert.Equal(t, GenderFemale, q2.Gender)
}

func TestSortedCategories(t *testing.T) {
	q := ParsedQuery{Categories: []string{CategoryShoes, CategoryTop, CategoryBottom, CategoryTop}}
	assert.Equal(t, []string{CategoryBottom, CategoryShoes, CategoryTop}, q.SortedCategories())
}

func TestOutfitPlanValidate(t *testing.T) {
	assert.Error(t, OutfitPlan{Items: []string{"one"}}.Validate())
	assert.Error(t, OutfitPlan{Items: []string{"1", "2", "3", "4", "5"}}.Validate())
	assert.NoError(t, OutfitPlan{Items: []string{"tee", "jeans"}}.Validate())
	assert.NoError(t, OutfitPlan{Items: []string{"tee", "jeans", "sneakers", "cap"}}.Validate())
}
