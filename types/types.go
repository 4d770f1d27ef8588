// Package types defines the domain model shared by the FashionDeck core
// packages: parsed queries, outfit plans, products, and search results.
package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Tekstrive/fashionDeck/errors"
	"github.com/Tekstrive/fashionDeck/pkg/vector"
)

// Gender preference values
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderUnisex = "unisex"
)

// Clothing categories form a closed set; parsed queries may only
// reference these.
const (
	CategoryTop         = "top"
	CategoryBottom      = "bottom"
	CategoryShoes       = "shoes"
	CategoryAccessories = "accessories"
)

// Sizes recognized in parsed queries
var Sizes = []string{"XS", "S", "M", "L", "XL", "XXL"}

// AllCategories lists every valid category in canonical order.
var AllCategories = []string{CategoryTop, CategoryBottom, CategoryShoes, CategoryAccessories}

// DefaultCategories is the category set assumed when a query names none.
func DefaultCategories() []string {
	return []string{CategoryTop, CategoryBottom}
}

// ValidCategory reports whether c is in the closed category set.
func ValidCategory(c string) bool {
	switch c {
	case CategoryTop, CategoryBottom, CategoryShoes, CategoryAccessories:
		return true
	}
	return false
}

// ValidGender reports whether g is a recognized gender value.
func ValidGender(g string) bool {
	switch g {
	case GenderMale, GenderFemale, GenderUnisex:
		return true
	}
	return false
}

// ValidSize reports whether s is a recognized size token.
func ValidSize(s string) bool {
	for _, known := range Sizes {
		if s == known {
			return true
		}
	}
	return false
}

// ParsedQuery is the structured form of a natural-language fashion query.
type ParsedQuery struct {
	Aesthetic  string   `json:"aesthetic"`
	Budget     *int     `json:"budget,omitempty"`
	Size       string   `json:"size,omitempty"`
	Gender     string   `json:"gender,omitempty"`
	Occasion   string   `json:"occasion,omitempty"`
	Categories []string `json:"categories"`
}

// Normalize fills defaults: empty category list becomes {top, bottom},
// empty gender becomes unisex.
func (q *ParsedQuery) Normalize() {
	if len(q.Categories) == 0 {
		q.Categories = DefaultCategories()
	}
	if q.Gender == "" {
		q.Gender = GenderUnisex
	}
}

// Validate checks the ParsedQuery invariants: non-empty aesthetic,
// non-negative budget, enum membership for size/gender, and categories
// drawn from the closed set.
func (q ParsedQuery) Validate() error {
	if strings.TrimSpace(q.Aesthetic) == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "types", "ParsedQuery.Validate", "aesthetic is empty")
	}
	if q.Budget != nil && *q.Budget < 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "types", "ParsedQuery.Validate", "budget is negative")
	}
	if q.Size != "" && !ValidSize(q.Size) {
		return errors.WrapInvalid(errors.ErrInvalidData, "types", "ParsedQuery.Validate",
			fmt.Sprintf("unknown size %q", q.Size))
	}
	if q.Gender != "" && !ValidGender(q.Gender) {
		return errors.WrapInvalid(errors.ErrInvalidData, "types", "ParsedQuery.Validate",
			fmt.Sprintf("unknown gender %q", q.Gender))
	}
	if len(q.Categories) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "types", "ParsedQuery.Validate", "categories is empty")
	}
	for _, c := range q.Categories {
		if !ValidCategory(c) {
			return errors.WrapInvalid(errors.ErrInvalidData, "types", "ParsedQuery.Validate",
				fmt.Sprintf("unknown category %q", c))
		}
	}
	return nil
}

// SortedCategories returns the categories in lexicographic order,
// deduplicated. Used for order-independent cache key derivation.
func (q ParsedQuery) SortedCategories() []string {
	seen := make(map[string]struct{}, len(q.Categories))
	out := make([]string, 0, len(q.Categories))
	for _, c := range q.Categories {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// OutfitPlan is a planned outfit: 2-4 concrete item descriptions plus
// free-text reasoning.
type OutfitPlan struct {
	Items     []string `json:"items"`
	Reasoning string   `json:"reasoning"`
}

// Validate enforces the item-count invariant. Plans outside [2,4] items
// are rejected and callers fall back.
func (p OutfitPlan) Validate() error {
	if len(p.Items) < 2 || len(p.Items) > 4 {
		return errors.WrapInvalid(errors.ErrInvalidData, "types", "OutfitPlan.Validate",
			fmt.Sprintf("plan has %d items, want 2-4", len(p.Items)))
	}
	return nil
}

// Product is the persisted catalog entity. The core only reads and
// writes the embedding columns; product lifecycle is owned elsewhere.
type Product struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Price          float64          `json:"price"`
	ImageURL       string           `json:"image_url"`
	Category       string           `json:"category,omitempty"`
	ImageEmbedding vector.Embedding `json:"image_embedding,omitempty"`
	TextEmbedding  vector.Embedding `json:"text_embedding,omitempty"`
}

// ProductMatch is one similarity search result.
type ProductMatch struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	ImageURL   string  `json:"image_url"`
	Similarity float64 `json:"similarity"`
}

// OutfitItem is one product inside an outfit candidate.
type OutfitItem struct {
	Title    string  `json:"title"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
}

// OutfitCandidate is a complete outfit to be scored.
type OutfitCandidate struct {
	Items []OutfitItem `json:"items"`
}
