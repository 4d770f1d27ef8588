package llm

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Tekstrive/fashionDeck/types"
)

var budgetPattern = regexp.MustCompile(`\d+`)

var sizeTokens = []string{"xs", "s", "m", "l", "xl", "xxl"}

// fallbackParse extracts a ParsedQuery from raw text with
// deterministic rules. It never fails: when nothing better is found
// the full prompt becomes the aesthetic label.
func fallbackParse(prompt string) types.ParsedQuery {
	lower := strings.ToLower(prompt)

	var budget *int
	if m := budgetPattern.FindString(lower); m != "" {
		if v, err := strconv.Atoi(m); err == nil {
			budget = &v
		}
	}

	var size string
	padded := " " + lower + " "
	for _, s := range sizeTokens {
		if strings.Contains(padded, " "+s+" ") || strings.Contains(lower, "size "+s) {
			size = strings.ToUpper(s)
			break
		}
	}

	// "women" contains "men", so the female markers are checked first.
	gender := types.GenderUnisex
	switch {
	case strings.Contains(lower, "women") || strings.Contains(lower, "female"):
		gender = types.GenderFemale
	case strings.Contains(lower, "men") || strings.Contains(lower, "male"):
		gender = types.GenderMale
	}

	categories := types.DefaultCategories()
	if strings.Contains(lower, "shoe") {
		categories = append(categories, types.CategoryShoes)
	}
	if strings.Contains(lower, "accessor") {
		categories = append(categories, types.CategoryAccessories)
	}

	return types.ParsedQuery{
		Aesthetic:  prompt,
		Budget:     budget,
		Size:       size,
		Gender:     gender,
		Categories: categories,
	}
}

// planFallbackRow maps an aesthetic keyword to a canned outfit.
type planFallbackRow struct {
	keywords  []string
	items     []string
	reasoning string
}

var planFallbacks = []planFallbackRow{
	{
		keywords:  []string{"korean", "minimal"},
		items:     []string{"oversized t-shirt", "straight pants", "white sneakers"},
		reasoning: "Korean minimal aesthetic with clean lines and neutral colors",
	},
	{
		keywords:  []string{"street"},
		items:     []string{"graphic hoodie", "cargo pants", "chunky sneakers"},
		reasoning: "Streetwear with bold graphics and utility elements",
	},
	{
		keywords:  []string{"y2k"},
		items:     []string{"crop top", "low-rise jeans", "platform shoes"},
		reasoning: "Y2K aesthetic with 2000s-inspired pieces",
	},
	{
		keywords:  []string{"vintage"},
		items:     []string{"vintage blouse", "high-waisted skirt"},
		reasoning: "Vintage style with classic silhouettes",
	},
	{
		keywords:  []string{"athle", "sport"},
		items:     []string{"sports top", "leggings", "running shoes"},
		reasoning: "Athleisure combining athletic and casual style",
	},
	{
		keywords:  []string{"office", "formal"},
		items:     []string{"button-down shirt", "chino pants"},
		reasoning: "Office wear balancing professionalism and comfort",
	},
}

// fallbackPlan builds a canned outfit plan from the aesthetic label.
// It never fails and always satisfies the 2-4 item bound.
func fallbackPlan(q types.ParsedQuery) types.OutfitPlan {
	lower := strings.ToLower(q.Aesthetic)

	var items []string
	var reasoning string
	for _, row := range planFallbacks {
		for _, kw := range row.keywords {
			if strings.Contains(lower, kw) {
				items = append([]string(nil), row.items...)
				reasoning = row.reasoning
				break
			}
		}
		if items != nil {
			break
		}
	}
	if items == nil {
		items = []string{"casual top", "comfortable pants"}
		reasoning = "Casual outfit for " + q.Aesthetic + " aesthetic"
	}

	if len(items) == 2 {
		for _, c := range q.Categories {
			if c == types.CategoryShoes {
				items = append(items, "casual shoes")
				break
			}
		}
	}
	if len(items) > 4 {
		items = items[:4]
	}

	return types.OutfitPlan{Items: items, Reasoning: reasoning}
}
