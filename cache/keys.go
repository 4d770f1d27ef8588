package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Key namespaces. NATS KV keys cannot contain colons, so segments are
// joined with dots.
const (
	promptPrefix    = "parse."
	planPrefix      = "plan."
	aestheticPrefix = "aesthetic.vector."
)

// PromptKey derives the cache key for a raw user prompt. Prompts that
// differ only in case or surrounding whitespace share a key.
func PromptKey(prompt string) string {
	return promptPrefix + contentHash(normalize(prompt))
}

// PlanKey derives the cache key for an outfit plan request. Category
// order does not affect the key.
func PlanKey(aesthetic, gender, occasion string, categories []string) string {
	sorted := make([]string, 0, len(categories))
	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		c = normalize(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		sorted = append(sorted, c)
	}
	sort.Strings(sorted)

	parts := []string{
		normalize(aesthetic),
		normalize(gender),
		strings.Join(sorted, ","),
		normalize(occasion),
	}
	return planPrefix + contentHash(strings.Join(parts, "|"))
}

// AestheticKey derives the cache key for a precomputed aesthetic
// vector. Labels are normalized and spaces become underscores so the
// key is listable under the aesthetic prefix.
func AestheticKey(label string) string {
	return aestheticPrefix + strings.ReplaceAll(normalize(label), " ", "_")
}

// AestheticPrefix is the key prefix shared by all precomputed
// aesthetic vectors, for prefix listing.
func AestheticPrefix() string { return aestheticPrefix }

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
