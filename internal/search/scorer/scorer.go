// Package scorer computes per-field match scores and combines them with
// field weights, entry weights, and the configurable status/category/type
// boosts. All inputs are normalised text; all math is pure.
package scorer

import (
	"strings"

	"github.com/velora-exchange/assetsearch/internal/asset"
	"github.com/velora-exchange/assetsearch/internal/index"
	"github.com/velora-exchange/assetsearch/internal/index/tokenizer"
)

// Per-field match contributions. The per-field score is capped at 1.0
// before any weighting.
const (
	exactScore       = 1.0
	prefixScore      = 0.8
	substringScore   = 0.6
	tokenEqualScore  = 0.3
	tokenPrefixScore = 0.2
)

// fieldWeights scale the capped per-field score. Symbol is the most
// specific field and dominates.
var fieldWeights = map[index.Field]float64{
	index.FieldSymbol:   10,
	index.FieldName:     5,
	index.FieldCategory: 3,
	index.FieldTag:      2,
}

// damping scales a field's contribution when a higher-priority field has
// already matched the same asset. It keeps an asset that matches broadly
// but shallowly from outranking a precise symbol match.
var damping = map[index.Field]float64{
	index.FieldSymbol:   1.0,
	index.FieldName:     0.7,
	index.FieldCategory: 0.5,
	index.FieldTag:      0.3,
}

// FieldWeight returns the weight multiplier for a field.
func FieldWeight(f index.Field) float64 {
	return fieldWeights[f]
}

// Damping returns the secondary-match contribution factor for a field.
func Damping(f index.Field) float64 {
	return damping[f]
}

// FieldScore scores a normalised field value against a normalised query and
// its tokens: exact 1.0, else prefix 0.8, else substring 0.6, plus 0.3 for
// each query token equal to a value token and 0.2 for each query token that
// is a strict prefix of one. The result is capped at 1.0.
func FieldScore(value, query string, queryTokens []string) float64 {
	if value == "" || query == "" {
		return 0
	}
	score := 0.0
	switch {
	case value == query:
		score += exactScore
	case strings.HasPrefix(value, query):
		score += prefixScore
	case strings.Contains(value, query):
		score += substringScore
	}

	valueTokens := strings.Fields(value)
	for _, qt := range queryTokens {
		equal := false
		for _, vt := range valueTokens {
			if qt == vt {
				score += tokenEqualScore
				equal = true
				break
			}
		}
		if equal {
			continue
		}
		for _, vt := range valueTokens {
			if strings.HasPrefix(vt, qt) {
				score += tokenPrefixScore
				break
			}
		}
	}

	return min(score, 1.0)
}

// BoostConfig carries the post-merge multiplicative boosts. Category and
// type lookups are case-insensitive; missing entries boost by 1.0.
type BoostConfig struct {
	CategoryBoosts map[string]float64
	TypeBoosts     map[string]float64
	FavoriteWeight float64
	TrendingWeight float64
	PopularWeight  float64
}

// ApplyBoosts multiplies score by the category boost, type boost, and status
// multipliers, in that fixed order. The fuzzy bonus is applied separately by
// the caller, last.
func ApplyBoosts(score float64, a asset.Asset, cfg BoostConfig) float64 {
	if boost, ok := cfg.CategoryBoosts[tokenizer.Normalize(a.Category)]; ok {
		score *= boost
	}
	if boost, ok := cfg.TypeBoosts[tokenizer.Normalize(a.Type)]; ok {
		score *= boost
	}
	if a.IsFavorite && cfg.FavoriteWeight > 0 {
		score *= cfg.FavoriteWeight
	}
	if a.Trending && cfg.TrendingWeight > 0 {
		score *= cfg.TrendingWeight
	}
	if a.IsPopular && cfg.PopularWeight > 0 {
		score *= cfg.PopularWeight
	}
	return score
}
