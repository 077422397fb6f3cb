// Package search implements the weighted multi-field query engine over the
// asset index: index probing, damped score merging, boost application, fuzzy
// amplification, and the auxiliary suggestion and popular-search queries.
package search

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/velora-exchange/assetsearch/internal/asset"
	"github.com/velora-exchange/assetsearch/internal/index"
	"github.com/velora-exchange/assetsearch/internal/index/tokenizer"
	"github.com/velora-exchange/assetsearch/internal/search/fuzzy"
	"github.com/velora-exchange/assetsearch/internal/search/scorer"
	"github.com/velora-exchange/assetsearch/pkg/config"
)

const (
	// fuzzyBonusFactor scales the fuzzy similarity into the final
	// multiplicative bonus: score *= 1 + similarity*factor.
	fuzzyBonusFactor = 0.2

	popularLimit        = 10
	defaultSuggestLimit = 10
)

// Options controls a single search call. Zero values fall back to the
// engine's configured defaults; fuzzy matching is enabled unless explicitly
// disabled.
type Options struct {
	Limit           int
	MinScore        float64
	IncludeInactive bool
	DisableFuzzy    bool
	CategoryBoost   map[string]float64
	TypeBoost       map[string]float64
}

// Result is a single ranked hit. MatchType names the highest-priority field
// that matched; MatchText is that field's display value.
type Result struct {
	Asset     asset.Asset `json:"asset"`
	Score     float64     `json:"score"`
	MatchType string      `json:"match_type"`
	MatchText string      `json:"match_text"`
}

// Engine answers queries against a Store. It performs no locking of its
// own; see Guard for the concurrent-host wrapper.
type Engine struct {
	store  *index.Store
	cfg    config.SearchConfig
	boosts scorer.BoostConfig
	logger *slog.Logger
}

// NewEngine creates an Engine over the given store with the configured
// scoring parameters.
func NewEngine(store *index.Store, cfg config.SearchConfig) *Engine {
	return &Engine{
		store:  store,
		cfg:    cfg,
		boosts: boostConfig(cfg, nil, nil),
		logger: slog.Default().With("component", "search-engine"),
	}
}

// Build replaces the entire index from the asset list. See index.Store.Build.
func (e *Engine) Build(assets []asset.Asset) error {
	return e.store.Build(assets)
}

// Add indexes a single asset. The id must not already be indexed.
func (e *Engine) Add(a asset.Asset) error {
	return e.store.Add(a)
}

// Remove drops an asset from the index. Absent ids are a no-op.
func (e *Engine) Remove(id string) {
	e.store.Remove(id)
}

// Update re-indexes an asset under its current field values.
func (e *Engine) Update(a asset.Asset) error {
	return e.store.Update(a)
}

// Destroy clears all index state.
func (e *Engine) Destroy() {
	e.store.Clear()
}

// Stats returns index statistics.
func (e *Engine) Stats() index.Stats {
	return e.store.Stats()
}

// candidate accumulates a single asset's score across field probes.
type candidate struct {
	score     float64
	matchType index.Field
	matchText string
}

// Search returns assets ranked by their combined weighted match score.
// Queries shorter than the minimum token length return no results. Ties are
// broken by ascending asset id so rankings are deterministic.
func (e *Engine) Search(query string, opts Options) []Result {
	q := tokenizer.Normalize(query)
	if len([]rune(q)) < e.store.MinTokenLength() {
		return []Result{}
	}
	queryTokens := tokenizer.Tokenize(q, e.store.MinTokenLength())

	candidates := e.probe(q, queryTokens)

	boosts := e.boosts
	if opts.CategoryBoost != nil || opts.TypeBoost != nil {
		boosts = boostConfig(e.cfg, opts.CategoryBoost, opts.TypeBoost)
	}
	minScore := opts.MinScore
	if minScore <= 0 {
		minScore = e.cfg.MinScore
	}

	results := make([]Result, 0, len(candidates))
	for id, c := range candidates {
		entry, ok := e.store.Entry(id)
		if !ok {
			// Inverted index referenced an id missing from the master map.
			// Indicates interleaved mutation; see the single-writer contract.
			e.logger.Error("index divergence: id in inverted index but not master map", "id", id)
			continue
		}
		a := entry.Asset
		if !a.IsActive && !opts.IncludeInactive {
			continue
		}

		score := scorer.ApplyBoosts(c.score, a, boosts)
		if !opts.DisableFuzzy {
			sim := fuzzy.Score(q, fuzzyCandidates(a), e.cfg.FuzzyThreshold)
			score *= 1 + sim*fuzzyBonusFactor
		}
		if score < minScore {
			continue
		}
		results = append(results, Result{
			Asset:     a,
			Score:     score,
			MatchType: c.matchType.String(),
			MatchText: c.matchText,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Asset.ID < results[j].Asset.ID
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	if e.cfg.MaxResults > 0 && limit > e.cfg.MaxResults {
		limit = e.cfg.MaxResults
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// probe scores every inverted-index key against the query, walking fields in
// priority order. The first field to match an asset seeds its score; later
// fields add at their damped weight. Keys are visited in sorted order so the
// seeding field and match text are deterministic.
func (e *Engine) probe(q string, queryTokens []string) map[string]*candidate {
	type keyMatch struct {
		key   string
		score float64
		ids   []string
	}

	candidates := make(map[string]*candidate)
	for _, f := range index.Fields {
		matches := make([]keyMatch, 0)
		e.store.ForEachKey(f, func(key string, ids []string) {
			if fs := scorer.FieldScore(key, q, queryTokens); fs > 0 {
				matches = append(matches, keyMatch{key: key, score: fs, ids: ids})
			}
		})
		sort.Slice(matches, func(i, j int) bool { return matches[i].key < matches[j].key })

		for _, m := range matches {
			for _, id := range m.ids {
				entry, ok := e.store.Entry(id)
				if !ok {
					e.logger.Error("index divergence: id in inverted index but not master map", "id", id, "field", f.String())
					continue
				}
				raw := m.score * scorer.FieldWeight(f) * entry.Weight
				if c, seen := candidates[id]; seen {
					c.score += raw * scorer.Damping(f)
					continue
				}
				candidates[id] = &candidate{
					score:     raw,
					matchType: f,
					matchText: displayText(entry, f, m.key),
				}
			}
		}
	}
	return candidates
}

// Suggest returns up to limit display strings whose normalised symbol, name,
// or category starts with the normalised query. Matching is plain prefix,
// not scored and not fuzzy. Inactive assets never contribute suggestions.
func (e *Engine) Suggest(query string, limit int) []string {
	q := tokenizer.Normalize(query)
	if q == "" {
		return []string{}
	}
	if limit <= 0 {
		limit = defaultSuggestLimit
	}

	type suggestion struct {
		key  string
		text string
	}
	seen := make(map[string]struct{})
	matches := make([]suggestion, 0)
	for _, f := range [...]index.Field{index.FieldSymbol, index.FieldName, index.FieldCategory} {
		e.store.ForEachKey(f, func(key string, ids []string) {
			if !strings.HasPrefix(key, q) {
				return
			}
			for _, id := range ids {
				entry, ok := e.store.Entry(id)
				if !ok || !entry.Asset.IsActive {
					continue
				}
				text := displayText(entry, f, key)
				if _, dup := seen[text]; dup {
					continue
				}
				seen[text] = struct{}{}
				matches = append(matches, suggestion{key: key, text: text})
			}
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].key != matches[j].key {
			return matches[i].key < matches[j].key
		}
		return matches[i].text < matches[j].text
	})
	suggestions := make([]string, 0, min(limit, len(matches)))
	for _, m := range matches {
		if len(suggestions) == limit {
			break
		}
		suggestions = append(suggestions, m.text)
	}
	return suggestions
}

// PopularSearches returns the symbols of up to ten active assets flagged
// popular or trending, assets with both flags first.
func (e *Engine) PopularSearches() []string {
	type flagged struct {
		symbol string
		rank   int
	}
	assets := make([]flagged, 0)
	e.store.ForEachEntry(func(entry *index.Entry) {
		a := entry.Asset
		if !a.IsActive || (!a.IsPopular && !a.Trending) {
			return
		}
		rank := 0
		if a.IsPopular {
			rank++
		}
		if a.Trending {
			rank++
		}
		assets = append(assets, flagged{symbol: a.Symbol, rank: rank})
	})

	sort.Slice(assets, func(i, j int) bool {
		if assets[i].rank != assets[j].rank {
			return assets[i].rank > assets[j].rank
		}
		return assets[i].symbol < assets[j].symbol
	})
	if len(assets) > popularLimit {
		assets = assets[:popularLimit]
	}
	symbols := make([]string, len(assets))
	for i, a := range assets {
		symbols[i] = a.symbol
	}
	return symbols
}

// displayText maps an inverted-index key back to the display value that
// produced it. For tags this is the original tag whose normalised form
// equals the key.
func displayText(entry *index.Entry, f index.Field, key string) string {
	switch f {
	case index.FieldSymbol:
		return entry.Asset.Symbol
	case index.FieldName:
		return entry.Asset.Name
	case index.FieldCategory:
		return entry.Asset.Category
	case index.FieldTag:
		for _, tag := range entry.Asset.Tags {
			if tokenizer.Normalize(tag) == key {
				return tag
			}
		}
	}
	return key
}

// fuzzyCandidates lists the normalised fields eligible for the fuzzy bonus:
// symbol, name, and every tag. Category is deliberately excluded.
func fuzzyCandidates(a asset.Asset) []string {
	candidates := make([]string, 0, 2+len(a.Tags))
	candidates = append(candidates, tokenizer.Normalize(a.Symbol), tokenizer.Normalize(a.Name))
	for _, tag := range a.Tags {
		candidates = append(candidates, tokenizer.Normalize(tag))
	}
	return candidates
}

// boostConfig assembles the boost tables, normalising lookup keys and
// letting per-call overrides replace the configured tables wholesale.
func boostConfig(cfg config.SearchConfig, categoryOverride, typeOverride map[string]float64) scorer.BoostConfig {
	categories := cfg.CategoryBoosts
	if categoryOverride != nil {
		categories = categoryOverride
	}
	types := cfg.TypeBoosts
	if typeOverride != nil {
		types = typeOverride
	}
	return scorer.BoostConfig{
		CategoryBoosts: normalizeKeys(categories),
		TypeBoosts:     normalizeKeys(types),
		FavoriteWeight: cfg.FavoriteWeight,
		TrendingWeight: cfg.TrendingWeight,
		PopularWeight:  cfg.PopularWeight,
	}
}

func normalizeKeys(boosts map[string]float64) map[string]float64 {
	normalized := make(map[string]float64, len(boosts))
	for key, boost := range boosts {
		normalized[tokenizer.Normalize(key)] = boost
	}
	return normalized
}
