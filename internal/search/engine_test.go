package search

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/velora-exchange/assetsearch/internal/asset"
	"github.com/velora-exchange/assetsearch/internal/index"
	"github.com/velora-exchange/assetsearch/pkg/config"
)

func newTestEngine(t *testing.T, assets []asset.Asset) *Engine {
	t.Helper()
	store := index.NewStore(2)
	engine := NewEngine(store, config.DefaultSearchConfig())
	if err := engine.Build(assets); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return engine
}

func tradingAssets() []asset.Asset {
	return []asset.Asset{
		{
			ID: "btc-usdt", Symbol: "BTC/USDT", Name: "Bitcoin",
			Category: "Layer1", Type: "crypto",
			Tags: []string{"store-of-value"}, IsActive: true,
		},
		{
			ID: "eth-usdt", Symbol: "ETH/USDT", Name: "Ethereum",
			Category: "Layer1", Type: "crypto",
			Tags: []string{"smart-contracts", "defi"}, IsActive: true,
		},
		{
			ID: "uni-usdt", Symbol: "UNI/USDT", Name: "Uniswap",
			Category: "DeFi", Type: "crypto",
			Tags: []string{"defi", "dex"}, IsActive: true,
		},
	}
}

func TestSearchSymbolMatch(t *testing.T) {
	e := newTestEngine(t, tradingAssets())
	results := e.Search("btc", Options{})
	if len(results) == 0 {
		t.Fatal("no results for btc")
	}
	top := results[0]
	if top.Asset.ID != "btc-usdt" {
		t.Errorf("top result = %s, want btc-usdt", top.Asset.ID)
	}
	if top.MatchType != "symbol" {
		t.Errorf("MatchType = %q, want symbol", top.MatchType)
	}
	if top.MatchText != "BTC/USDT" {
		t.Errorf("MatchText = %q, want BTC/USDT", top.MatchText)
	}
}

func TestSearchNameMatch(t *testing.T) {
	e := newTestEngine(t, tradingAssets())
	results := e.Search("bitcoin", Options{})
	if len(results) == 0 {
		t.Fatal("no results for bitcoin")
	}
	if results[0].Asset.ID != "btc-usdt" || results[0].MatchType != "name" {
		t.Errorf("got %s/%s, want btc-usdt/name", results[0].Asset.ID, results[0].MatchType)
	}
}

func TestSearchShortQueryReturnsNothing(t *testing.T) {
	e := newTestEngine(t, tradingAssets())
	for _, q := range []string{"", "a", "b!", "  "} {
		if results := e.Search(q, Options{}); len(results) != 0 {
			t.Errorf("Search(%q) returned %d results, want 0", q, len(results))
		}
	}
	if results := e.Search("bt", Options{}); len(results) == 0 {
		t.Error("two-rune query returned no results")
	}
}

func TestSearchDampedMultiFieldMerge(t *testing.T) {
	e := newTestEngine(t, []asset.Asset{{
		ID: "dfi-usdt", Symbol: "DFI/USDT", Name: "DeFi Index",
		Category: "DeFi", Tags: []string{"defi"}, IsActive: true,
	}})
	results := e.Search("defi", Options{DisableFuzzy: true})
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	// Name seeds (prefix 0.8 + token 0.3, capped, x5 = 5.0), category adds
	// damped (1.0 x3 x0.5 = 1.5), tag adds damped (1.0 x2 x0.3 = 0.6),
	// then the defi category boost: (5.0+1.5+0.6) * 1.3.
	want := 7.1 * 1.3
	if math.Abs(results[0].Score-want) > 1e-9 {
		t.Errorf("Score = %f, want %f", results[0].Score, want)
	}
	if results[0].MatchType != "name" {
		t.Errorf("MatchType = %q, want name (highest-priority matching field)", results[0].MatchType)
	}
}

func TestSearchFavoriteOutranksIdenticalMatch(t *testing.T) {
	e := newTestEngine(t, []asset.Asset{
		{ID: "foo-usdc", Symbol: "FOO/USDC", IsActive: true},
		{ID: "foo-usdt", Symbol: "FOO/USDT", IsFavorite: true, IsActive: true},
	})
	results := e.Search("foo", Options{})
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Asset.ID != "foo-usdt" {
		t.Errorf("favorite not ranked first: %s", results[0].Asset.ID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("favorite score %f not above %f", results[0].Score, results[1].Score)
	}
}

func TestSearchFuzzyThresholdBoundary(t *testing.T) {
	query := strings.Repeat("a", 100)
	// Both assets surface through an exact category match; their symbols sit
	// just above and just below the 0.7 similarity threshold. Categories are
	// excluded from fuzzy candidates so they cannot mask the symbols.
	atThreshold := strings.Repeat("a", 70) + strings.Repeat("b", 30)
	belowThreshold := strings.Repeat("a", 69) + strings.Repeat("b", 31)
	e := newTestEngine(t, []asset.Asset{
		{ID: "asset-a", Symbol: atThreshold, Name: "First Listing", Category: query, IsActive: true},
		{ID: "asset-b", Symbol: belowThreshold, Name: "Second Listing", Category: query, IsActive: true},
	})

	results := e.Search(query, Options{})
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Asset.ID != "asset-a" {
		t.Fatalf("amplified asset not first: %s", results[0].Asset.ID)
	}
	// Similarity 0.70 earns the bonus 1 + 0.70*0.2 = 1.14; 0.69 earns none.
	ratio := results[0].Score / results[1].Score
	if math.Abs(ratio-1.14) > 1e-9 {
		t.Errorf("score ratio = %f, want 1.14", ratio)
	}
}

func TestSearchDisableFuzzy(t *testing.T) {
	e := newTestEngine(t, []asset.Asset{
		{ID: "sol-usdt", Symbol: "SOL/USDT", Name: "Solana", IsActive: true},
	})
	fuzzy := e.Search("solana", Options{})
	plain := e.Search("solana", Options{DisableFuzzy: true})
	if len(fuzzy) != 1 || len(plain) != 1 {
		t.Fatalf("got %d/%d results, want 1/1", len(fuzzy), len(plain))
	}
	// Name matches exactly, so the fuzzy similarity is 1.0 and the bonus 1.2.
	ratio := fuzzy[0].Score / plain[0].Score
	if math.Abs(ratio-1.2) > 1e-9 {
		t.Errorf("fuzzy/plain ratio = %f, want 1.2", ratio)
	}
}

func TestSearchExcludesInactive(t *testing.T) {
	assets := tradingAssets()
	assets[0].IsActive = false
	e := newTestEngine(t, assets)

	if results := e.Search("btc", Options{}); len(results) != 0 {
		t.Errorf("inactive asset surfaced: %d results", len(results))
	}
	results := e.Search("btc", Options{IncludeInactive: true})
	if len(results) != 1 || results[0].Asset.ID != "btc-usdt" {
		t.Errorf("IncludeInactive did not surface the asset: %v", results)
	}
}

func TestSearchMinScoreFilters(t *testing.T) {
	e := newTestEngine(t, []asset.Asset{
		{ID: "gala-usdt", Symbol: "GALA/USDT", Name: "Gala", Tags: []string{"gaming"}, IsActive: true},
	})
	// A tag-only match scores 1.0 x2 = 2.0 before bonuses.
	if results := e.Search("gaming", Options{DisableFuzzy: true}); len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results := e.Search("gaming", Options{DisableFuzzy: true, MinScore: 5}); len(results) != 0 {
		t.Errorf("MinScore 5 did not filter a 2.0 match")
	}
}

func TestSearchLimit(t *testing.T) {
	e := newTestEngine(t, tradingAssets())
	results := e.Search("usdt", Options{Limit: 1})
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

func TestSearchDeterministicTieBreak(t *testing.T) {
	e := newTestEngine(t, []asset.Asset{
		{ID: "bar-2", Symbol: "BAR/USDT", IsActive: true},
		{ID: "bar-1", Symbol: "BAR/USDT", IsActive: true},
	})
	for i := 0; i < 10; i++ {
		results := e.Search("bar", Options{})
		if len(results) != 2 {
			t.Fatalf("got %d results, want 2", len(results))
		}
		if results[0].Asset.ID != "bar-1" || results[1].Asset.ID != "bar-2" {
			t.Fatalf("tie not broken by ascending id: %s, %s",
				results[0].Asset.ID, results[1].Asset.ID)
		}
	}
}

func TestSearchCategoryBoostOverride(t *testing.T) {
	e := newTestEngine(t, []asset.Asset{
		{ID: "pepe-usdt", Symbol: "PEPE/USDT", Name: "Pepe", Category: "Meme", IsActive: true},
	})
	base := e.Search("pepe", Options{DisableFuzzy: true})
	boosted := e.Search("pepe", Options{
		DisableFuzzy:  true,
		CategoryBoost: map[string]float64{"meme": 3.0},
	})
	if len(base) != 1 || len(boosted) != 1 {
		t.Fatalf("got %d/%d results, want 1/1", len(base), len(boosted))
	}
	// Default meme boost is 1.1; the override replaces the table wholesale.
	ratio := boosted[0].Score / base[0].Score
	if math.Abs(ratio-3.0/1.1) > 1e-9 {
		t.Errorf("override ratio = %f, want %f", ratio, 3.0/1.1)
	}
}

func TestRemoveThenSearch(t *testing.T) {
	e := newTestEngine(t, tradingAssets())
	e.Remove("btc-usdt")
	if results := e.Search("btc", Options{}); len(results) != 0 {
		t.Errorf("removed asset still searchable: %d results", len(results))
	}
	// Other assets are untouched.
	if results := e.Search("eth", Options{}); len(results) == 0 {
		t.Error("unrelated asset lost after removal")
	}
}

func TestRemoveAddRoundTrip(t *testing.T) {
	assets := tradingAssets()
	e := newTestEngine(t, assets)
	e.Remove("btc-usdt")
	if err := e.Add(assets[0]); err != nil {
		t.Fatalf("Add: %v", err)
	}
	results := e.Search("btc", Options{})
	if len(results) != 1 || results[0].Asset.ID != "btc-usdt" {
		t.Errorf("round trip lost the asset: %v", results)
	}
}

func TestUpdateChangesRanking(t *testing.T) {
	assets := tradingAssets()
	e := newTestEngine(t, assets)

	updated := assets[0]
	updated.Symbol = "XBT/USDT"
	if err := e.Update(updated); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if results := e.Search("xbt", Options{}); len(results) != 1 {
		t.Fatalf("updated symbol not searchable: %d results", len(results))
	}
	for _, r := range e.Search("btc", Options{}) {
		if r.MatchType == "symbol" && r.Asset.ID == "btc-usdt" {
			t.Error("stale symbol still matches after update")
		}
	}
}

func TestDestroy(t *testing.T) {
	e := newTestEngine(t, tradingAssets())
	e.Destroy()
	if stats := e.Stats(); stats.Entries != 0 {
		t.Errorf("Destroy left %d entries", stats.Entries)
	}
	if results := e.Search("btc", Options{}); len(results) != 0 {
		t.Errorf("Destroy left searchable state: %d results", len(results))
	}
}

func TestSuggest(t *testing.T) {
	e := newTestEngine(t, tradingAssets())
	got := e.Suggest("et", 10)
	want := []string{"ETH/USDT", "Ethereum"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Suggest(et) = %v, want %v", got, want)
	}
}

func TestSuggestLimitAndInactive(t *testing.T) {
	assets := tradingAssets()
	assets[1].IsActive = false
	e := newTestEngine(t, assets)

	if got := e.Suggest("et", 10); len(got) != 0 {
		t.Errorf("inactive asset produced suggestions: %v", got)
	}
	if got := e.Suggest("un", 1); len(got) != 1 {
		t.Errorf("limit 1 returned %d suggestions", len(got))
	}
	if got := e.Suggest("", 10); len(got) != 0 {
		t.Errorf("empty query produced suggestions: %v", got)
	}
}

func TestPopularSearches(t *testing.T) {
	e := newTestEngine(t, []asset.Asset{
		{ID: "a1", Symbol: "ZZZ", IsPopular: true, Trending: true, IsActive: true},
		{ID: "a2", Symbol: "AAA", IsPopular: true, IsActive: true},
		{ID: "a3", Symbol: "MMM", Trending: true, IsActive: true},
		{ID: "a4", Symbol: "BBB", IsActive: true},
		{ID: "a5", Symbol: "CCC", IsPopular: true, Trending: true},
	})
	got := e.PopularSearches()
	// Doubly-flagged assets lead; single flags follow alphabetically;
	// inactive and unflagged assets never appear.
	want := []string{"ZZZ", "AAA", "MMM"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PopularSearches() = %v, want %v", got, want)
	}
}

func TestPopularSearchesCap(t *testing.T) {
	assets := make([]asset.Asset, 0, 15)
	for i := 0; i < 15; i++ {
		assets = append(assets, asset.Asset{
			ID:        string(rune('a'+i)) + "-id",
			Symbol:    strings.Repeat(string(rune('A'+i)), 3),
			IsPopular: true,
			IsActive:  true,
		})
	}
	e := newTestEngine(t, assets)
	if got := e.PopularSearches(); len(got) != 10 {
		t.Errorf("PopularSearches() returned %d symbols, want 10", len(got))
	}
}

func TestGuardDelegates(t *testing.T) {
	store := index.NewStore(2)
	guard := NewGuard(NewEngine(store, config.DefaultSearchConfig()))
	if err := guard.Build(tradingAssets()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if results := guard.Search("btc", Options{}); len(results) == 0 {
		t.Error("guarded search returned nothing")
	}
	guard.Remove("btc-usdt")
	if results := guard.Search("btc", Options{}); len(results) != 0 {
		t.Error("guarded remove did not take effect")
	}
	if stats := guard.Stats(); stats.Entries != 2 {
		t.Errorf("Stats().Entries = %d, want 2", stats.Entries)
	}
}
