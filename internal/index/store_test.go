package index

import (
	"errors"
	"reflect"
	"testing"

	"github.com/velora-exchange/assetsearch/internal/asset"
	apperrors "github.com/velora-exchange/assetsearch/pkg/errors"
)

func sampleAssets() []asset.Asset {
	return []asset.Asset{
		{
			ID:       "btc-usdt",
			Symbol:   "BTC/USDT",
			Name:     "Bitcoin",
			Category: "Layer1",
			Type:     "crypto",
			Tags:     []string{"store-of-value", "pow"},
			IsActive: true,
		},
		{
			ID:       "eth-usdt",
			Symbol:   "ETH/USDT",
			Name:     "Ethereum",
			Category: "Layer1",
			Type:     "crypto",
			Tags:     []string{"smart-contracts", "defi"},
			IsActive: true,
		},
		{
			ID:       "uni-usdt",
			Symbol:   "UNI/USDT",
			Name:     "Uniswap",
			Category: "DeFi",
			Type:     "crypto",
			Tags:     []string{"defi", "dex"},
			IsActive: true,
		},
	}
}

func TestBuildIndexesAllFields(t *testing.T) {
	s := NewStore(2)
	if err := s.Build(sampleAssets()); err != nil {
		t.Fatalf("Build: %v", err)
	}

	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	stats := s.Stats()
	if stats.SymbolKeys != 3 {
		t.Errorf("SymbolKeys = %d, want 3", stats.SymbolKeys)
	}
	// Layer1 is shared by two assets.
	if stats.CategoryKeys != 2 {
		t.Errorf("CategoryKeys = %d, want 2", stats.CategoryKeys)
	}
	// store-of-value, pow, smart-contracts, defi, dex.
	if stats.TagKeys != 5 {
		t.Errorf("TagKeys = %d, want 5", stats.TagKeys)
	}

	entry, ok := s.Entry("btc-usdt")
	if !ok {
		t.Fatal("entry btc-usdt missing from master map")
	}
	if entry.SearchableText != "btc usdt bitcoin layer1 store of value pow" {
		t.Errorf("SearchableText = %q", entry.SearchableText)
	}
}

func TestBuildRebuildIdentical(t *testing.T) {
	s := NewStore(2)
	assets := sampleAssets()
	if err := s.Build(assets); err != nil {
		t.Fatalf("first Build: %v", err)
	}
	first := s.Stats()
	if err := s.Build(assets); err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if second := s.Stats(); !reflect.DeepEqual(first, second) {
		t.Errorf("rebuild changed stats: %+v vs %+v", first, second)
	}
}

func TestBuildRejectsInvalidBeforeMutating(t *testing.T) {
	s := NewStore(2)
	if err := s.Build(sampleAssets()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	before := s.Stats()

	bad := append(sampleAssets(), asset.Asset{ID: "no-symbol"})
	err := s.Build(bad)
	if !errors.Is(err, apperrors.ErrInvalidAsset) {
		t.Fatalf("Build error = %v, want ErrInvalidAsset", err)
	}
	if after := s.Stats(); !reflect.DeepEqual(before, after) {
		t.Errorf("failed Build mutated the index: %+v vs %+v", before, after)
	}
}

func TestAddValidation(t *testing.T) {
	s := NewStore(2)
	tests := []struct {
		name string
		a    asset.Asset
	}{
		{"missing_id", asset.Asset{Symbol: "BTC/USDT"}},
		{"missing_symbol", asset.Asset{ID: "btc-usdt"}},
		{"blank_symbol", asset.Asset{ID: "btc-usdt", Symbol: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Add(tt.a); !errors.Is(err, apperrors.ErrInvalidAsset) {
				t.Errorf("Add error = %v, want ErrInvalidAsset", err)
			}
		})
	}
	if s.Len() != 0 {
		t.Errorf("rejected adds left %d entries", s.Len())
	}
}

func TestAddDeduplicatesTags(t *testing.T) {
	s := NewStore(2)
	a := asset.Asset{
		ID:     "btc-usdt",
		Symbol: "BTC/USDT",
		Tags:   []string{"DeFi", "defi", "de-fi"},
	}
	if err := s.Add(a); err != nil {
		t.Fatalf("Add: %v", err)
	}
	// "DeFi" and "defi" normalise identically; "de-fi" becomes "de fi".
	if got := s.KeyCount(FieldTag); got != 2 {
		t.Errorf("TagKeys = %d, want 2", got)
	}
	var ids []string
	s.ForEachKey(FieldTag, func(key string, keyIDs []string) {
		if key == "defi" {
			ids = keyIDs
		}
	})
	if len(ids) != 1 {
		t.Errorf("defi posting list = %v, want single id", ids)
	}
}

func TestRemove(t *testing.T) {
	s := NewStore(2)
	if err := s.Build(sampleAssets()); err != nil {
		t.Fatalf("Build: %v", err)
	}

	s.Remove("uni-usdt")
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if _, ok := s.Entry("uni-usdt"); ok {
		t.Error("removed entry still in master map")
	}
	// "dex" was only used by uniswap; "defi" is still held by ethereum.
	s.ForEachKey(FieldTag, func(key string, ids []string) {
		if key == "dex" {
			t.Errorf("emptied tag key %q survived removal", key)
		}
		for _, id := range ids {
			if id == "uni-usdt" {
				t.Errorf("removed id still listed under tag %q", key)
			}
		}
	})
	if got := s.KeyCount(FieldCategory); got != 1 {
		t.Errorf("CategoryKeys = %d, want 1", got)
	}
}

func TestRemoveAbsentIsNoOp(t *testing.T) {
	s := NewStore(2)
	if err := s.Build(sampleAssets()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	before := s.Stats()
	s.Remove("does-not-exist")
	if after := s.Stats(); !reflect.DeepEqual(before, after) {
		t.Errorf("Remove of absent id mutated index: %+v vs %+v", before, after)
	}
}

func TestUpdateLeavesNoStaleKeys(t *testing.T) {
	s := NewStore(2)
	if err := s.Build(sampleAssets()); err != nil {
		t.Fatalf("Build: %v", err)
	}

	updated := asset.Asset{
		ID:       "uni-usdt",
		Symbol:   "UNI/USDC",
		Name:     "Uniswap v3",
		Category: "AMM",
		Type:     "crypto",
		Tags:     []string{"amm"},
		IsActive: true,
	}
	if err := s.Update(updated); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	s.ForEachKey(FieldSymbol, func(key string, ids []string) {
		if key == "uni usdt" {
			t.Errorf("stale symbol key %q survived update", key)
		}
	})
	s.ForEachKey(FieldTag, func(key string, ids []string) {
		if key == "dex" || key == "defi" {
			for _, id := range ids {
				if id == "uni-usdt" {
					t.Errorf("stale tag %q still references updated id", key)
				}
			}
		}
	})
	entry, ok := s.Entry("uni-usdt")
	if !ok {
		t.Fatal("updated entry missing")
	}
	if entry.Asset.Symbol != "UNI/USDC" {
		t.Errorf("entry symbol = %q, want UNI/USDC", entry.Asset.Symbol)
	}
}

func TestUpdateAbsentActsAsAdd(t *testing.T) {
	s := NewStore(2)
	a := asset.Asset{ID: "sol-usdt", Symbol: "SOL/USDT", Name: "Solana", IsActive: true}
	if err := s.Update(a); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestClear(t *testing.T) {
	s := NewStore(2)
	if err := s.Build(sampleAssets()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	s.Clear()
	stats := s.Stats()
	if stats.Entries != 0 || stats.SymbolKeys != 0 || stats.NameKeys != 0 ||
		stats.CategoryKeys != 0 || stats.TagKeys != 0 {
		t.Errorf("Clear left state behind: %+v", stats)
	}
}

func TestEntryWeightCompounds(t *testing.T) {
	s := NewStore(2)
	a := asset.Asset{
		ID:         "btc-usdt",
		Symbol:     "BTC/USDT",
		IsFavorite: true,
		Trending:   true,
		IsPopular:  true,
		IsActive:   true,
	}
	if err := s.Add(a); err != nil {
		t.Fatalf("Add: %v", err)
	}
	entry, _ := s.Entry("btc-usdt")
	want := 1.5 * 1.3 * 1.2
	if diff := entry.Weight - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Weight = %f, want %f", entry.Weight, want)
	}
}
