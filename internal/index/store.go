// Package index implements the in-memory asset index: four inverted indices
// (symbol, name, category, tag) plus a master map from asset id to its
// derived entry. The store owns all five structures; consistency between
// them is maintained entirely inside this package.
//
// The store is deliberately unsynchronised. Mutations touch several maps in
// sequence, so callers must serialise writers and keep readers from
// interleaving with them (see search.Guard).
package index

import (
	"fmt"
	"strings"

	"github.com/velora-exchange/assetsearch/internal/asset"
	"github.com/velora-exchange/assetsearch/internal/index/tokenizer"
)

// Field identifies one of the four inverted indices, in match-priority
// order: symbol outranks name, name outranks category, category outranks tag.
type Field int

const (
	FieldSymbol Field = iota
	FieldName
	FieldCategory
	FieldTag
	numFields
)

// Fields lists all indexed fields in match-priority order.
var Fields = [...]Field{FieldSymbol, FieldName, FieldCategory, FieldTag}

func (f Field) String() string {
	switch f {
	case FieldSymbol:
		return "symbol"
	case FieldName:
		return "name"
	case FieldCategory:
		return "category"
	case FieldTag:
		return "tag"
	default:
		return "unknown"
	}
}

// Entry is the derived, per-asset index record. SearchableText and Tokens
// are recomputed on every add; Weight compounds the status-flag multipliers
// once at creation.
type Entry struct {
	ID             string
	Asset          asset.Asset
	SearchableText string
	Tokens         []string
	Weight         float64
}

// Status-flag multipliers folded into Entry.Weight at index time.
const (
	favoriteEntryWeight = 1.5
	trendingEntryWeight = 1.3
	popularEntryWeight  = 1.2
)

// Stats reports index sizes for observability.
type Stats struct {
	Entries         int     `json:"entries"`
	SymbolKeys      int     `json:"symbol_keys"`
	NameKeys        int     `json:"name_keys"`
	CategoryKeys    int     `json:"category_keys"`
	TagKeys         int     `json:"tag_keys"`
	AvgTokensPerDoc float64 `json:"avg_tokens_per_entry"`
}

// Store holds the master map and the four inverted indices.
type Store struct {
	entries     map[string]*Entry
	inverted    [numFields]map[string][]string
	minTokenLen int
}

// NewStore creates an empty Store. minTokenLen of zero or less falls back to
// tokenizer.MinTokenLength.
func NewStore(minTokenLen int) *Store {
	if minTokenLen <= 0 {
		minTokenLen = tokenizer.MinTokenLength
	}
	s := &Store{minTokenLen: minTokenLen}
	s.Clear()
	return s
}

// MinTokenLength returns the minimum token length the store indexes with.
func (s *Store) MinTokenLength() int {
	return s.minTokenLen
}

// Clear empties the master map and all four inverted indices.
func (s *Store) Clear() {
	s.entries = make(map[string]*Entry)
	for f := range s.inverted {
		s.inverted[f] = make(map[string][]string)
	}
}

// Build clears the store and indexes every asset in order. Records missing
// an id or symbol are rejected before any mutation, so a failed Build leaves
// the previous index intact. Rebuilding from the same input yields identical
// index state.
func (s *Store) Build(assets []asset.Asset) error {
	for i, a := range assets {
		if err := asset.Validate(a); err != nil {
			return fmt.Errorf("asset %d: %w", i, err)
		}
	}
	s.Clear()
	for _, a := range assets {
		if err := s.Add(a); err != nil {
			return err
		}
	}
	return nil
}

// Add derives an Entry for the asset and inserts it into the master map and
// each inverted index. Callers re-indexing an existing id must Remove it
// first; Add does not de-duplicate.
func (s *Store) Add(a asset.Asset) error {
	if err := asset.Validate(a); err != nil {
		return err
	}

	searchable := tokenizer.Normalize(strings.Join(append([]string{a.Symbol, a.Name, a.Category}, a.Tags...), " "))
	entry := &Entry{
		ID:             a.ID,
		Asset:          a,
		SearchableText: searchable,
		Tokens:         tokenizer.Tokenize(searchable, s.minTokenLen),
		Weight:         entryWeight(a),
	}
	s.entries[a.ID] = entry

	s.insert(FieldSymbol, a.Symbol, a.ID)
	s.insert(FieldName, a.Name, a.ID)
	s.insert(FieldCategory, a.Category, a.ID)
	seen := make(map[string]struct{}, len(a.Tags))
	for _, tag := range a.Tags {
		key := tokenizer.Normalize(tag)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		s.inverted[FieldTag][key] = append(s.inverted[FieldTag][key], a.ID)
	}
	return nil
}

// Remove deletes the asset from the master map and from every inverted-index
// key derived from the entry's (possibly stale) field values. Keys whose id
// list becomes empty are deleted. Removing an absent id is a no-op.
func (s *Store) Remove(id string) {
	entry, ok := s.entries[id]
	if !ok {
		return
	}
	delete(s.entries, id)

	a := entry.Asset
	s.erase(FieldSymbol, a.Symbol, id)
	s.erase(FieldName, a.Name, id)
	s.erase(FieldCategory, a.Category, id)
	for _, tag := range a.Tags {
		s.erase(FieldTag, tag, id)
	}
}

// Update re-indexes the asset under its current field values. It is exactly
// Remove followed by Add, so no stale inverted-index entries can survive.
func (s *Store) Update(a asset.Asset) error {
	if err := asset.Validate(a); err != nil {
		return err
	}
	s.Remove(a.ID)
	return s.Add(a)
}

// Entry returns the index entry for id.
func (s *Store) Entry(id string) (*Entry, bool) {
	entry, ok := s.entries[id]
	return entry, ok
}

// Len returns the number of indexed assets.
func (s *Store) Len() int {
	return len(s.entries)
}

// KeyCount returns the number of keys in one inverted index.
func (s *Store) KeyCount(f Field) int {
	return len(s.inverted[f])
}

// ForEachKey calls fn for every key of the given inverted index. Iteration
// order is unspecified; callers needing determinism must sort.
func (s *Store) ForEachKey(f Field, fn func(key string, ids []string)) {
	for key, ids := range s.inverted[f] {
		fn(key, ids)
	}
}

// ForEachEntry calls fn for every entry in the master map.
func (s *Store) ForEachEntry(fn func(*Entry)) {
	for _, entry := range s.entries {
		fn(entry)
	}
}

// Stats returns entry and key counts plus the average token count per entry.
func (s *Store) Stats() Stats {
	stats := Stats{
		Entries:      len(s.entries),
		SymbolKeys:   len(s.inverted[FieldSymbol]),
		NameKeys:     len(s.inverted[FieldName]),
		CategoryKeys: len(s.inverted[FieldCategory]),
		TagKeys:      len(s.inverted[FieldTag]),
	}
	if len(s.entries) > 0 {
		total := 0
		for _, entry := range s.entries {
			total += len(entry.Tokens)
		}
		stats.AvgTokensPerDoc = float64(total) / float64(len(s.entries))
	}
	return stats
}

func (s *Store) insert(f Field, value, id string) {
	key := tokenizer.Normalize(value)
	if key == "" {
		return
	}
	s.inverted[f][key] = append(s.inverted[f][key], id)
}

func (s *Store) erase(f Field, value, id string) {
	key := tokenizer.Normalize(value)
	if key == "" {
		return
	}
	ids := s.inverted[f][key]
	for i, candidate := range ids {
		if candidate == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s.inverted[f], key)
	} else {
		s.inverted[f][key] = ids
	}
}

func entryWeight(a asset.Asset) float64 {
	weight := 1.0
	if a.IsFavorite {
		weight *= favoriteEntryWeight
	}
	if a.Trending {
		weight *= trendingEntryWeight
	}
	if a.IsPopular {
		weight *= popularEntryWeight
	}
	return weight
}
