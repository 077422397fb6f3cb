package search

import (
	"sync"

	"github.com/velora-exchange/assetsearch/internal/asset"
	"github.com/velora-exchange/assetsearch/internal/index"
)

// Guard serialises access to an Engine for concurrent hosts. The engine and
// its store mutate several maps per operation and are single-writer by
// contract; Guard holds writes exclusive and lets reads run concurrently
// with each other.
type Guard struct {
	mu     sync.RWMutex
	engine *Engine
}

// NewGuard wraps an Engine for concurrent use.
func NewGuard(engine *Engine) *Guard {
	return &Guard{engine: engine}
}

// Build rebuilds the whole index under the write lock.
func (g *Guard) Build(assets []asset.Asset) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine.Build(assets)
}

// Add indexes one asset under the write lock.
func (g *Guard) Add(a asset.Asset) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine.Add(a)
}

// Update re-indexes one asset under the write lock.
func (g *Guard) Update(a asset.Asset) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine.Update(a)
}

// Remove drops one asset under the write lock.
func (g *Guard) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.engine.Remove(id)
}

// Destroy clears all index state under the write lock.
func (g *Guard) Destroy() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.engine.Destroy()
}

// Search runs a query under the read lock.
func (g *Guard) Search(query string, opts Options) []Result {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.engine.Search(query, opts)
}

// Suggest runs an autocomplete query under the read lock.
func (g *Guard) Suggest(query string, limit int) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.engine.Suggest(query, limit)
}

// PopularSearches runs the popular-search query under the read lock.
func (g *Guard) PopularSearches() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.engine.PopularSearches()
}

// Stats reads index statistics under the read lock.
func (g *Guard) Stats() index.Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.engine.Stats()
}
