// Package catalog integrates the external asset catalog with the search
// index: a PostgreSQL loader for full rebuilds and a Kafka consumer for
// incremental maintenance.
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/velora-exchange/assetsearch/internal/asset"
	"github.com/velora-exchange/assetsearch/pkg/postgres"
)

// Store reads asset records from the catalog database.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewStore creates a Store over the given database client.
func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "catalog"),
	}
}

// LoadAssets fetches every asset in the catalog, ordered by id so repeated
// loads produce identical Build inputs.
func (s *Store) LoadAssets(ctx context.Context) ([]asset.Asset, error) {
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT id, symbol, name, category, type, tags,
		       is_favorite, trending, is_popular, is_active
		FROM assets
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying assets: %w", err)
	}
	defer rows.Close()

	assets := make([]asset.Asset, 0)
	for rows.Next() {
		var a asset.Asset
		if err := rows.Scan(
			&a.ID, &a.Symbol, &a.Name, &a.Category, &a.Type,
			pq.Array(&a.Tags),
			&a.IsFavorite, &a.Trending, &a.IsPopular, &a.IsActive,
		); err != nil {
			return nil, fmt.Errorf("scanning asset row: %w", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating asset rows: %w", err)
	}
	s.logger.Info("catalog loaded", "assets", len(assets))
	return assets, nil
}
