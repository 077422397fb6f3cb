// Package asset defines the asset record consumed by the search index and
// the Kafka event schema used to keep the index in sync with the catalog.
package asset

import (
	"strings"

	apperrors "github.com/velora-exchange/assetsearch/pkg/errors"
)

// Asset is a tradable instrument as provided by the asset catalog. The
// search engine reads it and never mutates it.
type Asset struct {
	ID         string   `json:"id"`
	Symbol     string   `json:"symbol"`
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	Type       string   `json:"type"`
	Tags       []string `json:"tags"`
	IsFavorite bool     `json:"is_favorite"`
	Trending   bool     `json:"trending"`
	IsPopular  bool     `json:"is_popular"`
	IsActive   bool     `json:"is_active"`
}

// Validate rejects records that cannot be indexed. An asset needs at least a
// stable id and a symbol; every other field may be empty.
func Validate(a Asset) error {
	if strings.TrimSpace(a.ID) == "" {
		return apperrors.New(apperrors.ErrInvalidAsset, 400, "asset id is required")
	}
	if strings.TrimSpace(a.Symbol) == "" {
		return apperrors.Newf(apperrors.ErrInvalidAsset, 400, "asset %s: symbol is required", a.ID)
	}
	return nil
}
