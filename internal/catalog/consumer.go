package catalog

import (
	"context"
	"log/slog"

	"github.com/velora-exchange/assetsearch/internal/asset"
	"github.com/velora-exchange/assetsearch/internal/search"
	"github.com/velora-exchange/assetsearch/pkg/kafka"
	"github.com/velora-exchange/assetsearch/pkg/metrics"
)

// Invalidator drops cached query results after an index mutation. The query
// cache satisfies it; a nil Invalidator disables invalidation.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// HandleEvent returns a Kafka MessageHandler that applies catalog change
// events to the guarded engine: upserts re-index, deletes remove. Malformed
// messages and invalid assets are logged and skipped, never retried.
func HandleEvent(guard *search.Guard, cache Invalidator, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "catalog-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[asset.Event](value)
		if err != nil {
			logger.Error("failed to decode asset event",
				"error", err,
				"key", string(key),
			)
			return nil
		}

		switch event.Type {
		case asset.EventUpsert:
			if err := guard.Update(event.Asset); err != nil {
				logger.Error("failed to index asset",
					"asset_id", event.Asset.ID,
					"error", err,
				)
				return nil
			}
			if m != nil {
				m.AssetsIndexedTotal.WithLabelValues("update").Inc()
			}
			logger.Info("asset indexed", "asset_id", event.Asset.ID)
		case asset.EventDelete:
			guard.Remove(event.AssetID)
			if m != nil {
				m.AssetsIndexedTotal.WithLabelValues("remove").Inc()
			}
			logger.Info("asset removed", "asset_id", event.AssetID)
		default:
			logger.Warn("unknown asset event type", "type", string(event.Type))
			return nil
		}

		if m != nil {
			stats := guard.Stats()
			m.SetIndexGauges(stats.Entries, stats.SymbolKeys, stats.NameKeys,
				stats.CategoryKeys, stats.TagKeys)
		}
		if cache != nil {
			if err := cache.Invalidate(ctx); err != nil {
				logger.Error("cache invalidation failed", "error", err)
			}
		}
		return nil
	}
}
