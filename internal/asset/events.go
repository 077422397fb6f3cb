package asset

import "time"

// EventType discriminates catalog change events on the asset topic.
type EventType string

const (
	EventUpsert EventType = "upsert"
	EventDelete EventType = "delete"
)

// Event is the Kafka message payload published by the catalog whenever an
// asset is created, updated, or delisted.
type Event struct {
	Type      EventType `json:"type"`
	AssetID   string    `json:"asset_id"`
	Asset     Asset     `json:"asset,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
