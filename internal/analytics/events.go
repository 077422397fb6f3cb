// Package analytics publishes search telemetry events to Kafka for
// downstream aggregation. Publishing is buffered and best-effort; a full
// buffer drops events rather than blocking the query path.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventSuggest    EventType = "suggest"
	EventZeroResult EventType = "zero_result"
)

// SearchEvent describes one completed query.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Returned  int       `json:"returned"`
	TopSymbol string    `json:"top_symbol,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Fuzzy     bool      `json:"fuzzy"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}
