// Package api exposes the search engine over HTTP: query endpoints, index
// maintenance endpoints, and cache administration.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/velora-exchange/assetsearch/internal/analytics"
	"github.com/velora-exchange/assetsearch/internal/asset"
	"github.com/velora-exchange/assetsearch/internal/catalog"
	"github.com/velora-exchange/assetsearch/internal/search"
	"github.com/velora-exchange/assetsearch/internal/search/cache"
	"github.com/velora-exchange/assetsearch/pkg/config"
	apperrors "github.com/velora-exchange/assetsearch/pkg/errors"
	"github.com/velora-exchange/assetsearch/pkg/logger"
	"github.com/velora-exchange/assetsearch/pkg/metrics"
	"github.com/velora-exchange/assetsearch/pkg/tracing"
)

// SearchResponse is the JSON body returned by the search endpoint.
type SearchResponse struct {
	Query     string          `json:"query"`
	Total     int             `json:"total"`
	Results   []search.Result `json:"results"`
	LatencyMs int64           `json:"latency_ms"`
}

// Handler serves the asset search HTTP API. Cache, collector, catalog, and
// metrics are all optional; a nil dependency disables its feature.
type Handler struct {
	guard     *search.Guard
	cache     *cache.QueryCache
	collector *analytics.Collector
	catalog   *catalog.Store
	metrics   *metrics.Metrics
	cfg       config.SearchConfig
	logger    *slog.Logger
}

func New(
	guard *search.Guard,
	queryCache *cache.QueryCache,
	collector *analytics.Collector,
	catalogStore *catalog.Store,
	m *metrics.Metrics,
	cfg config.SearchConfig,
) *Handler {
	return &Handler{
		guard:     guard,
		cache:     queryCache,
		collector: collector,
		catalog:   catalogStore,
		metrics:   m,
		cfg:       cfg,
		logger:    logger.WithComponent("api"),
	}
}

// Register attaches all routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/suggest", h.Suggest)
	mux.HandleFunc("GET /api/v1/popular", h.Popular)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("PUT /api/v1/assets", h.UpsertAsset)
	mux.HandleFunc("DELETE /api/v1/assets/{id}", h.DeleteAsset)
	mux.HandleFunc("POST /api/v1/reindex", h.Reindex)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	opts, err := h.parseOptions(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, span := tracing.StartSpan(ctx, "search", logger.RequestIDFromContext(ctx))
	var results []search.Result
	cacheHit := false
	if h.cache != nil {
		results, cacheHit = h.cache.GetOrCompute(ctx, query, opts, func() []search.Result {
			return h.guard.Search(query, opts)
		})
	} else {
		results = h.guard.Search(query, opts)
	}
	span.SetAttr("query", query)
	span.SetAttr("results", len(results))
	span.SetAttr("cache_hit", cacheHit)
	span.End()

	latencyMs := time.Since(start).Milliseconds()
	log.Info("search completed",
		"query", query,
		"returned", len(results),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	h.recordSearchMetrics(results, cacheHit, time.Since(start))

	if h.collector != nil {
		eventType := analytics.EventSearch
		if len(results) == 0 {
			eventType = analytics.EventZeroResult
		}
		event := analytics.SearchEvent{
			Type:      eventType,
			Query:     query,
			Returned:  len(results),
			LatencyMs: latencyMs,
			CacheHit:  cacheHit,
			Fuzzy:     !opts.DisableFuzzy,
			Timestamp: time.Now().UTC(),
			RequestID: logger.RequestIDFromContext(ctx),
		}
		if len(results) > 0 {
			event.TopSymbol = results[0].Asset.Symbol
		}
		h.collector.Track(event)
	}

	h.writeJSON(w, http.StatusOK, SearchResponse{
		Query:     query,
		Total:     len(results),
		Results:   results,
		LatencyMs: latencyMs,
	})
}

func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if h.metrics != nil {
		h.metrics.SuggestQueriesTotal.Inc()
	}
	start := time.Now()
	suggestions := h.guard.Suggest(query, limit)
	if h.collector != nil {
		h.collector.Track(analytics.SearchEvent{
			Type:      analytics.EventSuggest,
			Query:     query,
			Returned:  len(suggestions),
			LatencyMs: time.Since(start).Milliseconds(),
			Timestamp: time.Now().UTC(),
			RequestID: logger.RequestIDFromContext(r.Context()),
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"query":       query,
		"suggestions": suggestions,
	})
}

func (h *Handler) Popular(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"symbols": h.guard.PopularSearches(),
	})
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.guard.Stats())
}

func (h *Handler) UpsertAsset(w http.ResponseWriter, r *http.Request) {
	var a asset.Asset
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid asset JSON")
		return
	}
	if err := h.guard.Update(a); err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	if h.metrics != nil {
		h.metrics.AssetsIndexedTotal.WithLabelValues("update").Inc()
	}
	h.recordIndexGauges()
	h.invalidateCache(r.Context())
	h.writeJSON(w, http.StatusOK, map[string]string{
		"asset_id": a.ID,
		"status":   "indexed",
	})
}

func (h *Handler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "asset id is required")
		return
	}
	h.guard.Remove(id)
	if h.metrics != nil {
		h.metrics.AssetsIndexedTotal.WithLabelValues("remove").Inc()
	}
	h.recordIndexGauges()
	h.invalidateCache(r.Context())
	h.writeJSON(w, http.StatusOK, map[string]string{
		"asset_id": id,
		"status":   "removed",
	})
}

func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		h.writeError(w, http.StatusServiceUnavailable, "catalog is not configured")
		return
	}
	assets, err := h.catalog.LoadAssets(r.Context())
	if err != nil {
		h.logger.Error("catalog load failed", "error", err)
		h.recordRebuild("error")
		h.writeError(w, http.StatusServiceUnavailable, "catalog load failed")
		return
	}
	if err := h.guard.Build(assets); err != nil {
		h.logger.Error("index rebuild failed", "error", err)
		h.recordRebuild("error")
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	h.recordRebuild("ok")
	h.recordIndexGauges()
	h.invalidateCache(r.Context())
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "rebuilt",
		"indexed": len(assets),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// parseOptions reads the optional search query parameters.
func (h *Handler) parseOptions(r *http.Request) (search.Options, error) {
	opts := search.Options{}
	q := r.URL.Query()

	if limitStr := q.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			return opts, fmt.Errorf("limit must be a positive integer")
		}
		if h.cfg.MaxResults > 0 && parsed > h.cfg.MaxResults {
			parsed = h.cfg.MaxResults
		}
		opts.Limit = parsed
	}
	if minScoreStr := q.Get("min_score"); minScoreStr != "" {
		parsed, err := strconv.ParseFloat(minScoreStr, 64)
		if err != nil || parsed < 0 {
			return opts, fmt.Errorf("min_score must be a non-negative number")
		}
		opts.MinScore = parsed
	}
	if inactiveStr := q.Get("include_inactive"); inactiveStr != "" {
		parsed, err := strconv.ParseBool(inactiveStr)
		if err != nil {
			return opts, fmt.Errorf("include_inactive must be a boolean")
		}
		opts.IncludeInactive = parsed
	}
	if fuzzyStr := q.Get("fuzzy"); fuzzyStr != "" {
		parsed, err := strconv.ParseBool(fuzzyStr)
		if err != nil {
			return opts, fmt.Errorf("fuzzy must be a boolean")
		}
		opts.DisableFuzzy = !parsed
	}
	return opts, nil
}

func (h *Handler) recordSearchMetrics(results []search.Result, cacheHit bool, elapsed time.Duration) {
	if h.metrics == nil {
		return
	}
	resultType := "hit"
	if len(results) == 0 {
		resultType = "zero_result"
	}
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	}
	if h.cache != nil {
		if cacheHit {
			h.metrics.CacheHitsTotal.Inc()
		} else {
			h.metrics.CacheMissesTotal.Inc()
		}
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	h.metrics.SearchResultsCount.Observe(float64(len(results)))
}

func (h *Handler) recordIndexGauges() {
	if h.metrics == nil {
		return
	}
	stats := h.guard.Stats()
	h.metrics.SetIndexGauges(stats.Entries, stats.SymbolKeys, stats.NameKeys,
		stats.CategoryKeys, stats.TagKeys)
}

func (h *Handler) recordRebuild(status string) {
	if h.metrics != nil {
		h.metrics.RebuildsTotal.WithLabelValues(status).Inc()
	}
}

func (h *Handler) invalidateCache(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
