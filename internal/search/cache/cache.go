// Package cache provides a Redis-backed query-result cache for the search
// engine. Identical concurrent misses are collapsed with singleflight, and
// every index mutation invalidates the whole keyspace.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/velora-exchange/assetsearch/internal/index/tokenizer"
	"github.com/velora-exchange/assetsearch/internal/search"
	"github.com/velora-exchange/assetsearch/pkg/config"
	pkgredis "github.com/velora-exchange/assetsearch/pkg/redis"
)

const keyPrefix = "assetsearch:"

type QueryCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, query string, opts search.Options) ([]search.Result, bool) {
	key := c.buildKey(query, opts)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if pkgredis.IsNilError(err) {
			c.misses.Add(1)
			return nil, false
		}
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	var results []search.Result
	if err := json.Unmarshal([]byte(data), &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", query, "key", key)
	return results, true
}

func (c *QueryCache) Set(ctx context.Context, query string, opts search.Options, results []search.Result) {
	key := c.buildKey(query, opts)
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	opts search.Options,
	computeFn func() []search.Result,
) ([]search.Result, bool) {
	if results, ok := c.Get(ctx, query, opts); ok {
		return results, true
	}
	key := c.buildKey(query, opts)
	val, _, _ := c.group.Do(key, func() (interface{}, error) {
		if results, ok := c.Get(ctx, query, opts); ok {
			return results, nil
		}
		results := computeFn()
		c.Set(ctx, query, opts, results)
		return results, nil
	})
	return val.([]search.Result), false
}

func (c *QueryCache) Invalidate(ctx context.Context) error {
	pattern := keyPrefix + "*"
	deleted, err := c.client.FlushByPattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// buildKey hashes the normalised query together with every option that can
// change the result set, so distinct option combinations never collide.
func (c *QueryCache) buildKey(query string, opts search.Options) string {
	raw := fmt.Sprintf("%s|limit=%d|min=%g|inactive=%t|fuzzy=%t",
		tokenizer.Normalize(query),
		opts.Limit,
		opts.MinScore,
		opts.IncludeInactive,
		!opts.DisableFuzzy,
	)
	raw += boostKeyPart("cb", opts.CategoryBoost)
	raw += boostKeyPart("tb", opts.TypeBoost)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func boostKeyPart(prefix string, boosts map[string]float64) string {
	if len(boosts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(boosts))
	for key := range boosts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var part string
	for _, key := range keys {
		part += fmt.Sprintf("|%s:%s=%g", prefix, key, boosts[key])
	}
	return part
}
