// Package cache stores search results in Redis keyed by the compiled
// query's display string, so differently written queries that compile to
// the same tree share one entry. Concurrent misses for the same key are
// collapsed with singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-dialect/pkg/redis"
)

const keyPrefix = "search:"

// Backend is the subset of the Redis client the cache needs.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	client         Backend
	cfg            config.RedisConfig
	group          singleflight.Group
	computeTimeout time.Duration
	metrics        *metrics.Metrics
	logger         *slog.Logger
	hits           atomic.Int64
	misses         atomic.Int64
}

// New returns a cache over client. m may be nil.
func New(client Backend, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		client:  client,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get looks up the result for the compiled query display string. Backend
// failures are logged and reported as misses.
func (c *QueryCache) Get(ctx context.Context, query string, limit int) (*executor.SearchResult, bool) {
	key := BuildKey(query, limit)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "query", query, "key", key)
	return &result, true
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *QueryCache) Set(ctx context.Context, query string, limit int, result *executor.SearchResult) {
	key := BuildKey(query, limit)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// WithComputeTimeout bounds each shared computation GetOrCompute starts.
// Without it the computation keeps the deadline of the caller that started
// it.
func (c *QueryCache) WithComputeTimeout(d time.Duration) *QueryCache {
	c.computeTimeout = d
	return c
}

// GetOrCompute returns the cached result or runs computeFn once per key no
// matter how many callers miss at the same time. The bool reports a hit.
//
// computeFn runs on a context detached from the caller that started it, so
// one caller going away does not fail the others waiting on the same key.
// Each caller still stops waiting when its own ctx is done.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	limit int,
	computeFn func(ctx context.Context) (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, query, limit); ok {
		return result, true, nil
	}
	key := BuildKey(query, limit)
	ch := c.group.DoChan(key, func() (any, error) {
		cctx, cancel := c.computeContext(ctx)
		defer cancel()
		result, err := computeFn(cctx)
		if err != nil {
			return nil, err
		}
		c.Set(cctx, query, limit, result)
		return result, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*executor.SearchResult), false, nil
	}
}

func (c *QueryCache) computeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if c.computeTimeout > 0 {
		return context.WithTimeout(detached, c.computeTimeout)
	}
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(detached, deadline)
	}
	return context.WithCancel(detached)
}

// Invalidate drops every cached search result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BuildKey derives the Redis key for a compiled query and result limit.
func BuildKey(query string, limit int) string {
	raw := fmt.Sprintf("%s|limit=%d", query, limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
