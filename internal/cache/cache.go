// Package cache is a two-tier response cache for LLM answers: an
// in-process L1 map plus an optional redis L2. L1 additionally supports
// a semantic fallback that matches paraphrased queries by embedding
// similarity, guarded by action/entity conflict checks.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smartxdr/core/internal/embeddings"
)

// EmbedFunc maps a query to its embedding vector.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

type entry struct {
	Response      string    `json:"response"`
	OriginalQuery string    `json:"original_query"`
	CreatedAt     time.Time `json:"created_at"`

	// only kept in L1, never serialized to L2
	embedding []float32
}

// Options configure a ResponseCache.
type Options struct {
	TTL time.Duration

	// Redis enables the L2 tier when non-nil. The cache stays correct
	// without it.
	Redis redis.Cmdable

	// Semantic enables the embedding-similarity fallback on L1.
	Semantic            bool
	SimilarityThreshold float32
	Embed               EmbedFunc

	Logger *slog.Logger
}

// ResponseCache is safe for concurrent use.
type ResponseCache struct {
	mu sync.RWMutex
	l1 map[string]entry

	rdb       redis.Cmdable
	ttl       time.Duration
	semantic  bool
	threshold float32
	embed     EmbedFunc
	logger    *slog.Logger

	hits   int64
	misses int64

	now func() time.Time
}

// New creates a ResponseCache.
func New(opts Options) *ResponseCache {
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = 0.85
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ResponseCache{
		l1:        make(map[string]entry),
		rdb:       opts.Redis,
		ttl:       opts.TTL,
		semantic:  opts.Semantic && opts.Embed != nil,
		threshold: opts.SimilarityThreshold,
		embed:     opts.Embed,
		logger:    opts.Logger,
		now:       time.Now,
	}
}

const l2Prefix = "smartxdr:cache:"

// Get looks up a cached response: L1 exact, then L2 exact (promoting
// into L1), then the semantic L1 scan when query is non-empty.
func (c *ResponseCache) Get(ctx context.Context, key, query string) (string, bool) {
	if resp, ok := c.getL1(key); ok {
		c.count(true)
		return resp, true
	}

	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, l2Prefix+key).Result()
		if err == nil {
			var e entry
			if json.Unmarshal([]byte(raw), &e) == nil {
				c.mu.Lock()
				c.l1[key] = e
				c.mu.Unlock()
				c.count(true)
				return e.Response, true
			}
		} else if err != redis.Nil {
			c.logger.Debug("l2 cache read failed", "error", err)
		}
	}

	if c.semantic && query != "" {
		if resp, ok := c.semanticLookup(ctx, query); ok {
			c.count(true)
			return resp, true
		}
	}

	c.count(false)
	return "", false
}

// Set stores a response under key. The embedding is computed only for
// L1; L2 holds the plain entry. Failures degrade to a smaller cache.
func (c *ResponseCache) Set(ctx context.Context, key, response, query string) {
	e := entry{
		Response:      response,
		OriginalQuery: query,
		CreatedAt:     c.now(),
	}
	if c.semantic && query != "" {
		vec, err := c.embed(ctx, query)
		if err != nil {
			c.logger.Debug("cache embedding failed", "error", err)
		} else {
			e.embedding = vec
		}
	}

	c.mu.Lock()
	c.l1[key] = e
	c.mu.Unlock()

	if c.rdb != nil {
		raw, err := json.Marshal(e)
		if err == nil {
			if err := c.rdb.SetEx(ctx, l2Prefix+key, raw, c.ttl).Err(); err != nil {
				c.logger.Debug("l2 cache write failed", "error", err)
			}
		}
	}
}

// Stats reports hit/miss counters and the live L1 size.
func (c *ResponseCache) Stats() (hits, misses int64, l1Size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, len(c.l1)
}

// Clear drops L1 and the cache's keyspace in L2.
func (c *ResponseCache) Clear(ctx context.Context) {
	c.mu.Lock()
	c.l1 = make(map[string]entry)
	c.mu.Unlock()

	if c.rdb != nil {
		keys, err := c.rdb.Keys(ctx, l2Prefix+"*").Result()
		if err == nil && len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				c.logger.Debug("l2 cache clear failed", "error", err)
			}
		}
	}
}

func (c *ResponseCache) getL1(key string) (string, bool) {
	c.mu.RLock()
	e, ok := c.l1[key]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if c.now().Sub(e.CreatedAt) > c.ttl {
		c.mu.Lock()
		delete(c.l1, key)
		c.mu.Unlock()
		return "", false
	}
	return e.Response, true
}

// semanticLookup embeds the query and scans L1 for the closest cached
// entry. A candidate above the similarity threshold is still rejected
// when its original query conflicts with the current one on actions or
// entities (asking to block a different IP must not reuse an answer
// about the first).
func (c *ResponseCache) semanticLookup(ctx context.Context, query string) (string, bool) {
	vec, err := c.embed(ctx, query)
	if err != nil {
		c.logger.Debug("semantic cache disabled for call", "error", err)
		return "", false
	}

	c.mu.RLock()
	var best entry
	bestSim := -2.0
	now := c.now()
	for _, e := range c.l1 {
		if len(e.embedding) == 0 || now.Sub(e.CreatedAt) > c.ttl {
			continue
		}
		sim := embeddings.CosineSimilarity(vec, e.embedding)
		if sim > bestSim {
			bestSim = sim
			best = e
		}
	}
	c.mu.RUnlock()

	if bestSim < float64(c.threshold) {
		return "", false
	}
	if hasActionConflict(query, best.OriginalQuery) {
		return "", false
	}
	if hasEntityConflict(query, best.OriginalQuery) {
		return "", false
	}
	return best.Response, true
}

func (c *ResponseCache) count(hit bool) {
	c.mu.Lock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
}
