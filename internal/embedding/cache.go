package embedding

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rcliao/tiered-memory/internal/store"
)

// DefaultCacheSize bounds the in-memory cache.
const DefaultCacheSize = 1000

// CacheOptions configures a Cache.
type CacheOptions struct {
	MaxSize int
	// Timeout bounds a single provider call. Zero means no extra bound.
	Timeout time.Duration
	// Backing persists vectors across restarts. Optional.
	Backing store.EmbeddingCacheStore
	Logger  zerolog.Logger
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Size   int   `json:"size"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Cache is a content-hash keyed Embedder wrapper. On overflow it drops the
// oldest half of its entries by insertion order in one pass.
type Cache struct {
	provider Embedder
	opts     CacheOptions
	logger   zerolog.Logger

	mu      sync.RWMutex
	entries map[string]Vector
	order   []string
	hits    int64
	misses  int64
}

// NewCache wraps provider with a bounded cache.
func NewCache(provider Embedder, opts CacheOptions) *Cache {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultCacheSize
	}
	return &Cache{
		provider: provider,
		opts:     opts,
		logger:   opts.Logger.With().Str("component", "embedding_cache").Logger(),
		entries:  make(map[string]Vector),
	}
}

// Embed returns the cached vector for text, computing it on a miss.
func (c *Cache) Embed(ctx context.Context, text string) (Vector, error) {
	text = Truncate(text)
	hash := ContentHash(text)

	if v, ok := c.lookup(hash); ok {
		return v, nil
	}

	if c.opts.Backing != nil {
		v, ok, err := c.opts.Backing.GetCachedEmbedding(ctx, hash)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to read persistent embedding cache")
		} else if ok {
			c.insert(hash, v)
			return v, nil
		}
	}

	if c.provider == nil {
		return nil, ErrNoEmbedding
	}

	callCtx := ctx
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	v, err := c.provider.Embed(callCtx, text)
	if err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return nil, ErrNoEmbedding
	}

	c.insert(hash, v)
	if c.opts.Backing != nil {
		if err := c.opts.Backing.PutCachedEmbedding(ctx, hash, v); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to persist embedding")
		}
	}
	return v, nil
}

// Dims reports the provider's dimensionality, or 0 without a provider.
func (c *Cache) Dims() int {
	if c.provider == nil {
		return 0
	}
	return c.provider.Dims()
}

// Enabled reports whether a provider is configured.
func (c *Cache) Enabled() bool {
	return c.provider != nil
}

func (c *Cache) lookup(hash string) (Vector, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[hash]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

func (c *Cache) insert(hash string, v Vector) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[hash]; ok {
		c.entries[hash] = v
		return
	}
	if len(c.entries) >= c.opts.MaxSize {
		drop := len(c.order) / 2
		if drop == 0 {
			drop = len(c.order)
		}
		for _, k := range c.order[:drop] {
			delete(c.entries, k)
		}
		c.order = append([]string(nil), c.order[drop:]...)
	}
	c.entries[hash] = v
	c.order = append(c.order, hash)
}

// Len returns the number of cached vectors.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns size and hit/miss counters.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{Size: len(c.entries), Hits: c.hits, Misses: c.misses}
}

// Reset drops every in-memory entry and zeroes the counters.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Vector)
	c.order = nil
	c.hits, c.misses = 0, 0
}
