// Package cache implements the Discovery Cache (C3): a bounded in-memory
// tier-1 with singleflight-coalesced misses, backed by a durable tier-2
// key-value store. Grounded on the otterscale-agent DiscoveryCache's
// singleflight + injectable-clock pattern, generalized from a single
// schema cache to the discovery core's two-tier contract.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	dtypes "paperlink-discovery/internal/discovery/types"
)

// DurableKV is the tier-2 durable key-value collaborator required by
// spec §6: get/put/delete/scan_by_status/scan_older_than. Only get/put/
// delete are needed by the cache; the scan operations are part of the
// task substrate's own KVStore interface (see internal/discovery/task),
// which NATSKV satisfies as well.
type DurableKV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

const (
	defaultMaxEntries = 1000
	defaultTTL        = 24 * time.Hour
)

type entry struct {
	value      dtypes.CachedDiscoveryResult
	expiresAt  time.Time
	lastUsedAt time.Time
}

// Stats is the read-only snapshot returned by stats().
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithClock injects a custom time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithMaxEntries overrides the tier-1 size cap.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithTTL overrides the default write-TTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// Cache is the two-tier Discovery Cache.
type Cache struct {
	durable    DurableKV
	logger     *slog.Logger
	now        func() time.Time
	maxEntries int
	ttl        time.Duration

	mu      sync.RWMutex
	entries map[string]*entry
	flights singleflight.Group

	statsMu sync.Mutex
	hits    int64
	misses  int64
	evicts  int64
}

// New creates a Cache. durable may be nil, in which case the cache
// degrades to tier-1-only operation (per the failure semantics in §4.3).
func New(durable DurableKV, logger *slog.Logger, opts ...Option) *Cache {
	c := &Cache{
		durable:    durable,
		logger:     logger,
		now:        time.Now,
		maxEntries: defaultMaxEntries,
		ttl:        defaultTTL,
		entries:    make(map[string]*entry),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Key builds the cache key from a paper id and a configuration, per
// spec's `hash(paper_id || stable_serialization(configuration))`.
func Key(paperID string, cfg dtypes.DiscoveryConfiguration) string {
	sources := make([]string, 0, len(cfg.SourcesEnabled))
	for _, s := range cfg.SourcesEnabled {
		sources = append(sources, string(s))
	}
	sort.Strings(sources)

	fp := struct {
		Mode              string   `json:"mode"`
		Sources           []string `json:"sources"`
		MaxPerSource      int      `json:"max_per_source"`
		MaxTotal          int      `json:"max_total"`
		MinRelevance      float64  `json:"min_relevance"`
		DiversityLevel    string   `json:"diversity_level"`
		Timeout           int64    `json:"timeout_ns"`
		Parallel          bool     `json:"parallel"`
		EnableAISynthesis bool     `json:"enable_ai_synthesis"`
	}{
		Mode:              string(cfg.Mode),
		Sources:           sources,
		MaxPerSource:      cfg.MaxPerSource,
		MaxTotal:          cfg.MaxTotal,
		MinRelevance:      cfg.MinRelevance,
		DiversityLevel:    string(cfg.DiversityLevel),
		Timeout:           int64(cfg.Timeout),
		Parallel:          cfg.Parallel,
		EnableAISynthesis: cfg.EnableAISynthesis,
	}
	b, _ := json.Marshal(fp)

	h := sha256.New()
	h.Write([]byte(paperID))
	h.Write([]byte("||"))
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a cached result, or (zero, false) on miss. A hit updates
// hit_count and LRU recency; expired entries are treated as misses and
// evicted.
func (c *Cache) Get(ctx context.Context, key string) (dtypes.CachedDiscoveryResult, bool) {
	now := c.now()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			c.mu.Unlock()
			c.recordMiss()
			c.evictDurable(ctx, key)
			return dtypes.CachedDiscoveryResult{}, false
		}
		e.value.HitCount++
		e.lastUsedAt = now
		result := e.value
		c.mu.Unlock()
		c.recordHit()
		return result, true
	}
	c.mu.Unlock()

	if c.durable == nil {
		c.recordMiss()
		return dtypes.CachedDiscoveryResult{}, false
	}

	v, err, _ := c.flights.Do(key, func() (interface{}, error) {
		raw, found, err := c.durable.Get(ctx, key)
		if err != nil || !found {
			return nil, err
		}
		var cached dtypes.CachedDiscoveryResult
		if err := json.Unmarshal(raw, &cached); err != nil {
			return nil, err
		}
		return &cached, nil
	})
	if err != nil {
		c.logger.Warn("tier-2 cache read failed, degrading to tier-1-only", slog.String("error", err.Error()))
		c.recordMiss()
		return dtypes.CachedDiscoveryResult{}, false
	}
	if v == nil {
		c.recordMiss()
		return dtypes.CachedDiscoveryResult{}, false
	}

	cached := v.(*dtypes.CachedDiscoveryResult)
	if cached.Expired(now) {
		c.recordMiss()
		return dtypes.CachedDiscoveryResult{}, false
	}
	cached.HitCount++

	c.mu.Lock()
	c.insertLocked(key, *cached, now)
	c.mu.Unlock()

	c.recordHit()
	return *cached, true
}

// Put always writes to both tiers; a tier-2 fault is logged but not fatal.
func (c *Cache) Put(ctx context.Context, key string, result dtypes.UnifiedDiscoveryResult) {
	now := c.now()
	cached := dtypes.CachedDiscoveryResult{
		Result:   result,
		StoredAt: now,
		TTL:      c.ttl,
	}

	c.mu.Lock()
	c.insertLocked(key, cached, now)
	c.mu.Unlock()

	if c.durable == nil {
		return
	}
	raw, err := json.Marshal(cached)
	if err != nil {
		c.logger.Warn("failed to serialize cache entry for tier-2", slog.String("error", err.Error()))
		return
	}
	if err := c.durable.Put(ctx, key, raw, c.ttl); err != nil {
		c.logger.Warn("tier-2 cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Invalidate removes the key from both tiers.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	c.evictDurable(ctx, key)
}

// Stats returns the current cache statistics.
func (c *Cache) Stats() Stats {
	c.statsMu.Lock()
	hits, misses, evicts := c.hits, c.misses, c.evicts
	c.statsMu.Unlock()

	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()

	return Stats{Hits: hits, Misses: misses, Evictions: evicts, Size: size}
}

// insertLocked enforces the size cap via eager eviction of expired
// entries, then plain LRU eviction of the least-recently-used entry if
// still at capacity. Caller must hold c.mu.
func (c *Cache) insertLocked(key string, value dtypes.CachedDiscoveryResult, now time.Time) {
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictExpiredLocked(now)
	}
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLRULocked()
	}
	c.entries[key] = &entry{value: value, expiresAt: now.Add(value.TTL), lastUsedAt: now}
}

func (c *Cache) evictExpiredLocked(now time.Time) {
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			c.statsMu.Lock()
			c.evicts++
			c.statsMu.Unlock()
		}
	}
}

func (c *Cache) evictLRULocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range c.entries {
		if first || e.lastUsedAt.Before(oldest) {
			oldestKey = k
			oldest = e.lastUsedAt
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.statsMu.Lock()
		c.evicts++
		c.statsMu.Unlock()
	}
}

func (c *Cache) evictDurable(ctx context.Context, key string) {
	if c.durable == nil {
		return
	}
	if err := c.durable.Delete(ctx, key); err != nil {
		c.logger.Warn("tier-2 cache delete failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (c *Cache) recordHit() {
	c.statsMu.Lock()
	c.hits++
	c.statsMu.Unlock()
}

func (c *Cache) recordMiss() {
	c.statsMu.Lock()
	c.misses++
	c.statsMu.Unlock()
}

// normalizeKeyPart is used by callers that build extra key fragments
// (none currently needed beyond Key, kept for parity with title
// normalization used elsewhere in dedup).
func normalizeKeyPart(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
