// Package cache is the two-tier cache between the orchestrator and the
// provider adapters: a byte-budgeted in-memory hot tier with LRU eviction in
// front of a persistent cold tier (the kvstore collaborator). All mutation of
// the memory index goes through the Manager; nothing else touches it.
package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"venuehub/internal/kvstore"
	"venuehub/internal/platform/metrics"
)

// Stats is the rolling cache health snapshot exposed via diagnostics.
type Stats struct {
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	HitRate       float64 `json:"hit_rate"`
	Evictions     uint64  `json:"evictions"`
	MemoryEntries int     `json:"memory_entries"`
	MemoryBytes   int64   `json:"memory_bytes"`
	MemoryBudget  int64   `json:"memory_budget"`
}

// Manager owns both tiers. Memory is bounded by budgetBytes; every write
// goes through to the cold store, and hot population depends on priority and
// serialized size.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List // front = most recently used
	bytes   int64
	budget  int64

	hits      uint64
	misses    uint64
	evictions uint64

	cold    kvstore.Store
	flight  singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewManager builds a cache over the given cold store.
func NewManager(cold kvstore.Store, budgetBytes int64, m *metrics.Metrics, logger *slog.Logger) *Manager {
	return &Manager{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		budget:  budgetBytes,
		cold:    cold,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns the cached value for key, checking memory first and falling
// back to the cold tier. A cold entry read more than promoteThreshold times
// is promoted into memory.
func (c *Manager) Get(ctx context.Context, key string) ([]byte, bool) {
	now := c.now()

	c.mu.Lock()
	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*Entry)
		if entry.Expired(now) {
			c.removeLocked(elem)
		} else {
			entry.AccessCount++
			entry.LastAccess = now
			c.lru.MoveToFront(elem)
			c.hits++
			c.mu.Unlock()
			if c.metrics != nil {
				c.metrics.IncCacheHit("memory")
			}
			return entry.Value, true
		}
	}
	c.mu.Unlock()

	entry, err := c.coldGet(ctx, key)
	if err != nil {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.IncCacheMiss()
		}
		return nil, false
	}

	entry.AccessCount++
	entry.LastAccess = now
	if entry.AccessCount > promoteThreshold {
		c.admit(entry)
	}
	// Persist the bumped access count so promotion survives restarts.
	if err := c.coldSet(ctx, entry); err != nil {
		c.logger.WarnContext(ctx, "cold tier write-back failed", "key", key, "error", err)
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.IncCacheHit("persistent")
	}
	return entry.Value, true
}

// Set writes value through to the cold tier and populates memory when the
// priority is high or the value is small enough to be a cheap hot hit.
func (c *Manager) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string, priority Priority) error {
	if ttl <= 0 {
		return fmt.Errorf("cache set %q: ttl must be positive", key)
	}

	entry := &Entry{
		Key:        key,
		Value:      value,
		CreatedAt:  c.now(),
		TTL:        ttl,
		Tags:       tags,
		Priority:   priority,
		LastAccess: c.now(),
	}

	if err := c.coldSet(ctx, entry); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}

	if priority == PriorityHigh || int64(len(value)) < smallObjectBytes {
		c.admit(entry)
	}
	return nil
}

// GetOrFetch returns the cached value or runs fetch, caching its result.
// Concurrent callers for the same key are collapsed into one fetch.
func (c *Manager) GetOrFetch(ctx context.Context, key string, class Class, tags []string, fetch func(ctx context.Context) ([]byte, error)) ([]byte, bool, error) {
	if val, ok := c.Get(ctx, key); ok {
		return val, true, nil
	}

	val, err, _ := c.flight.Do(key, func() (any, error) {
		// Re-check: another caller may have filled the key while this one
		// waited on the flight group.
		if cached, ok := c.Get(ctx, key); ok {
			return cached, nil
		}
		fetched, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Set(ctx, key, fetched, TTLFor(class), tags, PriorityNormal); err != nil {
			c.logger.WarnContext(ctx, "cache fill failed", "key", key, "error", err)
		}
		return fetched, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]byte), false, nil
}

// Delete removes key from both tiers.
func (c *Manager) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
	c.mu.Unlock()
	return c.cold.Delete(ctx, key)
}

// InvalidateByTag removes every entry in both tiers whose tag set contains
// tag. Used to flush everything cached from one provider after a
// configuration reload.
func (c *Manager) InvalidateByTag(ctx context.Context, tag string) (int, error) {
	removed := 0

	c.mu.Lock()
	for _, elem := range c.entries {
		if elem.Value.(*Entry).HasTag(tag) {
			c.removeLocked(elem)
			removed++
		}
	}
	c.mu.Unlock()

	keys, err := c.cold.ListKeys(ctx, "")
	if err != nil {
		return removed, fmt.Errorf("invalidate tag %q: %w", tag, err)
	}
	for _, key := range keys {
		entry, err := c.coldGet(ctx, key)
		if err != nil {
			continue
		}
		if entry.HasTag(tag) {
			if err := c.cold.Delete(ctx, key); err != nil {
				return removed, fmt.Errorf("invalidate tag %q: %w", tag, err)
			}
			removed++
		}
	}
	return removed, nil
}

// FlushHot writes every live memory entry through to the cold tier. Called
// on graceful shutdown so a restart starts warm.
func (c *Manager) FlushHot(ctx context.Context) error {
	c.mu.Lock()
	entries := make([]*Entry, 0, len(c.entries))
	now := c.now()
	for _, elem := range c.entries {
		entry := elem.Value.(*Entry)
		if !entry.Expired(now) {
			entries = append(entries, entry)
		}
	}
	c.mu.Unlock()

	for _, entry := range entries {
		if err := c.coldSet(ctx, entry); err != nil {
			return fmt.Errorf("flush hot tier: %w", err)
		}
	}
	return nil
}

// Stats returns the current cache health counters.
func (c *Manager) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	var rate float64
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		HitRate:       rate,
		Evictions:     c.evictions,
		MemoryEntries: len(c.entries),
		MemoryBytes:   c.bytes,
		MemoryBudget:  c.budget,
	}
}

// admit inserts an entry into the memory tier, evicting least-recently-used
// entries until the byte budget holds.
func (c *Manager) admit(entry *Entry) {
	size := entry.size()
	if size > c.budget {
		return // larger than the whole tier, keep it cold
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[entry.Key]; ok {
		c.removeLocked(elem)
	}

	for c.bytes+size > c.budget && c.lru.Len() > 0 {
		oldest := c.lru.Back()
		c.removeLocked(oldest)
		c.evictions++
		if c.metrics != nil {
			c.metrics.IncCacheEviction()
		}
	}

	elem := c.lru.PushFront(entry)
	c.entries[entry.Key] = elem
	c.bytes += size
}

// removeLocked unlinks an element from both the map and the LRU list.
// Caller holds c.mu.
func (c *Manager) removeLocked(elem *list.Element) {
	entry := elem.Value.(*Entry)
	delete(c.entries, entry.Key)
	c.lru.Remove(elem)
	c.bytes -= entry.size()
}

func (c *Manager) coldGet(ctx context.Context, key string) (*Entry, error) {
	raw, err := c.cold.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode cold entry %q: %w", key, err)
	}
	if entry.Expired(c.now()) {
		return nil, kvstore.ErrNotFound
	}
	return &entry, nil
}

func (c *Manager) coldSet(ctx context.Context, entry *Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cold entry %q: %w", entry.Key, err)
	}
	rem := entry.Remaining(c.now())
	if rem <= 0 {
		return nil
	}
	return c.cold.Set(ctx, entry.Key, raw, rem)
}
