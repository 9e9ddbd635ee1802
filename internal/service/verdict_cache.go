package service

import (
	"sync"

	"github.com/Aegis-Guard/Aegisguard/internal/domain/policy"
)

// DefaultVerdictCacheSize bounds the verdict cache when no size is
// configured.
const DefaultVerdictCacheSize = 64

// lruEntry is a doubly-linked list node for the LRU cache.
type lruEntry struct {
	key     uint64
	verdict policy.Verdict
	prev    *lruEntry
	next    *lruEntry
}

// VerdictCache provides bounded LRU caching for verifier verdicts, keyed by
// the valuation fingerprint. Thread-safe with Mutex (both Get and Put mutate
// LRU order).
type VerdictCache struct {
	mu      sync.Mutex
	entries map[uint64]*lruEntry
	head    *lruEntry // most recently used
	tail    *lruEntry // least recently used
	maxSize int
}

// NewVerdictCache creates an LRU cache with the given max size. Non-positive
// sizes fall back to DefaultVerdictCacheSize.
func NewVerdictCache(maxSize int) *VerdictCache {
	if maxSize <= 0 {
		maxSize = DefaultVerdictCacheSize
	}
	return &VerdictCache{
		entries: make(map[uint64]*lruEntry, maxSize),
		maxSize: maxSize,
	}
}

// Get retrieves a cached verdict. Returns (verdict, true) on hit, (zero,
// false) on miss. On hit, the entry is promoted to the head.
func (c *VerdictCache) Get(key uint64) (policy.Verdict, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.moveToHeadLocked(e)
		return e.verdict, true
	}
	return policy.Verdict{}, false
}

// Put stores a verdict. If at capacity, the least recently used entry is
// evicted.
func (c *VerdictCache) Put(key uint64, verdict policy.Verdict) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.verdict = verdict
		c.moveToHeadLocked(e)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictTailLocked()
	}

	e := &lruEntry{key: key, verdict: verdict}
	c.entries[key] = e
	c.pushHeadLocked(e)
}

// Clear empties the cache. Called whenever the installed rule sets change.
func (c *VerdictCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*lruEntry, c.maxSize)
	c.head = nil
	c.tail = nil
}

// Size returns the current cache size.
func (c *VerdictCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// moveToHeadLocked moves an existing entry to the head. Must be called with
// the lock held.
func (c *VerdictCache) moveToHeadLocked(e *lruEntry) {
	if c.head == e {
		return
	}
	c.unlinkLocked(e)
	c.pushHeadLocked(e)
}

// pushHeadLocked inserts an entry at the head. Must be called with the lock
// held.
func (c *VerdictCache) pushHeadLocked(e *lruEntry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

// unlinkLocked removes an entry from the linked list. Must be called with
// the lock held.
func (c *VerdictCache) unlinkLocked(e *lruEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

// evictTailLocked removes the least recently used entry. Must be called with
// the lock held.
func (c *VerdictCache) evictTailLocked() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlinkLocked(c.tail)
}
