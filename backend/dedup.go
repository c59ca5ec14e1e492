package backend

import "sync"

// DuplicateCache remembers the last N request ids in insertion order.
// It is a membership filter for webhook redeliveries, not a durable log:
// once N newer ids have been added, the oldest id is forgotten.
type DuplicateCache struct {
	mu    sync.Mutex
	ring  []int64
	next  int
	full  bool
	index map[int64]struct{}
}

// NewDuplicateCache creates a cache holding up to size ids.
func NewDuplicateCache(size int) *DuplicateCache {
	if size <= 0 {
		size = DefaultDedupSize
	}
	return &DuplicateCache{
		ring:  make([]int64, size),
		index: make(map[int64]struct{}, size),
	}
}

// CheckAndAdd reports whether id was already present. A new id is recorded
// before returning, so concurrent callers see exactly one false per id.
func (c *DuplicateCache) CheckAndAdd(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index[id]; ok {
		return true
	}

	if c.full {
		delete(c.index, c.ring[c.next])
	}
	c.ring[c.next] = id
	c.index[id] = struct{}{}
	c.next++
	if c.next == len(c.ring) {
		c.next = 0
		c.full = true
	}
	return false
}

// Contains reports membership without recording.
func (c *DuplicateCache) Contains(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.index[id]
	return ok
}

// Len returns the number of ids currently remembered.
func (c *DuplicateCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}
