package ssz

import "sync"

// FieldCache memoizes per-field Merkle subtrees keyed by structural identity
// (a field index into the owning container). Invalidating a field drops
// only its own cached root, leaving every other field's cached root
// untouched. This cache is the single
// largest performance lever during replay: it lets process_slots re-derive
// a state's root across many slots without rehashing
// validators/balances/randao mixes that did not change.
//
// The cache is a plain map rather than a tree structure: each distinct
// beacon-state or beacon-block value owns one FieldCache, and "ancestor"
// invalidation is expressed by the caller invalidating the dependent
// composite fields explicitly, using the field indices in
// consensus-types/state/fields.go.
type FieldCache struct {
	mu    sync.Mutex
	roots map[int][32]byte
	valid map[int]bool
}

// NewFieldCache returns an empty cache.
func NewFieldCache() *FieldCache {
	return &FieldCache{
		roots: make(map[int][32]byte),
		valid: make(map[int]bool),
	}
}

// Get returns the cached root for field and true if it is still valid.
func (c *FieldCache) Get(field int) ([32]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid[field] {
		return [32]byte{}, false
	}
	return c.roots[field], true
}

// Set stores root as the current value for field and marks it valid.
func (c *FieldCache) Set(field int, root [32]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roots[field] = root
	c.valid[field] = true
}

// Invalidate marks field (and only field — ancestors must be invalidated by
// the caller explicitly) as stale, forcing the next Get to miss.
func (c *FieldCache) Invalidate(field int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid[field] = false
}

// Copy returns an independent cache with the same entries, used when a
// state is copy-on-write cloned: the clone starts with every field still
// valid (nothing has mutated yet) but mutating the clone must never affect
// the original's cache.
func (c *FieldCache) Copy() *FieldCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	cpy := NewFieldCache()
	for k, v := range c.roots {
		cpy.roots[k] = v
	}
	for k, v := range c.valid {
		cpy.valid[k] = v
	}
	return cpy
}
