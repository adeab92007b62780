package transition

import (
	"sync"

	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
)

// SkipSlotCache memoizes (preStateRoot, targetSlot) -> post-state for the
// common case of repeatedly advancing the same pre-state to the same empty
// target slot, e.g. many attestations in one block all targeting the first
// slot of the same epoch.
type SkipSlotCache struct {
	mu      sync.Mutex
	entries map[skipSlotKey]*state.BeaconState
	// disabled lets callers (e.g. a block's own process_slots call, which
	// must never read a cached future state it hasn't produced itself)
	// bypass the cache entirely without tearing it down.
	disabled bool
}

type skipSlotKey struct {
	root [32]byte
	slot ssztypes.Slot
}

// NewSkipSlotCache returns an empty cache.
func NewSkipSlotCache() *SkipSlotCache {
	return &SkipSlotCache{entries: make(map[skipSlotKey]*state.BeaconState)}
}

// Disable turns off lookups/writes without discarding existing entries,
// used around block processing where skip-slot caching of a block's own
// target slot would be incorrect (the slot isn't actually "skipped").
func (c *SkipSlotCache) Disable() { c.disabled = true }

// Enable turns lookups/writes back on.
func (c *SkipSlotCache) Enable() { c.disabled = false }

// PreStateRoot hashes preState for use as a cache key before ProcessSlots
// mutates it in place; callers must capture this once, up front, and reuse
// it for both Get and the eventual Put.
func (c *SkipSlotCache) PreStateRoot(preState *state.BeaconState) ([32]byte, error) {
	return preState.HashTreeRoot()
}

// Get returns the cached post-state for (preRoot, target), if present and
// the cache is enabled.
func (c *SkipSlotCache) Get(preRoot [32]byte, target ssztypes.Slot) (*state.BeaconState, bool) {
	if c.disabled {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.entries[skipSlotKey{root: preRoot, slot: target}]
	if !ok {
		return nil, false
	}
	return st.Copy(), true
}

// Put stores the post-state for (preRoot, target), where preRoot was
// computed before any of process_slots' mutations.
func (c *SkipSlotCache) Put(preRoot [32]byte, target ssztypes.Slot, post *state.BeaconState) {
	if c.disabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[skipSlotKey{root: preRoot, slot: target}] = post.Copy()
}
