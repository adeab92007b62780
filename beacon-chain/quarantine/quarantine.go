// Package quarantine holds blocks that cannot enter the DAG yet: roots we
// know about but have not received (missing), received blocks whose parent
// is unknown (orphan), and descendants of branches that can never become
// canonical (unviable). The orphan set is bounded; overflow evicts the
// least recently added entry, with the capacity configurable via
// NewWithCapacity.
package quarantine

import (
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
)

// DefaultMaxOrphans bounds the orphan set to a few hundred entries.
const DefaultMaxOrphans = 256

// Quarantine tracks the three root-keyed sets. It is owned by the consensus
// thread; no internal locking.
type Quarantine struct {
	missing  map[[32]byte]struct{}
	orphans  map[[32]byte]*consensusblocks.ForkedSignedBeaconBlock
	order    [][32]byte // orphan insertion order, oldest first, for LRU eviction
	unviable map[[32]byte]struct{}

	maxOrphans int
}

// New returns an empty quarantine with the default orphan capacity.
func New() *Quarantine {
	return NewWithCapacity(DefaultMaxOrphans)
}

// NewWithCapacity returns an empty quarantine bounded to maxOrphans orphan
// entries.
func NewWithCapacity(maxOrphans int) *Quarantine {
	return &Quarantine{
		missing:    make(map[[32]byte]struct{}),
		orphans:    make(map[[32]byte]*consensusblocks.ForkedSignedBeaconBlock),
		unviable:   make(map[[32]byte]struct{}),
		maxOrphans: maxOrphans,
	}
}

// AddMissing records root as advertised-but-not-received, so sync knows to
// fetch it. Roots already present as orphans or unviable are not re-added.
func (q *Quarantine) AddMissing(root [32]byte) {
	if _, ok := q.orphans[root]; ok {
		return
	}
	if _, ok := q.unviable[root]; ok {
		return
	}
	q.missing[root] = struct{}{}
}

// RemoveMissing drops root from the missing set, called once the block
// arrives (whatever its fate afterwards).
func (q *Quarantine) RemoveMissing(root [32]byte) {
	delete(q.missing, root)
}

// Missing returns the currently missing roots in unspecified order.
func (q *Quarantine) Missing() [][32]byte {
	out := make([][32]byte, 0, len(q.missing))
	for r := range q.missing {
		out = append(out, r)
	}
	return out
}

// AddOrphan stores blk keyed by root until its parent lands. Blocks at or
// below the finalized slot are refused (they can never join the DAG), as
// are descendants of unviable branches; for those it returns false. At
// capacity the oldest orphan is evicted and the newcomer is kept, so the
// call still returns true.
func (q *Quarantine) AddOrphan(finalizedSlot ssztypes.Slot, root [32]byte, blk *consensusblocks.ForkedSignedBeaconBlock) bool {
	if blk.Block().Block.Slot <= finalizedSlot {
		return false
	}
	if q.IsUnviable(blk.Block().Block.ParentRoot) {
		q.AddUnviable(root)
		return false
	}
	if _, ok := q.orphans[root]; ok {
		return true
	}
	if len(q.orphans) >= q.maxOrphans {
		q.evictOldest()
	}
	q.orphans[root] = blk
	q.order = append(q.order, root)
	delete(q.missing, root)
	// The parent is what we actually need next.
	q.AddMissing(blk.Block().Block.ParentRoot)
	return true
}

func (q *Quarantine) evictOldest() {
	for len(q.order) > 0 {
		oldest := q.order[0]
		q.order = q.order[1:]
		if _, ok := q.orphans[oldest]; ok {
			delete(q.orphans, oldest)
			return
		}
	}
}

// RemoveOrphan drops root from the orphan set without returning it.
func (q *Quarantine) RemoveOrphan(root [32]byte) {
	delete(q.orphans, root)
}

// HasOrphan reports whether root is quarantined as an orphan.
func (q *Quarantine) HasOrphan(root [32]byte) bool {
	_, ok := q.orphans[root]
	return ok
}

// OrphanCount returns the number of held orphans.
func (q *Quarantine) OrphanCount() int {
	return len(q.orphans)
}

// Pop returns all orphans whose parent root equals parent, removing them
// atomically, in no specified order. Called after parent lands in the DAG
// so the block processor can re-enqueue the children.
func (q *Quarantine) Pop(parent [32]byte) []*consensusblocks.ForkedSignedBeaconBlock {
	var out []*consensusblocks.ForkedSignedBeaconBlock
	for root, blk := range q.orphans {
		if blk.Block().Block.ParentRoot == parent {
			out = append(out, blk)
			delete(q.orphans, root)
		}
	}
	return out
}

// AddUnviable marks root as a descendant of a branch that can never become
// canonical. Unviability is transitive: any orphan whose parent is now
// unviable is itself marked unviable and evicted from the orphan set.
func (q *Quarantine) AddUnviable(root [32]byte) {
	if _, ok := q.unviable[root]; ok {
		return
	}
	q.unviable[root] = struct{}{}
	delete(q.missing, root)

	// Close the set under the parent relation. Each pass promotes orphans
	// whose parent became unviable; repeat until a fixpoint since chains of
	// orphans may be in the set.
	for {
		promoted := false
		for orphanRoot, blk := range q.orphans {
			if _, ok := q.unviable[blk.Block().Block.ParentRoot]; ok {
				q.unviable[orphanRoot] = struct{}{}
				delete(q.orphans, orphanRoot)
				delete(q.missing, orphanRoot)
				promoted = true
			}
		}
		if !promoted {
			break
		}
	}
}

// IsUnviable reports whether root is in the unviable set.
func (q *Quarantine) IsUnviable(root [32]byte) bool {
	_, ok := q.unviable[root]
	return ok
}
