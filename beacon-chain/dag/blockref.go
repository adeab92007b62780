package dag

import (
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
)

// BlockRef is a node in the in-memory block tree: root, slot, parent
// pointer, the execution block hash the block carries (zero pre-Bellatrix),
// and a child list. A root appears at most once in the DAG, so a BlockRef
// pointer is a stable identity for the block.
type BlockRef struct {
	root               [32]byte
	slot               ssztypes.Slot
	parent             *BlockRef
	executionBlockHash [32]byte
	children           []*BlockRef
}

// Root of the block.
func (r *BlockRef) Root() [32]byte {
	return r.root
}

// Slot of the block.
func (r *BlockRef) Slot() ssztypes.Slot {
	return r.slot
}

// Parent ref, nil for the DAG's anchor.
func (r *BlockRef) Parent() *BlockRef {
	return r.parent
}

// ExecutionBlockHash carried by the block's payload, zero pre-Bellatrix.
func (r *BlockRef) ExecutionBlockHash() [32]byte {
	return r.executionBlockHash
}

// Children returns the ref's direct descendants.
func (r *BlockRef) Children() []*BlockRef {
	return r.children
}

// Epoch returns the ref's slot's epoch.
func (r *BlockRef) Epoch(slotsPerEpoch ssztypes.Slot) ssztypes.Epoch {
	return ssztypes.Epoch(uint64(r.slot) / uint64(slotsPerEpoch))
}

// IsAncestorOf walks descendant's parent chain looking for r.
func (r *BlockRef) IsAncestorOf(descendant *BlockRef) bool {
	for n := descendant; n != nil; n = n.parent {
		if n == r {
			return true
		}
	}
	return false
}
