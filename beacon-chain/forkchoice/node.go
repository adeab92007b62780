package forkchoice

import (
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
)

// Node is a single block in the fork choice tree: parent pointer plus a
// child list, with the execution block hash carried so the consensus
// manager can translate a consensus head into an engine forkchoice state.
type Node struct {
	slot               ssztypes.Slot
	root               [32]byte
	parent             *Node
	children           []*Node
	payloadHash        [32]byte
	justifiedEpoch     ssztypes.Epoch
	finalizedEpoch     ssztypes.Epoch
	weight             uint64
	bestDescendant     *Node
	optimistic         bool
}

// Slot of the fork choice node.
func (n *Node) Slot() ssztypes.Slot {
	return n.slot
}

// Root of the fork choice node.
func (n *Node) Root() [32]byte {
	return n.root
}

// Parent of the fork choice node, nil for the tree root.
func (n *Node) Parent() *Node {
	return n.parent
}

// PayloadHash is the execution block hash the node's payload carries, zero
// for pre-Bellatrix blocks.
func (n *Node) PayloadHash() [32]byte {
	return n.payloadHash
}

// JustifiedEpoch the node was inserted with.
func (n *Node) JustifiedEpoch() ssztypes.Epoch {
	return n.justifiedEpoch
}

// FinalizedEpoch the node was inserted with.
func (n *Node) FinalizedEpoch() ssztypes.Epoch {
	return n.finalizedEpoch
}

// Weight is the cumulative attester balance computed by the last Head call.
func (n *Node) Weight() uint64 {
	return n.weight
}

// Optimistic reports whether the node's payload has not yet been fully
// validated by the execution engine.
func (n *Node) Optimistic() bool {
	return n.optimistic
}
