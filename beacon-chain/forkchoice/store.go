// Package forkchoice implements LMD-GHOST with proposer boost over an
// in-memory block tree. The store keeps one Node per block root with
// parent/children links and derives head by walking from the justified
// root down child edges picking the child with maximal cumulative attester
// balance.
package forkchoice

import (
	"context"

	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
)

// Vote is a validator's latest message: the most recent (root, epoch) the
// validator attested to. Only the newest vote per validator counts.
type Vote struct {
	Root  [32]byte
	Epoch ssztypes.Epoch
}

// Store is the fork choice state: the node tree, per-validator latest
// votes, the justified/finalized checkpoints, and the transient proposer
// boost root. It is owned by the consensus thread and is not
// safe for concurrent mutation.
type Store struct {
	nodeByRoot        map[[32]byte]*Node
	treeRoot          *Node
	votes             map[ssztypes.ValidatorIndex]Vote
	justifiedCheckpt  consensusblocks.Checkpoint
	finalizedCheckpt  consensusblocks.Checkpoint
	proposerBoostRoot [32]byte
	proposerBoostSlot ssztypes.Slot
}

// New returns a Store seeded with the anchor (usually the finalized
// checkpoint block the node started from).
func New(anchorRoot [32]byte, anchorSlot ssztypes.Slot, payloadHash [32]byte, justified, finalized consensusblocks.Checkpoint) *Store {
	anchor := &Node{
		slot:           anchorSlot,
		root:           anchorRoot,
		payloadHash:    payloadHash,
		justifiedEpoch: justified.Epoch,
		finalizedEpoch: finalized.Epoch,
	}
	return &Store{
		nodeByRoot:       map[[32]byte]*Node{anchorRoot: anchor},
		treeRoot:         anchor,
		votes:            make(map[ssztypes.ValidatorIndex]Vote),
		justifiedCheckpt: justified,
		finalizedCheckpt: finalized,
	}
}

// HasNode reports whether root is in the store.
func (s *Store) HasNode(root [32]byte) bool {
	_, ok := s.nodeByRoot[root]
	return ok
}

// Node returns the node for root, or nil.
func (s *Store) Node(root [32]byte) *Node {
	return s.nodeByRoot[root]
}

// NodeCount returns the number of nodes currently tracked.
func (s *Store) NodeCount() int {
	return len(s.nodeByRoot)
}

// InsertNode adds a block to the tree. Duplicate roots return
// ErrDuplicateNode (idempotent for callers); an unknown parent returns
// ErrMissingParent. Newly inserted nodes start optimistic until the
// execution engine (or the absence of a payload) proves them valid.
func (s *Store) InsertNode(slot ssztypes.Slot, root, parentRoot, payloadHash [32]byte, justifiedEpoch, finalizedEpoch ssztypes.Epoch) (*Node, error) {
	if _, ok := s.nodeByRoot[root]; ok {
		return nil, ErrDuplicateNode
	}
	parent, ok := s.nodeByRoot[parentRoot]
	if !ok {
		return nil, ErrMissingParent
	}
	n := &Node{
		slot:           slot,
		root:           root,
		parent:         parent,
		payloadHash:    payloadHash,
		justifiedEpoch: justifiedEpoch,
		finalizedEpoch: finalizedEpoch,
		optimistic:     payloadHash != [32]byte{},
	}
	parent.children = append(parent.children, n)
	s.nodeByRoot[root] = n
	return n, nil
}

// ProcessAttestation records the latest message for each attesting
// validator. Older-or-equal target epochs never displace a newer vote.
func (s *Store) ProcessAttestation(indices []ssztypes.ValidatorIndex, blockRoot [32]byte, targetEpoch ssztypes.Epoch) {
	for _, i := range indices {
		prev, ok := s.votes[i]
		if ok && prev.Epoch >= targetEpoch {
			continue
		}
		s.votes[i] = Vote{Root: blockRoot, Epoch: targetEpoch}
	}
}

// JustifiedCheckpoint returns the store's current justified checkpoint.
func (s *Store) JustifiedCheckpoint() consensusblocks.Checkpoint {
	return s.justifiedCheckpt
}

// FinalizedCheckpoint returns the store's current finalized checkpoint.
func (s *Store) FinalizedCheckpoint() consensusblocks.Checkpoint {
	return s.finalizedCheckpt
}

// UpdateCheckpoints consumes process_epoch's output checkpoints. Regressing
// epochs are ignored; checkpoints only advance.
func (s *Store) UpdateCheckpoints(justified, finalized consensusblocks.Checkpoint) {
	if justified.Epoch > s.justifiedCheckpt.Epoch {
		s.justifiedCheckpt = justified
	}
	if finalized.Epoch > s.finalizedCheckpt.Epoch {
		s.finalizedCheckpt = finalized
	}
}

// SetOptimisticToValid marks root's payload as fully validated by the
// execution engine. Validity propagates to ancestors: a valid payload
// implies every ancestor payload executed too.
func (s *Store) SetOptimisticToValid(root [32]byte) error {
	n, ok := s.nodeByRoot[root]
	if !ok {
		return errNilNode
	}
	for n != nil && n.optimistic {
		n.optimistic = false
		n = n.parent
	}
	return nil
}

// SetOptimisticToInvalid removes root and its whole subtree from the store,
// returning the removed roots so the caller can evict blocks and states.
func (s *Store) SetOptimisticToInvalid(ctx context.Context, root [32]byte) ([][32]byte, error) {
	n, ok := s.nodeByRoot[root]
	if !ok {
		return nil, errNilNode
	}
	if n.parent != nil {
		n.parent.children = removeChild(n.parent.children, n)
	}
	var removed [][32]byte
	if err := s.removeSubtree(ctx, n, &removed); err != nil {
		return nil, err
	}
	return removed, nil
}

// Prune removes every node that is not the finalized node's ancestor or
// descendant and re-roots the tree at the finalized node; nothing off the
// finalized chain can become canonical again.
func (s *Store) Prune(ctx context.Context, finalizedRoot [32]byte) error {
	finalized, ok := s.nodeByRoot[finalizedRoot]
	if !ok {
		return errUnknownFinalizedRoot
	}
	if finalized == s.treeRoot {
		return nil
	}
	// Walk up from the finalized node detaching each ancestor's other
	// children; those subtrees can never be canonical again.
	for n := finalized; n.parent != nil; n = n.parent {
		for _, sibling := range n.parent.children {
			if sibling == n {
				continue
			}
			var removed [][32]byte
			if err := s.removeSubtree(ctx, sibling, &removed); err != nil {
				return err
			}
		}
		n.parent.children = []*Node{n}
	}
	// Drop the now-unreachable chain above the finalized node.
	for n := finalized.parent; n != nil; n = n.parent {
		delete(s.nodeByRoot, n.root)
	}
	finalized.parent = nil
	s.treeRoot = finalized
	return nil
}

func (s *Store) removeSubtree(ctx context.Context, n *Node, removed *[][32]byte) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	for _, child := range n.children {
		if err := s.removeSubtree(ctx, child, removed); err != nil {
			return err
		}
	}
	delete(s.nodeByRoot, n.root)
	*removed = append(*removed, n.root)
	return nil
}

func removeChild(children []*Node, target *Node) []*Node {
	for i, c := range children {
		if c == target {
			children[i] = children[len(children)-1]
			return children[:len(children)-1]
		}
	}
	return children
}
