package forkchoice

import (
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
)

// BoostProposerRoot credits the newly proposed block for the current slot
// with the proposer boost. The boost only applies while wall time is still
// within the block's own slot; a late call is ignored.
func (s *Store) BoostProposerRoot(root [32]byte, blockSlot, wallSlot ssztypes.Slot) error {
	if _, ok := s.nodeByRoot[root]; !ok {
		return errInvalidProposerBoostRoot
	}
	if blockSlot != wallSlot {
		return nil
	}
	s.proposerBoostRoot = root
	s.proposerBoostSlot = blockSlot
	return nil
}

// ResetBoostedProposerRoot clears the boost; called at every slot tick so
// the boost never outlives the slot it was granted for.
func (s *Store) ResetBoostedProposerRoot(wallSlot ssztypes.Slot) {
	if s.proposerBoostRoot == [32]byte{} {
		return
	}
	if wallSlot > s.proposerBoostSlot {
		s.proposerBoostRoot = [32]byte{}
		s.proposerBoostSlot = 0
	}
}

// ProposerBoostRoot returns the currently boosted root, zero if none.
func (s *Store) ProposerBoostRoot() [32]byte {
	return s.proposerBoostRoot
}
