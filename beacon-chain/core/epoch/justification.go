package epoch

import (
	"github.com/pkg/errors"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/helpers"
)

// ProcessJustificationAndFinalization implements Casper FFG's
// justification-bit shifting and finalization-rule application. It is
// skipped entirely for the first two epochs (no previous epoch to vote on
// yet), matching process_justification_and_finalization.
func ProcessJustificationAndFinalization(st *state.BeaconState) error {
	currentEpoch := helpers.CurrentEpoch(st)
	if currentEpoch <= 1 {
		return nil
	}
	previousEpoch := helpers.PrevEpoch(st)

	prevTargetBalance, err := attestingBalanceForEpoch(st, previousEpoch)
	if err != nil {
		return err
	}
	currTargetBalance, err := attestingBalanceForEpoch(st, currentEpoch)
	if err != nil {
		return err
	}
	totalActive := helpers.TotalActiveBalance(st)

	bits := shiftJustificationBits(st.JustificationBits)

	oldPreviousJustified := st.CurrentJustifiedCheckpoint
	if uint64(prevTargetBalance)*3 >= uint64(totalActive)*2 {
		bits = setBit(bits, 1)
		root, err := epochBoundaryRoot(st, previousEpoch)
		if err != nil {
			return err
		}
		st.CurrentJustifiedCheckpoint = consensusblocks.Checkpoint{Epoch: previousEpoch, Root: root}
	}
	if uint64(currTargetBalance)*3 >= uint64(totalActive)*2 {
		bits = setBit(bits, 0)
		root, err := epochBoundaryRoot(st, currentEpoch)
		if err != nil {
			return err
		}
		st.PreviousJustifiedCheckpoint = st.CurrentJustifiedCheckpoint
		st.CurrentJustifiedCheckpoint = consensusblocks.Checkpoint{Epoch: currentEpoch, Root: root}
	} else {
		st.PreviousJustifiedCheckpoint = oldPreviousJustified
	}
	st.JustificationBits = bits

	if err := applyFinalizationRules(st, bits, currentEpoch); err != nil {
		return err
	}
	st.Cache().Invalidate(state.FieldJustificationCheckpoints)
	return nil
}

// applyFinalizationRules checks the four Casper FFG finalization rules in
// priority order (longest-chain-first), advancing FinalizedCheckpoint on
// the first rule that matches.
func applyFinalizationRules(st *state.BeaconState, bits []byte, currentEpoch ssztypes.Epoch) error {
	prevJustified := st.PreviousJustifiedCheckpoint
	currJustified := st.CurrentJustifiedCheckpoint

	// Rule 1: 2nd/3rd/4th most recent epochs justified, 2nd finalizes 4th.
	if bitSet(bits, 1) && bitSet(bits, 2) && bitSet(bits, 3) && prevJustified.Epoch.Add(3) == currentEpoch {
		st.FinalizedCheckpoint = prevJustified
		return nil
	}
	// Rule 2: 2nd/3rd most recent epochs justified, 2nd finalizes 3rd.
	if bitSet(bits, 1) && bitSet(bits, 2) && prevJustified.Epoch.Add(2) == currentEpoch {
		st.FinalizedCheckpoint = prevJustified
		return nil
	}
	// Rule 3: 1st/2nd/3rd most recent epochs justified, 1st finalizes 3rd.
	if bitSet(bits, 0) && bitSet(bits, 1) && bitSet(bits, 2) && currJustified.Epoch.Add(2) == currentEpoch {
		st.FinalizedCheckpoint = currJustified
		return nil
	}
	// Rule 4: 1st/2nd most recent epochs justified, 1st finalizes 2nd.
	if bitSet(bits, 0) && bitSet(bits, 1) && currJustified.Epoch.Add(1) == currentEpoch {
		st.FinalizedCheckpoint = currJustified
		return nil
	}
	return nil
}

func shiftJustificationBits(bits []byte) []byte {
	if len(bits) == 0 {
		bits = make([]byte, 1)
	}
	out := append([]byte{}, bits...)
	b := out[0]
	out[0] = (b << 1) & 0x0F
	return out
}

func setBit(bits []byte, i uint) []byte {
	bits[0] |= 1 << i
	return bits
}

func bitSet(bits []byte, i uint) bool {
	if len(bits) == 0 {
		return false
	}
	return bits[0]&(1<<i) != 0
}

func epochBoundaryRoot(st *state.BeaconState, epoch ssztypes.Epoch) ([32]byte, error) {
	return blockRootAtSlot(st, helpers.StartSlot(epoch))
}

func blockRootAtSlot(st *state.BeaconState, slot ssztypes.Slot) ([32]byte, error) {
	if slot >= st.Slot {
		if len(st.BlockRoots) == 0 {
			return [32]byte{}, errors.New("state has no block roots")
		}
		idxLatest := (uint64(st.Slot) - 1) % uint64(len(st.BlockRoots))
		return st.BlockRoots[idxLatest], nil
	}
	idx := uint64(slot) % uint64(len(st.BlockRoots))
	return st.BlockRoots[idx], nil
}

// attestingBalanceForEpoch sums the effective balance of validators whose
// participation bitfield marks them timely-target for epoch. Participation
// is tracked with the flag-based accounting for every fork; Phase0's
// pending-attestation tallying is not modeled (see the note on
// ProcessAttestations).
func attestingBalanceForEpoch(st *state.BeaconState, epoch ssztypes.Epoch) (ssztypes.Gwei, error) {
	var bitfield []byte
	if epoch == helpers.CurrentEpoch(st) {
		bitfield = st.CurrentEpochParticipation
	} else if epoch == helpers.PrevEpoch(st) {
		bitfield = st.PreviousEpochParticipation
	} else {
		return 0, errors.New("can only sum attesting balance for current or previous epoch")
	}
	var total ssztypes.Gwei
	for i, flags := range bitfield {
		if flags&(1<<1) != 0 { // timely-target flag
			total += st.Validators[i].EffectiveBalance
		}
	}
	return total, nil
}
