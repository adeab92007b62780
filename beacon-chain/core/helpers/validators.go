// Package helpers collects the small pure functions the state transition
// and fork choice both depend on: active-validator queries, committee
// shuffling, proposer selection, and seed derivation.
package helpers

import (
	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/config/params"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
)

// SlotToEpoch returns the epoch that slot belongs to under the active
// configuration's SlotsPerEpoch.
func SlotToEpoch(slot ssztypes.Slot) ssztypes.Epoch {
	return ssztypes.Epoch(uint64(slot) / uint64(params.BeaconConfig().SlotsPerEpoch))
}

// StartSlot returns the first slot of epoch.
func StartSlot(epoch ssztypes.Epoch) ssztypes.Slot {
	return ssztypes.Slot(uint64(epoch) * uint64(params.BeaconConfig().SlotsPerEpoch))
}

// IsEpochStart reports whether slot is the first slot of its epoch.
func IsEpochStart(slot ssztypes.Slot) bool {
	return slot == StartSlot(SlotToEpoch(slot))
}

// IsEpochEnd reports whether slot is the last slot of its epoch.
func IsEpochEnd(slot ssztypes.Slot) bool {
	return IsEpochStart(slot + 1)
}

// PrevEpoch returns epoch-1, saturating at GenesisEpoch.
func PrevEpoch(st *state.BeaconState) ssztypes.Epoch {
	current := CurrentEpoch(st)
	if current == params.BeaconConfig().GenesisEpoch {
		return current
	}
	return current.Sub(1)
}

// CurrentEpoch returns the epoch of st.Slot.
func CurrentEpoch(st *state.BeaconState) ssztypes.Epoch {
	return SlotToEpoch(st.Slot)
}

// NextEpoch returns the epoch immediately after st's current epoch.
func NextEpoch(st *state.BeaconState) ssztypes.Epoch {
	return CurrentEpoch(st).Add(1)
}

// ActiveValidatorIndices returns the indices of every validator active at
// epoch, in registry order.
func ActiveValidatorIndices(st *state.BeaconState, epoch ssztypes.Epoch) []ssztypes.ValidatorIndex {
	indices := make([]ssztypes.ValidatorIndex, 0, len(st.Validators))
	for i, v := range st.Validators {
		if v.IsActive(epoch) {
			indices = append(indices, ssztypes.ValidatorIndex(i))
		}
	}
	return indices
}

// TotalActiveBalance sums the effective balance of every validator active
// at the state's current epoch, used as the fork-choice proposer-boost
// denominator and the epoch transition's reward/penalty base.
func TotalActiveBalance(st *state.BeaconState) ssztypes.Gwei {
	epoch := CurrentEpoch(st)
	var total ssztypes.Gwei
	for _, v := range st.Validators {
		if v.IsActive(epoch) {
			total += v.EffectiveBalance
		}
	}
	if total == 0 {
		return ssztypes.Gwei(params.BeaconConfig().EffectiveBalanceIncrement)
	}
	return total
}

// ValidateValidatorIndex range-checks index against st's validator
// registry, the single enforcement point for
// ValidatorIndex < len(validators).
func ValidateValidatorIndex(st *state.BeaconState, index ssztypes.ValidatorIndex) error {
	if uint64(index) >= uint64(len(st.Validators)) {
		return errors.Errorf("validator index %d out of range, have %d validators", index, len(st.Validators))
	}
	return nil
}

// IsAggregator reports whether selectionProof (a modulo-reduced signature)
// selects the signer as this slot's attestation aggregator, used by
// validator-duty callers; included here since it's a pure function of
// committee size and config, not of any validator-client state.
func IsAggregator(committeeLen uint64, selectionProof []byte) (bool, error) {
	modulo := uint64(1)
	if committeeLen/params.BeaconConfig().TargetCommitteeSize > 1 {
		modulo = committeeLen / params.BeaconConfig().TargetCommitteeSize
	}
	if len(selectionProof) < 8 {
		return false, errors.New("selection proof too short")
	}
	hashed := hashSelectionProof(selectionProof)
	return bytesToUint64LE(hashed[:8])%modulo == 0, nil
}
