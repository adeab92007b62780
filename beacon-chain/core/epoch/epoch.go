// Package epoch implements process_epoch's sub-phases: justification and
// finalization, reward/penalty deltas, registry updates, effective-balance
// updates, RANDAO mix rotation, historical-root append, participation-flag
// rotation (Altair+), and sync-committee rotation every
// EpochsPerSyncCommitteePeriod.
package epoch

import (
	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/config/params"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/helpers"
	"github.com/sigcore-labs/beacon-core/crypto/hash"
)

func hashPair(a, b [32]byte) [32]byte {
	buf := make([]byte, 64)
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return hash.Hash(buf)
}

// ProcessEpoch runs every sub-phase in process_epoch's fixed order:
// justification/finalization first (so registry updates can consult the
// new finalized checkpoint), then rewards/penalties, registry updates,
// slashings reset, effective balance updates, randao mix rotation,
// historical roots, and (Altair+) participation/sync-committee rotation.
func ProcessEpoch(st *state.BeaconState) error {
	if err := ProcessJustificationAndFinalization(st); err != nil {
		return errors.Wrap(err, "could not process justification and finalization")
	}
	if err := processRewardsAndPenalties(st); err != nil {
		return errors.Wrap(err, "could not process rewards and penalties")
	}
	if err := processRegistryUpdates(st); err != nil {
		return errors.Wrap(err, "could not process registry updates")
	}
	if err := processSlashingsReset(st); err != nil {
		return errors.Wrap(err, "could not process slashings reset")
	}
	if err := processEffectiveBalanceUpdates(st); err != nil {
		return errors.Wrap(err, "could not process effective balance updates")
	}
	processRandaoMixesReset(st)
	if err := processHistoricalRootsUpdate(st); err != nil {
		return errors.Wrap(err, "could not process historical roots update")
	}
	if st.Version() >= state.Altair {
		processParticipationFlagUpdates(st)
		if err := processSyncCommitteeUpdates(st); err != nil {
			return errors.Wrap(err, "could not process sync committee updates")
		}
	}
	return nil
}

func processRandaoMixesReset(st *state.BeaconState) {
	cfg := params.BeaconConfig()
	nextEpoch := helpers.NextEpoch(st)
	idx := uint64(nextEpoch) % uint64(cfg.EpochsPerHistoricalVector)
	mix, err := helpers.RandaoMix(st, helpers.CurrentEpoch(st))
	if err != nil {
		return
	}
	st.RandaoMixes[idx] = mix
	st.Cache().Invalidate(state.FieldRandaoMixes)
}

func processHistoricalRootsUpdate(st *state.BeaconState) error {
	cfg := params.BeaconConfig()
	nextEpoch := helpers.NextEpoch(st)
	period := uint64(cfg.SlotsPerHistoricalRoot) / uint64(cfg.SlotsPerEpoch)
	if uint64(nextEpoch)%period != 0 {
		return nil
	}
	rootsLeaves := append([][32]byte{}, st.BlockRoots...)
	blockRoot := merkleizeVector(rootsLeaves)
	stateLeaves := append([][32]byte{}, st.StateRoots...)
	stateRoot := merkleizeVector(stateLeaves)
	historicalRoot := hashPair(blockRoot, stateRoot)
	if uint64(len(st.HistoricalRoots)) >= cfg.HistoricalRootsLimit {
		return errors.New("historical roots at capacity")
	}
	st.HistoricalRoots = append(st.HistoricalRoots, historicalRoot)
	st.Cache().Invalidate(state.FieldHistoricalRoots)
	return nil
}

func processEffectiveBalanceUpdates(st *state.BeaconState) error {
	cfg := params.BeaconConfig()
	hysteresisIncrement := cfg.EffectiveBalanceIncrement / cfg.HysteresisQuotient
	downward := hysteresisIncrement * cfg.HysteresisDownwardMultiplier
	upward := hysteresisIncrement * cfg.HysteresisUpwardMultiplier
	changed := false
	for i, v := range st.Validators {
		balance := uint64(st.Balances[i])
		effective := uint64(v.EffectiveBalance)
		if balance+downward < effective || effective+upward < balance {
			newEffective := balance - (balance % cfg.EffectiveBalanceIncrement)
			if newEffective > cfg.MaxEffectiveBalance {
				newEffective = cfg.MaxEffectiveBalance
			}
			v.EffectiveBalance = ssztypes.Gwei(newEffective)
			changed = true
		}
	}
	if changed {
		st.Cache().Invalidate(state.FieldValidators)
	}
	return nil
}

func processSlashingsReset(st *state.BeaconState) error {
	cfg := params.BeaconConfig()
	nextEpoch := helpers.NextEpoch(st)
	idx := uint64(nextEpoch) % uint64(cfg.EpochsPerSlashingsVector)
	if idx >= uint64(len(st.Slashings)) {
		return errors.New("slashings vector shorter than epochs per slashings vector")
	}
	st.Slashings[idx] = 0
	st.Cache().Invalidate(state.FieldSlashings)
	return nil
}

func merkleizeVector(leaves [][32]byte) [32]byte {
	if len(leaves) == 0 {
		return [32]byte{}
	}
	for len(leaves) > 1 {
		next := make([][32]byte, (len(leaves)+1)/2)
		for i := range next {
			a := leaves[2*i]
			var b [32]byte
			if 2*i+1 < len(leaves) {
				b = leaves[2*i+1]
			}
			next[i] = hashPair(a, b)
		}
		leaves = next
	}
	return leaves[0]
}
