package epoch

import (
	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/config/params"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/altair"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/helpers"
)

// processParticipationFlagUpdates rotates current-epoch participation
// into previous-epoch and zeroes current for the new epoch, matching
// process_participation_flag_updates. It also advances each validator's
// inactivity score per process_inactivity_updates; both rotate in one pass
// since they walk the same registry.
func processParticipationFlagUpdates(st *state.BeaconState) {
	cfg := params.BeaconConfig()
	prevEpoch := helpers.CurrentEpoch(st)
	finalized := st.FinalizedCheckpoint.Epoch

	for i := range st.InactivityScores {
		timelyTarget := i < len(st.CurrentEpochParticipation) && st.CurrentEpochParticipation[i]&(1<<1) != 0
		if timelyTarget {
			if st.InactivityScores[i] > 0 {
				st.InactivityScores[i]--
			}
		} else {
			st.InactivityScores[i] += cfg.InactivityScoreBias
		}
		inBoundaryEpoch := prevEpoch <= finalized.Add(uint64(cfg.MinEpochsToInactivityPenalty))
		if !inBoundaryEpoch && st.InactivityScores[i] > cfg.InactivityScoreRecoveryRate {
			st.InactivityScores[i] -= cfg.InactivityScoreRecoveryRate
		}
	}

	st.PreviousEpochParticipation = st.CurrentEpochParticipation
	st.CurrentEpochParticipation = make([]byte, len(st.Validators))
	st.Cache().Invalidate(state.FieldPreviousEpochParticipation)
	st.Cache().Invalidate(state.FieldCurrentEpochParticipation)
	st.Cache().Invalidate(state.FieldInactivityScores)
}

// processSyncCommitteeUpdates rotates the sync committee pair every
// EpochsPerSyncCommitteePeriod, matching process_sync_committee_updates.
func processSyncCommitteeUpdates(st *state.BeaconState) error {
	cfg := params.BeaconConfig()
	nextEpoch := helpers.NextEpoch(st)
	if uint64(nextEpoch)%uint64(cfg.EpochsPerSyncCommitteePeriod) != 0 {
		return nil
	}
	next, err := altair.BuildSyncCommittee(st, nextEpoch.Add(uint64(cfg.EpochsPerSyncCommitteePeriod)))
	if err != nil {
		return errors.Wrap(err, "could not build next sync committee")
	}
	st.CurrentSyncCommittee = st.NextSyncCommittee
	st.NextSyncCommittee = next
	st.Cache().Invalidate(state.FieldCurrentSyncCommittee)
	st.Cache().Invalidate(state.FieldNextSyncCommittee)
	return nil
}
