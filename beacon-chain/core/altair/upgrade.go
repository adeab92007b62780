package altair

import (
	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/config/params"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/helpers"
)

// UpgradeToAltair performs the structural Phase0->Altair transformation:
// it preserves validator identities and balances and seeds the new
// fork-specific fields (participation bitfields, inactivity scores, sync
// committees). Matches upgrade_to_altair.
func UpgradeToAltair(pre *state.BeaconState) (*state.BeaconState, error) {
	if pre.Version() != state.Phase0 {
		return nil, errors.Errorf("cannot upgrade state of version %v to altair", pre.Version())
	}
	cfg := params.BeaconConfig()
	post := pre.Copy()
	post.SetVersion(state.Altair)

	epoch := helpers.CurrentEpoch(pre)
	post.ForkData.PreviousVersion = post.ForkData.CurrentVersion
	post.ForkData.CurrentVersion = toArray4(cfg.AltairForkVersion)
	post.ForkData.Epoch = epoch

	n := len(pre.Validators)
	post.PreviousEpochParticipation = make([]byte, n)
	post.CurrentEpochParticipation = make([]byte, n)
	post.InactivityScores = make([]uint64, n)

	committee, err := BuildSyncCommittee(post, epoch)
	if err != nil {
		return nil, errors.Wrap(err, "could not build initial sync committee")
	}
	post.CurrentSyncCommittee = committee
	nextCommittee, err := BuildSyncCommittee(post, epoch.Add(uint64(cfg.EpochsPerSyncCommitteePeriod)))
	if err != nil {
		return nil, errors.Wrap(err, "could not build next sync committee")
	}
	post.NextSyncCommittee = nextCommittee

	invalidateAll(post)
	return post, nil
}

// UpgradeToBellatrix performs the structural Altair->Bellatrix
// transformation: preserves everything Altair carries and seeds an empty
// latest execution payload header, matching upgrade_to_bellatrix.
func UpgradeToBellatrix(pre *state.BeaconState) (*state.BeaconState, error) {
	if pre.Version() != state.Altair {
		return nil, errors.Errorf("cannot upgrade state of version %v to bellatrix", pre.Version())
	}
	cfg := params.BeaconConfig()
	post := pre.Copy()
	post.SetVersion(state.Bellatrix)

	post.ForkData.PreviousVersion = post.ForkData.CurrentVersion
	post.ForkData.CurrentVersion = toArray4(cfg.BellatrixForkVersion)
	post.ForkData.Epoch = helpers.CurrentEpoch(pre)

	post.LatestExecutionPayloadHeader = &state.ExecutionPayloadHeader{}

	invalidateAll(post)
	return post, nil
}

func toArray4(b []byte) [4]byte {
	var out [4]byte
	copy(out[:], b)
	return out
}

// BuildSyncCommittee samples SyncCommitteeSize active validators (with
// replacement, weighted like proposer selection) for the committee active
// starting at epoch, matching get_next_sync_committee.
func BuildSyncCommittee(st *state.BeaconState, epoch ssztypes.Epoch) (*state.SyncCommittee, error) {
	cfg := params.BeaconConfig()
	active := helpers.ActiveValidatorIndices(st, epoch)
	if len(active) == 0 {
		return nil, errors.New("no active validators to build sync committee from")
	}
	seed, err := helpers.Seed(st, epoch, cfg.DomainSyncCommittee)
	if err != nil {
		return nil, err
	}
	committee := &state.SyncCommittee{}
	i := uint64(0)
	maxRandomByte := uint64(1<<8 - 1)
	total := uint64(len(active))
	for uint64(len(committee.Pubkeys)) < cfg.SyncCommitteeSize {
		candidateIdx, err := helpers.ShuffledIndex(i%total, total, seed)
		if err != nil {
			return nil, err
		}
		candidate := active[candidateIdx]
		randomByte := syncRandomByte(seed, i)
		effectiveBalance := uint64(st.Validators[candidate].EffectiveBalance)
		if effectiveBalance*maxRandomByte >= cfg.MaxEffectiveBalance*randomByte {
			committee.Pubkeys = append(committee.Pubkeys, st.Validators[candidate].PublicKey)
		}
		i++
	}
	return committee, nil
}

func syncRandomByte(seed [32]byte, i uint64) uint64 {
	buf := make([]byte, 40)
	copy(buf[:32], seed[:])
	helpers.PutUint64LE(buf[32:], i/32)
	h := helpers.HashBytes(buf)
	return uint64(h[i%32])
}

func invalidateAll(st *state.BeaconState) {
	for f := 0; f <= state.FieldJustificationCheckpoints; f++ {
		st.Cache().Invalidate(f)
	}
}
