// Package altair implements the Altair-and-later sub-phases the Phase0 STF
// doesn't have: sync aggregate processing, participation-flag bookkeeping,
// and the fork-upgrade functions that lift a Phase0 state into Altair and
// an Altair state into Bellatrix.
package altair

import (
	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/config/params"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/helpers"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/signing"
	"github.com/sigcore-labs/beacon-core/crypto/bls"
)

// ProcessSyncAggregate verifies the sync committee's aggregate signature
// over the previous slot's block root and rewards participating members,
// matching process_sync_aggregate. Only called for Altair+ blocks.
func ProcessSyncAggregate(st *state.BeaconState, agg *consensusblocks.SyncAggregate, skipBLS bool) error {
	if st.CurrentSyncCommittee == nil {
		return errors.New("state has no current sync committee")
	}
	committee := st.CurrentSyncCommittee.Pubkeys
	if len(agg.SyncCommitteeBits)*8 < len(committee) {
		return errors.New("sync committee bits shorter than committee")
	}

	cfg := params.BeaconConfig()
	totalActiveIncrements := uint64(helpers.TotalActiveBalance(st)) / cfg.EffectiveBalanceIncrement
	totalBaseRewards := baseRewardPerIncrement(totalActiveIncrements, cfg) * uint64(cfg.SyncCommitteeSize)
	maxParticipantRewards := totalBaseRewards / uint64(cfg.SlotsPerEpoch)
	rewardPerParticipant := maxParticipantRewards / uint64(cfg.SyncCommitteeSize)

	proposer, err := helpers.BeaconProposerIndex(st)
	if err != nil {
		return errors.Wrap(err, "could not determine proposer for sync reward")
	}

	var participantPubkeys [][]byte
	for i, pub := range committee {
		byteIdx := i / 8
		bitIdx := uint(i % 8)
		participating := agg.SyncCommitteeBits[byteIdx]&(1<<bitIdx) != 0
		idx, ok := validatorIndexForPubkey(st, pub)
		if !participating {
			if ok {
				penalizeSync(st, idx, rewardPerParticipant)
			}
			continue
		}
		if ok {
			rewardSync(st, idx, proposer, rewardPerParticipant, cfg)
		}
		participantPubkeys = append(participantPubkeys, append([]byte{}, pub[:]...))
	}

	if skipBLS || len(participantPubkeys) == 0 {
		return nil
	}
	return verifySyncAggregateSignature(st, participantPubkeys, agg.SyncCommitteeSignature)
}

func baseRewardPerIncrement(totalActiveIncrements uint64, cfg *params.BeaconChainConfig) uint64 {
	if totalActiveIncrements == 0 {
		return 0
	}
	return cfg.EffectiveBalanceIncrement * cfg.BaseRewardFactor / isqrt(totalActiveIncrements*cfg.EffectiveBalanceIncrement)
}

func isqrt(x uint64) uint64 {
	if x == 0 {
		return 0
	}
	z := x
	y := (z + 1) / 2
	for y < z {
		z = y
		y = (z + x/z) / 2
	}
	return z
}

func validatorIndexForPubkey(st *state.BeaconState, pub [48]byte) (ssztypes.ValidatorIndex, bool) {
	for i, v := range st.Validators {
		if v.PublicKey == pub {
			return ssztypes.ValidatorIndex(i), true
		}
	}
	return 0, false
}

func rewardSync(st *state.BeaconState, participant, proposer ssztypes.ValidatorIndex, reward uint64, cfg *params.BeaconChainConfig) {
	proposerReward := reward / cfg.ProposerRewardQuotient
	st.Balances[participant] += ssztypes.Gwei(reward - proposerReward)
	st.Balances[proposer] += ssztypes.Gwei(proposerReward)
	st.Cache().Invalidate(state.FieldBalances)
}

func penalizeSync(st *state.BeaconState, participant ssztypes.ValidatorIndex, penalty uint64) {
	if uint64(st.Balances[participant]) <= penalty {
		st.Balances[participant] = 0
	} else {
		st.Balances[participant] -= ssztypes.Gwei(penalty)
	}
	st.Cache().Invalidate(state.FieldBalances)
}

func verifySyncAggregateSignature(st *state.BeaconState, pubkeys [][]byte, sig [96]byte) error {
	cfg := params.BeaconConfig()
	prevSlot := st.Slot
	if prevSlot > 0 {
		prevSlot--
	}
	blockRoot, err := lastBlockRoot(st, prevSlot)
	if err != nil {
		return err
	}
	forkVersion := st.ForkData.CurrentVersion
	domain := signing.ComputeDomain(cfg.DomainSyncCommittee, &forkVersion, &st.GenesisValidatorsRoot)
	signingRoot := signing.ComputeSigningRoot(blockRoot, domain)

	s, err := bls.SignatureFromBytes(sig[:])
	if err != nil {
		return errors.Wrap(err, "invalid sync aggregate signature")
	}
	keys := make([]bls.PublicKey, len(pubkeys))
	for i, raw := range pubkeys {
		k, err := bls.PublicKeyFromBytes(raw)
		if err != nil {
			return errors.Wrapf(err, "invalid sync committee public key at index %d", i)
		}
		keys[i] = k
	}
	aggPub, err := bls.AggregatePublicKeys(keys)
	if err != nil {
		return err
	}
	if !bls.Verify(s, signingRoot, aggPub) {
		return errors.New("sync aggregate signature verification failed")
	}
	return nil
}

func lastBlockRoot(st *state.BeaconState, slot ssztypes.Slot) ([32]byte, error) {
	cfg := params.BeaconConfig()
	idx := uint64(slot) % uint64(cfg.SlotsPerHistoricalRoot)
	if idx >= uint64(len(st.BlockRoots)) {
		return [32]byte{}, errors.New("block roots ring shorter than requested index")
	}
	return st.BlockRoots[idx], nil
}
