// Package blocks implements process_block's per-operation sub-phases:
// header verification, eth1 voting, and the five operation lists applied
// in fixed order (proposer slashings, attester slashings, attestations,
// deposits, voluntary exits).
package blocks

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

// ProcessBlockHeader verifies the incoming block's slot/proposer/parent
// are consistent with st, then advances st.LatestBlockHeader to summarize
// this block (with a zeroed StateRoot, backfilled by the next
// process_slot once the post-state root is known).
func ProcessBlockHeader(st *state.BeaconState, blk *consensusblocks.BeaconBlock) error {
	if blk.Slot != st.Slot {
		return errors.Errorf("block slot %d does not match state slot %d", blk.Slot, st.Slot)
	}
	if blk.Slot <= st.LatestBlockHeader.Slot {
		return errors.Errorf("block slot %d not later than latest block header slot %d", blk.Slot, st.LatestBlockHeader.Slot)
	}
	if err := helpers.ValidateValidatorIndex(st, blk.ProposerIndex); err != nil {
		return errors.Wrap(err, "invalid proposer index")
	}
	expectedProposer, err := helpers.BeaconProposerIndex(st)
	if err != nil {
		return errors.Wrap(err, "could not compute proposer index")
	}
	if blk.ProposerIndex != expectedProposer {
		return errors.Errorf("block proposer index %d does not match expected %d", blk.ProposerIndex, expectedProposer)
	}
	latestHeaderRoot, err := st.LatestBlockHeader.HashTreeRoot()
	if err != nil {
		return errors.Wrap(err, "could not hash latest block header")
	}
	if blk.ParentRoot != latestHeaderRoot {
		return errors.New("block: parent root does not match latest block header root")
	}
	if st.Validators[blk.ProposerIndex].Slashed {
		return errors.New("block proposer is slashed")
	}
	bodyRoot, err := blk.Body.HashTreeRoot(blk.Version)
	if err != nil {
		return errors.Wrap(err, "could not hash block body")
	}
	st.LatestBlockHeader = &consensusblocks.BeaconBlockHeader{
		Slot:          blk.Slot,
		ProposerIndex: blk.ProposerIndex,
		ParentRoot:    blk.ParentRoot,
		StateRoot:     [32]byte{},
		BodyRoot:      bodyRoot,
	}
	st.Cache().Invalidate(state.FieldLatestBlockHeader)
	return nil
}

// VerifyBlockSignature checks the proposer's signature over the block's
// signing root, domain-separated by DomainBeaconProposer. Callers pass
// skipBLS to elide this per flags.skip_bls.
func VerifyBlockSignature(st *state.BeaconState, blk *consensusblocks.SignedBeaconBlock, skipBLS bool) error {
	if skipBLS {
		return nil
	}
	proposer := st.Validators[blk.Block.ProposerIndex]
	forkVersion := st.ForkData.CurrentVersion
	domain := signing.ComputeDomain(params.BeaconConfig().DomainBeaconProposer, &forkVersion, &st.GenesisValidatorsRoot)
	root, err := blk.Block.HashTreeRoot()
	if err != nil {
		return errors.Wrap(err, "could not hash block")
	}
	signingRoot := signing.ComputeSigningRoot(root, domain)
	pub, err := bls.PublicKeyFromBytes(proposer.PublicKey[:])
	if err != nil {
		return errors.Wrap(err, "invalid proposer public key")
	}
	sig, err := bls.SignatureFromBytes(blk.Signature[:])
	if err != nil {
		return errors.Wrap(err, "invalid block signature")
	}
	if !bls.Verify(sig, signingRoot, pub) {
		return errors.New("block signature verification failed")
	}
	return nil
}

// ProcessEth1Data appends blk's eth1 vote and, once a majority of the
// voting-period window agrees, adopts it as st.Eth1Data.
func ProcessEth1Data(st *state.BeaconState, vote *consensusblocks.Eth1Data) error {
	st.Eth1DataVotes = append(st.Eth1DataVotes, vote)
	st.Cache().Invalidate(state.FieldEth1DataVotes)

	cfg := params.BeaconConfig()
	period := uint64(cfg.SlotsPerEpoch) * epochsPerEth1VotingPeriod
	voteCount := 0
	for _, v := range st.Eth1DataVotes {
		if *v == *vote {
			voteCount++
		}
	}
	if uint64(voteCount)*2 > period {
		st.Eth1Data = vote
		st.Cache().Invalidate(state.FieldEth1Data)
	}
	return nil
}

const epochsPerEth1VotingPeriod = 64

// VerifyProposerIndex is exported for callers (e.g. the DAG's batch
// verifier) that want to pre-check proposer validity before running the
// full state transition.
func VerifyProposerIndex(st *state.BeaconState, index ssztypes.ValidatorIndex) error {
	return helpers.ValidateValidatorIndex(st, index)
}
