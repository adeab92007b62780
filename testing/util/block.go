package util

import (
	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/helpers"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/transition"
	"github.com/sigcore-labs/beacon-core/config/params"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
)

// GenerateBlock builds a structurally valid empty block at targetSlot on
// top of st: correct proposer index, parent root and state root, with the
// signature left zero (callers run the transition with skip_bls). st is
// not mutated. version must agree with the fork active at targetSlot.
func GenerateBlock(st *state.BeaconState, targetSlot ssztypes.Slot, version consensusblocks.Version) (*consensusblocks.SignedBeaconBlock, *state.BeaconState, error) {
	pre := st.Copy()
	if _, err := transition.ProcessSlots(pre, targetSlot, nil); err != nil {
		return nil, nil, errors.Wrap(err, "could not advance to target slot")
	}
	parentRoot, err := pre.LatestBlockHeader.HashTreeRoot()
	if err != nil {
		return nil, nil, err
	}
	proposer, err := helpers.BeaconProposerIndex(pre)
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not compute proposer")
	}
	body := &consensusblocks.BeaconBlockBody{
		Eth1Data: pre.Eth1Data,
	}
	if version >= consensusblocks.Altair {
		body.SyncAggregate = &consensusblocks.SyncAggregate{
			SyncCommitteeBits: make([]byte, (params.BeaconConfig().SyncCommitteeSize+7)/8),
		}
	}
	if version >= consensusblocks.Bellatrix {
		body.ExecutionPayload = &consensusblocks.ExecutionPayload{}
	}
	blk := &consensusblocks.BeaconBlock{
		Version:       version,
		Slot:          targetSlot,
		ProposerIndex: proposer,
		ParentRoot:    parentRoot,
		Body:          body,
	}
	signed := &consensusblocks.SignedBeaconBlock{Block: blk}

	post := st.Copy()
	flags := transition.Flags{SkipBLS: true, SkipStateRoot: true}
	if err := transition.StateTransition(post, signed, flags, nil); err != nil {
		return nil, nil, errors.Wrap(err, "could not compute post state")
	}
	stateRoot, err := post.HashTreeRoot()
	if err != nil {
		return nil, nil, err
	}
	blk.StateRoot = stateRoot
	return signed, post, nil
}

// GenerateForkedBlock wraps GenerateBlock's output in the tagged union.
func GenerateForkedBlock(st *state.BeaconState, targetSlot ssztypes.Slot, version consensusblocks.Version) (*consensusblocks.ForkedSignedBeaconBlock, *state.BeaconState, error) {
	signed, post, err := GenerateBlock(st, targetSlot, version)
	if err != nil {
		return nil, nil, err
	}
	forked, err := consensusblocks.NewForkedSignedBeaconBlock(signed)
	if err != nil {
		return nil, nil, err
	}
	return forked, post, nil
}

// GenerateChain extends st with count consecutive empty blocks, returning
// the blocks and the final state.
func GenerateChain(st *state.BeaconState, count int, version consensusblocks.Version) ([]*consensusblocks.ForkedSignedBeaconBlock, *state.BeaconState, error) {
	out := make([]*consensusblocks.ForkedSignedBeaconBlock, 0, count)
	cur := st
	for i := 0; i < count; i++ {
		blk, post, err := GenerateForkedBlock(cur, cur.Slot+1, version)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, blk)
		cur = post
	}
	return out, cur, nil
}
