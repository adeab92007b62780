package transition

import (
	"github.com/pkg/errors"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/altair"
	coreblocks "github.com/sigcore-labs/beacon-core/beacon-chain/core/blocks"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/helpers"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/randao"
)

// StateTransition applies signed to st: process_slots up to the block's
// slot, process_block, then state-root verification. It is deterministic
// and side-effect-free except for st and cache; on any failure the caller
// must discard st. Callers that need the pre-state afterwards run against
// a scratch Copy and commit on success, so there is no rollback path.
func StateTransition(st *state.BeaconState, signed *consensusblocks.SignedBeaconBlock, flags Flags, cache *SkipSlotCache) error {
	blk := signed.Block
	if !flags.SlotAlreadyProcessed {
		if _, err := ProcessSlots(st, blk.Slot, cache); err != nil {
			return errors.Wrap(err, "could not process slots")
		}
	}
	if err := processBlock(st, signed, flags); err != nil {
		return errors.Wrap(err, "could not process block")
	}
	if !flags.SkipStateRoot {
		root, err := st.HashTreeRoot()
		if err != nil {
			return errors.Wrap(err, "could not compute post-state root")
		}
		if root != blk.StateRoot {
			return errors.New("block: state root verification failed")
		}
	}
	return nil
}

// processBlock runs process_block's fixed-order sub-phases: header/signature/randao, eth1 vote, the five operation lists in
// {proposer slashings, attester slashings, attestations, deposits,
// voluntary exits} order, sync aggregate (Altair+), execution payload
// (Bellatrix+).
func processBlock(st *state.BeaconState, signed *consensusblocks.SignedBeaconBlock, flags Flags) error {
	blk := signed.Block
	if err := coreblocks.ProcessBlockHeader(st, blk); err != nil {
		return err
	}
	if err := coreblocks.VerifyBlockSignature(st, signed, flags.SkipBLS); err != nil {
		return err
	}
	proposer := st.Validators[blk.ProposerIndex]
	if err := randao.VerifyAndUpdate(st, helpers.CurrentEpoch(st), proposer.PublicKey, blk.Body.RandaoReveal, flags.SkipBLS); err != nil {
		return err
	}
	if err := coreblocks.ProcessEth1Data(st, blk.Body.Eth1Data); err != nil {
		return err
	}
	if err := coreblocks.ProcessProposerSlashings(st, blk.Body.ProposerSlashings, flags.SkipBLS); err != nil {
		return err
	}
	if err := coreblocks.ProcessAttesterSlashings(st, blk.Body.AttesterSlashings, flags.SkipBLS); err != nil {
		return err
	}
	if err := coreblocks.ProcessAttestations(st, blk.Body.Attestations, flags.SkipBLS); err != nil {
		return err
	}
	if err := coreblocks.ProcessDeposits(st, blk.Body.Deposits, flags.SkipBLS); err != nil {
		return err
	}
	if err := coreblocks.ProcessVoluntaryExits(st, blk.Body.VoluntaryExits, flags.SkipBLS); err != nil {
		return err
	}
	if blk.Version >= consensusblocks.Altair {
		if err := altair.ProcessSyncAggregate(st, blk.Body.SyncAggregate, flags.SkipBLS); err != nil {
			return err
		}
	}
	if blk.Version >= consensusblocks.Bellatrix {
		if err := coreblocks.ProcessExecutionPayload(st, blk.Body.ExecutionPayload); err != nil {
			return err
		}
	}
	return nil
}
