package blockchain

import (
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/helpers"
	"github.com/sigcore-labs/beacon-core/beacon-chain/dag"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
)

// onBlockAdded runs inside the DAG's post-insert callback, while the DAG
// still owns the post-state: (a) add the block to fork choice with the
// wall-clock slot, (b) register the block's attestation and sync-aggregate
// participation with fork choice and the validator monitor.
func (p *BlockProcessor) onBlockAdded(ref *dag.BlockRef, signed *consensusblocks.ForkedSignedBeaconBlock, postState *state.BeaconState, wallSlot ssztypes.Slot) {
	blk := signed.Block().Block
	fc := p.cfg.ConsensusManager.ForkChoice()

	if _, err := fc.InsertNode(
		ref.Slot(),
		ref.Root(),
		blk.ParentRoot,
		ref.ExecutionBlockHash(),
		postState.CurrentJustifiedCheckpoint.Epoch,
		postState.FinalizedCheckpoint.Epoch,
	); err != nil {
		log.WithError(err).Error("Could not insert block into fork choice")
		return
	}
	fc.UpdateCheckpoints(postState.CurrentJustifiedCheckpoint, postState.FinalizedCheckpoint)
	if err := fc.BoostProposerRoot(ref.Root(), blk.Slot, wallSlot); err != nil {
		log.WithError(err).Debug("Could not boost proposer root")
	}

	if p.cfg.Monitor != nil {
		p.cfg.Monitor.RegisterBeaconBlock(blk.ProposerIndex, blk.Slot, ref.Root())
	}
	p.registerAttestations(postState, blk)
	p.registerSyncAggregate(postState, blk)
}

// registerAttestations resolves each attestation's committee bits into
// validator indices, feeding fork choice's latest-message table and the
// validator monitor. Resolution failures are logged and skipped: the
// attestation already passed state-transition validation, so a failure
// here means the committee cache's view moved (e.g. deep reorg mid-store).
func (p *BlockProcessor) registerAttestations(postState *state.BeaconState, blk *consensusblocks.BeaconBlock) {
	fc := p.cfg.ConsensusManager.ForkChoice()
	for _, att := range blk.Body.Attestations {
		committee, err := helpers.BeaconCommittee(postState, att.Data.Slot, att.Data.CommitteeIndex)
		if err != nil {
			log.WithError(err).Debug("Could not resolve committee for included attestation")
			continue
		}
		indices := attestingIndicesFromBits(committee, att.AggregationBits)
		fc.ProcessAttestation(indices, att.Data.BeaconBlockRoot, att.Data.Target.Epoch)
		if p.cfg.Monitor != nil {
			p.cfg.Monitor.RegisterAttestationInBlock(att.Data, indices, blk.Slot)
		}
	}
}

// registerSyncAggregate maps set participation bits back to the current
// sync committee's validator indices for the monitor.
func (p *BlockProcessor) registerSyncAggregate(postState *state.BeaconState, blk *consensusblocks.BeaconBlock) {
	if p.cfg.Monitor == nil || blk.Version < consensusblocks.Altair {
		return
	}
	agg := blk.Body.SyncAggregate
	if agg == nil || postState.CurrentSyncCommittee == nil {
		return
	}
	var participants []ssztypes.ValidatorIndex
	for i, pub := range postState.CurrentSyncCommittee.Pubkeys {
		if !bitSet(agg.SyncCommitteeBits, uint(i)) {
			continue
		}
		if idx, ok := validatorIndexForPubkey(postState, pub); ok {
			participants = append(participants, idx)
		}
	}
	if len(participants) > 0 {
		p.cfg.Monitor.RegisterSyncAggregateInBlock(blk.Slot, participants)
	}
}

func attestingIndicesFromBits(committee []ssztypes.ValidatorIndex, bits []byte) []ssztypes.ValidatorIndex {
	var indices []ssztypes.ValidatorIndex
	for i, v := range committee {
		if bitSet(bits, uint(i)) {
			indices = append(indices, v)
		}
	}
	return indices
}

func bitSet(bits []byte, i uint) bool {
	if i/8 >= uint(len(bits)) {
		return false
	}
	return bits[i/8]&(1<<(i%8)) != 0
}

func validatorIndexForPubkey(st *state.BeaconState, pub [48]byte) (ssztypes.ValidatorIndex, bool) {
	for i, v := range st.Validators {
		if v.PublicKey == pub {
			return ssztypes.ValidatorIndex(i), true
		}
	}
	return 0, false
}
