package blockchain

import (
	"fmt"

	"github.com/sigcore-labs/beacon-core/beacon-chain/core/helpers"
	"github.com/sigcore-labs/beacon-core/config/params"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
)

// WeakSubjectivityCheckpoint is an operator-supplied trusted (root, epoch)
// pair. The zero value disables the check.
type WeakSubjectivityCheckpoint struct {
	Root  [32]byte
	Epoch ssztypes.Epoch
}

// SetWeakSubjectivityCheckpoint installs the checkpoint the processor
// verifies against once finality reaches its epoch.
func (p *BlockProcessor) SetWeakSubjectivityCheckpoint(ws WeakSubjectivityCheckpoint) {
	p.wsCheckpoint = ws
}

// VerifyWeakSubjectivityRoot checks that the operator's trusted root sits
// on the node's canonical chain at the expected epoch, so a long-range fork
// fed through sync cannot silently become canonical. For running after a
// batch of blocks lands; nothing in this module calls it. No-op until
// finality reaches the checkpoint epoch, and
// after the first successful verification.
func (p *BlockProcessor) VerifyWeakSubjectivityRoot() error {
	ws := p.wsCheckpoint
	if ws.Root == [32]byte{} || ws.Epoch == 0 {
		return nil
	}
	if p.wsVerified {
		return nil
	}
	finalizedEpoch := p.cfg.DAG.FinalizedHead().Epoch(params.BeaconConfig().SlotsPerEpoch)
	if ws.Epoch > finalizedEpoch {
		return nil
	}

	log.Infof("Performing weak subjectivity check for root %#x in epoch %d", ws.Root, ws.Epoch)
	ref := p.cfg.DAG.GetRef(ws.Root)
	if ref == nil {
		if p.cfg.DAG.BlockByRoot(ws.Root) == nil {
			return fmt.Errorf("node does not have weak subjectivity root %#x", ws.Root)
		}
		// Backfilled below finality; slot bounds were checked on insert.
		p.wsVerified = true
		log.Info("Weak subjectivity check has passed")
		return nil
	}
	startSlot := helpers.StartSlot(ws.Epoch)
	if ref.Slot() < startSlot || ref.Slot() >= startSlot+params.BeaconConfig().SlotsPerEpoch {
		return fmt.Errorf("weak subjectivity root %#x is at slot %d, outside epoch %d", ws.Root, ref.Slot(), ws.Epoch)
	}
	if !p.cfg.DAG.FinalizedHead().IsAncestorOf(ref) && ref != p.cfg.DAG.FinalizedHead() {
		// The ref must be on the finalized chain; walk the other direction.
		if !ref.IsAncestorOf(p.cfg.DAG.FinalizedHead()) {
			return fmt.Errorf("weak subjectivity root %#x is not on the canonical chain", ws.Root)
		}
	}
	p.wsVerified = true
	log.Info("Weak subjectivity check has passed")
	return nil
}
