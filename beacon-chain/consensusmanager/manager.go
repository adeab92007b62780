// Package consensusmanager wires fork choice, the DAG, the quarantine and
// the execution client together behind the two operations the block
// processor drives: UpdateHead after a successful store, and the
// forkchoiceUpdated notification to the execution engine.
package consensusmanager

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/helpers"
	"github.com/sigcore-labs/beacon-core/beacon-chain/dag"
	"github.com/sigcore-labs/beacon-core/beacon-chain/execution"
	"github.com/sigcore-labs/beacon-core/beacon-chain/forkchoice"
	"github.com/sigcore-labs/beacon-core/beacon-chain/quarantine"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"
)

var log = logrus.WithField("prefix", "consensusmanager")

// Manager owns the head-selection pipeline. All methods run on the
// consensus thread.
type Manager struct {
	dag        *dag.DAG
	forkChoice *forkchoice.Store
	engine     execution.EngineCaller
	quarantine *quarantine.Quarantine

	// justifiedBalances caches the effective balances at the justified
	// state, the weights Head consumes; refreshed when justification moves.
	justifiedBalances []ssztypes.Gwei
	justifiedRoot     [32]byte
}

// New returns a Manager over the given collaborators.
func New(d *dag.DAG, fc *forkchoice.Store, engine execution.EngineCaller, q *quarantine.Quarantine) *Manager {
	return &Manager{dag: d, forkChoice: fc, engine: engine, quarantine: q}
}

// ForkChoice exposes the underlying store for the block processor's
// insert-and-vote callback.
func (m *Manager) ForkChoice() *forkchoice.Store {
	return m.forkChoice
}

// UpdateHead recomputes the LMD-GHOST head for wallSlot and records it on
// the DAG, advancing finalization and pruning when the checkpoints moved.
func (m *Manager) UpdateHead(ctx context.Context, wallSlot ssztypes.Slot) error {
	ctx, span := trace.StartSpan(ctx, "consensusManager.UpdateHead")
	defer span.End()

	m.forkChoice.ResetBoostedProposerRoot(wallSlot)

	justified := m.forkChoice.JustifiedCheckpoint()
	if err := m.refreshJustifiedBalances(justified.Root); err != nil {
		return errors.Wrap(err, "could not load justified balances")
	}
	headRoot, err := m.forkChoice.Head(justified.Root, m.justifiedBalances)
	if err != nil {
		return errors.Wrap(err, "could not compute head")
	}
	headRef := m.dag.GetRef(headRoot)
	if headRef == nil {
		return errors.Errorf("fork choice returned unknown head %#x", headRoot)
	}
	if headRef != m.dag.Head() {
		log.WithFields(logrus.Fields{
			"slot": headRef.Slot(),
			"root": fmt.Sprintf("%#x", headRoot),
		}).Debug("Head changed")
	}
	m.dag.SetHead(headRef)

	finalized := m.forkChoice.FinalizedCheckpoint()
	if finalizedRef := m.dag.GetRef(finalized.Root); finalizedRef != nil && finalizedRef != m.dag.FinalizedHead() {
		m.dag.Finalize(finalizedRef)
		if err := m.forkChoice.Prune(ctx, finalized.Root); err != nil {
			return errors.Wrap(err, "could not prune fork choice")
		}
	}
	return nil
}

// refreshJustifiedBalances reloads the justified state's effective
// balances when the justified root moved; a justified state evicted from
// the cache falls back to the head state's registry, which shares the
// relevant effective balances in the common case.
func (m *Manager) refreshJustifiedBalances(justifiedRoot [32]byte) error {
	if justifiedRoot == m.justifiedRoot && m.justifiedBalances != nil {
		return nil
	}
	st := m.dag.StateByRoot(justifiedRoot)
	if st == nil {
		var err error
		st, err = m.dag.HeadState()
		if err != nil {
			return err
		}
	}
	epoch := helpers.CurrentEpoch(st)
	balances := make([]ssztypes.Gwei, len(st.Validators))
	for i, v := range st.Validators {
		if v.IsActive(epoch) {
			balances[i] = v.EffectiveBalance
		}
	}
	m.justifiedBalances = balances
	m.justifiedRoot = justifiedRoot
	return nil
}

// NotifyForkchoiceUpdated issues engine_forkchoiceUpdated toward head
// with the DAG's finalized execution block hash, after a head update
// completes. Timeouts and transport failures degrade to SYNCING inside the
// client and are non-fatal here; an INVALID verdict evicts the head's
// payload chain from fork choice and the DAG.
func (m *Manager) NotifyForkchoiceUpdated(ctx context.Context, head *dag.BlockRef) error {
	if head == nil {
		return nil
	}
	headHash := head.ExecutionBlockHash()
	if headHash == [32]byte{} {
		// Pre-merge head: the engine has nothing to reorganize.
		return nil
	}
	return m.forkchoiceUpdated(ctx, headHash, head.Root())
}

// NotifyForkchoiceUpdatedOptimistic is the optimistic-sync variant: the
// caller names the execution head hash directly.
func (m *Manager) NotifyForkchoiceUpdatedOptimistic(ctx context.Context, headHash [32]byte) error {
	return m.forkchoiceUpdated(ctx, headHash, [32]byte{})
}

func (m *Manager) forkchoiceUpdated(ctx context.Context, headHash [32]byte, headRoot [32]byte) error {
	justifiedHash := m.justifiedExecutionBlockHash()
	finalizedHash := m.dag.FinalizedExecutionBlockHash()
	fcs := &execution.ForkchoiceState{
		HeadBlockHash:      common.Hash(headHash),
		SafeBlockHash:      common.Hash(justifiedHash),
		FinalizedBlockHash: common.Hash(finalizedHash),
	}
	_, status, err := m.engine.ForkchoiceUpdated(ctx, fcs, nil)
	if err != nil {
		log.WithError(err).Warn("forkchoiceUpdated failed")
		return nil
	}
	switch execution.StatusError(status) {
	case nil:
		if headRoot != [32]byte{} {
			if err := m.forkChoice.SetOptimisticToValid(headRoot); err != nil {
				log.WithError(err).Error("Could not mark head valid")
			}
		}
	case execution.ErrAcceptedSyncingPayloadStatus:
		log.WithField("headHash", headHash).Info("Called fork choice updated with optimistic block")
	case execution.ErrInvalidPayloadStatus, execution.ErrInvalidBlockHashPayloadStatus, execution.ErrInvalidTerminalBlockStatus:
		if headRoot == [32]byte{} {
			return nil
		}
		removed, err := m.forkChoice.SetOptimisticToInvalid(ctx, headRoot)
		if err != nil {
			log.WithError(err).Error("Could not invalidate head subtree")
			return nil
		}
		for _, r := range removed {
			m.dag.RemoveInvalid(r)
			m.quarantine.AddUnviable(r)
		}
		log.WithField("invalidCount", len(removed)).Warn("Pruned invalid payload chain")
	default:
		log.WithField("status", status.Status).Error("Received an undefined execution engine status")
	}
	return nil
}

// justifiedExecutionBlockHash resolves the justified checkpoint's
// execution block hash, walking to the nearest post-merge ancestor.
func (m *Manager) justifiedExecutionBlockHash() [32]byte {
	justified := m.forkChoice.JustifiedCheckpoint()
	ref := m.dag.GetRef(justified.Root)
	for ; ref != nil; ref = ref.Parent() {
		if ref.ExecutionBlockHash() != [32]byte{} {
			return ref.ExecutionBlockHash()
		}
	}
	return [32]byte{}
}
