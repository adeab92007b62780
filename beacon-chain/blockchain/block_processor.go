// Package blockchain hosts the block processor: the single-consumer queue
// that serializes consensus verification, dispatches execution payloads to
// the engine, reconciles optimistic vs. verified head selection, and feeds
// the quarantine.
package blockchain

import (
	"context"
	"sync"
	"time"

	gethevent "github.com/ethereum/go-ethereum/event"
	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/beacon-chain/beaconclock"
	"github.com/sigcore-labs/beacon-core/beacon-chain/consensusmanager"
	statefeed "github.com/sigcore-labs/beacon-core/beacon-chain/core/feed/state"
	"github.com/sigcore-labs/beacon-core/beacon-chain/dag"
	"github.com/sigcore-labs/beacon-core/beacon-chain/execution"
	"github.com/sigcore-labs/beacon-core/beacon-chain/quarantine"
	"github.com/sigcore-labs/beacon-core/config/params"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"go.opencensus.io/trace"
)

// BlockSource identifies who handed the block to the processor.
type BlockSource int

const (
	// SourceGossip is a block from the gossip network.
	SourceGossip BlockSource = iota
	// SourceSync is a block from forward sync.
	SourceSync
	// SourceRequest is a block fetched by root request (quarantine refill).
	SourceRequest
	// SourceOptimisticSync is a block whose payload the caller already
	// executed optimistically.
	SourceOptimisticSync
)

func (s BlockSource) String() string {
	switch s {
	case SourceGossip:
		return "gossip"
	case SourceSync:
		return "sync"
	case SourceRequest:
		return "request"
	case SourceOptimisticSync:
		return "optimistic_sync"
	default:
		return "unknown"
	}
}

// VerifiedHeadPreferenceSlots is how close (in slots) the DAG's verified
// head must be to the optimistic head for forkchoiceUpdated to target the
// verified head instead. The cutoff is a heuristic: far behind the
// optimistic head the verified chain is stale enough that steering the
// engine toward it would stall sync.
const VerifiedHeadPreferenceSlots = 256

// queueIdleYield is the bounded idle timeout between consumer iterations
// so network I/O can progress even under sustained load.
const queueIdleYield = 10 * time.Millisecond

// epochsSinceFinalitySaveHotStates is how many epochs of non-finality pass
// before the DAG starts persisting intermediate states.
const epochsSinceFinalitySaveHotStates ssztypes.Epoch = 100

// ValidatorMonitor receives per-block registration callbacks.
type ValidatorMonitor interface {
	RegisterBeaconBlock(proposer ssztypes.ValidatorIndex, slot ssztypes.Slot, root [32]byte)
	RegisterAttestationInBlock(data *consensusblocks.AttestationData, indices []ssztypes.ValidatorIndex, blockSlot ssztypes.Slot)
	RegisterSyncAggregateInBlock(slot ssztypes.Slot, participants []ssztypes.ValidatorIndex)
}

// blockEntry is one queued unit of work. The processor owns it from
// dequeue until its future resolves.
type blockEntry struct {
	src                BlockSource
	blk                *consensusblocks.ForkedSignedBeaconBlock
	result             ResultFuture
	validationDuration time.Duration
	queuedAt           time.Time
}

// Config wires the processor's collaborators.
type Config struct {
	DAG              *dag.DAG
	Quarantine       *quarantine.Quarantine
	Engine           execution.EngineCaller
	ConsensusManager *consensusmanager.Manager
	Clock            *beaconclock.Clock
	Monitor          ValidatorMonitor
	Verifier         dag.Verifier
}

// BlockProcessor is the async ingest queue plus its single consumer loop.
// The queue is unbounded by contract; producers self-throttle by awaiting
// each block's result future before enqueueing more.
type BlockProcessor struct {
	cfg Config

	mu       sync.Mutex
	queue    []*blockEntry
	notify   chan struct{}
	shutdown bool

	stateFeed gethevent.Feed

	wsCheckpoint WeakSubjectivityCheckpoint
	wsVerified   bool
}

// NewBlockProcessor returns a processor over cfg. Verifier defaults to the
// batch BLS verifier when unset.
func NewBlockProcessor(cfg Config) *BlockProcessor {
	if cfg.Verifier == nil {
		cfg.Verifier = dag.NewBatchVerifier()
	}
	return &BlockProcessor{
		cfg:    cfg,
		notify: make(chan struct{}, 1),
	}
}

// StateFeed exposes the event feed out-of-scope consumers subscribe to.
func (p *BlockProcessor) StateFeed() *gethevent.Feed {
	return &p.stateFeed
}

// AddBlock enqueues a block without blocking. Blocks at or below the
// finalized head slot bypass the queue and are stored synchronously as
// backfill. result may be nil when the producer does not care.
func (p *BlockProcessor) AddBlock(src BlockSource, blk *consensusblocks.ForkedSignedBeaconBlock, result ResultFuture, validationDuration time.Duration) {
	if blk.Block().Block.Slot <= p.cfg.DAG.FinalizedHead().Slot() {
		p.storeBackfillBlock(blk, result)
		return
	}
	entry := &blockEntry{
		src:                src,
		blk:                blk,
		result:             result,
		validationDuration: validationDuration,
		queuedAt:           time.Now(),
	}
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		log.WithError(errShuttingDown).Debug("Dropping enqueued block")
		resolve(result, ResultCancelled)
		return
	}
	p.queue = append(p.queue, entry)
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// HasBlocks reports whether work is queued.
func (p *BlockProcessor) HasBlocks() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue) > 0
}

func (p *BlockProcessor) popFirst() *blockEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil
	}
	entry := p.queue[0]
	p.queue = p.queue[1:]
	return entry
}

// RunQueueLoop drives the consumer until ctx is cancelled: yield briefly so
// networking makes progress, await one entry, process it. On shutdown every
// in-flight result future resolves with Cancelled.
func (p *BlockProcessor) RunQueueLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case <-time.After(queueIdleYield):
		}
		entry := p.popFirst()
		if entry == nil {
			select {
			case <-ctx.Done():
				p.drain()
				return
			case <-p.notify:
			}
			entry = p.popFirst()
			if entry == nil {
				continue
			}
		}
		p.processBlock(ctx, entry)
	}
}

func (p *BlockProcessor) drain() {
	p.mu.Lock()
	pending := p.queue
	p.queue = nil
	p.shutdown = true
	p.mu.Unlock()
	for _, entry := range pending {
		resolve(entry.result, ResultCancelled)
	}
}

// processBlock is one consumer iteration: engine dispatch for Bellatrix
// payloads, then the store path or the optimistic shortcut.
func (p *BlockProcessor) processBlock(ctx context.Context, entry *blockEntry) {
	ctx, span := trace.StartSpan(ctx, "blockChain.processBlock")
	defer span.End()

	blk := entry.blk.Block().Block
	payload := executionPayloadOf(entry.blk)

	var status *execution.PayloadStatus
	if payload != nil && !payload.IsEmpty() {
		var err error
		status, err = p.cfg.Engine.NewPayload(ctx, payload)
		if err != nil {
			// Transport errors map to syncing.
			log.WithError(err).Warn("newPayload transport error, treating as syncing")
			status = &execution.PayloadStatus{Status: execution.StatusSyncing}
		}
	}

	if entry.src == SourceOptimisticSync {
		p.processOptimisticBlock(ctx, entry, payload)
		return
	}

	if status != nil {
		switch execution.StatusError(status) {
		case nil:
			// VALID; fall through to store.
		case execution.ErrInvalidPayloadStatus, execution.ErrInvalidBlockHashPayloadStatus, execution.ErrInvalidTerminalBlockStatus:
			root, err := blk.HashTreeRoot()
			if err == nil {
				logBlockRejected(blk, root, entry.validationDuration, ErrInvalidPayload)
			}
			resolve(entry.result, ResultInvalid)
			return
		case execution.ErrAcceptedSyncingPayloadStatus:
			resolve(entry.result, ResultMissingParent)
			return
		default:
			log.WithField("status", status.Status).Error(ErrUndefinedExecutionEngineError)
			resolve(entry.result, ResultMissingParent)
			return
		}
	}

	p.storeBlock(ctx, entry)
}

// processOptimisticBlock handles src == optimistic_sync: the payload was
// already executed elsewhere, so the processor only steers the engine's
// fork choice — toward the DAG's verified head when it is within
// VerifiedHeadPreferenceSlots of the optimistic head, else toward the
// optimistic head itself — and completes the future with Ok without
// storing.
func (p *BlockProcessor) processOptimisticBlock(ctx context.Context, entry *blockEntry, payload *consensusblocks.ExecutionPayload) {
	blk := entry.blk.Block().Block
	headHash := [32]byte{}
	if payload != nil {
		headHash = payload.BlockHash
	}
	verifiedHead := p.cfg.DAG.Head()
	if verifiedHead.ExecutionBlockHash() != [32]byte{} &&
		uint64(blk.Slot) <= uint64(verifiedHead.Slot())+VerifiedHeadPreferenceSlots {
		headHash = verifiedHead.ExecutionBlockHash()
	}
	if err := p.cfg.ConsensusManager.NotifyForkchoiceUpdatedOptimistic(ctx, headHash); err != nil {
		log.WithError(err).Warn("Optimistic forkchoiceUpdated failed")
	}
	resolve(entry.result, ResultOk)
}

// storeBlock runs the clearance path: quarantine upkeep, DAG insert with
// the fork-choice/monitor callback, head update, engine notification, and
// quarantined-children release.
func (p *BlockProcessor) storeBlock(ctx context.Context, entry *blockEntry) {
	blk := entry.blk.Block().Block
	root, err := blk.HashTreeRoot()
	if err != nil {
		resolve(entry.result, ResultInvalid)
		return
	}
	p.cfg.Quarantine.RemoveMissing(root)
	p.cfg.Quarantine.RemoveOrphan(root)

	started := time.Now()
	wallSlot := p.cfg.Clock.CurrentSlot()

	_, err = p.cfg.DAG.AddHeadBlock(p.cfg.Verifier, entry.blk, func(ref *dag.BlockRef, signed *consensusblocks.ForkedSignedBeaconBlock, postState *state.BeaconState) {
		p.onBlockAdded(ref, signed, postState, wallSlot)
	})
	switch {
	case err == nil:
	case errors.Is(err, dag.ErrDuplicate):
		resolve(entry.result, ResultDuplicate)
		return
	case errors.Is(err, dag.ErrMissingParent):
		if p.cfg.Quarantine.IsUnviable(blk.ParentRoot) {
			p.cfg.Quarantine.AddUnviable(root)
			resolve(entry.result, ResultUnviableFork)
			return
		}
		if !p.cfg.Quarantine.AddOrphan(p.cfg.DAG.FinalizedHead().Slot(), root, entry.blk) {
			log.WithField("root", root).Debug("Quarantine refused orphan")
		}
		resolve(entry.result, ResultMissingParent)
		return
	case errors.Is(err, dag.ErrUnviableFork):
		p.cfg.Quarantine.AddUnviable(root)
		resolve(entry.result, ResultUnviableFork)
		return
	default:
		logBlockRejected(blk, root, time.Since(started), err)
		resolve(entry.result, ResultInvalid)
		return
	}

	if err := p.cfg.ConsensusManager.UpdateHead(ctx, wallSlot); err != nil {
		log.WithError(err).Warn("Could not update head")
	}
	p.stateFeed.Send(&statefeed.Event{
		Type: statefeed.BlockProcessed,
		Data: &statefeed.BlockProcessedData{
			Slot:        blk.Slot,
			BlockRoot:   root,
			SignedBlock: entry.blk,
			Verified:    true,
			Duration:    time.Since(started),
		},
	})

	// Head update completes before the engine hears about it.
	if err := p.cfg.ConsensusManager.NotifyForkchoiceUpdated(ctx, p.cfg.DAG.Head()); err != nil {
		log.WithError(err).Warn("forkchoiceUpdated after store failed")
	}

	p.checkSaveHotStates(wallSlot)
	logStateTransitionData(blk, root, time.Since(started))
	resolve(entry.result, ResultOk)

	// Release any quarantined children now that their parent landed.
	for _, child := range p.cfg.Quarantine.Pop(root) {
		p.AddBlock(SourceRequest, child, nil, 0)
	}
}

// storeBackfillBlock handles blocks at or below the finalized slot
// synchronously, outside the queue.
func (p *BlockProcessor) storeBackfillBlock(blk *consensusblocks.ForkedSignedBeaconBlock, result ResultFuture) {
	if err := p.cfg.DAG.AddBackfillBlock(blk); err != nil {
		log.WithError(err).Warn("Could not store backfill block")
		resolve(result, ResultInvalid)
		return
	}
	resolve(result, ResultOk)
}

// checkSaveHotStates flips the DAG's hot-state persistence policy after
// sustained non-finality, so a long non-finalizing stretch does not pin
// every intermediate state in memory.
func (p *BlockProcessor) checkSaveHotStates(wallSlot ssztypes.Slot) {
	currentEpoch := ssztypes.Epoch(uint64(wallSlot) / uint64(params.BeaconConfig().SlotsPerEpoch))
	finalizedEpoch := p.cfg.DAG.FinalizedHead().Epoch(params.BeaconConfig().SlotsPerEpoch)
	var sinceFinality ssztypes.Epoch
	if currentEpoch > finalizedEpoch {
		sinceFinality = currentEpoch - finalizedEpoch
	}
	if sinceFinality >= epochsSinceFinalitySaveHotStates {
		p.cfg.DAG.EnableSaveHotStates()
		return
	}
	p.cfg.DAG.DisableSaveHotStates()
}

func executionPayloadOf(blk *consensusblocks.ForkedSignedBeaconBlock) *consensusblocks.ExecutionPayload {
	if blk.Version() < consensusblocks.Bellatrix {
		return nil
	}
	return blk.Block().Block.Body.ExecutionPayload
}
