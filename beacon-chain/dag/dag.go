// Package dag owns the in-memory block tree and the canonical state
// cache: persisted blocks, per-root hot states, the finalized and current
// head, and the AddHeadBlock / AddBackfillBlock ingest paths. All mutation
// happens on the consensus thread.
package dag

import (
	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/transition"
	"github.com/sigcore-labs/beacon-core/config/params"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "dag")

// Verifier authenticates a signed block against its pre-state advanced to
// the block's slot, before the block phase of the state transition runs.
// The production verifier batch-checks every BLS signature the block
// carries (see NewBatchVerifier); tests substitute a no-op.
type Verifier func(preState *state.BeaconState, signed *consensusblocks.SignedBeaconBlock) error

// OnBlockAdded is invoked after a block passes the state transition and its
// ref is linked, while the DAG still owns the post-state. The block
// processor uses it to add the block to fork choice and register
// attestations with the validator monitor.
type OnBlockAdded func(ref *BlockRef, signed *consensusblocks.ForkedSignedBeaconBlock, postState *state.BeaconState)

// DAG is the block tree plus its state cache. It exclusively owns persisted
// blocks and the canonical states.
type DAG struct {
	refs   map[[32]byte]*BlockRef
	blocks map[[32]byte]*consensusblocks.ForkedSignedBeaconBlock
	states map[[32]byte]*state.BeaconState

	backfill map[[32]byte]*consensusblocks.ForkedSignedBeaconBlock

	head          *BlockRef
	finalizedHead *BlockRef

	skipSlotCache *transition.SkipSlotCache

	// saveHotStates is the hot-state promotion policy knob: after long
	// non-finality the owner flips it so intermediate states are handed to
	// the persistence hook instead of living only in memory.
	saveHotStates bool
	persistState  func(root [32]byte, st *state.BeaconState)
}

// New seeds a DAG from a trusted anchor block root and its state, typically
// a finalized checkpoint pair.
func New(anchorRoot [32]byte, anchorState *state.BeaconState, executionBlockHash [32]byte) *DAG {
	anchor := &BlockRef{
		root:               anchorRoot,
		slot:               anchorState.Slot,
		executionBlockHash: executionBlockHash,
	}
	return &DAG{
		refs:          map[[32]byte]*BlockRef{anchorRoot: anchor},
		blocks:        make(map[[32]byte]*consensusblocks.ForkedSignedBeaconBlock),
		states:        map[[32]byte]*state.BeaconState{anchorRoot: anchorState},
		backfill:      make(map[[32]byte]*consensusblocks.ForkedSignedBeaconBlock),
		head:          anchor,
		finalizedHead: anchor,
		skipSlotCache: transition.NewSkipSlotCache(),
	}
}

// GetRef returns the BlockRef for root, nil if unknown.
func (d *DAG) GetRef(root [32]byte) *BlockRef {
	return d.refs[root]
}

// Head returns the current head ref.
func (d *DAG) Head() *BlockRef {
	return d.head
}

// SetHead records the head chosen by fork choice. Observable only after
// the store path completes.
func (d *DAG) SetHead(ref *BlockRef) {
	d.head = ref
}

// FinalizedHead returns the latest finalized ref.
func (d *DAG) FinalizedHead() *BlockRef {
	return d.finalizedHead
}

// FinalizedExecutionBlockHash walks from the finalized head up the parent
// chain to the nearest ref carrying an execution block hash, zero if the
// finalized chain is entirely pre-merge.
func (d *DAG) FinalizedExecutionBlockHash() [32]byte {
	for n := d.finalizedHead; n != nil; n = n.parent {
		if n.executionBlockHash != [32]byte{} {
			return n.executionBlockHash
		}
	}
	return [32]byte{}
}

// StateByRoot returns the cached post-state for root, nil if evicted.
func (d *DAG) StateByRoot(root [32]byte) *state.BeaconState {
	return d.states[root]
}

// HeadState returns the state at the current head, replaying from the
// nearest cached ancestor if the head state itself was evicted.
func (d *DAG) HeadState() (*state.BeaconState, error) {
	return d.stateFor(d.head)
}

// BlockByRoot returns the stored signed block for root, nil if unknown.
func (d *DAG) BlockByRoot(root [32]byte) *consensusblocks.ForkedSignedBeaconBlock {
	if b, ok := d.blocks[root]; ok {
		return b
	}
	return d.backfill[root]
}

// SetHotStatePolicy installs the promotion hook invoked for each new state
// while the policy is enabled (see EnableSaveHotStates).
func (d *DAG) SetHotStatePolicy(persist func(root [32]byte, st *state.BeaconState)) {
	d.persistState = persist
}

// EnableSaveHotStates turns on hot-state persistence, called by the block
// processor after sustained non-finality.
func (d *DAG) EnableSaveHotStates() {
	if !d.saveHotStates {
		log.Warn("Enabling hot state persistence, finality has been delayed")
	}
	d.saveHotStates = true
}

// DisableSaveHotStates turns hot-state persistence back off.
func (d *DAG) DisableSaveHotStates() {
	d.saveHotStates = false
}

// AddHeadBlock runs the full clearance path for a block whose parent is
// known: authenticate via verifier, apply the state transition against the
// parent's state, link the BlockRef, cache the post-state, and invoke
// onAdded. Returns ErrDuplicate / ErrMissingParent / ErrUnviableFork or an
// invalid-block error.
func (d *DAG) AddHeadBlock(verifier Verifier, signed *consensusblocks.ForkedSignedBeaconBlock, onAdded OnBlockAdded) (*BlockRef, error) {
	blk := signed.Block().Block
	root, err := blk.HashTreeRoot()
	if err != nil {
		return nil, errors.Wrap(err, "could not hash block")
	}
	if _, ok := d.refs[root]; ok {
		return nil, ErrDuplicate
	}
	parent, ok := d.refs[blk.ParentRoot]
	if !ok {
		return nil, ErrMissingParent
	}
	if blk.Slot <= d.finalizedHead.slot {
		// The parent is known but the block cannot sit on the canonical
		// chain: it conflicts with finality.
		return nil, ErrUnviableFork
	}
	if !d.finalizedHead.IsAncestorOf(parent) && parent != d.finalizedHead {
		return nil, ErrUnviableFork
	}

	parentState, err := d.stateFor(parent)
	if err != nil {
		return nil, errors.Wrap(err, "could not recover parent state")
	}

	// Scratch copy: the transition commits on success, the parent state is
	// never mutated, so a failure needs no rollback. Slots are processed
	// before the verifier runs so signature domains and committees reflect
	// the block's own slot (and any fork upgrade it crosses); the block
	// phase then runs with the signature checks elided, since the batch
	// verifier already covered every signature in the block.
	postState := parentState.Copy()
	if _, err := transition.ProcessSlots(postState, blk.Slot, d.skipSlotCache); err != nil {
		return nil, NewInvalidBlock(err, root)
	}
	if err := verifier(postState, signed.Block()); err != nil {
		return nil, NewInvalidBlock(err, root)
	}
	flags := transition.Flags{SkipBLS: true, SlotAlreadyProcessed: true}
	if err := transition.StateTransition(postState, signed.Block(), flags, d.skipSlotCache); err != nil {
		return nil, NewInvalidBlock(err, root)
	}

	ref := &BlockRef{
		root:               root,
		slot:               blk.Slot,
		parent:             parent,
		executionBlockHash: executionBlockHash(blk),
	}
	parent.children = append(parent.children, ref)
	d.refs[root] = ref
	d.blocks[root] = signed
	d.states[root] = postState
	if d.saveHotStates && d.persistState != nil {
		d.persistState(root, postState)
	}

	if onAdded != nil {
		onAdded(ref, signed, postState)
	}
	return ref, nil
}

// AddBackfillBlock stores a block at or below the finalized slot without
// running the state transition; backfilled history is verified by its
// descendants' roots, not by replay. Idempotent on duplicates.
func (d *DAG) AddBackfillBlock(signed *consensusblocks.ForkedSignedBeaconBlock) error {
	blk := signed.Block().Block
	if blk.Slot > d.finalizedHead.slot {
		return errors.Errorf("backfill block slot %d is above finalized slot %d", blk.Slot, d.finalizedHead.slot)
	}
	root, err := blk.HashTreeRoot()
	if err != nil {
		return errors.Wrap(err, "could not hash backfill block")
	}
	d.backfill[root] = signed
	return nil
}

// Finalize advances the finalized head to ref and prunes every block and
// state with slot strictly below the new finalized slot that is not on the
// finalized chain.
func (d *DAG) Finalize(ref *BlockRef) {
	if ref == nil || ref == d.finalizedHead {
		return
	}
	d.finalizedHead = ref
	onChain := make(map[[32]byte]struct{})
	for n := ref; n != nil; n = n.parent {
		onChain[n.root] = struct{}{}
	}
	for root, r := range d.refs {
		if r.slot >= ref.slot {
			continue
		}
		if _, ok := onChain[root]; ok {
			continue
		}
		d.removeBlock(root, r)
	}
}

// RemoveInvalid evicts root and its cached block/state after the execution
// engine judged its payload invalid.
func (d *DAG) RemoveInvalid(root [32]byte) {
	r, ok := d.refs[root]
	if !ok {
		return
	}
	d.removeBlock(root, r)
}

func (d *DAG) removeBlock(root [32]byte, r *BlockRef) {
	if r.parent != nil {
		for i, c := range r.parent.children {
			if c == r {
				r.parent.children[i] = r.parent.children[len(r.parent.children)-1]
				r.parent.children = r.parent.children[:len(r.parent.children)-1]
				break
			}
		}
	}
	delete(d.refs, root)
	delete(d.blocks, root)
	delete(d.states, root)
}

// stateFor returns the post-state at ref, rewinding to the closest ancestor
// with a cached state and replaying stored blocks forward when the direct
// entry was evicted.
func (d *DAG) stateFor(ref *BlockRef) (*state.BeaconState, error) {
	if st, ok := d.states[ref.root]; ok {
		return st, nil
	}
	// Find the nearest ancestor with a state, collecting the blocks to
	// replay on the way down.
	var replay []*consensusblocks.ForkedSignedBeaconBlock
	n := ref
	var base *state.BeaconState
	for n != nil {
		blk, ok := d.blocks[n.root]
		if !ok {
			return nil, errors.Errorf("no stored block for %#x during rewind", n.root)
		}
		replay = append(replay, blk)
		n = n.parent
		if n == nil {
			break
		}
		if st, ok := d.states[n.root]; ok {
			base = st
			break
		}
	}
	if base == nil {
		return nil, errors.Errorf("no ancestor state found for %#x", ref.root)
	}
	st := base.Copy()
	// Replay oldest first; signatures were verified when first cleared.
	for i := len(replay) - 1; i >= 0; i-- {
		flags := transition.Flags{SkipBLS: true, SkipStateRoot: true}
		if err := transition.StateTransition(st, replay[i].Block(), flags, d.skipSlotCache); err != nil {
			return nil, errors.Wrap(err, "replay failed during rewind")
		}
	}
	d.states[ref.root] = st
	return st, nil
}

func executionBlockHash(blk *consensusblocks.BeaconBlock) [32]byte {
	if blk.Version < consensusblocks.Bellatrix || blk.Body.ExecutionPayload == nil {
		return [32]byte{}
	}
	return blk.Body.ExecutionPayload.BlockHash
}

// SlotsPerEpoch is a convenience for BlockRef.Epoch callers.
func SlotsPerEpoch() ssztypes.Slot {
	return params.BeaconConfig().SlotsPerEpoch
}
