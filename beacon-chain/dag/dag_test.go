package dag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/transition"
	"github.com/sigcore-labs/beacon-core/beacon-chain/dag"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/testing/util"
)

// anchorFor derives the root GenerateBlock will use as the first block's
// parent: the genesis header root after its state-root backfill.
func anchorFor(t *testing.T, genesis *state.BeaconState) [32]byte {
	t.Helper()
	pre := genesis.Copy()
	_, err := transition.ProcessSlots(pre, genesis.Slot+1, nil)
	require.NoError(t, err)
	root, err := pre.LatestBlockHeader.HashTreeRoot()
	require.NoError(t, err)
	return root
}

func setupDAG(t *testing.T) (*dag.DAG, *state.BeaconState) {
	t.Helper()
	util.SetupTestConfig(state.Phase0)
	genesis := util.NewBeaconState(state.Phase0, 64)
	d := dag.New(anchorFor(t, genesis), genesis, [32]byte{})
	return d, genesis
}

func TestAddHeadBlock(t *testing.T) {
	d, genesis := setupDAG(t)
	blk, _, err := util.GenerateForkedBlock(genesis, 1, consensusblocks.Phase0)
	require.NoError(t, err)

	var callbackRan bool
	ref, err := d.AddHeadBlock(dag.NoopVerifier(), blk, func(ref *dag.BlockRef, _ *consensusblocks.ForkedSignedBeaconBlock, postState *state.BeaconState) {
		callbackRan = true
		assert.NotNil(t, postState)
	})
	require.NoError(t, err)
	assert.True(t, callbackRan, "post-insert callback must run")
	assert.NotNil(t, d.GetRef(ref.Root()))
	assert.NotNil(t, d.StateByRoot(ref.Root()))
	assert.NotNil(t, d.BlockByRoot(ref.Root()))
}

func TestAddHeadBlockDuplicate(t *testing.T) {
	d, genesis := setupDAG(t)
	blk, _, err := util.GenerateForkedBlock(genesis, 1, consensusblocks.Phase0)
	require.NoError(t, err)

	_, err = d.AddHeadBlock(dag.NoopVerifier(), blk, nil)
	require.NoError(t, err)
	_, err = d.AddHeadBlock(dag.NoopVerifier(), blk, nil)
	assert.ErrorIs(t, err, dag.ErrDuplicate)
}

func TestAddHeadBlockMissingParent(t *testing.T) {
	d, genesis := setupDAG(t)
	// Two chained blocks; insert the child without its parent.
	chain, _, err := util.GenerateChain(genesis, 2, consensusblocks.Phase0)
	require.NoError(t, err)

	_, err = d.AddHeadBlock(dag.NoopVerifier(), chain[1], nil)
	assert.ErrorIs(t, err, dag.ErrMissingParent)
}

func TestAddHeadBlockInvalidStateRoot(t *testing.T) {
	d, genesis := setupDAG(t)
	blk, _, err := util.GenerateForkedBlock(genesis, 1, consensusblocks.Phase0)
	require.NoError(t, err)
	blk.Block().Block.StateRoot = [32]byte{0xde, 0xad}

	_, err = d.AddHeadBlock(dag.NoopVerifier(), blk, nil)
	require.Error(t, err)
	assert.True(t, dag.IsInvalidBlock(err), "state-root mismatch must surface as an invalid block")
	assert.Nil(t, d.GetRef(dag.InvalidBlockRoot(err)))
}

func TestAddHeadBlockChain(t *testing.T) {
	d, genesis := setupDAG(t)
	chain, _, err := util.GenerateChain(genesis, 3, consensusblocks.Phase0)
	require.NoError(t, err)

	for _, blk := range chain {
		_, err := d.AddHeadBlock(dag.NoopVerifier(), blk, nil)
		require.NoError(t, err)
	}
	// The last ref chains back to the anchor.
	lastRoot, err := chain[2].Block().Block.HashTreeRoot()
	require.NoError(t, err)
	ref := d.GetRef(lastRoot)
	require.NotNil(t, ref)
	assert.Equal(t, d.FinalizedHead().Root(), ref.Parent().Parent().Parent().Root())
}

func TestAddBackfillBlockBounds(t *testing.T) {
	d, genesis := setupDAG(t)
	blk, _, err := util.GenerateForkedBlock(genesis, 1, consensusblocks.Phase0)
	require.NoError(t, err)
	// Finalized head sits at slot 0; a slot-1 block is not backfill.
	assert.Error(t, d.AddBackfillBlock(blk))
}

func TestFinalizedExecutionBlockHash(t *testing.T) {
	util.SetupTestConfig(state.Phase0)
	genesis := util.NewBeaconState(state.Phase0, 64)
	d := dag.New([32]byte{1}, genesis, [32]byte{0xec})
	assert.Equal(t, [32]byte{0xec}, d.FinalizedExecutionBlockHash())
}
