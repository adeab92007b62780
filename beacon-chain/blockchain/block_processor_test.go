package blockchain_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sigcore-labs/beacon-core/beacon-chain/beaconclock"
	"github.com/sigcore-labs/beacon-core/beacon-chain/blockchain"
	"github.com/sigcore-labs/beacon-core/beacon-chain/consensusmanager"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/transition"
	"github.com/sigcore-labs/beacon-core/beacon-chain/dag"
	"github.com/sigcore-labs/beacon-core/beacon-chain/execution"
	mockengine "github.com/sigcore-labs/beacon-core/beacon-chain/execution/testing"
	"github.com/sigcore-labs/beacon-core/beacon-chain/forkchoice"
	"github.com/sigcore-labs/beacon-core/beacon-chain/quarantine"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/testing/util"
)

type harness struct {
	processor  *blockchain.BlockProcessor
	dag        *dag.DAG
	quarantine *quarantine.Quarantine
	engine     *mockengine.EngineClient
	genesis    *state.BeaconState
	cancel     context.CancelFunc
}

func newHarness(t *testing.T, version state.Version) *harness {
	t.Helper()
	util.SetupTestConfig(version)
	genesis := util.NewBeaconState(version, 64)

	pre := genesis.Copy()
	_, err := transition.ProcessSlots(pre, genesis.Slot+1, nil)
	require.NoError(t, err)
	anchorRoot, err := pre.LatestBlockHeader.HashTreeRoot()
	require.NoError(t, err)

	d := dag.New(anchorRoot, genesis, [32]byte{})
	q := quarantine.New()
	eng := &mockengine.EngineClient{}
	cp := consensusblocks.Checkpoint{Epoch: 0, Root: anchorRoot}
	fc := forkchoice.New(anchorRoot, 0, [32]byte{}, cp, cp)
	cm := consensusmanager.New(d, fc, eng, q)
	clock := beaconclock.NewWithNower(time.Unix(1_600_000_000, 0), func() time.Time {
		// Pin the wall clock far enough ahead that every test block is in
		// the past.
		return time.Unix(1_600_000_000, 0).Add(time.Hour)
	})
	p := blockchain.NewBlockProcessor(blockchain.Config{
		DAG:              d,
		Quarantine:       q,
		Engine:           eng,
		ConsensusManager: cm,
		Clock:            clock,
		Verifier:         dag.NoopVerifier(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	go p.RunQueueLoop(ctx)
	t.Cleanup(cancel)
	return &harness{processor: p, dag: d, quarantine: q, engine: eng, genesis: genesis, cancel: cancel}
}

func awaitResult(t *testing.T, f blockchain.ResultFuture) blockchain.Result {
	t.Helper()
	select {
	case r := <-f:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for block result")
		return 0
	}
}

func rootOf(t *testing.T, blk *consensusblocks.ForkedSignedBeaconBlock) [32]byte {
	t.Helper()
	root, err := blk.Block().Block.HashTreeRoot()
	require.NoError(t, err)
	return root
}

func TestProcessorStoresValidBlock(t *testing.T) {
	h := newHarness(t, state.Phase0)
	blk, _, err := util.GenerateForkedBlock(h.genesis, 1, consensusblocks.Phase0)
	require.NoError(t, err)

	fut := blockchain.NewResultFuture()
	h.processor.AddBlock(blockchain.SourceGossip, blk, fut, 0)
	assert.Equal(t, blockchain.ResultOk, awaitResult(t, fut))
	assert.NotNil(t, h.dag.GetRef(rootOf(t, blk)))
	assert.Equal(t, rootOf(t, blk), h.dag.Head().Root(), "stored block should become head")
}

func TestProcessorDuplicateBlock(t *testing.T) {
	h := newHarness(t, state.Phase0)
	blk, _, err := util.GenerateForkedBlock(h.genesis, 1, consensusblocks.Phase0)
	require.NoError(t, err)

	fut := blockchain.NewResultFuture()
	h.processor.AddBlock(blockchain.SourceGossip, blk, fut, 0)
	require.Equal(t, blockchain.ResultOk, awaitResult(t, fut))

	fut2 := blockchain.NewResultFuture()
	h.processor.AddBlock(blockchain.SourceGossip, blk, fut2, 0)
	assert.Equal(t, blockchain.ResultDuplicate, awaitResult(t, fut2))
}

func TestOrphanThenReunion(t *testing.T) {
	h := newHarness(t, state.Phase0)
	chain, _, err := util.GenerateChain(h.genesis, 2, consensusblocks.Phase0)
	require.NoError(t, err)
	blkA, blkB := chain[0], chain[1]

	// B arrives first: parent unknown, lands in quarantine.
	futB := blockchain.NewResultFuture()
	h.processor.AddBlock(blockchain.SourceGossip, blkB, futB, 0)
	require.Equal(t, blockchain.ResultMissingParent, awaitResult(t, futB))
	assert.True(t, h.quarantine.HasOrphan(rootOf(t, blkB)))

	// A lands; the processor re-enqueues B automatically.
	futA := blockchain.NewResultFuture()
	h.processor.AddBlock(blockchain.SourceGossip, blkA, futA, 0)
	require.Equal(t, blockchain.ResultOk, awaitResult(t, futA))

	require.Eventually(t, func() bool {
		return h.dag.GetRef(rootOf(t, blkB)) != nil
	}, 5*time.Second, 20*time.Millisecond, "quarantined child must reach the DAG after its parent")
	assert.False(t, h.quarantine.HasOrphan(rootOf(t, blkB)))
}

func TestUnviableForkPropagation(t *testing.T) {
	h := newHarness(t, state.Phase0)
	unviableRoot := [32]byte{0x77}
	h.quarantine.AddUnviable(unviableRoot)

	child := &consensusblocks.SignedBeaconBlock{
		Block: &consensusblocks.BeaconBlock{
			Version:    consensusblocks.Phase0,
			Slot:       2,
			ParentRoot: unviableRoot,
			Body:       &consensusblocks.BeaconBlockBody{Eth1Data: &consensusblocks.Eth1Data{}},
		},
	}
	forked, err := consensusblocks.NewForkedSignedBeaconBlock(child)
	require.NoError(t, err)

	fut := blockchain.NewResultFuture()
	h.processor.AddBlock(blockchain.SourceGossip, forked, fut, 0)
	assert.Equal(t, blockchain.ResultUnviableFork, awaitResult(t, fut))
	assert.True(t, h.quarantine.IsUnviable(rootOf(t, forked)))
	assert.False(t, h.quarantine.HasOrphan(rootOf(t, forked)), "unviable block must not enter the orphan set")
}

func TestOptimisticSyncBlock(t *testing.T) {
	h := newHarness(t, state.Bellatrix)
	payloadHash := [32]byte{0xbe, 0xef}
	blk := &consensusblocks.SignedBeaconBlock{
		Block: &consensusblocks.BeaconBlock{
			Version:    consensusblocks.Bellatrix,
			Slot:       5,
			ParentRoot: [32]byte{0x01},
			Body: &consensusblocks.BeaconBlockBody{
				Eth1Data: &consensusblocks.Eth1Data{},
				ExecutionPayload: &consensusblocks.ExecutionPayload{
					ParentHash:  [32]byte{0x02},
					BlockNumber: 9,
					Timestamp:   1,
					BlockHash:   payloadHash,
				},
			},
		},
	}
	forked, err := consensusblocks.NewForkedSignedBeaconBlock(blk)
	require.NoError(t, err)

	fut := blockchain.NewResultFuture()
	h.processor.AddBlock(blockchain.SourceOptimisticSync, forked, fut, 0)
	assert.Equal(t, blockchain.ResultOk, awaitResult(t, fut))

	require.Len(t, h.engine.ForkchoiceUpdatedCalls, 1, "exactly one forkchoiceUpdated for an optimistic block")
	fcs := h.engine.ForkchoiceUpdatedCalls[0]
	assert.Equal(t, payloadHash[:], fcs.HeadBlockHash[:])
	assert.Equal(t, h.dag.FinalizedExecutionBlockHash(), [32]byte(fcs.FinalizedBlockHash))
	assert.Nil(t, h.dag.GetRef(rootOf(t, forked)), "optimistic path must not store the block")
}

func TestInvalidPayloadStatus(t *testing.T) {
	h := newHarness(t, state.Bellatrix)
	h.engine.NewPayloadStatus = &execution.PayloadStatus{Status: execution.StatusInvalid}

	blk := &consensusblocks.SignedBeaconBlock{
		Block: &consensusblocks.BeaconBlock{
			Version:    consensusblocks.Bellatrix,
			Slot:       3,
			ParentRoot: [32]byte{0x01},
			Body: &consensusblocks.BeaconBlockBody{
				Eth1Data: &consensusblocks.Eth1Data{},
				ExecutionPayload: &consensusblocks.ExecutionPayload{
					BlockNumber: 4,
					Timestamp:   1,
					BlockHash:   [32]byte{0x0b},
				},
			},
		},
	}
	forked, err := consensusblocks.NewForkedSignedBeaconBlock(blk)
	require.NoError(t, err)

	fut := blockchain.NewResultFuture()
	h.processor.AddBlock(blockchain.SourceGossip, forked, fut, 0)
	assert.Equal(t, blockchain.ResultInvalid, awaitResult(t, fut))
	assert.Nil(t, h.dag.GetRef(rootOf(t, forked)))
	assert.Len(t, h.engine.NewPayloadCalls, 1)
}

func TestSyncingPayloadStatus(t *testing.T) {
	h := newHarness(t, state.Bellatrix)
	h.engine.NewPayloadStatus = &execution.PayloadStatus{Status: execution.StatusSyncing}

	blk := &consensusblocks.SignedBeaconBlock{
		Block: &consensusblocks.BeaconBlock{
			Version:    consensusblocks.Bellatrix,
			Slot:       3,
			ParentRoot: [32]byte{0x01},
			Body: &consensusblocks.BeaconBlockBody{
				Eth1Data: &consensusblocks.Eth1Data{},
				ExecutionPayload: &consensusblocks.ExecutionPayload{
					BlockNumber: 4,
					Timestamp:   1,
					BlockHash:   [32]byte{0x0c},
				},
			},
		},
	}
	forked, err := consensusblocks.NewForkedSignedBeaconBlock(blk)
	require.NoError(t, err)

	fut := blockchain.NewResultFuture()
	h.processor.AddBlock(blockchain.SourceGossip, forked, fut, 0)
	assert.Equal(t, blockchain.ResultMissingParent, awaitResult(t, fut))
	assert.Nil(t, h.dag.GetRef(rootOf(t, forked)))
}

func TestShutdownResolvesCancelled(t *testing.T) {
	h := newHarness(t, state.Phase0)
	h.cancel()
	// Give the loop a moment to drain and flip the shutdown flag.
	time.Sleep(100 * time.Millisecond)

	blk, _, err := util.GenerateForkedBlock(h.genesis, 1, consensusblocks.Phase0)
	require.NoError(t, err)
	fut := blockchain.NewResultFuture()
	h.processor.AddBlock(blockchain.SourceGossip, blk, fut, 0)
	assert.Equal(t, blockchain.ResultCancelled, awaitResult(t, fut))
}

func TestHasBlocks(t *testing.T) {
	util.SetupTestConfig(state.Phase0)
	genesis := util.NewBeaconState(state.Phase0, 64)
	pre := genesis.Copy()
	_, err := transition.ProcessSlots(pre, 1, nil)
	require.NoError(t, err)
	anchorRoot, err := pre.LatestBlockHeader.HashTreeRoot()
	require.NoError(t, err)

	d := dag.New(anchorRoot, genesis, [32]byte{})
	q := quarantine.New()
	eng := &mockengine.EngineClient{}
	cp := consensusblocks.Checkpoint{Epoch: 0, Root: anchorRoot}
	fc := forkchoice.New(anchorRoot, 0, [32]byte{}, cp, cp)
	p := blockchain.NewBlockProcessor(blockchain.Config{
		DAG:              d,
		Quarantine:       q,
		Engine:           eng,
		ConsensusManager: consensusmanager.New(d, fc, eng, q),
		Clock:            beaconclock.New(time.Unix(1_600_000_000, 0)),
		Verifier:         dag.NoopVerifier(),
	})
	// No consumer loop: the entry stays queued.
	assert.False(t, p.HasBlocks())
	blk, _, err := util.GenerateForkedBlock(genesis, 1, consensusblocks.Phase0)
	require.NoError(t, err)
	p.AddBlock(blockchain.SourceSync, blk, nil, 0)
	assert.True(t, p.HasBlocks())
}
