package forkchoice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sigcore-labs/beacon-core/config/params"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
)

var anchorRoot = [32]byte{0xaa}

func newTestStore() *Store {
	cp := consensusblocks.Checkpoint{Epoch: 0, Root: anchorRoot}
	return New(anchorRoot, 0, [32]byte{}, cp, cp)
}

func TestInsertNode(t *testing.T) {
	s := newTestStore()
	_, err := s.InsertNode(1, [32]byte{1}, anchorRoot, [32]byte{}, 0, 0)
	require.NoError(t, err)
	assert.True(t, s.HasNode([32]byte{1}))

	_, err = s.InsertNode(1, [32]byte{1}, anchorRoot, [32]byte{}, 0, 0)
	assert.ErrorIs(t, err, ErrDuplicateNode)

	_, err = s.InsertNode(2, [32]byte{2}, [32]byte{0xff}, [32]byte{}, 0, 0)
	assert.ErrorIs(t, err, ErrMissingParent)
}

func TestHeadPicksHeavierBranch(t *testing.T) {
	params.UseMinimalConfig()
	s := newTestStore()
	// Two competing children of the anchor.
	_, err := s.InsertNode(1, [32]byte{1}, anchorRoot, [32]byte{}, 0, 0)
	require.NoError(t, err)
	_, err = s.InsertNode(1, [32]byte{2}, anchorRoot, [32]byte{}, 0, 0)
	require.NoError(t, err)

	balances := make([]ssztypes.Gwei, 4)
	for i := range balances {
		balances[i] = 32_000_000_000
	}
	// Three validators vote for branch 2, one for branch 1.
	s.ProcessAttestation([]ssztypes.ValidatorIndex{0}, [32]byte{1}, 1)
	s.ProcessAttestation([]ssztypes.ValidatorIndex{1, 2, 3}, [32]byte{2}, 1)

	head, err := s.Head(anchorRoot, balances)
	require.NoError(t, err)
	assert.Equal(t, [32]byte{2}, head)
}

func TestHeadFollowsDescendantWeight(t *testing.T) {
	params.UseMinimalConfig()
	s := newTestStore()
	// anchor -> a -> b, and anchor -> c. Votes land on b only.
	_, err := s.InsertNode(1, [32]byte{0xa}, anchorRoot, [32]byte{}, 0, 0)
	require.NoError(t, err)
	_, err = s.InsertNode(2, [32]byte{0xb}, [32]byte{0xa}, [32]byte{}, 0, 0)
	require.NoError(t, err)
	_, err = s.InsertNode(1, [32]byte{0xc}, anchorRoot, [32]byte{}, 0, 0)
	require.NoError(t, err)

	balances := []ssztypes.Gwei{32_000_000_000, 32_000_000_000}
	s.ProcessAttestation([]ssztypes.ValidatorIndex{0, 1}, [32]byte{0xb}, 1)

	head, err := s.Head(anchorRoot, balances)
	require.NoError(t, err)
	assert.Equal(t, [32]byte{0xb}, head, "leaf weight must pull its whole branch ahead")
}

func TestLatestVoteWins(t *testing.T) {
	params.UseMinimalConfig()
	s := newTestStore()
	_, err := s.InsertNode(1, [32]byte{1}, anchorRoot, [32]byte{}, 0, 0)
	require.NoError(t, err)
	_, err = s.InsertNode(1, [32]byte{2}, anchorRoot, [32]byte{}, 0, 0)
	require.NoError(t, err)

	balances := []ssztypes.Gwei{32_000_000_000}
	s.ProcessAttestation([]ssztypes.ValidatorIndex{0}, [32]byte{1}, 1)
	// The same validator votes again at a later epoch; only the newer
	// message counts.
	s.ProcessAttestation([]ssztypes.ValidatorIndex{0}, [32]byte{2}, 2)
	// A stale re-delivery of the old vote must not displace the new one.
	s.ProcessAttestation([]ssztypes.ValidatorIndex{0}, [32]byte{1}, 1)

	head, err := s.Head(anchorRoot, balances)
	require.NoError(t, err)
	assert.Equal(t, [32]byte{2}, head)
}

func TestProposerBoostBreaksTie(t *testing.T) {
	params.UseMinimalConfig()
	s := newTestStore()
	_, err := s.InsertNode(1, [32]byte{1}, anchorRoot, [32]byte{}, 0, 0)
	require.NoError(t, err)
	_, err = s.InsertNode(1, [32]byte{2}, anchorRoot, [32]byte{}, 0, 0)
	require.NoError(t, err)

	balances := []ssztypes.Gwei{32_000_000_000, 32_000_000_000}
	s.ProcessAttestation([]ssztypes.ValidatorIndex{0}, [32]byte{1}, 1)
	s.ProcessAttestation([]ssztypes.ValidatorIndex{1}, [32]byte{2}, 1)

	require.NoError(t, s.BoostProposerRoot([32]byte{1}, 1, 1))
	head, err := s.Head(anchorRoot, balances)
	require.NoError(t, err)
	assert.Equal(t, [32]byte{1}, head)

	// The boost expires once the wall clock leaves the slot.
	s.ResetBoostedProposerRoot(2)
	assert.Equal(t, [32]byte{}, s.ProposerBoostRoot())
}

func TestSetOptimisticToValidPropagates(t *testing.T) {
	s := newTestStore()
	_, err := s.InsertNode(1, [32]byte{1}, anchorRoot, [32]byte{0xe1}, 0, 0)
	require.NoError(t, err)
	_, err = s.InsertNode(2, [32]byte{2}, [32]byte{1}, [32]byte{0xe2}, 0, 0)
	require.NoError(t, err)
	assert.True(t, s.Node([32]byte{1}).Optimistic())
	assert.True(t, s.Node([32]byte{2}).Optimistic())

	require.NoError(t, s.SetOptimisticToValid([32]byte{2}))
	assert.False(t, s.Node([32]byte{1}).Optimistic(), "validity must propagate to ancestors")
	assert.False(t, s.Node([32]byte{2}).Optimistic())
}

func TestSetOptimisticToInvalidRemovesSubtree(t *testing.T) {
	s := newTestStore()
	_, err := s.InsertNode(1, [32]byte{1}, anchorRoot, [32]byte{0xe1}, 0, 0)
	require.NoError(t, err)
	_, err = s.InsertNode(2, [32]byte{2}, [32]byte{1}, [32]byte{0xe2}, 0, 0)
	require.NoError(t, err)

	removed, err := s.SetOptimisticToInvalid(context.Background(), [32]byte{1})
	require.NoError(t, err)
	assert.Len(t, removed, 2)
	assert.False(t, s.HasNode([32]byte{1}))
	assert.False(t, s.HasNode([32]byte{2}))
	assert.True(t, s.HasNode(anchorRoot))
}

func TestPrune(t *testing.T) {
	s := newTestStore()
	// anchor -> f (to finalize), anchor -> dead; f -> keep.
	_, err := s.InsertNode(1, [32]byte{0xf0}, anchorRoot, [32]byte{}, 0, 0)
	require.NoError(t, err)
	_, err = s.InsertNode(1, [32]byte{0xdd}, anchorRoot, [32]byte{}, 0, 0)
	require.NoError(t, err)
	_, err = s.InsertNode(2, [32]byte{0x5e}, [32]byte{0xf0}, [32]byte{}, 0, 0)
	require.NoError(t, err)

	require.NoError(t, s.Prune(context.Background(), [32]byte{0xf0}))
	assert.False(t, s.HasNode(anchorRoot))
	assert.False(t, s.HasNode([32]byte{0xdd}))
	assert.True(t, s.HasNode([32]byte{0xf0}))
	assert.True(t, s.HasNode([32]byte{0x5e}))
	assert.Nil(t, s.Node([32]byte{0xf0}).Parent())
}

func TestUpdateCheckpointsNeverRegress(t *testing.T) {
	s := newTestStore()
	s.UpdateCheckpoints(
		consensusblocks.Checkpoint{Epoch: 3, Root: [32]byte{3}},
		consensusblocks.Checkpoint{Epoch: 2, Root: [32]byte{2}},
	)
	s.UpdateCheckpoints(
		consensusblocks.Checkpoint{Epoch: 1, Root: [32]byte{1}},
		consensusblocks.Checkpoint{Epoch: 1, Root: [32]byte{1}},
	)
	assert.Equal(t, ssztypes.Epoch(3), s.JustifiedCheckpoint().Epoch)
	assert.Equal(t, ssztypes.Epoch(2), s.FinalizedCheckpoint().Epoch)
}
