package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/testing/util"
)

func TestBlockRoundTrip(t *testing.T) {
	util.SetupTestConfig(state.Phase0)
	genesis := util.NewBeaconState(state.Phase0, 16)
	blk, _, err := util.GenerateForkedBlock(genesis, 1, 0)
	require.NoError(t, err)
	root, err := blk.Block().Block.HashTreeRoot()
	require.NoError(t, err)

	db := New()
	assert.False(t, db.HasBlock(root))
	require.NoError(t, db.SaveBlock(root, blk))
	assert.True(t, db.HasBlock(root))

	got, err := db.Block(root)
	require.NoError(t, err)
	gotRoot, err := got.Block().Block.HashTreeRoot()
	require.NoError(t, err)
	assert.Equal(t, root, gotRoot)
}

func TestStateRoundTrip(t *testing.T) {
	util.SetupTestConfig(state.Altair)
	st := util.NewBeaconState(state.Altair, 16)
	wantRoot, err := st.HashTreeRoot()
	require.NoError(t, err)

	db := New()
	root := [32]byte{0x01}
	require.NoError(t, db.SaveState(root, st))
	got, err := db.State(root)
	require.NoError(t, err)
	gotRoot, err := got.HashTreeRoot()
	require.NoError(t, err)
	assert.Equal(t, wantRoot, gotRoot)
}

func TestNotFound(t *testing.T) {
	db := New()
	_, err := db.Block([32]byte{9})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = db.State([32]byte{9})
	assert.ErrorIs(t, err, ErrNotFound)
}
