package transition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/helpers"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/transition"
	"github.com/sigcore-labs/beacon-core/config/params"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/testing/util"
)

func TestProcessSlotsAdvances(t *testing.T) {
	util.SetupTestConfig(state.Phase0)
	st := util.NewBeaconState(state.Phase0, 64)

	_, err := transition.ProcessSlots(st, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, ssztypes.Slot(5), st.Slot)
	assert.NotEqual(t, [32]byte{}, st.LatestBlockHeader.StateRoot,
		"process_slot must backfill the latest header's state root")
}

func TestProcessSlotsRefusesRewind(t *testing.T) {
	util.SetupTestConfig(state.Phase0)
	st := util.NewBeaconState(state.Phase0, 64)
	_, err := transition.ProcessSlots(st, 5, nil)
	require.NoError(t, err)
	_, err = transition.ProcessSlots(st, 3, nil)
	assert.Error(t, err)
}

func TestProcessSlotsAcrossEpochBoundary(t *testing.T) {
	util.SetupTestConfig(state.Phase0)
	st := util.NewBeaconState(state.Phase0, 64)

	// Two full minimal-preset epochs; process_epoch runs at each boundary.
	_, err := transition.ProcessSlots(st, 16, nil)
	require.NoError(t, err)
	assert.Equal(t, ssztypes.Slot(16), st.Slot)
	assert.Equal(t, ssztypes.Epoch(2), helpers.CurrentEpoch(st))
}

func TestStateTransitionHappyPath(t *testing.T) {
	util.SetupTestConfig(state.Phase0)
	genesis := util.NewBeaconState(state.Phase0, 64)

	signed, _, err := util.GenerateBlock(genesis, 1, consensusblocks.Phase0)
	require.NoError(t, err)

	st := genesis.Copy()
	err = transition.StateTransition(st, signed, transition.Flags{SkipBLS: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, ssztypes.Slot(1), st.Slot)
	assert.Greater(t, uint64(st.Slot), uint64(genesis.Slot), "slot must strictly increase")
}

func TestStateTransitionAtEpochBoundary(t *testing.T) {
	util.SetupTestConfig(state.Phase0)
	genesis := util.NewBeaconState(state.Phase0, 64)
	epochSlot := params.BeaconConfig().SlotsPerEpoch

	signed, _, err := util.GenerateBlock(genesis, epochSlot, consensusblocks.Phase0)
	require.NoError(t, err)

	st := genesis.Copy()
	err = transition.StateTransition(st, signed, transition.Flags{SkipBLS: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, epochSlot, st.Slot)
	assert.Equal(t, ssztypes.Epoch(1), helpers.CurrentEpoch(st))
}

func TestStateTransitionWrongStateRoot(t *testing.T) {
	util.SetupTestConfig(state.Phase0)
	genesis := util.NewBeaconState(state.Phase0, 64)

	signed, _, err := util.GenerateBlock(genesis, 1, consensusblocks.Phase0)
	require.NoError(t, err)
	signed.Block.StateRoot = [32]byte{}

	st := genesis.Copy()
	err = transition.StateTransition(st, signed, transition.Flags{SkipBLS: true}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state root verification failed")
	// The scratch copy is poisoned, but the caller's pre-state is intact.
	assert.Equal(t, ssztypes.Slot(0), genesis.Slot)
}

func TestStateTransitionDeterministic(t *testing.T) {
	util.SetupTestConfig(state.Phase0)
	genesis := util.NewBeaconState(state.Phase0, 64)
	signed, _, err := util.GenerateBlock(genesis, 1, consensusblocks.Phase0)
	require.NoError(t, err)

	st1 := genesis.Copy()
	require.NoError(t, transition.StateTransition(st1, signed, transition.Flags{SkipBLS: true}, nil))
	r1, err := st1.HashTreeRoot()
	require.NoError(t, err)

	st2 := genesis.Copy()
	require.NoError(t, transition.StateTransition(st2, signed, transition.Flags{SkipBLS: true}, nil))
	r2, err := st2.HashTreeRoot()
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestSkipSlotCacheHit(t *testing.T) {
	util.SetupTestConfig(state.Phase0)
	st := util.NewBeaconState(state.Phase0, 64)
	cache := transition.NewSkipSlotCache()

	first := st.Copy()
	_, err := transition.ProcessSlots(first, 4, cache)
	require.NoError(t, err)
	wantRoot, err := first.HashTreeRoot()
	require.NoError(t, err)

	second := st.Copy()
	got, err := transition.ProcessSlots(second, 4, cache)
	require.NoError(t, err)
	gotRoot, err := got.HashTreeRoot()
	require.NoError(t, err)
	assert.Equal(t, wantRoot, gotRoot)
}

func TestForkUpgradePreservesValidators(t *testing.T) {
	cfg := params.MinimalConfig()
	cfg.AltairForkEpoch = 1
	cfg.BellatrixForkEpoch = cfg.FarFutureEpoch
	params.OverrideBeaconConfig(cfg)

	st := util.NewBeaconState(state.Phase0, 32)
	wantCount := len(st.Validators)
	wantPub := st.Validators[7].PublicKey
	wantCreds := st.Validators[7].WithdrawalCredentials
	wantBalance := st.Balances[7]
	wantGVR := st.GenesisValidatorsRoot

	_, err := transition.ProcessSlots(st, cfg.SlotsPerEpoch, nil)
	require.NoError(t, err)
	require.Equal(t, state.Altair, st.Version(), "crossing the fork epoch must upgrade the state variant")

	assert.Len(t, st.Validators, wantCount)
	assert.Equal(t, wantPub, st.Validators[7].PublicKey)
	assert.Equal(t, wantCreds, st.Validators[7].WithdrawalCredentials)
	assert.Equal(t, wantBalance, st.Balances[7])
	assert.Equal(t, wantGVR, st.GenesisValidatorsRoot)
	assert.NotNil(t, st.CurrentSyncCommittee, "upgrade must seed the sync committees")
	assert.Len(t, st.InactivityScores, wantCount)
}
