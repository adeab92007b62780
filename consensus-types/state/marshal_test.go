package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sigcore-labs/beacon-core/config/params"
	"github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
)

func sampleState(t *testing.T, version Version) *BeaconState {
	t.Helper()
	cfg := params.BeaconConfig()
	st := &BeaconState{
		Slot:                  33,
		GenesisTime:           1_600_000_000,
		GenesisValidatorsRoot: [32]byte{0x42},
		ForkData: Fork{
			PreviousVersion: [4]byte{0, 0, 0, 0},
			CurrentVersion:  [4]byte{1, 0, 0, 0},
			Epoch:           4,
		},
		LatestBlockHeader: &blocks.BeaconBlockHeader{
			Slot: 32, ProposerIndex: 7,
			ParentRoot: [32]byte{1}, StateRoot: [32]byte{2}, BodyRoot: [32]byte{3},
		},
		BlockRoots:      make([][32]byte, cfg.SlotsPerHistoricalRoot),
		StateRoots:      make([][32]byte, cfg.SlotsPerHistoricalRoot),
		HistoricalRoots: [][32]byte{{0x31}},
		Eth1Data:        &blocks.Eth1Data{DepositRoot: [32]byte{5}, DepositCount: 9, BlockHash: [32]byte{6}},
		Eth1DataVotes:   []*blocks.Eth1Data{{DepositCount: 1}, {DepositCount: 2}},
		Eth1DepositIndex: 9,
		RandaoMixes:     make([][32]byte, cfg.EpochsPerHistoricalVector),
		Slashings:       make(Slashings, cfg.EpochsPerSlashingsVector),
		JustificationBits: []byte{0x05},
		PreviousJustifiedCheckpoint: blocks.Checkpoint{Epoch: 2, Root: [32]byte{0xe1}},
		CurrentJustifiedCheckpoint:  blocks.Checkpoint{Epoch: 3, Root: [32]byte{0xe2}},
		FinalizedCheckpoint:         blocks.Checkpoint{Epoch: 2, Root: [32]byte{0xe3}},
	}
	st.BlockRoots[0] = [32]byte{0xb0}
	st.RandaoMixes[1] = [32]byte{0xc1}
	st.Slashings[2] = 64_000_000_000
	for i := uint64(0); i < 8; i++ {
		st.Validators = append(st.Validators, &Validator{
			PublicKey:                  [48]byte{byte(i + 1)},
			WithdrawalCredentials:      [32]byte{byte(i)},
			EffectiveBalance:           ssztypes.Gwei(cfg.MaxEffectiveBalance),
			Slashed:                    i == 3,
			ActivationEligibilityEpoch: 0,
			ActivationEpoch:            0,
			ExitEpoch:                  cfg.FarFutureEpoch,
			WithdrawableEpoch:          cfg.FarFutureEpoch,
		})
		st.Balances = append(st.Balances, ssztypes.Gwei(cfg.MaxEffectiveBalance-i))
	}
	if version >= Altair {
		st.PreviousEpochParticipation = []byte{1, 2, 3, 4, 5, 6, 7, 0}
		st.CurrentEpochParticipation = []byte{7, 6, 5, 4, 3, 2, 1, 0}
		st.InactivityScores = []uint64{0, 1, 2, 3, 4, 5, 6, 7}
		committee := &SyncCommittee{AggregatePubkey: [48]byte{0xaa}}
		for i := uint64(0); i < cfg.SyncCommitteeSize; i++ {
			committee.Pubkeys = append(committee.Pubkeys, [48]byte{byte(i % 8)})
		}
		st.CurrentSyncCommittee = committee
		st.NextSyncCommittee = committee
	}
	if version >= Bellatrix {
		st.LatestExecutionPayloadHeader = &ExecutionPayloadHeader{
			ParentHash:       [32]byte{0xf1},
			BlockNumber:      77,
			Timestamp:        1_700_000_000,
			ExtraData:        []byte("extra"),
			BlockHash:        [32]byte{0xf2},
			TransactionsRoot: [32]byte{0xf3},
		}
	}
	st.SetVersion(version)
	return st
}

func TestStateRoundTrip(t *testing.T) {
	params.UseMinimalConfig()
	for _, version := range []Version{Phase0, Altair, Bellatrix} {
		t.Run(version.String(), func(t *testing.T) {
			st := sampleState(t, version)
			enc, err := st.MarshalSSZ()
			require.NoError(t, err)
			dec, err := UnmarshalBeaconStateSSZ(enc, version)
			require.NoError(t, err)
			assert.Equal(t, st.Slot, dec.Slot)
			assert.Equal(t, st.GenesisValidatorsRoot, dec.GenesisValidatorsRoot)
			assert.Equal(t, st.ForkData, dec.ForkData)
			assert.Equal(t, st.LatestBlockHeader, dec.LatestBlockHeader)
			assert.Equal(t, st.BlockRoots, dec.BlockRoots)
			assert.Equal(t, st.HistoricalRoots, dec.HistoricalRoots)
			assert.Equal(t, st.Eth1Data, dec.Eth1Data)
			assert.Equal(t, st.Eth1DataVotes, dec.Eth1DataVotes)
			assert.Equal(t, st.Validators, dec.Validators)
			assert.Equal(t, st.Balances, dec.Balances)
			assert.Equal(t, st.RandaoMixes, dec.RandaoMixes)
			assert.Equal(t, st.Slashings, dec.Slashings)
			assert.Equal(t, st.JustificationBits, dec.JustificationBits)
			assert.Equal(t, st.PreviousJustifiedCheckpoint, dec.PreviousJustifiedCheckpoint)
			assert.Equal(t, st.CurrentJustifiedCheckpoint, dec.CurrentJustifiedCheckpoint)
			assert.Equal(t, st.FinalizedCheckpoint, dec.FinalizedCheckpoint)
			assert.Equal(t, version, dec.Version())
			if version >= Altair {
				assert.Equal(t, st.PreviousEpochParticipation, dec.PreviousEpochParticipation)
				assert.Equal(t, st.CurrentEpochParticipation, dec.CurrentEpochParticipation)
				assert.Equal(t, st.InactivityScores, dec.InactivityScores)
				assert.Equal(t, st.CurrentSyncCommittee, dec.CurrentSyncCommittee)
			}
			if version >= Bellatrix {
				assert.Equal(t, st.LatestExecutionPayloadHeader, dec.LatestExecutionPayloadHeader)
			}
		})
	}
}

func TestStateHashStableAcrossEncodings(t *testing.T) {
	params.UseMinimalConfig()
	st := sampleState(t, Bellatrix)
	r1, err := st.HashTreeRoot()
	require.NoError(t, err)

	enc, err := st.MarshalSSZ()
	require.NoError(t, err)
	dec, err := UnmarshalBeaconStateSSZ(enc, Bellatrix)
	require.NoError(t, err)
	r2, err := dec.HashTreeRoot()
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestMarshalRejectsWrongRingSizes(t *testing.T) {
	params.UseMinimalConfig()
	st := sampleState(t, Phase0)
	st.BlockRoots = st.BlockRoots[:10]
	_, err := st.MarshalSSZ()
	assert.Error(t, err)
}
