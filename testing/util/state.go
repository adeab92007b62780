// Package util builds deterministic states and blocks for tests. Callers
// are expected to have installed a config (usually params.UseMinimalConfig
// or SetupTestConfig) first; every helper sizes rings and committees from
// the active configuration.
package util

import (
	"encoding/binary"

	"github.com/sigcore-labs/beacon-core/config/params"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
)

// SetupTestConfig installs the minimal preset adjusted so that version is
// the active fork from genesis onward and no surprise fork upgrade fires
// mid-test: forks later than version sit at the far-future epoch.
func SetupTestConfig(version state.Version) {
	cfg := params.MinimalConfig()
	switch version {
	case state.Phase0:
		cfg.AltairForkEpoch = cfg.FarFutureEpoch
		cfg.BellatrixForkEpoch = cfg.FarFutureEpoch
	case state.Altair:
		cfg.AltairForkEpoch = 0
		cfg.BellatrixForkEpoch = cfg.FarFutureEpoch
	case state.Bellatrix:
		cfg.AltairForkEpoch = 0
		cfg.BellatrixForkEpoch = 0
	}
	params.OverrideBeaconConfig(cfg)
}

// DeterministicPubkey returns a unique, obviously-fake BLS pubkey for
// validator i. Tests run with skip_bls so the keys never hit the curve.
func DeterministicPubkey(i uint64) [48]byte {
	var pub [48]byte
	binary.LittleEndian.PutUint64(pub[:8], i+1)
	pub[47] = 0xaa
	return pub
}

// NewBeaconState builds a well-formed state at slot 0 for version with
// numValidators active validators, ring sizes per the active config, and
// (for Altair+) sync committees sampled from the first validators.
func NewBeaconState(version state.Version, numValidators uint64) *state.BeaconState {
	cfg := params.BeaconConfig()
	st := &state.BeaconState{
		Slot:              0,
		GenesisTime:       cfg.MinGenesisTime,
		LatestBlockHeader: &consensusblocks.BeaconBlockHeader{},
		BlockRoots:        make([][32]byte, cfg.SlotsPerHistoricalRoot),
		StateRoots:        make([][32]byte, cfg.SlotsPerHistoricalRoot),
		RandaoMixes:       make([][32]byte, cfg.EpochsPerHistoricalVector),
		Slashings:         make(state.Slashings, cfg.EpochsPerSlashingsVector),
		Eth1Data:          &consensusblocks.Eth1Data{},
		JustificationBits: []byte{0},
	}
	st.GenesisValidatorsRoot = [32]byte{0x42}
	st.ForkData = state.Fork{
		PreviousVersion: toArray4(cfg.GenesisForkVersion),
		CurrentVersion:  toArray4(forkVersionFor(version, cfg)),
		Epoch:           0,
	}
	for i := uint64(0); i < numValidators; i++ {
		st.Validators = append(st.Validators, &state.Validator{
			PublicKey:                  DeterministicPubkey(i),
			WithdrawalCredentials:      [32]byte{byte(i)},
			EffectiveBalance:           ssztypes.Gwei(cfg.MaxEffectiveBalance),
			ActivationEligibilityEpoch: 0,
			ActivationEpoch:            0,
			ExitEpoch:                  cfg.FarFutureEpoch,
			WithdrawableEpoch:          cfg.FarFutureEpoch,
		})
		st.Balances = append(st.Balances, ssztypes.Gwei(cfg.MaxEffectiveBalance))
	}
	if version >= state.Altair {
		st.PreviousEpochParticipation = make([]byte, numValidators)
		st.CurrentEpochParticipation = make([]byte, numValidators)
		st.InactivityScores = make([]uint64, numValidators)
		st.CurrentSyncCommittee = syntheticSyncCommittee(st, cfg.SyncCommitteeSize)
		st.NextSyncCommittee = syntheticSyncCommittee(st, cfg.SyncCommitteeSize)
	}
	if version >= state.Bellatrix {
		st.LatestExecutionPayloadHeader = &state.ExecutionPayloadHeader{}
	}
	st.SetVersion(version)
	return st
}

// syntheticSyncCommittee fills the committee round-robin from the registry,
// deterministic and independent of the sampling seed.
func syntheticSyncCommittee(st *state.BeaconState, size uint64) *state.SyncCommittee {
	c := &state.SyncCommittee{}
	n := uint64(len(st.Validators))
	for i := uint64(0); i < size; i++ {
		c.Pubkeys = append(c.Pubkeys, st.Validators[i%n].PublicKey)
	}
	return c
}

func forkVersionFor(version state.Version, cfg *params.BeaconChainConfig) []byte {
	switch version {
	case state.Altair:
		return cfg.AltairForkVersion
	case state.Bellatrix:
		return cfg.BellatrixForkVersion
	default:
		return cfg.GenesisForkVersion
	}
}

func toArray4(b []byte) [4]byte {
	var out [4]byte
	copy(out[:], b)
	return out
}
