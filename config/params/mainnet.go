package params

import (
	types "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
)

// MainnetConfig returns the canonical Ethereum mainnet preset values.
func MainnetConfig() *BeaconChainConfig {
	return &BeaconChainConfig{
		SecondsPerSlot:                12,
		SlotsPerEpoch:                 32,
		MinSeedLookahead:              1,
		MaxSeedLookahead:              4,
		MinAttestationInclusionDelay:  1,

		SlotsPerHistoricalRoot:    8192,
		HistoricalRootsLimit:      16777216,
		EpochsPerHistoricalVector: 65536,
		EpochsPerSlashingsVector:  8192,

		MinDepositAmount:             1000000000,
		MaxEffectiveBalance:          32000000000,
		EjectionBalance:              16000000000,
		EffectiveBalanceIncrement:    1000000000,
		HysteresisQuotient:           4,
		HysteresisDownwardMultiplier: 1,
		HysteresisUpwardMultiplier:   5,
		ValidatorRegistryLimit:       1099511627776,
		ChurnLimitQuotient:           65536,
		MinPerEpochChurnLimit:        4,
		ShardCommitteePeriod:         256,
		MinValidatorWithdrawabilityDelay: 256,

		BaseRewardFactor:                     64,
		WhistleBlowerRewardQuotient:          512,
		ProposerRewardQuotient:               8,
		InactivityPenaltyQuotient:            1 << 26,
		MinSlashingPenaltyQuotient:           128,
		ProportionalSlashingMultiplier:       1,
		InactivityPenaltyQuotientAltair:      3 * (1 << 24),
		MinSlashingPenaltyQuotientAltair:     64,
		ProportionalSlashingMultiplierAltair: 2,
		InactivityScoreBias:                  4,
		InactivityScoreRecoveryRate:          16,
		MinEpochsToInactivityPenalty:         4,

		MaxProposerSlashings: 16,
		MaxAttesterSlashings: 2,
		MaxAttestations:      128,
		MaxDeposits:          16,
		MaxVoluntaryExits:    16,

		ShuffleRoundCount:         90,
		TargetCommitteeSize:       128,
		MaxCommitteesPerSlot:      64,
		MaxValidatorsPerCommittee: 2048,

		SyncCommitteeSize:            512,
		EpochsPerSyncCommitteePeriod: 256,
		MinSyncCommitteeParticipants: 1,

		ProposerScoreBoost:         40,
		SafeSlotsToUpdateJustified: 8,

		GenesisEpoch:         0,
		GenesisSlot:          0,
		FarFutureEpoch:       types.Epoch(1<<64 - 1),
		AltairForkEpoch:      74240,
		BellatrixForkEpoch:   144896,
		GenesisForkVersion:   []byte{0x00, 0x00, 0x00, 0x00},
		AltairForkVersion:    []byte{0x01, 0x00, 0x00, 0x00},
		BellatrixForkVersion: []byte{0x02, 0x00, 0x00, 0x00},

		DomainBeaconProposer:              [4]byte{0x00, 0x00, 0x00, 0x00},
		DomainBeaconAttester:              [4]byte{0x01, 0x00, 0x00, 0x00},
		DomainRandao:                      [4]byte{0x02, 0x00, 0x00, 0x00},
		DomainDeposit:                     [4]byte{0x03, 0x00, 0x00, 0x00},
		DomainVoluntaryExit:               [4]byte{0x04, 0x00, 0x00, 0x00},
		DomainSelectionProof:              [4]byte{0x05, 0x00, 0x00, 0x00},
		DomainAggregateAndProof:           [4]byte{0x06, 0x00, 0x00, 0x00},
		DomainSyncCommittee:               [4]byte{0x07, 0x00, 0x00, 0x00},
		DomainSyncCommitteeSelectionProof: [4]byte{0x08, 0x00, 0x00, 0x00},
		DomainContributionAndProof:        [4]byte{0x09, 0x00, 0x00, 0x00},

		MinGenesisActiveValidatorCount: 16384,
		MinGenesisTime:                 1606824000,
		GenesisDelay:                   604800,

		TerminalTotalDifficulty: "58750000000000000000000",

		ZeroHash: [32]byte{},

		ConfigName: "mainnet",
	}
}

// MinimalConfig returns a scaled-down preset useful for fast local tests and
// simulators, mirroring config/params' minimal spec preset.
func MinimalConfig() *BeaconChainConfig {
	c := MainnetConfig().Copy()
	c.SlotsPerEpoch = 8
	c.SlotsPerHistoricalRoot = 64
	c.EpochsPerHistoricalVector = 64
	c.EpochsPerSlashingsVector = 64
	c.SyncCommitteeSize = 32
	c.EpochsPerSyncCommitteePeriod = 8
	c.ShardCommitteePeriod = 64
	c.MinValidatorWithdrawabilityDelay = 256
	c.AltairForkEpoch = 0
	c.BellatrixForkEpoch = 0
	c.ConfigName = "minimal"
	return c
}

// UseMainnetConfig installs the mainnet preset as the process-wide active
// configuration. Must be called once at startup, before the block processor
// or state transition touch params.BeaconConfig().
func UseMainnetConfig() {
	OverrideBeaconConfig(MainnetConfig())
}

// UseMinimalConfig installs the minimal preset, used by local devnets and
// integration tests that need fast epoch boundaries.
func UseMinimalConfig() {
	OverrideBeaconConfig(MinimalConfig())
}
