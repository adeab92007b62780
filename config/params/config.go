// Package params defines the frozen numeric constants the rest of the
// module treats as immutable after startup: slot timing, committee sizing,
// fork-activation epochs and the various reward/penalty quotients.
package params

import (
	"sync"

	types "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
)

// BeaconChainConfig holds every constant consumed by the state transition,
// fork choice, and block processor. It is never mutated after Init/UseMainnetConfig
// is called; callers that need a scratch copy should call Copy().
type BeaconChainConfig struct {
	// Time parameters.
	SecondsPerSlot    uint64
	SlotsPerEpoch     types.Slot
	MinSeedLookahead  types.Epoch
	MaxSeedLookahead  types.Epoch
	MinAttestationInclusionDelay types.Slot

	// History parameters.
	SlotsPerHistoricalRoot types.Slot
	HistoricalRootsLimit   uint64
	EpochsPerHistoricalVector types.Epoch
	EpochsPerSlashingsVector  types.Epoch

	// Validator registry parameters.
	MinDepositAmount            uint64
	MaxEffectiveBalance         uint64
	EjectionBalance             uint64
	EffectiveBalanceIncrement   uint64
	HysteresisQuotient          uint64
	HysteresisDownwardMultiplier uint64
	HysteresisUpwardMultiplier  uint64
	ValidatorRegistryLimit      uint64
	ChurnLimitQuotient          uint64
	MinPerEpochChurnLimit       uint64
	ShardCommitteePeriod        types.Epoch
	MinValidatorWithdrawabilityDelay types.Epoch

	// Reward and penalty quotients.
	BaseRewardFactor                uint64
	WhistleBlowerRewardQuotient     uint64
	ProposerRewardQuotient          uint64
	InactivityPenaltyQuotient       uint64
	MinSlashingPenaltyQuotient      uint64
	ProportionalSlashingMultiplier  uint64
	InactivityPenaltyQuotientAltair uint64
	MinSlashingPenaltyQuotientAltair uint64
	ProportionalSlashingMultiplierAltair uint64
	InactivityScoreBias          uint64
	InactivityScoreRecoveryRate  uint64
	MinEpochsToInactivityPenalty types.Epoch

	// Max operations per block.
	MaxProposerSlashings uint64
	MaxAttesterSlashings uint64
	MaxAttestations      uint64
	MaxDeposits          uint64
	MaxVoluntaryExits    uint64

	// Committee / shuffling parameters.
	ShuffleRoundCount          uint64
	TargetCommitteeSize        uint64
	MaxCommitteesPerSlot       uint64
	MaxValidatorsPerCommittee  uint64

	// Sync committee (Altair+) parameters.
	SyncCommitteeSize             uint64
	EpochsPerSyncCommitteePeriod  types.Epoch
	MinSyncCommitteeParticipants  uint64

	// Fork-choice parameters.
	ProposerScoreBoost           uint64
	SafeSlotsToUpdateJustified   types.Slot

	// Fork schedule.
	GenesisEpoch        types.Epoch
	GenesisSlot         types.Slot
	FarFutureEpoch      types.Epoch
	AltairForkEpoch     types.Epoch
	BellatrixForkEpoch  types.Epoch
	GenesisForkVersion  []byte
	AltairForkVersion   []byte
	BellatrixForkVersion []byte

	// Signing domain constants (4-byte little-padded tags).
	DomainBeaconProposer          [4]byte
	DomainBeaconAttester          [4]byte
	DomainRandao                  [4]byte
	DomainDeposit                 [4]byte
	DomainVoluntaryExit           [4]byte
	DomainSelectionProof          [4]byte
	DomainAggregateAndProof       [4]byte
	DomainSyncCommittee           [4]byte
	DomainSyncCommitteeSelectionProof [4]byte
	DomainContributionAndProof    [4]byte

	// Deposit contract / genesis bootstrap.
	MinGenesisActiveValidatorCount uint64
	MinGenesisTime                 uint64
	GenesisDelay                   uint64

	// Execution-layer integration.
	TerminalTotalDifficulty string

	ZeroHash [32]byte

	ConfigName string
}

// Copy returns a shallow value copy of c suitable for a one-off override in
// tests; slice fields are deep-copied so mutating the copy never affects the
// frozen global.
func (c *BeaconChainConfig) Copy() *BeaconChainConfig {
	cpy := *c
	cpy.GenesisForkVersion = append([]byte{}, c.GenesisForkVersion...)
	cpy.AltairForkVersion = append([]byte{}, c.AltairForkVersion...)
	cpy.BellatrixForkVersion = append([]byte{}, c.BellatrixForkVersion...)
	return &cpy
}

var (
	beaconConfig     = MainnetConfig()
	beaconConfigLock sync.RWMutex
)

// BeaconConfig returns the active, frozen chain configuration. Safe for
// concurrent reads from any goroutine.
func BeaconConfig() *BeaconChainConfig {
	beaconConfigLock.RLock()
	defer beaconConfigLock.RUnlock()
	return beaconConfig
}

// OverrideBeaconConfig replaces the active config wholesale. Intended for
// test setup and process-start preset selection only; presets are never
// hot-reloaded once the consumer loop is running.
func OverrideBeaconConfig(cfg *BeaconChainConfig) {
	beaconConfigLock.Lock()
	defer beaconConfigLock.Unlock()
	beaconConfig = cfg
}
