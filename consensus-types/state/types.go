package state

import (
	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/encoding/ssz"
)

// Fork records the current and previous fork versions and the epoch the
// current one activated at, mirroring the wire Fork struct mixed into the
// signing domain.
type Fork struct {
	PreviousVersion [4]byte
	CurrentVersion  [4]byte
	Epoch           ssztypes.Epoch
}

// Slashings tracks, per EpochsPerSlashingsVector-sized bucket, the total
// effective balance of validators slashed that epoch — consumed by the
// epoch transition's slashing-penalty bookkeeping.
type Slashings []ssztypes.Gwei

// BeaconState is the replicated per-fork beacon state. Every field is
// present in every fork's struct (rather than splitting into N separate Go
// types) because the overwhelming majority of fields are shared across
// Phase0/Altair/Bellatrix; the Version tag plus the upgrade functions in
// core/altair are what give the per-fork fields (SyncCommittees,
// InactivityScores, LatestExecutionPayloadHeader) their fork-gated
// meaning.
type BeaconState struct {
	version Version

	Slot                  ssztypes.Slot
	GenesisTime           uint64
	GenesisValidatorsRoot [32]byte
	ForkData              Fork

	LatestBlockHeader *blocks.BeaconBlockHeader
	BlockRoots        [][32]byte
	StateRoots        [][32]byte
	HistoricalRoots   [][32]byte

	Eth1Data         *blocks.Eth1Data
	Eth1DataVotes    []*blocks.Eth1Data
	Eth1DepositIndex uint64

	Validators []*Validator
	Balances   []ssztypes.Gwei

	RandaoMixes [][32]byte
	Slashings   Slashings

	// Altair+.
	PreviousEpochParticipation []byte
	CurrentEpochParticipation  []byte
	InactivityScores           []uint64
	CurrentSyncCommittee       *SyncCommittee
	NextSyncCommittee          *SyncCommittee

	// Bellatrix+.
	LatestExecutionPayloadHeader *ExecutionPayloadHeader

	PreviousJustifiedCheckpoint blocks.Checkpoint
	CurrentJustifiedCheckpoint  blocks.Checkpoint
	FinalizedCheckpoint         blocks.Checkpoint
	JustificationBits           []byte

	cache *ssz.FieldCache
}

// Version identifies the fork a BeaconState was built under, mirroring
// consensus-types/blocks.Version so both sides of the data model share one
// vocabulary.
type Version = blocks.Version

const (
	Phase0    = blocks.Phase0
	Altair    = blocks.Altair
	Bellatrix = blocks.Bellatrix
)

// SyncCommittee is the 512-validator Altair+ committee that signs the head
// block each slot for light clients.
type SyncCommittee struct {
	Pubkeys         [][48]byte
	AggregatePubkey [48]byte
}

// ExecutionPayloadHeader is the Bellatrix+ summary of the latest embedded
// execution payload (everything but the transaction list).
type ExecutionPayloadHeader struct {
	ParentHash       [32]byte
	FeeRecipient     [20]byte
	StateRoot        [32]byte
	ReceiptsRoot     [32]byte
	LogsBloom        [256]byte
	PrevRandao       [32]byte
	BlockNumber      uint64
	GasLimit         uint64
	GasUsed          uint64
	Timestamp        uint64
	ExtraData        []byte
	BaseFeePerGas    [32]byte
	BlockHash        [32]byte
	TransactionsRoot [32]byte
}

// Version returns the state's active fork tag.
func (s *BeaconState) Version() Version {
	return s.version
}

// SetVersion sets the state's active fork tag. Used only by the fork
// upgrade functions in core/altair, which must flip the tag in the same
// step that seeds the new fork's fields.
func (s *BeaconState) SetVersion(v Version) {
	s.version = v
}

// Cache lazily initializes and returns the state's per-field
// hash-tree-root cache.
func (s *BeaconState) Cache() *ssz.FieldCache {
	if s.cache == nil {
		s.cache = ssz.NewFieldCache()
	}
	return s.cache
}

// Copy returns a deep-enough clone of s: slices are copied (so writes and
// appends to the clone never alias the original), and the latest block
// header and every validator entry are cloned because the state transition
// mutates them in place. The remaining pointer fields (eth1 data and votes,
// sync committees, execution payload header) are shared, since they are
// only ever replaced whole. The state transition runs against such a
// scratch clone and commits on success, so no rollback path exists.
func (s *BeaconState) Copy() *BeaconState {
	cpy := &BeaconState{
		version:               s.version,
		Slot:                  s.Slot,
		GenesisTime:           s.GenesisTime,
		GenesisValidatorsRoot: s.GenesisValidatorsRoot,
		ForkData:              s.ForkData,
		LatestBlockHeader:     s.LatestBlockHeader,
		BlockRoots:            append([][32]byte{}, s.BlockRoots...),
		StateRoots:            append([][32]byte{}, s.StateRoots...),
		HistoricalRoots:       append([][32]byte{}, s.HistoricalRoots...),
		Eth1Data:              s.Eth1Data,
		Eth1DataVotes:         append([]*blocks.Eth1Data{}, s.Eth1DataVotes...),
		Eth1DepositIndex:      s.Eth1DepositIndex,
		Validators:            append([]*Validator{}, s.Validators...),
		Balances:              append([]ssztypes.Gwei{}, s.Balances...),
		RandaoMixes:           append([][32]byte{}, s.RandaoMixes...),
		Slashings:             append(Slashings{}, s.Slashings...),

		PreviousEpochParticipation: append([]byte{}, s.PreviousEpochParticipation...),
		CurrentEpochParticipation:  append([]byte{}, s.CurrentEpochParticipation...),
		InactivityScores:           append([]uint64{}, s.InactivityScores...),
		CurrentSyncCommittee:       s.CurrentSyncCommittee,
		NextSyncCommittee:          s.NextSyncCommittee,

		LatestExecutionPayloadHeader: s.LatestExecutionPayloadHeader,

		PreviousJustifiedCheckpoint: s.PreviousJustifiedCheckpoint,
		CurrentJustifiedCheckpoint:  s.CurrentJustifiedCheckpoint,
		FinalizedCheckpoint:         s.FinalizedCheckpoint,
		JustificationBits:           append([]byte{}, s.JustificationBits...),
	}
	if s.LatestBlockHeader != nil {
		hdr := *s.LatestBlockHeader
		cpy.LatestBlockHeader = &hdr
	}
	for i, v := range cpy.Validators {
		if v != nil {
			cpy.Validators[i] = v.Copy()
		}
	}
	if s.cache != nil {
		cpy.cache = s.cache.Copy()
	}
	return cpy
}

// ForkedBeaconState is the fork-tagged union over BeaconState, always
// agreeing with its inner BeaconState.Version() by construction.
type ForkedBeaconState struct {
	version Version
	state   *BeaconState
}

// NewForkedBeaconState wraps st, validating its declared Version.
func NewForkedBeaconState(st *BeaconState) (*ForkedBeaconState, error) {
	if st == nil {
		return nil, errors.New("nil beacon state")
	}
	switch st.version {
	case Phase0, Altair, Bellatrix:
	default:
		return nil, errors.Errorf("unknown state version %d", st.version)
	}
	return &ForkedBeaconState{version: st.version, state: st}, nil
}

// Version returns the active fork tag.
func (f *ForkedBeaconState) Version() Version {
	return f.version
}

// State returns the underlying state.
func (f *ForkedBeaconState) State() *BeaconState {
	return f.state
}
