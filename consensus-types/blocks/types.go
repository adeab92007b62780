// Package blocks defines the per-fork BeaconBlock/BeaconBlockBody variants
// and the ForkedSignedBeaconBlock tagged union. Rather than model forks
// with inheritance, each fork shares one concrete body struct and a
// Version tag selects which fields are live, so ingest code dispatches on
// an explicit fork tag instead of type assertions.
package blocks

import (
	"github.com/pkg/errors"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
)

// Version identifies which fork's block body shape a block carries.
type Version int

const (
	// Phase0 is the genesis fork: no sync aggregate, no execution payload.
	Phase0 Version = iota
	// Altair adds the sync aggregate.
	Altair
	// Bellatrix adds the embedded execution payload.
	Bellatrix
)

func (v Version) String() string {
	switch v {
	case Phase0:
		return "phase0"
	case Altair:
		return "altair"
	case Bellatrix:
		return "bellatrix"
	default:
		return "unknown"
	}
}

// Eth1Data is the proposer's vote on the deposit-contract eth1 chain view.
type Eth1Data struct {
	DepositRoot  [32]byte
	DepositCount uint64
	BlockHash    [32]byte
}

// Checkpoint is an (epoch, block root) pair used for FFG source/target votes
// and the state's justified/finalized checkpoints.
type Checkpoint struct {
	Epoch ssztypes.Epoch
	Root  [32]byte
}

// AttestationData is the unsigned content a validator attests to: the
// LMD-GHOST vote (Slot, CommitteeIndex, BeaconBlockRoot) paired with the FFG
// vote (Source, Target checkpoints).
type AttestationData struct {
	Slot            ssztypes.Slot
	CommitteeIndex  ssztypes.CommitteeIndex
	BeaconBlockRoot [32]byte
	Source          Checkpoint
	Target          Checkpoint
}

// Attestation is a validator committee's simultaneous LMD+FFG vote: an
// aggregation bitlist over the committee, the AttestationData being voted
// on, and an aggregate BLS signature.
type Attestation struct {
	AggregationBits []byte
	Data            *AttestationData
	Signature       [96]byte
}

// TrustedAttestation is an Attestation whose signature has already been
// verified by the caller; state-transition validity (inclusion window,
// target checkpoint correctness) is still checked independently.
type TrustedAttestation Attestation

// Deposit is a validator registration included on-chain, carrying its
// Merkle inclusion proof against the deposit contract's tree.
type Deposit struct {
	Proof [][32]byte
	Data  *DepositData
}

// DepositData is the content of a single deposit: the depositing
// validator's public key, withdrawal credentials, amount, and a signature
// over the first three fields proving key ownership.
type DepositData struct {
	PublicKey             [48]byte
	WithdrawalCredentials [32]byte
	Amount                uint64
	Signature             [96]byte
}

// ProposerSlashing proves a validator signed two distinct blocks for the
// same slot.
type ProposerSlashing struct {
	Header1 *SignedBeaconBlockHeader
	Header2 *SignedBeaconBlockHeader
}

// AttesterSlashing proves a validator made two conflicting attestations
// (double vote or surround vote).
type AttesterSlashing struct {
	Attestation1 *IndexedAttestation
	Attestation2 *IndexedAttestation
}

// IndexedAttestation is an Attestation with the aggregation bitlist
// resolved into explicit validator indices, the form slashing detection and
// attester-slashing proofs operate on.
type IndexedAttestation struct {
	AttestingIndices []ssztypes.ValidatorIndex
	Data             *AttestationData
	Signature        [96]byte
}

// SignedBeaconBlockHeader is a BeaconBlockHeader plus the proposer's
// signature over it, the unit double-proposal slashing proofs compare.
type SignedBeaconBlockHeader struct {
	Header    *BeaconBlockHeader
	Signature [96]byte
}

// BeaconBlockHeader is the fixed-size summary of a block stored in
// state.LatestBlockHeader: everything except the body, with BodyRoot
// standing in for it.
type BeaconBlockHeader struct {
	Slot          ssztypes.Slot
	ProposerIndex ssztypes.ValidatorIndex
	ParentRoot    [32]byte
	StateRoot     [32]byte
	BodyRoot      [32]byte
}

// VoluntaryExit is a validator's signed request to voluntarily leave the
// active set once its minimum active epochs have elapsed.
type VoluntaryExit struct {
	Epoch          ssztypes.Epoch
	ValidatorIndex ssztypes.ValidatorIndex
}

// SignedVoluntaryExit pairs a VoluntaryExit with the exiting validator's
// signature over it.
type SignedVoluntaryExit struct {
	Exit      *VoluntaryExit
	Signature [96]byte
}

// SyncAggregate is the Altair+ sync committee's aggregate signature over the
// previous slot's block root, plus a bitvector of which of the 512 sync
// committee members participated.
type SyncAggregate struct {
	SyncCommitteeBits      []byte
	SyncCommitteeSignature [96]byte
}

// ExecutionPayload is the embedded execution-layer block data carried by
// Bellatrix+ block bodies.
type ExecutionPayload struct {
	ParentHash    [32]byte
	FeeRecipient  [20]byte
	StateRoot     [32]byte
	ReceiptsRoot  [32]byte
	LogsBloom     [256]byte
	PrevRandao    [32]byte
	BlockNumber   uint64
	GasLimit      uint64
	GasUsed       uint64
	Timestamp     uint64
	ExtraData     []byte
	BaseFeePerGas [32]byte
	BlockHash     [32]byte
	Transactions  [][]byte
}

// IsEmpty reports whether p is the zero-valued "default" execution
// payload. Before Bellatrix activation on local testnets such a payload is
// treated as vacuously valid rather than executed.
func (p *ExecutionPayload) IsEmpty() bool {
	if p == nil {
		return true
	}
	return p.BlockNumber == 0 && p.GasLimit == 0 && p.GasUsed == 0 &&
		p.Timestamp == 0 && len(p.Transactions) == 0 &&
		p.BlockHash == [32]byte{} && p.ParentHash == [32]byte{}
}

// BeaconBlockBody carries every block field beyond the fixed header; the
// fields actually populated depend on Version
// (Phase0 -> + sync aggregate -> + execution payload).
type BeaconBlockBody struct {
	RandaoReveal      [96]byte
	Eth1Data          *Eth1Data
	Graffiti          [32]byte
	ProposerSlashings []*ProposerSlashing
	AttesterSlashings []*AttesterSlashing
	Attestations      []*Attestation
	Deposits          []*Deposit
	VoluntaryExits    []*SignedVoluntaryExit

	// Altair+.
	SyncAggregate *SyncAggregate

	// Bellatrix+.
	ExecutionPayload *ExecutionPayload
}

// BeaconBlock is a single fork's unsigned block: the fixed header fields
// plus a body whose shape is implied by Version.
type BeaconBlock struct {
	Version       Version
	Slot          ssztypes.Slot
	ProposerIndex ssztypes.ValidatorIndex
	ParentRoot    [32]byte
	StateRoot     [32]byte
	Body          *BeaconBlockBody
}

// SignedBeaconBlock pairs a BeaconBlock with the proposer's signature over
// its signing root.
type SignedBeaconBlock struct {
	Block     *BeaconBlock
	Signature [96]byte
}

// ForkedSignedBeaconBlock is the tagged union over
// {Phase0 | Altair | Bellatrix}, with the active tag always equal to
// Block.Version. It exists (rather than a bare *SignedBeaconBlock) so that
// ingest code can pattern-match explicitly on Version instead of relying
// on nil-field sniffing.
type ForkedSignedBeaconBlock struct {
	version Version
	block   *SignedBeaconBlock
}

// NewForkedSignedBeaconBlock wraps blk, validating that its declared
// Version is one of the three known fork tags.
func NewForkedSignedBeaconBlock(blk *SignedBeaconBlock) (*ForkedSignedBeaconBlock, error) {
	if blk == nil || blk.Block == nil {
		return nil, errors.New("nil signed beacon block")
	}
	switch blk.Block.Version {
	case Phase0, Altair, Bellatrix:
	default:
		return nil, errors.Errorf("unknown block version %d", blk.Block.Version)
	}
	return &ForkedSignedBeaconBlock{version: blk.Block.Version, block: blk}, nil
}

// Version returns the active fork tag.
func (f *ForkedSignedBeaconBlock) Version() Version {
	return f.version
}

// Block returns the underlying signed block. Callers that need to branch
// on fork should switch on Version() first.
func (f *ForkedSignedBeaconBlock) Block() *SignedBeaconBlock {
	return f.block
}
