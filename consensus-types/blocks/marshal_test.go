package blocks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sigcore-labs/beacon-core/config/params"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
)

func sampleAttestationData() *AttestationData {
	return &AttestationData{
		Slot:            12,
		CommitteeIndex:  3,
		BeaconBlockRoot: [32]byte{0x01},
		Source:          Checkpoint{Epoch: 1, Root: [32]byte{0x02}},
		Target:          Checkpoint{Epoch: 2, Root: [32]byte{0x03}},
	}
}

func sampleBlock(version Version) *SignedBeaconBlock {
	body := &BeaconBlockBody{
		RandaoReveal: [96]byte{0x11},
		Eth1Data: &Eth1Data{
			DepositRoot:  [32]byte{0x21},
			DepositCount: 42,
			BlockHash:    [32]byte{0x22},
		},
		Graffiti: [32]byte{'g'},
		ProposerSlashings: []*ProposerSlashing{{
			Header1: &SignedBeaconBlockHeader{
				Header:    &BeaconBlockHeader{Slot: 9, ProposerIndex: 1, ParentRoot: [32]byte{1}, StateRoot: [32]byte{2}, BodyRoot: [32]byte{3}},
				Signature: [96]byte{0x31},
			},
			Header2: &SignedBeaconBlockHeader{
				Header:    &BeaconBlockHeader{Slot: 9, ProposerIndex: 1, ParentRoot: [32]byte{4}, StateRoot: [32]byte{5}, BodyRoot: [32]byte{6}},
				Signature: [96]byte{0x32},
			},
		}},
		AttesterSlashings: []*AttesterSlashing{{
			Attestation1: &IndexedAttestation{
				AttestingIndices: []ssztypes.ValidatorIndex{1, 2, 3},
				Data:             sampleAttestationData(),
				Signature:        [96]byte{0x41},
			},
			Attestation2: &IndexedAttestation{
				AttestingIndices: []ssztypes.ValidatorIndex{2, 3},
				Data:             sampleAttestationData(),
				Signature:        [96]byte{0x42},
			},
		}},
		Attestations: []*Attestation{
			{
				AggregationBits: []byte{0xff, 0x01},
				Data:            sampleAttestationData(),
				Signature:       [96]byte{0x51},
			},
			{
				AggregationBits: []byte{0x0f},
				Data:            sampleAttestationData(),
				Signature:       [96]byte{0x52},
			},
		},
		Deposits: []*Deposit{{
			Proof: make([][32]byte, 33),
			Data: &DepositData{
				PublicKey:             [48]byte{0x61},
				WithdrawalCredentials: [32]byte{0x62},
				Amount:                32_000_000_000,
				Signature:             [96]byte{0x63},
			},
		}},
		VoluntaryExits: []*SignedVoluntaryExit{{
			Exit:      &VoluntaryExit{Epoch: 7, ValidatorIndex: 11},
			Signature: [96]byte{0x71},
		}},
	}
	if version >= Altair {
		bits := make([]byte, (params.BeaconConfig().SyncCommitteeSize+7)/8)
		bits[0] = 0xaa
		body.SyncAggregate = &SyncAggregate{
			SyncCommitteeBits:      bits,
			SyncCommitteeSignature: [96]byte{0x81},
		}
	}
	if version >= Bellatrix {
		body.ExecutionPayload = &ExecutionPayload{
			ParentHash:    [32]byte{0x91},
			FeeRecipient:  [20]byte{0x92},
			StateRoot:     [32]byte{0x93},
			ReceiptsRoot:  [32]byte{0x94},
			PrevRandao:    [32]byte{0x95},
			BlockNumber:   100,
			GasLimit:      30_000_000,
			GasUsed:       21_000,
			Timestamp:     1_700_000_000,
			ExtraData:     []byte("geth"),
			BaseFeePerGas: [32]byte{0x07},
			BlockHash:     [32]byte{0x96},
			Transactions:  [][]byte{{0x01, 0x02}, {0x03}},
		}
	}
	return &SignedBeaconBlock{
		Block: &BeaconBlock{
			Version:       version,
			Slot:          32,
			ProposerIndex: 5,
			ParentRoot:    [32]byte{0xa1},
			StateRoot:     [32]byte{0xa2},
			Body:          body,
		},
		Signature: [96]byte{0xff},
	}
}

func TestSignedBlockRoundTrip(t *testing.T) {
	params.UseMinimalConfig()
	for _, version := range []Version{Phase0, Altair, Bellatrix} {
		t.Run(version.String(), func(t *testing.T) {
			blk := sampleBlock(version)
			enc, err := blk.MarshalSSZ()
			require.NoError(t, err)
			dec, err := UnmarshalSignedBeaconBlockSSZ(enc, version)
			require.NoError(t, err)
			assert.Equal(t, blk, dec)
		})
	}
}

func TestEmptyBodyRoundTrip(t *testing.T) {
	params.UseMinimalConfig()
	blk := &SignedBeaconBlock{
		Block: &BeaconBlock{
			Version: Phase0,
			Slot:    1,
			Body: &BeaconBlockBody{
				Eth1Data: &Eth1Data{},
			},
		},
	}
	enc, err := blk.MarshalSSZ()
	require.NoError(t, err)
	dec, err := UnmarshalSignedBeaconBlockSSZ(enc, Phase0)
	require.NoError(t, err)
	assert.Equal(t, blk, dec)
}

func TestHashTreeRootStableAcrossEncodings(t *testing.T) {
	params.UseMinimalConfig()
	blk := sampleBlock(Bellatrix)
	r1, err := blk.Block.HashTreeRoot()
	require.NoError(t, err)

	enc, err := blk.MarshalSSZ()
	require.NoError(t, err)
	dec, err := UnmarshalSignedBeaconBlockSSZ(enc, Bellatrix)
	require.NoError(t, err)
	r2, err := dec.Block.HashTreeRoot()
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestUnmarshalRejectsTruncated(t *testing.T) {
	params.UseMinimalConfig()
	blk := sampleBlock(Altair)
	enc, err := blk.MarshalSSZ()
	require.NoError(t, err)
	_, err = UnmarshalSignedBeaconBlockSSZ(enc[:50], Altair)
	assert.Error(t, err)
}
