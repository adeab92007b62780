// Package fieldparams centralizes the SSZ fixed-length and list-limit
// constants the serialization and hash-tree-root code depends on. These
// are mainnet-preset values; a minimal-preset build would substitute a
// parallel file behind a build tag.
package fieldparams

const (
	// RootLength is the byte length of a 32-byte digest.
	RootLength = 32
	// BLSPubkeyLength is the byte length of a compressed BLS12-381 public key.
	BLSPubkeyLength = 48
	// BLSSignatureLength is the byte length of a compressed BLS12-381 signature.
	BLSSignatureLength = 96
	// VersionLength is the byte length of a fork version tag.
	VersionLength = 4

	// SlashingsLength is the fixed vector length of BeaconState.Slashings.
	SlashingsLength = 8192

	// SyncCommitteeLength is the fixed size of a sync committee (Altair+).
	SyncCommitteeLength = 512
	// SyncAggregateSyncCommitteeBytesLength is the byte length of the sync
	// committee participation bitvector.
	SyncAggregateSyncCommitteeBytesLength = 64

	// MaxValidatorsPerCommittee bounds an attestation's aggregation bitlist.
	MaxValidatorsPerCommittee = 2048

	// LogsBloomLength is the byte length of an execution payload's logs bloom.
	LogsBloomLength = 256
	// ExtraDataLength is the max byte length of an execution payload's extra data.
	ExtraDataLength = 32
)
