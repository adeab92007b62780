// Package signing computes domain-separated signing roots: the
// compute_fork_data_root / compute_domain / compute_signing_root family
// that every BLS verification in the state transition depends on.
package signing

import (
	"encoding/binary"

	"github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/crypto/hash"
)

// ComputeForkDataRoot hashes (currentVersion, genesisValidatorsRoot) into
// the fork-data root mixed into every signing domain.
func ComputeForkDataRoot(currentVersion [4]byte, genesisValidatorsRoot [32]byte) [32]byte {
	var versionChunk [32]byte
	copy(versionChunk[:4], currentVersion[:])
	buf := make([]byte, 64)
	copy(buf[:32], versionChunk[:])
	copy(buf[32:], genesisValidatorsRoot[:])
	return hash.Hash(buf)
}

// ComputeForkDigest returns the first 4 bytes of ComputeForkDataRoot, the
// network-level fork identifier gossip topics and RPC handshakes key on.
func ComputeForkDigest(currentVersion [4]byte, genesisValidatorsRoot [32]byte) [4]byte {
	root := ComputeForkDataRoot(currentVersion, genesisValidatorsRoot)
	var digest [4]byte
	copy(digest[:], root[:4])
	return digest
}

// ComputeDomain folds a 4-byte domain type and an optional fork-data root
// into the 32-byte domain value mixed into every signed message, matching
// compute_domain. forkVersion/genesisValidatorsRoot may be zero for
// domains that are fork-independent (none currently are, but the shape is
// kept general).
func ComputeDomain(domainType [4]byte, forkVersion *[4]byte, genesisValidatorsRoot *[32]byte) [32]byte {
	var forkDataRoot [32]byte
	if forkVersion != nil {
		gvr := [32]byte{}
		if genesisValidatorsRoot != nil {
			gvr = *genesisValidatorsRoot
		}
		forkDataRoot = ComputeForkDataRoot(*forkVersion, gvr)
	}
	var out [32]byte
	copy(out[:4], domainType[:])
	copy(out[4:], forkDataRoot[:28])
	return out
}

// ComputeSigningRoot mixes objectRoot with domain, producing the message a
// BLS signature actually signs over — every signature verification in the
// module (proposer, randao, attestations, exits, sync committee) calls
// through this one function.
func ComputeSigningRoot(objectRoot [32]byte, domain [32]byte) [32]byte {
	buf := make([]byte, 64)
	copy(buf[:32], objectRoot[:])
	copy(buf[32:], domain[:])
	return hash.Hash(buf)
}

// ComputeEpochAtSlot mirrors helpers.SlotToEpoch's math but lives here too
// since domains are occasionally computed from a raw slot without a state
// handle (e.g. validating a gossip attestation before state lookup).
func ComputeEpochAtSlot(slot primitives.Slot, slotsPerEpoch primitives.Slot) primitives.Epoch {
	return primitives.Epoch(uint64(slot) / uint64(slotsPerEpoch))
}

// Uint64LE little-endian encodes x into an 8-byte slice, used by callers
// constructing ad-hoc signing contexts (e.g. a sync committee subcommittee
// index) outside the main SSZ codec.
func Uint64LE(x uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, x)
	return b
}
