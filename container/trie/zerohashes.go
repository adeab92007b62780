// Package trie provides the precomputed zero-hash table SSZ merkleization
// needs to pad partial trees up to a power-of-two width without recomputing
// SHA-256 of all-zero subtrees at every call.
package trie

import "github.com/sigcore-labs/beacon-core/crypto/hash"

// depth is the number of precomputed zero-hash levels; 64 is enough to cover
// any SSZ list/vector limit used by the beacon data model (2^64 leaves).
const depth = 64

// ZeroHashes[i] is the root of a perfectly-balanced Merkle tree of height i
// whose every leaf is the all-zero 32-byte chunk.
var ZeroHashes [depth + 1][32]byte

func init() {
	ZeroHashes[0] = [32]byte{}
	for i := 1; i <= depth; i++ {
		prev := ZeroHashes[i-1]
		ZeroHashes[i] = hash.Hash(append(append([]byte{}, prev[:]...), prev[:]...))
	}
}
