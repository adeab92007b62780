// Package ssz implements the canonical SSZ encoding and hash-tree-root
// merkleization used by the beacon data model, along with a per-field
// memoizing cache: mutating a field invalidates its subtree while
// preserving siblings' cached roots.
package ssz

import (
	"github.com/prysmaticlabs/gohashtree"
	"github.com/sigcore-labs/beacon-core/container/trie"
	"github.com/sigcore-labs/beacon-core/crypto/hash"
)

// HashFn hashes an arbitrary byte slice to a 32-byte digest.
type HashFn = hash.HashFn

// Hasher pairs two 32-byte chunks into their parent chunk. Combi is the
// two-child primitive; Merkleize below builds whole trees out of it.
type Hasher struct {
	hash HashFn
}

// NewHasher returns a Hasher backed by the module-wide SHA-256 implementation.
func NewHasher() Hasher {
	return Hasher{hash: hash.CustomSHA256Hasher()}
}

// Combi hashes the concatenation of a and b, the single Merkle-tree
// combining step.
func (h Hasher) Combi(a, b [32]byte) [32]byte {
	buf := make([]byte, 64)
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return h.hash(buf)
}

// VectorizedHashPairs hashes len(chunks)/2 sibling pairs in one batched
// call using gohashtree's vectorized SHA-256. An odd chunk count is padded
// with the zero hash before pairing.
func VectorizedHashPairs(chunks [][32]byte) ([][32]byte, error) {
	if len(chunks)%2 != 0 {
		chunks = append(chunks, trie.ZeroHashes[0])
	}
	out := make([][32]byte, len(chunks)/2)
	if err := gohashtree.Hash(out, chunks); err != nil {
		return nil, err
	}
	return out, nil
}
