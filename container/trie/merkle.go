package trie

import "github.com/sigcore-labs/beacon-core/crypto/hash"

// VerifyMerkleBranch checks that leaf, combined with proof at the given
// index within a tree of the given depth, hashes up to root — the
// generalized-index Merkle proof verification used by deposit inclusion
// proofs against the deposit contract's tree.
func VerifyMerkleBranch(leaf [32]byte, proof [][32]byte, depth uint64, index uint64, root [32]byte) bool {
	if uint64(len(proof)) != depth {
		return false
	}
	value := leaf
	for i := uint64(0); i < depth; i++ {
		if (index>>i)&1 == 1 {
			value = combine(proof[i], value)
		} else {
			value = combine(value, proof[i])
		}
	}
	return value == root
}

func combine(a, b [32]byte) [32]byte {
	buf := make([]byte, 64)
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return hash.Hash(buf)
}
