package ssz

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/container/trie"
)

var errListOverLimit = errors.New("merkleizing list that is too large, over limit")

// Depth returns the height of the smallest perfect binary tree that can
// hold v leaves (0 for v<=1).
func Depth(v uint64) uint8 {
	if v <= 1 {
		return 0
	}
	v--
	var out uint8
	for v > 0 {
		v >>= 1
		out++
	}
	return out
}

// vectorizedLayerMin is the layer width above which pairwise hashing goes
// through gohashtree's batched SHA-256 instead of the scalar Combi loop.
// Narrow layers are not worth the batch setup.
const vectorizedLayerMin = 8

// MerkleizeVector hashes a list of 32-byte chunks up to a perfectly balanced
// tree of the given length, padding with precomputed zero-hashes as needed.
// This is the fixed-size-vector case of SSZ merkleization (no length mix-in).
func MerkleizeVector(elements [][32]byte, length uint64) [32]byte {
	depth := Depth(length)
	if len(elements) == 0 {
		return trie.ZeroHashes[depth]
	}
	h := NewHasher()
	for i := uint8(0); i < depth; i++ {
		if len(elements)%2 == 1 {
			elements = append(elements, trie.ZeroHashes[i])
		}
		if len(elements) >= vectorizedLayerMin {
			if next, err := VectorizedHashPairs(elements); err == nil {
				elements = next
				continue
			}
		}
		next := make([][32]byte, len(elements)/2)
		for j := 0; j < len(next); j++ {
			next[j] = h.Combi(elements[2*j], elements[2*j+1])
		}
		elements = next
	}
	return elements[0]
}

// MixInLength hashes root together with the little-endian length chunk,
// completing the SSZ list merkleization rule list_root = hash(vector_root, length).
func MixInLength(root [32]byte, length uint64) [32]byte {
	var lengthChunk [32]byte
	binary.LittleEndian.PutUint64(lengthChunk[:8], length)
	return NewHasher().Combi(root, lengthChunk)
}

// MerkleizeListSSZ merkleizes count leaf chunks as a list with limit, mixing
// in the true element count, matching SSZ's List[T, N] hash-tree-root rule.
func MerkleizeListSSZ(chunks [][32]byte, limit uint64) ([32]byte, error) {
	if uint64(len(chunks)) > limit {
		return [32]byte{}, errListOverLimit
	}
	body := MerkleizeVector(chunks, limit)
	return MixInLength(body, uint64(len(chunks))), nil
}

// Pack concatenates byte-serialized leaves into 32-byte chunks, zero-padding
// the final chunk, matching SSZ's basic-type packing rule ahead of
// merkleization.
func Pack(serializedItems [][]byte) [][32]byte {
	var buf []byte
	for _, item := range serializedItems {
		buf = append(buf, item...)
	}
	numChunks := (len(buf) + 31) / 32
	if numChunks == 0 {
		numChunks = 1
	}
	padded := make([]byte, numChunks*32)
	copy(padded, buf)
	chunks := make([][32]byte, numChunks)
	for i := range chunks {
		copy(chunks[i][:], padded[i*32:(i+1)*32])
	}
	return chunks
}
