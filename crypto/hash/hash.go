// Package hash wraps the SHA-256 implementation used throughout the SSZ
// hash-tree-root pipeline. It exists so the rest of the module never
// imports crypto/sha256 or sha256-simd directly, insulating callers from
// the backing implementation.
package hash

import (
	sha256 "github.com/minio/sha256-simd"
)

// Hash returns the SHA-256 digest of data.
func Hash(data []byte) [32]byte {
	var out [32]byte
	h := sha256.Sum256(data)
	copy(out[:], h[:])
	return out
}

// HashFn matches the SHA-256 signature used by the ssz package's hasher
// abstraction (ssz.HashFn).
type HashFn func([]byte) [32]byte

// CustomSHA256Hasher returns a fresh HashFn backed by sha256-simd. A fresh
// function is returned per call (rather than a shared *sha256.Hash) so that
// concurrent batch hashing during BLS-pool offload never races on internal
// hasher state.
func CustomSHA256Hasher() HashFn {
	return Hash
}
