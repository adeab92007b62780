// Package bytesutil contains the small byte-slice <-> fixed-array
// conversions that show up at nearly every SSZ field boundary: turning a
// variable-length []byte into the [32]byte a digest wants, or a uint64 into
// its little-endian wire representation.
package bytesutil

import "encoding/binary"

// ToBytes32 copies (or zero-pads/truncates) x into a [32]byte, the root type
// used throughout the data model for block/state roots and digests.
func ToBytes32(x []byte) [32]byte {
	var y [32]byte
	copy(y[:], x)
	return y
}

// ToBytes48 copies x into a [48]byte, the width of a compressed BLS public key.
func ToBytes48(x []byte) [48]byte {
	var y [48]byte
	copy(y[:], x)
	return y
}

// ToBytes96 copies x into a [96]byte, the width of a compressed BLS signature.
func ToBytes96(x []byte) [96]byte {
	var y [96]byte
	copy(y[:], x)
	return y
}

// Bytes8 little-endian encodes x into an 8-byte slice, matching SSZ's
// fixed-width uint64 encoding.
func Bytes8(x uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, x)
	return b
}

// FromBytes8 decodes a little-endian 8-byte slice into a uint64.
func FromBytes8(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

// SafeCopyRootAtIndex returns a copy of roots[i], or the zero root if i is
// out of range, used when indexing into block/state-root rings where an
// out-of-range index must not panic the caller.
func SafeCopyRootAtIndex(roots [][32]byte, i uint64) [32]byte {
	if i >= uint64(len(roots)) {
		return [32]byte{}
	}
	return roots[i]
}

// PadTo right-pads b with zero bytes until it is length n, or truncates it
// if it is already longer, matching SSZ fixed-length byte vector semantics.
func PadTo(b []byte, n int) []byte {
	if len(b) >= n {
		return b[:n]
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// Uint64ToBytesLittleEndian32 returns the 32-byte chunk representation of a
// uint64 used as an SSZ Merkle leaf: little-endian value, zero-padded to 32 bytes.
func Uint64ToBytesLittleEndian32(x uint64) [32]byte {
	var out [32]byte
	binary.LittleEndian.PutUint64(out[:8], x)
	return out
}
