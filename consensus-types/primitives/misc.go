package primitives

// Gwei is an amount of Gwei, the smallest balance unit tracked by the beacon
// state (1 ETH == 1e9 Gwei).
type Gwei uint64

// Digest is a 32-byte hash, used throughout the data model for block roots,
// state roots and the like.
type Digest [32]byte

// IsZero reports whether d is the all-zero digest, the sentinel meaning
// "none" for an otherwise-required root (e.g. an empty Checkpoint).
func (d Digest) IsZero() bool {
	return d == Digest{}
}
