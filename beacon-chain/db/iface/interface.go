// Package iface declares the narrow database surface the core requires of
// the on-disk DAG database, keeping the interface separate from any
// concrete backend.
package iface

import (
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
)

// Database is the persistence contract: blocks and states by root. The
// real backend lives outside this module; db/kv ships an in-memory
// implementation for tests and for the hot-state promotion policy.
type Database interface {
	SaveBlock(root [32]byte, blk *consensusblocks.ForkedSignedBeaconBlock) error
	Block(root [32]byte) (*consensusblocks.ForkedSignedBeaconBlock, error)
	HasBlock(root [32]byte) bool
	SaveState(root [32]byte, st *state.BeaconState) error
	State(root [32]byte) (*state.BeaconState, error)
}
