// Package state defines the state-related events the block processor fans
// out to outside consumers (REST API, metrics, validator monitor UIs)
// without the core depending on them. Events travel over a go-ethereum
// event.Feed owned by the block processor.
package state

import (
	"time"

	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
)

const (
	// BlockProcessed is sent after a block passes the state transition and
	// joins the DAG.
	BlockProcessed = iota + 1
	// ChainStarted is sent when the beacon chain starts.
	ChainStarted
	// NewHead is sent after fork choice selects a new head.
	NewHead
)

// Event is a typed notification on the state feed.
type Event struct {
	Type int
	Data interface{}
}

// BlockProcessedData is the data sent with BlockProcessed events.
type BlockProcessedData struct {
	Slot        ssztypes.Slot
	BlockRoot   [32]byte
	SignedBlock *consensusblocks.ForkedSignedBeaconBlock
	Verified    bool
	Duration    time.Duration
}

// NewHeadData is the data sent with NewHead events.
type NewHeadData struct {
	Slot ssztypes.Slot
	Root [32]byte
}
