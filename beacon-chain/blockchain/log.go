package blockchain

import (
	"fmt"
	"time"

	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "blockchain")

// logStateTransitionData logs block contents after a successful store,
// carrying the same fields (root, slot, proposer, duration) the rejection
// path logs so both read the same.
func logStateTransitionData(b *consensusblocks.BeaconBlock, root [32]byte, d time.Duration) {
	log.WithFields(logrus.Fields{
		"slot":          b.Slot,
		"root":          fmt.Sprintf("%#x", root),
		"proposerIndex": b.ProposerIndex,
		"attestations":  len(b.Body.Attestations),
		"deposits":      len(b.Body.Deposits),
		"duration":      d,
	}).Info("Finished applying state transition and updated fork choice")
}

func logBlockRejected(b *consensusblocks.BeaconBlock, root [32]byte, d time.Duration, err error) {
	log.WithError(err).WithFields(logrus.Fields{
		"slot":          b.Slot,
		"root":          fmt.Sprintf("%#x", root),
		"proposerIndex": b.ProposerIndex,
		"duration":      d,
	}).Warn("Rejected block")
}
