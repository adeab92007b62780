// Package monitor implements the validator monitor: block, attestation
// and sync-aggregate registration hooks invoked by the block processor
// after a block clears. This implementation tracks a configured set of
// validator indices and logs their inclusions.
package monitor

import (
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "monitor")

// Service watches a fixed set of validator indices. Methods are invoked
// from the consensus thread only; the tracked set is frozen at
// construction so no locking is needed.
type Service struct {
	tracked map[ssztypes.ValidatorIndex]struct{}
}

// New returns a monitor tracking the given validator indices. An empty set
// is valid and makes every hook a cheap no-op.
func New(tracked []ssztypes.ValidatorIndex) *Service {
	m := &Service{tracked: make(map[ssztypes.ValidatorIndex]struct{}, len(tracked))}
	for _, i := range tracked {
		m.tracked[i] = struct{}{}
	}
	return m
}

// RegisterBeaconBlock reports a tracked proposer's block reaching the DAG.
func (s *Service) RegisterBeaconBlock(proposer ssztypes.ValidatorIndex, slot ssztypes.Slot, root [32]byte) {
	if _, ok := s.tracked[proposer]; !ok {
		return
	}
	log.WithFields(logrus.Fields{
		"proposerIndex": proposer,
		"slot":          slot,
		"root":          root,
	}).Info("Proposed beacon block was included")
}

// RegisterAttestationInBlock reports tracked validators appearing in an
// attestation carried by a stored block.
func (s *Service) RegisterAttestationInBlock(data *consensusblocks.AttestationData, indices []ssztypes.ValidatorIndex, blockSlot ssztypes.Slot) {
	for _, i := range indices {
		if _, ok := s.tracked[i]; !ok {
			continue
		}
		log.WithFields(logrus.Fields{
			"validatorIndex": i,
			"attestedSlot":   data.Slot,
			"includedSlot":   blockSlot,
			"inclusionDelay": uint64(blockSlot) - uint64(data.Slot),
		}).Info("Attestation was included in block")
	}
}

// RegisterSyncAggregateInBlock reports tracked sync-committee members whose
// participation bit was set in a stored block's sync aggregate.
func (s *Service) RegisterSyncAggregateInBlock(slot ssztypes.Slot, participants []ssztypes.ValidatorIndex) {
	for _, i := range participants {
		if _, ok := s.tracked[i]; !ok {
			continue
		}
		log.WithFields(logrus.Fields{
			"validatorIndex": i,
			"slot":           slot,
		}).Info("Sync committee contribution was included in block")
	}
}
