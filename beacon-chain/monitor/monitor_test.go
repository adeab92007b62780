package monitor

import (
	"testing"

	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
)

// The monitor's contract is that hooks never panic or mutate anything,
// tracked or not; these are smoke tests over both paths.
func TestHooksAreSafeForUntrackedValidators(t *testing.T) {
	m := New(nil)
	m.RegisterBeaconBlock(5, 10, [32]byte{1})
	m.RegisterAttestationInBlock(&consensusblocks.AttestationData{Slot: 9}, []ssztypes.ValidatorIndex{1, 2}, 10)
	m.RegisterSyncAggregateInBlock(10, []ssztypes.ValidatorIndex{3})
}

func TestHooksWithTrackedValidators(t *testing.T) {
	m := New([]ssztypes.ValidatorIndex{1, 3})
	m.RegisterBeaconBlock(1, 10, [32]byte{1})
	m.RegisterAttestationInBlock(&consensusblocks.AttestationData{Slot: 9}, []ssztypes.ValidatorIndex{1, 2}, 10)
	m.RegisterSyncAggregateInBlock(10, []ssztypes.ValidatorIndex{3})
}
