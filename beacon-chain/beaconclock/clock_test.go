package beaconclock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/sigcore-labs/beacon-core/config/params"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
)

func TestToSlot(t *testing.T) {
	params.UseMinimalConfig()
	genesis := time.Unix(1_600_000_000, 0)
	now := genesis
	c := NewWithNower(genesis, func() time.Time { return now })

	tests := []struct {
		name         string
		offset       time.Duration
		afterGenesis bool
		slot         ssztypes.Slot
	}{
		{"at genesis", 0, true, 0},
		{"mid slot zero", 5 * time.Second, true, 0},
		{"start of slot one", 12 * time.Second, true, 1},
		{"slot ten", 125 * time.Second, true, 10},
		{"before genesis", -30 * time.Second, false, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			now = genesis.Add(tc.offset)
			after, slot := c.ToSlot(c.Now())
			assert.Equal(t, tc.afterGenesis, after)
			assert.Equal(t, tc.slot, slot)
		})
	}
}

func TestSlotStartRoundTrips(t *testing.T) {
	params.UseMinimalConfig()
	genesis := time.Unix(1_600_000_000, 0)
	now := genesis
	c := NewWithNower(genesis, func() time.Time { return now })

	for _, slot := range []ssztypes.Slot{0, 1, 31, 8191} {
		now = c.SlotStart(slot)
		assert.Equal(t, slot, c.CurrentSlot(), "slot %d", slot)
	}
}

func TestCurrentEpoch(t *testing.T) {
	params.UseMinimalConfig()
	genesis := time.Unix(1_600_000_000, 0)
	now := genesis
	c := NewWithNower(genesis, func() time.Time { return now })

	// Minimal preset: 8 slots per epoch, 12 seconds per slot.
	now = c.SlotStart(17)
	assert.Equal(t, ssztypes.Epoch(2), c.CurrentEpoch())
}
