// Package beaconclock maps wall-clock time onto slots and epochs: Now
// yields an offset from genesis, ToSlot converts such an offset into
// (after_genesis, slot).
package beaconclock

import (
	"time"

	"github.com/sigcore-labs/beacon-core/config/params"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
)

// BeaconTime is a duration offset from genesis. Negative values mean the
// wall clock is still before genesis.
type BeaconTime time.Duration

// Nower returns the current wall time; swapped for a fixed function in tests.
type Nower func() time.Time

// Clock converts between wall time and slots for a chain with a known
// genesis time. The zero Clock is not usable; construct with New.
type Clock struct {
	genesis time.Time
	now     Nower
}

// New returns a Clock anchored at genesis, reading wall time from time.Now.
func New(genesis time.Time) *Clock {
	return &Clock{genesis: genesis, now: time.Now}
}

// NewWithNower returns a Clock with an injected time source, used by tests
// that need deterministic slot arithmetic.
func NewWithNower(genesis time.Time, now Nower) *Clock {
	return &Clock{genesis: genesis, now: now}
}

// GenesisTime returns the chain's genesis time.
func (c *Clock) GenesisTime() time.Time {
	return c.genesis
}

// Now returns the current offset from genesis.
func (c *Clock) Now() BeaconTime {
	return BeaconTime(c.now().Sub(c.genesis))
}

// ToSlot converts a BeaconTime into its slot. afterGenesis is false when t
// is before genesis, in which case slot is 0.
func (c *Clock) ToSlot(t BeaconTime) (afterGenesis bool, slot ssztypes.Slot) {
	if t < 0 {
		return false, 0
	}
	secondsPerSlot := params.BeaconConfig().SecondsPerSlot
	return true, ssztypes.Slot(uint64(time.Duration(t)/time.Second) / secondsPerSlot)
}

// CurrentSlot returns the slot for the current wall time, 0 before genesis.
func (c *Clock) CurrentSlot() ssztypes.Slot {
	_, slot := c.ToSlot(c.Now())
	return slot
}

// SlotStart returns the wall time at which slot begins.
func (c *Clock) SlotStart(slot ssztypes.Slot) time.Time {
	secondsPerSlot := params.BeaconConfig().SecondsPerSlot
	return c.genesis.Add(time.Duration(uint64(slot)*secondsPerSlot) * time.Second)
}

// CurrentEpoch returns the epoch of the current wall-clock slot.
func (c *Clock) CurrentEpoch() ssztypes.Epoch {
	return ssztypes.Epoch(uint64(c.CurrentSlot()) / uint64(params.BeaconConfig().SlotsPerEpoch))
}
