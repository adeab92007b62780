// Package primitives defines the fixed-width numeric types shared across the
// consensus data model: Slot, Epoch, ValidatorIndex, CommitteeIndex and
// SubnetId. They are plain uint64/uint32 newtypes so that a slot can never be
// silently passed where an epoch is expected.
package primitives

import "fmt"

// Slot represents a single consensus slot, a fixed-duration period during
// which a single proposer is expected to publish a block.
type Slot uint64

// Epoch represents a span of SlotsPerEpoch consecutive slots.
type Epoch uint64

// Add returns s+x avoiding the need for casts at every call site.
func (s Slot) Add(x uint64) Slot {
	return s + Slot(x)
}

// Sub returns s-x. Callers must guarantee s >= x; underflow is not
// checked here.
func (s Slot) Sub(x uint64) Slot {
	return s - Slot(x)
}

// SafeSub returns s-x and false if the subtraction would underflow.
func (s Slot) SafeSub(x uint64) (Slot, bool) {
	if uint64(s) < x {
		return 0, false
	}
	return s - Slot(x), true
}

func (s Slot) String() string {
	return fmt.Sprintf("%d", uint64(s))
}

// Add returns e+x.
func (e Epoch) Add(x uint64) Epoch {
	return e + Epoch(x)
}

// Sub returns e-x.
func (e Epoch) Sub(x uint64) Epoch {
	return e - Epoch(x)
}

// SafeSub returns e-x and false if the subtraction would underflow.
func (e Epoch) SafeSub(x uint64) (Epoch, bool) {
	if uint64(e) < x {
		return 0, false
	}
	return e - Epoch(x), true
}

func (e Epoch) String() string {
	return fmt.Sprintf("%d", uint64(e))
}
