package transition

import (
	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/config/params"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/altair"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/epoch"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/helpers"
)

// ProcessSlots advances st from its current slot up to (but not including
// running process_block for) targetSlot, calling process_slot once per
// slot, process_epoch at every epoch boundary, and upgrading the state's
// fork variant when targetSlot crosses AltairForkEpoch or
// BellatrixForkEpoch. Each upgrade is a structural transformation that
// preserves validator identities and balances while seeding the new
// fork's fields.
func ProcessSlots(st *state.BeaconState, targetSlot ssztypes.Slot, cache *SkipSlotCache) (*state.BeaconState, error) {
	if st.Slot > targetSlot {
		return nil, errors.Errorf("state slot %d is already past target slot %d", st.Slot, targetSlot)
	}
	if st.Slot == targetSlot {
		return st, nil
	}

	var preRoot [32]byte
	if cache != nil {
		var err error
		preRoot, err = cache.PreStateRoot(st)
		if err != nil {
			return nil, errors.Wrap(err, "could not hash pre-state for skip-slot cache")
		}
		if cached, ok := cache.Get(preRoot, targetSlot); ok {
			return cached, nil
		}
	}

	for st.Slot < targetSlot {
		if err := processSlot(st); err != nil {
			return nil, errors.Wrap(err, "could not process slot")
		}
		nextSlot := st.Slot + 1
		if helpers.IsEpochStart(nextSlot) {
			if err := epoch.ProcessEpoch(st); err != nil {
				return nil, errors.Wrap(err, "could not process epoch")
			}
		}
		st.Slot = nextSlot
		st.Cache().Invalidate(state.FieldSlot)

		if err := maybeUpgradeFork(st); err != nil {
			return nil, err
		}
	}

	if cache != nil {
		cache.Put(preRoot, targetSlot, st)
	}
	return st, nil
}

// processSlot performs the per-slot bookkeeping that precedes an epoch
// transition or block application: backfilling the previous slot's state
// root into LatestBlockHeader (once it's known) and rotating the
// block/state-root rings.
func processSlot(st *state.BeaconState) error {
	prevStateRoot, err := computeStateRootForCache(st)
	if err != nil {
		return err
	}
	cfg := params.BeaconConfig()
	idx := uint64(st.Slot) % uint64(cfg.SlotsPerHistoricalRoot)
	if idx >= uint64(len(st.StateRoots)) {
		return errors.New("state roots ring shorter than slots per historical root")
	}
	st.StateRoots[idx] = prevStateRoot
	st.Cache().Invalidate(state.FieldStateRoots)

	if st.LatestBlockHeader.StateRoot == [32]byte{} {
		st.LatestBlockHeader.StateRoot = prevStateRoot
		st.Cache().Invalidate(state.FieldLatestBlockHeader)
	}

	if idx >= uint64(len(st.BlockRoots)) {
		return errors.New("block roots ring shorter than slots per historical root")
	}
	headerRoot, err := st.LatestBlockHeader.HashTreeRoot()
	if err != nil {
		return err
	}
	st.BlockRoots[idx] = headerRoot
	st.Cache().Invalidate(state.FieldBlockRoots)
	return nil
}

// computeStateRootForCache hashes st as it stands before this slot's
// bookkeeping mutates it, the pre-state root backfilled into the header
// and the state-roots ring.
func computeStateRootForCache(st *state.BeaconState) ([32]byte, error) {
	return st.HashTreeRoot()
}

func maybeUpgradeFork(st *state.BeaconState) error {
	cfg := params.BeaconConfig()
	epochNow := helpers.SlotToEpoch(st.Slot)
	if st.Version() == state.Phase0 && epochNow == cfg.AltairForkEpoch {
		upgraded, err := altair.UpgradeToAltair(st)
		if err != nil {
			return errors.Wrap(err, "could not upgrade to altair")
		}
		*st = *upgraded
	}
	if st.Version() == state.Altair && epochNow == cfg.BellatrixForkEpoch {
		upgraded, err := altair.UpgradeToBellatrix(st)
		if err != nil {
			return errors.Wrap(err, "could not upgrade to bellatrix")
		}
		*st = *upgraded
	}
	return nil
}
