package epoch

import (
	"sort"

	"github.com/sigcore-labs/beacon-core/config/params"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/helpers"
)

// processRegistryUpdates activates eligible validators (bounded by the
// per-epoch churn limit), ejects validators whose balance fell below
// EjectionBalance, and advances each exiting validator's eligibility
// bookkeeping, matching process_registry_updates.
func processRegistryUpdates(st *state.BeaconState) error {
	cfg := params.BeaconConfig()
	currentEpoch := helpers.CurrentEpoch(st)

	for i, v := range st.Validators {
		if v.IsEligibleForActivationQueue(cfg.FarFutureEpoch, ssztypes.Gwei(cfg.MaxEffectiveBalance)) {
			v.ActivationEligibilityEpoch = currentEpoch.Add(1)
		}
		if v.IsActive(currentEpoch) && v.EffectiveBalance <= ssztypes.Gwei(cfg.EjectionBalance) {
			if err := ejectValidator(st, ssztypes.ValidatorIndex(i)); err != nil {
				return err
			}
		}
	}

	activationQueue := make([]int, 0)
	finalizedEpoch := st.FinalizedCheckpoint.Epoch
	for i, v := range st.Validators {
		if v.ActivationEligibilityEpoch != cfg.FarFutureEpoch && v.ActivationEpoch == cfg.FarFutureEpoch &&
			v.ActivationEligibilityEpoch <= finalizedEpoch {
			activationQueue = append(activationQueue, i)
		}
	}
	sort.Slice(activationQueue, func(a, b int) bool {
		va, vb := st.Validators[activationQueue[a]], st.Validators[activationQueue[b]]
		if va.ActivationEligibilityEpoch != vb.ActivationEligibilityEpoch {
			return va.ActivationEligibilityEpoch < vb.ActivationEligibilityEpoch
		}
		return activationQueue[a] < activationQueue[b]
	})
	churn := helpers.ValidatorChurnLimit(st)
	activationExitEpoch := helpers.ActivationExitEpoch(currentEpoch, cfg.MaxSeedLookahead)
	for i, idx := range activationQueue {
		if uint64(i) >= churn {
			break
		}
		st.Validators[idx].ActivationEpoch = activationExitEpoch
	}
	st.Cache().Invalidate(state.FieldValidators)
	return nil
}

// ejectValidator initiates exit for a validator whose balance fell below
// the ejection threshold; it mirrors core/blocks' unexported initiateExit,
// duplicated narrowly here to avoid a
// blocks<->epoch import cycle (both depend on helpers, neither on the
// other).
func ejectValidator(st *state.BeaconState, i ssztypes.ValidatorIndex) error {
	cfg := params.BeaconConfig()
	v := st.Validators[i]
	if v.ExitEpoch != cfg.FarFutureEpoch {
		return nil
	}
	currentEpoch := helpers.CurrentEpoch(st)
	exitQueueEpoch := helpers.ActivationExitEpoch(currentEpoch, cfg.MaxSeedLookahead)
	for _, other := range st.Validators {
		if other.ExitEpoch != cfg.FarFutureEpoch && other.ExitEpoch >= exitQueueEpoch {
			exitQueueEpoch = other.ExitEpoch
		}
	}
	churn := helpers.ValidatorChurnLimit(st)
	count := uint64(0)
	for _, other := range st.Validators {
		if other.ExitEpoch == exitQueueEpoch {
			count++
		}
	}
	if count >= churn {
		exitQueueEpoch++
	}
	v.ExitEpoch = exitQueueEpoch
	v.WithdrawableEpoch = exitQueueEpoch.Add(uint64(cfg.MinValidatorWithdrawabilityDelay))
	return nil
}
