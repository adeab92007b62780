package blocks

import (
	"github.com/sigcore-labs/beacon-core/config/params"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/helpers"
)

// increaseBalance credits delta Gwei to validator i's balance.
func increaseBalance(st *state.BeaconState, i ssztypes.ValidatorIndex, delta uint64) {
	st.Balances[i] += ssztypes.Gwei(delta)
	st.Cache().Invalidate(state.FieldBalances)
}

// decreaseBalance debits delta Gwei from validator i's balance, floored at
// zero (never underflows), matching decrease_balance.
func decreaseBalance(st *state.BeaconState, i ssztypes.ValidatorIndex, delta uint64) {
	if uint64(st.Balances[i]) <= delta {
		st.Balances[i] = 0
	} else {
		st.Balances[i] -= ssztypes.Gwei(delta)
	}
	st.Cache().Invalidate(state.FieldBalances)
}

// initiateExit computes and assigns validator i's exit epoch, respecting
// the per-epoch churn limit, and returns the assigned epoch. Shared by
// voluntary-exit processing and slashing.
func initiateExit(st *state.BeaconState, i ssztypes.ValidatorIndex) (ssztypes.Epoch, error) {
	cfg := params.BeaconConfig()
	v := st.Validators[i]
	if v.ExitEpoch != cfg.FarFutureEpoch {
		return v.ExitEpoch, nil
	}
	currentEpoch := helpers.SlotToEpoch(st.Slot)
	exitEpochs := []ssztypes.Epoch{}
	for _, val := range st.Validators {
		if val.ExitEpoch != cfg.FarFutureEpoch {
			exitEpochs = append(exitEpochs, val.ExitEpoch)
		}
	}
	exitQueueEpoch := helpers.ActivationExitEpoch(currentEpoch, cfg.MaxSeedLookahead)
	for _, e := range exitEpochs {
		if e >= exitQueueEpoch {
			exitQueueEpoch = e
		}
	}
	churn := helpers.ValidatorChurnLimit(st)
	count := uint64(0)
	for _, e := range exitEpochs {
		if e == exitQueueEpoch {
			count++
		}
	}
	if count >= churn {
		exitQueueEpoch++
	}
	v.ExitEpoch = exitQueueEpoch
	v.WithdrawableEpoch = exitQueueEpoch.Add(uint64(cfg.MinValidatorWithdrawabilityDelay))
	st.Cache().Invalidate(state.FieldValidators)
	return v.ExitEpoch, nil
}
