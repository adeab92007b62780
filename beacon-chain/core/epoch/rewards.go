package epoch

import (
	"github.com/sigcore-labs/beacon-core/config/params"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/helpers"
)

// processRewardsAndPenalties applies the previous epoch's attestation
// reward/penalty deltas to every validator's balance. Phase0 and Altair+
// use different base-reward formulas (Altair's participation-flag scheme
// vs. Phase0's four-component pending-attestation scheme); only the
// Altair+ formula is implemented here (see core/epoch/justification.go's
// note on Phase0 pending-attestation tallying not being modeled).
func processRewardsAndPenalties(st *state.BeaconState) error {
	currentEpoch := helpers.CurrentEpoch(st)
	if currentEpoch <= 1 {
		return nil
	}
	if st.Version() < state.Altair {
		return nil
	}
	cfg := params.BeaconConfig()
	totalActiveIncrements := uint64(helpers.TotalActiveBalance(st)) / cfg.EffectiveBalanceIncrement
	baseRewardPerIncrement := uint64(0)
	if totalActiveIncrements > 0 {
		baseRewardPerIncrement = cfg.EffectiveBalanceIncrement * cfg.BaseRewardFactor / isqrt64(totalActiveIncrements*cfg.EffectiveBalanceIncrement)
	}

	prevEpoch := helpers.PrevEpoch(st)
	changed := false
	for i, v := range st.Validators {
		if !v.IsActive(prevEpoch) {
			continue
		}
		baseReward := baseRewardPerIncrement * (uint64(v.EffectiveBalance) / cfg.EffectiveBalanceIncrement)
		flags := byte(0)
		if i < len(st.PreviousEpochParticipation) {
			flags = st.PreviousEpochParticipation[i]
		}
		delta := rewardPenaltyDelta(flags, baseReward, st.InactivityScores[i], cfg)
		applyDelta(st, ssztypes.ValidatorIndex(i), delta)
		changed = true
	}
	if changed {
		st.Cache().Invalidate(state.FieldBalances)
	}
	return nil
}

func rewardPenaltyDelta(flags byte, baseReward uint64, inactivityScore uint64, cfg *params.BeaconChainConfig) int64 {
	var delta int64
	weights := []uint64{14, 26, 14} // source, target, head weight numerators (WEIGHT_DENOMINATOR = 64)
	for i, w := range weights {
		timely := flags&(1<<i) != 0
		if timely {
			delta += int64(baseReward * w / 64)
		} else {
			delta -= int64(baseReward * w / 64)
		}
	}
	if inactivityScore > 0 {
		penaltyNumerator := baseReward * inactivityScore
		delta -= int64(penaltyNumerator / (cfg.InactivityScoreBias * 64))
	}
	return delta
}

func applyDelta(st *state.BeaconState, i ssztypes.ValidatorIndex, delta int64) {
	if delta >= 0 {
		st.Balances[i] += ssztypes.Gwei(delta)
		return
	}
	loss := uint64(-delta)
	if uint64(st.Balances[i]) <= loss {
		st.Balances[i] = 0
		return
	}
	st.Balances[i] -= ssztypes.Gwei(loss)
}

func isqrt64(x uint64) uint64 {
	if x == 0 {
		return 0
	}
	z := x
	y := (z + 1) / 2
	for y < z {
		z = y
		y = (z + x/z) / 2
	}
	return z
}
