package helpers

import (
	"github.com/sigcore-labs/beacon-core/config/params"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
)

// ActivationExitEpoch returns the earliest epoch a validator activated or
// exited "now" can actually take effect, per
// compute_activation_exit_epoch: epoch + 1 + MaxSeedLookahead.
func ActivationExitEpoch(epoch ssztypes.Epoch, maxSeedLookahead ssztypes.Epoch) ssztypes.Epoch {
	return epoch.Add(1).Add(uint64(maxSeedLookahead))
}

// ValidatorChurnLimit bounds how many validators may activate or exit in a
// single epoch: max(MinPerEpochChurnLimit, active_count / ChurnLimitQuotient).
func ValidatorChurnLimit(st *state.BeaconState) uint64 {
	cfg := params.BeaconConfig()
	active := uint64(len(ActiveValidatorIndices(st, CurrentEpoch(st))))
	limit := active / cfg.ChurnLimitQuotient
	if limit < cfg.MinPerEpochChurnLimit {
		limit = cfg.MinPerEpochChurnLimit
	}
	return limit
}
