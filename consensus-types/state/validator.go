// Package state defines the per-fork BeaconState variants and the
// ForkedBeaconState tagged union, mirroring consensus-types/blocks' approach
// to the block side of the data model.
package state

import ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"

// Validator is a single registry entry: identity (public key, withdrawal
// credentials), stake (effective balance), and lifecycle epochs.
type Validator struct {
	PublicKey                  [48]byte
	WithdrawalCredentials      [32]byte
	EffectiveBalance           ssztypes.Gwei
	Slashed                    bool
	ActivationEligibilityEpoch ssztypes.Epoch
	ActivationEpoch            ssztypes.Epoch
	ExitEpoch                  ssztypes.Epoch
	WithdrawableEpoch          ssztypes.Epoch
}

// IsActive reports whether the validator is active at epoch: activated on
// or before epoch and not yet exited.
func (v *Validator) IsActive(epoch ssztypes.Epoch) bool {
	return v.ActivationEpoch <= epoch && epoch < v.ExitEpoch
}

// IsSlashable reports whether the validator can still be slashed at epoch:
// not already slashed, and not yet past its withdrawable epoch.
func (v *Validator) IsSlashable(epoch ssztypes.Epoch) bool {
	return !v.Slashed && v.ActivationEligibilityEpoch <= epoch && epoch < v.WithdrawableEpoch
}

// IsEligibleForActivationQueue reports whether the validator can enter the
// activation-eligibility queue: not yet eligible, and its effective balance
// has reached the maximum.
func (v *Validator) IsEligibleForActivationQueue(farFutureEpoch ssztypes.Epoch, maxEffectiveBalance ssztypes.Gwei) bool {
	return v.ActivationEligibilityEpoch == farFutureEpoch && v.EffectiveBalance == maxEffectiveBalance
}

// Copy returns a value copy of v.
func (v *Validator) Copy() *Validator {
	cpy := *v
	return &cpy
}

// PersistedValidator is the immutable identity tuple persisted for a
// validator: (uncompressed_pubkey, withdrawal_credentials), indexed by
// ValidatorIndex. It is kept distinct from Validator because the
// mutable lifecycle fields (balance, slashed flag, epochs) are state, while
// the identity tuple never changes once a validator is registered.
type PersistedValidator struct {
	UncompressedPubKey    []byte
	WithdrawalCredentials [32]byte
}
