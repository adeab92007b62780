package blocks

import (
	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/config/params"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/helpers"
)

// ProcessProposerSlashings applies every proposer slashing in order,
// verifying the two headers disagree but share slot and proposer, then
// slashing the proposer. The header signatures are not checked here,
// whatever skipBLS says; the dag batch verifier collects them.
func ProcessProposerSlashings(st *state.BeaconState, slashings []*consensusblocks.ProposerSlashing, skipBLS bool) error {
	for i, ps := range slashings {
		if err := VerifyProposerSlashing(st, ps); err != nil {
			return errors.Wrapf(err, "invalid proposer slashing at index %d", i)
		}
		if err := SlashValidator(st, ps.Header1.Header.ProposerIndex); err != nil {
			return errors.Wrapf(err, "could not slash proposer at index %d", i)
		}
	}
	return nil
}

// VerifyProposerSlashing checks the two headers reference the same slot and
// proposer but different bodies, and that the proposer is currently
// slashable.
func VerifyProposerSlashing(st *state.BeaconState, ps *consensusblocks.ProposerSlashing) error {
	h1, h2 := ps.Header1.Header, ps.Header2.Header
	if h1.Slot != h2.Slot {
		return errors.New("proposer slashing headers have different slots")
	}
	if h1.ProposerIndex != h2.ProposerIndex {
		return errors.New("proposer slashing headers have different proposers")
	}
	if *h1 == *h2 {
		return errors.New("proposer slashing headers are identical")
	}
	if err := helpers.ValidateValidatorIndex(st, h1.ProposerIndex); err != nil {
		return err
	}
	v := st.Validators[h1.ProposerIndex]
	epoch := helpers.SlotToEpoch(st.Slot)
	if !v.IsSlashable(epoch) {
		return errors.New("proposer is not slashable")
	}
	return nil
}

// SlashValidator applies the common slashing penalty and whistleblower
// reward bookkeeping for validator index i, shared by proposer- and
// attester-slashing processing.
func SlashValidator(st *state.BeaconState, i ssztypes.ValidatorIndex) error {
	cfg := params.BeaconConfig()
	v := st.Validators[i]
	v.Slashed = true
	withdrawableEpoch := helpers.SlotToEpoch(st.Slot).Add(uint64(cfg.EpochsPerSlashingsVector))
	if withdrawableEpoch > v.WithdrawableEpoch {
		v.WithdrawableEpoch = withdrawableEpoch
	}
	exitEpoch, err := initiateExit(st, i)
	if err != nil {
		return err
	}
	if exitEpoch > v.ExitEpoch {
		v.ExitEpoch = exitEpoch
	}

	quotient := cfg.MinSlashingPenaltyQuotient
	if st.Version() >= state.Altair {
		quotient = cfg.MinSlashingPenaltyQuotientAltair
	}
	penalty := uint64(v.EffectiveBalance) / quotient
	decreaseBalance(st, i, penalty)

	proposer, err := helpers.BeaconProposerIndex(st)
	if err != nil {
		return errors.Wrap(err, "could not determine whistleblower reward recipient")
	}
	whistleblowerReward := uint64(v.EffectiveBalance) / cfg.WhistleBlowerRewardQuotient
	proposerReward := whistleblowerReward / cfg.ProposerRewardQuotient
	increaseBalance(st, proposer, proposerReward)
	increaseBalance(st, proposer, whistleblowerReward-proposerReward)

	st.Cache().Invalidate(state.FieldValidators)
	st.Cache().Invalidate(state.FieldBalances)
	return nil
}

// ProcessAttesterSlashings applies every attester slashing, verifying each
// indexed-attestation pair proves a double vote or surround vote before
// slashing every attester named in the intersection.
func ProcessAttesterSlashings(st *state.BeaconState, slashings []*consensusblocks.AttesterSlashing, skipBLS bool) error {
	for i, as := range slashings {
		slashable, err := VerifyAttesterSlashing(st, as)
		if err != nil {
			return errors.Wrapf(err, "invalid attester slashing at index %d", i)
		}
		slashedAny := false
		for _, idx := range slashable {
			v := st.Validators[idx]
			epoch := helpers.SlotToEpoch(st.Slot)
			if !v.IsSlashable(epoch) {
				continue
			}
			if err := SlashValidator(st, idx); err != nil {
				return err
			}
			slashedAny = true
		}
		if !slashedAny {
			return errors.Errorf("attester slashing at index %d slashed no validator", i)
		}
	}
	return nil
}

// VerifyAttesterSlashing checks that the two indexed attestations are
// distinct, form a double or surround vote, and returns the sorted
// intersection of their attesting indices (the set eligible for slashing).
func VerifyAttesterSlashing(st *state.BeaconState, as *consensusblocks.AttesterSlashing) ([]ssztypes.ValidatorIndex, error) {
	a1, a2 := as.Attestation1, as.Attestation2
	if !isSlashableAttestationData(a1.Data, a2.Data) {
		return nil, errors.New("attestations are not slashable")
	}
	if err := verifyIndexedAttestation(st, a1); err != nil {
		return nil, errors.Wrap(err, "invalid first attestation")
	}
	if err := verifyIndexedAttestation(st, a2); err != nil {
		return nil, errors.Wrap(err, "invalid second attestation")
	}
	set := make(map[ssztypes.ValidatorIndex]bool, len(a1.AttestingIndices))
	for _, idx := range a1.AttestingIndices {
		set[idx] = true
	}
	var intersection []ssztypes.ValidatorIndex
	for _, idx := range a2.AttestingIndices {
		if set[idx] {
			intersection = append(intersection, idx)
		}
	}
	return intersection, nil
}

func isSlashableAttestationData(a, b *consensusblocks.AttestationData) bool {
	doubleVote := *a != *b && a.Target.Epoch == b.Target.Epoch
	surroundVote := a.Source.Epoch < b.Source.Epoch && b.Target.Epoch < a.Target.Epoch
	return doubleVote || surroundVote
}

func verifyIndexedAttestation(st *state.BeaconState, att *consensusblocks.IndexedAttestation) error {
	if len(att.AttestingIndices) == 0 {
		return errors.New("indexed attestation has no attesting indices")
	}
	for i := 1; i < len(att.AttestingIndices); i++ {
		if att.AttestingIndices[i-1] >= att.AttestingIndices[i] {
			return errors.New("attesting indices not sorted or duplicated")
		}
	}
	for _, idx := range att.AttestingIndices {
		if err := helpers.ValidateValidatorIndex(st, idx); err != nil {
			return err
		}
	}
	return nil
}
