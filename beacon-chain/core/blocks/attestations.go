package blocks

import (
	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/config/params"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/helpers"
)

// ProcessAttestations applies every attestation in block order
// (attestations come after attester slashings in the fixed operation
// order). Each attestation's reward bookkeeping is Altair-specific;
// Phase0's pending-attestation accounting is intentionally not modeled
// since epoch-transition rewards here are computed directly from
// participation flags (see core/epoch).
func ProcessAttestations(st *state.BeaconState, atts []*consensusblocks.Attestation, skipBLS bool) error {
	for i, att := range atts {
		indices, err := VerifyAttestation(st, att, skipBLS)
		if err != nil {
			return errors.Wrapf(err, "invalid attestation at index %d", i)
		}
		if st.Version() >= state.Altair {
			if err := updateParticipationFlags(st, att.Data, indices); err != nil {
				return err
			}
		}
	}
	return nil
}

// VerifyAttestation checks an attestation's inclusion-delay window, target
// checkpoint, committee membership of its aggregation bits, and (unless
// skipBLS) aggregate signature, returning the attesting validator indices.
func VerifyAttestation(st *state.BeaconState, att *consensusblocks.Attestation, skipBLS bool) ([]ssztypes.ValidatorIndex, error) {
	cfg := params.BeaconConfig()
	data := att.Data

	if data.Slot.Add(uint64(cfg.MinAttestationInclusionDelay)) > st.Slot {
		return nil, errors.New("attestation included before minimum inclusion delay")
	}
	if st.Slot > data.Slot.Add(uint64(cfg.SlotsPerEpoch)) {
		return nil, errors.New("attestation included outside slot+SLOTS_PER_EPOCH window")
	}

	currentEpoch := helpers.CurrentEpoch(st)
	previousEpoch := helpers.PrevEpoch(st)
	targetEpoch := helpers.SlotToEpoch(data.Slot)
	if targetEpoch != data.Target.Epoch {
		return nil, errors.New("attestation target epoch does not match slot epoch")
	}
	if targetEpoch != currentEpoch && targetEpoch != previousEpoch {
		return nil, errors.New("attestation target epoch is neither current nor previous")
	}
	if len(st.BlockRoots) == 0 {
		return nil, errors.New("state has no block roots")
	}
	boundaryRoot := st.BlockRoots[uint64(helpers.StartSlot(targetEpoch))%uint64(len(st.BlockRoots))]
	if data.Target.Root != boundaryRoot {
		return nil, errors.New("attestation target root does not match the epoch boundary block root")
	}

	committee, err := helpers.BeaconCommittee(st, data.Slot, data.CommitteeIndex)
	if err != nil {
		return nil, errors.Wrap(err, "could not compute committee")
	}
	indices, err := attestingIndices(committee, att.AggregationBits)
	if err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return nil, errors.New("attestation has no participating validators")
	}

	if !skipBLS {
		if err := verifyAttestationSignature(st, data, indices, att.Signature); err != nil {
			return nil, err
		}
	}
	return indices, nil
}

// attestingIndices resolves a committee-relative aggregation bitlist into
// the absolute ValidatorIndex set of participating members.
func attestingIndices(committee []ssztypes.ValidatorIndex, bits []byte) ([]ssztypes.ValidatorIndex, error) {
	var out []ssztypes.ValidatorIndex
	for i, idx := range committee {
		byteIdx := i / 8
		bitIdx := uint(i % 8)
		if byteIdx >= len(bits) {
			continue
		}
		if bits[byteIdx]&(1<<bitIdx) != 0 {
			out = append(out, idx)
		}
	}
	return out, nil
}

func verifyAttestationSignature(st *state.BeaconState, data *consensusblocks.AttestationData, indices []ssztypes.ValidatorIndex, sig [96]byte) error {
	root, err := attestationDataRoot(data)
	if err != nil {
		return err
	}
	pubkeys := make([][]byte, len(indices))
	for i, idx := range indices {
		pubkeys[i] = st.Validators[idx].PublicKey[:]
	}
	return verifyAggregate(st, root, data.Target.Epoch, pubkeys, sig)
}

// updateParticipationFlags marks the attestation's timeliness-qualified
// flags for every attesting index in the appropriate
// current/previous-epoch participation bitfield (Altair+ accounting).
func updateParticipationFlags(st *state.BeaconState, data *consensusblocks.AttestationData, indices []ssztypes.ValidatorIndex) error {
	currentEpoch := helpers.CurrentEpoch(st)
	isCurrent := data.Target.Epoch == currentEpoch
	flags := participationFlagsForDelay(st.Slot - data.Slot)
	for _, idx := range indices {
		var bitfield []byte
		if isCurrent {
			bitfield = st.CurrentEpochParticipation
		} else {
			bitfield = st.PreviousEpochParticipation
		}
		if uint64(idx) >= uint64(len(bitfield)) {
			return errors.New("participation bitfield shorter than validator registry")
		}
		bitfield[idx] |= flags
	}
	if isCurrent {
		st.Cache().Invalidate(state.FieldCurrentEpochParticipation)
	} else {
		st.Cache().Invalidate(state.FieldPreviousEpochParticipation)
	}
	return nil
}

const (
	timelySourceFlag = byte(1) << 0
	timelyTargetFlag = byte(1) << 1
	timelyHeadFlag   = byte(1) << 2
)

func participationFlagsForDelay(delay ssztypes.Slot) byte {
	cfg := params.BeaconConfig()
	flags := timelySourceFlag
	if delay <= cfg.SlotsPerEpoch {
		flags |= timelyTargetFlag
	}
	if delay == ssztypes.Slot(cfg.MinAttestationInclusionDelay) {
		flags |= timelyHeadFlag
	}
	return flags
}
