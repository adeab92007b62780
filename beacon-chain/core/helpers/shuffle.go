package helpers

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/config/params"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/crypto/hash"
)

func bytesToUint64LE(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

func hashSelectionProof(b []byte) [32]byte {
	return hash.Hash(b)
}

// PutUint64LE little-endian encodes x into buf[:8], a small exported
// convenience for callers outside this package building ad-hoc seed
// material (e.g. core/altair's sync-committee sampling).
func PutUint64LE(buf []byte, x uint64) {
	binary.LittleEndian.PutUint64(buf, x)
}

// HashBytes exposes the package's SHA-256 primitive for callers building
// ad-hoc seed material the same way ShuffledIndex/BeaconProposerIndex do.
func HashBytes(b []byte) [32]byte {
	return hash.Hash(b)
}

// Seed computes the per-epoch shuffling seed:
// hash(domainType ++ epoch_LE8 ++ randao_mix).
func Seed(st *state.BeaconState, epoch ssztypes.Epoch, domainType [4]byte) ([32]byte, error) {
	cfg := params.BeaconConfig()
	mixEpoch := epoch.Add(uint64(cfg.EpochsPerHistoricalVector)).Sub(uint64(cfg.MinSeedLookahead) + 1)
	mix, err := RandaoMix(st, mixEpoch)
	if err != nil {
		return [32]byte{}, err
	}
	buf := make([]byte, 4+8+32)
	copy(buf[:4], domainType[:])
	binary.LittleEndian.PutUint64(buf[4:12], uint64(epoch))
	copy(buf[12:], mix[:])
	return hash.Hash(buf), nil
}

// RandaoMix returns the randao mix stored for epoch's slot within the
// EpochsPerHistoricalVector-sized ring.
func RandaoMix(st *state.BeaconState, epoch ssztypes.Epoch) ([32]byte, error) {
	cfg := params.BeaconConfig()
	if len(st.RandaoMixes) == 0 {
		return [32]byte{}, errors.New("state has no randao mixes")
	}
	idx := uint64(epoch) % uint64(cfg.EpochsPerHistoricalVector)
	if idx >= uint64(len(st.RandaoMixes)) {
		return [32]byte{}, errors.Errorf("randao mix index %d out of range", idx)
	}
	return st.RandaoMixes[idx], nil
}

// ShuffledIndex applies the swap-or-not shuffle to index within a list of
// length listSize under seed, matching compute_shuffled_index.
func ShuffledIndex(index, listSize uint64, seed [32]byte) (uint64, error) {
	if listSize == 0 {
		return 0, errors.New("list size cannot be 0")
	}
	if index >= listSize {
		return 0, errors.Errorf("index %d out of bounds for list size %d", index, listSize)
	}
	rounds := params.BeaconConfig().ShuffleRoundCount
	cur := index
	for round := uint64(0); round < rounds; round++ {
		buf := make([]byte, 33)
		copy(buf[:32], seed[:])
		buf[32] = byte(round)
		hRound := hash.Hash(buf)
		pivot := bytesToUint64LE(hRound[:8]) % listSize
		flip := (pivot + listSize - cur) % listSize
		position := cur
		if flip > position {
			position = flip
		}
		source := hashShuffleSource(seed, round, position/256)
		byteIdx := (position % 256) / 8
		bitIdx := position % 8
		theByte := source[byteIdx]
		theBit := (theByte >> bitIdx) & 1
		if theBit == 1 {
			cur = flip
		}
	}
	return cur, nil
}

func hashShuffleSource(seed [32]byte, round, position uint64) [32]byte {
	buf := make([]byte, 32+1+4)
	copy(buf[:32], seed[:])
	buf[32] = byte(round)
	binary.LittleEndian.PutUint32(buf[33:], uint32(position))
	return hash.Hash(buf)
}

// ShuffledValidatorIndices returns the full shuffled permutation of
// active indices for epoch, the per-epoch list beacon committees slice
// into. BeaconProposerIndex does not use it; it samples the active set
// directly.
func ShuffledValidatorIndices(st *state.BeaconState, epoch ssztypes.Epoch) ([]ssztypes.ValidatorIndex, error) {
	active := ActiveValidatorIndices(st, epoch)
	if len(active) == 0 {
		return nil, errors.New("no active validators at epoch")
	}
	seed, err := Seed(st, epoch, params.BeaconConfig().DomainBeaconAttester)
	if err != nil {
		return nil, err
	}
	n := uint64(len(active))
	shuffled := make([]ssztypes.ValidatorIndex, n)
	for i := uint64(0); i < n; i++ {
		j, err := ShuffledIndex(i, n, seed)
		if err != nil {
			return nil, err
		}
		shuffled[i] = active[j]
	}
	return shuffled, nil
}

// CommitteeCount returns the number of committees active at epoch, bounded
// by [1, MaxCommitteesPerSlot] per slot and by one committee per
// TargetCommitteeSize validators, matching get_committee_count_per_slot.
func CommitteeCount(st *state.BeaconState, epoch ssztypes.Epoch) uint64 {
	cfg := params.BeaconConfig()
	active := uint64(len(ActiveValidatorIndices(st, epoch)))
	count := active / uint64(cfg.SlotsPerEpoch) / cfg.TargetCommitteeSize
	if count > cfg.MaxCommitteesPerSlot {
		count = cfg.MaxCommitteesPerSlot
	}
	if count < 1 {
		count = 1
	}
	return count
}

// BeaconCommittee returns the committee for (slot, committeeIndex): a slice
// into the epoch's shuffled validator list.
func BeaconCommittee(st *state.BeaconState, slot ssztypes.Slot, committeeIndex ssztypes.CommitteeIndex) ([]ssztypes.ValidatorIndex, error) {
	cfg := params.BeaconConfig()
	epoch := SlotToEpoch(slot)
	shuffled, err := ShuffledValidatorIndices(st, epoch)
	if err != nil {
		return nil, err
	}
	committeesPerSlot := CommitteeCount(st, epoch)
	slotOffset := uint64(slot) % uint64(cfg.SlotsPerEpoch)
	index := slotOffset*committeesPerSlot + uint64(committeeIndex)
	totalCommittees := committeesPerSlot * uint64(cfg.SlotsPerEpoch)
	if totalCommittees == 0 || index >= totalCommittees {
		return nil, errors.New("committee index out of range for slot")
	}
	n := uint64(len(shuffled))
	start := n * index / totalCommittees
	end := n * (index + 1) / totalCommittees
	if start == end {
		return nil, errors.New("empty committee")
	}
	return shuffled[start:end], nil
}

// BeaconProposerIndex selects the proposer for st.Slot: a deterministic
// hash-based weighted sample over the current epoch's active set, matching
// compute_proposer_index. Callers needing per-epoch reuse should cache the
// result themselves.
func BeaconProposerIndex(st *state.BeaconState) (ssztypes.ValidatorIndex, error) {
	cfg := params.BeaconConfig()
	epoch := CurrentEpoch(st)
	seed, err := Seed(st, epoch, cfg.DomainBeaconProposer)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, 40)
	copy(buf[:32], seed[:])
	binary.LittleEndian.PutUint64(buf[32:], uint64(st.Slot))
	seedWithSlot := hash.Hash(buf)

	indices := ActiveValidatorIndices(st, epoch)
	if len(indices) == 0 {
		return 0, errors.New("no active validators")
	}
	maxRandomByte := uint64(1<<8 - 1)
	i := uint64(0)
	total := uint64(len(indices))
	for {
		candidateIdx, err := ShuffledIndex(i%total, total, seedWithSlot)
		if err != nil {
			return 0, err
		}
		candidate := indices[candidateIdx]
		if uint64(candidate) >= uint64(len(st.Validators)) {
			return 0, errors.New("proposer candidate index out of range")
		}
		buf := make([]byte, 40)
		copy(buf[:32], seedWithSlot[:])
		binary.LittleEndian.PutUint64(buf[32:], i/32)
		h := hash.Hash(buf)
		randomByte := uint64(h[i%32])
		effectiveBalance := uint64(st.Validators[candidate].EffectiveBalance)
		if effectiveBalance*maxRandomByte >= cfg.MaxEffectiveBalance*randomByte {
			return candidate, nil
		}
		i++
	}
}
