package state

import (
	"github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	"github.com/sigcore-labs/beacon-core/encoding/bytesutil"
	"github.com/sigcore-labs/beacon-core/encoding/ssz"
)

// fieldCacheLimit bounds the merkleized container this state's top-level
// field vector is treated as; the cache keys (state/fields.go) are plain
// small integers into this same slot range.
const fieldCacheLimit = 32

// HashTreeRoot merkleizes every top-level field of s. The fields from Slot
// through Slashings go through s.Cache(), so a replayed state that only
// mutated a handful of them (balances, randao mix) never re-hashes the
// validator registry or historical roots; the later fields are re-hashed
// on every call.
func (s *BeaconState) HashTreeRoot() ([32]byte, error) {
	leaves := make([][32]byte, 0, fieldCacheLimit)
	fields := []struct {
		id int
		fn func() ([32]byte, error)
	}{
		{FieldSlot, func() ([32]byte, error) { return bytesutil.Uint64ToBytesLittleEndian32(uint64(s.Slot)), nil }},
		{FieldFork, s.forkRoot},
		{FieldLatestBlockHeader, func() ([32]byte, error) {
			if s.LatestBlockHeader == nil {
				return [32]byte{}, nil
			}
			return s.LatestBlockHeader.HashTreeRoot()
		}},
		{FieldBlockRoots, func() ([32]byte, error) { return ssz.MerkleizeVector(s.BlockRoots, uint64(len(s.BlockRoots))), nil }},
		{FieldStateRoots, func() ([32]byte, error) { return ssz.MerkleizeVector(s.StateRoots, uint64(len(s.StateRoots))), nil }},
		{FieldHistoricalRoots, func() ([32]byte, error) {
			root := ssz.MerkleizeVector(s.HistoricalRoots, uint64(len(s.HistoricalRoots)))
			return ssz.MixInLength(root, uint64(len(s.HistoricalRoots))), nil
		}},
		{FieldEth1Data, s.eth1DataRoot},
		{FieldEth1DataVotes, func() ([32]byte, error) { return bytesutil.Uint64ToBytesLittleEndian32(uint64(len(s.Eth1DataVotes))), nil }},
		{FieldEth1DepositIndex, func() ([32]byte, error) { return bytesutil.Uint64ToBytesLittleEndian32(s.Eth1DepositIndex), nil }},
		{FieldValidators, s.validatorsRoot},
		{FieldBalances, s.balancesRoot},
		{FieldRandaoMixes, func() ([32]byte, error) { return ssz.MerkleizeVector(s.RandaoMixes, uint64(len(s.RandaoMixes))), nil }},
		{FieldSlashings, s.slashingsRoot},
	}
	for _, f := range fields {
		if root, ok := s.Cache().Get(f.id); ok {
			leaves = append(leaves, root)
			continue
		}
		root, err := f.fn()
		if err != nil {
			return [32]byte{}, err
		}
		s.Cache().Set(f.id, root)
		leaves = append(leaves, root)
	}

	if s.version >= Altair {
		leaves = append(leaves, bytesutil.Uint64ToBytesLittleEndian32(uint64(len(s.PreviousEpochParticipation))))
		leaves = append(leaves, bytesutil.Uint64ToBytesLittleEndian32(uint64(len(s.CurrentEpochParticipation))))
		leaves = append(leaves, s.inactivityScoresRoot())
		leaves = append(leaves, s.syncCommitteeRoot(s.CurrentSyncCommittee))
		leaves = append(leaves, s.syncCommitteeRoot(s.NextSyncCommittee))
	}
	if s.version >= Bellatrix {
		leaves = append(leaves, s.executionPayloadHeaderRoot())
	}

	leaves = append(leaves, s.checkpointRootOrZero(&s.PreviousJustifiedCheckpoint))
	leaves = append(leaves, s.checkpointRootOrZero(&s.CurrentJustifiedCheckpoint))
	leaves = append(leaves, s.checkpointRootOrZero(&s.FinalizedCheckpoint))
	leaves = append(leaves, bytesutil.ToBytes32(s.JustificationBits))

	return ssz.MerkleizeVector(leaves, fieldCacheLimit), nil
}

func (s *BeaconState) forkRoot() ([32]byte, error) {
	leaves := [][32]byte{
		bytesutil.ToBytes32(s.ForkData.PreviousVersion[:]),
		bytesutil.ToBytes32(s.ForkData.CurrentVersion[:]),
		bytesutil.Uint64ToBytesLittleEndian32(uint64(s.ForkData.Epoch)),
	}
	return ssz.MerkleizeVector(leaves, 4), nil
}

func (s *BeaconState) eth1DataRoot() ([32]byte, error) {
	if s.Eth1Data == nil {
		return [32]byte{}, nil
	}
	countRoot := bytesutil.Uint64ToBytesLittleEndian32(s.Eth1Data.DepositCount)
	leaves := [][32]byte{s.Eth1Data.DepositRoot, countRoot, s.Eth1Data.BlockHash}
	return ssz.MerkleizeVector(leaves, 4), nil
}

func (s *BeaconState) validatorsRoot() ([32]byte, error) {
	leaves := make([][32]byte, len(s.Validators))
	for i, v := range s.Validators {
		r, err := validatorRoot(v)
		if err != nil {
			return [32]byte{}, err
		}
		leaves[i] = r
	}
	return ssz.MerkleizeVector(leaves, uint64(len(leaves))), nil
}

func validatorRoot(v *Validator) ([32]byte, error) {
	pubRoot := ssz.MerkleizeVector([][32]byte{
		bytesutil.ToBytes32(v.PublicKey[:32]), bytesutil.ToBytes32(v.PublicKey[32:]),
	}, 2)
	slashed := [32]byte{}
	if v.Slashed {
		slashed[0] = 1
	}
	leaves := [][32]byte{
		pubRoot,
		v.WithdrawalCredentials,
		bytesutil.Uint64ToBytesLittleEndian32(uint64(v.EffectiveBalance)),
		slashed,
		bytesutil.Uint64ToBytesLittleEndian32(uint64(v.ActivationEligibilityEpoch)),
		bytesutil.Uint64ToBytesLittleEndian32(uint64(v.ActivationEpoch)),
		bytesutil.Uint64ToBytesLittleEndian32(uint64(v.ExitEpoch)),
		bytesutil.Uint64ToBytesLittleEndian32(uint64(v.WithdrawableEpoch)),
	}
	return ssz.MerkleizeVector(leaves, 8), nil
}

func (s *BeaconState) balancesRoot() ([32]byte, error) {
	packed := make([][]byte, len(s.Balances))
	for i, b := range s.Balances {
		packed[i] = bytesutil.Bytes8(uint64(b))
	}
	chunks := ssz.Pack(packed)
	return ssz.MerkleizeVector(chunks, uint64(len(chunks))), nil
}

func (s *BeaconState) slashingsRoot() ([32]byte, error) {
	chunks := make([][32]byte, len(s.Slashings))
	for i, v := range s.Slashings {
		chunks[i] = bytesutil.Uint64ToBytesLittleEndian32(uint64(v))
	}
	return ssz.MerkleizeVector(chunks, uint64(len(chunks))), nil
}

func (s *BeaconState) inactivityScoresRoot() [32]byte {
	packed := make([][]byte, len(s.InactivityScores))
	for i, v := range s.InactivityScores {
		packed[i] = bytesutil.Bytes8(v)
	}
	chunks := ssz.Pack(packed)
	return ssz.MerkleizeVector(chunks, uint64(len(chunks)))
}

func (s *BeaconState) syncCommitteeRoot(c *SyncCommittee) [32]byte {
	if c == nil {
		return [32]byte{}
	}
	leaves := make([][32]byte, len(c.Pubkeys))
	for i, p := range c.Pubkeys {
		leaves[i] = ssz.MerkleizeVector([][32]byte{bytesutil.ToBytes32(p[:32]), bytesutil.ToBytes32(p[32:])}, 2)
	}
	pubkeysRoot := ssz.MerkleizeVector(leaves, uint64(len(leaves)))
	aggRoot := ssz.MerkleizeVector([][32]byte{
		bytesutil.ToBytes32(c.AggregatePubkey[:32]), bytesutil.ToBytes32(c.AggregatePubkey[32:]),
	}, 2)
	return ssz.MerkleizeVector([][32]byte{pubkeysRoot, aggRoot}, 2)
}

func (s *BeaconState) executionPayloadHeaderRoot() [32]byte {
	h := s.LatestExecutionPayloadHeader
	if h == nil {
		return [32]byte{}
	}
	leaves := [][32]byte{
		h.ParentHash,
		bytesutil.ToBytes32(h.FeeRecipient[:]),
		h.StateRoot,
		h.ReceiptsRoot,
		bytesutil.ToBytes32(h.LogsBloom[:32]),
		h.PrevRandao,
		bytesutil.Uint64ToBytesLittleEndian32(h.BlockNumber),
		bytesutil.Uint64ToBytesLittleEndian32(h.GasLimit),
		bytesutil.Uint64ToBytesLittleEndian32(h.GasUsed),
		bytesutil.Uint64ToBytesLittleEndian32(h.Timestamp),
		bytesutil.ToBytes32(h.ExtraData),
		h.BaseFeePerGas,
		h.BlockHash,
		h.TransactionsRoot,
	}
	return ssz.MerkleizeVector(leaves, 16)
}

func (s *BeaconState) checkpointRootOrZero(c *blocks.Checkpoint) [32]byte {
	root, err := c.HashTreeRoot()
	if err != nil {
		return [32]byte{}
	}
	return root
}
