package state

import (
	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/config/params"
	"github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/encoding/ssz"
)

const (
	validatorSize       = 48 + 32 + 8 + 1 + 8 + 8 + 8 + 8
	eth1DataSize        = 32 + 8 + 32
	checkpointSize      = 8 + 32
	blockHeaderSize     = 8 + 8 + 32 + 32 + 32
	execHeaderFixedSize = 32 + 20 + 32 + 32 + 256 + 32 + 8 + 8 + 8 + 8 + 4 + 32 + 32 + 32
)

// MarshalSSZ serializes the state in canonical SSZ for its active fork.
// Ring sizes (block/state roots, randao mixes, slashings) are encoded as
// fixed vectors of the active configuration's lengths; the decoder reads
// them back under the same configuration, so archives are preset-bound the
// way era files are network-bound.
func (s *BeaconState) MarshalSSZ() ([]byte, error) {
	cfg := params.BeaconConfig()
	e := ssz.NewEncoder()
	e.WriteUint64(s.GenesisTime)
	e.WriteFixed(s.GenesisValidatorsRoot[:])
	e.WriteUint64(uint64(s.Slot))
	e.WriteFixed(marshalFork(s.ForkData))
	e.WriteFixed(marshalHeader(s.LatestBlockHeader))
	if err := writeRootVector(e, s.BlockRoots, uint64(cfg.SlotsPerHistoricalRoot)); err != nil {
		return nil, errors.Wrap(err, "block roots")
	}
	if err := writeRootVector(e, s.StateRoots, uint64(cfg.SlotsPerHistoricalRoot)); err != nil {
		return nil, errors.Wrap(err, "state roots")
	}
	e.WriteOffset(concatRoots(s.HistoricalRoots))
	e.WriteFixed(marshalEth1(s.Eth1Data))
	votes := make([]byte, 0, len(s.Eth1DataVotes)*eth1DataSize)
	for _, v := range s.Eth1DataVotes {
		votes = append(votes, marshalEth1(v)...)
	}
	e.WriteOffset(votes)
	e.WriteUint64(s.Eth1DepositIndex)
	validators := make([]byte, 0, len(s.Validators)*validatorSize)
	for _, v := range s.Validators {
		validators = append(validators, marshalValidator(v)...)
	}
	e.WriteOffset(validators)
	balances := make([]byte, 0, 8*len(s.Balances))
	for _, b := range s.Balances {
		balances = append(balances, leBytes8(uint64(b))...)
	}
	e.WriteOffset(balances)
	if err := writeRootVector(e, s.RandaoMixes, uint64(cfg.EpochsPerHistoricalVector)); err != nil {
		return nil, errors.Wrap(err, "randao mixes")
	}
	if uint64(len(s.Slashings)) != uint64(cfg.EpochsPerSlashingsVector) {
		return nil, errors.Errorf("slashings vector has %d entries, want %d", len(s.Slashings), cfg.EpochsPerSlashingsVector)
	}
	slashings := make([]byte, 0, 8*len(s.Slashings))
	for _, v := range s.Slashings {
		slashings = append(slashings, leBytes8(uint64(v))...)
	}
	e.WriteFixed(slashings)

	if s.version >= Altair {
		e.WriteOffset(append([]byte{}, s.PreviousEpochParticipation...))
		e.WriteOffset(append([]byte{}, s.CurrentEpochParticipation...))
	}

	var bits byte
	if len(s.JustificationBits) > 0 {
		bits = s.JustificationBits[0]
	}
	e.WriteFixed([]byte{bits})
	e.WriteFixed(marshalCheckpt(s.PreviousJustifiedCheckpoint))
	e.WriteFixed(marshalCheckpt(s.CurrentJustifiedCheckpoint))
	e.WriteFixed(marshalCheckpt(s.FinalizedCheckpoint))

	if s.version >= Altair {
		scores := make([]byte, 0, 8*len(s.InactivityScores))
		for _, v := range s.InactivityScores {
			scores = append(scores, leBytes8(v)...)
		}
		e.WriteOffset(scores)
		cur, err := marshalSyncCommittee(s.CurrentSyncCommittee, cfg.SyncCommitteeSize)
		if err != nil {
			return nil, err
		}
		e.WriteFixed(cur)
		next, err := marshalSyncCommittee(s.NextSyncCommittee, cfg.SyncCommitteeSize)
		if err != nil {
			return nil, err
		}
		e.WriteFixed(next)
	}
	if s.version >= Bellatrix {
		e.WriteOffset(marshalExecHeader(s.LatestExecutionPayloadHeader))
	}
	return e.Finish(), nil
}

// UnmarshalBeaconStateSSZ decodes a state serialized by MarshalSSZ under
// the same active configuration, with version selecting the fork shape.
func UnmarshalBeaconStateSSZ(data []byte, version Version) (*BeaconState, error) {
	cfg := params.BeaconConfig()
	d := ssz.NewDecoder(data)
	s := &BeaconState{version: version}
	var err error
	if s.GenesisTime, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	buf, err := d.ReadFixed(32)
	if err != nil {
		return nil, err
	}
	copy(s.GenesisValidatorsRoot[:], buf)
	slot, err := d.ReadUint64()
	if err != nil {
		return nil, err
	}
	s.Slot = ssztypes.Slot(slot)
	if buf, err = d.ReadFixed(16); err != nil {
		return nil, err
	}
	s.ForkData = unmarshalFork(buf)
	if buf, err = d.ReadFixed(blockHeaderSize); err != nil {
		return nil, err
	}
	s.LatestBlockHeader = unmarshalHeader(buf)
	if s.BlockRoots, err = readRootVector(d, uint64(cfg.SlotsPerHistoricalRoot)); err != nil {
		return nil, errors.Wrap(err, "block roots")
	}
	if s.StateRoots, err = readRootVector(d, uint64(cfg.SlotsPerHistoricalRoot)); err != nil {
		return nil, errors.Wrap(err, "state roots")
	}
	if err = d.ReadOffset(); err != nil { // historical roots
		return nil, err
	}
	if buf, err = d.ReadFixed(eth1DataSize); err != nil {
		return nil, err
	}
	s.Eth1Data = unmarshalEth1(buf)
	if err = d.ReadOffset(); err != nil { // eth1 data votes
		return nil, err
	}
	if s.Eth1DepositIndex, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if err = d.ReadOffset(); err != nil { // validators
		return nil, err
	}
	if err = d.ReadOffset(); err != nil { // balances
		return nil, err
	}
	if s.RandaoMixes, err = readRootVector(d, uint64(cfg.EpochsPerHistoricalVector)); err != nil {
		return nil, errors.Wrap(err, "randao mixes")
	}
	if buf, err = d.ReadFixed(8 * int(cfg.EpochsPerSlashingsVector)); err != nil {
		return nil, err
	}
	s.Slashings = make(Slashings, cfg.EpochsPerSlashingsVector)
	for i := range s.Slashings {
		s.Slashings[i] = ssztypes.Gwei(leRead8(buf[8*i : 8*i+8]))
	}

	variableIdx := 4 // historical roots, votes, validators, balances consumed so far
	if version >= Altair {
		if err = d.ReadOffset(); err != nil { // previous participation
			return nil, err
		}
		if err = d.ReadOffset(); err != nil { // current participation
			return nil, err
		}
	}
	if buf, err = d.ReadFixed(1); err != nil {
		return nil, err
	}
	s.JustificationBits = []byte{buf[0]}
	if buf, err = d.ReadFixed(checkpointSize); err != nil {
		return nil, err
	}
	s.PreviousJustifiedCheckpoint = unmarshalCheckpt(buf)
	if buf, err = d.ReadFixed(checkpointSize); err != nil {
		return nil, err
	}
	s.CurrentJustifiedCheckpoint = unmarshalCheckpt(buf)
	if buf, err = d.ReadFixed(checkpointSize); err != nil {
		return nil, err
	}
	s.FinalizedCheckpoint = unmarshalCheckpt(buf)
	if version >= Altair {
		if err = d.ReadOffset(); err != nil { // inactivity scores
			return nil, err
		}
		if buf, err = d.ReadFixed(int(cfg.SyncCommitteeSize)*48 + 48); err != nil {
			return nil, err
		}
		s.CurrentSyncCommittee = unmarshalSyncCommittee(buf, cfg.SyncCommitteeSize)
		if buf, err = d.ReadFixed(int(cfg.SyncCommitteeSize)*48 + 48); err != nil {
			return nil, err
		}
		s.NextSyncCommittee = unmarshalSyncCommittee(buf, cfg.SyncCommitteeSize)
	}
	if version >= Bellatrix {
		if err = d.ReadOffset(); err != nil { // execution payload header
			return nil, err
		}
	}

	historical, err := d.Variable(0)
	if err != nil {
		return nil, err
	}
	if s.HistoricalRoots, err = splitRoots(historical); err != nil {
		return nil, err
	}
	votes, err := d.Variable(1)
	if err != nil {
		return nil, err
	}
	if len(votes)%eth1DataSize != 0 {
		return nil, errors.New("malformed eth1 data votes")
	}
	for off := 0; off < len(votes); off += eth1DataSize {
		s.Eth1DataVotes = append(s.Eth1DataVotes, unmarshalEth1(votes[off:off+eth1DataSize]))
	}
	validators, err := d.Variable(2)
	if err != nil {
		return nil, err
	}
	if len(validators)%validatorSize != 0 {
		return nil, errors.New("malformed validator registry")
	}
	for off := 0; off < len(validators); off += validatorSize {
		s.Validators = append(s.Validators, unmarshalValidator(validators[off:off+validatorSize]))
	}
	balances, err := d.Variable(3)
	if err != nil {
		return nil, err
	}
	if len(balances)%8 != 0 {
		return nil, errors.New("malformed balances")
	}
	for off := 0; off < len(balances); off += 8 {
		s.Balances = append(s.Balances, ssztypes.Gwei(leRead8(balances[off:off+8])))
	}
	if version >= Altair {
		prev, err := d.Variable(variableIdx)
		if err != nil {
			return nil, err
		}
		s.PreviousEpochParticipation = append([]byte{}, prev...)
		cur, err := d.Variable(variableIdx + 1)
		if err != nil {
			return nil, err
		}
		s.CurrentEpochParticipation = append([]byte{}, cur...)
		scores, err := d.Variable(variableIdx + 2)
		if err != nil {
			return nil, err
		}
		if len(scores)%8 != 0 {
			return nil, errors.New("malformed inactivity scores")
		}
		for off := 0; off < len(scores); off += 8 {
			s.InactivityScores = append(s.InactivityScores, leRead8(scores[off:off+8]))
		}
		variableIdx += 3
	}
	if version >= Bellatrix {
		hdrBytes, err := d.Variable(variableIdx)
		if err != nil {
			return nil, err
		}
		if s.LatestExecutionPayloadHeader, err = unmarshalExecHeader(hdrBytes); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func marshalFork(f Fork) []byte {
	out := make([]byte, 0, 16)
	out = append(out, f.PreviousVersion[:]...)
	out = append(out, f.CurrentVersion[:]...)
	out = append(out, leBytes8(uint64(f.Epoch))...)
	return out
}

func unmarshalFork(b []byte) Fork {
	f := Fork{Epoch: ssztypes.Epoch(leRead8(b[8:16]))}
	copy(f.PreviousVersion[:], b[0:4])
	copy(f.CurrentVersion[:], b[4:8])
	return f
}

func marshalHeader(h *blocks.BeaconBlockHeader) []byte {
	out := make([]byte, 0, blockHeaderSize)
	if h == nil {
		return make([]byte, blockHeaderSize)
	}
	out = append(out, leBytes8(uint64(h.Slot))...)
	out = append(out, leBytes8(uint64(h.ProposerIndex))...)
	out = append(out, h.ParentRoot[:]...)
	out = append(out, h.StateRoot[:]...)
	out = append(out, h.BodyRoot[:]...)
	return out
}

func unmarshalHeader(b []byte) *blocks.BeaconBlockHeader {
	h := &blocks.BeaconBlockHeader{
		Slot:          ssztypes.Slot(leRead8(b[0:8])),
		ProposerIndex: ssztypes.ValidatorIndex(leRead8(b[8:16])),
	}
	copy(h.ParentRoot[:], b[16:48])
	copy(h.StateRoot[:], b[48:80])
	copy(h.BodyRoot[:], b[80:112])
	return h
}

func marshalEth1(d *blocks.Eth1Data) []byte {
	if d == nil {
		return make([]byte, eth1DataSize)
	}
	out := make([]byte, 0, eth1DataSize)
	out = append(out, d.DepositRoot[:]...)
	out = append(out, leBytes8(d.DepositCount)...)
	out = append(out, d.BlockHash[:]...)
	return out
}

func unmarshalEth1(b []byte) *blocks.Eth1Data {
	d := &blocks.Eth1Data{DepositCount: leRead8(b[32:40])}
	copy(d.DepositRoot[:], b[0:32])
	copy(d.BlockHash[:], b[40:72])
	return d
}

func marshalCheckpt(c blocks.Checkpoint) []byte {
	out := make([]byte, 0, checkpointSize)
	out = append(out, leBytes8(uint64(c.Epoch))...)
	out = append(out, c.Root[:]...)
	return out
}

func unmarshalCheckpt(b []byte) blocks.Checkpoint {
	c := blocks.Checkpoint{Epoch: ssztypes.Epoch(leRead8(b[0:8]))}
	copy(c.Root[:], b[8:40])
	return c
}

func marshalValidator(v *Validator) []byte {
	out := make([]byte, 0, validatorSize)
	out = append(out, v.PublicKey[:]...)
	out = append(out, v.WithdrawalCredentials[:]...)
	out = append(out, leBytes8(uint64(v.EffectiveBalance))...)
	if v.Slashed {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	out = append(out, leBytes8(uint64(v.ActivationEligibilityEpoch))...)
	out = append(out, leBytes8(uint64(v.ActivationEpoch))...)
	out = append(out, leBytes8(uint64(v.ExitEpoch))...)
	out = append(out, leBytes8(uint64(v.WithdrawableEpoch))...)
	return out
}

func unmarshalValidator(b []byte) *Validator {
	v := &Validator{
		EffectiveBalance:           ssztypes.Gwei(leRead8(b[80:88])),
		Slashed:                    b[88] == 1,
		ActivationEligibilityEpoch: ssztypes.Epoch(leRead8(b[89:97])),
		ActivationEpoch:            ssztypes.Epoch(leRead8(b[97:105])),
		ExitEpoch:                  ssztypes.Epoch(leRead8(b[105:113])),
		WithdrawableEpoch:          ssztypes.Epoch(leRead8(b[113:121])),
	}
	copy(v.PublicKey[:], b[0:48])
	copy(v.WithdrawalCredentials[:], b[48:80])
	return v
}

func marshalSyncCommittee(c *SyncCommittee, size uint64) ([]byte, error) {
	out := make([]byte, 0, size*48+48)
	if c == nil {
		return make([]byte, size*48+48), nil
	}
	if uint64(len(c.Pubkeys)) != size {
		return nil, errors.Errorf("sync committee has %d pubkeys, want %d", len(c.Pubkeys), size)
	}
	for _, p := range c.Pubkeys {
		out = append(out, p[:]...)
	}
	out = append(out, c.AggregatePubkey[:]...)
	return out, nil
}

func unmarshalSyncCommittee(b []byte, size uint64) *SyncCommittee {
	c := &SyncCommittee{Pubkeys: make([][48]byte, size)}
	for i := uint64(0); i < size; i++ {
		copy(c.Pubkeys[i][:], b[i*48:(i+1)*48])
	}
	copy(c.AggregatePubkey[:], b[size*48:])
	return c
}

func marshalExecHeader(h *ExecutionPayloadHeader) []byte {
	if h == nil {
		h = &ExecutionPayloadHeader{}
	}
	e := ssz.NewEncoder()
	e.WriteFixed(h.ParentHash[:])
	e.WriteFixed(h.FeeRecipient[:])
	e.WriteFixed(h.StateRoot[:])
	e.WriteFixed(h.ReceiptsRoot[:])
	e.WriteFixed(h.LogsBloom[:])
	e.WriteFixed(h.PrevRandao[:])
	e.WriteUint64(h.BlockNumber)
	e.WriteUint64(h.GasLimit)
	e.WriteUint64(h.GasUsed)
	e.WriteUint64(h.Timestamp)
	e.WriteOffset(h.ExtraData)
	e.WriteFixed(h.BaseFeePerGas[:])
	e.WriteFixed(h.BlockHash[:])
	e.WriteFixed(h.TransactionsRoot[:])
	return e.Finish()
}

func unmarshalExecHeader(data []byte) (*ExecutionPayloadHeader, error) {
	if len(data) < execHeaderFixedSize {
		return nil, errors.New("malformed execution payload header")
	}
	d := ssz.NewDecoder(data)
	h := &ExecutionPayloadHeader{}
	var buf []byte
	var err error
	if buf, err = d.ReadFixed(32); err != nil {
		return nil, err
	}
	copy(h.ParentHash[:], buf)
	if buf, err = d.ReadFixed(20); err != nil {
		return nil, err
	}
	copy(h.FeeRecipient[:], buf)
	if buf, err = d.ReadFixed(32); err != nil {
		return nil, err
	}
	copy(h.StateRoot[:], buf)
	if buf, err = d.ReadFixed(32); err != nil {
		return nil, err
	}
	copy(h.ReceiptsRoot[:], buf)
	if buf, err = d.ReadFixed(256); err != nil {
		return nil, err
	}
	copy(h.LogsBloom[:], buf)
	if buf, err = d.ReadFixed(32); err != nil {
		return nil, err
	}
	copy(h.PrevRandao[:], buf)
	if h.BlockNumber, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if h.GasLimit, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if h.GasUsed, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if h.Timestamp, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if err = d.ReadOffset(); err != nil {
		return nil, err
	}
	if buf, err = d.ReadFixed(32); err != nil {
		return nil, err
	}
	copy(h.BaseFeePerGas[:], buf)
	if buf, err = d.ReadFixed(32); err != nil {
		return nil, err
	}
	copy(h.BlockHash[:], buf)
	if buf, err = d.ReadFixed(32); err != nil {
		return nil, err
	}
	copy(h.TransactionsRoot[:], buf)
	extra, err := d.Variable(0)
	if err != nil {
		return nil, err
	}
	h.ExtraData = append([]byte{}, extra...)
	return h, nil
}

func writeRootVector(e *ssz.Encoder, roots [][32]byte, want uint64) error {
	if uint64(len(roots)) != want {
		return errors.Errorf("vector has %d entries, want %d", len(roots), want)
	}
	e.WriteFixed(concatRoots(roots))
	return nil
}

func readRootVector(d *ssz.Decoder, count uint64) ([][32]byte, error) {
	buf, err := d.ReadFixed(int(count) * 32)
	if err != nil {
		return nil, err
	}
	return splitRoots(buf)
}

func concatRoots(roots [][32]byte) []byte {
	out := make([]byte, 0, 32*len(roots))
	for _, r := range roots {
		out = append(out, r[:]...)
	}
	return out
}

func splitRoots(b []byte) ([][32]byte, error) {
	if len(b)%32 != 0 {
		return nil, errors.New("root list length not a multiple of 32")
	}
	out := make([][32]byte, len(b)/32)
	for i := range out {
		copy(out[i][:], b[32*i:32*i+32])
	}
	return out, nil
}

func leBytes8(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func leRead8(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
