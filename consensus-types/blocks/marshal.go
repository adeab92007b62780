package blocks

import (
	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/config/params"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/encoding/ssz"
)

// Serialized sizes of the fixed-shape containers, in bytes.
const (
	eth1DataSize          = 32 + 8 + 32
	checkpointSize        = 8 + 32
	attestationDataSize   = 8 + 8 + 32 + 2*checkpointSize
	blockHeaderSize       = 8 + 8 + 32 + 32 + 32
	signedHeaderSize      = blockHeaderSize + 96
	proposerSlashingSize  = 2 * signedHeaderSize
	depositProofLen       = 33
	depositDataSize       = 48 + 32 + 8 + 96
	depositSize           = depositProofLen*32 + depositDataSize
	voluntaryExitSize     = 8 + 8
	signedExitSize        = voluntaryExitSize + 96
)

// syncAggregateBitsLen is the participation bitvector's byte width under
// the active configuration (64 for the mainnet 512-member committee).
func syncAggregateBitsLen() int {
	return int((params.BeaconConfig().SyncCommitteeSize + 7) / 8)
}

func syncAggregateSize() int {
	return syncAggregateBitsLen() + 96
}

// MarshalSSZ serializes the signed block in canonical SSZ: a 4-byte offset
// to the variable-size message followed by the fixed 96-byte signature.
func (b *SignedBeaconBlock) MarshalSSZ() ([]byte, error) {
	msg, err := b.Block.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	e := ssz.NewEncoder()
	e.WriteOffset(msg)
	e.WriteFixed(b.Signature[:])
	return e.Finish(), nil
}

// MarshalSSZ serializes the unsigned block.
func (b *BeaconBlock) MarshalSSZ() ([]byte, error) {
	body, err := b.Body.MarshalSSZ(b.Version)
	if err != nil {
		return nil, err
	}
	e := ssz.NewEncoder()
	e.WriteUint64(uint64(b.Slot))
	e.WriteUint64(uint64(b.ProposerIndex))
	e.WriteFixed(b.ParentRoot[:])
	e.WriteFixed(b.StateRoot[:])
	e.WriteOffset(body)
	return e.Finish(), nil
}

// MarshalSSZ serializes the body for version, appending the Altair sync
// aggregate and Bellatrix execution payload only when the fork carries them.
func (body *BeaconBlockBody) MarshalSSZ(version Version) ([]byte, error) {
	e := ssz.NewEncoder()
	e.WriteFixed(body.RandaoReveal[:])
	e.WriteFixed(marshalEth1Data(body.Eth1Data))
	e.WriteFixed(body.Graffiti[:])

	proposerSlashings := make([]byte, 0, len(body.ProposerSlashings)*proposerSlashingSize)
	for _, s := range body.ProposerSlashings {
		proposerSlashings = append(proposerSlashings, marshalSignedHeader(s.Header1)...)
		proposerSlashings = append(proposerSlashings, marshalSignedHeader(s.Header2)...)
	}
	e.WriteOffset(proposerSlashings)

	attesterSlashings, err := marshalVariableList(len(body.AttesterSlashings), func(i int) ([]byte, error) {
		return marshalAttesterSlashing(body.AttesterSlashings[i])
	})
	if err != nil {
		return nil, err
	}
	e.WriteOffset(attesterSlashings)

	attestations, err := marshalVariableList(len(body.Attestations), func(i int) ([]byte, error) {
		return marshalAttestation(body.Attestations[i])
	})
	if err != nil {
		return nil, err
	}
	e.WriteOffset(attestations)

	deposits := make([]byte, 0, len(body.Deposits)*depositSize)
	for _, d := range body.Deposits {
		enc, err := marshalDeposit(d)
		if err != nil {
			return nil, err
		}
		deposits = append(deposits, enc...)
	}
	e.WriteOffset(deposits)

	exits := make([]byte, 0, len(body.VoluntaryExits)*signedExitSize)
	for _, x := range body.VoluntaryExits {
		exits = append(exits, marshalSignedExit(x)...)
	}
	e.WriteOffset(exits)

	if version >= Altair {
		e.WriteFixed(marshalSyncAggregate(body.SyncAggregate))
	}
	if version >= Bellatrix {
		payload, err := marshalExecutionPayload(body.ExecutionPayload)
		if err != nil {
			return nil, err
		}
		e.WriteOffset(payload)
	}
	return e.Finish(), nil
}

func marshalEth1Data(d *Eth1Data) []byte {
	out := make([]byte, 0, eth1DataSize)
	if d == nil {
		return make([]byte, eth1DataSize)
	}
	out = append(out, d.DepositRoot[:]...)
	out = append(out, uint64LE(d.DepositCount)...)
	out = append(out, d.BlockHash[:]...)
	return out
}

func marshalCheckpoint(c Checkpoint) []byte {
	out := make([]byte, 0, checkpointSize)
	out = append(out, uint64LE(uint64(c.Epoch))...)
	out = append(out, c.Root[:]...)
	return out
}

func marshalAttestationData(d *AttestationData) []byte {
	out := make([]byte, 0, attestationDataSize)
	out = append(out, uint64LE(uint64(d.Slot))...)
	out = append(out, uint64LE(uint64(d.CommitteeIndex))...)
	out = append(out, d.BeaconBlockRoot[:]...)
	out = append(out, marshalCheckpoint(d.Source)...)
	out = append(out, marshalCheckpoint(d.Target)...)
	return out
}

func marshalBlockHeader(h *BeaconBlockHeader) []byte {
	out := make([]byte, 0, blockHeaderSize)
	out = append(out, uint64LE(uint64(h.Slot))...)
	out = append(out, uint64LE(uint64(h.ProposerIndex))...)
	out = append(out, h.ParentRoot[:]...)
	out = append(out, h.StateRoot[:]...)
	out = append(out, h.BodyRoot[:]...)
	return out
}

func marshalSignedHeader(h *SignedBeaconBlockHeader) []byte {
	out := marshalBlockHeader(h.Header)
	return append(out, h.Signature[:]...)
}

func marshalAttestation(a *Attestation) ([]byte, error) {
	e := ssz.NewEncoder()
	e.WriteOffset(a.AggregationBits)
	e.WriteFixed(marshalAttestationData(a.Data))
	e.WriteFixed(a.Signature[:])
	return e.Finish(), nil
}

func marshalIndexedAttestation(a *IndexedAttestation) ([]byte, error) {
	indices := make([]byte, 0, 8*len(a.AttestingIndices))
	for _, i := range a.AttestingIndices {
		indices = append(indices, uint64LE(uint64(i))...)
	}
	e := ssz.NewEncoder()
	e.WriteOffset(indices)
	e.WriteFixed(marshalAttestationData(a.Data))
	e.WriteFixed(a.Signature[:])
	return e.Finish(), nil
}

func marshalAttesterSlashing(s *AttesterSlashing) ([]byte, error) {
	att1, err := marshalIndexedAttestation(s.Attestation1)
	if err != nil {
		return nil, err
	}
	att2, err := marshalIndexedAttestation(s.Attestation2)
	if err != nil {
		return nil, err
	}
	e := ssz.NewEncoder()
	e.WriteOffset(att1)
	e.WriteOffset(att2)
	return e.Finish(), nil
}

func marshalDeposit(d *Deposit) ([]byte, error) {
	if len(d.Proof) != depositProofLen {
		return nil, errors.Errorf("deposit proof must have %d steps, got %d", depositProofLen, len(d.Proof))
	}
	out := make([]byte, 0, depositSize)
	for _, p := range d.Proof {
		out = append(out, p[:]...)
	}
	out = append(out, d.Data.PublicKey[:]...)
	out = append(out, d.Data.WithdrawalCredentials[:]...)
	out = append(out, uint64LE(d.Data.Amount)...)
	out = append(out, d.Data.Signature[:]...)
	return out, nil
}

func marshalSignedExit(x *SignedVoluntaryExit) []byte {
	out := make([]byte, 0, signedExitSize)
	out = append(out, uint64LE(uint64(x.Exit.Epoch))...)
	out = append(out, uint64LE(uint64(x.Exit.ValidatorIndex))...)
	out = append(out, x.Signature[:]...)
	return out
}

func marshalSyncAggregate(a *SyncAggregate) []byte {
	out := make([]byte, syncAggregateSize())
	if a == nil {
		return out
	}
	copy(out[:syncAggregateBitsLen()], a.SyncCommitteeBits)
	copy(out[syncAggregateBitsLen():], a.SyncCommitteeSignature[:])
	return out
}

func marshalExecutionPayload(p *ExecutionPayload) ([]byte, error) {
	if p == nil {
		p = &ExecutionPayload{}
	}
	e := ssz.NewEncoder()
	e.WriteFixed(p.ParentHash[:])
	e.WriteFixed(p.FeeRecipient[:])
	e.WriteFixed(p.StateRoot[:])
	e.WriteFixed(p.ReceiptsRoot[:])
	e.WriteFixed(p.LogsBloom[:])
	e.WriteFixed(p.PrevRandao[:])
	e.WriteUint64(p.BlockNumber)
	e.WriteUint64(p.GasLimit)
	e.WriteUint64(p.GasUsed)
	e.WriteUint64(p.Timestamp)
	e.WriteOffset(p.ExtraData)
	e.WriteFixed(p.BaseFeePerGas[:])
	e.WriteFixed(p.BlockHash[:])
	txs, err := marshalVariableList(len(p.Transactions), func(i int) ([]byte, error) {
		return p.Transactions[i], nil
	})
	if err != nil {
		return nil, err
	}
	e.WriteOffset(txs)
	return e.Finish(), nil
}

// marshalVariableList serializes a list of variable-size elements: n 4-byte
// offsets followed by the concatenated element bytes.
func marshalVariableList(n int, elem func(i int) ([]byte, error)) ([]byte, error) {
	e := ssz.NewEncoder()
	for i := 0; i < n; i++ {
		b, err := elem(i)
		if err != nil {
			return nil, err
		}
		e.WriteOffset(b)
	}
	return e.Finish(), nil
}

func uint64LE(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

// UnmarshalSignedBeaconBlockSSZ decodes a signed block serialized by
// MarshalSSZ. version selects the body shape, matching how era readers know
// the fork from the slot range they cover.
func UnmarshalSignedBeaconBlockSSZ(data []byte, version Version) (*SignedBeaconBlock, error) {
	d := ssz.NewDecoder(data)
	if err := d.ReadOffset(); err != nil {
		return nil, err
	}
	sigBytes, err := d.ReadFixed(96)
	if err != nil {
		return nil, err
	}
	msg, err := d.Variable(0)
	if err != nil {
		return nil, err
	}
	blk, err := unmarshalBeaconBlock(msg, version)
	if err != nil {
		return nil, err
	}
	out := &SignedBeaconBlock{Block: blk}
	copy(out.Signature[:], sigBytes)
	return out, nil
}

func unmarshalBeaconBlock(data []byte, version Version) (*BeaconBlock, error) {
	d := ssz.NewDecoder(data)
	slot, err := d.ReadUint64()
	if err != nil {
		return nil, err
	}
	proposer, err := d.ReadUint64()
	if err != nil {
		return nil, err
	}
	parentRoot, err := d.ReadFixed(32)
	if err != nil {
		return nil, err
	}
	stateRoot, err := d.ReadFixed(32)
	if err != nil {
		return nil, err
	}
	if err := d.ReadOffset(); err != nil {
		return nil, err
	}
	bodyBytes, err := d.Variable(0)
	if err != nil {
		return nil, err
	}
	body, err := unmarshalBody(bodyBytes, version)
	if err != nil {
		return nil, err
	}
	blk := &BeaconBlock{
		Version:       version,
		Slot:          ssztypes.Slot(slot),
		ProposerIndex: ssztypes.ValidatorIndex(proposer),
		Body:          body,
	}
	copy(blk.ParentRoot[:], parentRoot)
	copy(blk.StateRoot[:], stateRoot)
	return blk, nil
}

func unmarshalBody(data []byte, version Version) (*BeaconBlockBody, error) {
	d := ssz.NewDecoder(data)
	body := &BeaconBlockBody{}
	reveal, err := d.ReadFixed(96)
	if err != nil {
		return nil, err
	}
	copy(body.RandaoReveal[:], reveal)
	eth1Bytes, err := d.ReadFixed(eth1DataSize)
	if err != nil {
		return nil, err
	}
	body.Eth1Data = unmarshalEth1Data(eth1Bytes)
	graffiti, err := d.ReadFixed(32)
	if err != nil {
		return nil, err
	}
	copy(body.Graffiti[:], graffiti)

	for i := 0; i < 5; i++ {
		if err := d.ReadOffset(); err != nil {
			return nil, err
		}
	}
	if version >= Altair {
		aggBytes, err := d.ReadFixed(syncAggregateSize())
		if err != nil {
			return nil, err
		}
		body.SyncAggregate = unmarshalSyncAggregate(aggBytes)
	}
	if version >= Bellatrix {
		if err := d.ReadOffset(); err != nil {
			return nil, err
		}
	}

	psBytes, err := d.Variable(0)
	if err != nil {
		return nil, err
	}
	if len(psBytes)%proposerSlashingSize != 0 {
		return nil, errors.New("malformed proposer slashings")
	}
	for off := 0; off < len(psBytes); off += proposerSlashingSize {
		body.ProposerSlashings = append(body.ProposerSlashings, unmarshalProposerSlashing(psBytes[off:off+proposerSlashingSize]))
	}

	asBytes, err := d.Variable(1)
	if err != nil {
		return nil, err
	}
	asChunks, err := splitVariableList(asBytes)
	if err != nil {
		return nil, err
	}
	for _, chunk := range asChunks {
		s, err := unmarshalAttesterSlashing(chunk)
		if err != nil {
			return nil, err
		}
		body.AttesterSlashings = append(body.AttesterSlashings, s)
	}

	attBytes, err := d.Variable(2)
	if err != nil {
		return nil, err
	}
	attChunks, err := splitVariableList(attBytes)
	if err != nil {
		return nil, err
	}
	for _, chunk := range attChunks {
		a, err := unmarshalAttestation(chunk)
		if err != nil {
			return nil, err
		}
		body.Attestations = append(body.Attestations, a)
	}

	depBytes, err := d.Variable(3)
	if err != nil {
		return nil, err
	}
	if len(depBytes)%depositSize != 0 {
		return nil, errors.New("malformed deposits")
	}
	for off := 0; off < len(depBytes); off += depositSize {
		body.Deposits = append(body.Deposits, unmarshalDeposit(depBytes[off:off+depositSize]))
	}

	exitBytes, err := d.Variable(4)
	if err != nil {
		return nil, err
	}
	if len(exitBytes)%signedExitSize != 0 {
		return nil, errors.New("malformed voluntary exits")
	}
	for off := 0; off < len(exitBytes); off += signedExitSize {
		body.VoluntaryExits = append(body.VoluntaryExits, unmarshalSignedExit(exitBytes[off:off+signedExitSize]))
	}

	if version >= Bellatrix {
		payloadBytes, err := d.Variable(5)
		if err != nil {
			return nil, err
		}
		body.ExecutionPayload, err = unmarshalExecutionPayload(payloadBytes)
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}

func unmarshalEth1Data(b []byte) *Eth1Data {
	d := &Eth1Data{}
	copy(d.DepositRoot[:], b[0:32])
	d.DepositCount = leUint64(b[32:40])
	copy(d.BlockHash[:], b[40:72])
	return d
}

func unmarshalCheckpoint(b []byte) Checkpoint {
	c := Checkpoint{Epoch: ssztypes.Epoch(leUint64(b[0:8]))}
	copy(c.Root[:], b[8:40])
	return c
}

func unmarshalAttestationData(b []byte) *AttestationData {
	d := &AttestationData{
		Slot:           ssztypes.Slot(leUint64(b[0:8])),
		CommitteeIndex: ssztypes.CommitteeIndex(leUint64(b[8:16])),
	}
	copy(d.BeaconBlockRoot[:], b[16:48])
	d.Source = unmarshalCheckpoint(b[48:88])
	d.Target = unmarshalCheckpoint(b[88:128])
	return d
}

func unmarshalBlockHeader(b []byte) *BeaconBlockHeader {
	h := &BeaconBlockHeader{
		Slot:          ssztypes.Slot(leUint64(b[0:8])),
		ProposerIndex: ssztypes.ValidatorIndex(leUint64(b[8:16])),
	}
	copy(h.ParentRoot[:], b[16:48])
	copy(h.StateRoot[:], b[48:80])
	copy(h.BodyRoot[:], b[80:112])
	return h
}

func unmarshalSignedHeader(b []byte) *SignedBeaconBlockHeader {
	h := &SignedBeaconBlockHeader{Header: unmarshalBlockHeader(b[:blockHeaderSize])}
	copy(h.Signature[:], b[blockHeaderSize:])
	return h
}

func unmarshalProposerSlashing(b []byte) *ProposerSlashing {
	return &ProposerSlashing{
		Header1: unmarshalSignedHeader(b[:signedHeaderSize]),
		Header2: unmarshalSignedHeader(b[signedHeaderSize:]),
	}
}

func unmarshalAttestation(data []byte) (*Attestation, error) {
	d := ssz.NewDecoder(data)
	if err := d.ReadOffset(); err != nil {
		return nil, err
	}
	fixed, err := d.ReadFixed(attestationDataSize + 96)
	if err != nil {
		return nil, err
	}
	bits, err := d.Variable(0)
	if err != nil {
		return nil, err
	}
	a := &Attestation{
		AggregationBits: append([]byte{}, bits...),
		Data:            unmarshalAttestationData(fixed[:attestationDataSize]),
	}
	copy(a.Signature[:], fixed[attestationDataSize:])
	return a, nil
}

func unmarshalIndexedAttestation(data []byte) (*IndexedAttestation, error) {
	d := ssz.NewDecoder(data)
	if err := d.ReadOffset(); err != nil {
		return nil, err
	}
	fixed, err := d.ReadFixed(attestationDataSize + 96)
	if err != nil {
		return nil, err
	}
	idxBytes, err := d.Variable(0)
	if err != nil {
		return nil, err
	}
	if len(idxBytes)%8 != 0 {
		return nil, errors.New("malformed attesting indices")
	}
	a := &IndexedAttestation{Data: unmarshalAttestationData(fixed[:attestationDataSize])}
	for off := 0; off < len(idxBytes); off += 8 {
		a.AttestingIndices = append(a.AttestingIndices, ssztypes.ValidatorIndex(leUint64(idxBytes[off:off+8])))
	}
	copy(a.Signature[:], fixed[attestationDataSize:])
	return a, nil
}

func unmarshalAttesterSlashing(data []byte) (*AttesterSlashing, error) {
	d := ssz.NewDecoder(data)
	if err := d.ReadOffset(); err != nil {
		return nil, err
	}
	if err := d.ReadOffset(); err != nil {
		return nil, err
	}
	att1Bytes, err := d.Variable(0)
	if err != nil {
		return nil, err
	}
	att2Bytes, err := d.Variable(1)
	if err != nil {
		return nil, err
	}
	att1, err := unmarshalIndexedAttestation(att1Bytes)
	if err != nil {
		return nil, err
	}
	att2, err := unmarshalIndexedAttestation(att2Bytes)
	if err != nil {
		return nil, err
	}
	return &AttesterSlashing{Attestation1: att1, Attestation2: att2}, nil
}

func unmarshalDeposit(b []byte) *Deposit {
	d := &Deposit{Data: &DepositData{}}
	for i := 0; i < depositProofLen; i++ {
		var step [32]byte
		copy(step[:], b[i*32:(i+1)*32])
		d.Proof = append(d.Proof, step)
	}
	rest := b[depositProofLen*32:]
	copy(d.Data.PublicKey[:], rest[0:48])
	copy(d.Data.WithdrawalCredentials[:], rest[48:80])
	d.Data.Amount = leUint64(rest[80:88])
	copy(d.Data.Signature[:], rest[88:184])
	return d
}

func unmarshalSignedExit(b []byte) *SignedVoluntaryExit {
	x := &SignedVoluntaryExit{
		Exit: &VoluntaryExit{
			Epoch:          ssztypes.Epoch(leUint64(b[0:8])),
			ValidatorIndex: ssztypes.ValidatorIndex(leUint64(b[8:16])),
		},
	}
	copy(x.Signature[:], b[16:])
	return x
}

func unmarshalSyncAggregate(b []byte) *SyncAggregate {
	a := &SyncAggregate{SyncCommitteeBits: append([]byte{}, b[:syncAggregateBitsLen()]...)}
	copy(a.SyncCommitteeSignature[:], b[syncAggregateBitsLen():])
	return a
}

func unmarshalExecutionPayload(data []byte) (*ExecutionPayload, error) {
	d := ssz.NewDecoder(data)
	p := &ExecutionPayload{}
	var err error
	var buf []byte
	if buf, err = d.ReadFixed(32); err != nil {
		return nil, err
	}
	copy(p.ParentHash[:], buf)
	if buf, err = d.ReadFixed(20); err != nil {
		return nil, err
	}
	copy(p.FeeRecipient[:], buf)
	if buf, err = d.ReadFixed(32); err != nil {
		return nil, err
	}
	copy(p.StateRoot[:], buf)
	if buf, err = d.ReadFixed(32); err != nil {
		return nil, err
	}
	copy(p.ReceiptsRoot[:], buf)
	if buf, err = d.ReadFixed(256); err != nil {
		return nil, err
	}
	copy(p.LogsBloom[:], buf)
	if buf, err = d.ReadFixed(32); err != nil {
		return nil, err
	}
	copy(p.PrevRandao[:], buf)
	if p.BlockNumber, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if p.GasLimit, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if p.GasUsed, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if p.Timestamp, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	if err = d.ReadOffset(); err != nil {
		return nil, err
	}
	if buf, err = d.ReadFixed(32); err != nil {
		return nil, err
	}
	copy(p.BaseFeePerGas[:], buf)
	if buf, err = d.ReadFixed(32); err != nil {
		return nil, err
	}
	copy(p.BlockHash[:], buf)
	if err = d.ReadOffset(); err != nil {
		return nil, err
	}
	extra, err := d.Variable(0)
	if err != nil {
		return nil, err
	}
	p.ExtraData = append([]byte{}, extra...)
	txBytes, err := d.Variable(1)
	if err != nil {
		return nil, err
	}
	txChunks, err := splitVariableList(txBytes)
	if err != nil {
		return nil, err
	}
	for _, tx := range txChunks {
		p.Transactions = append(p.Transactions, append([]byte{}, tx...))
	}
	return p, nil
}

// splitVariableList slices a serialized list of variable-size elements back
// into per-element chunks via its leading offset table.
func splitVariableList(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) < ssz.BytesPerLengthOffset {
		return nil, errors.New("malformed variable list")
	}
	first := leUint32(data[:4])
	if first%ssz.BytesPerLengthOffset != 0 || int(first) > len(data) {
		return nil, errors.New("malformed variable list offset table")
	}
	n := int(first) / ssz.BytesPerLengthOffset
	offsets := make([]uint32, n+1)
	for i := 0; i < n; i++ {
		offsets[i] = leUint32(data[i*4 : i*4+4])
		if int(offsets[i]) > len(data) {
			return nil, errors.New("variable list offset beyond buffer")
		}
		if i > 0 && offsets[i] < offsets[i-1] {
			return nil, errors.New("variable list offsets not increasing")
		}
	}
	offsets[n] = uint32(len(data))
	out := make([][]byte, n)
	for i := 0; i < n; i++ {
		out[i] = data[offsets[i]:offsets[i+1]]
	}
	return out, nil
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

func leUint32(b []byte) uint32 {
	var v uint32
	for i := 0; i < 4; i++ {
		v |= uint32(b[i]) << (8 * i)
	}
	return v
}
