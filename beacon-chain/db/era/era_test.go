package era

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
)

// seekableBuffer adapts a byte slice into the io.ReadSeeker the reader
// wants, standing in for an *os.File in tests.
type seekableBuffer struct {
	*bytes.Reader
}

func newSeekable(b []byte) *seekableBuffer {
	return &seekableBuffer{Reader: bytes.NewReader(b)}
}

func TestRecordRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello era")
	n, err := WriteRecord(&buf, TypeCompressedSignedBlock, payload)
	require.NoError(t, err)
	assert.Equal(t, int64(headerLen+len(payload)), n)

	typ, body, err := ReadRecord(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, TypeCompressedSignedBlock, typ)
	assert.Equal(t, payload, body)
}

func TestRecordLengthBound(t *testing.T) {
	var buf bytes.Buffer
	err := writeRecordHeader(&buf, TypeCompressedSignedBlock, maxRecordLen+1)
	assert.ErrorIs(t, err, errLengthTooLarge)
}

func TestSnappyRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("beacon"), 1000)
	enc, err := snappyEncode(data)
	require.NoError(t, err)
	require.Less(t, len(enc), len(data))
	dec, err := snappyDecode(enc)
	require.NoError(t, err)
	assert.Equal(t, data, dec)
}

func TestEraFileRoundTrip(t *testing.T) {
	const startSlot = ssztypes.Slot(8192)
	const blockCount = 32
	var buf bytes.Buffer
	w, err := NewWriter(&buf, startSlot)
	require.NoError(t, err)

	blockSSZ := make(map[ssztypes.Slot][]byte)
	for i := 0; i < blockCount; i++ {
		slot := startSlot + ssztypes.Slot(i)
		ssz := []byte(fmt.Sprintf("block-at-slot-%d", slot))
		blockSSZ[slot] = ssz
		require.NoError(t, w.Update(slot, ssz))
	}
	stateSSZ := []byte("terminal-state-at-8224")
	require.NoError(t, w.Finish(startSlot+ssztypes.Slot(blockCount), stateSSZ))

	r, err := NewReader(newSeekable(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	idx, err := r.BlockIndex()
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, startSlot, idx.StartSlot)
	require.Len(t, idx.Offsets, blockCount)
	for i, off := range idx.Offsets {
		assert.NotZero(t, off, "offset for slot %d", int(startSlot)+i)
	}

	for slot, want := range blockSSZ {
		got, err := r.ReadBlockSSZ(slot)
		require.NoError(t, err)
		assert.Equal(t, want, got, "block at slot %d", slot)
	}

	gotState, err := r.ReadStateSSZ()
	require.NoError(t, err)
	assert.Equal(t, stateSSZ, gotState)

	stateIdx, err := r.StateIndex()
	require.NoError(t, err)
	assert.Equal(t, startSlot+ssztypes.Slot(blockCount), stateIdx.StartSlot)
}

func TestEraFileWithGaps(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 100)
	require.NoError(t, err)
	require.NoError(t, w.Update(100, []byte("a")))
	// Slot 101 skipped.
	require.NoError(t, w.Update(102, []byte("c")))
	require.NoError(t, w.Finish(103, []byte("st")))

	r, err := NewReader(newSeekable(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	got, err := r.ReadBlockSSZ(101)
	require.NoError(t, err)
	assert.Nil(t, got, "skipped slot must read back as empty")
	got, err = r.ReadBlockSSZ(102)
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), got)
}

func TestEraFileNoBlocks(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 0)
	require.NoError(t, err)
	require.NoError(t, w.Finish(0, []byte("genesis-state")))

	r, err := NewReader(newSeekable(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	st, err := r.ReadStateSSZ()
	require.NoError(t, err)
	assert.Equal(t, []byte("genesis-state"), st)
	idx, err := r.BlockIndex()
	require.NoError(t, err)
	assert.Nil(t, idx)
}

func TestWriterRefusesDoubleFinish(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 0)
	require.NoError(t, err)
	require.NoError(t, w.Finish(0, []byte("s")))
	assert.ErrorIs(t, w.Finish(0, []byte("s")), errAlreadyFinished)
	assert.ErrorIs(t, w.Update(1, []byte("b")), errAlreadyFinished)
}

func TestReaderRejectsNonEraFile(t *testing.T) {
	junk := []byte("definitely not an era file, padded to some length")
	_, err := NewReader(newSeekable(junk), int64(len(junk)))
	assert.Error(t, err)
}

func TestFilename(t *testing.T) {
	var root [32]byte
	copy(root[:], []byte{0xde, 0xad, 0xbe, 0xef, 0x11})
	assert.Equal(t, "mainnet-00001-00001-deadbeef.era", Filename("mainnet", 1, root))
}

func TestHistoricalRootForEra(t *testing.T) {
	st := &state.BeaconState{
		GenesisValidatorsRoot: [32]byte{0xaa},
		HistoricalRoots:       [][32]byte{{0x01}, {0x02}},
	}
	assert.Equal(t, [32]byte{0xaa}, HistoricalRootForEra(st, 0))
	assert.Equal(t, [32]byte{0x01}, HistoricalRootForEra(st, 1))
	assert.Equal(t, [32]byte{0x02}, HistoricalRootForEra(st, 2))
	assert.Equal(t, [32]byte{}, HistoricalRootForEra(st, 3))
}
