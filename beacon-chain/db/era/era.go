package era

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
)

var (
	errNotEraFile        = errors.New("era: missing version record")
	errIndexLength       = errors.New("era: index length does not match count")
	errIndexCount        = errors.New("era: index count exceeds file bounds")
	errOffsetOutOfBounds = errors.New("era: index offset outside file")
	errStartSlotRange    = errors.New("era: start slot does not fit in 32 bits")
	errAlreadyFinished   = errors.New("era: writer already finished")
	errSlotBeforeStart   = errors.New("era: slot precedes writer start slot")
)

// Filename renders the canonical era file name:
// "<network>-<era:05>-<1:05>-<shortlog(root)>.era", where the short log of
// a root is its first four bytes in hex.
func Filename(network string, era uint64, root [32]byte) string {
	return fmt.Sprintf("%s-%05d-%05d-%x.era", network, era, 1, root[:4])
}

// HistoricalRootForEra picks the root the filename embeds:
// genesis_validators_root for era 0, historical_roots[era-1] while in
// range, the zero root otherwise.
func HistoricalRootForEra(st *state.BeaconState, era uint64) [32]byte {
	if era == 0 {
		return st.GenesisValidatorsRoot
	}
	if era-1 < uint64(len(st.HistoricalRoots)) {
		return st.HistoricalRoots[era-1]
	}
	return [32]byte{}
}

// writeIndex appends an index record: startSlot | relative offsets |
// count. Offsets are encoded relative to the index record's own start
// position using two's-complement 64-bit wrapping; absolute position zero
// is kept as-is and acts as the "no entry" sentinel.
func writeIndex(w io.Writer, pos int64, startSlot ssztypes.Slot, absOffsets []int64) (int64, error) {
	body := make([]byte, 16+8*len(absOffsets))
	putUint64(body[0:8], uint64(startSlot))
	for i, abs := range absOffsets {
		var rel uint64
		if abs != 0 {
			rel = uint64(abs - pos)
		}
		putUint64(body[8+8*i:16+8*i], rel)
	}
	putUint64(body[len(body)-8:], uint64(len(absOffsets)))
	return WriteRecord(w, TypeIndex, body)
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

// Writer appends one era's worth of blocks plus its terminal state. Usage:
// NewWriter, Update once per slot that has a block, Finish with the state.
type Writer struct {
	w         io.Writer
	pos       int64
	startSlot ssztypes.Slot
	offsets   []int64
	started   bool
	finished  bool
}

// NewWriter writes the version record and returns a writer whose block
// index will start at startSlot.
func NewWriter(w io.Writer, startSlot ssztypes.Slot) (*Writer, error) {
	ew := &Writer{w: w, startSlot: startSlot}
	n, err := WriteRecord(w, TypeVersion, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not write version record")
	}
	ew.pos = n
	return ew, nil
}

// Update appends slot's Snappy-framed SSZ block record and remembers its
// absolute position for the block index. Skipped slots simply never call
// Update; their index entries stay zero.
func (ew *Writer) Update(slot ssztypes.Slot, sszBytes []byte) error {
	if ew.finished {
		return errAlreadyFinished
	}
	if slot < ew.startSlot {
		return errSlotBeforeStart
	}
	idx := uint64(slot - ew.startSlot)
	for uint64(len(ew.offsets)) <= idx {
		ew.offsets = append(ew.offsets, 0)
	}
	compressed, err := snappyEncode(sszBytes)
	if err != nil {
		return errors.Wrap(err, "could not compress block")
	}
	ew.offsets[idx] = ew.pos
	n, err := WriteRecord(ew.w, TypeCompressedSignedBlock, compressed)
	if err != nil {
		return errors.Wrapf(err, "could not write block record for slot %d", slot)
	}
	ew.pos += n
	ew.started = true
	return nil
}

// Finish appends the terminal state record, the block index (when any
// blocks were written), and the one-entry state index, completing the era
// file layout Version | Blocks | BlockIndex | State | StateIndex.
func (ew *Writer) Finish(stateSlot ssztypes.Slot, stateSSZ []byte) error {
	if ew.finished {
		return errAlreadyFinished
	}
	if ew.started {
		n, err := writeIndex(ew.w, ew.pos, ew.startSlot, ew.offsets)
		if err != nil {
			return errors.Wrap(err, "could not write block index")
		}
		ew.pos += n
	}
	compressed, err := snappyEncode(stateSSZ)
	if err != nil {
		return errors.Wrap(err, "could not compress state")
	}
	statePos := ew.pos
	n, err := WriteRecord(ew.w, TypeCompressedBeaconState, compressed)
	if err != nil {
		return errors.Wrap(err, "could not write state record")
	}
	ew.pos += n
	if _, err := writeIndex(ew.w, ew.pos, stateSlot, []int64{statePos}); err != nil {
		return errors.Wrap(err, "could not write state index")
	}
	ew.finished = true
	return nil
}

// Index is a decoded index record with offsets resolved to absolute file
// positions; zero entries mean "no record for that slot".
type Index struct {
	StartSlot ssztypes.Slot
	Offsets   []int64
}

// Reader random-accesses a finished era file via its trailing indices.
type Reader struct {
	r    io.ReadSeeker
	size int64
}

// NewReader validates the version record and returns a reader for an era
// file of the given total size.
func NewReader(r io.ReadSeeker, size int64) (*Reader, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	typ, length, err := ReadRecordHeader(r)
	if err != nil {
		return nil, errors.Wrap(err, "could not read version record")
	}
	if typ != TypeVersion || length != 0 {
		return nil, errNotEraFile
	}
	return &Reader{r: r, size: size}, nil
}

// readIndexEndingAt decodes the index record whose final byte sits at end,
// by first reading the trailing count and then seeking back to the record
// start.
func (er *Reader) readIndexEndingAt(end int64) (*Index, int64, error) {
	if end < headerLen+16 {
		return nil, 0, errIndexCount
	}
	if _, err := er.r.Seek(end-8, io.SeekStart); err != nil {
		return nil, 0, err
	}
	var countBuf [8]byte
	if _, err := io.ReadFull(er.r, countBuf[:]); err != nil {
		return nil, 0, err
	}
	count := getUint64(countBuf[:])
	if count > uint64(er.size/8)-3 {
		return nil, 0, errIndexCount
	}
	bodyLen := int64(16 + 8*count)
	recordStart := end - bodyLen - headerLen
	if recordStart < 0 {
		return nil, 0, errIndexCount
	}
	if _, err := er.r.Seek(recordStart, io.SeekStart); err != nil {
		return nil, 0, err
	}
	typ, body, err := ReadRecord(er.r)
	if err != nil {
		return nil, 0, err
	}
	if typ != TypeIndex {
		return nil, 0, errors.Errorf("era: expected index record, got type %x", typ)
	}
	if int64(len(body)) != bodyLen || len(body)%8 != 0 {
		return nil, 0, errIndexLength
	}
	if declared := getUint64(body[len(body)-8:]); declared != count {
		return nil, 0, errIndexLength
	}
	startSlot := getUint64(body[0:8])
	if startSlot > 1<<32-1 {
		return nil, 0, errStartSlotRange
	}
	idx := &Index{StartSlot: ssztypes.Slot(startSlot), Offsets: make([]int64, count)}
	indexStart := recordStart
	for i := uint64(0); i < count; i++ {
		rel := getUint64(body[8+8*i : 16+8*i])
		if rel == 0 {
			continue
		}
		abs := indexStart + int64(rel)
		if abs < 0 || abs > er.size {
			return nil, 0, errOffsetOutOfBounds
		}
		idx.Offsets[i] = abs
	}
	return idx, recordStart, nil
}

// StateIndex decodes the trailing one-entry state index.
func (er *Reader) StateIndex() (*Index, error) {
	idx, _, err := er.readIndexEndingAt(er.size)
	return idx, err
}

// BlockIndex decodes the block index sitting before the state record.
// Returns nil when the era holds no blocks (genesis-era files).
func (er *Reader) BlockIndex() (*Index, error) {
	stateIdx, _, err := er.readIndexEndingAt(er.size)
	if err != nil {
		return nil, err
	}
	if len(stateIdx.Offsets) != 1 || stateIdx.Offsets[0] == 0 {
		return nil, errors.New("era: malformed state index")
	}
	blockIndexEnd := stateIdx.Offsets[0]
	if blockIndexEnd <= headerLen {
		return nil, nil
	}
	idx, _, err := er.readIndexEndingAt(blockIndexEnd)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// readCompressedRecordAt decodes the Snappy-framed record at abs, checking
// the type tag.
func (er *Reader) readCompressedRecordAt(abs int64, wantTyp [2]byte) ([]byte, error) {
	if abs <= 0 || abs >= er.size {
		return nil, errOffsetOutOfBounds
	}
	if _, err := er.r.Seek(abs, io.SeekStart); err != nil {
		return nil, err
	}
	typ, body, err := ReadRecord(er.r)
	if err != nil {
		return nil, err
	}
	if typ != wantTyp {
		return nil, errors.Errorf("era: expected record type %x, got %x", wantTyp, typ)
	}
	return snappyDecode(body)
}

// ReadStateSSZ returns the decompressed SSZ bytes of the terminal state.
func (er *Reader) ReadStateSSZ() ([]byte, error) {
	idx, err := er.StateIndex()
	if err != nil {
		return nil, err
	}
	if len(idx.Offsets) != 1 {
		return nil, errors.New("era: state index must have exactly one entry")
	}
	return er.readCompressedRecordAt(idx.Offsets[0], TypeCompressedBeaconState)
}

// ReadBlockSSZ returns the decompressed SSZ bytes of the block at slot, or
// nil when the slot is empty in this era.
func (er *Reader) ReadBlockSSZ(slot ssztypes.Slot) ([]byte, error) {
	idx, err := er.BlockIndex()
	if err != nil {
		return nil, err
	}
	if idx == nil || slot < idx.StartSlot {
		return nil, nil
	}
	i := uint64(slot - idx.StartSlot)
	if i >= uint64(len(idx.Offsets)) || idx.Offsets[i] == 0 {
		return nil, nil
	}
	return er.readCompressedRecordAt(idx.Offsets[i], TypeCompressedSignedBlock)
}
