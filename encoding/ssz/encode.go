package ssz

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// BytesPerLengthOffset is SSZ's fixed offset width for variable-size fields.
const BytesPerLengthOffset = 4

// Encoder builds a container's serialization in SSZ's two-region layout:
// the fixed region holds fixed-size fields inline and 4-byte offsets for
// variable-size fields; the heap region holds the variable fields' bytes in
// field order. Callers append fields in declaration order, then call
// Finish.
type Encoder struct {
	fixed    []byte
	heap     []byte
	offsets  []int // positions in fixed where heap offsets go
	heapPos  []int // heap-relative start of each variable field
}

// NewEncoder returns an empty encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// WriteFixed appends fixed-size field bytes inline.
func (e *Encoder) WriteFixed(b []byte) {
	e.fixed = append(e.fixed, b...)
}

// WriteUint64 appends a little-endian uint64 to the fixed region.
func (e *Encoder) WriteUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.fixed = append(e.fixed, b[:]...)
}

// WriteOffset reserves an offset slot for the next variable field and
// appends its serialized bytes to the heap.
func (e *Encoder) WriteOffset(variable []byte) {
	e.offsets = append(e.offsets, len(e.fixed))
	e.fixed = append(e.fixed, 0, 0, 0, 0)
	e.heapPos = append(e.heapPos, len(e.heap))
	e.heap = append(e.heap, variable...)
}

// Finish backfills the offsets (fixed-region length plus each variable
// field's heap position) and returns the full serialization.
func (e *Encoder) Finish() []byte {
	base := len(e.fixed)
	for i, pos := range e.offsets {
		binary.LittleEndian.PutUint32(e.fixed[pos:pos+4], uint32(base+e.heapPos[i]))
	}
	return append(e.fixed, e.heap...)
}

// Decoder walks a container's serialization, mirroring Encoder.
type Decoder struct {
	data    []byte
	pos     int
	offsets []uint32
}

// NewDecoder returns a decoder over data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

var errShortBuffer = errors.New("ssz: buffer too short")

// ReadFixed consumes n fixed bytes.
func (d *Decoder) ReadFixed(n int) ([]byte, error) {
	if d.pos+n > len(d.data) {
		return nil, errShortBuffer
	}
	out := d.data[d.pos : d.pos+n]
	d.pos += n
	return out, nil
}

// ReadUint64 consumes a little-endian uint64.
func (d *Decoder) ReadUint64() (uint64, error) {
	b, err := d.ReadFixed(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadOffset consumes a 4-byte offset, remembering it for Variable.
func (d *Decoder) ReadOffset() error {
	b, err := d.ReadFixed(4)
	if err != nil {
		return err
	}
	off := binary.LittleEndian.Uint32(b)
	if int(off) > len(d.data) {
		return errors.Errorf("ssz: offset %d beyond buffer of %d bytes", off, len(d.data))
	}
	if n := len(d.offsets); n > 0 && off < d.offsets[n-1] {
		return errors.New("ssz: offsets not monotonically increasing")
	}
	d.offsets = append(d.offsets, off)
	return nil
}

// Variable returns the i-th variable field's bytes, bounded by the next
// field's offset (or the buffer end for the last field).
func (d *Decoder) Variable(i int) ([]byte, error) {
	if i >= len(d.offsets) {
		return nil, errors.Errorf("ssz: no variable field %d", i)
	}
	start := d.offsets[i]
	end := uint32(len(d.data))
	if i+1 < len(d.offsets) {
		end = d.offsets[i+1]
	}
	if start > end {
		return nil, errors.New("ssz: overlapping variable fields")
	}
	return d.data[start:end], nil
}
