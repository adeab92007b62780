// Package era implements the append-only era archive format: typed,
// length-prefixed records with Snappy-framed SSZ payloads and a trailing
// self-describing index. The record layer below is the e2store container;
// era.go builds the block/state/index layout on top.
package era

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// Record type tags. The tag is the first two bytes of the 8-byte header.
var (
	// TypeVersion marks the start of an e2store file ("e2").
	TypeVersion = [2]byte{0x65, 0x32}
	// TypeCompressedSignedBlock is a Snappy-framed SSZ signed beacon block.
	TypeCompressedSignedBlock = [2]byte{0x01, 0x00}
	// TypeCompressedBeaconState is a Snappy-framed SSZ beacon state.
	TypeCompressedBeaconState = [2]byte{0x02, 0x00}
	// TypeIndex is a slot index record ("i2").
	TypeIndex = [2]byte{0x69, 0x32}
)

const headerLen = 8

// maxRecordLen bounds a single record's declared length: the length field
// is 6 bytes, so anything above 2^48-1 is unrepresentable.
const maxRecordLen = 1<<48 - 1

var (
	errLengthTooLarge = errors.New("e2store: record length exceeds 48-bit bound")
	errShortRead      = errors.New("e2store: unexpected end of record")
)

// writeRecordHeader encodes the 8-byte header: 2-byte type tag followed by
// a 6-byte little-endian length.
func writeRecordHeader(w io.Writer, typ [2]byte, length uint64) error {
	if length > maxRecordLen {
		return errLengthTooLarge
	}
	var hdr [headerLen]byte
	hdr[0] = typ[0]
	hdr[1] = typ[1]
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], length)
	copy(hdr[2:], lenBuf[:6])
	_, err := w.Write(hdr[:])
	return err
}

// WriteRecord appends a (typ, data) record to w and returns the total
// number of bytes written (header plus body).
func WriteRecord(w io.Writer, typ [2]byte, data []byte) (int64, error) {
	if err := writeRecordHeader(w, typ, uint64(len(data))); err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	if err != nil {
		return 0, err
	}
	return headerLen + int64(n), nil
}

// ReadRecordHeader decodes the next record's type and body length from r.
func ReadRecordHeader(r io.Reader) (typ [2]byte, length uint64, err error) {
	var hdr [headerLen]byte
	if _, err = io.ReadFull(r, hdr[:]); err != nil {
		return typ, 0, err
	}
	typ[0] = hdr[0]
	typ[1] = hdr[1]
	var lenBuf [8]byte
	copy(lenBuf[:6], hdr[2:])
	return typ, binary.LittleEndian.Uint64(lenBuf[:]), nil
}

// ReadRecord decodes the next record from r, returning its type and body.
func ReadRecord(r io.Reader) ([2]byte, []byte, error) {
	typ, length, err := ReadRecordHeader(r)
	if err != nil {
		return typ, nil, err
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return typ, nil, errors.Wrap(errShortRead, err.Error())
	}
	return typ, body, nil
}

// snappyEncode frames data with the Snappy streaming format, the framing
// the era record types declare (not the raw block format).
func snappyEncode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	sw := snappy.NewBufferedWriter(&buf)
	if _, err := sw.Write(data); err != nil {
		return nil, err
	}
	if err := sw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// snappyDecode unframes a Snappy streaming payload.
func snappyDecode(data []byte) ([]byte, error) {
	sr := snappy.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(sr)
	if err != nil {
		return nil, errors.Wrap(err, "snappy decode failed")
	}
	return out, nil
}
