// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rawdata

import (
	"encoding/binary"
	"io"

	"golang.org/x/xerrors"
)

// Record is the payload of one DDL for one event, with its common
// data header.
type Record struct {
	Header DataHeader
	Words  []uint32
}

// Raw data files are sequences of records, each record being a common
// data header followed by the payload words.
// Words are stored in little-endian, as written by the readout PCs.
var order = binary.LittleEndian

// MaxRecordSize is the size in bytes of the largest record a Reader
// accepts: a header and a payload holding as many words as a DRM
// global header can count.
var MaxRecordSize = HeaderSize + 4*(int(fDRMWords.Max())+1)

// Writer writes records to an underlying seekable stream.
type Writer struct {
	w   io.WriteSeeker
	buf []byte
	err error
}

// NewWriter creates a new raw data writer.
func NewWriter(w io.WriteSeeker) *Writer {
	return &Writer{
		w:   w,
		buf: make([]byte, HeaderSize),
	}
}

// WriteRecord writes a record.
//
// The common data header is first written as a placeholder, marked as
// invalid. Once the payload has been written, the header is rewritten
// with the final record size and marked as valid.
func (w *Writer) WriteRecord(rec Record) error {
	if w.err != nil {
		return w.err
	}

	beg, err := w.w.Seek(0, io.SeekCurrent)
	if err != nil {
		w.err = xerrors.Errorf("rawdata: could not locate record: %w", err)
		return w.err
	}

	hdr := rec.Header
	hdr.Size = 0
	hdr.Attributes &^= attrValid
	if hdr.Version == 0 {
		hdr.Version = HeaderVersion
	}
	w.writeHeader(hdr)
	w.writeWords(rec.Words)
	if w.err != nil {
		w.err = xerrors.Errorf("rawdata: could not write record: %w", w.err)
		return w.err
	}

	end, err := w.w.Seek(0, io.SeekCurrent)
	if err != nil {
		w.err = xerrors.Errorf("rawdata: could not locate end of record: %w", err)
		return w.err
	}

	hdr.Size = uint32(end - beg)
	hdr.Attributes |= attrValid

	_, err = w.w.Seek(beg, io.SeekStart)
	if err != nil {
		w.err = xerrors.Errorf("rawdata: could not rewind to record header: %w", err)
		return w.err
	}
	w.writeHeader(hdr)
	if w.err != nil {
		w.err = xerrors.Errorf("rawdata: could not rewrite record header: %w", w.err)
		return w.err
	}
	_, err = w.w.Seek(end, io.SeekStart)
	if err != nil {
		w.err = xerrors.Errorf("rawdata: could not seek to end of record: %w", err)
		return w.err
	}
	return nil
}

func (w *Writer) writeHeader(hdr DataHeader) {
	ws := hdr.Words()
	w.writeWords(ws[:])
}

func (w *Writer) writeWords(ws []uint32) {
	if w.err != nil {
		return
	}
	n := 4 * len(ws)
	if cap(w.buf) < n {
		w.buf = make([]byte, n)
	}
	buf := w.buf[:n]
	for i, v := range ws {
		order.PutUint32(buf[4*i:], v)
	}
	_, w.err = w.w.Write(buf)
}

// AppendRecord appends the complete encoding of rec to buf,
// with its final size and marked as valid.
func AppendRecord(buf []byte, rec Record) []byte {
	hdr := rec.Header
	hdr.Size = uint32(HeaderSize + 4*len(rec.Words))
	hdr.Attributes |= attrValid
	if hdr.Version == 0 {
		hdr.Version = HeaderVersion
	}
	ws := hdr.Words()
	for _, v := range ws {
		buf = order.AppendUint32(buf, v)
	}
	for _, v := range rec.Words {
		buf = order.AppendUint32(buf, v)
	}
	return buf
}

// Reader reads records from an underlying stream.
type Reader struct {
	r   io.Reader
	buf []byte
	hdr [HeaderWords]uint32
	err error
}

// NewReader creates a new raw data reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		r:   r,
		buf: make([]byte, HeaderSize),
	}
}

// Next reads the next record.
// Next returns io.EOF when no more records are available.
func (r *Reader) Next() (Record, error) {
	r.read(r.hdr[:])
	if r.err != nil {
		if xerrors.Is(r.err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, xerrors.Errorf("rawdata: could not read record header: %w", r.err)
	}

	hdr, err := HeaderFrom(r.hdr[:])
	if err != nil {
		return Record{}, err
	}
	switch {
	case !hdr.Valid():
		return Record{}, xerrors.Errorf("rawdata: incomplete record (%v)", hdr)
	case hdr.Size < HeaderSize || hdr.Size%4 != 0:
		return Record{}, xerrors.Errorf("rawdata: invalid record size %d", hdr.Size)
	case int64(hdr.Size) > int64(MaxRecordSize):
		return Record{}, xerrors.Errorf(
			"rawdata: record size %d exceeds maximum (%d)",
			hdr.Size, MaxRecordSize,
		)
	}

	rec := Record{
		Header: hdr,
		Words:  make([]uint32, (hdr.Size-HeaderSize)/4),
	}
	r.read(rec.Words)
	if r.err != nil {
		if xerrors.Is(r.err, io.EOF) {
			r.err = io.ErrUnexpectedEOF
		}
		return Record{}, xerrors.Errorf("rawdata: could not read record payload: %w", r.err)
	}
	return rec, nil
}

func (r *Reader) read(ws []uint32) {
	if r.err != nil {
		return
	}
	n := 4 * len(ws)
	if cap(r.buf) < n {
		r.buf = make([]byte, n)
	}
	buf := r.buf[:n]
	_, r.err = io.ReadFull(r.r, buf)
	if r.err != nil {
		return
	}
	for i := range ws {
		ws[i] = order.Uint32(buf[4*i:])
	}
}
