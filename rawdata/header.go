// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rawdata

import (
	"fmt"

	"github.com/go-lpc/tof/internal/bitfield"
	"golang.org/x/xerrors"
)

const (
	// HeaderWords is the size of a common data header, in 32-bit words.
	HeaderWords = 8
	// HeaderSize is the size of a common data header, in bytes.
	HeaderSize = 4 * HeaderWords

	// HeaderVersion is the version of the common data header layout
	// written by this package.
	HeaderVersion = 2

	attrValid = 1 << 0 // size field holds the final record size
)

var (
	fCDHEventID1 = bitfield.Range(0, 11)
	fCDHL1Msg    = bitfield.Range(14, 23)
	fCDHVersion  = bitfield.Range(24, 31)
	fCDHEventID2 = bitfield.Range(0, 23)
	fCDHAttrs    = bitfield.Range(24, 31)
	fCDHSubDets  = bitfield.Range(0, 23)
	fCDHDDL      = bitfield.Range(24, 31)
	fCDHMiniEvt  = bitfield.Range(0, 11)
	fCDHStatus   = bitfield.Range(12, 27)
	fCDHTrigHi   = bitfield.Range(0, 17)
	fCDHROILo    = bitfield.Range(28, 31)
)

// DataHeader is the common data header prepended by the readout link
// to the payload of every DDL, for every event.
type DataHeader struct {
	Size        uint32 // size of the record, header included, in bytes
	BunchID     uint16 // bunch crossing of the event (event ID 1)
	L1Msg       uint16
	Version     uint8
	Orbit       uint32 // orbit number of the event (event ID 2)
	Attributes  uint8
	SubDets     uint32
	DDL         uint8 // global DDL index
	MiniEventID uint16
	Status      uint16
	Triggers    uint64 // trigger classes (50 bits)
	ROI         uint64 // region of interest (36 bits)
}

// Valid reports whether the size of the record was finalized.
func (hdr DataHeader) Valid() bool {
	return hdr.Attributes&attrValid != 0
}

func (hdr DataHeader) String() string {
	return fmt.Sprintf(
		"cdh{size=%d ddl=%d bc=%d orbit=%d l1=0x%x attrs=0x%x status=0x%x}",
		hdr.Size, hdr.DDL, hdr.BunchID, hdr.Orbit,
		hdr.L1Msg, hdr.Attributes, hdr.Status,
	)
}

// Words returns the wire representation of the header.
func (hdr DataHeader) Words() [HeaderWords]uint32 {
	var ws [HeaderWords]uint32
	ws[0] = hdr.Size
	ws[1] = fCDHEventID1.Put(uint32(hdr.BunchID)) |
		fCDHL1Msg.Put(uint32(hdr.L1Msg)) |
		fCDHVersion.Put(uint32(hdr.Version))
	ws[2] = fCDHEventID2.Put(hdr.Orbit) | fCDHAttrs.Put(uint32(hdr.Attributes))
	ws[3] = fCDHSubDets.Put(hdr.SubDets) | fCDHDDL.Put(uint32(hdr.DDL))
	ws[4] = fCDHMiniEvt.Put(uint32(hdr.MiniEventID)) | fCDHStatus.Put(uint32(hdr.Status))
	ws[5] = uint32(hdr.Triggers)
	ws[6] = fCDHTrigHi.Put(uint32(hdr.Triggers>>32)) | fCDHROILo.Put(uint32(hdr.ROI))
	ws[7] = uint32(hdr.ROI >> 4)
	return ws
}

// HeaderFrom decodes a common data header from its wire representation.
func HeaderFrom(ws []uint32) (DataHeader, error) {
	if len(ws) < HeaderWords {
		return DataHeader{}, xerrors.Errorf(
			"rawdata: short common data header (words=%d)", len(ws),
		)
	}
	hdr := DataHeader{
		Size:        ws[0],
		BunchID:     uint16(fCDHEventID1.Get(ws[1])),
		L1Msg:       uint16(fCDHL1Msg.Get(ws[1])),
		Version:     uint8(fCDHVersion.Get(ws[1])),
		Orbit:       fCDHEventID2.Get(ws[2]),
		Attributes:  uint8(fCDHAttrs.Get(ws[2])),
		SubDets:     fCDHSubDets.Get(ws[3]),
		DDL:         uint8(fCDHDDL.Get(ws[3])),
		MiniEventID: uint16(fCDHMiniEvt.Get(ws[4])),
		Status:      uint16(fCDHStatus.Get(ws[4])),
		Triggers:    uint64(ws[5]) | uint64(fCDHTrigHi.Get(ws[6]))<<32,
		ROI:         uint64(fCDHROILo.Get(ws[6])) | uint64(ws[7])<<4,
	}
	return hdr, nil
}
