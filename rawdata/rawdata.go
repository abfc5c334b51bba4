// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rawdata decodes and encodes the raw data stream of the TOF
// readout electronics.
//
// The stream of one DDL is a sequence of 32-bit words, nested as:
//
//	DRM global header + 4 DRM status headers
//	  LTM global header, LTM data words, LTM global trailer
//	  TRM global header (slots 3 to 12)
//	    chain-0 header, TDC hit words, chain-0 trailer
//	    chain-1 header, TDC hit words, chain-1 trailer
//	  TRM global trailer
//	DRM global trailer
//
// The bits [28,31] of every word select the word type.
package rawdata // import "github.com/go-lpc/tof/rawdata"

import (
	"fmt"

	"github.com/go-lpc/tof/internal/bitfield"
)

// WordType is the type of a raw data word.
type WordType uint8

const (
	Chain0Header  WordType = 0
	Chain0Trailer WordType = 1
	Chain1Header  WordType = 2
	Chain1Trailer WordType = 3
	GlobalHeader  WordType = 4
	GlobalTrailer WordType = 5
	ErrorWord     WordType = 6
	FillerWord    WordType = 7
	HitWord       WordType = 8 // any word with bit 31 set
)

func (wt WordType) String() string {
	switch wt {
	case Chain0Header:
		return "chain-0 header"
	case Chain0Trailer:
		return "chain-0 trailer"
	case Chain1Header:
		return "chain-1 header"
	case Chain1Trailer:
		return "chain-1 trailer"
	case GlobalHeader:
		return "global header"
	case GlobalTrailer:
		return "global trailer"
	case ErrorWord:
		return "error"
	case FillerWord:
		return "filler"
	case HitWord:
		return "hit"
	}
	return fmt.Sprintf("WordType(%d)", uint8(wt))
}

// TypeOf returns the type of the raw word w.
func TypeOf(w uint32) WordType {
	v := fWordType.Get(w)
	if v >= uint32(HitWord) {
		return HitWord
	}
	return WordType(v)
}

const (
	slotDRM = 1
	slotLTM = 2

	firstTRMSlot = 3
	lastTRMSlot  = 12

	nDRMStatusHeaders = 4
	nLTMDataWords     = 48
	nLTMSamples       = 3 * nLTMDataWords

	fillerWord = uint32(FillerWord) << 28
)

// Bit layouts of the raw words, as [lo,hi] inclusive ranges.
var (
	fWordType = bitfield.Range(28, 31)
	fSlot     = bitfield.Range(0, 3)

	// DRM global header
	fDRMWords  = bitfield.Range(4, 20)
	fDRMCrate  = bitfield.Range(21, 22)
	fDRMSector = bitfield.Range(23, 27)

	// DRM status headers
	fDRMParticipating = bitfield.Range(4, 14)
	fDRMVersion       = bitfield.Range(16, 20)
	fDRMSlotEnable    = bitfield.Range(4, 14)
	fDRMFault         = bitfield.Range(16, 27)
	fDRML0BCID        = bitfield.Range(4, 15)
	fDRMRunTime       = bitfield.Range(16, 27)
	fDRMTemperature   = bitfield.Range(4, 13)
	fDRMAck           = bitfield.Range(15, 15)

	// TRM and LTM global headers
	fTRMWords = bitfield.Range(4, 16)
	fTRMAcq   = bitfield.Range(17, 18)

	// global trailers
	fDRMCounter   = bitfield.Range(4, 15)
	fLocalCounter = bitfield.Range(16, 27)

	// LTM data words
	fLTMSample = [3]bitfield.Field{
		bitfield.Range(0, 9),
		bitfield.Range(10, 19),
		bitfield.Range(20, 29),
	}

	// TDC error words
	fErrTDC   = bitfield.Range(24, 27)
	fErrFlags = bitfield.Range(0, 14)

	// chain headers and trailers
	fChainBunch   = bitfield.Range(4, 15)
	fChainStatus  = bitfield.Range(0, 3)
	fChainCounter = bitfield.Range(16, 27)

	// TDC hit words
	fHitMarker  = bitfield.Range(31, 31)
	fHitPS      = bitfield.Range(29, 30)
	fHitErr     = bitfield.Range(28, 28)
	fHitTDC     = bitfield.Range(24, 27)
	fHitChannel = bitfield.Range(21, 23)
	fHitTOT     = bitfield.Range(13, 20)
	fHitTime    = bitfield.Range(0, 12)
	fHitLong    = bitfield.Range(0, 20)
)

// PackingStatus describes how a TDC hit word packs its measurement.
type PackingStatus uint8

const (
	PackedHit   PackingStatus = 0 // 13-bit time + 8-bit ToT
	LeadingHit  PackingStatus = 1 // 21-bit leading edge time
	TrailingHit PackingStatus = 2 // 21-bit trailing edge time
	OverflowHit PackingStatus = 3 // time + ToT, ToT overflow
)

func (ps PackingStatus) String() string {
	switch ps {
	case PackedHit:
		return "packed"
	case LeadingHit:
		return "leading"
	case TrailingHit:
		return "trailing"
	case OverflowHit:
		return "tot-overflow"
	}
	return fmt.Sprintf("PackingStatus(%d)", uint8(ps))
}

// AcqMode is the acquisition mode of a TRM.
type AcqMode uint8

const (
	AcqPacked   AcqMode = 0 // one packed word per hit, split when it does not fit
	AcqLeading  AcqMode = 1 // leading edges only
	AcqSplit    AcqMode = 2 // leading and trailing edges, in separate words
	AcqReserved AcqMode = 3
)

func (m AcqMode) String() string {
	switch m {
	case AcqPacked:
		return "packed"
	case AcqLeading:
		return "leading"
	case AcqSplit:
		return "leading+trailing"
	case AcqReserved:
		return "reserved"
	}
	return fmt.Sprintf("AcqMode(%d)", uint8(m))
}

// totShift converts a ToT bin into a number of TDC time bins:
// a ToT bin is twice as wide as a time bin.
const totShift = 1
