// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rawdata

import (
	"fmt"
)

// DRM holds the information carried by the DRM header, status headers
// and trailer of a DDL payload.
type DRM struct {
	Words  uint32 // number of words of the DRM block
	Crate  uint8
	Sector uint8

	Participating uint16 // participating slots mask
	Version       uint8
	SlotEnable    uint16
	Fault         uint16
	L0BCID        uint16 // bunch crossing of the L0 trigger
	RunTime       uint16
	Temperature   uint16
	Ack           bool

	Counter uint16 // local event counter, from the DRM trailer
}

// LTM holds the information of the local trigger module block.
type LTM struct {
	Words   uint32
	Samples []uint16 // ADC samples, 3 per data word
	Counter uint16
}

// Chain holds the information of a TRM readout chain.
type Chain struct {
	BunchID uint16
	Status  uint8
	Counter uint16
}

// TRM holds the information of a TRM block.
type TRM struct {
	Slot    uint8
	Words   uint32
	AcqMode AcqMode
	Chains  [2]Chain
	Counter uint16
}

// TDCError is a TDC error report.
type TDCError struct {
	Slot  uint8
	Chain uint8
	TDC   uint8
	Flags uint16
}

// Stats holds the counters of a decoding pass.
type Stats struct {
	Words      int // number of decoded words
	Hits       int // number of stored hits
	Structural int // number of structural errors
	Address    int // number of hits with an address translation error
	Dropped    int // number of hits dropped because of the buffer capacity
	TDCErrors  int // number of TDC error words
	Orphans    int // number of stored hits missing an edge
	Fillers    int // number of filler words
}

// Add accumulates the counters of o into st.
func (st *Stats) Add(o Stats) {
	st.Words += o.Words
	st.Hits += o.Hits
	st.Structural += o.Structural
	st.Address += o.Address
	st.Dropped += o.Dropped
	st.TDCErrors += o.TDCErrors
	st.Orphans += o.Orphans
	st.Fillers += o.Fillers
}

// StructuralError describes a word inconsistent with the nesting of
// the stream. Such words are ignored.
type StructuralError struct {
	DDL   int
	Pos   int    // position of the word in the payload
	Word  uint32 // offending word
	State State  // automaton state when the word was read
	Msg   string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf(
		"rawdata: DDL %d word %d (0x%08x) in state %v: %s",
		e.DDL, e.Pos, e.Word, e.State, e.Msg,
	)
}

// DDL is the decoded payload of one DDL for one event.
type DDL struct {
	ID     int
	Header DataHeader

	DRM       DRM
	LTM       LTM
	TRMs      []TRM
	Hits      []Hit
	TDCErrors []TDCError
	Errors    []*StructuralError

	State State // automaton state after the last word
	Stats Stats
}
