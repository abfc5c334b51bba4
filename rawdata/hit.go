// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rawdata

import (
	"fmt"

	"github.com/go-lpc/tof/geom"
)

// Edge is a bit set of the edges measured for a hit.
type Edge uint8

const (
	EdgeLeading Edge = 1 << iota
	EdgeTrailing

	EdgeBoth = EdgeLeading | EdgeTrailing
)

// Key identifies a TDC channel within a DDL.
type Key struct {
	Slot    uint8
	Chain   uint8
	TDC     uint8
	Channel uint8
}

func (k Key) String() string {
	return fmt.Sprintf("key{slot=%d chain=%d tdc=%d ch=%d}", k.Slot, k.Chain, k.TDC, k.Channel)
}

// Hit is a decoded TDC hit.
//
// All time bins are corrected for the bunch crossing offset of the
// chain that read the hit out, when corrections are enabled.
type Hit struct {
	DDL     int
	Slot    int
	Chain   int
	TDC     int
	Channel int

	PS        PackingStatus // packing status of the first word of the hit
	Edges     Edge
	ErrorFlag bool

	TimeBin     int32 // leading edge, or trailing edge for a trailing-only hit
	TOTBin      int32
	LeadingBin  int32
	TrailingBin int32

	Vol     geom.Volume // detector volume, valid when AddrErr is nil
	AddrErr error       // address translation error
}

// Key returns the TDC channel key of the hit.
func (h Hit) Key() Key {
	return Key{
		Slot:    uint8(h.Slot),
		Chain:   uint8(h.Chain),
		TDC:     uint8(h.TDC),
		Channel: uint8(h.Channel),
	}
}

// Equipment returns the equipment address of the hit.
func (h Hit) Equipment() geom.Equipment {
	return geom.Equipment{
		DDL:     h.DDL,
		Slot:    h.Slot,
		Chain:   h.Chain,
		TDC:     h.TDC,
		Channel: h.Channel,
	}
}

// Complete reports whether both edges of the hit were measured.
func (h Hit) Complete() bool { return h.Edges == EdgeBoth }

// Index returns the global channel index of the hit.
func (h Hit) Index() (int, error) {
	if h.AddrErr != nil {
		return -1, h.AddrErr
	}
	return geom.Index(h.Vol)
}

func (h Hit) String() string {
	return fmt.Sprintf(
		"hit{ddl=%d slot=%d chain=%d tdc=%d ch=%d ps=%v edges=%d time=%d tot=%d err=%v}",
		h.DDL, h.Slot, h.Chain, h.TDC, h.Channel, h.PS, h.Edges,
		h.TimeBin, h.TOTBin, h.ErrorFlag,
	)
}

// setLeading records the leading edge of the hit.
func (h *Hit) setLeading(t int32) {
	h.Edges |= EdgeLeading
	h.LeadingBin = t
	h.TimeBin = t
	h.updateTOT()
}

// setTrailing records the trailing edge of the hit.
func (h *Hit) setTrailing(t int32) {
	h.Edges |= EdgeTrailing
	h.TrailingBin = t
	if h.Edges&EdgeLeading == 0 {
		h.TimeBin = t
	}
	h.updateTOT()
}

func (h *Hit) updateTOT() {
	if h.Edges != EdgeBoth {
		return
	}
	h.TOTBin = (h.TrailingBin - h.LeadingBin) >> totShift
}
