// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xcnv

import (
	"fmt"
	"io"
	"log"

	"github.com/go-lpc/tof/geom"
	"github.com/go-lpc/tof/rawdata"
	"go-hep.org/x/hep/lcio"
)

// LCIO2Raw extracts the raw DDL records stored in LCIO events and
// writes them to w.
func LCIO2Raw(w *rawdata.Writer, r *lcio.Reader, freq int, msg *log.Logger) error {
	i := 0
	for r.Next() {
		if freq > 0 && i%freq == 0 {
			msg.Printf("processing evt %d...", i)
		}
		evt := r.Event()
		recs, err := Records(&evt)
		if err != nil {
			return fmt.Errorf("could not extract raw records from event %d: %w", i, err)
		}
		for j, rec := range recs {
			err = w.WriteRecord(rec)
			if err != nil {
				return fmt.Errorf("could not write record %d of event %d: %w", j, i, err)
			}
		}
		i++
	}

	err := r.Err()
	if err != nil && err != io.EOF {
		return fmt.Errorf("could not read LCIO events: %w", err)
	}
	return nil
}

// Records returns the raw DDL records stored in an LCIO event.
func Records(evt *lcio.Event) ([]rawdata.Record, error) {
	obj, ok := evt.Get(RawCollection).(*lcio.GenericObject)
	if !ok {
		return nil, fmt.Errorf("no %q collection", RawCollection)
	}

	recs := make([]rawdata.Record, len(obj.Data))
	for i, data := range obj.Data {
		raw := data.I32s
		ws := make([]uint32, len(raw))
		for j, v := range raw {
			ws[j] = uint32(v)
		}
		hdr, err := rawdata.HeaderFrom(ws)
		if err != nil {
			return nil, fmt.Errorf("invalid raw record %d: %w", i, err)
		}
		recs[i] = rawdata.Record{
			Header: hdr,
			Words:  ws[rawdata.HeaderWords:],
		}
	}
	return recs, nil
}

// Hits returns the decoded hits stored in an LCIO event.
func Hits(evt *lcio.Event) ([]rawdata.Hit, error) {
	obj, ok := evt.Get(HitCollection).(*lcio.GenericObject)
	if !ok {
		return nil, fmt.Errorf("no %q collection", HitCollection)
	}

	hits := make([]rawdata.Hit, len(obj.Data))
	for i, data := range obj.Data {
		h, err := hitFromI32s(data.I32s)
		if err != nil {
			return nil, fmt.Errorf("invalid hit %d: %w", i, err)
		}
		hits[i] = h
	}
	return hits, nil
}

const (
	hitFlagError = 1 << iota
)

// layout of a hit in a generic object.
const (
	iHitIndex = iota
	iHitDDL
	iHitSlot
	iHitChain
	iHitTDC
	iHitChannel
	iHitPS
	iHitEdges
	iHitFlags
	iHitTime
	iHitTOT
	iHitLeading
	iHitTrailing
	nHitI32s
)

func i32sFromHit(h rawdata.Hit) []int32 {
	idx, err := h.Index()
	if err != nil {
		idx = -1
	}
	var flags int32
	if h.ErrorFlag {
		flags |= hitFlagError
	}
	raw := make([]int32, nHitI32s)
	raw[iHitIndex] = int32(idx)
	raw[iHitDDL] = int32(h.DDL)
	raw[iHitSlot] = int32(h.Slot)
	raw[iHitChain] = int32(h.Chain)
	raw[iHitTDC] = int32(h.TDC)
	raw[iHitChannel] = int32(h.Channel)
	raw[iHitPS] = int32(h.PS)
	raw[iHitEdges] = int32(h.Edges)
	raw[iHitFlags] = flags
	raw[iHitTime] = h.TimeBin
	raw[iHitTOT] = h.TOTBin
	raw[iHitLeading] = h.LeadingBin
	raw[iHitTrailing] = h.TrailingBin
	return raw
}

func hitFromI32s(raw []int32) (rawdata.Hit, error) {
	if len(raw) != nHitI32s {
		return rawdata.Hit{}, fmt.Errorf("invalid hit size (got=%d, want=%d)", len(raw), nHitI32s)
	}
	h := rawdata.Hit{
		DDL:         int(raw[iHitDDL]),
		Slot:        int(raw[iHitSlot]),
		Chain:       int(raw[iHitChain]),
		TDC:         int(raw[iHitTDC]),
		Channel:     int(raw[iHitChannel]),
		PS:          rawdata.PackingStatus(raw[iHitPS]),
		Edges:       rawdata.Edge(raw[iHitEdges]),
		ErrorFlag:   raw[iHitFlags]&hitFlagError != 0,
		TimeBin:     raw[iHitTime],
		TOTBin:      raw[iHitTOT],
		LeadingBin:  raw[iHitLeading],
		TrailingBin: raw[iHitTrailing],
	}
	h.Vol, h.AddrErr = geom.VolumeFromIndex(int(raw[iHitIndex]))
	return h, nil
}
