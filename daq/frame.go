// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"bytes"
	"fmt"

	"github.com/go-daq/tdaq"
	"github.com/go-lpc/tof/geom"
	"github.com/go-lpc/tof/rawdata"
)

const (
	flagError   = 1 << 0 // TDC error flag
	flagAddrErr = 1 << 1 // address translation failed
)

// MarshalHits encodes hits into a hit frame body.
//
// A hit frame is the number of hits followed, for each hit, by its
// global channel index, its equipment address, packing status, edges
// and flags, then its time, time-over-threshold, leading and trailing
// bins. All values are little-endian.
func MarshalHits(hits []rawdata.Hit) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := tdaq.NewEncoder(buf)
	enc.WriteU32(uint32(len(hits)))
	for _, h := range hits {
		idx, err := h.Index()
		flags := uint8(0)
		if h.ErrorFlag {
			flags |= flagError
		}
		if err != nil {
			idx = -1
			flags |= flagAddrErr
		}
		enc.WriteI32(int32(idx))
		enc.WriteU8(uint8(h.DDL))
		enc.WriteU8(uint8(h.Slot))
		enc.WriteU8(uint8(h.Chain))
		enc.WriteU8(uint8(h.TDC))
		enc.WriteU8(uint8(h.Channel))
		enc.WriteU8(uint8(h.PS))
		enc.WriteU8(uint8(h.Edges))
		enc.WriteU8(flags)
		enc.WriteI32(h.TimeBin)
		enc.WriteI32(h.TOTBin)
		enc.WriteI32(h.LeadingBin)
		enc.WriteI32(h.TrailingBin)
	}
	if err := enc.Err(); err != nil {
		return nil, fmt.Errorf("daq: could not encode hit frame: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalHits decodes a hit frame body.
// The detector volume of each hit is recomputed from its global
// channel index.
func UnmarshalHits(p []byte) ([]rawdata.Hit, error) {
	dec := tdaq.NewDecoder(bytes.NewReader(p))
	n := int(dec.ReadU32())
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("daq: could not decode hit frame size: %w", err)
	}
	if max := len(p) / hitSize; n > max {
		return nil, fmt.Errorf("daq: invalid hit frame size (n=%d, max=%d)", n, max)
	}

	hits := make([]rawdata.Hit, n)
	for i := range hits {
		h := &hits[i]
		idx := dec.ReadI32()
		h.DDL = int(dec.ReadU8())
		h.Slot = int(dec.ReadU8())
		h.Chain = int(dec.ReadU8())
		h.TDC = int(dec.ReadU8())
		h.Channel = int(dec.ReadU8())
		h.PS = rawdata.PackingStatus(dec.ReadU8())
		h.Edges = rawdata.Edge(dec.ReadU8())
		flags := dec.ReadU8()
		h.TimeBin = dec.ReadI32()
		h.TOTBin = dec.ReadI32()
		h.LeadingBin = dec.ReadI32()
		h.TrailingBin = dec.ReadI32()

		h.ErrorFlag = flags&flagError != 0
		h.Vol, h.AddrErr = geom.VolumeFromIndex(int(idx))
		if flags&flagAddrErr != 0 && h.AddrErr == nil {
			return nil, fmt.Errorf("daq: hit %d: inconsistent address flag (index=%d)", i, idx)
		}
	}
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("daq: could not decode hit frame: %w", err)
	}
	return hits, nil
}

// hitSize is the encoded size of a hit, in bytes.
const hitSize = 4 + 8 + 4*4
