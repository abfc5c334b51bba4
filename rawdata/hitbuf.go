// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rawdata

import (
	"golang.org/x/xerrors"
)

// DefaultCapacity is the default maximum number of hits buffered for
// one DDL and one event.
const DefaultCapacity = 77000

// ErrCapacity is returned when a hit cannot be stored because the
// buffer is full.
var ErrCapacity = xerrors.New("rawdata: hit buffer capacity exceeded")

// HitBuffer collects the hits of one DDL for one event, pairing leading
// and trailing edges of the same TDC channel.
//
// Several hits may share the same key: they are kept in arrival order.
type HitBuffer struct {
	max  int
	hits []Hit
	idx  map[Key][]int
}

// NewHitBuffer creates a hit buffer holding at most max hits.
// A non-positive max selects DefaultCapacity.
func NewHitBuffer(max int) *HitBuffer {
	if max <= 0 {
		max = DefaultCapacity
	}
	return &HitBuffer{
		max: max,
		idx: make(map[Key][]int),
	}
}

// Cap returns the maximum number of hits the buffer can hold.
func (buf *HitBuffer) Cap() int { return buf.max }

// Len returns the number of hits in the buffer.
func (buf *HitBuffer) Len() int { return len(buf.hits) }

// Hits returns a copy of the buffered hits, in arrival order.
func (buf *HitBuffer) Hits() []Hit { return append([]Hit(nil), buf.hits...) }

// Lookup returns the hits recorded for the given key, in arrival order.
func (buf *HitBuffer) Lookup(k Key) []Hit {
	ids := buf.idx[k]
	if len(ids) == 0 {
		return nil
	}
	out := make([]Hit, len(ids))
	for i, id := range ids {
		out[i] = buf.hits[id]
	}
	return out
}

// Reset empties the buffer, keeping its allocated storage.
func (buf *HitBuffer) Reset() {
	buf.hits = buf.hits[:0]
	for k := range buf.idx {
		delete(buf.idx, k)
	}
}

// Insert stores a hit into the buffer.
//
// A leading-edge only hit completes the last hit of the same key if that
// one holds a trailing edge but no leading edge. Conversely, a
// trailing-edge only hit completes the last hit of the same key holding a
// leading edge but no trailing edge. Otherwise a new hit is appended.
//
// Insert returns ErrCapacity when a new hit would exceed the capacity of
// the buffer. The hits already stored are left untouched.
func (buf *HitBuffer) Insert(h Hit) error {
	k := h.Key()
	if ids := buf.idx[k]; len(ids) > 0 {
		last := &buf.hits[ids[len(ids)-1]]
		switch h.Edges {
		case EdgeLeading:
			if last.Edges == EdgeTrailing {
				last.setLeading(h.LeadingBin)
				last.ErrorFlag = last.ErrorFlag || h.ErrorFlag
				return nil
			}
		case EdgeTrailing:
			if last.Edges == EdgeLeading {
				last.setTrailing(h.TrailingBin)
				last.ErrorFlag = last.ErrorFlag || h.ErrorFlag
				return nil
			}
		}
	}

	if len(buf.hits) >= buf.max {
		return ErrCapacity
	}
	buf.idx[k] = append(buf.idx[k], len(buf.hits))
	buf.hits = append(buf.hits, h)
	return nil
}
