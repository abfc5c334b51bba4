// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rawdata

import (
	"reflect"
	"testing"

	"golang.org/x/xerrors"
)

func leading(slot, ch int, t int32) Hit {
	h := Hit{Slot: slot, Channel: ch, PS: LeadingHit}
	h.setLeading(t)
	return h
}

func trailing(slot, ch int, t int32) Hit {
	h := Hit{Slot: slot, Channel: ch, PS: TrailingHit}
	h.setTrailing(t)
	return h
}

func TestHitBufferCapacity(t *testing.T) {
	const max = 10
	buf := NewHitBuffer(max)
	if got, want := buf.Cap(), max; got != want {
		t.Fatalf("invalid capacity: got=%d, want=%d", got, want)
	}

	for i := 0; i < max; i++ {
		err := buf.Insert(leading(4, i%8, int32(i)))
		if err != nil {
			t.Fatalf("could not insert hit %d: %+v", i, err)
		}
	}
	want := append([]Hit(nil), buf.Hits()...)

	err := buf.Insert(leading(5, 0, 42))
	if !xerrors.Is(err, ErrCapacity) {
		t.Fatalf("invalid error: got=%v, want=%v", err, ErrCapacity)
	}
	if got := buf.Hits(); !reflect.DeepEqual(got, want) {
		t.Fatalf("buffer modified by overflowing insertion:\ngot= %v\nwant=%v", got, want)
	}

	// merging does not need room.
	err = buf.Insert(trailing(4, 1, 100))
	if err != nil {
		t.Fatalf("could not merge trailing edge into full buffer: %+v", err)
	}
	if got, want := buf.Len(), max; got != want {
		t.Fatalf("invalid length: got=%d, want=%d", got, want)
	}

	buf.Reset()
	if got, want := buf.Len(), 0; got != want {
		t.Fatalf("invalid length after reset: got=%d, want=%d", got, want)
	}
	if got := buf.Lookup(Key{Slot: 4, Channel: 1}); got != nil {
		t.Fatalf("invalid lookup after reset: %v", got)
	}
}

func TestHitBufferDefaultCapacity(t *testing.T) {
	for _, max := range []int{0, -1} {
		if got, want := NewHitBuffer(max).Cap(), DefaultCapacity; got != want {
			t.Fatalf("invalid capacity for %d: got=%d, want=%d", max, got, want)
		}
	}
}

func TestHitBufferPairing(t *testing.T) {
	key := Key{Slot: 7, Channel: 3}
	for _, tc := range []struct {
		name string
		hits []Hit
		want []Edge
		tots []int32
	}{
		{
			name: "leading-trailing",
			hits: []Hit{leading(7, 3, 10), trailing(7, 3, 30)},
			want: []Edge{EdgeBoth},
			tots: []int32{10},
		},
		{
			name: "trailing-leading",
			hits: []Hit{trailing(7, 3, 30), leading(7, 3, 10)},
			want: []Edge{EdgeBoth},
			tots: []int32{10},
		},
		{
			name: "complete-then-leading",
			hits: []Hit{leading(7, 3, 10), trailing(7, 3, 30), leading(7, 3, 50)},
			want: []Edge{EdgeBoth, EdgeLeading},
			tots: []int32{10, 0},
		},
		{
			name: "two-pairs",
			hits: []Hit{
				leading(7, 3, 10), trailing(7, 3, 30),
				leading(7, 3, 50), trailing(7, 3, 54),
			},
			want: []Edge{EdgeBoth, EdgeBoth},
			tots: []int32{10, 2},
		},
		{
			name: "two-leadings",
			hits: []Hit{leading(7, 3, 10), leading(7, 3, 20), trailing(7, 3, 40)},
			want: []Edge{EdgeLeading, EdgeBoth},
			tots: []int32{0, 10},
		},
		{
			name: "two-trailings",
			hits: []Hit{trailing(7, 3, 10), trailing(7, 3, 20)},
			want: []Edge{EdgeTrailing, EdgeTrailing},
			tots: []int32{0, 0},
		},
		{
			name: "other-channels",
			hits: []Hit{leading(7, 3, 10), trailing(7, 4, 30), trailing(8, 3, 30)},
			want: []Edge{EdgeLeading},
			tots: []int32{0},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			buf := NewHitBuffer(0)
			for i, h := range tc.hits {
				err := buf.Insert(h)
				if err != nil {
					t.Fatalf("could not insert hit %d: %+v", i, err)
				}
			}

			hits := buf.Lookup(key)
			var (
				edges []Edge
				tots  []int32
			)
			for _, h := range hits {
				edges = append(edges, h.Edges)
				tots = append(tots, h.TOTBin)
			}
			if !reflect.DeepEqual(edges, tc.want) {
				t.Fatalf("invalid edges: got=%v, want=%v", edges, tc.want)
			}
			if !reflect.DeepEqual(tots, tc.tots) {
				t.Fatalf("invalid tots: got=%v, want=%v", tots, tc.tots)
			}
		})
	}
}

func TestHitBufferHitsCopy(t *testing.T) {
	buf := NewHitBuffer(0)
	for i, h := range []Hit{leading(4, 0, 10), leading(4, 1, 20)} {
		err := buf.Insert(h)
		if err != nil {
			t.Fatalf("could not insert hit %d: %+v", i, err)
		}
	}

	hits := buf.Hits()
	hits[0] = leading(9, 7, 99)
	_ = append(hits[:1], leading(9, 6, 99))

	err := buf.Insert(trailing(4, 0, 30))
	if err != nil {
		t.Fatalf("could not insert trailing edge: %+v", err)
	}

	got := buf.Lookup(Key{Slot: 4, Channel: 0})
	if len(got) != 1 || got[0].Edges != EdgeBoth || got[0].LeadingBin != 10 {
		t.Fatalf("buffer modified through its hits: %v", got)
	}
	if got := buf.Lookup(Key{Slot: 4, Channel: 1}); len(got) != 1 || got[0].LeadingBin != 20 {
		t.Fatalf("buffer modified through its hits: %v", got)
	}
	if got := buf.Lookup(Key{Slot: 9, Channel: 7}); got != nil {
		t.Fatalf("invalid lookup: %v", got)
	}
}
