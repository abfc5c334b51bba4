// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rawdata

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/go-lpc/tof/geom"
)

func genDigits(n int, seed int64, channels []int) []Digit {
	rnd := rand.New(rand.NewSource(seed))
	digits := make([]Digit, n)
	for i := range digits {
		ch := rnd.Intn(geom.NChannels)
		if len(channels) > 0 {
			ch = channels[rnd.Intn(len(channels))]
		}
		digits[i] = Digit{
			Channel: ch,
			TimeBin: uint32(rnd.Intn(1 << 16)),
			TOTBin:  uint32(rnd.Intn(1 << 9)),
		}
	}
	return digits
}

type digitKey struct {
	ddl int
	key Key
}

func groupDigits(t *testing.T, tbl *geom.Tables, digits []Digit) map[digitKey][]Digit {
	t.Helper()
	out := make(map[digitKey][]Digit)
	for _, d := range digits {
		vol, err := geom.VolumeFromIndex(d.Channel)
		if err != nil {
			t.Fatalf("invalid channel %d: %+v", d.Channel, err)
		}
		eq, err := tbl.Equipment(vol)
		if err != nil {
			t.Fatalf("invalid volume %v: %+v", vol, err)
		}
		k := digitKey{
			ddl: eq.DDL,
			key: Key{uint8(eq.Slot), uint8(eq.Chain), uint8(eq.TDC), uint8(eq.Channel)},
		}
		out[k] = append(out[k], d)
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	tbl := geom.Default()
	trg := Trigger{BunchID: 1234, Orbit: 42, Counter: 7}

	// some channels hit several times.
	multi := []int{0, 1, 95, 96, 4242, geom.NChannels - 1}

	for _, tc := range []struct {
		name   string
		acq    AcqMode
		digits []Digit
		tot    bool
	}{
		{"packed", AcqPacked, genDigits(500, 1, nil), true},
		{"packed-multi", AcqPacked, genDigits(50, 2, multi), true},
		{"split", AcqSplit, genDigits(500, 3, nil), true},
		{"split-multi", AcqSplit, genDigits(50, 4, multi), true},
		{"leading", AcqLeading, genDigits(500, 5, nil), false},
		{"reserved", AcqReserved, genDigits(100, 6, nil), true},
		{"empty", AcqPacked, nil, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			enc := NewEncoder(WithAcqMode(tc.acq), WithTables(tbl))
			recs, err := enc.EncodeEvent(trg, tc.digits)
			if err != nil {
				t.Fatalf("could not encode event: %+v", err)
			}
			if got, want := len(recs), geom.NDDLs; got != want {
				t.Fatalf("invalid number of records: got=%d, want=%d", got, want)
			}

			dec := NewDecoder(discard, WithTables(tbl))
			ddls, err := dec.DecodeEvent(recs)
			if err != nil {
				t.Fatalf("could not decode event: %+v", err)
			}

			var (
				got   = make(map[digitKey][]Digit)
				stats Stats
			)
			for i, ddl := range ddls {
				if ddl.ID != i {
					t.Fatalf("invalid DDL ID: got=%d, want=%d", ddl.ID, i)
				}
				if ddl.State.Level != Idle {
					t.Fatalf("DDL %d: invalid final state %v", i, ddl.State)
				}
				stats.Add(ddl.Stats)
				for _, h := range ddl.Hits {
					if h.DDL != i {
						t.Fatalf("invalid hit DDL: got=%d, want=%d", h.DDL, i)
					}
					idx, err := h.Index()
					if err != nil {
						t.Fatalf("could not compute index of %v: %+v", h, err)
					}
					k := digitKey{ddl: h.DDL, key: h.Key()}
					got[k] = append(got[k], Digit{
						Channel: idx,
						TimeBin: uint32(h.TimeBin),
						TOTBin:  uint32(h.TOTBin),
					})
				}
			}

			if stats.Structural != 0 || stats.Address != 0 || stats.Dropped != 0 {
				t.Fatalf("invalid stats: %+v", stats)
			}
			if got, want := stats.Hits, len(tc.digits); got != want {
				t.Fatalf("invalid number of hits: got=%d, want=%d", got, want)
			}

			want := groupDigits(t, tbl, tc.digits)
			if !tc.tot {
				for k, ds := range want {
					for i := range ds {
						ds[i].TOTBin = 0
					}
					want[k] = ds
				}
			}
			if len(got) != len(want) {
				t.Fatalf("invalid number of channels: got=%d, want=%d", len(got), len(want))
			}
			for k, v := range want {
				if !reflect.DeepEqual(got[k], v) {
					t.Fatalf("invalid digits for %v:\ngot= %+v\nwant=%+v", k, got[k], v)
				}
			}
		})
	}
}

func TestEncodeLayout(t *testing.T) {
	const ddl = 46
	trg := Trigger{BunchID: 3000, Counter: 0xabc}
	enc := NewEncoder(WithAcqMode(AcqSplit))

	// find a channel read out by the DDL.
	var digits []Digit
	for ch := 0; ch < geom.NChannels && len(digits) < 3; ch++ {
		vol, _ := geom.VolumeFromIndex(ch)
		eq, err := geom.Default().Equipment(vol)
		if err != nil || eq.DDL != ddl {
			continue
		}
		digits = append(digits, Digit{Channel: ch, TimeBin: 100, TOTBin: 10})
	}
	if len(digits) != 3 {
		t.Fatalf("could not find channels for DDL %d", ddl)
	}

	ws, err := enc.Encode(ddl, trg, digits)
	if err != nil {
		t.Fatalf("could not encode: %+v", err)
	}

	if len(ws)%2 != 0 {
		t.Fatalf("odd number of words: %d", len(ws))
	}
	n := len(ws)
	if ws[n-1] == fillerWord {
		n--
	}

	if got, want := TypeOf(ws[0]), GlobalHeader; got != want {
		t.Fatalf("invalid first word type: got=%v, want=%v", got, want)
	}
	if got, want := fSlot.Get(ws[0]), uint32(slotDRM); got != want {
		t.Fatalf("invalid first word slot: got=%d, want=%d", got, want)
	}
	if got, want := TypeOf(ws[n-1]), GlobalTrailer; got != want {
		t.Fatalf("invalid last word type: got=%v, want=%v", got, want)
	}
	if got, want := fSlot.Get(ws[n-1]), uint32(slotDRM); got != want {
		t.Fatalf("invalid last word slot: got=%d, want=%d", got, want)
	}

	dec := NewDecoder(discard)
	out, err := dec.Decode(ddl, ws)
	if err != nil {
		t.Fatalf("could not decode: %+v", err)
	}

	if got, want := out.DRM.Words, uint32(n); got != want {
		t.Fatalf("invalid DRM words count: got=%d, want=%d", got, want)
	}
	if got, want := int(out.DRM.Sector), geom.SectorOf(ddl); got != want {
		t.Fatalf("invalid sector: got=%d, want=%d", got, want)
	}
	if got, want := int(out.DRM.Crate), geom.DDLInSector(ddl); got != want {
		t.Fatalf("invalid crate: got=%d, want=%d", got, want)
	}
	if got, want := out.DRM.L0BCID, trg.BunchID; got != want {
		t.Fatalf("invalid L0 BCID: got=%d, want=%d", got, want)
	}
	if got, want := out.DRM.Counter, uint16(0xabc); got != want {
		t.Fatalf("invalid DRM counter: got=0x%x, want=0x%x", got, want)
	}
	if got, want := len(out.LTM.Samples), nLTMSamples; got != want {
		t.Fatalf("invalid number of LTM samples: got=%d, want=%d", got, want)
	}

	// DDL 46: second half of the sector, all slots cabled.
	if got, want := len(out.TRMs), geom.NTRMs; got != want {
		t.Fatalf("invalid number of TRMs: got=%d, want=%d", got, want)
	}
	words := uint32(0)
	for i, trm := range out.TRMs {
		if got, want := int(trm.Slot), firstTRMSlot+i; got != want {
			t.Fatalf("invalid TRM slot: got=%d, want=%d", got, want)
		}
		if got, want := trm.AcqMode, AcqSplit; got != want {
			t.Fatalf("invalid acquisition mode: got=%v, want=%v", got, want)
		}
		for _, chain := range trm.Chains {
			if got, want := chain.BunchID, trg.BunchID; got != want {
				t.Fatalf("invalid chain bunch ID: got=%d, want=%d", got, want)
			}
		}
		words += trm.Words
	}
	// DRM header, 4 status headers, LTM block, TRM blocks and DRM trailer.
	if got, want := words, uint32(n-1-4-(nLTMDataWords+2)-1); got != want {
		t.Fatalf("invalid TRM words count: got=%d, want=%d", got, want)
	}
	if got, want := len(out.Hits), len(digits); got != want {
		t.Fatalf("invalid number of hits: got=%d, want=%d", got, want)
	}
}

func TestEncodeUncabledSlots(t *testing.T) {
	enc := NewEncoder()
	dec := NewDecoder(discard)
	for _, tc := range []struct {
		ddl  int
		trms int
	}{
		{0, geom.NTRMs - 1},
		{1, geom.NTRMs - 1},
		{2, geom.NTRMs},
		{3, geom.NTRMs},
	} {
		ws, err := enc.Encode(tc.ddl, Trigger{}, nil)
		if err != nil {
			t.Fatalf("could not encode DDL %d: %+v", tc.ddl, err)
		}
		ddl, err := dec.Decode(tc.ddl, ws)
		if err != nil {
			t.Fatalf("could not decode DDL %d: %+v", tc.ddl, err)
		}
		if got, want := len(ddl.TRMs), tc.trms; got != want {
			t.Fatalf("DDL %d: invalid number of TRMs: got=%d, want=%d", tc.ddl, got, want)
		}
		mask := uint16(1)
		for _, trm := range ddl.TRMs {
			mask |= 1 << (trm.Slot - slotLTM)
		}
		if got, want := ddl.DRM.SlotEnable, mask; got != want {
			t.Fatalf("DDL %d: invalid slot mask: got=0x%x, want=0x%x", tc.ddl, got, want)
		}
	}
}

func TestEncodeNoise(t *testing.T) {
	digits := genDigits(200, 42, nil)
	for _, tc := range []struct {
		name string
		acq  AcqMode
	}{
		{"packed", AcqPacked},
		{"split", AcqSplit},
		{"leading", AcqLeading},
	} {
		t.Run(tc.name, func(t *testing.T) {
			enc := NewEncoder(WithAcqMode(tc.acq), WithNoise(1), WithSeed(42))
			recs, err := enc.EncodeEvent(Trigger{}, digits)
			if err != nil {
				t.Fatalf("could not encode event: %+v", err)
			}

			dec := NewDecoder(discard)
			ddls, err := dec.DecodeEvent(recs)
			if err != nil {
				t.Fatalf("could not decode event: %+v", err)
			}

			var stats Stats
			for _, ddl := range ddls {
				stats.Add(ddl.Stats)
			}

			nkeys := len(groupDigits(t, geom.Default(), digits))
			if got, want := stats.Hits, len(digits)+nkeys; got != want {
				t.Fatalf("invalid number of hits: got=%d, want=%d", got, want)
			}

			orphans := nkeys
			if tc.acq == AcqLeading {
				orphans += len(digits)
			}
			if got, want := stats.Orphans, orphans; got != want {
				t.Fatalf("invalid number of orphans: got=%d, want=%d", got, want)
			}
		})
	}
}

func TestDecodeEventRejectedRecord(t *testing.T) {
	tbl := geom.Default()
	vol, err := geom.VolumeFromIndex(0)
	if err != nil {
		t.Fatalf("could not get volume: %+v", err)
	}
	eq, err := tbl.Equipment(vol)
	if err != nil {
		t.Fatalf("could not get equipment: %+v", err)
	}
	bad := (eq.DDL + 5) % geom.NDDLs

	for _, tc := range []struct {
		name    string
		corrupt func(rec *Record)
	}{
		{"invalid-ddl", func(rec *Record) { rec.Header.DDL = 200 }},
		{"incomplete", func(rec *Record) { rec.Header.Attributes = 0 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			enc := NewEncoder(WithTables(tbl))
			recs, err := enc.EncodeEvent(Trigger{BunchID: 10}, []Digit{{Channel: 0, TimeBin: 100, TOTBin: 10}})
			if err != nil {
				t.Fatalf("could not encode event: %+v", err)
			}
			tc.corrupt(&recs[bad])

			dec := NewDecoder(discard, WithTables(tbl))
			ddls, err := dec.DecodeEvent(recs)
			if err != nil {
				t.Fatalf("could not decode event: %+v", err)
			}
			if got, want := len(ddls), geom.NDDLs; got != want {
				t.Fatalf("invalid number of DDLs: got=%d, want=%d", got, want)
			}

			var stats Stats
			for _, ddl := range ddls {
				stats.Add(ddl.Stats)
			}
			if got, want := stats.Structural, 1; got != want {
				t.Fatalf("invalid number of structural errors: got=%d, want=%d", got, want)
			}
			if got := ddls[bad]; len(got.Errors) != 1 || len(got.Hits) != 0 {
				t.Fatalf("invalid rejected record: errors=%v, hits=%d", got.Errors, len(got.Hits))
			}

			hits := ddls[eq.DDL].Hits
			if len(hits) != 1 {
				t.Fatalf("invalid number of hits: got=%d, want=1", len(hits))
			}
			if idx, err := hits[0].Index(); err != nil || idx != 0 {
				t.Fatalf("invalid hit index: idx=%d, err=%v", idx, err)
			}
		})
	}
}

func TestEncodeLeadingRange(t *testing.T) {
	tbl := geom.Default()
	digit := Digit{Channel: 0, TimeBin: 1<<21 - 10, TOTBin: 5}

	enc := NewEncoder(WithAcqMode(AcqLeading), WithTables(tbl))
	recs, err := enc.EncodeEvent(Trigger{}, []Digit{digit})
	if err != nil {
		t.Fatalf("could not encode leading edge: %+v", err)
	}

	dec := NewDecoder(discard, WithTables(tbl))
	ddls, err := dec.DecodeEvent(recs)
	if err != nil {
		t.Fatalf("could not decode event: %+v", err)
	}
	var hits []Hit
	for _, ddl := range ddls {
		hits = append(hits, ddl.Hits...)
	}
	if len(hits) != 1 {
		t.Fatalf("invalid number of hits: got=%d, want=1", len(hits))
	}
	if got, want := hits[0].TimeBin, int32(digit.TimeBin); got != want {
		t.Fatalf("invalid time: got=%d, want=%d", got, want)
	}

	_, err = NewEncoder(WithAcqMode(AcqSplit), WithTables(tbl)).EncodeEvent(Trigger{}, []Digit{digit})
	if err == nil {
		t.Fatalf("expected an error for the trailing edge")
	}
}

func TestEncodeInvalid(t *testing.T) {
	enc := NewEncoder()
	for _, tc := range []struct {
		name   string
		ddl    int
		digits []Digit
	}{
		{"negative-ddl", -1, nil},
		{"ddl-overflow", geom.NDDLs, nil},
		{"negative-channel", 0, []Digit{{Channel: -1}}},
		{"channel-overflow", 0, []Digit{{Channel: geom.NChannels}}},
		{"time-overflow", 0, []Digit{{Channel: 0, TimeBin: 1 << 21}}},
		{"tot-overflow", 0, []Digit{{Channel: 0, TimeBin: 1<<21 - 10, TOTBin: 5}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			vol, _ := geom.VolumeFromIndex(0)
			eq, _ := geom.Default().Equipment(vol)
			ddl := tc.ddl
			if ddl == 0 {
				ddl = eq.DDL
			}
			_, err := enc.Encode(ddl, Trigger{}, tc.digits)
			if err == nil {
				t.Fatalf("expected an error")
			}
		})
	}

	_, err := enc.EncodeEvent(Trigger{}, []Digit{{Channel: geom.NChannels}})
	if err == nil {
		t.Fatalf("expected an error")
	}
}
