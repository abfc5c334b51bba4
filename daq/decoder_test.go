// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"context"
	"io"
	"log"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"github.com/go-daq/tdaq"
	tlog "github.com/go-daq/tdaq/log"
	"github.com/go-lpc/tof/geom"
	"github.com/go-lpc/tof/rawdata"
)

func newContext(ctx context.Context) tdaq.Context {
	return tdaq.Context{
		Ctx: ctx,
		Msg: tlog.NewMsgStream("tof-daq", tlog.LvlError, io.Discard),
	}
}

func newDecoder() *rawdata.Decoder {
	return rawdata.NewDecoder(rawdata.WithLogger(log.New(io.Discard, "", 0)))
}

func genEvent(t *testing.T, n int, seed int64) []byte {
	t.Helper()
	rnd := rand.New(rand.NewSource(seed))
	digits := make([]rawdata.Digit, n)
	for i := range digits {
		digits[i] = rawdata.Digit{
			Channel: rnd.Intn(geom.NChannels),
			TimeBin: uint32(rnd.Intn(1 << 16)),
			TOTBin:  uint32(rnd.Intn(1 << 8)),
		}
	}

	enc := rawdata.NewEncoder(rawdata.WithAcqMode(rawdata.AcqPacked))
	recs, err := enc.EncodeEvent(rawdata.Trigger{BunchID: 42, Orbit: uint32(seed)}, digits)
	if err != nil {
		t.Fatalf("could not encode event: %+v", err)
	}
	var buf []byte
	for _, rec := range recs {
		buf = rawdata.AppendRecord(buf, rec)
	}
	return buf
}

// badEvent returns an event whose records each hold a DRM trailer
// outside of any DRM block.
func badEvent(n int) []byte {
	var buf []byte
	for i := 0; i < n; i++ {
		buf = rawdata.AppendRecord(buf, rawdata.Record{
			Header: rawdata.DataHeader{DDL: uint8(i)},
			Words:  []uint32{0x5000_0001},
		})
	}
	return buf
}

func decodeHits(t *testing.T, raw []byte) []rawdata.Hit {
	t.Helper()
	recs, err := readRecords(raw)
	if err != nil {
		t.Fatalf("could not read records: %+v", err)
	}
	ddls, err := newDecoder().DecodeEvent(recs)
	if err != nil {
		t.Fatalf("could not decode event: %+v", err)
	}
	var hits []rawdata.Hit
	for _, ddl := range ddls {
		hits = append(hits, ddl.Hits...)
	}
	return hits
}

func TestHitFrame(t *testing.T) {
	want := decodeHits(t, genEvent(t, 50, 1))
	if len(want) == 0 {
		t.Fatalf("no hits decoded")
	}
	want = append(want, rawdata.Hit{
		DDL:       3,
		Slot:      12,
		Chain:     1,
		TDC:       14,
		Channel:   7,
		PS:        rawdata.LeadingHit,
		Edges:     rawdata.EdgeLeading,
		ErrorFlag: true,
		TimeBin:   1024,
		AddrErr:   geom.ErrPlate,
	})

	raw, err := MarshalHits(want)
	if err != nil {
		t.Fatalf("could not marshal hits: %+v", err)
	}
	if got, want := len(raw), 4+len(want)*hitSize; got != want {
		t.Fatalf("invalid frame size: got=%d, want=%d", got, want)
	}

	got, err := UnmarshalHits(raw)
	if err != nil {
		t.Fatalf("could not unmarshal hits: %+v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("invalid number of hits: got=%d, want=%d", len(got), len(want))
	}

	for i := range got {
		g, w := got[i], want[i]
		if (g.AddrErr == nil) != (w.AddrErr == nil) {
			t.Fatalf("hit[%d]: invalid address error: got=%v, want=%v", i, g.AddrErr, w.AddrErr)
		}
		g.AddrErr = nil
		w.AddrErr = nil
		if !reflect.DeepEqual(g, w) {
			t.Fatalf("hit[%d]: invalid round-trip:\ngot= %v\nwant=%v", i, g, w)
		}
	}
}

func TestUnmarshalHitsErrors(t *testing.T) {
	raw, err := MarshalHits(decodeHits(t, genEvent(t, 5, 2)))
	if err != nil {
		t.Fatalf("could not marshal hits: %+v", err)
	}

	for _, tc := range []struct {
		name string
		raw  []byte
		want string
	}{
		{"empty", nil, "daq: could not decode hit frame size"},
		{"truncated", raw[:len(raw)-3], "daq: could not decode hit frame"},
		{"bad-size", []byte{0xff, 0xff, 0, 0}, "daq: invalid hit frame size"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := UnmarshalHits(tc.raw)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if got := err.Error(); !strings.HasPrefix(got, tc.want) {
				t.Fatalf("invalid error:\ngot= %q\nwant=%q", got, tc.want)
			}
		})
	}
}

func TestDecoderRun(t *testing.T) {
	srv := New("tof-daq", newDecoder(), WithQueue(4))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tctx := newContext(ctx)

	err := srv.OnInit(tctx, nil, tdaq.Frame{})
	if err != nil {
		t.Fatalf("could not init: %+v", err)
	}

	done := make(chan error)
	go func() {
		done <- srv.Run(tctx)
	}()

	const nevts = 3
	var want [][]rawdata.Hit
	for i := 0; i < nevts; i++ {
		raw := genEvent(t, 20, int64(i+1))
		want = append(want, decodeHits(t, raw))
		err := srv.Raw(tctx, tdaq.Frame{Body: raw})
		if err != nil {
			t.Fatalf("could not send event %d: %+v", i, err)
		}
	}

	for i := 0; i < nevts; i++ {
		var dst tdaq.Frame
		err := srv.Hits(tctx, &dst)
		if err != nil {
			t.Fatalf("could not receive event %d: %+v", i, err)
		}
		got, err := UnmarshalHits(dst.Body)
		if err != nil {
			t.Fatalf("could not unmarshal event %d: %+v", i, err)
		}
		if got, want := len(got), len(want[i]); got != want {
			t.Fatalf("event %d: invalid number of hits: got=%d, want=%d", i, got, want)
		}
	}

	cancel()
	err = <-done
	if err != nil {
		t.Fatalf("could not run: %+v", err)
	}

	n, nrecs, stats := srv.Stats()
	if got, want := n, nevts; got != want {
		t.Fatalf("invalid number of events: got=%d, want=%d", got, want)
	}
	if got, want := nrecs, nevts*geom.NDDLs; got != want {
		t.Fatalf("invalid number of records: got=%d, want=%d", got, want)
	}
	if stats.Structural != 0 {
		t.Fatalf("unexpected structural errors: %d", stats.Structural)
	}

	err = srv.Raw(tctx, tdaq.Frame{Body: []byte{1, 2, 3}})
	if err == nil {
		t.Fatalf("expected an error on an invalid raw frame")
	}
}

type alerter struct {
	subject string
	body    string
	n       int
}

func (a *alerter) Alert(subject, body string) error {
	a.subject = subject
	a.body = body
	a.n++
	return nil
}

func TestDecoderAlert(t *testing.T) {
	for _, tc := range []struct {
		name  string
		rate  float64
		raw   []byte
		alert bool
	}{
		{"clean", 0.1, genEvent(t, 10, 3), false},
		{"errors", 0.1, badEvent(4), true},
		{"errors-below-threshold", 2, badEvent(4), false},
		{"disabled", 0, badEvent(4), false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var (
				mail = new(alerter)
				srv  = New("tof-daq", newDecoder(), WithAlerter(mail), WithMaxErrorRate(tc.rate))
				tctx = newContext(context.Background())
			)

			recs, err := readRecords(tc.raw)
			if err != nil {
				t.Fatalf("could not read records: %+v", err)
			}
			_, err = srv.process(recs)
			if err != nil {
				t.Fatalf("could not process event: %+v", err)
			}

			err = srv.OnStop(tctx, nil, tdaq.Frame{})
			if err != nil {
				t.Fatalf("could not stop: %+v", err)
			}

			switch {
			case tc.alert:
				if mail.n != 1 {
					t.Fatalf("expected one alert, got %d", mail.n)
				}
				if !strings.Contains(mail.body, "structural: 4") {
					t.Fatalf("invalid alert body:\n%s", mail.body)
				}
			default:
				if mail.n != 0 {
					t.Fatalf("unexpected alert:\n%s", mail.body)
				}
			}

			err = srv.OnReset(tctx, nil, tdaq.Frame{})
			if err != nil {
				t.Fatalf("could not reset: %+v", err)
			}
			if n, _, _ := srv.Stats(); n != 0 {
				t.Fatalf("stats not reset")
			}
		})
	}
}

func TestDecoderRejectedRecord(t *testing.T) {
	recs, err := readRecords(genEvent(t, 200, 5))
	if err != nil {
		t.Fatalf("could not read records: %+v", err)
	}
	const bad = 3

	var want []rawdata.Hit
	for _, h := range decodeHits(t, genEvent(t, 200, 5)) {
		if h.DDL != bad {
			want = append(want, h)
		}
	}
	if len(want) == 0 {
		t.Fatalf("no hits decoded")
	}

	recs[bad].Header.DDL = 250
	srv := New("tof-daq", newDecoder())
	raw, err := srv.process(recs)
	if err != nil {
		t.Fatalf("could not process event: %+v", err)
	}
	got, err := UnmarshalHits(raw)
	if err != nil {
		t.Fatalf("could not unmarshal hits: %+v", err)
	}
	if got, want := len(got), len(want); got != want {
		t.Fatalf("invalid number of hits: got=%d, want=%d", got, want)
	}

	nevts, nrecs, stats := srv.Stats()
	if nevts != 1 || nrecs != geom.NDDLs {
		t.Fatalf("invalid counters: nevts=%d, nrecs=%d", nevts, nrecs)
	}
	if got, want := stats.Structural, 1; got != want {
		t.Fatalf("invalid number of structural errors: got=%d, want=%d", got, want)
	}
}
