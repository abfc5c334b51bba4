// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"compress/flate"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-lpc/tof/calib"
	"github.com/go-lpc/tof/internal/xcnv"
	"github.com/go-lpc/tof/rawdata"
	"go-hep.org/x/hep/lcio"
)

func TestRunNbrFrom(t *testing.T) {
	for _, tc := range []struct {
		fname string
		run   int32
	}{
		{
			fname: "./run_000063.raw",
			run:   63,
		},
		{
			fname: "/some/dir/run_000663.raw",
			run:   663,
		},
		{
			fname: "../some/dir/run_9.raw",
			run:   9,
		},
	} {
		t.Run(tc.fname, func(t *testing.T) {
			got, err := runNbrFrom(tc.fname)
			if err != nil {
				t.Fatalf("could not infer run-nbr: %+v", err)
			}
			if got != tc.run {
				t.Fatalf("invalid run: got=%d, want=%d", got, tc.run)
			}
		})
	}

	_, err := runNbrFrom("eda_063.000.raw")
	if err == nil {
		t.Fatalf("expected an error")
	}
}

func TestCorrector(t *testing.T) {
	cor, err := corrector("", 42, false)
	if err != nil {
		t.Fatalf("could not create corrector: %+v", err)
	}
	if cor.Enabled() {
		t.Fatalf("corrections should be disabled")
	}

	cor, err = corrector("", 42, true)
	if err != nil {
		t.Fatalf("could not create corrector: %+v", err)
	}
	if !cor.Enabled() {
		t.Fatalf("corrections should be enabled")
	}
	if got, want := cor.Shift(0), int(calib.DefaultShifts()[0]); got != want {
		t.Fatalf("invalid shift: got=%d, want=%d", got, want)
	}
}

func TestTOF2LCIO(t *testing.T) {
	msg.SetOutput(io.Discard)
	defer msg.SetOutput(os.Stdout)

	tmp := t.TempDir()
	fname := filepath.Join(tmp, "run_000063.raw")

	f, err := os.Create(fname)
	if err != nil {
		t.Fatalf("could not create raw file: %+v", err)
	}
	defer f.Close()

	var (
		w    = rawdata.NewWriter(f)
		enc  = rawdata.NewEncoder()
		nevt = 4
	)
	for i := 0; i < nevt; i++ {
		trg := rawdata.Trigger{BunchID: uint16(i + 1), Orbit: uint32(i)}
		recs, err := enc.EncodeEvent(trg, []rawdata.Digit{
			{Channel: 100 * i, TimeBin: 1000, TOTBin: 100},
		})
		if err != nil {
			t.Fatalf("could not encode event %d: %+v", i, err)
		}
		for _, rec := range recs {
			err = w.WriteRecord(rec)
			if err != nil {
				t.Fatalf("could not write record: %+v", err)
			}
		}
	}
	err = f.Close()
	if err != nil {
		t.Fatalf("could not close raw file: %+v", err)
	}

	oname := fname + ".slcio"
	err = process(oname, flate.DefaultCompression, fname, 63, calib.Disabled())
	if err != nil {
		t.Fatalf("could not convert raw file: %+v", err)
	}

	r, err := lcio.Open(oname)
	if err != nil {
		t.Fatalf("could not open LCIO file: %+v", err)
	}
	defer r.Close()

	n := 0
	for r.Next() {
		evt := r.Event()
		if got, want := evt.RunNumber, int32(63); got != want {
			t.Fatalf("invalid run number: got=%d, want=%d", got, want)
		}
		hits, err := xcnv.Hits(&evt)
		if err != nil {
			t.Fatalf("could not extract hits of event %d: %+v", n, err)
		}
		if got, want := len(hits), 1; got != want {
			t.Fatalf("invalid number of hits in event %d: got=%d, want=%d", n, got, want)
		}
		n++
	}
	err = r.Err()
	if err != nil && err != io.EOF {
		t.Fatalf("could not read LCIO file: %+v", err)
	}
	if n != nevt {
		t.Fatalf("invalid number of events: got=%d, want=%d", n, nevt)
	}
}
