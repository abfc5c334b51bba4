// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// tof-dump decodes and displays TOF raw data files.
//
// Usage: tof-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> tof-dump -hits ./testdata/run_000042.raw
//	=== DDL 46 ===
//	CDH:    cdh{size=456 ddl=46 bc=100 orbit=0 l1=0x0 attrs=0x1 status=0x0}
//	DRM:    crate=2 sector=11 slots=0x7ff version=0x11 l0bcid=100 counter=0
//	LTM:    samples=144 counter=0
//	TRM:    slot=03 acq=packed chains=[bc=100 bc=100] counter=0
//	[...]
//	hits:   3
//	  hit{ddl=46 slot=3 chain=0 tdc=2 ch=5 ps=packed edges=3 time=1234 tot=42 err=false}
//	[...]
package main // import "github.com/go-lpc/tof/cmd/tof-dump"

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-lpc/tof/calib"
	"github.com/go-lpc/tof/internal/mmap"
	"github.com/go-lpc/tof/rawdata"
)

func main() {
	xmain(os.Stdout, os.Args[1:])
}

func xmain(w io.Writer, args []string) {
	log.SetPrefix("tof-dump: ")
	log.SetFlags(0)

	var (
		fset = flag.NewFlagSet("tof-dump", flag.ExitOnError)
		hits = fset.Bool("hits", false, "display decoded hits")
		bc   = fset.Bool("bc", false, "enable bunch crossing corrections")
		keep = fset.Bool("keep", false, "keep hits with an address translation error")
	)

	fset.Usage = func() {
		fmt.Printf(`tof-dump decodes and displays TOF raw data files.

Usage: tof-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> tof-dump -hits ./testdata/run_000042.raw

options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}

	if fset.NArg() == 0 {
		fset.Usage()
		log.Fatalf("missing path to input raw file")
	}

	dec := rawdata.NewDecoder(
		rawdata.WithLogger(log.New(io.Discard, "", 0)),
		rawdata.WithCorrector(calib.NewCorrector(calib.DefaultShifts(), *bc)),
		rawdata.WithKeepUnresolved(*keep),
	)

	for _, fname := range fset.Args() {
		err := process(w, fname, dec, *hits)
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

func process(w io.Writer, fname string, dec *rawdata.Decoder, hits bool) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	f, err := mmap.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	var (
		r     = rawdata.NewReader(f.Reader())
		stats rawdata.Stats
		nrecs int
	)
loop:
	for {
		rec, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break loop
			}
			return fmt.Errorf("could not read record %d: %w", nrecs, err)
		}
		nrecs++

		ddl, err := dec.DecodeRecord(rec)
		if err != nil {
			return fmt.Errorf("could not decode record %d: %w", nrecs-1, err)
		}
		stats.Add(ddl.Stats)
		dump(wbuf, ddl, hits)
	}

	fmt.Fprintf(wbuf, "=== summary ===\n")
	fmt.Fprintf(wbuf, "records:    % 10d\n", nrecs)
	fmt.Fprintf(wbuf, "words:      % 10d\n", stats.Words)
	fmt.Fprintf(wbuf, "hits:       % 10d\n", stats.Hits)
	fmt.Fprintf(wbuf, "structural: % 10d\n", stats.Structural)
	fmt.Fprintf(wbuf, "address:    % 10d\n", stats.Address)
	fmt.Fprintf(wbuf, "dropped:    % 10d\n", stats.Dropped)
	fmt.Fprintf(wbuf, "tdc-errors: % 10d\n", stats.TDCErrors)
	fmt.Fprintf(wbuf, "orphans:    % 10d\n", stats.Orphans)

	return nil
}

func dump(w io.Writer, ddl rawdata.DDL, hits bool) {
	fmt.Fprintf(w, "=== DDL %02d ===\n", ddl.ID)
	fmt.Fprintf(w, "CDH:    %v\n", ddl.Header)
	fmt.Fprintf(w, "DRM:    crate=%d sector=%d slots=0x%03x version=0x%x l0bcid=%d counter=%d\n",
		ddl.DRM.Crate, ddl.DRM.Sector, ddl.DRM.Participating,
		ddl.DRM.Version, ddl.DRM.L0BCID, ddl.DRM.Counter,
	)
	if len(ddl.LTM.Samples) > 0 {
		fmt.Fprintf(w, "LTM:    samples=%d counter=%d\n", len(ddl.LTM.Samples), ddl.LTM.Counter)
	}
	for _, trm := range ddl.TRMs {
		fmt.Fprintf(w, "TRM:    slot=%02d acq=%v chains=[bc=%d bc=%d] counter=%d\n",
			trm.Slot, trm.AcqMode,
			trm.Chains[0].BunchID, trm.Chains[1].BunchID,
			trm.Counter,
		)
	}
	for _, e := range ddl.TDCErrors {
		fmt.Fprintf(w, "TDC:    slot=%02d chain=%d tdc=%02d flags=0x%04x\n",
			e.Slot, e.Chain, e.TDC, e.Flags,
		)
	}

	fmt.Fprintf(w, "hits:   %d\n", len(ddl.Hits))
	if hits {
		for _, h := range ddl.Hits {
			switch h.AddrErr {
			case nil:
				fmt.Fprintf(w, "  %v %v\n", h, h.Vol)
			default:
				fmt.Fprintf(w, "  %v (%v)\n", h, h.AddrErr)
			}
		}
	}

	if len(ddl.Errors) > 0 {
		fmt.Fprintf(w, "errors: %d\n", len(ddl.Errors))
		for _, e := range ddl.Errors {
			fmt.Fprintf(w, "  %v\n", e)
		}
	}
}
