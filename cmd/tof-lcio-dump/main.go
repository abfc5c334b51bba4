// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// tof-lcio-dump displays the TOF raw data and hits embedded in LCIO files.
//
// Usage: tof-lcio-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> tof-lcio-dump -hits ./testdata/run_000042.slcio
//	=== event 0 (run 42) ===
//	records:    72
//	hits:        3
//	  hit{ddl=46 slot=3 chain=0 tdc=2 ch=5 ps=packed edges=3 time=1234 tot=42 err=false}
//	[...]
package main // import "github.com/go-lpc/tof/cmd/tof-lcio-dump"

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-lpc/tof/internal/xcnv"
	"github.com/go-lpc/tof/rawdata"
	"go-hep.org/x/hep/lcio"
)

const usage = `tof-lcio-dump displays the TOF raw data and hits embedded in LCIO files.

Usage: tof-lcio-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> tof-lcio-dump -hits ./testdata/run_000042.slcio

options:
`

func main() {
	xmain(os.Stdout, os.Args[1:])
}

func xmain(w io.Writer, args []string) {
	log.SetPrefix("tof-lcio-dump: ")
	log.SetFlags(0)

	var (
		fset = flag.NewFlagSet("tof-lcio-dump", flag.ExitOnError)

		hits  = fset.Bool("hits", false, "display stored hits")
		check = fset.Bool("check", false, "decode raw records and check them against stored hits")
	)

	fset.Usage = func() {
		fmt.Print(usage)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}

	if fset.NArg() == 0 {
		fset.Usage()
		log.Fatalf("missing path to input LCIO file")
	}

	for _, fname := range fset.Args() {
		err := process(w, fname, *hits, *check)
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

func process(w io.Writer, fname string, hits, check bool) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	r, err := lcio.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open LCIO file: %w", err)
	}
	defer r.Close()

	dec := rawdata.NewDecoder(rawdata.WithLogger(log.New(io.Discard, "", 0)))

	for i := 0; r.Next(); i++ {
		evt := r.Event()
		recs, err := xcnv.Records(&evt)
		if err != nil {
			return fmt.Errorf("could not read raw records of event %d: %w", i, err)
		}
		stored, err := xcnv.Hits(&evt)
		if err != nil {
			return fmt.Errorf("could not read hits of event %d: %w", i, err)
		}

		fmt.Fprintf(wbuf, "=== event %d (run %d) ===\n", evt.EventNumber, evt.RunNumber)
		fmt.Fprintf(wbuf, "records: % 5d\n", len(recs))
		fmt.Fprintf(wbuf, "hits:    % 5d\n", len(stored))
		if hits {
			for _, h := range stored {
				fmt.Fprintf(wbuf, "  %v\n", h)
			}
		}

		if !check {
			continue
		}

		ddls, err := dec.DecodeEvent(recs)
		if err != nil {
			return fmt.Errorf("could not decode event %d: %w", i, err)
		}
		n := 0
		for _, ddl := range ddls {
			n += len(ddl.Hits)
		}
		if n != len(stored) {
			return fmt.Errorf(
				"event %d: decoded hits mismatch (stored=%d, decoded=%d)",
				i, len(stored), n,
			)
		}
	}

	err = r.Err()
	if err != nil && err != io.EOF {
		return fmt.Errorf("could not read LCIO events: %w", err)
	}

	return nil
}
