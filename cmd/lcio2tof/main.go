// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command lcio2tof extracts the TOF raw data records stored in a LCIO
// file into a raw data file.
package main // import "github.com/go-lpc/tof/cmd/lcio2tof"

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-lpc/tof/internal/xcnv"
	"github.com/go-lpc/tof/rawdata"
	"go-hep.org/x/hep/lcio"
)

var (
	msg = log.New(os.Stdout, "lcio2tof: ", 0)
)

func main() {
	var (
		oname = flag.String("o", "out.raw", "path to output raw file")
	)

	flag.Usage = func() {
		fmt.Printf(`Usage: lcio2tof [OPTIONS] file.slcio

ex:
 $> lcio2tof -o out.raw ./input.slcio

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		msg.Fatalf("missing input LCIO file")
	}

	if *oname == "" {
		flag.Usage()
		msg.Fatalf("invalid output raw file name")
	}

	n, err := numEvents(flag.Arg(0))
	if err != nil {
		msg.Fatalf("could not assess number of events: %+v", err)
	}
	msg.Printf("input:  %s", flag.Arg(0))
	msg.Printf("events: %d", n)

	err = process(*oname, flag.Arg(0), int(n/10))
	if err != nil {
		msg.Fatalf("could not convert LCIO file: %+v", err)
	}
}

func numEvents(fname string) (int64, error) {
	r, err := lcio.Open(fname)
	if err != nil {
		return 0, fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer r.Close()

	var n int64
	for r.Next() {
		n++
	}

	err = r.Err()
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("could not assess number of events in %q: %w", fname, err)
	}

	return n, nil
}

func process(oname, fname string, freq int) error {
	r, err := lcio.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open LCIO file: %w", err)
	}
	defer r.Close()

	f, err := os.Create(oname)
	if err != nil {
		return fmt.Errorf("could not create output raw file: %w", err)
	}
	defer f.Close()

	err = xcnv.LCIO2Raw(rawdata.NewWriter(f), r, freq, msg)
	if err != nil {
		return fmt.Errorf("could not extract raw records: %w", err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("could not close output raw file: %w", err)
	}
	return nil
}
