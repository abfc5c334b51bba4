// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tof2lcio converts a TOF raw data file to an LCIO one.
package main // import "github.com/go-lpc/tof/cmd/tof2lcio"

import (
	"compress/flate"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/go-lpc/tof/calib"
	"github.com/go-lpc/tof/conddb"
	"github.com/go-lpc/tof/internal/mmap"
	"github.com/go-lpc/tof/internal/xcnv"
	"github.com/go-lpc/tof/rawdata"
	"go-hep.org/x/hep/lcio"

	_ "github.com/go-sql-driver/mysql"
)

var (
	msg = log.New(os.Stdout, "tof2lcio: ", 0)
)

func main() {
	var (
		oname = flag.String("o", "out.slcio", "path to output LCIO file")
		compr = flag.Int("lvl", flate.DefaultCompression, "compression level for output LCIO file")
		run   = flag.Int("run", -1, "run number (default: inferred from input file name)")
		bc    = flag.Bool("bc", false, "enable bunch crossing corrections")
		db    = flag.String("db", "", "name of the condition database holding the DDL shifts")
	)

	flag.Usage = func() {
		fmt.Printf(`Usage: tof2lcio [OPTIONS] file.raw

ex:
 $> tof2lcio -o out.slcio -lvl=9 ./run_000042.raw
 $> tof2lcio -o out.slcio -bc -db=tofcond ./run_000042.raw

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		msg.Fatalf("missing input raw file")
	}

	if *oname == "" {
		flag.Usage()
		msg.Fatalf("invalid output LCIO file name")
	}

	irun := int32(*run)
	if irun < 0 {
		v, err := runNbrFrom(flag.Arg(0))
		if err != nil {
			msg.Fatalf("could not infer run from %q: %+v", flag.Arg(0), err)
		}
		irun = v
	}

	cor, err := corrector(*db, uint32(irun), *bc)
	if err != nil {
		msg.Fatalf("could not setup bunch crossing corrections: %+v", err)
	}

	err = process(*oname, *compr, flag.Arg(0), irun, cor)
	if err != nil {
		msg.Fatalf("could not convert raw file: %+v", err)
	}
}

func corrector(dbname string, run uint32, enabled bool) (*calib.Corrector, error) {
	if !enabled {
		return calib.Disabled(), nil
	}
	if dbname == "" {
		return calib.NewCorrector(calib.DefaultShifts(), true), nil
	}

	db, err := conddb.Open(dbname)
	if err != nil {
		return nil, fmt.Errorf("could not open condition db: %w", err)
	}
	defer db.Close()

	return db.Corrector(context.Background(), run)
}

func process(oname string, lvl int, fname string, run int32, cor *calib.Corrector) error {
	f, err := mmap.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open raw file: %w", err)
	}
	defer f.Close()

	w, err := lcio.Create(oname)
	if err != nil {
		return fmt.Errorf("could not create output LCIO file: %w", err)
	}
	defer w.Close()

	w.SetCompressionLevel(lvl)

	dec := rawdata.NewDecoder(
		rawdata.WithLogger(msg),
		rawdata.WithCorrector(cor),
	)
	err = xcnv.Raw2LCIO(w, rawdata.NewReader(f.Reader()), dec, run, msg)
	if err != nil {
		return fmt.Errorf("could not convert raw data to LCIO: %w", err)
	}

	err = w.Close()
	if err != nil {
		return fmt.Errorf("could not close output LCIO file: %w", err)
	}

	return nil
}

func runNbrFrom(fname string) (int32, error) {
	var (
		name = filepath.Base(fname)
		run  int32
	)
	_, err := fmt.Sscanf(name, "run_%d.raw", &run)
	return run, err
}
