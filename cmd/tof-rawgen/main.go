// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tof-rawgen generates TOF raw data files from random digits.
//
// Usage: tof-rawgen [OPTIONS]
//
// Example:
//
//	$> tof-rawgen -o run_000042.raw -n 100 -digits 500 -acq packed -noise 0.05
package main // import "github.com/go-lpc/tof/cmd/tof-rawgen"

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/go-lpc/tof/geom"
	"github.com/go-lpc/tof/rawdata"
)

// nBunches is the number of bunch crossings in an orbit.
const nBunches = 3564

func main() {
	xmain(os.Args[1:])
}

func xmain(args []string) {
	log.SetPrefix("tof-rawgen: ")
	log.SetFlags(0)

	var (
		fset   = flag.NewFlagSet("tof-rawgen", flag.ExitOnError)
		oname  = fset.String("o", "out.raw", "path to output raw file")
		nevts  = fset.Int("n", 10, "number of events to generate")
		digits = fset.Int("digits", 100, "number of digits per event")
		acq    = fset.String("acq", "split", "acquisition mode (packed, leading, split, reserved)")
		noise  = fset.Float64("noise", 0, "probability of an orphan edge per fired channel")
		seed   = fset.Int64("seed", 1234, "seed of the random generators")
	)

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}

	mode, err := acqMode(*acq)
	if err != nil {
		log.Fatalf("invalid acquisition mode: %+v", err)
	}

	if *oname == "" {
		fset.Usage()
		log.Fatalf("invalid output raw file name")
	}

	cfg := config{
		nevts:  *nevts,
		digits: *digits,
		acq:    mode,
		noise:  *noise,
		seed:   *seed,
	}

	err = generate(*oname, cfg)
	if err != nil {
		log.Fatalf("could not generate raw file: %+v", err)
	}
}

type config struct {
	nevts  int
	digits int
	acq    rawdata.AcqMode
	noise  float64
	seed   int64
}

func acqMode(name string) (rawdata.AcqMode, error) {
	switch name {
	case "packed":
		return rawdata.AcqPacked, nil
	case "leading":
		return rawdata.AcqLeading, nil
	case "split":
		return rawdata.AcqSplit, nil
	case "reserved":
		return rawdata.AcqReserved, nil
	}
	return 0, fmt.Errorf("unknown acquisition mode %q", name)
}

func generate(oname string, cfg config) error {
	f, err := os.Create(oname)
	if err != nil {
		return fmt.Errorf("could not create output raw file: %w", err)
	}
	defer f.Close()

	var (
		w   = rawdata.NewWriter(f)
		rnd = rand.New(rand.NewSource(cfg.seed))
		enc = rawdata.NewEncoder(
			rawdata.WithAcqMode(cfg.acq),
			rawdata.WithNoise(cfg.noise),
			rawdata.WithSeed(cfg.seed),
		)
		freq = cfg.nevts / 10
	)

	for i := 0; i < cfg.nevts; i++ {
		if freq > 0 && i%freq == 0 {
			log.Printf("processing evt %d...", i)
		}
		trg := rawdata.Trigger{
			BunchID: uint16(rnd.Intn(nBunches)),
			Orbit:   uint32(i),
			Counter: uint16(i),
		}
		recs, err := enc.EncodeEvent(trg, digitsFrom(rnd, cfg.digits))
		if err != nil {
			return fmt.Errorf("could not encode event %d: %w", i, err)
		}
		for j, rec := range recs {
			err = w.WriteRecord(rec)
			if err != nil {
				return fmt.Errorf("could not write record %d of event %d: %w", j, i, err)
			}
		}
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("could not close output raw file: %w", err)
	}
	return nil
}

// digitsFrom generates n digits on distinct cabled channels.
func digitsFrom(rnd *rand.Rand, n int) []rawdata.Digit {
	var (
		tbl    = geom.Default()
		digits = make([]rawdata.Digit, 0, n)
		seen   = make(map[int]struct{}, n)
	)
	for len(digits) < n && len(seen) < geom.NChannels {
		ch := rnd.Intn(geom.NChannels)
		if _, dup := seen[ch]; dup {
			continue
		}
		seen[ch] = struct{}{}

		vol, err := geom.VolumeFromIndex(ch)
		if err != nil {
			continue
		}
		if _, err := tbl.Equipment(vol); err != nil {
			continue
		}
		digits = append(digits, rawdata.Digit{
			Channel: ch,
			TimeBin: uint32(rnd.Intn(1 << 16)),
			TOTBin:  uint32(rnd.Intn(1 << 9)),
		})
	}
	return digits
}
