// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rawdata

import (
	"log"
	"os"
	"runtime"

	"github.com/go-lpc/tof/calib"
	"github.com/go-lpc/tof/geom"
)

type config struct {
	msg    *log.Logger
	tbl    *geom.Tables
	cor    *calib.Corrector
	max    int  // hit buffer capacity
	keep   bool // keep hits with an address translation error
	nprocs int

	acq   AcqMode
	noise float64 // probability of an orphan edge per fired channel
	seed  int64
}

func newConfig() config {
	return config{
		msg:    log.New(os.Stdout, "rawdata: ", 0),
		tbl:    geom.Default(),
		cor:    calib.Disabled(),
		max:    DefaultCapacity,
		nprocs: runtime.NumCPU(),
		acq:    AcqSplit,
		seed:   1234,
	}
}

// Option configures decoders and encoders.
type Option func(*config)

// WithLogger sets the logger used to report structural errors.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithTables sets the address translation tables.
func WithTables(tbl *geom.Tables) Option {
	return func(cfg *config) {
		cfg.tbl = tbl
	}
}

// WithCorrector sets the bunch crossing corrector applied to decoded hits.
func WithCorrector(cor *calib.Corrector) Option {
	return func(cfg *config) {
		cfg.cor = cor
	}
}

// WithCapacity sets the maximum number of hits stored per DDL and event.
func WithCapacity(n int) Option {
	return func(cfg *config) {
		cfg.max = n
	}
}

// WithKeepUnresolved keeps the hits whose equipment address could not be
// translated into a detector volume, instead of discarding them.
func WithKeepUnresolved(keep bool) Option {
	return func(cfg *config) {
		cfg.keep = keep
	}
}

// WithConcurrency sets the maximum number of DDLs decoded concurrently.
func WithConcurrency(n int) Option {
	return func(cfg *config) {
		cfg.nprocs = n
	}
}

// WithAcqMode sets the acquisition mode used by encoders.
func WithAcqMode(mode AcqMode) Option {
	return func(cfg *config) {
		cfg.acq = mode
	}
}

// WithNoise sets the probability for an encoder to append an unpaired
// edge after the hits of a fired channel.
func WithNoise(p float64) Option {
	return func(cfg *config) {
		cfg.noise = p
	}
}

// WithSeed sets the seed of the random source of encoders.
func WithSeed(seed int64) Option {
	return func(cfg *config) {
		cfg.seed = seed
	}
}
