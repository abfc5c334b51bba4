// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tof-sql inspects the TOF condition database.
//
// Usage: tof-sql [OPTIONS]
//
// Example:
//
//	$> tof-sql -run 42
//	$> tof-sql -save -min-run 42 -max-run 100
package main // import "github.com/go-lpc/tof/cmd/tof-sql"

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-lpc/tof/calib"
	"github.com/go-lpc/tof/conddb"
	"github.com/go-lpc/tof/geom"
	_ "github.com/go-sql-driver/mysql"
)

const (
	dbname = "tofcond"
)

func main() {
	log.SetPrefix("tof-sql: ")
	log.SetFlags(0)

	var (
		run    = flag.Uint("run", 0, "run to inspect (default: last run)")
		save   = flag.Bool("save", false, "store the default DDL shift table")
		minRun = flag.Uint("min-run", 0, "first run of validity of the stored shift table")
		maxRun = flag.Uint("max-run", 0, "last run of validity of the stored shift table")
	)

	flag.Parse()

	db, err := conddb.Open(dbname)
	if err != nil {
		log.Fatalf("could not open TOF db: %+v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if *save {
		err = db.SaveDDLShifts(ctx, uint32(*minRun), uint32(*maxRun), calib.DefaultShifts())
		if err != nil {
			log.Fatalf("could not save DDL shifts: %+v", err)
		}
		log.Printf("saved default DDL shifts for runs [%d, %d]", *minRun, *maxRun)
		return
	}

	err = doQuery(ctx, os.Stdout, db, uint32(*run))
	if err != nil {
		log.Fatalf("could not do query: %+v", err)
	}
}

func doQuery(ctx context.Context, w io.Writer, db *conddb.DB, run uint32) error {
	if run == 0 {
		v, err := db.LastRun(ctx)
		if err != nil {
			return fmt.Errorf("could not get last run: %w", err)
		}
		run = v
	}

	cond, err := db.Run(ctx, run)
	if err != nil {
		return fmt.Errorf("could not get conditions of run %d: %w", run, err)
	}
	printRun(w, cond)

	shifts, err := db.DDLShifts(ctx, run)
	if err != nil {
		return fmt.Errorf("could not get DDL shifts of run %d: %w", run, err)
	}
	printShifts(w, shifts)

	return nil
}

func printRun(w io.Writer, run conddb.Run) {
	fmt.Fprintf(w, "run:      %d\n", run.ID)
	fmt.Fprintf(w, "detector: %s\n", run.Detector)
	fmt.Fprintf(w, "acq-mode: %d\n", run.AcqMode)
	fmt.Fprintf(w, "bc-corr:  %v\n", run.BCCorrection)
	fmt.Fprintf(w, "sectors:  0x%05x\n", run.Sectors)

	var active []string
	for ddl := 0; ddl < geom.NDDLs; ddl++ {
		if run.Active(ddl) {
			active = append(active, fmt.Sprintf("%d", ddl))
		}
	}
	fmt.Fprintf(w, "DDLs:     %d [%s]\n", len(active), strings.Join(active, " "))
}

// printShifts displays the DDL shift table, one sector per line.
func printShifts(w io.Writer, shifts calib.Shifts) {
	fmt.Fprintf(w, "shifts:\n")
	for sector := 0; sector < geom.NSectors; sector++ {
		fmt.Fprintf(w, "  sector=%02d:", sector)
		for i := 0; i < geom.NDDLsPerSector; i++ {
			fmt.Fprintf(w, " %+d", shifts[sector*geom.NDDLsPerSector+i])
		}
		fmt.Fprintf(w, "\n")
	}
}
