// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package conddb holds types to describe the condition database
// for the TOF detector.
package conddb // import "github.com/go-lpc/tof/conddb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-lpc/tof/calib"
	"github.com/go-lpc/tof/geom"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

const (
	host = "localhost"
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

const timeout = 5 * time.Second

// DB exposes convenience methods to easily retrieve conditions data
// from the TOF database.
type DB struct {
	db   *sqlx.DB
	name string // name of the TOF database
}

// Open opens a connection to the TOF database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sqlx.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("conddb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", usr, pwd, host, db)
}

func ping(db *sqlx.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// LastRun returns the number of the last run registered in the database.
func (db *DB) LastRun(ctx context.Context) (uint32, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var run uint32
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT run FROM runs ORDER BY start DESC LIMIT 1",
	)
	if err != nil {
		return run, fmt.Errorf("conddb: could not query last run: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&run)
		if err != nil {
			return run, fmt.Errorf("conddb: could not get last run value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return run, fmt.Errorf("conddb: could not scan db for last run: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return run, fmt.Errorf("conddb: context error while retrieving last run: %w", err)
	}

	return run, nil
}

// Run returns the conditions of the given run.
func (db *DB) Run(ctx context.Context, run uint32) (Run, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cond Run
	err := db.db.GetContext(
		ctx, &cond,
		"SELECT run, detector, acq_mode, bc_correction, sector_mask FROM runs WHERE run=?",
		run,
	)
	if err != nil {
		return cond, fmt.Errorf("conddb: could not retrieve conditions of run %d: %w", run, err)
	}

	if err := ctx.Err(); err != nil {
		return cond, fmt.Errorf("conddb: context error while retrieving run %d: %w", run, err)
	}

	return cond, nil
}

// DDLShifts returns the table of static DDL shifts valid for the
// given run.
func (db *DB) DDLShifts(ctx context.Context, run uint32) (calib.Shifts, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var rows []DDLShift
	err := db.db.SelectContext(
		ctx, &rows,
		`
SELECT ddl, shift FROM ddl_shifts
WHERE (
	min_run <= ? AND max_run >= ?
)
ORDER BY ddl
`,
		run, run,
	)
	if err != nil {
		return calib.Shifts{}, fmt.Errorf("conddb: could not run DDL shifts query: %w", err)
	}

	if len(rows) != geom.NDDLs {
		return calib.Shifts{}, fmt.Errorf(
			"conddb: invalid number of DDL shifts for run %d (got=%d, want=%d)",
			run, len(rows), geom.NDDLs,
		)
	}

	vs := make([]int, geom.NDDLs)
	for i, row := range rows {
		if row.DDL != i {
			return calib.Shifts{}, fmt.Errorf(
				"conddb: invalid DDL shift entry %d for run %d (ddl=%d)",
				i, run, row.DDL,
			)
		}
		vs[i] = row.Shift
	}

	shifts, err := calib.NewShifts(vs)
	if err != nil {
		return shifts, fmt.Errorf("conddb: invalid DDL shifts for run %d: %w", run, err)
	}

	if err := ctx.Err(); err != nil {
		return shifts, fmt.Errorf("conddb: context error while retrieving DDL shifts: %w", err)
	}

	return shifts, nil
}

// Corrector returns the bunch crossing corrector configured for the
// given run.
func (db *DB) Corrector(ctx context.Context, run uint32) (*calib.Corrector, error) {
	cond, err := db.Run(ctx, run)
	if err != nil {
		return nil, err
	}
	if !cond.BCCorrection {
		return calib.Disabled(), nil
	}

	shifts, err := db.DDLShifts(ctx, run)
	if err != nil {
		return nil, err
	}
	return calib.NewCorrector(shifts, true), nil
}

// SaveDDLShifts stores the table of static DDL shifts, valid for the
// runs in [minRun, maxRun].
func (db *DB) SaveDDLShifts(ctx context.Context, minRun, maxRun uint32, shifts calib.Shifts) error {
	if minRun > maxRun {
		return fmt.Errorf("conddb: invalid run range [%d, %d]", minRun, maxRun)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tx, err := db.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("conddb: could not start transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for ddl, shift := range shifts {
		_, err = tx.ExecContext(
			ctx,
			"INSERT INTO ddl_shifts (ddl, shift, min_run, max_run) VALUES (?, ?, ?, ?)",
			ddl, int(shift), minRun, maxRun,
		)
		if err != nil {
			return fmt.Errorf("conddb: could not insert shift of DDL %d: %w", ddl, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("conddb: could not commit DDL shifts: %w", err)
	}

	return nil
}
