// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package conddb

import "github.com/go-lpc/tof/geom"

// Run describes the conditions of a data taking run.
type Run struct {
	ID           uint32 `db:"run"`
	Detector     string `db:"detector"`
	AcqMode      uint8  `db:"acq_mode"`
	BCCorrection bool   `db:"bc_correction"`
	Sectors      uint32 `db:"sector_mask"` // mask of the sectors taking part in the run
}

// Active reports whether the DDL ddl takes part in the run.
func (run Run) Active(ddl int) bool {
	if ddl < 0 || ddl >= geom.NDDLs {
		return false
	}
	return (run.Sectors>>uint(geom.SectorOf(ddl)))&1 == 1
}

// DDLShift is the static bunch crossing shift of a DDL.
type DDLShift struct {
	DDL   int `db:"ddl"`
	Shift int `db:"shift"`
}
