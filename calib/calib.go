// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package calib holds the time calibration constants of the TOF readout
// and applies bunch-crossing corrections to raw TDC times.
package calib // import "github.com/go-lpc/tof/calib"

import (
	"fmt"
	"math"

	"github.com/go-lpc/tof/geom"
)

const (
	TimeBinWidth = 24.4    // TDC time bin width, in ps
	TOTBinWidth  = 48.4    // TDC time-over-threshold bin width, in ps
	BCWidth      = 25000.0 // bunch crossing period, in ps
)

// TimeNs converts a time bin value to nanoseconds.
func TimeNs(bin int32) float64 { return float64(bin) * TimeBinWidth * 1e-3 }

// TOTNs converts a time-over-threshold bin value to nanoseconds.
func TOTNs(bin int32) float64 { return float64(bin) * TOTBinWidth * 1e-3 }

// BCToBins converts a number of bunch crossings to TDC time bins.
func BCToBins(bc int) int32 {
	return int32(math.Round(float64(bc) * BCWidth / TimeBinWidth))
}

// Shifts holds the static bunch-crossing shift of each DDL.
type Shifts [geom.NDDLs]int8

var defaultShifts = Shifts{
	2, 2, -1, -1, 2, 2, 0, 0, // sectors 0-1
	2, 2, -1, -1, 2, 2, -1, -1, // sectors 2-3
	2, 2, 0, 0, 2, 2, -1, -1, // sectors 4-5
	-1, -1, -1, -1, 0, 0, -2, -2, // sectors 6-7
	-1, -1, -1, -1, 0, 0, -1, -1, // sectors 8-9
	-1, -1, -1, -1, 0, 0, -1, -1, // sectors 10-11
	0, 0, -1, -1, 0, 0, -1, -1, // sectors 12-13
	2, 2, 0, 0, 2, 2, 0, 0, // sectors 14-15
	2, 2, -1, -1, 2, 2, -1, -1, // sectors 16-17
}

// DefaultShifts returns the default static DDL shifts.
func DefaultShifts() Shifts { return defaultShifts }

// NewShifts creates a shift table from a list of per-DDL values.
// Only shifts in {-2,-1,0,2} are accepted.
func NewShifts(vs []int) (Shifts, error) {
	var shifts Shifts
	if len(vs) != len(shifts) {
		return shifts, fmt.Errorf("calib: invalid number of DDL shifts (got=%d, want=%d)", len(vs), len(shifts))
	}
	for i, v := range vs {
		switch v {
		case -2, -1, 0, 2:
			shifts[i] = int8(v)
		default:
			return shifts, fmt.Errorf("calib: invalid shift %d for DDL %d", v, i)
		}
	}
	return shifts, nil
}

// Corrector applies the static (per-DDL) and dynamic (per-chain)
// bunch-crossing corrections to raw TDC times.
// A Corrector is read-only and safe for concurrent use.
type Corrector struct {
	enabled bool
	shifts  Shifts
}

// NewCorrector returns a corrector using the given shift table.
func NewCorrector(shifts Shifts, enabled bool) *Corrector {
	return &Corrector{enabled: enabled, shifts: shifts}
}

// Disabled returns a corrector letting raw times through unchanged.
func Disabled() *Corrector { return &Corrector{} }

// Enabled reports whether corrections are applied.
func (c *Corrector) Enabled() bool { return c != nil && c.enabled }

// Shift returns the static shift of DDL ddl, in bunch crossings.
func (c *Corrector) Shift(ddl int) int {
	if ddl < 0 || ddl >= len(c.shifts) {
		return 0
	}
	return int(c.shifts[ddl])
}

// Offset returns the correction, in TDC time bins, for a hit of the DDL ddl
// read by a chain whose bunch ID is chainBunch, in an event whose
// reference bunch ID is eventBunch.
func (c *Corrector) Offset(ddl int, chainBunch, eventBunch uint32) int32 {
	if !c.Enabled() {
		return 0
	}
	delta := int(chainBunch) - int(eventBunch)
	return BCToBins(c.Shift(ddl) + delta)
}

// Apply returns the corrected value of the raw time bin.
func (c *Corrector) Apply(ddl int, chainBunch, eventBunch, raw uint32) int32 {
	return int32(raw) + c.Offset(ddl, chainBunch, eventBunch)
}
