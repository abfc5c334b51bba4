// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xcnv provides tools to convert TOF raw data to/from LCIO.
package xcnv // import "github.com/go-lpc/tof/internal/xcnv"

const (
	RawCollection = "TOF_RAW"  // raw DDL records, one object per DDL
	HitCollection = "TOF_HITS" // decoded hits, one object per hit

	detector = "TOF"
)
