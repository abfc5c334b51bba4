// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package geom describes the TOF detector geometry and translates
// readout equipment addresses (DDL, TRM slot, chain, TDC, channel)
// into detector volumes (sector, plate, strip, pad) and back.
package geom // import "github.com/go-lpc/tof/geom"

import "fmt"

const (
	NSectors       = 18 // number of sectors
	NPlates        = 5  // number of plates (modules) per sector
	NDDLsPerSector = 4  // number of DDLs per sector
	NDDLs          = NSectors * NDDLsPerSector

	FirstTRMSlot = 3  // first VME slot holding a TRM
	LastTRMSlot  = 12 // last VME slot holding a TRM
	NTRMs        = LastTRMSlot - FirstTRMSlot + 1

	NTDCsPerTRM     = 15 // number of TDCs per TRM chain
	NChainsPerTRM   = 2
	NChannelsPerTDC = 8

	NPadZ         = 2  // pads per strip row, along z
	NPadX         = 48 // pads per row, along x
	NPadsPerStrip = NPadX * NPadZ

	NStripsA = 15 // strips in the central plate
	NStripsB = 19 // strips in the intermediate plates
	NStripsC = 19 // strips in the outer plates

	NStripsPerSector = NStripsC + NStripsB + NStripsA + NStripsB + NStripsC
	NChannels        = NSectors * NStripsPerSector * NPadsPerStrip
)

const (
	nTDCsPerStrip = 3 // TDCs (per chain) reading one half strip
	nStripsPerTRM = NTDCsPerTRM / nTDCsPerStrip
	nPadXPerCrate = NPadX / 2
)

var stripsPerPlate = [NPlates]int{NStripsC, NStripsB, NStripsA, NStripsB, NStripsC}

// NStrips returns the number of strips of the given plate,
// or 0 if plate is not a valid plate index.
func NStrips(plate int) int {
	if plate < 0 || plate >= NPlates {
		return 0
	}
	return stripsPerPlate[plate]
}

// Volume identifies a readout pad of the detector.
type Volume struct {
	Sector int
	Plate  int
	Strip  int // strip index within the plate
	PadX   int
	PadZ   int
}

func (v Volume) String() string {
	return fmt.Sprintf("vol{sector=%d plate=%d strip=%d padx=%d padz=%d}",
		v.Sector, v.Plate, v.Strip, v.PadX, v.PadZ,
	)
}

// Pad returns the pad index along the strip.
func (v Volume) Pad() int { return v.PadX*NPadZ + v.PadZ }

// Equipment identifies a TDC channel in the readout electronics.
type Equipment struct {
	DDL     int // global DDL index, in [0, NDDLs)
	Slot    int // TRM slot, in [FirstTRMSlot, LastTRMSlot]
	Chain   int
	TDC     int
	Channel int
}

func (eq Equipment) String() string {
	return fmt.Sprintf("eqp{ddl=%d slot=%d chain=%d tdc=%d ch=%d}",
		eq.DDL, eq.Slot, eq.Chain, eq.TDC, eq.Channel,
	)
}

// DDLInSector returns the index of the DDL within its sector.
func DDLInSector(ddl int) int { return ddl % NDDLsPerSector }

// SectorOf returns the sector read out by the given DDL.
func SectorOf(ddl int) int { return ddl / NDDLsPerSector }

// stripInSector returns the index of the strip within the whole sector.
func stripInSector(plate, strip int) int {
	n := 0
	for i := 0; i < plate; i++ {
		n += stripsPerPlate[i]
	}
	return n + strip
}

// plateStrip is the inverse of stripInSector.
func plateStrip(s int) (plate, strip int) {
	for i, n := range stripsPerPlate {
		if s < n {
			return i, s
		}
		s -= n
	}
	return -1, -1
}

// Index returns the global channel index of a volume.
func Index(v Volume) (int, error) {
	err := v.validate()
	if err != nil {
		return -1, err
	}
	s := stripInSector(v.Plate, v.Strip)
	return (v.Sector*NStripsPerSector+s)*NPadsPerStrip + v.PadZ*NPadX + v.PadX, nil
}

// VolumeFromIndex returns the volume associated with a global channel index.
func VolumeFromIndex(idx int) (Volume, error) {
	if idx < 0 || idx >= NChannels {
		return Volume{}, errorf(SectorError, "invalid channel index %d", idx)
	}
	var (
		sector = idx / (NStripsPerSector * NPadsPerStrip)
		rem    = idx % (NStripsPerSector * NPadsPerStrip)
		s      = rem / NPadsPerStrip
		pad    = rem % NPadsPerStrip
	)
	plate, strip := plateStrip(s)
	return Volume{
		Sector: sector,
		Plate:  plate,
		Strip:  strip,
		PadX:   pad % NPadX,
		PadZ:   pad / NPadX,
	}, nil
}

func (v Volume) validate() error {
	switch {
	case v.Sector < 0 || v.Sector >= NSectors:
		return errorf(SectorError, "invalid sector %d", v.Sector)
	case v.Plate < 0 || v.Plate >= NPlates:
		return errorf(PlateError, "invalid plate %d", v.Plate)
	case v.Strip < 0 || v.Strip >= stripsPerPlate[v.Plate]:
		return errorf(StripError, "invalid strip %d for plate %d", v.Strip, v.Plate)
	case v.PadX < 0 || v.PadX >= NPadX || v.PadZ < 0 || v.PadZ >= NPadZ:
		return errorf(PadError, "invalid pad (x=%d, z=%d)", v.PadX, v.PadZ)
	}
	return nil
}
