// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package geom

import "sync"

// Cabling of a sector.
//
// A sector is split in two halves along the beam axis. Each half is read
// out by two crates, one on each side of the sector: the right crate
// (even DDL) reads pads x in [24,47], the left crate (odd DDL) reads pads
// x in [0,23]. The left crate is mirrored: it enumerates the strips of
// its half in reverse order.
//
// Within a crate, TRM slot s and TDC t read the half strip
//
//	g = (s - firstSlot)*5 + t/3
//
// counted from the first strip of the half.
var halves = [2]struct {
	offset    int // first strip of the half, within the sector
	nstrips   int
	firstSlot int // first cabled TRM slot
}{
	{offset: 0, nstrips: 45, firstSlot: 4},
	{offset: 45, nstrips: 46, firstSlot: 3},
}

const undef = -1

type stripAddr struct {
	plate int8
	strip int8
}

type equipAddr struct {
	ddl     int8 // DDL index within the sector
	slot    int8
	chain   int8
	tdc     int8
	channel int8
}

// Tables holds the address translation lookup tables.
// Tables are immutable once built and may be shared by any number
// of decoders and encoders.
type Tables struct {
	vol [NDDLsPerSector][NTRMs][NTDCsPerTRM]stripAddr
	pad [2][NChainsPerTRM][NTDCsPerTRM][NChannelsPerTDC]int8

	eqp [NStripsPerSector][NPadsPerStrip]equipAddr
}

var defaultTables struct {
	once sync.Once
	tbl  *Tables
}

// Default returns the shared default translation tables.
func Default() *Tables {
	defaultTables.once.Do(func() {
		defaultTables.tbl = NewTables()
	})
	return defaultTables.tbl
}

// NewTables builds the translation tables for the standard cabling.
func NewTables() *Tables {
	tbl := new(Tables)

	for ddl := range tbl.vol {
		var (
			half   = halves[ddl/2]
			parity = ddl % 2
		)
		for itrm := range tbl.vol[ddl] {
			for tdc := range tbl.vol[ddl][itrm] {
				addr := stripAddr{plate: undef, strip: undef}
				slot := itrm + FirstTRMSlot
				g := (slot-half.firstSlot)*nStripsPerTRM + tdc/nTDCsPerStrip
				if slot >= half.firstSlot && g < half.nstrips {
					if parity == 1 {
						g = half.nstrips - 1 - g
					}
					plate, strip := plateStrip(half.offset + g)
					addr = stripAddr{plate: int8(plate), strip: int8(strip)}
				}
				tbl.vol[ddl][itrm][tdc] = addr
			}
		}
	}

	for parity := range tbl.pad {
		for chain := range tbl.pad[parity] {
			for tdc := range tbl.pad[parity][chain] {
				for ch := range tbl.pad[parity][chain][tdc] {
					local := (tdc%nTDCsPerStrip)*NChannelsPerTDC + ch
					padx := local
					if parity == 0 {
						padx = NPadX - 1 - local
					}
					tbl.pad[parity][chain][tdc][ch] = int8(padx*NPadZ + chain)
				}
			}
		}
	}

	for s := range tbl.eqp {
		for pad := range tbl.eqp[s] {
			tbl.eqp[s][pad] = equipAddr{ddl: undef}
		}
	}
	for ddl := range tbl.vol {
		parity := ddl % 2
		for itrm := range tbl.vol[ddl] {
			for tdc, addr := range tbl.vol[ddl][itrm] {
				if addr.plate == undef {
					continue
				}
				s := stripInSector(int(addr.plate), int(addr.strip))
				for chain := 0; chain < NChainsPerTRM; chain++ {
					for ch := 0; ch < NChannelsPerTDC; ch++ {
						pad := tbl.pad[parity][chain][tdc][ch]
						tbl.eqp[s][pad] = equipAddr{
							ddl:     int8(ddl),
							slot:    int8(itrm + FirstTRMSlot),
							chain:   int8(chain),
							tdc:     int8(tdc),
							channel: int8(ch),
						}
					}
				}
			}
		}
	}

	return tbl
}

// EquipmentToVolume returns the plate and strip read out by the given TDC
// of the TRM in slot, for the DDL ddl (index within the sector).
func (tbl *Tables) EquipmentToVolume(ddl, slot, tdc int) (plate, strip int, err error) {
	switch {
	case ddl < 0 || ddl >= NDDLsPerSector:
		return undef, undef, errorf(SectorError, "invalid DDL index %d within sector", ddl)
	case slot < FirstTRMSlot || slot > LastTRMSlot:
		return undef, undef, errorf(PlateError, "invalid TRM slot %d", slot)
	case tdc < 0 || tdc >= NTDCsPerTRM:
		return undef, undef, errorf(StripError, "invalid TDC %d", tdc)
	}
	addr := tbl.vol[ddl][slot-FirstTRMSlot][tdc]
	switch {
	case addr.plate == undef && tbl.vol[ddl][slot-FirstTRMSlot][0].plate == undef:
		return undef, undef, errorf(PlateError, "TRM slot %d not cabled on DDL %d", slot, ddl)
	case addr.plate == undef:
		return undef, undef, errorf(StripError, "TDC %d of TRM slot %d not cabled on DDL %d", tdc, slot, ddl)
	}
	return int(addr.plate), int(addr.strip), nil
}

// EquipmentToPad returns the pad index along the strip read out by the
// given channel, for a DDL of the given parity.
func (tbl *Tables) EquipmentToPad(parity, chain, tdc, channel int) (int, error) {
	switch {
	case parity < 0 || parity > 1:
		return undef, errorf(PadError, "invalid DDL parity %d", parity)
	case chain < 0 || chain >= NChainsPerTRM:
		return undef, errorf(PadError, "invalid chain %d", chain)
	case tdc < 0 || tdc >= NTDCsPerTRM:
		return undef, errorf(PadError, "invalid TDC %d", tdc)
	case channel < 0 || channel >= NChannelsPerTDC:
		return undef, errorf(PadError, "invalid channel %d", channel)
	}
	return int(tbl.pad[parity][chain][tdc][channel]), nil
}

// Volume translates a full equipment address into a detector volume.
func (tbl *Tables) Volume(eq Equipment) (Volume, error) {
	if eq.DDL < 0 || eq.DDL >= NDDLs {
		return Volume{}, errorf(SectorError, "invalid DDL %d", eq.DDL)
	}
	ddl := DDLInSector(eq.DDL)
	plate, strip, err := tbl.EquipmentToVolume(ddl, eq.Slot, eq.TDC)
	if err != nil {
		return Volume{}, err
	}
	pad, err := tbl.EquipmentToPad(ddl%2, eq.Chain, eq.TDC, eq.Channel)
	if err != nil {
		return Volume{}, err
	}
	return Volume{
		Sector: SectorOf(eq.DDL),
		Plate:  plate,
		Strip:  strip,
		PadX:   pad / NPadZ,
		PadZ:   pad % NPadZ,
	}, nil
}

// Equipment translates a detector volume into the equipment address
// reading it out.
func (tbl *Tables) Equipment(v Volume) (Equipment, error) {
	err := v.validate()
	if err != nil {
		return Equipment{}, err
	}
	addr := tbl.eqp[stripInSector(v.Plate, v.Strip)][v.Pad()]
	if addr.ddl == undef {
		return Equipment{}, errorf(PadError, "%v is not cabled", v)
	}
	return Equipment{
		DDL:     v.Sector*NDDLsPerSector + int(addr.ddl),
		Slot:    int(addr.slot),
		Chain:   int(addr.chain),
		TDC:     int(addr.tdc),
		Channel: int(addr.channel),
	}, nil
}

// Cabled reports whether the given TDC of the TRM in slot is connected
// to a strip, for the DDL ddl (index within the sector).
func (tbl *Tables) Cabled(ddl, slot, tdc int) bool {
	_, _, err := tbl.EquipmentToVolume(ddl, slot, tdc)
	return err == nil
}
