// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rawdata

import (
	"math/rand"

	"github.com/go-lpc/tof/geom"
	"golang.org/x/xerrors"
)

// Digit is a simulated signal on a detector channel.
type Digit struct {
	Channel int    // global channel index
	TimeBin uint32 // leading edge, in TDC time bins
	TOTBin  uint32 // time over threshold, in ToT bins
}

// Trigger describes the trigger of an event.
type Trigger struct {
	BunchID uint16 // bunch crossing
	Orbit   uint32
	L1Msg   uint16
	Counter uint16 // local event counter
}

const (
	drmVersion     = 0x11
	drmTemperature = 0x1a0
	ltmPedestal    = 0x0fa
)

// Encoder encodes digits into raw data payloads.
//
// Encoders are not safe for concurrent use.
type Encoder struct {
	tbl   *geom.Tables
	acq   AcqMode
	noise float64
	rnd   *rand.Rand
}

// NewEncoder creates a new encoder.
func NewEncoder(opts ...Option) *Encoder {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Encoder{
		tbl:   cfg.tbl,
		acq:   cfg.acq,
		noise: cfg.noise,
		rnd:   rand.New(rand.NewSource(cfg.seed)),
	}
}

type eqDigit struct {
	eq geom.Equipment
	Digit
}

// route dispatches digits to the DDLs reading them out.
func (enc *Encoder) route(digits []Digit) ([geom.NDDLs][]eqDigit, error) {
	var out [geom.NDDLs][]eqDigit
	for i, d := range digits {
		vol, err := geom.VolumeFromIndex(d.Channel)
		if err != nil {
			return out, xerrors.Errorf("rawdata: invalid digit %d: %w", i, err)
		}
		eq, err := enc.tbl.Equipment(vol)
		if err != nil {
			return out, xerrors.Errorf("rawdata: invalid digit %d: %w", i, err)
		}
		out[eq.DDL] = append(out[eq.DDL], eqDigit{eq: eq, Digit: d})
	}
	return out, nil
}

// Encode encodes the digits read out by the DDL ddl into a payload.
// Digits read out by other DDLs are ignored.
func (enc *Encoder) Encode(ddl int, trg Trigger, digits []Digit) ([]uint32, error) {
	if ddl < 0 || ddl >= geom.NDDLs {
		return nil, xerrors.Errorf("rawdata: invalid DDL index %d", ddl)
	}
	ds, err := enc.route(digits)
	if err != nil {
		return nil, err
	}
	return enc.encode(ddl, trg, ds[ddl])
}

// EncodeEvent encodes the digits of an event into one record per DDL.
func (enc *Encoder) EncodeEvent(trg Trigger, digits []Digit) ([]Record, error) {
	ds, err := enc.route(digits)
	if err != nil {
		return nil, err
	}
	recs := make([]Record, geom.NDDLs)
	for ddl := range recs {
		ws, err := enc.encode(ddl, trg, ds[ddl])
		if err != nil {
			return nil, xerrors.Errorf("rawdata: could not encode DDL %d: %w", ddl, err)
		}
		recs[ddl] = Record{
			Header: DataHeader{
				Size:       uint32(HeaderSize + 4*len(ws)),
				BunchID:    trg.BunchID,
				L1Msg:      trg.L1Msg,
				Version:    HeaderVersion,
				Orbit:      trg.Orbit,
				Attributes: attrValid,
				DDL:        uint8(ddl),
			},
			Words: ws,
		}
	}
	return recs, nil
}

// encode builds the payload of a DDL, starting from the DRM trailer.
// Building backwards gives the size of every block when its header is
// written. The payload is reversed before being returned.
func (enc *Encoder) encode(ddl int, trg Trigger, digits []eqDigit) ([]uint32, error) {
	var (
		sector = geom.SectorOf(ddl)
		local  = geom.DDLInSector(ddl)
		keys   = make(map[Key][]Digit)
		ws     = make([]uint32, 0, 64+2*len(digits))
		mask   uint32
	)

	for _, d := range digits {
		if d.eq.DDL != ddl {
			return nil, xerrors.Errorf("rawdata: digit %v routed to DDL %d", d.eq, ddl)
		}
		k := Key{
			Slot:    uint8(d.eq.Slot),
			Chain:   uint8(d.eq.Chain),
			TDC:     uint8(d.eq.TDC),
			Channel: uint8(d.eq.Channel),
		}
		keys[k] = append(keys[k], d.Digit)
	}

	ws = append(ws, fWordType.Put(uint32(GlobalTrailer))|
		fSlot.Put(slotDRM)|
		fDRMCounter.Put(uint32(trg.Counter)),
	)

	for slot := lastTRMSlot; slot >= firstTRMSlot; slot-- {
		if !enc.tbl.Cabled(local, slot, 0) {
			continue
		}
		mask |= 1 << (slot - slotLTM)

		beg := len(ws)
		ws = append(ws, fWordType.Put(uint32(GlobalTrailer))|
			fSlot.Put(uint32(slot))|
			fLocalCounter.Put(uint32(trg.Counter)),
		)

		for chain := geom.NChainsPerTRM - 1; chain >= 0; chain-- {
			ws = append(ws, fWordType.Put(uint32(Chain0Trailer)+2*uint32(chain))|
				fChainCounter.Put(uint32(trg.Counter)),
			)
			for tdc := geom.NTDCsPerTRM - 1; tdc >= 0; tdc-- {
				for ch := geom.NChannelsPerTDC - 1; ch >= 0; ch-- {
					k := Key{Slot: uint8(slot), Chain: uint8(chain), TDC: uint8(tdc), Channel: uint8(ch)}
					hits, err := enc.hits(k, keys[k])
					if err != nil {
						return nil, err
					}
					for i := len(hits) - 1; i >= 0; i-- {
						ws = append(ws, hits[i])
					}
				}
			}
			ws = append(ws, fWordType.Put(uint32(Chain0Header)+2*uint32(chain))|
				fSlot.Put(uint32(slot))|
				fChainBunch.Put(uint32(trg.BunchID)),
			)
		}

		n := uint32(len(ws) - beg + 1)
		if !fTRMWords.Fits(n) {
			return nil, xerrors.Errorf("rawdata: too many words (%d) for TRM in slot %d", n, slot)
		}
		ws = append(ws, fWordType.Put(uint32(GlobalHeader))|
			fSlot.Put(uint32(slot))|
			fTRMWords.Put(n)|
			fTRMAcq.Put(uint32(enc.acq)),
		)
	}

	// LTM block.
	mask |= 1 << 0
	ws = append(ws, fWordType.Put(uint32(GlobalTrailer))|
		fSlot.Put(slotLTM)|
		fLocalCounter.Put(uint32(trg.Counter)),
	)
	for i := 0; i < nLTMDataWords; i++ {
		var w uint32
		for _, f := range fLTMSample {
			w |= f.Put(ltmPedestal)
		}
		ws = append(ws, w)
	}
	ws = append(ws, fWordType.Put(uint32(GlobalHeader))|
		fSlot.Put(slotLTM)|
		fTRMWords.Put(nLTMDataWords+2),
	)

	// DRM header and status headers.
	drm := fWordType.Put(uint32(GlobalHeader)) | fSlot.Put(slotDRM)
	ws = append(ws,
		drm|fDRMTemperature.Put(drmTemperature),
		drm|fDRML0BCID.Put(uint32(trg.BunchID)),
		drm|fDRMSlotEnable.Put(mask),
		drm|fDRMParticipating.Put(mask)|fDRMVersion.Put(drmVersion),
	)
	n := uint32(len(ws) + 1)
	if !fDRMWords.Fits(n) {
		return nil, xerrors.Errorf("rawdata: too many words (%d) for DRM", n)
	}
	ws = append(ws, drm|
		fDRMWords.Put(n)|
		fDRMCrate.Put(uint32(local))|
		fDRMSector.Put(uint32(sector)),
	)

	for i, j := 0, len(ws)-1; i < j; i, j = i+1, j-1 {
		ws[i], ws[j] = ws[j], ws[i]
	}
	if len(ws)%2 != 0 {
		ws = append(ws, fillerWord)
	}
	return ws, nil
}

// hits returns the hit words of a TDC channel, in transmission order.
func (enc *Encoder) hits(k Key, digits []Digit) ([]uint32, error) {
	if len(digits) == 0 {
		return nil, nil
	}

	var (
		ws   = make([]uint32, 0, 2*len(digits)+1)
		addr = fHitMarker.Put(1) |
			fHitTDC.Put(uint32(k.TDC)) |
			fHitChannel.Put(uint32(k.Channel))
		word = func(ps PackingStatus, payload uint32) uint32 {
			return addr | fHitPS.Put(uint32(ps)) | payload
		}
	)

	for _, d := range digits {
		trail := d.TimeBin + d.TOTBin<<totShift
		if enc.acq == AcqLeading {
			trail = d.TimeBin
		}
		if !fHitLong.Fits(trail) {
			return nil, xerrors.Errorf(
				"rawdata: %v: digit (time=%d, tot=%d) out of TDC range",
				k, d.TimeBin, d.TOTBin,
			)
		}
		switch enc.acq {
		case AcqLeading:
			ws = append(ws, word(LeadingHit, fHitLong.Put(d.TimeBin)))
		case AcqSplit:
			ws = append(ws,
				word(LeadingHit, fHitLong.Put(d.TimeBin)),
				word(TrailingHit, fHitLong.Put(trail)),
			)
		default:
			if fHitTime.Fits(d.TimeBin) && fHitTOT.Fits(d.TOTBin) {
				ws = append(ws, word(PackedHit, fHitTime.Put(d.TimeBin)|fHitTOT.Put(d.TOTBin)))
				continue
			}
			ws = append(ws,
				word(LeadingHit, fHitLong.Put(d.TimeBin)),
				word(TrailingHit, fHitLong.Put(trail)),
			)
		}
	}

	if enc.noise > 0 && enc.rnd.Float64() < enc.noise {
		ps := LeadingHit
		if enc.acq != AcqLeading && enc.rnd.Intn(2) == 1 {
			ps = TrailingHit
		}
		t := uint32(enc.rnd.Int63n(int64(fHitLong.Max()) + 1))
		ws = append(ws, word(ps, fHitLong.Put(t)))
	}
	return ws, nil
}
