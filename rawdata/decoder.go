// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rawdata

import (
	"fmt"
	"log"

	"github.com/go-lpc/tof/calib"
	"github.com/go-lpc/tof/geom"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// Decoder decodes the raw payloads of DDLs into hits.
//
// A Decoder only holds read-only configuration: it may be used
// concurrently to decode different DDLs.
type Decoder struct {
	msg  *log.Logger
	tbl  *geom.Tables
	cor  *calib.Corrector
	max  int
	keep bool

	nprocs int
}

// NewDecoder creates a new decoder.
func NewDecoder(opts ...Option) *Decoder {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Decoder{
		msg:    cfg.msg,
		tbl:    cfg.tbl,
		cor:    cfg.cor,
		max:    cfg.max,
		keep:   cfg.keep,
		nprocs: cfg.nprocs,
	}
}

// Decode decodes the payload words of the DDL ddl.
// The reference bunch crossing of the event is taken from the
// DRM status headers.
//
// Words inconsistent with the nesting of the stream are reported and
// ignored: Decode only fails for an invalid DDL index.
func (dec *Decoder) Decode(ddl int, words []uint32) (DDL, error) {
	if ddl < 0 || ddl >= geom.NDDLs {
		return DDL{}, xerrors.Errorf("rawdata: invalid DDL index %d", ddl)
	}
	ctx := dec.newContext(ddl)
	dec.run(ctx, words)
	return ctx.flush(), nil
}

// DecodeRecord decodes a DDL record.
// The reference bunch crossing of the event is taken from the common
// data header of the record.
func (dec *Decoder) DecodeRecord(rec Record) (DDL, error) {
	ddl := int(rec.Header.DDL)
	if ddl < 0 || ddl >= geom.NDDLs {
		return DDL{}, xerrors.Errorf("rawdata: invalid DDL index %d", ddl)
	}
	if !rec.Header.Valid() {
		return DDL{}, xerrors.Errorf("rawdata: DDL %d: incomplete record (%v)", ddl, rec.Header)
	}
	ctx := dec.newContext(ddl)
	ctx.bunch = uint32(rec.Header.BunchID)
	ctx.hasBunch = true
	dec.run(ctx, rec.Words)
	out := ctx.flush()
	out.Header = rec.Header
	return out, nil
}

// DecodeEvent decodes all the DDL records of an event.
// DDLs are decoded concurrently, results are returned in the order
// of the records.
//
// A record that cannot be decoded yields an empty DDL carrying a
// structural error: the other records of the event are still decoded.
func (dec *Decoder) DecodeEvent(recs []Record) ([]DDL, error) {
	out := make([]DDL, len(recs))

	var grp errgroup.Group
	if dec.nprocs > 0 {
		grp.SetLimit(dec.nprocs)
	}
	for i := range recs {
		i := i
		grp.Go(func() error {
			ddl, err := dec.DecodeRecord(recs[i])
			if err != nil {
				ddl = dec.rejected(i, recs[i], err)
			}
			out[i] = ddl
			return nil
		})
	}

	err := grp.Wait()
	if err != nil {
		return nil, err
	}
	return out, nil
}

// rejected returns the result of the i-th record of an event which
// could not be decoded.
func (dec *Decoder) rejected(i int, rec Record, err error) DDL {
	ddl := DDL{
		ID:     int(rec.Header.DDL),
		Header: rec.Header,
	}
	ddl.Errors = append(ddl.Errors, &StructuralError{
		DDL: ddl.ID,
		Msg: fmt.Sprintf("record %d rejected: %v", i, err),
	})
	ddl.Stats.Structural++
	dec.msg.Printf("could not decode record %d: %+v", i, err)
	return ddl
}

// ddlContext is the decoding context of one DDL.
type ddlContext struct {
	ddl int
	out DDL
	buf *HitBuffer

	pos      int
	state    State
	status   int // number of DRM status headers still expected
	bunch    uint32
	hasBunch bool
	itrm     int // index of the current TRM block
}

// trm returns the current TRM block.
func (ctx *ddlContext) trm() *TRM {
	return &ctx.out.TRMs[ctx.itrm]
}

func (dec *Decoder) newContext(ddl int) *ddlContext {
	return &ddlContext{
		ddl: ddl,
		out: DDL{ID: ddl},
		buf: NewHitBuffer(dec.max),
	}
}

func (ctx *ddlContext) flush() DDL {
	out := ctx.out
	out.State = ctx.state
	out.Hits = ctx.buf.Hits()
	for _, h := range out.Hits {
		if !h.Complete() {
			out.Stats.Orphans++
		}
	}
	out.Stats.Hits = len(out.Hits)
	return out
}

func (dec *Decoder) errorf(ctx *ddlContext, w uint32, format string, args ...interface{}) {
	err := &StructuralError{
		DDL:   ctx.ddl,
		Pos:   ctx.pos,
		Word:  w,
		State: ctx.state,
		Msg:   fmt.Sprintf(format, args...),
	}
	ctx.out.Errors = append(ctx.out.Errors, err)
	ctx.out.Stats.Structural++
	dec.msg.Printf(
		"DDL %d word %d (0x%08x) in state %v: %s",
		err.DDL, err.Pos, err.Word, err.State, err.Msg,
	)
}

func (dec *Decoder) run(ctx *ddlContext, words []uint32) {
	for i, w := range words {
		ctx.pos = i
		ctx.out.Stats.Words++

		if ctx.status > 0 {
			if TypeOf(w) == GlobalHeader && fSlot.Get(w) == slotDRM {
				if !dec.isStatus(ctx, w) {
					dec.errorf(ctx, w, "DRM header inside a DRM block")
					continue
				}
				dec.drmStatus(ctx, w)
				continue
			}
			ctx.status = 0
		}

		if ctx.state.Level == InLTM && dec.ltmWord(ctx, w) {
			continue
		}

		switch typ := TypeOf(w); typ {
		case HitWord:
			dec.hit(ctx, w)
		case GlobalHeader:
			dec.globalHeader(ctx, w)
		case GlobalTrailer:
			dec.globalTrailer(ctx, w)
		case Chain0Header, Chain1Header:
			dec.chainHeader(ctx, w, chainOf(typ))
		case Chain0Trailer, Chain1Trailer:
			dec.chainTrailer(ctx, w, chainOf(typ))
		case ErrorWord:
			dec.tdcError(ctx, w)
		case FillerWord:
			ctx.out.Stats.Fillers++
		}
	}

	if ctx.state.Level != Idle {
		ctx.pos = len(words)
		dec.errorf(ctx, 0, "payload ends without DRM trailer")
	}
}

func chainOf(typ WordType) uint8 {
	return uint8(typ) >> 1
}

func (dec *Decoder) globalHeader(ctx *ddlContext, w uint32) {
	slot := uint8(fSlot.Get(w))
	switch {
	case slot == slotDRM:
		if ctx.state.Level != Idle {
			dec.errorf(ctx, w, "DRM header inside a DRM block")
			return
		}
		ctx.state = ctx.state.enterDRM()
		ctx.status = nDRMStatusHeaders
		ctx.out.DRM.Words = fDRMWords.Get(w)
		ctx.out.DRM.Crate = uint8(fDRMCrate.Get(w))
		ctx.out.DRM.Sector = uint8(fDRMSector.Get(w))

	case slot == slotLTM:
		if ctx.state.Level != InDRM {
			dec.errorf(ctx, w, "LTM header outside of a DRM block")
			return
		}
		ctx.state = ctx.state.enterLTM()
		ctx.out.LTM.Words = fTRMWords.Get(w)

	case firstTRMSlot <= slot && slot <= lastTRMSlot:
		if ctx.state.Level != InDRM {
			dec.errorf(ctx, w, "TRM header for slot %d outside of a DRM block", slot)
			return
		}
		ctx.state = ctx.state.enterTRM(slot)
		ctx.out.TRMs = append(ctx.out.TRMs, TRM{
			Slot:    slot,
			Words:   fTRMWords.Get(w),
			AcqMode: AcqMode(fTRMAcq.Get(w)),
		})
		ctx.itrm = len(ctx.out.TRMs) - 1

	default:
		dec.errorf(ctx, w, "global header with invalid slot %d", slot)
	}
}

// isStatus reports whether w may be the next DRM status header.
// The first and last status headers leave the crate and sector bits
// of a DRM global header empty.
func (dec *Decoder) isStatus(ctx *ddlContext, w uint32) bool {
	switch nDRMStatusHeaders - ctx.status {
	case 0, 3:
		return fDRMCrate.Get(w) == 0 && fDRMSector.Get(w) == 0
	}
	return true
}

func (dec *Decoder) drmStatus(ctx *ddlContext, w uint32) {
	drm := &ctx.out.DRM
	switch nDRMStatusHeaders - ctx.status {
	case 0:
		drm.Participating = uint16(fDRMParticipating.Get(w))
		drm.Version = uint8(fDRMVersion.Get(w))
	case 1:
		drm.SlotEnable = uint16(fDRMSlotEnable.Get(w))
		drm.Fault = uint16(fDRMFault.Get(w))
	case 2:
		drm.L0BCID = uint16(fDRML0BCID.Get(w))
		drm.RunTime = uint16(fDRMRunTime.Get(w))
		if !ctx.hasBunch {
			ctx.bunch = uint32(drm.L0BCID)
		}
	case 3:
		drm.Temperature = uint16(fDRMTemperature.Get(w))
		drm.Ack = fDRMAck.Get(w) == 1
	}
	ctx.status--
}

func (dec *Decoder) ltmWord(ctx *ddlContext, w uint32) bool {
	switch TypeOf(w) {
	case Chain0Header, Chain0Trailer, Chain1Header, Chain1Trailer:
		for _, f := range fLTMSample {
			ctx.out.LTM.Samples = append(ctx.out.LTM.Samples, uint16(f.Get(w)))
		}
		return true
	}
	return false
}

func (dec *Decoder) globalTrailer(ctx *ddlContext, w uint32) {
	slot := uint8(fSlot.Get(w))
	switch {
	case slot == slotDRM:
		switch ctx.state.Level {
		case Idle:
			dec.errorf(ctx, w, "DRM trailer outside of a DRM block")
			return
		case InDRM:
			// ok.
		default:
			dec.errorf(ctx, w, "DRM trailer closes an unterminated %v block", ctx.state)
		}
		ctx.out.DRM.Counter = uint16(fDRMCounter.Get(w))
		ctx.state = ctx.state.leaveDRM()

	case slot == slotLTM:
		if ctx.state.Level != InLTM {
			dec.errorf(ctx, w, "LTM trailer outside of an LTM block")
			return
		}
		ctx.out.LTM.Counter = uint16(fLocalCounter.Get(w))
		ctx.state = ctx.state.leaveLTM()

	case firstTRMSlot <= slot && slot <= lastTRMSlot:
		if !ctx.state.InsideTRM() || ctx.state.Slot != slot {
			dec.errorf(ctx, w, "TRM trailer for slot %d outside of its TRM block", slot)
			return
		}
		if ctx.state.Level == InChain {
			dec.errorf(ctx, w, "TRM trailer closes an unterminated chain %d", ctx.state.Chain)
		}
		ctx.trm().Counter = uint16(fLocalCounter.Get(w))
		ctx.state = ctx.state.leaveTRM()

	default:
		dec.errorf(ctx, w, "global trailer with invalid slot %d", slot)
	}
}

func (dec *Decoder) chainHeader(ctx *ddlContext, w uint32, chain uint8) {
	if ctx.state.Level != InTRM {
		dec.errorf(ctx, w, "chain-%d header outside of a TRM block", chain)
		return
	}
	ctx.state = ctx.state.enterChain(chain)
	ctx.trm().Chains[chain].BunchID = uint16(fChainBunch.Get(w))
}

func (dec *Decoder) chainTrailer(ctx *ddlContext, w uint32, chain uint8) {
	if ctx.state.Level != InChain || ctx.state.Chain != chain {
		dec.errorf(ctx, w, "chain-%d trailer outside of its chain", chain)
		return
	}
	ctx.trm().Chains[chain].Status = uint8(fChainStatus.Get(w))
	ctx.trm().Chains[chain].Counter = uint16(fChainCounter.Get(w))
	ctx.state = ctx.state.leaveChain()
}

func (dec *Decoder) tdcError(ctx *ddlContext, w uint32) {
	if !ctx.state.InsideTRM() {
		dec.errorf(ctx, w, "TDC error word outside of a TRM block")
		return
	}
	ctx.out.Stats.TDCErrors++
	ctx.out.TDCErrors = append(ctx.out.TDCErrors, TDCError{
		Slot:  ctx.state.Slot,
		Chain: ctx.state.Chain,
		TDC:   uint8(fErrTDC.Get(w)),
		Flags: uint16(fErrFlags.Get(w)),
	})
}

func (dec *Decoder) hit(ctx *ddlContext, w uint32) {
	if ctx.state.Level != InChain {
		dec.errorf(ctx, w, "TDC hit outside of a chain")
		return
	}

	chain := ctx.state.Chain
	h := Hit{
		DDL:       ctx.ddl,
		Slot:      int(ctx.state.Slot),
		Chain:     int(chain),
		TDC:       int(fHitTDC.Get(w)),
		Channel:   int(fHitChannel.Get(w)),
		PS:        PackingStatus(fHitPS.Get(w)),
		ErrorFlag: fHitErr.Get(w) == 1,
	}

	offset := dec.cor.Offset(ctx.ddl, uint32(ctx.trm().Chains[chain].BunchID), ctx.bunch)
	switch h.PS {
	case PackedHit, OverflowHit:
		var (
			t   = int32(fHitTime.Get(w)) + offset
			tot = int32(fHitTOT.Get(w))
		)
		h.Edges = EdgeBoth
		h.TimeBin = t
		h.TOTBin = tot
		h.LeadingBin = t
		h.TrailingBin = t + tot<<totShift
	case LeadingHit:
		h.setLeading(int32(fHitLong.Get(w)) + offset)
	case TrailingHit:
		h.setTrailing(int32(fHitLong.Get(w)) + offset)
	}

	h.Vol, h.AddrErr = dec.tbl.Volume(h.Equipment())
	if h.AddrErr != nil {
		ctx.out.Stats.Address++
		if !dec.keep {
			dec.msg.Printf("DDL %d word %d: discarding hit: %+v", ctx.ddl, ctx.pos, h.AddrErr)
			return
		}
	}

	err := ctx.buf.Insert(h)
	if err != nil {
		ctx.out.Stats.Dropped++
		dec.msg.Printf("DDL %d word %d: dropping hit %v: %+v", ctx.ddl, ctx.pos, h, err)
	}
}
