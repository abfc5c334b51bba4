// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xcnv

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/go-lpc/tof/geom"
	"github.com/go-lpc/tof/rawdata"
	"go-hep.org/x/hep/lcio"
)

// Raw2LCIO decodes the raw DDL records read from r and writes them,
// with the decoded hits, as LCIO events.
//
// Consecutive records sharing the same orbit and bunch crossing belong
// to the same event.
func Raw2LCIO(w *lcio.Writer, r *rawdata.Reader, dec *rawdata.Decoder, run int32, msg *log.Logger) error {
	err := w.WriteRunHeader(&lcio.RunHeader{
		RunNumber: run,
		Detector:  detector,
		Descr:     "",
		Params: lcio.Params{
			Ints: map[string][]int32{
				"DDLs":     {geom.NDDLs},
				"Channels": {geom.NChannels},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("could not write run header: %w", err)
	}

	var (
		recs  []rawdata.Record
		ievt  int32
		stats rawdata.Stats
	)

	flush := func() error {
		if len(recs) == 0 {
			return nil
		}
		if ievt%100 == 0 {
			msg.Printf("processing evt %d...", ievt)
		}
		ddls, err := dec.DecodeEvent(recs)
		if err != nil {
			return fmt.Errorf("could not decode event %d: %w", ievt, err)
		}

		evt := lcio.Event{
			RunNumber:   run,
			EventNumber: ievt,
			TimeStamp:   timeStamp(recs[0].Header),
			Detector:    detector,
		}
		evt.Add(RawCollection, rawObject(recs))

		hits := &lcio.GenericObject{}
		for _, ddl := range ddls {
			stats.Add(ddl.Stats)
			for _, h := range ddl.Hits {
				hits.Data = append(hits.Data, lcio.GenericObjectData{I32s: i32sFromHit(h)})
			}
		}
		evt.Add(HitCollection, hits)

		err = w.WriteEvent(&evt)
		if err != nil {
			return fmt.Errorf("could not write event %d: %w", ievt, err)
		}
		ievt++
		recs = recs[:0]
		return nil
	}

	for {
		rec, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("could not read raw record: %w", err)
		}
		if len(recs) > 0 && !sameEvent(recs[0].Header, rec.Header) {
			err = flush()
			if err != nil {
				return err
			}
		}
		recs = append(recs, rec)
	}

	err = flush()
	if err != nil {
		return err
	}

	msg.Printf(
		"events: %d, hits: %d, orphans: %d, structural errors: %d, address errors: %d, dropped: %d",
		ievt, stats.Hits, stats.Orphans, stats.Structural, stats.Address, stats.Dropped,
	)
	return nil
}

func sameEvent(a, b rawdata.DataHeader) bool {
	return a.Orbit == b.Orbit && a.BunchID == b.BunchID
}

// timeStamp returns the event time stamp, in bunch crossings.
func timeStamp(hdr rawdata.DataHeader) int64 {
	const bcPerOrbit = 3564
	return int64(hdr.Orbit)*bcPerOrbit + int64(hdr.BunchID)
}

func rawObject(recs []rawdata.Record) *lcio.GenericObject {
	obj := &lcio.GenericObject{
		Data: make([]lcio.GenericObjectData, len(recs)),
	}
	for i, rec := range recs {
		var (
			hdr = rec.Header.Words()
			raw = make([]int32, 0, len(hdr)+len(rec.Words))
		)
		for _, w := range hdr {
			raw = append(raw, int32(w))
		}
		for _, w := range rec.Words {
			raw = append(raw, int32(w))
		}
		obj.Data[i].I32s = raw
	}
	return obj
}
