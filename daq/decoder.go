// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package daq implements the TDAQ process decoding TOF raw data.
package daq // import "github.com/go-lpc/tof/daq"

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/go-daq/tdaq"
	"github.com/go-lpc/tof/rawdata"
)

// Alerter sends alerts to the shifters.
type Alerter interface {
	Alert(subject, body string) error
}

// Decoder is a TDAQ process receiving raw DDL records on its input
// and publishing the decoded hits on its output.
type Decoder struct {
	name  string
	dec   *rawdata.Decoder
	alert Alerter
	rate  float64 // maximum structural error rate, per record
	queue int

	in  chan []rawdata.Record
	out chan []byte

	mu     sync.Mutex
	nevts  int
	nrecs  int
	stats  rawdata.Stats
	failed int // events that could not be decoded
}

// Option configures a DAQ decoder.
type Option func(*Decoder)

// WithAlerter sets the alerter notified at the end of runs with too
// many structural errors.
func WithAlerter(a Alerter) Option {
	return func(srv *Decoder) {
		srv.alert = a
	}
}

// WithMaxErrorRate sets the maximum number of structural errors per
// record above which an alert is raised.
func WithMaxErrorRate(v float64) Option {
	return func(srv *Decoder) {
		srv.rate = v
	}
}

// WithQueue sets the depth of the input and output queues.
func WithQueue(n int) Option {
	return func(srv *Decoder) {
		srv.queue = n
	}
}

// New creates a new DAQ decoder named name, decoding records with dec.
func New(name string, dec *rawdata.Decoder, opts ...Option) *Decoder {
	srv := &Decoder{
		name:  name,
		dec:   dec,
		rate:  0.1,
		queue: 1024,
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.reset()
	return srv
}

func (srv *Decoder) reset() {
	srv.in = make(chan []rawdata.Record, srv.queue)
	srv.out = make(chan []byte, srv.queue)

	srv.mu.Lock()
	srv.nevts = 0
	srv.nrecs = 0
	srv.stats = rawdata.Stats{}
	srv.failed = 0
	srv.mu.Unlock()
}

// Stats returns the number of decoded events and records, and the
// accumulated decoding statistics since the last reset.
func (srv *Decoder) Stats() (nevts, nrecs int, stats rawdata.Stats) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.nevts, srv.nrecs, srv.stats
}

func (srv *Decoder) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	return nil
}

func (srv *Decoder) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	srv.reset()
	return nil
}

func (srv *Decoder) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	srv.reset()
	return nil
}

func (srv *Decoder) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	return nil
}

func (srv *Decoder) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	nevts, nrecs, stats := srv.Stats()
	ctx.Msg.Debugf("received /stop command... -> nevts=%d, nrecs=%d", nevts, nrecs)
	ctx.Msg.Infof("stats: %+v", stats)

	if !srv.overRate() {
		return nil
	}

	body := srv.report()
	ctx.Msg.Errorf("structural error rate above threshold:\n%s", body)
	if srv.alert == nil {
		return nil
	}
	err := srv.alert.Alert("TOF decoding error rate", body)
	if err != nil {
		// a failed alert does not prevent the process from stopping.
		ctx.Msg.Errorf("could not send alert: %+v", err)
	}
	return nil
}

func (srv *Decoder) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	return nil
}

// overRate reports whether the structural error rate exceeds the
// configured threshold.
func (srv *Decoder) overRate() bool {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.rate <= 0 || srv.nrecs == 0 {
		return false
	}
	return float64(srv.stats.Structural)/float64(srv.nrecs) > srv.rate
}

func (srv *Decoder) report() string {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	o := new(strings.Builder)
	fmt.Fprintf(o, "process:    %s\n", srv.name)
	fmt.Fprintf(o, "events:     %d (failed: %d)\n", srv.nevts, srv.failed)
	fmt.Fprintf(o, "records:    %d\n", srv.nrecs)
	fmt.Fprintf(o, "words:      %d\n", srv.stats.Words)
	fmt.Fprintf(o, "hits:       %d\n", srv.stats.Hits)
	fmt.Fprintf(o, "structural: %d (rate=%.3f, max=%.3f)\n",
		srv.stats.Structural,
		float64(srv.stats.Structural)/float64(srv.nrecs),
		srv.rate,
	)
	fmt.Fprintf(o, "address:    %d\n", srv.stats.Address)
	fmt.Fprintf(o, "dropped:    %d\n", srv.stats.Dropped)
	fmt.Fprintf(o, "tdc-errors: %d\n", srv.stats.TDCErrors)
	return o.String()
}

// Raw is the input handler receiving frames of raw DDL records.
// Each frame holds the records of one event.
func (srv *Decoder) Raw(ctx tdaq.Context, src tdaq.Frame) error {
	recs, err := readRecords(src.Body)
	if err != nil {
		ctx.Msg.Errorf("could not read raw frame: %+v", err)
		return fmt.Errorf("daq: could not read raw frame: %w", err)
	}

	select {
	case <-ctx.Ctx.Done():
		return nil
	case srv.in <- recs:
	}
	return nil
}

// Hits is the output handler publishing frames of decoded hits.
func (srv *Decoder) Hits(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-srv.out:
		dst.Body = data
	}
	return nil
}

// Run decodes events as they arrive until the run is stopped.
func (srv *Decoder) Run(ctx tdaq.Context) error {
	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		case recs := <-srv.in:
			data, err := srv.process(recs)
			if err != nil {
				ctx.Msg.Errorf("could not decode event: %+v", err)
				continue
			}
			select {
			case <-ctx.Ctx.Done():
				return nil
			case srv.out <- data:
			}
		}
	}
}

// process decodes the records of an event and encodes the
// resulting hits into a hit frame body.
func (srv *Decoder) process(recs []rawdata.Record) ([]byte, error) {
	ddls, err := srv.dec.DecodeEvent(recs)
	if err != nil {
		srv.mu.Lock()
		srv.failed++
		srv.mu.Unlock()
		return nil, err
	}

	var (
		hits  []rawdata.Hit
		stats rawdata.Stats
	)
	for _, ddl := range ddls {
		hits = append(hits, ddl.Hits...)
		stats.Add(ddl.Stats)
	}

	srv.mu.Lock()
	srv.nevts++
	srv.nrecs += len(recs)
	srv.stats.Add(stats)
	srv.mu.Unlock()

	return MarshalHits(hits)
}

func readRecords(p []byte) ([]rawdata.Record, error) {
	var (
		recs []rawdata.Record
		r    = rawdata.NewReader(bytes.NewReader(p))
	)
	for {
		rec, err := r.Next()
		if err != nil {
			if err == io.EOF {
				return recs, nil
			}
			return nil, err
		}
		recs = append(recs, rec)
	}
}
