// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tof-daq starts a TDAQ process decoding TOF raw data frames
// into hit frames.
//
// Raw frames are received on the /raw input, decoded hits are
// published on the /hits output.
// Mail alerts about the decoding error rate are sent to the recipients
// listed in MAIL_TGTS, using the MAIL_USERNAME, MAIL_PASSWORD,
// MAIL_SERVER and MAIL_PORT credentials.
package main // import "github.com/go-lpc/tof/cmd/tof-daq"

import (
	"context"
	"log"
	"os"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/tof/daq"
	"github.com/go-lpc/tof/internal/alert"
	"github.com/go-lpc/tof/rawdata"
)

func main() {
	cmd := flags.New()

	var (
		msg  = log.New(os.Stdout, "tof-daq: ", 0)
		mail = alert.FromEnv("tof-daq")
		opts []daq.Option
	)
	if mail.Valid() {
		opts = append(opts, daq.WithAlerter(mail))
	}

	dev := daq.New(
		cmd.Args[0],
		rawdata.NewDecoder(rawdata.WithLogger(msg)),
		opts...,
	)

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.InputHandle("/raw", dev.Raw)
	srv.OutputHandle("/hits", dev.Hits)

	srv.RunHandle(dev.Run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}
