// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strings"
	"testing"

	"github.com/go-lpc/tof/geom"
)

func TestEval(t *testing.T) {
	var (
		tbl = geom.Default()
		vol = geom.Volume{Sector: 11, Plate: 0, Strip: 1, PadX: 37, PadZ: 0}
	)
	eq, err := tbl.Equipment(vol)
	if err != nil {
		t.Fatalf("could not translate volume: %+v", err)
	}
	idx, err := geom.Index(vol)
	if err != nil {
		t.Fatalf("could not compute index: %+v", err)
	}

	for _, tc := range []struct {
		line string
		want string
		quit bool
		err  string
	}{
		{
			line: fmt.Sprintf("eqp %d %d %d %d %d", eq.DDL, eq.Slot, eq.Chain, eq.TDC, eq.Channel),
			want: fmt.Sprintf("%v -> %v (index=%d)\n", eq, vol, idx),
		},
		{
			line: "vol 11 0 1 37 0",
			want: fmt.Sprintf("%v -> %v (index=%d)\n", vol, eq, idx),
		},
		{
			line: fmt.Sprintf("IDX %d", idx),
			want: fmt.Sprintf("index=%d -> %v -> %v\n", idx, vol, eq),
		},
		{
			line: "help",
			want: "commands:\n",
		},
		{
			line: "quit",
			quit: true,
		},
		{
			line: "",
		},
		{
			line: "eqp 1 2 3",
			err:  "eqp: invalid number of arguments (got=3, want=5)",
		},
		{
			line: "idx x",
			err:  `idx: invalid argument "x": strconv.Atoi: parsing "x": invalid syntax`,
		},
		{
			line: "idx -1",
			err:  "could not translate index -1",
		},
		{
			line: "eqp 0 1 0 0 0",
			err:  "could not translate eqp{ddl=0 slot=1 chain=0 tdc=0 ch=0}",
		},
		{
			line: "vol 0 9 0 0 0",
			err:  "could not translate vol{sector=0 plate=9 strip=0 padx=0 padz=0}",
		},
		{
			line: "boo",
			err:  `unknown command "boo"`,
		},
	} {
		t.Run(tc.line, func(t *testing.T) {
			out := new(strings.Builder)
			sh := newShell(out, tbl)
			quit, err := sh.eval(tc.line)
			switch {
			case err != nil && tc.err != "":
				if got, want := err.Error(), tc.err; !strings.HasPrefix(got, want) {
					t.Fatalf("invalid error:\ngot= %v\nwant=%v", got, want)
				}
				return
			case err != nil:
				t.Fatalf("could not eval %q: %+v", tc.line, err)
			case tc.err != "":
				t.Fatalf("expected an error (%s)", tc.err)
			}
			if quit != tc.quit {
				t.Fatalf("invalid quit status: got=%v, want=%v", quit, tc.quit)
			}
			if got, want := out.String(), tc.want; !strings.HasPrefix(got, want) {
				t.Fatalf("invalid output:\ngot= %q\nwant=%q", got, want)
			}
		})
	}
}

func TestXMain(t *testing.T) {
	out := new(strings.Builder)
	xmain(out, []string{"idx", "0"})
	if !strings.HasPrefix(out.String(), "index=0 -> ") {
		t.Fatalf("invalid output: %q", out.String())
	}
}
