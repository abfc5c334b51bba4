// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tof-geo is an interactive shell translating TOF equipment
// addresses into detector volumes, and back.
//
// Usage: tof-geo [COMMAND [ARGS...]]
//
// Example:
//
//	$> tof-geo
//	tof-geo> eqp 46 3 0 2 5
//	eqp{ddl=46 slot=3 chain=0 tdc=2 ch=5} -> vol{sector=11 plate=0 strip=1 padx=37 padz=0} (index=...)
//	tof-geo> vol 11 0 1 37 0
//	[...]
//	tof-geo> quit
//
//	$> tof-geo idx 1234
package main // import "github.com/go-lpc/tof/cmd/tof-geo"

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/go-lpc/tof/geom"
	"github.com/peterh/liner"
)

func main() {
	xmain(os.Stdout, os.Args[1:])
}

func xmain(w io.Writer, args []string) {
	log.SetPrefix("tof-geo: ")
	log.SetFlags(0)

	fset := flag.NewFlagSet("tof-geo", flag.ExitOnError)
	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}

	sh := newShell(w, geom.Default())
	if fset.NArg() > 0 {
		_, err := sh.eval(strings.Join(fset.Args(), " "))
		if err != nil {
			log.Fatalf("%+v", err)
		}
		return
	}

	err = sh.run()
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

var cmds = []string{"eqp", "vol", "idx", "help", "quit"}

type shell struct {
	w   io.Writer
	tbl *geom.Tables
}

func newShell(w io.Writer, tbl *geom.Tables) *shell {
	return &shell{w: w, tbl: tbl}
}

func (sh *shell) run() error {
	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)
	term.SetCompleter(func(line string) []string {
		var out []string
		for _, cmd := range cmds {
			if strings.HasPrefix(cmd, strings.ToLower(line)) {
				out = append(out, cmd)
			}
		}
		return out
	})

	for {
		line, err := term.Prompt("tof-geo> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintf(sh.w, "\n")
				return nil
			}
			return fmt.Errorf("could not read command: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		term.AppendHistory(line)

		quit, err := sh.eval(line)
		if err != nil {
			fmt.Fprintf(sh.w, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// eval evaluates a command line.
func (sh *shell) eval(line string) (quit bool, err error) {
	toks := strings.Fields(line)
	if len(toks) == 0 {
		return false, nil
	}

	cmd, args := strings.ToLower(toks[0]), toks[1:]
	switch cmd {
	case "eqp":
		return false, sh.cmdEqp(args)
	case "vol":
		return false, sh.cmdVol(args)
	case "idx":
		return false, sh.cmdIdx(args)
	case "help", "?":
		sh.help()
		return false, nil
	case "quit", "exit", "q":
		return true, nil
	}
	return false, fmt.Errorf("unknown command %q", cmd)
}

func (sh *shell) help() {
	fmt.Fprintf(sh.w, `commands:
 eqp DDL SLOT CHAIN TDC CHANNEL   translate an equipment address
 vol SECTOR PLATE STRIP PADX PADZ translate a detector volume
 idx INDEX                        translate a global channel index
 help                             display this help
 quit                             leave the shell
`)
}

func (sh *shell) cmdEqp(args []string) error {
	vs, err := atois("eqp", args, 5)
	if err != nil {
		return err
	}
	eq := geom.Equipment{
		DDL:     vs[0],
		Slot:    vs[1],
		Chain:   vs[2],
		TDC:     vs[3],
		Channel: vs[4],
	}
	vol, err := sh.tbl.Volume(eq)
	if err != nil {
		return fmt.Errorf("could not translate %v: %w", eq, err)
	}
	idx, err := geom.Index(vol)
	if err != nil {
		return fmt.Errorf("could not compute index of %v: %w", vol, err)
	}
	fmt.Fprintf(sh.w, "%v -> %v (index=%d)\n", eq, vol, idx)
	return nil
}

func (sh *shell) cmdVol(args []string) error {
	vs, err := atois("vol", args, 5)
	if err != nil {
		return err
	}
	vol := geom.Volume{
		Sector: vs[0],
		Plate:  vs[1],
		Strip:  vs[2],
		PadX:   vs[3],
		PadZ:   vs[4],
	}
	eq, err := sh.tbl.Equipment(vol)
	if err != nil {
		return fmt.Errorf("could not translate %v: %w", vol, err)
	}
	idx, err := geom.Index(vol)
	if err != nil {
		return fmt.Errorf("could not compute index of %v: %w", vol, err)
	}
	fmt.Fprintf(sh.w, "%v -> %v (index=%d)\n", vol, eq, idx)
	return nil
}

func (sh *shell) cmdIdx(args []string) error {
	vs, err := atois("idx", args, 1)
	if err != nil {
		return err
	}
	vol, err := geom.VolumeFromIndex(vs[0])
	if err != nil {
		return fmt.Errorf("could not translate index %d: %w", vs[0], err)
	}
	eq, err := sh.tbl.Equipment(vol)
	if err != nil {
		return fmt.Errorf("could not translate %v: %w", vol, err)
	}
	fmt.Fprintf(sh.w, "index=%d -> %v -> %v\n", vs[0], vol, eq)
	return nil
}

func atois(cmd string, args []string, n int) ([]int, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%s: invalid number of arguments (got=%d, want=%d)", cmd, len(args), n)
	}
	vs := make([]int, n)
	for i, arg := range args {
		v, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid argument %q: %w", cmd, arg, err)
		}
		vs[i] = v
	}
	return vs, nil
}
