// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target to run when none is specified.
var Default = Build

var cmds = []string{
	"lcio2tof",
	"tof-boot",
	"tof-daq",
	"tof-dump",
	"tof-geo",
	"tof-lcio-dump",
	"tof-rawgen",
	"tof-sql",
	"tof2lcio",
}

// Build builds all the commands into ./bin.
func Build() error {
	mg.Deps(Vet)
	for _, name := range cmds {
		fmt.Printf("building %s...\n", name)
		err := sh.RunV("go", "build", "-o", filepath.Join("bin", name), "./cmd/"+name)
		if err != nil {
			return fmt.Errorf("could not build %q: %w", name, err)
		}
	}
	return nil
}

// Vet runs go vet over all packages.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Test runs the tests of all packages.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Clean removes the built commands.
func Clean() error {
	return os.RemoveAll("bin")
}
