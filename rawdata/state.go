// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rawdata

import "fmt"

// Level is the nesting level of the decoding automaton.
type Level uint8

const (
	Idle    Level = iota // outside of any DRM block
	InDRM                // inside a DRM block, outside of TRM and LTM blocks
	InLTM                // inside the LTM block
	InTRM                // inside a TRM block, outside of chains
	InChain              // inside a chain of a TRM block
)

func (lvl Level) String() string {
	switch lvl {
	case Idle:
		return "idle"
	case InDRM:
		return "drm"
	case InLTM:
		return "ltm"
	case InTRM:
		return "trm"
	case InChain:
		return "chain"
	}
	return fmt.Sprintf("Level(%d)", uint8(lvl))
}

// State is the state of the decoding automaton.
// Slot is meaningful for the InTRM and InChain levels,
// Chain for the InChain level only.
type State struct {
	Level Level
	Slot  uint8
	Chain uint8
}

func (s State) String() string {
	switch s.Level {
	case InTRM:
		return fmt.Sprintf("trm[slot=%d]", s.Slot)
	case InChain:
		return fmt.Sprintf("chain[slot=%d chain=%d]", s.Slot, s.Chain)
	}
	return s.Level.String()
}

// InsideDRM reports whether the automaton is within a DRM block.
func (s State) InsideDRM() bool { return s.Level != Idle }

// InsideTRM reports whether the automaton is within a TRM block.
func (s State) InsideTRM() bool { return s.Level == InTRM || s.Level == InChain }

func (s State) enterDRM() State { return State{Level: InDRM} }
func (s State) enterLTM() State { return State{Level: InLTM} }
func (s State) leaveLTM() State { return State{Level: InDRM} }
func (s State) leaveDRM() State { return State{Level: Idle} }

func (s State) enterTRM(slot uint8) State { return State{Level: InTRM, Slot: slot} }
func (s State) leaveTRM() State           { return State{Level: InDRM} }

func (s State) enterChain(chain uint8) State {
	return State{Level: InChain, Slot: s.Slot, Chain: chain}
}

func (s State) leaveChain() State { return State{Level: InTRM, Slot: s.Slot} }
