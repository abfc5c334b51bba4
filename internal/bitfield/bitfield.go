// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bitfield packs and unpacks integer sub-fields of 32-bit words.
package bitfield // import "github.com/go-lpc/tof/internal/bitfield"

// Field describes a sub-field of a 32-bit word.
// Mask is applied after the word has been shifted right by Shift.
type Field struct {
	Mask  uint32
	Shift uint8
}

// Range returns the field spanning bits [lo,hi] (inclusive).
func Range(lo, hi uint8) Field {
	n := hi - lo + 1
	if n >= 32 {
		return Field{Mask: 0xffffffff, Shift: lo}
	}
	return Field{Mask: 1<<n - 1, Shift: lo}
}

// Get extracts the field value from word.
func (f Field) Get(word uint32) uint32 {
	return (word >> f.Shift) & f.Mask
}

// Put returns the contribution of v to a word.
// Bits of v outside of the field are discarded.
func (f Field) Put(v uint32) uint32 {
	return (v & f.Mask) << f.Shift
}

// Set replaces the field of word with v.
func (f Field) Set(word, v uint32) uint32 {
	return word&^(f.Mask<<f.Shift) | f.Put(v)
}

// Fits reports whether v can be stored in the field without truncation.
func (f Field) Fits(v uint32) bool {
	return v&^f.Mask == 0
}

// Max returns the largest value the field can hold.
func (f Field) Max() uint32 { return f.Mask }
