// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package geom

import "fmt"

// ErrorKind classifies address translation failures.
type ErrorKind uint8

const (
	PlateError ErrorKind = iota + 1
	StripError
	PadError
	SectorError
)

func (k ErrorKind) String() string {
	switch k {
	case PlateError:
		return "plate"
	case StripError:
		return "strip"
	case PadError:
		return "pad"
	case SectorError:
		return "sector"
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// Error is returned when an address can not be translated.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return "geom: " + e.Kind.String() + " error"
	}
	return "geom: " + e.Kind.String() + " error: " + e.Msg
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

var (
	ErrPlate  = &Error{Kind: PlateError}
	ErrStrip  = &Error{Kind: StripError}
	ErrPad    = &Error{Kind: PadError}
	ErrSector = &Error{Kind: SectorError}
)

func errorf(kind ErrorKind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
