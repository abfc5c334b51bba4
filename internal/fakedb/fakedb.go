// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fakedb provides an in-memory SQL driver serving canned rows
// and recording executed statements.
package fakedb // import "github.com/go-lpc/tof/internal/fakedb"

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"sync"
)

// Name is the name under which the driver is registered.
const Name = "fakedb"

var state struct {
	mu    sync.Mutex
	rows  Rows
	execs []Exec
	tx    TxState
}

// Exec is a statement executed against the fake database.
type Exec struct {
	Query string
	Args  []driver.Value
}

// TxState counts the transactions handled by the fake database.
type TxState struct {
	Begin    int
	Commit   int
	Rollback int
}

// Session holds what happened during a Run call.
type Session struct {
	Execs []Exec
	Tx    TxState
}

// Run serves rows to all the queries issued by f.
// Concurrent calls to Run are serialized.
func Run(ctx context.Context, rows Rows, f func(ctx context.Context) error) error {
	_, err := Record(ctx, rows, f)
	return err
}

// Record is like Run and also returns the statements executed by f.
func Record(ctx context.Context, rows Rows, f func(ctx context.Context) error) (Session, error) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.rows = rows
	state.execs = nil
	state.tx = TxState{}

	err := f(ctx)
	return Session{Execs: state.execs, Tx: state.tx}, err
}

func init() {
	sql.Register(Name, &Driver{})
}

type Driver struct{}

func (drv *Driver) Open(name string) (driver.Conn, error) {
	return &Conn{}, nil
}

type Conn struct{}

func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return &Stmt{query: query}, nil
}

func (c *Conn) Close() error {
	return nil
}

func (c *Conn) Begin() (driver.Tx, error) {
	state.tx.Begin++
	return &Tx{}, nil
}

type Tx struct{}

func (tx *Tx) Commit() error {
	state.tx.Commit++
	return nil
}

func (tx *Tx) Rollback() error {
	state.tx.Rollback++
	return nil
}

type Stmt struct {
	query string
}

func (stmt *Stmt) Close() error {
	return nil
}

// NumInput returns -1: placeholders are not checked.
func (stmt *Stmt) NumInput() int {
	return -1
}

func (stmt *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	state.execs = append(state.execs, Exec{
		Query: stmt.query,
		Args:  append([]driver.Value(nil), args...),
	})
	return driver.RowsAffected(1), nil
}

func (stmt *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return &state.rows, nil
}

// Rows is a set of canned rows.
type Rows struct {
	Names  []string
	Values [][]driver.Value
}

func (rows *Rows) Columns() []string {
	return rows.Names
}

func (rows *Rows) Close() error {
	return nil
}

// Next consumes the first of the remaining rows.
func (rows *Rows) Next(dest []driver.Value) error {
	if len(rows.Values) == 0 {
		return io.EOF
	}
	copy(dest, rows.Values[0])
	rows.Values = rows.Values[1:]
	return nil
}

var (
	_ driver.Driver = (*Driver)(nil)
	_ driver.Conn   = (*Conn)(nil)
	_ driver.Tx     = (*Tx)(nil)
	_ driver.Stmt   = (*Stmt)(nil)
	_ driver.Rows   = (*Rows)(nil)
)
