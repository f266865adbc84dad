// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fakedb provides an in-memory database/sql driver, registered as
// "fakedb", serving canned rows to queries and recording executed
// statements.
package fakedb // import "github.com/go-lpc/vx1742/internal/fakedb"

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
)

// DriverName is the name under which the fake driver is registered.
const DriverName = "fakedb"

var db struct {
	run   sync.Mutex // serializes Run calls
	mu    sync.Mutex
	rows  Rows
	execs []Exec
}

// Exec describes a statement executed against the fake DB.
type Exec struct {
	Query string
	Args  []driver.Value
}

// Run runs f with the fake DB returning rows to queries.
// Statements executed by f can be retrieved with Executed.
func Run(ctx context.Context, rows Rows, f func(ctx context.Context) error) error {
	db.run.Lock()
	defer db.run.Unlock()

	db.mu.Lock()
	db.rows = rows
	db.execs = nil
	db.mu.Unlock()

	return f(ctx)
}

// Executed returns the statements executed since the last call to Run.
func Executed() []Exec {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]Exec(nil), db.execs...)
}

func init() {
	sql.Register(DriverName, fakeDriver{})
}

type fakeDriver struct{}

func (fakeDriver) Open(name string) (driver.Conn, error) {
	return fakeConn{}, nil
}

type fakeConn struct{}

func (fakeConn) Prepare(query string) (driver.Stmt, error) {
	return &fakeStmt{query: query}, nil
}

func (fakeConn) Close() error { return nil }

func (fakeConn) Begin() (driver.Tx, error) {
	return nil, errors.New("fakedb: transactions not supported")
}

type fakeStmt struct {
	query string
}

func (*fakeStmt) Close() error  { return nil }
func (*fakeStmt) NumInput() int { return -1 }

func (stmt *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.execs = append(db.execs, Exec{
		Query: stmt.query,
		Args:  append([]driver.Value(nil), args...),
	})
	return driver.RowsAffected(1), nil
}

// Query consumes the canned rows: a second query within the same Run
// sees the rows left over by the first one.
func (stmt *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	return &db.rows, nil
}

// Rows is a set of canned rows.
type Rows struct {
	Names  []string
	Values [][]driver.Value
}

func (rows *Rows) Columns() []string { return rows.Names }
func (rows *Rows) Close() error      { return nil }

func (rows *Rows) Next(dest []driver.Value) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if len(rows.Values) == 0 {
		return io.EOF
	}
	copy(dest, rows.Values[0])
	rows.Values = rows.Values[1:]
	return nil
}

var (
	_ driver.Driver = fakeDriver{}
	_ driver.Conn   = fakeConn{}
	_ driver.Stmt   = (*fakeStmt)(nil)
	_ driver.Rows   = (*Rows)(nil)
)
