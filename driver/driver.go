// Package driver enables relq to be used with the go database/sql package.
//
// The connections of one sql.DB share a single database, so an in memory
// database is visible to every connection of the pool.
package driver

// TODO transaction statements are not supported, each statement commits on
// its own.

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"

	"github.com/chirst/relq/db"
	"github.com/chirst/relq/result"
)

// DriverName is the name the driver is registered under.
const DriverName = "relq"

// MemoryDSN opens a database that does not use a file and does not persist
// changes.
const MemoryDSN = ":memory:"

var errNoTransactions = errors.New("transactions are not supported")

func init() {
	sql.Register(DriverName, &relqDriver{})
}

type relqDriver struct{}

// Open implements driver.Driver. Name is the name of the database file without
// the .db extension. If the name is :memory: the database will not use a file
// and will not persist changes.
func (d *relqDriver) Open(name string) (driver.Conn, error) {
	c, err := d.OpenConnector(name)
	if err != nil {
		return nil, err
	}
	return c.Connect(context.Background())
}

// OpenConnector implements driver.DriverContext.
func (d *relqDriver) OpenConnector(name string) (driver.Connector, error) {
	rdb, err := db.New(db.Config{
		UseMemory: name == MemoryDSN,
		Filename:  name,
	})
	if err != nil {
		return nil, err
	}
	return &relqConnector{driver: d, db: rdb}, nil
}

type relqConnector struct {
	driver *relqDriver
	db     *db.DB
}

// Connect implements driver.Connector.
func (c *relqConnector) Connect(context.Context) (driver.Conn, error) {
	return &relqConn{db: c.db}, nil
}

// Driver implements driver.Connector.
func (c *relqConnector) Driver() driver.Driver {
	return c.driver
}

// Close is called by sql.DB.Close.
func (c *relqConnector) Close() error {
	return c.db.Close()
}

type relqConn struct {
	db *db.DB
}

// Begin implements driver.Conn.
func (c *relqConn) Begin() (driver.Tx, error) {
	return nil, errNoTransactions
}

// Close implements driver.Conn.
func (c *relqConn) Close() error {
	return nil
}

// Prepare implements driver.Conn.
func (c *relqConn) Prepare(query string) (driver.Stmt, error) {
	statements, err := c.db.Split(query)
	if err != nil {
		return nil, err
	}
	if len(statements) != 1 {
		return nil, errors.New("driver supports only one statement at a time")
	}
	stmt, err := c.db.Prepare(statements[0])
	if err != nil {
		return nil, err
	}
	return &relqStmt{stmt: stmt}, nil
}

type relqStmt struct {
	stmt *db.Stmt
}

// Close implements driver.Stmt.
func (s *relqStmt) Close() error {
	return nil
}

// NumInput implements driver.Stmt.
func (s *relqStmt) NumInput() int {
	return s.stmt.NumInput()
}

// Exec implements driver.Stmt.
func (s *relqStmt) Exec(args []driver.Value) (driver.Result, error) {
	res := s.stmt.Execute(toAny(args)...)
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Result != nil {
		res.Result.Close()
	}
	return &relqResult{
		rowsAffected: res.RowsAffected,
		lastInsertID: res.LastInsertID,
	}, nil
}

// Query implements driver.Stmt.
func (s *relqStmt) Query(args []driver.Value) (driver.Rows, error) {
	res := s.stmt.Execute(toAny(args)...)
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Result != nil {
		return &relqRows{result: res.Result}, nil
	}
	return newTextRows(res.Text), nil
}

func toAny(args []driver.Value) []any {
	aarg := make([]any, 0, len(args))
	for _, arg := range args {
		aarg = append(aarg, arg)
	}
	return aarg
}

type relqResult struct {
	rowsAffected int64
	lastInsertID int64
}

// LastInsertId implements driver.Result.
func (r *relqResult) LastInsertId() (int64, error) {
	return r.lastInsertID, nil
}

// RowsAffected implements driver.Result.
func (r *relqResult) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}

// relqRows reads the rows of a select result. Values are returned as int64,
// float64, bool, string, []byte, time.Time or nil.
type relqRows struct {
	result *result.SelectResult
	rowIdx int
}

// Close implements driver.Rows.
func (r *relqRows) Close() error {
	r.result.Close()
	return nil
}

// Columns implements driver.Rows.
func (r *relqRows) Columns() []string {
	return r.result.Columns()
}

// Next implements driver.Rows.
func (r *relqRows) Next(dest []driver.Value) error {
	if r.rowIdx == r.result.RowCount() {
		return io.EOF
	}
	row, err := r.result.Row(r.rowIdx)
	if err != nil {
		return err
	}
	for i, v := range row {
		dest[i] = v.Any()
	}
	r.rowIdx += 1
	return nil
}

// textRows returns the text of statements like EXPLAIN QUERY PLAN as a single
// column with one row per line.
type textRows struct {
	lines  []string
	rowIdx int
}

func newTextRows(text string) *textRows {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return &textRows{}
	}
	return &textRows{lines: strings.Split(text, "\n")}
}

// Close implements driver.Rows.
func (r *textRows) Close() error {
	return nil
}

// Columns implements driver.Rows.
func (r *textRows) Columns() []string {
	return []string{"text"}
}

// Next implements driver.Rows.
func (r *textRows) Next(dest []driver.Value) error {
	if r.rowIdx == len(r.lines) {
		return io.EOF
	}
	dest[0] = r.lines[r.rowIdx]
	r.rowIdx += 1
	return nil
}
