package kv

import (
	"bytes"
	"fmt"

	"github.com/chirst/relq/catalog"
	"github.com/chirst/relq/value"
)

// TableCursor iterates the rows of a table in rowid order.
type TableCursor struct {
	table   *catalog.Table
	kinds   []value.Kind
	c       *Cursor
	row     []value.Value
	decoded bool
}

// OpenTable opens a cursor on table. The transaction must hold a lock on the
// table's block before the cursor is moved.
func (tx *Transaction) OpenTable(table *catalog.Table) *TableCursor {
	kinds := make([]value.Kind, len(table.Columns))
	for i, col := range table.Columns {
		kinds[i] = col.Type.Kind()
	}
	return &TableCursor{
		table: table,
		kinds: kinds,
		c:     tx.NewCursor(table.RootPage, table.RootPage),
	}
}

// Table returns the table the cursor reads.
func (tc *TableCursor) Table() *catalog.Table {
	return tc.table
}

// Block returns the lock block of the table.
func (tc *TableCursor) Block() int {
	return tc.table.RootPage
}

// PageNumber returns the leaf page holding the current row.
func (tc *TableCursor) PageNumber() int {
	return tc.c.PageNumber()
}

// Valid reports whether the cursor points to a row.
func (tc *TableCursor) Valid() bool {
	return tc.c.Valid()
}

func (tc *TableCursor) moved(ok bool, err error) (bool, error) {
	tc.decoded = false
	return ok, err
}

// First moves to the first row.
func (tc *TableCursor) First() (bool, error) {
	return tc.moved(tc.c.First())
}

// Next moves to the next row.
func (tc *TableCursor) Next() (bool, error) {
	return tc.moved(tc.c.Next())
}

// NextInPage moves to the next row on the current leaf.
func (tc *TableCursor) NextInPage() bool {
	ok := tc.c.NextInPage()
	if ok {
		tc.decoded = false
	}
	return ok
}

// NextPage moves to the first row of the next leaf.
func (tc *TableCursor) NextPage() (bool, error) {
	return tc.moved(tc.c.NextPage())
}

// SeekRowID moves to the row with rowid id and reports whether it exists.
func (tc *TableCursor) SeekRowID(id int64) (bool, error) {
	return tc.moved(tc.c.Seek(EncodeRowID(id)))
}

// RowID returns the rowid of the current row.
func (tc *TableCursor) RowID() int64 {
	return DecodeRowID(tc.c.Key())
}

// Row returns the decoded current row. The slice is reused until the cursor
// moves.
func (tc *TableCursor) Row() ([]value.Value, error) {
	if tc.decoded {
		return tc.row, nil
	}
	row, err := DecodeRecord(tc.c.Value(), tc.kinds)
	if err != nil {
		return nil, fmt.Errorf("table %s rowid %d: %w", tc.table.Name, tc.RowID(), err)
	}
	tc.row = row
	tc.decoded = true
	return row, nil
}

// Column returns column i of the current row.
func (tc *TableCursor) Column(i int) (value.Value, error) {
	row, err := tc.Row()
	if err != nil {
		return value.Value{}, err
	}
	return row[i], nil
}

// Count returns the number of rows in the table.
func (tc *TableCursor) Count() (int, error) {
	return tc.c.Count()
}

// IndexCursor iterates the rowids of index entries sharing a key prefix.
type IndexCursor struct {
	index  *catalog.Index
	block  int
	c      *Cursor
	prefix []byte
}

// OpenIndex opens a cursor on an index of table.
func (tx *Transaction) OpenIndex(table *catalog.Table, index *catalog.Index) *IndexCursor {
	return &IndexCursor{
		index: index,
		block: table.RootPage,
		c:     tx.NewCursor(table.RootPage, index.RootPage),
	}
}

// Index returns the index the cursor reads.
func (ic *IndexCursor) Index() *catalog.Index {
	return ic.index
}

// Block returns the lock block of the index, which is its table's block.
func (ic *IndexCursor) Block() int {
	return ic.block
}

// PageNumber returns the leaf page holding the current entry.
func (ic *IndexCursor) PageNumber() int {
	return ic.c.PageNumber()
}

// SeekPrefix moves to the first entry whose leading columns equal values.
func (ic *IndexCursor) SeekPrefix(values ...value.Value) (bool, error) {
	ic.prefix = ic.prefix[:0]
	for _, v := range values {
		ic.prefix = value.AppendKey(ic.prefix, v)
	}
	ok, err := ic.c.SeekGE(ic.prefix)
	if err != nil || !ok {
		return false, err
	}
	return bytes.HasPrefix(ic.c.Key(), ic.prefix), nil
}

// Next moves to the next entry with the same prefix.
func (ic *IndexCursor) Next() (bool, error) {
	ok, err := ic.c.Next()
	if err != nil || !ok {
		return false, err
	}
	return bytes.HasPrefix(ic.c.Key(), ic.prefix), nil
}

// RowID returns the rowid of the current entry.
func (ic *IndexCursor) RowID() int64 {
	return DecodeRowID(ic.c.Key())
}

// Count returns the number of entries in the index.
func (ic *IndexCursor) Count() (int, error) {
	return ic.c.Count()
}

// NewRowID returns the largest rowid of table plus one, or 1 when the table is
// empty.
func (tx *Transaction) NewRowID(table *catalog.Table) (int64, error) {
	c := tx.NewCursor(table.RootPage, table.RootPage)
	ok, err := c.Last()
	if err != nil || !ok {
		return 1, err
	}
	return DecodeRowID(c.Key()) + 1, nil
}

func indexValues(index *catalog.Index, row []value.Value) []value.Value {
	ret := make([]value.Value, len(index.Columns))
	for i, col := range index.Columns {
		ret[i] = row[col]
	}
	return ret
}

// InsertRow stores row under rowID and adds its index entries. NOT NULL and
// uniqueness are enforced. Columns must already be coerced to their types.
func (tx *Transaction) InsertRow(table *catalog.Table, rowID int64, row []value.Value) error {
	for i, col := range table.Columns {
		if (col.NotNull || col.PrimaryKey) && row[i].IsNull() {
			return fmt.Errorf("%w: %s.%s", ErrNotNullViolation, table.Name, col.Name)
		}
	}
	tc := tx.NewCursor(table.RootPage, table.RootPage)
	key := EncodeRowID(rowID)
	exists, err := tc.Seek(key)
	if err != nil {
		return err
	}
	if exists {
		name := "rowid"
		if table.RowIDColumn >= 0 {
			name = table.Columns[table.RowIDColumn].Name
		}
		return fmt.Errorf("%w: %s.%s = %d", ErrUniqueViolation, table.Name, name, rowID)
	}
	for _, idx := range table.Indexes {
		if !idx.Unique {
			continue
		}
		vals := indexValues(idx, row)
		if hasNull(vals) {
			continue
		}
		ic := tx.OpenIndex(table, idx)
		dup, err := ic.SeekPrefix(vals...)
		if err != nil {
			return err
		}
		if dup {
			return fmt.Errorf("%w: index %s on %s", ErrUniqueViolation, idx.Name, table.Name)
		}
	}
	rec, err := EncodeRecord(row)
	if err != nil {
		return err
	}
	if err := tc.Set(key, rec); err != nil {
		return fmt.Errorf("table %s: %w", table.Name, err)
	}
	for _, idx := range table.Indexes {
		c := tx.NewCursor(table.RootPage, idx.RootPage)
		if err := c.Set(IndexKey(indexValues(idx, row), rowID), nil); err != nil {
			return fmt.Errorf("index %s: %w", idx.Name, err)
		}
	}
	return nil
}

// DeleteRow removes the row with rowID and its index entries.
func (tx *Transaction) DeleteRow(table *catalog.Table, rowID int64) error {
	tc := tx.OpenTable(table)
	ok, err := tc.SeekRowID(rowID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s rowid %d", ErrRowNotFound, table.Name, rowID)
	}
	row, err := tc.Row()
	if err != nil {
		return err
	}
	for _, idx := range table.Indexes {
		c := tx.NewCursor(table.RootPage, idx.RootPage)
		if _, err := c.Delete(IndexKey(indexValues(idx, row), rowID)); err != nil {
			return err
		}
	}
	_, err = tc.c.Delete(EncodeRowID(rowID))
	return err
}

// UpdateRow replaces the row with oldRowID by row stored under newRowID.
func (tx *Transaction) UpdateRow(table *catalog.Table, oldRowID, newRowID int64, row []value.Value) error {
	if err := tx.DeleteRow(table, oldRowID); err != nil {
		return err
	}
	return tx.InsertRow(table, newRowID, row)
}

func hasNull(vals []value.Value) bool {
	for _, v := range vals {
		if v.IsNull() {
			return true
		}
	}
	return false
}
