package executor

import (
	"fmt"
	"strings"

	"github.com/chirst/relq/catalog"
	"github.com/chirst/relq/expr"
	"github.com/chirst/relq/kv"
	"github.com/chirst/relq/value"
)

// createTable allocates the table and constraint index trees and stores their
// schema objects.
func (x *execution) createTable(ct *CreateTable) (*ExecuteResult, error) {
	if ct.Noop {
		return &ExecuteResult{}, nil
	}
	root, err := x.tx.CreateTree(catalog.SchemaRootPage)
	if err != nil {
		return nil, err
	}
	table := *ct.Table
	table.RootPage = root
	js, err := table.ToJSON()
	if err != nil {
		return nil, err
	}
	err = x.tx.WriteSchemaObject(catalog.Object{
		ObjectType:     catalog.ObjectTable,
		Name:           table.Name,
		TableName:      table.Name,
		RootPageNumber: root,
		JSONSchema:     js,
	})
	if err != nil {
		return nil, err
	}
	for _, idx := range ct.Indexes {
		root, err := x.tx.CreateTree(catalog.SchemaRootPage)
		if err != nil {
			return nil, err
		}
		if err := x.writeIndex(idx, root); err != nil {
			return nil, err
		}
	}
	return &ExecuteResult{}, x.reloadCatalog()
}

func (x *execution) writeIndex(idx *catalog.Index, root int) error {
	js, err := idx.ToJSON()
	if err != nil {
		return err
	}
	return x.tx.WriteSchemaObject(catalog.Object{
		ObjectType:     catalog.ObjectIndex,
		Name:           idx.Name,
		TableName:      idx.Table,
		RootPageNumber: root,
		JSONSchema:     js,
	})
}

// createIndex builds the index from the rows already in the table.
func (x *execution) createIndex(ci *CreateIndex) (*ExecuteResult, error) {
	if ci.Noop {
		return &ExecuteResult{}, nil
	}
	table := ci.Table
	root, err := x.tx.CreateTree(table.RootPage)
	if err != nil {
		return nil, err
	}
	idx := *ci.Index
	idx.RootPage = root
	tc := x.tx.OpenTable(table)
	c := x.tx.NewCursor(table.RootPage, root)
	vals := make([]value.Value, len(idx.Columns))
	ok, err := tc.First()
	for ; ok && err == nil; ok, err = tc.Next() {
		row, rerr := tc.Row()
		if rerr != nil {
			return nil, rerr
		}
		hasNull := false
		for i, col := range idx.Columns {
			vals[i] = row[col]
			hasNull = hasNull || row[col].IsNull()
		}
		if idx.Unique && !hasNull {
			dup, err := x.tx.OpenIndex(table, &idx).SeekPrefix(vals...)
			if err != nil {
				return nil, err
			}
			if dup {
				return nil, fmt.Errorf("%w: index %s on %s", kv.ErrUniqueViolation, idx.Name, table.Name)
			}
		}
		if err := c.Set(kv.IndexKey(vals, tc.RowID()), nil); err != nil {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}
	if err := x.writeIndex(&idx, root); err != nil {
		return nil, err
	}
	return &ExecuteResult{}, x.reloadCatalog()
}

// drop removes schema objects. The pages of a dropped tree are not reused.
func (x *execution) drop(d *Drop) (*ExecuteResult, error) {
	if d.Noop {
		return &ExecuteResult{}, nil
	}
	var match func(catalog.Object) bool
	if d.Index != nil {
		match = func(o catalog.Object) bool {
			return o.ObjectType == catalog.ObjectIndex && strings.EqualFold(o.Name, d.Index.Name)
		}
	} else {
		match = func(o catalog.Object) bool {
			return strings.EqualFold(o.TableName, d.Table.Name)
		}
	}
	n, err := x.tx.DeleteSchemaObjects(match)
	if err != nil {
		return nil, err
	}
	return &ExecuteResult{RowsAffected: int64(n)}, x.reloadCatalog()
}

// reloadCatalog rebuilds the catalog from the schema table while the schema
// block is still locked.
func (x *execution) reloadCatalog() error {
	objects, err := x.tx.ReadSchema()
	if err != nil {
		return err
	}
	return x.exec.kv.GetCatalog().SetSchema(objects)
}

// validate checks that every row decodes and satisfies its constraints and
// that each index holds exactly one entry per row.
func (x *execution) validate(ctx *QueryContext, v *Validate) (*ExecuteResult, error) {
	table := v.Table
	ctx.prepare(1)
	tc := x.tx.OpenTable(table)
	rows := 0
	ok, err := tc.First()
	for ; ok && err == nil; ok, err = tc.Next() {
		row, rerr := tc.Row()
		if rerr != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, rerr)
		}
		rowID := tc.RowID()
		if err := validateRow(ctx, table, v.Checks, rowID, row); err != nil {
			return nil, err
		}
		for _, idx := range table.Indexes {
			key := kv.IndexKey(indexValues(idx, row), rowID)
			found, err := x.tx.NewCursor(table.RootPage, idx.RootPage).Seek(key)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, fmt.Errorf("%w: index %s has no entry for rowid %d", ErrValidation, idx.Name, rowID)
			}
		}
		rows++
	}
	if err != nil {
		return nil, err
	}
	for _, idx := range table.Indexes {
		n, err := x.tx.OpenIndex(table, idx).Count()
		if err != nil {
			return nil, err
		}
		if n != rows {
			return nil, fmt.Errorf("%w: index %s has %d entries for %d rows", ErrValidation, idx.Name, n, rows)
		}
	}
	return &ExecuteResult{
		Text: fmt.Sprintf("table %s ok: %d rows, %d indexes", table.Name, rows, len(table.Indexes)),
	}, nil
}

func validateRow(ctx *QueryContext, table *catalog.Table, checks []expr.Expr, rowID int64, row []value.Value) error {
	rc := table.RowIDColumn
	if rc >= 0 && (row[rc].IsNull() || row[rc].Long() != rowID) {
		return fmt.Errorf("%w: rowid %d stores %s in %s", ErrValidation, rowID, row[rc], table.Columns[rc].Name)
	}
	for i, col := range table.Columns {
		if (col.NotNull || col.PrimaryKey) && row[i].IsNull() {
			return fmt.Errorf("%w: rowid %d: %w: %s", ErrValidation, rowID, kv.ErrNotNullViolation, col.Name)
		}
	}
	if err := checkRow(ctx, table, checks, row); err != nil {
		return fmt.Errorf("%w: rowid %d: %w", ErrValidation, rowID, err)
	}
	return nil
}

func indexValues(idx *catalog.Index, row []value.Value) []value.Value {
	ret := make([]value.Value, len(idx.Columns))
	for i, col := range idx.Columns {
		ret[i] = row[col]
	}
	return ret
}
