package executor

import (
	"fmt"
	"slices"

	"github.com/chirst/relq/catalog"
	"github.com/chirst/relq/expr"
	"github.com/chirst/relq/kv"
	"github.com/chirst/relq/value"
)

// insert adds the rows of ins. Source rows are read in full before the first
// row is stored so INSERT ... SELECT from the same table sees no new rows.
func (x *execution) insert(ctx *QueryContext, ins *Insert) (*ExecuteResult, error) {
	var rows [][]value.Value
	if ins.Source != nil {
		res, err := x.query(ctx, ins.Source, 0)
		if err != nil {
			return nil, err
		}
		for i := 0; i < res.RowCount(); i++ {
			row, err := res.Row(i)
			if err != nil {
				res.Close()
				return nil, err
			}
			rows = append(rows, row)
		}
		res.Close()
	} else {
		ctx.prepare(0)
		for _, exprs := range ins.Rows {
			row := make([]value.Value, len(exprs))
			for i, e := range exprs {
				v, err := expr.Eval(ctx, e)
				if err != nil {
					return nil, err
				}
				row[i] = v
			}
			rows = append(rows, row)
		}
	}
	table := ins.Table
	ctx.prepare(1)
	out := &ExecuteResult{}
	for _, vals := range rows {
		row := make([]value.Value, len(table.Columns))
		assigned := make([]bool, len(table.Columns))
		for i, col := range ins.Columns {
			row[col] = vals[i]
			assigned[col] = true
		}
		for i, d := range ins.Defaults {
			if assigned[i] || d == nil {
				continue
			}
			v, err := expr.Eval(ctx, d)
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
		if err := coerceRow(table, row); err != nil {
			return nil, err
		}
		rowID, err := x.rowID(table, row)
		if err != nil {
			return nil, err
		}
		if err := checkRow(ctx, table, ins.Checks, row); err != nil {
			return nil, err
		}
		if err := x.tx.InsertRow(table, rowID, row); err != nil {
			return nil, err
		}
		out.RowsAffected++
		out.LastInsertID = rowID
	}
	return out, nil
}

// rowID returns the rowid of a new row. A NULL rowid column is assigned the
// next rowid of the table.
func (x *execution) rowID(table *catalog.Table, row []value.Value) (int64, error) {
	rc := table.RowIDColumn
	if rc >= 0 && !row[rc].IsNull() {
		return row[rc].Long(), nil
	}
	id, err := x.tx.NewRowID(table)
	if err != nil {
		return 0, err
	}
	if rc >= 0 {
		row[rc] = value.LongValue(id)
	}
	return id, nil
}

func coerceRow(table *catalog.Table, row []value.Value) error {
	for i := range row {
		v, err := table.Columns[i].Coerce(row[i])
		if err != nil {
			return fmt.Errorf("%s.%s: %w", table.Name, table.Columns[i].Name, err)
		}
		row[i] = v
	}
	return nil
}

// checkRow evaluates the CHECK constraints against row. Only a false check is
// a violation, NULL passes.
func checkRow(ctx *QueryContext, table *catalog.Table, checks []expr.Expr, row []value.Value) error {
	if len(checks) == 0 {
		return nil
	}
	saved := ctx.rows[0]
	ctx.rows[0] = row
	defer func() { ctx.rows[0] = saved }()
	for _, c := range checks {
		b, err := expr.EvalBool(ctx, c)
		if err != nil {
			return err
		}
		if b == expr.False {
			return fmt.Errorf("%w: %s on %s", ErrCheckViolation, expr.Format(c), table.Name)
		}
	}
	return nil
}

type change struct {
	oldRowID int64
	newRowID int64
	row      []value.Value
}

// update computes every new row before changing any so uniqueness holds for
// the statement as a whole.
func (x *execution) update(ctx *QueryContext, upd *Update) (*ExecuteResult, error) {
	table := upd.Table
	rc := table.RowIDColumn
	var changes []change
	err := x.scan(ctx, upd.Scan, func() error {
		row := slices.Clone(ctx.rows[0])
		for _, s := range upd.Set {
			v, err := expr.Eval(ctx, s.Value)
			if err != nil {
				return err
			}
			row[s.Col] = v
		}
		if err := coerceRow(table, row); err != nil {
			return err
		}
		c := change{oldRowID: ctx.rowIDs[0], newRowID: ctx.rowIDs[0], row: row}
		if rc >= 0 {
			if row[rc].IsNull() {
				return fmt.Errorf("%w: %s.%s", kv.ErrNotNullViolation, table.Name, table.Columns[rc].Name)
			}
			c.newRowID = row[rc].Long()
		}
		if err := checkRow(ctx, table, upd.Checks, row); err != nil {
			return err
		}
		changes = append(changes, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, c := range changes {
		if err := x.tx.DeleteRow(table, c.oldRowID); err != nil {
			return nil, err
		}
	}
	for _, c := range changes {
		if err := x.tx.InsertRow(table, c.newRowID, c.row); err != nil {
			return nil, err
		}
	}
	return &ExecuteResult{RowsAffected: int64(len(changes))}, nil
}

func (x *execution) delete(ctx *QueryContext, del *Delete) (*ExecuteResult, error) {
	var ids []int64
	err := x.scan(ctx, del.Scan, func() error {
		ids = append(ids, ctx.rowIDs[0])
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if err := x.tx.DeleteRow(del.Table, id); err != nil {
			return nil, err
		}
	}
	return &ExecuteResult{RowsAffected: int64(len(ids))}, nil
}
