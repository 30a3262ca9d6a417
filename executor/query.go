package executor

import (
	"fmt"

	"github.com/chirst/relq/expr"
	"github.com/chirst/relq/kv"
	"github.com/chirst/relq/result"
	"github.com/chirst/relq/value"
)

// execution is the state shared by every context of one statement.
type execution struct {
	exec *Executor
	tx   *kv.Transaction
}

// query runs q and returns its rows. A positive stop returns at most stop
// rows and lets the lanes end early when nothing has to see every row.
func (x *execution) query(ctx *QueryContext, q *Query, stop int) (*result.SelectResult, error) {
	ctx.prepare(len(q.Items))
	limit, err := evalCount(ctx, q.Limit, -1)
	if err != nil {
		return nil, err
	}
	offset, err := evalCount(ctx, q.Offset, 0)
	if err != nil {
		return nil, err
	}
	res := result.New(q.Columns, q.Hidden)
	if err := x.fill(ctx, q, res, earlyStop(q, offset, limit, stop)); err != nil {
		res.Close()
		return nil, err
	}
	if len(q.OrderBy) > 0 {
		order := result.NewOrder(q.OrderBy[0].Col, q.OrderBy[0].Desc)
		for _, k := range q.OrderBy[1:] {
			order = order.Then(k.Col, k.Desc)
		}
		if err := order.Sort(res); err != nil {
			res.Close()
			return nil, err
		}
	}
	if offset > 0 || limit >= 0 {
		res.Limit(offset, limit)
	}
	if stop > 0 {
		res.Limit(0, stop)
	}
	return res, nil
}

// earlyStop returns how many rows the lanes must produce before they can stop,
// or -1 when every row is needed.
func earlyStop(q *Query, offset, limit, stop int) int {
	if q.Grouped() || len(q.OrderBy) > 0 {
		return -1
	}
	n := limit
	if stop > 0 && (n < 0 || stop < n) {
		n = stop
	}
	if n < 0 {
		return -1
	}
	return offset + n
}

// fill writes the rows of q to res.
func (x *execution) fill(ctx *QueryContext, q *Query, res *result.SelectResult, want int) error {
	var seen map[string]struct{}
	if q.Distinct {
		seen = map[string]struct{}{}
	}
	var gs *groups
	if q.Grouped() {
		gs = newGroups(q.Aggregates)
		defer gs.release()
	}
	pass := true
	if q.Residual != nil {
		b, err := expr.EvalBool(ctx, q.Residual)
		if err != nil {
			return err
		}
		pass = b == expr.True
	}
	if pass && want != 0 {
		ls := newLanes(ctx, x.tx, q.Items)
		key := make([]value.Value, len(q.GroupBy))
		err := ls.each(func() (bool, error) {
			if gs != nil {
				for i, k := range q.GroupBy {
					v, err := expr.Eval(ctx, k)
					if err != nil {
						return false, err
					}
					key[i] = v
				}
				return true, gs.add(ctx, key)
			}
			if err := writeRow(ctx, q, res, seen); err != nil {
				return false, err
			}
			return want < 0 || res.RowCount() < want, nil
		})
		if err != nil {
			return err
		}
		x.logLanes(q, ls)
	}
	if gs == nil {
		return nil
	}
	if len(gs.order) == 0 && len(q.GroupBy) == 0 {
		clear(ctx.rows)
		gs.newGroup(ctx, nil)
	}
	defer func() {
		ctx.group = nil
		clear(ctx.rows)
	}()
	for _, g := range gs.order {
		ctx.group = g
		copy(ctx.rows, g.rows)
		copy(ctx.rowIDs, g.rowIDs)
		if q.Having != nil {
			b, err := expr.EvalBool(ctx, q.Having)
			if err != nil {
				return err
			}
			if b != expr.True {
				continue
			}
		}
		if err := writeRow(ctx, q, res, seen); err != nil {
			return err
		}
	}
	return nil
}

// writeRow evaluates the result columns of q and appends them to res unless
// seen already holds the row.
func writeRow(ctx *QueryContext, q *Query, res *result.SelectResult, seen map[string]struct{}) error {
	for i, e := range q.Exprs {
		v, err := expr.Eval(ctx, e)
		if err == nil {
			err = res.WriteValue(v, q.Hints[i])
		}
		if err != nil {
			res.DiscardRow()
			return err
		}
	}
	if seen != nil {
		k := string(res.PendingRow())
		if _, dup := seen[k]; dup {
			res.DiscardRow()
			return nil
		}
		seen[k] = struct{}{}
	}
	return res.EndRow()
}

// evalCount evaluates a LIMIT or OFFSET.
func evalCount(ctx *QueryContext, e expr.Expr, absent int) (int, error) {
	if e == nil {
		return absent, nil
	}
	v, err := expr.Eval(ctx, e)
	if err != nil {
		return 0, err
	}
	if v.IsNull() {
		return 0, fmt.Errorf("%w: NULL", ErrInvalidLimit)
	}
	n, err := v.AsLong()
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidLimit, v)
	}
	return int(n), nil
}

// scan calls fn for every row of a single table search planned for UPDATE or
// DELETE.
func (x *execution) scan(ctx *QueryContext, q *Query, fn func() error) error {
	ctx.prepare(len(q.Items))
	if q.Residual != nil {
		b, err := expr.EvalBool(ctx, q.Residual)
		if err != nil || b != expr.True {
			return err
		}
	}
	ls := newLanes(ctx, x.tx, q.Items)
	err := ls.each(func() (bool, error) {
		return true, fn()
	})
	x.logLanes(q, ls)
	return err
}

func (x *execution) logLanes(q *Query, ls *lanes) {
	logger := x.exec.logger
	for i, l := range ls.list {
		logger.Debug("lane finished",
			"query", q.ID,
			"lane", i,
			"table", l.item.String(),
			"access", l.kind.String(),
			"rows", l.scanned,
			"tx", x.tx.ID(),
		)
	}
}
