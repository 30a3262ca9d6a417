// executor runs the plans built by the planner. A select is run as a nested
// loop of lanes, one lane per FROM item, writing into a result buffer. Every
// execution locks the blocks of the tables it reads or writes for its whole
// duration, in ascending block order so executions cannot deadlock.
package executor

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chirst/relq/catalog"
	"github.com/chirst/relq/expr"
	"github.com/chirst/relq/kv"
	"github.com/chirst/relq/metrics"
	"github.com/chirst/relq/result"
	"github.com/chirst/relq/value"
)

// ExecuteResult is the outcome of running a plan.
type ExecuteResult struct {
	Err error
	// Text is a message for statements that return no rows, like VALIDATE.
	Text string
	// Result holds the rows of a select or EXPLAIN. The caller closes it.
	Result       *result.SelectResult
	RowsAffected int64
	LastInsertID int64
	Duration     time.Duration
}

type Executor struct {
	kv     *kv.KV
	logger *slog.Logger
}

func New(kv *kv.KV, logger *slog.Logger) *Executor {
	return &Executor{kv: kv, logger: logger}
}

// Execute runs plan with params bound to its parameter markers in order. If
// the catalog changed since the plan was built the result holds
// ErrVersionChanged so the statement can be planned again.
func (e *Executor) Execute(plan *Plan, params []value.Value) *ExecuteResult {
	start := time.Now()
	kind := plan.Stmt.Kind()
	res, err := e.execute(plan, params)
	if err != nil {
		res = &ExecuteResult{Err: err}
	}
	res.Duration = time.Since(start)
	status := "ok"
	switch {
	case errors.Is(err, ErrVersionChanged):
		status = "replan"
	case err != nil:
		status = "error"
	}
	metrics.StatementsTotal.WithLabelValues(kind, status).Inc()
	metrics.StatementDuration.WithLabelValues(kind).Observe(res.Duration.Seconds())
	if res.Result != nil {
		metrics.RowsReturned.Add(float64(res.Result.RowCount()))
	}
	return res
}

func (e *Executor) execute(plan *Plan, params []value.Value) (*ExecuteResult, error) {
	if len(params) != plan.Params {
		return nil, fmt.Errorf("%w: statement has %d, got %d", ErrParamCount, plan.Params, len(params))
	}
	if plan.Explain {
		return explain(plan)
	}
	tx := e.kv.Begin()
	ctx := NewQueryContext(params)
	defer ctx.Release()
	blocks, readOnly := lockSet(plan.Stmt)
	ctx.Init(tx, blocks, readOnly)
	held, err := ctx.Lock()
	if err != nil {
		return nil, err
	}
	if plan.Version != e.kv.GetCatalog().GetVersion() {
		if err := held.Unlock(); err != nil {
			return nil, err
		}
		return nil, ErrVersionChanged
	}
	x := &execution{exec: e, tx: tx}
	ctx.run = x
	res, err := x.run(held.Context(), plan.Stmt)
	if err != nil {
		tx.Rollback()
	}
	if uerr := held.Unlock(); err == nil && uerr != nil {
		err = uerr
	}
	if err != nil {
		if res != nil && res.Result != nil {
			res.Result.Close()
		}
		e.logger.Debug("statement failed", "kind", plan.Stmt.Kind(), "tx", tx.ID(), "error", err)
		return nil, err
	}
	e.logger.Debug("statement executed", "kind", plan.Stmt.Kind(), "tx", tx.ID(), "blocks", blocks)
	return res, nil
}

func (x *execution) run(ctx *QueryContext, stmt Statement) (*ExecuteResult, error) {
	switch s := stmt.(type) {
	case *Query:
		res, err := x.query(ctx, s, 0)
		if err != nil {
			return nil, err
		}
		return &ExecuteResult{Result: res}, nil
	case *Insert:
		return x.insert(ctx, s)
	case *Update:
		return x.update(ctx, s)
	case *Delete:
		return x.delete(ctx, s)
	case *CreateTable:
		return x.createTable(s)
	case *CreateIndex:
		return x.createIndex(s)
	case *Drop:
		return x.drop(s)
	case *Validate:
		return x.validate(ctx, s)
	}
	return nil, fmt.Errorf("unknown statement %T", stmt)
}

// lockSet returns the blocks a statement locks and whether read locks are
// enough. Statements that change anything write lock every block they touch.
func lockSet(stmt Statement) ([]int, bool) {
	var blocks []int
	addTables := func(ts []*catalog.Table) {
		for _, t := range ts {
			blocks = append(blocks, t.RootPage)
		}
	}
	switch s := stmt.(type) {
	case *Query:
		addTables(s.Tables())
		return blocks, true
	case *Insert:
		blocks = append(blocks, s.Table.RootPage)
		if s.Source != nil {
			addTables(s.Source.Tables())
		}
		for _, row := range s.Rows {
			for _, e := range row {
				addTables(subqueryTables(e))
			}
		}
	case *Update:
		addTables(s.Scan.Tables())
	case *Delete:
		addTables(s.Scan.Tables())
	case *CreateTable:
		if !s.Noop {
			blocks = append(blocks, catalog.SchemaRootPage)
		}
	case *CreateIndex:
		if !s.Noop {
			blocks = append(blocks, catalog.SchemaRootPage, s.Table.RootPage)
		}
	case *Drop:
		if !s.Noop {
			blocks = append(blocks, catalog.SchemaRootPage, s.Table.RootPage)
		}
	case *Validate:
		return []int{s.Table.RootPage}, true
	}
	return blocks, false
}

// subqueryTables returns the tables read by the subqueries of e.
func subqueryTables(e expr.Expr) []*catalog.Table {
	var ret []*catalog.Table
	expr.Walk(e, func(n expr.Expr) bool {
		var sub *expr.Subquery
		switch n := n.(type) {
		case *expr.InSelect:
			sub = n.Sub
		case *expr.Exists:
			sub = n.Sub
		case *expr.ScalarSubquery:
			sub = n.Sub
		}
		if sub != nil {
			ret = append(ret, sub.Plan.(*Query).Tables()...)
		}
		return true
	})
	return ret
}
