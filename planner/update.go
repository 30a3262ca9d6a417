package planner

import (
	"fmt"

	"github.com/chirst/relq/compiler"
	"github.com/chirst/relq/executor"
	"github.com/chirst/relq/expr"
)

// updatePlanner plans UPDATE. The rows to change are found the same way a
// single table select finds them.
type updatePlanner struct {
	catalog       selectCatalog
	stmt          *compiler.UpdateStmt
	update        *executor.Update
	executionPlan *executor.Plan
}

// NewUpdate returns an instance of an update planner for the given AST.
func NewUpdate(catalog selectCatalog, stmt *compiler.UpdateStmt) *updatePlanner {
	return &updatePlanner{
		catalog: catalog,
		stmt:    stmt,
		executionPlan: executor.NewPlan(
			catalog.GetVersion(),
			stmt.Explain,
			stmt.Params,
			nil,
		),
	}
}

// QueryPlan implements db.statementPlanner.
func (p *updatePlanner) QueryPlan() (*QueryPlan, error) {
	table, err := writableTable(p.catalog, p.stmt.TableName)
	if err != nil {
		return nil, err
	}
	s := newScope(p.catalog, nil)
	if _, err := s.addItem("", table.Name); err != nil {
		return nil, err
	}
	upd := &executor.Update{Table: table}
	var names []string
	seen := map[int]bool{}
	for _, item := range p.stmt.SetList {
		col := table.ColumnIndex(item.Column)
		if col < 0 {
			return nil, fmt.Errorf("%w: %s.%s", ErrColumnNotExist, table.Name, item.Column)
		}
		if seen[col] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, item.Column)
		}
		seen[col] = true
		v, err := s.bind(item.Value, false)
		if err != nil {
			return nil, err
		}
		upd.Set = append(upd.Set, executor.SetColumn{Col: col, Value: v})
		names = append(names, table.Columns[col].Name)
	}
	if upd.Scan, err = planScan(s, p.stmt.Predicate); err != nil {
		return nil, err
	}
	if upd.Checks, err = bindChecks(p.catalog, table); err != nil {
		return nil, err
	}
	p.update = upd
	return newQueryPlan(&updateNode{
		table:      table,
		columns:    names,
		child:      laneTree(upd.Scan),
		subqueries: subqueryTrees(upd.Scan.Subqueries),
	}, p.stmt.ExplainQueryPlan), nil
}

// ExecutionPlan implements db.statementPlanner.
func (p *updatePlanner) ExecutionPlan() (*executor.Plan, error) {
	if p.update == nil {
		if _, err := p.QueryPlan(); err != nil {
			return nil, err
		}
	}
	p.executionPlan.Stmt = p.update
	return p.executionPlan, nil
}

// planScan plans the search for the rows of the single item of s matching
// predicate.
func planScan(s *scope, predicate compiler.Expr) (*executor.Query, error) {
	var conjuncts []expr.Expr
	if predicate != nil {
		where, err := s.bindCondition(predicate, false)
		if err != nil {
			return nil, err
		}
		conjuncts = expr.Conjuncts(where)
	}
	opt := newOptimizer(s.items, make([]expr.ItemSet, len(s.items)), conjuncts)
	q := &executor.Query{}
	q.Residual = expr.AndAll(opt.optimize())
	q.Items = opt.items
	q.Subqueries = s.subqueries
	return q, nil
}
