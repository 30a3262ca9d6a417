package planner

import (
	"github.com/chirst/relq/compiler"
	"github.com/chirst/relq/executor"
)

type deletePlanner struct {
	catalog       selectCatalog
	stmt          *compiler.DeleteStmt
	delete        *executor.Delete
	executionPlan *executor.Plan
}

func NewDelete(catalog selectCatalog, stmt *compiler.DeleteStmt) *deletePlanner {
	return &deletePlanner{
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
func (d *deletePlanner) QueryPlan() (*QueryPlan, error) {
	table, err := writableTable(d.catalog, d.stmt.TableName)
	if err != nil {
		return nil, err
	}
	s := newScope(d.catalog, nil)
	if _, err := s.addItem("", table.Name); err != nil {
		return nil, err
	}
	scan, err := planScan(s, d.stmt.Predicate)
	if err != nil {
		return nil, err
	}
	d.delete = &executor.Delete{Table: table, Scan: scan}
	return newQueryPlan(&deleteNode{
		table:      table,
		child:      laneTree(scan),
		subqueries: subqueryTrees(scan.Subqueries),
	}, d.stmt.ExplainQueryPlan), nil
}

// ExecutionPlan implements db.statementPlanner.
func (d *deletePlanner) ExecutionPlan() (*executor.Plan, error) {
	if d.delete == nil {
		if _, err := d.QueryPlan(); err != nil {
			return nil, err
		}
	}
	d.executionPlan.Stmt = d.delete
	return d.executionPlan, nil
}
