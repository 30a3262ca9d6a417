package planner

import (
	"fmt"
	"strings"

	"github.com/chirst/relq/catalog"
	"github.com/chirst/relq/compiler"
	"github.com/chirst/relq/executor"
	"github.com/chirst/relq/expr"
)

// insertPlanner plans INSERT with VALUES lists or a select.
type insertPlanner struct {
	catalog       selectCatalog
	stmt          *compiler.InsertStmt
	insert        *executor.Insert
	executionPlan *executor.Plan
}

// NewInsert returns an instance of an insert planner for the given AST.
func NewInsert(catalog selectCatalog, stmt *compiler.InsertStmt) *insertPlanner {
	return &insertPlanner{
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
func (p *insertPlanner) QueryPlan() (*QueryPlan, error) {
	table, err := writableTable(p.catalog, p.stmt.TableName)
	if err != nil {
		return nil, err
	}
	ins := &executor.Insert{Table: table}
	if ins.Columns, err = p.targetColumns(table); err != nil {
		return nil, err
	}
	node := &insertNode{table: table, rows: len(p.stmt.ColValues)}
	if p.stmt.Select != nil {
		q, err := planQuery(newScope(p.catalog, nil), p.stmt.Select, 0)
		if err != nil {
			return nil, err
		}
		if len(q.Columns) != len(ins.Columns) {
			return nil, fmt.Errorf("%w: %d columns and %d values", ErrValuesNotMatch, len(ins.Columns), len(q.Columns))
		}
		ins.Source = q
		node.child = queryTree(q)
	} else {
		s := newScope(p.catalog, nil)
		for _, values := range p.stmt.ColValues {
			if len(values) != len(ins.Columns) {
				return nil, fmt.Errorf("%w: %d columns and %d values", ErrValuesNotMatch, len(ins.Columns), len(values))
			}
			row := make([]expr.Expr, len(values))
			for i, v := range values {
				if row[i], err = s.bind(v, false); err != nil {
					return nil, err
				}
			}
			ins.Rows = append(ins.Rows, row)
		}
		node.subqueries = subqueryTrees(s.subqueries)
	}
	if ins.Defaults, err = bindDefaults(p.catalog, table); err != nil {
		return nil, err
	}
	if ins.Checks, err = bindChecks(p.catalog, table); err != nil {
		return nil, err
	}
	p.insert = ins
	return newQueryPlan(node, p.stmt.ExplainQueryPlan), nil
}

// targetColumns maps each value of a row to a table column. Without a column
// list every column is assigned in declaration order.
func (p *insertPlanner) targetColumns(table *catalog.Table) ([]int, error) {
	if len(p.stmt.ColNames) == 0 {
		ret := make([]int, len(table.Columns))
		for i := range ret {
			ret[i] = i
		}
		return ret, nil
	}
	return columnOrdinals(table, p.stmt.ColNames)
}

// ExecutionPlan implements db.statementPlanner.
func (p *insertPlanner) ExecutionPlan() (*executor.Plan, error) {
	if p.insert == nil {
		if _, err := p.QueryPlan(); err != nil {
			return nil, err
		}
	}
	p.executionPlan.Stmt = p.insert
	return p.executionPlan, nil
}

// writableTable looks up a table statements may change.
func writableTable(c selectCatalog, name string) (*catalog.Table, error) {
	if strings.EqualFold(name, catalog.SchemaTableName) {
		return nil, fmt.Errorf("%w: %s", ErrReadOnlyTable, name)
	}
	table, ok := c.Table(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotExist, name)
	}
	return table, nil
}
