package planner

import (
	"fmt"
	"strings"

	"github.com/chirst/relq/catalog"
	"github.com/chirst/relq/compiler"
	"github.com/chirst/relq/executor"
)

// dropPlanner plans DROP TABLE and DROP INDEX.
type dropPlanner struct {
	catalog       createCatalog
	stmt          *compiler.DropStmt
	drop          *executor.Drop
	executionPlan *executor.Plan
}

// NewDrop returns a planner for the given drop statement.
func NewDrop(catalog createCatalog, stmt *compiler.DropStmt) *dropPlanner {
	return &dropPlanner{
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
func (p *dropPlanner) QueryPlan() (*QueryPlan, error) {
	node := &dropNode{objectType: catalog.ObjectTable, objectName: p.stmt.Name}
	if p.stmt.Index {
		node.objectType = catalog.ObjectIndex
	}
	drop, err := p.resolve()
	if err != nil {
		return nil, err
	}
	node.noop = drop.Noop
	p.drop = drop
	return newQueryPlan(node, p.stmt.ExplainQueryPlan), nil
}

func (p *dropPlanner) resolve() (*executor.Drop, error) {
	if strings.EqualFold(p.stmt.Name, catalog.SchemaTableName) {
		return nil, fmt.Errorf("%w: %s", ErrReadOnlyTable, p.stmt.Name)
	}
	if !p.stmt.Index {
		table, ok := p.catalog.Table(p.stmt.Name)
		switch {
		case ok:
			return &executor.Drop{Table: table}, nil
		case p.stmt.IfExists:
			return &executor.Drop{Noop: true}, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrTableNotExist, p.stmt.Name)
	}
	idx, ok := p.catalog.Index(p.stmt.Name)
	if !ok {
		if p.stmt.IfExists {
			return &executor.Drop{Noop: true}, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrIndexNotExist, p.stmt.Name)
	}
	table, ok := p.catalog.Table(idx.Table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotExist, idx.Table)
	}
	return &executor.Drop{Table: table, Index: idx}, nil
}

// ExecutionPlan implements db.statementPlanner.
func (p *dropPlanner) ExecutionPlan() (*executor.Plan, error) {
	if p.drop == nil {
		if _, err := p.QueryPlan(); err != nil {
			return nil, err
		}
	}
	p.executionPlan.Stmt = p.drop
	return p.executionPlan, nil
}

// validatePlanner plans VALIDATE.
type validatePlanner struct {
	catalog       selectCatalog
	stmt          *compiler.ValidateStmt
	validate      *executor.Validate
	executionPlan *executor.Plan
}

// NewValidate returns a planner for the given validate statement.
func NewValidate(catalog selectCatalog, stmt *compiler.ValidateStmt) *validatePlanner {
	return &validatePlanner{
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
func (p *validatePlanner) QueryPlan() (*QueryPlan, error) {
	table, ok := p.catalog.Table(p.stmt.TableName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotExist, p.stmt.TableName)
	}
	checks, err := bindChecks(p.catalog, table)
	if err != nil {
		return nil, err
	}
	p.validate = &executor.Validate{Table: table, Checks: checks}
	return newQueryPlan(&validateNode{table: table}, p.stmt.ExplainQueryPlan), nil
}

// ExecutionPlan implements db.statementPlanner.
func (p *validatePlanner) ExecutionPlan() (*executor.Plan, error) {
	if p.validate == nil {
		if _, err := p.QueryPlan(); err != nil {
			return nil, err
		}
	}
	p.executionPlan.Stmt = p.validate
	return p.executionPlan, nil
}
