package planner

import (
	"fmt"

	"github.com/chirst/relq/catalog"
	"github.com/chirst/relq/compiler"
	"github.com/chirst/relq/executor"
	"github.com/chirst/relq/expr"
)

// newRowScope returns a scope where table is item 0. DML statements and CHECK
// constraints are bound in it.
func newRowScope(c selectCatalog, table *catalog.Table) *scope {
	s := newScope(c, nil)
	s.items = []*executor.FromItem{{ID: 0, Name: table.Name, Table: table}}
	s.visible = 1
	return s
}

// parseExprText parses the stored SQL text of a DEFAULT or CHECK.
func parseExprText(text string) (compiler.Expr, error) {
	stmt, err := compiler.Parse("SELECT " + text)
	if err != nil {
		return nil, err
	}
	sel, ok := stmt.(*compiler.SelectStmt)
	if !ok || len(sel.ResultColumns) != 1 || sel.ResultColumns[0].Expression == nil || len(sel.From) > 0 {
		return nil, fmt.Errorf("invalid expression %q", text)
	}
	return sel.ResultColumns[0].Expression, nil
}

// bindChecks binds the CHECK constraints of table against its row.
func bindChecks(c selectCatalog, table *catalog.Table) ([]expr.Expr, error) {
	s := newRowScope(c, table)
	ret := make([]expr.Expr, 0, len(table.Checks))
	for _, text := range table.Checks {
		e, err := parseExprText(text)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", text, err)
		}
		b, err := s.bindCondition(e, false)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", text, err)
		}
		ret = append(ret, b)
	}
	return ret, nil
}

// bindDefaults binds the DEFAULT of each column of table. Defaults read no
// columns.
func bindDefaults(c selectCatalog, table *catalog.Table) ([]expr.Expr, error) {
	ret := make([]expr.Expr, len(table.Columns))
	for i, col := range table.Columns {
		if col.Default == "" {
			continue
		}
		e, err := parseExprText(col.Default)
		if err != nil {
			return nil, fmt.Errorf("default of %s: %w", col.Name, err)
		}
		b, err := newScope(c, nil).bind(e, false)
		if err != nil {
			return nil, fmt.Errorf("default of %s: %w", col.Name, err)
		}
		ret[i] = b
	}
	return ret, nil
}
