package planner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chirst/relq/catalog"
	"github.com/chirst/relq/compiler"
	"github.com/chirst/relq/executor"
	"github.com/chirst/relq/expr"
	"github.com/chirst/relq/result"
	"github.com/chirst/relq/value"
)

// selectPlanner is capable of generating a logical query plan and a physical
// execution plan for a select statement. The planners within are separated by
// their responsibility.
type selectPlanner struct {
	// queryPlanner is responsible for binding the AST against the catalog and
	// ordering the join. The query planner also performs validation.
	queryPlanner *selectQueryPlanner
	// executionPlanner wraps the planned query in a plan the executor can run.
	executionPlanner *selectExecutionPlanner
}

// selectQueryPlanner converts an AST to a planned query. Along the way it also
// validates the AST makes sense with the catalog (a process known as binding).
type selectQueryPlanner struct {
	// catalog contains the schema
	catalog selectCatalog
	// stmt contains the AST
	stmt *compiler.SelectStmt
	// query is the planned select. It is populated by calling QueryPlan.
	query *executor.Query
}

// selectExecutionPlanner converts the planned query to an execution plan.
type selectExecutionPlanner struct {
	query         *executor.Query
	executionPlan *executor.Plan
}

// NewSelect returns an instance of a select planner for the given AST.
func NewSelect(catalog selectCatalog, stmt *compiler.SelectStmt) *selectPlanner {
	return &selectPlanner{
		queryPlanner: &selectQueryPlanner{
			catalog: catalog,
			stmt:    stmt,
		},
		executionPlanner: &selectExecutionPlanner{
			executionPlan: executor.NewPlan(
				catalog.GetVersion(),
				stmt.Explain,
				stmt.Params,
				nil,
			),
		},
	}
}

// QueryPlan generates the query plan tree for the planner.
func (p *selectPlanner) QueryPlan() (*QueryPlan, error) {
	q, err := planQuery(newScope(p.queryPlanner.catalog, nil), p.queryPlanner.stmt, 0)
	if err != nil {
		return nil, err
	}
	p.queryPlanner.query = q
	p.executionPlanner.query = q
	return newQueryPlan(queryTree(q), p.queryPlanner.stmt.ExplainQueryPlan), nil
}

// ExecutionPlan returns the execution plan for the planner. Calling QueryPlan
// is not a prerequisite to this method as it will be called by ExecutionPlan
// if needed.
func (p *selectPlanner) ExecutionPlan() (*executor.Plan, error) {
	if p.queryPlanner.query == nil {
		if _, err := p.QueryPlan(); err != nil {
			return nil, err
		}
	}
	p.executionPlanner.executionPlan.Stmt = p.executionPlanner.query
	return p.executionPlanner.executionPlan, nil
}

// planQuery binds stmt in scope s, which becomes the scope of the select, and
// orders its join.
func planQuery(s *scope, stmt *compiler.SelectStmt, id int) (*executor.Query, error) {
	q := &executor.Query{ID: id, Distinct: stmt.Distinct}
	deps, conjuncts, err := s.bindFrom(stmt.From)
	if err != nil {
		return nil, err
	}
	if stmt.Where != nil {
		where, err := s.bindCondition(stmt.Where, false)
		if err != nil {
			return nil, err
		}
		conjuncts = append(conjuncts, expr.Conjuncts(where)...)
	}
	aliased, err := s.bindResultColumns(q, stmt.ResultColumns)
	if err != nil {
		return nil, err
	}
	for _, g := range stmt.GroupBy {
		key, err := s.bindGroupTerm(q, g)
		if err != nil {
			return nil, err
		}
		q.GroupBy = append(q.GroupBy, key)
	}
	if stmt.Having != nil {
		if q.Having, err = s.bindCondition(stmt.Having, true); err != nil {
			return nil, err
		}
	}
	for _, term := range stmt.OrderBy {
		col, err := s.bindOrderTerm(q, aliased, term.Expr)
		if err != nil {
			return nil, err
		}
		q.OrderBy = append(q.OrderBy, executor.OrderKey{Col: col, Desc: term.Desc})
	}
	q.Aggregates = s.aggs
	if err := checkGrouped(q); err != nil {
		return nil, err
	}
	if q.Limit, err = bindLimit(s, stmt.Limit); err != nil {
		return nil, err
	}
	if q.Offset, err = bindLimit(s, stmt.Offset); err != nil {
		return nil, err
	}
	opt := newOptimizer(s.items, deps, conjuncts)
	q.Residual = expr.AndAll(opt.optimize())
	q.Items = opt.items
	q.Subqueries = s.subqueries
	return q, nil
}

// bindFrom adds the FROM items to s and binds their join conditions. Inner
// join conditions are returned as conjuncts to be placed with WHERE. A LEFT
// JOIN keeps its condition and depends on every item before it.
func (s *scope) bindFrom(from []*compiler.FromItem) ([]expr.ItemSet, []expr.Expr, error) {
	deps := make([]expr.ItemSet, 0, len(from))
	var conjuncts []expr.Expr
	var before expr.ItemSet
	for _, f := range from {
		item, err := s.addItem(f.Alias, f.TableName)
		if err != nil {
			return nil, nil, err
		}
		item.Outer = f.Join == compiler.JoinLeft
		cond, err := s.joinCondition(f, item)
		if err != nil {
			return nil, nil, err
		}
		var dep expr.ItemSet
		switch {
		case item.Outer:
			dep = before
			if cond != nil {
				item.On = &expr.OuterJoin{Cond: cond}
			}
		case cond != nil:
			conjuncts = append(conjuncts, expr.Conjuncts(cond)...)
		}
		deps = append(deps, dep)
		before = before.With(item.ID)
	}
	return deps, conjuncts, nil
}

// joinCondition binds the ON condition of f, or the equalities implied by
// USING or NATURAL. Only item and the items before it are visible.
func (s *scope) joinCondition(f *compiler.FromItem, item *executor.FromItem) (expr.Expr, error) {
	var cond compiler.Expr = f.On
	names := f.Using
	if f.Natural {
		names = nil
		for _, col := range item.Table.Columns {
			left, _, err := s.findBefore(item, col.Name)
			if err != nil {
				return nil, err
			}
			if left != nil {
				names = append(names, col.Name)
			}
		}
	}
	for _, name := range names {
		left, _, err := s.findBefore(item, name)
		if err != nil {
			return nil, err
		}
		if left == nil || item.Table.ColumnIndex(name) < 0 {
			return nil, fmt.Errorf("%w: %s in USING", ErrColumnNotExist, name)
		}
		eq := &compiler.BinaryExpr{
			Left:     &compiler.ColumnRef{Table: left.Name, Column: name},
			Operator: compiler.OpEq,
			Right:    &compiler.ColumnRef{Table: item.Name, Column: name},
		}
		if cond == nil {
			cond = eq
		} else {
			cond = &compiler.BinaryExpr{Left: cond, Operator: compiler.OpAnd, Right: eq}
		}
	}
	if cond == nil {
		return nil, nil
	}
	return s.bindCondition(cond, false)
}

// findBefore finds an unqualified column among the items before item.
func (s *scope) findBefore(item *executor.FromItem, name string) (*executor.FromItem, int, error) {
	s.visible = item.ID
	defer func() { s.visible = len(s.items) }()
	return s.find("", name)
}

// bindResultColumns expands * and binds the select list into q. It returns
// which columns were named by an alias.
func (s *scope) bindResultColumns(q *executor.Query, columns []compiler.ResultColumn) ([]bool, error) {
	var aliased []bool
	add := func(name string, e expr.Expr, alias bool) {
		q.Columns = append(q.Columns, name)
		q.Exprs = append(q.Exprs, e)
		q.Hints = append(q.Hints, hintFor(e))
		aliased = append(aliased, alias)
	}
	for _, rc := range columns {
		switch {
		case rc.All:
			if len(s.items) == 0 {
				return nil, fmt.Errorf("%w: * without FROM", ErrColumnNotExist)
			}
			for _, item := range s.items {
				s.expandItem(item, add)
			}
		case rc.AllTable != "":
			item := s.item(rc.AllTable)
			if item == nil {
				return nil, fmt.Errorf("%w: %s", ErrTableNotExist, rc.AllTable)
			}
			s.expandItem(item, add)
		default:
			e, err := s.bind(rc.Expression, true)
			if err != nil {
				return nil, err
			}
			name := rc.Alias
			if name == "" {
				name = columnName(rc.Expression, e)
			}
			add(name, e, rc.Alias != "")
		}
	}
	return aliased, nil
}

func (s *scope) expandItem(item *executor.FromItem, add func(string, expr.Expr, bool)) {
	for c, col := range item.Table.Columns {
		add(col.Name, &expr.Column{
			Item:    item.ID,
			Col:     c,
			Table:   item.Name,
			Name:    col.Name,
			Type:    col.Type,
			NotNull: (col.NotNull || col.PrimaryKey) && !item.Outer,
		}, false)
	}
}

func (s *scope) item(name string) *executor.FromItem {
	for _, item := range s.items {
		if strings.EqualFold(item.Name, name) {
			return item
		}
	}
	return nil
}

// columnName names an unaliased result column after the column it reads or
// the text of its expression.
func columnName(parsed compiler.Expr, bound expr.Expr) string {
	if ref, ok := parsed.(*compiler.ColumnRef); ok {
		return ref.Column
	}
	return expr.Format(bound)
}

// hintFor selects the narrow integer encodings for SMALLINT and INTEGER
// columns.
func hintFor(e expr.Expr) result.Tag {
	var t catalog.DataType
	switch c := e.(type) {
	case *expr.Column:
		t = c.Type
	case *expr.OuterColumn:
		t = c.Type
	}
	switch t {
	case catalog.TypeSmallInt:
		return result.TagShort
	case catalog.TypeInteger:
		return result.TagInt
	}
	return result.TagNone
}

// bindGroupTerm binds a GROUP BY term. A term may also name a result column
// by position or alias.
func (s *scope) bindGroupTerm(q *executor.Query, g compiler.Expr) (expr.Expr, error) {
	var key expr.Expr
	if lit, ok := g.(*compiler.IntLit); ok {
		if lit.Value < 1 || lit.Value > int64(len(q.Columns)) {
			return nil, fmt.Errorf("%w: GROUP BY %d", ErrGroupBy, lit.Value)
		}
		key = q.Exprs[lit.Value-1]
	} else {
		var err error
		key, err = s.bind(g, false)
		if ref, ok := g.(*compiler.ColumnRef); ok && ref.Table == "" && errors.Is(err, ErrColumnNotExist) {
			for i, name := range q.Columns {
				if strings.EqualFold(name, ref.Column) {
					key, err = q.Exprs[i], nil
					break
				}
			}
		}
		if err != nil {
			return nil, err
		}
	}
	if expr.HasAggregate(key) {
		return nil, fmt.Errorf("%w: aggregate in GROUP BY", ErrAggregateNotAllowed)
	}
	return key, nil
}

// bindOrderTerm returns the result column sorted by an ORDER BY term. A term
// that is not in the select list is added as a hidden column.
func (s *scope) bindOrderTerm(q *executor.Query, aliased []bool, term compiler.Expr) (int, error) {
	visible := len(q.Columns)
	if lit, ok := term.(*compiler.IntLit); ok {
		if lit.Value < 1 || lit.Value > int64(visible) {
			return 0, fmt.Errorf("%w: %d", ErrOrderBy, lit.Value)
		}
		return int(lit.Value) - 1, nil
	}
	if ref, ok := term.(*compiler.ColumnRef); ok && ref.Table == "" {
		for i := 0; i < visible; i++ {
			if aliased[i] && strings.EqualFold(q.Columns[i], ref.Column) {
				return i, nil
			}
		}
	}
	e, err := s.bind(term, true)
	if err != nil {
		return 0, err
	}
	text := expr.Format(e)
	for i, x := range q.Exprs {
		if expr.Format(x) == text {
			return i, nil
		}
	}
	q.Exprs = append(q.Exprs, e)
	q.Hints = append(q.Hints, result.TagNone)
	q.Hidden++
	return len(q.Exprs) - 1, nil
}

// checkGrouped verifies that outside of aggregates a grouped query only reads
// columns it groups by.
func checkGrouped(q *executor.Query) error {
	if !q.Grouped() {
		if q.Having != nil {
			return fmt.Errorf("%w: HAVING without GROUP BY or aggregate", ErrGroupBy)
		}
		return nil
	}
	keys := map[string]bool{}
	cols := map[[2]int]bool{}
	for _, k := range q.GroupBy {
		keys[expr.Format(k)] = true
		if c, ok := k.(*expr.Column); ok {
			cols[[2]int{c.Item, c.Col}] = true
		}
	}
	check := func(e expr.Expr) error {
		var err error
		expr.Walk(e, func(n expr.Expr) bool {
			if err != nil || keys[expr.Format(n)] {
				return false
			}
			switch n := n.(type) {
			case *expr.Aggregate:
				return false
			case *expr.Column:
				if !cols[[2]int{n.Item, n.Col}] {
					err = fmt.Errorf("%w: %s.%s", ErrGroupBy, n.Table, n.Name)
				}
			}
			return true
		})
		return err
	}
	for _, e := range q.Exprs {
		if err := check(e); err != nil {
			return err
		}
	}
	return check(q.Having)
}

// bindLimit binds a LIMIT or OFFSET expression, which must be a non-negative
// integer constant or a parameter.
func bindLimit(s *scope, e compiler.Expr) (expr.Expr, error) {
	if e == nil {
		return nil, nil
	}
	b, err := expr.Bind(newScope(s.catalog, nil), e)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLimit, err)
	}
	switch n := b.(type) {
	case *expr.Param:
		return n, nil
	case *expr.Const:
		if n.Val.Kind() == value.Long && n.Val.Long() >= 0 {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidLimit, expr.Format(b))
}
