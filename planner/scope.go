package planner

import (
	"fmt"
	"strings"

	"github.com/chirst/relq/catalog"
	"github.com/chirst/relq/compiler"
	"github.com/chirst/relq/executor"
	"github.com/chirst/relq/expr"
	"github.com/chirst/relq/value"
)

// selectCatalog defines the catalog methods needed to plan a select.
type selectCatalog interface {
	Table(name string) (*catalog.Table, bool)
	GetVersion() string
}

// scope resolves the names of one select. Columns that are not found in the
// select's own FROM items are looked up in the enclosing selects and become
// outer columns, which are constants while the select runs.
type scope struct {
	catalog selectCatalog
	parent  *scope
	items   []*executor.FromItem
	// visible limits name resolution to items[:visible] while the ON
	// condition of a join is bound.
	visible int
	// aggregates is false where aggregate calls may not appear.
	aggregates bool
	aggs       []*expr.Aggregate
	// outerRefs are the items of the parent the select reads.
	outerRefs  expr.ItemSet
	correlated bool
	subqueries []*executor.Query
	// nextID numbers the subqueries of a statement.
	nextID *int
}

func newScope(c selectCatalog, parent *scope) *scope {
	s := &scope{catalog: c, parent: parent}
	if parent != nil {
		s.nextID = parent.nextID
	} else {
		s.nextID = new(int)
	}
	return s
}

// addItem appends a FROM item for table to the scope.
func (s *scope) addItem(name, tableName string) (*executor.FromItem, error) {
	if len(s.items) >= expr.MaxItems {
		return nil, fmt.Errorf("%w: more than %d", ErrTooManyTables, expr.MaxItems)
	}
	table, ok := s.catalog.Table(tableName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotExist, tableName)
	}
	if name == "" {
		name = table.Name
	}
	for _, item := range s.items {
		if strings.EqualFold(item.Name, name) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTable, name)
		}
	}
	item := &executor.FromItem{ID: len(s.items), Name: name, Table: table}
	s.items = append(s.items, item)
	s.visible = len(s.items)
	return item, nil
}

// find looks up a column among the visible items of s. item is nil when the
// column is not found.
func (s *scope) find(table, name string) (*executor.FromItem, int, error) {
	var found *executor.FromItem
	col := -1
	tableSeen := false
	for _, item := range s.items[:s.visible] {
		if table != "" && !strings.EqualFold(item.Name, table) {
			continue
		}
		tableSeen = true
		c := item.Table.ColumnIndex(name)
		if c < 0 {
			continue
		}
		if found != nil {
			return nil, 0, fmt.Errorf("%w: %s", ErrAmbiguousColumn, name)
		}
		found, col = item, c
	}
	if table != "" && tableSeen && found == nil {
		return nil, 0, fmt.Errorf("%w: %s.%s", ErrColumnNotExist, table, name)
	}
	return found, col, nil
}

// Column implements expr.Scope.
func (s *scope) Column(table, name string) (expr.Expr, error) {
	item, c, err := s.find(table, name)
	if err != nil {
		return nil, err
	}
	if item != nil {
		col := item.Table.Columns[c]
		return &expr.Column{
			Item:    item.ID,
			Col:     c,
			Table:   item.Name,
			Name:    col.Name,
			Type:    col.Type,
			NotNull: (col.NotNull || col.PrimaryKey) && !item.Outer,
		}, nil
	}
	// Each select between s and the one owning the column is correlated. The
	// select directly inside the owner records which item it reads.
	inner := s
	for depth, outer := 1, s.parent; outer != nil; depth, outer = depth+1, outer.parent {
		item, c, err := outer.find(table, name)
		if err != nil {
			return nil, err
		}
		if item == nil {
			inner = outer
			continue
		}
		for sc := s; sc != outer; sc = sc.parent {
			sc.correlated = true
		}
		inner.outerRefs = inner.outerRefs.With(item.ID)
		col := item.Table.Columns[c]
		return &expr.OuterColumn{
			Depth: depth,
			Item:  item.ID,
			Col:   c,
			Table: item.Name,
			Name:  col.Name,
			Type:  col.Type,
		}, nil
	}
	if table != "" {
		return nil, fmt.Errorf("%w: %s.%s", ErrColumnNotExist, table, name)
	}
	return nil, fmt.Errorf("%w: %s", ErrColumnNotExist, name)
}

// Subquery implements expr.Scope.
func (s *scope) Subquery(sel *compiler.SelectStmt) (*expr.Subquery, error) {
	*s.nextID++
	child := newScope(s.catalog, s)
	q, err := planQuery(child, sel, *s.nextID)
	if err != nil {
		return nil, err
	}
	s.subqueries = append(s.subqueries, q)
	return &expr.Subquery{
		ID:         q.ID,
		Plan:       q,
		OuterRefs:  child.outerRefs,
		Correlated: child.correlated,
		Columns:    len(q.Columns),
		Kind:       expr.KindOf(q.Exprs[0]),
	}, nil
}

// Aggregate implements expr.Scope.
func (s *scope) Aggregate(a *expr.Aggregate) (*expr.Aggregate, error) {
	if !s.aggregates {
		return nil, fmt.Errorf("%w: %s", ErrAggregateNotAllowed, a.Func)
	}
	a.Slot = len(s.aggs)
	s.aggs = append(s.aggs, a)
	return a, nil
}

// bind binds e with aggregates allowed or not.
func (s *scope) bind(e compiler.Expr, aggregates bool) (expr.Expr, error) {
	s.aggregates = aggregates
	defer func() { s.aggregates = false }()
	return expr.Bind(s, e)
}

// bindCondition binds a boolean condition.
func (s *scope) bindCondition(e compiler.Expr, aggregates bool) (expr.Expr, error) {
	b, err := s.bind(e, aggregates)
	if err != nil {
		return nil, err
	}
	if k := expr.KindOf(b); k != value.Null && k != value.Bool {
		return nil, fmt.Errorf("%w: %s", ErrNotBoolean, expr.Format(b))
	}
	return b, nil
}
