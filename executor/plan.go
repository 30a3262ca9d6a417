package executor

import (
	"fmt"

	"github.com/chirst/relq/catalog"
	"github.com/chirst/relq/expr"
	"github.com/chirst/relq/result"
)

// Plan is a statement ready to be run by the executor. Plans are built by the
// planner and are immutable, so one plan may be executed many times and by
// many goroutines at once.
type Plan struct {
	// Version is the catalog version used to build this plan. If the version
	// is not the same during execution the plan will be built again.
	Version string
	// Explain lists the lanes of the plan instead of running it.
	Explain bool
	// Params is the number of parameter markers the statement expects.
	Params int
	Stmt   Statement
}

// NewPlan returns a plan for stmt built against catalog version.
func NewPlan(version string, explain bool, params int, stmt Statement) *Plan {
	return &Plan{
		Version: version,
		Explain: explain,
		Params:  params,
		Stmt:    stmt,
	}
}

// Statement is one of *Query, *Insert, *Update, *Delete, *CreateTable,
// *CreateIndex, *Drop or *Validate.
type Statement interface {
	// Kind names the statement for logs and metrics.
	Kind() string
}

// Query is a planned select. Items are in evaluation order, Items[0] is the
// outermost lane and the last item is advanced most often.
type Query struct {
	// ID numbers the selects of a statement. The top level query is 0.
	ID    int
	Items []*FromItem
	// Residual is the part of WHERE that reads no FROM item. It is evaluated
	// once before any row is read.
	Residual expr.Expr
	// Columns are the visible result column names.
	Columns []string
	// Exprs computes each result column. Hidden ORDER BY keys follow the
	// visible columns.
	Exprs  []expr.Expr
	Hints  []result.Tag
	Hidden int
	// GroupBy is set for grouped queries. Aggregates holds every aggregate
	// read by Exprs or Having indexed by slot.
	GroupBy    []expr.Expr
	Aggregates []*expr.Aggregate
	Having     expr.Expr
	Distinct   bool
	OrderBy    []OrderKey
	// Limit and Offset are nil when absent. Otherwise they are constants or
	// parameters.
	Limit  expr.Expr
	Offset expr.Expr
	// Subqueries are the queries nested directly in this one.
	Subqueries []*Query
}

func (*Query) Kind() string { return "select" }

// Grouped reports whether rows are aggregated before they are emitted.
func (q *Query) Grouped() bool {
	return len(q.GroupBy) > 0 || len(q.Aggregates) > 0
}

// Tables returns every table read by q and its subqueries.
func (q *Query) Tables() []*catalog.Table {
	var ret []*catalog.Table
	for _, item := range q.Items {
		ret = append(ret, item.Table)
	}
	for _, s := range q.Subqueries {
		ret = append(ret, s.Tables()...)
	}
	return ret
}

// OrderKey sorts by result column Col.
type OrderKey struct {
	Col  int
	Desc bool
}

// FromItem is one table of a join placed at a level of the nested loop.
type FromItem struct {
	// ID is the position of the item in the FROM clause. Column expressions
	// refer to items by ID.
	ID    int
	Name  string
	Table *catalog.Table
	// Outer is set for the right side of a LEFT JOIN. When no row satisfies
	// On a row of NULLs is produced.
	Outer bool
	On    expr.Expr
	// Probe positions the item through its rowid or an index instead of a
	// scan. Outer items never probe.
	Probe *expr.IndexProbe
	// Filter is the residual WHERE conjunction evaluated at this level.
	Filter expr.Expr
}

// Access describes how the item is read.
func (f *FromItem) Access() string {
	switch {
	case f.Probe == nil:
		return "scan"
	case f.Probe.Identity:
		return "rowid"
	default:
		return "index " + f.Probe.Index.Name
	}
}

func (f *FromItem) String() string {
	if f.Name != f.Table.Name {
		return fmt.Sprintf("%s AS %s", f.Table.Name, f.Name)
	}
	return f.Table.Name
}

// Insert adds rows to Table from VALUES lists or a select.
type Insert struct {
	Table *catalog.Table
	// Columns are the table ordinals receiving each value of a row.
	Columns []int
	// Rows are the bound VALUES lists. Source is set instead for INSERT ...
	// SELECT.
	Rows   [][]expr.Expr
	Source *Query
	// Defaults holds the bound DEFAULT of each table column or nil.
	Defaults []expr.Expr
	// Checks are the CHECK constraints bound against the new row as item 0.
	Checks []expr.Expr
}

func (*Insert) Kind() string { return "insert" }

// SetColumn assigns Value to table ordinal Col.
type SetColumn struct {
	Col   int
	Value expr.Expr
}

// Update changes the rows of Table found by Scan. Scan has the table as its
// only item.
type Update struct {
	Table  *catalog.Table
	Scan   *Query
	Set    []SetColumn
	Checks []expr.Expr
}

func (*Update) Kind() string { return "update" }

// Delete removes the rows of Table found by Scan.
type Delete struct {
	Table *catalog.Table
	Scan  *Query
}

func (*Delete) Kind() string { return "delete" }

// CreateTable stores a new table and the indexes of its constraints. Noop is
// set for IF NOT EXISTS when the table already exists.
type CreateTable struct {
	Table   *catalog.Table
	Indexes []*catalog.Index
	Noop    bool
}

func (*CreateTable) Kind() string { return "create" }

// CreateIndex builds a new index over the existing rows of Table.
type CreateIndex struct {
	Table *catalog.Table
	Index *catalog.Index
	Noop  bool
}

func (*CreateIndex) Kind() string { return "create" }

// Drop removes a table with its indexes, or a single index.
type Drop struct {
	// Table is the dropped table, or the table owning the dropped Index.
	Table *catalog.Table
	Index *catalog.Index
	Noop  bool
}

func (*Drop) Kind() string { return "drop" }

// Validate checks the rows and indexes of Table.
type Validate struct {
	Table  *catalog.Table
	Checks []expr.Expr
}

func (*Validate) Kind() string { return "validate" }
