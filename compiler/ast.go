package compiler

// ast (Abstract Syntax Tree) defines a data structure representing a SQL
// program. This data structure is generated from the parser. This data
// structure is bound against the catalog by the planner.

// Stmt is a parsed statement.
type Stmt interface {
	Base() *StmtBase
}

type StmtBase struct {
	Explain          bool
	ExplainQueryPlan bool
	// Params is the number of parameter markers in the statement.
	Params int
}

func (sb *StmtBase) Base() *StmtBase {
	return sb
}

type SelectStmt struct {
	*StmtBase
	Distinct      bool
	ResultColumns []ResultColumn
	// From is empty for a select without a FROM clause.
	From    []*FromItem
	Where   Expr
	GroupBy []Expr
	Having  Expr
	OrderBy []OrderingTerm
	// Limit and Offset are nil when absent.
	Limit  Expr
	Offset Expr
}

// ResultColumn is the column definitions in a select statement.
type ResultColumn struct {
	// All is * in a select statement for example SELECT * FROM foo
	All bool
	// AllTable is all for a table for example SELECT foo.* FROM foo
	AllTable string
	// Expression contains the more complicated result column rules
	Expression Expr
	// Alias is the alias for an expression for example SELECT 1 AS "bar"
	Alias string
}

type JoinType int

const (
	// JoinNone is the first table of a FROM clause.
	JoinNone JoinType = iota
	JoinInner
	JoinCross
	JoinLeft
)

func (j JoinType) String() string {
	switch j {
	case JoinInner:
		return "INNER JOIN"
	case JoinCross:
		return "CROSS JOIN"
	case JoinLeft:
		return "LEFT JOIN"
	}
	return ""
}

// FromItem is one table of a FROM clause and the join that attaches it to the
// tables before it.
type FromItem struct {
	TableName string
	Alias     string
	Join      JoinType
	Natural   bool
	On        Expr
	Using     []string
}

// Name is the alias of the item or its table name.
func (f *FromItem) Name() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.TableName
}

type OrderingTerm struct {
	Expr Expr
	Desc bool
}

type CreateStmt struct {
	*StmtBase
	// IfNotExists is true when the create statement includes `CREATE TABLE IF
	// NOT EXISTS` meaning the statement should not throw if the table already
	// exists.
	IfNotExists bool
	TableName   string
	ColDefs     []ColDef
	Constraints []TableConstraint
}

type ColDef struct {
	ColName string
	ColType string
	// Size and Scale are the parenthesized type arguments like VARCHAR(20) or
	// DECIMAL(10,2).
	Size       int
	Scale      int
	NotNull    bool
	PrimaryKey bool
	Unique     bool
	Identity   bool
	// Default is the SQL text of the DEFAULT expression.
	Default string
	// Check is the SQL text of a column CHECK constraint.
	Check string
}

type ConstraintType int

const (
	ConstraintUnique ConstraintType = iota + 1
	ConstraintPrimaryKey
	ConstraintCheck
)

type TableConstraint struct {
	Type    ConstraintType
	Name    string
	Columns []string
	// Check is the SQL text of a CHECK constraint.
	Check string
}

type CreateIndexStmt struct {
	*StmtBase
	IfNotExists bool
	Unique      bool
	IndexName   string
	TableName   string
	Columns     []string
}

type DropStmt struct {
	*StmtBase
	IfExists bool
	// Index is true for DROP INDEX.
	Index bool
	Name  string
}

type InsertStmt struct {
	*StmtBase
	TableName string
	ColNames  []string
	// ColValues is a 2d list where the first dimension represents a row and the
	// second dimension represents a column value.
	ColValues [][]Expr
	// Select is the source of INSERT INTO ... SELECT.
	Select *SelectStmt
}

type UpdateStmt struct {
	*StmtBase
	TableName string
	// SetList holds the assignments in the order they were written.
	SetList []SetItem
	// Predicate is the where clause. It may be nil when there is no where.
	Predicate Expr
}

type SetItem struct {
	Column string
	Value  Expr
}

type DeleteStmt struct {
	*StmtBase
	TableName string
	Predicate Expr
}

// ValidateStmt checks a table and its indexes for consistency.
type ValidateStmt struct {
	*StmtBase
	TableName string
}

// Expr defines the interface of an expression.
type Expr interface {
	expr()
}

// Operators of BinaryExpr and UnaryExpr.
const (
	OpEq     = "="
	OpNe     = "<>"
	OpLt     = "<"
	OpLe     = "<="
	OpGt     = ">"
	OpGe     = ">="
	OpAdd    = "+"
	OpSub    = "-"
	OpMul    = "*"
	OpDiv    = "/"
	OpMod    = "%"
	OpConcat = "||"
	OpAnd    = kwAnd
	OpOr     = kwOr
	OpNot    = kwNot
	OpNeg    = "-"
)

// BinaryExpr is for an expression with two operands.
type BinaryExpr struct {
	Left     Expr
	Operator string
	Right    Expr
}

// UnaryExpr is an expression like NOT true.
type UnaryExpr struct {
	Operator string
	Operand  Expr
}

// ColumnRef is a reference to a column, optionally qualified by a table name
// or alias.
type ColumnRef struct {
	Table  string
	Column string
}

// IntLit is an integer literal. Long is set for an L suffix or a value that
// does not fit 32 bits.
type IntLit struct {
	Value int64
	Long  bool
}

// FloatLit is a literal with a decimal point, an exponent or a D/F suffix.
type FloatLit struct {
	Value float64
}

type StringLit struct {
	Value string
}

type NullLit struct{}

type BoolLit struct {
	Value bool
}

// Variable is a parameter marker. Position is 1-based in appearance order.
type Variable struct {
	Position int
}

// FunctionExpr is a call of a registered function. Star is COUNT(*).
type FunctionExpr struct {
	Name     string
	Args     []Expr
	Star     bool
	Distinct bool
}

type BetweenExpr struct {
	Expr Expr
	Low  Expr
	High Expr
	Not  bool
}

// InExpr is x IN (list) or x IN (SELECT ...).
type InExpr struct {
	Expr   Expr
	List   []Expr
	Select *SelectStmt
	Not    bool
}

type IsNullExpr struct {
	Expr Expr
	Not  bool
}

type LikeExpr struct {
	Expr    Expr
	Pattern Expr
	// Escape is nil without an ESCAPE clause.
	Escape Expr
	Not    bool
}

type WhenClause struct {
	Cond   Expr
	Result Expr
}

// CaseExpr is CASE [operand] WHEN ... THEN ... [ELSE ...] END.
type CaseExpr struct {
	Operand Expr
	Whens   []WhenClause
	Else    Expr
}

type ExistsExpr struct {
	Select *SelectStmt
}

// SubqueryExpr is a scalar sub-select.
type SubqueryExpr struct {
	Select *SelectStmt
}

func (*BinaryExpr) expr()   {}
func (*UnaryExpr) expr()    {}
func (*ColumnRef) expr()    {}
func (*IntLit) expr()       {}
func (*FloatLit) expr()     {}
func (*StringLit) expr()    {}
func (*NullLit) expr()      {}
func (*BoolLit) expr()      {}
func (*Variable) expr()     {}
func (*FunctionExpr) expr() {}
func (*BetweenExpr) expr()  {}
func (*InExpr) expr()       {}
func (*IsNullExpr) expr()   {}
func (*LikeExpr) expr()     {}
func (*CaseExpr) expr()     {}
func (*ExistsExpr) expr()   {}
func (*SubqueryExpr) expr() {}

// Walk calls fn for e and, while fn returns true, for its children. Sub-select
// statements are not entered.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *BinaryExpr:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *UnaryExpr:
		Walk(n.Operand, fn)
	case *FunctionExpr:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	case *BetweenExpr:
		Walk(n.Expr, fn)
		Walk(n.Low, fn)
		Walk(n.High, fn)
	case *InExpr:
		Walk(n.Expr, fn)
		for _, a := range n.List {
			Walk(a, fn)
		}
	case *IsNullExpr:
		Walk(n.Expr, fn)
	case *LikeExpr:
		Walk(n.Expr, fn)
		Walk(n.Pattern, fn)
		Walk(n.Escape, fn)
	case *CaseExpr:
		Walk(n.Operand, fn)
		for _, w := range n.Whens {
			Walk(w.Cond, fn)
			Walk(w.Result, fn)
		}
		Walk(n.Else, fn)
	}
}

// HasAggregate reports whether e calls an aggregate function outside of a
// sub-select.
func HasAggregate(e Expr) bool {
	found := false
	Walk(e, func(n Expr) bool {
		if f, ok := n.(*FunctionExpr); ok {
			if info, ok := LookupFunction(f.Name); ok && info.Aggregate {
				found = true
			}
		}
		return !found
	})
	return found
}
