// Package expr is the bound expression tree. Expressions are produced from the
// parsed tree by Bind, which resolves names against a Scope and specializes
// nodes for the types it finds. A bound tree is never modified afterwards.
package expr

import (
	"regexp"

	"github.com/chirst/relq/catalog"
	"github.com/chirst/relq/value"
)

// Expr is a bound expression. The set of implementations is closed.
type Expr interface {
	isExpr()
}

type ArithOp uint8

const (
	OpAdd ArithOp = iota + 1
	OpSub
	OpMul
	OpDiv
	OpMod
)

func (op ArithOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	}
	return "?"
}

type CompareOp uint8

const (
	OpEq CompareOp = iota + 1
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

func (op CompareOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "<>"
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	}
	return "?"
}

// test reports whether the result of a three way comparison satisfies op.
func (op CompareOp) test(c int) bool {
	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGe:
		return c >= 0
	}
	return false
}

// Const is a literal or a folded constant expression.
type Const struct {
	Val value.Value
}

// Param is a parameter marker. Index is 1-based.
type Param struct {
	Index int
}

// Column reads a column of the current row of a FROM item. Item is the
// position of the item in the FROM clause.
type Column struct {
	Item  int
	Col   int
	Table string
	Name  string
	Type  catalog.DataType
	// NotNull is set for columns that can never hold NULL.
	NotNull bool
}

// OuterColumn reads a column of an enclosing query. Depth 1 is the direct
// parent.
type OuterColumn struct {
	Depth int
	Item  int
	Col   int
	Table string
	Name  string
	Type  catalog.DataType
}

type Neg struct {
	Operand Expr
	Kind    value.Kind
}

type Not struct {
	Operand Expr
}

// Arith is arithmetic over operands of any numeric kind. Kind is the kind the
// operands are promoted to.
type Arith struct {
	Op    ArithOp
	Left  Expr
	Right Expr
	Kind  value.Kind
}

// LongArith is arithmetic where both operands are longs.
type LongArith struct {
	Op    ArithOp
	Left  Expr
	Right Expr
}

// Concat is the || operator.
type Concat struct {
	Left  Expr
	Right Expr
}

// Compare compares operands of any kinds.
type Compare struct {
	Op    CompareOp
	Left  Expr
	Right Expr
}

// LongCompare compares operands both known to be longs or both dates.
type LongCompare struct {
	Op    CompareOp
	Left  Expr
	Right Expr
}

type And struct {
	Left  Expr
	Right Expr
}

type Or struct {
	Left  Expr
	Right Expr
}

type Between struct {
	Operand Expr
	Low     Expr
	High    Expr
	Not     bool
}

type InList struct {
	Operand Expr
	List    []Expr
	Not     bool
}

type InSelect struct {
	Operand Expr
	Sub     *Subquery
	Not     bool
}

type IsNull struct {
	Operand Expr
	Not     bool
}

// Like matches Operand against a LIKE pattern. re is compiled at bind time
// when the pattern and escape are constant.
type Like struct {
	Operand Expr
	Pattern Expr
	Escape  Expr
	Not     bool
	re      *regexp.Regexp
}

type When struct {
	Cond   Expr
	Result Expr
}

// Case is a searched CASE or, with an Operand, a simple CASE.
type Case struct {
	Operand Expr
	Whens   []When
	Else    Expr
	Kind    value.Kind
}

// Call is a scalar function call.
type Call struct {
	Func *Func
	Args []Expr
	Kind value.Kind
}

type AggFunc uint8

const (
	AggCount AggFunc = iota + 1
	AggSum
	AggAvg
	AggMin
	AggMax
)

func (f AggFunc) String() string {
	switch f {
	case AggCount:
		return "COUNT"
	case AggSum:
		return "SUM"
	case AggAvg:
		return "AVG"
	case AggMin:
		return "MIN"
	case AggMax:
		return "MAX"
	}
	return "?"
}

// Aggregate reads the accumulated value of an aggregate call from the current
// group. Slot is assigned by the Scope the call was bound in.
type Aggregate struct {
	Func     AggFunc
	Arg      Expr
	Distinct bool
	Star     bool
	Slot     int
	Kind     value.Kind
}

// Subquery is a nested select. Plan is owned by the planner and run by the
// executor.
type Subquery struct {
	ID   int
	Plan any
	// OuterRefs holds the items of the enclosing query the subquery reads.
	OuterRefs ItemSet
	// Correlated is set when the subquery reads any enclosing query.
	Correlated bool
	// Columns is the number of result columns. Kind is the kind of the first.
	Columns int
	Kind    value.Kind
}

type Exists struct {
	Sub *Subquery
	Not bool
}

// ScalarSubquery yields the single value of a one row, one column select.
type ScalarSubquery struct {
	Sub *Subquery
}

// OuterJoin wraps the ON condition of a LEFT JOIN. It only decides whether an
// inner row matches; the null row is produced by the executor.
type OuterJoin struct {
	Cond Expr
}

// IndexProbe positions a FROM item through an index lookup on Key instead of
// scanning it. Identity probes seek the rowid directly.
type IndexProbe struct {
	Item     int
	Col      int
	Index    *catalog.Index
	Identity bool
	Key      Expr
	// Kind is the kind of the probed column. Keys are converted to it.
	Kind value.Kind
	Cost int
	// Pred is the equality the probe replaces.
	Pred Expr
}

func (*Const) isExpr()          {}
func (*Param) isExpr()          {}
func (*Column) isExpr()         {}
func (*OuterColumn) isExpr()    {}
func (*Neg) isExpr()            {}
func (*Not) isExpr()            {}
func (*Arith) isExpr()          {}
func (*LongArith) isExpr()      {}
func (*Concat) isExpr()         {}
func (*Compare) isExpr()        {}
func (*LongCompare) isExpr()    {}
func (*And) isExpr()            {}
func (*Or) isExpr()             {}
func (*Between) isExpr()        {}
func (*InList) isExpr()         {}
func (*InSelect) isExpr()       {}
func (*IsNull) isExpr()         {}
func (*Like) isExpr()           {}
func (*Case) isExpr()           {}
func (*Call) isExpr()           {}
func (*Aggregate) isExpr()      {}
func (*Exists) isExpr()         {}
func (*ScalarSubquery) isExpr() {}
func (*OuterJoin) isExpr()      {}
func (*IndexProbe) isExpr()     {}

// KindOf returns the static result kind of e. Null means the kind is only
// known at run time.
func KindOf(e Expr) value.Kind {
	switch n := e.(type) {
	case *Const:
		return n.Val.Kind()
	case *Param:
		return value.Null
	case *Column:
		return n.Type.Kind()
	case *OuterColumn:
		return n.Type.Kind()
	case *Neg:
		return n.Kind
	case *Arith:
		return n.Kind
	case *LongArith:
		return value.Long
	case *Concat:
		return value.String
	case *Compare, *LongCompare, *And, *Or, *Not, *Between, *InList, *InSelect,
		*IsNull, *Like, *Exists, *OuterJoin, *IndexProbe:
		return value.Bool
	case *Case:
		return n.Kind
	case *Call:
		return n.Kind
	case *Aggregate:
		return n.Kind
	case *ScalarSubquery:
		return n.Sub.Kind
	}
	return value.Null
}

// Nullable reports whether e may evaluate to NULL.
func Nullable(e Expr) bool {
	switch n := e.(type) {
	case *Const:
		return n.Val.IsNull()
	case *Column:
		return !n.NotNull
	case *IsNull, *Exists:
		return false
	case *Aggregate:
		return n.Func != AggCount
	case *Not:
		return Nullable(n.Operand)
	case *Neg:
		return Nullable(n.Operand)
	case *Compare:
		return Nullable(n.Left) || Nullable(n.Right)
	case *LongCompare:
		return Nullable(n.Left) || Nullable(n.Right)
	case *And:
		return Nullable(n.Left) || Nullable(n.Right)
	case *Or:
		return Nullable(n.Left) || Nullable(n.Right)
	}
	return true
}

// Walk calls fn for e and, while fn returns true, for its children. Plans of
// subqueries are not entered.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *Neg:
		Walk(n.Operand, fn)
	case *Not:
		Walk(n.Operand, fn)
	case *Arith:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *LongArith:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Concat:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Compare:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *LongCompare:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *And:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Or:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Between:
		Walk(n.Operand, fn)
		Walk(n.Low, fn)
		Walk(n.High, fn)
	case *InList:
		Walk(n.Operand, fn)
		for _, x := range n.List {
			Walk(x, fn)
		}
	case *InSelect:
		Walk(n.Operand, fn)
	case *IsNull:
		Walk(n.Operand, fn)
	case *Like:
		Walk(n.Operand, fn)
		Walk(n.Pattern, fn)
		Walk(n.Escape, fn)
	case *Case:
		Walk(n.Operand, fn)
		for _, w := range n.Whens {
			Walk(w.Cond, fn)
			Walk(w.Result, fn)
		}
		Walk(n.Else, fn)
	case *Call:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	case *Aggregate:
		Walk(n.Arg, fn)
	case *OuterJoin:
		Walk(n.Cond, fn)
	case *IndexProbe:
		Walk(n.Pred, fn)
	}
}

// ItemSet is a set of FROM item positions.
type ItemSet uint64

// MaxItems is the largest number of FROM items a query may join.
const MaxItems = 64

func (s ItemSet) Has(i int) bool        { return s&(1<<uint(i)) != 0 }
func (s ItemSet) With(i int) ItemSet    { return s | 1<<uint(i) }
func (s ItemSet) Without(i int) ItemSet { return s &^ (1 << uint(i)) }
func (s ItemSet) Empty() bool           { return s == 0 }

// SubsetOf reports whether every item of s is in t.
func (s ItemSet) SubsetOf(t ItemSet) bool { return s&^t == 0 }

// Refs returns the FROM items e reads, including those read by correlated
// subqueries.
func Refs(e Expr) ItemSet {
	var s ItemSet
	Walk(e, func(n Expr) bool {
		switch n := n.(type) {
		case *Column:
			s = s.With(n.Item)
		case *InSelect:
			s |= n.Sub.OuterRefs
		case *Exists:
			s |= n.Sub.OuterRefs
		case *ScalarSubquery:
			s |= n.Sub.OuterRefs
		}
		return true
	})
	return s
}

// HasAggregate reports whether e reads an aggregate.
func HasAggregate(e Expr) bool {
	found := false
	Walk(e, func(n Expr) bool {
		if _, ok := n.(*Aggregate); ok {
			found = true
		}
		return !found
	})
	return found
}

// IsConstant reports whether e evaluates to the same value for every row and
// every execution.
func IsConstant(e Expr) bool {
	constant := true
	Walk(e, func(n Expr) bool {
		switch n := n.(type) {
		case *Column, *OuterColumn, *Param, *Aggregate, *InSelect, *Exists,
			*ScalarSubquery, *IndexProbe:
			constant = false
		case *Call:
			if n.Func.Volatile {
				constant = false
			}
		}
		return constant
	})
	return constant
}
