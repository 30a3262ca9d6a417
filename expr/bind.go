package expr

import (
	"errors"
	"fmt"
	"time"

	"github.com/chirst/relq/compiler"
	"github.com/chirst/relq/value"
)

// Scope resolves the names an expression refers to. The planner implements it
// for each query block.
type Scope interface {
	// Column resolves a possibly qualified column name to a *Column of the
	// query or an *OuterColumn of an enclosing query.
	Column(table, name string) (Expr, error)
	// Subquery plans a nested select with this scope as its parent.
	Subquery(sel *compiler.SelectStmt) (*Subquery, error)
	// Aggregate assigns a to a group slot, or returns ErrAggregateNotAllowed
	// where aggregates may not appear.
	Aggregate(a *Aggregate) (*Aggregate, error)
}

var compareOps = map[string]CompareOp{
	compiler.OpEq: OpEq,
	compiler.OpNe: OpNe,
	compiler.OpLt: OpLt,
	compiler.OpLe: OpLe,
	compiler.OpGt: OpGt,
	compiler.OpGe: OpGe,
}

var arithOps = map[string]ArithOp{
	compiler.OpAdd: OpAdd,
	compiler.OpSub: OpSub,
	compiler.OpMul: OpMul,
	compiler.OpDiv: OpDiv,
	compiler.OpMod: OpMod,
}

var aggFuncs = map[string]AggFunc{
	"COUNT": AggCount,
	"SUM":   AggSum,
	"AVG":   AggAvg,
	"MIN":   AggMin,
	"MAX":   AggMax,
}

// Bind resolves the names in a parsed expression and returns the specialized
// bound expression.
func Bind(s Scope, e compiler.Expr) (Expr, error) {
	switch n := e.(type) {
	case nil:
		return nil, nil
	case *compiler.IntLit:
		return &Const{Val: value.LongValue(n.Value)}, nil
	case *compiler.FloatLit:
		return &Const{Val: value.DoubleValue(n.Value)}, nil
	case *compiler.StringLit:
		return &Const{Val: value.StringValue(n.Value)}, nil
	case *compiler.NullLit:
		return &Const{Val: value.NullValue()}, nil
	case *compiler.BoolLit:
		return &Const{Val: value.BoolValue(n.Value)}, nil
	case *compiler.Variable:
		return &Param{Index: n.Position}, nil
	case *compiler.ColumnRef:
		return s.Column(n.Table, n.Column)
	case *compiler.UnaryExpr:
		return bindUnary(s, n)
	case *compiler.BinaryExpr:
		return bindBinary(s, n)
	case *compiler.FunctionExpr:
		return bindFunction(s, n)
	case *compiler.BetweenExpr:
		x, err := bindAll(s, n.Expr, n.Low, n.High)
		if err != nil {
			return nil, err
		}
		if err := checkComparable(x[0], x[1]); err != nil {
			return nil, err
		}
		if err := checkComparable(x[0], x[2]); err != nil {
			return nil, err
		}
		return Specialize(&Between{Operand: x[0], Low: x[1], High: x[2], Not: n.Not}), nil
	case *compiler.InExpr:
		operand, err := Bind(s, n.Expr)
		if err != nil {
			return nil, err
		}
		if n.Select != nil {
			sub, err := subquery(s, n.Select)
			if err != nil {
				return nil, err
			}
			return &InSelect{Operand: operand, Sub: sub, Not: n.Not}, nil
		}
		list, err := bindAll(s, n.List...)
		if err != nil {
			return nil, err
		}
		for _, x := range list {
			if err := checkComparable(operand, x); err != nil {
				return nil, err
			}
		}
		return Specialize(&InList{Operand: operand, List: list, Not: n.Not}), nil
	case *compiler.IsNullExpr:
		operand, err := Bind(s, n.Expr)
		if err != nil {
			return nil, err
		}
		return Specialize(&IsNull{Operand: operand, Not: n.Not}), nil
	case *compiler.LikeExpr:
		return bindLike(s, n)
	case *compiler.CaseExpr:
		return bindCase(s, n)
	case *compiler.ExistsExpr:
		sub, err := s.Subquery(n.Select)
		if err != nil {
			return nil, err
		}
		return &Exists{Sub: sub}, nil
	case *compiler.SubqueryExpr:
		sub, err := subquery(s, n.Select)
		if err != nil {
			return nil, err
		}
		return &ScalarSubquery{Sub: sub}, nil
	}
	return nil, fmt.Errorf("unsupported expression %T", e)
}

// subquery plans a select used as a value, which must have one column.
func subquery(s Scope, sel *compiler.SelectStmt) (*Subquery, error) {
	sub, err := s.Subquery(sel)
	if err != nil {
		return nil, err
	}
	if sub.Columns != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrSubqueryColumns, sub.Columns)
	}
	return sub, nil
}

func bindAll(s Scope, es ...compiler.Expr) ([]Expr, error) {
	ret := make([]Expr, len(es))
	for i, e := range es {
		b, err := Bind(s, e)
		if err != nil {
			return nil, err
		}
		ret[i] = b
	}
	return ret, nil
}

func bindUnary(s Scope, n *compiler.UnaryExpr) (Expr, error) {
	operand, err := Bind(s, n.Operand)
	if err != nil {
		return nil, err
	}
	if n.Operator == compiler.OpNot {
		if err := checkBool(operand, "NOT"); err != nil {
			return nil, err
		}
		return Specialize(&Not{Operand: operand}), nil
	}
	k := KindOf(operand)
	if err := checkArith(k, "-"); err != nil {
		return nil, err
	}
	return Specialize(&Neg{Operand: operand, Kind: numericKind(k)}), nil
}

func bindBinary(s Scope, n *compiler.BinaryExpr) (Expr, error) {
	x, err := bindAll(s, n.Left, n.Right)
	if err != nil {
		return nil, err
	}
	l, r := x[0], x[1]
	switch n.Operator {
	case compiler.OpAnd:
		if err := checkBool(l, "AND"); err != nil {
			return nil, err
		}
		if err := checkBool(r, "AND"); err != nil {
			return nil, err
		}
		return Specialize(AndAll(append(Conjuncts(l), Conjuncts(r)...))), nil
	case compiler.OpOr:
		if err := checkBool(l, "OR"); err != nil {
			return nil, err
		}
		if err := checkBool(r, "OR"); err != nil {
			return nil, err
		}
		return Specialize(&Or{Left: l, Right: r}), nil
	case compiler.OpConcat:
		return Specialize(&Concat{Left: l, Right: r}), nil
	}
	if op, ok := compareOps[n.Operator]; ok {
		if err := checkComparable(l, r); err != nil {
			return nil, err
		}
		return Specialize(&Compare{Op: op, Left: l, Right: r}), nil
	}
	op, ok := arithOps[n.Operator]
	if !ok {
		return nil, fmt.Errorf("unsupported operator %s", n.Operator)
	}
	kl, kr := KindOf(l), KindOf(r)
	if err := checkArith(kl, n.Operator); err != nil {
		return nil, err
	}
	if err := checkArith(kr, n.Operator); err != nil {
		return nil, err
	}
	return Specialize(&Arith{Op: op, Left: l, Right: r, Kind: arithKind(kl, kr)}), nil
}

func bindFunction(s Scope, n *compiler.FunctionExpr) (Expr, error) {
	if fn, ok := aggFuncs[n.Name]; ok {
		return bindAggregate(s, n, fn)
	}
	f, ok := Lookup(n.Name)
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownFunction, n.Name)
	}
	args, err := bindAll(s, n.Args...)
	if err != nil {
		return nil, err
	}
	kinds := make([]value.Kind, len(args))
	for i, a := range args {
		kinds[i] = KindOf(a)
	}
	return Specialize(&Call{Func: f, Args: args, Kind: f.Kind(kinds)}), nil
}

func bindAggregate(s Scope, n *compiler.FunctionExpr, fn AggFunc) (Expr, error) {
	a := &Aggregate{Func: fn, Distinct: n.Distinct, Star: n.Star, Kind: value.Long}
	if !n.Star {
		arg, err := Bind(noAggregates{s}, n.Args[0])
		if err != nil {
			return nil, err
		}
		a.Arg = arg
		k := KindOf(arg)
		switch fn {
		case AggSum, AggAvg:
			if err := checkArith(k, fn.String()); err != nil {
				return nil, err
			}
			if k == value.Date {
				return nil, fmt.Errorf("%w: %s of %s", ErrTypeMismatch, fn, k)
			}
			a.Kind = numericKind(k)
			if fn == AggAvg && a.Kind == value.Long {
				a.Kind = value.Double
			}
		case AggMin, AggMax:
			a.Kind = k
		}
	}
	return s.Aggregate(a)
}

// noAggregates rejects aggregates nested in an aggregate argument.
type noAggregates struct {
	Scope
}

func (noAggregates) Aggregate(a *Aggregate) (*Aggregate, error) {
	return nil, fmt.Errorf("%w: %s inside an aggregate", ErrAggregateNotAllowed, a.Func)
}

func bindLike(s Scope, n *compiler.LikeExpr) (Expr, error) {
	x, err := bindAll(s, n.Expr, n.Pattern)
	if err != nil {
		return nil, err
	}
	like := &Like{Operand: x[0], Pattern: x[1], Not: n.Not}
	if n.Escape != nil {
		if like.Escape, err = Bind(s, n.Escape); err != nil {
			return nil, err
		}
	}
	p, ok := like.Pattern.(*Const)
	if !ok || p.Val.IsNull() {
		return Specialize(like), nil
	}
	escape := ""
	if like.Escape != nil {
		e, ok := like.Escape.(*Const)
		if !ok || e.Val.IsNull() {
			return Specialize(like), nil
		}
		if escape, err = e.Val.AsString(); err != nil {
			return nil, err
		}
	}
	pattern, err := p.Val.AsString()
	if err != nil {
		return nil, err
	}
	if like.re, err = LikeToRegexp(pattern, escape); err != nil {
		return nil, err
	}
	return Specialize(like), nil
}

func bindCase(s Scope, n *compiler.CaseExpr) (Expr, error) {
	c := &Case{}
	var err error
	if c.Operand, err = Bind(s, n.Operand); err != nil {
		return nil, err
	}
	var kinds []value.Kind
	for _, w := range n.Whens {
		x, err := bindAll(s, w.Cond, w.Result)
		if err != nil {
			return nil, err
		}
		if c.Operand == nil {
			if err := checkBool(x[0], "WHEN"); err != nil {
				return nil, err
			}
		}
		c.Whens = append(c.Whens, When{Cond: x[0], Result: x[1]})
		kinds = append(kinds, KindOf(x[1]))
	}
	if c.Else, err = Bind(s, n.Else); err != nil {
		return nil, err
	}
	if c.Else != nil {
		kinds = append(kinds, KindOf(c.Else))
	}
	// Results of unrelated kinds keep their own kind per row.
	c.Kind, _ = commonKind(kinds)
	return Specialize(c), nil
}

func checkBool(e Expr, op string) error {
	switch k := KindOf(e); k {
	case value.Bool, value.Null:
		return nil
	default:
		return fmt.Errorf("%w: %s operand of %s", ErrTypeMismatch, k, op)
	}
}

func checkArith(k value.Kind, op string) error {
	switch k {
	case value.Bool, value.Binary:
		return fmt.Errorf("%w: %s operand of %s", ErrTypeMismatch, k, op)
	}
	return nil
}

func checkComparable(l, r Expr) error {
	kl, kr := KindOf(l), KindOf(r)
	if kl == value.Null || kr == value.Null || kl == kr {
		return nil
	}
	if kl == value.Binary || kr == value.Binary {
		if kl != value.String && kr != value.String {
			return fmt.Errorf("%w: cannot compare %s with %s", ErrTypeMismatch, kl, kr)
		}
	}
	return nil
}

// Specialize rewrites a node whose operand kinds are known into its faster
// form and folds constant subtrees. A constant that fails to evaluate is left
// in place so the error surfaces at execution.
func Specialize(e Expr) Expr {
	switch n := e.(type) {
	case *Compare:
		kl, kr := KindOf(n.Left), KindOf(n.Right)
		if kl == kr && (kl == value.Long || kl == value.Date) {
			e = &LongCompare{Op: n.Op, Left: n.Left, Right: n.Right}
		}
	case *Arith:
		if n.Kind == value.Long && KindOf(n.Left) == value.Long && KindOf(n.Right) == value.Long {
			e = &LongArith{Op: n.Op, Left: n.Left, Right: n.Right}
		}
	case *IsNull:
		if c, ok := n.Operand.(*Column); ok && c.NotNull {
			return &Const{Val: value.BoolValue(n.Not)}
		}
	}
	if _, ok := e.(*Const); !ok && IsConstant(e) {
		if v, err := Eval(constEnv{}, e); err == nil {
			return &Const{Val: v}
		}
	}
	return e
}

// Conjuncts splits e into the operands of its top level AND chain.
func Conjuncts(e Expr) []Expr {
	if e == nil {
		return nil
	}
	if a, ok := e.(*And); ok {
		return append(Conjuncts(a.Left), Conjuncts(a.Right)...)
	}
	return []Expr{e}
}

// AndAll joins es into a right folded AND chain. It returns nil for no
// operands.
func AndAll(es []Expr) Expr {
	if len(es) == 0 {
		return nil
	}
	ret := es[len(es)-1]
	for i := len(es) - 2; i >= 0; i-- {
		ret = &And{Left: es[i], Right: ret}
	}
	return ret
}

var errNotConstant = errors.New("expression is not constant")

// constEnv evaluates constant expressions. Anything that reads row state is an
// error.
type constEnv struct{}

func (constEnv) Column(int, int) value.Value           { return value.NullValue() }
func (constEnv) OuterColumn(int, int, int) value.Value { return value.NullValue() }
func (constEnv) Param(int) (value.Value, error)        { return value.NullValue(), errNotConstant }
func (constEnv) Aggregate(int) value.Value             { return value.NullValue() }
func (constEnv) Now() time.Time                        { return time.Now() }

func (constEnv) Subquery(*Subquery, int) ([]value.Value, error) {
	return nil, errNotConstant
}
