package expr

import (
	"fmt"
	"math"
	"time"

	"github.com/chirst/relq/value"
)

// Env supplies the row state an expression is evaluated against.
type Env interface {
	// Column returns a column of the current row of a FROM item.
	Column(item, col int) value.Value
	// OuterColumn returns a column of the current row of an enclosing query.
	OuterColumn(depth, item, col int) value.Value
	Param(index int) (value.Value, error)
	// Aggregate returns the accumulated value of an aggregate slot of the
	// current group.
	Aggregate(slot int) value.Value
	// Subquery runs s and returns the first column of at most limit rows. A
	// limit of zero returns every row.
	Subquery(s *Subquery, limit int) ([]value.Value, error)
	// Now is the statement timestamp.
	Now() time.Time
}

// Eval evaluates e. Boolean expressions return NULL for UNKNOWN.
func Eval(env Env, e Expr) (value.Value, error) {
	switch n := e.(type) {
	case *Const:
		return n.Val, nil
	case *Param:
		return env.Param(n.Index)
	case *Column:
		return env.Column(n.Item, n.Col), nil
	case *OuterColumn:
		return env.OuterColumn(n.Depth, n.Item, n.Col), nil
	case *Neg:
		v, err := Eval(env, n.Operand)
		if err != nil {
			return v, err
		}
		return negate(v)
	case *Arith:
		l, r, err := evalPair(env, n.Left, n.Right)
		if err != nil {
			return value.NullValue(), err
		}
		return arith(n.Op, n.Kind, l, r)
	case *LongArith:
		l, r, err := evalPair(env, n.Left, n.Right)
		if err != nil || l.IsNull() || r.IsNull() {
			return value.NullValue(), err
		}
		return longArith(n.Op, l.Long(), r.Long())
	case *Concat:
		l, r, err := evalPair(env, n.Left, n.Right)
		if err != nil || l.IsNull() || r.IsNull() {
			return value.NullValue(), err
		}
		ls, err := l.AsString()
		if err != nil {
			return value.NullValue(), err
		}
		rs, err := r.AsString()
		if err != nil {
			return value.NullValue(), err
		}
		return value.StringValue(ls + rs), nil
	case *Case:
		return evalCase(env, n)
	case *Call:
		args := make([]value.Value, len(n.Args))
		for i, a := range n.Args {
			v, err := Eval(env, a)
			if err != nil {
				return v, err
			}
			if v.IsNull() && n.Func.Strict {
				return v, nil
			}
			args[i] = v
		}
		return n.Func.Eval(env, args)
	case *Aggregate:
		return env.Aggregate(n.Slot), nil
	case *ScalarSubquery:
		vals, err := env.Subquery(n.Sub, 2)
		if err != nil {
			return value.NullValue(), err
		}
		switch len(vals) {
		case 0:
			return value.NullValue(), nil
		case 1:
			return vals[0], nil
		}
		return value.NullValue(), ErrSubqueryRows
	}
	b, err := EvalBool(env, e)
	if err != nil {
		return value.NullValue(), err
	}
	return b.Value(), nil
}

// EvalBool evaluates e as a condition. Non boolean values are converted and
// NULL is Unknown.
func EvalBool(env Env, e Expr) (Bool3, error) {
	switch n := e.(type) {
	case *Not:
		b, err := EvalBool(env, n.Operand)
		return Not3(b), err
	case *And:
		l, err := EvalBool(env, n.Left)
		if err != nil || l == False {
			return False, err
		}
		r, err := EvalBool(env, n.Right)
		return And3(l, r), err
	case *Or:
		l, err := EvalBool(env, n.Left)
		if err != nil || l == True {
			return l, err
		}
		r, err := EvalBool(env, n.Right)
		return Or3(l, r), err
	case *Compare:
		l, r, err := evalPair(env, n.Left, n.Right)
		if err != nil {
			return Unknown, err
		}
		return compare3(n.Op, l, r)
	case *LongCompare:
		l, r, err := evalPair(env, n.Left, n.Right)
		if err != nil || l.IsNull() || r.IsNull() {
			return Unknown, err
		}
		c := 0
		switch {
		case l.Long() < r.Long():
			c = -1
		case l.Long() > r.Long():
			c = 1
		}
		return FromBool(n.Op.test(c)), nil
	case *Between:
		return evalBetween(env, n)
	case *InList:
		v, err := Eval(env, n.Operand)
		if err != nil || v.IsNull() {
			return Unknown, err
		}
		vals := make([]value.Value, len(n.List))
		for i, x := range n.List {
			if vals[i], err = Eval(env, x); err != nil {
				return Unknown, err
			}
		}
		return in3(v, vals, n.Not)
	case *InSelect:
		v, err := Eval(env, n.Operand)
		if err != nil || v.IsNull() {
			return Unknown, err
		}
		vals, err := env.Subquery(n.Sub, 0)
		if err != nil {
			return Unknown, err
		}
		return in3(v, vals, n.Not)
	case *IsNull:
		v, err := Eval(env, n.Operand)
		if err != nil {
			return Unknown, err
		}
		return FromBool(v.IsNull() != n.Not), nil
	case *Like:
		return evalLike(env, n)
	case *Exists:
		vals, err := env.Subquery(n.Sub, 1)
		if err != nil {
			return Unknown, err
		}
		return FromBool((len(vals) > 0) != n.Not), nil
	case *OuterJoin:
		return EvalBool(env, n.Cond)
	case *IndexProbe:
		return EvalBool(env, n.Pred)
	}
	v, err := Eval(env, e)
	if err != nil || v.IsNull() {
		return Unknown, err
	}
	b, err := v.AsBool()
	if err != nil {
		return Unknown, err
	}
	return FromBool(b), nil
}

func evalPair(env Env, left, right Expr) (value.Value, value.Value, error) {
	l, err := Eval(env, left)
	if err != nil {
		return l, l, err
	}
	r, err := Eval(env, right)
	return l, r, err
}

func compare3(op CompareOp, l, r value.Value) (Bool3, error) {
	if l.IsNull() || r.IsNull() {
		return Unknown, nil
	}
	c, err := value.Compare(l, r)
	if err != nil {
		return Unknown, err
	}
	return FromBool(op.test(c)), nil
}

func evalBetween(env Env, n *Between) (Bool3, error) {
	v, err := Eval(env, n.Operand)
	if err != nil {
		return Unknown, err
	}
	lo, hi, err := evalPair(env, n.Low, n.High)
	if err != nil {
		return Unknown, err
	}
	ge, err := compare3(OpGe, v, lo)
	if err != nil {
		return Unknown, err
	}
	le, err := compare3(OpLe, v, hi)
	if err != nil {
		return Unknown, err
	}
	b := And3(ge, le)
	if n.Not {
		return Not3(b), nil
	}
	return b, nil
}

// in3 is TRUE when v equals a member, UNKNOWN when no member matched but one
// was NULL, FALSE otherwise. not negates the result.
func in3(v value.Value, vals []value.Value, not bool) (Bool3, error) {
	ret := False
	for _, x := range vals {
		b, err := compare3(OpEq, v, x)
		if err != nil {
			return Unknown, err
		}
		if b == True {
			ret = True
			break
		}
		if b == Unknown {
			ret = Unknown
		}
	}
	if not {
		return Not3(ret), nil
	}
	return ret, nil
}

func evalLike(env Env, n *Like) (Bool3, error) {
	v, err := Eval(env, n.Operand)
	if err != nil || v.IsNull() {
		return Unknown, err
	}
	re := n.re
	if re == nil {
		p, err := Eval(env, n.Pattern)
		if err != nil || p.IsNull() {
			return Unknown, err
		}
		pattern, err := p.AsString()
		if err != nil {
			return Unknown, err
		}
		escape := ""
		if n.Escape != nil {
			e, err := Eval(env, n.Escape)
			if err != nil || e.IsNull() {
				return Unknown, err
			}
			if escape, err = e.AsString(); err != nil {
				return Unknown, err
			}
		}
		if re, err = LikeToRegexp(pattern, escape); err != nil {
			return Unknown, err
		}
	}
	s, err := v.AsString()
	if err != nil {
		return Unknown, err
	}
	return FromBool(re.MatchString(s) != n.Not), nil
}

func evalCase(env Env, n *Case) (value.Value, error) {
	var operand value.Value
	if n.Operand != nil {
		var err error
		if operand, err = Eval(env, n.Operand); err != nil {
			return operand, err
		}
	}
	result := n.Else
	for _, w := range n.Whens {
		var b Bool3
		var err error
		if n.Operand != nil {
			var v value.Value
			if v, err = Eval(env, w.Cond); err != nil {
				return v, err
			}
			b, err = compare3(OpEq, operand, v)
		} else {
			b, err = EvalBool(env, w.Cond)
		}
		if err != nil {
			return value.NullValue(), err
		}
		if b == True {
			result = w.Result
			break
		}
	}
	if result == nil {
		return value.NullValue(), nil
	}
	v, err := Eval(env, result)
	if err != nil {
		return v, err
	}
	return v.Convert(n.Kind)
}

// numericKind is the kind a value of kind k takes part in arithmetic as.
func numericKind(k value.Kind) value.Kind {
	switch k {
	case value.Long, value.Date, value.Bool:
		return value.Long
	case value.String:
		return value.Decimal
	}
	return k
}

func numericRank(k value.Kind) int {
	switch k {
	case value.Long:
		return 1
	case value.Decimal:
		return 2
	case value.Double:
		return 3
	}
	return 0
}

// arithKind is the kind arithmetic over a and b is carried out in. Null means
// it is decided per row.
func arithKind(a, b value.Kind) value.Kind {
	if a == value.Null || b == value.Null {
		return value.Null
	}
	a, b = numericKind(a), numericKind(b)
	if !a.IsNumeric() {
		return a
	}
	if !b.IsNumeric() {
		return b
	}
	if numericRank(a) >= numericRank(b) {
		return a
	}
	return b
}

// commonKind is the kind values of the given kinds share. Numeric kinds
// promote. ok is false when two kinds cannot share a type.
func commonKind(kinds []value.Kind) (value.Kind, bool) {
	ret := value.Null
	for _, k := range kinds {
		switch {
		case k == value.Null || k == ret:
		case ret == value.Null:
			ret = k
		case ret.IsNumeric() && k.IsNumeric():
			if numericRank(k) > numericRank(ret) {
				ret = k
			}
		default:
			return value.Null, false
		}
	}
	return ret, true
}

func negate(v value.Value) (value.Value, error) {
	if v.IsNull() {
		return v, nil
	}
	v, err := v.Convert(numericKind(v.Kind()))
	if err != nil {
		return v, err
	}
	switch v.Kind() {
	case value.Long:
		if v.Long() == math.MinInt64 {
			return value.NullValue(), fmt.Errorf("%w: -(%d)", ErrOverflow, v.Long())
		}
		return value.LongValue(-v.Long()), nil
	case value.Double:
		return value.DoubleValue(-v.Double()), nil
	case value.Decimal:
		return value.DecimalValue(v.Decimal().Neg()), nil
	}
	return value.NullValue(), fmt.Errorf("%w: cannot negate %s", ErrConversion, v.Kind())
}

// arith applies op after promoting both operands to kind, or to their own
// common kind when kind is Null.
func arith(op ArithOp, kind value.Kind, l, r value.Value) (value.Value, error) {
	if l.IsNull() || r.IsNull() {
		return value.NullValue(), nil
	}
	if kind == value.Null {
		kind = arithKind(l.Kind(), r.Kind())
	}
	l, err := l.Convert(kind)
	if err != nil {
		return l, err
	}
	r, err = r.Convert(kind)
	if err != nil {
		return r, err
	}
	switch kind {
	case value.Long:
		return longArith(op, l.Long(), r.Long())
	case value.Double:
		return doubleArith(op, l.Double(), r.Double())
	case value.Decimal:
		return decimalArith(op, l, r)
	}
	return value.NullValue(), fmt.Errorf("%w: %s arithmetic", ErrConversion, kind)
}

func longArith(op ArithOp, a, b int64) (value.Value, error) {
	var ret int64
	overflow := false
	switch op {
	case OpAdd:
		ret = a + b
		overflow = (b > 0 && ret < a) || (b < 0 && ret > a)
	case OpSub:
		ret = a - b
		overflow = (b > 0 && ret > a) || (b < 0 && ret < a)
	case OpMul:
		if a != 0 && b != 0 {
			ret = a * b
			overflow = ret/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64)
		}
	case OpDiv:
		if b == 0 {
			return value.NullValue(), ErrDivisionByZero
		}
		overflow = a == math.MinInt64 && b == -1
		ret = a / b
	case OpMod:
		if b == 0 {
			return value.NullValue(), ErrDivisionByZero
		}
		if b != -1 {
			ret = a % b
		}
	}
	if overflow {
		return value.NullValue(), fmt.Errorf("%w: %d %s %d", ErrOverflow, a, op, b)
	}
	return value.LongValue(ret), nil
}

func doubleArith(op ArithOp, a, b float64) (value.Value, error) {
	var ret float64
	switch op {
	case OpAdd:
		ret = a + b
	case OpSub:
		ret = a - b
	case OpMul:
		ret = a * b
	case OpDiv:
		if b == 0 {
			return value.NullValue(), ErrDivisionByZero
		}
		ret = a / b
	case OpMod:
		if b == 0 {
			return value.NullValue(), ErrDivisionByZero
		}
		ret = math.Mod(a, b)
	}
	if math.IsInf(ret, 0) && !math.IsInf(a, 0) && !math.IsInf(b, 0) {
		return value.NullValue(), fmt.Errorf("%w: %g %s %g", ErrOverflow, a, op, b)
	}
	return value.DoubleValue(ret), nil
}

func decimalArith(op ArithOp, l, r value.Value) (value.Value, error) {
	a, b := l.Decimal(), r.Decimal()
	switch op {
	case OpAdd:
		return value.DecimalValue(a.Add(b)), nil
	case OpSub:
		return value.DecimalValue(a.Sub(b)), nil
	case OpMul:
		return value.DecimalValue(a.Mul(b)), nil
	case OpDiv:
		if b.IsZero() {
			return value.NullValue(), ErrDivisionByZero
		}
		return value.DecimalValue(a.Div(b)), nil
	}
	if b.IsZero() {
		return value.NullValue(), ErrDivisionByZero
	}
	return value.DecimalValue(a.Mod(b)), nil
}

// Arithmetic applies op to l and r promoted to kind. A Null kind promotes
// both operands to their common kind.
func Arithmetic(op ArithOp, kind value.Kind, l, r value.Value) (value.Value, error) {
	return arith(op, kind, l, r)
}
