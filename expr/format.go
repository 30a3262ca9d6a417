package expr

import (
	"fmt"
	"strings"

	"github.com/chirst/relq/value"
)

// Format renders e as SQL like text for EXPLAIN output.
func Format(e Expr) string {
	var b strings.Builder
	format(&b, e)
	return b.String()
}

func format(b *strings.Builder, e Expr) {
	switch n := e.(type) {
	case nil:
		b.WriteString("NULL")
	case *Const:
		if n.Val.Kind() == value.String {
			b.WriteString("'" + strings.ReplaceAll(n.Val.Str(), "'", "''") + "'")
			return
		}
		b.WriteString(n.Val.String())
	case *Param:
		fmt.Fprintf(b, "?%d", n.Index)
	case *Column:
		b.WriteString(n.Table + "." + n.Name)
	case *OuterColumn:
		fmt.Fprintf(b, "outer(%d).%s.%s", n.Depth, n.Table, n.Name)
	case *Neg:
		b.WriteString("-")
		format(b, n.Operand)
	case *Not:
		b.WriteString("NOT ")
		format(b, n.Operand)
	case *Arith:
		binary(b, n.Left, n.Op.String(), n.Right, true)
	case *LongArith:
		binary(b, n.Left, n.Op.String(), n.Right, true)
	case *Concat:
		binary(b, n.Left, "||", n.Right, true)
	case *Compare:
		binary(b, n.Left, n.Op.String(), n.Right, false)
	case *LongCompare:
		binary(b, n.Left, n.Op.String(), n.Right, false)
	case *And:
		binary(b, n.Left, "AND", n.Right, false)
	case *Or:
		binary(b, n.Left, "OR", n.Right, true)
	case *Between:
		format(b, n.Operand)
		b.WriteString(not(n.Not) + " BETWEEN ")
		format(b, n.Low)
		b.WriteString(" AND ")
		format(b, n.High)
	case *InList:
		format(b, n.Operand)
		b.WriteString(not(n.Not) + " IN (")
		list(b, n.List)
		b.WriteString(")")
	case *InSelect:
		format(b, n.Operand)
		fmt.Fprintf(b, "%s IN (SUBQUERY %d)", not(n.Not), n.Sub.ID)
	case *IsNull:
		format(b, n.Operand)
		b.WriteString(" IS" + not(n.Not) + " NULL")
	case *Like:
		format(b, n.Operand)
		b.WriteString(not(n.Not) + " LIKE ")
		format(b, n.Pattern)
		if n.Escape != nil {
			b.WriteString(" ESCAPE ")
			format(b, n.Escape)
		}
	case *Case:
		b.WriteString("CASE")
		if n.Operand != nil {
			b.WriteString(" ")
			format(b, n.Operand)
		}
		for _, w := range n.Whens {
			b.WriteString(" WHEN ")
			format(b, w.Cond)
			b.WriteString(" THEN ")
			format(b, w.Result)
		}
		if n.Else != nil {
			b.WriteString(" ELSE ")
			format(b, n.Else)
		}
		b.WriteString(" END")
	case *Call:
		b.WriteString(n.Func.Name + "(")
		list(b, n.Args)
		b.WriteString(")")
	case *Aggregate:
		b.WriteString(n.Func.String() + "(")
		switch {
		case n.Star:
			b.WriteString("*")
		case n.Distinct:
			b.WriteString("DISTINCT ")
			format(b, n.Arg)
		default:
			format(b, n.Arg)
		}
		b.WriteString(")")
	case *Exists:
		fmt.Fprintf(b, "%sEXISTS (SUBQUERY %d)", strings.TrimPrefix(not(n.Not)+" ", " "), n.Sub.ID)
	case *ScalarSubquery:
		fmt.Fprintf(b, "(SUBQUERY %d)", n.Sub.ID)
	case *OuterJoin:
		format(b, n.Cond)
	case *IndexProbe:
		if n.Identity {
			b.WriteString("ROWID = ")
		} else {
			fmt.Fprintf(b, "%s = ", n.Index.Name)
		}
		format(b, n.Key)
	default:
		fmt.Fprintf(b, "%T", e)
	}
}

func binary(b *strings.Builder, l Expr, op string, r Expr, paren bool) {
	if paren {
		b.WriteString("(")
	}
	format(b, l)
	b.WriteString(" " + op + " ")
	format(b, r)
	if paren {
		b.WriteString(")")
	}
}

func list(b *strings.Builder, es []Expr) {
	for i, e := range es {
		if i > 0 {
			b.WriteString(", ")
		}
		format(b, e)
	}
}

func not(n bool) string {
	if n {
		return " NOT"
	}
	return ""
}
