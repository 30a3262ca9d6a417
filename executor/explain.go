package executor

import (
	"strconv"

	"github.com/chirst/relq/expr"
	"github.com/chirst/relq/result"
	"github.com/chirst/relq/value"
)

var explainColumns = []string{"query", "lane", "table", "access", "probe", "filter"}

// explain lists the lanes of every query of the statement, the innermost lane
// of each query first.
func explain(plan *Plan) (*ExecuteResult, error) {
	res := result.New(explainColumns, 0)
	var write func(q *Query) error
	write = func(q *Query) error {
		n := len(q.Items)
		for i := n - 1; i >= 0; i-- {
			item := q.Items[i]
			probe, filter := "", ""
			if item.Probe != nil {
				probe = expr.Format(item.Probe.Pred)
			}
			conds := expr.Conjuncts(item.Filter)
			if item.On != nil {
				conds = append([]expr.Expr{item.On}, conds...)
			}
			filter = formatAll(conds)
			access := item.Access()
			if item.Outer {
				access = "outer " + access
			}
			err := writeStrings(res, strconv.Itoa(q.ID), strconv.Itoa(n-1-i), item.String(), access, probe, filter)
			if err != nil {
				return err
			}
		}
		if q.Residual != nil {
			err := writeStrings(res, strconv.Itoa(q.ID), "", "", "constant", "", expr.Format(q.Residual))
			if err != nil {
				return err
			}
		}
		for _, s := range q.Subqueries {
			if err := write(s); err != nil {
				return err
			}
		}
		return nil
	}
	var err error
	switch s := plan.Stmt.(type) {
	case *Query:
		err = write(s)
	case *Insert:
		if s.Source != nil {
			err = write(s.Source)
		}
	case *Update:
		err = write(s.Scan)
	case *Delete:
		err = write(s.Scan)
	}
	if err != nil {
		res.Close()
		return nil, err
	}
	return &ExecuteResult{Result: res}, nil
}

func formatAll(es []expr.Expr) string {
	s := ""
	for i, e := range es {
		if i > 0 {
			s += " AND "
		}
		s += expr.Format(e)
	}
	return s
}

func writeStrings(res *result.SelectResult, vals ...string) error {
	for _, v := range vals {
		if v == "" {
			res.WriteNull()
			continue
		}
		if err := res.WriteValue(value.StringValue(v), result.TagNone); err != nil {
			res.DiscardRow()
			return err
		}
	}
	return res.EndRow()
}
