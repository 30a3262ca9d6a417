package expr

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/chirst/relq/catalog"
	"github.com/chirst/relq/compiler"
	"github.com/chirst/relq/value"
	"github.com/stretchr/testify/require"
)

// testScope binds names against a single table t at item 0 and an optional
// table u at item 1.
type testScope struct {
	tables []*catalog.Table
	aggs   []*Aggregate
	subs   int
}

func newTestScope() *testScope {
	return &testScope{tables: []*catalog.Table{
		{
			Name: "t",
			Columns: []catalog.Column{
				{Name: "id", Type: catalog.TypeInteger, NotNull: true, PrimaryKey: true},
				{Name: "name", Type: catalog.TypeVarchar, Size: 20},
				{Name: "age", Type: catalog.TypeInteger},
				{Name: "price", Type: catalog.TypeDouble},
				{Name: "active", Type: catalog.TypeBoolean},
			},
			RowIDColumn: 0,
		},
		{
			Name: "u",
			Columns: []catalog.Column{
				{Name: "id", Type: catalog.TypeInteger},
				{Name: "t_id", Type: catalog.TypeInteger},
				{Name: "code", Type: catalog.TypeVarchar},
			},
			RowIDColumn: -1,
		},
	}}
}

func (s *testScope) Column(table, name string) (Expr, error) {
	for i, t := range s.tables {
		if table != "" && !strings.EqualFold(table, t.Name) {
			continue
		}
		if c := t.ColumnIndex(name); c >= 0 {
			col := t.Columns[c]
			return &Column{Item: i, Col: c, Table: t.Name, Name: col.Name, Type: col.Type, NotNull: col.NotNull}, nil
		}
	}
	return nil, fmt.Errorf("no such column: %s", name)
}

func (s *testScope) Subquery(*compiler.SelectStmt) (*Subquery, error) {
	s.subs++
	return &Subquery{ID: s.subs, Columns: 1, Kind: value.Long}, nil
}

func (s *testScope) Aggregate(a *Aggregate) (*Aggregate, error) {
	a.Slot = len(s.aggs)
	s.aggs = append(s.aggs, a)
	return a, nil
}

// testEnv is a single row per item.
type testEnv struct {
	rows   [][]value.Value
	params []value.Value
	aggs   []value.Value
	sub    []value.Value
	now    time.Time
}

func (e *testEnv) Column(item, col int) value.Value        { return e.rows[item][col] }
func (e *testEnv) OuterColumn(_, item, col int) value.Value { return e.rows[item][col] }
func (e *testEnv) Aggregate(slot int) value.Value           { return e.aggs[slot] }
func (e *testEnv) Now() time.Time                           { return e.now }

func (e *testEnv) Param(index int) (value.Value, error) {
	if index < 1 || index > len(e.params) {
		return value.NullValue(), ErrParamNotSet
	}
	return e.params[index-1], nil
}

func (e *testEnv) Subquery(_ *Subquery, limit int) ([]value.Value, error) {
	if limit > 0 && len(e.sub) > limit {
		return e.sub[:limit], nil
	}
	return e.sub, nil
}

func tRow(id int64, name any, age any) []value.Value {
	row := []value.Value{value.LongValue(id), value.NullValue(), value.NullValue(), value.DoubleValue(1.5), value.BoolValue(true)}
	if s, ok := name.(string); ok {
		row[1] = value.StringValue(s)
	}
	if a, ok := age.(int); ok {
		row[2] = value.LongValue(int64(a))
	}
	return row
}

// bindSQL parses the select list expression of "SELECT <sql> FROM t".
func bindSQL(t *testing.T, s Scope, sql string) (Expr, error) {
	t.Helper()
	stmt, err := compiler.Parse("SELECT " + sql + " FROM t")
	require.NoError(t, err)
	sel := stmt.(*compiler.SelectStmt)
	return Bind(s, sel.ResultColumns[0].Expression)
}

func mustBind(t *testing.T, sql string) Expr {
	t.Helper()
	e, err := bindSQL(t, newTestScope(), sql)
	require.NoError(t, err)
	return e
}
