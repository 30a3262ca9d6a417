package expr

import (
	"testing"

	"github.com/chirst/relq/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindSpecializes(t *testing.T) {
	assert.IsType(t, &LongCompare{}, mustBind(t, "id = 1"))
	assert.IsType(t, &LongCompare{}, mustBind(t, "id < age"))
	assert.IsType(t, &Compare{}, mustBind(t, "price = 1"))
	assert.IsType(t, &Compare{}, mustBind(t, "id = ?"))
	assert.IsType(t, &LongArith{}, mustBind(t, "id + age"))

	e := mustBind(t, "id + price")
	require.IsType(t, &Arith{}, e)
	assert.Equal(t, value.Double, e.(*Arith).Kind)

	e = mustBind(t, "name + 1")
	require.IsType(t, &Arith{}, e)
	assert.Equal(t, value.Decimal, e.(*Arith).Kind)
}

func TestBindFolds(t *testing.T) {
	e := mustBind(t, "1 + 2 * 3")
	require.IsType(t, &Const{}, e)
	assert.Equal(t, int64(7), e.(*Const).Val.Long())

	e = mustBind(t, "UPPER('a') || 'b'")
	require.IsType(t, &Const{}, e)
	assert.Equal(t, "Ab", e.(*Const).Val.Str())

	e = mustBind(t, "id IS NULL")
	require.IsType(t, &Const{}, e)
	assert.False(t, e.(*Const).Val.Bool())

	e = mustBind(t, "id IS NOT NULL")
	require.IsType(t, &Const{}, e)
	assert.True(t, e.(*Const).Val.Bool())

	// Errors are left for execution.
	assert.IsType(t, &LongArith{}, mustBind(t, "1 / 0"))
	assert.IsType(t, &Call{}, mustBind(t, "NOW()"))
}

func TestBindFlattensAnd(t *testing.T) {
	e := mustBind(t, "(age > 1 AND name = 'a') AND (id = 2 AND price > 0)")
	conj := Conjuncts(e)
	require.Len(t, conj, 4)
	// Right folded: each left operand is a leaf.
	for a, ok := e.(*And); ok; a, ok = a.Right.(*And) {
		_, nested := a.Left.(*And)
		assert.False(t, nested)
	}
	assert.Equal(t, "t.age > 1 AND t.name = 'a' AND t.id = 2 AND t.price > 0", Format(e))
	assert.Nil(t, AndAll(nil))
	assert.Same(t, conj[0], AndAll(conj[:1]))
}

func TestBindErrors(t *testing.T) {
	cases := []struct {
		sql string
		err error
	}{
		{sql: "age AND active", err: ErrTypeMismatch},
		{sql: "active OR 'x'", err: ErrTypeMismatch},
		{sql: "NOT age", err: ErrTypeMismatch},
		{sql: "active + 1", err: ErrTypeMismatch},
		{sql: "CASE WHEN age THEN 1 END", err: ErrTypeMismatch},
		{sql: "SUM(active)", err: ErrTypeMismatch},
		{sql: "SUM(MAX(age))", err: ErrAggregateNotAllowed},
		{sql: "name LIKE 'a!' ESCAPE '!'", err: ErrInvalidPattern},
	}
	for _, c := range cases {
		t.Run(c.sql, func(t *testing.T) {
			_, err := bindSQL(t, newTestScope(), c.sql)
			assert.ErrorIs(t, err, c.err)
		})
	}
}

func TestBindAggregates(t *testing.T) {
	s := newTestScope()
	e, err := bindSQL(t, s, "COUNT(*) + SUM(age) + AVG(age) + MAX(price)")
	require.NoError(t, err)
	require.Len(t, s.aggs, 4)
	assert.True(t, s.aggs[0].Star)
	assert.Equal(t, value.Long, s.aggs[0].Kind)
	assert.Equal(t, value.Long, s.aggs[1].Kind)
	assert.Equal(t, value.Double, s.aggs[2].Kind)
	assert.Equal(t, value.Double, s.aggs[3].Kind)
	assert.Equal(t, 3, s.aggs[3].Slot)
	assert.True(t, HasAggregate(e))
	assert.False(t, IsConstant(e))

	_, err = bindSQL(t, s, "COUNT(DISTINCT name)")
	require.NoError(t, err)
	assert.True(t, s.aggs[4].Distinct)
}

func TestBindLikePrecompiles(t *testing.T) {
	e := mustBind(t, "name LIKE 'a%'")
	require.IsType(t, &Like{}, e)
	assert.NotNil(t, e.(*Like).re)
	e = mustBind(t, "name LIKE name")
	require.IsType(t, &Like{}, e)
	assert.Nil(t, e.(*Like).re)
}

func TestRefs(t *testing.T) {
	e := mustBind(t, "t.id = u.t_id AND u.code = 'x'")
	assert.Equal(t, ItemSet(0).With(0).With(1), Refs(e))
	assert.True(t, Refs(mustBind(t, "1 = 1")).Empty())

	var s ItemSet
	s = s.With(3).With(5)
	assert.True(t, s.Has(3))
	assert.False(t, s.Has(4))
	assert.True(t, ItemSet(0).With(3).SubsetOf(s))
	assert.False(t, s.SubsetOf(ItemSet(0).With(3)))
	assert.Equal(t, ItemSet(0).With(5), s.Without(3))
}

func TestFormat(t *testing.T) {
	cases := map[string]string{
		"age BETWEEN 10 AND 20":        "t.age BETWEEN 10 AND 20",
		"name NOT LIKE 'it''s%'":       "t.name NOT LIKE 'it''s%'",
		"age IN (1, 2)":                "t.age IN (1, 2)",
		"COUNT(DISTINCT name)":         "COUNT(DISTINCT t.name)",
		"age IS NOT NULL":              "t.age IS NOT NULL",
		"CASE WHEN age > 1 THEN 1 END": "CASE WHEN t.age > 1 THEN 1 END",
		"(age + 1) * 2":                "((t.age + 1) * 2)",
		"NOT EXISTS (SELECT 1)":        "NOT EXISTS (SUBQUERY 1)",
		"LOWER(name) = ? OR age = ?":   "(LOWER(t.name) = ?1 OR t.age = ?2)",
	}
	for sql, want := range cases {
		assert.Equal(t, want, Format(mustBind(t, sql)), sql)
	}
}
