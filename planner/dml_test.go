package planner

import (
	"testing"

	"github.com/chirst/relq/catalog"
	"github.com/chirst/relq/compiler"
	"github.com/chirst/relq/executor"
	"github.com/chirst/relq/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dmlCatalogFixture(t *testing.T) *catalog.Catalog {
	return newTestCatalog(t,
		"CREATE TABLE foo (id INTEGER PRIMARY KEY, name VARCHAR(10) DEFAULT 'x', qty INTEGER CHECK (qty >= 0))",
		"CREATE TABLE bar (id INTEGER PRIMARY KEY, name VARCHAR(10))",
	)
}

func TestInsertValues(t *testing.T) {
	c := dmlCatalogFixture(t)
	p := NewInsert(c, mustParse(t, "INSERT INTO foo (qty, id) VALUES (1, 2), (?, 3)").(*compiler.InsertStmt))
	qp, err := p.QueryPlan()
	require.NoError(t, err)
	assert.Equal(t, " ── insert into foo values(2)\n", qp.ToString())
	plan, err := p.ExecutionPlan()
	require.NoError(t, err)
	assert.Equal(t, 1, plan.Params)
	ins := plan.Stmt.(*executor.Insert)
	assert.Equal(t, []int{2, 0}, ins.Columns)
	require.Len(t, ins.Rows, 2)
	assert.Equal(t, "?1", expr.Format(ins.Rows[1][0]))
	require.Len(t, ins.Defaults, 3)
	assert.Nil(t, ins.Defaults[0])
	assert.Equal(t, "'x'", expr.Format(ins.Defaults[1]))
	require.Len(t, ins.Checks, 1)
	assert.Equal(t, "foo.qty >= 0", expr.Format(ins.Checks[0]))
}

func TestInsertSelect(t *testing.T) {
	c := dmlCatalogFixture(t)
	p := NewInsert(c, mustParse(t, "INSERT INTO bar SELECT id, name FROM foo WHERE qty > 1").(*compiler.InsertStmt))
	qp, err := p.QueryPlan()
	require.NoError(t, err)
	want := "" +
		" ── insert into bar\n" +
		"     └─ project(id, name)\n" +
		"         └─ scan table foo where foo.qty > 1\n"
	assert.Equal(t, want, qp.ToString())
}

func TestInsertErrors(t *testing.T) {
	c := dmlCatalogFixture(t)
	tests := []struct {
		sql  string
		want error
	}{
		{sql: "INSERT INTO nope VALUES (1)", want: ErrTableNotExist},
		{sql: "INSERT INTO relq_schema VALUES (1)", want: ErrReadOnlyTable},
		{sql: "INSERT INTO foo (id) VALUES (1, 2)", want: ErrValuesNotMatch},
		{sql: "INSERT INTO foo VALUES (1, 'a')", want: ErrValuesNotMatch},
		{sql: "INSERT INTO foo (id, nope) VALUES (1, 2)", want: ErrColumnNotExist},
		{sql: "INSERT INTO foo (id, id) VALUES (1, 2)", want: ErrDuplicateColumn},
		{sql: "INSERT INTO foo (id) VALUES (qty)", want: ErrColumnNotExist},
		{sql: "INSERT INTO bar SELECT id FROM foo", want: ErrValuesNotMatch},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			_, err := NewInsert(c, mustParse(t, tt.sql).(*compiler.InsertStmt)).ExecutionPlan()
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUpdate(t *testing.T) {
	c := dmlCatalogFixture(t)
	p := NewUpdate(c, mustParse(t, "UPDATE foo SET qty = qty + 1, name = ? WHERE id = 4").(*compiler.UpdateStmt))
	qp, err := p.QueryPlan()
	require.NoError(t, err)
	want := "" +
		" ── update foo set(qty, name)\n" +
		"     └─ search table foo using rowid (foo.id = 4)\n"
	assert.Equal(t, want, qp.ToString())
	plan, err := p.ExecutionPlan()
	require.NoError(t, err)
	upd := plan.Stmt.(*executor.Update)
	require.Len(t, upd.Set, 2)
	assert.Equal(t, 2, upd.Set[0].Col)
	assert.Equal(t, "(foo.qty + 1)", expr.Format(upd.Set[0].Value))
	assert.Equal(t, 1, upd.Set[1].Col)
	assert.Len(t, upd.Checks, 1)
}

func TestUpdateErrors(t *testing.T) {
	c := dmlCatalogFixture(t)
	tests := []struct {
		sql  string
		want error
	}{
		{sql: "UPDATE nope SET a = 1", want: ErrTableNotExist},
		{sql: "UPDATE relq_schema SET name = 'x'", want: ErrReadOnlyTable},
		{sql: "UPDATE foo SET nope = 1", want: ErrColumnNotExist},
		{sql: "UPDATE foo SET qty = 1, qty = 2", want: ErrDuplicateColumn},
		{sql: "UPDATE foo SET qty = 1 WHERE nope = 1", want: ErrColumnNotExist},
		{sql: "UPDATE foo SET qty = COUNT(*)", want: ErrAggregateNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			_, err := NewUpdate(c, mustParse(t, tt.sql).(*compiler.UpdateStmt)).ExecutionPlan()
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDelete(t *testing.T) {
	c := dmlCatalogFixture(t)
	p := NewDelete(c, mustParse(t, "DELETE FROM foo WHERE qty IN (SELECT id FROM bar)").(*compiler.DeleteStmt))
	qp, err := p.QueryPlan()
	require.NoError(t, err)
	want := "" +
		" ── delete from foo\n" +
		"     ├─ scan table foo where foo.qty IN (SUBQUERY 1)\n" +
		"     └─ subquery 1 project(id)\n" +
		"         └─ scan table bar\n"
	assert.Equal(t, want, qp.ToString())
	plan, err := p.ExecutionPlan()
	require.NoError(t, err)
	del := plan.Stmt.(*executor.Delete)
	assert.Len(t, del.Scan.Tables(), 2)

	_, err = NewDelete(c, mustParse(t, "DELETE FROM relq_schema").(*compiler.DeleteStmt)).ExecutionPlan()
	assert.ErrorIs(t, err, ErrReadOnlyTable)
}

func TestDropAndValidate(t *testing.T) {
	c := newTestCatalog(t,
		"CREATE TABLE foo (id INTEGER PRIMARY KEY, name TEXT UNIQUE)",
	)
	tests := []struct {
		sql   string
		noop  bool
		index string
		want  error
	}{
		{sql: "DROP TABLE foo"},
		{sql: "DROP INDEX foo_autoindex_1", index: "foo_autoindex_1"},
		{sql: "DROP TABLE IF EXISTS nope", noop: true},
		{sql: "DROP INDEX IF EXISTS nope", noop: true},
		{sql: "DROP TABLE nope", want: ErrTableNotExist},
		{sql: "DROP INDEX nope", want: ErrIndexNotExist},
		{sql: "DROP TABLE relq_schema", want: ErrReadOnlyTable},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			plan, err := NewDrop(c, mustParse(t, tt.sql).(*compiler.DropStmt)).ExecutionPlan()
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			require.NoError(t, err)
			drop := plan.Stmt.(*executor.Drop)
			assert.Equal(t, tt.noop, drop.Noop)
			if tt.index != "" {
				require.NotNil(t, drop.Index)
				assert.Equal(t, tt.index, drop.Index.Name)
				assert.Equal(t, "foo", drop.Table.Name)
			}
		})
	}

	plan, err := NewValidate(c, mustParse(t, "VALIDATE foo").(*compiler.ValidateStmt)).ExecutionPlan()
	require.NoError(t, err)
	assert.Equal(t, "foo", plan.Stmt.(*executor.Validate).Table.Name)
	_, err = NewValidate(c, mustParse(t, "VALIDATE nope").(*compiler.ValidateStmt)).ExecutionPlan()
	assert.ErrorIs(t, err, ErrTableNotExist)
}
