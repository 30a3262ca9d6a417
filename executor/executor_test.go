package executor_test

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/chirst/relq/compiler"
	"github.com/chirst/relq/executor"
	"github.com/chirst/relq/expr"
	"github.com/chirst/relq/kv"
	"github.com/chirst/relq/planner"
	"github.com/chirst/relq/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t     *testing.T
	store *kv.KV
	exec  *executor.Executor
}

func newHarness(t *testing.T, sql ...string) *harness {
	t.Helper()
	store, err := kv.New(kv.Config{UseMemory: true, LockTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	h := &harness{
		t:     t,
		store: store,
		exec:  executor.New(store, slog.New(slog.DiscardHandler)),
	}
	for _, s := range sql {
		h.mustRun(s)
	}
	return h
}

func (h *harness) plan(sql string) (*executor.Plan, error) {
	stmt, err := compiler.Parse(sql)
	if err != nil {
		return nil, err
	}
	c := h.store.GetCatalog()
	switch s := stmt.(type) {
	case *compiler.SelectStmt:
		return planner.NewSelect(c, s).ExecutionPlan()
	case *compiler.InsertStmt:
		return planner.NewInsert(c, s).ExecutionPlan()
	case *compiler.UpdateStmt:
		return planner.NewUpdate(c, s).ExecutionPlan()
	case *compiler.DeleteStmt:
		return planner.NewDelete(c, s).ExecutionPlan()
	case *compiler.CreateStmt:
		return planner.NewCreate(c, s).ExecutionPlan()
	case *compiler.CreateIndexStmt:
		return planner.NewCreateIndex(c, s).ExecutionPlan()
	case *compiler.DropStmt:
		return planner.NewDrop(c, s).ExecutionPlan()
	case *compiler.ValidateStmt:
		return planner.NewValidate(c, s).ExecutionPlan()
	}
	return nil, fmt.Errorf("unhandled statement %T", stmt)
}

func (h *harness) run(sql string, params ...value.Value) *executor.ExecuteResult {
	h.t.Helper()
	p, err := h.plan(sql)
	require.NoError(h.t, err, sql)
	return h.exec.Execute(p, params)
}

func (h *harness) mustRun(sql string, params ...value.Value) *executor.ExecuteResult {
	h.t.Helper()
	res := h.run(sql, params...)
	require.NoError(h.t, res.Err, sql)
	return res
}

// query returns the rows of a select with every value rendered as text and
// the columns joined by "|".
func (h *harness) query(sql string, params ...value.Value) []string {
	h.t.Helper()
	res := h.mustRun(sql, params...)
	require.NotNil(h.t, res.Result, sql)
	defer res.Result.Close()
	ret := []string{}
	for i := 0; i < res.Result.RowCount(); i++ {
		row, err := res.Result.Row(i)
		require.NoError(h.t, err)
		parts := make([]string, len(row))
		for j, v := range row {
			parts[j] = v.String()
		}
		ret = append(ret, strings.Join(parts, "|"))
	}
	return ret
}

func TestSelectByPrimaryKey(t *testing.T) {
	h := newHarness(t,
		"CREATE TABLE t (id INTEGER PRIMARY KEY, name VARCHAR(20))",
		"INSERT INTO t (id, name) VALUES (1, 'a'), (2, 'b')",
	)
	assert.Equal(t, []string{"b"}, h.query("SELECT name FROM t WHERE id = 2"))
	assert.Equal(t, []string{"a"}, h.query("SELECT name FROM t WHERE id = ?", value.LongValue(1)))
	assert.Empty(t, h.query("SELECT name FROM t WHERE id = 3"))
}

func TestInsertResult(t *testing.T) {
	h := newHarness(t, "CREATE TABLE t (id IDENTITY, name VARCHAR(20) DEFAULT 'anon')")
	res := h.mustRun("INSERT INTO t (name) VALUES ('a'), ('b')")
	assert.Equal(t, int64(2), res.RowsAffected)
	assert.Equal(t, int64(2), res.LastInsertID)
	h.mustRun("INSERT INTO t (id) VALUES (10)")
	assert.Equal(t, []string{"1|a", "2|b", "10|anon"}, h.query("SELECT id, name FROM t ORDER BY id"))
}

func TestInsertConstraints(t *testing.T) {
	h := newHarness(t,
		"CREATE TABLE t (id INTEGER PRIMARY KEY, code VARCHAR(5) NOT NULL UNIQUE, qty INTEGER CHECK (qty > 0))",
		"INSERT INTO t VALUES (1, 'x', 5)",
	)
	tests := []struct {
		sql  string
		want error
	}{
		{sql: "INSERT INTO t VALUES (1, 'y', 5)", want: kv.ErrUniqueViolation},
		{sql: "INSERT INTO t VALUES (2, 'x', 5)", want: kv.ErrUniqueViolation},
		{sql: "INSERT INTO t VALUES (2, NULL, 5)", want: kv.ErrNotNullViolation},
		{sql: "INSERT INTO t VALUES (2, 'y', 0)", want: executor.ErrCheckViolation},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			res := h.run(tt.sql)
			assert.ErrorIs(t, res.Err, tt.want)
		})
	}
	// A NULL check passes.
	h.mustRun("INSERT INTO t VALUES (2, 'y', NULL)")
	assert.Equal(t, []string{"1|x|5", "2|y|NULL"}, h.query("SELECT * FROM t"))
}

func TestGroupBy(t *testing.T) {
	h := newHarness(t,
		"CREATE TABLE sales (id INTEGER PRIMARY KEY, region VARCHAR(10), amount INTEGER)",
		"INSERT INTO sales VALUES (1, 'east', 10), (2, 'west', 5), (3, 'east', 20), (4, NULL, 1), (5, NULL, 2)",
	)
	got := h.query("SELECT region, COUNT(*), SUM(amount), MAX(amount) FROM sales GROUP BY region ORDER BY region")
	assert.Equal(t, []string{"NULL|2|3|2", "east|2|30|20", "west|1|5|5"}, got)

	got = h.query("SELECT region FROM sales GROUP BY region HAVING SUM(amount) > 4 ORDER BY 1 DESC")
	assert.Equal(t, []string{"west", "east"}, got)

	assert.Equal(t, []string{"5|38"}, h.query("SELECT COUNT(*), SUM(amount) FROM sales"))
	assert.Equal(t, []string{"0|NULL"}, h.query("SELECT COUNT(*), SUM(amount) FROM sales WHERE id > 99"))
	assert.Equal(t, []string{"2"}, h.query("SELECT COUNT(DISTINCT region) FROM sales"))
}

func TestGroupItemsReused(t *testing.T) {
	h := newHarness(t,
		"CREATE TABLE a (id INTEGER PRIMARY KEY, name VARCHAR(10))",
		"CREATE TABLE b (id INTEGER PRIMARY KEY, a_id INTEGER, qty INTEGER)",
		"INSERT INTO a VALUES (1, 'one'), (2, 'two')",
		"INSERT INTO b VALUES (10, 1, 3), (11, 1, 4)",
	)
	// Buckets released by one execution must not carry rows or accumulators
	// into the next.
	for range 3 {
		got := h.query("SELECT a.name, MAX(b.qty), COUNT(b.id) FROM a LEFT JOIN b ON b.a_id = a.id GROUP BY a.name ORDER BY a.name")
		assert.Equal(t, []string{"one|4|2", "two|NULL|0"}, got)
		got = h.query("SELECT COUNT(DISTINCT a_id), SUM(qty) FROM b")
		assert.Equal(t, []string{"1|7"}, got)
	}
}

func TestSumOfTextIsDecimal(t *testing.T) {
	h := newHarness(t,
		"CREATE TABLE d (id INTEGER PRIMARY KEY, n VARCHAR(10))",
		"INSERT INTO d VALUES (1, '5'), (2, '7'), (3, '1')",
	)
	for _, sql := range []string{
		"SELECT SUM(n) FROM d WHERE id = 1",
		"SELECT SUM(n) FROM d",
	} {
		res := h.mustRun(sql)
		row, err := res.Result.Row(0)
		require.NoError(t, err)
		assert.Equal(t, value.Decimal, row[0].Kind(), sql)
		res.Result.Close()
	}
	assert.Equal(t, []string{"5"}, h.query("SELECT SUM(n) FROM d WHERE id = 1"))
	assert.Equal(t, []string{"13"}, h.query("SELECT SUM(n) FROM d"))
}

func TestLongDecimalColumn(t *testing.T) {
	h := newHarness(t,
		"CREATE TABLE d (id INTEGER PRIMARY KEY, n VARCHAR(400))",
		"INSERT INTO d VALUES (1, '1e300'), (2, '5')",
	)
	long := "1" + strings.Repeat("0", 299) + "1"
	got := h.query("SELECT n + 1, 'x', id FROM d ORDER BY 3 DESC")
	assert.Equal(t, []string{"6|x|2", long + "|x|1"}, got)
	assert.Equal(t, []string{long + "|after"}, h.query("SELECT '1e300' + 1, 'after'"))
}

func TestLeftJoin(t *testing.T) {
	h := newHarness(t,
		"CREATE TABLE a (id INTEGER PRIMARY KEY, name VARCHAR(10))",
		"CREATE TABLE b (id INTEGER PRIMARY KEY, a_id INTEGER, tag VARCHAR(10))",
		"INSERT INTO a VALUES (1, 'one'), (2, 'two'), (3, 'three')",
		"INSERT INTO b VALUES (10, 1, 'x'), (11, 1, 'y'), (12, 3, 'z')",
	)
	got := h.query("SELECT a.name, b.tag FROM a LEFT JOIN b ON b.a_id = a.id ORDER BY a.id, b.tag")
	assert.Equal(t, []string{"one|x", "one|y", "two|NULL", "three|z"}, got)

	got = h.query("SELECT a.name FROM a LEFT JOIN b ON b.a_id = a.id WHERE b.tag IS NULL")
	assert.Equal(t, []string{"two"}, got)

	got = h.query("SELECT a.name, b.tag FROM a JOIN b ON b.a_id = a.id AND b.tag <> 'x' ORDER BY b.tag")
	assert.Equal(t, []string{"one|y", "three|z"}, got)
}

func TestJoinUsesPrimaryKey(t *testing.T) {
	h := newHarness(t,
		"CREATE TABLE p (id INTEGER PRIMARY KEY, name VARCHAR(10))",
		"CREATE TABLE c (id INTEGER PRIMARY KEY, p_id INTEGER)",
		"INSERT INTO p VALUES (1, 'a'), (2, 'b')",
		"INSERT INTO c VALUES (1, 2), (2, 2), (3, 1)",
	)
	got := h.query("SELECT c.id, p.name FROM c, p WHERE p.id = c.p_id ORDER BY c.id")
	assert.Equal(t, []string{"1|b", "2|b", "3|a"}, got)

	lanes := h.query("EXPLAIN SELECT c.id, p.name FROM c, p WHERE p.id = c.p_id")
	require.Len(t, lanes, 2)
	assert.Contains(t, strings.Join(lanes, "\n"), "rowid")
}

func TestDistinctOrderLimit(t *testing.T) {
	h := newHarness(t,
		"CREATE TABLE t (id INTEGER PRIMARY KEY, v INTEGER)",
		"INSERT INTO t VALUES (1, 3), (2, 1), (3, 3), (4, 2), (5, 1)",
	)
	assert.Equal(t, []string{"1", "2", "3"}, h.query("SELECT DISTINCT v FROM t ORDER BY v"))
	assert.Equal(t, []string{"3", "2"}, h.query("SELECT DISTINCT v FROM t ORDER BY v DESC LIMIT 2"))
	assert.Equal(t, []string{"2", "3"}, h.query("SELECT id FROM t ORDER BY id LIMIT 2 OFFSET 1"))
	assert.Equal(t, []string{"5", "2"}, h.query("SELECT id FROM t ORDER BY v, id DESC LIMIT ?", value.LongValue(2)))
	assert.Len(t, h.query("SELECT id FROM t LIMIT 3"), 3)
	assert.Empty(t, h.query("SELECT id FROM t LIMIT 0"))

	res := h.run("SELECT id FROM t LIMIT ?", value.LongValue(-1))
	assert.ErrorIs(t, res.Err, executor.ErrInvalidLimit)
}

func TestSubqueries(t *testing.T) {
	h := newHarness(t,
		"CREATE TABLE a (id INTEGER PRIMARY KEY, x INTEGER)",
		"CREATE TABLE b (id INTEGER PRIMARY KEY, x INTEGER)",
		"INSERT INTO a VALUES (1, 10), (2, 20), (3, 30)",
		"INSERT INTO b VALUES (1, 20), (2, 30), (3, 30)",
	)
	assert.Equal(t, []string{"2", "3"}, h.query("SELECT id FROM a WHERE x IN (SELECT x FROM b) ORDER BY id"))
	assert.Equal(t, []string{"1"}, h.query("SELECT id FROM a WHERE NOT EXISTS (SELECT 1 FROM b WHERE b.x = a.x)"))
	assert.Equal(t, []string{"1|3", "2|3", "3|3"}, h.query("SELECT id, (SELECT MAX(id) FROM b) FROM a ORDER BY id"))
	assert.Equal(t, []string{"1|0", "2|1", "3|2"}, h.query("SELECT id, (SELECT COUNT(*) FROM b WHERE b.x = a.x) FROM a ORDER BY id"))

	res := h.run("SELECT (SELECT x FROM b) FROM a")
	assert.ErrorIs(t, res.Err, expr.ErrSubqueryRows)
}

func TestUpdateDelete(t *testing.T) {
	h := newHarness(t,
		"CREATE TABLE t (id INTEGER PRIMARY KEY, n INTEGER UNIQUE)",
		"INSERT INTO t VALUES (1, 1), (2, 2), (3, 3)",
	)
	// Every new value is computed before any row changes so shifting a unique
	// column does not collide with itself.
	res := h.mustRun("UPDATE t SET n = n + 1")
	assert.Equal(t, int64(3), res.RowsAffected)
	assert.Equal(t, []string{"1|2", "2|3", "3|4"}, h.query("SELECT * FROM t"))

	res = h.mustRun("UPDATE t SET id = id + 10 WHERE id = 2")
	assert.Equal(t, int64(1), res.RowsAffected)
	assert.Equal(t, []string{"1|2", "3|4", "12|3"}, h.query("SELECT * FROM t ORDER BY id"))

	res = h.run("UPDATE t SET n = 2 WHERE id = 3")
	assert.ErrorIs(t, res.Err, kv.ErrUniqueViolation)

	res = h.mustRun("DELETE FROM t WHERE n > 2")
	assert.Equal(t, int64(2), res.RowsAffected)
	assert.Equal(t, []string{"1|2"}, h.query("SELECT * FROM t"))

	h.mustRun("INSERT INTO t VALUES (5, 4)")
	assert.Equal(t, []string{"5"}, h.query("SELECT id FROM t WHERE n = 4"))
}

func TestInsertSelect(t *testing.T) {
	h := newHarness(t,
		"CREATE TABLE t (id IDENTITY, v INTEGER)",
		"INSERT INTO t (v) VALUES (1), (2)",
	)
	res := h.mustRun("INSERT INTO t (v) SELECT v * 10 FROM t")
	assert.Equal(t, int64(2), res.RowsAffected)
	assert.Equal(t, []string{"1", "2", "10", "20"}, h.query("SELECT v FROM t ORDER BY v"))
}

func TestDDL(t *testing.T) {
	h := newHarness(t,
		"CREATE TABLE t (id INTEGER PRIMARY KEY, name VARCHAR(10))",
		"INSERT INTO t VALUES (1, 'a'), (2, 'a')",
	)
	h.mustRun("CREATE TABLE IF NOT EXISTS t (x INTEGER)")

	res := h.run("CREATE UNIQUE INDEX t_name ON t (name)")
	assert.ErrorIs(t, res.Err, kv.ErrUniqueViolation)

	h.mustRun("CREATE INDEX t_name ON t (name)")
	idx, ok := h.store.GetCatalog().Index("t_name")
	require.True(t, ok)
	assert.Equal(t, []int{1}, idx.Columns)
	assert.Equal(t, []string{"1", "2"}, h.query("SELECT id FROM t WHERE name = 'a' ORDER BY id"))

	v := h.mustRun("VALIDATE t")
	assert.Equal(t, "table t ok: 2 rows, 1 indexes", v.Text)

	h.mustRun("DROP INDEX t_name")
	_, ok = h.store.GetCatalog().Index("t_name")
	assert.False(t, ok)

	h.mustRun("DROP TABLE t")
	_, err := h.plan("SELECT * FROM t")
	assert.ErrorIs(t, err, planner.ErrTableNotExist)
	h.mustRun("DROP TABLE IF EXISTS t")
}

func TestVersionChanged(t *testing.T) {
	h := newHarness(t, "CREATE TABLE t (id INTEGER PRIMARY KEY)")
	stale, err := h.plan("SELECT id FROM t")
	require.NoError(t, err)
	h.mustRun("CREATE TABLE u (id INTEGER PRIMARY KEY)")
	res := h.exec.Execute(stale, nil)
	assert.ErrorIs(t, res.Err, executor.ErrVersionChanged)
}

func TestParamCount(t *testing.T) {
	h := newHarness(t, "CREATE TABLE t (id INTEGER PRIMARY KEY)")
	res := h.run("SELECT id FROM t WHERE id = ?")
	assert.ErrorIs(t, res.Err, executor.ErrParamCount)
}

func TestExplain(t *testing.T) {
	h := newHarness(t,
		"CREATE TABLE a (id INTEGER PRIMARY KEY, x INTEGER)",
		"CREATE TABLE b (id INTEGER PRIMARY KEY, x INTEGER)",
	)
	res := h.mustRun("EXPLAIN SELECT * FROM a LEFT JOIN b ON b.x = a.x WHERE a.id > 1")
	require.NotNil(t, res.Result)
	defer res.Result.Close()
	assert.Equal(t, []string{"query", "lane", "table", "access", "probe", "filter"}, res.Result.Columns())
	assert.Equal(t, 2, res.Result.RowCount())
	res.Result.SetRow(0)
	access, err := res.Result.String(3)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(access, "outer "), access)
}
