package db

import (
	"database/sql"
	"strings"
	"testing"

	"github.com/chirst/relq/value"
	_ "modernc.org/sqlite"
)

// oracleSetup is valid in both relq and sqlite.
var oracleSetup = []string{
	"CREATE TABLE dept (id INTEGER PRIMARY KEY, name VARCHAR(20))",
	"CREATE TABLE emp (id INTEGER PRIMARY KEY, dept_id INTEGER, name VARCHAR(20), salary INTEGER, boss_id INTEGER)",
	"CREATE INDEX emp_dept ON emp (dept_id)",
	"INSERT INTO dept VALUES (1, 'eng'), (2, 'ops'), (3, 'sales'), (4, 'empty')",
	"INSERT INTO emp VALUES " +
		"(1, 1, 'ann', 120, NULL), (2, 1, 'bob', 100, 1), (3, 2, 'cat', 90, 1), " +
		"(4, 2, 'dan', 90, 3), (5, 3, 'eve', 70, 1), (6, NULL, 'fay', 50, NULL), " +
		"(7, 1, 'gus', NULL, 2)",
}

// oracleQueries only use features whose results sqlite renders the same way.
var oracleQueries = []string{
	"SELECT id, name FROM emp WHERE id = 3",
	"SELECT name FROM emp WHERE salary > 80 ORDER BY name",
	"SELECT name FROM emp WHERE salary IS NULL OR boss_id IS NULL ORDER BY id",
	"SELECT e.name, d.name FROM emp e, dept d WHERE d.id = e.dept_id ORDER BY e.id",
	"SELECT e.name, d.name FROM emp e LEFT JOIN dept d ON d.id = e.dept_id ORDER BY e.id",
	"SELECT d.name, e.name FROM dept d LEFT JOIN emp e ON e.dept_id = d.id ORDER BY d.id, e.id",
	"SELECT e.name, b.name FROM emp e JOIN emp b ON b.id = e.boss_id ORDER BY e.id",
	"SELECT dept_id, COUNT(*), SUM(salary), MAX(salary), MIN(name) FROM emp GROUP BY dept_id ORDER BY dept_id",
	"SELECT dept_id, COUNT(salary) FROM emp GROUP BY dept_id HAVING COUNT(*) > 1 ORDER BY dept_id DESC",
	"SELECT COUNT(*), COUNT(DISTINCT salary), COUNT(boss_id) FROM emp",
	"SELECT DISTINCT salary FROM emp ORDER BY salary",
	"SELECT name, salary FROM emp ORDER BY salary DESC, name LIMIT 3",
	"SELECT name FROM emp ORDER BY id LIMIT 2 OFFSET 3",
	"SELECT name FROM dept WHERE id IN (SELECT dept_id FROM emp) ORDER BY id",
	"SELECT name FROM dept WHERE NOT EXISTS (SELECT 1 FROM emp WHERE emp.dept_id = dept.id)",
	"SELECT name, (SELECT COUNT(*) FROM emp WHERE emp.dept_id = dept.id) FROM dept ORDER BY id",
	"SELECT name FROM emp WHERE name LIKE '%a%' ORDER BY name",
	"SELECT name FROM emp WHERE salary BETWEEN 70 AND 100 ORDER BY id",
	"SELECT id, CASE WHEN salary >= 100 THEN 'high' WHEN salary >= 70 THEN 'mid' ELSE 'low' END FROM emp ORDER BY id",
	"SELECT UPPER(name), LENGTH(name), COALESCE(boss_id, 0) FROM emp ORDER BY id",
	"SELECT id + dept_id * 2, salary / 7, salary % 7 FROM emp WHERE dept_id IS NOT NULL ORDER BY id",
}

func TestSQLiteOracle(t *testing.T) {
	db := mustCreateDB(t)
	oracle, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer oracle.Close()
	oracle.SetMaxOpenConns(1)
	for _, s := range oracleSetup {
		mustExecute(t, db, s)
		if _, err := oracle.Exec(s); err != nil {
			t.Fatalf("sqlite setup %s: %s", s, err)
		}
	}
	for _, q := range oracleQueries {
		t.Run(q, func(t *testing.T) {
			got := mustQuery(t, db, q)
			want := oracleRows(t, oracle, q)
			if len(got) != len(want) {
				t.Fatalf("expected %d rows got %d\nwant %v\ngot  %v", len(want), len(got), want, got)
			}
			for i := range want {
				if g, w := strings.Join(got[i], "|"), strings.Join(want[i], "|"); g != w {
					t.Fatalf("row %d expected %s got %s", i, w, g)
				}
			}
		})
	}
}

func oracleRows(t *testing.T, oracle *sql.DB, q string) [][]string {
	t.Helper()
	rows, err := oracle.Query(q)
	if err != nil {
		t.Fatalf("sqlite %s: %s", q, err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		t.Fatal(err)
	}
	ret := [][]string{}
	for rows.Next() {
		dest := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			t.Fatal(err)
		}
		row := make([]string, len(cols))
		for i, d := range dest {
			v, err := value.FromAny(d)
			if err != nil {
				t.Fatal(err)
			}
			row[i] = v.String()
		}
		ret = append(ret, row)
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}
	return ret
}
