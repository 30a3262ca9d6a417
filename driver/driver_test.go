package driver_test

import (
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chirst/relq/driver"
	"github.com/chirst/relq/kv"
)

func mustOpenSqlDb(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open(driver.DriverName, driver.MemoryDSN)
	if err != nil {
		t.Fatalf("open err %s", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustExecute(t *testing.T, db *sql.DB, sql string, args ...any) sql.Result {
	t.Helper()
	res, err := db.Exec(sql, args...)
	if err != nil {
		t.Fatalf("failed to exec %s with err %s", sql, err)
	}
	return res
}

type foo struct {
	id   int
	name string
}

func toFoos(t *testing.T, rows *sql.Rows) []*foo {
	t.Helper()
	defer rows.Close()
	fs := make([]*foo, 0)
	for rows.Next() {
		f := &foo{}
		if err := rows.Scan(&f.id, &f.name); err != nil {
			t.Fatalf("scan err %s", err)
		}
		fs = append(fs, f)
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}
	return fs
}

func TestSchema1(t *testing.T) {
	db := mustOpenSqlDb(t)
	mustExecute(t, db, "CREATE TABLE foo (id INTEGER PRIMARY KEY, name TEXT)")
	mustExecute(t, db, "INSERT INTO foo (name) VALUES ('one')")

	t.Run("TestQuery", func(t *testing.T) {
		rows, err := db.Query("SELECT * FROM foo")
		if err != nil {
			t.Fatalf("query err %s", err)
		}
		expectCount := 1
		fs := toFoos(t, rows)
		if d := len(fs); d != expectCount {
			t.Fatalf("expected %d got %d", expectCount, d)
		}
		if fs[0].name != "one" {
			t.Fatalf("expected one got %s", fs[0].name)
		}
		if fs[0].id != 1 {
			t.Fatalf("expected %d got %d", 1, fs[0].id)
		}
	})

	t.Run("TestQueryWithParam", func(t *testing.T) {
		rows, err := db.Query("SELECT * FROM foo WHERE id = ?", 1)
		if err != nil {
			t.Fatalf("query err %s", err)
		}
		fs := toFoos(t, rows)
		expectCount := 1
		if d := len(fs); d != expectCount {
			t.Fatalf("expected %d got %d", expectCount, d)
		}
	})

	t.Run("TestQueryWithParams", func(t *testing.T) {
		rows, err := db.Query("SELECT * FROM foo WHERE ? + ? = 3", 2, 1)
		if err != nil {
			t.Fatalf("query err %s", err)
		}
		fs := toFoos(t, rows)
		expectCount := 1
		if d := len(fs); d != expectCount {
			t.Fatalf("expected %d got %d", expectCount, d)
		}
	})

	t.Run("TestWrongParamCount", func(t *testing.T) {
		_, err := db.Query("SELECT * FROM foo WHERE id = ?", 1, 2)
		if err == nil {
			t.Fatal("expected an error for too many arguments")
		}
	})
}

func TestInsertWithParam(t *testing.T) {
	db := mustOpenSqlDb(t)
	mustExecute(t, db, "CREATE TABLE foo (id INTEGER PRIMARY KEY, name TEXT)")
	param := "'w'); DROP TABLE foo;--"
	res := mustExecute(t, db, "INSERT INTO foo (name) VALUES (?)", param)
	if id, _ := res.LastInsertId(); id != 1 {
		t.Fatalf("expected last insert id 1 got %d", id)
	}
	rows, err := db.Query("SELECT * FROM foo")
	if err != nil {
		t.Fatalf("query err %s", err)
	}
	expectCount := 1
	fs := toFoos(t, rows)
	if d := len(fs); d != expectCount {
		t.Fatalf("expected %d got %d", expectCount, d)
	}
	if fs[0].name != param {
		t.Fatalf("expected %s got %s", param, fs[0].name)
	}
	if fs[0].id != 1 {
		t.Fatalf("expected %d got %d", 1, fs[0].id)
	}
}

func TestPrimaryKeyInsertWithParam(t *testing.T) {
	db := mustOpenSqlDb(t)
	mustExecute(t, db, "CREATE TABLE foo (id INTEGER PRIMARY KEY, name TEXT)")
	tests := []struct {
		param any
		want  int
	}{
		{param: 3, want: 3},
		{param: int64(4), want: 4},
		{param: "5", want: 5},
		{param: nil, want: 6},
	}
	for _, tt := range tests {
		mustExecute(t, db, "INSERT INTO foo (id, name) VALUES (?, 'asdf')", tt.param)
		var id int
		if err := db.QueryRow("SELECT MAX(id) FROM foo").Scan(&id); err != nil {
			t.Fatal(err)
		}
		if id != tt.want {
			t.Fatalf("expected %d got %d", tt.want, id)
		}
	}
	_, err := db.Exec("INSERT INTO foo (id, name) VALUES (?, 'asdf')", 3)
	if !errors.Is(err, kv.ErrUniqueViolation) {
		t.Fatalf("expected %v got %v", kv.ErrUniqueViolation, err)
	}
}

func TestRowsAffected(t *testing.T) {
	db := mustOpenSqlDb(t)
	mustExecute(t, db, "CREATE TABLE foo (id INTEGER PRIMARY KEY, qty INTEGER)")
	mustExecute(t, db, "INSERT INTO foo (qty) VALUES (1), (2), (3)")
	res := mustExecute(t, db, "UPDATE foo SET qty = qty * 10 WHERE qty > ?", 1)
	if n, _ := res.RowsAffected(); n != 2 {
		t.Fatalf("expected 2 rows affected got %d", n)
	}
	res = mustExecute(t, db, "DELETE FROM foo")
	if n, _ := res.RowsAffected(); n != 3 {
		t.Fatalf("expected 3 rows affected got %d", n)
	}
}

func TestTypedValues(t *testing.T) {
	db := mustOpenSqlDb(t)
	mustExecute(t, db, "CREATE TABLE t (id INTEGER PRIMARY KEY, d DOUBLE, b BOOLEAN, at TIMESTAMP, bin VARBINARY(8), s VARCHAR(8))")
	at := time.Date(2023, 5, 6, 7, 8, 9, 0, time.UTC)
	mustExecute(t, db, "INSERT INTO t VALUES (1, ?, ?, ?, ?, NULL)", 1.5, true, at, []byte{1, 2})
	var (
		d   float64
		b   bool
		got time.Time
		bin []byte
		s   sql.NullString
	)
	err := db.QueryRow("SELECT d, b, at, bin, s FROM t").Scan(&d, &b, &got, &bin, &s)
	if err != nil {
		t.Fatal(err)
	}
	if d != 1.5 || !b || !got.Equal(at) || string(bin) != "\x01\x02" || s.Valid {
		t.Fatalf("unexpected values %v %v %v %v %v", d, b, got, bin, s)
	}
}

func TestExplainQueryPlanRows(t *testing.T) {
	db := mustOpenSqlDb(t)
	mustExecute(t, db, "CREATE TABLE foo (id INTEGER PRIMARY KEY, name TEXT)")
	rows, err := db.Query("EXPLAIN QUERY PLAN SELECT name FROM foo WHERE id = 1")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			t.Fatal(err)
		}
		lines = append(lines, line)
	}
	if len(lines) != 2 || !strings.Contains(lines[1], "search table foo using rowid") {
		t.Fatalf("unexpected plan %q", lines)
	}
}

func TestTransactionsNotSupported(t *testing.T) {
	db := mustOpenSqlDb(t)
	if _, err := db.Begin(); err == nil {
		t.Fatal("expected begin to fail")
	}
}

func TestConnectionsSharePool(t *testing.T) {
	db := mustOpenSqlDb(t)
	db.SetMaxOpenConns(4)
	mustExecute(t, db, "CREATE TABLE foo (id INTEGER PRIMARY KEY, name TEXT)")
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				if _, err := db.Exec("INSERT INTO foo (name) VALUES ('x')"); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM foo").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 100 {
		t.Fatalf("expected 100 got %d", n)
	}
}
