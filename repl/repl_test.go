package repl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chirst/relq/db"
)

func makeStr(s string) *string {
	return &s
}

func TestPrint(t *testing.T) {
	repl := New(nil)
	header := []string{"id", "name"}
	resultRows := [][]*string{
		{
			makeStr("1"),
			makeStr("gud name"),
		},
		{
			makeStr("2"),
			makeStr("gudder name"),
		},
		{
			makeStr("3"),
			makeStr("guddest name"),
		},
		{
			makeStr("4"),
			nil,
		},
	}
	result := repl.printRows(header, resultRows)
	e := "" +
		" id | name         \n" +
		"----+--------------\n" +
		" 1  | gud name     \n" +
		" 2  | gudder name  \n" +
		" 3  | guddest name \n" +
		" 4  | NULL         \n"
	if result != e {
		t.Errorf("\nwant\n%s\ngot\n%s\n", e, result)
	}
}

func TestPrintEmptyAndWide(t *testing.T) {
	repl := New(nil)
	result := repl.printRows([]string{"", "名前"}, nil)
	e := "" +
		" <anonymous> | 名前 \n" +
		"-------------+------\n" +
		"(0 rows)\n"
	if result != e {
		t.Errorf("\nwant\n%s\ngot\n%s\n", e, result)
	}
}

func newTestRepl(t *testing.T) (*repl, *bytes.Buffer) {
	t.Helper()
	d, err := db.New(db.Config{UseMemory: true})
	if err != nil {
		t.Fatalf("err creating db: %s", err)
	}
	t.Cleanup(func() { d.Close() })
	out := &bytes.Buffer{}
	return &repl{db: d, out: out}, out
}

func TestEval(t *testing.T) {
	r, out := newTestRepl(t)
	r.eval("CREATE TABLE foo (id INTEGER PRIMARY KEY, name TEXT); INSERT INTO foo (name) VALUES ('a'), (NULL);")
	if !strings.Contains(out.String(), "(2 rows affected)") {
		t.Fatalf("expected rows affected in %q", out.String())
	}
	out.Reset()
	r.eval("SELECT * FROM foo;")
	e := "" +
		" id | name \n" +
		"----+------\n" +
		" 1  | a    \n" +
		" 2  | NULL \n"
	if !strings.HasPrefix(out.String(), e) {
		t.Fatalf("\nwant prefix\n%s\ngot\n%s\n", e, out.String())
	}
	out.Reset()
	r.eval("SELECT nope FROM foo;")
	if !strings.HasPrefix(out.String(), "Err: column does not exist") {
		t.Fatalf("expected error got %q", out.String())
	}
}

func TestCommand(t *testing.T) {
	r, out := newTestRepl(t)
	r.eval("CREATE TABLE b (id INTEGER); CREATE TABLE a (id INTEGER);")
	out.Reset()
	if r.command(".tables") {
		t.Fatal("expected .tables to not exit")
	}
	if got := out.String(); got != "a\nb\n" {
		t.Fatalf("expected tables a and b got %q", got)
	}
	out.Reset()
	r.command(".nope")
	if got := out.String(); got != "Command not supported\n" {
		t.Fatalf("unexpected output %q", got)
	}
	if !r.command(".exit") {
		t.Fatal("expected .exit to exit")
	}
}
