package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecArgs(t *testing.T) {
	out := &bytes.Buffer{}
	err := run([]string{
		"--memory", "exec",
		"CREATE TABLE t (id INTEGER PRIMARY KEY, name VARCHAR(8))",
		"INSERT INTO t (name) VALUES ('a'), ('b')",
		"SELECT name FROM t WHERE id = 2",
	}, nil, out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "(2 rows affected)")
	assert.Contains(t, out.String(), " name \n------\n b    \n")
}

func TestExecStdinAndErrors(t *testing.T) {
	out := &bytes.Buffer{}
	in := strings.NewReader("SELECT 1 AS one; SELECT nope;")
	err := run([]string{"--memory", "exec"}, in, out)
	require.Error(t, err)
	assert.Contains(t, out.String(), " one \n-----\n 1   \n")
	assert.Contains(t, out.String(), "Err: ")
}

func TestExecFileAndConfig(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "script.sql")
	require.NoError(t, os.WriteFile(script, []byte("CREATE TABLE t (id INTEGER);\nINSERT INTO t VALUES (1);\n"), 0o644))
	cfg := filepath.Join(dir, "relq.yaml")
	dbFile := filepath.Join(dir, "data")
	require.NoError(t, os.WriteFile(cfg, []byte("db:\n  file: "+dbFile+"\n"), 0o644))

	require.NoError(t, run([]string{"--config", cfg, "exec", "-f", script}, nil, &bytes.Buffer{}))
	out := &bytes.Buffer{}
	require.NoError(t, run([]string{"--config", cfg, "exec", "SELECT COUNT(*) AS n FROM t"}, nil, out))
	assert.Contains(t, out.String(), " 1 ")
}

func TestBench(t *testing.T) {
	out := &bytes.Buffer{}
	err := run([]string{"--memory", "bench", "--workers", "3", "--queries", "200", "--rows", "50"}, nil, out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "queries: 200\n")
	assert.Contains(t, out.String(), "errors:  0\n")
}

func TestDispatchWaitsAfterSubmitError(t *testing.T) {
	full := errors.New("pool full")
	submitted := 0
	submit := func(task func()) error {
		if submitted == 3 {
			return full
		}
		submitted++
		go task()
		return nil
	}
	var done atomic.Int32
	err := dispatch(submit, 10, func(int) {
		time.Sleep(20 * time.Millisecond)
		done.Add(1)
	})
	require.ErrorIs(t, err, full)
	assert.Equal(t, int32(3), done.Load())
}
