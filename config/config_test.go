package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "relq", cfg.DB.File)
	assert.False(t, cfg.DB.Memory)
	assert.Equal(t, 1000, cfg.DB.PageCacheSize)
	assert.Equal(t, 5*time.Second, cfg.DB.LockTimeout)
	assert.Equal(t, "", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Bench.Workers)
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "relq.yaml")
	require.NoError(t, os.WriteFile(p, []byte(contents), 0o644))
	return p
}

func TestLayering(t *testing.T) {
	p := writeConfig(t, ""+
		"db:\n"+
		"  file: from_file\n"+
		"  lock_timeout: 2s\n"+
		"log:\n"+
		"  level: debug\n"+
		"  format: json\n"+
		"bench:\n"+
		"  workers: 2\n")
	t.Setenv("RELQ_DB_LOCK_TIMEOUT", "750ms")
	t.Setenv("RELQ_BENCH_WORKERS", "3")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db", "", "")
	flags.Int("workers", 0, "")
	flags.Bool("memory", false, "")
	require.NoError(t, flags.Parse([]string{"--workers=8"}))

	cfg, err := Load(p, flags)
	require.NoError(t, err)
	assert.Equal(t, "from_file", cfg.DB.File, "an unset flag does not override the file")
	assert.Equal(t, 750*time.Millisecond, cfg.DB.LockTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8, cfg.Bench.Workers)
	assert.False(t, cfg.DB.Memory)

	db := cfg.Database(nil)
	assert.Equal(t, "from_file", db.Filename)
	assert.Equal(t, 750*time.Millisecond, db.LockTimeout)
	assert.Equal(t, "json", cfg.Logging().Format)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)

	p := writeConfig(t, "log:\n  format: xml\n")
	_, err = Load(p, nil)
	assert.ErrorIs(t, err, ErrInvalid)

	p = writeConfig(t, "db:\n  file: \"\"\n")
	_, err = Load(p, nil)
	assert.ErrorIs(t, err, ErrNoDatabase)

	p = writeConfig(t, "db:\n  file: \"\"\n  memory: true\n")
	cfg, err := Load(p, nil)
	require.NoError(t, err)
	assert.True(t, cfg.Database(nil).UseMemory)
}
