package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(Config{Level: "debug", Format: "json", Output: &buf})
		l.Debug("hello", "block", 7)
		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "hello", rec["msg"])
		assert.Equal(t, float64(7), rec["block"])
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(Config{Level: "WARN", Output: &buf})
		l.Info("skipped")
		assert.Empty(t, buf.String())
		l.Warn("kept")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("discard", func(t *testing.T) {
		assert.False(t, New(Config{}).Enabled(t.Context(), slog.LevelError))
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nope"))
}
