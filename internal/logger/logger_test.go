package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, Level("DEBUG"))
	assert.Equal(t, slog.LevelWarn, Level("warn"))
	assert.Equal(t, slog.LevelError, Level("error"))
	assert.Equal(t, slog.LevelInfo, Level(""))
	assert.Equal(t, slog.LevelInfo, Level("verbose"))
}

func TestConfigureJSON(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	log := Configure(&buf, "warn", "json")
	log.Info("dropped")
	log.Warn("surface_init_failed", "engine", "raster")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "surface_init_failed", rec["msg"])
	assert.Equal(t, "raster", rec["engine"])
	assert.Same(t, log, L())
}

func TestConfigureText(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	Configure(&buf, "debug", "text").Debug("surface_ready", "points", 3)
	assert.Contains(t, buf.String(), "msg=surface_ready points=3")
}
