package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, parseLevel("warning"))
	require.Equal(t, slog.LevelError, parseLevel(" error "))
	require.Equal(t, slog.LevelInfo, parseLevel(""))
	require.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestNewWithOptionsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOptions(&buf, Options{Level: "warn"})

	log.Info("dropped")
	log.Warn("kept", "date", "2024-05-08")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	require.Equal(t, "kept", record["msg"])
	require.Equal(t, "points-verts", record["service"])
	require.Equal(t, "2024-05-08", record["date"])
}

func TestNewWithOptionsText(t *testing.T) {
	var buf bytes.Buffer
	NewWithOptions(&buf, Options{Format: "TEXT"}).Info("walks fetched", "records", 3)

	out := buf.String()
	require.Contains(t, out, "msg=\"walks fetched\"")
	require.Contains(t, out, "service=points-verts")
	require.Contains(t, out, "records=3")
}
