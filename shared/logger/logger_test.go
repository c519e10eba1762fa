package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{
		Level:  "info",
		Format: "json",
		Writer: &buf,
	})

	log.Info("job settled", slog.String("job_id", "abc123"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "job settled", entry["msg"])
	assert.Equal(t, "abc123", entry["job_id"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{
		Level:  "warn",
		Format: "json",
		Writer: &buf,
	})

	log.Info("dropped")
	assert.Zero(t, buf.Len())

	log.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{
		Level:  "debug",
		Format: "console",
		Writer: &buf,
	})

	log.Debug("funds locked")
	assert.Contains(t, buf.String(), "funds locked")
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{
		Level:  "info",
		Format: "json",
		Writer: &buf,
	})

	log.With(slog.String("service", "escrow")).Info("started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "escrow", entry["service"])
}

func TestNewDefault(t *testing.T) {
	log := NewDefault()
	require.NotNil(t, log)
	assert.NotNil(t, log.Logger)
}
