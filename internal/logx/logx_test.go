package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in       string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, ParseLevel(tc.in), "level %q", tc.in)
	}
}

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Service: "proctor-sync", Version: "1", Env: "prod", Level: "info"})

	logger.Debug("hidden")
	logger.Info("hello", "k", "v")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "proctor-sync", line["service"])
	assert.Equal(t, "v", line["k"])
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Format: "text", Env: "prod"})

	assert.Equal(t, slog.Default(), FromContext(context.Background()))

	ctx := WithRunID(WithContext(context.Background(), logger), "01HRUN")
	FromContext(ctx).Info("batch")

	assert.Contains(t, buf.String(), "run_id=01HRUN")
}
