package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_ActionAndError(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "order-service", "debug")

	log.Action("order_created").Error("Failed to save order", errors.New("boom"), "order_number", "ORD_20260101_001")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "order-service", entry["service"])
	assert.Equal(t, "order_created", entry["action"])
	assert.Equal(t, "ORD_20260101_001", entry["order_number"])

	errEntry, ok := entry["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "boom", errEntry["msg"])
	assert.NotEmpty(t, errEntry["stack"])
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "svc", "warn")

	log.Info("hidden")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
