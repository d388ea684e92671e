package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerTagsServiceAndFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "order-service", "warn", true)

	log.Info("dropped")
	log.Warn("stock low", "product_id", 7)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "stock low", rec["msg"])
	assert.Equal(t, "order-service", rec["service"])
	assert.EqualValues(t, 7, rec["product_id"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
