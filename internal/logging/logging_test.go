package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLogger_WritesKeyValues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	logger.Info(context.Background(), "token revoked", "principal_id", "p1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "token revoked", rec["msg"])
	assert.Equal(t, "p1", rec["principal_id"])
}

func TestSlogLogger_WithChild(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	child := logger.With("module", "gate")
	child.Warn(context.Background(), "rejected")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "gate", rec["module"])
}

func TestZerologLogger_WritesKeyValues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf))

	logger.With("module", "sweep").Error(context.Background(), "sweep failed", "attempt", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "sweep failed", rec["message"])
	assert.Equal(t, "sweep", rec["module"])
	assert.EqualValues(t, 3, rec["attempt"])
}
