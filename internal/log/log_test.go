package log_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/dxmate/dxmate/internal/log"
	"github.com/stretchr/testify/require"
)

func TestContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, false)

	ctx := log.ContextAttrs(t.Context(), slog.String("job_name", "Push Metadata"))
	child := log.ContextAttrs(ctx, slog.Int("attempt", 2))
	logger.DebugContext(child, "hidden")
	logger.InfoContext(child, "running", "cmd", "sf project deploy start")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "running", rec["msg"])
	require.Equal(t, "Push Metadata", rec["job_name"])
	require.EqualValues(t, 2, rec["attempt"])

	// the parent context is untouched by the child attrs
	buf.Reset()
	logger.With("component", "scheduler").InfoContext(ctx, "parent")
	rec = map[string]any{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "scheduler", rec["component"])
	require.NotContains(t, rec, "attempt")
}
