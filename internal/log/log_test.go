package log_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/tutoralloc/allocator/internal/log"
	"github.com/stretchr/testify/require"
)

func TestContextAttrs(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := log.New(&buf, false)

	ctx := log.ContextAttrs(context.Background(), slog.String("cmd", "run"))
	a := log.JobAttrs(ctx, "a")
	b := log.JobAttrs(ctx, "b")

	logger.InfoContext(a, "first")
	logger.DebugContext(b, "hidden")
	logger.InfoContext(b, "second")

	dec := json.NewDecoder(&buf)
	var lines []map[string]any
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	require.Equal(t, "first", lines[0]["msg"])
	require.Equal(t, "a", lines[0]["job_id"])
	require.Equal(t, "run", lines[0]["cmd"])
	require.Equal(t, "b", lines[1]["job_id"])
}
