package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	sonic "github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesKeyValueFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONTo(&buf, LevelInfo).Named("orchestrator").With("run_id", "r-1")

	logger.WarnContext(context.Background(), "fetch failed", "attempt", 2, "error", errors.New("timeout"))

	var line map[string]any
	require.NoError(t, sonic.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "WARN", line["level"])
	require.Equal(t, "fetch failed", line["msg"])
	require.Equal(t, "orchestrator", line["logger"])
	require.Equal(t, "r-1", line["run_id"])
	require.EqualValues(t, 2, line["attempt"])
	require.Equal(t, "timeout", line["error"])
}

func TestLogger_BelowLevelIsDropped(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONTo(&buf, LevelWarn)

	logger.Info("ignored")
	require.Zero(t, buf.Len())
}

func TestLogger_NilReceiverFallsBackToDefault(t *testing.T) {
	var logger *Logger
	require.NotPanics(t, func() {
		logger.Info("no-op")
		_ = logger.With("k", "v")
	})
}

func TestSetMirror_ReceivesEnabledEntries(t *testing.T) {
	var got []string
	SetMirror(func(_ context.Context, level Level, msg string, args ...any) {
		got = append(got, level.String()+":"+msg)
	})
	t.Cleanup(func() { SetMirror(nil) })

	var buf bytes.Buffer
	logger := NewJSONTo(&buf, LevelInfo)
	logger.Debug("hidden")
	logger.Info("cycle done", "rows", 3)

	require.Equal(t, []string{"info:cycle done"}, got)
}
