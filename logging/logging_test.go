package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAdapt_ConvertsFieldPairs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := Adapt(zap.New(core))

	logger.Debug("debug line", "user_id", "u1")
	logger.Info("fan-out completed", "updated", 7, "complete", true)
	logger.Error("journal write failed", errors.New("disk full"), "collection", "posts")

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	require.Equal(t, "u1", entries[0].ContextMap()["user_id"])
	require.Equal(t, int64(7), entries[1].ContextMap()["updated"])
	require.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	require.Equal(t, "disk full", entries[2].ContextMap()["error"])
	require.Equal(t, "posts", entries[2].ContextMap()["collection"])
}

func TestAdapt_NilLoggerIsNop(t *testing.T) {
	logger := Adapt(nil)
	logger.Info("ignored")
	logger.Error("ignored", errors.New("x"))
}

func TestNew_WritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "sync.log")

	logger := New(Config{Level: "warn", File: file, Console: &console})
	logger.Info("below threshold")
	logger.Warn("cache reload contended")
	require.NoError(t, logger.Sync())

	require.NotContains(t, console.String(), "below threshold")
	require.Contains(t, console.String(), "cache reload contended")

	payload, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(payload), `"msg":"cache reload contended"`)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	require.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	require.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	require.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}
