package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewWritesJSONFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogFile = filepath.Join(t.TempDir(), "arbexec.log")
	cfg.Development = true

	log, err := New(cfg)
	require.NoError(t, err)
	log.WithComponent("executor").Debug("Route settled", zap.Uint64("profit_bps", 150))
	_ = log.Sync()

	data, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"executor"`)
	assert.Contains(t, string(data), `"profit_bps":150`)
}

func TestWithOperationAddsCorrelationID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &Logger{Logger: zap.New(core)}

	l.WithOperation("submit").Info("hello")
	l.WithRequest("req-1").Info("again")

	entries := logs.All()
	require.Len(t, entries, 2)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "submit", ctx["operation"])
	assert.NotEmpty(t, ctx["correlation_id"])
	assert.Equal(t, "req-1", entries[1].ContextMap()["request_id"])
}

func TestFormatMessage(t *testing.T) {
	msg := FormatMessage("Arbitrage completed", zap.Uint64("profit_bps", 150))
	assert.Contains(t, msg, "150 bps")

	msg = FormatMessage("Route aborted", zap.Error(errors.New("step 2 (orca): swap execution failed")))
	assert.Contains(t, msg, "swap execution failed")

	assert.Equal(t, "Something else", FormatMessage("Something else"))
}

func TestFieldFilterCoreRewritesMessages(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(&FieldFilterCore{core: core}).With(zap.String("reason", "operator"))

	log.Warn("Emergency cancel triggered")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.True(t, strings.Contains(entries[0].Message, "Cancel: operator"))
	assert.Empty(t, entries[0].Context)
}
