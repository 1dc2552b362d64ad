package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewInvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recon.log")

	log, err := New(Config{Level: "info", Outputs: []string{"file"}, OutputFile: path, Format: "json"})
	require.NoError(t, err)

	log.LogRun("run_finished", map[string]interface{}{"cleaned": 3})
	require.NoError(t, log.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(raw)
	assert.True(t, strings.Contains(line, `"event":"run_finished"`), line)
	assert.True(t, strings.Contains(line, `"cleaned":3`), line)
}

type failingSyncer struct{ err error }

func (f failingSyncer) Write(p []byte) (int, error) { return len(p), nil }
func (f failingSyncer) Sync() error { return f.err }

func TestCloseReportsSyncError(t *testing.T) {
	newLog := func(err error) *Logger {
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		return FromZap(zap.New(zapcore.NewCore(enc, failingSyncer{err}, zapcore.InfoLevel)))
	}

	disk := errors.New("disk full")
	assert.ErrorIs(t, newLog(disk).Close(), disk)
	// 终端上的 stderr 不支持 fsync
	assert.NoError(t, newLog(syscall.EINVAL).Close())
	assert.NoError(t, newLog(syscall.ENOTTY).Close())
	assert.NoError(t, newLog(nil).Close())
}

func TestLogGateAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core))

	log.LogGate("trades.csv", "symbol", 8, 2)

	entries := logs.FilterMessage("gate_event").All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "trades.csv", ctx["source"])
	assert.Equal(t, int64(8), ctx["kept"])
	assert.Equal(t, int64(2), ctx["rejected"])
}

func TestLogErrorAndWithFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := FromZap(zap.New(core)).WithFields(map[string]interface{}{"run_id": "abc"})

	log.LogError(errors.New("boom"), nil)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "boom", ctx["error"])
	assert.Equal(t, "abc", ctx["run_id"])
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	log.LogRun("noop", nil)
	assert.NoError(t, log.Close())
}
