package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOutputRedirectsStructuredLogger(t *testing.T) {
	Init()
	t.Cleanup(func() { SetOutput(os.Stdout, slog.LevelDebug) })

	var buf bytes.Buffer
	SetOutput(&buf, slog.LevelInfo)

	ForService("apu").Info("redirected", "slot", 3)

	out := buf.String()
	assert.Contains(t, out, `"service":"apu"`)
	assert.Contains(t, out, `"msg":"redirected"`)
	assert.Contains(t, out, `"level":"INFO"`)

	// below the configured level, nothing is written
	before := buf.Len()
	ForService("apu").Debug("filtered")
	assert.Equal(t, before, buf.Len())
}

func TestInitFileOutput(t *testing.T) {
	Init()
	t.Cleanup(func() { SetOutput(os.Stdout, slog.LevelDebug) })

	path := filepath.Join(t.TempDir(), "logs", "apu.log")
	closeLog, err := InitFileOutput(path, slog.LevelInfo, FileLoggerOptions{})
	require.NoError(t, err)

	Structured().Info("to file", "k", "v")
	require.NoError(t, closeLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to file"`)
	assert.Contains(t, string(data), `"k":"v"`)
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "driver.log")
	logger, closeFn, err := NewFileLogger(path, "apu-driver", slog.LevelDebug, FileLoggerOptions{})
	require.NoError(t, err)

	logger.Debug("created")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"service":"apu-driver"`)
	assert.Contains(t, string(data), `"msg":"created"`)
}
