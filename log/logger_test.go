package log

import (
	"bytes"
	"testing"

	"github.com/kataras/golog"
	"github.com/stretchr/testify/assert"
)

func TestDefaultLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCustomLogger(&buf, LogLevelWarn)

	logger.Debug("debug %d", 1)
	logger.Info("info %d", 2)
	logger.Warn("warn %d", 3)
	logger.Error("error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "warn 3")
	assert.Contains(t, out, "error 4")
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.String())
	assert.Equal(t, "NONE", LogLevelNone.String())
	assert.Contains(t, LogLevel(42).String(), "UNKNOWN")
}

func TestPackageLevelLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := GetDefaultLogger()
	defer SetDefaultLogger(prev)

	SetDefaultLogger(NewCustomLogger(&buf, LogLevelDebug))
	Debug("d")
	Info("i")

	out := buf.String()
	assert.Contains(t, out, "[DEBUG] d")
	assert.Contains(t, out, "[INFO] i")
}

func TestGologLoggerSetLevel(t *testing.T) {
	gl := golog.New()
	var buf bytes.Buffer
	gl.SetOutput(&buf)

	logger := NewGologLogger(gl)
	logger.SetLevel(LogLevelError)
	assert.Equal(t, LogLevelError, logger.GetLevel())

	logger.Info("should be filtered")
	logger.Error("boom")
	assert.NotContains(t, buf.String(), "should be filtered")
	assert.Contains(t, buf.String(), "boom")
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = &NoOpLogger{}
	// Must not panic.
	l.Debug("a")
	l.Info("b")
	l.Warn("c")
	l.Error("d")
}
