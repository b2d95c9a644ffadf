package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceLevel_RelativeToDebug(t *testing.T) {
	assert.Equal(t, DebugLevel-1, TraceLevel)
	assert.Less(t, int(TraceLevel), int(DebugLevel))
	assert.Greater(t, int(OffLevel), int(ErrorLevel))
}

func TestCbackLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCbackLogger(&buf)
	logger.SetLevel(TraceLevel)

	logger.Trace("test trace message", "key", "value")
	assert.Contains(t, buf.String(), "test trace message")
	assert.Contains(t, buf.String(), "key=value")

	buf.Reset()
	logger.SetLevel(DebugLevel)
	logger.Trace("hidden")
	assert.Empty(t, buf.String())
}

func TestCbackLogger_GetLevelString(t *testing.T) {
	logger := New()

	logger.SetLevel(TraceLevel)
	assert.Equal(t, "trace", logger.GetLevelString())

	logger.SetLevel(DebugLevel)
	assert.Equal(t, "debug", logger.GetLevelString())

	logger.SetLevel(InfoLevel)
	assert.Equal(t, "info", logger.GetLevelString())

	logger.SetLevel(OffLevel)
	assert.Equal(t, "off", logger.GetLevelString())
}

func TestCbackLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCbackLogger(&buf).With("run", "abc")

	logger.Info("hello")
	assert.Contains(t, buf.String(), "run=abc")
}

func TestPackageLevelFunctions(t *testing.T) {
	oldLogger := Default()
	defer SetDefault(oldLogger)

	var buf bytes.Buffer
	testLogger := NewCbackLogger(&buf)
	testLogger.SetLevel(TraceLevel)
	SetDefault(testLogger)

	Trace("package trace")
	Debug("package debug")
	Info("package info")
	Warn("package warn")
	Error("package error")

	out := buf.String()
	for _, msg := range []string{"package trace", "package debug", "package info", "package warn", "package error"} {
		assert.Contains(t, out, msg)
	}
}

func TestSetDefault_IgnoresNil(t *testing.T) {
	current := Default()
	SetDefault(nil)
	assert.Same(t, current, Default())
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
		hasError bool
	}{
		{"Trace", LogLevelTrace, false},
		{"Debug", LogLevelDebug, false},
		{"Info", LogLevelInfo, false},
		{"Warning", LogLevelWarning, false},
		{"Off", LogLevelOff, false},
		{"", LogLevelInfo, false},
		{"trace", "", true},
		{"Invalid", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLogLevel(tt.input)
			if tt.hasError {
				assert.ErrorIs(t, err, ErrInvalidLogLevel)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLogLevel_CharmLevel(t *testing.T) {
	assert.Equal(t, TraceLevel, LogLevelTrace.CharmLevel())
	assert.Equal(t, DebugLevel, LogLevelDebug.CharmLevel())
	assert.Equal(t, InfoLevel, LogLevelInfo.CharmLevel())
	assert.Equal(t, WarnLevel, LogLevelWarning.CharmLevel())
	assert.Equal(t, OffLevel, LogLevelOff.CharmLevel())
}

func TestSetup(t *testing.T) {
	oldLogger := Default()
	defer SetDefault(oldLogger)

	t.Run("writes to file and screen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cback.log")
		var screen bytes.Buffer

		closer, err := Setup(Options{LogFile: path, Verbose: true, Screen: &screen})
		require.NoError(t, err)

		Debug("verbose line")
		require.NoError(t, closer.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "verbose line")
		assert.Contains(t, screen.String(), "verbose line")
		assert.Equal(t, "debug", Default().GetLevelString())
	})

	t.Run("quiet keeps screen silent", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cback.log")
		var screen bytes.Buffer

		closer, err := Setup(Options{LogFile: path, Quiet: true, Screen: &screen})
		require.NoError(t, err)
		Info("quiet line")
		require.NoError(t, closer.Close())

		assert.Empty(t, screen.String())
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(data), "quiet line"))
	})

	t.Run("mode applied to new file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cback.log")
		closer, err := Setup(Options{LogFile: path, Mode: "600", Quiet: true})
		require.NoError(t, err)
		require.NoError(t, closer.Close())

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("debug selects trace", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cback.log")
		closer, err := Setup(Options{LogFile: path, Debug: true, Quiet: true})
		require.NoError(t, err)
		require.NoError(t, closer.Close())
		assert.Equal(t, "trace", Default().GetLevelString())
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := Setup(Options{LogFile: filepath.Join(t.TempDir(), "x.log"), Level: "Loud"})
		assert.ErrorIs(t, err, ErrInvalidLogLevel)
	})

	t.Run("invalid mode", func(t *testing.T) {
		_, err := Setup(Options{LogFile: filepath.Join(t.TempDir(), "x.log"), Mode: "9z"})
		assert.Error(t, err)
	})
}
