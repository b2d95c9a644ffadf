package logger

import (
	"errors"
	"fmt"

	charm "github.com/charmbracelet/log"
)

// ErrInvalidLogLevel is returned for a level name ParseLogLevel does not know.
var ErrInvalidLogLevel = errors.New("invalid log level")

type LogLevel string

const (
	LogLevelOff     LogLevel = "Off"
	LogLevelTrace   LogLevel = "Trace"
	LogLevelDebug   LogLevel = "Debug"
	LogLevelInfo    LogLevel = "Info"
	LogLevelWarning LogLevel = "Warning"
)

// ParseLogLevel parses a level name. Names are case-sensitive; an empty
// string means Info.
func ParseLogLevel(logLevel string) (LogLevel, error) {
	if logLevel == "" {
		return LogLevelInfo, nil
	}

	switch l := LogLevel(logLevel); l {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelOff:
		return l, nil
	default:
		return "", fmt.Errorf("%w: '%s'. Supported log levels are Trace, Debug, Info, Warning, Off", ErrInvalidLogLevel, logLevel)
	}
}

// CharmLevel maps a LogLevel onto the charmbracelet level it stands for.
func (l LogLevel) CharmLevel() charm.Level {
	switch l {
	case LogLevelTrace:
		return TraceLevel
	case LogLevelDebug:
		return DebugLevel
	case LogLevelWarning:
		return WarnLevel
	case LogLevelOff:
		return OffLevel
	default:
		return InfoLevel
	}
}
