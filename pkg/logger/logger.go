package logger

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	charm "github.com/charmbracelet/log"
)

// Levels re-exported from charmbracelet/log, plus a Trace level one step more
// verbose than Debug.
const (
	TraceLevel = charm.DebugLevel - 1
	DebugLevel = charm.DebugLevel
	InfoLevel  = charm.InfoLevel
	WarnLevel  = charm.WarnLevel
	ErrorLevel = charm.ErrorLevel
	// OffLevel is above every level a message can be logged at.
	OffLevel = charm.FatalLevel + 1
)

// CbackLogger is a charmbracelet logger that knows about the Trace level.
type CbackLogger struct {
	*charm.Logger
}

// NewCbackLogger creates a logger writing to w with the trace style installed.
func NewCbackLogger(w io.Writer) *CbackLogger {
	l := charm.NewWithOptions(w, charm.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
	})
	l.SetStyles(traceStyles())
	return &CbackLogger{Logger: l}
}

func traceStyles() *charm.Styles {
	styles := charm.DefaultStyles()
	styles.Levels[TraceLevel] = lipgloss.NewStyle().
		SetString("TRCE").
		Bold(true).
		MaxWidth(4)
	return styles
}

// Trace logs a message at Trace level.
func (l *CbackLogger) Trace(msg interface{}, keyvals ...interface{}) {
	l.Log(TraceLevel, msg, keyvals...)
}

// With returns a child logger that always adds the given key/value pairs.
func (l *CbackLogger) With(keyvals ...interface{}) *CbackLogger {
	return &CbackLogger{Logger: l.Logger.With(keyvals...)}
}

// GetLevelString returns the lowercase name of the current level.
func (l *CbackLogger) GetLevelString() string {
	switch lvl := l.GetLevel(); lvl {
	case TraceLevel:
		return "trace"
	case OffLevel:
		return "off"
	default:
		return strings.ToLower(lvl.String())
	}
}
