package logger

import (
	"os"
	"sync/atomic"
)

// defaultLogger is the global default CbackLogger instance stored atomically.
var defaultLogger atomic.Value

func init() {
	defaultLogger.Store(NewCbackLogger(os.Stderr))
}

// Default returns the global default CbackLogger instance.
func Default() *CbackLogger {
	return defaultLogger.Load().(*CbackLogger)
}

// SetDefault sets a new global default CbackLogger instance.
func SetDefault(logger *CbackLogger) {
	if logger != nil {
		defaultLogger.Store(logger)
	}
}

// New creates a new CbackLogger with default settings.
func New() *CbackLogger {
	return NewCbackLogger(os.Stderr)
}

// Trace logs a message at Trace level using the default logger.
func Trace(msg interface{}, keyvals ...interface{}) {
	Default().Trace(msg, keyvals...)
}

// Debug logs a message at Debug level using the default logger.
func Debug(msg interface{}, keyvals ...interface{}) {
	Default().Debug(msg, keyvals...)
}

// Info logs a message at Info level using the default logger.
func Info(msg interface{}, keyvals ...interface{}) {
	Default().Info(msg, keyvals...)
}

// Warn logs a message at Warn level using the default logger.
func Warn(msg interface{}, keyvals ...interface{}) {
	Default().Warn(msg, keyvals...)
}

// Error logs a message at Error level using the default logger.
func Error(msg interface{}, keyvals ...interface{}) {
	Default().Error(msg, keyvals...)
}
