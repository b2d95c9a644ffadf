package errors

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	log "github.com/cedar-backup/cback/pkg/logger"
)

// OsExit is a variable for testing, so we can mock os.Exit.
var OsExit = os.Exit

// WithHint attaches user-facing guidance to an error.
func WithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	return errors.WithHint(err, hint)
}

// FormatHints renders every hint attached to err, one per line.
func FormatHints(err error) string {
	hints := errors.GetAllHints(err)
	if len(hints) == 0 {
		return ""
	}
	var b strings.Builder
	for _, h := range hints {
		b.WriteString("hint: ")
		b.WriteString(h)
		b.WriteString("\n")
	}
	return b.String()
}

// LogError logs err at error level, followed by any hints attached to it.
func LogError(err error) {
	if err == nil {
		return
	}
	log.Error(err.Error())
	for _, h := range errors.GetAllHints(err) {
		log.Info(h)
	}
}

// Exit exits the program with the specified exit code.
func Exit(exitCode int) {
	OsExit(exitCode)
}
