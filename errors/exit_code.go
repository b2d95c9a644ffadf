package errors

import (
	"github.com/cockroachdb/errors"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitGeneral     = 1
	ExitUsage       = 2
	ExitLogging     = 3
	ExitConfig      = 4
	ExitInterrupted = 5
	ExitExecution   = 6
)

// codedError pins the process exit code for err.
type codedError struct {
	err  error
	code int
}

func (c *codedError) Error() string { return c.err.Error() }
func (c *codedError) Unwrap() error { return c.err }

// WithExitCode attaches an exit code to err. When codes are nested the
// outermost one wins.
func WithExitCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return &codedError{err: err, code: code}
}

// GetExitCode returns the exit code the process should end with: ExitOK for
// nil, the code attached by WithExitCode, the status of a failed external
// command, or ExitGeneral.
func GetExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var coded *codedError
	if errors.As(err, &coded) {
		return coded.code
	}
	var cmdErr ExitCodeError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code
	}
	return ExitGeneral
}
