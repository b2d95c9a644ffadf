package hooks

import (
	"context"
	"fmt"
	"strings"

	errUtils "github.com/cedar-backup/cback/errors"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/runner"
)

// outputTail is how many output lines of a failed hook are logged.
const outputTail = 10

// RunHook executes the hook command. Any non-zero exit status is fatal.
func RunHook(ctx context.Context, r runner.CommandRunner, hook Hook) error {
	fields, err := runner.SplitCommandLine(hook.Command)
	if err != nil {
		return fmt.Errorf("%w: %s hook for action %s: %w", errUtils.ErrHookFailed, hook.Event, hook.Action, err)
	}

	log.Debug("Executing hook", "event", hook.Event, "action", hook.Action, "command", fields)
	result, err := r.Run(ctx, fields[0], fields[1:])
	if err != nil {
		return fmt.Errorf("%w: %s hook for action %s: %w", errUtils.ErrHookFailed, hook.Event, hook.Action, err)
	}
	if result.ExitCode != 0 {
		tail := "<empty>"
		if lines := result.Tail(outputTail); len(lines) > 0 {
			tail = "\n   " + strings.Join(lines, "\n   ")
		}
		log.Error("Hook failed", "action", hook.Action, "tail", tail)
		return fmt.Errorf("%w: error (%d) executing %s hook for action %s: %v",
			errUtils.ErrHookFailed, result.ExitCode, hook.Event, hook.Action, fields)
	}
	return nil
}
