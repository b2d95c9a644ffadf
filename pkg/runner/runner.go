package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"mvdan.cc/sh/v3/shell"

	errUtils "github.com/cedar-backup/cback/errors"
	log "github.com/cedar-backup/cback/pkg/logger"
)

// CommandResult is the outcome of a command that was started.
type CommandResult struct {
	ExitCode int
	// Output holds the combined stdout and stderr, one entry per line.
	Output []string
}

// Err returns nil for a zero exit code and an ErrCommandFailed carrying the
// exit status otherwise.
func (r *CommandResult) Err(command string) error {
	if r == nil || r.ExitCode == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", errUtils.ErrCommandFailed, command, errUtils.ExitCodeError{Code: r.ExitCode})
}

// Tail returns at most the last n output lines.
func (r *CommandResult) Tail(n int) []string {
	if r == nil {
		return nil
	}
	if len(r.Output) <= n {
		return r.Output
	}
	return r.Output[len(r.Output)-n:]
}

// CommandRunner runs external commands. A non-zero exit status is reported in
// the result; an error means the command could not be run at all.
//
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -source=$GOFILE -destination=mock_$GOFILE -package=$GOPACKAGE
type CommandRunner interface {
	Run(ctx context.Context, command string, args []string) (*CommandResult, error)
}

// OutputRunner also runs commands whose stdout is data rather than messages.
// Stdout goes to the writer and only stderr lands in the result output.
type OutputRunner interface {
	CommandRunner
	RunOutput(ctx context.Context, command string, args []string, stdout io.Writer) (*CommandResult, error)
}

// ShellRunner runs commands with os/exec.
type ShellRunner struct {
	Dir      string
	Env      []string
	Resolver *PathResolver
	// LogOutput logs every captured output line at debug level.
	LogOutput bool
}

// NewShellRunner creates a runner that resolves command names through resolver.
func NewShellRunner(resolver *PathResolver, logOutput bool) *ShellRunner {
	return &ShellRunner{Resolver: resolver, LogOutput: logOutput}
}

// Run executes command with args and captures its output.
func (r *ShellRunner) Run(ctx context.Context, command string, args []string) (*CommandResult, error) {
	return r.run(ctx, command, args, nil)
}

// RunOutput executes command with args, streaming stdout to w.
func (r *ShellRunner) RunOutput(ctx context.Context, command string, args []string, w io.Writer) (*CommandResult, error) {
	return r.run(ctx, command, args, w)
}

func (r *ShellRunner) run(ctx context.Context, command string, args []string, stdout io.Writer) (*CommandResult, error) {
	path := r.Resolver.Resolve(command)
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(), r.Env...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if stdout != nil {
		cmd.Stdout = stdout
	}

	log.Debug("Executing command", "command", path, "args", args)
	err := cmd.Run()
	result := &CommandResult{Output: splitLines(out.Bytes())}
	if r.LogOutput {
		for _, line := range result.Output {
			log.Debug(line, "command", command)
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errUtils.ErrCommandNotStarted, command, err)
	}
	return result, nil
}

func splitLines(data []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

// SplitCommandLine splits a configured command line into fields using shell
// quoting rules. Variables are not expanded.
func SplitCommandLine(line string) ([]string, error) {
	if strings.TrimSpace(line) == "" {
		return nil, errUtils.ErrEmptyCommand
	}
	fields, err := shell.Fields(line, func(string) string { return "" })
	if err != nil {
		return nil, fmt.Errorf("invalid command line '%s': %w", line, err)
	}
	if len(fields) == 0 {
		return nil, errUtils.ErrEmptyCommand
	}
	return fields, nil
}

// RunCommandLine splits line and runs it, appending extra arguments.
func RunCommandLine(ctx context.Context, r CommandRunner, line string, extra ...string) (*CommandResult, error) {
	fields, err := SplitCommandLine(line)
	if err != nil {
		return nil, err
	}
	args := append([]string{}, fields[1:]...)
	args = append(args, extra...)
	return r.Run(ctx, fields[0], args)
}
