package logger

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"strconv"
	"strings"
)

const (
	DefaultLogFile = "/var/log/cback.log"
	DefaultLogMode = os.FileMode(0o640)
)

// Options controls where and how verbosely a run logs.
type Options struct {
	// LogFile is appended to; empty means DefaultLogFile.
	LogFile string
	// Owner is an optional "user:group" applied to a newly created log file.
	Owner string
	// Mode is an optional octal permission string, e.g. "640".
	Mode string
	// Level is an explicit level name and wins over Verbose and Debug.
	Level   string
	Verbose bool
	Debug   bool
	// Quiet turns off screen output; the log file still receives everything.
	Quiet bool
	// Screen defaults to os.Stderr.
	Screen io.Writer
}

// Setup builds a logger from opts and installs it as the default. The returned
// closer releases the log file.
func Setup(opts Options) (io.Closer, error) {
	level, err := resolveLevel(opts)
	if err != nil {
		return nil, err
	}

	path := opts.LogFile
	if path == "" {
		path = DefaultLogFile
	}
	mode := DefaultLogMode
	if opts.Mode != "" {
		m, err := strconv.ParseUint(opts.Mode, 8, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid log file mode '%s': %w", opts.Mode, err)
		}
		mode = os.FileMode(m)
	}

	_, statErr := os.Stat(path)
	created := os.IsNotExist(statErr)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file '%s': %w", path, err)
	}
	if created {
		if err := applyOwnership(f, opts.Owner, mode); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	var w io.Writer = f
	if !opts.Quiet {
		screen := opts.Screen
		if screen == nil {
			screen = os.Stderr
		}
		w = io.MultiWriter(f, screen)
	}

	l := NewCbackLogger(w)
	l.SetLevel(level.CharmLevel())
	SetDefault(l)
	return f, nil
}

func resolveLevel(opts Options) (LogLevel, error) {
	if opts.Level != "" {
		return ParseLogLevel(opts.Level)
	}
	switch {
	case opts.Debug:
		return LogLevelTrace, nil
	case opts.Verbose:
		return LogLevelDebug, nil
	default:
		return LogLevelInfo, nil
	}
}

func applyOwnership(f *os.File, owner string, mode os.FileMode) error {
	if err := f.Chmod(mode); err != nil {
		return fmt.Errorf("failed to set log file mode: %w", err)
	}
	if owner == "" {
		return nil
	}
	name, group, _ := strings.Cut(owner, ":")
	u, err := user.Lookup(name)
	if err != nil {
		return fmt.Errorf("unknown log file owner '%s': %w", name, err)
	}
	gid := u.Gid
	if group != "" {
		g, err := user.LookupGroup(group)
		if err != nil {
			return fmt.Errorf("unknown log file group '%s': %w", group, err)
		}
		gid = g.Gid
	}
	uidN, _ := strconv.Atoi(u.Uid)
	gidN, _ := strconv.Atoi(gid)
	if err := f.Chown(uidN, gidN); err != nil {
		return fmt.Errorf("failed to set log file owner: %w", err)
	}
	return nil
}
