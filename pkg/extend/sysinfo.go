package extend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/action"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/runner"
	"github.com/cedar-backup/cback/pkg/schema"
)

func init() {
	MustRegister("sysinfo", "execute", func(r runner.CommandRunner) action.Action {
		return &sysInfo{runner: r}
	})
}

// sysInfoCommands are captured into the collect directory. A missing tool is
// skipped, so the action works on hosts without dpkg.
var sysInfoCommands = []struct {
	name    string
	command string
	args    []string
}{
	{"dpkg-selections", "dpkg", []string{"--get-selections"}},
	{"fdisk-l", "fdisk", []string{"-l"}},
	{"ls-laR", "ls", []string{"-laR", "/"}},
}

type sysInfo struct {
	runner runner.CommandRunner
}

func (s *sysInfo) Execute(ctx context.Context, _ string, _ *schema.RunOptions, cfg *schema.Configuration) error {
	log.Debug("Executing extended action", "action", "sysinfo")
	if cfg == nil || cfg.Options == nil || cfg.Collect == nil {
		return fmt.Errorf("%w: sysinfo needs the options and collect sections", errUtils.ErrMissingSection)
	}
	compress := schema.CompressGzip
	if cfg.SysInfo != nil && cfg.SysInfo.Compress != "" {
		compress = cfg.SysInfo.Compress
	}
	if err := validateCompress(compress); err != nil {
		return err
	}

	for _, c := range sysInfoCommands {
		result, err := s.runner.Run(ctx, c.command, c.args)
		if errors.Is(err, errUtils.ErrCommandNotStarted) {
			log.Info("Skipping system information, command not available", "command", c.command)
			continue
		}
		if err != nil {
			return err
		}
		// ls exits non-zero on unreadable directories but its listing is still useful.
		if result.ExitCode != 0 {
			log.Warn("System information command exited with an error", "command", c.command, "exitCode", result.ExitCode)
		}

		out, err := createOutput(cfg.Collect.TargetDir, c.name+".txt", compress)
		if err != nil {
			return err
		}
		if _, err := out.Write([]byte(strings.Join(result.Output, "\n") + "\n")); err != nil {
			out.Close()
			return err
		}
		if err := out.finish(cfg.Options); err != nil {
			return err
		}
	}
	log.Info("Executed extended action successfully", "action", "sysinfo")
	return nil
}
