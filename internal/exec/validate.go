package exec

import (
	"context"
	"fmt"
	"os"
	"os/user"

	"golang.org/x/sys/unix"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/action"
	"github.com/cedar-backup/cback/pkg/config"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/schema"
)

type validateAction struct {
	extensions action.ExtensionResolver
	quiet      bool
}

// Execute checks the configuration against this host: every section must be
// well formed, every directory must exist with the right access and every
// extension function must be registered. All problems are logged before
// failing.
func (v *validateAction) Execute(_ context.Context, _ string, _ *schema.RunOptions, cfg *schema.Configuration) error {
	log.Debug("Executing the validate action")
	report := log.Error
	if v.quiet {
		report = log.Info
	}

	problems := config.Check(cfg)
	if cfg != nil {
		problems = append(problems, runtimeProblems(cfg, v.extensions)...)
	}
	for _, p := range problems {
		report(p.Error())
	}
	if len(problems) > 0 {
		report("Configuration is not valid.")
		return fmt.Errorf("%w: %d problems found", errUtils.ErrInvalidConfig, len(problems))
	}
	report("Configuration is valid.")
	return nil
}

func runtimeProblems(cfg *schema.Configuration, extensions action.ExtensionResolver) []error {
	var problems []error
	checkDir := func(prefix, path string, writable bool) {
		if path == "" {
			return
		}
		if err := checkDir(path, writable); err != nil {
			problems = append(problems, fmt.Errorf("%w: %s %w", errUtils.ErrInvalidConfig, prefix, err))
		}
	}

	if cfg.Reference == nil {
		problems = append(problems, fmt.Errorf("%w: reference section is required", errUtils.ErrInvalidConfig))
	}
	if o := cfg.Options; o != nil {
		checkDir("working directory", o.WorkingDir, true)
		if err := checkOwner(o.BackupUser, o.BackupGroup); err != nil {
			problems = append(problems, fmt.Errorf("%w: backup user:group [%s:%s] invalid: %w", errUtils.ErrInvalidConfig, o.BackupUser, o.BackupGroup, err))
		}
	}
	if c := cfg.Collect; c != nil {
		checkDir("collect target directory", c.TargetDir, true)
		for _, d := range c.Dirs {
			checkDir("collect directory", d.AbsPath, false)
		}
	}
	if s := cfg.Stage; s != nil {
		checkDir("stage target directory", s.TargetDir, true)
		for _, p := range s.Local {
			checkDir("local peer collect directory", p.CollectDir, false)
		}
	}
	if s := cfg.Store; s != nil {
		checkDir("store source directory", s.SourceDir, false)
	}
	if p := cfg.Purge; p != nil {
		for _, d := range p.Dirs {
			checkDir("purge directory", d.AbsPath, true)
		}
	}
	if cfg.Extensions != nil && extensions != nil {
		for _, a := range cfg.Extensions.Actions {
			if _, err := extensions.Resolve(a.Module, a.Function); err != nil {
				problems = append(problems, fmt.Errorf("%w: extension '%s': %w", errUtils.ErrInvalidConfig, a.Name, err))
			}
		}
	}
	return problems
}

// checkDir requires path to be a readable and searchable directory, and
// writable when asked.
func checkDir(path string, writable bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("[%s] does not exist", path)
	}
	if !info.IsDir() {
		return fmt.Errorf("[%s] is not a directory", path)
	}
	if unix.Access(path, unix.R_OK) != nil {
		return fmt.Errorf("[%s] is not readable", path)
	}
	if unix.Access(path, unix.X_OK) != nil {
		return fmt.Errorf("[%s] is not executable", path)
	}
	if writable && unix.Access(path, unix.W_OK) != nil {
		return fmt.Errorf("[%s] is not writable", path)
	}
	return nil
}

func checkOwner(owner, group string) error {
	if owner != "" {
		if _, err := user.Lookup(owner); err != nil {
			return err
		}
	}
	if group != "" {
		if _, err := user.LookupGroup(group); err != nil {
			return err
		}
	}
	return nil
}
