package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/action"
	"github.com/cedar-backup/cback/pkg/schema"
	"github.com/cedar-backup/cback/pkg/staging"
)

// Validate checks the configuration for problems that can be found without
// touching the filesystem. All problems are reported together.
func Validate(cfg *schema.Configuration) error {
	return errors.Join(Check(cfg)...)
}

// Check returns one ErrInvalidConfig error per problem found.
func Check(cfg *schema.Configuration) []error {
	if cfg == nil {
		return []error{fmt.Errorf("%w: configuration is empty", errUtils.ErrInvalidConfig)}
	}
	c := &checker{}
	c.options(cfg.Options)
	c.extensions(cfg.Extensions)
	if cfg.Peers != nil {
		c.peers("peers", cfg.Peers.Local, cfg.Peers.Remote)
	}
	c.collect(cfg.Collect)
	c.stage(cfg.Stage)
	c.store(cfg.Store)
	c.purge(cfg.Purge)
	c.amazonS3(cfg.AmazonS3)
	c.capacity(cfg.Capacity)
	c.compress("mysql", cfg.MySQL)
	c.compress("postgresql", cfg.PostgreSQL)
	if cfg.SysInfo != nil {
		c.compressMode("sysinfo", cfg.SysInfo.Compress)
	}
	c.subversion(cfg.Subversion)
	c.mbox(cfg.Mbox)
	c.split(cfg.Split)
	return c.problems
}

type checker struct {
	problems []error
}

func (c *checker) add(format string, args ...any) {
	c.problems = append(c.problems, fmt.Errorf("%w: "+format, append([]any{errUtils.ErrInvalidConfig}, args...)...))
}

func (c *checker) absolute(section, field, path string) {
	switch {
	case path == "":
		c.add("%s.%s is required", section, field)
	case !filepath.IsAbs(path):
		c.add("%s.%s '%s' must be an absolute path", section, field, path)
	}
}

func (c *checker) options(o *schema.OptionsConfig) {
	if o == nil {
		c.add("options section is required")
		return
	}
	if _, err := staging.ParseWeekday(o.StartingDay); err != nil {
		c.add("options.starting_day '%s' is not a day of the week", o.StartingDay)
	}
	c.absolute("options", "working_dir", o.WorkingDir)
	for i, h := range o.Hooks {
		if h.Action == "" {
			c.add("options.hooks[%d] names no action", i)
		}
		if h.Type != schema.HookTypePre && h.Type != schema.HookTypePost {
			c.add("options.hooks[%d] type '%s' must be pre or post", i, h.Type)
		}
		if h.Command == "" {
			c.add("options.hooks[%d] has no command", i)
		}
	}
	for i, ov := range o.Overrides {
		if ov.Command == "" {
			c.add("options.overrides[%d] names no command", i)
		}
		c.absolute(fmt.Sprintf("options.overrides[%d]", i), "abs_path", ov.AbsPath)
	}
}

func (c *checker) extensions(ext *schema.ExtensionsConfig) {
	if ext == nil {
		return
	}
	switch ext.OrderMode {
	case "", action.OrderModeIndex, action.OrderModeDependency:
	default:
		c.add("extensions.order_mode '%s' must be index or dependency", ext.OrderMode)
	}
	seen := make(map[string]bool)
	for i, a := range ext.Actions {
		switch {
		case a.Name == "":
			c.add("extensions.actions[%d] has no name", i)
		case a.Name == action.All || slices.Contains(action.BuiltIns, a.Name):
			c.add("extension '%s' has the name of a built-in action", a.Name)
		case seen[a.Name]:
			c.add("extension '%s' is configured more than once", a.Name)
		}
		seen[a.Name] = true
		if a.Module == "" || a.Function == "" {
			c.add("extension '%s' needs both a module and a function", a.Name)
		}
		if ext.OrderMode == action.OrderModeDependency && a.Depends != nil {
			for _, dep := range append(append([]string{}, a.Depends.RunBefore...), a.Depends.RunAfter...) {
				if dep == "" {
					c.add("extension '%s' lists an empty dependency", a.Name)
				}
			}
		}
	}
}

func (c *checker) peers(section string, local []schema.LocalPeer, remote []schema.RemotePeer) {
	names := make(map[string]bool)
	checkName := func(name string) {
		if name == "" {
			c.add("%s lists a peer without a name", section)
			return
		}
		if names[name] {
			c.add("%s lists peer '%s' more than once", section, name)
		}
		names[name] = true
	}
	for _, p := range local {
		checkName(p.Name)
		c.absolute(section+"."+p.Name, "collect_dir", p.CollectDir)
		c.failureMode(p.Name, p.IgnoreFailure)
	}
	for _, p := range remote {
		checkName(p.Name)
		c.absolute(section+"."+p.Name, "collect_dir", p.CollectDir)
		c.failureMode(p.Name, p.IgnoreFailure)
		for _, a := range p.ManagedActions {
			if a == "" {
				c.add("peer '%s' lists an empty managed action", p.Name)
			}
		}
	}
}

func (c *checker) failureMode(peer, mode string) {
	switch mode {
	case "", schema.FailureModeNone, schema.FailureModeAll, schema.FailureModeDaily, schema.FailureModeWeekly:
	default:
		c.add("peer '%s' ignore_failure '%s' must be none, all, daily or weekly", peer, mode)
	}
}

func (c *checker) collectMode(what, mode string) {
	switch mode {
	case "", schema.CollectModeDaily, schema.CollectModeWeekly, schema.CollectModeIncr:
	default:
		c.add("%s: %v '%s'", what, errUtils.ErrInvalidCollectMode, mode)
	}
}

func (c *checker) archiveMode(what, mode string) {
	switch mode {
	case "", schema.ArchiveModeTar, schema.ArchiveModeTarGz, schema.ArchiveModeTarBz2:
	default:
		c.add("%s: %v '%s'", what, errUtils.ErrInvalidArchiveMode, mode)
	}
}

func (c *checker) collect(col *schema.CollectConfig) {
	if col == nil {
		return
	}
	c.absolute("collect", "target_dir", col.TargetDir)
	c.collectMode("collect", col.CollectMode)
	c.archiveMode("collect", col.ArchiveMode)
	if len(col.Files) == 0 && len(col.Dirs) == 0 {
		c.add("collect section lists no files or directories")
	}
	for _, f := range col.Files {
		c.absolute("collect.files", "abs_path", f.AbsPath)
		c.collectMode(f.AbsPath, f.CollectMode)
		c.archiveMode(f.AbsPath, f.ArchiveMode)
	}
	for _, d := range col.Dirs {
		c.absolute("collect.dirs", "abs_path", d.AbsPath)
		c.collectMode(d.AbsPath, d.CollectMode)
		c.archiveMode(d.AbsPath, d.ArchiveMode)
		c.relativeExcludes(d.AbsPath, d.RelativeExclude)
	}
}

func (c *checker) relativeExcludes(dir string, paths []string) {
	for _, rel := range paths {
		if filepath.IsAbs(rel) {
			c.add("%s: relative exclude path '%s' is absolute", dir, rel)
		}
	}
}

func (c *checker) stage(s *schema.StageConfig) {
	if s == nil {
		return
	}
	c.absolute("stage", "target_dir", s.TargetDir)
	c.peers("stage", s.Local, s.Remote)
}

func (c *checker) store(s *schema.StoreConfig) {
	if s == nil {
		return
	}
	if s.SourceDir != "" {
		c.absolute("store", "source_dir", s.SourceDir)
	}
	switch s.Media.Type {
	case "", schema.MediaTypeDirectory, schema.MediaTypeISO:
	default:
		c.add("store.media.type: %v '%s'", errUtils.ErrInvalidMediaType, s.Media.Type)
	}
	c.absolute("store.media", "target", s.Media.Target)
	if s.Media.Capacity < 0 {
		c.add("store.media.capacity must not be negative")
	}
}

func (c *checker) purge(p *schema.PurgeConfig) {
	if p == nil {
		return
	}
	for _, d := range p.Dirs {
		c.absolute("purge.dirs", "abs_path", d.AbsPath)
		if d.RetainDays < 0 {
			c.add("purge.dirs '%s' retain_days must be zero or more", d.AbsPath)
		}
	}
}

func (c *checker) amazonS3(s *schema.AmazonS3Config) {
	if s == nil {
		return
	}
	if s.Bucket == "" {
		c.add("amazons3.bucket is required")
	}
	if s.FullSizeLimit < 0 || s.IncrSizeLimit < 0 {
		c.add("amazons3 size limits must not be negative")
	}
}

func (c *checker) capacity(s *schema.CapacityConfig) {
	if s == nil {
		return
	}
	if (s.MaxPercentage != 0) == (s.MinBytes != 0) {
		c.add("capacity needs exactly one of max_percentage and min_bytes")
	}
	if s.MaxPercentage < 0 || s.MaxPercentage > 100 {
		c.add("capacity.max_percentage must be between 0 and 100")
	}
	if s.MinBytes < 0 {
		c.add("capacity.min_bytes must not be negative")
	}
}

func (c *checker) compress(section string, db *schema.DatabaseConfig) {
	if db == nil {
		return
	}
	c.compressMode(section, db.Compress)
	if !db.All && len(db.Databases) == 0 {
		c.add("%s must set all or list databases", section)
	}
}

func (c *checker) compressMode(section, mode string) {
	switch mode {
	case "", schema.CompressGzip, schema.CompressNone:
	default:
		c.add("%s.compress_mode '%s' must be gzip or none", section, mode)
	}
}

func (c *checker) subversion(s *schema.SubversionConfig) {
	if s == nil {
		return
	}
	c.collectMode("subversion", s.CollectMode)
	c.compressMode("subversion", s.Compress)
	if len(s.Repositories) == 0 && len(s.RepositoryDirs) == 0 {
		c.add("subversion section lists no repositories or repository directories")
	}
	for _, r := range s.Repositories {
		c.absolute("subversion.repositories", "abs_path", r.AbsPath)
		c.collectMode(r.AbsPath, r.CollectMode)
		c.compressMode(r.AbsPath, r.Compress)
	}
	for _, d := range s.RepositoryDirs {
		c.absolute("subversion.repository_dirs", "abs_path", d.AbsPath)
		c.collectMode(d.AbsPath, d.CollectMode)
		c.compressMode(d.AbsPath, d.Compress)
		c.relativeExcludes(d.AbsPath, d.RelativeExclude)
	}
}

func (c *checker) mbox(m *schema.MboxConfig) {
	if m == nil {
		return
	}
	c.collectMode("mbox", m.CollectMode)
	c.compressMode("mbox", m.Compress)
	if len(m.Files) == 0 && len(m.Dirs) == 0 {
		c.add("mbox section lists no files or directories")
	}
	for _, f := range m.Files {
		c.absolute("mbox.files", "abs_path", f.AbsPath)
		c.collectMode(f.AbsPath, f.CollectMode)
		c.compressMode(f.AbsPath, f.Compress)
	}
	for _, d := range m.Dirs {
		c.absolute("mbox.dirs", "abs_path", d.AbsPath)
		c.collectMode(d.AbsPath, d.CollectMode)
		c.compressMode(d.AbsPath, d.Compress)
		c.relativeExcludes(d.AbsPath, d.RelativeExclude)
	}
}

func (c *checker) split(s *schema.SplitConfig) {
	if s == nil {
		return
	}
	if s.SizeLimit <= 0 || s.SplitSize <= 0 {
		c.add("split.size_limit and split.split_size must be positive")
	}
}
