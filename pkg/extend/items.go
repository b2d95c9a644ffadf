package extend

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/renameio/v2"
	jsoniter "github.com/json-iterator/go"

	errUtils "github.com/cedar-backup/cback/errors"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/runner"
	"github.com/cedar-backup/cback/pkg/schema"
	"github.com/cedar-backup/cback/pkg/staging"
)

var revisionJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// revisionPath is where the last backed up revision of path is kept between
// incremental runs.
func revisionPath(options *schema.OptionsConfig, path, extension string) string {
	return filepath.Join(options.WorkingDir, staging.NormalizedPath(path)+"."+extension)
}

// loadRevision decodes the revision stored at path into v. A missing or
// unreadable file reports false and leaves v alone.
func loadRevision(path string, v any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("Unable to read revision file", "path", path, "error", err)
		}
		return false
	}
	if err := revisionJSON.Unmarshal(data, v); err != nil {
		log.Warn("Unable to parse revision file", "path", path, "error", err)
		return false
	}
	return true
}

func saveRevision(path string, v any, options *schema.OptionsConfig) error {
	data, err := revisionJSON.Marshal(v)
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	log.Debug("Wrote revision file", "path", path)
	return staging.ChangeOwnership(path, options.BackupUser, options.BackupGroup)
}

// streaming returns r as an OutputRunner for actions that write command
// output straight into a backup file.
func streaming(r runner.CommandRunner, name string) (runner.OutputRunner, error) {
	or, ok := r.(runner.OutputRunner)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUtils.ErrStreamUnsupported, name)
	}
	return or, nil
}

// dueToday reports whether an item in the given collect mode is backed up on
// this run. Full runs back up everything.
func dueToday(mode string, full, todayIsStart bool) (bool, error) {
	switch mode {
	case schema.CollectModeDaily, schema.CollectModeIncr:
		return true, nil
	case schema.CollectModeWeekly:
		return full || todayIsStart, nil
	default:
		return false, fmt.Errorf("%w: '%s'", errUtils.ErrInvalidCollectMode, mode)
	}
}

// childEntries lists the entries directly inside dir that keep passes,
// dropping excluded paths and names matching an exclude pattern.
func childEntries(dir string, relativeExclude, patterns []string, keep func(os.DirEntry) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	excluded := make(map[string]bool, len(relativeExclude))
	for _, rel := range relativeExclude {
		excluded[filepath.Join(dir, rel)] = true
	}
	var paths []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if excluded[path] || !keep(entry) || matchesPattern(patterns, path) {
			continue
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func matchesPattern(patterns []string, path string) bool {
	slashed := filepath.ToSlash(path)
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, slashed)
		if err != nil {
			log.Warn("Invalid exclude pattern", "pattern", pattern, "error", err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
