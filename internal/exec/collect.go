package exec

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/renameio/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"

	errUtils "github.com/cedar-backup/cback/errors"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/peer"
	"github.com/cedar-backup/cback/pkg/runner"
	"github.com/cedar-backup/cback/pkg/schema"
	"github.com/cedar-backup/cback/pkg/staging"
)

// DigestExtension is the suffix of the digest files kept for incremental collection.
const DigestExtension = "sha"

const tarCommand = "tar"

var archiveExtensions = map[string]string{
	schema.ArchiveModeTar:    ".tar",
	schema.ArchiveModeTarGz:  ".tar.gz",
	schema.ArchiveModeTarBz2: ".tar.bz2",
}

var archiveFlags = map[string]string{
	schema.ArchiveModeTarGz:  "--gzip",
	schema.ArchiveModeTarBz2: "--bzip2",
}

var digestJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// collectItem is a configured file or directory with the collect section
// defaults already applied.
type collectItem struct {
	path            string
	dir             bool
	collectMode     string
	archiveMode     string
	ignoreFile      string
	excludePaths    []string
	excludePatterns []string
	dereference     bool
}

type collectAction struct {
	runner runner.CommandRunner
}

// Execute archives every configured file and directory that is due today.
func (c *collectAction) Execute(ctx context.Context, _ string, opts *schema.RunOptions, cfg *schema.Configuration) error {
	log.Debug("Executing the collect action")
	if cfg == nil || cfg.Options == nil || cfg.Collect == nil {
		return fmt.Errorf("%w: collect requires the options and collect sections", errUtils.ErrMissingSection)
	}
	collect := cfg.Collect
	if len(collect.Files) == 0 && len(collect.Dirs) == 0 {
		return fmt.Errorf("%w: collect section lists no files or directories", errUtils.ErrInvalidConfig)
	}
	if err := os.MkdirAll(collect.TargetDir, 0o750); err != nil {
		return err
	}

	full := opts != nil && opts.Full
	todayIsStart := staging.IsStartOfWeek(cfg.Options.StartingDay, now())
	resetDigest := full || todayIsStart
	log.Debug("Collect flags", "full", full, "start_of_week", todayIsStart, "reset_digest", resetDigest)

	for _, item := range collectItems(collect) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.collectItem(ctx, cfg.Options, collect.TargetDir, item, full, todayIsStart, resetDigest); err != nil {
			return err
		}
	}

	if err := staging.WriteIndicator(collect.TargetDir, peer.CollectIndicator, cfg.Options.BackupUser, cfg.Options.BackupGroup); err != nil {
		return err
	}
	log.Info("Executed the collect action successfully")
	return nil
}

func collectItems(collect *schema.CollectConfig) []collectItem {
	items := make([]collectItem, 0, len(collect.Files)+len(collect.Dirs))
	for _, f := range collect.Files {
		items = append(items, collectItem{
			path:        f.AbsPath,
			collectMode: lo.CoalesceOrEmpty(f.CollectMode, collect.CollectMode, schema.CollectModeDaily),
			archiveMode: lo.CoalesceOrEmpty(f.ArchiveMode, collect.ArchiveMode, schema.ArchiveModeTarGz),
		})
	}
	for _, d := range collect.Dirs {
		excludePaths := append([]string{}, collect.ExcludePaths...)
		excludePaths = append(excludePaths, d.ExcludePaths...)
		for _, rel := range d.RelativeExclude {
			excludePaths = append(excludePaths, filepath.Join(d.AbsPath, rel))
		}
		items = append(items, collectItem{
			path:            d.AbsPath,
			dir:             true,
			collectMode:     lo.CoalesceOrEmpty(d.CollectMode, collect.CollectMode, schema.CollectModeDaily),
			archiveMode:     lo.CoalesceOrEmpty(d.ArchiveMode, collect.ArchiveMode, schema.ArchiveModeTarGz),
			ignoreFile:      lo.CoalesceOrEmpty(d.IgnoreFile, collect.IgnoreFile),
			excludePaths:    excludePaths,
			excludePatterns: append(append([]string{}, collect.ExcludePatterns...), d.ExcludePatterns...),
			dereference:     d.Dereference,
		})
	}
	return items
}

// dueToday reports whether an item in the given collect mode is collected on this run.
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

func (c *collectAction) collectItem(ctx context.Context, options *schema.OptionsConfig, targetDir string, item collectItem, full, todayIsStart, resetDigest bool) error {
	due, err := dueToday(item.collectMode, full, todayIsStart)
	if err != nil {
		return err
	}
	extension, ok := archiveExtensions[item.archiveMode]
	if !ok {
		return fmt.Errorf("%w: '%s' for %s", errUtils.ErrInvalidArchiveMode, item.archiveMode, item.path)
	}
	if !due {
		log.Debug("Skipping item, not due today", "path", item.path, "mode", item.collectMode)
		return nil
	}

	log.Info("Collecting", "path", item.path, "mode", item.collectMode)
	files, err := buildFileList(item)
	if err != nil {
		return err
	}

	normalized := staging.NormalizedPath(item.path)
	var newDigest map[string]string
	digestPath := filepath.Join(options.WorkingDir, normalized+"."+DigestExtension)
	if item.collectMode == schema.CollectModeIncr {
		oldDigest := map[string]string{}
		if !resetDigest {
			oldDigest = readDigest(digestPath)
		}
		files, newDigest, err = removeUnchanged(files, oldDigest)
		if err != nil {
			return err
		}
	}

	if len(files) == 0 {
		log.Info("Nothing to collect", "path", item.path)
	} else {
		tarfile := filepath.Join(targetDir, normalized+extension)
		if err := c.archive(ctx, options.WorkingDir, tarfile, item, files); err != nil {
			return err
		}
		if err := staging.ChangeOwnership(tarfile, options.BackupUser, options.BackupGroup); err != nil {
			return err
		}
		log.Debug("Created archive", "tarfile", tarfile, "files", len(files))
	}

	// The digest only advances once the changed files are safely archived.
	if newDigest != nil {
		return writeDigest(digestPath, newDigest, options)
	}
	return nil
}

// buildFileList returns the regular files and links to archive for item.
func buildFileList(item collectItem) ([]string, error) {
	if !item.dir {
		if _, err := os.Lstat(item.path); err != nil {
			return nil, fmt.Errorf("%w: %w", errUtils.ErrArchiveFailed, err)
		}
		return []string{item.path}, nil
	}

	excluded := lo.SliceToMap(item.excludePaths, func(p string) (string, bool) {
		return filepath.Clean(p), true
	})
	var files []string
	err := filepath.WalkDir(item.path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if excluded[path] || matchesAny(item.excludePatterns, path) {
			log.Trace("Excluded", "path", path)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if item.ignoreFile != "" && fileExists(filepath.Join(path, item.ignoreFile)) {
				log.Debug("Skipping directory with ignore file", "path", path, "ignore_file", item.ignoreFile)
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() || d.Type()&fs.ModeSymlink != 0 {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errUtils.ErrArchiveFailed, item.path, err)
	}
	return files, nil
}

func matchesAny(patterns []string, path string) bool {
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

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// archive writes files into tarfile with tar, reading a NUL-separated list of
// paths relative to the filesystem root.
func (c *collectAction) archive(ctx context.Context, workingDir, tarfile string, item collectItem, files []string) error {
	list, err := os.CreateTemp(workingDir, "cback-collect-*.lst")
	if err != nil {
		return err
	}
	defer os.Remove(list.Name())
	for _, f := range files {
		if _, err := io.WriteString(list, strings.TrimPrefix(f, "/")+"\x00"); err != nil {
			list.Close()
			return err
		}
	}
	if err := list.Close(); err != nil {
		return err
	}

	args := []string{"--create", "--file", tarfile}
	if flag, ok := archiveFlags[item.archiveMode]; ok {
		args = append(args, flag)
	}
	if item.dereference {
		args = append(args, "--dereference")
	}
	args = append(args, "--directory", "/", "--null", "--files-from", list.Name())

	result, err := c.runner.Run(ctx, tarCommand, args)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errUtils.ErrArchiveFailed, item.path, err)
	}
	switch {
	case result.ExitCode == 1:
		// GNU tar exits 1 when files changed while being read.
		log.Warn("Some files changed while being archived", "tarfile", tarfile, "output", result.Tail(5))
	case result.ExitCode != 0:
		_ = os.Remove(tarfile)
		return fmt.Errorf("%w: %s: %w", errUtils.ErrArchiveFailed, item.path, result.Err(tarCommand))
	}
	return nil
}

// removeUnchanged drops files whose digest matches oldDigest and returns the
// digest of every file in the original list.
func removeUnchanged(files []string, oldDigest map[string]string) ([]string, map[string]string, error) {
	newDigest := make(map[string]string, len(files))
	var changed []string
	for _, f := range files {
		info, err := os.Lstat(f)
		if err != nil {
			return nil, nil, err
		}
		if !info.Mode().IsRegular() {
			changed = append(changed, f)
			continue
		}
		sum, err := fileDigest(f)
		if err != nil {
			return nil, nil, err
		}
		newDigest[f] = sum
		if oldDigest[f] != sum {
			changed = append(changed, f)
		}
	}
	log.Debug("Removed unchanged files", "removed", len(files)-len(changed))
	return changed, newDigest, nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// readDigest loads a digest file. A missing or unreadable file yields an
// empty digest, which collects everything.
func readDigest(path string) map[string]string {
	digest := map[string]string{}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("Unable to read digest, starting fresh", "path", path, "error", err)
		}
		return digest
	}
	if err := digestJSON.Unmarshal(data, &digest); err != nil {
		log.Warn("Unable to parse digest, starting fresh", "path", path, "error", err)
		return map[string]string{}
	}
	return digest
}

func writeDigest(path string, digest map[string]string, options *schema.OptionsConfig) error {
	data, err := digestJSON.Marshal(digest)
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	return staging.ChangeOwnership(path, options.BackupUser, options.BackupGroup)
}
