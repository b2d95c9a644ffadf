package exec

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	errUtils "github.com/cedar-backup/cback/errors"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/schema"
)

const day = 24 * time.Hour

type purgeAction struct{}

// Execute removes old files below each configured purge directory.
func (purgeAction) Execute(ctx context.Context, _ string, _ *schema.RunOptions, cfg *schema.Configuration) error {
	log.Debug("Executing the purge action")
	if cfg == nil || cfg.Options == nil || cfg.Purge == nil {
		return fmt.Errorf("%w: purge requires the options and purge sections", errUtils.ErrMissingSection)
	}
	for _, dir := range cfg.Purge.Dirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if dir.RetainDays < 0 {
			return fmt.Errorf("%w: retain_days for %s must be zero or more", errUtils.ErrInvalidConfig, dir.AbsPath)
		}
		files, dirs, err := PurgeDir(dir.AbsPath, dir.RetainDays, now())
		if err != nil {
			return err
		}
		log.Info("Purged directory", "dir", dir.AbsPath, "files", files, "dirs", dirs)
	}
	log.Info("Executed the purge action successfully")
	return nil
}

// PurgeDir deletes every file below root that is at least retainDays whole
// days old, then every directory left empty. Links are always deleted. root
// itself is kept. Entries that cannot be removed are skipped.
func PurgeDir(root string, retainDays int, now time.Time) (files, dirs int, err error) {
	var dirList []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if d.IsDir() {
			dirList = append(dirList, path)
			return nil
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return nil
			}
			age := max(now.Sub(info.ModTime()), 0)
			if int(age/day) < retainDays {
				return nil
			}
		}
		if os.Remove(path) == nil {
			files++
			log.Debug("Purged file", "path", path)
		}
		return nil
	})
	if err != nil {
		return files, dirs, err
	}

	// Deepest first, so parents emptied by the purge go too.
	sort.Sort(sort.Reverse(sort.StringSlice(dirList)))
	for _, dir := range dirList {
		if os.Remove(dir) == nil {
			dirs++
			log.Debug("Purged empty directory", "path", dir)
		}
	}
	return files, dirs, nil
}
