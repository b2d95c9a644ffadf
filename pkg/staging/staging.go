// Package staging locates daily staging directories and manages the indicator
// files that record how far each directory has progressed through the backup.
package staging

import (
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	errUtils "github.com/cedar-backup/cback/errors"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/peer"
)

// DirTimeFormat lays out daily directories as YYYY/MM/DD.
const DirTimeFormat = "2006/01/02"

// IndicatorPattern matches every indicator file name.
const IndicatorPattern = "cback.*"

var whitespace = regexp.MustCompile(`\s`)

// Dir is a daily staging directory and its date suffix.
type Dir struct {
	Path   string
	Suffix string
}

// DailyDir returns the daily directory under root for the given day.
func DailyDir(root string, day time.Time) Dir {
	suffix := day.Format(DirTimeFormat)
	return Dir{Path: filepath.Join(root, filepath.FromSlash(suffix)), Suffix: suffix}
}

// ParseWeekday converts an English day name, in any case, to a weekday.
func ParseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), name) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: '%s'", errUtils.ErrInvalidStartingDay, name)
}

// IsStartOfWeek reports whether now falls on the configured starting day.
// An unknown day name is never the start of the week.
func IsStartOfWeek(startingDay string, now time.Time) bool {
	d, err := ParseWeekday(startingDay)
	start := err == nil && now.Weekday() == d
	log.Debug("Checked start of week", "startingDay", startingDay, "start", start)
	return start
}

// FindStoreDir picks the staging directory the store action should write.
// With full only today's staged directory qualifies. Otherwise the first of
// today, yesterday and tomorrow that is staged but not yet stored is used, so
// runs that cross midnight still find their data.
func FindStoreDir(root string, now time.Time, full bool) (Dir, error) {
	today := DailyDir(root, now)
	if full {
		if hasFile(filepath.Join(today.Path, peer.StageIndicator)) {
			log.Info("Using current day's staging directory", "dir", today.Path)
			return today, nil
		}
		return Dir{}, fmt.Errorf("%w: only tried %s due to full option", errUtils.ErrStagingDirNotFound, today.Path)
	}

	candidates := []struct {
		dir  Dir
		when string
	}{
		{today, "current"},
		{DailyDir(root, now.AddDate(0, 0, -1)), "previous"},
		{DailyDir(root, now.AddDate(0, 0, 1)), "next"},
	}
	for _, c := range candidates {
		if hasFile(filepath.Join(c.dir.Path, peer.StageIndicator)) && !hasFile(filepath.Join(c.dir.Path, peer.StoreIndicator)) {
			log.Info("Using "+c.when+" day's staging directory", "dir", c.dir.Path)
			if c.when != "current" {
				log.Warn("Crossed midnight boundary to find data", "dir", c.dir.Path)
			}
			return c.dir, nil
		}
	}
	return Dir{}, fmt.Errorf("%w: tried today, yesterday and tomorrow under %s", errUtils.ErrStagingDirNotFound, root)
}

// FindRebuildDirs returns every staged directory from the most recent
// starting day through today, oldest first.
func FindRebuildDirs(root, startingDay string, now time.Time) ([]Dir, error) {
	start, err := ParseWeekday(startingDay)
	if err != nil {
		return nil, err
	}
	days := (int(now.Weekday())-int(start)+7)%7 + 1

	var dirs []Dir
	for i := days - 1; i >= 0; i-- {
		d := DailyDir(root, now.AddDate(0, 0, -i))
		if hasFile(filepath.Join(d.Path, peer.StageIndicator)) {
			log.Info("Including staging directory in rebuild", "dir", d.Path)
			dirs = append(dirs, d)
		}
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("%w: nothing staged since %s", errUtils.ErrStagingDirNotFound, start)
	}
	return dirs, nil
}

// FindDailyDirs returns the YYYY/MM/DD directories under root that do not
// contain the given indicator file, in date order.
func FindDailyDirs(root, indicator string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(root), "*/*/*")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	var dirs []string
	for _, m := range matches {
		path := filepath.Join(root, filepath.FromSlash(m))
		if info, err := os.Lstat(path); err != nil || !info.IsDir() {
			continue
		}
		if hasFile(filepath.Join(path, indicator)) {
			log.Debug("Skipping daily directory", "dir", path, "indicator", indicator)
			continue
		}
		dirs = append(dirs, path)
	}
	return dirs, nil
}

// BackupFiles lists the regular files under dir, skipping indicator files
// and symbolic links.
func BackupFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if IsIndicator(d.Name()) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// IsIndicator reports whether a base name is an indicator file.
func IsIndicator(name string) bool {
	ok, _ := doublestar.Match(IndicatorPattern, name)
	return ok
}

// WriteIndicator creates an empty indicator file in dir.
func WriteIndicator(dir, name, owner, group string) error {
	path := filepath.Join(dir, name)
	log.Debug("Writing indicator file", "path", path)
	if err := os.WriteFile(path, nil, 0o640); err != nil {
		log.Error("Failed to write indicator file", "path", path, "error", err)
		return err
	}
	return ChangeOwnership(path, owner, group)
}

// ChangeOwnership hands path over to the backup user and group. It does
// nothing unless the process runs as root and a user is configured.
func ChangeOwnership(path, owner, group string) error {
	if owner == "" || os.Geteuid() != 0 {
		return nil
	}
	u, err := user.Lookup(owner)
	if err != nil {
		return fmt.Errorf("unknown backup user '%s': %w", owner, err)
	}
	gid := u.Gid
	if group != "" {
		g, err := user.LookupGroup(group)
		if err != nil {
			return fmt.Errorf("unknown backup group '%s': %w", group, err)
		}
		gid = g.Gid
	}
	uid, _ := strconv.Atoi(u.Uid)
	gidN, _ := strconv.Atoi(gid)
	return os.Lchown(path, uid, gidN)
}

// TotalSize sums the sizes of the given files.
func TotalSize(files []string) (int64, error) {
	var total int64
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}

func hasFile(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// NormalizedPath converts an absolute path into a name usable as a single
// file name: "/etc/cron.d" becomes "etc-cron.d".
func NormalizedPath(path string) string {
	if path == "/" {
		return "_"
	}
	p := strings.TrimPrefix(path, "/")
	if strings.HasPrefix(p, ".") {
		p = "_" + p[1:]
	}
	p = strings.ReplaceAll(p, "/", "-")
	p = whitespace.ReplaceAllString(p, "_")
	return strings.ReplaceAll(p, ":", "_")
}
