package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	cp "github.com/otiai10/copy"

	errUtils "github.com/cedar-backup/cback/errors"
	log "github.com/cedar-backup/cback/pkg/logger"
)

// LabelFile holds the label of directory media.
const LabelFile = "MEDIA_LABEL"

// initDir is created on freshly initialized media.
const initDir = "CedarBackup"

// DirectoryWriter treats a directory, typically a mounted removable disk, as
// the backup media.
type DirectoryWriter struct {
	Target   string
	capacity int64
}

// NewDirectoryWriter returns a writer for the target directory.
func NewDirectoryWriter(target string, capacity int64) *DirectoryWriter {
	return &DirectoryWriter{Target: target, capacity: capacity}
}

func (w *DirectoryWriter) Capacity() int64 { return w.capacity }

func (w *DirectoryWriter) Initialize(_ context.Context, label string) error {
	if err := w.reset(label); err != nil {
		return err
	}
	return os.MkdirAll(filepath.Join(w.Target, initDir), 0o750)
}

func (w *DirectoryWriter) Label(_ context.Context) (string, error) {
	data, err := os.ReadFile(filepath.Join(w.Target, LabelFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (w *DirectoryWriter) Write(ctx context.Context, label string, newDisc bool, entries []Entry) error {
	if newDisc {
		if err := w.reset(label); err != nil {
			return err
		}
	} else if err := os.MkdirAll(w.Target, 0o750); err != nil {
		return err
	}

	if w.capacity > 0 {
		used, err := w.dataSize()
		if err != nil {
			return err
		}
		var needed int64
		for _, e := range entries {
			size, err := treeSize(e.Source)
			if err != nil {
				return err
			}
			needed += size
		}
		if used+needed > w.capacity {
			return fmt.Errorf("%w: need %s but only %s of %s is free", errUtils.ErrMediaFull,
				humanize.IBytes(uint64(needed)), humanize.IBytes(uint64(max(w.capacity-used, 0))), humanize.IBytes(uint64(w.capacity)))
		}
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		dest := w.destination(e)
		log.Debug("Writing to media", "source", e.Source, "dest", dest)
		if err := cp.Copy(e.Source, dest, cp.Options{PreserveTimes: true}); err != nil {
			return fmt.Errorf("failed to write %s to media: %w", e.Source, err)
		}
	}
	return nil
}

// Verify compares every file below each entry source with its copy on the media.
func (w *DirectoryWriter) Verify(_ context.Context, entries []Entry) error {
	for _, e := range entries {
		dest := w.destination(e)
		err := filepath.WalkDir(e.Source, func(path string, d fs.DirEntry, err error) error {
			if err != nil || !d.Type().IsRegular() {
				return err
			}
			rel, err := filepath.Rel(e.Source, path)
			if err != nil {
				return err
			}
			src, err := d.Info()
			if err != nil {
				return err
			}
			copied, err := os.Stat(filepath.Join(dest, rel))
			if err != nil {
				return fmt.Errorf("%w: %s is missing from media", errUtils.ErrMediaCheckFailed, rel)
			}
			if copied.Size() != src.Size() {
				return fmt.Errorf("%w: %s is %d bytes on media, expected %d", errUtils.ErrMediaCheckFailed, rel, copied.Size(), src.Size())
			}
			return nil
		})
		if err != nil {
			return err
		}
		log.Info("Consistency check found no problems", "dir", e.Source)
	}
	return nil
}

// destination returns where an entry lands on the media. A file source is
// placed inside its graft directory, the way mkisofs graft points work.
func (w *DirectoryWriter) destination(e Entry) string {
	dest := filepath.Join(w.Target, filepath.FromSlash(e.Graft))
	if info, err := os.Stat(e.Source); err == nil && !info.IsDir() {
		return filepath.Join(dest, filepath.Base(e.Source))
	}
	return dest
}

// reset empties the target, keeping the directory itself since it is often a
// mount point, and writes a new label.
func (w *DirectoryWriter) reset(label string) error {
	if err := os.MkdirAll(w.Target, 0o750); err != nil {
		return err
	}
	children, err := os.ReadDir(w.Target)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := os.RemoveAll(filepath.Join(w.Target, c.Name())); err != nil {
			return err
		}
	}
	return os.WriteFile(filepath.Join(w.Target, LabelFile), []byte(label+"\n"), 0o640)
}

// dataSize is the size of the backup data on the media. The label file and
// the initialization marker are bookkeeping and do not count.
func (w *DirectoryWriter) dataSize() (int64, error) {
	children, err := os.ReadDir(w.Target)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, c := range children {
		if c.Name() == LabelFile || c.Name() == initDir {
			continue
		}
		size, err := treeSize(filepath.Join(w.Target, c.Name()))
		if err != nil {
			return 0, err
		}
		total += size
	}
	return total, nil
}

func treeSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
