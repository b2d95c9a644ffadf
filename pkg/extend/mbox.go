package extend

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/lo"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/action"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/runner"
	"github.com/cedar-backup/cback/pkg/schema"
	"github.com/cedar-backup/cback/pkg/staging"
)

const (
	grepmailCommand = "grepmail"
	tarCommand      = "tar"

	// MboxRevisionExtension is the suffix of the files recording when an
	// incremental mailbox was last backed up.
	MboxRevisionExtension = "mboxlast"

	// grepmail parses dates with Date::Parse, which accepts ISO 8601.
	grepmailDateFormat = "2006-01-02T15:04:05"
	mboxNameDateFormat = "20060102"
)

func init() {
	MustRegister("mbox", "execute", func(r runner.CommandRunner) action.Action {
		return &mboxBackup{runner: r}
	})
}

// mailbox is a configured mbox file or directory with the section defaults
// applied.
type mailbox struct {
	path            string
	dir             bool
	collectMode     string
	compress        string
	relativeExclude []string
	excludePatterns []string
}

// mboxBackup copies mailboxes into the collect directory with grepmail.
// Incremental mailboxes only keep messages dated after the previous run.
type mboxBackup struct {
	runner runner.CommandRunner
}

func (m *mboxBackup) Execute(ctx context.Context, _ string, opts *schema.RunOptions, cfg *schema.Configuration) error {
	log.Debug("Executing extended action", "action", "mbox")
	if cfg == nil || cfg.Options == nil || cfg.Collect == nil || cfg.Mbox == nil {
		return fmt.Errorf("%w: mbox needs the options, collect and mbox sections", errUtils.ErrMissingSection)
	}
	stream, err := streaming(m.runner, "mbox")
	if err != nil {
		return err
	}
	// Every message backed up on this run is older than this.
	revision := now()
	todayIsStart := staging.IsStartOfWeek(cfg.Options.StartingDay, revision)
	full := (opts != nil && opts.Full) || todayIsStart
	log.Debug("Mbox flags", "full", full, "start_of_week", todayIsStart)

	for _, box := range mailboxes(cfg.Mbox) {
		if err := ctx.Err(); err != nil {
			return err
		}
		due, err := dueToday(box.collectMode, full, todayIsStart)
		if err != nil {
			return err
		}
		if !due {
			log.Debug("Skipping mailbox, not due today", "path", box.path, "mode", box.collectMode)
			continue
		}

		lastPath := revisionPath(cfg.Options, box.path, MboxRevisionExtension)
		var since *time.Time
		if box.collectMode == schema.CollectModeIncr && !full {
			var last time.Time
			if loadRevision(lastPath, &last) {
				since = &last
			}
		}

		if box.dir {
			err = m.backupDir(ctx, stream, cfg, box, since, revision)
		} else {
			err = m.backupFile(ctx, stream, cfg, box, since, revision)
		}
		if err != nil {
			return err
		}
		if box.collectMode == schema.CollectModeIncr {
			if err := saveRevision(lastPath, revision, cfg.Options); err != nil {
				return err
			}
		}
	}
	log.Info("Executed extended action successfully", "action", "mbox")
	return nil
}

func mailboxes(mbox *schema.MboxConfig) []mailbox {
	boxes := make([]mailbox, 0, len(mbox.Files)+len(mbox.Dirs))
	for _, f := range mbox.Files {
		boxes = append(boxes, mailbox{
			path:        f.AbsPath,
			collectMode: lo.CoalesceOrEmpty(f.CollectMode, mbox.CollectMode, schema.CollectModeDaily),
			compress:    lo.CoalesceOrEmpty(f.Compress, mbox.Compress, schema.CompressGzip),
		})
	}
	for _, d := range mbox.Dirs {
		boxes = append(boxes, mailbox{
			path:            d.AbsPath,
			dir:             true,
			collectMode:     lo.CoalesceOrEmpty(d.CollectMode, mbox.CollectMode, schema.CollectModeDaily),
			compress:        lo.CoalesceOrEmpty(d.Compress, mbox.Compress, schema.CompressGzip),
			relativeExclude: d.RelativeExclude,
			excludePatterns: d.ExcludePatterns,
		})
	}
	return boxes
}

func (m *mboxBackup) backupFile(ctx context.Context, stream runner.OutputRunner, cfg *schema.Configuration, box mailbox, since *time.Time, revision time.Time) error {
	log.Info("Backing up mailbox", "path", box.path)
	name := "mbox-" + revision.Format(mboxNameDateFormat) + "-" + staging.NormalizedPath(box.path)
	out, err := createOutput(cfg.Collect.TargetDir, name, box.compress)
	if err != nil {
		return err
	}
	if err := grepmail(ctx, stream, box.path, since, out); err != nil {
		out.discard()
		return err
	}
	return out.finish(cfg.Options)
}

// backupDir runs grepmail on each mailbox directly inside the directory and
// archives the results together.
func (m *mboxBackup) backupDir(ctx context.Context, stream runner.OutputRunner, cfg *schema.Configuration, box mailbox, since *time.Time, revision time.Time) error {
	log.Info("Backing up mailbox directory", "path", box.path)
	files, err := childEntries(box.path, box.relativeExclude, box.excludePatterns, func(e os.DirEntry) bool { return !e.IsDir() })
	if err != nil {
		return fmt.Errorf("%w: %w", errUtils.ErrMailboxBackup, err)
	}
	if len(files) == 0 {
		log.Info("No mailboxes found", "path", box.path)
		return nil
	}

	tmp, err := os.MkdirTemp(cfg.Options.WorkingDir, "cback-mbox-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	names := make([]string, 0, len(files))
	for _, file := range files {
		name := filepath.Base(file)
		// The archive is compressed as a whole.
		out, err := createOutput(tmp, name, schema.CompressNone)
		if err != nil {
			return err
		}
		if err := grepmail(ctx, stream, file, since, out); err != nil {
			out.discard()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
		names = append(names, name)
	}

	tarfile := filepath.Join(cfg.Collect.TargetDir, "mbox-"+revision.Format(mboxNameDateFormat)+"-"+staging.NormalizedPath(box.path)+".tar")
	args := []string{"--create", "--file"}
	if box.compress == schema.CompressGzip {
		tarfile += ".gz"
		args = append(args, tarfile, "--gzip")
	} else {
		args = append(args, tarfile)
	}
	args = append(args, "--directory", tmp, "--")
	args = append(args, names...)

	result, err := m.runner.Run(ctx, tarCommand, args)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errUtils.ErrMailboxBackup, box.path, err)
	}
	if result.ExitCode != 0 {
		_ = os.Remove(tarfile)
		return fmt.Errorf("%w: %s: %w", errUtils.ErrMailboxBackup, box.path, result.Err(tarCommand))
	}
	log.Debug("Archived mailbox directory", "tarfile", tarfile, "mailboxes", len(names))
	return staging.ChangeOwnership(tarfile, cfg.Options.BackupUser, cfg.Options.BackupGroup)
}

// grepmail writes the messages in path to w, dropping duplicates. When since
// is set only messages dated after it are kept.
func grepmail(ctx context.Context, stream runner.OutputRunner, path string, since *time.Time, w io.Writer) error {
	args := []string{"-a", "-u"}
	if since != nil {
		args = append(args, "-d", "since "+since.Format(grepmailDateFormat))
	}
	args = append(args, path)
	result, err := stream.RunOutput(ctx, grepmailCommand, args, w)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errUtils.ErrMailboxBackup, path, err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("%w: %s: %w", errUtils.ErrMailboxBackup, path, result.Err(grepmailCommand))
	}
	return nil
}
