package extend

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/samber/lo"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/action"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/runner"
	"github.com/cedar-backup/cback/pkg/schema"
	"github.com/cedar-backup/cback/pkg/staging"
)

const (
	svnlookCommand  = "svnlook"
	svnadminCommand = "svnadmin"

	// SubversionRevisionExtension is the suffix of the files recording the last
	// revision dumped from an incremental repository.
	SubversionRevisionExtension = "svnlast"
)

func init() {
	MustRegister("subversion", "execute", func(r runner.CommandRunner) action.Action {
		return &subversionBackup{runner: r}
	})
}

// repository is a configured repository with the section defaults applied.
type repository struct {
	path        string
	collectMode string
	compress    string
}

// subversionBackup dumps Subversion repositories into the collect directory.
// Incremental repositories only dump the revisions added since the last run.
type subversionBackup struct {
	runner runner.CommandRunner
}

func (s *subversionBackup) Execute(ctx context.Context, _ string, opts *schema.RunOptions, cfg *schema.Configuration) error {
	log.Debug("Executing extended action", "action", "subversion")
	if cfg == nil || cfg.Options == nil || cfg.Collect == nil || cfg.Subversion == nil {
		return fmt.Errorf("%w: subversion needs the options, collect and subversion sections", errUtils.ErrMissingSection)
	}
	stream, err := streaming(s.runner, "subversion")
	if err != nil {
		return err
	}
	todayIsStart := staging.IsStartOfWeek(cfg.Options.StartingDay, now())
	full := (opts != nil && opts.Full) || todayIsStart
	log.Debug("Subversion flags", "full", full, "start_of_week", todayIsStart)

	repos, err := repositories(cfg.Subversion)
	if err != nil {
		return err
	}
	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.backup(ctx, stream, cfg, repo, full, todayIsStart); err != nil {
			return err
		}
	}
	log.Info("Executed extended action successfully", "action", "subversion")
	return nil
}

// repositories expands the configured repositories and repository
// directories. Each child directory of a repository directory is a repository.
func repositories(svn *schema.SubversionConfig) ([]repository, error) {
	var repos []repository
	for _, r := range svn.Repositories {
		repos = append(repos, repository{
			path:        r.AbsPath,
			collectMode: lo.CoalesceOrEmpty(r.CollectMode, svn.CollectMode, schema.CollectModeDaily),
			compress:    lo.CoalesceOrEmpty(r.Compress, svn.Compress, schema.CompressGzip),
		})
	}
	for _, d := range svn.RepositoryDirs {
		log.Debug("Listing repository directory", "path", d.AbsPath)
		paths, err := childEntries(d.AbsPath, d.RelativeExclude, d.ExcludePatterns, os.DirEntry.IsDir)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errUtils.ErrRepositoryDump, err)
		}
		for _, path := range paths {
			repos = append(repos, repository{
				path:        path,
				collectMode: lo.CoalesceOrEmpty(d.CollectMode, svn.CollectMode, schema.CollectModeDaily),
				compress:    lo.CoalesceOrEmpty(d.Compress, svn.Compress, schema.CompressGzip),
			})
		}
	}
	return repos, nil
}

func (s *subversionBackup) backup(ctx context.Context, stream runner.OutputRunner, cfg *schema.Configuration, repo repository, full, todayIsStart bool) error {
	due, err := dueToday(repo.collectMode, full, todayIsStart)
	if err != nil {
		return err
	}
	if !due {
		log.Debug("Skipping repository, not due today", "repository", repo.path, "mode", repo.collectMode)
		return nil
	}

	end, err := s.youngest(ctx, repo.path)
	if err != nil {
		return err
	}
	var start int64
	lastPath := revisionPath(cfg.Options, repo.path, SubversionRevisionExtension)
	if repo.collectMode == schema.CollectModeIncr && !full {
		last := int64(-1)
		loadRevision(lastPath, &last)
		start = last + 1
		if start > end {
			log.Info("No new revisions to back up", "repository", repo.path, "youngest", end)
			return nil
		}
	}
	log.Info("Backing up repository", "repository", repo.path, "start", start, "end", end)

	name := fmt.Sprintf("svndump-%d:%d-%s.txt", start, end, staging.NormalizedPath(repo.path))
	out, err := createOutput(cfg.Collect.TargetDir, name, repo.compress)
	if err != nil {
		return err
	}
	args := []string{"dump", "--quiet", fmt.Sprintf("-r%d:%d", start, end), "--incremental", repo.path}
	result, err := stream.RunOutput(ctx, svnadminCommand, args, out)
	if err != nil {
		out.discard()
		return fmt.Errorf("%w: %s: %w", errUtils.ErrRepositoryDump, repo.path, err)
	}
	if result.ExitCode != 0 {
		out.discard()
		log.Debug("svnadmin output", "repository", repo.path, "output", result.Tail(5))
		return fmt.Errorf("%w: %s: %w", errUtils.ErrRepositoryDump, repo.path, result.Err(svnadminCommand))
	}
	if err := out.finish(cfg.Options); err != nil {
		return err
	}

	if repo.collectMode == schema.CollectModeIncr {
		return saveRevision(lastPath, end, cfg.Options)
	}
	return nil
}

// youngest asks svnlook for the newest revision in the repository.
func (s *subversionBackup) youngest(ctx context.Context, path string) (int64, error) {
	result, err := s.runner.Run(ctx, svnlookCommand, []string{"youngest", path})
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", errUtils.ErrRepositoryDump, path, err)
	}
	if result.ExitCode != 0 {
		return 0, fmt.Errorf("%w: %s: %w", errUtils.ErrRepositoryDump, path, result.Err(svnlookCommand))
	}
	if len(result.Output) == 0 {
		return 0, fmt.Errorf("%w: %s: svnlook youngest printed nothing", errUtils.ErrRepositoryDump, path)
	}
	revision, err := strconv.ParseInt(strings.TrimSpace(result.Output[0]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: unable to parse svnlook output: %w", errUtils.ErrRepositoryDump, path, err)
	}
	return revision, nil
}
