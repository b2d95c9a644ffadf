package extend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/action"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/runner"
	"github.com/cedar-backup/cback/pkg/schema"
	"github.com/cedar-backup/cback/pkg/staging"
)

const (
	splitCommand = "split"

	// SplitIndicator marks a staging directory whose large files were split.
	SplitIndicator = "cback.split"

	splitSuffixLength = 5
)

func init() {
	MustRegister("split", "execute", func(r runner.CommandRunner) action.Action {
		return &splitAction{runner: r}
	})
}

// splitAction cuts staged files over the size limit into numbered pieces so
// each fits on a disc. The original file is removed once the pieces exist.
type splitAction struct {
	runner runner.CommandRunner
}

func (s *splitAction) Execute(ctx context.Context, _ string, _ *schema.RunOptions, cfg *schema.Configuration) error {
	log.Debug("Executing extended action", "action", "split")
	if cfg == nil || cfg.Options == nil || cfg.Stage == nil || cfg.Split == nil {
		return fmt.Errorf("%w: split needs the options, stage and split sections", errUtils.ErrMissingSection)
	}
	if cfg.Split.SizeLimit <= 0 || cfg.Split.SplitSize <= 0 {
		return fmt.Errorf("%w: split sizes must be positive", errUtils.ErrInvalidConfig)
	}

	dirs, err := staging.FindDailyDirs(cfg.Stage.TargetDir, SplitIndicator)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.splitDir(ctx, dir, cfg); err != nil {
			return err
		}
		if err := staging.WriteIndicator(dir, SplitIndicator, cfg.Options.BackupUser, cfg.Options.BackupGroup); err != nil {
			return err
		}
	}
	log.Info("Executed extended action successfully", "action", "split")
	return nil
}

func (s *splitAction) splitDir(ctx context.Context, dir string, cfg *schema.Configuration) error {
	log.Debug("Splitting large files", "dir", dir)
	files, err := staging.BackupFiles(dir)
	if err != nil {
		return err
	}
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			return err
		}
		if info.Size() <= cfg.Split.SizeLimit {
			continue
		}
		if err := s.splitFile(ctx, file, cfg); err != nil {
			return err
		}
	}
	return nil
}

func (s *splitAction) splitFile(ctx context.Context, file string, cfg *schema.Configuration) error {
	log.Info("Splitting file", "path", file, "piece_size", cfg.Split.SplitSize)
	prefix := file + "_"
	args := []string{
		"--verbose",
		"--numeric-suffixes",
		"--suffix-length=" + strconv.Itoa(splitSuffixLength),
		"--bytes=" + strconv.FormatInt(cfg.Split.SplitSize, 10),
		file,
		prefix,
	}
	result, err := s.runner.Run(ctx, splitCommand, args)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errUtils.ErrSplitFailed, file, err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("%w: %s: %w", errUtils.ErrSplitFailed, file, result.Err(splitCommand))
	}

	pieces, err := splitPieces(prefix)
	if err != nil {
		return err
	}
	if len(pieces) == 0 {
		return fmt.Errorf("%w: %s: split created no pieces", errUtils.ErrSplitFailed, file)
	}
	for _, piece := range pieces {
		if err := staging.ChangeOwnership(piece, cfg.Options.BackupUser, cfg.Options.BackupGroup); err != nil {
			return err
		}
	}
	if err := os.Remove(file); err != nil {
		return fmt.Errorf("%w: removing %s after splitting: %w", errUtils.ErrSplitFailed, file, err)
	}
	log.Debug("Split file", "path", file, "pieces", len(pieces))
	return nil
}

// splitPieces lists the files split wrote for prefix: the prefix followed by
// a numeric suffix.
func splitPieces(prefix string) ([]string, error) {
	dir, base := filepath.Split(prefix)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var pieces []string
	for _, entry := range entries {
		suffix, ok := strings.CutPrefix(entry.Name(), base)
		if !ok || len(suffix) != splitSuffixLength {
			continue
		}
		if _, err := strconv.Atoi(suffix); err != nil {
			continue
		}
		pieces = append(pieces, filepath.Join(dir, entry.Name()))
	}
	return pieces, nil
}
