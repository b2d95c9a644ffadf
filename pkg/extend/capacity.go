package extend

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/action"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/media"
	"github.com/cedar-backup/cback/pkg/runner"
	"github.com/cedar-backup/cback/pkg/schema"
)

func init() {
	MustRegister("capacity", "execute", func(r runner.CommandRunner) action.Action {
		return &capacityCheck{runner: r, usage: diskUsage}
	})
}

// usageFunc returns the total and available bytes of the filesystem holding path.
type usageFunc func(path string) (total, available uint64, err error)

// capacityCheck warns when the store media is close to full. It never fails
// the run on a threshold breach; the error is only logged.
type capacityCheck struct {
	runner runner.CommandRunner
	usage  usageFunc
}

func (c *capacityCheck) Execute(ctx context.Context, _ string, _ *schema.RunOptions, cfg *schema.Configuration) error {
	log.Debug("Executing extended action", "action", "capacity")
	if cfg == nil || cfg.Options == nil || cfg.Store == nil || cfg.Capacity == nil {
		return fmt.Errorf("%w: capacity needs the options, store and capacity sections", errUtils.ErrMissingSection)
	}

	writer, err := media.NewWriter(cfg.Store.Media, c.runner)
	if err != nil {
		return err
	}
	if cfg.Store.CheckMedia {
		if err := media.CheckInitialized(ctx, writer); err != nil {
			return err
		}
	}

	path := cfg.Store.Media.Target
	if cfg.Store.Media.Type == schema.MediaTypeISO {
		path = filepath.Dir(path)
	}
	total, available, err := c.usage(path)
	if err != nil {
		return fmt.Errorf("failed to read capacity of %s: %w", path, err)
	}
	utilized := 0.0
	if total > 0 {
		utilized = float64(total-available) / float64(total) * 100
	}
	log.Debug("Media capacity", "total", humanize.IBytes(total), "available", humanize.IBytes(available), "utilized", fmt.Sprintf("%.2f%%", utilized))

	if cfg.Capacity.MaxPercentage > 0 {
		if utilized > cfg.Capacity.MaxPercentage {
			errUtils.LogError(fmt.Errorf("%w: limit of %.2f%% reached, %.2f%% utilized",
				errUtils.ErrCapacityExceeded, cfg.Capacity.MaxPercentage, utilized))
		}
	} else if available < uint64(max(cfg.Capacity.MinBytes, 0)) {
		errUtils.LogError(fmt.Errorf("%w: limit of %s reached, only %s available",
			errUtils.ErrCapacityExceeded, humanize.IBytes(uint64(cfg.Capacity.MinBytes)), humanize.IBytes(available)))
	}
	log.Info("Executed extended action successfully", "action", "capacity")
	return nil
}
