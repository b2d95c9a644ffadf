package exec

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	errUtils "github.com/cedar-backup/cback/errors"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/media"
	"github.com/cedar-backup/cback/pkg/peer"
	"github.com/cedar-backup/cback/pkg/runner"
	"github.com/cedar-backup/cback/pkg/schema"
	"github.com/cedar-backup/cback/pkg/staging"
)

// WriterFactory builds the media writer for a store section.
type WriterFactory func(cfg schema.MediaConfig, r runner.CommandRunner) (media.Writer, error)

// mediaAction holds what the store, rebuild and initialize actions share.
type mediaAction struct {
	runner    runner.CommandRunner
	newWriter WriterFactory
}

func (m *mediaAction) writer(store *schema.StoreConfig) (media.Writer, error) {
	newWriter := m.newWriter
	if newWriter == nil {
		newWriter = media.NewWriter
	}
	return newWriter(store.Media, m.runner)
}

// writeImage writes dirs to the media, checks the written data when asked to
// and marks each dir as stored.
func (m *mediaAction) writeImage(ctx context.Context, options *schema.OptionsConfig, store *schema.StoreConfig, dirs []staging.Dir, newDisc bool) error {
	w, err := m.writer(store)
	if err != nil {
		return err
	}
	if store.CheckMedia {
		if err := media.CheckInitialized(ctx, w); err != nil {
			return err
		}
	}

	label := media.BuildLabel(now())
	if !newDisc {
		if current, err := w.Label(ctx); err == nil && current != "" {
			label = current
		}
	}
	entries := lo.Map(dirs, func(d staging.Dir, _ int) media.Entry {
		return media.Entry{Source: d.Path, Graft: d.Suffix}
	})
	log.Info("Writing to media", "dirs", len(entries), "new_disc", newDisc, "label", label)
	if err := w.Write(ctx, label, newDisc, entries); err != nil {
		return err
	}

	if store.CheckData {
		if v, ok := w.(media.Verifier); ok {
			if err := v.Verify(ctx, entries); err != nil {
				return err
			}
		} else {
			log.Warn("Media type does not support consistency checks", "type", store.Media.Type)
		}
	}

	for _, d := range dirs {
		if err := staging.WriteIndicator(d.Path, peer.StoreIndicator, options.BackupUser, options.BackupGroup); err != nil {
			return err
		}
	}
	return nil
}

// sourceDir is the staging root the store section reads from.
func sourceDir(cfg *schema.Configuration) string {
	if cfg.Store.SourceDir != "" || cfg.Stage == nil {
		return cfg.Store.SourceDir
	}
	return cfg.Stage.TargetDir
}

type storeAction struct {
	mediaAction
}

// Execute writes the most recent staged but unstored daily directory to the
// media. A full run or the first day of the week starts a new disc.
func (s *storeAction) Execute(ctx context.Context, _ string, opts *schema.RunOptions, cfg *schema.Configuration) error {
	log.Debug("Executing the store action")
	if cfg == nil || cfg.Options == nil || cfg.Store == nil {
		return fmt.Errorf("%w: store requires the options and store sections", errUtils.ErrMissingSection)
	}
	full := opts != nil && opts.Full
	today := now()
	newDisc := full || staging.IsStartOfWeek(cfg.Options.StartingDay, today)

	dir, err := staging.FindStoreDir(sourceDir(cfg), today, full)
	if err != nil {
		return err
	}
	if err := s.writeImage(ctx, cfg.Options, cfg.Store, []staging.Dir{dir}, newDisc); err != nil {
		return err
	}
	log.Info("Executed the store action successfully")
	return nil
}

type rebuildAction struct {
	mediaAction
}

// Execute rewrites every staged directory of the current week onto a new disc.
func (r *rebuildAction) Execute(ctx context.Context, _ string, _ *schema.RunOptions, cfg *schema.Configuration) error {
	log.Debug("Executing the rebuild action")
	if cfg == nil || cfg.Options == nil || cfg.Store == nil {
		return fmt.Errorf("%w: rebuild requires the options and store sections", errUtils.ErrMissingSection)
	}
	dirs, err := staging.FindRebuildDirs(sourceDir(cfg), cfg.Options.StartingDay, now())
	if err != nil {
		return err
	}
	if err := r.writeImage(ctx, cfg.Options, cfg.Store, dirs, true); err != nil {
		return err
	}
	log.Info("Executed the rebuild action successfully")
	return nil
}

type initializeAction struct {
	mediaAction
}

// Execute clears the media and writes a fresh label.
func (i *initializeAction) Execute(ctx context.Context, _ string, _ *schema.RunOptions, cfg *schema.Configuration) error {
	log.Debug("Executing the initialize action")
	if cfg == nil || cfg.Options == nil || cfg.Store == nil {
		return fmt.Errorf("%w: initialize requires the options and store sections", errUtils.ErrMissingSection)
	}
	if !cfg.Store.CheckMedia {
		log.Info("Media initialization only matters when check_media is enabled")
	}
	w, err := i.writer(cfg.Store)
	if err != nil {
		return err
	}
	label := media.BuildLabel(now())
	if err := w.Initialize(ctx, label); err != nil {
		return err
	}
	log.Info("Executed the initialize action successfully", "label", label)
	return nil
}
