// Package span splits staged data that has not been stored yet across as
// many discs as it takes.
package span

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/knapsack"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/media"
	"github.com/cedar-backup/cback/pkg/peer"
	"github.com/cedar-backup/cback/pkg/staging"
)

// DefaultCushion is the percentage of the media capacity kept in reserve.
const DefaultCushion = 4.5

// Index is the set of files waiting to be stored.
type Index struct {
	SourceDir string
	// Dirs are the daily staging directories without a store indicator.
	Dirs  []string
	Sizes map[string]int64
	Total int64
}

// Disc is the content of one disc.
type Disc struct {
	Files    []string
	Size     int64
	Capacity int64
}

// Utilization is the used share of the disc in percent.
func (d Disc) Utilization() float64 {
	if d.Capacity <= 0 {
		return 0
	}
	return float64(d.Size) / float64(d.Capacity) * 100
}

func (d Disc) String() string {
	return fmt.Sprintf("%d files, %s, %.2f%% utilization", len(d.Files), humanize.IBytes(uint64(d.Size)), d.Utilization())
}

// BuildIndex collects every file of the daily directories below sourceDir
// that have not been written to media.
func BuildIndex(sourceDir string) (*Index, error) {
	dirs, err := staging.FindDailyDirs(sourceDir, peer.StoreIndicator)
	if err != nil {
		return nil, err
	}
	idx := &Index{SourceDir: sourceDir, Dirs: dirs, Sizes: make(map[string]int64)}
	for _, dir := range dirs {
		files, err := staging.BackupFiles(dir)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			size, err := staging.TotalSize([]string{f})
			if err != nil {
				return nil, err
			}
			idx.Sizes[f] = size
			idx.Total += size
		}
	}
	log.Debug("Indexed staging directories", "dirs", len(dirs), "files", len(idx.Sizes), "size", humanize.IBytes(uint64(idx.Total)))
	return idx, nil
}

// RealCapacity reduces capacity by a cushion given in percent.
func RealCapacity(capacity int64, cushion float64) int64 {
	return int64((100.0 - cushion) / 100.0 * float64(capacity))
}

// MinimumDiscs is the least number of discs the index could fit on.
func (idx *Index) MinimumDiscs(capacity int64) int {
	if capacity <= 0 {
		return 0
	}
	return int(idx.Total/capacity) + 1
}

// Generate packs the index onto discs of the given capacity, one knapsack
// pass per disc, until every file is placed.
func (idx *Index) Generate(capacity int64, alg knapsack.Algorithm) ([]Disc, error) {
	items := knapsack.Items{}
	for path, size := range idx.Sizes {
		if size > capacity {
			return nil, fmt.Errorf("%w: %s is %s, media holds %s", errUtils.ErrItemTooLarge,
				path, humanize.IBytes(uint64(size)), humanize.IBytes(uint64(max(capacity, 0))))
		}
		items[path] = knapsack.Item{Key: path, Size: size}
	}

	var discs []Disc
	for len(items) > 0 {
		fit := alg(items, capacity)
		if len(fit.Keys) == 0 {
			return nil, fmt.Errorf("%w: no file fits on disc %d", errUtils.ErrItemTooLarge, len(discs)+1)
		}
		for _, key := range fit.Keys {
			delete(items, key)
		}
		discs = append(discs, Disc{Files: fit.Keys, Size: fit.Used, Capacity: capacity})
	}
	return discs, nil
}

// Entries maps the files of a disc to media entries. Each file keeps its
// directory relative to the source directory.
func (idx *Index) Entries(d Disc) []media.Entry {
	return lo.Map(d.Files, func(f string, _ int) media.Entry {
		rel, err := filepath.Rel(idx.SourceDir, filepath.Dir(f))
		if err != nil {
			rel = filepath.Dir(f)
		}
		return media.Entry{Source: f, Graft: filepath.ToSlash(rel)}
	})
}

// Writer puts discs on media.
type Writer struct {
	Media media.Writer
	Label string
	// CheckData verifies each disc after writing when the media supports it.
	CheckData bool
	// BeforeDisc is called with the 1-based disc number before each disc is
	// written, so the operator can swap media.
	BeforeDisc func(n int) error
}

// Write writes every disc in order. Each disc starts as new media.
func (w *Writer) Write(ctx context.Context, idx *Index, discs []Disc) error {
	for i, d := range discs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if w.BeforeDisc != nil {
			if err := w.BeforeDisc(i + 1); err != nil {
				return err
			}
		}
		entries := idx.Entries(d)
		log.Info("Writing disc", "disc", i+1, "of", len(discs), "files", len(d.Files), "size", humanize.IBytes(uint64(d.Size)))
		if err := w.Media.Write(ctx, w.Label, true, entries); err != nil {
			return fmt.Errorf("disc %d: %w", i+1, err)
		}
		if w.CheckData {
			if v, ok := w.Media.(media.Verifier); ok {
				if err := v.Verify(ctx, entries); err != nil {
					return fmt.Errorf("disc %d: %w", i+1, err)
				}
			} else {
				log.Warn("Media type does not support consistency checks")
			}
		}
	}
	return nil
}

// MarkStored writes the store indicator into each indexed daily directory.
func (idx *Index) MarkStored(owner, group string) error {
	for _, dir := range idx.Dirs {
		if err := staging.WriteIndicator(dir, peer.StoreIndicator, owner, group); err != nil {
			return err
		}
	}
	return nil
}
