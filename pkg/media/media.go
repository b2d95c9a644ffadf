// Package media writes staging directories to backup media.
package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/runner"
	"github.com/cedar-backup/cback/pkg/schema"
)

// LabelPrefix starts the label of every initialized medium.
const LabelPrefix = "CEDAR BACKUP"

// Entry places a source directory, or a single file, on the media under Graft.
type Entry struct {
	Source string
	Graft  string
}

// Writer writes backup data to one kind of media.
type Writer interface {
	// Initialize prepares blank media and labels it.
	Initialize(ctx context.Context, label string) error
	// Label returns the current media label, or "" when there is none.
	Label(ctx context.Context) (string, error)
	// Write adds entries to the media. With newDisc the media is cleared and
	// relabeled first.
	Write(ctx context.Context, label string, newDisc bool, entries []Entry) error
	// Capacity is the media size in bytes, or 0 when unbounded.
	Capacity() int64
}

// Verifier is implemented by writers that can compare written data against
// its source.
type Verifier interface {
	Verify(ctx context.Context, entries []Entry) error
}

// NewWriter builds the writer configured by the store section.
func NewWriter(cfg schema.MediaConfig, r runner.CommandRunner) (Writer, error) {
	switch cfg.Type {
	case schema.MediaTypeDirectory, "":
		return NewDirectoryWriter(cfg.Target, cfg.Capacity), nil
	case schema.MediaTypeISO:
		return NewISOWriter(cfg.Target, cfg.ImageCommand, cfg.Capacity, r), nil
	default:
		return nil, fmt.Errorf("%w: '%s'", errUtils.ErrInvalidMediaType, cfg.Type)
	}
}

// BuildLabel returns a fresh label such as "CEDAR BACKUP 13-MAR-2024".
func BuildLabel(now time.Time) string {
	return LabelPrefix + " " + strings.ToUpper(now.Format("02-Jan-2006"))
}

// CheckInitialized fails unless the media carries a label written by Initialize.
func CheckInitialized(ctx context.Context, w Writer) error {
	label, err := w.Label(ctx)
	if err != nil {
		return err
	}
	if label == "" {
		return fmt.Errorf("%w: no media label available", errUtils.ErrMediaNotInitialized)
	}
	if !strings.HasPrefix(label, LabelPrefix) {
		return fmt.Errorf("%w: unrecognized media label '%s'", errUtils.ErrMediaNotInitialized, label)
	}
	return nil
}
