package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	errUtils "github.com/cedar-backup/cback/errors"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/runner"
)

// DefaultImageCommand builds ISO images when none is configured.
const DefaultImageCommand = "mkisofs"

// Offsets into an ISO 9660 image of the primary volume descriptor.
const (
	volumeDescriptorOffset = 16 * 2048
	volumeIDOffset         = volumeDescriptorOffset + 40
	volumeIDLength         = 32
)

// ISOWriter writes each disc as an ISO 9660 image file, ready to be burned
// or archived elsewhere.
type ISOWriter struct {
	Image    string
	Command  string
	capacity int64
	runner   runner.CommandRunner
}

// NewISOWriter returns a writer producing the image file at image.
func NewISOWriter(image, command string, capacity int64, r runner.CommandRunner) *ISOWriter {
	if command == "" {
		command = DefaultImageCommand
	}
	return &ISOWriter{Image: image, Command: command, capacity: capacity, runner: r}
}

func (w *ISOWriter) Capacity() int64 { return w.capacity }

func (w *ISOWriter) Initialize(ctx context.Context, label string) error {
	empty, err := os.MkdirTemp("", "cback-init-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(empty)
	return w.Write(ctx, label, true, []Entry{{Source: empty, Graft: initDir}})
}

// Label reads the volume identifier of the image.
func (w *ISOWriter) Label(_ context.Context) (string, error) {
	f, err := os.Open(w.Image)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	header := make([]byte, 6)
	if _, err := f.ReadAt(header, volumeDescriptorOffset); err != nil || !bytes.Equal(header[1:], []byte("CD001")) {
		return "", nil //nolint:nilerr // a short or foreign file has no label
	}
	id := make([]byte, volumeIDLength)
	if _, err := f.ReadAt(id, volumeIDOffset); err != nil {
		return "", err
	}
	return strings.TrimSpace(string(id)), nil
}

// Write always produces a complete new image; images cannot be appended to.
func (w *ISOWriter) Write(ctx context.Context, label string, newDisc bool, entries []Entry) error {
	if !newDisc {
		log.Debug("Rewriting ISO image in full", "image", w.Image)
	}
	if w.capacity > 0 {
		var needed int64
		for _, e := range entries {
			size, err := treeSize(e.Source)
			if err != nil {
				return err
			}
			needed += size
		}
		if needed > w.capacity {
			return fmt.Errorf("%w: need %s but the image holds %s", errUtils.ErrMediaFull,
				humanize.IBytes(uint64(needed)), humanize.IBytes(uint64(w.capacity)))
		}
	}

	args := []string{"-r", "-V", label, "-graft-points", "-o", w.Image}
	for _, e := range entries {
		args = append(args, strings.TrimSuffix(e.Graft, "/")+"/="+e.Source)
	}
	result, err := runner.RunCommandLine(ctx, w.runner, w.Command, args...)
	if err != nil {
		return err
	}
	if err := result.Err(w.Command); err != nil {
		log.Error("Image command failed", "image", w.Image, "output", strings.Join(result.Tail(10), "\n"))
		return err
	}
	log.Info("Wrote ISO image", "image", w.Image, "entries", len(entries))
	return nil
}
