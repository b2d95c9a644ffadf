package extend

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	errUtils "github.com/cedar-backup/cback/errors"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/schema"
	"github.com/cedar-backup/cback/pkg/staging"
)

// now is replaced in tests.
var now = time.Now

// outputFile is a dump file being written, compressed or not.
type outputFile struct {
	Path string
	file *os.File
	gz   *gzip.Writer
}

// createOutput creates dir/name, adding ".gz" and compressing unless
// compress is "none".
func createOutput(dir, name, compress string) (*outputFile, error) {
	gzipped := compress != schema.CompressNone
	path := filepath.Join(dir, name)
	if gzipped {
		path += ".gz"
	}
	log.Debug("Dump file will be", "path", path)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, err
	}
	out := &outputFile{Path: path, file: f}
	if gzipped {
		out.gz = gzip.NewWriter(f)
	}
	return out, nil
}

func (o *outputFile) Write(p []byte) (int, error) {
	if o.gz != nil {
		return o.gz.Write(p)
	}
	return o.file.Write(p)
}

func (o *outputFile) Close() error {
	if o.gz != nil {
		if err := o.gz.Close(); err != nil {
			o.file.Close()
			return err
		}
	}
	return o.file.Close()
}

// finish closes the output and hands it to the backup user.
func (o *outputFile) finish(options *schema.OptionsConfig) error {
	if err := o.Close(); err != nil {
		return err
	}
	return staging.ChangeOwnership(o.Path, options.BackupUser, options.BackupGroup)
}

// discard closes and removes a partly written output.
func (o *outputFile) discard() {
	_ = o.Close()
	_ = os.Remove(o.Path)
}

// copyInto appends the contents of src to the output.
func (o *outputFile) copyInto(src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = io.Copy(o, in)
	return err
}

func validateCompress(mode string) error {
	switch mode {
	case "", schema.CompressGzip, schema.CompressNone:
		return nil
	default:
		return fmt.Errorf("%w: compress mode '%s' must be gzip or none", errUtils.ErrInvalidConfig, mode)
	}
}
