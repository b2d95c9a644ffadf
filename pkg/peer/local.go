// Package peer stages collected backup data from local and remote peers and
// drives managed actions on remote peers.
package peer

import (
	"fmt"
	"os"
	"path/filepath"

	cp "github.com/otiai10/copy"

	errUtils "github.com/cedar-backup/cback/errors"
	log "github.com/cedar-backup/cback/pkg/logger"
)

// Indicator files written into collect and staging directories.
const (
	CollectIndicator = "cback.collect"
	StageIndicator   = "cback.stage"
	StoreIndicator   = "cback.store"
)

// LocalPeer is a peer whose collect directory is on this host.
type LocalPeer struct {
	Name          string
	CollectDir    string
	IgnoreFailure string
}

// CheckCollectIndicator reports whether the peer has finished collecting.
func (p *LocalPeer) CheckCollectIndicator() bool {
	_, err := os.Stat(filepath.Join(p.CollectDir, CollectIndicator))
	return err == nil
}

// StagePeer copies the peer's collect directory into targetDir, which must
// already exist. Indicator files are not copied. It returns the number of
// files copied.
func (p *LocalPeer) StagePeer(targetDir string) (int, error) {
	if !filepath.IsAbs(targetDir) {
		return 0, fmt.Errorf("%w: target directory '%s' must be an absolute path", errUtils.ErrStagePeer, targetDir)
	}
	if !isDir(p.CollectDir) {
		return 0, fmt.Errorf("%w: collect directory '%s' is not a directory", errUtils.ErrStagePeer, p.CollectDir)
	}
	if !isDir(targetDir) {
		return 0, fmt.Errorf("%w: target directory '%s' is not a directory", errUtils.ErrStagePeer, targetDir)
	}

	count := 0
	opts := cp.Options{
		Skip: func(srcInfo os.FileInfo, src, dest string) (bool, error) {
			if srcInfo.IsDir() {
				return false, nil
			}
			if isIndicator(filepath.Base(src)) {
				return true, nil
			}
			count++
			return false, nil
		},
		PreserveTimes: true,
	}
	if err := cp.Copy(p.CollectDir, targetDir, opts); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", errUtils.ErrStagePeer, p.Name, err)
	}
	if count == 0 {
		return 0, fmt.Errorf("%w: did not copy any files from local peer %s", errUtils.ErrStagePeer, p.Name)
	}
	log.Debug("Staged local peer", "peer", p.Name, "files", count)
	return count, nil
}

// WriteStageIndicator marks the peer's collect directory as staged.
func (p *LocalPeer) WriteStageIndicator() error {
	if !isDir(p.CollectDir) {
		return fmt.Errorf("%w: collect directory '%s' is not a directory", errUtils.ErrStagePeer, p.CollectDir)
	}
	return touch(filepath.Join(p.CollectDir, StageIndicator))
}

func isIndicator(name string) bool {
	return name == CollectIndicator || name == StageIndicator || name == StoreIndicator
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func touch(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o640)
	if err != nil {
		return err
	}
	return f.Close()
}
