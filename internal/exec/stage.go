package exec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/lo"

	errUtils "github.com/cedar-backup/cback/errors"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/peer"
	"github.com/cedar-backup/cback/pkg/runner"
	"github.com/cedar-backup/cback/pkg/schema"
	"github.com/cedar-backup/cback/pkg/staging"
)

// stagePeer is the part of a local or remote peer the stage action needs.
type stagePeer interface {
	name() string
	ignoreFailure() string
	ready(ctx context.Context) bool
	stage(ctx context.Context, targetDir string) (int, error)
	markStaged(ctx context.Context) error
}

type localStagePeer struct{ *peer.LocalPeer }

func (p localStagePeer) name() string                     { return p.Name }
func (p localStagePeer) ignoreFailure() string            { return p.IgnoreFailure }
func (p localStagePeer) ready(context.Context) bool       { return p.CheckCollectIndicator() }
func (p localStagePeer) markStaged(context.Context) error { return p.WriteStageIndicator() }

func (p localStagePeer) stage(_ context.Context, targetDir string) (int, error) {
	return p.StagePeer(targetDir)
}

type remoteStagePeer struct{ *peer.RemotePeer }

func (p remoteStagePeer) name() string                         { return p.Name }
func (p remoteStagePeer) ignoreFailure() string                { return p.IgnoreFailure }
func (p remoteStagePeer) ready(ctx context.Context) bool       { return p.CheckCollectIndicator(ctx) }
func (p remoteStagePeer) markStaged(ctx context.Context) error { return p.WriteStageIndicator(ctx) }

func (p remoteStagePeer) stage(ctx context.Context, targetDir string) (int, error) {
	return p.StagePeer(ctx, targetDir)
}

type stageAction struct {
	runner runner.CommandRunner
}

// Execute copies every ready peer's collected data into today's staging
// directory. The daily directory is computed once so a run that crosses
// midnight stays in one place.
func (s *stageAction) Execute(ctx context.Context, _ string, opts *schema.RunOptions, cfg *schema.Configuration) error {
	log.Debug("Executing the stage action")
	if cfg == nil || cfg.Options == nil || cfg.Stage == nil {
		return fmt.Errorf("%w: stage requires the options and stage sections", errUtils.ErrMissingSection)
	}
	options := cfg.Options
	today := now()
	dailyDir := staging.DailyDir(cfg.Stage.TargetDir, today)

	peers := s.stagePeers(cfg)
	peerDirs, err := createStagingDirs(options, dailyDir, peers)
	if err != nil {
		return err
	}

	full := opts != nil && opts.Full
	startOfWeek := staging.IsStartOfWeek(options.StartingDay, today)
	for _, p := range peers {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Info("Staging peer", "peer", p.name())
		if !p.ready(ctx) {
			if ignoreFailure(p.ignoreFailure(), full, startOfWeek) {
				log.Info("Peer was not ready to be staged", "peer", p.name())
			} else {
				log.Error("Peer was not ready to be staged", "peer", p.name())
			}
			continue
		}
		count, err := p.stage(ctx, peerDirs[p.name()])
		if err != nil {
			errUtils.LogError(err)
			continue
		}
		log.Info("Staged peer", "peer", p.name(), "files", count)
		if err := p.markStaged(ctx); err != nil {
			errUtils.LogError(err)
		}
	}

	if err := staging.WriteIndicator(dailyDir.Path, peer.StageIndicator, options.BackupUser, options.BackupGroup); err != nil {
		return err
	}
	log.Info("Executed the stage action successfully")
	return nil
}

// stagePeers returns the peers listed in the stage section, falling back to
// the peers section when the stage section lists none of that kind.
func (s *stageAction) stagePeers(cfg *schema.Configuration) []stagePeer {
	local := cfg.Stage.Local
	remote := cfg.Stage.Remote
	if cfg.Peers != nil {
		if len(local) == 0 {
			local = cfg.Peers.Local
		}
		if len(remote) == 0 {
			remote = cfg.Peers.Remote
		}
	}

	options := cfg.Options
	var peers []stagePeer
	for _, lp := range local {
		peers = append(peers, localStagePeer{&peer.LocalPeer{
			Name:          lp.Name,
			CollectDir:    lp.CollectDir,
			IgnoreFailure: lp.IgnoreFailure,
		}})
	}
	for _, rp := range remote {
		peers = append(peers, remoteStagePeer{&peer.RemotePeer{
			Name:          rp.Name,
			CollectDir:    rp.CollectDir,
			WorkingDir:    options.WorkingDir,
			RemoteUser:    lo.CoalesceOrEmpty(rp.RemoteUser, options.BackupUser),
			RcpCommand:    lo.CoalesceOrEmpty(rp.RcpCommand, options.RcpCommand),
			RshCommand:    lo.CoalesceOrEmpty(rp.RshCommand, options.RshCommand),
			CbackCommand:  lo.CoalesceOrEmpty(rp.CbackCommand, options.CbackCommand),
			IgnoreFailure: rp.IgnoreFailure,
			Runner:        s.runner,
		}})
	}
	return peers
}

// createStagingDirs creates the daily directory and one directory per peer.
func createStagingDirs(options *schema.OptionsConfig, dailyDir staging.Dir, peers []stagePeer) (map[string]string, error) {
	if info, err := os.Stat(dailyDir.Path); err == nil && info.IsDir() {
		log.Warn("Staging directory already existed", "dir", dailyDir.Path)
	} else {
		log.Debug("Creating staging directory", "dir", dailyDir.Path)
		if err := os.MkdirAll(dailyDir.Path, 0o750); err != nil {
			return nil, fmt.Errorf("unable to create staging directory: %w", err)
		}
		for _, dir := range []string{dailyDir.Path, filepath.Dir(dailyDir.Path), filepath.Dir(filepath.Dir(dailyDir.Path))} {
			if err := staging.ChangeOwnership(dir, options.BackupUser, options.BackupGroup); err != nil {
				return nil, err
			}
		}
	}

	mapping := make(map[string]string, len(peers))
	for _, p := range peers {
		peerDir := filepath.Join(dailyDir.Path, p.name())
		mapping[p.name()] = peerDir
		if info, err := os.Stat(peerDir); err == nil && info.IsDir() {
			log.Warn("Peer staging directory already existed", "dir", peerDir)
			continue
		}
		if err := os.MkdirAll(peerDir, 0o750); err != nil {
			return nil, fmt.Errorf("unable to create staging directory: %w", err)
		}
		if err := staging.ChangeOwnership(peerDir, options.BackupUser, options.BackupGroup); err != nil {
			return nil, err
		}
	}
	return mapping, nil
}

// ignoreFailure reports whether a peer that is not ready is expected to be
// missing on this run.
func ignoreFailure(mode string, full, startOfWeek bool) bool {
	switch mode {
	case "", schema.FailureModeNone:
		return false
	case schema.FailureModeAll:
		return true
	case schema.FailureModeWeekly:
		return full || startOfWeek
	case schema.FailureModeDaily:
		return !full && !startOfWeek
	default:
		return false
	}
}
