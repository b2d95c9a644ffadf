package peer

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"al.essio.dev/pkg/shellescape"

	errUtils "github.com/cedar-backup/cback/errors"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/runner"
)

// Commands used when neither the peer nor the options configure one.
const (
	DefaultRcpCommand   = "/usr/bin/scp -B -q -C"
	DefaultRshCommand   = "/usr/bin/ssh"
	DefaultCbackCommand = "/usr/bin/cback"
)

// RemotePeer is a peer reached over an rcp/rsh-compatible transport.
type RemotePeer struct {
	Name          string
	CollectDir    string
	WorkingDir    string
	RemoteUser    string
	RcpCommand    string
	RshCommand    string
	CbackCommand  string
	IgnoreFailure string
	Runner        runner.CommandRunner
}

func (p *RemotePeer) rcp() string {
	if p.RcpCommand == "" {
		return DefaultRcpCommand
	}
	return p.RcpCommand
}

func (p *RemotePeer) rsh() string {
	if p.RshCommand == "" {
		return DefaultRshCommand
	}
	return p.RshCommand
}

func (p *RemotePeer) cback() string {
	if p.CbackCommand == "" {
		return DefaultCbackCommand
	}
	return p.CbackCommand
}

func (p *RemotePeer) target() string {
	if p.RemoteUser == "" {
		return p.Name
	}
	return p.RemoteUser + "@" + p.Name
}

func (p *RemotePeer) remotePath(name string) string {
	return p.target() + ":" + path.Join(p.CollectDir, name)
}

// PeerName returns the peer's host name.
func (p *RemotePeer) PeerName() string {
	return p.Name
}

// CheckCollectIndicator copies the collect indicator into the working
// directory. A failed copy means the indicator is not there.
func (p *RemotePeer) CheckCollectIndicator(ctx context.Context) bool {
	tmp, err := os.MkdirTemp(p.WorkingDir, "cback-peer-")
	if err != nil {
		log.Warn("Unable to create temporary directory", "dir", p.WorkingDir, "error", err)
		return false
	}
	defer os.RemoveAll(tmp)

	local := filepath.Join(tmp, CollectIndicator)
	result, err := runner.RunCommandLine(ctx, p.Runner, p.rcp(), p.remotePath(CollectIndicator), local)
	if err != nil || result.ExitCode != 0 {
		return false
	}
	_, err = os.Stat(local)
	return err == nil
}

// StagePeer copies the peer's collect directory into targetDir and returns the
// number of new files in targetDir.
func (p *RemotePeer) StagePeer(ctx context.Context, targetDir string) (int, error) {
	if !filepath.IsAbs(targetDir) {
		return 0, fmt.Errorf("%w: target directory '%s' must be an absolute path", errUtils.ErrStagePeer, targetDir)
	}
	if !isDir(targetDir) {
		return 0, fmt.Errorf("%w: target directory '%s' is not a directory", errUtils.ErrStagePeer, targetDir)
	}

	before, err := countFiles(targetDir)
	if err != nil {
		return 0, err
	}
	result, err := runner.RunCommandLine(ctx, p.Runner, p.rcp(), p.remotePath("*"), targetDir)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", errUtils.ErrStagePeer, p.Name, err)
	}
	if err := result.Err(p.rcp()); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", errUtils.ErrStagePeer, p.Name, err)
	}
	for _, name := range []string{CollectIndicator, StageIndicator, StoreIndicator} {
		_ = os.Remove(filepath.Join(targetDir, name))
	}

	after, err := countFiles(targetDir)
	if err != nil {
		return 0, err
	}
	count := after - before
	if count <= 0 {
		return 0, fmt.Errorf("%w: did not copy any files from remote peer %s", errUtils.ErrStagePeer, p.Name)
	}
	log.Debug("Staged remote peer", "peer", p.Name, "files", count)
	return count, nil
}

// WriteStageIndicator pushes an empty stage indicator to the peer.
func (p *RemotePeer) WriteStageIndicator(ctx context.Context) error {
	tmp, err := os.MkdirTemp(p.WorkingDir, "cback-peer-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	local := filepath.Join(tmp, StageIndicator)
	if err := touch(local); err != nil {
		return err
	}
	result, err := runner.RunCommandLine(ctx, p.Runner, p.rcp(), local, p.remotePath(StageIndicator))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errUtils.ErrStagePeer, p.Name, err)
	}
	if err := result.Err(p.rcp()); err != nil {
		return fmt.Errorf("%w: writing stage indicator on %s: %w", errUtils.ErrStagePeer, p.Name, err)
	}
	return nil
}

// ExecuteRemoteCommand runs command on the peer through the remote shell.
func (p *RemotePeer) ExecuteRemoteCommand(ctx context.Context, command string) error {
	result, err := runner.RunCommandLine(ctx, p.Runner, p.rsh(), p.target(), command)
	if err != nil {
		return err
	}
	if err := result.Err(p.rsh()); err != nil {
		return fmt.Errorf("command failed [%s %s '%s']: %w", p.rsh(), p.target(), command, err)
	}
	return nil
}

// ExecuteManagedAction runs the named cback action on the peer.
func (p *RemotePeer) ExecuteManagedAction(ctx context.Context, action string, full bool) error {
	command, err := BuildCbackCommand(p.cback(), action, full)
	if err != nil {
		return err
	}
	log.Debug("Executing managed action", "peer", p.Name, "action", action, "command", command)
	if err := p.ExecuteRemoteCommand(ctx, command); err != nil {
		return fmt.Errorf("%w: action %s on peer %s: %w", errUtils.ErrManagedActionFailed, action, p.Name, err)
	}
	return nil
}

// BuildCbackCommand builds the remote command line for a managed action.
// cbackCommand may carry its own options.
func BuildCbackCommand(cbackCommand, action string, full bool) (string, error) {
	if action == "" {
		return "", fmt.Errorf("%w: empty managed action", errUtils.ErrInvalidAction)
	}
	fields, err := runner.SplitCommandLine(cbackCommand)
	if err != nil {
		return "", err
	}
	if full {
		fields = append(fields, "--full")
	}
	fields = append(fields, action)
	return shellescape.QuoteCommand(fields), nil
}

func countFiles(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n, nil
}
