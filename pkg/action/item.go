package action

import (
	"context"
	"fmt"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/hooks"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/runner"
	"github.com/cedar-backup/cback/pkg/schema"
)

// Items with the same index run local before managed.
const (
	localRank   = 0
	managedRank = 1
)

// Item is one entry of an execution set.
type Item interface {
	Name() string
	Index() int
	Managed() bool
	Execute(ctx context.Context, configPath string, opts *schema.RunOptions, cfg *schema.Configuration) error
	rank() int
}

// LocalItem runs an action on this host, wrapped in its hooks.
type LocalItem struct {
	name      string
	index     int
	preHooks  []hooks.Hook
	postHooks []hooks.Hook
	action    Action
	runner    runner.CommandRunner
}

// NewLocalItem creates a local item.
func NewLocalItem(index int, name string, pre, post []hooks.Hook, a Action, r runner.CommandRunner) *LocalItem {
	return &LocalItem{name: name, index: index, preHooks: pre, postHooks: post, action: a, runner: r}
}

func (i *LocalItem) Name() string  { return i.name }
func (i *LocalItem) Index() int    { return i.index }
func (i *LocalItem) Managed() bool { return false }
func (i *LocalItem) rank() int     { return localRank }

// Execute runs every pre hook, the action, then every post hook. The first
// failure stops the item.
func (i *LocalItem) Execute(ctx context.Context, configPath string, opts *schema.RunOptions, cfg *schema.Configuration) error {
	log.Debug("Executing action", "action", i.name)
	for _, h := range i.preHooks {
		if err := hooks.RunHook(ctx, i.runner, h); err != nil {
			return err
		}
	}

	if i.action == nil {
		return fmt.Errorf("%w: %s", errUtils.ErrMissingActionFunction, i.name)
	}
	log.Debug("Calling action function", "action", i.name, "index", i.index)
	if err := i.action.Execute(ctx, configPath, opts, cfg); err != nil {
		return err
	}

	for _, h := range i.postHooks {
		if err := hooks.RunHook(ctx, i.runner, h); err != nil {
			return err
		}
	}
	return nil
}

// ManagedItem runs an action on each of its managed peers.
type ManagedItem struct {
	name  string
	index int
	peers []ManagedPeer
}

// NewManagedItem creates a managed item.
func NewManagedItem(index int, name string, peers []ManagedPeer) *ManagedItem {
	return &ManagedItem{name: name, index: index, peers: peers}
}

func (i *ManagedItem) Name() string         { return i.name }
func (i *ManagedItem) Index() int           { return i.index }
func (i *ManagedItem) Managed() bool        { return true }
func (i *ManagedItem) Peers() []ManagedPeer { return i.peers }
func (i *ManagedItem) rank() int            { return managedRank }

// Execute runs the action on every peer. A peer failure is logged and the
// remaining peers still run, so one bad host cannot stop the whole backup.
func (i *ManagedItem) Execute(ctx context.Context, _ string, opts *schema.RunOptions, _ *schema.Configuration) error {
	full := opts != nil && opts.Full
	for _, p := range i.peers {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Debug("Executing managed action on peer", "action", i.name, "peer", p.PeerName())
		if err := p.ExecuteManagedAction(ctx, i.name, full); err != nil {
			log.Error("Managed action failed", "action", i.name, "peer", p.PeerName(), "error", err)
		}
	}
	return nil
}
