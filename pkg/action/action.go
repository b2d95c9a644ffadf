// Package action decides which backup actions run, in what order, and runs
// them with their hooks on this host and on managed peers.
package action

import (
	"context"

	"github.com/cedar-backup/cback/pkg/schema"
)

// Built-in action names.
const (
	Rebuild    = "rebuild"
	Validate   = "validate"
	Initialize = "initialize"
	Collect    = "collect"
	Stage      = "stage"
	Store      = "store"
	Purge      = "purge"
	// All expands to collect, stage, store and purge.
	All = "all"
)

// Execution indices of the built-in actions in index order mode.
const (
	RebuildIndex    = 0
	ValidateIndex   = 0
	InitializeIndex = 0
	CollectIndex    = 100
	StageIndex      = 200
	StoreIndex      = 300
	PurgeIndex      = 400
)

// BuiltIns lists the built-in actions in their graph creation order.
var BuiltIns = []string{Rebuild, Validate, Initialize, Collect, Stage, Store, Purge}

// allActions is what "all" expands to.
var allActions = []string{Collect, Stage, Store, Purge}

// nonCombinable actions must be the only requested action.
var nonCombinable = map[string]bool{
	Rebuild:    true,
	Validate:   true,
	Initialize: true,
	All:        true,
}

// Action is a unit of backup work.
type Action interface {
	Execute(ctx context.Context, configPath string, opts *schema.RunOptions, cfg *schema.Configuration) error
}

// ActionFunc adapts a function to the Action interface.
type ActionFunc func(ctx context.Context, configPath string, opts *schema.RunOptions, cfg *schema.Configuration) error

// Execute calls f.
func (f ActionFunc) Execute(ctx context.Context, configPath string, opts *schema.RunOptions, cfg *schema.Configuration) error {
	return f(ctx, configPath, opts, cfg)
}

// ExtensionResolver finds the action implementing an extension function.
type ExtensionResolver interface {
	Resolve(module, function string) (Action, error)
}

// ManagedPeer is a remote peer that can run cback actions on request.
type ManagedPeer interface {
	PeerName() string
	ExecuteManagedAction(ctx context.Context, action string, full bool) error
}
