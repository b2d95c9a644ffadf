// Package exec implements the built-in cback actions and wires them, together
// with the registered extensions, into an action set.
package exec

import (
	"time"

	"github.com/cedar-backup/cback/pkg/action"
	"github.com/cedar-backup/cback/pkg/runner"
)

var now = time.Now

// BuiltInOptions adjusts how the built-in actions behave.
type BuiltInOptions struct {
	// Extensions resolves extension functions for the validate action.
	Extensions action.ExtensionResolver
	// Quiet logs validation problems at info instead of error level.
	Quiet bool
	// NewWriter overrides how store, rebuild and initialize build media writers.
	NewWriter WriterFactory
}

// BuiltInActions maps every built-in action name to its implementation.
func BuiltInActions(r runner.CommandRunner, opts BuiltInOptions) map[string]action.Action {
	m := mediaAction{runner: r, newWriter: opts.NewWriter}
	return map[string]action.Action{
		action.Collect:    &collectAction{runner: r},
		action.Stage:      &stageAction{runner: r},
		action.Store:      &storeAction{mediaAction: m},
		action.Purge:      purgeAction{},
		action.Rebuild:    &rebuildAction{mediaAction: m},
		action.Validate:   &validateAction{extensions: opts.Extensions, quiet: opts.Quiet},
		action.Initialize: &initializeAction{mediaAction: m},
	}
}
