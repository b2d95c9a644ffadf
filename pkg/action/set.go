package action

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/hooks"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/runner"
	"github.com/cedar-backup/cback/pkg/schema"
)

// PeerFactory builds the managed peer for a remote peer configuration whose
// user and commands have already been defaulted from the options section.
type PeerFactory func(cfg schema.RemotePeer, workingDir string) ManagedPeer

// SetParams holds everything needed to build an execution set.
type SetParams struct {
	// Actions are the requested action names, in command line order.
	Actions []string
	Config  *schema.Configuration
	Local   bool
	Managed bool
	// BuiltIns maps every built-in action name to its implementation.
	BuiltIns   map[string]Action
	Extensions ExtensionResolver
	Runner     runner.CommandRunner
	NewPeer    PeerFactory
}

// Set is an ordered list of items to execute.
type Set struct {
	items []Item
}

// NewSet validates the requested actions and builds the ordered execution set.
func NewSet(p SetParams) (*Set, error) {
	cfg := p.Config
	if cfg == nil {
		cfg = &schema.Configuration{}
	}
	extensionNames := deriveExtensionNames(cfg.Extensions)

	if err := validateActions(p.Actions, extensionNames); err != nil {
		return nil, err
	}

	options := cfg.Options
	if options == nil {
		options = &schema.OptionsConfig{}
	}
	hookMap, err := hooks.BuildHookMaps(options.Hooks)
	if err != nil {
		return nil, err
	}
	functionMap, err := buildFunctionMap(p.BuiltIns, cfg.Extensions, p.Extensions)
	if err != nil {
		return nil, err
	}
	indexMap, err := BuildIndexMap(cfg.Extensions)
	if err != nil {
		return nil, err
	}
	peerMap := buildPeerMap(options, cfg.Peers, p.NewPeer)

	actionMap := buildActionMap(p, extensionNames, functionMap, indexMap, hookMap, peerMap)

	var items []Item
	for _, name := range p.Actions {
		items = append(items, actionMap[name]...)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Index() != items[j].Index() {
			return items[i].Index() < items[j].Index()
		}
		return items[i].rank() < items[j].rank()
	})
	return &Set{items: items}, nil
}

// Items returns the items in execution order.
func (s *Set) Items() []Item {
	return s.items
}

// Names returns the item names in execution order.
func (s *Set) Names() []string {
	return lo.Map(s.items, func(i Item, _ int) string { return i.Name() })
}

// Execute runs every item in order and stops at the first error.
func (s *Set) Execute(ctx context.Context, configPath string, opts *schema.RunOptions, cfg *schema.Configuration) error {
	for _, item := range s.items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := item.Execute(ctx, configPath, opts, cfg); err != nil {
			return err
		}
	}
	return nil
}

func deriveExtensionNames(ext *schema.ExtensionsConfig) []string {
	if ext == nil {
		return nil
	}
	return lo.Map(ext.Actions, func(a schema.ExtendedAction, _ int) string { return a.Name })
}

func validateActions(actions []string, extensionNames []string) error {
	if len(actions) == 0 {
		return errUtils.WithHint(errUtils.ErrNoActions, "specify at least one action, for example 'cback all'")
	}
	for _, name := range actions {
		if name != All && !lo.Contains(BuiltIns, name) && !lo.Contains(extensionNames, name) {
			return fmt.Errorf("%w: '%s'", errUtils.ErrInvalidAction, name)
		}
	}
	for _, name := range actions {
		if nonCombinable[name] && len(actions) > 1 {
			return fmt.Errorf("%w: '%s' cannot be combined with other actions", errUtils.ErrNonCombinableAction, name)
		}
	}
	return nil
}

func buildFunctionMap(builtIns map[string]Action, ext *schema.ExtensionsConfig, resolver ExtensionResolver) (map[string]Action, error) {
	functionMap := make(map[string]Action, len(builtIns))
	for name, a := range builtIns {
		functionMap[name] = a
	}
	if ext == nil {
		return functionMap, nil
	}
	for _, a := range ext.Actions {
		if resolver == nil {
			return nil, fmt.Errorf("%w: %s.%s", errUtils.ErrUnknownExtensionFunction, a.Module, a.Function)
		}
		fn, err := resolver.Resolve(a.Module, a.Function)
		if err != nil {
			return nil, fmt.Errorf("extension '%s': %w", a.Name, err)
		}
		functionMap[a.Name] = fn
	}
	return functionMap, nil
}

// buildPeerMap maps each managed action name to the peers it runs on.
func buildPeerMap(options *schema.OptionsConfig, peers *schema.PeersConfig, newPeer PeerFactory) map[string][]ManagedPeer {
	peerMap := make(map[string][]ManagedPeer)
	if peers == nil || newPeer == nil {
		return peerMap
	}
	seen := make(map[string]map[string]bool)
	for _, rp := range peers.Remote {
		if !rp.Managed {
			continue
		}
		resolved := rp
		resolved.RemoteUser = lo.CoalesceOrEmpty(rp.RemoteUser, options.BackupUser)
		resolved.RshCommand = lo.CoalesceOrEmpty(rp.RshCommand, options.RshCommand)
		resolved.CbackCommand = lo.CoalesceOrEmpty(rp.CbackCommand, options.CbackCommand)
		managedActions := rp.ManagedActions
		if len(managedActions) == 0 {
			managedActions = options.ManagedActions
		}

		mp := newPeer(resolved, options.WorkingDir)
		for _, name := range managedActions {
			if seen[name] == nil {
				seen[name] = make(map[string]bool)
			}
			if seen[name][rp.Name] {
				continue
			}
			seen[name][rp.Name] = true
			peerMap[name] = append(peerMap[name], mp)
		}
	}
	return peerMap
}

func buildActionMap(
	p SetParams,
	extensionNames []string,
	functionMap map[string]Action,
	indexMap map[string]int,
	hookMap *hooks.Hooks,
	peerMap map[string][]ManagedPeer,
) map[string][]Item {
	actionMap := make(map[string][]Item)
	for _, name := range append(append([]string{}, extensionNames...), BuiltIns...) {
		index := indexMap[name]
		if p.Local {
			pre, post := hookMap.For(name)
			actionMap[name] = append(actionMap[name], NewLocalItem(index, name, pre, post, functionMap[name], p.Runner))
		}
		if p.Managed {
			if peers, ok := peerMap[name]; ok {
				actionMap[name] = append(actionMap[name], NewManagedItem(index, name, peers))
			}
		}
	}
	for _, name := range allActions {
		actionMap[All] = append(actionMap[All], actionMap[name]...)
	}
	log.Debug("Built action map", "actions", len(actionMap))
	return actionMap
}
