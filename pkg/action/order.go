package action

import (
	"errors"
	"fmt"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/graph"
	log "github.com/cedar-backup/cback/pkg/logger"
	"github.com/cedar-backup/cback/pkg/schema"
)

// Order modes for extended actions.
const (
	OrderModeIndex      = "index"
	OrderModeDependency = "dependency"
)

// builtInEdges are the fixed orderings between built-in actions.
var builtInEdges = [][2]string{
	{Collect, Stage},
	{Collect, Store},
	{Collect, Purge},
	{Stage, Store},
	{Stage, Purge},
	{Store, Purge},
}

// BuildIndexMap assigns an execution index to every built-in and extended
// action. Without extensions, or in index mode, built-ins keep their fixed
// indices and extensions use their configured index. In dependency mode the
// index is the 1-based position in a topological sort of the dependencies.
func BuildIndexMap(ext *schema.ExtensionsConfig) (map[string]int, error) {
	if ext == nil || len(ext.Actions) == 0 {
		log.Info("Action ordering will use 'index' order mode.")
		indexMap := builtInIndexMap()
		log.Info("Action order will be", "order", indexMap)
		return indexMap, nil
	}

	switch ext.OrderMode {
	case "", OrderModeIndex:
		log.Info("Action ordering will use 'index' order mode.")
		indexMap := builtInIndexMap()
		for _, a := range ext.Actions {
			index := 0
			if a.Index != nil {
				index = *a.Index
			}
			indexMap[a.Name] = index
		}
		log.Info("Action order will be", "order", indexMap)
		return indexMap, nil
	case OrderModeDependency:
		log.Info("Action ordering will use 'dependency' order mode.")
		return dependencyIndexMap(ext.Actions)
	default:
		return nil, fmt.Errorf("%w: '%s' (expected %s or %s)", errUtils.ErrInvalidOrderMode, ext.OrderMode, OrderModeIndex, OrderModeDependency)
	}
}

func builtInIndexMap() map[string]int {
	return map[string]int{
		Rebuild:    RebuildIndex,
		Validate:   ValidateIndex,
		Initialize: InitializeIndex,
		Collect:    CollectIndex,
		Stage:      StageIndex,
		Store:      StoreIndex,
		Purge:      PurgeIndex,
	}
}

func dependencyIndexMap(actions []schema.ExtendedAction) (map[string]int, error) {
	g, err := graph.New("dependencies")
	if err != nil {
		return nil, err
	}
	for _, name := range BuiltIns {
		if err := g.CreateVertex(name); err != nil {
			return nil, err
		}
	}
	for _, a := range actions {
		if err := g.CreateVertex(a.Name); err != nil {
			return nil, err
		}
	}
	for _, e := range builtInEdges {
		if err := g.CreateEdge(e[0], e[1]); err != nil {
			return nil, err
		}
	}

	for _, a := range actions {
		if a.Depends == nil {
			continue
		}
		for _, before := range a.Depends.RunBefore {
			if err := g.CreateEdge(a.Name, before); err != nil {
				return nil, unknownDependency(before, a.Name, err)
			}
		}
		for _, after := range a.Depends.RunAfter {
			if err := g.CreateEdge(after, a.Name); err != nil {
				return nil, unknownDependency(after, a.Name, err)
			}
		}
	}

	ordering, err := g.TopologicalSort()
	if err != nil {
		log.Error("Unable to determine proper action order due to dependency recursion.")
		log.Error("Extensions configuration is invalid (check for loops).")
		return nil, errUtils.WithHint(
			fmt.Errorf("%w: %w", errUtils.ErrDependencyRecursion, err),
			"remove one of the run_before or run_after entries that form the loop",
		)
	}

	indexMap := make(map[string]int, len(ordering))
	for i, name := range ordering {
		indexMap[name] = i + 1
	}
	log.Info("Action order will be", "order", ordering)
	return indexMap, nil
}

func unknownDependency(dependency, extension string, cause error) error {
	if !errors.Is(cause, errUtils.ErrVertexNotFound) {
		return cause
	}
	log.Error("Dependency on extension is unknown.", "dependency", dependency, "extension", extension)
	return errUtils.WithHint(
		fmt.Errorf("%w: '%s' on extension '%s'", errUtils.ErrUnknownDependency, dependency, extension),
		"check the spelling of the action name in run_before or run_after",
	)
}
