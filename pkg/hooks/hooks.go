package hooks

import (
	"fmt"

	errUtils "github.com/cedar-backup/cback/errors"
	"github.com/cedar-backup/cback/pkg/schema"
)

// Hook is a shell command configured to run before or after an action.
type Hook struct {
	Action  string
	Event   HookEvent
	Command string
}

// Hooks groups the configured hooks by action name, keeping config order.
type Hooks struct {
	pre  map[string][]Hook
	post map[string][]Hook
}

// BuildHookMaps groups the configured hooks into pre- and post-action maps.
func BuildHookMaps(configured []schema.ActionHook) (*Hooks, error) {
	h := &Hooks{
		pre:  make(map[string][]Hook),
		post: make(map[string][]Hook),
	}
	for _, c := range configured {
		switch c.Type {
		case schema.HookTypePre:
			h.pre[c.Action] = append(h.pre[c.Action], Hook{Action: c.Action, Event: PreAction, Command: c.Command})
		case schema.HookTypePost:
			h.post[c.Action] = append(h.post[c.Action], Hook{Action: c.Action, Event: PostAction, Command: c.Command})
		default:
			return nil, fmt.Errorf("%w: action '%s' has hook type '%s'", errUtils.ErrInvalidHookType, c.Action, c.Type)
		}
	}
	return h, nil
}

// For returns the pre- and post-action hooks for action.
func (h *Hooks) For(action string) (pre, post []Hook) {
	if h == nil {
		return nil, nil
	}
	return h.pre[action], h.post[action]
}
