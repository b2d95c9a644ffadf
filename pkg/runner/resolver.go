package runner

import (
	"sync"

	"github.com/cedar-backup/cback/pkg/schema"
)

// PathResolver maps command names onto configured absolute paths. Commands
// without an override resolve to themselves and are looked up on PATH.
type PathResolver struct {
	mu        sync.RWMutex
	overrides map[string]string
}

// NewPathResolver builds a resolver from the configured overrides.
func NewPathResolver(overrides []schema.CommandOverride) *PathResolver {
	r := &PathResolver{overrides: make(map[string]string, len(overrides))}
	for _, o := range overrides {
		r.overrides[o.Command] = o.AbsPath
	}
	return r
}

// Resolve returns the path to execute for command. A nil resolver resolves
// every command to itself.
func (r *PathResolver) Resolve(command string) string {
	if r == nil {
		return command
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if path, ok := r.overrides[command]; ok {
		return path
	}
	return command
}

// Set adds or replaces an override.
func (r *PathResolver) Set(command, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[command] = path
}
