package channel

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps normalized webhook paths to the ordered list of targets
// registered on them. Several accounts may share one path (multi-tenant
// endpoint); the webhook handler fans out to every authorized target.
// It must be created via NewRegistry and passed explicitly to components
// that need it.
type Registry struct {
	mu      sync.RWMutex
	targets map[string][]*Target
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		targets: map[string][]*Target{},
	}
}

// Register adds a target under its normalized path and returns an
// unregister func that removes exactly this instance. The path entry is
// pruned once its target list is empty. Unregister is idempotent.
func (r *Registry) Register(target *Target) (func(), error) {
	if target == nil {
		return nil, fmt.Errorf("target is nil")
	}
	path := NormalizePath(target.Path)
	target.Path = path
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[path] = append(r.targets[path], target)

	var once sync.Once
	return func() {
		once.Do(func() {
			r.remove(path, target)
			target.MarkStopped()
		})
	}, nil
}

func (r *Registry) remove(path string, target *Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.targets[path]
	for i, item := range list {
		if item == target {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(r.targets, path)
		return
	}
	r.targets[path] = list
}

// Lookup returns the targets registered on the given path. The returned
// slice is a copy; mutating it does not affect the registry.
func (r *Registry) Lookup(path string) []*Target {
	normalized := NormalizePath(path)
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.targets[normalized]
	if len(list) == 0 {
		return nil
	}
	items := make([]*Target, len(list))
	copy(items, list)
	return items
}

// Paths returns all registered paths in sorted order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]string, 0, len(r.targets))
	for path := range r.targets {
		items = append(items, path)
	}
	sort.Strings(items)
	return items
}

// List returns every registered target across all paths, ordered by path
// then registration order.
func (r *Registry) List() []*Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, 0, len(r.targets))
	for path := range r.targets {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	items := make([]*Target, 0)
	for _, path := range paths {
		items = append(items, r.targets[path]...)
	}
	return items
}

// Statuses returns status snapshots for every registered target.
func (r *Registry) Statuses() []TargetStatus {
	targets := r.List()
	items := make([]TargetStatus, 0, len(targets))
	for _, target := range targets {
		items = append(items, target.Status())
	}
	return items
}

// Len returns the total number of registered targets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, list := range r.targets {
		total += len(list)
	}
	return total
}
