package siteconfig

import (
	"fmt"
	"hash/fnv"
	"sync"
)

// ModuleRegistry deduplicates and version-stamps the ResourceLoader-style
// module links that end up in <head> (spec.md §4.7 step "metadata-
// finalization ... module links"). Grounded on the teacher's asset.go
// AssetRegistry/baseAssetCollector: content is hashed with FNV-1a and the
// hash is embedded in the link so repeat registrations of identical
// content collapse to one entry, and edits to a module naturally bust any
// downstream cache keyed on the link.
type ModuleRegistry struct {
	mu      sync.Mutex
	entries map[string]uint64 // module name -> content hash
	order   []string          // registration order, preserved for stable <head> output
}

func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{entries: make(map[string]uint64)}
}

// Register records that content (e.g. the module's JS/CSS bundle, or just
// its name if content is not locally known) is needed by the rendered
// page. Calling Register again with the same name and content is a no-op;
// calling it with changed content updates the version.
func (r *ModuleRegistry) Register(name string, content []byte) {
	h := fnv.New64a()
	_, _ = h.Write(content)
	sum := h.Sum64()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		r.order = append(r.order, name)
	}
	r.entries[name] = sum
}

// Link returns the version-stamped module link for name, or "" if name was
// never registered.
func (r *ModuleRegistry) Link(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum, ok := r.entries[name]
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s?v=%016x", name, sum)
}

// Names returns all registered module names in registration order.
func (r *ModuleRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
