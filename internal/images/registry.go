// Package images tracks image use within one processing scope so the same
// photo never illustrates two stories in a run.
package images

import "sync"

// DedupRegistry is scope-local mutable state. Reset must be called at the
// start of each new scope; exclusions never carry across runs.
type DedupRegistry struct {
	mu   sync.Mutex
	used map[string]struct{}
}

// NewDedupRegistry builds an empty registry.
func NewDedupRegistry() *DedupRegistry {
	return &DedupRegistry{used: make(map[string]struct{})}
}

// IsUsed reports whether the URL was already assigned in this scope.
func (r *DedupRegistry) IsUsed(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.used[url]
	return ok
}

// MarkUsed records the URL as assigned.
func (r *DedupRegistry) MarkUsed(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.used[url] = struct{}{}
}

// TryMark marks the URL and reports true only if it was not already used.
// The check and the set happen under one lock.
func (r *DedupRegistry) TryMark(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.used[url]; ok {
		return false
	}
	r.used[url] = struct{}{}
	return true
}

// Used returns a snapshot of assigned URLs.
func (r *DedupRegistry) Used() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.used))
	for u := range r.used {
		out = append(out, u)
	}
	return out
}

// Reset clears the registry for a new scope.
func (r *DedupRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.used = make(map[string]struct{})
}
