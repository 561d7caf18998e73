package analyzers

import (
	"sort"
	"strings"
	"sync"
)

// Registry maps lowercased analyzer names to handlers. Lookup tries an
// exact match first, then a substring match against registered keys, and
// finally falls back to the generic handler so every report yields at
// least a heuristic finding.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	fallback Handler
}

// NewRegistry creates an empty registry with the generic fallback.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		fallback: &GenericHandler{},
	}
}

// NewDefaultRegistry registers the built-in handlers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("virustotal", &VirusTotalHandler{})
	r.Register("misp", &MISPHandler{})
	return r
}

// Register binds a handler to a name. Names are matched case-insensitively.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[strings.ToLower(name)] = h
}

// Lookup resolves the handler for an analyzer name. The boolean is false
// when only the generic fallback matched.
func (r *Registry) Lookup(name string) (Handler, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return r.fallback, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.handlers[key]; ok {
		return h, true
	}

	// Substring match: "VirusTotal_GetReport_3_1" resolves to virustotal.
	// Keys are scanned in sorted order so the result is deterministic.
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if strings.Contains(key, n) || strings.Contains(n, key) {
			return r.handlers[n], true
		}
	}

	return r.fallback, false
}

// Names lists registered analyzer names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
