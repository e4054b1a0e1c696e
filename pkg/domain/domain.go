package domain

import (
	"sort"
	"sync"

	"github.com/stationcalyx/calyx/pkg/config"
	"github.com/stationcalyx/calyx/pkg/types"
)

// Domain is the interface all autonomous capability implementations satisfy
type Domain interface {
	// Name returns the capability name the domain is registered under
	Name() string

	// CanExecute is a pure precheck against world state: resource
	// headroom, file counts, time since last run
	CanExecute(st types.SystemState) bool

	// Execute performs the side effect and returns done, error, or skipped
	Execute(intent types.Intent) types.DomainResult

	// VerifySuccess post-checks a result and may re-read the filesystem
	VerifySuccess(result types.DomainResult) bool

	// Rollback best-effort reverses the side effect or cleans up markers
	Rollback(result types.DomainResult) types.DomainResult
}

// Registry maps capability names to domain implementations
type Registry struct {
	mu      sync.RWMutex
	domains map[string]Domain
}

// NewRegistry creates an empty domain registry
func NewRegistry() *Registry {
	return &Registry{
		domains: make(map[string]Domain),
	}
}

// DefaultRegistry creates a registry holding the built-in domains,
// all operating on the given station layout
func DefaultRegistry(layout config.Layout) *Registry {
	r := NewRegistry()
	r.Register(NewLogRotation(layout))
	r.Register(NewMetricsSummary(layout))
	r.Register(NewSchemaValidation(layout))
	r.Register(NewAutoRestart(layout))
	r.Register(NewMemoryEmbeddings(layout))
	return r
}

// Register adds a domain under its capability name, replacing any
// previous registration
func (r *Registry) Register(d Domain) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.domains[d.Name()] = d
}

// Get returns the domain registered for a capability
func (r *Registry) Get(capability string) (Domain, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.domains[capability]
	return d, ok
}

// Capabilities returns the registered capability names in sorted order
func (r *Registry) Capabilities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.domains))
	for name := range r.domains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func doneResult(detail map[string]interface{}) types.DomainResult {
	return types.DomainResult{Status: types.StatusDone, Detail: detail}
}

func skippedResult(reason string) types.DomainResult {
	return types.DomainResult{
		Status: types.StatusSkipped,
		Detail: map[string]interface{}{"reason": reason},
	}
}

func errorResult(msg string) types.DomainResult {
	return types.DomainResult{Status: types.StatusError, Error: msg}
}

// stringSlice reads a detail entry as a list of strings. Detail maps hold
// []string in-process but []interface{} after a JSON round trip.
func stringSlice(v interface{}) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
