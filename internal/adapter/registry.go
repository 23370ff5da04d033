package adapter

import (
	"fmt"

	"github.com/yvh1223/antivirus-market-intelligence/internal/domain"
	"github.com/yvh1223/antivirus-market-intelligence/internal/ports"
)

// Registry keeps a mapping from platform names to their source adapters.
type Registry struct {
	adapters map[string]ports.SourceAdapter
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: map[string]ports.SourceAdapter{}}
}

// Register adds or replaces the adapter serving the given platform.
func (r *Registry) Register(platform string, a ports.SourceAdapter) {
	if r.adapters == nil {
		r.adapters = map[string]ports.SourceAdapter{}
	}
	r.adapters[platform] = a
}

// Resolve returns the adapter for a platform, or an error wrapping
// domain.ErrUnknownPlatform if none is registered.
func (r *Registry) Resolve(platform string) (ports.SourceAdapter, error) {
	if a, ok := r.adapters[platform]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("no adapter registered for platform %s: %w", platform, domain.ErrUnknownPlatform)
}
