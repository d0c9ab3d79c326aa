package externalprovider

import (
	"sort"
	"sync"

	apperrors "github.com/tendant/simple-oidc/pkg/errors"
)

// Registry holds one Bridge per enabled provider, keyed by provider name.
type Registry struct {
	bridges map[string]*Bridge
	mutex   sync.RWMutex
}

func NewRegistry(bridges ...*Bridge) *Registry {
	r := &Registry{bridges: make(map[string]*Bridge)}
	for _, b := range bridges {
		r.Register(b)
	}
	return r
}

// Register adds or replaces the bridge for its provider's name
func (r *Registry) Register(b *Bridge) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.bridges[b.Provider().Name()] = b
}

// Get returns the bridge for name, or ErrCodeProviderNotFound
func (r *Registry) Get(name string) (*Bridge, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	b, ok := r.bridges[name]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrCodeProviderNotFound, "identity provider not found: %s", name)
	}
	return b, nil
}

// Names lists the registered providers in sorted order
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	names := make([]string, 0, len(r.bridges))
	for name := range r.bridges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
