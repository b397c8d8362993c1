package backend

import "sync"

// Registry tracks provisioned backends keyed by model ID.
type Registry struct {
	backends map[string]Backend
	mu       sync.RWMutex
}

// NewRegistry creates a new backend registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Backend),
	}
}

// Register adds a provisioned backend for modelID.
func (r *Registry) Register(modelID string, b Backend) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[modelID]; exists {
		return ErrAlreadyRegistered
	}
	r.backends[modelID] = b

	return nil
}

// Get retrieves the backend serving modelID.
func (r *Registry) Get(modelID string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[modelID]
	return b, ok
}

// Delete removes the backend for modelID and closes it.
func (r *Registry) Delete(modelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.backends[modelID]
	if !ok {
		return ErrNotFound
	}
	delete(r.backends, modelID)

	return b.Close()
}

// List returns the IDs of all provisioned backends.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.backends))
	for id := range r.backends {
		ids = append(ids, id)
	}

	return ids
}

// Close closes all registered backends.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.backends {
		if err := b.Close(); err != nil {
			return err
		}
	}
	r.backends = make(map[string]Backend)

	return nil
}
