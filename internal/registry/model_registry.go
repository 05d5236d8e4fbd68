// Package registry holds the model definitions the bridge advertises on its
// OpenAI-compatible model endpoints.
package registry

import "sync"

// ModelInfo describes one model in OpenAI-compatible listing shape.
type ModelInfo struct {
	ID          string `json:"id"`
	Object      string `json:"object"`
	Created     int64  `json:"created"`
	OwnedBy     string `json:"owned_by"`
	DisplayName string `json:"display_name,omitempty"`
	Description string `json:"description,omitempty"`

	InputTokenLimit  int `json:"input_token_limit,omitempty"`
	OutputTokenLimit int `json:"output_token_limit,omitempty"`
}

// Registry is a read-mostly model catalog.
type Registry struct {
	mu     sync.RWMutex
	models []*ModelInfo
	byID   map[string]*ModelInfo
}

// NewRegistry builds a catalog from the given definitions, preserving order.
func NewRegistry(models []*ModelInfo) *Registry {
	byID := make(map[string]*ModelInfo, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}
	return &Registry{models: models, byID: byID}
}

// List returns all models in definition order.
func (r *Registry) List() []*ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ModelInfo, len(r.models))
	copy(out, r.models)
	return out
}

// Lookup returns the model with the given id, or nil.
func (r *Registry) Lookup(id string) *ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}
