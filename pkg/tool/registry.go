package tool

import (
	"fmt"
	"sync"
)

// Registry holds an ordered collection of tools and answers the single
// routing question the engine asks: which capability handles this turn,
// given the session's progress. Selection is a pure function of progress;
// no model call and no randomness is involved.
type Registry struct {
	mu    sync.RWMutex
	tools []*Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a tool. A duplicate name overwrites the existing entry in
// place, keeping its position in the registration order.
func (r *Registry) Register(t *Tool) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("cannot register tool: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.tools {
		if existing.Name == t.Name {
			r.tools[i] = t
			return nil
		}
	}
	r.tools = append(r.tools, t)
	return nil
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Get returns a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.tools {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Select implements the progress gate: below full progress the extraction
// tool handles the turn; at full progress the first registered completion
// tool does. Returns nil when the form is complete and no completion tool
// is registered (the engine no-ops in that case).
func (r *Registry) Select(progress int) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := KindExtraction
	if progress >= 100 {
		want = KindCompletion
	}

	for _, t := range r.tools {
		if t.Kind == want {
			return t
		}
	}
	return nil
}
