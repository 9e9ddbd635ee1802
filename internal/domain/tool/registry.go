// Package tool contains the tool registry: the guard's knowledge of which
// tools exist and what they do. Descriptions feed the judge prompts when an
// action is contested.
package tool

import "sync"

// Descriptor is everything a judge needs to reason about one tool call.
type Descriptor struct {
	// Name is the tool name as the host invokes it.
	Name string
	// Description is the tool's human-readable contract.
	Description string
	// Arguments is the serialized argument payload of the pending call.
	Arguments string
}

// Registration is a (name, description) pair for bulk loading.
type Registration struct {
	Name        string
	Description string
}

// Registry maps tool names to their descriptions. Writes happen at setup
// time and eagerly when an action arrives with a description attached;
// reads happen on every contested action.
type Registry struct {
	mu           sync.RWMutex
	descriptions map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{descriptions: make(map[string]string)}
}

// Register installs or replaces a tool description.
func (r *Registry) Register(name, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptions[name] = description
}

// RegisterAll installs every registration in order.
func (r *Registry) RegisterAll(tools []Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		r.descriptions[t.Name] = t.Description
	}
}

// Describe returns the registered description for the tool, or fallback
// when the tool is unknown. A non-empty fallback for an unknown tool is
// registered eagerly so later calls to the same tool resolve without it.
func (r *Registry) Describe(name, fallback string) string {
	r.mu.RLock()
	description, ok := r.descriptions[name]
	r.mu.RUnlock()
	if ok {
		return description
	}
	if fallback != "" {
		r.Register(name, fallback)
	}
	return fallback
}

// Known reports whether the tool has a registered description.
func (r *Registry) Known(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.descriptions[name]
	return ok
}

// Len reports how many tools are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.descriptions)
}
