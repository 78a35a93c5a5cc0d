package router

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Tool is one registered, independently routed feature.
type Tool struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	// Template is the fragment location handed to the Fetcher.
	Template string `yaml:"template"`
	// Help is an optional document location rendered below the fragment.
	Help string `yaml:"help,omitempty"`
}

// Registry is the fixed, ordered set of tools. It is built once at startup
// and never changes afterwards.
type Registry struct {
	tools []Tool
	byID  map[string]int
}

// NewRegistry validates tools and returns them as a Registry.
func NewRegistry(tools ...Tool) (*Registry, error) {
	reg := &Registry{byID: make(map[string]int, len(tools))}
	for _, t := range tools {
		if t.ID == "" {
			return nil, fmt.Errorf("tool with title %q has no id", t.Title)
		}
		if t.Template == "" {
			return nil, fmt.Errorf("tool %q has no template", t.ID)
		}
		if _, dup := reg.byID[t.ID]; dup {
			return nil, fmt.Errorf("tool %q registered twice", t.ID)
		}
		if t.Title == "" {
			t.Title = t.ID
		}
		reg.byID[t.ID] = len(reg.tools)
		reg.tools = append(reg.tools, t)
	}
	return reg, nil
}

// manifest is the on-disk layout of the tool list.
type manifest struct {
	Tools []Tool `yaml:"tools"`
}

// ParseManifest reads a YAML tool list of the form
//
//	tools:
//	  - id: peeler
//	    title: Peeled Files
//	    template: peeler.html
func ParseManifest(data []byte) (*Registry, error) {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse tool manifest: %w", err)
	}
	if len(m.Tools) == 0 {
		return nil, fmt.Errorf("tool manifest lists no tools")
	}
	return NewRegistry(m.Tools...)
}

// Lookup returns the tool registered under id.
func (r *Registry) Lookup(id string) (Tool, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// IDs returns the registered tool ids in registration order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.tools))
	for i, t := range r.tools {
		ids[i] = t.ID
	}
	return ids
}
