package tools

import (
	"sort"
	"sync"

	"google.golang.org/genai"

	"geminilab/internal/tools/search"
)

// Registry stores tools by name for discovery and lookup.
type Registry struct {
	tools map[string]Tool
	mu    sync.RWMutex
}

// NewRegistry constructs a registry holding the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{
		tools: make(map[string]Tool),
	}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a tool under its name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get retrieves a tool by name if registered.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the names of all registered tools, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Declarations returns every registered tool as one function-declaration tool,
// or nil when the registry is empty.
func (r *Registry) Declarations() *genai.Tool {
	names := r.List()
	if len(names) == 0 {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	decls := make([]*genai.FunctionDeclaration, 0, len(names))
	for _, name := range names {
		decls = append(decls, Declaration(r.tools[name]))
	}
	return &genai.Tool{FunctionDeclarations: decls}
}

// Tools returns the tool list for a generation or Live config. Google Search
// goes first when requested.
func (r *Registry) Tools(includeSearch bool) []*genai.Tool {
	var out []*genai.Tool
	if includeSearch {
		out = append(out, search.GoogleSearchTool())
	}
	if decls := r.Declarations(); decls != nil {
		out = append(out, decls)
	}
	return out
}
