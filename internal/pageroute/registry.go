package pageroute

import (
	"fmt"
	"sort"

	"github.com/acacia-sms/acacia/internal/access"
)

// Binding maps one route and access category to a template path.
type Binding struct {
	Route    string
	Category access.Category
	Template string
}

// Registry is the typed route x category template table. It is built once
// at startup; lookups never touch shared mutable state, so a Registry is
// safe for concurrent use.
type Registry struct {
	templates map[string]map[access.Category]string
}

// NewRegistry validates the bindings and builds the table. Unknown
// categories, empty template paths and conflicting bindings are rejected
// here, at load time, so a bad table can never reach request handling.
func NewRegistry(bindings []Binding) (*Registry, error) {
	templates := make(map[string]map[access.Category]string)
	for _, b := range bindings {
		if b.Route == "" {
			return nil, fmt.Errorf("pageroute: binding with empty route (template %q)", b.Template)
		}
		if !b.Category.Valid() {
			return nil, fmt.Errorf("pageroute: route %q: unknown category %q", b.Route, b.Category)
		}
		if b.Template == "" {
			return nil, fmt.Errorf("pageroute: route %q: empty template for category %s", b.Route, b.Category)
		}
		byCategory, ok := templates[b.Route]
		if !ok {
			byCategory = make(map[access.Category]string)
			templates[b.Route] = byCategory
		}
		if existing, ok := byCategory[b.Category]; ok && existing != b.Template {
			return nil, fmt.Errorf("pageroute: route %q: category %s bound to both %q and %q", b.Route, b.Category, existing, b.Template)
		}
		byCategory[b.Category] = b.Template
	}
	return &Registry{templates: templates}, nil
}

// Lookup returns the template bound to the exact route and category pair.
func (r *Registry) Lookup(route string, category access.Category) (string, bool) {
	template, ok := r.templates[route][category]
	return template, ok
}

// Routes returns the bound route names, sorted, for diagnostics.
func (r *Registry) Routes() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
