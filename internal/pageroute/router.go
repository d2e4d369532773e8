package pageroute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acacia-sms/acacia/internal/access"
	"github.com/acacia-sms/acacia/internal/directory/routes"
	"github.com/acacia-sms/acacia/internal/platform/httpx"
	"github.com/acacia-sms/acacia/internal/shared"
)

// ErrTemplateNotFound signals that neither the category template nor the
// viewer fallback exists for a route. It is distinct from a permission
// refusal so callers can render 404 instead of 403.
var ErrTemplateNotFound = errors.New("pageroute: template not found")

// RouteCatalog resolves route entries by identifier.
type RouteCatalog interface {
	GetByIdentifier(ctx context.Context, identifier string) (routes.Route, error)
}

// AccessChecker answers whether an identity may reach a route, permission
// and delegation combined.
type AccessChecker interface {
	CanAccessRoute(ctx context.Context, id *shared.Identity, routeID int64, permissionKey string, now time.Time) (bool, error)
}

// Selection is the outcome of routing one request.
type Selection struct {
	Route    string          `json:"route"`
	Category access.Category `json:"category"`
	Template string          `json:"template"`
	// Fallback is set when the viewer template was served instead of the
	// category-specific one.
	Fallback bool `json:"fallback,omitempty"`
}

// Router picks the template variant to serve for a route and access
// category. It holds no per-request state: identical inputs always select
// the identical template, so any instance behind a load balancer routes the
// same way.
type Router struct {
	registry *Registry
	resolver *access.CategoryResolver
	catalog  RouteCatalog
	access   AccessChecker
}

// NewRouter constructs a Router.
func NewRouter(registry *Registry, resolver *access.CategoryResolver, catalog RouteCatalog, checker AccessChecker) *Router {
	return &Router{registry: registry, resolver: resolver, catalog: catalog, access: checker}
}

// SelectTemplate picks the template for a route and category: the exact
// pair first, the route's viewer template second, ErrTemplateNotFound last.
// Pure lookup; no I/O.
func (r *Router) SelectTemplate(route string, category access.Category) (Selection, error) {
	if !category.Valid() {
		category = access.CategoryGuest
	}
	if template, ok := r.registry.Lookup(route, category); ok {
		return Selection{Route: route, Category: category, Template: template}, nil
	}
	if template, ok := r.registry.Lookup(route, access.CategoryViewer); ok && category != access.CategoryViewer {
		return Selection{Route: route, Category: category, Template: template, Fallback: true}, nil
	}
	return Selection{}, fmt.Errorf("%w: route %q category %s", ErrTemplateNotFound, route, category)
}

// Route resolves the full chain for a request: route lookup, access check
// (permissions ORed with delegations), category resolution and template
// selection. A deactivated route skips its category template and falls
// back to the viewer variant rather than disappearing into a 404.
func (r *Router) Route(ctx context.Context, id *shared.Identity, routeName string, now time.Time) (Selection, error) {
	route, err := r.catalog.GetByIdentifier(ctx, routeName)
	if err != nil {
		return Selection{}, fmt.Errorf("%w: route %q", ErrTemplateNotFound, routeName)
	}

	ok, err := r.access.CanAccessRoute(ctx, id, route.ID, route.PermissionKey, now)
	if err != nil {
		return Selection{}, err
	}
	if !ok {
		return Selection{}, httpx.ErrForbidden
	}

	category := r.resolver.ResolveIdentity(id)
	if !route.Active {
		if template, okv := r.registry.Lookup(route.Identifier, access.CategoryViewer); okv {
			return Selection{Route: route.Identifier, Category: category, Template: template, Fallback: true}, nil
		}
		return Selection{}, fmt.Errorf("%w: route %q is inactive", ErrTemplateNotFound, routeName)
	}
	return r.SelectTemplate(route.Identifier, category)
}
