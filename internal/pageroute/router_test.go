package pageroute

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/acacia-sms/acacia/internal/access"
	"github.com/acacia-sms/acacia/internal/directory/routes"
	"github.com/acacia-sms/acacia/internal/platform/httpx"
	"github.com/acacia-sms/acacia/internal/shared"
)

func TestNewRegistryRejectsBadBindings(t *testing.T) {
	cases := []struct {
		name     string
		bindings []Binding
	}{
		{"unknown category", []Binding{{Route: "dashboard", Category: "superuser", Template: "t.html"}}},
		{"empty template", []Binding{{Route: "dashboard", Category: access.CategoryAdmin, Template: ""}}},
		{"empty route", []Binding{{Route: "", Category: access.CategoryAdmin, Template: "t.html"}}},
		{"conflicting binding", []Binding{
			{Route: "dashboard", Category: access.CategoryAdmin, Template: "a.html"},
			{Route: "dashboard", Category: access.CategoryAdmin, Template: "b.html"},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewRegistry(tc.bindings); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDefaultBindingsLoad(t *testing.T) {
	if _, err := NewRegistry(DefaultBindings()); err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	registry, err := NewRegistry(DefaultBindings())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return NewRouter(registry, access.NewCategoryResolver(nil), nil, nil)
}

func TestSelectTemplateFallsBackToViewer(t *testing.T) {
	router := newTestRouter(t)

	// manage_fees binds admin, manager and viewer but not operator.
	selection, err := router.SelectTemplate("manage_fees", access.CategoryOperator)
	if err != nil {
		t.Fatalf("SelectTemplate: %v", err)
	}
	if selection.Template != "templates/manage_fees/viewer.html" {
		t.Fatalf("template = %q, want viewer fallback", selection.Template)
	}
	if !selection.Fallback {
		t.Fatal("expected fallback selection")
	}

	direct, err := router.SelectTemplate("manage_fees", access.CategoryManager)
	if err != nil {
		t.Fatalf("SelectTemplate: %v", err)
	}
	if direct.Template != "templates/manage_fees/manager.html" || direct.Fallback {
		t.Fatalf("manager selection = %+v", direct)
	}
}

func TestSelectTemplateIsDeterministic(t *testing.T) {
	router := newTestRouter(t)
	for _, category := range append(access.Categories(), access.Category("")) {
		first, err1 := router.SelectTemplate("manage_fees", category)
		second, err2 := router.SelectTemplate("manage_fees", category)
		if (err1 == nil) != (err2 == nil) || first != second {
			t.Fatalf("category %q: non-deterministic selection (%+v/%v vs %+v/%v)", category, first, err1, second, err2)
		}
	}
}

func TestSelectTemplateNotFound(t *testing.T) {
	router := newTestRouter(t)
	if _, err := router.SelectTemplate("no_such_page", access.CategoryAdmin); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestSelectTemplateInvalidCategoryTreatedAsGuest(t *testing.T) {
	router := newTestRouter(t)
	selection, err := router.SelectTemplate("dashboard", "superuser")
	if err != nil {
		t.Fatalf("SelectTemplate: %v", err)
	}
	if selection.Category != access.CategoryGuest || selection.Template != "templates/dashboard/guest.html" {
		t.Fatalf("selection = %+v, want guest dashboard", selection)
	}
}

type stubCatalog map[string]routes.Route

func (c stubCatalog) GetByIdentifier(ctx context.Context, identifier string) (routes.Route, error) {
	route, ok := c[identifier]
	if !ok {
		return routes.Route{}, httpx.ErrNotFound
	}
	return route, nil
}

type stubAccess map[int64]bool

func (s stubAccess) CanAccessRoute(ctx context.Context, id *shared.Identity, routeID int64, permissionKey string, now time.Time) (bool, error) {
	if id == nil {
		return false, nil
	}
	return s[routeID], nil
}

func TestRouteDistinguishes404From403(t *testing.T) {
	registry, err := NewRegistry(DefaultBindings())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	catalog := stubCatalog{
		"manage_fees": {ID: 1, Identifier: "manage_fees", Active: true, PermissionKey: "fees.manage"},
	}
	router := NewRouter(registry, access.NewCategoryResolver(nil), catalog, stubAccess{})
	id := &shared.Identity{UserID: 7, MainRole: "accountant", Active: true}

	if _, err := router.Route(context.Background(), id, "missing_page", time.Now()); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("unknown route: got %v, want ErrTemplateNotFound", err)
	}
	if _, err := router.Route(context.Background(), id, "manage_fees", time.Now()); !errors.Is(err, httpx.ErrForbidden) {
		t.Fatalf("no access: got %v, want ErrForbidden", err)
	}
}

func TestRouteInactiveRouteFallsBack(t *testing.T) {
	registry, err := NewRegistry(DefaultBindings())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	catalog := stubCatalog{
		"manage_fees": {ID: 1, Identifier: "manage_fees", Active: false, PermissionKey: "fees.manage"},
	}
	router := NewRouter(registry, access.NewCategoryResolver(nil), catalog, stubAccess{1: true})
	id := &shared.Identity{UserID: 7, MainRole: "accountant", Active: true}

	selection, err := router.Route(context.Background(), id, "manage_fees", time.Now())
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if !selection.Fallback || selection.Template != "templates/manage_fees/viewer.html" {
		t.Fatalf("selection = %+v, want viewer fallback", selection)
	}
}

func TestRouteServesGuestOnPublicRoute(t *testing.T) {
	registry, err := NewRegistry(DefaultBindings())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	catalog := stubCatalog{
		"dashboard":   {ID: 2, Identifier: "dashboard", Active: true},
		"manage_fees": {ID: 1, Identifier: "manage_fees", Active: true, PermissionKey: "fees.manage"},
	}
	router := NewRouter(registry, access.NewCategoryResolver(nil), catalog, access.Middleware{})

	selection, err := router.Route(context.Background(), nil, "dashboard", time.Now())
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if selection.Category != access.CategoryGuest || selection.Template != "templates/dashboard/guest.html" {
		t.Fatalf("selection = %+v, want guest dashboard", selection)
	}

	if _, err := router.Route(context.Background(), nil, "manage_fees", time.Now()); !errors.Is(err, httpx.ErrForbidden) {
		t.Fatalf("keyed route without identity: got %v, want ErrForbidden", err)
	}
}

func TestRouteResolvesCategoryFromIdentity(t *testing.T) {
	registry, err := NewRegistry(DefaultBindings())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	catalog := stubCatalog{
		"dashboard": {ID: 2, Identifier: "dashboard", Active: true},
	}
	router := NewRouter(registry, access.NewCategoryResolver(nil), catalog, stubAccess{2: true})

	teacher := &shared.Identity{UserID: 3, MainRole: "teacher", Active: true}
	selection, err := router.Route(context.Background(), teacher, "dashboard", time.Now())
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if selection.Category != access.CategoryOperator || selection.Template != "templates/dashboard/operator.html" {
		t.Fatalf("selection = %+v, want operator dashboard", selection)
	}
}
