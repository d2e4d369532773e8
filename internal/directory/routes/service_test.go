package routes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/acacia-sms/acacia/internal/directory"
	"github.com/acacia-sms/acacia/internal/platform/httpx"
)

type memRepo struct {
	nextID int64
	routes map[int64]Route
}

func newMemRepo() *memRepo {
	return &memRepo{nextID: 1, routes: make(map[int64]Route)}
}

func (m *memRepo) Create(ctx context.Context, route Route) (Route, error) {
	for _, existing := range m.routes {
		if existing.Identifier == route.Identifier {
			return Route{}, fmt.Errorf("%w: route %q", httpx.ErrDuplicate, route.Identifier)
		}
	}
	route.ID = m.nextID
	route.Active = true
	route.CreatedAt = time.Now()
	route.UpdatedAt = route.CreatedAt
	m.nextID++
	m.routes[route.ID] = route
	return route, nil
}

func (m *memRepo) Update(ctx context.Context, route Route) (Route, error) {
	stored, ok := m.routes[route.ID]
	if !ok {
		return Route{}, httpx.ErrNotFound
	}
	stored.URL = route.URL
	stored.Controller = route.Controller
	stored.PermissionKey = route.PermissionKey
	stored.Description = route.Description
	m.routes[route.ID] = stored
	return stored, nil
}

func (m *memRepo) SetActive(ctx context.Context, id int64, active bool) (Route, error) {
	stored, ok := m.routes[id]
	if !ok {
		return Route{}, httpx.ErrNotFound
	}
	stored.Active = active
	m.routes[id] = stored
	return stored, nil
}

func (m *memRepo) Get(ctx context.Context, id int64) (Route, error) {
	stored, ok := m.routes[id]
	if !ok {
		return Route{}, httpx.ErrNotFound
	}
	return stored, nil
}

func (m *memRepo) GetByIdentifier(ctx context.Context, identifier string) (Route, error) {
	for _, route := range m.routes {
		if route.Identifier == identifier {
			return route, nil
		}
	}
	return Route{}, httpx.ErrNotFound
}

func (m *memRepo) List(ctx context.Context, filters ListFilters) ([]Route, int, error) {
	var list []Route
	for _, route := range m.routes {
		list = append(list, route)
	}
	return list, len(list), nil
}

func (m *memRepo) ListActive(ctx context.Context) ([]Route, error) {
	var list []Route
	for _, route := range m.routes {
		if route.Active {
			list = append(list, route)
		}
	}
	return list, nil
}

func (m *memRepo) ActiveByURL(ctx context.Context, domain Domain, url string, excludeID int64) ([]Route, error) {
	var list []Route
	for _, route := range m.routes {
		if route.Active && route.Domain == domain && route.URL == url && route.ID != excludeID {
			list = append(list, route)
		}
	}
	return list, nil
}

func newService(t *testing.T, repo Repository) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := directory.NewListCache(client, "dir:routes:test", time.Minute)
	return NewService(repo, cache, nil, nil)
}

func TestCreateRoute(t *testing.T) {
	svc := newService(t, newMemRepo())

	route, warnings, err := svc.Create(context.Background(), 1, CreateInput{
		Identifier:    "Manage Fees",
		URL:           "/fees/manage",
		Domain:        DomainSchool,
		PermissionKey: "Fees.Manage",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if route.Identifier != "manage_fees" {
		t.Fatalf("identifier not normalised: %q", route.Identifier)
	}
	if route.PermissionKey != "fees.manage" {
		t.Fatalf("permission key not normalised: %q", route.PermissionKey)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
}

func TestCreateDuplicateIdentifier(t *testing.T) {
	svc := newService(t, newMemRepo())
	ctx := context.Background()

	if _, _, err := svc.Create(ctx, 1, CreateInput{Identifier: "manage_fees", URL: "/fees", Domain: DomainSchool}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := svc.Create(ctx, 1, CreateInput{Identifier: "manage_fees", URL: "/other", Domain: DomainSchool}); !errors.Is(err, httpx.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestDuplicateActiveURLIsWarnedNotRejected(t *testing.T) {
	svc := newService(t, newMemRepo())
	ctx := context.Background()

	if _, _, err := svc.Create(ctx, 1, CreateInput{Identifier: "fees_page", URL: "/fees", Domain: DomainSchool}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	route, warnings, err := svc.Create(ctx, 1, CreateInput{Identifier: "fees_alias", URL: "/fees", Domain: DomainSchool})
	if err != nil {
		t.Fatalf("alias create must succeed: %v", err)
	}
	if route.ID == 0 {
		t.Fatal("alias route not created")
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "fees_page") {
		t.Fatalf("expected duplicate-url warning naming fees_page, got %v", warnings)
	}

	// Same URL in the other domain is not a clash.
	_, warnings, err = svc.Create(ctx, 1, CreateInput{Identifier: "sys_fees", URL: "/fees", Domain: DomainSystem})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("cross-domain url should not warn, got %v", warnings)
	}
}

func TestUpdateImmutableFields(t *testing.T) {
	svc := newService(t, newMemRepo())
	ctx := context.Background()

	route, _, err := svc.Create(ctx, 1, CreateInput{Identifier: "admissions", URL: "/admissions", Domain: DomainSchool})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	other := "enrolment"
	if _, _, err := svc.Update(ctx, 1, route.ID, UpdateInput{Identifier: &other}); !errors.Is(err, httpx.ErrImmutable) {
		t.Fatalf("identifier change: got %v", err)
	}
	system := DomainSystem
	if _, _, err := svc.Update(ctx, 1, route.ID, UpdateInput{Domain: &system}); !errors.Is(err, httpx.ErrImmutable) {
		t.Fatalf("domain change: got %v", err)
	}
}

func TestSetActiveDoesNotDelete(t *testing.T) {
	repo := newMemRepo()
	svc := newService(t, repo)
	ctx := context.Background()

	route, _, err := svc.Create(ctx, 1, CreateInput{Identifier: "transport", URL: "/transport", Domain: DomainSchool})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.SetActive(ctx, 1, route.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	stored, err := repo.Get(ctx, route.ID)
	if err != nil {
		t.Fatalf("deactivated route must still exist: %v", err)
	}
	if stored.Active {
		t.Fatal("expected inactive")
	}
}
