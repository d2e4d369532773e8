package delegation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/acacia-sms/acacia/internal/directory/routes"
	"github.com/acacia-sms/acacia/internal/platform/httpx"
	"github.com/acacia-sms/acacia/internal/shared"
)

type memRepo struct {
	nextID      int64
	delegations map[int64]Delegation
}

func newMemRepo() *memRepo {
	return &memRepo{nextID: 1, delegations: make(map[int64]Delegation)}
}

func (m *memRepo) Create(ctx context.Context, d Delegation) (Delegation, error) {
	d.ID = m.nextID
	d.Active = true
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	m.nextID++
	m.delegations[d.ID] = d
	return d, nil
}

func (m *memRepo) Update(ctx context.Context, d Delegation) (Delegation, error) {
	stored, ok := m.delegations[d.ID]
	if !ok {
		return Delegation{}, httpx.ErrNotFound
	}
	stored.RouteID = d.RouteID
	stored.ExpiresAt = d.ExpiresAt
	m.delegations[d.ID] = stored
	return stored, nil
}

func (m *memRepo) SetActive(ctx context.Context, id int64, active bool) (Delegation, error) {
	stored, ok := m.delegations[id]
	if !ok {
		return Delegation{}, httpx.ErrNotFound
	}
	stored.Active = active
	m.delegations[id] = stored
	return stored, nil
}

func (m *memRepo) Get(ctx context.Context, id int64) (Delegation, error) {
	stored, ok := m.delegations[id]
	if !ok {
		return Delegation{}, httpx.ErrNotFound
	}
	return stored, nil
}

func (m *memRepo) List(ctx context.Context, filters ListFilters) ([]Delegation, int, error) {
	var list []Delegation
	for _, d := range m.delegations {
		if filters.UserID != 0 && d.DelegatorID != filters.UserID && d.DelegateID != filters.UserID {
			continue
		}
		list = append(list, d)
	}
	return list, len(list), nil
}

func (m *memRepo) IsDelegated(ctx context.Context, delegateID, routeID int64, now time.Time) (bool, error) {
	for _, d := range m.delegations {
		if d.DelegateID == delegateID && d.RouteID == routeID && d.Live(now) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) ExpiringBetween(ctx context.Context, from, to time.Time) ([]Delegation, error) {
	var list []Delegation
	for _, d := range m.delegations {
		if d.Active && d.ExpiresAt != nil && !d.ExpiresAt.Before(from) && d.ExpiresAt.Before(to) {
			list = append(list, d)
		}
	}
	return list, nil
}

type stubCatalog map[int64]routes.Route

func (c stubCatalog) Get(ctx context.Context, id int64) (routes.Route, error) {
	route, ok := c[id]
	if !ok {
		return routes.Route{}, httpx.ErrNotFound
	}
	return route, nil
}

type stubIdentities map[int64]*shared.Identity

func (s stubIdentities) ResolveIdentity(ctx context.Context, userID int64) (*shared.Identity, error) {
	id, ok := s[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return id, nil
}

// stubAccess admits user/route pairs listed in the map.
type stubAccess map[int64]map[int64]bool

func (s stubAccess) CanAccessRoute(ctx context.Context, id *shared.Identity, routeID int64, permissionKey string, now time.Time) (bool, error) {
	if id == nil {
		return false, nil
	}
	return s[id.UserID][routeID], nil
}

type stubPerms map[int64]bool

func (s stubPerms) HasPermission(ctx context.Context, id *shared.Identity, key string) (bool, error) {
	if id == nil || key != shared.PermDelegationsManage {
		return false, nil
	}
	return s[id.UserID], nil
}

var (
	teacherID = int64(10)
	deputyID  = int64(11)
	adminID   = int64(12)
	base      = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
)

func newFixture(t *testing.T) (*Service, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	catalog := stubCatalog{
		1: {ID: 1, Identifier: "boarding_roll_call", URL: "/boarding/roll-call", Active: true, PermissionKey: "boarding.roll_call"},
		2: {ID: 2, Identifier: "fees_ledger", URL: "/fees/ledger", Active: false, PermissionKey: "fees.view"},
	}
	identities := stubIdentities{
		teacherID: {UserID: teacherID, MainRole: "teacher", Active: true},
		deputyID:  {UserID: deputyID, MainRole: "deputy_head", Active: true},
		adminID:   {UserID: adminID, MainRole: "admin", Active: true},
	}
	access := stubAccess{
		teacherID: {1: true},
		adminID:   {1: true},
	}
	perms := stubPerms{adminID: true}
	svc := NewService(repo, catalog, identities, access, perms, nil, nil)
	svc.now = func() time.Time { return base }
	return svc, repo
}

func actor(userID int64, role string) *shared.Identity {
	return &shared.Identity{UserID: userID, MainRole: role, Active: true}
}

func TestCreateSelfDelegationRejected(t *testing.T) {
	svc, _ := newFixture(t)
	_, err := svc.Create(context.Background(), actor(teacherID, "teacher"), CreateInput{DelegateID: teacherID, RouteID: 1})
	if !errors.Is(err, httpx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCreateDelegatorWithoutAccessRejected(t *testing.T) {
	svc, _ := newFixture(t)
	// deputy has no access to route 1 and cannot lend it.
	_, err := svc.Create(context.Background(), actor(deputyID, "deputy_head"), CreateInput{DelegateID: teacherID, RouteID: 1})
	if !errors.Is(err, httpx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCreateInactiveRouteRejected(t *testing.T) {
	svc, _ := newFixture(t)
	_, err := svc.Create(context.Background(), actor(teacherID, "teacher"), CreateInput{DelegateID: deputyID, RouteID: 2})
	if !errors.Is(err, httpx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCreateExpiryMustBeStrictlyFuture(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	at := base
	if _, err := svc.Create(ctx, actor(teacherID, "teacher"), CreateInput{DelegateID: deputyID, RouteID: 1, ExpiresAt: &at}); !errors.Is(err, httpx.ErrValidation) {
		t.Fatalf("expiry == now must be rejected, got %v", err)
	}
	future := base.Add(time.Hour)
	if _, err := svc.Create(ctx, actor(teacherID, "teacher"), CreateInput{DelegateID: deputyID, RouteID: 1, ExpiresAt: &future}); err != nil {
		t.Fatalf("future expiry: %v", err)
	}
}

func TestCreateOnBehalfNeedsManagePermission(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	input := CreateInput{DelegatorID: teacherID, DelegateID: deputyID, RouteID: 1}
	if _, err := svc.Create(ctx, actor(deputyID, "deputy_head"), input); !errors.Is(err, httpx.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	d, err := svc.Create(ctx, actor(adminID, "admin"), input)
	if err != nil {
		t.Fatalf("admin on behalf: %v", err)
	}
	if d.DelegatorID != teacherID {
		t.Fatalf("delegator = %d, want %d", d.DelegatorID, teacherID)
	}
}

func TestIsDelegatedExpiryBoundary(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	expiry := base.Add(time.Hour)
	d, err := svc.Create(ctx, actor(teacherID, "teacher"), CreateInput{DelegateID: deputyID, RouteID: 1, ExpiresAt: &expiry})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"half way", base.Add(30 * time.Minute), true},
		{"exactly at expiry", expiry, false},
		{"past expiry", base.Add(2 * time.Hour), false},
	}
	for _, tc := range cases {
		got, err := svc.IsDelegated(ctx, deputyID, d.RouteID, tc.now)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: IsDelegated = %v, want %v", tc.name, got, tc.want)
		}
	}

	// The wrong delegate or route never matches.
	if got, _ := svc.IsDelegated(ctx, teacherID, d.RouteID, base.Add(time.Minute)); got {
		t.Fatal("delegator must not gain delegate access")
	}
	if got, _ := svc.IsDelegated(ctx, deputyID, 99, base.Add(time.Minute)); got {
		t.Fatal("delegation is scoped to one route")
	}
}

func TestRevokeIdempotent(t *testing.T) {
	svc, repo := newFixture(t)
	ctx := context.Background()

	d, err := svc.Create(ctx, actor(teacherID, "teacher"), CreateInput{DelegateID: deputyID, RouteID: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	first, err := svc.Revoke(ctx, actor(teacherID, "teacher"), d.ID)
	if err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	if first.Active {
		t.Fatal("expected inactive after revoke")
	}
	second, err := svc.Revoke(ctx, actor(teacherID, "teacher"), d.ID)
	if err != nil {
		t.Fatalf("second revoke must succeed: %v", err)
	}
	if second.Active {
		t.Fatal("expected inactive after second revoke")
	}
	if stored := repo.delegations[d.ID]; stored.Active {
		t.Fatal("stored delegation must stay inactive")
	}
}

func TestRevokeRequiresOwnershipOrManagement(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	d, err := svc.Create(ctx, actor(teacherID, "teacher"), CreateInput{DelegateID: deputyID, RouteID: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	outsider := actor(99, "teacher")
	if _, err := svc.Revoke(ctx, outsider, d.ID); !errors.Is(err, httpx.ErrForbidden) {
		t.Fatalf("outsider revoke: got %v", err)
	}
	if _, err := svc.Revoke(ctx, actor(adminID, "admin"), d.ID); err != nil {
		t.Fatalf("manager revoke: %v", err)
	}
}

func TestReactivateExpiredRejected(t *testing.T) {
	svc, repo := newFixture(t)
	ctx := context.Background()

	expiry := base.Add(time.Hour)
	d, err := svc.Create(ctx, actor(teacherID, "teacher"), CreateInput{DelegateID: deputyID, RouteID: 1, ExpiresAt: &expiry})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Revoke(ctx, actor(teacherID, "teacher"), d.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	svc.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, err := svc.Reactivate(ctx, actor(teacherID, "teacher"), d.ID); !errors.Is(err, httpx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if repo.delegations[d.ID].Active {
		t.Fatal("expired delegation must stay inactive")
	}
}

func TestListForUserCoversBothSides(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, actor(teacherID, "teacher"), CreateInput{DelegateID: deputyID, RouteID: 1}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, userID := range []int64{teacherID, deputyID} {
		list, _, err := svc.ListForUser(ctx, userID, ListFilters{})
		if err != nil {
			t.Fatalf("ListForUser(%d): %v", userID, err)
		}
		if len(list) != 1 {
			t.Fatalf("ListForUser(%d) = %d entries, want 1", userID, len(list))
		}
	}
	list, _, err := svc.ListForUser(ctx, adminID, ListFilters{})
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("uninvolved user sees %d entries, want 0", len(list))
	}
}

func TestExpiringWithin(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	soon := base.Add(12 * time.Hour)
	later := base.Add(48 * time.Hour)
	if _, err := svc.Create(ctx, actor(teacherID, "teacher"), CreateInput{DelegateID: deputyID, RouteID: 1, ExpiresAt: &soon}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, actor(adminID, "admin"), CreateInput{DelegateID: deputyID, RouteID: 1, ExpiresAt: &later}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	list, err := svc.ExpiringWithin(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("ExpiringWithin: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d expiring, want 1", len(list))
	}
	if !list[0].ExpiresAt.Equal(soon) {
		t.Fatalf("expiring at %v, want %v", list[0].ExpiresAt, soon)
	}
}
