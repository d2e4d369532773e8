package roles

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/acacia-sms/acacia/internal/directory"
	"github.com/acacia-sms/acacia/internal/platform/httpx"
)

type memRepo struct {
	nextID int64
	roles  map[int64]Role
}

func newMemRepo() *memRepo {
	return &memRepo{nextID: 1, roles: make(map[int64]Role)}
}

func (m *memRepo) Create(ctx context.Context, role Role) (Role, error) {
	for _, existing := range m.roles {
		if existing.Identifier == role.Identifier {
			return Role{}, fmt.Errorf("%w: role %q", httpx.ErrDuplicate, role.Identifier)
		}
	}
	role.ID = m.nextID
	role.Active = true
	role.CreatedAt = time.Now()
	role.UpdatedAt = role.CreatedAt
	m.nextID++
	m.roles[role.ID] = role
	return role, nil
}

func (m *memRepo) Update(ctx context.Context, role Role) (Role, error) {
	stored, ok := m.roles[role.ID]
	if !ok {
		return Role{}, httpx.ErrNotFound
	}
	stored.Name = role.Name
	stored.Description = role.Description
	stored.Icon = role.Icon
	stored.Color = role.Color
	stored.UpdatedAt = time.Now()
	m.roles[role.ID] = stored
	return stored, nil
}

func (m *memRepo) SetActive(ctx context.Context, id int64, active bool) (Role, error) {
	stored, ok := m.roles[id]
	if !ok {
		return Role{}, httpx.ErrNotFound
	}
	stored.Active = active
	m.roles[id] = stored
	return stored, nil
}

func (m *memRepo) Get(ctx context.Context, id int64) (Role, error) {
	stored, ok := m.roles[id]
	if !ok {
		return Role{}, httpx.ErrNotFound
	}
	return stored, nil
}

func (m *memRepo) GetByIdentifier(ctx context.Context, identifier string) (Role, error) {
	for _, role := range m.roles {
		if role.Identifier == identifier {
			return role, nil
		}
	}
	return Role{}, httpx.ErrNotFound
}

func (m *memRepo) List(ctx context.Context, filters ListFilters) ([]Role, int, error) {
	var list []Role
	for _, role := range m.roles {
		list = append(list, role)
	}
	return list, len(list), nil
}

func (m *memRepo) ListActive(ctx context.Context) ([]Role, error) {
	var list []Role
	for _, role := range m.roles {
		if role.Active {
			list = append(list, role)
		}
	}
	return list, nil
}

func newService(t *testing.T, repo Repository) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := directory.NewListCache(client, "dir:roles:test", time.Minute)
	return NewService(repo, cache, nil, nil)
}

func TestCreateNormalisesIdentifierAndName(t *testing.T) {
	svc := newService(t, newMemRepo())

	role, err := svc.Create(context.Background(), 1, CreateInput{Identifier: "Deputy Headteacher", Domain: DomainSchool})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if role.Identifier != "deputy_headteacher" {
		t.Fatalf("identifier not normalised: %q", role.Identifier)
	}
	if role.Name != "Deputy Headteacher" {
		t.Fatalf("display name not derived: %q", role.Name)
	}
	if !role.Active {
		t.Fatal("new roles should start active")
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc := newService(t, newMemRepo())

	if _, err := svc.Create(context.Background(), 1, CreateInput{Identifier: " ", Domain: DomainSchool}); !errors.Is(err, httpx.ErrValidation) {
		t.Fatalf("empty identifier: got %v", err)
	}
	if _, err := svc.Create(context.Background(), 1, CreateInput{Identifier: "teacher", Domain: "GLOBAL"}); !errors.Is(err, httpx.ErrValidation) {
		t.Fatalf("bad domain: got %v", err)
	}
}

func TestCreateDuplicateLeavesExistingUntouched(t *testing.T) {
	repo := newMemRepo()
	svc := newService(t, repo)

	first, err := svc.Create(context.Background(), 1, CreateInput{Identifier: "teacher", Name: "Teacher", Domain: DomainSchool})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = svc.Create(context.Background(), 1, CreateInput{Identifier: "Teacher", Name: "Other Name", Domain: DomainSchool})
	if !errors.Is(err, httpx.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	stored, err := repo.Get(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Name != "Teacher" {
		t.Fatalf("duplicate create mutated existing entry: %q", stored.Name)
	}
}

func TestUpdateImmutableFields(t *testing.T) {
	svc := newService(t, newMemRepo())

	role, err := svc.Create(context.Background(), 1, CreateInput{Identifier: "librarian", Domain: DomainSchool})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	other := "head_librarian"
	if _, err := svc.Update(context.Background(), 1, role.ID, UpdateInput{Identifier: &other}); !errors.Is(err, httpx.ErrImmutable) {
		t.Fatalf("identifier change: got %v", err)
	}
	system := DomainSystem
	if _, err := svc.Update(context.Background(), 1, role.ID, UpdateInput{Domain: &system}); !errors.Is(err, httpx.ErrImmutable) {
		t.Fatalf("domain change: got %v", err)
	}

	// Spelling the current values is not a change.
	same := "Librarian"
	school := DomainSchool
	if _, err := svc.Update(context.Background(), 1, role.ID, UpdateInput{Identifier: &same, Domain: &school}); err != nil {
		t.Fatalf("no-op identifier/domain: %v", err)
	}
}

func TestUpdateUnknownIDIsNotFound(t *testing.T) {
	svc := newService(t, newMemRepo())
	name := "X"
	if _, err := svc.Update(context.Background(), 1, 99, UpdateInput{Name: &name}); !errors.Is(err, httpx.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetActiveOnlyTogglesFlag(t *testing.T) {
	repo := newMemRepo()
	svc := newService(t, repo)

	role, err := svc.Create(context.Background(), 1, CreateInput{Identifier: "driver", Domain: DomainSchool})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	updated, err := svc.SetActive(context.Background(), 1, role.ID, false)
	if err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if updated.Active {
		t.Fatal("expected inactive")
	}
	if updated.Identifier != role.Identifier || updated.Domain != role.Domain {
		t.Fatal("SetActive must not modify other fields")
	}
}

func TestActiveRolesCacheWriteThrough(t *testing.T) {
	repo := newMemRepo()
	svc := newService(t, repo)
	ctx := context.Background()

	if _, err := svc.Create(ctx, 1, CreateInput{Identifier: "teacher", Domain: DomainSchool}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := svc.ActiveRoles(ctx)
	if err != nil {
		t.Fatalf("ActiveRoles: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 role, got %d", len(first))
	}

	// A direct repository write without invalidation stays invisible.
	if _, err := repo.Create(ctx, Role{Identifier: "sneaky", Domain: DomainSchool}); err != nil {
		t.Fatalf("repo create: %v", err)
	}
	cached, err := svc.ActiveRoles(ctx)
	if err != nil {
		t.Fatalf("ActiveRoles: %v", err)
	}
	if len(cached) != 1 {
		t.Fatalf("expected cached listing of 1, got %d", len(cached))
	}

	// A service write invalidates synchronously.
	if _, err := svc.Create(ctx, 1, CreateInput{Identifier: "matron", Domain: DomainSchool}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	fresh, err := svc.ActiveRoles(ctx)
	if err != nil {
		t.Fatalf("ActiveRoles: %v", err)
	}
	if len(fresh) != 3 {
		t.Fatalf("expected refreshed listing of 3, got %d", len(fresh))
	}
}
