package delegation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/acacia-sms/acacia/internal/access"
	"github.com/acacia-sms/acacia/internal/directory/routes"
	"github.com/acacia-sms/acacia/internal/platform/httpx"
	"github.com/acacia-sms/acacia/internal/shared"
)

// RouteCatalog resolves route entries for validation.
type RouteCatalog interface {
	Get(ctx context.Context, id int64) (routes.Route, error)
}

// IdentityResolver loads the access identity of an arbitrary user, so the
// delegator's own access can be checked even when an administrator creates
// the delegation on their behalf.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, userID int64) (*shared.Identity, error)
}

// AccessChecker answers whether an identity may reach a route right now.
type AccessChecker interface {
	CanAccessRoute(ctx context.Context, id *shared.Identity, routeID int64, permissionKey string, now time.Time) (bool, error)
}

// PermissionChecker answers single-permission questions, used to admit
// delegation managers to records they do not own.
type PermissionChecker interface {
	HasPermission(ctx context.Context, id *shared.Identity, key string) (bool, error)
}

// CreateInput carries the fields accepted on creation. DelegatorID zero
// means the acting user delegates their own access.
type CreateInput struct {
	DelegatorID int64
	DelegateID  int64
	RouteID     int64
	ExpiresAt   *time.Time
}

// UpdateInput carries the editable fields. ClearExpiry removes an existing
// expiry; it wins over ExpiresAt.
type UpdateInput struct {
	RouteID     *int64
	ExpiresAt   *time.Time
	ClearExpiry bool
}

// Service applies the delegation rules on top of the repository.
type Service struct {
	repo       Repository
	catalog    RouteCatalog
	identities IdentityResolver
	access     AccessChecker
	perms      PermissionChecker
	logger     *slog.Logger
	audit      *shared.AuditLogger
	now        func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, catalog RouteCatalog, identities IdentityResolver, access AccessChecker, perms PermissionChecker, logger *slog.Logger, audit *shared.AuditLogger) *Service {
	return &Service{
		repo:       repo,
		catalog:    catalog,
		identities: identities,
		access:     access,
		perms:      perms,
		logger:     logger,
		audit:      audit,
		now:        time.Now,
	}
}

// Create records a new delegation. The delegator must themselves be able to
// reach the route: nobody can delegate access they do not hold.
func (s *Service) Create(ctx context.Context, actor *shared.Identity, input CreateInput) (Delegation, error) {
	delegatorID := input.DelegatorID
	if delegatorID == 0 {
		delegatorID = actor.UserID
	}
	if delegatorID != actor.UserID {
		// Creating on someone else's behalf needs the management permission.
		manage, err := s.perms.HasPermission(ctx, actor, shared.PermDelegationsManage)
		if err != nil {
			return Delegation{}, err
		}
		if !manage {
			return Delegation{}, httpx.ErrForbidden
		}
	}
	if delegatorID == input.DelegateID {
		return Delegation{}, fmt.Errorf("%w: delegator and delegate must differ", httpx.ErrValidation)
	}
	if input.DelegateID == 0 {
		return Delegation{}, fmt.Errorf("%w: delegate required", httpx.ErrValidation)
	}

	now := s.now()
	if input.ExpiresAt != nil && !now.Before(*input.ExpiresAt) {
		return Delegation{}, fmt.Errorf("%w: expiry must be in the future", httpx.ErrValidation)
	}

	route, err := s.catalog.Get(ctx, input.RouteID)
	if err != nil {
		return Delegation{}, fmt.Errorf("%w: route not found", httpx.ErrValidation)
	}
	if !route.Active {
		return Delegation{}, fmt.Errorf("%w: route %q is inactive", httpx.ErrValidation, route.Identifier)
	}

	delegate, err := s.identities.ResolveIdentity(ctx, input.DelegateID)
	if err != nil {
		return Delegation{}, fmt.Errorf("%w: delegate not found", httpx.ErrValidation)
	}
	if !delegate.Authenticated() {
		return Delegation{}, fmt.Errorf("%w: delegate account is inactive", httpx.ErrValidation)
	}

	if err := s.checkDelegatorAccess(ctx, actor, delegatorID, route, now); err != nil {
		return Delegation{}, err
	}

	d, err := s.repo.Create(ctx, Delegation{
		DelegatorID: delegatorID,
		DelegateID:  input.DelegateID,
		RouteID:     route.ID,
		ExpiresAt:   input.ExpiresAt,
	})
	if err != nil {
		return Delegation{}, err
	}
	s.recordAudit(ctx, actor.UserID, "delegation.create", d.ID, map[string]any{
		"delegator": d.DelegatorID, "delegate": d.DelegateID, "route": route.Identifier,
	})
	return d, nil
}

// Update edits the route or expiry of an existing delegation. A route change
// re-checks the delegator's own access against the new route.
func (s *Service) Update(ctx context.Context, actor *shared.Identity, id int64, input UpdateInput) (Delegation, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Delegation{}, err
	}
	if err := s.requireOwnerOrManager(ctx, actor, existing); err != nil {
		return Delegation{}, err
	}

	now := s.now()
	updated := existing
	if input.ClearExpiry {
		updated.ExpiresAt = nil
	} else if input.ExpiresAt != nil {
		if !now.Before(*input.ExpiresAt) {
			return Delegation{}, fmt.Errorf("%w: expiry must be in the future", httpx.ErrValidation)
		}
		updated.ExpiresAt = input.ExpiresAt
	}
	if input.RouteID != nil && *input.RouteID != existing.RouteID {
		route, err := s.catalog.Get(ctx, *input.RouteID)
		if err != nil {
			return Delegation{}, fmt.Errorf("%w: route not found", httpx.ErrValidation)
		}
		if !route.Active {
			return Delegation{}, fmt.Errorf("%w: route %q is inactive", httpx.ErrValidation, route.Identifier)
		}
		if err := s.checkDelegatorAccess(ctx, actor, existing.DelegatorID, route, now); err != nil {
			return Delegation{}, err
		}
		updated.RouteID = route.ID
	}

	d, err := s.repo.Update(ctx, updated)
	if err != nil {
		return Delegation{}, err
	}
	s.recordAudit(ctx, actor.UserID, "delegation.update", d.ID, nil)
	return d, nil
}

// Revoke deactivates a delegation. Revoking an already revoked delegation
// succeeds and leaves it inactive.
func (s *Service) Revoke(ctx context.Context, actor *shared.Identity, id int64) (Delegation, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Delegation{}, err
	}
	if err := s.requireOwnerOrManager(ctx, actor, existing); err != nil {
		return Delegation{}, err
	}
	if !existing.Active {
		return existing, nil
	}
	d, err := s.repo.SetActive(ctx, id, false)
	if err != nil {
		return Delegation{}, err
	}
	s.recordAudit(ctx, actor.UserID, "delegation.revoke", d.ID, nil)
	return d, nil
}

// Reactivate turns a revoked delegation back on, re-checking the delegator's
// access first.
func (s *Service) Reactivate(ctx context.Context, actor *shared.Identity, id int64) (Delegation, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Delegation{}, err
	}
	if err := s.requireOwnerOrManager(ctx, actor, existing); err != nil {
		return Delegation{}, err
	}
	if existing.Active {
		return existing, nil
	}
	now := s.now()
	if existing.ExpiresAt != nil && !now.Before(*existing.ExpiresAt) {
		return Delegation{}, fmt.Errorf("%w: delegation has expired", httpx.ErrValidation)
	}
	route, err := s.catalog.Get(ctx, existing.RouteID)
	if err != nil {
		return Delegation{}, fmt.Errorf("%w: route not found", httpx.ErrValidation)
	}
	if !route.Active {
		return Delegation{}, fmt.Errorf("%w: route %q is inactive", httpx.ErrValidation, route.Identifier)
	}
	if err := s.checkDelegatorAccess(ctx, actor, existing.DelegatorID, route, now); err != nil {
		return Delegation{}, err
	}
	d, err := s.repo.SetActive(ctx, id, true)
	if err != nil {
		return Delegation{}, err
	}
	s.recordAudit(ctx, actor.UserID, "delegation.reactivate", d.ID, nil)
	return d, nil
}

// Get fetches a single delegation visible to the actor.
func (s *Service) Get(ctx context.Context, actor *shared.Identity, id int64) (Delegation, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return Delegation{}, err
	}
	if err := s.requireOwnerOrManager(ctx, actor, d); err != nil {
		return Delegation{}, err
	}
	return d, nil
}

// ListForUser returns delegations where the user appears as delegator or
// delegate.
func (s *Service) ListForUser(ctx context.Context, userID int64, filters ListFilters) ([]Delegation, shared.Pagination, error) {
	filters.UserID = userID
	return s.Find(ctx, filters)
}

// Find returns a filtered page of delegations.
func (s *Service) Find(ctx context.Context, filters ListFilters) ([]Delegation, shared.Pagination, error) {
	list, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(filters.Page, filters.Limit, total), nil
}

// IsDelegated reports whether a live delegation covers the user and route at
// the given instant. This is the hook the authorization middleware ORs with
// the permission evaluation.
func (s *Service) IsDelegated(ctx context.Context, userID, routeID int64, now time.Time) (bool, error) {
	return s.repo.IsDelegated(ctx, userID, routeID, now)
}

// ExpiringWithin returns active delegations expiring inside the window
// starting now.
func (s *Service) ExpiringWithin(ctx context.Context, window time.Duration) ([]Delegation, error) {
	now := s.now()
	return s.repo.ExpiringBetween(ctx, now, now.Add(window))
}

func (s *Service) checkDelegatorAccess(ctx context.Context, actor *shared.Identity, delegatorID int64, route routes.Route, now time.Time) error {
	delegator := actor
	if delegatorID != actor.UserID {
		resolved, err := s.identities.ResolveIdentity(ctx, delegatorID)
		if err != nil {
			return fmt.Errorf("%w: delegator not found", httpx.ErrValidation)
		}
		delegator = resolved
	}
	ok, err := s.access.CanAccessRoute(ctx, delegator, route.ID, route.PermissionKey, now)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: delegator has no access to route %q", httpx.ErrValidation, route.Identifier)
	}
	return nil
}

// requireOwnerOrManager restricts mutation and reads to the delegator, the
// delegate, or a holder of the delegation management permission.
func (s *Service) requireOwnerOrManager(ctx context.Context, actor *shared.Identity, d Delegation) error {
	if actor == nil || !actor.Authenticated() {
		return httpx.ErrForbidden
	}
	if actor.UserID == d.DelegatorID || actor.UserID == d.DelegateID {
		return nil
	}
	manage, err := s.perms.HasPermission(ctx, actor, shared.PermDelegationsManage)
	if err != nil {
		return err
	}
	if manage {
		return nil
	}
	return httpx.ErrForbidden
}

var _ access.DelegationSource = (*Service)(nil)

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "delegation", EntityID: strconv.FormatInt(id, 10), Meta: meta}); err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
