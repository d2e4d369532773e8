package users

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/acacia-sms/acacia/internal/directory/roles"
	"github.com/acacia-sms/acacia/internal/platform/httpx"
	"github.com/acacia-sms/acacia/internal/shared"
)

// RoleCatalog resolves role entries for assignment validation.
type RoleCatalog interface {
	GetByIdentifier(ctx context.Context, identifier string) (roles.Role, error)
}

// Service exposes the account directory and role assignment rules.
type Service struct {
	repo   Repository
	roles  RoleCatalog
	logger *slog.Logger
	audit  *shared.AuditLogger
}

// NewService constructs a Service.
func NewService(repo Repository, catalog RoleCatalog, logger *slog.Logger, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, roles: catalog, logger: logger, audit: audit}
}

// Get fetches a single account.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// Find returns a filtered page of the directory.
func (s *Service) Find(ctx context.Context, filters ListFilters) ([]User, shared.Pagination, error) {
	filters.Role = shared.NormalizeRoleName(filters.Role)
	list, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(filters.Page, filters.Limit, total), nil
}

// SetMainRole replaces the primary role. The role must exist and be active;
// deactivated roles stay on existing assignments but cannot be newly
// assigned.
func (s *Service) SetMainRole(ctx context.Context, actorID, userID int64, role string) (User, error) {
	identifier, err := s.assignableRole(ctx, role)
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.SetMainRole(ctx, userID, identifier)
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, actorID, "user.set_main_role", userID, map[string]any{"role": identifier})
	return user, nil
}

// AddExtraRole attaches an additional role to the account.
func (s *Service) AddExtraRole(ctx context.Context, actorID, userID int64, role string) (User, error) {
	identifier, err := s.assignableRole(ctx, role)
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.AddExtraRole(ctx, userID, identifier)
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, actorID, "user.add_extra_role", userID, map[string]any{"role": identifier})
	return user, nil
}

// RemoveExtraRole detaches an additional role from the account.
func (s *Service) RemoveExtraRole(ctx context.Context, actorID, userID int64, role string) (User, error) {
	identifier := shared.NormalizeRoleName(role)
	if identifier == "" {
		return User{}, fmt.Errorf("%w: role required", httpx.ErrValidation)
	}
	user, err := s.repo.RemoveExtraRole(ctx, userID, identifier)
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, actorID, "user.remove_extra_role", userID, map[string]any{"role": identifier})
	return user, nil
}

// ResolveIdentity loads the access identity for a user. Unknown users
// resolve to an error, inactive ones to an identity that fails the
// Authenticated check.
func (s *Service) ResolveIdentity(ctx context.Context, userID int64) (*shared.Identity, error) {
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &shared.Identity{
		UserID:     user.ID,
		MainRole:   user.MainRole,
		ExtraRoles: user.ExtraRoles,
		Active:     user.Active,
	}, nil
}

func (s *Service) assignableRole(ctx context.Context, role string) (string, error) {
	identifier := shared.NormalizeRoleName(role)
	if identifier == "" {
		return "", fmt.Errorf("%w: role required", httpx.ErrValidation)
	}
	entry, err := s.roles.GetByIdentifier(ctx, identifier)
	if err != nil {
		return "", fmt.Errorf("%w: unknown role %q", httpx.ErrValidation, identifier)
	}
	if !entry.Active {
		return "", fmt.Errorf("%w: role %q is inactive", httpx.ErrValidation, identifier)
	}
	return entry.Identifier, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, userID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "user", EntityID: strconv.FormatInt(userID, 10), Meta: meta}); err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
