package access

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/acacia-sms/acacia/internal/platform/httpx"
	"github.com/acacia-sms/acacia/internal/shared"
)

// AdminRepository extends GrantRepository with the write operations used by
// the administration surface.
type AdminRepository interface {
	GrantRepository
	SetGrant(ctx context.Context, userID int64, key string, effect Effect) (Grant, error)
	RemoveGrant(ctx context.Context, userID int64, key string) error
	RolePermissions(ctx context.Context, role string) ([]string, error)
	SetRolePermissions(ctx context.Context, role string, keys []string) error
}

// Service manages direct grants and role permission mappings.
type Service struct {
	repo   AdminRepository
	logger *slog.Logger
	audit  *shared.AuditLogger
}

// NewService constructs a Service.
func NewService(repo AdminRepository, logger *slog.Logger, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, logger: logger, audit: audit}
}

// ListUserGrants returns the stored overrides for a user.
func (s *Service) ListUserGrants(ctx context.Context, userID int64) ([]Grant, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id required", httpx.ErrValidation)
	}
	return s.repo.DirectGrants(ctx, userID)
}

// SetUserGrant stores a direct ALLOW or DENY for one (user, key) pair.
func (s *Service) SetUserGrant(ctx context.Context, actorID, userID int64, key string, effect Effect) (Grant, error) {
	key = normalizeKey(key)
	if userID <= 0 {
		return Grant{}, fmt.Errorf("%w: user id required", httpx.ErrValidation)
	}
	if key == "" {
		return Grant{}, fmt.Errorf("%w: permission key required", httpx.ErrValidation)
	}
	if !effect.Valid() {
		return Grant{}, fmt.Errorf("%w: effect must be ALLOW or DENY", httpx.ErrValidation)
	}
	grant, err := s.repo.SetGrant(ctx, userID, key, effect)
	if err != nil {
		return Grant{}, err
	}
	s.recordAudit(ctx, actorID, "grant.set", "user_grant", strconv.FormatInt(userID, 10), map[string]any{"key": key, "effect": string(effect)})
	return grant, nil
}

// RemoveUserGrant deletes a direct grant.
func (s *Service) RemoveUserGrant(ctx context.Context, actorID, userID int64, key string) error {
	key = normalizeKey(key)
	if key == "" {
		return fmt.Errorf("%w: permission key required", httpx.ErrValidation)
	}
	if err := s.repo.RemoveGrant(ctx, userID, key); err != nil {
		if err == shared.ErrNotFound {
			return fmt.Errorf("%w: grant for %q", httpx.ErrNotFound, key)
		}
		return err
	}
	s.recordAudit(ctx, actorID, "grant.remove", "user_grant", strconv.FormatInt(userID, 10), map[string]any{"key": key})
	return nil
}

// RolePermissions returns the keys configured for a role identifier.
func (s *Service) RolePermissions(ctx context.Context, role string) ([]string, error) {
	role = shared.NormalizeRoleName(role)
	if role == "" {
		return nil, fmt.Errorf("%w: role identifier required", httpx.ErrValidation)
	}
	return s.repo.RolePermissions(ctx, role)
}

// SetRolePermissions replaces the permission keys mapped to a role.
func (s *Service) SetRolePermissions(ctx context.Context, actorID int64, role string, keys []string) error {
	role = shared.NormalizeRoleName(role)
	if role == "" {
		return fmt.Errorf("%w: role identifier required", httpx.ErrValidation)
	}
	normalized := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		key = normalizeKey(key)
		if key == "" {
			return fmt.Errorf("%w: empty permission key", httpx.ErrValidation)
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		normalized = append(normalized, key)
	}
	if err := s.repo.SetRolePermissions(ctx, role, normalized); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "role.permissions.set", "role", role, map[string]any{"keys": normalized})
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: entity, EntityID: entityID, Meta: meta}); err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
