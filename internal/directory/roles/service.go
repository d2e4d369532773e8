package roles

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/acacia-sms/acacia/internal/directory"
	"github.com/acacia-sms/acacia/internal/platform/httpx"
	"github.com/acacia-sms/acacia/internal/shared"
)

// CreateInput carries the fields accepted on creation.
type CreateInput struct {
	Identifier  string
	Name        string
	Domain      Domain
	Description string
	Icon        string
	Color       string
}

// UpdateInput carries the mutable fields. Identifier and Domain are present
// only so attempts to change them can be rejected explicitly.
type UpdateInput struct {
	Name        *string
	Description *string
	Icon        *string
	Color       *string
	Identifier  *string
	Domain      *Domain
}

// Service applies catalog rules on top of the repository.
type Service struct {
	repo   Repository
	cache  *directory.ListCache
	logger *slog.Logger
	audit  *shared.AuditLogger
	titler cases.Caser
}

// NewService constructs a Service.
func NewService(repo Repository, cache *directory.ListCache, logger *slog.Logger, audit *shared.AuditLogger) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		logger: logger,
		audit:  audit,
		titler: cases.Title(language.English),
	}
}

// Create adds a role to the catalog. The identifier is normalised before
// storage; a missing display name is derived from it.
func (s *Service) Create(ctx context.Context, actorID int64, input CreateInput) (Role, error) {
	identifier := shared.NormalizeRoleName(input.Identifier)
	if identifier == "" {
		return Role{}, fmt.Errorf("%w: identifier required", httpx.ErrValidation)
	}
	if !input.Domain.Valid() {
		return Role{}, fmt.Errorf("%w: domain must be SYSTEM or SCHOOL", httpx.ErrValidation)
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = s.titler.String(strings.ReplaceAll(identifier, "_", " "))
	}

	role, err := s.repo.Create(ctx, Role{
		Identifier:  identifier,
		Name:        name,
		Domain:      input.Domain,
		Description: strings.TrimSpace(input.Description),
		Icon:        strings.TrimSpace(input.Icon),
		Color:       strings.TrimSpace(input.Color),
	})
	if err != nil {
		return Role{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, "role.create", role.ID, map[string]any{"identifier": role.Identifier, "domain": role.Domain})
	return role, nil
}

// Update edits the mutable fields of an entry. Identifier and domain are
// immutable once created; attempts to change them fail with ErrImmutable.
func (s *Service) Update(ctx context.Context, actorID, id int64, input UpdateInput) (Role, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if input.Identifier != nil && shared.NormalizeRoleName(*input.Identifier) != existing.Identifier {
		return Role{}, fmt.Errorf("%w: identifier", httpx.ErrImmutable)
	}
	if input.Domain != nil && *input.Domain != existing.Domain {
		return Role{}, fmt.Errorf("%w: domain", httpx.ErrImmutable)
	}

	updated := existing
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return Role{}, fmt.Errorf("%w: name must not be empty", httpx.ErrValidation)
		}
		updated.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		updated.Description = strings.TrimSpace(*input.Description)
	}
	if input.Icon != nil {
		updated.Icon = strings.TrimSpace(*input.Icon)
	}
	if input.Color != nil {
		updated.Color = strings.TrimSpace(*input.Color)
	}

	role, err := s.repo.Update(ctx, updated)
	if err != nil {
		return Role{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, "role.update", role.ID, nil)
	return role, nil
}

// SetActive toggles availability for future assignment. It never cascades:
// users holding the role and historic audit rows are untouched.
func (s *Service) SetActive(ctx context.Context, actorID, id int64, active bool) (Role, error) {
	role, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return Role{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, "role.set_active", role.ID, map[string]any{"active": active})
	return role, nil
}

// Get fetches a single entry.
func (s *Service) Get(ctx context.Context, id int64) (Role, error) {
	return s.repo.Get(ctx, id)
}

// GetByIdentifier fetches an entry by name.
func (s *Service) GetByIdentifier(ctx context.Context, identifier string) (Role, error) {
	return s.repo.GetByIdentifier(ctx, shared.NormalizeRoleName(identifier))
}

// Find returns a filtered page of the catalog.
func (s *Service) Find(ctx context.Context, filters ListFilters) ([]Role, shared.Pagination, error) {
	list, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(filters.Page, filters.Limit, total), nil
}

// ActiveRoles returns the active catalog, served from the write-through
// cache when available.
func (s *Service) ActiveRoles(ctx context.Context) ([]Role, error) {
	var list []Role
	err := s.cache.Get(ctx, &list, func(ctx context.Context) (any, error) {
		return s.repo.ListActive(ctx)
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil && s.logger != nil {
		s.logger.Warn("role cache invalidate", slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "role", EntityID: strconv.FormatInt(id, 10), Meta: meta}); err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
