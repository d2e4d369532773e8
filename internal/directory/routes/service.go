package routes

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/acacia-sms/acacia/internal/directory"
	"github.com/acacia-sms/acacia/internal/platform/httpx"
	"github.com/acacia-sms/acacia/internal/shared"
)

// CreateInput carries the fields accepted on creation.
type CreateInput struct {
	Identifier    string
	URL           string
	Domain        Domain
	Controller    string
	PermissionKey string
	Description   string
}

// UpdateInput carries the mutable fields; identifier and domain changes are
// rejected.
type UpdateInput struct {
	URL           *string
	Controller    *string
	PermissionKey *string
	Description   *string
	Identifier    *string
	Domain        *Domain
}

// Service applies catalog rules on top of the repository.
type Service struct {
	repo   Repository
	cache  *directory.ListCache
	logger *slog.Logger
	audit  *shared.AuditLogger
}

// NewService constructs a Service.
func NewService(repo Repository, cache *directory.ListCache, logger *slog.Logger, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger, audit: audit}
}

// Create adds a route. The returned warnings list duplicate active URLs in
// the same domain; the create itself still succeeds.
func (s *Service) Create(ctx context.Context, actorID int64, input CreateInput) (Route, []string, error) {
	identifier := shared.NormalizeRoleName(input.Identifier)
	if identifier == "" {
		return Route{}, nil, fmt.Errorf("%w: identifier required", httpx.ErrValidation)
	}
	url := strings.TrimSpace(input.URL)
	if url == "" {
		return Route{}, nil, fmt.Errorf("%w: url required", httpx.ErrValidation)
	}
	if !input.Domain.Valid() {
		return Route{}, nil, fmt.Errorf("%w: domain must be SYSTEM or SCHOOL", httpx.ErrValidation)
	}

	route, err := s.repo.Create(ctx, Route{
		Identifier:    identifier,
		URL:           url,
		Domain:        input.Domain,
		Controller:    strings.TrimSpace(input.Controller),
		PermissionKey: strings.TrimSpace(strings.ToLower(input.PermissionKey)),
		Description:   strings.TrimSpace(input.Description),
	})
	if err != nil {
		return Route{}, nil, err
	}
	warnings := s.duplicateURLWarnings(ctx, route)
	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, "route.create", route.ID, map[string]any{"identifier": route.Identifier, "url": route.URL})
	return route, warnings, nil
}

// Update edits the mutable fields of an entry.
func (s *Service) Update(ctx context.Context, actorID, id int64, input UpdateInput) (Route, []string, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Route{}, nil, err
	}
	if input.Identifier != nil && shared.NormalizeRoleName(*input.Identifier) != existing.Identifier {
		return Route{}, nil, fmt.Errorf("%w: identifier", httpx.ErrImmutable)
	}
	if input.Domain != nil && *input.Domain != existing.Domain {
		return Route{}, nil, fmt.Errorf("%w: domain", httpx.ErrImmutable)
	}

	updated := existing
	if input.URL != nil {
		if strings.TrimSpace(*input.URL) == "" {
			return Route{}, nil, fmt.Errorf("%w: url must not be empty", httpx.ErrValidation)
		}
		updated.URL = strings.TrimSpace(*input.URL)
	}
	if input.Controller != nil {
		updated.Controller = strings.TrimSpace(*input.Controller)
	}
	if input.PermissionKey != nil {
		updated.PermissionKey = strings.TrimSpace(strings.ToLower(*input.PermissionKey))
	}
	if input.Description != nil {
		updated.Description = strings.TrimSpace(*input.Description)
	}

	route, err := s.repo.Update(ctx, updated)
	if err != nil {
		return Route{}, nil, err
	}
	warnings := s.duplicateURLWarnings(ctx, route)
	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, "route.update", route.ID, nil)
	return route, warnings, nil
}

// SetActive toggles availability. Deactivation never deletes dependents;
// the page router falls back for inactive routes instead of serving them.
func (s *Service) SetActive(ctx context.Context, actorID, id int64, active bool) (Route, error) {
	route, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return Route{}, err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, "route.set_active", route.ID, map[string]any{"active": active})
	return route, nil
}

// Get fetches a single entry.
func (s *Service) Get(ctx context.Context, id int64) (Route, error) {
	return s.repo.Get(ctx, id)
}

// GetByIdentifier fetches an entry by name.
func (s *Service) GetByIdentifier(ctx context.Context, identifier string) (Route, error) {
	return s.repo.GetByIdentifier(ctx, shared.NormalizeRoleName(identifier))
}

// Find returns a filtered page of the catalog.
func (s *Service) Find(ctx context.Context, filters ListFilters) ([]Route, shared.Pagination, error) {
	list, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(filters.Page, filters.Limit, total), nil
}

// ActiveRoutes returns the active catalog through the write-through cache.
func (s *Service) ActiveRoutes(ctx context.Context) ([]Route, error) {
	var list []Route
	err := s.cache.Get(ctx, &list, func(ctx context.Context) (any, error) {
		return s.repo.ListActive(ctx)
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Service) duplicateURLWarnings(ctx context.Context, route Route) []string {
	if !route.Active {
		return nil
	}
	clashes, err := s.repo.ActiveByURL(ctx, route.Domain, route.URL, route.ID)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("duplicate url check", slog.Any("error", err))
		}
		return nil
	}
	var warnings []string
	for _, clash := range clashes {
		msg := fmt.Sprintf("url %q already served by active route %q in domain %s", route.URL, clash.Identifier, route.Domain)
		warnings = append(warnings, msg)
		if s.logger != nil {
			s.logger.Warn("duplicate active route url",
				slog.String("url", route.URL),
				slog.String("route", route.Identifier),
				slog.String("clashes_with", clash.Identifier))
		}
	}
	return warnings
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil && s.logger != nil {
		s.logger.Warn("route cache invalidate", slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "route", EntityID: strconv.FormatInt(id, 10), Meta: meta}); err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
