package access

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/acacia-sms/acacia/internal/platform/httpx"
	"github.com/acacia-sms/acacia/internal/shared"
)

// Handler exposes the capability query and the grant administration surface.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	evaluator *Evaluator
	resolver  *CategoryResolver
	mw        Middleware
	validate  *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, evaluator *Evaluator, resolver *CategoryResolver, mw Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		evaluator: evaluator,
		resolver:  resolver,
		mw:        mw,
		validate:  validator.New(),
	}
}

// MountRoutes registers access routes.
func (h *Handler) MountRoutes(r chi.Router) {
	// Capability query for the current identity; every page consults this
	// single endpoint instead of embedding its own permission checks.
	r.Get("/permissions", h.myPermissions)

	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(shared.PermGrantsView, shared.PermGrantsEdit))
		r.Get("/users/{userID}/grants", h.listGrants)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(shared.PermGrantsEdit))
		r.Put("/users/{userID}/grants", h.setGrant)
		r.Delete("/users/{userID}/grants/{key}", h.removeGrant)
		r.Put("/roles/{role}/permissions", h.setRolePermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(shared.PermGrantsView, shared.PermRolesView))
		r.Get("/roles/{role}/permissions", h.rolePermissions)
	})
}

type identityResponse struct {
	UserID      int64    `json:"user_id"`
	Category    string   `json:"category"`
	Permissions []string `json:"permissions"`
}

func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	if !id.Authenticated() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	perms, err := h.evaluator.EffectivePermissions(r.Context(), id)
	if err != nil {
		h.logger.Error("effective permissions", slog.Int64("user_id", id.UserID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if perms == nil {
		perms = []string{}
	}
	httpx.JSON(w, http.StatusOK, identityResponse{
		UserID:      id.UserID,
		Category:    string(h.resolver.ResolveIdentity(id)),
		Permissions: perms,
	})
}

type grantResponse struct {
	UserID        int64  `json:"user_id"`
	PermissionKey string `json:"permission_key"`
	Effect        string `json:"effect"`
	CreatedAt     string `json:"created_at"`
}

func toGrantResponse(g Grant) grantResponse {
	return grantResponse{
		UserID:        g.UserID,
		PermissionKey: g.Key,
		Effect:        string(g.Effect),
		CreatedAt:     g.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	grants, err := h.service.ListUserGrants(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		out = append(out, toGrantResponse(g))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out})
}

type setGrantRequest struct {
	PermissionKey string `json:"permission_key" validate:"required"`
	Effect        string `json:"effect" validate:"required,oneof=ALLOW DENY"`
}

func (h *Handler) setGrant(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req setGrantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := shared.IdentityFromContext(r.Context())
	grant, err := h.service.SetUserGrant(r.Context(), actor.UserID, userID, req.PermissionKey, Effect(req.Effect))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toGrantResponse(grant))
}

func (h *Handler) removeGrant(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	actor := shared.IdentityFromContext(r.Context())
	if err := h.service.RemoveUserGrant(r.Context(), actor.UserID, userID, chi.URLParam(r, "key")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) rolePermissions(w http.ResponseWriter, r *http.Request) {
	keys, err := h.service.RolePermissions(r.Context(), chi.URLParam(r, "role"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role": shared.NormalizeRoleName(chi.URLParam(r, "role")), "permission_keys": keys})
}

type setRolePermissionsRequest struct {
	PermissionKeys []string `json:"permission_keys" validate:"required"`
}

func (h *Handler) setRolePermissions(w http.ResponseWriter, r *http.Request) {
	var req setRolePermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := shared.IdentityFromContext(r.Context())
	if err := h.service.SetRolePermissions(r.Context(), actor.UserID, chi.URLParam(r, "role"), req.PermissionKeys); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}
