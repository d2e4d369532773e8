package delegation

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/acacia-sms/acacia/internal/access"
	"github.com/acacia-sms/acacia/internal/platform/httpx"
	"github.com/acacia-sms/acacia/internal/shared"
)

// Handler exposes the delegation API. Everything here is scoped to the
// acting user; the /all listing additionally needs the management
// permission.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	mw       access.Middleware
	validate *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, mw access.Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw, validate: validator.New()}
}

// MountRoutes registers delegation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listOwn)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Post("/{id}/revoke", h.revoke)
	r.Post("/{id}/reactivate", h.reactivate)
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(shared.PermDelegationsManage))
		r.Get("/all", h.listAll)
	})
}

type createRequest struct {
	DelegatorID int64      `json:"delegator_id"`
	DelegateID  int64      `json:"delegate_id" validate:"required"`
	RouteID     int64      `json:"route_id" validate:"required"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

type updateRequest struct {
	RouteID     *int64     `json:"route_id"`
	ExpiresAt   *time.Time `json:"expires_at"`
	ClearExpiry bool       `json:"clear_expiry"`
}

func (h *Handler) listOwn(w http.ResponseWriter, r *http.Request) {
	actor := shared.IdentityFromContext(r.Context())
	filters := parseFilters(r)
	list, pagination, err := h.service.ListForUser(r.Context(), actor.UserID, filters)
	if err != nil {
		h.logger.Error("list delegations", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if list == nil {
		list = []Delegation{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": list, "pagination": pagination})
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	filters := parseFilters(r)
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		filters.UserID, _ = strconv.ParseInt(raw, 10, 64)
	}
	list, pagination, err := h.service.Find(r.Context(), filters)
	if err != nil {
		h.logger.Error("list all delegations", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if list == nil {
		list = []Delegation{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": list, "pagination": pagination})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	actor := shared.IdentityFromContext(r.Context())
	d, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := shared.IdentityFromContext(r.Context())
	d, err := h.service.Create(r.Context(), actor, CreateInput{
		DelegatorID: req.DelegatorID,
		DelegateID:  req.DelegateID,
		RouteID:     req.RouteID,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	actor := shared.IdentityFromContext(r.Context())
	d, err := h.service.Update(r.Context(), actor, id, UpdateInput{
		RouteID:     req.RouteID,
		ExpiresAt:   req.ExpiresAt,
		ClearExpiry: req.ClearExpiry,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	actor := shared.IdentityFromContext(r.Context())
	d, err := h.service.Revoke(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) reactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	actor := shared.IdentityFromContext(r.Context())
	d, err := h.service.Reactivate(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func parseFilters(r *http.Request) ListFilters {
	var filters ListFilters
	if raw := r.URL.Query().Get("active"); raw != "" {
		active := raw == "true" || raw == "1"
		filters.Active = &active
	}
	if raw := r.URL.Query().Get("route_id"); raw != "" {
		filters.RouteID, _ = strconv.ParseInt(raw, 10, 64)
	}
	filters.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	filters.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	return filters
}
