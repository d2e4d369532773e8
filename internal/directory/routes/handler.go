package routes

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/acacia-sms/acacia/internal/access"
	"github.com/acacia-sms/acacia/internal/platform/httpx"
	"github.com/acacia-sms/acacia/internal/shared"
)

// Handler exposes the route catalog administration API.
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

// MountRoutes registers route catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(shared.PermRoutesView, shared.PermRoutesEdit))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(shared.PermRoutesEdit))
		r.Post("/", h.create)
		r.Patch("/{id}", h.update)
		r.Post("/{id}/active", h.setActive)
	})
}

type createRequest struct {
	Identifier    string `json:"identifier" validate:"required"`
	URL           string `json:"url" validate:"required"`
	Domain        string `json:"domain" validate:"required,oneof=SYSTEM SCHOOL"`
	Controller    string `json:"controller"`
	PermissionKey string `json:"permission_key"`
	Description   string `json:"description"`
}

type updateRequest struct {
	URL           *string `json:"url"`
	Controller    *string `json:"controller"`
	PermissionKey *string `json:"permission_key"`
	Description   *string `json:"description"`
	Identifier    *string `json:"identifier"`
	Domain        *string `json:"domain"`
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters := ListFilters{
		Search: r.URL.Query().Get("search"),
		Domain: Domain(r.URL.Query().Get("domain")),
	}
	if raw := r.URL.Query().Get("active"); raw != "" {
		active := raw == "true" || raw == "1"
		filters.Active = &active
	}
	filters.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	filters.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))

	list, pagination, err := h.service.Find(r.Context(), filters)
	if err != nil {
		h.logger.Error("list routes", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if list == nil {
		list = []Route{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": list, "pagination": pagination})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	route, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, route)
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
	route, warnings, err := h.service.Create(r.Context(), actor.UserID, CreateInput{
		Identifier:    req.Identifier,
		URL:           req.URL,
		Domain:        Domain(req.Domain),
		Controller:    req.Controller,
		PermissionKey: req.PermissionKey,
		Description:   req.Description,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"route": route, "warnings": warnings})
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
	input := UpdateInput{
		URL:           req.URL,
		Controller:    req.Controller,
		PermissionKey: req.PermissionKey,
		Description:   req.Description,
		Identifier:    req.Identifier,
	}
	if req.Domain != nil {
		domain := Domain(*req.Domain)
		input.Domain = &domain
	}
	actor := shared.IdentityFromContext(r.Context())
	route, warnings, err := h.service.Update(r.Context(), actor.UserID, id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"route": route, "warnings": warnings})
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req setActiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := shared.IdentityFromContext(r.Context())
	route, err := h.service.SetActive(r.Context(), actor.UserID, id, *req.Active)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, route)
}
