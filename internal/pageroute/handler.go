package pageroute

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/acacia-sms/acacia/internal/platform/httpx"
	"github.com/acacia-sms/acacia/internal/shared"
)

// Handler exposes template selection to the rendering layer. The response
// is a Selection, never the template content itself.
type Handler struct {
	logger *slog.Logger
	router *Router
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, router *Router) *Handler {
	return &Handler{logger: logger, router: router}
}

// MountRoutes registers the page resolution route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{route}", h.resolve)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	selection, err := h.router.Route(r.Context(), id, chi.URLParam(r, "route"), time.Now())
	if err != nil {
		switch {
		case errors.Is(err, ErrTemplateNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "no template for this page")
		case errors.Is(err, httpx.ErrForbidden):
			httpx.RespondError(w, httpx.ErrForbidden)
		default:
			h.logger.Error("resolve page", slog.String("route", chi.URLParam(r, "route")), slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, selection)
}
