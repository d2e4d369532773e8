package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/acacia-sms/acacia/internal/access"
	"github.com/acacia-sms/acacia/internal/audit"
	"github.com/acacia-sms/acacia/internal/auth"
	"github.com/acacia-sms/acacia/internal/delegation"
	"github.com/acacia-sms/acacia/internal/directory/roles"
	"github.com/acacia-sms/acacia/internal/directory/routes"
	"github.com/acacia-sms/acacia/internal/observability"
	"github.com/acacia-sms/acacia/internal/pageroute"
	"github.com/acacia-sms/acacia/internal/shared"
	"github.com/acacia-sms/acacia/internal/users"
	"github.com/acacia-sms/acacia/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthService *auth.Service

	AuthHandler       *auth.Handler
	RolesHandler      *roles.Handler
	RoutesHandler     *routes.Handler
	UsersHandler      *users.Handler
	AccessHandler     *access.Handler
	DelegationHandler *delegation.Handler
	PageHandler       *pageroute.Handler
	AuditHandler      *audit.Handler
	JobHandler        *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with Acacia defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	r.Use(auth.IdentityMiddleware(params.AuthService, params.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.RolesHandler != nil {
		r.Route("/roles", params.RolesHandler.MountRoutes)
	}
	if params.RoutesHandler != nil {
		r.Route("/routes", params.RoutesHandler.MountRoutes)
	}
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.AccessHandler != nil {
		r.Route("/access", params.AccessHandler.MountRoutes)
	}
	if params.DelegationHandler != nil {
		r.Route("/delegations", params.DelegationHandler.MountRoutes)
	}
	if params.PageHandler != nil {
		r.Route("/pages", params.PageHandler.MountRoutes)
	}
	if params.AuditHandler != nil {
		r.Route("/audit", params.AuditHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
