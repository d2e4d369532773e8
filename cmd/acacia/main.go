package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/acacia-sms/acacia/internal/access"
	"github.com/acacia-sms/acacia/internal/app"
	"github.com/acacia-sms/acacia/internal/audit"
	"github.com/acacia-sms/acacia/internal/auth"
	"github.com/acacia-sms/acacia/internal/delegation"
	"github.com/acacia-sms/acacia/internal/directory"
	"github.com/acacia-sms/acacia/internal/directory/roles"
	"github.com/acacia-sms/acacia/internal/directory/routes"
	"github.com/acacia-sms/acacia/internal/observability"
	"github.com/acacia-sms/acacia/internal/pageroute"
	"github.com/acacia-sms/acacia/internal/platform/cache"
	"github.com/acacia-sms/acacia/internal/platform/db"
	"github.com/acacia-sms/acacia/internal/shared"
	"github.com/acacia-sms/acacia/internal/users"
	"github.com/acacia-sms/acacia/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "acacia_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(pool)

	rolesRepo := roles.NewRepository(pool)
	rolesCache := directory.NewListCache(redisClient, "dir:roles", cfg.DirectoryCacheTTL)
	rolesService := roles.NewService(rolesRepo, rolesCache, logger, auditLogger)

	routesRepo := routes.NewRepository(pool)
	routesCache := directory.NewListCache(redisClient, "dir:routes", cfg.DirectoryCacheTTL)
	routesService := routes.NewService(routesRepo, routesCache, logger, auditLogger)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, rolesService, logger, auditLogger)

	accessRepo := access.NewRepository(pool)
	evaluator := access.NewEvaluator(accessRepo)
	accessService := access.NewService(accessRepo, logger, auditLogger)
	categories := access.NewCategoryResolver(nil)

	// The delegation service validates the delegator's own access against the
	// evaluator alone, so a delegated grant can never be re-delegated.
	delegationRepo := delegation.NewRepository(pool)
	baseMW := access.Middleware{Evaluator: evaluator, Logger: logger}
	delegationService := delegation.NewService(delegationRepo, routesService, usersService, baseMW, evaluator, logger, auditLogger)

	mw := access.Middleware{Evaluator: evaluator, Delegations: delegationService, Logger: logger}

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager, categories)

	rolesHandler := roles.NewHandler(logger, rolesService, mw)
	routesHandler := routes.NewHandler(logger, routesService, mw)
	usersHandler := users.NewHandler(logger, usersService, mw)
	accessHandler := access.NewHandler(logger, accessService, evaluator, categories, mw)
	delegationHandler := delegation.NewHandler(logger, delegationService, mw)

	auditService := audit.NewService(audit.NewRepository(pool))
	auditHandler := audit.NewHandler(logger, auditService, mw)

	registry, err := pageroute.NewRegistry(pageroute.DefaultBindings())
	if err != nil {
		logger.Error("load page bindings", slog.Any("error", err))
		os.Exit(1)
	}
	pageRouter := pageroute.NewRouter(registry, categories, routesService, mw)
	pageHandler := pageroute.NewHandler(logger, pageRouter)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		AuthService:       authService,
		AuthHandler:       authHandler,
		RolesHandler:      rolesHandler,
		RoutesHandler:     routesHandler,
		UsersHandler:      usersHandler,
		AccessHandler:     accessHandler,
		DelegationHandler: delegationHandler,
		PageHandler:       pageHandler,
		AuditHandler:      auditHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
