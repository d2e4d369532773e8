package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/acacia-sms/acacia/internal/access"
	"github.com/acacia-sms/acacia/internal/app"
	"github.com/acacia-sms/acacia/internal/delegation"
	"github.com/acacia-sms/acacia/internal/directory"
	"github.com/acacia-sms/acacia/internal/directory/roles"
	"github.com/acacia-sms/acacia/internal/directory/routes"
	jobmetrics "github.com/acacia-sms/acacia/internal/jobs"
	"github.com/acacia-sms/acacia/internal/platform/cache"
	"github.com/acacia-sms/acacia/internal/platform/db"
	"github.com/acacia-sms/acacia/internal/shared"
	"github.com/acacia-sms/acacia/internal/users"
	"github.com/acacia-sms/acacia/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Error("connect database", slog.Any("error", err))
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
	mw := access.Middleware{Evaluator: evaluator, Logger: logger}

	delegationRepo := delegation.NewRepository(pool)
	delegationService := delegation.NewService(delegationRepo, routesService, usersService, mw, evaluator, logger, auditLogger)

	metrics := jobmetrics.NewMetrics(nil)
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB}

	client, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	smtpAddr := fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort)
	sendEmail := jobs.NewSendEmailHandler(smtpAddr, cfg.SMTPFrom, logger)
	routeIntegrity := jobs.NewRouteIntegrityHandler(routesRepo, logger, metrics)
	delegationDigest := jobs.NewDelegationDigestHandler(jobs.DigestConfig{
		Source:   delegationService,
		Accounts: usersService,
		Catalog:  routesService,
		Enqueuer: client,
		Window:   cfg.DelegationDigestWindow,
		Logger:   logger,
		Metrics:  metrics,
	})

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: sendEmail},
			{Type: jobs.TaskTypeRouteIntegrity, Handler: routeIntegrity},
			{Type: jobs.TaskTypeDelegationDigest, Handler: delegationDigest},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: jobs.NewRouteIntegrityTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 6 * * *", Task: jobs.NewDelegationDigestTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
