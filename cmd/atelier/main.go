package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atelier-crm/atelier-crm/internal/app"
	"github.com/atelier-crm/atelier-crm/internal/assistant"
	"github.com/atelier-crm/atelier-crm/internal/audit"
	"github.com/atelier-crm/atelier-crm/internal/billing"
	"github.com/atelier-crm/atelier-crm/internal/billing/numbering"
	"github.com/atelier-crm/atelier-crm/internal/crm"
	"github.com/atelier-crm/atelier-crm/internal/deals"
	"github.com/atelier-crm/atelier-crm/internal/finance"
	"github.com/atelier-crm/atelier-crm/internal/platform/cache"
	"github.com/atelier-crm/atelier-crm/internal/platform/db"
	"github.com/atelier-crm/atelier-crm/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	settings := billing.NewCachedSettings(billing.NewSettingsStore(pool), redisClient, 10*time.Minute)
	allocator := numbering.NewAllocator(numbering.NewCounterStore(pool))

	crmService := crm.NewService(crm.NewRepository(pool))
	dealsService := deals.NewService(deals.NewRepository(pool))
	billingService := billing.NewService(billing.NewRepository(pool), settings, allocator, dealsService)
	financeService := finance.NewService(finance.NewRepository(pool), settings)
	auditService := audit.NewService(audit.NewRepository(pool))

	resolver := assistant.NewResolver(assistant.NewDirectory(crmService, dealsService))
	engine := assistant.NewService(resolver, crmService, dealsService, billingService, financeService, auditService, logger)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Verifier:         app.NewKeyStore(pool),
		AssistantHandler: assistant.NewHandler(logger, engine),
		AuditHandler:     audit.NewHandler(logger, auditService),
		JobHandler:       jobs.NewHandler(jobClient, inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
