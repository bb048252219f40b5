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

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/versatilewordsmith/footwear-accounting/internal/app"
	"github.com/versatilewordsmith/footwear-accounting/internal/catalog"
	"github.com/versatilewordsmith/footwear-accounting/internal/ledger"
	"github.com/versatilewordsmith/footwear-accounting/internal/observability"
	"github.com/versatilewordsmith/footwear-accounting/internal/partners"
	"github.com/versatilewordsmith/footwear-accounting/internal/platform/cache"
	"github.com/versatilewordsmith/footwear-accounting/internal/platform/db"
	"github.com/versatilewordsmith/footwear-accounting/internal/purchases"
	"github.com/versatilewordsmith/footwear-accounting/internal/sales"
	"github.com/versatilewordsmith/footwear-accounting/internal/shared"
	"github.com/versatilewordsmith/footwear-accounting/internal/stock"
	"github.com/versatilewordsmith/footwear-accounting/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, statement cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	validate := validator.New()
	metrics := observability.NewMetrics()
	metrics.Registerer().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	auditLogger := shared.NewAuditLogger(pool)

	partnersRepo := partners.NewRepository(pool)
	partnersService := partners.NewService(partnersRepo, auditLogger)
	partnersHandler := partners.NewHandler(logger, partnersService, validate)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, auditLogger)
	catalogHandler := catalog.NewHandler(logger, catalogService, validate)

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo, auditLogger, stock.ServiceConfig{MaxAttempts: cfg.StockMaxRetries})
	stockHandler := stock.NewHandler(logger, stockService, validate)

	var statementCache ledger.CachePort
	if redisClient != nil {
		statementCache = ledger.NewCache(redisClient, cfg.StatementCacheTTL)
	}
	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, statementCache, auditLogger).
		WithIdempotency(shared.NewIdempotencyStore(pool))
	ledgerHandler := ledger.NewHandler(logger, ledgerService, validate)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, ledgerService, auditLogger,
		sales.ServiceConfig{MaxAttempts: cfg.StockMaxRetries})
	salesHandler := sales.NewHandler(logger, salesService, validate)

	purchasesRepo := purchases.NewRepository(pool)
	purchasesService := purchases.NewService(purchasesRepo, ledgerService, auditLogger,
		purchases.ServiceConfig{MaxAttempts: cfg.StockMaxRetries})
	purchasesHandler := purchases.NewHandler(logger, purchasesService, validate)

	var jobsHandler *jobs.Handler
	if redisClient != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		inspector := asynq.NewInspector(redisOpts)
		jobsClient, err := jobs.NewClient(redisOpts)
		if err != nil {
			logger.Error("jobs client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobsClient.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
		jobsHandler = jobs.NewHandler(inspector, jobsClient, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		PartnersHandler:  partnersHandler,
		CatalogHandler:   catalogHandler,
		StockHandler:     stockHandler,
		SalesHandler:     salesHandler,
		PurchasesHandler: purchasesHandler,
		LedgerHandler:    ledgerHandler,
		JobsHandler:      jobsHandler,
		Pool:             pool,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("back office listening", slog.String("addr", cfg.AppAddr))
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
