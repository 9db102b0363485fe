// File: cmd/app/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"saas-payment-core/internal/config"
	pg "saas-payment-core/internal/infra/db/postgres"
	httpapi "saas-payment-core/internal/infra/http"
	"saas-payment-core/internal/infra/logging"
	"saas-payment-core/internal/infra/metrics"
	"saas-payment-core/internal/infra/payment"
	red "saas-payment-core/internal/infra/redis"
	"saas-payment-core/internal/infra/sched"
	"saas-payment-core/internal/infra/security"
	"saas-payment-core/internal/infra/web"
	"saas-payment-core/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	credCache := red.NewCredentialCache(redisClient, cfg.Redis.TTL)

	// ---- Encryption ----
	encSvc, err := security.NewEncryptionService(cfg.Security.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption")
	}

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	intentRepo := pg.NewIntentRepo(pool)
	ledgerRepo := pg.NewLedgerRepo(pool)
	invoiceRepo := pg.NewInvoiceRepo(pool)
	planRepo := pg.NewPlanRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	credRepo := pg.NewCredentialRepo(pool, encSvc)
	cbLogRepo := pg.NewCallbackLogRepo(pool)

	// ---- Gateway adapters ----
	registry := payment.NewRegistry(
		payment.NewZarinPalGateway(),
		payment.NewIDPayGateway(),
		payment.NewNoopGateway(),
	)

	// ---- Use cases ----
	resolver := usecase.NewCredentialResolver(credRepo, credCache, logger)
	credits := usecase.NewCreditingActions(ledgerRepo, invoiceRepo, planRepo, subRepo, logger)
	engine := usecase.NewReconciliationEngine(intentRepo, credits, tm, cfg.Payments.Tolerance, logger)
	initiation := usecase.NewPaymentInitiation(intentRepo, invoiceRepo, planRepo, credits, resolver, registry, cfg.Payments.CallbackBaseURL, logger)
	callbacks := usecase.NewCallbackProcessor(intentRepo, cbLogRepo, resolver, registry, engine, logger)

	// ---- HTTP surface ----
	webServer := web.NewServer(web.Deps{
		Initiation:     initiation,
		Callbacks:      callbacks,
		Credits:        credits,
		Invoices:       invoiceRepo,
		Ledger:         ledgerRepo,
		Sessions:       web.NewSessionManager(cfg.Payments.SessionSecret, cfg.Payments.LinkTTL),
		Links:          web.NewPayLinkSigner(cfg.Payments.LinkSecret, cfg.Payments.LinkTTL),
		Limiter:        rateLimiter,
		Credentials:    resolver,
		CallbackRate:   cfg.Payments.CallbackRate,
		CallbackWindow: cfg.Payments.CallbackWindow,
		PublicBaseURL:  cfg.Payments.CallbackBaseURL,
	}, logger)

	server := httpapi.NewServer(cfg.Server, webServer.Router(), logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Stale intent sweeper ----
	reconciler := sched.NewIntentReconciler(
		intentRepo, resolver, registry, engine,
		cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, cfg.Reconciler.AbandonAfter,
		logger,
	)
	go reconciler.Start(ctx)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
