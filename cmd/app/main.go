package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-saas-billing/internal/config"
	pg "ai-saas-billing/internal/infra/db/postgres"
	"ai-saas-billing/internal/infra/logging"
	"ai-saas-billing/internal/infra/metrics"
	"ai-saas-billing/internal/infra/notify"
	"ai-saas-billing/internal/infra/payment"
	red "ai-saas-billing/internal/infra/redis"
	"ai-saas-billing/internal/infra/sched"
	"ai-saas-billing/internal/infra/web"
	"ai-saas-billing/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	txManager := pg.NewTxManager(pool)
	intentRepo := pg.NewIntentRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	couponRepo := pg.NewCouponRepo(pool)
	refundRepo := pg.NewRefundRepo(pool)
	planRepo := pg.NewPlanRepo(pool)
	ledgerRepo := pg.NewTokenLedgerRepo(pool)
	userDir := pg.NewUserDirectory(pool)

	// ---- Payment gateways ----
	portone := payment.NewPortOneGateway(
		cfg.Gateways.PortOne.APIKey,
		cfg.Gateways.PortOne.APISecret,
		cfg.Gateways.PortOne.BaseURL,
	)
	kakaopay := payment.NewKakaoPayGateway(
		cfg.Gateways.KakaoPay.SecretKey,
		cfg.Gateways.KakaoPay.CID,
		cfg.Gateways.KakaoPay.BaseURL,
	)
	gateways := payment.NewRegistry(portone, kakaopay)

	notifier := notify.NewHTTPNotifier(cfg.Notify.Endpoint, logger)

	// ---- Use cases ----
	couponUC := usecase.NewCouponUseCase(couponRepo, logger)
	initiateUC := usecase.NewInitiateUseCase(intentRepo, planRepo, subRepo, userDir, couponUC, gateways, cfg.Billing.IntentTTL, logger)
	reconcileUC := usecase.NewReconcileUseCase(intentRepo, paymentRepo, subRepo, planRepo, ledgerRepo, couponUC, gateways, notifier, txManager, logger)
	billingUC := usecase.NewBillingUseCase(subRepo, paymentRepo, planRepo, ledgerRepo, gateways, notifier, txManager, usecase.BillingPolicy{
		PastDueThreshold: cfg.Billing.PastDueThreshold,
		AutoCancelAfter:  cfg.Billing.AutoCancelAfter,
		MaxAttempts:      uint64(cfg.Billing.MaxChargeAttempts),
		BaseBackoff:      cfg.Billing.ChargeBaseBackoff,
		MaxBackoff:       cfg.Billing.ChargeMaxBackoff,
		BatchSize:        cfg.Billing.BatchSize,
	}, logger)
	refundUC := usecase.NewRefundUseCase(refundRepo, paymentRepo, subRepo, ledgerRepo, gateways, notifier, txManager, logger)

	// ---- Background workers ----
	sweeper := sched.NewBillingSweeper(billingUC, locker, cfg.Billing.SweepInterval, cfg.Billing.SweepLockTTL, logger)
	go func() { _ = sweeper.Run(ctx) }()

	expiry := sched.NewIntentExpiryWorker(intentRepo, cfg.Billing.IntentSweepEvery, 0, logger)
	go func() { _ = expiry.Run(ctx) }()

	staleRecon := sched.NewStaleIntentReconciler(reconcileUC, intentRepo, cfg.Billing.ReconcileSweepEach, cfg.Billing.ReconcileStaleAge, logger)
	go func() { _ = staleRecon.Run(ctx) }()

	stats := sched.NewStatsCollector(paymentRepo, subRepo, cfg.Billing.StatsEvery, logger)
	go func() { _ = stats.Run(ctx) }()

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Security.AdminJWTSecret, 0)
	server := web.NewServer(cfg.Server, initiateUC, reconcileUC, refundUC, auth, cfg.Gateways.ResultURL, logger, pool, redisClient)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

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
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
