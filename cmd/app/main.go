package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"profitcruiser/internal/auth"
	"profitcruiser/internal/cache"
	"profitcruiser/internal/config"
	"profitcruiser/internal/httpserver"
	"profitcruiser/internal/logging"
	"profitcruiser/internal/metrics"
	"profitcruiser/internal/payment"
	"profitcruiser/internal/shop"
	"profitcruiser/internal/state"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.AppEnv)
	logger.Info("starting storefront", "env", cfg.AppEnv, "addr", cfg.HTTPListenAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	var redis *cache.Redis
	if cfg.RedisAddr != "" {
		redis = cache.New(cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			UseTLS:   cfg.RedisTLS,
		}, logger)
		defer func() { _ = redis.Close() }()
		if err := redis.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, estimate caching disabled", "error", err)
		}
	}

	store, err := state.Open(cfg.StatePath, logger)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	store.SetMetrics(metricRegistry)

	providers := []payment.Provider{payment.ManualProvider{}}
	var cryptoClient *payment.Client
	if cfg.NowPaymentsEnabled() {
		cryptoClient = payment.NewClient(payment.ClientConfig{
			BaseURL:            cfg.NowPaymentsAPIBase,
			APIKey:             cfg.NowPaymentsAPIKey,
			WebhookURL:         cfg.NowPaymentsWebhook,
			SuccessURLTemplate: cfg.SuccessURLTemplate,
			CancelURLTemplate:  cfg.CancelURLTemplate,
			Timeout:            cfg.NowPaymentsTimeout,
		}, logger, metricRegistry, redis)
		providers = append(providers, payment.NewCryptoProviders(cryptoClient)...)
		logger.Info("nowpayments enabled", "webhook", cfg.NowPaymentsWebhook)
	} else {
		logger.Warn("nowpayments not configured, running manual-only")
	}
	registry := payment.NewRegistry(providers...)

	authService := auth.New(store, logger)
	if err := authService.EnsureAdmin(); err != nil {
		return fmt.Errorf("ensure admin account: %w", err)
	}

	shopService := shop.New(store, registry, logger, metricRegistry)
	if err := shopService.EnsurePaymentShapes(); err != nil {
		return fmt.Errorf("normalize payment records: %w", err)
	}

	webhook := payment.NewWebhookHandler(logger, metricRegistry, cfg.NowPaymentsIPNSecret, cfg.NowPaymentsEnabled(), shopService)

	server := httpserver.New(cfg.HTTPListenAddr, httpserver.Deps{
		Logger:  logger,
		Auth:    authService,
		Shop:    shopService,
		Webhook: webhook,
		Crypto:  cryptoClient,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}
