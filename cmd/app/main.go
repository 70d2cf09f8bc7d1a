package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-verification-bot/internal/config"
	pg "telegram-verification-bot/internal/infra/db/postgres"
	"telegram-verification-bot/internal/infra/governor"
	"telegram-verification-bot/internal/infra/identity"
	"telegram-verification-bot/internal/infra/logging"
	"telegram-verification-bot/internal/infra/metrics"
	red "telegram-verification-bot/internal/infra/redis"
	"telegram-verification-bot/internal/infra/sheerid"
	"telegram-verification-bot/internal/infra/web"
	"telegram-verification-bot/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode (console logging, verbose)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer func() { _ = redisClient.Close() }()
	rateLimiter := red.NewRateLimiter(redisClient)

	accountRepo := pg.NewPostgresAccountRepo(pool)
	cardKeyRepo := pg.NewCardKeyRepo(pool)
	attemptRepo := pg.NewVerificationRepo(pool)
	txManager := pg.NewTxManager(pool)

	gov := governor.New(cfg.Governor, governor.HostSampler, logger)
	go gov.Run(ctx)

	apiClient := sheerid.NewClient(cfg.SheerID, logger)
	providers := sheerid.NewProviderClients(cfg.SheerID, apiClient, identity.New(), logger)
	poller := sheerid.NewStatusPoller(apiClient, cfg.Poller, logger)

	ledgerUC := usecase.NewLedgerUseCase(accountRepo, cardKeyRepo, txManager, cfg.Verify, logger)
	verifyUC := usecase.NewVerifyUseCase(
		accountRepo,
		attemptRepo,
		ledgerUC,
		providers,
		gov,
		poller,
		rateLimiter,
		cfg.Verify,
		logger,
	)

	srv := web.NewServer(verifyUC, ledgerUC, gov, cfg.Admin, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Admin.Port).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server")
			cancel()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sigc:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
	logger.Info().Msg("bye")
}
