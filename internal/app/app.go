package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/haakonmt/girobatch/internal/api"
	"github.com/haakonmt/girobatch/internal/api/middleware"
	"github.com/haakonmt/girobatch/internal/config"
	"github.com/haakonmt/girobatch/internal/db"
	"github.com/haakonmt/girobatch/internal/notify"
	"github.com/haakonmt/girobatch/internal/observability"
	"github.com/haakonmt/girobatch/internal/repository"
	"github.com/haakonmt/girobatch/internal/runlock"
	"github.com/haakonmt/girobatch/internal/service"
	"github.com/haakonmt/girobatch/internal/transport"
	"github.com/haakonmt/girobatch/internal/worker"
)

// Run bootstraps the HTTP server and the banking workers, blocking
// until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	bank, err := transport.NewDirTransport(cfg.BankDir)
	if err != nil {
		return fmt.Errorf("init bank transport: %w", err)
	}

	notifiers := notify.NewRegistry()
	notifiers.Register("log", notify.LogNotifier{})
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier, err := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return fmt.Errorf("init kafka notifier: %w", err)
		}
		defer kafkaNotifier.Close()
		notifiers.Register("kafka", kafkaNotifier)
	}

	ownerID := uuid.Nil
	if cfg.OwnerID != "" {
		ownerID, err = uuid.Parse(cfg.OwnerID)
		if err != nil {
			return fmt.Errorf("invalid OWNER_ID: %w", err)
		}
	}

	store := repository.NewStore(pool)
	queries := store.Queries()
	location := cfg.Location()

	donationSvc := service.NewDonationService(queries, notifiers)
	agreementSvc := service.NewAgreementService(queries)
	claimSvc := service.NewClaimService(queries, bank, notifiers, cfg.BankSenderID, cfg.BankAccountNo, location)
	var autoGiroSvc *service.AutoGiroService
	if cfg.AutoGiroEnabled() {
		autoGiroSvc = service.NewAutoGiroService(queries, donationSvc, agreementSvc, bank, ownerID,
			cfg.AutoGiroCustomerNo, cfg.AutoGiroBankgiroNo, location)
	}

	lock := runlock.New(redisClient, cfg.RunLockTTL)
	claimWorker := worker.NewClaimWorker(claimSvc, agreementSvc, lock, location).
		WithHours(cfg.DailyRunHour, cfg.RetryRunHour).
		WithAutoGiro(autoGiroSvc)
	inboundWorker := worker.NewInboundWorker(bank, donationSvc, queries, ownerID).
		WithPollInterval(cfg.InboundPollInterval).
		WithAutoGiro(autoGiroSvc)

	stopClaims := claimWorker.Run(ctx)
	stopInbound := inboundWorker.Run(ctx)
	logger.Info("workers started",
		zap.Int("daily_run_hour", cfg.DailyRunHour),
		zap.Int("retry_run_hour", cfg.RetryRunHour),
		zap.Duration("inbound_poll_interval", cfg.InboundPollInterval))

	router := api.NewRouter(pool, redisClient, store, agreementSvc, claimWorker, inboundWorker,
		cfg.PublicRateLimitRPS, cfg.AuthRateLimitRPS)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping workers")
	stopClaims()
	stopInbound()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
