package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"
	"github.com/tikup-service/tikup_service/internal/api/routes"
	"github.com/tikup-service/tikup_service/internal/bot"
	"github.com/tikup-service/tikup_service/internal/domain/services/commission"
	"github.com/tikup-service/tikup_service/internal/domain/services/deposit"
	"github.com/tikup-service/tikup_service/internal/domain/services/notify"
	"github.com/tikup-service/tikup_service/internal/domain/services/reconcile"
	"github.com/tikup-service/tikup_service/internal/domain/services/referral"
	"github.com/tikup-service/tikup_service/internal/infrastructure/adapters/vietqr"
	"github.com/tikup-service/tikup_service/internal/infrastructure/cache"
	"github.com/tikup-service/tikup_service/internal/infrastructure/config"
	"github.com/tikup-service/tikup_service/internal/infrastructure/database"
	"github.com/tikup-service/tikup_service/internal/infrastructure/repositories"
	intentexpiry "github.com/tikup-service/tikup_service/internal/workers/intent_expiry"
	"github.com/tikup-service/tikup_service/pkg/graceful"
	"github.com/tikup-service/tikup_service/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}

	if err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	redisClient, err := cache.NewRedisClient(&cfg.Redis, log.Zap())
	if err != nil {
		log.Fatal("Failed to connect to redis", "error", err)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		log.Fatal("Failed to create telegram bot client", "error", err)
	}
	log.Info("Telegram bot authorized", "username", botAPI.Self.UserName)

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	intentRepo := repositories.NewIntentRepository(db)
	affiliateRepo := repositories.NewAffiliateRepository(db)
	commissionRepo := repositories.NewCommissionRepository(db)

	// Domain services
	sink := notify.NewTelegramSink(botAPI, log)
	depositService := deposit.NewService(intentRepo, cfg.Payment.DescriptionPrefix, log)
	referralService := referral.NewService(userRepo, affiliateRepo, cfg.Telegram.BotUsername, log)
	commissionService := commission.NewService(userRepo, affiliateRepo, commissionRepo, sink, log)
	reconcileService := reconcile.NewService(intentRepo, commissionService, sink, cfg.Payment.DescriptionPrefix, log)

	qrClient := vietqr.NewClient(vietqr.Config{
		BankName:    cfg.Payment.BankName,
		BankAccount: cfg.Payment.BankAccount,
		AccountName: cfg.Payment.BankAccountName,
	}, log.Zap())

	// Telegram front-end
	stateTTL := time.Duration(cfg.Telegram.StateTTLSecs) * time.Second
	tgBot := bot.New(bot.Config{
		API:       botAPI,
		Deposits:  depositService,
		Referrals: referralService,
		Users:     userRepo,
		QR:        qrClient,
		State:     bot.NewStateStore(redisClient, stateTTL),
		Limiter:   bot.NewRateLimiter(redisClient, cfg.Telegram.RateLimitPerMin),
		Bank: bot.BankInfo{
			Name:        cfg.Payment.BankName,
			Account:     cfg.Payment.BankAccount,
			AccountName: cfg.Payment.BankAccountName,
		},
		UpdateTimeout: cfg.Telegram.UpdateTimeout,
		Logger:        log,
	})

	botCtx, stopBot := context.WithCancel(context.Background())
	go tgBot.Run(botCtx)

	// Expiry sweep on a fixed cadence
	expiryWorker := intentexpiry.NewWorker(intentRepo, sink, &intentexpiry.Config{
		SweepInterval: time.Duration(cfg.Workers.ExpirySweepSeconds) * time.Second,
		BatchSize:     cfg.Workers.ExpiryBatchSize,
	}, log)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(
		fmt.Sprintf("@every %ds", cfg.Workers.ExpirySweepSeconds),
		func() { expiryWorker.RunOnce(context.Background()) },
	); err != nil {
		log.Fatal("Failed to schedule expiry sweep", "error", err)
	}
	scheduler.Start()
	log.Info("Expiry scheduler started", "sweep_seconds", cfg.Workers.ExpirySweepSeconds)

	// HTTP surface
	router := routes.SetupRoutes(&routes.Deps{
		Config:     cfg,
		Logger:     log,
		DB:         db,
		Cache:      redisClient,
		Reconciler: reconcileService,
	})

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Info("Starting server", "port", cfg.Server.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	shutdown := graceful.NewShutdownManager(server, db.DB, log)
	shutdown.Register(graceful.ShutdownFunc(func(timeout time.Duration) error {
		stopBot()
		return nil
	}))
	shutdown.Register(graceful.ShutdownFunc(func(timeout time.Duration) error {
		ctx := scheduler.Stop()
		select {
		case <-ctx.Done():
		case <-time.After(timeout):
		}
		return nil
	}))
	shutdown.Register(graceful.ShutdownFunc(func(timeout time.Duration) error {
		return redisClient.Close()
	}))
	shutdown.WaitForShutdown()
}
