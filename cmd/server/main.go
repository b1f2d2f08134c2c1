package main

import (
	"context"
	"log"

	"github.com/bookline/bookline/internal/app"
	"github.com/bookline/bookline/internal/calendar"
	"github.com/bookline/bookline/internal/config"
	"github.com/bookline/bookline/internal/lock"
	"github.com/bookline/bookline/internal/notify"
	"github.com/bookline/bookline/internal/repository"
	"github.com/bookline/bookline/internal/repository/memory"
	"github.com/bookline/bookline/internal/server"
	"github.com/bookline/bookline/internal/service"

	"github.com/go-redis/redis/v8"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	var (
		requests  service.RequestStore
		audit     service.AuditStore
		schedule  service.AvailabilityStore
		offerings service.OfferingStore
	)

	switch cfg.Store {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DBDSN)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		migrator, err := app.NewMigrator(pool, cfg.MigrationsPath, logger)
		if err != nil {
			logger.Fatal("failed to create migrator", zap.Error(err))
		}
		if err := migrator.Run(ctx); err != nil {
			logger.Fatal("failed to apply migrations", zap.Error(err))
		}
		migrator.Close()

		requests = repository.NewRequestRepository(pool)
		audit = repository.NewAuditRepository(pool)
		schedule = repository.NewAvailabilityRepository(pool)
		offerings = repository.NewOfferingRepository(pool)

	case "memory":
		store := memory.NewStore()
		requests, audit, schedule, offerings = store, store, store, store
		logger.Warn("using in-memory store, data will not survive restarts")
	}

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		locker = lock.NewRedisLocker(client, 0)
		logger.Info("using redis bulk guard", zap.String("addr", cfg.RedisAddr))
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		b, err := bot.New(cfg.TelegramToken)
		if err != nil {
			logger.Fatal("failed to create telegram bot", zap.Error(err))
		}
		notifier = notify.NewTelegramNotifier(b, cfg.TelegramChatID)
		logger.Info("telegram notification sink enabled")
	}

	var external service.BusySource
	if cfg.CalendarTokenJSON != "" {
		tokens, err := calendar.NewStaticTokenStore([]byte(cfg.CalendarTokenJSON))
		if err != nil {
			logger.Fatal("failed to parse calendar token", zap.Error(err))
		}
		external = calendar.NewGoogleBusySource(tokens, "")
		logger.Info("google calendar busy feed enabled")
	}

	availabilitySvc := service.NewAvailabilityService(schedule, requests, offerings, external, cfg.CalendarTimeout, logger)
	bookingSvc := service.NewBookingService(requests, audit, offerings, availabilitySvc, notifier, logger)
	bulkSvc := service.NewBulkService(requests, bookingSvc, locker, logger)
	offeringSvc := service.NewOfferingService(offerings)
	metricsSvc := service.NewMetricsService(requests, audit, offerings, logger)

	srv := server.New(bookingSvc, bulkSvc, availabilitySvc, offeringSvc, metricsSvc, logger)

	logger.Info("starting booking engine",
		zap.String("environment", cfg.Environment),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("store", cfg.Store),
	)

	if err := server.Run(srv.Router(), cfg.HTTPAddr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
