package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"github.com/mashawir/ridebot/internal/activity"
	"github.com/mashawir/ridebot/internal/api/handlers"
	"github.com/mashawir/ridebot/internal/api/routes"
	"github.com/mashawir/ridebot/internal/bot"
	"github.com/mashawir/ridebot/internal/config"
	"github.com/mashawir/ridebot/internal/domain/moderation"
	"github.com/mashawir/ridebot/internal/domain/payment"
	"github.com/mashawir/ridebot/internal/domain/rating"
	"github.com/mashawir/ridebot/internal/domain/ride"
	"github.com/mashawir/ridebot/internal/domain/stats"
	"github.com/mashawir/ridebot/internal/domain/subscription"
	"github.com/mashawir/ridebot/internal/domain/user"
	modsvc "github.com/mashawir/ridebot/internal/service/moderation"
	"github.com/mashawir/ridebot/internal/service/payments"
	"github.com/mashawir/ridebot/internal/service/pricing"
	"github.com/mashawir/ridebot/internal/service/rides"
	"github.com/mashawir/ridebot/internal/service/subscriptions"
	"github.com/mashawir/ridebot/internal/session"
	"github.com/mashawir/ridebot/internal/storage/memory"
	"github.com/mashawir/ridebot/internal/storage/postgres"
	"github.com/mashawir/ridebot/internal/sweeper"
	"github.com/mashawir/ridebot/internal/telegram"
	"github.com/mashawir/ridebot/pkg/cache"
	"github.com/mashawir/ridebot/pkg/database"
	"github.com/mashawir/ridebot/pkg/logger"
	"github.com/mashawir/ridebot/pkg/monitoring"
	"github.com/mashawir/ridebot/pkg/websocket"
)

// repositories is the storage surface shared by both drivers
type repositories struct {
	users         user.Repository
	rides         ride.Repository
	ratings       rating.Repository
	subscriptions subscription.Repository
	payments      payment.Repository
	moderation    moderation.Repository
	stats         stats.Repository
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Mashawir bot",
		logger.String("env", cfg.Server.Env),
		logger.String("mode", cfg.Telegram.Mode),
		logger.String("storage", cfg.Storage.Driver),
		logger.String("sessions", cfg.Session.Store),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize New Relic
	nrApp, err := monitoring.New(monitoring.Config{
		LicenseKey: cfg.NewRelic.LicenseKey,
		AppName:    cfg.NewRelic.AppName,
		Enabled:    cfg.NewRelic.Enabled,
		LogLevel:   cfg.NewRelic.LogLevel,
	})
	if err != nil {
		appLogger.Warn("Failed to initialize New Relic", logger.Err(err))
	} else if nrApp.IsEnabled() {
		appLogger.Info("New Relic APM initialized", logger.String("app_name", cfg.NewRelic.AppName))
	} else {
		appLogger.Info("New Relic APM disabled")
	}
	defer nrApp.Shutdown(10 * time.Second)

	// Storage
	var (
		db   *sql.DB
		repo repositories
	)
	switch cfg.Storage.Driver {
	case "postgres":
		db, err = database.NewPostgresDB(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.Name,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConnections,
			MaxIdle:  cfg.Database.MaxIdleConns,
		})
		if err != nil {
			appLogger.Fatal("Failed to connect to PostgreSQL", logger.Err(err))
		}
		defer db.Close()

		if err := database.Migrate(ctx, db, moderation.DefaultBannedWords); err != nil {
			appLogger.Fatal("Failed to migrate schema", logger.Err(err))
		}
		appLogger.Info("Connected to PostgreSQL successfully")

		s := postgres.New(db)
		repo = repositories{s.Users, s.Rides, s.Ratings, s.Subscriptions, s.Payments, s.Moderation, s.Stats}
	default:
		s := memory.New(memory.WithBannedWords(moderation.DefaultBannedWords...))
		repo = repositories{s.Users, s.Rides, s.Ratings, s.Subscriptions, s.Payments, s.Moderation, s.Stats}
		appLogger.Warn("Using in-memory storage, data is lost on restart")
	}

	// Redis backs sessions and the sweeper lock
	var redisClient *redis.Client
	if cfg.Session.Store == "redis" || cfg.Sweeper.UseLock {
		redisClient, err = cache.NewRedisClient(ctx, cache.Config{
			Host:        cfg.Redis.Host,
			Port:        cfg.Redis.Port,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			MaxRetries:  cfg.Redis.MaxRetries,
			PoolSize:    cfg.Redis.PoolSize,
			MinIdleConn: cfg.Redis.MinIdleConn,
			DialTimeout: cfg.Redis.DialTimeout,
			ReadTimeout: cfg.Redis.ReadTimeout,
		})
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", logger.Err(err))
		}
		defer cache.Close(redisClient)
		appLogger.Info("Connected to Redis successfully")
	}

	var sessions session.Store
	if cfg.Session.Store == "redis" {
		sessions = session.NewRedisStore(redisClient, cfg.Session.TTL, appLogger)
	} else {
		sessions = session.NewMemoryStore(cfg.Session.TTL)
	}

	// Live activity feed
	wsHub := websocket.NewHub(appLogger)
	feed := activity.NewFeed(wsHub, nrApp, appLogger)

	// Services
	prices := pricing.NewService(pricing.Config{
		BaseFare:    cfg.Pricing.BaseFare,
		PerKMRate:   cfg.Pricing.PerKMRate,
		MinimumFare: cfg.Pricing.MinimumFare,
		FlatFare:    cfg.Pricing.FlatFare,
		Currency:    cfg.Pricing.Currency,
	})
	subs := subscriptions.NewService(repo.subscriptions, subscriptions.Config{
		WeeklyPrice:  cfg.Subscription.WeeklyPrice,
		WeeklyDays:   cfg.Subscription.WeeklyDays,
		MonthlyPrice: cfg.Subscription.MonthlyPrice,
		MonthlyDays:  cfg.Subscription.MonthlyDays,
		Currency:     cfg.Pricing.Currency,
		ApprovalDays: cfg.Subscription.ApprovalDays,
	}, appLogger)
	rideSvc := rides.NewService(repo.rides, repo.ratings, prices, feed, appLogger)
	paymentSvc := payments.NewService(repo.payments, repo.rides, subs, prices, feed, nrApp, appLogger)
	mod := modsvc.NewService(repo.moderation, modsvc.Config{
		WarnLimit:  cfg.Moderation.WarnLimit,
		WarnWindow: cfg.Moderation.WarnWindow,
	}, nrApp, appLogger)
	if err := mod.Reload(ctx); err != nil {
		appLogger.Fatal("Failed to load banned words", logger.Err(err))
	}

	// Telegram
	tg, err := telegram.New(telegram.Config{
		Token:         cfg.Telegram.Token,
		Mode:          cfg.Telegram.Mode,
		WebhookURL:    cfg.Telegram.WebhookURL,
		WebhookSecret: cfg.Telegram.WebhookSecret,
	}, appLogger.Component("telegram"))
	if err != nil {
		appLogger.Fatal("Failed to create Telegram client", logger.Err(err))
	}
	messenger := tg.Messenger()

	controller := bot.New(bot.Config{
		AdminUserID: cfg.Telegram.AdminUserID,
		AdminChatID: cfg.AdminChat(),
		SupportURL:  cfg.Telegram.SupportURL,
		RenewURL:    cfg.Telegram.RenewURL,
		Currency:    cfg.Pricing.Currency,
	}, bot.Deps{
		Messenger:     messenger,
		Sessions:      sessions,
		Users:         repo.users,
		Stats:         repo.stats,
		Rides:         rideSvc,
		Subscriptions: subs,
		Payments:      paymentSvc,
		Moderation:    mod,
		Feed:          feed,
		NewRelic:      nrApp,
		Logger:        appLogger.Component("bot"),
	})
	tg.SetHandler(controller)

	// Background sweeper
	sweepLogger := appLogger.Component("sweeper")
	sw := sweeper.New(nrApp, sweepLogger).
		Add(sweeper.NewBroadcastJob(mod, messenger, sweepLogger), cfg.Sweeper.BroadcastInterval).
		Add(sweeper.NewExpiryJob(subs, messenger, cfg.Telegram.RenewURL, sweepLogger), cfg.Sweeper.ExpiryInterval)
	if cfg.Sweeper.UseLock {
		sw.WithLocker(sweeper.NewRedisLocker(redisClient))
	}
	if nrApp.IsEnabled() {
		sw.Add(sweeper.NewPoolStatsJob(db, redisClient, nrApp), time.Minute)
	}

	// HTTP surface
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	h := handlers.NewHandlers(db, redisClient, repo.stats, wsHub, appLogger.Component("http"))
	h.ReadBufferSize = cfg.WebSocket.ReadBufferSize
	h.WriteBufferSize = cfg.WebSocket.WriteBufferSize
	if cfg.Telegram.Mode == telegram.ModeWebhook {
		h.WithWebhook(tg.WebhookHandler())
	}

	var nrApplication *newrelic.Application
	if nrApp.IsEnabled() {
		nrApplication = nrApp.Application
	}
	routes.SetupRoutes(router, h, nrApplication)

	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	var wg sync.WaitGroup
	run := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
			appLogger.Info("Component stopped", logger.String("component", name))
		}()
	}

	run("hub", func() { wsHub.Run(ctx) })
	run("sweeper", func() { sw.Run(ctx) })
	run("telegram", func() {
		if err := tg.Run(ctx); err != nil {
			appLogger.Error("Telegram client failed", logger.Err(err))
			stop()
		}
	})
	run("http", func() {
		appLogger.Info("Server starting", logger.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed", logger.Err(err))
			stop()
		}
	})

	<-ctx.Done()
	appLogger.Info("Shutting down...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.Err(err))
	}

	wg.Wait()
	appLogger.Info("Bot stopped gracefully")
}
