package main

import (
	"context"
	"log"
	"time"

	"tutor-match/config"
	"tutor-match/internal/events"
	"tutor-match/internal/handler"
	"tutor-match/internal/jobs"
	"tutor-match/internal/middleware"
	"tutor-match/internal/proxy"
	"tutor-match/internal/redis"
	"tutor-match/internal/repository"
	"tutor-match/internal/server"
	"tutor-match/internal/services"
	"tutor-match/internal/transport/httpdto"
	"tutor-match/internal/websocket"
	"tutor-match/pkg/database"
	"tutor-match/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const profileCacheTTL = 5 * time.Minute

func main() {
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		mode = logger.ProductionMode
	}
	l := logger.NewWithOptions(logger.Options{
		Mode:       mode,
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	})
	defer l.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := repository.InitSchema(db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	if err := httpdto.RegisterValidators(); err != nil {
		log.Fatalf("Failed to register validators: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Repositories
	users := repository.NewUserRepository(db)
	swipes := repository.NewSwipeRepository(db)
	matches := repository.NewMatchRepository(db)
	conversations := repository.NewConversationRepository(db)
	messages := repository.NewMessageRepository(db)
	uow := repository.NewUnitOfWork(db)

	srv := server.New(cfg, l)
	srv.AddHealthCheck("postgres", func(ctx context.Context) error {
		return database.HealthCheck(ctx, db)
	})

	// Redis backed collaborators stay nil interfaces when redis is off.
	var (
		rdb             *goredis.Client
		profileCache    services.ProfileCache
		presenceReader  services.PresenceReader
		presenceTracker websocket.PresenceTracker
		presenceCleaner jobs.PresenceCleaner
		limiter         middleware.Limiter
	)
	if cfg.RedisEnabled() {
		rdb = redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := redis.Ping(ctx, rdb); err != nil {
			l.Warnf("redis unreachable at startup: %v", err)
		}
		srv.AddHealthCheck("redis", func(ctx context.Context) error {
			return redis.Ping(ctx, rdb)
		})

		presence := redis.NewPresenceStore(rdb, time.Duration(cfg.PresenceTTLSec)*time.Second)
		presenceReader = presence
		presenceTracker = presence
		presenceCleaner = presence
		profileCache = redis.NewProfileCache(rdb, profileCacheTTL)
		limiter = redis.NewRateLimiter(rdb, redis.RateLimitConfig{
			SwipeLimit:    cfg.SwipeRateLimit,
			SwipeWindow:   time.Duration(cfg.SwipeRateWindowSec) * time.Second,
			MessageLimit:  cfg.MessageRateLimit,
			MessageWindow: time.Duration(cfg.MessageRateWindowSec) * time.Second,
		})
	}

	// Realtime
	hub := websocket.NewHub()
	var broadcaster services.Broadcaster = websocket.NewLocalBroadcaster(hub)
	if cfg.RealtimeBackend == "redis" {
		if rdb == nil {
			log.Fatalf("REALTIME_BACKEND=redis requires REDIS_HOST")
		}
		pubsub := redis.NewPubSub(rdb)
		broadcaster = events.NewRedisBroadcaster(pubsub)
		bridge := websocket.NewRedisBridge(pubsub, hub, l)
		go func() {
			if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
				l.Logger.Error("redis bridge stopped", zap.Error(err))
			}
		}()
	}

	// Services
	access := proxy.NewAccessControl(matches, conversations)
	profiles := services.NewProfileService(users, profileCache, presenceReader, l)
	matchService := services.NewMatchService(users, swipes, matches, access, broadcaster, l)
	swipeService := services.NewSwipeService(users, swipes, matchService, l)
	conversationService := services.NewConversationService(conversations, matches, messages, profiles, access, l)
	messageService := services.NewMessageService(uow, messages, access, broadcaster, services.PageLimits{
		Default: cfg.MessagePageSize,
		Max:     cfg.MessagePageSizeMax,
	}, l)
	authService := services.NewAuthService(cfg)

	// Jobs
	scheduler, err := jobs.NewScheduler(jobs.Config{
		PresenceCleanupSpec:  cfg.PresenceCleanupSpec,
		PresenceTTL:          time.Duration(cfg.PresenceTTLSec) * time.Second,
		ReconcileMatchesSpec: cfg.ReconcileMatchesSpec,
	}, presenceCleaner, swipes, matchService, l)
	if err != nil {
		log.Fatalf("Failed to schedule jobs: %v", err)
	}
	scheduler.Start()

	srv.SetupRoutes(&server.Handlers{
		Swipes:        handler.NewSwipeHandler(swipeService),
		Matches:       handler.NewMatchHandler(matchService, conversationService),
		Conversations: handler.NewConversationHandler(conversationService),
		Messages:      handler.NewMessageHandler(messageService),
		Realtime:      websocket.NewHandler(authService, hub, conversationService, presenceTracker, websocket.NewEventLogger(l), cfg.WSAllowedOrigins),
	}, authService, limiter)

	srv.OnShutdown(func(ctx context.Context) {
		scheduler.Stop(ctx)
		cancel()
		hub.Close()
	})

	if err := srv.Start(); err != nil {
		l.Errorf("Server shutdown error: %v", err)
	}
}
