package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os/signal"
	"syscall"
	"time"

	"warbler/internal/cache"
	"warbler/internal/config"
	"warbler/internal/database"
	"warbler/internal/handler"
	"warbler/internal/logger"
	"warbler/internal/model"
	"warbler/internal/queue"
	"warbler/internal/redis"
	"warbler/internal/repository"
	"warbler/internal/service"
	"warbler/internal/session"
	"warbler/internal/storage"
	"warbler/internal/worker"
)

var log = logger.Component("Server")

func Run() error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// 3. Connect to Redis
	rdb, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()
	if err := rdb.Ping(ctx); err != nil {
		return err
	}

	// 4. Object storage (optional)
	store, err := storage.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up storage: %w", err)
	}

	// 5. Repositories, cache and queue
	userRepo := repository.NewUserRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	followRepo := repository.NewFollowRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	tx := repository.NewTransactor(db)

	timelines := cache.NewTimelineCache(rdb.Client)
	publisher := queue.NewPublisher(rdb.Client)
	consumer := queue.NewConsumer(rdb.Client)

	// 6. Services
	mediaService := service.NewMediaService(store)
	userService := service.NewUserService(userRepo, followRepo, messageRepo, model.ProfileDefaults{
		ImageURL:       cfg.DefaultImageURL,
		HeaderImageURL: cfg.DefaultHeaderImageURL,
	})
	userService.SetImageRemover(mediaService)
	followService := service.NewFollowService(followRepo, userRepo, timelines)
	messageService := service.NewMessageService(messageRepo, followRepo, publisher, timelines)
	likeService := service.NewLikeService(likeRepo, tx)
	feedService := service.NewFeedService(messageRepo, followRepo, likeService, timelines)
	tokenService := service.NewTokenService(cfg.JWTSecret, cfg.AccessTokenMaxAge)

	sessions := session.NewManager(
		session.NewRedisStore(rdb.Client, session.SessionTTL(cfg.SessionMaxAge)),
		cfg.SessionSecret,
		cfg.SessionMaxAge,
		cfg.SessionSecure,
	)

	// 7. Background workers
	workerCfg := worker.DefaultManagerConfig()
	workerCfg.WorkerCount = cfg.FeedWorkers
	workers := worker.NewManager(consumer, worker.NewHandler(timelines, followRepo), workerCfg)
	if err := workers.Start(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	defer workers.Stop()

	maintenance, err := worker.NewMaintenance(publisher, cfg.StreamTrimSchedule, cfg.StreamMaxLen)
	if err != nil {
		return err
	}
	maintenance.Start()
	defer maintenance.Stop()

	// 8. HTTP
	router := NewRouter(RouterConfig{
		Sessions:           sessions,
		Users:              userService,
		Tokens:             tokenService,
		AuthHandler:        handler.NewAuthHandler(sessions, userService, mediaService),
		FeedHandler:        handler.NewFeedHandler(sessions, feedService),
		UserHandler:        handler.NewUserHandler(sessions, userService, mediaService),
		FollowHandler:      handler.NewFollowHandler(sessions, followService),
		MessageHandler:     handler.NewMessageHandler(sessions, messageService),
		LikeHandler:        handler.NewLikeHandler(sessions, likeService, userService),
		APIHandler:         handler.NewAPIHandler(userService, tokenService, feedService, messageService, likeService, followService),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exiting")
	return nil
}
