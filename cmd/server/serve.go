package main

import (
	"context"
	"ctchen222/item-registry/internal/api/controller"
	apirepository "ctchen222/item-registry/internal/api/repository"
	"ctchen222/item-registry/internal/api/service"
	"ctchen222/item-registry/internal/config"
	"ctchen222/item-registry/internal/db"
	"ctchen222/item-registry/internal/events"
	"ctchen222/item-registry/internal/hub"
	"ctchen222/item-registry/internal/logger"
	"ctchen222/item-registry/internal/repository"
	"ctchen222/item-registry/internal/server"
	"ctchen222/item-registry/internal/telemetry"
	"ctchen222/item-registry/internal/validator"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API and the live ownership events feed. The schema is
created on start, so running migrate first is optional.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := telemetry.InitOtel(ctx, cfg.OtelEndpoint, cfg.ServiceName)
	if err != nil {
		return oops.Code("TELEMETRY_INIT_FAILED").With("otel_endpoint", cfg.OtelEndpoint).Wrap(err)
	}
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			cmd.PrintErrf("Error shutting down telemetry: %v\n", err)
		}
	}()

	log := logger.Init(cfg.LogLevel, cfg.OtelEndpoint != "")
	gin.SetMode(gin.ReleaseMode)

	pool, err := db.OpenAndMigrate(ctx, cfg.DatabasePath)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("database_path", cfg.DatabasePath).Wrap(err)
	}
	defer pool.Close()

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb, err = db.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return oops.Code("REDIS_CONNECT_FAILED").With("redis_addr", cfg.RedisAddr).Wrap(err)
		}
		defer rdb.Close()
	}

	// Create repositories
	userRepo := apirepository.NewUserRepository(pool, cfg.StoreTimeout)
	itemRepo := apirepository.NewItemRepository(pool, cfg.StoreTimeout)
	sessionRepo := apirepository.NewSessionRepository(pool, cfg.StoreTimeout)
	if cfg.SessionStore == config.SessionStoreRedis {
		sessionRepo = repository.NewSessionRepository(rdb, cfg.StoreTimeout)
	}

	// Create hub
	h := hub.NewHub(log)
	hubDone := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(hubDone)
	}()
	var publisher events.Publisher = h
	if cfg.EventsBackend == config.EventsBackendRedis {
		publisher = repository.NewEventPublisher(rdb)
		go h.RunSubscriber(ctx, rdb)
	}

	// Create services
	key := []byte(cfg.SecretKey)
	opts := []service.Option{service.WithLogger(log)}
	hasher := service.NewBcryptHasher(bcrypt.DefaultCost)
	sessions := service.NewSessionTokenService(key, cfg.SessionTTL, sessionRepo, opts...)
	transfers := service.NewTransferTokenService(key, userRepo, itemRepo, opts...)
	guard := service.NewAuthGuard(userRepo, hasher, sessions, opts...)
	userService := service.NewUserService(userRepo, hasher, validator.DefaultPolicy{}, guard, sessions, opts...)
	itemService := service.NewItemService(itemRepo, transfers, publisher, cfg.PublicBaseURL, opts...)

	// Create controllers
	userController := controller.NewUserController(userService, log)
	itemController := controller.NewItemController(itemService, log)

	srv := server.NewServer(h, guard, userController, itemController, log)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "HTTP server started",
			"http.addr", cfg.HTTPAddr,
			"session_store", cfg.SessionStore,
			"events_backend", cfg.EventsBackend,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return oops.Code("HTTP_LISTEN_FAILED").With("http_addr", cfg.HTTPAddr).Wrap(err)
		}
	}

	log.Info("Shutting down server...")
	stop()
	<-hubDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return oops.Code("HTTP_SHUTDOWN_FAILED").Wrap(err)
	}

	log.Info("Server exiting")
	return nil
}
