package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"order_engine/internal/auth"
	"order_engine/internal/config"
	"order_engine/internal/database"
	"order_engine/internal/handlers"
	"order_engine/internal/realtime"
	"order_engine/internal/redis"
	"order_engine/internal/repository"
	"order_engine/internal/services"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Initialize(cfg.DatabaseURL, cfg.DBLogLevel)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	store := repository.NewStore(db)

	registry := realtime.NewRegistry(logger.Named("realtime"))
	checks := map[string]handlers.Pinger{
		"database": handlers.PingFunc(func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
	}

	// Without redis every instance only reaches its own subscribers.
	var publisher realtime.Publisher = realtime.NewLocalPublisher(registry)
	if cfg.RedisURL != "" {
		redisClient, err := redis.Initialize(cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()

		if err := realtime.StartRelay(ctx, redisClient, cfg.FanoutChannel, registry, logger.Named("relay")); err != nil {
			logger.Fatal("failed to subscribe to fanout channel", zap.Error(err))
		}
		publisher = realtime.NewBusPublisher(redisClient, cfg.FanoutChannel)
		checks["redis"] = redisClient
		logger.Info("cross-instance fanout enabled", zap.String("channel", cfg.FanoutChannel))
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	notifier := services.NewNotificationService(store.Repositories().MenuItems, publisher, cfg.BroadcastTimeout, logger.Named("notify"))
	orderService := services.NewOrderService(store, notifier, logger.Named("orders"))
	inventoryService := services.NewInventoryService(store, logger.Named("inventory"))
	riderService := services.NewRiderService(store, logger.Named("riders"))
	userService := services.NewUserService(store, tokens, logger.Named("users"))

	router := handlers.NewRouter(handlers.Handlers{
		API:      handlers.NewAPIHandler(checks, logger),
		Auth:     handlers.NewAuthHandler(userService, logger),
		Orders:   handlers.NewOrderHandler(orderService, logger),
		Menu:     handlers.NewMenuHandler(inventoryService, riderService, logger),
		Realtime: handlers.NewRealtimeHandler(registry, tokens, orderService, cfg.AllowedOrigins, cfg.WSSendBuffer, logger.Named("ws")),
	}, tokens, logger.Named("http"))

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	notifier.Wait()
	logger.Info("server stopped")
}
