package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/playontable/backend/internal/config"
	"github.com/playontable/backend/internal/handlers"
	"github.com/playontable/backend/internal/presence"
	"github.com/playontable/backend/internal/relay"
	"github.com/playontable/backend/internal/routers"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	registry := relay.NewRegistry()
	publisher := presence.NewPublisher(cfg.RedisAddr, logger)
	dispatcher := relay.NewDispatcher(registry, cfg.Policy, publisher, logger)
	router := routers.NewRouter(handlers.NewHandlers(dispatcher, registry, logger))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("relay starting",
			zap.String("addr", server.Addr),
			zap.Bool("presence", cfg.RedisAddr != ""))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChan

	logger.Info("relay shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	registry.Clear()
	publisher.Close()
	logger.Info("relay exited")
}
