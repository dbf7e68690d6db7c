package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/websearch-gateway/internal/conf"
	"github.com/lk2023060901/websearch-gateway/internal/pkg/logger"
	"github.com/lk2023060901/websearch-gateway/internal/server"
	"github.com/lk2023060901/websearch-gateway/internal/websearch/manager"
	"github.com/lk2023060901/websearch-gateway/internal/websearch/service"
)

var (
	configFile = flag.String("config", "config.yaml", "config file path")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.Load(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger with config
	log, err := logger.New(&config.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	// Initialize global logger
	if err := logger.InitGlobal(&config.Log); err != nil {
		log.Fatal("failed to initialize global logger", zap.Error(err))
	}

	log.Info("config loaded successfully")

	// Provider credentials and settings come from the environment
	searchManager, err := manager.New(
		manager.WithDefaultProvider(config.Search.DefaultProviderID()),
		manager.WithLogger(log.Named("manager").Logger),
	)
	if err != nil {
		log.Fatal("failed to initialize search manager", zap.Error(err))
	}

	searchService := service.NewSearchService(searchManager, log.Named("service").Logger)

	httpServer := server.NewHTTPServer(config, log, searchService)

	// Start server in goroutine
	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	log.Info("server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
