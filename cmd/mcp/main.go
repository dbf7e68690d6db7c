package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/websearch-gateway/internal/conf"
	"github.com/lk2023060901/websearch-gateway/internal/pkg/logger"
	"github.com/lk2023060901/websearch-gateway/internal/server"
	"github.com/lk2023060901/websearch-gateway/internal/websearch/manager"
)

var (
	configFile = flag.String("config", "config.yaml", "config file path")
	httpAddr   = flag.String("http", "", "serve MCP over streamable HTTP on this address instead of stdio")
)

func main() {
	flag.Parse()

	config, err := conf.Load(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// In stdio mode the protocol owns stdout, so logs move to stderr
	if *httpAddr == "" && config.Log.Output != "file" {
		config.Log.ConsoleTarget = "stderr"
	}

	log, err := logger.New(&config.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	if err := logger.InitGlobal(&config.Log); err != nil {
		log.Fatal("failed to initialize global logger", zap.Error(err))
	}

	searchManager, err := manager.New(
		manager.WithDefaultProvider(config.Search.DefaultProviderID()),
		manager.WithLogger(log.Named("manager").Logger),
	)
	if err != nil {
		log.Fatal("failed to initialize search manager", zap.Error(err))
	}

	mcpServer := server.NewMCPServer(searchManager, log.Named("mcp"))

	if *httpAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/mcp", server.NewMCPHTTPHandler(mcpServer))

		httpServer := &http.Server{
			Addr:    *httpAddr,
			Handler: mux,
		}

		go func() {
			log.Info("starting MCP HTTP server", zap.String("addr", *httpAddr))
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal("failed to start MCP HTTP server", zap.Error(err))
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Info("shutting down MCP HTTP server...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Error("MCP HTTP server forced to shutdown", zap.Error(err))
		}

		log.Info("MCP HTTP server exited")
		return
	}

	// Stdio mode runs until the client disconnects or a signal arrives
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting MCP server on stdio")

	if err := server.ServeMCPStdio(ctx, mcpServer); err != nil && ctx.Err() == nil {
		log.Error("MCP server exited", zap.Error(err))
		return
	}

	log.Info("MCP server stopped")
}
