package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/benvon/smart-tutor/internal/bootstrap"
	"github.com/benvon/smart-tutor/internal/config"
	"github.com/benvon/smart-tutor/internal/logger"
	"github.com/benvon/smart-tutor/internal/mcpserver"
)

var version = "dev"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.LoadOffline(os.Getenv)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// stdout carries the protocol; logs go to stderr.
	zapLogger, err := logger.New(logger.Options{Service: "smart-tutor-mcp", Debug: *debugFlag})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: cfg.ModelCallTimeout}
	pipeline, err := bootstrap.Pipeline(cfg, httpClient, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to build response pipeline", zap.Error(err))
	}

	stdio := server.NewStdioServer(mcpserver.New(pipeline, version, zapLogger))
	stdio.SetErrorLogger(zap.NewStdLog(zapLogger))

	zapLogger.Info("mcp_server_started", zap.String("transport", "stdio"), zap.String("version", version))
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		zapLogger.Error("mcp_server_error", zap.Error(err))
		return
	}
	zapLogger.Info("mcp_server_stopped")
}
