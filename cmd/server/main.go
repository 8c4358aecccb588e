package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"potholeserver/internal/app"
	"potholeserver/internal/config"
	"potholeserver/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	application, err := app.NewApp(cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize server: %v", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		appLogger.Error("Server stopped: %v", err)
		application.Close()
		os.Exit(1)
	}
	appLogger.Info("🛑 Server stopped")
}
