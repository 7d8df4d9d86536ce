package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"proctor-sync/internal/app"
	"proctor-sync/internal/config"
	"proctor-sync/internal/logx"
)

func main() {
	cfg := config.Load()
	logger := logx.New(logx.Config{
		Service: config.PluginName,
		Version: config.PluginVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logx.WithContext(ctx, logger)

	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer a.Close()

	if err := a.Run(ctx, ":"+cfg.Port); err != nil {
		logger.Error("server stopped", "error", err)
	}
}
