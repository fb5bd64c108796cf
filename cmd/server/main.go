package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Frida144/site-segnorito/internal/app"
	"github.com/Frida144/site-segnorito/internal/config"
	"github.com/Frida144/site-segnorito/pkg/logger"
)

const serviceName = "senorito-cart"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("cart service exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("cart service stopped")
}

// run blocks until SIGINT or SIGTERM, then drains the server.
func run(cfg *config.Config, log *slog.Logger) error {
	log.Info("starting cart service",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.String("storage", cfg.StorageBackend),
		slog.Bool("events", len(cfg.KafkaBrokers) > 0),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return application.Run(ctx)
}
