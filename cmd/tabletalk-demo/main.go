package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tabletalk/tabletalk/internal/demo/seeder"
)

func main() {
	_ = godotenv.Load()

	cfg, err := seeder.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		slog.Error("failed to load demo config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	service, err := seeder.NewService(cfg, logger, nil)
	if err != nil {
		logger.Error("failed to initialize demo seeder", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("demo seeder started",
		slog.String("api_url", cfg.APIBaseURL),
		slog.Int("rows", cfg.Rows),
		slog.Bool("write_files", cfg.WriteFiles),
		slog.Bool("run_conversation", cfg.RunConversation),
	)

	err = service.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("demo seeder failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("demo seeder finished")
}
