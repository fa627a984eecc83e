package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tabletalk/tabletalk/internal/api"
	"github.com/tabletalk/tabletalk/internal/api/uistatic"
	"github.com/tabletalk/tabletalk/internal/auth"
	"github.com/tabletalk/tabletalk/internal/chat"
	"github.com/tabletalk/tabletalk/internal/config"
	duckdbengine "github.com/tabletalk/tabletalk/internal/exec/duckdb"
	"github.com/tabletalk/tabletalk/internal/maintenance"
	"github.com/tabletalk/tabletalk/internal/model"
	"github.com/tabletalk/tabletalk/internal/observability"
	"github.com/tabletalk/tabletalk/internal/prompt"
	"github.com/tabletalk/tabletalk/internal/session"
	"github.com/tabletalk/tabletalk/internal/storage"
	memorystore "github.com/tabletalk/tabletalk/internal/storage/memory"
	s3store "github.com/tabletalk/tabletalk/internal/storage/s3"
	"github.com/tabletalk/tabletalk/internal/tabular"
)

var exampleQuestions = []string{
	"What is the average income?",
	"Show number of customers by region.",
	"Give me a bar chart of sales per category.",
	"Compare male vs female loan approval rates.",
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("tabletalk-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	var objectStore storage.ObjectStore
	switch cfg.ObjectStore.Backend {
	case config.BackendMemory:
		objectStore = memorystore.New()
		logger.Info("using in-memory object store; snapshots do not survive a restart")
	case config.BackendS3:
		objectStore, err = s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
	default:
		logger.Error("unknown object store backend", slog.String("backend", cfg.ObjectStore.Backend))
		os.Exit(1)
	}

	engine := duckdbengine.NewEngine(objectStore, duckdbengine.Config{
		Timeout:       cfg.Executor.Timeout,
		RowLimit:      cfg.Executor.RowLimit,
		MemoryLimitMB: cfg.Executor.MemoryLimitMB,
		MaxConcurrent: cfg.Executor.MaxConcurrent,
	})

	sessions := session.NewStore(session.Config{
		TTL:         cfg.Session.TTL,
		MaxSessions: cfg.Session.MaxSessions,
	}, objectStore)

	composer := prompt.NewComposer(prompt.Config{
		SampleValues:   cfg.Prompt.SampleValues,
		MaxQuestionLen: cfg.Prompt.MaxQuestionLen,
	})

	var client model.Client
	if cfg.Model.APIKey != "" {
		client, err = model.NewOpenAIClient(model.OpenAIConfig{
			BaseURL:     cfg.Model.BaseURL,
			APIKey:      cfg.Model.APIKey,
			Model:       cfg.Model.Name,
			Temperature: cfg.Model.Temperature,
			Timeout:     cfg.Model.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialize model client", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		client = model.Disabled{Reason: "TABLETALK_MODEL_API_KEY is not set"}
		logger.Warn("model client disabled; ask requests will return MODEL_NOT_CONFIGURED")
	}

	chatService, err := chat.NewService(tabular.Limits{
		MaxRows:    cfg.Upload.MaxRows,
		MaxColumns: cfg.Upload.MaxColumns,
		MaxBytes:   cfg.Upload.MaxBytes,
	}, chat.Dependencies{
		Sessions: sessions,
		Composer: composer,
		Client:   client,
		Engine:   engine,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to initialize chat service", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:      logger,
		Chat:        chatService,
		Sessions:    sessions,
		PreviewRows: cfg.UI.PreviewRows,
		Examples:    exampleQuestions,
		UI:          uistatic.Handler(),
		Readiness: api.CombineReadinessChecks(
			api.CheckObjectStoreConfig(cfg),
			api.CheckModelConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	janitor := &maintenance.Service{
		Sessions:    sessions,
		ObjectStore: objectStore,
		Config: maintenance.Config{
			SweepInterval: cfg.Janitor.SweepInterval,
			ScanInterval:  cfg.Janitor.ScanInterval,
			OrphanAge:     cfg.Janitor.OrphanAge,
		},
		Logger: logger,
	}
	go func() {
		if err := janitor.Run(ctx); err != nil {
			logger.Error("janitor stopped", slog.Any("error", err))
		}
	}()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
