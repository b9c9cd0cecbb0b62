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

	"github.com/bauquery/bauquery/internal/api"
	"github.com/bauquery/bauquery/internal/auth"
	"github.com/bauquery/bauquery/internal/config"
	historypostgres "github.com/bauquery/bauquery/internal/history/postgres"
	"github.com/bauquery/bauquery/internal/llm"
	"github.com/bauquery/bauquery/internal/nlq"
	"github.com/bauquery/bauquery/internal/observability"
	sqliteengine "github.com/bauquery/bauquery/internal/query/sqlite"
	"github.com/bauquery/bauquery/internal/schema"
	"github.com/bauquery/bauquery/internal/session"
)

func main() {
	cfg, err := config.LoadFromEnv("bauquery-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	db, err := sqliteengine.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open dataset database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	datasetInfo, err := sqliteengine.Info(context.Background(), db)
	if err != nil {
		logger.Error("failed to read dataset info", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("dataset loaded",
		slog.String("path", cfg.Database.Path),
		slog.Int("stories", datasetInfo.Stories),
		slog.Int("elements", datasetInfo.Elements),
		slog.Int("relationships", datasetInfo.Relationships),
	)

	var client llm.Client
	if cfg.AI.APIKey != "" {
		openAIClient, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			BaseURL: cfg.AI.BaseURL,
			APIKey:  cfg.AI.APIKey,
			Model:   cfg.AI.Model,
			Timeout: cfg.AI.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialize model client", slog.Any("error", err))
			os.Exit(1)
		}
		client = openAIClient
	} else {
		logger.Warn("no model API key configured; query requests will fail until one is set")
	}

	sessions := session.NewStore(cfg.Session.MaxContextTurns, cfg.Session.IdleTTL)

	var archiver nlq.Archiver
	if cfg.History.DSN != "" {
		historyDB, err := historypostgres.Open(context.Background(), historypostgres.DBConfig{
			DSN:             cfg.History.DSN,
			MaxOpenConns:    cfg.History.MaxOpenConns,
			MaxIdleConns:    cfg.History.MaxIdleConns,
			ConnMaxIdleTime: cfg.History.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.History.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open history db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = historyDB.Close() }()

		archive := historypostgres.NewArchive(historyDB)
		if err := archive.EnsureSchema(context.Background()); err != nil {
			logger.Error("failed to prepare history schema", slog.Any("error", err))
			os.Exit(1)
		}
		archiver = archive
	}

	descriptor := schema.Construction()
	pipeline := &nlq.Pipeline{
		Schema:      descriptor,
		Client:      client,
		Engine:      sqliteengine.NewEngine(db, cfg.Database.QueryTimeout),
		Sessions:    sessions,
		Archiver:    archiver,
		Logger:      logger,
		RowLimit:    cfg.Database.RowLimit,
		MaxRetries:  cfg.AI.MaxRetries,
		Temperature: cfg.AI.Temperature,
	}

	modelName := "not configured"
	if client != nil {
		modelName = client.Name()
	}

	deps := api.Dependencies{
		Logger:      logger,
		Pipeline:    pipeline,
		Sessions:    sessions,
		Descriptor:  descriptor,
		DatasetInfo: datasetInfo,
		ModelName:   modelName,
		Readiness: api.CombineReadinessChecks(
			api.CheckDatabase(db.PingContext),
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

	go sessions.Run(ctx, cfg.Session.SweepInterval)

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
