package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/RichardoC/companion-chat/internal/api"
	"github.com/RichardoC/companion-chat/internal/config"
	"github.com/RichardoC/companion-chat/internal/db"
	"github.com/RichardoC/companion-chat/internal/llm"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zapCfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Fatal("failed to load configuration", zap.Error(err))
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Fatal("failed to build logger", zap.Error(err), zap.String("logLevel", cfg.LogLevel))
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DatabaseURL, cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database",
			zap.Error(err),
			zap.String("dbPath", cfg.DBPath),
			zap.Bool("databaseURL", cfg.DatabaseURL != ""))
	}
	defer database.Close()
	logger.Info("database ready", zap.String("driver", database.Driver()))

	personas, err := llm.LoadPersonas(cfg.PersonasFile)
	if err != nil {
		logger.Fatal("failed to load personas", zap.Error(err), zap.String("personasFile", cfg.PersonasFile))
	}

	client, err := llm.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if err != nil {
		logger.Fatal("failed to initialize completion client", zap.Error(err))
	}

	llmService := llm.New(client, database, personas, logger.Named("llm"), llm.Config{
		MaxTokens:  cfg.CompletionMaxTokens,
		Timeout:    cfg.CompletionTimeout,
		MaxRetries: cfg.CompletionMaxRetries,
	})

	handler := api.NewHandler(database, llmService, logger.Named("api"))

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewRouter(handler, api.NewMetrics()),
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Starting server", zap.String("addr", cfg.HTTPAddr), zap.String("model", cfg.OpenAIModel))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("failed to start server", zap.Error(err))
	}
	<-stopped
	logger.Info("Server stopped")
}
