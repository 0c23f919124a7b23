// Package main is the entry point for the agentflow service.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/flexinfer/agentflow/internal/agentstore"
	"github.com/flexinfer/agentflow/internal/api"
	"github.com/flexinfer/agentflow/internal/config"
	"github.com/flexinfer/agentflow/internal/execstore"
	"github.com/flexinfer/agentflow/internal/inference"
	"github.com/flexinfer/agentflow/internal/integrations"
	"github.com/flexinfer/agentflow/internal/interpreter"
	"github.com/flexinfer/agentflow/internal/orchestrator"
	"github.com/flexinfer/agentflow/internal/planner"
	"github.com/flexinfer/agentflow/internal/tracing"
	"github.com/flexinfer/agentflow/internal/validator"
)

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	logger.Info("starting agentflow",
		slog.String("port", cfg.Port),
		slog.String("log_level", cfg.LogLevel),
	)

	// Tracing
	tp, err := tracing.Init(context.Background(), &tracing.Config{
		ServiceName:    "agentflow",
		ServiceVersion: "1.0.0",
		OTLPEndpoint:   cfg.TracingEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     1.0,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Execution store, redis with fallback to memory
	var execs execstore.Store
	var agents agentstore.Store
	switch cfg.StoreType {
	case "redis":
		redisExecs, err := execstore.NewRedisStore(&execstore.RedisConfig{
			URL:       cfg.RedisURL,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			Prefix:    cfg.KeyPrefix + ":executions",
			TTL:       cfg.StoreTTL,
			LogMaxLen: cfg.LogMaxLen,
		})
		if err != nil {
			logger.Error("failed to connect to Redis, falling back to memory stores", "error", err)
			execs = execstore.NewMemoryStore(&execstore.Config{
				LogMaxLen:  cfg.LogMaxLen,
				TTLSeconds: int64(cfg.StoreTTL.Seconds()),
			})
			agents = agentstore.NewMemoryStore()
			break
		}
		execs = redisExecs

		redisAgents, err := agentstore.NewRedisStore(&agentstore.RedisConfig{
			URL:      cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.KeyPrefix + ":agents",
		})
		if err != nil {
			logger.Error("failed to open agent store", "error", err)
			os.Exit(1)
		}
		agents = redisAgents
		logger.Info("using Redis stores", slog.String("url", cfg.RedisURL))
	default:
		execs = execstore.NewMemoryStore(&execstore.Config{
			LogMaxLen:  cfg.LogMaxLen,
			TTLSeconds: int64(cfg.StoreTTL.Seconds()),
		})
		agents = agentstore.NewMemoryStore()
		logger.Info("using in-memory stores")
	}
	defer execs.Close()
	defer agents.Close()

	// Integrations
	var notifier integrations.Notifier
	if cfg.SMTPAddr != "" {
		notifier = integrations.NewSMTPNotifier(integrations.SMTPConfig{
			Addr:     cfg.SMTPAddr,
			From:     cfg.SMTPFrom,
			To:       cfg.SMTPTo,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		})
	} else {
		logger.Warn("SMTP not configured, email steps are no-ops")
		notifier = &integrations.LogNotifier{}
	}

	var sheets integrations.SheetReader
	if cfg.SheetsBaseURL != "" {
		sheets = integrations.NewHTTPSheetReader(integrations.SheetsConfig{
			BaseURL: cfg.SheetsBaseURL,
			SheetID: cfg.SheetID,
			Range:   cfg.SheetRange,
			APIKey:  cfg.SheetsAPIKey,
		})
	} else {
		logger.Warn("sheets gateway not configured, data fetch steps return no rows")
		sheets = &integrations.StaticSheetReader{}
	}

	// Planning and execution pipeline
	infer := inference.NewHTTPClient(&inference.Config{
		URL:     cfg.InferenceURL,
		Timeout: cfg.InferenceTimeout,
	})
	plan := planner.New(infer)
	interp := interpreter.New(execs, notifier, sheets, logger)
	orch := orchestrator.New(agents, execs, plan, interp, infer, logger)

	// Validator
	v, err := validator.New()
	if err != nil {
		logger.Error("failed to create validator", "error", err)
		os.Exit(1)
	}

	// API handlers
	handlers := api.NewHandlers(agents, execs, orch, v, cfg, logger)
	server := api.NewServer(handlers)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := tp.Shutdown(ctx); err != nil {
		logger.Error("tracing shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
