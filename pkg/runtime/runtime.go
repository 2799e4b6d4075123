// Package runtime assembles the process: logging, LLM client with
// health probing, the optional Postgres store, and the orchestrator.
// main stays thin; everything here is testable wiring.
package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/agentic-project/agentic/pkg/config"
	"github.com/agentic-project/agentic/pkg/llm"
	"github.com/agentic-project/agentic/pkg/orchestrator"
	"github.com/agentic-project/agentic/pkg/store"
)

// Runtime holds the process-lifetime components.
type Runtime struct {
	Config       *config.Config
	LLM          *llm.Client
	Store        store.Store
	Orchestrator *orchestrator.Orchestrator

	stopHealth context.CancelFunc
	logFile    io.Closer
}

// New builds a Runtime from config. The store is only opened when
// enabled; everything else is mandatory.
func New(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	logFile, err := setupLogging(cfg.Observability)
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClient(&cfg.LLM)
	if err != nil {
		closeQuietly(logFile)
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	healthCtx, stopHealth := context.WithCancel(ctx)
	client.StartHealthChecks(healthCtx)

	var st store.Store
	if cfg.Store.IsEnabled() {
		pg, err := store.NewPostgres(ctx, store.PostgresConfig{
			Host:     cfg.Store.Host,
			Port:     cfg.Store.Port,
			User:     cfg.Store.User,
			Password: cfg.Store.Password,
			Database: cfg.Store.Database,
			SSLMode:  cfg.Store.SSLMode,
		})
		if err != nil {
			stopHealth()
			closeQuietly(logFile)
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		st = pg
		slog.Info("Connected to PostgreSQL store",
			"host", cfg.Store.Host, "database", cfg.Store.Database)
	} else {
		slog.Info("Store disabled, running without checkpoints and session history")
	}

	return &Runtime{
		Config:       cfg,
		LLM:          client,
		Store:        st,
		Orchestrator: orchestrator.New(cfg, client, st),
		stopHealth:   stopHealth,
		logFile:      logFile,
	}, nil
}

// Close tears components down in reverse dependency order.
func (r *Runtime) Close() {
	r.stopHealth()
	if r.Store != nil {
		if err := r.Store.Close(); err != nil {
			slog.Error("Error closing store", "error", err)
		}
	}
	if err := r.LLM.Close(); err != nil {
		slog.Error("Error closing LLM client", "error", err)
	}
	closeQuietly(r.logFile)
}

// setupLogging installs the default slog handler. Returns the log file
// handle when one was opened.
func setupLogging(cfg config.ObservabilityConfig) (io.Closer, error) {
	var out io.Writer = os.Stderr
	var file io.Closer
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.LogFile, err)
		}
		out = f
		file = f
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	})))
	return file, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
