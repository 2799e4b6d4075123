// Agentic runtime server: classifies incoming tasks, drives the
// workflow engine against local LLM endpoints, and serves progress over
// HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/agentic-project/agentic/pkg/api"
	"github.com/agentic-project/agentic/pkg/config"
	"github.com/agentic-project/agentic/pkg/runtime"
	"github.com/agentic-project/agentic/pkg/version"
)

const shutdownTimeout = 15 * time.Second

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config",
		getEnv("AGENTIC_CONFIG", "./deploy/agentic.yaml"),
		"Path to agentic.yaml")
	flag.Parse()

	// Load .env next to the config file so API keys referenced via
	// {{.VAR}} templates resolve.
	envPath := filepath.Join(filepath.Dir(*configPath), ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Debug("No .env file, continuing with existing environment", "path", envPath)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8090")
	slog.Info("Starting agentic",
		"version", version.Full(),
		"http_port", httpPort,
		"config", *configPath)

	ctx := context.Background()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize runtime", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	server := api.NewServer(rt.Orchestrator, rt.Store)
	server.SetLLMHealth(rt.LLM.Health)
	httpServer := &http.Server{
		Addr:    ":" + httpPort,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP server shutdown incomplete", "error", err)
	}
	slog.Info("Shutdown complete")
}

// loadConfig reads the YAML config, falling back to built-in defaults
// when no file exists at the path.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Initialize(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, config.ErrConfigNotFound) {
		slog.Warn("No config file found, using built-in defaults", "path", path)
		return config.DefaultConfig(), nil
	}
	return nil, err
}
