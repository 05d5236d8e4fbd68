// Package main provides the entry point for the GemBridge server.
// The server exposes an OpenAI-compatible chat completions API and forwards
// requests to a model-invocation engine, translating between the two wire
// formats in both directions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/modelbridge/gembridge/internal/api"
	"github.com/modelbridge/gembridge/internal/api/handlers"
	"github.com/modelbridge/gembridge/internal/config"
	"github.com/modelbridge/gembridge/internal/engine"
	"github.com/modelbridge/gembridge/internal/logging"
	"github.com/modelbridge/gembridge/internal/registry"
	"github.com/modelbridge/gembridge/internal/session"
	"github.com/modelbridge/gembridge/internal/translator/openai"
	"github.com/modelbridge/gembridge/internal/watcher"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

const shutdownTimeout = 30 * time.Second

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
}

// main parses command-line flags, loads configuration, wires the engine
// client and starts the API server.
func main() {
	var configPath string
	var showVersion bool
	flag.StringVar(&configPath, "config", "config.yaml", "Configure File Path")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("GemBridge Version: %s, Commit: %s, BuiltAt: %s\n", Version, Commit, BuildDate)
		return
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		return
	}

	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config from %s: %v", configPath, err)
	}
	if key := os.Getenv("GEMBRIDGE_ENGINE_API_KEY"); key != "" {
		cfg.Engine.APIKey = key
	}

	if cfg.Debug {
		logging.SetLogLevel("debug")
	}
	if errLog := logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogDir); errLog != nil {
		log.Fatalf("failed to configure log output: %v", errLog)
	}

	factory := engine.NewHTTPClientFactory(engine.ClientConfig{
		BaseURL: cfg.Engine.BaseURL,
		APIKey:  cfg.Engine.APIKey,
	})
	sessions := session.NewRegistry(cfg.SessionMode, factory)
	defer func() {
		if errClose := sessions.Close(); errClose != nil {
			log.Warnf("failed to close sessions: %v", errClose)
		}
	}()

	models := registry.NewRegistry(registry.GetGeminiModels())
	converter := openai.NewConverter(&http.Client{Timeout: 30 * time.Second})
	base := handlers.NewBaseHandler(cfg, models, sessions, converter)
	server := api.NewServer(cfg, base)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := watcher.NewWatcher(configPath, server.UpdateConfig)
	if errWatch := w.Start(ctx); errWatch != nil {
		log.Warnf("config watcher disabled: %v", errWatch)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case errServe := <-errCh:
		if errServe != nil {
			log.Fatalf("server error: %v", errServe)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errStop := server.Stop(shutdownCtx); errStop != nil {
			log.Errorf("graceful shutdown failed: %v", errStop)
		}
	}
}
