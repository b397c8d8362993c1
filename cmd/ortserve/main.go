package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/vantorlabs/ortserve/internal/backend"
	"github.com/vantorlabs/ortserve/internal/backend/onnx"
	"github.com/vantorlabs/ortserve/internal/config"
	"github.com/vantorlabs/ortserve/internal/envvar"
	"github.com/vantorlabs/ortserve/internal/logger"
	"github.com/vantorlabs/ortserve/internal/model"
	"github.com/vantorlabs/ortserve/internal/ort"
)

func main() {
	flagConfigPath := flag.String("config", path.Join(config.DefaultConfigPath(), "config.yaml"), "Path to config file")
	flag.Parse()

	environment := os.Getenv(envvar.OrtserveEnv)

	slog.SetDefault(
		logger.New(environment,
			logger.WithLogToFile(true),
			logger.WithLogFile("logs/ortserve.log"),
		),
	)

	cfg, err := config.LoadAndValidate(*flagConfigPath)
	if err != nil {
		slog.Error("Failed to load config", "path", *flagConfigPath, "error", err)
		return
	}

	runtime := ort.NewRuntime(ort.RuntimeConfig{
		LibraryPath: cfg.Backend.ORTLibraryPath,
		APIVersion:  cfg.Backend.ORTAPIVersion,
	})

	factory, err := onnx.NewFactory(cfg.Backend, runtime)
	if err != nil {
		slog.Error("Failed to create backend factory", "error", err)
		return
	}
	defer factory.Close()

	backends := backend.NewRegistry()
	manager := model.NewManager(backends)

	if _, err := config.NewWatcher(*flagConfigPath, func(cfg *config.Config, err error) {
		if err != nil {
			slog.Error("Failed to reload config", "error", err)
			return
		}

		if err := manager.LoadModelsFromConfig(context.Background(), cfg, factory); err != nil {
			slog.Error("Failed to load models from config", "error", err)
		}
	}); err != nil {
		slog.Error("Failed to create config watcher", "error", err)
		return
	}

	if err := manager.LoadModelsFromConfig(context.Background(), cfg, factory); err != nil {
		slog.Error("Failed to load models from config", "error", err)
		return
	}

	slog.Info("Config loaded successfully", "config", *flagConfigPath)

	waitForShutdown()

	if err := backends.Close(); err != nil {
		slog.Warn("Failed to close backends", "error", err)
	}
}

// waitForShutdown blocks until the process receives SIGINT or SIGTERM.
func waitForShutdown() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	sig := <-stop
	slog.Info("Shutting down", "signal", sig.String())
}
