package model

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/vantorlabs/ortserve/internal/backend"
	"github.com/vantorlabs/ortserve/internal/config"
	"github.com/vantorlabs/ortserve/internal/config/source"
	"github.com/vantorlabs/ortserve/internal/envvar"
	"github.com/vantorlabs/ortserve/internal/mapsafe"
	"github.com/vantorlabs/ortserve/internal/xfs"
)

// Manager orchestrates model lifecycle: acquisition, backend provisioning,
// and deprovisioning on config changes.
type Manager struct {
	registry *Registry
	backends *backend.Registry
	mu       sync.RWMutex
}

// NewManager creates a new Manager instance.
func NewManager(backends *backend.Registry) *Manager {
	return &Manager{
		registry: NewRegistry(),
		backends: backends,
	}
}

// Registry returns the model registry.
func (m *Manager) Registry() *Registry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.registry
}

// LoadModelsFromConfig reconciles the registry with the config: every served
// model is downloaded and provisioned through the factory, and models no
// longer assigned are deprovisioned.
func (m *Manager) LoadModelsFromConfig(ctx context.Context, cfg *config.Config, factory backend.Factory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	assignedModels := make(map[string]bool)
	for _, model := range cfg.Serving.Models {
		assignedModels[model] = true
	}

	modelsPath := resolveModelsPath(cfg)
	if err := source.EnsureModelsDirectory(modelsPath); err != nil {
		return fmt.Errorf("failed to prepare models directory %s: %w", modelsPath, err)
	}

	loadedKeys := make(map[string]bool)
	for modelID := range assignedModels {
		modelConfig, ok := cfg.Models[modelID]
		if !ok {
			slog.Warn("Model not found in config", "model_id", modelID)
			continue
		}

		instance, err := m.provision(ctx, modelID, &modelConfig, cfg, factory, modelsPath)
		loadedKeys[modelID] = true
		m.registry.Set(instance)

		if err != nil {
			instance.SetError(err)
			slog.Error("Failed to provision model", "model_id", modelID, "provision_id", instance.ProvisionID, "error", err)
			continue
		}

		instance.SetStatus(StatusLoaded)
		slog.Info("Model provisioned", "model_id", modelID, "provision_id", instance.ProvisionID, "path", instance.Path)
	}

	// Deprovision models that are no longer assigned.
	for _, instance := range m.registry.List() {
		if loadedKeys[instance.ID] {
			continue
		}

		if err := m.backends.Delete(instance.ID); err != nil {
			slog.Warn("Failed to close deprovisioned backend", "model_id", instance.ID, "error", err)
		}
		m.registry.Delete(instance.ID)
		slog.Info("Model deprovisioned", "model_id", instance.ID)
	}

	return nil
}

// provision downloads one model and builds its backend.
func (m *Manager) provision(ctx context.Context, modelID string, modelConfig *config.ModelConfig, cfg *config.Config, factory backend.Factory, modelsPath string) (*Instance, error) {
	instance := NewInstance(modelConfig, modelID, "")

	modelSource, err := modelConfig.GetSource()
	if err != nil {
		return instance, fmt.Errorf("failed to get model source for %s: %w", modelID, err)
	}

	downloader, err := source.GetDownloader(ctx, modelSource.Type())
	if err != nil {
		return instance, fmt.Errorf("failed to get downloader for %s: %w", modelID, err)
	}

	downloadPath, _, err := downloader.Download(ctx, modelConfig, modelsPath)
	if err != nil {
		return instance, fmt.Errorf("failed to download model %s into %s: %w", modelID, modelsPath, err)
	}
	instance.Path = downloadPath

	// A model may raise the factory-wide capability floor for itself.
	minCapability := mapsafe.Get(modelConfig.Parameters, "min_capability", cfg.Backend.MinCapability)

	// Replace any previous backend for this model before provisioning anew.
	if _, ok := m.backends.Get(modelID); ok {
		if err := m.backends.Delete(modelID); err != nil {
			slog.Warn("Failed to close previous backend", "model_id", modelID, "error", err)
		}
	}

	b, err := factory.CreateBackend(downloadPath, modelConfig, minCapability)
	if err != nil {
		return instance, fmt.Errorf("failed to create backend for %s: %w", modelID, err)
	}

	if err := m.backends.Register(modelID, b); err != nil {
		_ = b.Close()
		return instance, fmt.Errorf("failed to register backend for %s: %w", modelID, err)
	}

	return instance, nil
}

// resolveModelsPath returns the path to the models directory.
// Precedence:
// 1. ORTSERVE_MODELS_PATH environment variable.
// 2. ModelsDir field in the config.
// 3. Default models path.
func resolveModelsPath(cfg *config.Config) string {
	if p := os.Getenv(envvar.OrtserveModelsPath); p != "" {
		return xfs.ExpandTilde(p)
	}
	if cfg.Storage.ModelsDir != "" {
		return xfs.ExpandTilde(cfg.Storage.ModelsDir)
	}
	return xfs.ExpandTilde(config.DefaultModelsPath())
}
