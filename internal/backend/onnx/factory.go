// Package onnx implements the ONNX Runtime backend factory: it resolves a
// model directory into an artifact map, provisions a backend with one or more
// execution contexts, and scopes the lifetime of the localized temporary
// copies to each construction call. The factory also owns the process-wide
// runtime session lifecycle.
package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/vantorlabs/ortserve/internal/artifact"
	"github.com/vantorlabs/ortserve/internal/backend"
	"github.com/vantorlabs/ortserve/internal/config"
	"github.com/vantorlabs/ortserve/internal/ort"
)

// Factory builds ONNX backends. NewFactory calls SessionManager.Init exactly
// once; Close calls Stop exactly once. Individual CreateBackend calls share
// no mutable state, so concurrent calls are safe.
type Factory struct {
	cfg      config.BackendConfig
	sessions ort.SessionManager
	resolver *artifact.Resolver
	closed   atomic.Bool
}

// NewFactory validates the backend configuration, initializes the runtime
// session, and returns a ready factory. On Init failure no factory is
// returned.
func NewFactory(cfg config.BackendConfig, sessions ort.SessionManager) (*Factory, error) {
	if sessions == nil {
		return nil, errors.New("onnx factory: session manager is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("onnx factory: %w", err)
	}

	slog.Debug("Creating ONNX backend factory")

	if err := sessions.Init(); err != nil {
		return nil, fmt.Errorf("onnx factory: initialize runtime session: %w", err)
	}

	return &Factory{
		cfg:      cfg,
		sessions: sessions,
		resolver: artifact.NewResolver(),
	}, nil
}

// Close stops the runtime session. It must be the last factory call; Stop
// problems never propagate to the caller.
func (f *Factory) Close() {
	if f.closed.Swap(true) {
		return
	}

	slog.Debug("Stopping ONNX backend factory")
	f.sessions.Stop()
}

// CreateBackend resolves the model directory at path, initializes a backend
// honoring minCapability, and asks it to build its execution contexts from
// the resolved artifact map. Localized temporary copies live exactly for the
// duration of this call; on every exit path they are released and no
// partially initialized backend escapes.
func (f *Factory) CreateBackend(path string, modelCfg *config.ModelConfig, minCapability float64) (backend.Backend, error) {
	artifacts, temps, err := f.resolver.Resolve(path)
	if err != nil {
		return nil, fmt.Errorf("resolve model directory %s: %w", path, err)
	}
	defer func() {
		if err := temps.ReleaseAll(); err != nil {
			slog.Warn("Failed to release localized model copies", "model_path", path, "error", err)
		}
	}()

	b := newBackend(f.sessions, f.cfg, minCapability)
	if err := b.Init(path, modelCfg, backend.PlatformONNXRuntimeONNX); err != nil {
		return nil, err
	}

	if err := b.CreateExecutionContexts(artifacts); err != nil {
		return nil, err
	}

	return b, nil
}
