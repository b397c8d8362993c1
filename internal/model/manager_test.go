package model

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vantorlabs/ortserve/internal/artifact"
	"github.com/vantorlabs/ortserve/internal/backend"
	"github.com/vantorlabs/ortserve/internal/config"
)

// --- Mock types ---

type MockFactory struct {
	mock.Mock
}

func (m *MockFactory) CreateBackend(path string, cfg *config.ModelConfig, minCapability float64) (backend.Backend, error) {
	args := m.Called(path, cfg, minCapability)
	if b, ok := args.Get(0).(backend.Backend); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFactory) Close() {
	m.Called()
}

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Provider() backend.Provider { return backend.ProviderONNXRuntime }

func (m *MockBackend) Init(root string, cfg *config.ModelConfig, platform string) error {
	return m.Called(root, cfg, platform).Error(0)
}

func (m *MockBackend) CreateExecutionContexts(artifacts artifact.Map) error {
	return m.Called(artifacts).Error(0)
}

func (m *MockBackend) Infer(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	args := m.Called(ctx, req)
	if resp, ok := args.Get(0).(*backend.Response); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackend) Close() error {
	return m.Called().Error(0)
}

// --- Helpers ---

func localModelConfig(t *testing.T) (config.ModelConfig, string) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.onnx"), []byte("graph"), 0o644))

	var m config.ModelConfig
	m.SetLocalSource(config.LocalSource{Path: dir})
	return m, dir
}

func testConfig(t *testing.T, serving ...string) (*config.Config, map[string]string) {
	t.Helper()

	paths := make(map[string]string)
	models := make(map[string]config.ModelConfig)
	for _, id := range serving {
		m, dir := localModelConfig(t)
		models[id] = m
		paths[id] = dir
	}

	return &config.Config{
		Version: "1",
		Storage: config.StorageConfig{ModelsDir: t.TempDir()},
		Backend: config.BackendConfig{MinCapability: 6.0},
		Models:  models,
		Serving: config.ServingConfig{Models: serving},
	}, paths
}

// --- Tests ---

func TestManager_LoadModelsFromConfig(t *testing.T) {
	cfg, paths := testConfig(t, "squeezenet")

	b := new(MockBackend)
	factory := new(MockFactory)
	factory.On("CreateBackend", paths["squeezenet"], mock.Anything, 6.0).Return(b, nil).Once()

	backends := backend.NewRegistry()
	m := NewManager(backends)

	require.NoError(t, m.LoadModelsFromConfig(context.Background(), cfg, factory))

	instance, ok := m.Registry().Get("squeezenet")
	require.True(t, ok)
	assert.Equal(t, StatusLoaded, instance.Status)
	assert.NotEmpty(t, instance.ProvisionID)
	assert.NotNil(t, instance.LoadedAt)

	got, ok := backends.Get("squeezenet")
	require.True(t, ok)
	assert.Equal(t, b, got)

	factory.AssertExpectations(t)
}

func TestManager_CapabilityOverrideFromParameters(t *testing.T) {
	cfg, paths := testConfig(t, "resnet")
	model := cfg.Models["resnet"]
	model.Parameters = map[string]any{"min_capability": 8.0}
	cfg.Models["resnet"] = model

	factory := new(MockFactory)
	factory.On("CreateBackend", paths["resnet"], mock.Anything, 8.0).Return(new(MockBackend), nil).Once()

	m := NewManager(backend.NewRegistry())
	require.NoError(t, m.LoadModelsFromConfig(context.Background(), cfg, factory))

	factory.AssertExpectations(t)
}

func TestManager_ProvisionFailure(t *testing.T) {
	cfg, _ := testConfig(t, "broken")

	factory := new(MockFactory)
	factory.On("CreateBackend", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("invalid model")).Once()

	backends := backend.NewRegistry()
	m := NewManager(backends)

	require.NoError(t, m.LoadModelsFromConfig(context.Background(), cfg, factory))

	instance, ok := m.Registry().Get("broken")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, instance.Status)
	assert.Contains(t, instance.Error, "invalid model")

	_, ok = backends.Get("broken")
	assert.False(t, ok, "no backend is registered on failure")
}

func TestManager_DeprovisionRemovedModels(t *testing.T) {
	cfg, _ := testConfig(t, "squeezenet")

	b := new(MockBackend)
	b.On("Close").Return(nil).Once()

	factory := new(MockFactory)
	factory.On("CreateBackend", mock.Anything, mock.Anything, mock.Anything).Return(b, nil).Once()

	backends := backend.NewRegistry()
	m := NewManager(backends)
	require.NoError(t, m.LoadModelsFromConfig(context.Background(), cfg, factory))

	// Reload with the model unassigned.
	cfg.Serving.Models = nil
	require.NoError(t, m.LoadModelsFromConfig(context.Background(), cfg, factory))

	_, ok := m.Registry().Get("squeezenet")
	assert.False(t, ok)
	_, ok = backends.Get("squeezenet")
	assert.False(t, ok)

	b.AssertExpectations(t)
	factory.AssertExpectations(t)
}

func TestManager_UnknownAssignedModel(t *testing.T) {
	cfg, _ := testConfig(t)
	cfg.Serving.Models = []string{"ghost"}

	m := NewManager(backend.NewRegistry())
	require.NoError(t, m.LoadModelsFromConfig(context.Background(), cfg, new(MockFactory)))

	_, ok := m.Registry().Get("ghost")
	assert.False(t, ok)
}
