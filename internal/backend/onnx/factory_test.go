package onnx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantorlabs/ortserve/internal/artifact"
	"github.com/vantorlabs/ortserve/internal/backend"
	"github.com/vantorlabs/ortserve/internal/config"
	"github.com/vantorlabs/ortserve/internal/ort"
	"github.com/vantorlabs/ortserve/internal/xfs"
)

// --- Fakes ---

type fakeContext struct {
	name   string
	closed bool
}

func (c *fakeContext) Name() string { return c.name }

func (c *fakeContext) Run(_ context.Context, inputs map[string]*ort.Tensor) (map[string]*ort.Tensor, error) {
	// Echo inputs back as outputs.
	return inputs, nil
}

func (c *fakeContext) Close() error {
	c.closed = true
	return nil
}

type fakeSessionManager struct {
	mu            sync.Mutex
	initCalls     int
	stopCalls     int
	initErr       error
	failAtContext int // 1-based call index that fails; 0 means never
	sources       []ort.ModelSource
	contexts      []*fakeContext
	onCreate      func(src ort.ModelSource)
}

func (f *fakeSessionManager) Init() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	return f.initErr
}

func (f *fakeSessionManager) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
}

func (f *fakeSessionManager) NewExecutionContext(src ort.ModelSource, _ ort.ContextOptions) (ort.ExecutionContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sources = append(f.sources, src)
	if f.onCreate != nil {
		f.onCreate(src)
	}
	if f.failAtContext > 0 && len(f.sources) >= f.failAtContext {
		return nil, errors.New("session creation failed")
	}

	ec := &fakeContext{name: src.Name}
	f.contexts = append(f.contexts, ec)
	return ec, nil
}

// recordingResolver wraps the real localization and records every temporary
// root it hands out so tests can assert nothing is left behind.
type recordingResolver struct {
	mu    sync.Mutex
	roots []string
	fail  bool // fail the second localization
	calls int
}

func (r *recordingResolver) localize(src string) (string, func() error, error) {
	r.mu.Lock()
	r.calls++
	shouldFail := r.fail && r.calls > 1
	r.mu.Unlock()

	if shouldFail {
		return "", nil, errors.New("destination unwritable")
	}

	root, release, err := xfs.LocalizeTree(src)
	if err != nil {
		return "", nil, err
	}

	r.mu.Lock()
	r.roots = append(r.roots, root)
	r.mu.Unlock()

	return root, release, nil
}

func (r *recordingResolver) assertAllReleased(t *testing.T) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, root := range r.roots {
		_, err := os.Stat(root)
		assert.True(t, os.IsNotExist(err), "temporary root %s must be released", root)
	}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func newTestFactory(t *testing.T, cfg config.BackendConfig, sm ort.SessionManager) *Factory {
	t.Helper()
	f, err := NewFactory(cfg, sm)
	require.NoError(t, err)
	return f
}

// --- Factory lifecycle ---

func TestNewFactory_InitOnceStopOnce(t *testing.T) {
	sm := &fakeSessionManager{}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "model.onnx"), []byte("graph"))

	f := newTestFactory(t, config.BackendConfig{}, sm)

	for i := 0; i < 3; i++ {
		b, err := f.CreateBackend(dir, &config.ModelConfig{}, 0)
		require.NoError(t, err)
		require.NoError(t, b.Close())
	}

	f.Close()
	f.Close()

	assert.Equal(t, 1, sm.initCalls, "Init exactly once per factory")
	assert.Equal(t, 1, sm.stopCalls, "Stop exactly once per factory")
}

func TestNewFactory_InitFailure(t *testing.T) {
	sm := &fakeSessionManager{initErr: errors.New("missing native library")}

	f, err := NewFactory(config.BackendConfig{}, sm)
	assert.ErrorContains(t, err, "missing native library")
	assert.Nil(t, f)
}

func TestNewFactory_InvalidConfig(t *testing.T) {
	sm := &fakeSessionManager{}

	f, err := NewFactory(config.BackendConfig{DefaultInstances: -1}, sm)
	assert.Error(t, err)
	assert.Nil(t, f)
	assert.Zero(t, sm.initCalls, "invalid config must not touch the runtime session")
}

// --- CreateBackend ---

func TestCreateBackend_SingleFileInline(t *testing.T) {
	sm := &fakeSessionManager{}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "model.onnx"), []byte{1, 2, 3, 4})

	f := newTestFactory(t, config.BackendConfig{DefaultInstances: 2}, sm)
	defer f.Close()

	b, err := f.CreateBackend(dir, &config.ModelConfig{}, 0)
	require.NoError(t, err)
	defer b.Close()

	require.Len(t, sm.sources, 2, "default instance count provisions two contexts")
	for _, src := range sm.sources {
		assert.Equal(t, []byte{1, 2, 3, 4}, src.Bytes, "lone definition is passed inline")
		assert.Empty(t, src.Path)
	}
}

func TestCreateBackend_FileAndSubdir(t *testing.T) {
	sm := &fakeSessionManager{}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "model.bin"), []byte{1, 2, 3, 4})
	writeFile(t, filepath.Join(dir, "data", "weights.dat"), []byte{9, 9})

	var stagedWeights []byte
	var stagedDataDir string
	sm.onCreate = func(src ort.ModelSource) {
		if stagedWeights != nil {
			return
		}
		stagedDataDir = filepath.Join(filepath.Dir(src.Path), "data")
		stagedWeights, _ = os.ReadFile(filepath.Join(stagedDataDir, "weights.dat"))
	}

	resolver := &recordingResolver{}
	f := newTestFactory(t, config.BackendConfig{}, sm)
	defer f.Close()
	f.resolver = &artifact.Resolver{Localize: resolver.localize}

	b, err := f.CreateBackend(dir, &config.ModelConfig{}, 0)
	require.NoError(t, err)
	defer b.Close()

	require.Len(t, sm.sources, 1)
	assert.Equal(t, filepath.Base(sm.sources[0].Path), "model.bin")

	// Relative references resolve against the localized copy, not m/data.
	assert.NotEqual(t, filepath.Join(dir, "data"), stagedDataDir)
	assert.Equal(t, []byte{9, 9}, stagedWeights)

	resolver.assertAllReleased(t)
}

func TestCreateBackend_ScanError(t *testing.T) {
	sm := &fakeSessionManager{}
	f := newTestFactory(t, config.BackendConfig{}, sm)
	defer f.Close()

	b, err := f.CreateBackend(filepath.Join(t.TempDir(), "absent"), &config.ModelConfig{}, 0)
	assert.Error(t, err)
	assert.Nil(t, b)
}

func TestCreateBackend_LocalizationFailureLeavesNothing(t *testing.T) {
	sm := &fakeSessionManager{}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a", "x"), []byte("x"))
	writeFile(t, filepath.Join(dir, "b", "y"), []byte("y"))

	resolver := &recordingResolver{fail: true}
	f := newTestFactory(t, config.BackendConfig{}, sm)
	defer f.Close()
	f.resolver = &artifact.Resolver{Localize: resolver.localize}

	b, err := f.CreateBackend(dir, &config.ModelConfig{}, 0)
	assert.ErrorContains(t, err, "destination unwritable")
	assert.Nil(t, b)
	assert.Empty(t, sm.sources, "no partial artifact map reaches the backend")

	resolver.assertAllReleased(t)
}

func TestCreateBackend_InitFailureReleasesResources(t *testing.T) {
	sm := &fakeSessionManager{}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "model.onnx"), []byte("graph"))
	writeFile(t, filepath.Join(dir, "data", "w"), []byte("w"))

	resolver := &recordingResolver{}
	f := newTestFactory(t, config.BackendConfig{}, sm)
	defer f.Close()
	f.resolver = &artifact.Resolver{Localize: resolver.localize}

	b, err := f.CreateBackend(dir, nil, 0)
	assert.ErrorIs(t, err, backend.ErrInvalidModel)
	assert.Nil(t, b)
	assert.Empty(t, sm.sources)

	resolver.assertAllReleased(t)
}

func TestCreateBackend_ContextFailureReleasesEverything(t *testing.T) {
	sm := &fakeSessionManager{failAtContext: 2}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "model.onnx"), []byte("graph"))
	writeFile(t, filepath.Join(dir, "data", "w"), []byte("w"))

	resolver := &recordingResolver{}
	f := newTestFactory(t, config.BackendConfig{DefaultInstances: 3}, sm)
	defer f.Close()
	f.resolver = &artifact.Resolver{Localize: resolver.localize}

	b, err := f.CreateBackend(dir, &config.ModelConfig{}, 0)
	assert.ErrorContains(t, err, "session creation failed")
	assert.Nil(t, b)

	require.Len(t, sm.contexts, 1)
	assert.True(t, sm.contexts[0].closed, "contexts created before the failure are closed")

	resolver.assertAllReleased(t)
}

func TestCreateBackend_CapabilityFloor(t *testing.T) {
	sm := &fakeSessionManager{}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "model.onnx"), []byte("graph"))

	f := newTestFactory(t, config.BackendConfig{DeviceCapability: 6.0}, sm)
	defer f.Close()

	b, err := f.CreateBackend(dir, &config.ModelConfig{}, 7.0)
	assert.ErrorIs(t, err, backend.ErrCapability)
	assert.Nil(t, b)

	b, err = f.CreateBackend(dir, &config.ModelConfig{}, 6.0)
	require.NoError(t, err)
	require.NoError(t, b.Close())
}

func TestCreateBackend_ConcurrentCallsAreIndependent(t *testing.T) {
	sm := &fakeSessionManager{}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "model.bin"), []byte("graph"))
	writeFile(t, filepath.Join(dir, "data", "w"), []byte("w"))

	f := newTestFactory(t, config.BackendConfig{}, sm)
	defer f.Close()

	var wg sync.WaitGroup
	backends := make([]backend.Backend, 2)
	errs := make([]error, 2)

	for i := range backends {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			backends[i], errs[i] = f.CreateBackend(dir, &config.ModelConfig{}, 0)
		}(i)
	}
	wg.Wait()

	for i := range backends {
		require.NoError(t, errs[i])
		require.NotNil(t, backends[i])
		require.NoError(t, backends[i].Close())
	}

	require.Len(t, sm.sources, 2)
	assert.NotEqual(t, sm.sources[0].Path, sm.sources[1].Path,
		"concurrent calls must stage into independent roots")
}

// --- Backend behavior ---

func TestMainDefinition(t *testing.T) {
	file := func(data string) artifact.Entry {
		return artifact.Entry{Kind: artifact.KindFileContent, Bytes: []byte(data)}
	}
	dir := artifact.Entry{Kind: artifact.KindDirectoryPath, Path: "/tmp/x"}

	name, err := mainDefinition(artifact.Map{"net.onnx": file("a"), "data": dir})
	require.NoError(t, err)
	assert.Equal(t, "net.onnx", name)

	name, err = mainDefinition(artifact.Map{"model.onnx": file("a"), "extra.bin": file("b")})
	require.NoError(t, err)
	assert.Equal(t, "model.onnx", name)

	name, err = mainDefinition(artifact.Map{"b.onnx": file("b"), "a.onnx": file("a"), "notes.txt": file("n")})
	require.NoError(t, err)
	assert.Equal(t, "a.onnx", name)

	_, err = mainDefinition(artifact.Map{"data": dir})
	assert.ErrorIs(t, err, backend.ErrInvalidModel)
}

func TestBackend_InferRoundRobin(t *testing.T) {
	sm := &fakeSessionManager{}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "model.onnx"), []byte("graph"))

	f := newTestFactory(t, config.BackendConfig{}, sm)
	defer f.Close()

	b, err := f.CreateBackend(dir, &config.ModelConfig{Instances: 2}, 0)
	require.NoError(t, err)
	defer b.Close()

	seen := map[string]int{}
	for i := 0; i < 4; i++ {
		resp, err := b.Infer(context.Background(), &backend.Request{
			Input: payloadReader(t, []float32{1, 2}, []int64{2}),
		})
		require.NoError(t, err)
		seen[resp.Metadata.Context]++

		assert.Equal(t, backend.ProviderONNXRuntime, resp.Metadata.Provider)
		assert.Positive(t, resp.Metadata.OutputBytes)
	}

	require.Len(t, seen, 2, "requests alternate over both contexts")
	for _, count := range seen {
		assert.Equal(t, 2, count)
	}
}
