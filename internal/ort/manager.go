package ort

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	ortapi "github.com/shota3506/onnxruntime-purego/onnxruntime"
)

// ModelSource identifies the model definition an execution context is built
// from: either a path on disk or inline bytes out of an artifact map.
type ModelSource struct {
	// Name labels the context in logs and errors.
	Name string

	// Path points at the main definition on disk. Empty when Bytes is set.
	Path string

	// Bytes holds an inline definition. Staged to a private temporary file
	// for session creation; the file is removed once the session is built.
	Bytes []byte
}

// ContextOptions carries per-context construction settings.
type ContextOptions struct {
	// DeviceCapability is the capability level of the device the context
	// will run on.
	DeviceCapability float64
}

// ExecutionContext is one prepared, ready-to-serve native session.
type ExecutionContext interface {
	// Name returns the context label.
	Name() string

	// Run executes the graph with the given named input tensors.
	Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error)

	// Close releases the native session. Safe to call multiple times.
	Close() error
}

// SessionManager owns the process-wide native runtime lifecycle and builds
// execution contexts for backends. Init is idempotent and must complete
// before any context is created; Stop is idempotent and safe after a partial
// Init.
type SessionManager interface {
	Init() error
	Stop()
	NewExecutionContext(src ModelSource, opts ContextOptions) (ExecutionContext, error)
}

// RuntimeConfig configures the native runtime.
type RuntimeConfig struct {
	// LibraryPath is the ONNX Runtime shared library. Empty means detect.
	LibraryPath string

	// APIVersion is the ORT C API version to request. Zero means default.
	APIVersion uint32
}

// Runtime is the SessionManager implementation over the onnxruntime-purego
// binding. The shared library and the ORT environment are process-wide; all
// sessions created by this runtime share them.
type Runtime struct {
	cfg RuntimeConfig

	mu          sync.Mutex
	initialized bool
	runtime     *ortapi.Runtime
	env         *ortapi.Env
}

// NewRuntime creates an uninitialized runtime. Call Init before creating
// execution contexts.
func NewRuntime(cfg RuntimeConfig) *Runtime {
	if cfg.APIVersion == 0 {
		cfg.APIVersion = defaultAPIVersion
	}
	return &Runtime{cfg: cfg}
}

// Init loads the shared library and brings up the ORT environment. Calling
// Init on an already initialized runtime is a no-op.
func (r *Runtime) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return nil
	}

	path, err := DetectLibrary(r.cfg.LibraryPath)
	if err != nil {
		return fmt.Errorf("ort: %w", err)
	}

	rt, err := ortapi.NewRuntime(path, r.cfg.APIVersion)
	if err != nil {
		return fmt.Errorf("ort: load runtime library %s: %w", path, err)
	}

	env, err := rt.NewEnv("ortserve", ortapi.LoggingLevelWarning)
	if err != nil {
		_ = rt.Close()
		return fmt.Errorf("ort: create environment: %w", err)
	}

	r.runtime = rt
	r.env = env
	r.initialized = true

	slog.Info("ONNX Runtime initialized", "library", path, "api_version", r.cfg.APIVersion)

	return nil
}

// Stop tears down the environment and unloads the library. Safe after a
// partial Init and safe to call more than once.
func (r *Runtime) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.env != nil {
		r.env.Close()
		r.env = nil
	}
	if r.runtime != nil {
		if err := r.runtime.Close(); err != nil {
			slog.Warn("Failed to close ONNX Runtime library", "error", err)
		}
		r.runtime = nil
	}
	r.initialized = false
}

// NewExecutionContext builds one native session from src.
func (r *Runtime) NewExecutionContext(src ModelSource, _ ContextOptions) (ExecutionContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return nil, errors.New("ort: runtime not initialized")
	}

	path := src.Path
	if path == "" {
		if len(src.Bytes) == 0 {
			return nil, fmt.Errorf("ort: model source %q has neither path nor bytes", src.Name)
		}

		staged, err := stageBytes(src.Name, src.Bytes)
		if err != nil {
			return nil, err
		}
		defer os.Remove(staged)
		path = staged
	}

	session, err := r.runtime.NewSession(r.env, path, nil)
	if err != nil {
		return nil, fmt.Errorf("ort: create session for %q (%s): %w", src.Name, path, err)
	}

	return &executionContext{
		name:    src.Name,
		runtime: r.runtime,
		session: session,
	}, nil
}

// stageBytes writes an inline model definition to a private temporary file so
// the native library can open it by path.
func stageBytes(name string, data []byte) (string, error) {
	f, err := os.CreateTemp("", "ortserve-model-*.onnx")
	if err != nil {
		return "", fmt.Errorf("ort: stage model %q: %w", name, err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("ort: stage model %q: %w", name, err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("ort: stage model %q: %w", name, err)
	}

	return f.Name(), nil
}
