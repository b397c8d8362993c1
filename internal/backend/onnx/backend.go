package onnx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vantorlabs/ortserve/internal/artifact"
	"github.com/vantorlabs/ortserve/internal/backend"
	"github.com/vantorlabs/ortserve/internal/config"
	"github.com/vantorlabs/ortserve/internal/ort"
	"github.com/vantorlabs/ortserve/internal/xfs"
)

// defaultDefinitionName is the main definition filename assumed when a model
// directory holds several files and none is explicitly marked.
const defaultDefinitionName = "model.onnx"

// Backend serves one model through a set of parallel ONNX Runtime execution
// contexts. Infer requests round-robin over the contexts.
type Backend struct {
	sessions      ort.SessionManager
	cfg           config.BackendConfig
	minCapability float64

	root        string
	modelCfg    *config.ModelConfig
	initialized bool

	contexts []ort.ExecutionContext
	next     atomic.Uint64
}

func newBackend(sessions ort.SessionManager, cfg config.BackendConfig, minCapability float64) *Backend {
	return &Backend{
		sessions:      sessions,
		cfg:           cfg,
		minCapability: minCapability,
	}
}

// Provider returns the backend identifier.
func (b *Backend) Provider() backend.Provider {
	return backend.ProviderONNXRuntime
}

// Init validates the model configuration and the capability floor against
// the serving device.
func (b *Backend) Init(root string, cfg *config.ModelConfig, platform string) error {
	if cfg == nil {
		return fmt.Errorf("%w: missing model config for %s", backend.ErrInvalidModel, root)
	}
	if platform != backend.PlatformONNXRuntimeONNX {
		return fmt.Errorf("%w: unsupported platform %q", backend.ErrInvalidModel, platform)
	}
	if b.minCapability > 0 && b.cfg.DeviceCapability < b.minCapability {
		return fmt.Errorf("%w: device capability %.1f, required %.1f",
			backend.ErrCapability, b.cfg.DeviceCapability, b.minCapability)
	}

	b.root = root
	b.modelCfg = cfg
	b.initialized = true

	return nil
}

// CreateExecutionContexts parses the main model definition out of the
// resolved artifact map and provisions the configured number of execution
// contexts. Localized directory paths in the map are consumed during this
// call only; no context retains them afterwards.
func (b *Backend) CreateExecutionContexts(artifacts artifact.Map) error {
	if !b.initialized {
		return errors.New("onnx backend: not initialized")
	}

	mainName, err := mainDefinition(artifacts)
	if err != nil {
		return err
	}

	src, cleanup, err := b.sessionSource(mainName, artifacts)
	if err != nil {
		return err
	}
	defer cleanup()

	opts := ort.ContextOptions{DeviceCapability: b.cfg.DeviceCapability}

	instances := b.modelCfg.Instances
	if instances <= 0 {
		instances = b.cfg.DefaultInstances
	}
	if instances <= 0 {
		instances = 1
	}

	contexts := make([]ort.ExecutionContext, 0, instances)
	for i := 0; i < instances; i++ {
		src.Name = fmt.Sprintf("%s_%d", mainName, i)

		ec, err := b.sessions.NewExecutionContext(src, opts)
		if err != nil {
			for _, created := range contexts {
				_ = created.Close()
			}
			return fmt.Errorf("create execution context %d for %s: %w", i, mainName, err)
		}
		contexts = append(contexts, ec)
	}

	b.contexts = contexts

	return nil
}

// sessionSource prepares the model source handed to the session manager.
// A lone definition file is passed inline; a multi-part model is staged into
// a private session root where each artifact appears under its entry name,
// so relative references from the main definition resolve. The staging root
// is removed by cleanup once all contexts are built.
func (b *Backend) sessionSource(mainName string, artifacts artifact.Map) (ort.ModelSource, func(), error) {
	main := artifacts[mainName]

	if len(artifacts) == 1 {
		return ort.ModelSource{Name: mainName, Bytes: main.Bytes}, func() {}, nil
	}

	root, err := os.MkdirTemp("", "ortserve-session-")
	if err != nil {
		return ort.ModelSource{}, nil, fmt.Errorf("stage session root: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(root) }

	for name, entry := range artifacts {
		target := filepath.Join(root, name)

		switch entry.Kind {
		case artifact.KindFileContent:
			if err := os.WriteFile(target, entry.Bytes, 0o644); err != nil {
				cleanup()
				return ort.ModelSource{}, nil, fmt.Errorf("stage artifact %s: %w", name, err)
			}
		case artifact.KindDirectoryPath:
			// Symlink the localized copy; fall back to a plain copy on
			// filesystems without symlink support.
			if err := os.Symlink(entry.Path, target); err != nil {
				if err := os.MkdirAll(target, 0o755); err != nil {
					cleanup()
					return ort.ModelSource{}, nil, fmt.Errorf("stage artifact %s: %w", name, err)
				}
				if err := xfs.CopyTree(entry.Path, target); err != nil {
					cleanup()
					return ort.ModelSource{}, nil, fmt.Errorf("stage artifact %s: %w", name, err)
				}
			}
		}
	}

	return ort.ModelSource{Name: mainName, Path: filepath.Join(root, mainName)}, cleanup, nil
}

// mainDefinition picks the main model definition entry: a lone file entry
// wins, then the conventional default name, then the lexically first entry
// with an .onnx suffix.
func mainDefinition(artifacts artifact.Map) (string, error) {
	var files []string
	for name, entry := range artifacts {
		if entry.Kind == artifact.KindFileContent {
			files = append(files, name)
		}
	}

	if len(files) == 1 {
		return files[0], nil
	}

	if _, ok := artifacts[defaultDefinitionName]; ok {
		return defaultDefinitionName, nil
	}

	sort.Strings(files)
	for _, name := range files {
		if strings.HasSuffix(name, ".onnx") {
			return name, nil
		}
	}

	return "", fmt.Errorf("%w: no model definition among %d artifacts", backend.ErrInvalidModel, len(artifacts))
}

// Infer runs one request on the next execution context in round-robin order.
// The request body is a JSON tensor payload; see payload.go.
func (b *Backend) Infer(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	if len(b.contexts) == 0 {
		return nil, errors.New("onnx backend: no execution contexts")
	}

	inputs, err := decodeInputs(req.Input)
	if err != nil {
		return nil, err
	}

	ec := b.contexts[b.next.Add(1)%uint64(len(b.contexts))]

	outputs, err := ec.Run(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("inference on %s: %w", ec.Name(), err)
	}

	body, err := encodeOutputs(outputs)
	if err != nil {
		return nil, err
	}

	return &backend.Response{
		Output: body,
		Metadata: &backend.ResponseMetadata{
			Provider:    b.Provider(),
			Context:     ec.Name(),
			Timestamp:   time.Now(),
			OutputBytes: int64(body.Len()),
		},
	}, nil
}

// Close releases all execution contexts.
func (b *Backend) Close() error {
	var errs []error
	for _, ec := range b.contexts {
		if err := ec.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.contexts = nil

	return errors.Join(errs...)
}
